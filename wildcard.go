package rankindex

import (
	"cmp"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
)

// fragment is a maximal wildcard-free run of a pattern and where it starts.
type fragment struct {
	text   []byte
	offset int
}

func splitFragments(pattern []byte, wildcard byte) []fragment {
	var fragments []fragment
	start := 0
	for i := 0; i <= len(pattern); i++ {
		if i < len(pattern) && pattern[i] != wildcard {
			continue
		}
		if i > start {
			fragments = append(fragments, fragment{text: pattern[start:i], offset: start})
		}
		start = i + 1
	}
	return fragments
}

// SearchWithWildcards is Search where every wildcard symbol of the alphabet
// ('?' by default) matches exactly one arbitrary symbol. Positions come back
// in ascending order.
//
// Each fixed fragment is searched on its own and turned into the set of
// alignments its matches imply; an alignment is reported once every
// fragment confirms it.
func (ix *Index) SearchWithWildcards(pattern []byte) ([]int, error) {
	pattern, err := ix.preparePattern(pattern)
	if err != nil {
		return nil, err
	}

	// highest alignment that leaves room for the whole pattern
	last := len(ix.text) - len(pattern)
	fragments := splitFragments(pattern, ix.alphabet.Wildcard)
	if len(fragments) == 0 {
		return allPositions(last + 1), nil
	}

	confirmed := make([]*roaring.Bitmap, len(fragments))
	for i, f := range fragments {
		aligned := roaring.New()
		for _, p := range ix.search(f.text) {
			if c := p - f.offset; c >= 0 && c <= last {
				aligned.Add(uint32(c))
			}
		}
		if aligned.IsEmpty() {
			return []int{}, nil
		}
		confirmed[i] = aligned
	}

	matches := intersectAlignments(confirmed)
	positions := make([]int, 0, matches.GetCardinality())
	it := matches.Iterator()
	for it.HasNext() {
		positions = append(positions, int(it.Next()))
	}
	return positions, nil
}

// intersectAlignments keeps the alignments present in every set, starting
// from the smallest so the running result shrinks as early as possible.
func intersectAlignments(sets []*roaring.Bitmap) *roaring.Bitmap {
	sorted := slices.Clone(sets)
	slices.SortFunc(sorted, func(a, b *roaring.Bitmap) int {
		return cmp.Compare(a.GetCardinality(), b.GetCardinality())
	})
	result := sorted[0].Clone()
	for i := 1; i < len(sorted) && !result.IsEmpty(); i++ {
		result.And(sorted[i])
	}
	return result
}
