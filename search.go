package rankindex

import (
	"bytes"
	"fmt"
	"sort"
)

// Search returns every position of the original text where pattern starts,
// in no particular order.
//
// The empty pattern matches every position 0..Len(), the last one being
// the sentinel's own position.
func (ix *Index) Search(pattern []byte) ([]int, error) {
	pattern, err := ix.preparePattern(pattern)
	if err != nil {
		return nil, err
	}
	return ix.search(pattern), nil
}

func (ix *Index) preparePattern(pattern []byte) ([]byte, error) {
	pattern, err := ix.transform.apply(pattern)
	if err != nil {
		return nil, err
	}
	if len(pattern) > len(ix.text) {
		return nil, fmt.Errorf("%w: %d symbols, text has %d", ErrPatternTooLong, len(pattern), len(ix.text))
	}
	return pattern, nil
}

func (ix *Index) search(pattern []byte) []int {
	if len(pattern) == 0 {
		return allPositions(len(ix.text) + 1)
	}

	var order []int
	var l, r int
	if ix.lcpRMQ != nil {
		order = ix.finalLevel().order
		l, r = findBoundaries(pattern, ix.text, order, ix.lcp, ix.lcpRMQ)
	} else {
		order = levelFor(ix.levels, len(pattern)).order
		l, r = ix.bounds(pattern, order)
	}

	matches := make([]int, r-l)
	copy(matches, order[l:r])
	return matches
}

// prefix is the first k symbols of the suffix at p, cut short at the end of
// the text. A cut prefix sorts before any longer string it begins, which is
// exactly where the sentinel puts it.
func (ix *Index) prefix(p, k int) []byte {
	return ix.text[p:min(p+k, len(ix.text))]
}

// bounds returns the half-open slot range [l, r) of order whose suffixes
// start with pattern. The level of order must be at least len(pattern) long,
// so order is also sorted by the first len(pattern) symbols.
func (ix *Index) bounds(pattern []byte, order []int) (int, int) {
	k := len(pattern)
	n := len(order)

	// first slot whose prefix is >= pattern
	l := sort.Search(n, func(i int) bool {
		return bytes.Compare(ix.prefix(order[i], k), pattern) >= 0
	})
	// first slot whose prefix is > pattern
	r := l + sort.Search(n-l, func(i int) bool {
		return bytes.Compare(ix.prefix(order[l+i], k), pattern) > 0
	})
	return l, r
}

func allPositions(n int) []int {
	positions := make([]int, n)
	for i := range positions {
		positions[i] = i
	}
	return positions
}
