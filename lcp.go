package rankindex

import (
	"bytes"
	"sort"

	"github.com/viniciusth/rmq"
)

// Kasai's algorithm for building the LCP array in O(n) time.
// order must be the full suffix order of text with its sentinel, so it has
// one more slot than text has symbols. lcp[i] is the common prefix length of
// the suffixes in slots i and i+1.
func BuildLCPArray(order []int, text []byte) []int {
	n := len(order)
	if n == 0 {
		return nil
	}
	rank := make([]int, n)
	for i, p := range order {
		rank[p] = i
	}

	lcp := make([]int, n-1)
	h := 0
	for p := 0; p < n; p++ {
		if rank[p]+1 == n {
			h = 0
			continue
		}
		q := order[rank[p]+1]
		for p+h < len(text) && q+h < len(text) && text[p+h] == text[q+h] {
			h++
		}
		lcp[rank[p]] = h
		if h > 0 {
			h--
		}
	}
	return lcp
}

// findBoundaries returns the slot range [l, r) of the full suffix order whose
// suffixes start with pattern. Symbols already matched against one slot are
// not compared again for a slot sharing at least as long a prefix with it.
func findBoundaries(pattern, text []byte, order, lcp []int, lcpRMQ *rmq.RMQHybridNaive[int]) (int, int) {
	n := len(order)
	bestIdx, best := -1, 0

	// expand continues matching pattern against slot i from best and reports
	// whether pattern <= suffix.
	expand := func(i int) bool {
		p := order[i]
		for best < len(pattern) && p+best < len(text) && pattern[best] == text[p+best] {
			best++
		}
		if best == len(pattern) {
			return true
		}
		if p+best == len(text) {
			return false
		}
		return pattern[best] < text[p+best]
	}

	l := sort.Search(n, func(i int) bool {
		if bestIdx == -1 || i == bestIdx {
			bestIdx = i
			return expand(i)
		}
		lcpLen := lcp[lcpRMQ.Query(min(bestIdx, i), max(bestIdx, i)-1)]
		if lcpLen < best {
			// the suffix at i leaves the pattern before bestIdx does, the
			// side it is on decides
			return i > bestIdx
		}
		bestIdx = i
		return expand(i)
	})

	if l == n || !bytes.HasPrefix(text[order[l]:], pattern) {
		return l, l
	}

	// slots after l keep matching while their LCP with l stays >= |pattern|
	r := sort.Search(n-l-1, func(i int) bool {
		return lcp[lcpRMQ.Query(l, l+i)] < len(pattern)
	})
	return l, l + 1 + r
}
