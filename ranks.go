package rankindex

// rankTable holds the classes of every length-L cyclic substring.
// Two positions share a class iff their substrings are equal.
type rankTable struct {
	length  int
	classes []int
	count   int
}

// stableOrder returns the indices of keys sorted by key, equal keys
// keeping index order. Every key must lie in [0, domain).
func stableOrder(keys []int, domain int) []int {
	cnt := make([]int, domain)
	for _, k := range keys {
		cnt[k]++
	}
	for i := 1; i < domain; i++ {
		cnt[i] += cnt[i-1]
	}
	order := make([]int, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		cnt[keys[i]]--
		order[cnt[keys[i]]] = i
	}
	return order
}

// assignClasses numbers the runs of equal elements along order, starting at 0.
func assignClasses(order []int, same func(a, b int) bool) ([]int, int) {
	classes := make([]int, len(order))
	if len(order) == 0 {
		return classes, 0
	}
	class := 0
	classes[order[0]] = class
	for i := 1; i < len(order); i++ {
		if !same(order[i-1], order[i]) {
			class++
		}
		classes[order[i]] = class
	}
	return classes, class + 1
}

// initialRanks classifies single symbols. It also returns the sorted
// permutation it used, which callers only need for verification.
func initialRanks(keys []int, domain int) (rankTable, []int) {
	order := stableOrder(keys, domain)
	classes, count := assignClasses(order, func(a, b int) bool {
		return keys[a] == keys[b]
	})
	return rankTable{length: 1, classes: classes, count: count}, order
}

// doubleRanks derives the length-2L table from the length-L one. Each
// position is keyed by (class[p], class[p+L mod n]); sorting by the second
// component and then stably by the first gives the full pair order
// without comparisons.
func doubleRanks(prev rankTable) (rankTable, []int) {
	n := len(prev.classes)
	first := prev.classes
	second := make([]int, n)
	for p := range second {
		second[p] = first[(p+prev.length)%n]
	}

	bySecond := stableOrder(second, prev.count)
	firstAlong := make([]int, n)
	for i, p := range bySecond {
		firstAlong[i] = first[p]
	}
	byFirst := stableOrder(firstAlong, prev.count)

	order := make([]int, n)
	for i, j := range byFirst {
		order[i] = bySecond[j]
	}

	classes, count := assignClasses(order, func(a, b int) bool {
		return first[a] == first[b] && second[a] == second[b]
	})
	return rankTable{length: 2 * prev.length, classes: classes, count: count}, order
}

// buildRankTables returns the tables for L = 1, 2, 4, ... up to the first
// L >= len(keys).
func buildRankTables(keys []int, domain int) []rankTable {
	n := len(keys)
	if n == 0 {
		return []rankTable{{length: 1, classes: []int{}}}
	}

	table, _ := initialRanks(keys, domain)
	tables := []rankTable{table}
	for table.length < n {
		if table.count == n {
			// Already a total order; doubling again cannot split anything.
			table = rankTable{length: 2 * table.length, classes: table.classes, count: table.count}
		} else {
			table, _ = doubleRanks(table)
		}
		tables = append(tables, table)
	}
	return tables
}
