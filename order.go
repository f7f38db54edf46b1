package rankindex

// level is one doubling step: its rank table and the positions in
// ascending order of their length-L substring.
type level struct {
	rankTable
	order []int
}

// suffixOrder turns a rank table into its sorted positions with one
// counting pass over the classes.
func suffixOrder(t rankTable) []int {
	return stableOrder(t.classes, t.count)
}

func extractLevels(tables []rankTable) []level {
	levels := make([]level, len(tables))
	for i, t := range tables {
		n := len(t.classes)
		if i > 0 && t.count == n && tables[i-1].count == n {
			levels[i] = level{rankTable: t, order: levels[i-1].order}
			continue
		}
		levels[i] = level{rankTable: t, order: suffixOrder(t)}
	}
	return levels
}

// levelFor returns the smallest level whose length is at least k.
func levelFor(levels []level, k int) *level {
	for i := range levels {
		if levels[i].length >= k {
			return &levels[i]
		}
	}
	return &levels[len(levels)-1]
}
