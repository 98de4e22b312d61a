package docxstream

const (
	mergeTypeRestart  = "restart"
	mergeTypeContinue = "continue"
)

// mergeDirective is the vertical merge marker a generated cell receives.
type mergeDirective int

const (
	mergeNone mergeDirective = iota
	mergeRestart
	mergeContinue
)

func (d mergeDirective) String() string {
	switch d {
	case mergeRestart:
		return mergeTypeRestart
	case mergeContinue:
		return mergeTypeContinue
	default:
		return "none"
	}
}

// mergeTracker decides, column by column, whether a generated cell starts,
// continues or stays out of a vertical merge. A maximal run of equal
// non-empty values collapses into one restart followed by continues.
type mergeTracker struct {
	merging []bool
	started bool
}

// directives computes the markers for the current row. prev is nil for the
// first row and next is nil for the last one. The number of tracked columns
// is fixed by the first row; extra cells in later rows never merge.
func (t *mergeTracker) directives(prev, cur, next []string) []mergeDirective {
	if !t.started {
		t.merging = make([]bool, len(cur))
		t.started = true
	}

	out := make([]mergeDirective, len(cur))
	for c, val := range cur {
		if c >= len(t.merging) {
			break
		}

		switch {
		case t.merging[c] && c < len(prev) && prev[c] == val:
			out[c] = mergeContinue
		case c < len(next) && next[c] == val && val != "":
			out[c] = mergeRestart
			t.merging[c] = true
		default:
			t.merging[c] = false
		}
	}
	return out
}
