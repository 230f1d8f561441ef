package ir

// Fold coalesces maximal runs of identical-kind primitives — Move(+1),
// Move(-1), Add(+1), Add(-1) — into a single counted node, recursing into
// Loop bodies. Input, Output, and already-counted nodes pass through
// unchanged. Fold is idempotent: Fold(Fold(s)) structurally equals Fold(s),
// since a folded sequence has no adjacent same-kind run left to merge.
func Fold(stmts []Statement) []Statement {
	out := make([]Statement, 0, len(stmts))
	i := 0
	for i < len(stmts) {
		s := stmts[i]

		if s.Kind == KindLoop {
			out = append(out, Loop(Fold(s.Body)))
			i++
			continue
		}

		if !foldable(s.Kind) {
			out = append(out, s)
			i++
			continue
		}

		j := i + 1
		for j < len(stmts) && stmts[j].Kind == s.Kind && stmts[j].Count == s.Count && stmts[j].Delta == s.Delta {
			j++
		}
		out = append(out, mergeRun(s, j-i))
		i = j
	}
	return out
}

func foldable(k Kind) bool {
	switch k {
	case KindMoveRight, KindMoveLeft, KindAdd:
		return true
	default:
		return false
	}
}

// mergeRun builds the single counted node standing in for n consecutive
// copies of s: the move count or signed add delta of s, times n. A lone
// node (n == 1) comes back unchanged, which keeps Fold idempotent.
func mergeRun(s Statement, n int) Statement {
	switch s.Kind {
	case KindMoveRight:
		return MoveRight(s.Count * uint64(n))
	case KindMoveLeft:
		return MoveLeft(s.Count * uint64(n))
	case KindAdd:
		return Add(s.Delta * int64(n))
	default:
		panic("ir: mergeRun called on non-foldable kind")
	}
}
