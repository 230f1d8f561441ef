package ir

// Peephole rewrites recognized Loop bodies into higher-level opcodes. Input
// must already be constant-folded (spec.md §4.3): the structural matches
// below compare against the shapes Fold produces, not raw unit-count nodes.
// Non-loop nodes pass through unchanged. Peephole is idempotent: none of
// its output Loop bodies match any of the four patterns again, and Clear,
// AddOffset, and SearchZero are left alone on a second pass.
func Peephole(stmts []Statement) []Statement {
	out := make([]Statement, 0, len(stmts))
	for _, s := range stmts {
		if s.Kind != KindLoop {
			out = append(out, s)
			continue
		}
		out = append(out, rewriteLoop(s.Body)...)
	}
	return out
}

// rewriteLoop returns the replacement statement(s) for a single Loop's
// body, after first recursing into any nested loops the body contains.
func rewriteLoop(body []Statement) []Statement {
	if clr, ok := matchClear(body); ok {
		return []Statement{clr}
	}
	if addOff, clr, ok := matchCopyMultiply(body); ok {
		return []Statement{addOff, clr}
	}
	if sz, ok := matchSearchZero(body); ok {
		return []Statement{sz}
	}
	return []Statement{Loop(Peephole(body))}
}

// matchClear recognizes [Add(-1)] or [Add(+1)].
func matchClear(body []Statement) (Statement, bool) {
	if len(body) == 1 && body[0].Kind == KindAdd && (body[0].Delta == 1 || body[0].Delta == -1) {
		return Clear(), true
	}
	return Statement{}, false
}

// matchCopyMultiply recognizes the copy/multiply idiom:
//
//	[Add(-1), Move(+n), Add(+k), Move(-n)]
//
// where the retract count equals the advance count.
func matchCopyMultiply(body []Statement) (addOff Statement, clr Statement, ok bool) {
	if len(body) != 4 {
		return Statement{}, Statement{}, false
	}
	dec, fwd, add, back := body[0], body[1], body[2], body[3]
	if dec.Kind != KindAdd || dec.Delta != -1 {
		return Statement{}, Statement{}, false
	}
	if fwd.Kind != KindMoveRight || back.Kind != KindMoveLeft || fwd.Count != back.Count {
		return Statement{}, Statement{}, false
	}
	if add.Kind != KindAdd {
		return Statement{}, Statement{}, false
	}
	return AddOffset(add.Delta, fwd.Count), Clear(), true
}

// matchSearchZero recognizes [Move(+n)] or [Move(-n)].
func matchSearchZero(body []Statement) (Statement, bool) {
	if len(body) != 1 {
		return Statement{}, false
	}
	switch body[0].Kind {
	case KindMoveRight:
		return SearchZero(int64(body[0].Count)), true
	case KindMoveLeft:
		return SearchZero(-int64(body[0].Count)), true
	default:
		return Statement{}, false
	}
}
