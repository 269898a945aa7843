package parser

// Predicate helpers over the AST, consumed by the feasibility gate and the
// exploitability filter.

// HasBackrefs reports whether the pattern contains any backreference.
func HasBackrefs(n Node) bool {
	found := false
	Walk(n, func(c Node) bool {
		if c.Kind() == KindBackref {
			found = true
			return false
		}
		return true
	})
	return found
}

// HasLookaround reports whether the pattern contains look-ahead or
// look-behind assertions.
func HasLookaround(n Node) bool {
	found := false
	Walk(n, func(c Node) bool {
		if c.Kind() == KindLookaround {
			found = true
			return false
		}
		return true
	})
	return found
}

// HasEndAnchor reports whether the pattern contains a right anchor.
// Line-end anchors under multiline count when multilineEnds is set; \Z and
// single-line $ always count.
func HasEndAnchor(n Node, multilineEnds bool) bool {
	found := false
	Walk(n, func(c Node) bool {
		if a, ok := c.(*Anchor); ok {
			switch a.AnchorKind {
			case AnchorEnd, AnchorTextEnd:
				found = true
				return false
			case AnchorLineEnd:
				if multilineEnds {
					found = true
					return false
				}
			}
		}
		return true
	})
	return found
}

// HasStartAnchor reports whether the pattern contains a left anchor.
func HasStartAnchor(n Node) bool {
	found := false
	Walk(n, func(c Node) bool {
		if a, ok := c.(*Anchor); ok {
			switch a.AnchorKind {
			case AnchorStart, AnchorLineStart, AnchorTextStart:
				found = true
				return false
			}
		}
		return true
	})
	return found
}

// CountNodes returns the number of AST nodes, used to enforce the
// pattern-size cap.
func CountNodes(n Node) int {
	count := 0
	Walk(n, func(Node) bool {
		count++
		return true
	})
	return count
}

// CountCaptures returns the number of capturing groups.
func CountCaptures(n Node) int {
	count := 0
	Walk(n, func(c Node) bool {
		if g, ok := c.(*Group); ok && g.Capturing() {
			count++
		}
		return true
	})
	return count
}

// MinLength returns the minimum number of code points a node must
// consume.
func MinLength(n Node) int {
	switch t := n.(type) {
	case *Literal, *CharClass, *Dot:
		return 1
	case *Backref:
		return 0
	case *Concat:
		sum := 0
		for _, c := range t.Nodes {
			sum += MinLength(c)
		}
		return sum
	case *Alt:
		if len(t.Nodes) == 0 {
			return 0
		}
		min := MinLength(t.Nodes[0])
		for _, c := range t.Nodes[1:] {
			if m := MinLength(c); m < min {
				min = m
			}
		}
		return min
	case *Repeat:
		return t.Min * MinLength(t.Node)
	case *Group:
		return MinLength(t.Node)
	}
	return 0
}

// RequiresContinuation reports whether mandatory content follows a
// repetition somewhere in the pattern. A pattern like ^(a+)+@ must match @
// after the quantified group, so backtracking across the group is forced
// even without an end anchor.
func RequiresContinuation(n Node) bool {
	switch t := n.(type) {
	case *Concat:
		for i, c := range t.Nodes {
			if hasTopLevelRepeat(c) {
				rest := 0
				for _, f := range t.Nodes[i+1:] {
					rest += MinLength(f)
				}
				if rest > 0 {
					return true
				}
			}
			if RequiresContinuation(c) {
				return true
			}
		}
	case *Alt:
		for _, c := range t.Nodes {
			if RequiresContinuation(c) {
				return true
			}
		}
	case *Group:
		return RequiresContinuation(t.Node)
	case *Repeat:
		return RequiresContinuation(t.Node)
	}
	return false
}

// hasTopLevelRepeat reports whether the node is a repetition, possibly
// under grouping.
func hasTopLevelRepeat(n Node) bool {
	switch t := n.(type) {
	case *Repeat:
		return true
	case *Group:
		return hasTopLevelRepeat(t.Node)
	}
	return false
}

// NestedQuantifiers reports whether an unbounded (or high-bound)
// repetition contains, at any depth, another repetition that can match more
// than once, the shape behind most
// exponential blow-ups.
func NestedQuantifiers(n Node) bool {
	found := false
	Walk(n, func(c Node) bool {
		outer, ok := c.(*Repeat)
		if !ok || (!outer.Unbounded() && outer.Max < 10) {
			return true
		}
		Walk(outer.Node, func(inner Node) bool {
			if r, ok := inner.(*Repeat); ok && (r.Unbounded() || r.Max >= 2) {
				found = true
				return false
			}
			return true
		})
		return !found
	})
	return found
}
