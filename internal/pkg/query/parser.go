package query

// Parse tokenizes and parses a search string. Empty or blank input yields
// the Everything node. Malformed input never fails; it degrades to the
// closest reading, bare adjacency meaning "and".
func Parse(input string) *Node {
	return ParseTokens(Tokenize(input))
}

// ParseTokens builds the expression tree for an already tokenized query.
func ParseTokens(tokens []Token) *Node {
	p := parser{tokens: tokens}
	if root := p.parse(0, len(tokens)); root != nil {
		return root
	}
	return NewEverything()
}

// parser works over an immutable token slice; every call sees [start, end).
type parser struct {
	tokens []Token
}

type group struct {
	open, close int
}

// parse handles, in order: or, and, leading not, a single group, a single
// token, and finally implicit conjunction of the first unit with the rest.
func (p parser) parse(start, end int) *Node {
	if start >= end {
		return nil
	}

	groups := p.groups(start, end)
	inside := make([]bool, end-start)
	for _, g := range groups {
		for i := g.open; i <= g.close; i++ {
			inside[i-start] = true
		}
	}

	// rightmost operator outside any group, lowest precedence first
	for _, kind := range [...]Kind{Or, And} {
		for i := end - 1; i >= start; i-- {
			if inside[i-start] || p.tokens[i].Kind != kind {
				continue
			}
			left, right := p.parse(start, i), p.parse(i+1, end)
			if kind == Or {
				return NewOr(left, right)
			}
			return NewAnd(left, right)
		}
	}

	if p.tokens[start].Kind == Not {
		return NewNot(p.parse(start+1, end))
	}

	closeAt := -1
	for _, g := range groups {
		if g.open == start {
			closeAt = g.close
			break
		}
	}
	if closeAt == end-1 {
		return p.parse(start+1, end-1)
	}

	if end-start == 1 {
		return p.terminal(p.tokens[start])
	}

	split := start + 1
	if closeAt >= 0 {
		split = closeAt + 1
	}
	return NewAnd(p.parse(start, split), p.parse(split, end))
}

// groups returns every matched parenthesis pair in range. Unmatched opening
// or closing parentheses are left out.
func (p parser) groups(start, end int) []group {
	var open []int
	var found []group

	for i := start; i < end; i++ {
		switch p.tokens[i].Kind {
		case StartGroup:
			open = append(open, i)
		case EndGroup:
			if len(open) == 0 {
				continue
			}
			found = append(found, group{open: open[len(open)-1], close: i})
			open = open[:len(open)-1]
		}
	}

	return found
}

// terminal turns a lone token into a node; stray parentheses become absent.
func (p parser) terminal(tok Token) *Node {
	switch tok.Kind {
	case Everything, Term, List, Tag, Id, Uid:
		return NewTerminal(tok)
	case And:
		return NewAnd(nil, nil)
	case Or:
		return NewOr(nil, nil)
	case Not:
		return NewNot(nil)
	default:
		return nil
	}
}
