package query

import (
	"strconv"
	"strings"
)

// Kind identifies both token kinds and expression node kinds.
type Kind int

const (
	Everything Kind = iota
	Term
	And
	Or
	Not
	List
	Tag
	Id
	Uid
	StartGroup
	EndGroup
)

var kindNames = [...]string{
	Everything: "Everything",
	Term:       "Term",
	And:        "And",
	Or:         "Or",
	Not:        "Not",
	List:       "List",
	Tag:        "Tag",
	Id:         "Id",
	Uid:        "Uid",
	StartGroup: "StartGroup",
	EndGroup:   "EndGroup",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// Node is one expression tree node. The kind fixes the arity:
// terminals have no children, Not uses Left only, And/Or use Left and Right.
// Any child may be nil (absent).
type Node struct {
	Kind  Kind
	Text  string // payload for Term, List, Tag, Id
	Num   int64  // payload for Uid
	Valid bool   // false for a Uid whose literal did not parse
	Left  *Node
	Right *Node
}

// NewEverything returns the node that matches every record.
func NewEverything() *Node {
	return &Node{Kind: Everything}
}

// NewTerminal builds a childless node from a payload-carrying token.
func NewTerminal(tok Token) *Node {
	return &Node{Kind: tok.Kind, Text: tok.Text, Num: tok.Num, Valid: tok.Valid}
}

// NewNot wraps child, which may be nil.
func NewNot(child *Node) *Node {
	return &Node{Kind: Not, Left: child}
}

// NewAnd joins left and right, either of which may be nil.
func NewAnd(left, right *Node) *Node {
	return &Node{Kind: And, Left: left, Right: right}
}

// NewOr joins left and right, either of which may be nil.
func NewOr(left, right *Node) *Node {
	return &Node{Kind: Or, Left: left, Right: right}
}

// String renders the tree in a fully parenthesized form, "_" marking an absent child.
func (n *Node) String() string {
	if n == nil {
		return "_"
	}

	switch n.Kind {
	case Everything:
		return "*"
	case Term:
		return quoteTerm(n.Text)
	case List:
		return "list:" + n.Text
	case Tag:
		return "tag:" + n.Text
	case Id:
		return "id:" + n.Text
	case Uid:
		if !n.Valid {
			return "uid:?"
		}
		return "uid:" + strconv.FormatInt(n.Num, 10)
	case Not:
		return "not " + n.Left.String()
	case And:
		return "(" + n.Left.String() + " and " + n.Right.String() + ")"
	case Or:
		return "(" + n.Left.String() + " or " + n.Right.String() + ")"
	default:
		return n.Kind.String()
	}
}

// quoteTerm adds quotes when the bare text would tokenize differently.
func quoteTerm(text string) string {
	if text == "" || strings.ContainsAny(text, " \t\r\n()\"") {
		return `"` + text + `"`
	}
	if tok := classify(text); tok.Kind != Term {
		return `"` + text + `"`
	}
	return text
}
