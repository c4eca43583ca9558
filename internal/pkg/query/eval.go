package query

import "strings"

// Record is the view of a catalog entry the evaluator needs.
// This decouples query from the catalog package.
type Record interface {
	GetUID() int64
	GetAnchor() string
	HasTag(tag string) bool
	// EachText calls fn for every scalar string and every string array
	// element, keyed by field name, until fn returns false.
	EachText(fn func(key, value string) bool)
}

// ListResolver reports the record ids belonging to a named list.
// Unknown or unavailable lists resolve to nothing.
type ListResolver interface {
	Resolve(name string) []int64
}

// fields never consulted by bare terms
var skipFields = map[string]bool{
	"related": true,
	"uid":     true,
}

// Match evaluates node against rec. A nil lists resolver knows no lists.
func Match(node *Node, rec Record, lists ListResolver) bool {
	if node == nil {
		return true
	}

	switch node.Kind {
	case Everything:
		return true
	case Term:
		return matchTerm(node.Text, rec)
	case List:
		return matchList(node.Text, rec, lists)
	case Tag:
		return node.Text != "" && rec.HasTag(node.Text)
	case Id:
		return node.Text != "" && rec.GetAnchor() == node.Text
	case Uid:
		return node.Valid && rec.GetUID() == node.Num
	case And:
		return Match(node.Left, rec, lists) && Match(node.Right, rec, lists)
	case Or:
		return matchOptional(node.Left, rec, lists) || matchOptional(node.Right, rec, lists)
	case Not:
		return !Match(node.Left, rec, lists)
	default:
		return false
	}
}

// matchOptional treats an absent operand of "or" as false.
func matchOptional(node *Node, rec Record, lists ListResolver) bool {
	return node != nil && Match(node, rec, lists)
}

// matchTerm is a case-insensitive substring search over searchable fields.
func matchTerm(term string, rec Record) bool {
	if term == "" {
		return true
	}

	needle := strings.ToLower(term)
	found := false
	rec.EachText(func(key, value string) bool {
		if skipFields[key] {
			return true
		}
		if strings.Contains(strings.ToLower(value), needle) {
			found = true
			return false
		}
		return true
	})
	return found
}

func matchList(name string, rec Record, lists ListResolver) bool {
	if name == "" || lists == nil {
		return false
	}

	uid := rec.GetUID()
	for _, id := range lists.Resolve(name) {
		if id == uid {
			return true
		}
	}
	return false
}
