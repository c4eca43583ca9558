// Package changelog describes the differences between two catalog editions.
package changelog

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/valyala/fastjson"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/livingplaybook/playbook/internal/catalog"
)

// Generate renders the changelog from old to next. Games are keyed by
// display name; when a name repeats the last game wins.
func Generate(old, next *catalog.Catalog) string {
	oldGames := byName(old)
	newGames := byName(next)

	all := make(map[string]struct{}, len(oldGames)+len(newGames))
	for name := range oldGames {
		all[name] = struct{}{}
	}
	for name := range newGames {
		all[name] = struct{}{}
	}
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	var added, removed []string
	for _, name := range names {
		_, inOld := oldGames[name]
		_, inNew := newGames[name]
		switch {
		case inOld && !inNew:
			removed = append(removed, name)
		case inNew && !inOld:
			added = append(added, name)
		}
	}

	lines := []string{fmt.Sprintf("Version %s -> %s", old.Version, next.Version)}
	if len(added) > 0 {
		lines = append(lines, "**Games Added**")
		for _, name := range added {
			lines = append(lines, "- "+name)
		}
	}
	if len(removed) > 0 {
		lines = append(lines, "\n**Games Removed**")
		for _, name := range removed {
			lines = append(lines, "- "+name)
		}
	}
	lines = append(lines, "\n**Games Updated**")

	for _, name := range names {
		o, inOld := oldGames[name]
		n, inNew := newGames[name]
		if !inOld || !inNew {
			continue
		}
		if changes := Compare(o, n); len(changes) > 0 {
			lines = append(lines, "- "+name)
			for _, change := range changes {
				lines = append(lines, "  "+change)
			}
		}
	}

	return strings.Join(lines, "\n")
}

// Compare lists per-field changes between two versions of one game:
// added and updated fields in next's order, then removed fields in old's order.
func Compare(old, next *catalog.Record) []string {
	var changes []string
	for _, f := range next.Fields {
		prev, ok := old.Field(f.Key)
		switch {
		case !ok:
			changes = append(changes, fmt.Sprintf("- %s Added", capitalize(f.Key)))
		case !sameJSON(prev.Raw, f.Raw):
			changes = append(changes, fmt.Sprintf("- %s Updated", capitalize(f.Key)))
		}
	}
	for _, f := range old.Fields {
		if _, ok := next.Field(f.Key); !ok {
			changes = append(changes, fmt.Sprintf("- %s Removed", capitalize(f.Key)))
		}
	}
	return changes
}

func byName(c *catalog.Catalog) map[string]*catalog.Record {
	games := make(map[string]*catalog.Record, c.Len())
	for _, rec := range c.Records() {
		games[rec.Name] = rec
	}
	return games
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	_, size := utf8.DecodeRuneInString(s)
	return cases.Upper(language.Und).String(s[:size]) + cases.Lower(language.Und).String(s[size:])
}

func sameJSON(a, b []byte) bool {
	var pa, pb fastjson.Parser
	va, errA := pa.ParseBytes(a)
	vb, errB := pb.ParseBytes(b)
	if errA != nil || errB != nil {
		return string(a) == string(b)
	}
	return equal(va, vb)
}

// equal compares JSON values structurally; object key order is ignored.
func equal(a, b *fastjson.Value) bool {
	if a.Type() != b.Type() {
		return false
	}
	switch a.Type() {
	case fastjson.TypeObject:
		oa, _ := a.Object()
		ob, _ := b.Object()
		if oa.Len() != ob.Len() {
			return false
		}
		same := true
		oa.Visit(func(key []byte, v *fastjson.Value) {
			if !same {
				return
			}
			other := ob.Get(string(key))
			same = other != nil && equal(v, other)
		})
		return same
	case fastjson.TypeArray:
		xa, _ := a.Array()
		xb, _ := b.Array()
		if len(xa) != len(xb) {
			return false
		}
		for i := range xa {
			if !equal(xa[i], xb[i]) {
				return false
			}
		}
		return true
	case fastjson.TypeString:
		return string(a.GetStringBytes()) == string(b.GetStringBytes())
	case fastjson.TypeNumber:
		return a.GetFloat64() == b.GetFloat64()
	default:
		return true
	}
}
