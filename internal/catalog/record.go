package catalog

import (
	"strings"
)

// FieldKind describes the JSON shape of a record field.
type FieldKind uint8

const (
	FieldOther FieldKind = iota
	FieldString
	FieldArray
	FieldNumber
)

// Field is one key of a game object, keeping its raw JSON encoding.
type Field struct {
	Key    string
	Kind   FieldKind
	Text   string   // FieldString value
	Values []string // string elements of a FieldArray
	Raw    []byte
}

// Record is a single game entry (row-oriented view of the catalog document).
type Record struct {
	UID          int64
	Name         string
	Anchor       string
	AliasAnchors []string
	Tags         []string
	Fields       []Field

	hasUID bool
	raw    []byte
}

func (r *Record) GetUID() int64     { return r.UID }
func (r *Record) GetAnchor() string { return r.Anchor }

// HasTag reports exact (case-sensitive) tag membership.
func (r *Record) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// EachText visits every string and string array element, in field order.
func (r *Record) EachText(fn func(key, value string) bool) {
	for _, f := range r.Fields {
		switch f.Kind {
		case FieldString:
			if !fn(f.Key, f.Text) {
				return
			}
		case FieldArray:
			for _, v := range f.Values {
				if !fn(f.Key, v) {
					return
				}
			}
		}
	}
}

// Field returns the field stored under key.
func (r *Record) Field(key string) (Field, bool) {
	for _, f := range r.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// HasUID reports whether the source object carried its own uid.
func (r *Record) HasUID() bool { return r.hasUID }

// JSON returns the record exactly as it appeared in the source document.
func (r *Record) JSON() []byte {
	out := make([]byte, len(r.raw))
	copy(out, r.raw)
	return out
}

// AnchorName normalizes a display name: every character outside
// [A-Za-z0-9] is dropped and the rest lower-cased.
func AnchorName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return -1
		}
	}, name)
}
