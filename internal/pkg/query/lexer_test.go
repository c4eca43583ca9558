package query

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		input    string
		expected []Token
	}{
		{"", nil},
		{"   \t ", nil},
		{"a  b", []Token{{Kind: Term, Text: "a"}, {Kind: Term, Text: "b"}}},
		{"(a)", []Token{{Kind: StartGroup, Text: "("}, {Kind: Term, Text: "a"}, {Kind: EndGroup, Text: ")"}}},
		{"foo(bar) baz", []Token{
			{Kind: Term, Text: "foo"},
			{Kind: StartGroup, Text: "("},
			{Kind: Term, Text: "bar"},
			{Kind: EndGroup, Text: ")"},
			{Kind: Term, Text: "baz"},
		}},
		{"AND Or nOT", []Token{{Kind: And, Text: "AND"}, {Kind: Or, Text: "Or"}, {Kind: Not, Text: "nOT"}}},
		{`"not really"`, []Token{{Kind: Term, Text: "not really"}}},
		{`x"a  (b)"y`, []Token{{Kind: Term, Text: "x"}, {Kind: Term, Text: "a  (b)"}, {Kind: Term, Text: "y"}}},
		{`"open ended`, []Token{{Kind: Term, Text: "open ended"}}},
		{`"" a`, []Token{{Kind: Term, Text: ""}, {Kind: Term, Text: "a"}}},
		{"café olé", []Token{{Kind: Term, Text: "café"}, {Kind: Term, Text: "olé"}}},
		{"list:Favorites tag:Improv id:foo", []Token{
			{Kind: List, Text: "Favorites"},
			{Kind: Tag, Text: "Improv"},
			{Kind: Id, Text: "foo"},
		}},
		{"TAG:Warmup", []Token{{Kind: Tag, Text: "Warmup"}}},
		{"uid:7 uid:abc", []Token{
			{Kind: Uid, Text: "7", Num: 7, Valid: true},
			{Kind: Uid, Text: "abc"},
		}},
		{`"tag:Improv"`, []Token{{Kind: Term, Text: "tag:Improv"}}},
		{"tag:", []Token{{Kind: Tag, Text: ""}}},
		{"android", []Token{{Kind: Term, Text: "android"}}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Tokenize(tt.input)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Tokenize(%q) = %+v, want %+v", tt.input, got, tt.expected)
			}
		})
	}
}
