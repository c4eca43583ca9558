package query

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Token is one lexical unit of a search string.
type Token struct {
	Kind  Kind
	Text  string
	Num   int64
	Valid bool
}

// typed lookup prefixes, matched case-insensitively
var prefixes = []struct {
	prefix string
	kind   Kind
}{
	{"list:", List},
	{"tag:", Tag},
	{"id:", Id},
	{"uid:", Uid},
}

// Tokenize splits a raw search string into tokens. It never fails.
func Tokenize(input string) []Token {
	var tokens []Token
	var word strings.Builder

	flush := func() {
		if word.Len() == 0 {
			return
		}
		tokens = append(tokens, classify(word.String()))
		word.Reset()
	}

	for pos := 0; pos < len(input); {
		r, size := utf8.DecodeRuneInString(input[pos:])

		switch {
		case r == '"':
			flush()
			rest := input[pos+size:]
			end := strings.IndexByte(rest, '"')
			if end < 0 {
				// unterminated: the literal runs to end of input
				tokens = append(tokens, Token{Kind: Term, Text: rest})
				pos = len(input)
				continue
			}
			tokens = append(tokens, Token{Kind: Term, Text: rest[:end]})
			pos += size + end + 1
			continue
		case r == '(':
			flush()
			tokens = append(tokens, Token{Kind: StartGroup, Text: "("})
		case r == ')':
			flush()
			tokens = append(tokens, Token{Kind: EndGroup, Text: ")"})
		case unicode.IsSpace(r):
			flush()
		default:
			word.WriteString(input[pos : pos+size])
		}
		pos += size
	}
	flush()

	return tokens
}

// classify maps one unquoted fragment to its token.
func classify(word string) Token {
	switch strings.ToLower(word) {
	case "and":
		return Token{Kind: And, Text: word}
	case "or":
		return Token{Kind: Or, Text: word}
	case "not":
		return Token{Kind: Not, Text: word}
	}

	for _, p := range prefixes {
		if len(word) < len(p.prefix) || !strings.EqualFold(word[:len(p.prefix)], p.prefix) {
			continue
		}
		payload := word[len(p.prefix):]
		if p.kind == Uid {
			n, err := strconv.ParseInt(payload, 10, 64)
			return Token{Kind: Uid, Text: payload, Num: n, Valid: err == nil}
		}
		return Token{Kind: p.kind, Text: payload}
	}

	return Token{Kind: Term, Text: word}
}
