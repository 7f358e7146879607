// Package token defines the tokens produced by the lexer and the character
// classes that drive tokenization.
package token

// Token is one top-level token of an S-expression source: either a whole
// bracketed group (nested groups included) or a single atom.
type Token struct {
	Value string // token text, escapes already translated
	Pos   int    // rune offset of the first rune in the source
	End   int    // rune offset one past the last rune
}

// Len is the number of source runes the token spans.
func (t Token) Len() int { return t.End - t.Pos }

func IsOpen(r rune) bool  { return r == '(' || r == '[' || r == '{' }
func IsClose(r rune) bool { return r == ')' || r == ']' || r == '}' }

// IsQuote reports whether r opens or closes a quoted span. The three quote
// characters are interchangeable.
func IsQuote(r rune) bool { return r == '"' || r == '\'' || r == '`' }

const Comment = ';'

// Unescape translates the rune following a backslash inside a quoted span.
func Unescape(r rune) rune {
	switch r {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	default:
		return r
	}
}
