package lexer

import (
	"unicode"

	"github.com/xplshn/glc/pkg/config"
	"github.com/xplshn/glc/pkg/token"
	"github.com/xplshn/glc/pkg/util"
)

// Lexer splits source text into top-level tokens. A bracketed group is kept
// whole, whitespace included, so the parser can tokenize its interior again.
type Lexer struct {
	source []rune
	base   int
	cfg    *config.Config

	tokens   []token.Token
	current  []rune
	start    int
	depth    int
	groupPos int
	quotePos int
	inQuote  bool
	isEscape bool
}

// NewLexer creates a lexer over source. base is the rune offset of source[0]
// within the whole file, so that tokens of a nested group keep file positions.
// cfg may be nil.
func NewLexer(source []rune, base int, cfg *config.Config) *Lexer {
	return &Lexer{source: source, base: base, cfg: cfg, start: -1}
}

// Tokenize is a shorthand for tokenizing a whole file.
func Tokenize(source string, cfg *config.Config) ([]token.Token, error) {
	return NewLexer([]rune(source), 0, cfg).Tokenize()
}

func (l *Lexer) commentsEnabled() bool {
	return l.cfg == nil || l.cfg.IsFeatureEnabled(config.FeatComments)
}

// splitGroups reports whether a group at depth 0 is its own token. Without
// it only whitespace delimits, and text glued to a group joins its token.
func (l *Lexer) splitGroups() bool {
	return l.cfg != nil && l.cfg.IsFeatureEnabled(config.FeatSplitGroups)
}

func (l *Lexer) push(i int, r rune) {
	if l.start < 0 {
		l.start = i
	}
	l.current = append(l.current, r)
}

func (l *Lexer) flush(end int) {
	if len(l.current) > 0 {
		l.tokens = append(l.tokens, token.Token{Value: string(l.current), Pos: l.base + l.start, End: l.base + end})
	}
	l.current = l.current[:0]
	l.start = -1
}

func (l *Lexer) at(i int) token.Token {
	return token.Token{Value: string(l.source[i]), Pos: l.base + i, End: l.base + i + 1}
}

func (l *Lexer) Tokenize() ([]token.Token, error) {
	for i := 0; i < len(l.source); i++ {
		r := l.source[i]
		switch {
		case l.isEscape:
			l.push(i, token.Unescape(r))
			l.isEscape = false
		case l.inQuote:
			l.push(i, r)
			if r == '\\' {
				l.isEscape = true
			} else if token.IsQuote(r) {
				l.inQuote = false
			}
		case token.IsQuote(r):
			l.push(i, r)
			l.inQuote, l.quotePos = true, i
		case r == token.Comment && l.commentsEnabled():
			for i+1 < len(l.source) && l.source[i+1] != '\n' {
				i++
			}
		case token.IsOpen(r):
			if l.depth == 0 {
				if l.splitGroups() {
					l.flush(i)
				}
				l.groupPos = i
			}
			l.push(i, r)
			l.depth++
		case token.IsClose(r):
			if l.depth == 0 {
				return nil, util.Errorf(util.ErrSyntax, l.at(i), "unexpected '%c' with no open group", r)
			}
			l.push(i, r)
			l.depth--
			if l.depth == 0 && l.splitGroups() {
				l.flush(i + 1)
			}
		case unicode.IsSpace(r):
			if l.depth > 0 {
				l.push(i, r)
			} else {
				l.flush(i)
			}
		default:
			l.push(i, r)
		}
	}

	// Syntax error check
	if l.isEscape || l.inQuote {
		return nil, util.Errorf(util.ErrIncomplete, l.at(l.quotePos), "unterminated quoted literal")
	}
	if l.depth != 0 {
		return nil, util.Errorf(util.ErrIncomplete, l.at(l.groupPos), "unclosed '%c'", l.source[l.groupPos])
	}
	l.flush(len(l.source))
	return l.tokens, nil
}
