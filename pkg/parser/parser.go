package parser

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/xplshn/glc/pkg/ast"
	"github.com/xplshn/glc/pkg/config"
	"github.com/xplshn/glc/pkg/lexer"
	"github.com/xplshn/glc/pkg/token"
	"github.com/xplshn/glc/pkg/util"
)

// Parser turns tokens back into trees. It keeps the whole source so that a
// group token can be tokenized again from its raw interior.
type Parser struct {
	source []rune
	cfg    *config.Config
}

// NewParser creates a parser over the given source. cfg may be nil.
func NewParser(source []rune, cfg *config.Config) *Parser {
	return &Parser{source: source, cfg: cfg}
}

// Parse parses a whole source text into its top-level forms.
func Parse(source string, cfg *config.Config) ([]*ast.Node, error) {
	return NewParser([]rune(source), cfg).Parse()
}

// Parse tokenizes the source and parses every top-level token.
func (p *Parser) Parse() ([]*ast.Node, error) {
	tokens, err := lexer.NewLexer(p.source, 0, p.cfg).Tokenize()
	if err != nil {
		return nil, err
	}
	return p.parseTokens(tokens)
}

func (p *Parser) parseTokens(tokens []token.Token) ([]*ast.Node, error) {
	nodes := make([]*ast.Node, 0, len(tokens))
	for _, tok := range tokens {
		node, err := p.ParseToken(tok)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// ParseToken parses a single token produced by the lexer into one node.
func (p *Parser) ParseToken(tok token.Token) (*ast.Node, error) {
	tok = trim(tok)
	text := tok.Value
	if text == "" {
		return nil, util.Errorf(util.ErrSyntax, tok, "empty token")
	}

	first, last := rune(text[0]), rune(text[len(text)-1])
	switch {
	case first == '(' && last == ')':
		return p.parseList(tok)
	case token.IsOpen(first):
		return nil, util.Errorf(util.ErrSyntax, tok, "malformed list '%s': only '(' ... ')' groups form lists", text)
	}
	return parseAtom(tok), nil
}

func (p *Parser) parseList(tok token.Token) (*ast.Node, error) {
	// The interior is read from the source rather than from tok.Value so that
	// child tokens keep exact file positions.
	lo, hi := tok.Pos+1, tok.End-1
	if lo < 1 || lo > hi || hi >= len(p.source) || p.source[lo-1] != '(' || p.source[hi] != ')' {
		return nil, util.Errorf(util.ErrSyntax, tok, "list token does not match its source span")
	}
	tokens, err := lexer.NewLexer(p.source[lo:hi], lo, p.cfg).Tokenize()
	if err != nil {
		return nil, err
	}
	items, err := p.parseTokens(tokens)
	if err != nil {
		return nil, err
	}
	return ast.NewList(tok, items), nil
}

func parseAtom(tok token.Token) *ast.Node {
	if n, err := strconv.ParseInt(tok.Value, 10, 64); err == nil {
		return ast.NewNumber(tok, n)
	}
	return ast.NewSymbol(tok, tok.Value)
}

// trim strips surrounding whitespace from a token and moves its span to match.
func trim(tok token.Token) token.Token {
	leading := len(tok.Value) - len(strings.TrimLeftFunc(tok.Value, unicode.IsSpace))
	trailing := len(tok.Value) - len(strings.TrimRightFunc(tok.Value, unicode.IsSpace))
	if leading == 0 && trailing == 0 {
		return tok
	}
	value := strings.TrimSpace(tok.Value)
	pos := tok.Pos + len([]rune(tok.Value[:leading]))
	return token.Token{Value: value, Pos: pos, End: pos + len([]rune(value))}
}
