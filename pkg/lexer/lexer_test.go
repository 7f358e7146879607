package lexer

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/glc/pkg/config"
	"github.com/xplshn/glc/pkg/token"
	"github.com/xplshn/glc/pkg/util"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []token.Token
	}{
		{"empty", "", nil},
		{"atoms", "foo 42\t-7", []token.Token{
			{Value: "foo", Pos: 0, End: 3},
			{Value: "42", Pos: 4, End: 6},
			{Value: "-7", Pos: 7, End: 9},
		}},
		{"group kept whole", "(+ 1 2) foo", []token.Token{
			{Value: "(+ 1 2)", Pos: 0, End: 7},
			{Value: "foo", Pos: 8, End: 11},
		}},
		{"nested groups", "(a (b [c {d}]))", []token.Token{
			{Value: "(a (b [c {d}]))", Pos: 0, End: 15},
		}},
		{"only whitespace delimits", "a(b)c (var x(+ 1 2))", []token.Token{
			{Value: "a(b)c", Pos: 0, End: 5},
			{Value: "(var x(+ 1 2))", Pos: 6, End: 20},
		}},
		{"adjacent groups", "(a)(b c)", []token.Token{
			{Value: "(a)(b c)", Pos: 0, End: 8},
		}},
		{"quoted whitespace", "'a b' x", []token.Token{
			{Value: "'a b'", Pos: 0, End: 5},
			{Value: "x", Pos: 6, End: 7},
		}},
		{"quotes are interchangeable", "\"a`", []token.Token{
			{Value: "\"a`", Pos: 0, End: 3},
		}},
		{"brackets inside quotes", "\"(\"", []token.Token{
			{Value: "\"(\"", Pos: 0, End: 3},
		}},
		{"escape keeps backslash", `'a\nb'`, []token.Token{
			{Value: "'a\\\nb'", Pos: 0, End: 6},
		}},
		{"escaped quote", `'a\'b'`, []token.Token{
			{Value: `'a\'b'`, Pos: 0, End: 6},
		}},
		{"comment", "1 ; two\n3", []token.Token{
			{Value: "1", Pos: 0, End: 1},
			{Value: "3", Pos: 8, End: 9},
		}},
		{"comment inside group", "(1 ; c\n 2)", []token.Token{
			{Value: "(1 \n 2)", Pos: 0, End: 10},
		}},
		{"unicode offsets are runes", "λ x", []token.Token{
			{Value: "λ", Pos: 0, End: 1},
			{Value: "x", Pos: 2, End: 3},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Tokenize(tt.src, nil)
			if err != nil {
				t.Fatalf("Tokenize(%q) error: %v", tt.src, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Tokenize(%q) mismatch (-want +got):\n%s", tt.src, diff)
			}
		})
	}
}

func TestTokenizeCommentsDisabled(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatComments, false)

	got, err := Tokenize("1 ;x", cfg)
	if err != nil {
		t.Fatal(err)
	}
	want := []token.Token{{Value: "1", Pos: 0, End: 1}, {Value: ";x", Pos: 2, End: 4}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestTokenizeSplitGroups(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatSplitGroups, true)

	got, err := Tokenize("a(b)c (x)(y z)", cfg)
	if err != nil {
		t.Fatal(err)
	}
	want := []token.Token{
		{Value: "a", Pos: 0, End: 1},
		{Value: "(b)", Pos: 1, End: 4},
		{Value: "c", Pos: 4, End: 5},
		{Value: "(x)", Pos: 6, End: 9},
		{Value: "(y z)", Pos: 9, End: 14},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestTokenizeBase(t *testing.T) {
	got, err := NewLexer([]rune("a (b)"), 10, nil).Tokenize()
	if err != nil {
		t.Fatal(err)
	}
	want := []token.Token{{Value: "a", Pos: 10, End: 11}, {Value: "(b)", Pos: 12, End: 15}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestTokenizeErrors(t *testing.T) {
	tests := []struct {
		name       string
		src        string
		incomplete bool
		pos        int
	}{
		{"unmatched open", "(+ 1 2", true, 0},
		{"unmatched inner open", "x (a (b)", true, 2},
		{"unterminated quote", "'abc", true, 0},
		{"trailing escape", "'abc\\", true, 0},
		{"close at depth zero", "1 )", false, 2},
		{"extra close", "(a))", false, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tokenize(tt.src, nil)
			if !errors.Is(err, util.ErrSyntax) {
				t.Fatalf("Tokenize(%q) = %v, want a syntax error", tt.src, err)
			}
			if got := errors.Is(err, util.ErrIncomplete); got != tt.incomplete {
				t.Errorf("errors.Is(err, ErrIncomplete) = %v, want %v", got, tt.incomplete)
			}
			var cerr *util.Error
			if !errors.As(err, &cerr) {
				t.Fatalf("error %v is not a *util.Error", err)
			}
			if cerr.Tok.Pos != tt.pos {
				t.Errorf("error position = %d, want %d", cerr.Tok.Pos, tt.pos)
			}
		})
	}
}

func TestTokenizeBalancedRoundTrip(t *testing.T) {
	srcs := []string{
		"(var x (* 2 3)) (+ x x)",
		"((lambda (a b) (+ a b)) 1 2)",
		"[a {b (c)}] 'q q' d",
	}
	for _, src := range srcs {
		tokens, err := Tokenize(src, nil)
		if err != nil {
			t.Fatalf("Tokenize(%q) error: %v", src, err)
		}
		runes := []rune(src)
		for _, tok := range tokens {
			if got := string(runes[tok.Pos:tok.End]); got != tok.Value {
				t.Errorf("token %q does not match its source span %q", tok.Value, got)
			}
		}
	}
}
