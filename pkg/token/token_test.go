package token

import "testing"

func TestClasses(t *testing.T) {
	for _, r := range "([{" {
		if !IsOpen(r) || IsClose(r) {
			t.Errorf("%q misclassified", r)
		}
	}
	for _, r := range ")]}" {
		if !IsClose(r) || IsOpen(r) {
			t.Errorf("%q misclassified", r)
		}
	}
	for _, r := range "\"'`" {
		if !IsQuote(r) {
			t.Errorf("%q is a quote", r)
		}
	}
	if IsQuote('a') || IsOpen(';') {
		t.Error("ordinary runes classified as syntax")
	}
}

func TestUnescape(t *testing.T) {
	for in, want := range map[rune]rune{'n': '\n', 't': '\t', 'r': '\r', '"': '"', '\\': '\\', 'x': 'x'} {
		if got := Unescape(in); got != want {
			t.Errorf("Unescape(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLen(t *testing.T) {
	if got := (Token{Value: "λx", Pos: 3, End: 5}).Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}
