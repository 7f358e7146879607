package util

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/glc/pkg/config"
	"github.com/xplshn/glc/pkg/token"
)

func TestPosition(t *testing.T) {
	content := []rune("ab\ncd\n\nλx")
	tests := []struct{ pos, line, col int }{
		{0, 1, 1},
		{1, 1, 2},
		{3, 2, 1},
		{4, 2, 2},
		{6, 3, 1},
		{8, 4, 2},
	}
	for _, tt := range tests {
		line, col := Position(content, tt.pos)
		if line != tt.line || col != tt.col {
			t.Errorf("Position(%d) = %d:%d, want %d:%d", tt.pos, line, col, tt.line, tt.col)
		}
	}
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		err     error
		parents []error
	}{
		{ErrIncomplete, []error{ErrSyntax}},
		{ErrLimit, []error{ErrStructure}},
		{ErrCapture, []error{ErrUndeclared}},
	}
	for _, tt := range tests {
		wrapped := fmt.Errorf("compiling: %w", Errorf(tt.err, token.Token{}, "boom"))
		for _, parent := range append(tt.parents, tt.err) {
			if !errors.Is(wrapped, parent) {
				t.Errorf("%v is not a %v", tt.err, parent)
			}
		}
	}
	if errors.Is(ErrSyntax, ErrIncomplete) {
		t.Error("ErrSyntax must not match its child ErrIncomplete")
	}
	if errors.Is(ErrStructure, ErrUndeclared) {
		t.Error("unrelated kinds match")
	}
}

func TestReporterError(t *testing.T) {
	file := SourceFile{Name: "t.lisp", Content: []rune("1\n(foo bar)\n")}
	var out bytes.Buffer
	r := NewReporter(file, &out, config.NewConfig())

	r.Error(Errorf(ErrUndeclared, token.Token{Value: "bar", Pos: 7, End: 10}, "'bar' is not declared"))

	want := "t.lisp:2:6: error: undeclared name: 'bar' is not declared\n" +
		"  (foo bar)\n" +
		"       ^~~\n"
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Errorf("Error output mismatch (-want +got):\n%s", diff)
	}
}

func TestReporterPlainError(t *testing.T) {
	var out bytes.Buffer
	NewReporter(SourceFile{}, &out, nil).Error(errors.New("boom"))
	if diff := cmp.Diff("glc: error: boom\n", out.String()); diff != "" {
		t.Errorf("plain error mismatch (-want +got):\n%s", diff)
	}
}

func TestReporterWarn(t *testing.T) {
	file := SourceFile{Name: "w.lisp", Content: []rune("(var x 1) (var x 2)")}
	cfg := config.NewConfig()
	var out bytes.Buffer
	r := NewReporter(file, &out, cfg)

	d := Diagnostic{Warning: config.WarnRedeclare, Tok: token.Token{Value: "x", Pos: 15, End: 16}, Msg: "'x' is already declared"}
	r.Warn(d)
	want := "w.lisp:1:16: warning: 'x' is already declared [-Wredeclare]\n" +
		"  (var x 1) (var x 2)\n" +
		"                 ^\n"
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Errorf("Warn output mismatch (-want +got):\n%s", diff)
	}

	out.Reset()
	cfg.SetWarning(config.WarnRedeclare, false)
	r.Warn(d)
	if out.Len() != 0 {
		t.Errorf("disabled warning was printed: %q", out.String())
	}
}
