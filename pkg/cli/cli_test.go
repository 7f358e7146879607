package cli

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse(t *testing.T) {
	var (
		out    string
		frames int
		run    bool
		target string
		back   string
	)
	fs := NewFlagSet("glc")
	fs.String(&out, "output", "o", "-", "file", "")
	fs.Int(&frames, "frames", "", 1024, "n", "")
	fs.Bool(&run, "run", "r", "")
	fs.String(&target, "target", "t", "", "os", "")
	fs.String(&back, "backend", "b", "nasm", "backend", "")

	args := []string{"-o", "a.asm", "--frames=16", "-r", "-tlinux", "--backend", "qbe", "in.lisp", "--", "-odd"}
	if err := fs.Parse(args); err != nil {
		t.Fatal(err)
	}

	if out != "a.asm" || frames != 16 || !run {
		t.Errorf("got output=%q frames=%d run=%v", out, frames, run)
	}
	if target != "linux" || back != "qbe" {
		t.Errorf("got target=%q backend=%q, want linux and qbe", target, back)
	}
	if diff := cmp.Diff([]string{"in.lisp", "-odd"}, fs.Args()); diff != "" {
		t.Errorf("positional args mismatch (-want +got):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	var frames int
	var shadow bool
	fs := NewFlagSet("glc")
	fs.Int(&frames, "frames", "", 1024, "n", "")
	fs.AddGroup(&Group{Prefix: "W", Kind: "warning", Title: "Warnings", Toggles: []Toggle{{Name: "shadow", On: &shadow}}})

	for _, args := range [][]string{{"--frames=many"}, {"--frames"}, {"--nope"}, {"-z"}, {"-Wbogus"}, {"-Wno-"}} {
		if err := fs.Parse(args); err == nil {
			t.Errorf("Parse(%q) succeeded", args)
		}
	}
}

func TestToggles(t *testing.T) {
	shadow, redeclare, comments := false, true, true
	fs := NewFlagSet("glc")
	fs.AddGroup(&Group{Prefix: "W", Kind: "warning", Toggles: []Toggle{
		{Name: "shadow", On: &shadow},
		{Name: "redeclare", On: &redeclare},
	}})
	fs.AddGroup(&Group{Prefix: "F", Kind: "feature", Toggles: []Toggle{{Name: "comments", On: &comments}}})

	if err := fs.Parse([]string{"-Wshadow", "-Wno-redeclare", "-Fno-comments", "-Fcomments", "x.lisp"}); err != nil {
		t.Fatal(err)
	}
	if !shadow || redeclare || !comments {
		t.Errorf("got shadow=%v redeclare=%v comments=%v, want true false true", shadow, redeclare, comments)
	}
	if diff := cmp.Diff([]string{"x.lisp"}, fs.Args()); diff != "" {
		t.Errorf("positional args mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteHelp(t *testing.T) {
	var (
		out    string
		frames int
		run    bool
	)
	on, off := true, false
	app := NewApp("glc")
	app.Synopsis = "[options] <input.lisp>"
	app.Description = "A compiler for a tiny Lisp of integers, variables and lambdas."
	app.Repository = "https://github.com/xplshn/glc"
	fs := app.FlagSet
	fs.String(&out, "output", "o", "-", "file", "Place the output into <file>.")
	fs.Int(&frames, "frames", "", 1024, "n", "Number of nested call frames the scratch region holds.").FromEnv("GLC_FRAMES")
	fs.Bool(&run, "run", "r", "Interpret the program.")
	fs.AddGroup(&Group{Prefix: "W", Kind: "warning", Title: "Warnings", Toggles: []Toggle{
		{Name: "redeclare", Usage: "Warn on redeclaration.", On: &on},
		{Name: "shadow", Usage: "Warn on shadowing.", On: &off},
	}})

	var sb strings.Builder
	app.WriteHelp(&sb, 60)

	want := `Usage: glc [options] <input.lisp>

A compiler for a tiny Lisp of integers, variables and
lambdas.

Options:
      --frames <n>     Number of nested call frames the
                       scratch region holds. [default: 1024,
                       env: GLC_FRAMES]
  -o, --output <file>  Place the output into <file>.
                       [default: -]
  -r, --run            Interpret the program.

Warnings (-W<warning>, -Wno-<warning>):
  redeclare [on]  Warn on redeclaration.
  shadow [off]    Warn on shadowing.

Source: https://github.com/xplshn/glc
`
	if diff := cmp.Diff(want, sb.String()); diff != "" {
		t.Errorf("help page mismatch (-want +got):\n%s", diff)
	}
}

func TestWrap(t *testing.T) {
	tests := []struct {
		text  string
		width int
		want  []string
	}{
		{"aaaa bbbb cccc dddd eeee", 20, []string{"aaaa bbbb cccc dddd", "eeee"}},
		{"short", 80, []string{"short"}},
		{"", 80, []string{""}},
		{"a-very-long-word-that-does-not-fit-anywhere x", 20, []string{"a-very-long-word-that-does-not-fit-anywhere", "x"}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, wrap(tt.text, tt.width)); diff != "" {
			t.Errorf("wrap(%q, %d) mismatch (-want +got):\n%s", tt.text, tt.width, diff)
		}
	}
}
