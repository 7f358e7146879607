package util

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xplshn/glc/pkg/config"
	"github.com/xplshn/glc/pkg/token"
	"golang.org/x/term"
)

type kind struct {
	msg    string
	parent error
}

func (k *kind) Error() string { return k.msg }
func (k *kind) Unwrap() error { return k.parent }

// Error kinds. Match them with errors.Is; ErrIncomplete is also an ErrSyntax,
// ErrLimit an ErrStructure and ErrCapture an ErrUndeclared.
var (
	ErrSyntax     error = &kind{msg: "syntax error"}
	ErrIncomplete error = &kind{msg: "unexpected end of input", parent: ErrSyntax}
	ErrStructure  error = &kind{msg: "invalid form"}
	ErrLimit      error = &kind{msg: "limit exceeded", parent: ErrStructure}
	ErrUndeclared error = &kind{msg: "undeclared name"}
	ErrCapture    error = &kind{msg: "captured local", parent: ErrUndeclared}
)

// Error is a compile error anchored at the token that caused it.
type Error struct {
	Kind error
	Tok  token.Token
	Msg  string
}

func (e *Error) Error() string { return e.Msg }
func (e *Error) Unwrap() error { return e.Kind }

func Errorf(k error, tok token.Token, format string, args ...interface{}) error {
	return &Error{Kind: k, Tok: tok, Msg: fmt.Sprintf(format, args...)}
}

// Diagnostic is a warning collected during compilation.
type Diagnostic struct {
	Warning config.Warning
	Tok     token.Token
	Msg     string
}

// SourceFile tracks the name and content of the file being compiled.
type SourceFile struct {
	Name    string
	Content []rune
}

// Reporter renders errors and warnings against a source file.
type Reporter struct {
	file  SourceFile
	out   io.Writer
	cfg   *config.Config
	color bool
}

func NewReporter(file SourceFile, out io.Writer, cfg *config.Config) *Reporter {
	color := false
	if f, ok := out.(*os.File); ok {
		color = term.IsTerminal(int(f.Fd()))
	}
	return &Reporter{file: file, out: out, cfg: cfg, color: color}
}

func (r *Reporter) paint(code, s string) string {
	if !r.color {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

// Position converts a rune offset into a 1-based line and column.
func Position(content []rune, pos int) (line, col int) {
	line, col = 1, 1
	for i := 0; i < pos && i < len(content); i++ {
		if content[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

// printErrorLine prints the source line and a caret indicating the error position
func (r *Reporter) printErrorLine(tok token.Token) {
	content := r.file.Content
	if tok.Pos < 0 || tok.Pos > len(content) || len(content) == 0 {
		return
	}

	lineStart := tok.Pos
	for lineStart > 0 && content[lineStart-1] != '\n' {
		lineStart--
	}
	lineEnd := tok.Pos
	for lineEnd < len(content) && content[lineEnd] != '\n' {
		lineEnd++
	}

	fmt.Fprintf(r.out, "  %s\n", string(content[lineStart:lineEnd]))

	caret := "^"
	if n := tok.Len(); n > 1 {
		if tok.Pos+n > lineEnd {
			n = lineEnd - tok.Pos
		}
		if n > 1 {
			caret += strings.Repeat("~", n-1)
		}
	}
	fmt.Fprintf(r.out, "  %s%s\n", strings.Repeat(" ", tok.Pos-lineStart), r.paint("32", caret))
}

// Error prints err. Errors without a source position are printed on their own.
func (r *Reporter) Error(err error) {
	var cerr *Error
	if !errors.As(err, &cerr) {
		fmt.Fprintf(r.out, "glc: %s %v\n", r.paint("31", "error:"), err)
		return
	}
	line, col := Position(r.file.Content, cerr.Tok.Pos)
	fmt.Fprintf(r.out, "%s:%d:%d: %s %s: %s\n", r.file.Name, line, col, r.paint("31", "error:"), cerr.Kind, cerr.Msg)
	r.printErrorLine(cerr.Tok)
}

// Warn prints d if its warning is enabled.
func (r *Reporter) Warn(d Diagnostic) {
	if r.cfg != nil && !r.cfg.IsWarningEnabled(d.Warning) {
		return
	}
	name := ""
	if r.cfg != nil {
		name = r.cfg.Warnings[d.Warning].Name
	}
	line, col := Position(r.file.Content, d.Tok.Pos)
	fmt.Fprintf(r.out, "%s:%d:%d: %s %s [-W%s]\n", r.file.Name, line, col, r.paint("33", "warning:"), d.Msg, name)
	r.printErrorLine(d.Tok)
}
