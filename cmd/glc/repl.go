package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goforj/godump"
	"github.com/peterh/liner"
	"github.com/xplshn/glc/pkg/codegen"
	"github.com/xplshn/glc/pkg/config"
	"github.com/xplshn/glc/pkg/ir"
	"github.com/xplshn/glc/pkg/parser"
	"github.com/xplshn/glc/pkg/util"
)

const (
	historyFile = ".glc_history"
	promptMain  = "glc> "
	promptCont  = "...> "
)

const replHelp = `Enter expressions to evaluate them. Definitions persist across entries.
  :ast e   dump the syntax tree of e
  :ir      print the intermediate representation of the session
  :asm     print the generated assembly of the session
  :reset   forget every definition
  :quit    leave (also Ctrl+D)
`

// session is the accepted source so far. Every entry is compiled together
// with it, so earlier definitions stay visible and slots stay stable.
type session struct {
	cfg    *config.Config
	source string
	prog   *ir.Program
}

func (s *session) eval(code string) {
	candidate := code
	if s.source != "" {
		candidate = s.source + "\n" + code
	}
	file := util.SourceFile{Name: "<repl>", Content: []rune(candidate)}
	reporter := util.NewReporter(file, os.Stderr, s.cfg)

	prog, warnings, err := codegen.Compile(candidate, s.cfg)
	fresh := len([]rune(candidate)) - len([]rune(code))
	for _, w := range warnings {
		if w.Tok.Pos >= fresh {
			reporter.Warn(w)
		}
	}
	if err != nil {
		reporter.Error(err)
		return
	}

	status, err := ir.Run(prog, s.cfg.Frames)
	if err != nil {
		reporter.Error(err)
		return
	}
	s.source, s.prog = candidate, prog
	fmt.Println(status)
}

func (s *session) command(line string) (exit bool) {
	fields := strings.Fields(line)
	switch strings.ToLower(fields[0]) {
	case ":help":
		fmt.Print(replHelp)
	case ":quit", ":exit":
		return true
	case ":reset":
		s.source, s.prog = "", nil
		fmt.Println("session reset.")
	case ":ast":
		forms, err := parser.Parse(strings.TrimSpace(strings.TrimPrefix(line, fields[0])), s.cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return false
		}
		godump.Dump(forms)
	case ":ir":
		if s.prog == nil {
			fmt.Println("nothing compiled yet.")
			return false
		}
		fmt.Print(s.prog.String())
	case ":asm":
		if s.prog == nil {
			fmt.Println("nothing compiled yet.")
			return false
		}
		if err := s.printAsm(); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	default:
		fmt.Println("unknown command. Type :help for help.")
	}
	return false
}

func (s *session) printAsm() error {
	backend, err := codegen.SelectBackend(s.cfg.BackendName)
	if err != nil {
		return err
	}
	asm, err := backend.Generate(s.prog, s.cfg)
	if err != nil {
		return err
	}
	fmt.Print(asm.String())
	return nil
}

func runREPL(cfg *config.Config) error {
	fmt.Println("glc interactive session. Type :help for help.")

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	s := &session{cfg: cfg}
	for {
		code, ok := readEntry(ln, cfg)
		if !ok {
			fmt.Println()
			break
		}
		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))
		if strings.HasPrefix(trimmed, ":") {
			if s.command(trimmed) {
				break
			}
			continue
		}
		s.eval(code)
	}

	if f, err := os.Create(histPath); err == nil {
		_, _ = ln.WriteHistory(f)
		_ = f.Close()
	}
	return nil
}

// readEntry reads lines until the buffer no longer ends inside an open
// group or quote. Any other parse error is left for eval to report.
func readEntry(ln *liner.State, cfg *config.Config) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			// Ctrl+C drops the pending entry.
			return "", true
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if strings.HasPrefix(strings.TrimSpace(src), ":") {
			return src, true
		}
		if _, err := parser.Parse(src, cfg); errors.Is(err, util.ErrIncomplete) {
			continue
		}
		return src, true
	}
}
