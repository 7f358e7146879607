package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/xplshn/glc/pkg/cli"
	"github.com/xplshn/glc/pkg/codegen"
	"github.com/xplshn/glc/pkg/config"
	"github.com/xplshn/glc/pkg/ir"
	"github.com/xplshn/glc/pkg/parser"
	"github.com/xplshn/glc/pkg/util"
)

func main() {
	app := cli.NewApp("glc")
	app.Synopsis = "[options] <input.lisp>"
	app.Description = "A compiler for a tiny Lisp of integers, variables and lambdas. It emits x86-64 assembly for a freestanding executable, or lowers through QBE."
	app.Repository = "https://github.com/xplshn/glc"

	cfg := config.NewConfig()

	var (
		outFile     string
		target      string
		backendName string
		frames      int
		dumpIR      bool
		run         bool
		interactive bool
		verbose     bool
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "-", "file", "Place the output into <file> ('-' for stdout).")
	fs.String(&target, "target", "t", "", "os", "Select the target OS conventions ("+strings.Join(config.TargetNames(), ", ")+"). Defaults to the host.").FromEnv("GLC_TARGET")
	fs.String(&backendName, "backend", "b", cfg.BackendName, "backend", "Select the code generation backend (nasm, qbe).").FromEnv("GLC_BACKEND")
	fs.Int(&frames, "frames", "", cfg.Frames, "n", "Number of nested call frames the scratch region holds.").FromEnv("GLC_FRAMES")
	fs.Bool(&dumpIR, "dump-ir", "d", "Print the intermediate representation and exit.")
	fs.Bool(&run, "run", "r", "Interpret the program and print its exit value instead of emitting code.")
	fs.Bool(&interactive, "interactive", "i", "Start an interactive session.")
	fs.Bool(&verbose, "verbose", "v", "Report each compilation stage on stderr.")

	warningFlags, featureFlags := cfg.SetupFlagGroups(fs)

	app.Action = func(inputFiles []string) error {
		cfg.ApplyFlagGroups(warningFlags, featureFlags)
		if err := cfg.SetTarget(runtime.GOOS, runtime.GOARCH, target); err != nil {
			util.NewReporter(util.SourceFile{}, os.Stderr, cfg).Error(err)
			return err
		}
		if frames < 0 {
			err := fmt.Errorf("--frames must not be negative, got %d", frames)
			util.NewReporter(util.SourceFile{}, os.Stderr, cfg).Error(err)
			return err
		}
		cfg.Frames = frames
		cfg.BackendName = backendName

		if interactive {
			return runREPL(cfg)
		}

		file, err := readInput(inputFiles)
		if err != nil {
			util.NewReporter(util.SourceFile{}, os.Stderr, cfg).Error(err)
			return err
		}
		reporter := util.NewReporter(file, os.Stderr, cfg)

		d := &driver{cfg: cfg, verbose: verbose}
		prog, err := d.compile(file, reporter)
		if err != nil {
			reporter.Error(err)
			return err
		}

		switch {
		case dumpIR:
			if err := writeOutput(outFile, prog.String()); err != nil {
				reporter.Error(err)
				return err
			}
			return nil
		case run:
			d.progress("Interpreting with %d frame(s)...", cfg.Frames)
			status, err := ir.Run(prog, cfg.Frames)
			if err != nil {
				reporter.Error(err)
				return err
			}
			fmt.Println(status)
			return nil
		}

		d.progress("Generating code with '%s' backend for %s...", cfg.BackendName, cfg.Target.Name)
		backend, err := codegen.SelectBackend(cfg.BackendName)
		if err != nil {
			reporter.Error(err)
			return err
		}
		asm, err := backend.Generate(prog, cfg)
		if err != nil {
			reporter.Error(fmt.Errorf("backend code generation failed: %w", err))
			return err
		}
		if err := writeOutput(outFile, asm.String()); err != nil {
			reporter.Error(err)
			return err
		}
		d.progress("Done!")
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

type driver struct {
	cfg     *config.Config
	verbose bool
}

func (d *driver) progress(format string, args ...interface{}) {
	if d.verbose {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

func (d *driver) compile(file util.SourceFile, reporter *util.Reporter) (*ir.Program, error) {
	d.progress("Parsing '%s'...", file.Name)
	forms, err := parser.NewParser(file.Content, d.cfg).Parse()
	if err != nil {
		return nil, err
	}

	d.progress("Creating intermediate representation from %d form(s)...", len(forms))
	ctx := codegen.NewContext(d.cfg)
	prog, err := ctx.Generate(forms)
	for _, w := range ctx.Warnings() {
		reporter.Warn(w)
	}
	return prog, err
}

// readInput reads the single input file, or stdin when none or '-' is given.
func readInput(args []string) (util.SourceFile, error) {
	if len(args) > 1 {
		return util.SourceFile{}, fmt.Errorf("expected one input file, got %d", len(args))
	}
	if len(args) == 0 || args[0] == "-" {
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return util.SourceFile{}, fmt.Errorf("could not read stdin: %w", err)
		}
		return util.SourceFile{Name: "<stdin>", Content: []rune(string(content))}, nil
	}
	content, err := os.ReadFile(args[0])
	if err != nil {
		return util.SourceFile{}, fmt.Errorf("could not read file '%s': %w", args[0], err)
	}
	return util.SourceFile{Name: args[0], Content: []rune(string(content))}, nil
}

func writeOutput(path, text string) error {
	if path == "-" || path == "" {
		_, err := io.WriteString(os.Stdout, text)
		return err
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("could not write '%s': %w", path, err)
	}
	return nil
}
