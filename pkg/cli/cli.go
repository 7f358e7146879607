// Package cli parses glc's GNU style command line and renders its help page.
package cli

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/term"
)

type Value interface {
	String() string
	Set(string) error
}

type stringValue struct{ p *string }

func (v stringValue) Set(s string) error { *v.p = s; return nil }
func (v stringValue) String() string     { return *v.p }

type intValue struct{ p *int }

func (v intValue) Set(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid integer '%s'", s)
	}
	*v.p = n
	return nil
}
func (v intValue) String() string { return strconv.Itoa(*v.p) }

type boolValue struct{ p *bool }

// Set with an empty string is the bare switch.
func (v boolValue) Set(s string) error {
	if s == "" {
		*v.p = true
		return nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("invalid boolean '%s'", s)
	}
	*v.p = b
	return nil
}
func (v boolValue) String() string { return strconv.FormatBool(*v.p) }

// Flag is one option. Arg names its operand on the help page and is empty
// for switches. Env is shown as the variable that supplies the default.
type Flag struct {
	Name    string
	Short   string
	Usage   string
	Arg     string
	Default string
	Env     string
	Value   Value
}

func (f *Flag) FromEnv(name string) *Flag {
	f.Env = name
	return f
}

func (f *Flag) isSwitch() bool {
	_, ok := f.Value.(boolValue)
	return ok
}

// Toggle is a -<prefix><name> and -<prefix>no-<name> pair. On holds the
// state after parsing; the last spelling on the command line wins.
type Toggle struct {
	Name  string
	Usage string
	On    *bool
}

// Group is a family of toggles behind a one letter prefix, like -W.
type Group struct {
	Prefix  string
	Kind    string
	Title   string
	Toggles []Toggle
}

type FlagSet struct {
	name   string
	flags  []*Flag
	groups []*Group
	args   []string
}

func NewFlagSet(name string) *FlagSet { return &FlagSet{name: name} }

// Args returns the positional arguments left after Parse.
func (fs *FlagSet) Args() []string { return fs.args }

func (fs *FlagSet) add(f *Flag) *Flag {
	for _, g := range fs.flags {
		if g.Name == f.Name || (f.Short != "" && g.Short == f.Short) {
			panic(fmt.Sprintf("%s: flag redefined: %s", fs.name, f.Name))
		}
	}
	fs.flags = append(fs.flags, f)
	return f
}

func (fs *FlagSet) String(p *string, name, short, value, arg, usage string) *Flag {
	*p = value
	return fs.add(&Flag{Name: name, Short: short, Usage: usage, Arg: arg, Default: value, Value: stringValue{p}})
}

func (fs *FlagSet) Int(p *int, name, short string, value int, arg, usage string) *Flag {
	*p = value
	return fs.add(&Flag{Name: name, Short: short, Usage: usage, Arg: arg, Default: strconv.Itoa(value), Value: intValue{p}})
}

// Bool defines a switch that is off unless given.
func (fs *FlagSet) Bool(p *bool, name, short, usage string) *Flag {
	*p = false
	return fs.add(&Flag{Name: name, Short: short, Usage: usage, Value: boolValue{p}})
}

func (fs *FlagSet) AddGroup(g *Group) { fs.groups = append(fs.groups, g) }

func (fs *FlagSet) lookup(name string, short bool) *Flag {
	for _, f := range fs.flags {
		if (short && f.Short == name) || (!short && f.Name == name) {
			return f
		}
	}
	return nil
}

// toggle handles arg when it starts with a group prefix.
func (fs *FlagSet) toggle(arg string) (bool, error) {
	for _, g := range fs.groups {
		rest, ok := strings.CutPrefix(arg, "-"+g.Prefix)
		if !ok || rest == "" {
			continue
		}
		on := true
		if name, neg := strings.CutPrefix(rest, "no-"); neg {
			rest, on = name, false
		}
		for _, t := range g.Toggles {
			if t.Name == rest {
				*t.On = on
				return true, nil
			}
		}
		return true, fmt.Errorf("unknown %s '%s' in %s", g.Kind, rest, arg)
	}
	return false, nil
}

// Parse accepts --name value, --name=value, -s value, -svalue and the group
// toggles. Everything after "--" is positional.
func (fs *FlagSet) Parse(arguments []string) error {
	fs.args = nil
	for i := 0; i < len(arguments); i++ {
		arg := arguments[i]
		if arg == "--" {
			fs.args = append(fs.args, arguments[i+1:]...)
			return nil
		}
		if len(arg) < 2 || arg[0] != '-' {
			fs.args = append(fs.args, arg)
			continue
		}
		if handled, err := fs.toggle(arg); err != nil {
			return err
		} else if handled {
			continue
		}

		var (
			f       *Flag
			value   string
			inline  bool
			spelled string
		)
		if name, ok := strings.CutPrefix(arg, "--"); ok {
			name, value, inline = strings.Cut(name, "=")
			f, spelled = fs.lookup(name, false), "--"+name
		} else {
			f, spelled = fs.lookup(arg[1:2], true), arg[:2]
			if rest := arg[2:]; rest != "" {
				value, inline = strings.TrimPrefix(rest, "="), true
			}
		}
		if f == nil {
			return fmt.Errorf("unknown flag: %s", spelled)
		}

		if !inline && !f.isSwitch() {
			if i+1 >= len(arguments) {
				return fmt.Errorf("flag needs an argument: %s", spelled)
			}
			i++
			value = arguments[i]
		}
		if err := f.Value.Set(value); err != nil {
			return fmt.Errorf("%s: %w", spelled, err)
		}
	}
	return nil
}

type App struct {
	Name        string
	Synopsis    string
	Description string
	Repository  string
	FlagSet     *FlagSet
	Action      func(args []string) error
}

func NewApp(name string) *App {
	return &App{Name: name, FlagSet: NewFlagSet(name)}
}

func (a *App) Run(arguments []string) error {
	var help bool
	a.FlagSet.Bool(&help, "help", "h", "Display this information.")

	if err := a.FlagSet.Parse(arguments); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\nRun '%s --help' for the available options.\n", a.Name, err, a.Name)
		return err
	}
	if help {
		a.WriteHelp(os.Stdout, terminalWidth())
		return nil
	}
	if a.Action == nil {
		return nil
	}
	return a.Action(a.FlagSet.Args())
}

// WriteHelp renders the help page for a terminal width columns wide. Group
// toggles show their state after parsing, so the page reflects the flags
// given with --help.
func (a *App) WriteHelp(w io.Writer, width int) {
	var sb strings.Builder
	synopsis := a.Synopsis
	if synopsis == "" {
		synopsis = "[options] [input]"
	}
	fmt.Fprintf(&sb, "Usage: %s %s\n", a.Name, synopsis)
	if a.Description != "" {
		sb.WriteString("\n")
		for _, line := range wrap(a.Description, width) {
			sb.WriteString(line + "\n")
		}
	}

	flags := slices.Clone(a.FlagSet.flags)
	slices.SortFunc(flags, func(x, y *Flag) int { return strings.Compare(x.Name, y.Name) })
	rows := make([][2]string, 0, len(flags))
	for _, f := range flags {
		rows = append(rows, [2]string{f.spelling(), f.describe()})
	}
	writeSection(&sb, "Options:", rows, width)

	for _, g := range a.FlagSet.groups {
		rows := make([][2]string, 0, len(g.Toggles))
		for _, t := range g.Toggles {
			state := "[off]"
			if *t.On {
				state = "[on]"
			}
			rows = append(rows, [2]string{t.Name + " " + state, t.Usage})
		}
		title := fmt.Sprintf("%s (-%s<%s>, -%sno-<%s>):", g.Title, g.Prefix, g.Kind, g.Prefix, g.Kind)
		writeSection(&sb, title, rows, width)
	}

	if a.Repository != "" {
		fmt.Fprintf(&sb, "\nSource: %s\n", a.Repository)
	}
	io.WriteString(w, sb.String())
}

func (f *Flag) spelling() string {
	s := "    --" + f.Name
	if f.Short != "" {
		s = "-" + f.Short + ", --" + f.Name
	}
	if f.Arg != "" {
		s += " <" + f.Arg + ">"
	}
	return s
}

func (f *Flag) describe() string {
	var notes []string
	if !f.isSwitch() && f.Default != "" {
		notes = append(notes, "default: "+f.Default)
	}
	if f.Env != "" {
		notes = append(notes, "env: "+f.Env)
	}
	if len(notes) == 0 {
		return f.Usage
	}
	return f.Usage + " [" + strings.Join(notes, ", ") + "]"
}

// writeSection lays rows out in two columns, wrapping the second.
func writeSection(sb *strings.Builder, title string, rows [][2]string, width int) {
	if len(rows) == 0 {
		return
	}
	col := 0
	for _, r := range rows {
		col = max(col, len(r[0]))
	}
	indent := strings.Repeat(" ", col+4)

	fmt.Fprintf(sb, "\n%s\n", title)
	for _, r := range rows {
		lines := wrap(r[1], width-len(indent))
		first := fmt.Sprintf("  %-*s  %s", col, r[0], lines[0])
		sb.WriteString(strings.TrimRight(first, " ") + "\n")
		for _, l := range lines[1:] {
			sb.WriteString(indent + l + "\n")
		}
	}
}

// wrap breaks text on spaces into lines of at most width bytes; a word
// longer than that gets a line of its own. The result is never empty.
func wrap(text string, width int) []string {
	width = max(width, 20)
	var lines []string
	line := ""
	for _, word := range strings.Fields(text) {
		switch {
		case line == "":
			line = word
		case len(line)+1+len(word) > width:
			lines = append(lines, line)
			line = word
		default:
			line += " " + word
		}
	}
	return append(lines, line)
}

func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}
