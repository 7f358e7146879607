package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xplshn/glc/pkg/cli"
	"github.com/xyproto/env/v2"
	"modernc.org/libqbe"
)

type Feature int

const (
	FeatComments Feature = iota
	FeatSpillArgs
	FeatFrameCheck
	FeatSplitGroups
	FeatCount
)

type Warning int

const (
	WarnRedeclare Warning = iota
	WarnShadow
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

// Target describes the operating system conventions the emitted module relies on.
type Target struct {
	Name         string
	GOOS         string
	Entry        string
	ExitSyscall  int
	WriteSyscall int
}

var Targets = map[string]Target{
	"linux": {Name: "linux", GOOS: "linux", Entry: "_start", ExitSyscall: 60, WriteSyscall: 1},
	"macos": {Name: "macos", GOOS: "darwin", Entry: "_start", ExitSyscall: 0x2000001, WriteSyscall: 0x2000004},
}

const (
	DefaultBackend        = "nasm"
	DefaultFrames         = 1024
	DefaultOverflowStatus = 255
)

type Config struct {
	Features       map[Feature]Info
	Warnings       map[Warning]Info
	FeatureMap     map[string]Feature
	WarningMap     map[string]Warning
	Target         Target
	BackendName    string
	QbeTarget      string
	WordSize       int
	ArgRegisters   int
	Frames         int
	OverflowStatus int
}

func NewConfig() *Config {
	cfg := &Config{
		Features:       make(map[Feature]Info),
		Warnings:       make(map[Warning]Info),
		FeatureMap:     make(map[string]Feature),
		WarningMap:     make(map[string]Warning),
		Target:         Targets["linux"],
		BackendName:    env.Str("GLC_BACKEND", DefaultBackend),
		WordSize:       8,
		ArgRegisters:   6,
		Frames:         env.Int("GLC_FRAMES", DefaultFrames),
		OverflowStatus: env.Int("GLC_OVERFLOW_STATUS", DefaultOverflowStatus),
	}

	features := map[Feature]Info{
		FeatComments:    {"comments", true, "Treat ';' up to the end of the line as a comment."},
		FeatSpillArgs:   {"spill-args", false, "Pass arguments beyond the sixth through the callee's frame instead of rejecting the call."},
		FeatFrameCheck:  {"frame-check", true, "Check every call frame against the scratch region capacity at run time."},
		FeatSplitGroups: {"split-groups", false, "Let a bracket group end the token before it and start a new token after it, so 'a(b)c' is three tokens."},
	}

	warnings := map[Warning]Info{
		WarnRedeclare: {"redeclare", true, "Warn when 'var' redeclares a name in the same scope."},
		WarnShadow:    {"shadow", false, "Warn when a lambda parameter or local shadows an outer name."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	return cfg
}

// SetTarget selects the emitted module's OS conventions. An empty name picks
// the host's. The QBE target follows the selected OS and the host architecture.
func (c *Config) SetTarget(goos, goarch, name string) error {
	if name == "" {
		name = env.Str("GLC_TARGET")
	}
	if name == "" {
		name = "linux"
		if goos == "darwin" {
			name = "macos"
		}
	}
	t, ok := Targets[name]
	if !ok {
		return fmt.Errorf("unsupported target '%s'. Supported: %s", name, strings.Join(TargetNames(), ", "))
	}
	c.Target = t
	c.QbeTarget = libqbe.DefaultTarget(t.GOOS, goarch)
	return nil
}

func TargetNames() []string {
	names := make([]string, 0, len(Targets))
	for name := range Targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// SetupFlagGroups registers -W<warning>/-Wno-<warning> and -F<feature>/-Fno-<feature>
// on fs. The returned toggles are indexed by Warning and Feature.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) ([]cli.Toggle, []cli.Toggle) {
	warnings := make([]cli.Toggle, WarnCount)
	for i := range warnings {
		info := c.Warnings[Warning(i)]
		on := info.Enabled
		warnings[i] = cli.Toggle{Name: info.Name, Usage: info.Description, On: &on}
	}
	features := make([]cli.Toggle, FeatCount)
	for i := range features {
		info := c.Features[Feature(i)]
		on := info.Enabled
		features[i] = cli.Toggle{Name: info.Name, Usage: info.Description, On: &on}
	}

	fs.AddGroup(&cli.Group{Prefix: "W", Kind: "warning", Title: "Warnings", Toggles: warnings})
	fs.AddGroup(&cli.Group{Prefix: "F", Kind: "feature", Title: "Features", Toggles: features})
	return warnings, features
}

// ApplyFlagGroups copies the parsed toggles back into the tables.
func (c *Config) ApplyFlagGroups(warnings, features []cli.Toggle) {
	for i, t := range warnings {
		c.SetWarning(Warning(i), *t.On)
	}
	for i, t := range features {
		c.SetFeature(Feature(i), *t.On)
	}
}
