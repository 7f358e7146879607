package config

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/glc/pkg/cli"
)

func TestDefaults(t *testing.T) {
	cfg := NewConfig()

	features := map[string]bool{}
	for _, info := range cfg.Features {
		features[info.Name] = info.Enabled
	}
	want := map[string]bool{"comments": true, "spill-args": false, "frame-check": true, "split-groups": false}
	if diff := cmp.Diff(want, features); diff != "" {
		t.Errorf("feature defaults mismatch (-want +got):\n%s", diff)
	}
	if cfg.WordSize != 8 || cfg.ArgRegisters != 6 {
		t.Errorf("WordSize = %d, ArgRegisters = %d, want 8 and 6", cfg.WordSize, cfg.ArgRegisters)
	}
	if len(cfg.Warnings) != int(WarnCount) || len(cfg.Features) != int(FeatCount) {
		t.Errorf("tables hold %d warnings and %d features", len(cfg.Warnings), len(cfg.Features))
	}
}

func TestSetTarget(t *testing.T) {
	cfg := NewConfig()
	if err := cfg.SetTarget("linux", "amd64", "macos"); err != nil {
		t.Fatal(err)
	}
	if cfg.Target.ExitSyscall != 0x2000001 || cfg.Target.WriteSyscall != 0x2000004 {
		t.Errorf("macos syscalls = %#x, %#x", cfg.Target.ExitSyscall, cfg.Target.WriteSyscall)
	}
	if cfg.QbeTarget == "" {
		t.Error("QbeTarget was not set")
	}

	if err := cfg.SetTarget("linux", "amd64", "linux"); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Targets["linux"], cfg.Target); diff != "" {
		t.Errorf("linux target mismatch (-want +got):\n%s", diff)
	}

	if err := cfg.SetTarget("linux", "amd64", "plan9"); err == nil {
		t.Error("SetTarget accepted an unknown target")
	}
}

func TestTargetNames(t *testing.T) {
	if diff := cmp.Diff([]string{"linux", "macos"}, TargetNames()); diff != "" {
		t.Errorf("TargetNames mismatch (-want +got):\n%s", diff)
	}
}

func TestFlagGroups(t *testing.T) {
	cfg := NewConfig()
	fs := cli.NewFlagSet("glc")
	warn, feat := cfg.SetupFlagGroups(fs)

	if err := fs.Parse([]string{"-Wshadow", "-Wno-redeclare", "-Fspill-args", "-Fno-comments", "-Fsplit-groups", "-Fno-frame-check", "-Fframe-check", "in.lisp"}); err != nil {
		t.Fatal(err)
	}
	cfg.ApplyFlagGroups(warn, feat)

	got := map[string]bool{
		"shadow":       cfg.IsWarningEnabled(WarnShadow),
		"redeclare":    cfg.IsWarningEnabled(WarnRedeclare),
		"spill-args":   cfg.IsFeatureEnabled(FeatSpillArgs),
		"comments":     cfg.IsFeatureEnabled(FeatComments),
		"frame-check":  cfg.IsFeatureEnabled(FeatFrameCheck),
		"split-groups": cfg.IsFeatureEnabled(FeatSplitGroups),
	}
	want := map[string]bool{
		"shadow":       true,
		"redeclare":    false,
		"spill-args":   true,
		"comments":     false,
		"frame-check":  true,
		"split-groups": true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("flag groups mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"in.lisp"}, fs.Args()); diff != "" {
		t.Errorf("positional args mismatch (-want +got):\n%s", diff)
	}
}
