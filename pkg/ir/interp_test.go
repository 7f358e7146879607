package ir_test

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/xplshn/glc/pkg/codegen"
	"github.com/xplshn/glc/pkg/config"
	"github.com/xplshn/glc/pkg/ir"
)

func run(t *testing.T, src string, frames int) (int64, error) {
	t.Helper()
	prog, _, err := codegen.Compile(src, config.NewConfig())
	if err != nil {
		t.Fatalf("Compile(%q) error: %v", src, err)
	}
	return ir.Run(prog, frames)
}

func TestDivisionMatchesGo(t *testing.T) {
	operands := []int64{7, -7, 2, -2, 1, -1, 13, -13, math.MaxInt64, math.MinInt64 + 1}
	for _, a := range operands {
		for _, b := range operands {
			src := fmt.Sprintf("(/ %d %d) ", a, b)
			got, err := run(t, src, 1)
			if err != nil {
				t.Fatalf("Run(%q) error: %v", src, err)
			}
			if got != a/b {
				t.Errorf("Run(%q) = %d, want %d", src, got, a/b)
			}

			src = fmt.Sprintf("(%% %d %d)", a, b)
			got, err = run(t, src, 1)
			if err != nil {
				t.Fatalf("Run(%q) error: %v", src, err)
			}
			if got != a%b {
				t.Errorf("Run(%q) = %d, want %d", src, got, a%b)
			}
		}
	}
}

func TestWrappingArithmetic(t *testing.T) {
	got, err := run(t, "(+ 9223372036854775807 1)", 1)
	if err != nil {
		t.Fatal(err)
	}
	if got != math.MinInt64 {
		t.Errorf("got %d, want %d", got, int64(math.MinInt64))
	}
}

func TestRuntimeFaults(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		frames int
		want   error
	}{
		{"divide by zero", "(/ 1 0)", 1, ir.ErrDivideByZero},
		{"remainder by zero", "(var z 0) (% 5 z)", 1, ir.ErrDivideByZero},
		{"division overflow", "(/ -9223372036854775808 -1)", 1, ir.ErrDivideOverflow},
		{"call a number", "(var x 5) (x)", 1, ir.ErrBadCall},
		{"unbounded recursion", "(var loop (lambda (n) (loop (+ n 1)))) (loop 0)", 8, ir.ErrFrameOverflow},
		{"no frames", "(var f (lambda (n) n)) (f 1)", 0, ir.ErrFrameOverflow},
		{"fault inside callee", "(var f (lambda (n) (/ n 0))) (f 1)", 4, ir.ErrDivideByZero},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.src, tt.frames)
			if !errors.Is(err, tt.want) {
				t.Errorf("Run(%q) = %v, want %v", tt.src, err, tt.want)
			}
		})
	}
}

func TestFrameDepth(t *testing.T) {
	// three nested calls fit in three frames but not in two
	src := "(var c (lambda (x) x)) (var b (lambda (x) (c x))) (var a (lambda (x) (b x))) (a 7)"
	if got, err := run(t, src, 3); err != nil || got != 7 {
		t.Errorf("Run with 3 frames = %d, %v; want 7, nil", got, err)
	}
	if _, err := run(t, src, 2); !errors.Is(err, ir.ErrFrameOverflow) {
		t.Errorf("Run with 2 frames = %v, want %v", err, ir.ErrFrameOverflow)
	}
}

func TestFramesKeepLocalsApart(t *testing.T) {
	// g overwrites its own x while f's x must survive the call
	src := "(var g (lambda (x) (var x 100))) (var f (lambda (x) (+ (g 1) x))) (f 5)"
	got, err := run(t, src, 4)
	if err != nil {
		t.Fatal(err)
	}
	if got != 105 {
		t.Errorf("got %d, want 105", got)
	}
}

func TestAddress(t *testing.T) {
	prog, _, err := codegen.Compile("(lambda () 1) (lambda () 2)", config.NewConfig())
	if err != nil {
		t.Fatal(err)
	}
	m := ir.NewMachine(prog, 1)
	a0, ok0 := m.Address("lambda_0")
	a1, ok1 := m.Address("lambda_1")
	if !ok0 || !ok1 || a0 == a1 || a0 == 0 {
		t.Errorf("Address = %#x, %v and %#x, %v; want two distinct non-zero addresses", a0, ok0, a1, ok1)
	}
	if _, ok := m.Address("lambda_9"); ok {
		t.Error("Address of an unknown label succeeded")
	}

	got, err := m.Run()
	if err != nil {
		t.Fatal(err)
	}
	if got != a1 {
		t.Errorf("program value = %#x, want the address of lambda_1 %#x", got, a1)
	}
}
