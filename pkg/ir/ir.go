package ir

import (
	"fmt"
	"strings"
)

// Op is an instruction of the accumulator machine every backend renders.
// Each expression leaves its value in the accumulator.
type Op int

const (
	OpConst  Op = iota // acc = Imm
	OpAddr             // acc = address of Label
	OpLoad             // acc = *Slot
	OpStore            // *Slot = acc
	OpPush             // save acc on the value stack
	OpBinary           // acc = pop() Arith acc
	OpParam            // *Slot = incoming argument Index
	OpCall             // pop Args saved values as arguments, call acc, acc = result
	OpRet
)

type Arith int

const (
	Add Arith = iota
	Sub
	Mul
	Div
	Rem
)

var arithSymbols = [...]string{Add: "+", Sub: "-", Mul: "*", Div: "/", Rem: "%"}

// ArithFor maps an operator symbol to its Arith.
func ArithFor(sym string) (Arith, bool) {
	for a, s := range arithSymbols {
		if s == sym {
			return Arith(a), true
		}
	}
	return 0, false
}

func (a Arith) String() string { return arithSymbols[a] }

// Slot is one entry of the variable table: a fixed byte offset into the
// scratch region. Frame slots are addressed relative to the current call
// frame, the others relative to the region base.
type Slot struct {
	Name   string
	Offset int64
	Frame  bool
}

func (s *Slot) String() string {
	if s.Frame {
		return fmt.Sprintf("%s@frame+%d", s.Name, s.Offset)
	}
	return fmt.Sprintf("%s@heap+%d", s.Name, s.Offset)
}

type Instr struct {
	Op    Op
	Imm   int64
	Label string
	Slot  *Slot
	Arith Arith
	Index int
	Args  int
}

func (in *Instr) String() string {
	switch in.Op {
	case OpConst:
		return fmt.Sprintf("const %d", in.Imm)
	case OpAddr:
		return "addr " + in.Label
	case OpLoad:
		return "load " + in.Slot.String()
	case OpStore:
		return "store " + in.Slot.String()
	case OpPush:
		return "push"
	case OpBinary:
		return "binary " + in.Arith.String()
	case OpParam:
		return fmt.Sprintf("param %d -> %s", in.Index, in.Slot)
	case OpCall:
		return fmt.Sprintf("call/%d", in.Args)
	case OpRet:
		return "ret"
	}
	return fmt.Sprintf("op(%d)", int(in.Op))
}

type Func struct {
	Name   string
	Params int
	Body   []*Instr
}

// Program is the result of code generation: the top-level sequence, the
// lambda bodies in label order and the final variable table.
type Program struct {
	Main       *Func
	Funcs      []*Func
	Slots      []*Slot
	VarBytes   int64
	SpillSlots int
	ArgRegs    int
	WordSize   int
}

// FrameSize is the number of bytes a call claims from the scratch region:
// every declared slot plus the spill area for arguments beyond ArgRegs.
func (p *Program) FrameSize() int64 {
	return p.VarBytes + int64(p.SpillSlots*p.WordSize)
}

// SpillOffset is the frame offset of argument index (index >= ArgRegs).
func (p *Program) SpillOffset(index int) int64 {
	return p.VarBytes + int64((index-p.ArgRegs)*p.WordSize)
}

// Capacity is the size of the scratch region holding the globals' frame and
// frames further call frames.
func (p *Program) Capacity(frames int) int64 {
	capacity := p.FrameSize() * int64(frames+1)
	if capacity < int64(p.WordSize) {
		capacity = int64(p.WordSize)
	}
	return capacity
}

func (p *Program) FindFunc(name string) *Func {
	for _, f := range p.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// HasCalls reports whether any function performs a call.
func (p *Program) HasCalls() bool {
	for _, f := range append([]*Func{p.Main}, p.Funcs...) {
		for _, in := range f.Body {
			if in.Op == OpCall {
				return true
			}
		}
	}
	return false
}

// String renders a readable listing of the program.
func (p *Program) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "; slots: %d, frame: %d bytes, spill slots: %d\n", len(p.Slots), p.FrameSize(), p.SpillSlots)
	for _, s := range p.Slots {
		fmt.Fprintf(&sb, ";   %s\n", s)
	}
	for _, f := range append([]*Func{p.Main}, p.Funcs...) {
		fmt.Fprintf(&sb, "%s/%d:\n", f.Name, f.Params)
		for _, in := range f.Body {
			fmt.Fprintf(&sb, "\t%s\n", in)
		}
	}
	return sb.String()
}
