package ir

import (
	"errors"
	"fmt"
	"math"
)

// Run-time faults reported by the Machine. The native module faults on the
// same conditions (SIGFPE for division, the overflow handler for frames).
var (
	ErrDivideByZero   = errors.New("integer divide by zero")
	ErrDivideOverflow = errors.New("integer division overflow")
	ErrFrameOverflow  = errors.New("frame overflow")
	ErrBadCall        = errors.New("call of a value that is not a function address")
	ErrBadAddress     = errors.New("access outside the scratch region")
)

// Function labels get fake code addresses so that they can be stored in
// slots and passed around like the native addresses they stand for.
const (
	codeBase   int64 = 0x401000
	codeStride int64 = 16
)

// Machine executes a Program with the memory model of the emitted module:
// one flat scratch region, a frame cursor bumped around every call and
// frame slots addressed relative to that cursor.
type Machine struct {
	prog     *Program
	mem      []int64
	frame    int64
	capacity int64
	frames   int
	cursor   int64
	depth    int
	stack    []int64
	labels   map[string]int
}

// NewMachine prepares prog for execution with room for frames nested calls.
func NewMachine(prog *Program, frames int) *Machine {
	m := &Machine{
		prog:     prog,
		frame:    prog.FrameSize(),
		capacity: prog.Capacity(frames),
		frames:   frames,
		labels:   make(map[string]int, len(prog.Funcs)),
	}
	m.mem = make([]int64, m.capacity/int64(prog.WordSize))
	for i, f := range prog.Funcs {
		m.labels[f.Name] = i
	}
	return m
}

// Run executes prog and returns the final accumulator, i.e. the exit status
// the native module would report before truncation to a byte.
func Run(prog *Program, frames int) (int64, error) {
	return NewMachine(prog, frames).Run()
}

func (m *Machine) Run() (int64, error) {
	m.cursor, m.depth, m.stack = 0, 0, m.stack[:0]
	return m.exec(m.prog.Main, nil)
}

// Address returns the fake code address of a lambda label.
func (m *Machine) Address(label string) (int64, bool) {
	i, ok := m.labels[label]
	return codeBase + int64(i)*codeStride, ok
}

func (m *Machine) funcAt(addr int64) (*Func, error) {
	off := addr - codeBase
	if off < 0 || off%codeStride != 0 || off/codeStride >= int64(len(m.prog.Funcs)) {
		return nil, fmt.Errorf("%w: %#x", ErrBadCall, addr)
	}
	return m.prog.Funcs[off/codeStride], nil
}

func (m *Machine) addr(s *Slot) (int64, error) {
	a := s.Offset
	if s.Frame {
		a += m.cursor
	}
	if a < 0 || a+int64(m.prog.WordSize) > m.capacity {
		return 0, fmt.Errorf("%w: %s at %d", ErrBadAddress, s.Name, a)
	}
	return a / int64(m.prog.WordSize), nil
}

func (m *Machine) load(s *Slot) (int64, error) {
	i, err := m.addr(s)
	if err != nil {
		return 0, err
	}
	return m.mem[i], nil
}

func (m *Machine) store(s *Slot, v int64) error {
	i, err := m.addr(s)
	if err != nil {
		return err
	}
	m.mem[i] = v
	return nil
}

func (m *Machine) pop() (int64, error) {
	if len(m.stack) == 0 {
		return 0, errors.New("value stack underflow")
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v, nil
}

func arith(op Arith, lhs, rhs int64) (int64, error) {
	switch op {
	case Add:
		return lhs + rhs, nil
	case Sub:
		return lhs - rhs, nil
	case Mul:
		return lhs * rhs, nil
	case Div, Rem:
		if rhs == 0 {
			return 0, ErrDivideByZero
		}
		if lhs == math.MinInt64 && rhs == -1 {
			return 0, ErrDivideOverflow
		}
		if op == Div {
			return lhs / rhs, nil
		}
		return lhs % rhs, nil
	}
	return 0, fmt.Errorf("unknown arithmetic operator %d", int(op))
}

func (m *Machine) exec(fn *Func, args []int64) (int64, error) {
	var acc int64
	for _, in := range fn.Body {
		var err error
		switch in.Op {
		case OpConst:
			acc = in.Imm
		case OpAddr:
			a, ok := m.Address(in.Label)
			if !ok {
				err = fmt.Errorf("unknown label %s", in.Label)
			}
			acc = a
		case OpLoad:
			acc, err = m.load(in.Slot)
		case OpStore:
			err = m.store(in.Slot, acc)
		case OpPush:
			m.stack = append(m.stack, acc)
		case OpBinary:
			var lhs int64
			if lhs, err = m.pop(); err == nil {
				acc, err = arith(in.Arith, lhs, acc)
			}
		case OpParam:
			// A caller passing fewer arguments leaves the rest zero; natively
			// they would hold whatever the argument register contained.
			var v int64
			if in.Index < len(args) {
				v = args[in.Index]
			}
			err = m.store(in.Slot, v)
		case OpCall:
			// Faults inside the callee already name the function they hit.
			if acc, err = m.call(acc, in.Args); err != nil {
				return 0, err
			}
		case OpRet:
			return acc, nil
		}
		if err != nil {
			return 0, fmt.Errorf("%s: %w", fn.Name, err)
		}
	}
	return acc, nil
}

func (m *Machine) call(target int64, n int) (int64, error) {
	if len(m.stack) < n {
		return 0, errors.New("value stack underflow")
	}
	args := make([]int64, n)
	copy(args, m.stack[len(m.stack)-n:])
	m.stack = m.stack[:len(m.stack)-n]

	callee, err := m.funcAt(target)
	if err != nil {
		return 0, err
	}

	m.cursor += m.frame
	m.depth++
	defer func() {
		m.cursor -= m.frame
		m.depth--
	}()
	if m.depth > m.frames || m.cursor+m.frame > m.capacity {
		return 0, ErrFrameOverflow
	}
	return m.exec(callee, args)
}
