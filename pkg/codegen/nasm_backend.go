package codegen

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xplshn/glc/pkg/config"
	"github.com/xplshn/glc/pkg/ir"
)

// amd64ArgRegisters are the System V integer argument registers, in order.
var amd64ArgRegisters = []string{"rdi", "rsi", "rdx", "rcx", "r8", "r9"}

const (
	nasmHeap     = "heap"
	nasmCursor   = "ptr"
	nasmOverflow = "frame_overflow"
	overflowMsg  = "glc: frame overflow"
)

// nasmBackend renders x86-64 assembly in NASM syntax for a freestanding
// executable: scratch region and frame cursor in .bss, the top-level
// sequence at the entry label, the exit trap, then the lambda bodies.
type nasmBackend struct {
	out        *strings.Builder
	prog       *ir.Program
	cfg        *config.Config
	frame      int64
	capacity   int64
	frameCheck bool
}

func NewNASMBackend() Backend { return &nasmBackend{} }

func (b *nasmBackend) Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error) {
	if prog.ArgRegs > len(amd64ArgRegisters) {
		return nil, fmt.Errorf("nasm backend: %d argument registers requested, amd64 has %d", prog.ArgRegs, len(amd64ArgRegisters))
	}

	var sb strings.Builder
	b.out, b.prog, b.cfg = &sb, prog, cfg
	b.frame = prog.FrameSize()
	b.capacity = prog.Capacity(cfg.Frames)
	b.frameCheck = cfg.IsFeatureEnabled(config.FeatFrameCheck) && prog.HasCalls()

	b.gen()
	return bytes.NewBufferString(sb.String()), nil
}

func (b *nasmBackend) line(format string, args ...interface{}) {
	b.out.WriteByte('\t')
	fmt.Fprintf(b.out, format, args...)
	b.out.WriteByte('\n')
}

func (b *nasmBackend) gen() {
	entry := b.cfg.Target.Entry

	b.out.WriteString("section .bss\n")
	b.line("%s resb %d", nasmHeap, b.capacity)
	b.line("%s resq 1", nasmCursor)
	if b.frameCheck {
		b.out.WriteString("section .data\n")
		b.line("overflow_msg db %q, 10", overflowMsg)
		b.line("overflow_len equ $ - overflow_msg")
	}

	b.out.WriteString("section .text\n")
	b.line("global %s", entry)
	fmt.Fprintf(b.out, "\n%s:\n", entry)
	b.line("lea rax, [rel %s]", nasmHeap)
	b.line("mov [rel %s], rax", nasmCursor)
	b.genBody(b.prog.Main)

	b.line("mov rdi, rax")
	b.line("mov rax, %d", b.cfg.Target.ExitSyscall)
	b.line("syscall")

	if b.frameCheck {
		fmt.Fprintf(b.out, "\n%s:\n", nasmOverflow)
		b.line("mov rax, %d", b.cfg.Target.WriteSyscall)
		b.line("mov rdi, 2")
		b.line("lea rsi, [rel overflow_msg]")
		b.line("mov rdx, overflow_len")
		b.line("syscall")
		b.line("mov rdi, %d", b.cfg.OverflowStatus)
		b.line("mov rax, %d", b.cfg.Target.ExitSyscall)
		b.line("syscall")
	}

	for _, fn := range b.prog.Funcs {
		fmt.Fprintf(b.out, "\n%s:\n", fn.Name)
		b.genBody(fn)
	}
}

func (b *nasmBackend) genBody(fn *ir.Func) {
	for _, in := range fn.Body {
		b.genInstr(in)
	}
}

// slotRef returns the memory operand of a slot. Frame slots need the cursor
// in r11 first.
func (b *nasmBackend) slotRef(s *ir.Slot) string {
	if s.Frame {
		b.line("mov r11, [rel %s]", nasmCursor)
		return fmt.Sprintf("[r11 + %d]", s.Offset)
	}
	return fmt.Sprintf("[rel %s + %d]", nasmHeap, s.Offset)
}

func (b *nasmBackend) genInstr(in *ir.Instr) {
	switch in.Op {
	case ir.OpConst:
		b.line("mov rax, %d", in.Imm)
	case ir.OpAddr:
		b.line("lea rax, [rel %s]", in.Label)
	case ir.OpLoad:
		b.line("mov rax, %s", b.slotRef(in.Slot))
	case ir.OpStore:
		b.line("mov %s, rax", b.slotRef(in.Slot))
	case ir.OpPush:
		b.line("push rax")
	case ir.OpBinary:
		b.line("mov rcx, rax")
		b.line("pop rax")
		b.genArith(in.Arith)
	case ir.OpParam:
		b.genParam(in)
	case ir.OpCall:
		b.genCall(in.Args)
	case ir.OpRet:
		b.line("ret")
	}
}

// genArith combines rax (left) with rcx (right) into rax.
func (b *nasmBackend) genArith(op ir.Arith) {
	switch op {
	case ir.Add:
		b.line("add rax, rcx")
	case ir.Sub:
		b.line("sub rax, rcx")
	case ir.Mul:
		b.line("imul rax, rcx")
	case ir.Div:
		b.line("cqo")
		b.line("idiv rcx")
	case ir.Rem:
		b.line("cqo")
		b.line("idiv rcx")
		b.line("mov rax, rdx")
	}
}

func (b *nasmBackend) genParam(in *ir.Instr) {
	dst := b.slotRef(in.Slot)
	if in.Index < b.prog.ArgRegs {
		b.line("mov %s, %s", dst, amd64ArgRegisters[in.Index])
		return
	}
	b.line("mov r10, [r11 + %d]", b.prog.SpillOffset(in.Index))
	b.line("mov %s, r10", dst)
}

// genCall enters a fresh frame, checks it against the region, and only then
// pops the saved arguments, last first, into their registers or into the
// spill area of the new frame before calling rax.
func (b *nasmBackend) genCall(nargs int) {
	b.line("add qword [rel %s], %d", nasmCursor, b.frame)
	if b.frameCheck {
		b.line("lea r11, [rel %s + %d]", nasmHeap, b.capacity-b.frame)
		b.line("cmp [rel %s], r11", nasmCursor)
		b.line("ja %s", nasmOverflow)
	}

	if nargs > b.prog.ArgRegs {
		b.line("mov r11, [rel %s]", nasmCursor)
	}
	for i := nargs - 1; i >= 0; i-- {
		if i < b.prog.ArgRegs {
			b.line("pop %s", amd64ArgRegisters[i])
			continue
		}
		b.line("pop r10")
		b.line("mov [r11 + %d], r10", b.prog.SpillOffset(i))
	}

	b.line("call rax")
	b.line("sub qword [rel %s], %d", nasmCursor, b.frame)
}
