package codegen

import (
	"fmt"
	"strings"

	"github.com/xplshn/glc/pkg/config"
	"github.com/xplshn/glc/pkg/ir"
)

const (
	qbeHeap     = "$glc_heap"
	qbeCursor   = "$glc_ptr"
	qbeMsg      = "$glc_overflow_msg"
	qbeOverflow = "$glc_frame_overflow"
)

// qbeBackend renders the program as QBE IL. The accumulator is the temporary
// %acc and saved values live in %s<depth>; QBE does the SSA conversion and
// the register allocation, and the result links against the C runtime.
type qbeBackend struct {
	out        *strings.Builder
	prog       *ir.Program
	cfg        *config.Config
	frame      int64
	capacity   int64
	frameCheck bool
	depth      int
	blocks     int
}

func NewQBEBackend() Backend { return &qbeBackend{} }

// GenerateIR returns the QBE IL for prog without lowering it.
func (b *qbeBackend) GenerateIR(prog *ir.Program, cfg *config.Config) (string, error) {
	var sb strings.Builder
	b.out, b.prog, b.cfg = &sb, prog, cfg
	b.frame = prog.FrameSize()
	b.capacity = prog.Capacity(cfg.Frames)
	b.frameCheck = cfg.IsFeatureEnabled(config.FeatFrameCheck) && prog.HasCalls()
	b.blocks = 0

	b.gen()
	return sb.String(), nil
}

func (b *qbeBackend) line(format string, args ...interface{}) {
	b.out.WriteByte('\t')
	fmt.Fprintf(b.out, format, args...)
	b.out.WriteByte('\n')
}

func (b *qbeBackend) gen() {
	fmt.Fprintf(b.out, "data %s = align 8 { z %d }\n", qbeHeap, b.capacity)
	fmt.Fprintf(b.out, "data %s = align 8 { l 0 }\n", qbeCursor)

	if b.frameCheck {
		fmt.Fprintf(b.out, "data %s = { b %q, b 10 }\n", qbeMsg, overflowMsg)
		fmt.Fprintf(b.out, "\nfunction %s() {\n@start\n", qbeOverflow)
		b.line("%%n =l call $write(w 2, l %s, l %d)", qbeMsg, len(overflowMsg)+1)
		b.line("call $exit(w %d)", b.cfg.OverflowStatus)
		b.line("ret")
		b.out.WriteString("}\n")
	}

	b.out.WriteString("\nexport function w $main() {\n@start\n")
	b.depth = 0
	b.line("storel %s, %s", qbeHeap, qbeCursor)
	b.genBody(b.prog.Main)
	b.line("%%status =w copy %%acc")
	b.line("ret %%status")
	b.out.WriteString("}\n")

	for _, fn := range b.prog.Funcs {
		b.genFunc(fn)
	}
}

func (b *qbeBackend) genFunc(fn *ir.Func) {
	params := make([]string, fn.Params)
	for i := range params {
		params[i] = fmt.Sprintf("l %%p%d", i)
	}
	fmt.Fprintf(b.out, "\nfunction l $%s(%s) {\n@start\n", fn.Name, strings.Join(params, ", "))
	b.depth = 0
	b.genBody(fn)
	b.out.WriteString("}\n")
}

func (b *qbeBackend) genBody(fn *ir.Func) {
	for _, in := range fn.Body {
		b.genInstr(in)
	}
}

// slotAddr leaves the address of a slot in %addr.
func (b *qbeBackend) slotAddr(s *ir.Slot) {
	if s.Frame {
		b.line("%%cur =l loadl %s", qbeCursor)
		b.line("%%addr =l add %%cur, %d", s.Offset)
		return
	}
	b.line("%%addr =l add %s, %d", qbeHeap, s.Offset)
}

func (b *qbeBackend) genInstr(in *ir.Instr) {
	switch in.Op {
	case ir.OpConst:
		b.line("%%acc =l copy %d", in.Imm)
	case ir.OpAddr:
		b.line("%%acc =l copy $%s", in.Label)
	case ir.OpLoad:
		b.slotAddr(in.Slot)
		b.line("%%acc =l loadl %%addr")
	case ir.OpStore:
		b.slotAddr(in.Slot)
		b.line("storel %%acc, %%addr")
	case ir.OpPush:
		b.line("%%s%d =l copy %%acc", b.depth)
		b.depth++
	case ir.OpBinary:
		b.depth--
		b.line("%%acc =l %s %%s%d, %%acc", qbeArith(in.Arith), b.depth)
	case ir.OpParam:
		b.slotAddr(in.Slot)
		b.line("storel %%p%d, %%addr", in.Index)
	case ir.OpCall:
		b.genCall(in.Args)
	case ir.OpRet:
		b.line("ret %%acc")
	}
}

func qbeArith(op ir.Arith) string {
	switch op {
	case ir.Add:
		return "add"
	case ir.Sub:
		return "sub"
	case ir.Mul:
		return "mul"
	case ir.Div:
		return "div"
	default:
		return "rem"
	}
}

// genCall passes every argument directly; QBE applies the platform ABI, so
// no spill area is needed here. The frame cursor still moves so that frame
// slots of recursive calls do not collide.
func (b *qbeBackend) genCall(nargs int) {
	b.depth -= nargs
	args := make([]string, nargs)
	for i := range args {
		args[i] = fmt.Sprintf("l %%s%d", b.depth+i)
	}

	b.line("%%cur =l loadl %s", qbeCursor)
	b.line("%%cur =l add %%cur, %d", b.frame)
	b.line("storel %%cur, %s", qbeCursor)
	if b.frameCheck {
		id := b.blocks
		b.blocks++
		b.line("%%lim =l add %s, %d", qbeHeap, b.capacity-b.frame)
		b.line("%%ovf =w cugtl %%cur, %%lim")
		b.line("jnz %%ovf, @overflow%d, @call%d", id, id)
		fmt.Fprintf(b.out, "@overflow%d\n", id)
		b.line("call %s()", qbeOverflow)
		b.line("ret 0")
		fmt.Fprintf(b.out, "@call%d\n", id)
	}
	b.line("%%acc =l call %%acc(%s)", strings.Join(args, ", "))
	b.line("%%cur =l loadl %s", qbeCursor)
	b.line("%%cur =l sub %%cur, %d", b.frame)
	b.line("storel %%cur, %s", qbeCursor)
}
