package codegen

import (
	"errors"
	"fmt"

	"github.com/xplshn/glc/pkg/ast"
	"github.com/xplshn/glc/pkg/config"
	"github.com/xplshn/glc/pkg/ir"
	"github.com/xplshn/glc/pkg/parser"
	"github.com/xplshn/glc/pkg/token"
	"github.com/xplshn/glc/pkg/util"
)

// CallConv is the calling convention shared by callers and lambdas: the
// first Registers arguments travel in registers, the rest are spilled into
// the callee's frame when Spill is set and rejected otherwise.
type CallConv struct {
	Registers int
	Spill     bool
}

func NewCallConv(cfg *config.Config) CallConv {
	return CallConv{Registers: cfg.ArgRegisters, Spill: cfg.IsFeatureEnabled(config.FeatSpillArgs)}
}

// spilled returns how many of n arguments do not fit in registers.
func (cc CallConv) spilled(n int) int {
	if n <= cc.Registers {
		return 0
	}
	return n - cc.Registers
}

// scope is one level of name resolution. The global scope has no owner;
// every lambda gets exactly one scope owned by its function.
type scope struct {
	names  map[string]*ir.Slot
	owner  *ir.Func
	parent *scope
}

func newScope(parent *scope, owner *ir.Func) *scope {
	return &scope{names: make(map[string]*ir.Slot), owner: owner, parent: parent}
}

// Context is the state of one compilation: the variable table, the heap
// cursor handing out slot offsets, the lambda counter and the bodies emitted
// so far. A Context compiles a single program.
type Context struct {
	cfg      *config.Config
	conv     CallConv
	slots    []*ir.Slot
	heapAddr int64
	lambdaID int
	funcs    []*ir.Func
	main     *ir.Func
	current  *ir.Func
	scope    *scope
	maxSpill int
	warnings []util.Diagnostic
	done     bool
}

func NewContext(cfg *config.Config) *Context {
	main := &ir.Func{Name: "main"}
	return &Context{
		cfg:     cfg,
		conv:    NewCallConv(cfg),
		main:    main,
		current: main,
		scope:   newScope(nil, nil),
	}
}

// Warnings returns the diagnostics collected so far.
func (ctx *Context) Warnings() []util.Diagnostic { return ctx.warnings }

func (ctx *Context) warn(w config.Warning, tok token.Token, format string, args ...interface{}) {
	ctx.warnings = append(ctx.warnings, util.Diagnostic{Warning: w, Tok: tok, Msg: fmt.Sprintf(format, args...)})
}

func (ctx *Context) emit(instr *ir.Instr) {
	ctx.current.Body = append(ctx.current.Body, instr)
}

// declare binds name in the current scope. A name already bound in the same
// scope keeps its slot; otherwise a fresh slot is taken from the heap cursor.
func (ctx *Context) declare(node *ast.Node, name string) *ir.Slot {
	if slot, ok := ctx.scope.names[name]; ok {
		ctx.warn(config.WarnRedeclare, node.Tok, "'%s' is already declared in this scope; its slot is reused", name)
		return slot
	}
	for s := ctx.scope.parent; s != nil; s = s.parent {
		if _, ok := s.names[name]; ok {
			ctx.warn(config.WarnShadow, node.Tok, "'%s' shadows an outer declaration", name)
			break
		}
	}

	slot := &ir.Slot{Name: name, Offset: ctx.heapAddr, Frame: ctx.scope.owner != nil}
	ctx.heapAddr += int64(ctx.cfg.WordSize)
	ctx.slots = append(ctx.slots, slot)
	ctx.scope.names[name] = slot
	return slot
}

// lookup resolves name through the scope chain. Globals and the current
// lambda's locals are visible; locals of an enclosing lambda are not, since
// lambdas do not capture their environment.
func (ctx *Context) lookup(node *ast.Node, name string) (*ir.Slot, error) {
	for s := ctx.scope; s != nil; s = s.parent {
		slot, ok := s.names[name]
		if !ok {
			continue
		}
		if s.owner != nil && s.owner != ctx.current {
			return nil, util.Errorf(util.ErrCapture, node.Tok, "'%s' is local to the enclosing %s and lambdas do not capture variables", name, s.owner.Name)
		}
		return slot, nil
	}
	return nil, util.Errorf(util.ErrUndeclared, node.Tok, "'%s' is not declared", name)
}

// Generate lowers the top-level forms, in order, into a Program.
func (ctx *Context) Generate(forms []*ast.Node) (*ir.Program, error) {
	if ctx.done {
		return nil, errors.New("codegen: context already used")
	}
	ctx.done = true

	if len(forms) == 0 {
		ctx.emit(&ir.Instr{Op: ir.OpConst, Imm: 0})
	}
	for _, form := range forms {
		if err := ctx.codegenExpr(form); err != nil {
			return nil, err
		}
	}

	return &ir.Program{
		Main:       ctx.main,
		Funcs:      ctx.funcs,
		Slots:      ctx.slots,
		VarBytes:   ctx.heapAddr,
		SpillSlots: ctx.maxSpill,
		ArgRegs:    ctx.conv.Registers,
		WordSize:   ctx.cfg.WordSize,
	}, nil
}

func (ctx *Context) codegenExpr(node *ast.Node) error {
	switch d := node.Data.(type) {
	case ast.NumberNode:
		ctx.emit(&ir.Instr{Op: ir.OpConst, Imm: d.Value})
		return nil
	case ast.SymbolNode:
		slot, err := ctx.lookup(node, d.Name)
		if err != nil {
			return err
		}
		ctx.emit(&ir.Instr{Op: ir.OpLoad, Slot: slot})
		return nil
	case ast.ListNode:
		return ctx.codegenList(node, d.Items)
	}
	return util.Errorf(util.ErrStructure, node.Tok, "unexpected %s node", node.Type)
}

func (ctx *Context) codegenList(node *ast.Node, items []*ast.Node) error {
	if len(items) == 0 {
		return util.Errorf(util.ErrStructure, node.Tok, "empty list cannot be evaluated")
	}
	if head, ok := items[0].SymbolName(); ok {
		if op, isArith := ir.ArithFor(head); isArith {
			return ctx.codegenArith(node, op, items[1:])
		}
		switch head {
		case "var":
			return ctx.codegenVar(node, items[1:])
		case "lambda":
			return ctx.codegenLambda(node, items[1:])
		}
	}
	return ctx.codegenCall(node, items[0], items[1:])
}

// Compile runs the whole front end over source and returns the program
// together with the warnings raised while lowering it.
func Compile(source string, cfg *config.Config) (*ir.Program, []util.Diagnostic, error) {
	forms, err := parser.Parse(source, cfg)
	if err != nil {
		return nil, nil, err
	}
	ctx := NewContext(cfg)
	prog, err := ctx.Generate(forms)
	if err != nil {
		return nil, ctx.Warnings(), err
	}
	return prog, ctx.Warnings(), nil
}
