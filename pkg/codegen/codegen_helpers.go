package codegen

import (
	"fmt"

	"github.com/xplshn/glc/pkg/ast"
	"github.com/xplshn/glc/pkg/ir"
	"github.com/xplshn/glc/pkg/util"
)

// codegenArith folds the operands left to right. The running value is saved
// across each operand and combined with it afterwards.
func (ctx *Context) codegenArith(node *ast.Node, op ir.Arith, operands []*ast.Node) error {
	if len(operands) == 0 {
		return util.Errorf(util.ErrStructure, node.Tok, "'%s' needs at least one operand", op)
	}
	if err := ctx.codegenExpr(operands[0]); err != nil {
		return err
	}
	for _, operand := range operands[1:] {
		ctx.emit(&ir.Instr{Op: ir.OpPush})
		if err := ctx.codegenExpr(operand); err != nil {
			return err
		}
		ctx.emit(&ir.Instr{Op: ir.OpBinary, Arith: op})
	}
	return nil
}

func (ctx *Context) codegenVar(node *ast.Node, operands []*ast.Node) error {
	if len(operands) != 2 {
		return util.Errorf(util.ErrStructure, node.Tok, "'var' expects a name and a value, got %d operand(s)", len(operands))
	}
	name, ok := operands[0].SymbolName()
	if !ok {
		return util.Errorf(util.ErrStructure, operands[0].Tok, "'var' name must be a symbol, not a %s", operands[0].Type)
	}
	slot := ctx.declare(operands[0], name)
	if err := ctx.codegenExpr(operands[1]); err != nil {
		return err
	}
	ctx.emit(&ir.Instr{Op: ir.OpStore, Slot: slot})
	return nil
}

func (ctx *Context) codegenLambda(node *ast.Node, operands []*ast.Node) error {
	if len(operands) != 2 {
		return util.Errorf(util.ErrStructure, node.Tok, "'lambda' expects a parameter list and a body, got %d operand(s)", len(operands))
	}
	paramList := operands[0]
	if paramList.Type != ast.List {
		return util.Errorf(util.ErrStructure, paramList.Tok, "'lambda' parameters must be a list, not a %s", paramList.Type)
	}
	params := paramList.Items()
	names := make([]string, len(params))
	seen := make(map[string]bool, len(params))
	for i, p := range params {
		name, ok := p.SymbolName()
		if !ok {
			return util.Errorf(util.ErrStructure, p.Tok, "'lambda' parameter must be a symbol, not a %s", p.Type)
		}
		if seen[name] {
			return util.Errorf(util.ErrStructure, p.Tok, "duplicate parameter '%s'", name)
		}
		seen[name] = true
		names[i] = name
	}
	if n := ctx.conv.spilled(len(params)); n > 0 && !ctx.conv.Spill {
		return util.Errorf(util.ErrLimit, paramList.Tok, "lambda takes %d parameters but only %d fit in registers (enable -Fspill-args)", len(params), ctx.conv.Registers)
	}

	// The body slot is reserved before the body is compiled so that lambdas
	// nested in it follow their enclosing lambda.
	fn := &ir.Func{Name: fmt.Sprintf("lambda_%d", ctx.lambdaID), Params: len(params)}
	ctx.lambdaID++
	ctx.funcs = append(ctx.funcs, fn)

	outerFunc, outerScope := ctx.current, ctx.scope
	ctx.current, ctx.scope = fn, newScope(outerScope, fn)
	defer func() { ctx.current, ctx.scope = outerFunc, outerScope }()

	for i, p := range params {
		slot := ctx.declare(p, names[i])
		ctx.emit(&ir.Instr{Op: ir.OpParam, Index: i, Slot: slot})
	}
	if err := ctx.codegenExpr(operands[1]); err != nil {
		return err
	}
	ctx.emit(&ir.Instr{Op: ir.OpRet})

	ctx.current = outerFunc
	ctx.emit(&ir.Instr{Op: ir.OpAddr, Label: fn.Name})
	return nil
}

// codegenCall evaluates the arguments in order, saving each, then the
// callee, which is either a named slot or a computed expression.
func (ctx *Context) codegenCall(node, callee *ast.Node, args []*ast.Node) error {
	if callee.Type == ast.Number {
		return util.Errorf(util.ErrStructure, callee.Tok, "cannot call a %s", callee.Type)
	}
	spilled := ctx.conv.spilled(len(args))
	if spilled > 0 && !ctx.conv.Spill {
		return util.Errorf(util.ErrLimit, node.Tok, "call passes %d arguments but only %d fit in registers (enable -Fspill-args)", len(args), ctx.conv.Registers)
	}

	for _, arg := range args {
		if err := ctx.codegenExpr(arg); err != nil {
			return err
		}
		ctx.emit(&ir.Instr{Op: ir.OpPush})
	}
	if err := ctx.codegenExpr(callee); err != nil {
		return err
	}

	ctx.emit(&ir.Instr{Op: ir.OpCall, Args: len(args)})
	if spilled > ctx.maxSpill {
		ctx.maxSpill = spilled
	}
	return nil
}
