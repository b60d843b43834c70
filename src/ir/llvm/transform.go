// Package llvm lowers the syntax tree into LLVM IR for the system installed
// LLVM runtime, and drives the backend for object emission and JIT execution.
//
// Lowering is a strict two pass walk: every function prototype is declared
// first so calls resolve independent of declaration order, then each body is
// generated in declaration order. Semantic checks that need the module in
// hand (unknown names, call arity, loop targets) happen here.
package llvm

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang/glog"
	"tinygo.org/x/go-llvm"

	"jamc/src/ir"
	"jamc/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// generator holds the mutable state of a single module's code generation.
type generator struct {
	ctx llvm.Context
	b   llvm.Builder
	m   llvm.Module
	abi cabi

	fn      llvm.Value            // Function currently being generated.
	retType llvm.Type             // Declared return type of fn; only valid when hasRet is set.
	hasRet  bool                  // Set if fn declares a return type.
	env     map[string]llvm.Value // Local variable name to stack slot. Function flat, cleared per function.
	loops   util.Stack            // loopContext entries, innermost loop on top.
}

// loopContext carries the continue and break targets of a loop. It lives on
// the generator's loop stack while the loop body is being generated, so break
// and continue always refer to the innermost loop.
type loopContext struct {
	cont llvm.BasicBlock
	brk  llvm.BasicBlock
}

// funcWrapper wraps an ir.Function pointer and its LLVM declaration.
type funcWrapper struct {
	ll   llvm.Value   // LLVM function declaration.
	node *ir.Function // Syntax tree function definition.
}

// ---------------------
// ----- Constants -----
// ---------------------

const mapSize = 16 // Predefined size for a decently sized symbol table hash table.

// -------------------
// ----- globals -----
// -------------------

var stringPrefix = "L_STR" // Prefix all global strings with this prefix.

// reservedFunctionNames defines the built-in names that cannot be assigned
// to user functions.
var reservedFunctionNames = []string{
	"print",
	"println",
	"printf",
}

// ---------------------
// ----- functions -----
// ---------------------

// GenLLVM generates LLVM IR from the parsed function list and either JIT
// executes the module (run mode) or emits textual IR followed by an object
// file (compile mode). The returned integer is the process exit status.
func GenLLVM(opt util.Options, tgt util.Target, funcs []*ir.Function) (int, error) {
	ctx, m, err := Generate(opt, tgt, funcs)
	if err != nil {
		return 1, err
	}
	defer ctx.Dispose()

	if opt.Run {
		// The execution engine takes ownership of the module.
		return RunMain(m)
	}
	defer m.Dispose()

	// Emit textual IR to the output sink.
	fmt.Print(m.String())

	if err := llvm.VerifyModule(m, llvm.ReturnStatusAction); err != nil {
		return 1, fmt.Errorf("module failed IR verification: %s", err)
	}
	if err := EmitObject(opt, tgt, m); err != nil {
		return 1, err
	}
	return 0, nil
}

// Generate lowers the function list into a fresh LLVM module for the given
// target. On success the caller owns the returned module and context and must
// dispose both.
func Generate(opt util.Options, tgt util.Target, funcs []*ir.Function) (llvm.Context, llvm.Module, error) {
	if len(funcs) < 1 {
		return llvm.Context{}, llvm.Module{}, errors.New("no functions to generate")
	}

	name := filepath.Base(opt.Src)
	if len(opt.Src) == 0 {
		name = "jam"
	}

	ctx := llvm.NewContext()

	// Builder constructs LLVM IR instructions on basic block level.
	b := ctx.NewBuilder()
	defer b.Dispose()

	m := ctx.NewModule(name)

	g := &generator{
		ctx: ctx,
		b:   b,
		m:   m,
		abi: cabi{t: tgt},
	}

	// Declare every function prototype before generating bodies.
	defs := make([]funcWrapper, 0, len(funcs))
	for _, e1 := range funcs {
		fn, err := g.genFuncHeader(e1)
		if err != nil {
			m.Dispose()
			ctx.Dispose()
			return llvm.Context{}, llvm.Module{}, err
		}
		if !e1.Extern {
			defs = append(defs, funcWrapper{ll: fn, node: e1})
		}
	}

	// Generate function bodies.
	for _, e1 := range defs {
		if err := g.genFuncBody(e1.ll, e1.node); err != nil {
			m.Dispose()
			ctx.Dispose()
			return llvm.Context{}, llvm.Module{}, err
		}
	}
	return ctx, m, nil
}

// genFuncHeader generates the LLVM IR declaration of a function. The
// declaration defines the function's name, parameters, return type, linkage
// and calling convention.
func (g *generator) genFuncHeader(f *ir.Function) (llvm.Value, error) {
	for _, e1 := range reservedFunctionNames {
		if e1 == f.Name {
			return llvm.Value{}, fmt.Errorf("line %d: %q is a reserved function name", f.Line, f.Name)
		}
	}

	// Check for duplicate declarations.
	if !g.m.NamedFunction(f.Name).IsNil() {
		return llvm.Value{}, fmt.Errorf("line %d: duplicate declaration, function %q already declared",
			f.Line, f.Name)
	}

	// Function's return type. Absent means void.
	ret := g.ctx.VoidType()
	if len(f.ReturnType) > 0 {
		var err error
		if ret, err = g.genType(f.ReturnType, f.Line); err != nil {
			return llvm.Value{}, err
		}
	}

	// Function's parameters.
	atyp := make([]llvm.Type, 0, 8) // Assume no more than 8 parameters.
	for _, e1 := range f.Params {
		typ, err := g.genType(e1.Type, f.Line)
		if err != nil {
			return llvm.Value{}, err
		}
		atyp = append(atyp, typ)
	}
	ftyp := llvm.FunctionType(ret, atyp, false)

	var fn llvm.Value
	if f.Extern {
		fn = g.abi.createExternFunction(g.m, f.Name, ftyp)
	} else {
		fn = llvm.AddFunction(g.m, f.Name, ftyp)
		fn.SetLinkage(g.abi.linkage(f))
		g.abi.applyFunctionAttributes(fn)
	}

	// Set parameter names.
	for i1, e1 := range fn.Params() {
		e1.SetName(f.Params[i1].Name)
	}
	return fn, nil
}

// genFuncBody generates the LLVM IR definition of a function: the entry
// block, stack slots for the parameters, the lowered body statements, the
// implicit void return, and a structural verification of the result.
func (g *generator) genFuncBody(fn llvm.Value, f *ir.Function) error {
	glog.V(1).Infof("generating function %q", f.Name)

	g.fn = fn
	g.env = make(map[string]llvm.Value, mapSize)
	g.hasRet = len(f.ReturnType) > 0
	if g.hasRet {
		var err error
		if g.retType, err = g.genType(f.ReturnType, f.Line); err != nil {
			return err
		}
	}

	// Create the entry block for the function body.
	bb := llvm.AddBasicBlock(fn, "")
	g.b.SetInsertPointAtEnd(bb)

	// Allocate stack slots for the function's parameters.
	for i1, e1 := range fn.Params() {
		slot := g.b.CreateAlloca(e1.Type(), f.Params[i1].Name)
		g.b.CreateStore(e1, slot)
		g.env[f.Params[i1].Name] = slot
	}

	term, err := g.genStatements(f.Body)
	if err != nil {
		return err
	}
	if !term && !g.hasRet {
		// Implicit return for functions without a return type.
		g.b.CreateRetVoid()
	}

	if err := llvm.VerifyFunction(fn, llvm.ReturnStatusAction); err != nil {
		return fmt.Errorf("function %q failed IR verification: %s", f.Name, err)
	}
	return nil
}

// genStatements lowers a statement list in order. Statements following a
// terminating statement are unreachable and are not lowered; a terminated
// block must never receive further instructions.
func (g *generator) genStatements(stmts []*ir.Expr) (bool, error) {
	for _, e1 := range stmts {
		term, err := g.genStatement(e1)
		if err != nil {
			return false, err
		}
		if term {
			return true, nil
		}
	}
	return false, nil
}

// genStatement lowers a single statement and reports whether it terminated
// the current basic block.
func (g *generator) genStatement(n *ir.Expr) (bool, error) {
	switch n.Kind {
	case ir.RETURN:
		return g.genReturn(n)
	case ir.VAR_DECL:
		return false, g.genVarDecl(n)
	case ir.IF:
		return g.genIf(n)
	case ir.WHILE:
		return false, g.genWhile(n)
	case ir.FOR:
		return false, g.genFor(n)
	case ir.BREAK:
		lc := g.loops.Peek()
		if lc == nil {
			return false, fmt.Errorf("line %d: break outside a loop", n.Line)
		}
		g.b.CreateBr(lc.(loopContext).brk)
		return true, nil
	case ir.CONTINUE:
		lc := g.loops.Peek()
		if lc == nil {
			return false, fmt.Errorf("line %d: continue outside a loop", n.Line)
		}
		g.b.CreateBr(lc.(loopContext).cont)
		return true, nil
	}

	// Expression statement; the value is discarded.
	_, err := g.genExpression(n)
	return false, err
}

// genExpression lowers a value producing expression node.
func (g *generator) genExpression(n *ir.Expr) (llvm.Value, error) {
	switch n.Kind {
	case ir.NUMBER:
		return llvm.ConstInt(g.narrowType(n.Num), uint64(n.Num), true), nil
	case ir.BOOLEAN:
		v := uint64(0)
		if n.Bool {
			v = 1
		}
		return llvm.ConstInt(g.ctx.Int1Type(), v, false), nil
	case ir.STRING:
		return g.genString(n), nil
	case ir.VARIABLE:
		slot, ok := g.env[n.Text]
		if !ok {
			return llvm.Value{}, fmt.Errorf("line %d: undeclared variable %q", n.Line, n.Text)
		}
		return g.b.CreateLoad(slot, n.Text), nil
	case ir.BINARY:
		return g.genBinary(n)
	case ir.CALL:
		return g.genCall(n)
	}
	return llvm.Value{}, fmt.Errorf("line %d: %s cannot be used as a value", n.Line, n.Kind)
}

// genBinary lowers both operands of a binary expression and emits the
// operation. Addition is an integer add; equality and inequality compare
// integers; the relational operators compare unsigned.
func (g *generator) genBinary(n *ir.Expr) (llvm.Value, error) {
	l, err := g.genExpression(n.Left)
	if err != nil {
		return llvm.Value{}, err
	}
	r, err := g.genExpression(n.Right)
	if err != nil {
		return llvm.Value{}, err
	}
	if l, r, err = g.widen(l, r, n.Line); err != nil {
		return llvm.Value{}, err
	}

	switch n.Op {
	case "+":
		return g.b.CreateAdd(l, r, ""), nil
	case "==":
		return g.b.CreateICmp(llvm.IntEQ, l, r, ""), nil
	case "!=":
		return g.b.CreateICmp(llvm.IntNE, l, r, ""), nil
	case "<":
		return g.b.CreateICmp(llvm.IntULT, l, r, ""), nil
	case "<=":
		return g.b.CreateICmp(llvm.IntULE, l, r, ""), nil
	case ">":
		return g.b.CreateICmp(llvm.IntUGT, l, r, ""), nil
	case ">=":
		return g.b.CreateICmp(llvm.IntUGE, l, r, ""), nil
	}
	return llvm.Value{}, fmt.Errorf("line %d: operator %q not defined", n.Line, n.Op)
}

// genCall lowers a call expression. The print builtins are intercepted;
// user calls are looked up in the module, checked for arity and their
// arguments coerced to the declared parameter types.
func (g *generator) genCall(n *ir.Expr) (llvm.Value, error) {
	if isBuiltin(n.Text) {
		return g.genBuiltin(n)
	}

	target := g.m.NamedFunction(n.Text)
	if target.IsNil() {
		return llvm.Value{}, fmt.Errorf("line %d: undeclared function %q", n.Line, n.Text)
	}
	params := target.Params()
	if len(params) != len(n.Args) {
		return llvm.Value{}, fmt.Errorf("line %d: function %q expects %d arguments, got %d",
			n.Line, n.Text, len(params), len(n.Args))
	}

	args := make([]llvm.Value, len(n.Args))
	for i1, e1 := range n.Args {
		v, err := g.genExpression(e1)
		if err != nil {
			return llvm.Value{}, err
		}
		if v, err = g.coerce(v, params[i1].Type(), e1.Line); err != nil {
			return llvm.Value{}, err
		}
		args[i1] = v
	}
	return g.b.CreateCall(target, args, ""), nil
}

// genString emits a private constant null-terminated global for the literal
// bytes and wraps its address and length in a str slice aggregate.
func (g *generator) genString(n *ir.Expr) llvm.Value {
	ptr := g.b.CreateGlobalStringPtr(n.Text, stringPrefix)
	v := llvm.Undef(g.sliceType(g.ctx.Int8Type()))
	v = g.b.CreateInsertValue(v, ptr, 0, "")
	v = g.b.CreateInsertValue(v, llvm.ConstInt(g.ctx.Int64Type(), uint64(len(n.Text)), false), 1, "")
	return v
}

// genReturn lowers the operand, coerces it to the declared return type and
// terminates the current basic block with a typed return.
func (g *generator) genReturn(n *ir.Expr) (bool, error) {
	if !g.hasRet {
		return false, fmt.Errorf("line %d: cannot return a value from a function without a return type", n.Line)
	}
	v, err := g.genExpression(n.Left)
	if err != nil {
		return false, err
	}
	if v, err = g.coerce(v, g.retType, n.Line); err != nil {
		return false, err
	}
	g.b.CreateRet(v)
	return true, nil
}

// genVarDecl allocates a stack slot for a new local variable, stores the
// lowered initializer or the type's zero value, and binds the name in the
// function's symbol environment. Bindings are function flat: a declaration
// inside a nested block stays visible after the block.
func (g *generator) genVarDecl(n *ir.Expr) error {
	typ, err := g.genType(n.Type, n.Line)
	if err != nil {
		return err
	}
	slot := g.b.CreateAlloca(typ, n.Text)

	var v llvm.Value
	if n.Left != nil {
		if v, err = g.genExpression(n.Left); err != nil {
			return err
		}
		if v, err = g.coerce(v, typ, n.Line); err != nil {
			return err
		}
	} else {
		v = llvm.ConstNull(typ)
	}
	g.b.CreateStore(v, slot)
	g.env[n.Text] = slot
	return nil
}

// genIf lowers an if statement with three fresh blocks for the then branch,
// the else branch and the merge point. A branch that already terminated does
// not receive a second terminator. When both branches terminate the merge
// block is unreachable and the if statement itself terminates the current
// block.
func (g *generator) genIf(n *ir.Expr) (bool, error) {
	cond, err := g.genCondition(n.Left)
	if err != nil {
		return false, err
	}

	thn := llvm.AddBasicBlock(g.fn, "")
	els := llvm.AddBasicBlock(g.fn, "")
	merge := llvm.AddBasicBlock(g.fn, "")
	g.b.CreateCondBr(cond, thn, els)

	g.b.SetInsertPointAtEnd(thn)
	termThen, err := g.genStatements(n.Body)
	if err != nil {
		return false, err
	}
	if !termThen {
		g.b.CreateBr(merge)
	}

	g.b.SetInsertPointAtEnd(els)
	termElse, err := g.genStatements(n.Else)
	if err != nil {
		return false, err
	}
	if !termElse {
		g.b.CreateBr(merge)
	}

	g.b.SetInsertPointAtEnd(merge)
	if termThen && termElse {
		g.b.CreateUnreachable()
		return true, nil
	}
	return false, nil
}

// genWhile lowers a while loop with fresh blocks for the condition, the body
// and the converging block after the loop. The loop context targets the
// condition block for continue and the converging block for break.
func (g *generator) genWhile(n *ir.Expr) error {
	cond := llvm.AddBasicBlock(g.fn, "")
	body := llvm.AddBasicBlock(g.fn, "")
	after := llvm.AddBasicBlock(g.fn, "")

	g.b.CreateBr(cond)
	g.loops.Push(loopContext{cont: cond, brk: after})

	g.b.SetInsertPointAtEnd(cond)
	c, err := g.genCondition(n.Left)
	if err != nil {
		g.loops.Pop()
		return err
	}
	g.b.CreateCondBr(c, body, after)

	g.b.SetInsertPointAtEnd(body)
	term, err := g.genStatements(n.Body)
	if err != nil {
		g.loops.Pop()
		return err
	}
	if !term {
		// Jump back to the loop condition.
		g.b.CreateBr(cond)
	}

	g.loops.Pop()
	g.b.SetInsertPointAtEnd(after)
	return nil
}

// genFor lowers a for loop over the half-open range [start, end). The loop
// variable takes the IR type of start; end is adjusted to match when both
// are integers. The loop variable shadows any existing binding of the same
// name for the duration of the loop.
func (g *generator) genFor(n *ir.Expr) error {
	start, err := g.genExpression(n.Left)
	if err != nil {
		return err
	}
	end, err := g.genExpression(n.Right)
	if err != nil {
		return err
	}
	typ := start.Type()
	if end.Type() != typ {
		if typ.TypeKind() != llvm.IntegerTypeKind || end.Type().TypeKind() != llvm.IntegerTypeKind {
			return fmt.Errorf("line %d: for range operands have mismatched types", n.Line)
		}
		if end.Type().IntTypeWidth() < typ.IntTypeWidth() {
			end = g.b.CreateSExt(end, typ, "")
		} else {
			end = g.b.CreateTrunc(end, typ, "")
		}
	}

	slot := g.b.CreateAlloca(typ, n.Text)
	g.b.CreateStore(start, slot)
	shadow, shadowed := g.env[n.Text]
	g.env[n.Text] = slot

	cond := llvm.AddBasicBlock(g.fn, "")
	body := llvm.AddBasicBlock(g.fn, "")
	incr := llvm.AddBasicBlock(g.fn, "")
	after := llvm.AddBasicBlock(g.fn, "")

	g.b.CreateBr(cond)
	g.loops.Push(loopContext{cont: incr, brk: after})

	g.b.SetInsertPointAtEnd(cond)
	v := g.b.CreateLoad(slot, n.Text)
	c := g.b.CreateICmp(llvm.IntSLT, v, end, "")
	g.b.CreateCondBr(c, body, after)

	g.b.SetInsertPointAtEnd(body)
	term, err := g.genStatements(n.Body)
	if err != nil {
		g.loops.Pop()
		return err
	}
	if !term {
		g.b.CreateBr(incr)
	}

	g.b.SetInsertPointAtEnd(incr)
	v = g.b.CreateLoad(slot, n.Text)
	v = g.b.CreateAdd(v, llvm.ConstInt(typ, 1, false), "")
	g.b.CreateStore(v, slot)
	g.b.CreateBr(cond)

	g.loops.Pop()
	g.b.SetInsertPointAtEnd(after)

	// Restore the binding the loop variable shadowed.
	if shadowed {
		g.env[n.Text] = shadow
	} else {
		delete(g.env, n.Text)
	}
	return nil
}

// genCondition lowers a condition expression and coerces it to a 1-bit value
// by comparing against zero.
func (g *generator) genCondition(n *ir.Expr) (llvm.Value, error) {
	v, err := g.genExpression(n)
	if err != nil {
		return llvm.Value{}, err
	}
	if v.Type().TypeKind() != llvm.IntegerTypeKind {
		return llvm.Value{}, fmt.Errorf("line %d: condition is not an integer", n.Line)
	}
	return g.b.CreateICmp(llvm.IntNE, v, llvm.ConstNull(v.Type()), ""), nil
}

// widen reconciles the integer widths of two operands by sign extending the
// narrower one. Number literals narrow to the smallest fitting width, so
// operand widths routinely disagree.
func (g *generator) widen(l, r llvm.Value, line int) (llvm.Value, llvm.Value, error) {
	lt, rt := l.Type(), r.Type()
	if lt == rt {
		return l, r, nil
	}
	if lt.TypeKind() != llvm.IntegerTypeKind || rt.TypeKind() != llvm.IntegerTypeKind {
		return l, r, fmt.Errorf("line %d: mismatched operand types", line)
	}
	if lt.IntTypeWidth() < rt.IntTypeWidth() {
		return g.b.CreateSExt(l, rt, ""), r, nil
	}
	return l, g.b.CreateSExt(r, lt, ""), nil
}

// coerce adjusts an integer value to the given integer type by sign
// extension or truncation. Identical types pass through; non-integer
// mismatches are errors.
func (g *generator) coerce(v llvm.Value, typ llvm.Type, line int) (llvm.Value, error) {
	vt := v.Type()
	if vt == typ {
		return v, nil
	}
	if vt.TypeKind() != llvm.IntegerTypeKind || typ.TypeKind() != llvm.IntegerTypeKind {
		return llvm.Value{}, fmt.Errorf("line %d: mismatched types", line)
	}
	if vt.IntTypeWidth() < typ.IntTypeWidth() {
		return g.b.CreateSExt(v, typ, ""), nil
	}
	return g.b.CreateTrunc(v, typ, ""), nil
}
