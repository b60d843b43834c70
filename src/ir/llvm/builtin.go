// builtin.go intercepts the print builtins and lowers them onto the C
// library. The libc declarations are added to the module the first time each
// builtin needs them.

package llvm

import (
	"fmt"

	"tinygo.org/x/go-llvm"

	"jamc/src/ir"
)

// isBuiltin reports whether name resolves to an intercepted print builtin
// rather than a user function. The scanner keeps these names as plain
// identifiers.
func isBuiltin(name string) bool {
	switch name {
	case "print", "println", "printf":
		return true
	}
	return false
}

// genBuiltin lowers a call to one of the print builtins. println(x) writes x
// and a newline through puts; print(x) writes x through printf with a "%s"
// format. A slice argument contributes its pointer field.
func (g *generator) genBuiltin(n *ir.Expr) (llvm.Value, error) {
	switch {
	case n.Text == "println" && len(n.Args) == 1:
		arg, err := g.genExpression(n.Args[0])
		if err != nil {
			return llvm.Value{}, err
		}
		if isSlice(arg.Type()) {
			arg = g.b.CreateExtractValue(arg, 0, "")
		}
		return g.b.CreateCall(g.libcPuts(), []llvm.Value{arg}, ""), nil
	case n.Text == "print" && len(n.Args) == 1:
		arg, err := g.genExpression(n.Args[0])
		if err != nil {
			return llvm.Value{}, err
		}
		if isSlice(arg.Type()) {
			arg = g.b.CreateExtractValue(arg, 0, "")
		}
		frmt := g.b.CreateGlobalStringPtr("%s", stringPrefix)
		return g.b.CreateCall(g.libcPrintf(), []llvm.Value{frmt, arg}, ""), nil
	}
	return llvm.Value{}, fmt.Errorf("line %d: %s with %d arguments is not implemented",
		n.Line, n.Text, len(n.Args))
}

// libcPuts returns the C library puts declaration, creating it on first use.
func (g *generator) libcPuts() llvm.Value {
	if fn := g.m.NamedFunction("puts"); !fn.IsNil() {
		return fn
	}
	args := []llvm.Type{llvm.PointerType(g.ctx.Int8Type(), 0)}
	ftyp := llvm.FunctionType(g.ctx.Int32Type(), args, false)
	return g.abi.createExternFunction(g.m, "puts", ftyp)
}

// libcPrintf returns the variadic C library printf declaration, creating it
// on first use.
func (g *generator) libcPrintf() llvm.Value {
	if fn := g.m.NamedFunction("printf"); !fn.IsNil() {
		return fn
	}
	args := []llvm.Type{llvm.PointerType(g.ctx.Int8Type(), 0)}
	ftyp := llvm.FunctionType(g.ctx.Int32Type(), args, true)
	return g.abi.createExternFunction(g.m, "printf", ftyp)
}
