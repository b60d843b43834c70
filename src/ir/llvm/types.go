// types.go lowers textual type names to their LLVM representation. The str
// type and every slice form []T lower to the anonymous two-field aggregate
// {pointer-to-element, 64-bit length}.

package llvm

import (
	"fmt"
	"strings"

	"tinygo.org/x/go-llvm"
)

// genType lowers a textual type name to its LLVM type.
func (g *generator) genType(name string, line int) (llvm.Type, error) {
	switch name {
	case "u8", "i8":
		return g.ctx.Int8Type(), nil
	case "u16", "i16":
		return g.ctx.Int16Type(), nil
	case "u32", "i32":
		return g.ctx.Int32Type(), nil
	case "bool":
		return g.ctx.Int1Type(), nil
	case "str":
		return g.sliceType(g.ctx.Int8Type()), nil
	}
	if strings.HasPrefix(name, "[]") {
		elem, err := g.genType(name[2:], line)
		if err != nil {
			return llvm.Type{}, err
		}
		return g.sliceType(elem), nil
	}
	return llvm.Type{}, fmt.Errorf("line %d: unknown type name %q", line, name)
}

// sliceType returns the slice aggregate {pointer-to-elem, i64}.
func (g *generator) sliceType(elem llvm.Type) llvm.Type {
	return g.ctx.StructType([]llvm.Type{llvm.PointerType(elem, 0), g.ctx.Int64Type()}, false)
}

// isSlice reports whether typ is a slice aggregate.
func isSlice(typ llvm.Type) bool {
	return typ.TypeKind() == llvm.StructTypeKind
}

// narrowType returns the narrowest primitive integer type whose signed or
// unsigned range contains v.
func (g *generator) narrowType(v int64) llvm.Type {
	switch {
	case v >= -128 && v <= 255:
		return g.ctx.Int8Type()
	case v >= -32768 && v <= 65535:
		return g.ctx.Int16Type()
	case v >= -2147483648 && v <= 4294967295:
		return g.ctx.Int32Type()
	}
	return g.ctx.Int64Type()
}
