// cabi.go maps the language's linkage modifiers and external name conventions
// onto LLVM function attributes, linkage and calling conventions for a given
// build target. The mutual exclusivity of extern and export is enforced by
// the parser; the helpers here trust their inputs.

package llvm

import (
	"tinygo.org/x/go-llvm"

	"jamc/src/ir"
	"jamc/src/util"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// cabi answers C ABI questions for one build target.
type cabi struct {
	t util.Target
}

// ---------------------
// ----- Constants -----
// ---------------------

// win64CallConv is LLVMWin64CallConv. The binding does not export it.
const win64CallConv = llvm.CallConv(79)

// ---------------------
// ----- functions -----
// ---------------------

// callingConvention returns the platform C calling convention. Windows
// targets with the msvc ABI use the Windows x64 convention.
func (c cabi) callingConvention() llvm.CallConv {
	if c.t.OS == util.Windows && c.t.ABI == util.ABIMsvc {
		return win64CallConv
	}
	return llvm.CCallConv
}

// applyFunctionAttributes sets the calling convention on fn. Windows msvc
// functions keep the default storage class.
func (c cabi) applyFunctionAttributes(fn llvm.Value) {
	fn.SetFunctionCallConv(c.callingConvention())
}

// externName returns the platform-mangled symbol for a source-level name.
// Identity on every supported target; kept as the single point to evolve.
func (c cabi) externName(name string) string {
	return name
}

// createExternFunction declares name in module m with external linkage,
// default visibility and the target's function attributes applied.
func (c cabi) createExternFunction(m llvm.Module, name string, typ llvm.Type) llvm.Value {
	fn := llvm.AddFunction(m, c.externName(name), typ)
	fn.SetLinkage(llvm.ExternalLinkage)
	fn.SetVisibility(llvm.DefaultVisibility)
	c.applyFunctionAttributes(fn)
	return fn
}

// linkage selects the IR linkage of a user function. Extern and export
// definitions get external linkage, as does the function named main, which
// is implicitly exported; every other user function is internal to the
// module.
func (c cabi) linkage(f *ir.Function) llvm.Linkage {
	if f.Extern || f.Export || f.Name == "main" {
		return llvm.ExternalLinkage
	}
	return llvm.InternalLinkage
}
