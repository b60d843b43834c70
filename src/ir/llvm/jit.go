// jit.go executes a generated module in-process through LLVM's MCJIT. The
// execution engine locates the function named main and invokes it with no
// arguments; the process exit status is main's integer return, or success
// when main is void.

package llvm

import (
	"errors"

	"github.com/golang/glog"
	"tinygo.org/x/go-llvm"
)

// RunMain JIT compiles module m and executes its main function, returning
// the exit status. The execution engine takes ownership of the module.
func RunMain(m llvm.Module) (int, error) {
	llvm.LinkInMCJIT()
	if err := llvm.InitializeNativeTarget(); err != nil {
		return 1, err
	}
	if err := llvm.InitializeNativeAsmPrinter(); err != nil {
		return 1, err
	}

	main := m.NamedFunction("main")
	if main.IsNil() {
		return 1, errors.New("module does not define a main function")
	}
	void := main.Type().ElementType().ReturnType().TypeKind() == llvm.VoidTypeKind

	opts := llvm.NewMCJITCompilerOptions()
	opts.SetMCJITOptimizationLevel(0)
	ee, err := llvm.NewMCJITCompiler(m, opts)
	if err != nil {
		return 1, err
	}
	defer ee.Dispose()

	glog.V(1).Info("running main through MCJIT")
	res := ee.RunFunction(main, nil)
	if void {
		return 0, nil
	}
	return int(int32(res.Int(false))), nil
}
