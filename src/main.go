package main

import (
	"fmt"
	"os"

	"github.com/golang/glog"

	"jamc/src/frontend"
	"jamc/src/ir/llvm"
	"jamc/src/util"
)

// run begins reading source code and executes compiler stages.
// Behaviour is defined by the util.Options structure. The returned integer
// is the process exit status; in run mode it is the executed program's own
// return value.
func run(opt util.Options) (int, error) {
	// Resolve the build target once; it is read-only from here on.
	tgt := util.HostTarget()
	if len(opt.Triple) > 0 {
		tgt = util.NewTarget(opt.Triple)
	}

	// If --target-info was passed: describe the build target and exit.
	if opt.TargetInfo {
		fmt.Printf("target:        %s\n", tgt.Name())
		fmt.Printf("triple:        %s\n", tgt.TripleString())
		fmt.Printf("pointer size:  %d\n", tgt.PointerSize())
		fmt.Printf("libc:          %s\n", tgt.LibcName())
		return 0, nil
	}

	// Read source code.
	src, err := util.ReadSource(opt)
	if err != nil {
		return 1, fmt.Errorf("could not read source code: %s", err)
	}

	// If -ts flag was passed: output token stream and exit.
	if opt.TokenStream {
		s, err := frontend.TokenStream(src)
		if err != nil {
			return 1, err
		}
		fmt.Print(s)
		return 0, nil
	}

	// Generate syntax tree by scanning and parsing source code.
	funcs, err := frontend.Parse(src)
	if err != nil {
		return 1, err
	}

	// Generate LLVM IR and either JIT execute or emit an object file.
	return llvm.GenLLVM(opt, tgt, funcs)
}

func main() {
	defer glog.Flush()

	// Parse command line arguments.
	opt, err := util.ParseArgs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "command line argument error: %s\n", err)
		os.Exit(1)
	}

	status, err := run(opt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
	os.Exit(status)
}
