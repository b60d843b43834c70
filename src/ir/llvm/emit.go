// emit.go drives the LLVM target machine to compile a generated module into
// a host object file.

package llvm

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
	"tinygo.org/x/go-llvm"

	"jamc/src/util"
)

// EmitObject compiles module m for the build target and writes the resulting
// object code to the output file. When no output path is given the object is
// written to the working directory as <src>.o, where <src> is the source
// file's base name without its extension, or as a.o when there is no source
// path.
func EmitObject(opt util.Options, tgt util.Target, m llvm.Module) error {
	// Initialise LLVM code generation.
	llvm.InitializeAllTargetInfos()
	llvm.InitializeAllTargets()
	llvm.InitializeAllTargetMCs()
	llvm.InitializeAllAsmParsers()
	llvm.InitializeAllAsmPrinters()

	triple := tgt.TripleString()
	glog.V(1).Infof("emitting object code for target %s", triple)

	t, err := llvm.GetTargetFromTriple(triple)
	if err != nil {
		return err
	}

	reloc := llvm.RelocDefault
	if tgt.RequiresPIC() || tgt.RequiresPIE() {
		reloc = llvm.RelocPIC
	}

	tm := t.CreateTargetMachine(triple, "generic", "",
		llvm.CodeGenLevelNone,
		reloc,
		llvm.CodeModelDefault)
	defer tm.Dispose()

	td := tm.CreateTargetData()
	defer td.Dispose()

	m.SetDataLayout(td.String())
	m.SetTarget(tm.Triple())

	// Compile target and store in memory.
	buf, err := tm.EmitToMemoryBuffer(m, llvm.ObjectFile)
	if err != nil {
		return fmt.Errorf("backend cannot emit object code: %s", err)
	} else if buf.IsNil() {
		return errors.New("could not emit compiled code to memory")
	}

	out := opt.Out
	if len(out) == 0 {
		if len(opt.Src) > 0 {
			out = fmt.Sprintf("./%s.o", strings.TrimSuffix(filepath.Base(opt.Src), filepath.Ext(opt.Src)))
		} else {
			out = "./a.o"
		}
	}
	return util.WriteFile(out, buf.Bytes())
}
