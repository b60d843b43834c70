// Tests the code generator by lowering small Jam programs for the host
// target and verifying the structural well-formedness of the generated
// modules, the linkage rules, and the diagnostics of rejected programs.

package llvm

import (
	"strings"
	"testing"

	"tinygo.org/x/go-llvm"

	"jamc/src/frontend"
	"jamc/src/util"
)

// helperGenerate parses src and generates an LLVM module for the host
// target. The caller owns the returned context and module.
func helperGenerate(t *testing.T, src string) (llvm.Context, llvm.Module) {
	t.Helper()
	funcs, err := frontend.Parse(src)
	if err != nil {
		t.Fatalf("parse failed: %s", err)
	}
	ctx, m, err := Generate(util.Options{Src: "test.jam"}, util.HostTarget(), funcs)
	if err != nil {
		t.Fatalf("generate failed: %s", err)
	}
	return ctx, m
}

// helperGenerateError parses src and expects code generation to fail with a
// message containing want.
func helperGenerateError(t *testing.T, src, want string) {
	t.Helper()
	funcs, err := frontend.Parse(src)
	if err != nil {
		t.Fatalf("parse failed: %s", err)
	}
	_, _, err = Generate(util.Options{Src: "test.jam"}, util.HostTarget(), funcs)
	if err == nil {
		t.Fatalf("expected a code generation error containing %q, got none", want)
	}
	if !strings.Contains(err.Error(), want) {
		t.Fatalf("expected error containing %q, got: %s", want, err)
	}
}

// TestGenerateWellFormed verifies that every accepted program produces a
// module passing structural verification.
func TestGenerateWellFormed(t *testing.T) {
	tests := []string{
		"fn main() -> u32 { return 0; }",
		"fn add(a: u32, b: u32) -> u32 { return a + b; } fn main() -> u32 { return add(2, 3); }",
		`fn main() -> u32 { for i in 0:3 { println("hi"); } return 0; }`,
		`extern fn puts(s: str) -> i32; fn main() -> u32 { puts("ok"); return 0; }`,
		`fn main() -> u32 {
	var i: u32 = 0;
	while (i < 5) {
		if (i == 2) { break; }
		continue;
	}
	return i;
}`,
		`fn main() -> u32 {
	const s: str = "text";
	var flag: bool = true;
	if (flag) { print(s); } else { println(s); }
	return 0;
}`,
		`fn f() -> i16 { return -300; }
fn main() -> u32 {
	for i in 0:10 {
		for j in 0:i {
			if (j >= 3) { continue; }
		}
		if (i == 5) { break; }
	}
	return 0;
}`,
		`fn sink(v: []u16) {} fn main() { var xs: []u16; sink(xs); }`,
		`fn pick(flag: bool) -> u32 {
	if (flag) { return 1; } else { return 2; }
}
fn main() -> u32 { return pick(false); }`,
	}
	for _, src := range tests {
		ctx, m := helperGenerate(t, src)
		if err := llvm.VerifyModule(m, llvm.ReturnStatusAction); err != nil {
			t.Errorf("%q: module failed verification: %s", src, err)
		}
		m.Dispose()
		ctx.Dispose()
	}
}

// TestLinkageRule verifies that main and extern/export functions get
// external linkage while every other user function is internal.
func TestLinkageRule(t *testing.T) {
	src := `extern fn puts(s: str) -> i32;
export fn api() {}
fn helper() -> u32 { return 7; }
fn main() -> u32 { api(); puts("x"); return helper(); }`
	ctx, m := helperGenerate(t, src)
	defer ctx.Dispose()
	defer m.Dispose()

	tests := []struct {
		name    string
		linkage llvm.Linkage
		decl    bool
	}{
		{name: "puts", linkage: llvm.ExternalLinkage, decl: true},
		{name: "api", linkage: llvm.ExternalLinkage},
		{name: "helper", linkage: llvm.InternalLinkage},
		{name: "main", linkage: llvm.ExternalLinkage},
	}
	for _, tc := range tests {
		fn := m.NamedFunction(tc.name)
		if fn.IsNil() {
			t.Errorf("function %q missing from module", tc.name)
			continue
		}
		if fn.Linkage() != tc.linkage {
			t.Errorf("function %q has linkage %d, expected %d", tc.name, fn.Linkage(), tc.linkage)
		}
		if fn.IsDeclaration() != tc.decl {
			t.Errorf("function %q: IsDeclaration() = %v, expected %v", tc.name, fn.IsDeclaration(), tc.decl)
		}
		if fn.FunctionCallConv() != llvm.CCallConv {
			t.Errorf("function %q does not use the C calling convention", tc.name)
		}
	}
}

// TestComparisonLowering verifies the unsigned relational compare and the
// signed for-loop bound compare.
func TestComparisonLowering(t *testing.T) {
	ctx, m := helperGenerate(t, `fn less(a: u32, b: u32) -> bool { return a < b; }
fn count() { for i in 0:3 { } }
fn main() -> u32 { return 0; }`)
	defer ctx.Dispose()
	defer m.Dispose()

	s := m.String()
	if !strings.Contains(s, "icmp ult") {
		t.Error("relational compare did not lower to an unsigned icmp")
	}
	if !strings.Contains(s, "icmp slt") {
		t.Error("for-loop bound did not lower to a signed icmp")
	}
}

// TestStringLowering verifies the private constant global and the slice
// aggregate wrapping of string literals.
func TestStringLowering(t *testing.T) {
	ctx, m := helperGenerate(t, `fn main() -> u32 { println("hello"); return 0; }`)
	defer ctx.Dispose()
	defer m.Dispose()

	s := m.String()
	if !strings.Contains(s, "private") || !strings.Contains(s, `c"hello\00"`) {
		t.Errorf("string literal is not a private null-terminated global:\n%s", s)
	}
	if puts := m.NamedFunction("puts"); puts.IsNil() || !puts.IsDeclaration() {
		t.Error("println did not declare libc puts")
	}
}

// TestNumberNarrowing verifies the literal width selection over the signed
// and unsigned range boundaries.
func TestNumberNarrowing(t *testing.T) {
	g := &generator{ctx: llvm.NewContext()}
	defer g.ctx.Dispose()

	tests := []struct {
		v     int64
		width int
	}{
		{v: 0, width: 8},
		{v: 255, width: 8},
		{v: -128, width: 8},
		{v: 256, width: 16},
		{v: -129, width: 16},
		{v: 65535, width: 16},
		{v: -32768, width: 16},
		{v: 65536, width: 32},
		{v: -32769, width: 32},
		{v: 4294967295, width: 32},
		{v: -2147483648, width: 32},
		{v: 4294967296, width: 64},
		{v: -2147483649, width: 64},
	}
	for _, tc := range tests {
		if got := g.narrowType(tc.v).IntTypeWidth(); got != tc.width {
			t.Errorf("literal %d narrowed to %d bits, expected %d", tc.v, got, tc.width)
		}
	}
}

// TestSemanticErrors verifies the diagnostics of rejected programs.
func TestSemanticErrors(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{src: "fn main() { break; }", want: "break outside a loop"},
		{src: "fn main() { continue; }", want: "continue outside a loop"},
		{src: "fn main() -> u32 { return x; }", want: "undeclared variable"},
		{src: "fn main() { missing(); }", want: "undeclared function"},
		{src: "fn f(a: u32) {} fn main() { f(); }", want: "expects 1 arguments, got 0"},
		{src: "fn f(a: u32) {} fn main() { f(1, 2); }", want: "expects 1 arguments, got 2"},
		{src: "fn main() { printf(1, 2); }", want: "not implemented"},
		{src: "fn f() {} fn f() {}", want: "duplicate declaration"},
		{src: "fn println(x: u8) {}", want: "reserved function name"},
		{src: "fn main() { return 1; }", want: "without a return type"},
		{src: `fn main() { for i in 0:"x" { } }`, want: "mismatched types"},
	}
	for _, tc := range tests {
		helperGenerateError(t, tc.src, tc.want)
	}
}

// TestForShadowRestore verifies that the for-loop variable binding is
// restored on loop exit: the outer variable is visible again and usable.
func TestForShadowRestore(t *testing.T) {
	ctx, m := helperGenerate(t, `fn main() -> u32 {
	var i: u32 = 9;
	for i in 0:3 { }
	return i;
}`)
	if err := llvm.VerifyModule(m, llvm.ReturnStatusAction); err != nil {
		t.Errorf("module failed verification: %s", err)
	}
	m.Dispose()
	ctx.Dispose()

	// Without an outer binding the loop variable must be gone after the loop.
	helperGenerateError(t, `fn main() -> u32 {
	for i in 0:3 { }
	return i;
}`, "undeclared variable")
}
