// Tests the recursive descent parser against well-formed and malformed Jam
// programs. Structural expectations were worked out by hand from the
// grammar.

package frontend

import (
	"strings"
	"testing"

	"jamc/src/ir"
)

// TestParseFunctionCount verifies that every well-formed program parses to a
// function list whose length equals the number of top level fn keywords.
func TestParseFunctionCount(t *testing.T) {
	tests := []struct {
		src   string
		count int
	}{
		{src: "fn main() -> u32 { return 0; }", count: 1},
		{src: "fn a() {} fn b() {} fn c() {}", count: 3},
		{src: "extern fn puts(s: str) -> i32; fn main() -> u32 { return 0; }", count: 2},
		{src: "export fn api() -> u8 { return 1; } fn helper() {}", count: 2},
	}
	for _, tc := range tests {
		funcs, err := Parse(tc.src)
		if err != nil {
			t.Errorf("%q: parse failed: %s", tc.src, err)
			continue
		}
		if len(funcs) != tc.count {
			t.Errorf("%q: parsed %d functions, expected %d", tc.src, len(funcs), tc.count)
		}
	}
}

// TestParseFunction verifies the parsed shape of a representative function.
func TestParseFunction(t *testing.T) {
	funcs, err := Parse("fn add(a: u32, b: u32) -> u32 { return a + b; }")
	if err != nil {
		t.Fatalf("parse failed: %s", err)
	}
	f := funcs[0]
	if f.Name != "add" || f.Extern || f.Export {
		t.Fatalf("unexpected function record: %+v", f)
	}
	if len(f.Params) != 2 || f.Params[0] != (ir.Param{Name: "a", Type: "u32"}) ||
		f.Params[1] != (ir.Param{Name: "b", Type: "u32"}) {
		t.Fatalf("unexpected parameters: %+v", f.Params)
	}
	if f.ReturnType != "u32" {
		t.Fatalf("unexpected return type %q", f.ReturnType)
	}
	if len(f.Body) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(f.Body))
	}
	ret := f.Body[0]
	if ret.Kind != ir.RETURN || ret.Left == nil {
		t.Fatalf("expected a return statement, got %s", ret)
	}
	sum := ret.Left
	if sum.Kind != ir.BINARY || sum.Op != "+" {
		t.Fatalf("expected a binary addition, got %s", sum)
	}
	if sum.Left.Kind != ir.VARIABLE || sum.Left.Text != "a" ||
		sum.Right.Kind != ir.VARIABLE || sum.Right.Text != "b" {
		t.Fatalf("unexpected operands: %s, %s", sum.Left, sum.Right)
	}
}

// TestParseExtern verifies extern declarations and that extern bodies are
// rejected.
func TestParseExtern(t *testing.T) {
	funcs, err := Parse("extern fn puts(s: str) -> i32;")
	if err != nil {
		t.Fatalf("parse failed: %s", err)
	}
	f := funcs[0]
	if !f.Extern || f.Export {
		t.Fatalf("unexpected flags on extern function: %+v", f)
	}
	if len(f.Body) != 0 {
		t.Fatalf("extern function carries a body")
	}

	// A body instead of the terminating semicolon is a parse error.
	if _, err := Parse("extern fn puts(s: str) -> i32 { return 0; }"); err == nil {
		t.Error("expected a parse error for an extern function with a body")
	}
}

// TestParseTypes verifies primitive, slice and nested slice type parsing and
// the default declaration type.
func TestParseTypes(t *testing.T) {
	funcs, err := Parse(`fn f(a: []u8, b: [][]i32, c: str) {
	var x;
	const y: bool = true;
	var z: []str;
}`)
	if err != nil {
		t.Fatalf("parse failed: %s", err)
	}
	f := funcs[0]
	if f.Params[0].Type != "[]u8" || f.Params[1].Type != "[][]i32" || f.Params[2].Type != "str" {
		t.Fatalf("unexpected parameter types: %+v", f.Params)
	}
	if f.ReturnType != "" {
		t.Fatalf("expected void return, got %q", f.ReturnType)
	}
	decls := f.Body
	if len(decls) != 3 {
		t.Fatalf("expected 3 declarations, got %d", len(decls))
	}
	if decls[0].Kind != ir.VAR_DECL || decls[0].Type != "u8" || decls[0].Const || decls[0].Left != nil {
		t.Errorf("var x: got %s with type %q", decls[0], decls[0].Type)
	}
	if decls[1].Kind != ir.VAR_DECL || decls[1].Type != "bool" || !decls[1].Const || decls[1].Left == nil {
		t.Errorf("const y: got %s with type %q", decls[1], decls[1].Type)
	}
	if decls[2].Type != "[]str" {
		t.Errorf("var z: got type %q, expected []str", decls[2].Type)
	}
}

// TestParseControlFlow verifies the parsed shape of if, while, for, break and
// continue statements.
func TestParseControlFlow(t *testing.T) {
	funcs, err := Parse(`fn main() -> u32 {
	var n: u32 = 0;
	if (n == 0) {
		helper();
	} else {
		n
	}
	while (n < 5) {
		break;
	}
	for i in 0:3 {
		continue;
	}
	return n;
}
fn helper() {}`)
	if err != nil {
		t.Fatalf("parse failed: %s", err)
	}
	body := funcs[0].Body
	if len(body) != 5 {
		t.Fatalf("expected 5 statements, got %d", len(body))
	}

	iff := body[1]
	if iff.Kind != ir.IF || iff.Left.Kind != ir.BINARY || iff.Left.Op != "==" {
		t.Errorf("unexpected if statement: %s", iff)
	}
	if len(iff.Body) != 1 || iff.Body[0].Kind != ir.CALL ||
		len(iff.Else) != 1 || iff.Else[0].Kind != ir.VARIABLE {
		t.Errorf("unexpected if branches: then %d, else %d", len(iff.Body), len(iff.Else))
	}

	whl := body[2]
	if whl.Kind != ir.WHILE || whl.Left.Op != "<" {
		t.Errorf("unexpected while statement: %s", whl)
	}
	if len(whl.Body) != 1 || whl.Body[0].Kind != ir.BREAK {
		t.Errorf("unexpected while body")
	}

	fr := body[3]
	if fr.Kind != ir.FOR || fr.Text != "i" {
		t.Errorf("unexpected for statement: %s", fr)
	}
	if fr.Left.Kind != ir.NUMBER || fr.Left.Num != 0 || fr.Right.Kind != ir.NUMBER || fr.Right.Num != 3 {
		t.Errorf("unexpected for range: %s : %s", fr.Left, fr.Right)
	}
	if len(fr.Body) != 1 || fr.Body[0].Kind != ir.CONTINUE {
		t.Errorf("unexpected for body")
	}
}

// TestParseNumbers verifies 64-bit literal decoding and the overflow parse
// error.
func TestParseNumbers(t *testing.T) {
	funcs, err := Parse("fn f() -> i32 { return -9223372036854775808; }")
	if err != nil {
		t.Fatalf("parse failed: %s", err)
	}
	if got := funcs[0].Body[0].Left.Num; got != -9223372036854775808 {
		t.Errorf("literal decoded as %d", got)
	}

	if _, err := Parse("fn f() -> i32 { return 9223372036854775808; }"); err == nil {
		t.Error("expected an overflow parse error")
	} else if !strings.Contains(err.Error(), "out of 64-bit range") {
		t.Errorf("unexpected overflow error: %s", err)
	}
}

// TestParseErrors verifies that malformed programs abort the parse with a
// line-annotated diagnostic.
func TestParseErrors(t *testing.T) {
	tests := []string{
		"fn",
		"fn main( { }",
		"fn main() -> { }",
		"fn main() -> u32 { return 0 }",
		"fn main() { var x: []; }",
		"fn main() { var x: foo; }",
		"fn main() { if n == 0 { } }",
		"fn main() { for i in 0 3 { } }",
		"fn main() { break }",
		"main() {}",
		"extern export fn f();",
		"fn f(a: u32, a: u32) {}",
	}
	for _, src := range tests {
		if _, err := Parse(src); err == nil {
			t.Errorf("%q: expected a parse error, got none", src)
		} else if !strings.Contains(err.Error(), "line ") {
			t.Errorf("%q: diagnostic carries no line: %s", src, err)
		}
	}
}

// TestParseRejectsAssignment verifies that the reassignment form is rejected
// rather than silently accepted; the dialect has no assignment statement.
func TestParseRejectsAssignment(t *testing.T) {
	src := `fn main() -> u32 {
	var i: u32 = 0;
	while (i < 5) {
		if (i == 2) { break; }
		i = i + 1;
	}
	return i;
}`
	if _, err := Parse(src); err == nil {
		t.Error("expected the reassignment form to be rejected")
	}
}
