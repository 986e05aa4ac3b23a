package consteval

import (
	"strings"
	"testing"
)

func mustContain(t *testing.T, s, sub string) {
	t.Helper()
	if !strings.Contains(s, sub) {
		t.Fatalf("expected output to contain %q\n--- output ---\n%s", sub, s)
	}
}

func Test_Collector_PreservesOrder(t *testing.T) {
	c := &Collector{}
	c.Report(TypeBoolRequired, Span{Start: 1, End: 2})
	c.Report(EvalThrowsException, Span{Start: 5, End: 7}, "boom")
	if !c.HasErrors() || len(c.Diags) != 2 {
		t.Fatalf("expected 2 diagnostics, got %v", c.Diags)
	}
	if c.Diags[0].Code != TypeBoolRequired || c.Diags[1].Code != EvalThrowsException {
		t.Fatalf("order not preserved: %v", c.Diags)
	}
}

func Test_Diagnostic_Messages(t *testing.T) {
	d := Diagnostic{Code: EvalThrowsException, Args: []any{"integer division by zero"}}
	mustContain(t, d.Message(), "integer division by zero")

	d = Diagnostic{Code: ConstNotAssignable, Args: []any{"String", "int"}}
	mustContain(t, d.Message(), "'String'")
	mustContain(t, d.Message(), "'int'")

	d = Diagnostic{Code: TypeBoolIntRequired}
	mustContain(t, d.Message(), "'bool' or 'int'")
}

func Test_ErrorCode_StableNames(t *testing.T) {
	cases := map[ErrorCode]string{
		InvalidConstant:          "INVALID_CONSTANT",
		EvalThrowsException:      "CONST_EVAL_THROWS_EXCEPTION",
		TypeBoolRequired:         "CONST_EVAL_TYPE_BOOL",
		TypeBoolIntRequired:      "CONST_EVAL_TYPE_BOOL_INT",
		TypeNumRequired:          "CONST_EVAL_TYPE_NUM",
		TypeIntRequired:          "CONST_EVAL_TYPE_INT",
		TypeStringRequired:       "CONST_EVAL_TYPE_STRING",
		RecursiveConstant:        "RECURSIVE_COMPILE_TIME_CONSTANT",
		RecursiveConstructorCall: "RECURSIVE_CONSTANT_CONSTRUCTOR",
	}
	for code, want := range cases {
		if got := code.String(); got != want {
			t.Fatalf("%d.String() = %q, want %q", int(code), got, want)
		}
	}
}

func Test_RenderDiagnostic_CaretAndContext(t *testing.T) {
	src := "const x =\n  true & 1\nconst y = 2"
	// The binary expression starts at the 'true' on line 2 (offset 12).
	d := Diagnostic{Code: TypeBoolIntRequired, Span: Span{Start: 12, End: 20}}
	out := RenderDiagnostic(src, d)

	mustContain(t, out, "CONST ERROR at 2:3:")
	mustContain(t, out, "   1 | const x =")
	mustContain(t, out, "   2 |   true & 1")
	mustContain(t, out, "   3 | const y = 2")
	// Caret sits under column 3.
	mustContain(t, out, "     |   ^")
}

func Test_RenderDiagnostic_ClampsOutOfRangeSpans(t *testing.T) {
	src := "x"
	d := Diagnostic{Code: InvalidConstant, Span: Span{Start: 999, End: 1000}}
	out := RenderDiagnostic(src, d)
	mustContain(t, out, "CONST ERROR at")
	mustContain(t, out, "^")
}

func Test_EvalError_ErrorString(t *testing.T) {
	err := &EvalError{Code: EvalThrowsException, Args: []any{"negative shift amount"}}
	mustContain(t, err.Error(), "negative shift amount")
}

func Test_Span_LineCol(t *testing.T) {
	src := "ab\ncde\nf"
	cases := []struct {
		off, line, col int
	}{
		{0, 1, 1}, {1, 1, 2}, {3, 2, 1}, {5, 2, 3}, {7, 3, 1},
	}
	for _, tc := range cases {
		line, col := LineCol(src, tc.off)
		if line != tc.line || col != tc.col {
			t.Fatalf("LineCol(%d) = %d:%d, want %d:%d", tc.off, line, col, tc.line, tc.col)
		}
	}
}

func Test_Span_Cover(t *testing.T) {
	a := NewSpan(3, 5)
	b := NewSpan(1, 4)
	got := a.Cover(b)
	if got.Start != 1 || got.End != 5 {
		t.Fatalf("Cover = %+v", got)
	}
}
