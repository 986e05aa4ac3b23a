package consteval

import (
	"testing"
)

// testEval parses one s-expression and evaluates it in a fresh session with
// the given defines (nil means no build environment at all).
func testEval(t *testing.T, src string, defines map[string]string) (Value, *Collector) {
	t.Helper()
	tp := NewTypeProvider()
	expr, err := ParseExpr(tp, src)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	var dv *DeclaredVariables
	if defines != nil {
		dv = NewDeclaredVariables(defines)
	}
	c := &Collector{}
	ev := NewEvaluator(tp, dv, c, Features{})
	return ev.Evaluate(expr), c
}

func evalOK(t *testing.T, src string) Value {
	t.Helper()
	v, c := testEval(t, src, map[string]string{})
	if c.HasErrors() {
		t.Fatalf("eval %q: unexpected diagnostics: %v", src, c.Diags)
	}
	if !v.IsValid() {
		t.Fatalf("eval %q: invalid result without diagnostics", src)
	}
	return v
}

func evalErr(t *testing.T, src string) *Collector {
	t.Helper()
	v, c := testEval(t, src, map[string]string{})
	if v.IsValid() {
		t.Fatalf("eval %q: expected failure, got %s", src, v.String())
	}
	if !c.HasErrors() {
		t.Fatalf("eval %q: invalid result but no diagnostics", src)
	}
	return c
}

func wantInt(t *testing.T, v Value, want int64) {
	t.Helper()
	got, ok := v.KnownInt()
	if !ok {
		t.Fatalf("expected int %d, got %s", want, v.String())
	}
	if got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func wantDouble(t *testing.T, v Value, want float64) {
	t.Helper()
	got, ok := v.KnownDouble()
	if !ok {
		t.Fatalf("expected double %v, got %s", want, v.String())
	}
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func wantBool(t *testing.T, v Value, want bool) {
	t.Helper()
	got, ok := v.KnownBool()
	if !ok {
		t.Fatalf("expected bool %v, got %s", want, v.String())
	}
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func wantString(t *testing.T, v Value, want string) {
	t.Helper()
	got, ok := v.KnownString()
	if !ok {
		t.Fatalf("expected string %q, got %s", want, v.String())
	}
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func wantCode(t *testing.T, c *Collector, code ErrorCode) {
	t.Helper()
	for _, d := range c.Diags {
		if d.Code == code {
			return
		}
	}
	t.Fatalf("expected diagnostic %s, got %v", code, c.Diags)
}

func wantUnknown(t *testing.T, v Value) {
	t.Helper()
	if !v.IsUnknown() {
		t.Fatalf("expected unknown value, got %s", v.String())
	}
}

// ---------------------------------------------------------------------------
// conditionals and short-circuit operators
// ---------------------------------------------------------------------------

func Test_Conditional_SelectsBranch(t *testing.T) {
	wantInt(t, evalOK(t, `(if true 1 2)`), 1)
	wantInt(t, evalOK(t, `(if false 1 2)`), 2)
}

func Test_Conditional_UnselectedBranchIsSilent(t *testing.T) {
	// The else branch divides by zero; a true condition must suppress it.
	v, c := testEval(t, `(if true 1 (~/ 1 0))`, map[string]string{})
	if c.HasErrors() {
		t.Fatalf("unselected branch leaked diagnostics: %v", c.Diags)
	}
	wantInt(t, v, 1)
}

func Test_Conditional_UnselectedBranch_ReportedWhenEnabled(t *testing.T) {
	tp := NewTypeProvider()
	expr, err := ParseExpr(tp, `(if true 1 (~/ 1 0))`)
	if err != nil {
		t.Fatal(err)
	}
	c := &Collector{}
	ev := NewEvaluator(tp, NewDeclaredVariables(nil), c, Features{ReportUnselectedBranch: true})
	v := ev.Evaluate(expr)
	wantInt(t, v, 1) // the value still comes from the selected branch
	wantCode(t, c, EvalThrowsException)
}

func Test_Conditional_NonBoolCondition(t *testing.T) {
	c := evalErr(t, `(if 1 2 3)`)
	wantCode(t, c, TypeBoolRequired)
}

func Test_Conditional_UnknownCondition_RequiresBothBranches(t *testing.T) {
	v, c := testEval(t, `(if (env-bool "f") 1 2)`, nil)
	if c.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", c.Diags)
	}
	wantUnknown(t, v)

	// With no env store both branches must evaluate; the throw surfaces.
	v2, c2 := testEval(t, `(if (has-env "f") 1 (~/ 1 0))`, nil)
	if v2.IsValid() {
		t.Fatalf("expected failure, got %s", v2.String())
	}
	wantCode(t, c2, EvalThrowsException)
}

func Test_Conditional_SuppressedBranchDoesNotPoisonDeclMemo(t *testing.T) {
	// Both branches reference the same throwing declaration. The unselected
	// branch evaluates it first with diagnostics discarded; the selected
	// branch must still re-evaluate and surface the throw instead of hitting
	// a silently memoized invalid.
	tp := NewTypeProvider()
	x := &VariableElement{
		Name:    "x",
		IsConst: true,
		Init:    &Binary{Op: "~/", Left: &IntLit{Value: 1}, Right: &IntLit{Value: 0}},
	}
	expr := &Conditional{
		Cond: &BoolLit{Value: false},
		Then: &Identifier{Name: "x", Decl: x},
		Else: &Identifier{Name: "x", Decl: x},
	}
	c := &Collector{}
	ev := NewEvaluator(tp, NewDeclaredVariables(nil), c, Features{})
	if v := ev.Evaluate(expr); v.IsValid() {
		t.Fatalf("expected failure, got %s", v.String())
	}
	wantCode(t, c, EvalThrowsException)
}

func Test_Logical_ShortCircuit(t *testing.T) {
	// The right side is not even a bool; a decisive left side never looks.
	wantBool(t, evalOK(t, `(&& false (~/ 1 0))`), false)
	wantBool(t, evalOK(t, `(|| true (~/ 1 0))`), true)
	wantBool(t, evalOK(t, `(&& true false)`), false)
	wantBool(t, evalOK(t, `(|| false true)`), true)
}

func Test_Logical_NonBoolOperand(t *testing.T) {
	wantCode(t, evalErr(t, `(&& true 1)`), TypeBoolRequired)
	wantCode(t, evalErr(t, `(|| 1 true)`), TypeBoolRequired)
}

func Test_Logical_UnknownAbsorption(t *testing.T) {
	// unknown && false is false, unknown || true is true.
	v, _ := testEval(t, `(&& (env-bool "f") false)`, nil)
	wantBool(t, v, false)
	v, _ = testEval(t, `(|| (env-bool "f") true)`, nil)
	wantBool(t, v, true)
	v, _ = testEval(t, `(&& (env-bool "f") true)`, nil)
	wantUnknown(t, v)
}

func Test_IfNull_ShortCircuit(t *testing.T) {
	wantInt(t, evalOK(t, `(?? 1 2)`), 1)
	wantInt(t, evalOK(t, `(?? null 2)`), 2)
	// A non-null left side never evaluates the right side.
	wantInt(t, evalOK(t, `(?? 1 (~/ 1 0))`), 1)
}

func Test_IfNull_InvalidLeftIsAnError(t *testing.T) {
	wantCode(t, evalErr(t, `(?? (~/ 1 0) 2)`), EvalThrowsException)
}

// ---------------------------------------------------------------------------
// string interpolation and length
// ---------------------------------------------------------------------------

func Test_StringInterp_Primitives(t *testing.T) {
	wantString(t, evalOK(t, `(str "n=" 42 " b=" true " x=" null)`), "n=42 b=true x=null")
}

func Test_StringInterp_UnknownPartMakesUnknownString(t *testing.T) {
	v, c := testEval(t, `(str "v=" (env-int "n"))`, nil)
	if c.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", c.Diags)
	}
	wantUnknown(t, v)
	if v.Type.String() != "String" {
		t.Fatalf("expected unknown String, got %s", v.Type.String())
	}
}

func Test_StringInterp_CollectionPartIsInvalid(t *testing.T) {
	wantCode(t, evalErr(t, `(str "xs=" (list 1 2))`), InvalidConstant)
}

func Test_StringLength_CodeUnits(t *testing.T) {
	wantInt(t, evalOK(t, `(length "abc")`), 3)
	// Astral characters count as two UTF-16 code units.
	wantInt(t, evalOK(t, `(length "a😀")`), 3)
}

// ---------------------------------------------------------------------------
// collection literals
// ---------------------------------------------------------------------------

func Test_List_SpreadAndIf(t *testing.T) {
	v := evalOK(t, `(list 1 (spread (list 2 3)) (when true 4 5) (when false 6))`)
	elems := v.Data.([]Value)
	if len(elems) != 4 {
		t.Fatalf("expected 4 elements, got %s", v.String())
	}
	for i, want := range []int64{1, 2, 3, 4} {
		wantInt(t, elems[i], want)
	}
}

func Test_List_NullAwareSpread(t *testing.T) {
	v := evalOK(t, `(list 1 (spread? null) 2)`)
	if len(v.Data.([]Value)) != 2 {
		t.Fatalf("null-aware spread contributed elements: %s", v.String())
	}
	wantCode(t, evalErr(t, `(list (spread null))`), EvalThrowsException)
}

func Test_Set_Deduplicates(t *testing.T) {
	v := evalOK(t, `(set 1 2 1 (spread (set 2 3)))`)
	if got := len(v.Data.(*SetData).Elems); got != 3 {
		t.Fatalf("expected 3 distinct elements, got %d (%s)", got, v.String())
	}
}

func Test_Map_LastValueFirstPosition(t *testing.T) {
	v := evalOK(t, `(map (entry "a" 1) (entry "b" 2) (entry "a" 3))`)
	m := v.Data.(*MapData)
	if m.Len() != 2 {
		t.Fatalf("expected 2 entries, got %s", v.String())
	}
	// "a" keeps its first position but the last value wins.
	wantString(t, m.Keys[0], "a")
	wantInt(t, m.Vals[0], 3)
	wantString(t, m.Keys[1], "b")
	wantInt(t, m.Vals[1], 2)
}

func Test_Map_SpreadMergesInOrder(t *testing.T) {
	v := evalOK(t, `(map (entry "a" 1) (spread (map (entry "a" 9) (entry "b" 2))))`)
	m := v.Data.(*MapData)
	wantInt(t, m.Vals[0], 9)
	wantInt(t, m.Vals[1], 2)
}

func Test_Collection_SiblingDiagnosticsAllSurface(t *testing.T) {
	c := evalErr(t, `(list (~/ 1 0) (% 1 0))`)
	if len(c.Diags) != 2 {
		t.Fatalf("expected both element failures reported, got %v", c.Diags)
	}
}

func Test_Collection_UnknownIfConditionIsInvalid(t *testing.T) {
	v, c := testEval(t, `(list (when (env-bool "f") 1))`, nil)
	if v.IsValid() {
		t.Fatalf("expected failure, got %s", v.String())
	}
	wantCode(t, c, InvalidConstant)
}

// ---------------------------------------------------------------------------
// identifiers: lexical environment, memoization, cycles
// ---------------------------------------------------------------------------

func Test_Identifier_LexicalEnvironment(t *testing.T) {
	tp := NewTypeProvider()
	expr, err := ParseExpr(tp, `(+ x 1)`)
	if err != nil {
		t.Fatal(err)
	}
	env := NewLexicalEnv(nil)
	env.Define("x", IntVal(tp, 41))
	c := &Collector{}
	ev := NewEvaluator(tp, NewDeclaredVariables(nil), c, Features{}).WithLexical(env)
	wantInt(t, ev.Evaluate(expr), 42)
}

func Test_Identifier_DeclarationMemoized(t *testing.T) {
	tp := NewTypeProvider()
	decl := &VariableElement{Name: "answer", IsConst: true, Init: &IntLit{Value: 42}}
	c := &Collector{}
	ev := NewEvaluator(tp, NewDeclaredVariables(nil), c, Features{})
	first := ev.Evaluate(&Identifier{Name: "answer", Decl: decl})
	second := ev.Evaluate(&Identifier{Name: "answer", Decl: decl})
	wantInt(t, first, 42)
	wantInt(t, second, 42)
	if !ConstEquals(first, second) {
		t.Fatalf("memoized evaluation differs: %s vs %s", first.String(), second.String())
	}
}

func Test_Identifier_SelfReferenceIsCyclic(t *testing.T) {
	tp := NewTypeProvider()
	decl := &VariableElement{Name: "x", IsConst: true}
	decl.Init = &Binary{Op: "+", Left: &Identifier{Name: "x", Decl: decl}, Right: &IntLit{Value: 1}}
	c := &Collector{}
	ev := NewEvaluator(tp, NewDeclaredVariables(nil), c, Features{})
	v := ev.Evaluate(&Identifier{Name: "x", Decl: decl})
	if v.IsValid() {
		t.Fatalf("expected cycle failure, got %s", v.String())
	}
	wantCode(t, c, RecursiveConstant)
}

func Test_Identifier_MutualRecursionIsCyclic(t *testing.T) {
	tp := NewTypeProvider()
	a := &VariableElement{Name: "a", IsConst: true}
	b := &VariableElement{Name: "b", IsConst: true}
	a.Init = &Identifier{Name: "b", Decl: b}
	b.Init = &Identifier{Name: "a", Decl: a}
	c := &Collector{}
	ev := NewEvaluator(tp, NewDeclaredVariables(nil), c, Features{})
	if v := ev.Evaluate(&Identifier{Name: "a", Decl: a}); v.IsValid() {
		t.Fatalf("expected cycle failure, got %s", v.String())
	}
	wantCode(t, c, RecursiveConstant)
}

func Test_Identifier_NonConstDeclIsInvalid(t *testing.T) {
	tp := NewTypeProvider()
	decl := &VariableElement{Name: "x", Init: &IntLit{Value: 1}}
	c := &Collector{}
	ev := NewEvaluator(tp, NewDeclaredVariables(nil), c, Features{})
	if v := ev.Evaluate(&Identifier{Name: "x", Decl: decl}); v.IsValid() {
		t.Fatalf("expected failure for non-const declaration")
	}
	wantCode(t, c, InvalidConstant)
}

func Test_PropertyAccess_StaticConstField(t *testing.T) {
	tp := NewTypeProvider()
	decl := &VariableElement{Name: "max", IsConst: true, Init: &IntLit{Value: 100}}
	c := &Collector{}
	ev := NewEvaluator(tp, NewDeclaredVariables(nil), c, Features{})
	// The target is an unresolvable identifier; a resolved static const field
	// must bypass it entirely.
	v := ev.Evaluate(&PropertyAccess{
		Target: &Identifier{Name: "Limits"},
		Name:   "max",
		Decl:   decl,
	})
	if c.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", c.Diags)
	}
	wantInt(t, v, 100)
}

func Test_PropertyAccess_UnknownMemberIsInvalid(t *testing.T) {
	wantCode(t, evalErr(t, `(length 42)`), InvalidConstant)
}

func Test_Declaration_IntWidensToDoubleType(t *testing.T) {
	tp := NewTypeProvider()
	decl := &VariableElement{Name: "d", IsConst: true, Type: tp.DoubleType(), Init: &IntLit{Value: 3}}
	c := &Collector{}
	ev := NewEvaluator(tp, NewDeclaredVariables(nil), c, Features{})
	v := ev.EvaluateDeclaration(decl)
	wantDouble(t, v, 3.0)
}

// ---------------------------------------------------------------------------
// is / as
// ---------------------------------------------------------------------------

func Test_IsTest_KnownValues(t *testing.T) {
	wantBool(t, evalOK(t, `(is 3 int)`), true)
	wantBool(t, evalOK(t, `(is 3 String)`), false)
	wantBool(t, evalOK(t, `(is! 3 String)`), true)
	wantBool(t, evalOK(t, `(is 3 num)`), true)
	wantBool(t, evalOK(t, `(is 3.5 int)`), false)
	wantBool(t, evalOK(t, `(is null Null)`), true)
	wantBool(t, evalOK(t, `(is null int?)`), true)
	wantBool(t, evalOK(t, `(is null int)`), false)
}

func Test_Cast_Behavior(t *testing.T) {
	wantInt(t, evalOK(t, `(as 3 num)`), 3)
	wantCode(t, evalErr(t, `(as 3 String)`), EvalThrowsException)
	wantInt(t, evalOK(t, `(as 3 dynamic)`), 3)
}

func Test_IsTest_UnknownOperand(t *testing.T) {
	// An unknown int is an int regardless of the environment.
	v, _ := testEval(t, `(is (env-int "n") int)`, nil)
	wantBool(t, v, true)
	// Whether it is exactly 0 etc. stays unknown, but is-String is decidable
	// only when the static type rules it out; int is not String.
	v, _ = testEval(t, `(is (env-int "n") String)`, nil)
	wantUnknown(t, v)
}

// ---------------------------------------------------------------------------
// identical
// ---------------------------------------------------------------------------

func Test_Identical_Primitives(t *testing.T) {
	wantBool(t, evalOK(t, `(identical 1 1)`), true)
	wantBool(t, evalOK(t, `(identical 1 2)`), false)
	wantBool(t, evalOK(t, `(identical "a" "a")`), true)
	wantBool(t, evalOK(t, `(identical (list 1 2) (list 1 2))`), true)
}

// ---------------------------------------------------------------------------
// equality with mixed numeric representations
// ---------------------------------------------------------------------------

func Test_Equality_IntDoubleNumeric(t *testing.T) {
	wantBool(t, evalOK(t, `(== 1 1.0)`), true)
	wantBool(t, evalOK(t, `(!= 1 1.5)`), true)
	wantBool(t, evalOK(t, `(== "a" "a")`), true)
	wantBool(t, evalOK(t, `(== 1 "a")`), false)
}

func Test_Equality_UnknownOperandIsUnknown(t *testing.T) {
	v, _ := testEval(t, `(== (env-int "n") 1)`, nil)
	wantUnknown(t, v)
}
