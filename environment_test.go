package consteval

import "testing"

func Test_DeclaredVariables_Lookup(t *testing.T) {
	dv := NewDeclaredVariables(map[string]string{"a": "1", "empty": ""})
	if v, ok := dv.Lookup("a"); !ok || v != "1" {
		t.Fatalf("Lookup(a) = %q, %v", v, ok)
	}
	if _, ok := dv.Lookup("missing"); ok {
		t.Fatal("Lookup(missing) reported present")
	}
	if !dv.Has("empty") {
		t.Fatal("a declared empty value still counts as present")
	}
}

func Test_DeclaredVariables_CopiesInput(t *testing.T) {
	m := map[string]string{"a": "1"}
	dv := NewDeclaredVariables(m)
	m["a"] = "changed"
	m["b"] = "late"
	if v, _ := dv.Lookup("a"); v != "1" {
		t.Fatalf("store not isolated from caller map: %q", v)
	}
	if dv.Has("b") {
		t.Fatal("store not isolated from caller map")
	}
}

func Test_DeclaredVariables_GetBool(t *testing.T) {
	dv := NewDeclaredVariables(map[string]string{"t": "true", "f": "false", "junk": "TRUE"})
	if !dv.GetBool("t", false) {
		t.Fatal("t should be true")
	}
	if dv.GetBool("f", true) {
		t.Fatal("f should be false")
	}
	// Only the exact literal "true" is true.
	if dv.GetBool("junk", true) {
		t.Fatal("junk should parse false")
	}
	if !dv.GetBool("missing", true) {
		t.Fatal("missing should return the default")
	}
}

func Test_DeclaredVariables_GetInt(t *testing.T) {
	dv := NewDeclaredVariables(map[string]string{"n": "42", "hex": "0x2a", "bad": "forty-two"})
	if got := dv.GetInt("n", -1); got != 42 {
		t.Fatalf("n = %d", got)
	}
	if got := dv.GetInt("hex", -1); got != 42 {
		t.Fatalf("hex = %d", got)
	}
	if got := dv.GetInt("bad", -1); got != -1 {
		t.Fatalf("bad should fall back to the default, got %d", got)
	}
	if got := dv.GetInt("missing", 7); got != 7 {
		t.Fatalf("missing = %d", got)
	}
}

func Test_DeclaredVariables_GetString(t *testing.T) {
	dv := NewDeclaredVariables(map[string]string{"s": "hello"})
	if got := dv.GetString("s", "x"); got != "hello" {
		t.Fatalf("s = %q", got)
	}
	if got := dv.GetString("missing", "fallback"); got != "fallback" {
		t.Fatalf("missing = %q", got)
	}
}

func Test_LexicalEnv_ParentChain(t *testing.T) {
	tp := NewTypeProvider()
	outer := NewLexicalEnv(nil)
	outer.Define("x", IntVal(tp, 1))
	outer.Define("y", IntVal(tp, 2))
	inner := NewLexicalEnv(outer)
	inner.Define("x", IntVal(tp, 10)) // shadows

	v, ok := inner.Get("x")
	if !ok {
		t.Fatal("x not found")
	}
	wantInt(t, v, 10)

	v, ok = inner.Get("y")
	if !ok {
		t.Fatal("y not visible through parent")
	}
	wantInt(t, v, 2)

	if _, ok := inner.Get("z"); ok {
		t.Fatal("z should be absent")
	}
}
