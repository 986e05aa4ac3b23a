package consteval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) Expr {
	t.Helper()
	e, err := ParseExpr(NewTypeProvider(), src)
	require.NoError(t, err, "parse %q", src)
	return e
}

func Test_Reader_Literals(t *testing.T) {
	assert.Equal(t, int64(42), parse(t, `42`).(*IntLit).Value)
	assert.Equal(t, int64(31), parse(t, `0x1f`).(*IntLit).Value)
	assert.Equal(t, int64(-7), parse(t, `-7`).(*IntLit).Value)
	assert.Equal(t, 3.5, parse(t, `3.5`).(*DoubleLit).Value)
	assert.Equal(t, "hi", parse(t, `"hi"`).(*StringLit).Value)
	assert.Equal(t, "a\nb", parse(t, `"a\nb"`).(*StringLit).Value)
	assert.True(t, parse(t, `true`).(*BoolLit).Value)
	assert.IsType(t, &NullLit{}, parse(t, `null`))
	assert.Equal(t, "sym", parse(t, `#sym`).(*SymbolLit).Name)
}

func Test_Reader_IntBoundaryWraps(t *testing.T) {
	// 2^63 wraps to the sign bit, like the runtime representation.
	v := parse(t, `0x8000000000000000`).(*IntLit).Value
	assert.Equal(t, int64(-0x8000000000000000), v)
}

func Test_Reader_OperatorsAndSpans(t *testing.T) {
	src := `(+ 1 (* 2 3))`
	b := parse(t, src).(*Binary)
	assert.Equal(t, "+", b.Op)
	inner := b.Right.(*Binary)
	assert.Equal(t, "*", inner.Op)
	// Spans point into the source text.
	assert.Equal(t, 0, b.Span().Start)
	assert.Equal(t, "(* 2 3", src[inner.Span().Start:inner.Span().End])
}

func Test_Reader_UnaryForms(t *testing.T) {
	assert.Equal(t, "-", parse(t, `(neg 5)`).(*Unary).Op)
	assert.Equal(t, "~", parse(t, `(~ 5)`).(*Unary).Op)
	assert.Equal(t, "!", parse(t, `(! true)`).(*Unary).Op)
}

func Test_Reader_TypePositions(t *testing.T) {
	is := parse(t, `(is 3 int?)`).(*IsTest)
	assert.True(t, is.Target.Nullable())
	assert.Equal(t, "int?", is.Target.String())

	cast := parse(t, `(as x (List int))`).(*Cast)
	assert.Equal(t, "List<int>", cast.Target.String())

	m := parse(t, `(is x (Map String int))`).(*IsTest)
	assert.Equal(t, "Map<String, int>", m.Target.String())

	dyn := parse(t, `(as x dynamic)`).(*Cast)
	assert.IsType(t, &DynamicType{}, dyn.Target)
}

func Test_Reader_CollectionElements(t *testing.T) {
	lst := parse(t, `(list 1 (spread xs) (when c 2 3))`).(*ListLit)
	require.Len(t, lst.Elements, 3)
	assert.IsType(t, &ExprElement{}, lst.Elements[0])
	sp := lst.Elements[1].(*SpreadElement)
	assert.False(t, sp.NullAware)
	iff := lst.Elements[2].(*IfElement)
	assert.NotNil(t, iff.Else)

	nullAware := parse(t, `(list (spread? xs))`).(*ListLit).Elements[0].(*SpreadElement)
	assert.True(t, nullAware.NullAware)

	mp := parse(t, `(map (entry "k" 1))`).(*SetOrMapLit)
	assert.True(t, mp.IsMap)
	assert.IsType(t, &MapEntryElement{}, mp.Elements[0])

	st := parse(t, `(set 1 2)`).(*SetOrMapLit)
	assert.False(t, st.IsMap)
}

func Test_Reader_EnvForms(t *testing.T) {
	ic := parse(t, `(env-bool "flag" true)`).(*InstanceCreation)
	require.NotNil(t, ic.Ctor)
	assert.Equal(t, "fromEnvironment", ic.Ctor.Name)
	assert.Equal(t, "bool", ic.Ctor.Class.Name)
	require.Len(t, ic.Args, 2)
	assert.Equal(t, "", ic.Args[0].Name)
	assert.Equal(t, "defaultValue", ic.Args[1].Name)

	he := parse(t, `(has-env "flag")`).(*InstanceCreation)
	assert.Equal(t, "hasEnvironment", he.Ctor.Name)
}

func Test_Reader_Comments(t *testing.T) {
	e := parse(t, "; leading comment\n(+ 1 2) ; trailing")
	assert.Equal(t, "+", e.(*Binary).Op)
}

func Test_Reader_Errors(t *testing.T) {
	tp := NewTypeProvider()
	for _, src := range []string{
		``, `(`, `(+ 1`, `(+ 1 2) 3`, `"unterminated`, `(bogus 1)`,
		`(is 3 NotAType)`, `#`,
	} {
		_, err := ParseExpr(tp, src)
		assert.Error(t, err, "src %q", src)
	}
}
