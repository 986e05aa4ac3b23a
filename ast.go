// ast.go — the resolved expression tree and the element model
//
// WHAT THIS MODULE DOES
// =====================
// Parsing and static resolution happen upstream. What reaches the evaluator is
// a closed set of expression variants with resolved references already
// attached: identifiers point at their declarations, instance creations point
// at their constructor elements, and type annotations are Type values from
// types.go. The evaluator dispatches over this closed set with an exhaustive
// type switch (evaluator.go); anything a resolver could produce that is not
// one of these variants is by construction outside the constant sub-language.
//
// The second half of the file is the element model: the read-only declaration
// side the evaluator queries (classes with fields and constructors, const
// variable declarations, parameters with default values, constructor
// initializer lists). The evaluator never mutates elements.
//
// Every expression node carries a Span into the original source for
// diagnostics. Hosts building trees programmatically may leave spans zero.
package consteval

////////////////////////////////////////////////////////////////////////////////
//                              EXPRESSION VARIANTS
////////////////////////////////////////////////////////////////////////////////

// Node is anything carrying a source range.
type Node interface {
	Span() Span
}

// Expr is one variant of the closed constant-expression sub-language.
type Expr interface {
	Node
	isExpr()
}

// NullLit is the literal `null`.
type NullLit struct{ Sp Span }

// BoolLit is `true` or `false`.
type BoolLit struct {
	Sp    Span
	Value bool
}

// IntLit is an integer literal. Widening to double in a double-typed context
// is driven by the declared type at the binding site, not by the literal.
type IntLit struct {
	Sp    Span
	Value int64
}

// DoubleLit is a floating-point literal.
type DoubleLit struct {
	Sp    Span
	Value float64
}

// StringLit is a single-part string literal.
type StringLit struct {
	Sp    Span
	Value string
}

// StringInterp is a string literal with embedded constant expressions.
// Parts alternate freely between StringLit and arbitrary constant exprs.
type StringInterp struct {
	Sp    Span
	Parts []Expr
}

// SymbolLit is a symbol literal `#name`.
type SymbolLit struct {
	Sp   Span
	Name string
}

// ListLit is a constant list literal with resolved element type.
type ListLit struct {
	Sp       Span
	ElemType Type
	Elements []CollectionElement
}

// SetOrMapLit is a constant set or map literal; resolution already decided
// which of the two it is and attached the resolved type arguments.
type SetOrMapLit struct {
	Sp       Span
	IsMap    bool
	KeyType  Type // map only
	ValType  Type // map only
	ElemType Type // set only
	Elements []CollectionElement
}

// CollectionElement is one element position inside a list/set/map literal.
type CollectionElement interface {
	Node
	isCollectionElement()
}

// ExprElement is a plain expression element of a list or set literal.
type ExprElement struct{ Expr Expr }

// MapEntryElement is a `key: value` entry of a map literal.
type MapEntryElement struct {
	Sp         Span
	Key, Value Expr
}

// IfElement is a conditional element `if (cond) then [else other]`.
// Else is nil when absent. Then/Else may themselves be IfElements or spreads.
type IfElement struct {
	Sp   Span
	Cond Expr
	Then CollectionElement
	Else CollectionElement
}

// SpreadElement splices a constant collection into the surrounding literal.
// NullAware (`...?`) tolerates a null operand by contributing nothing.
type SpreadElement struct {
	Sp        Span
	Expr      Expr
	NullAware bool
}

// Conditional is `cond ? then : else`.
type Conditional struct {
	Sp               Span
	Cond, Then, Else Expr
}

// Binary is a binary operator expression. Op is the source operator token:
// + - * / ~/ % & | ^ << >> >>> && || ?? == != < <= > >=
type Binary struct {
	Sp          Span
	Op          string
	Left, Right Expr
}

// Unary is a prefix operator expression. Op is one of - ~ !
type Unary struct {
	Sp      Span
	Op      string
	Operand Expr
}

// IsTest is `expr is T` (Negated for `is!`).
type IsTest struct {
	Sp      Span
	Expr    Expr
	Target  Type
	Negated bool
}

// Cast is `expr as T`.
type Cast struct {
	Sp     Span
	Expr   Expr
	Target Type
}

// Identifier is a resolved simple identifier. Exactly one of the reference
// fields is set: Decl for a const variable or static const field, Class for a
// bare type name (evaluating to a type literal), or IsDynamic for `dynamic`.
// The Name is kept for lexical-environment lookups, which take precedence.
type Identifier struct {
	Sp        Span
	Name      string
	Decl      *VariableElement
	Class     *ClassElement
	IsDynamic bool
}

// PropertyAccess is `target.name`. Two forms are constant-evaluable: `length`
// on a string, and a static const field, which resolution marks by attaching
// the field's declaration to Decl. Everything else is an invalid constant.
type PropertyAccess struct {
	Sp     Span
	Target Expr
	Name   string
	Decl   *VariableElement
}

// InstanceCreation is `const C<T...>(args)` resolved to its constructor.
type InstanceCreation struct {
	Sp       Span
	Ctor     *ConstructorElement
	TypeArgs []Type
	Args     []Argument
}

// Argument is one actual argument; Name is empty for positional arguments.
type Argument struct {
	Sp    Span
	Name  string
	Value Expr
}

// ConstructorRefExpr is a constructor tear-off `C.new` / `C<int>.new`.
// TypeArgs nil means the non-instantiated (generic) form.
type ConstructorRefExpr struct {
	Sp       Span
	Ctor     *ConstructorElement
	TypeArgs []Type
}

// Invocation is a resolved call to one of the few constant-evaluable
// functions. The only supported name is "identical".
type Invocation struct {
	Sp   Span
	Name string
	Args []Expr
}

// Paren is a parenthesized sub-expression, kept for faithful spans.
type Paren struct {
	Sp    Span
	Inner Expr
}

func (e *NullLit) Span() Span            { return e.Sp }
func (e *BoolLit) Span() Span            { return e.Sp }
func (e *IntLit) Span() Span             { return e.Sp }
func (e *DoubleLit) Span() Span          { return e.Sp }
func (e *StringLit) Span() Span          { return e.Sp }
func (e *StringInterp) Span() Span       { return e.Sp }
func (e *SymbolLit) Span() Span          { return e.Sp }
func (e *ListLit) Span() Span            { return e.Sp }
func (e *SetOrMapLit) Span() Span        { return e.Sp }
func (e *ExprElement) Span() Span        { return e.Expr.Span() }
func (e *MapEntryElement) Span() Span    { return e.Sp }
func (e *IfElement) Span() Span          { return e.Sp }
func (e *SpreadElement) Span() Span      { return e.Sp }
func (e *Conditional) Span() Span        { return e.Sp }
func (e *Binary) Span() Span             { return e.Sp }
func (e *Unary) Span() Span              { return e.Sp }
func (e *IsTest) Span() Span             { return e.Sp }
func (e *Cast) Span() Span               { return e.Sp }
func (e *Identifier) Span() Span         { return e.Sp }
func (e *PropertyAccess) Span() Span     { return e.Sp }
func (e *InstanceCreation) Span() Span   { return e.Sp }
func (e *ConstructorRefExpr) Span() Span { return e.Sp }
func (e *Invocation) Span() Span         { return e.Sp }
func (e *Paren) Span() Span              { return e.Sp }

func (*NullLit) isExpr()            {}
func (*BoolLit) isExpr()            {}
func (*IntLit) isExpr()             {}
func (*DoubleLit) isExpr()          {}
func (*StringLit) isExpr()          {}
func (*StringInterp) isExpr()       {}
func (*SymbolLit) isExpr()          {}
func (*ListLit) isExpr()            {}
func (*SetOrMapLit) isExpr()        {}
func (*Conditional) isExpr()        {}
func (*Binary) isExpr()             {}
func (*Unary) isExpr()              {}
func (*IsTest) isExpr()             {}
func (*Cast) isExpr()               {}
func (*Identifier) isExpr()         {}
func (*PropertyAccess) isExpr()     {}
func (*InstanceCreation) isExpr()   {}
func (*ConstructorRefExpr) isExpr() {}
func (*Invocation) isExpr()         {}
func (*Paren) isExpr()              {}

func (*ExprElement) isCollectionElement()     {}
func (*MapEntryElement) isCollectionElement() {}
func (*IfElement) isCollectionElement()       {}
func (*SpreadElement) isCollectionElement()   {}

////////////////////////////////////////////////////////////////////////////////
//                                ELEMENT MODEL
////////////////////////////////////////////////////////////////////////////////

// ClassElement is a class declaration in the element model. The evaluator
// reads the lattice (Supertype, Interfaces), the instance fields, and the
// constructors; it never mutates any of them.
type ClassElement struct {
	Name       string
	TypeParams []string
	Supertype  *InterfaceType
	Interfaces []*InterfaceType
	Fields     []*FieldElement
	Ctors      []*ConstructorElement

	// builtin marks the classes owned by a TypeProvider. Built-in classes are
	// nominally the same across providers, so values from independent sessions
	// still compare equal by name.
	builtin bool
}

// Constructor finds a constructor by name ("" is the unnamed constructor).
func (c *ClassElement) Constructor(name string) *ConstructorElement {
	for _, ct := range c.Ctors {
		if ct.Name == name {
			return ct
		}
	}
	return nil
}

// Field finds an instance field by name.
func (c *ClassElement) Field(name string) *FieldElement {
	for _, f := range c.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// FieldElement is an instance field of a class. Init, when present, is its
// inline initializer expression.
type FieldElement struct {
	Name  string
	Type  Type
	Init  Expr
	Class *ClassElement
}

// ConstructorElement is a (constant) constructor declaration.
type ConstructorElement struct {
	Name    string // "" for the unnamed constructor
	Class   *ClassElement
	Params  []*ParameterElement
	Inits   []ConstructorInitializer
	IsConst bool
	// IsFactory marks factory constructors; the environment intrinsics on
	// bool/int/String are the only factories reachable from constant context.
	IsFactory bool
}

// DisplayName renders "C" or "C.name" for diagnostics.
func (c *ConstructorElement) DisplayName() string {
	if c.Name == "" {
		return c.Class.Name
	}
	return c.Class.Name + "." + c.Name
}

// ParamKind distinguishes how a parameter is bound at a call site.
type ParamKind int

const (
	RequiredPositional ParamKind = iota
	OptionalPositional
	Named
)

// ParameterElement is one formal parameter. Default, when present, is
// evaluated in the constructor's declaring scope (not the call site) when the
// argument is omitted. IsInitializingFormal marks `this.x` formals.
type ParameterElement struct {
	Name                 string
	Type                 Type
	Kind                 ParamKind
	Default              Expr
	IsInitializingFormal bool
}

// ConstructorInitializer is one entry of a constructor initializer list.
type ConstructorInitializer interface{ isCtorInit() }

// FieldInit assigns an initializer-list expression to a field.
type FieldInit struct {
	Field *FieldElement
	Value Expr
}

// SuperInit invokes the superclass constructor explicitly.
type SuperInit struct {
	Ctor *ConstructorElement
	Args []Argument
}

// RedirectInit redirects to another constructor of the same class
// (`: this.other(...)`).
type RedirectInit struct {
	Ctor *ConstructorElement
	Args []Argument
}

// AssertInit is a `assert(cond, [message])` initializer-list entry. A known
// false condition makes the instance creation throw.
type AssertInit struct {
	Sp      Span
	Cond    Expr
	Message Expr
}

func (*FieldInit) isCtorInit()    {}
func (*SuperInit) isCtorInit()    {}
func (*RedirectInit) isCtorInit() {}
func (*AssertInit) isCtorInit()   {}

// VariableElement is a const variable or static const field declaration.
// Type nil means the declaration is untyped (inferred from the initializer).
type VariableElement struct {
	Name    string
	Type    Type
	Init    Expr
	IsConst bool
}
