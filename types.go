// types.go — the resolved type model and the subtyping relation
//
// WHAT THIS MODULE DOES
// =====================
// The evaluator consumes expression trees whose types are already resolved.
// This file defines the type values those trees carry and the single relation
// the evaluator needs from them: IsSubtypeOf, which backs `is` tests, `as`
// casts, and argument/field assignability checks.
//
// The model is nominal with nullability:
//
//	("id") interface types        — class + type arguments + optional '?'
//	function types                — contravariant params, covariant return
//	dynamic / void                — top types (both admit null)
//	Never                         — bottom type ('Never?' behaves like Null)
//	type parameters               — placeholders substituted during hierarchy
//	                                walks; they never reach the evaluator raw
//
// Subtyping rules (the slice the constant sub-language can reach):
//   - every type is a subtype of dynamic, void, and Object?
//   - Never is a subtype of everything; Null of every nullable type
//   - S? <: T requires T nullable; then compare the underlying types
//   - interface subtyping walks the class lattice (supertype + interfaces)
//     with type-argument substitution, comparing arguments covariantly
//   - function subtyping: same arity, parameters contravariant, return
//     covariant; every function type is a subtype of Function and Object
//
// TypeProvider owns the built-in classes (Object, Null, bool, int, double,
// num, String, Symbol, Type, List, Set, Map, Function) plus the intrinsic
// const constructors on bool/int/String (fromEnvironment, hasEnvironment).
// One provider is shared by an element model and every session over it; it is
// immutable after construction and safe for concurrent reads.
package consteval

import "strings"

////////////////////////////////////////////////////////////////////////////////
//                                  PUBLIC API
////////////////////////////////////////////////////////////////////////////////

// Type is a resolved static type attached to expressions and values.
type Type interface {
	// Nullable reports whether the type admits null (trailing '?', or a top type).
	Nullable() bool
	// WithNullability returns the same type with the given nullability.
	WithNullability(nullable bool) Type
	String() string
	isType()
}

// InterfaceType is a class instantiated with type arguments, e.g. List<int?>.
type InterfaceType struct {
	Class *ClassElement
	Args  []Type
	Null  bool
}

func (t *InterfaceType) Nullable() bool { return t.Null }
func (t *InterfaceType) WithNullability(n bool) Type {
	c := *t
	c.Null = n
	return &c
}
func (t *InterfaceType) String() string {
	var b strings.Builder
	b.WriteString(t.Class.Name)
	if len(t.Args) > 0 {
		b.WriteByte('<')
		for i, a := range t.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(a.String())
		}
		b.WriteByte('>')
	}
	if t.Null {
		b.WriteByte('?')
	}
	return b.String()
}
func (t *InterfaceType) isType() {}

// FunctionType is a structural function shape with positional parameters only
// (the constant sub-language never meets named-parameter function types).
type FunctionType struct {
	Params []Type
	Return Type
	Null   bool
}

func (t *FunctionType) Nullable() bool { return t.Null }
func (t *FunctionType) WithNullability(n bool) Type {
	c := *t
	c.Null = n
	return &c
}
func (t *FunctionType) String() string {
	var b strings.Builder
	b.WriteString(t.Return.String())
	b.WriteString(" Function(")
	for i, p := range t.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	b.WriteByte(')')
	if t.Null {
		b.WriteByte('?')
	}
	return b.String()
}
func (t *FunctionType) isType() {}

// DynamicType is the untyped top type.
type DynamicType struct{}

func (*DynamicType) Nullable() bool             { return true }
func (t *DynamicType) WithNullability(bool) Type { return t }
func (*DynamicType) String() string             { return "dynamic" }
func (*DynamicType) isType()                    {}

// VoidType is the top type for discarded values.
type VoidType struct{}

func (*VoidType) Nullable() bool             { return true }
func (t *VoidType) WithNullability(bool) Type { return t }
func (*VoidType) String() string             { return "void" }
func (*VoidType) isType()                    {}

// NeverType is the bottom type. Never? is inhabited only by null.
type NeverType struct{ Null bool }

func (t *NeverType) Nullable() bool { return t.Null }
func (t *NeverType) WithNullability(n bool) Type {
	c := *t
	c.Null = n
	return &c
}
func (t *NeverType) String() string {
	if t.Null {
		return "Never?"
	}
	return "Never"
}
func (*NeverType) isType() {}

// TypeParamType stands for a class type parameter inside the declarations of
// a generic class (supertype clauses, field types). It is substituted away
// during hierarchy walks and instance creation.
type TypeParamType struct {
	Name string
	Null bool
}

func (t *TypeParamType) Nullable() bool { return t.Null }
func (t *TypeParamType) WithNullability(n bool) Type {
	c := *t
	c.Null = n
	return &c
}
func (t *TypeParamType) String() string {
	if t.Null {
		return t.Name + "?"
	}
	return t.Name
}
func (*TypeParamType) isType() {}

// TypeProvider owns the built-in class lattice and answers subtyping queries.
type TypeProvider struct {
	ObjectClass   *ClassElement
	NullClass     *ClassElement
	BoolClass     *ClassElement
	NumClass      *ClassElement
	IntClass      *ClassElement
	DoubleClass   *ClassElement
	StringClass   *ClassElement
	SymbolClass   *ClassElement
	TypeClass     *ClassElement
	ListClass     *ClassElement
	SetClass      *ClassElement
	MapClass      *ClassElement
	FunctionClass *ClassElement
}

// NewTypeProvider builds the built-in class lattice and the intrinsic
// environment constructors on bool, int, and String.
func NewTypeProvider() *TypeProvider {
	tp := &TypeProvider{}
	tp.ObjectClass = &ClassElement{Name: "Object"}
	objRef := &InterfaceType{Class: tp.ObjectClass}

	tp.NullClass = &ClassElement{Name: "Null"}
	tp.NumClass = &ClassElement{Name: "num", Supertype: objRef}
	numRef := &InterfaceType{Class: tp.NumClass}
	tp.IntClass = &ClassElement{Name: "int", Supertype: numRef}
	tp.DoubleClass = &ClassElement{Name: "double", Supertype: numRef}
	tp.BoolClass = &ClassElement{Name: "bool", Supertype: objRef}
	tp.StringClass = &ClassElement{Name: "String", Supertype: objRef}
	tp.SymbolClass = &ClassElement{Name: "Symbol", Supertype: objRef}
	tp.TypeClass = &ClassElement{Name: "Type", Supertype: objRef}
	tp.FunctionClass = &ClassElement{Name: "Function", Supertype: objRef}
	tp.ListClass = &ClassElement{Name: "List", TypeParams: []string{"E"}, Supertype: objRef}
	tp.SetClass = &ClassElement{Name: "Set", TypeParams: []string{"E"}, Supertype: objRef}
	tp.MapClass = &ClassElement{Name: "Map", TypeParams: []string{"K", "V"}, Supertype: objRef}

	for _, c := range []*ClassElement{
		tp.ObjectClass, tp.NullClass, tp.NumClass, tp.IntClass, tp.DoubleClass,
		tp.BoolClass, tp.StringClass, tp.SymbolClass, tp.TypeClass,
		tp.FunctionClass, tp.ListClass, tp.SetClass, tp.MapClass,
	} {
		c.builtin = true
	}

	installEnvironmentConstructors(tp)
	return tp
}

// SameClass reports nominal identity of two class elements. User classes are
// identical only as pointers; built-in classes match by name, so types and
// values built by different providers stay comparable.
func SameClass(a, b *ClassElement) bool {
	if a == b {
		return true
	}
	return a != nil && b != nil && a.builtin && b.builtin && a.Name == b.Name
}

// Shorthands for the frequently needed built-in types.
func (tp *TypeProvider) ObjectType() Type  { return &InterfaceType{Class: tp.ObjectClass} }
func (tp *TypeProvider) NullType() Type    { return &InterfaceType{Class: tp.NullClass, Null: true} }
func (tp *TypeProvider) BoolType() Type    { return &InterfaceType{Class: tp.BoolClass} }
func (tp *TypeProvider) NumType() Type     { return &InterfaceType{Class: tp.NumClass} }
func (tp *TypeProvider) IntType() Type     { return &InterfaceType{Class: tp.IntClass} }
func (tp *TypeProvider) DoubleType() Type  { return &InterfaceType{Class: tp.DoubleClass} }
func (tp *TypeProvider) StringType() Type  { return &InterfaceType{Class: tp.StringClass} }
func (tp *TypeProvider) SymbolType() Type  { return &InterfaceType{Class: tp.SymbolClass} }
func (tp *TypeProvider) TypeType() Type    { return &InterfaceType{Class: tp.TypeClass} }
func (tp *TypeProvider) DynamicType() Type { return &DynamicType{} }
func (tp *TypeProvider) NeverType() Type   { return &NeverType{} }

func (tp *TypeProvider) ListType(elem Type) Type {
	return &InterfaceType{Class: tp.ListClass, Args: []Type{elem}}
}
func (tp *TypeProvider) SetType(elem Type) Type {
	return &InterfaceType{Class: tp.SetClass, Args: []Type{elem}}
}
func (tp *TypeProvider) MapType(key, val Type) Type {
	return &InterfaceType{Class: tp.MapClass, Args: []Type{key, val}}
}

// IsSubtypeOf reports whether s is a subtype of t.
func (tp *TypeProvider) IsSubtypeOf(s, t Type) bool {
	if TypeEquals(s, t) {
		return true
	}
	if tp.isTop(t) {
		return true
	}
	switch s.(type) {
	case *DynamicType, *VoidType:
		// Top types are subtypes only of top types, handled above.
		return false
	}
	if nv, ok := s.(*NeverType); ok {
		if !nv.Null {
			return true
		}
		// Never? is the type of null.
		return t.Nullable() || tp.isNullType(t)
	}
	if tp.isNullType(s) {
		return t.Nullable() || tp.isNullType(t)
	}
	if s.Nullable() && !t.Nullable() {
		return false
	}
	s = s.WithNullability(false)
	t = t.WithNullability(false)

	switch st := s.(type) {
	case *FunctionType:
		switch tt := t.(type) {
		case *InterfaceType:
			return SameClass(tt.Class, tp.FunctionClass) || SameClass(tt.Class, tp.ObjectClass)
		case *FunctionType:
			if len(st.Params) != len(tt.Params) {
				return false
			}
			for i := range st.Params {
				if !tp.IsSubtypeOf(tt.Params[i], st.Params[i]) {
					return false
				}
			}
			return tp.IsSubtypeOf(st.Return, tt.Return)
		}
		return false
	case *InterfaceType:
		tt, ok := t.(*InterfaceType)
		if !ok {
			return false
		}
		if SameClass(tt.Class, tp.ObjectClass) {
			return true
		}
		inst := tp.asInstanceOf(st, tt.Class)
		if inst == nil {
			return false
		}
		if len(inst.Args) != len(tt.Args) {
			return false
		}
		for i := range inst.Args {
			if !tp.IsSubtypeOf(inst.Args[i], tt.Args[i]) {
				return false
			}
		}
		return true
	case *TypeParamType:
		// Unsubstituted type parameters only relate to themselves (caught by
		// the equality check above) and to top types.
		return false
	}
	return false
}

// TypeEquals reports structural equality of two resolved types.
func TypeEquals(a, b Type) bool {
	switch at := a.(type) {
	case *DynamicType:
		_, ok := b.(*DynamicType)
		return ok
	case *VoidType:
		_, ok := b.(*VoidType)
		return ok
	case *NeverType:
		bt, ok := b.(*NeverType)
		return ok && at.Null == bt.Null
	case *TypeParamType:
		bt, ok := b.(*TypeParamType)
		return ok && at.Name == bt.Name && at.Null == bt.Null
	case *InterfaceType:
		bt, ok := b.(*InterfaceType)
		if !ok || !SameClass(at.Class, bt.Class) || at.Null != bt.Null || len(at.Args) != len(bt.Args) {
			return false
		}
		for i := range at.Args {
			if !TypeEquals(at.Args[i], bt.Args[i]) {
				return false
			}
		}
		return true
	case *FunctionType:
		bt, ok := b.(*FunctionType)
		if !ok || at.Null != bt.Null || len(at.Params) != len(bt.Params) {
			return false
		}
		for i := range at.Params {
			if !TypeEquals(at.Params[i], bt.Params[i]) {
				return false
			}
		}
		return TypeEquals(at.Return, bt.Return)
	}
	return false
}

//// END_OF_PUBLIC

////////////////////////////////////////////////////////////////////////////////
//                                   PRIVATE
////////////////////////////////////////////////////////////////////////////////

func (tp *TypeProvider) isTop(t Type) bool {
	switch tt := t.(type) {
	case *DynamicType, *VoidType:
		return true
	case *InterfaceType:
		return SameClass(tt.Class, tp.ObjectClass) && tt.Null
	}
	return false
}

func (tp *TypeProvider) isNullType(t Type) bool {
	it, ok := t.(*InterfaceType)
	return ok && SameClass(it.Class, tp.NullClass)
}

// asInstanceOf walks s's class lattice (supertype first, then interfaces,
// breadth-first) looking for target, substituting type arguments along the
// way. It returns the instantiation of target reached from s, or nil.
func (tp *TypeProvider) asInstanceOf(s *InterfaceType, target *ClassElement) *InterfaceType {
	if SameClass(s.Class, target) {
		return s
	}
	queue := []*InterfaceType{s}
	seen := map[*ClassElement]bool{s.Class: true}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		bind := bindTypeParams(cur.Class, cur.Args)
		supers := make([]*InterfaceType, 0, 1+len(cur.Class.Interfaces))
		if cur.Class.Supertype != nil {
			supers = append(supers, cur.Class.Supertype)
		}
		supers = append(supers, cur.Class.Interfaces...)
		for _, sup := range supers {
			inst := substituteInterface(sup, bind)
			if SameClass(inst.Class, target) {
				return inst
			}
			if !seen[inst.Class] {
				seen[inst.Class] = true
				queue = append(queue, inst)
			}
		}
	}
	return nil
}

func bindTypeParams(c *ClassElement, args []Type) map[string]Type {
	if len(c.TypeParams) == 0 {
		return nil
	}
	bind := make(map[string]Type, len(c.TypeParams))
	for i, name := range c.TypeParams {
		if i < len(args) {
			bind[name] = args[i]
		} else {
			bind[name] = &DynamicType{}
		}
	}
	return bind
}

func substituteInterface(t *InterfaceType, bind map[string]Type) *InterfaceType {
	if len(bind) == 0 || len(t.Args) == 0 {
		return t
	}
	out := *t
	out.Args = make([]Type, len(t.Args))
	for i, a := range t.Args {
		out.Args[i] = substituteType(a, bind)
	}
	return &out
}

func substituteType(t Type, bind map[string]Type) Type {
	if len(bind) == 0 {
		return t
	}
	switch tt := t.(type) {
	case *TypeParamType:
		if sub, ok := bind[tt.Name]; ok {
			if tt.Null && !sub.Nullable() {
				return sub.WithNullability(true)
			}
			return sub
		}
		return t
	case *InterfaceType:
		return substituteInterface(tt, bind)
	case *FunctionType:
		out := *tt
		out.Params = make([]Type, len(tt.Params))
		for i, p := range tt.Params {
			out.Params[i] = substituteType(p, bind)
		}
		out.Return = substituteType(tt.Return, bind)
		return &out
	}
	return t
}
