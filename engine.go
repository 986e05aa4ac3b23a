// engine.go — const constructor execution and the environment intrinsics
//
// WHAT THIS MODULE DOES
// =====================
// Evaluating `const C<T...>(args)` runs the constructor abstractly: actual
// arguments are evaluated at the call site, bound to formals (with defaults
// evaluated in the declaring scope), and the field values are computed from
// initializing formals, inline field initializers, the initializer list, and
// the superclass chain. The result is an instance value whose identity is its
// canonical structure (value.go ConstEquals).
//
// EXECUTION ORDER
// ===============
//  1. Redirecting constructors delegate wholesale to their target.
//  2. Initializing formals (`this.x`) set their fields from the bound value.
//  3. Inline field initializers run in the class scope for every field not
//     otherwise set.
//  4. Initializer-list entries run in declaration order in the constructor's
//     parameter scope: field assignments and asserts. A known-false assert
//     makes the creation throw.
//  5. The superclass constructor runs last (explicit super(...) entry, or the
//     implicit unnamed one), contributing its fields ahead of the subclass's
//     in the canonical field order.
//
// A constructor already being executed on the session stack is a cycle and is
// reported, never recursed into. Every bound value is checked against the
// (type-argument substituted) declared type; int values widen to double at
// double-typed sites before the check.
//
// The file ends with the three environment intrinsics: bool/int/String
// .fromEnvironment and bool.hasEnvironment, backed by DeclaredVariables. With
// no variable store at all the intrinsics yield Unknown values of the target
// type, so downstream evaluation stays well-typed.
package consteval

import "strconv"

////////////////////////////////////////////////////////////////////////////////
//                            INSTANCE CREATION
////////////////////////////////////////////////////////////////////////////////

func (ev *Evaluator) evalInstanceCreation(n *InstanceCreation) Value {
	ctor := n.Ctor
	if ctor == nil {
		ev.report(InvalidConstant, n.Sp)
		return Invalid
	}
	if kind := environmentIntrinsicKind(ev.tp, ctor); kind != notIntrinsic {
		return ev.evalEnvironmentIntrinsic(kind, n)
	}
	if !ctor.IsConst || ctor.IsFactory {
		ev.report(InvalidConstant, n.Sp)
		return Invalid
	}
	if ev.sess.ctorsOnStack[ctor] {
		ev.report(RecursiveConstructorCall, n.Sp, ctor.DisplayName())
		return Invalid
	}

	typeArgs := completeTypeArgs(ctor.Class, n.TypeArgs)
	args, ok := ev.evalArguments(n.Args)
	if !ok {
		return Invalid
	}

	ev.sess.ctorsOnStack[ctor] = true
	data, ok := ev.runConstructor(ctor, typeArgs, args, n.Sp)
	delete(ev.sess.ctorsOnStack, ctor)
	if !ok {
		return Invalid
	}
	return InstanceVal(&InterfaceType{Class: ctor.Class, Args: typeArgs}, data)
}

// actualArgs is one evaluated argument list: positionals in order, named by
// name, each with the span of the expression that produced it.
type actualArgs struct {
	pos     []Value
	posSp   []Span
	named   map[string]Value
	namedSp map[string]Span
}

// evalArguments evaluates every actual argument in the caller's context.
// All arguments are evaluated even after a failure so sibling diagnostics
// surface in one pass.
func (ev *Evaluator) evalArguments(args []Argument) (actualArgs, bool) {
	out := actualArgs{named: map[string]Value{}, namedSp: map[string]Span{}}
	ok := true
	for _, a := range args {
		v := ev.eval(a.Value)
		if !v.IsValid() {
			ok = false
			continue
		}
		if a.Name == "" {
			out.pos = append(out.pos, v)
			out.posSp = append(out.posSp, a.Value.Span())
		} else {
			out.named[a.Name] = v
			out.namedSp[a.Name] = a.Value.Span()
		}
	}
	return out, ok
}

// runConstructor binds formals and computes the instance's fields. The caller
// owns the cycle marking for ctor itself; recursive creations inside
// initializers come back through evalInstanceCreation and are checked there.
func (ev *Evaluator) runConstructor(ctor *ConstructorElement, typeArgs []Type, args actualArgs, callSp Span) (*InstanceData, bool) {
	bind := bindTypeParams(ctor.Class, typeArgs)

	paramEnv := NewLexicalEnv(nil)
	formals := map[string]Value{} // initializing-formal field values
	posIdx := 0
	ok := true
	for _, p := range ctor.Params {
		var v Value
		var sp Span
		bound := false
		switch p.Kind {
		case RequiredPositional, OptionalPositional:
			if posIdx < len(args.pos) {
				v, sp = args.pos[posIdx], args.posSp[posIdx]
				posIdx++
				bound = true
			}
		case Named:
			if nv, present := args.named[p.Name]; present {
				v, sp = nv, args.namedSp[p.Name]
				bound = true
			}
		}
		if !bound {
			switch {
			case p.Default != nil:
				// Defaults belong to the declaration, not the call site.
				v = ev.WithLexical(nil).eval(p.Default)
				if !v.IsValid() {
					ok = false
					continue
				}
				sp = p.Default.Span()
			case p.Kind == RequiredPositional:
				ev.report(InvalidConstant, callSp)
				ok = false
				continue
			default:
				v, sp = NullVal(ev.tp), callSp
			}
		}
		declType := substituteType(p.Type, bind)
		v = ev.coerce(v, declType)
		if !ev.checkAssignable(v, declType, sp) {
			ok = false
			continue
		}
		paramEnv.Define(p.Name, v)
		if p.IsInitializingFormal {
			formals[p.Name] = v
		}
	}
	if !ok {
		return nil, false
	}

	ctorEv := ev.WithLexical(paramEnv)

	// A redirecting constructor contributes nothing of its own.
	for _, init := range ctor.Inits {
		if r, isRedirect := init.(*RedirectInit); isRedirect {
			return ctorEv.delegate(r.Ctor, typeArgs, r.Args, callSp)
		}
	}

	data := &InstanceData{Ctor: ctor, Fields: map[string]Value{}}

	// Superclass fields come first in the canonical order, so run the chain
	// before recording this class's fields, even though the language executes
	// the super constructor last. Asserts and field entries below cannot
	// observe super fields, so the reordering is not visible.
	if !ctorEv.runSuper(ctor, bind, data, callSp) {
		return nil, false
	}

	own := map[string]Value{}
	for name, v := range formals {
		own[name] = v
	}
	for _, f := range ctor.Class.Fields {
		if _, set := own[f.Name]; set || f.Init == nil {
			continue
		}
		fv := ev.WithLexical(nil).eval(f.Init)
		if !fv.IsValid() {
			return nil, false
		}
		ft := substituteType(f.Type, bind)
		fv = ev.coerce(fv, ft)
		if !ev.checkAssignable(fv, ft, f.Init.Span()) {
			return nil, false
		}
		own[f.Name] = fv
	}
	for _, init := range ctor.Inits {
		switch entry := init.(type) {
		case *FieldInit:
			fv := ctorEv.eval(entry.Value)
			if !fv.IsValid() {
				return nil, false
			}
			ft := substituteType(entry.Field.Type, bind)
			fv = ev.coerce(fv, ft)
			if !ev.checkAssignable(fv, ft, entry.Value.Span()) {
				return nil, false
			}
			own[entry.Field.Name] = fv
		case *AssertInit:
			if !ctorEv.runAssert(entry) {
				return nil, false
			}
		}
	}

	// Emit this class's fields in declaration order; unset nullable fields
	// default to null so the structure is total.
	for _, f := range ctor.Class.Fields {
		v, set := own[f.Name]
		if !set {
			v = NullVal(ev.tp)
		}
		data.setField(f.Name, v)
	}
	return data, true
}

// delegate evaluates a redirecting or super constructor invocation: the
// actual arguments are evaluated in the current (parameter) scope, then the
// target runs with its own cycle marking.
func (ev *Evaluator) delegate(target *ConstructorElement, typeArgs []Type, args []Argument, callSp Span) (*InstanceData, bool) {
	if target == nil || !target.IsConst {
		ev.report(InvalidConstant, callSp)
		return nil, false
	}
	if ev.sess.ctorsOnStack[target] {
		ev.report(RecursiveConstructorCall, callSp, target.DisplayName())
		return nil, false
	}
	actual, ok := ev.evalArguments(args)
	if !ok {
		return nil, false
	}
	ev.sess.ctorsOnStack[target] = true
	data, ok := ev.runConstructor(target, typeArgs, actual, callSp)
	delete(ev.sess.ctorsOnStack, target)
	return data, ok
}

// runSuper executes the superclass constructor (explicit entry or implicit
// unnamed) and merges its fields into data.
func (ev *Evaluator) runSuper(ctor *ConstructorElement, bind map[string]Type, data *InstanceData, callSp Span) bool {
	super := ctor.Class.Supertype
	if super == nil {
		return true
	}
	superInst := substituteInterface(super, bind)

	var target *ConstructorElement
	var args []Argument
	for _, init := range ctor.Inits {
		if s, isSuper := init.(*SuperInit); isSuper {
			target, args = s.Ctor, s.Args
			break
		}
	}
	if target == nil {
		target = superInst.Class.Constructor("")
		if target == nil {
			// Object has no declared constructors and no fields.
			if superInst.Class.Supertype == nil && len(superInst.Class.Fields) == 0 {
				return true
			}
			ev.report(InvalidConstant, callSp)
			return false
		}
	}
	superData, ok := ev.delegate(target, superInst.Args, args, callSp)
	if !ok {
		return false
	}
	for _, name := range superData.FieldOrder {
		data.setField(name, superData.Fields[name])
	}
	return true
}

// runAssert checks one assert initializer. Unknown conditions pass; a known
// false condition makes the creation throw.
func (ev *Evaluator) runAssert(a *AssertInit) bool {
	cond := ev.eval(a.Cond)
	if !cond.IsValid() {
		return false
	}
	if !cond.isBoolish(ev.tp) {
		ev.report(TypeBoolRequired, a.Cond.Span())
		return false
	}
	if b, known := cond.KnownBool(); known && !b {
		msg := "assertion failed"
		if a.Message != nil {
			if mv := ev.eval(a.Message); mv.IsValid() {
				if s, isStr := mv.KnownString(); isStr {
					msg = s
				}
			}
		}
		ev.report(EvalThrowsException, a.Sp, msg)
		return false
	}
	return true
}

// checkAssignable verifies a bound value against its declared type. Unknown
// values are trusted to their static type; a null value needs a nullable
// site.
func (ev *Evaluator) checkAssignable(v Value, declType Type, sp Span) bool {
	if declType == nil {
		return true
	}
	if v.IsUnknown() {
		return true
	}
	if ev.tp.IsSubtypeOf(v.Type, declType) {
		return true
	}
	ev.report(ConstNotAssignable, sp, v.Type.String(), declType.String())
	return false
}

// completeTypeArgs pads missing type arguments with dynamic so instantiations
// of the same generic class compare structurally.
func completeTypeArgs(c *ClassElement, args []Type) []Type {
	if len(c.TypeParams) == 0 {
		return nil
	}
	out := make([]Type, len(c.TypeParams))
	for i := range out {
		if i < len(args) {
			out[i] = args[i]
		} else {
			out[i] = &DynamicType{}
		}
	}
	return out
}

////////////////////////////////////////////////////////////////////////////////
//                          ENVIRONMENT INTRINSICS
////////////////////////////////////////////////////////////////////////////////

type intrinsicKind int

const (
	notIntrinsic intrinsicKind = iota
	boolFromEnvironment
	boolHasEnvironment
	intFromEnvironment
	stringFromEnvironment
)

func environmentIntrinsicKind(tp *TypeProvider, ctor *ConstructorElement) intrinsicKind {
	switch ctor.Class {
	case tp.BoolClass:
		switch ctor.Name {
		case "fromEnvironment":
			return boolFromEnvironment
		case "hasEnvironment":
			return boolHasEnvironment
		}
	case tp.IntClass:
		if ctor.Name == "fromEnvironment" {
			return intFromEnvironment
		}
	case tp.StringClass:
		if ctor.Name == "fromEnvironment" {
			return stringFromEnvironment
		}
	}
	return notIntrinsic
}

// installEnvironmentConstructors attaches the intrinsic const factories to the
// built-in bool, int, and String classes. Called once per TypeProvider.
func installEnvironmentConstructors(tp *TypeProvider) {
	stringT := tp.StringType()
	nameParam := func() *ParameterElement {
		return &ParameterElement{Name: "name", Type: stringT, Kind: RequiredPositional}
	}
	defParam := func(t Type, def Expr) *ParameterElement {
		return &ParameterElement{Name: "defaultValue", Type: t, Kind: Named, Default: def}
	}

	tp.BoolClass.Ctors = append(tp.BoolClass.Ctors,
		&ConstructorElement{
			Name: "fromEnvironment", Class: tp.BoolClass, IsConst: true, IsFactory: true,
			Params: []*ParameterElement{nameParam(), defParam(tp.BoolType(), &BoolLit{Value: false})},
		},
		&ConstructorElement{
			Name: "hasEnvironment", Class: tp.BoolClass, IsConst: true, IsFactory: true,
			Params: []*ParameterElement{nameParam()},
		},
	)
	tp.IntClass.Ctors = append(tp.IntClass.Ctors,
		&ConstructorElement{
			Name: "fromEnvironment", Class: tp.IntClass, IsConst: true, IsFactory: true,
			Params: []*ParameterElement{nameParam(), defParam(tp.IntType(), &IntLit{Value: 0})},
		},
	)
	tp.StringClass.Ctors = append(tp.StringClass.Ctors,
		&ConstructorElement{
			Name: "fromEnvironment", Class: tp.StringClass, IsConst: true, IsFactory: true,
			Params: []*ParameterElement{nameParam(), defParam(stringT, &StringLit{Value: ""})},
		},
	)
}

// evalEnvironmentIntrinsic evaluates bool/int/String.fromEnvironment and
// bool.hasEnvironment. With no DeclaredVariables store the result is an
// Unknown value of the target type; with a store, an absent (or unparsable)
// variable yields the default value.
func (ev *Evaluator) evalEnvironmentIntrinsic(kind intrinsicKind, n *InstanceCreation) Value {
	args, ok := ev.evalArguments(n.Args)
	if !ok {
		return Invalid
	}
	if len(args.pos) != 1 {
		ev.report(InvalidConstant, n.Sp)
		return Invalid
	}
	nameVal := args.pos[0]
	if !nameVal.isStringish(ev.tp) {
		ev.report(TypeStringRequired, args.posSp[0])
		return Invalid
	}

	target := ev.intrinsicResultType(kind)
	name, nameKnown := nameVal.KnownString()
	if !nameKnown || ev.declared == nil {
		return UnknownVal(target)
	}

	defVal, ok := ev.intrinsicDefault(kind, n.Ctor, args)
	if !ok {
		return Invalid
	}

	switch kind {
	case boolHasEnvironment:
		return BoolVal(ev.tp, ev.declared.Has(name))
	case boolFromEnvironment:
		raw, present := ev.declared.Lookup(name)
		switch {
		case !present:
			return defVal
		case raw == "true":
			return BoolVal(ev.tp, true)
		case raw == "false":
			return BoolVal(ev.tp, false)
		default:
			return defVal
		}
	case intFromEnvironment:
		raw, present := ev.declared.Lookup(name)
		if !present {
			return defVal
		}
		i, err := strconv.ParseInt(raw, 0, 64)
		if err != nil {
			return defVal
		}
		return IntVal(ev.tp, i)
	case stringFromEnvironment:
		raw, present := ev.declared.Lookup(name)
		if !present {
			return defVal
		}
		return StringVal(ev.tp, raw)
	}
	ev.report(InvalidConstant, n.Sp)
	return Invalid
}

func (ev *Evaluator) intrinsicResultType(kind intrinsicKind) Type {
	switch kind {
	case intFromEnvironment:
		return ev.tp.IntType()
	case stringFromEnvironment:
		return ev.tp.StringType()
	default:
		return ev.tp.BoolType()
	}
}

// intrinsicDefault resolves the effective defaultValue: the named argument
// when supplied, otherwise the declared default, type-checked either way.
func (ev *Evaluator) intrinsicDefault(kind intrinsicKind, ctor *ConstructorElement, args actualArgs) (Value, bool) {
	if kind == boolHasEnvironment {
		return BoolVal(ev.tp, false), true
	}
	target := ev.intrinsicResultType(kind)
	if v, present := args.named["defaultValue"]; present {
		if !ev.checkAssignable(v, target, args.namedSp["defaultValue"]) {
			return Invalid, false
		}
		return v, true
	}
	for _, p := range ctor.Params {
		if p.Name == "defaultValue" && p.Default != nil {
			return ev.WithLexical(nil).eval(p.Default), true
		}
	}
	return NullVal(ev.tp), true
}
