// evaluator.go — the expression visitor driving constant evaluation
//
// OVERVIEW
// ========
// Evaluator walks a resolved expression tree and produces a Value, reporting
// every semantic failure to the session's ErrorReporter before yielding the
// invalid value for that sub-expression. Dispatch is one exhaustive type
// switch over the closed expression set in ast.go.
//
// An Evaluator is one evaluation *session*: identifier memoization and the
// cycle-detection stacks live in the session and are never shared across
// sessions. Constructor evaluation (engine.go) forks the evaluator with a
// fresh lexical environment while keeping the session state, so cycles are
// caught across the whole recursive call graph.
//
// EVALUATION POLICY
// =================
//   - Failures are local: a composite expression keeps evaluating sibling
//     sub-expressions after one fails, so one pass can surface several
//     independent diagnostics; the composite itself yields Invalid.
//   - Short-circuit and selection rules suppress unneeded branches. A known
//     bool condition means the unselected conditional branch is never
//     *required* to be evaluable; Features.ReportUnselectedBranch chooses
//     whether it is still visited for its diagnostics (policy knob — the
//     surrounding toolchain ties it to a language-version flag).
//   - Unknown values (environment-dependent) flow through every operator
//     well-typed; see value.go.
//
// Single-threaded and synchronous: one session must not be reentered
// concurrently. Callers may run many sessions in parallel as long as each has
// its own Evaluator (reporters shared across sessions need external locking).
package consteval

import "strconv"

////////////////////////////////////////////////////////////////////////////////
//                                  PUBLIC API
////////////////////////////////////////////////////////////////////////////////

// Features are policy switches tied to language versions by the host.
type Features struct {
	// ReportUnselectedBranch makes a conditional expression with a known
	// condition still visit the unselected branch and report its diagnostics.
	// The selected branch's value is returned either way.
	ReportUnselectedBranch bool
}

// Evaluator is one constant-evaluation session.
type Evaluator struct {
	tp       *TypeProvider
	declared *DeclaredVariables
	reporter ErrorReporter
	features Features
	lexical  *LexicalEnv

	sess *session
}

// session is the state shared by every fork of one evaluation session.
type session struct {
	memo         map[*VariableElement]Value
	varsOnStack  map[*VariableElement]bool
	ctorsOnStack map[*ConstructorElement]bool
}

// NewEvaluator starts a fresh session. declared may be nil: the build
// environment is then unavailable and environment intrinsics yield Unknown
// values. reporter must not be nil.
func NewEvaluator(tp *TypeProvider, declared *DeclaredVariables, reporter ErrorReporter, features Features) *Evaluator {
	return &Evaluator{
		tp:       tp,
		declared: declared,
		reporter: reporter,
		features: features,
		sess: &session{
			memo:         map[*VariableElement]Value{},
			varsOnStack:  map[*VariableElement]bool{},
			ctorsOnStack: map[*ConstructorElement]bool{},
		},
	}
}

// WithLexical returns an evaluator sharing this session but resolving
// identifiers through env first (constructor bindings, test overrides).
func (ev *Evaluator) WithLexical(env *LexicalEnv) *Evaluator {
	cp := *ev
	cp.lexical = env
	return &cp
}

// Evaluate computes the constant value of a root expression. On failure the
// invalid Value is returned and the reasons are on the reporter.
func (ev *Evaluator) Evaluate(e Expr) Value {
	return ev.eval(e)
}

// EvaluateDeclaration computes (and memoizes) the value of a const variable
// declaration, applying the declared-type coercion (int literal widening in a
// double context).
func (ev *Evaluator) EvaluateDeclaration(d *VariableElement) Value {
	return ev.evalDeclaration(d, Span{})
}

//// END_OF_PUBLIC

////////////////////////////////////////////////////////////////////////////////
//                                PRIVATE: DISPATCH
////////////////////////////////////////////////////////////////////////////////

func (ev *Evaluator) report(code ErrorCode, sp Span, args ...any) {
	ev.reporter.Report(code, sp, args...)
}

// opFail reports an operator failure against the node that produced it.
func (ev *Evaluator) opFail(err *EvalError, sp Span) Value {
	ev.report(err.Code, sp, err.Args...)
	return Invalid
}

// silenced returns an evaluator whose diagnostics go nowhere, for
// sub-evaluations whose failures are deliberately suppressed.
func (ev *Evaluator) silenced() *Evaluator {
	cp := *ev
	cp.reporter = discardReporter{}
	return &cp
}

func (ev *Evaluator) eval(e Expr) Value {
	switch n := e.(type) {
	case *NullLit:
		return NullVal(ev.tp)
	case *BoolLit:
		return BoolVal(ev.tp, n.Value)
	case *IntLit:
		return IntVal(ev.tp, n.Value)
	case *DoubleLit:
		return DoubleVal(ev.tp, n.Value)
	case *StringLit:
		return StringVal(ev.tp, n.Value)
	case *StringInterp:
		return ev.evalStringInterp(n)
	case *SymbolLit:
		return SymbolVal(ev.tp, n.Name)
	case *ListLit:
		return ev.evalListLit(n)
	case *SetOrMapLit:
		return ev.evalSetOrMapLit(n)
	case *Conditional:
		return ev.evalConditional(n)
	case *Binary:
		return ev.evalBinary(n)
	case *Unary:
		return ev.evalUnary(n)
	case *IsTest:
		return ev.evalIsTest(n)
	case *Cast:
		return ev.evalCast(n)
	case *Identifier:
		return ev.evalIdentifier(n)
	case *PropertyAccess:
		return ev.evalPropertyAccess(n)
	case *InstanceCreation:
		return ev.evalInstanceCreation(n)
	case *ConstructorRefExpr:
		return ev.evalConstructorRef(n)
	case *Invocation:
		return ev.evalInvocation(n)
	case *Paren:
		return ev.eval(n.Inner)
	}
	// A resolver can only hand us the closed set above; anything else is not
	// part of the constant sub-language.
	ev.report(InvalidConstant, e.Span())
	return Invalid
}

////////////////////////////////////////////////////////////////////////////////
//                          PRIVATE: OPERATORS & BRANCHES
////////////////////////////////////////////////////////////////////////////////

func (ev *Evaluator) evalBinary(n *Binary) Value {
	switch n.Op {
	case "&&":
		return ev.evalLogical(n, true)
	case "||":
		return ev.evalLogical(n, false)
	case "??":
		return ev.evalIfNull(n)
	}

	left := ev.eval(n.Left)
	right := ev.eval(n.Right)
	if !left.IsValid() || !right.IsValid() {
		return Invalid
	}

	var out Value
	var err *EvalError
	switch n.Op {
	case "+":
		out, err = left.Add(ev.tp, right)
	case "-":
		out, err = left.Subtract(ev.tp, right)
	case "*":
		out, err = left.Multiply(ev.tp, right)
	case "/":
		out, err = left.Divide(ev.tp, right)
	case "~/":
		out, err = left.IntegerDivide(ev.tp, right)
	case "%":
		out, err = left.Remainder(ev.tp, right)
	case "&":
		out, err = left.BitAnd(ev.tp, right)
	case "|":
		out, err = left.BitOr(ev.tp, right)
	case "^":
		out, err = left.BitXor(ev.tp, right)
	case "<<":
		out, err = left.ShiftLeft(ev.tp, right)
	case ">>":
		out, err = left.ShiftRight(ev.tp, right)
	case ">>>":
		out, err = left.ShiftRightUnsigned(ev.tp, right)
	case "<":
		out, err = left.LessThan(ev.tp, right)
	case "<=":
		out, err = left.LessOrEqual(ev.tp, right)
	case ">":
		out, err = left.GreaterThan(ev.tp, right)
	case ">=":
		out, err = left.GreaterOrEqual(ev.tp, right)
	case "==":
		out, err = left.EqualsOp(ev.tp, right, false)
	case "!=":
		out, err = left.EqualsOp(ev.tp, right, true)
	default:
		ev.report(InvalidConstant, n.Sp)
		return Invalid
	}
	if err != nil {
		return ev.opFail(err, n.Sp)
	}
	return out
}

// evalLogical implements && (and=true) and || (and=false). A known decisive
// left operand short-circuits: the right side is never evaluated, so it need
// not be a valid constant and produces no diagnostics.
func (ev *Evaluator) evalLogical(n *Binary, and bool) Value {
	left := ev.eval(n.Left)
	if !left.IsValid() {
		return Invalid
	}
	if !left.isBoolish(ev.tp) {
		ev.report(TypeBoolRequired, n.Left.Span())
		return Invalid
	}
	if b, ok := left.KnownBool(); ok && b != and {
		// false && _  or  true || _
		return BoolVal(ev.tp, b)
	}

	right := ev.eval(n.Right)
	if !right.IsValid() {
		return Invalid
	}
	if !right.isBoolish(ev.tp) {
		ev.report(TypeBoolRequired, n.Right.Span())
		return Invalid
	}
	if left.IsUnknown() {
		// unknown && false is still false; unknown || true is still true.
		if rb, ok := right.KnownBool(); ok && rb != and {
			return BoolVal(ev.tp, rb)
		}
		return UnknownVal(ev.tp.BoolType())
	}
	return right
}

// evalIfNull implements `??`. A statically known non-null left operand is
// returned without requiring the right side to be a constant at all; an
// invalid left operand is an error regardless of the right side.
func (ev *Evaluator) evalIfNull(n *Binary) Value {
	left := ev.eval(n.Left)
	if !left.IsValid() {
		return Invalid
	}
	if left.IsNull() {
		return ev.eval(n.Right)
	}
	if left.IsUnknown() && left.Type.Nullable() {
		right := ev.eval(n.Right)
		if !right.IsValid() {
			return Invalid
		}
		return UnknownVal(left.Type.WithNullability(false))
	}
	return left
}

func (ev *Evaluator) evalConditional(n *Conditional) Value {
	cond := ev.eval(n.Cond)
	if !cond.IsValid() {
		return Invalid
	}
	if !cond.isBoolish(ev.tp) {
		ev.report(TypeBoolRequired, n.Cond.Span())
		return Invalid
	}
	if cond.IsUnknown() {
		// Both branches must still be valid constants.
		thenV := ev.eval(n.Then)
		elseV := ev.eval(n.Else)
		if !thenV.IsValid() || !elseV.IsValid() {
			return Invalid
		}
		return UnknownVal(joinTypes(thenV.Type, elseV.Type))
	}

	b, _ := cond.KnownBool()
	selected, unselected := n.Then, n.Else
	if !b {
		selected, unselected = n.Else, n.Then
	}
	// Selecting a branch never requires the other branch to be evaluable.
	// The policy knob only controls whether its diagnostics surface.
	if ev.features.ReportUnselectedBranch {
		ev.eval(unselected)
	} else {
		ev.silenced().eval(unselected)
	}
	return ev.eval(selected)
}

func (ev *Evaluator) evalUnary(n *Unary) Value {
	v := ev.eval(n.Operand)
	if !v.IsValid() {
		return Invalid
	}
	var out Value
	var err *EvalError
	switch n.Op {
	case "-":
		out, err = v.Negate(ev.tp)
	case "~":
		out, err = v.BitNot(ev.tp)
	case "!":
		out, err = v.LogicalNot(ev.tp)
	default:
		ev.report(InvalidConstant, n.Sp)
		return Invalid
	}
	if err != nil {
		return ev.opFail(err, n.Sp)
	}
	return out
}

func (ev *Evaluator) evalIsTest(n *IsTest) Value {
	v := ev.eval(n.Expr)
	if !v.IsValid() {
		return Invalid
	}
	out, err := v.TestType(ev.tp, n.Target)
	if err != nil {
		return ev.opFail(err, n.Sp)
	}
	if n.Negated {
		neg, nerr := out.LogicalNot(ev.tp)
		if nerr != nil {
			return ev.opFail(nerr, n.Sp)
		}
		return neg
	}
	return out
}

func (ev *Evaluator) evalCast(n *Cast) Value {
	v := ev.eval(n.Expr)
	if !v.IsValid() {
		return Invalid
	}
	out, err := v.CastTo(ev.tp, n.Target)
	if err != nil {
		return ev.opFail(err, n.Sp)
	}
	return out
}

////////////////////////////////////////////////////////////////////////////////
//                       PRIVATE: IDENTIFIERS & PROPERTIES
////////////////////////////////////////////////////////////////////////////////

func (ev *Evaluator) evalIdentifier(n *Identifier) Value {
	if ev.lexical != nil {
		if v, ok := ev.lexical.Get(n.Name); ok {
			return v
		}
	}
	switch {
	case n.Decl != nil:
		return ev.evalDeclaration(n.Decl, n.Sp)
	case n.Class != nil:
		return TypeLiteralVal(ev.tp, &InterfaceType{Class: n.Class})
	case n.IsDynamic:
		return TypeLiteralVal(ev.tp, ev.tp.DynamicType())
	}
	ev.report(InvalidConstant, n.Sp)
	return Invalid
}

// evalDeclaration evaluates a const declaration's initializer, memoized per
// session. A declaration already being evaluated on this session's stack is a
// cyclic constant.
func (ev *Evaluator) evalDeclaration(d *VariableElement, sp Span) Value {
	if v, ok := ev.sess.memo[d]; ok {
		return v
	}
	if ev.sess.varsOnStack[d] {
		ev.report(RecursiveConstant, sp)
		return Invalid
	}
	if !d.IsConst || d.Init == nil {
		ev.report(InvalidConstant, sp)
		return Invalid
	}
	ev.sess.varsOnStack[d] = true
	// Initializers resolve in the declaration's own scope, not the caller's
	// lexical environment.
	v := ev.WithLexical(nil).eval(d.Init)
	delete(ev.sess.varsOnStack, d)
	if v.IsValid() && d.Type != nil {
		v = ev.coerce(v, d.Type)
	}
	// An invalid result computed while diagnostics are discarded must not be
	// memoized: the first non-silenced reference still has to re-evaluate and
	// surface the errors.
	if _, silent := ev.reporter.(discardReporter); !silent || v.IsValid() {
		ev.sess.memo[d] = v
	}
	return v
}

func (ev *Evaluator) evalPropertyAccess(n *PropertyAccess) Value {
	// A resolved static const field (C.x) bypasses the target entirely.
	if n.Decl != nil {
		return ev.evalDeclaration(n.Decl, n.Sp)
	}
	target := ev.eval(n.Target)
	if !target.IsValid() {
		return Invalid
	}
	if n.Name == "length" && target.isStringish(ev.tp) {
		out, err := target.StringLength(ev.tp)
		if err != nil {
			return ev.opFail(err, n.Sp)
		}
		return out
	}
	// No general member access in the constant sub-language.
	ev.report(InvalidConstant, n.Sp)
	return Invalid
}

func (ev *Evaluator) evalConstructorRef(n *ConstructorRefExpr) Value {
	ctor := n.Ctor
	bind := bindTypeParams(ctor.Class, n.TypeArgs)
	params := make([]Type, 0, len(ctor.Params))
	for _, p := range ctor.Params {
		if p.Kind != Named {
			params = append(params, substituteType(p.Type, bind))
		}
	}
	ret := &InterfaceType{Class: ctor.Class, Args: n.TypeArgs}
	t := &FunctionType{Params: params, Return: ret}
	return CtorRefVal(t, &CtorRefData{Ctor: ctor, TypeArgs: n.TypeArgs})
}

func (ev *Evaluator) evalInvocation(n *Invocation) Value {
	if n.Name == "identical" && len(n.Args) == 2 {
		a := ev.eval(n.Args[0])
		b := ev.eval(n.Args[1])
		if !a.IsValid() || !b.IsValid() {
			return Invalid
		}
		out, err := a.IdenticalTo(ev.tp, b)
		if err != nil {
			return ev.opFail(err, n.Sp)
		}
		return out
	}
	ev.report(InvalidConstant, n.Sp)
	return Invalid
}

////////////////////////////////////////////////////////////////////////////////
//                        PRIVATE: STRINGS & COLLECTIONS
////////////////////////////////////////////////////////////////////////////////

func (ev *Evaluator) evalStringInterp(n *StringInterp) Value {
	var b []byte
	unknown := false
	failed := false
	for _, part := range n.Parts {
		v := ev.eval(part)
		if !v.IsValid() {
			failed = true
			continue
		}
		if v.IsUnknown() {
			unknown = true
			continue
		}
		switch v.Kind {
		case KString:
			b = append(b, v.Data.(string)...)
		case KBool:
			b = strconv.AppendBool(b, v.Data.(bool))
		case KInt:
			b = strconv.AppendInt(b, v.Data.(int64), 10)
		case KDouble:
			b = append(b, DoubleVal(ev.tp, v.Data.(float64)).String()...)
		case KNull:
			b = append(b, "null"...)
		default:
			// Only primitives interpolate in constant strings.
			ev.report(InvalidConstant, part.Span())
			failed = true
		}
	}
	if failed {
		return Invalid
	}
	if unknown {
		return UnknownVal(ev.tp.StringType())
	}
	return StringVal(ev.tp, string(b))
}

func (ev *Evaluator) evalListLit(n *ListLit) Value {
	elemType := n.ElemType
	if elemType == nil {
		elemType = ev.tp.DynamicType()
	}
	out := []Value{}
	ok := true
	for _, el := range n.Elements {
		if !ev.addToList(&out, el, elemType) {
			ok = false
		}
	}
	if !ok {
		return Invalid
	}
	return ListVal(ev.tp, elemType, out)
}

func (ev *Evaluator) evalSetOrMapLit(n *SetOrMapLit) Value {
	if n.IsMap {
		keyType, valType := n.KeyType, n.ValType
		if keyType == nil {
			keyType = ev.tp.DynamicType()
		}
		if valType == nil {
			valType = ev.tp.DynamicType()
		}
		data := &MapData{}
		ok := true
		for _, el := range n.Elements {
			if !ev.addToMap(data, el, valType) {
				ok = false
			}
		}
		if !ok {
			return Invalid
		}
		return MapVal(ev.tp, keyType, valType, data)
	}

	elemType := n.ElemType
	if elemType == nil {
		elemType = ev.tp.DynamicType()
	}
	data := &SetData{}
	ok := true
	for _, el := range n.Elements {
		if !ev.addToSet(data, el, elemType) {
			ok = false
		}
	}
	if !ok {
		return Invalid
	}
	return SetVal(ev.tp, elemType, data)
}

// addToList appends the expansion of one collection element, left to right.
// It returns false when the element (or a nested one) failed; siblings keep
// evaluating so one pass can report several failures.
func (ev *Evaluator) addToList(out *[]Value, el CollectionElement, elemType Type) bool {
	switch e := el.(type) {
	case *ExprElement:
		v := ev.eval(e.Expr)
		if !v.IsValid() {
			return false
		}
		*out = append(*out, ev.coerce(v, elemType))
		return true
	case *IfElement:
		taken, ok := ev.takenBranch(e)
		if !ok {
			return false
		}
		if taken == nil {
			return true
		}
		return ev.addToList(out, taken, elemType)
	case *SpreadElement:
		elems, ok := ev.spreadIterable(e)
		if !ok {
			return false
		}
		*out = append(*out, elems...)
		return true
	case *MapEntryElement:
		ev.report(InvalidConstant, e.Sp)
		return false
	}
	return false
}

func (ev *Evaluator) addToSet(out *SetData, el CollectionElement, elemType Type) bool {
	switch e := el.(type) {
	case *ExprElement:
		v := ev.eval(e.Expr)
		if !v.IsValid() {
			return false
		}
		out.Add(ev.coerce(v, elemType))
		return true
	case *IfElement:
		taken, ok := ev.takenBranch(e)
		if !ok {
			return false
		}
		if taken == nil {
			return true
		}
		return ev.addToSet(out, taken, elemType)
	case *SpreadElement:
		elems, ok := ev.spreadIterable(e)
		if !ok {
			return false
		}
		for _, v := range elems {
			out.Add(v)
		}
		return true
	case *MapEntryElement:
		ev.report(InvalidConstant, e.Sp)
		return false
	}
	return false
}

func (ev *Evaluator) addToMap(out *MapData, el CollectionElement, valType Type) bool {
	switch e := el.(type) {
	case *MapEntryElement:
		k := ev.eval(e.Key)
		v := ev.eval(e.Value)
		if !k.IsValid() || !v.IsValid() {
			return false
		}
		if k.IsUnknown() {
			// A key whose identity is unknown makes the whole map unknowable.
			ev.report(InvalidConstant, e.Key.Span())
			return false
		}
		out.Put(k, ev.coerce(v, valType))
		return true
	case *IfElement:
		taken, ok := ev.takenBranch(e)
		if !ok {
			return false
		}
		if taken == nil {
			return true
		}
		return ev.addToMap(out, taken, valType)
	case *SpreadElement:
		v := ev.eval(e.Expr)
		if !v.IsValid() {
			return false
		}
		if v.IsNull() {
			if e.NullAware {
				return true
			}
			ev.report(EvalThrowsException, e.Sp, "spread of a null value")
			return false
		}
		m, ok := v.Data.(*MapData)
		if v.Kind != KMap || !ok {
			ev.report(InvalidConstant, e.Sp)
			return false
		}
		for i := range m.Keys {
			out.Put(m.Keys[i], m.Vals[i])
		}
		return true
	case *ExprElement:
		ev.report(InvalidConstant, e.Span())
		return false
	}
	return false
}

// takenBranch resolves an if-element's condition and returns the branch to
// include (nil when the condition is false and there is no else). The branch
// not taken is never evaluated.
func (ev *Evaluator) takenBranch(e *IfElement) (CollectionElement, bool) {
	cond := ev.eval(e.Cond)
	if !cond.IsValid() {
		return nil, false
	}
	if !cond.isBoolish(ev.tp) {
		ev.report(TypeBoolRequired, e.Cond.Span())
		return nil, false
	}
	b, ok := cond.KnownBool()
	if !ok {
		// An unknown condition leaves the collection's shape undetermined.
		ev.report(InvalidConstant, e.Cond.Span())
		return nil, false
	}
	if b {
		return e.Then, true
	}
	return e.Else, true
}

// spreadIterable evaluates a spread inside a list or set literal. Lists and
// sets both splice; maps do not belong here.
func (ev *Evaluator) spreadIterable(e *SpreadElement) ([]Value, bool) {
	v := ev.eval(e.Expr)
	if !v.IsValid() {
		return nil, false
	}
	if v.IsNull() {
		if e.NullAware {
			return nil, true
		}
		ev.report(EvalThrowsException, e.Sp, "spread of a null value")
		return nil, false
	}
	switch v.Kind {
	case KList:
		return v.Data.([]Value), true
	case KSet:
		return v.Data.(*SetData).Elems, true
	}
	ev.report(InvalidConstant, e.Sp)
	return nil, false
}

////////////////////////////////////////////////////////////////////////////////
//                               PRIVATE: HELPERS
////////////////////////////////////////////////////////////////////////////////

// coerce applies the declared-type widening: an int value bound to a
// double-typed declaration site becomes the equivalent double.
func (ev *Evaluator) coerce(v Value, declared Type) Value {
	if declared == nil || !v.IsValid() {
		return v
	}
	if n, ok := v.KnownInt(); ok && isClassType(declared.WithNullability(false), ev.tp.DoubleClass) {
		return DoubleVal(ev.tp, float64(n))
	}
	return v
}

// joinTypes is the static type of a value that may come from either branch.
func joinTypes(a, b Type) Type {
	if a != nil && b != nil && TypeEquals(a, b) {
		return a
	}
	return &DynamicType{}
}
