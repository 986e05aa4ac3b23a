// value.go — the constant value model and its operator semantics
//
// OVERVIEW
// ========
// Value is the universal carrier for every representable constant: null,
// bool, int (64-bit two's complement with wraparound), double, string,
// symbol, type literal, list, map, set, constant-object instance, constructor
// reference, and the Unknown marker for values that depend on unavailable
// environment input. A Value pairs its payload (Kind + Data) with its static
// Type from types.go; the two are kept consistent by the constructors below.
//
// The zero Value is the *invalid* value — the result of a failed
// sub-evaluation. It never carries a payload; check IsValid before use.
//
// Values are immutable once constructed. Composite values own their element
// values; the source language forbids self-referential constant literals, so
// there is no cyclic ownership.
//
// OPERATORS
// =========
// Every operator of the constant sub-language is a method that either returns
// a new Value or an *EvalError describing why the operation is invalid. The
// caller (evaluator.go) attaches the offending node's span and reports it.
// Operations on Unknown operands stay well-typed: when the operand kinds are
// acceptable, the result is an Unknown of the result type; when they are not,
// the type error is reported exactly as for known values.
//
// EQUALITY
// ========
// ConstEquals is the constant-level equality relation: deep, structural, and
// type-aware. Map key deduplication and set membership use it — never
// identity. Two Unknown values are never ConstEquals (their payloads could
// differ); the == operator therefore yields an Unknown bool when either side
// is Unknown.
package consteval

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

////////////////////////////////////////////////////////////////////////////////
//                              PUBLIC TYPES & CTORS
////////////////////////////////////////////////////////////////////////////////

// ValueKind enumerates the payload kinds a Value may hold.
type ValueKind int

const (
	KInvalid ValueKind = iota // zero value; a failed sub-evaluation
	KNull                     // null (no payload)
	KBool                     // bool
	KInt                      // int64
	KDouble                   // float64
	KString                   // string
	KSymbol                   // string (the symbol's name)
	KType                     // Type (a type literal)
	KList                     // []Value
	KMap                      // *MapData (insertion-ordered, deduplicated)
	KSet                      // *SetData (deduplicated)
	KInstance                 // *InstanceData
	KCtorRef                  // *CtorRefData (constructor tear-off)
	KUnknown                  // no payload; Type carries the static type
)

// Value is one constant value: a static type plus a tagged payload.
type Value struct {
	Type Type
	Kind ValueKind
	Data any
}

// Invalid is the result of a failed sub-evaluation.
var Invalid = Value{}

// IsValid reports whether the value is a real evaluation result.
func (v Value) IsValid() bool { return v.Kind != KInvalid }

// IsUnknown reports whether the value's payload depends on unavailable input.
func (v Value) IsUnknown() bool { return v.Kind == KUnknown }

// IsNull reports a known null.
func (v Value) IsNull() bool { return v.Kind == KNull }

// MapData is the insertion-ordered payload of a constant map. Keys are
// deduplicated by ConstEquals; a duplicate key keeps its first position and
// takes the last value.
type MapData struct {
	Keys []Value
	Vals []Value
}

// Get looks up k by constant equality.
func (m *MapData) Get(k Value) (Value, bool) {
	for i, key := range m.Keys {
		if ConstEquals(key, k) {
			return m.Vals[i], true
		}
	}
	return Value{}, false
}

// Put inserts or overwrites k. Last write wins; first occurrence keeps its
// position in the insertion order.
func (m *MapData) Put(k, v Value) {
	for i, key := range m.Keys {
		if ConstEquals(key, k) {
			m.Vals[i] = v
			return
		}
	}
	m.Keys = append(m.Keys, k)
	m.Vals = append(m.Vals, v)
}

// Len returns the number of entries.
func (m *MapData) Len() int { return len(m.Keys) }

// SetData is the payload of a constant set; duplicates are dropped.
type SetData struct {
	Elems []Value
}

// Add appends v unless an equal element is already present.
func (s *SetData) Add(v Value) {
	for _, e := range s.Elems {
		if ConstEquals(e, v) {
			return
		}
	}
	s.Elems = append(s.Elems, v)
}

// Has reports membership by constant equality.
func (s *SetData) Has(v Value) bool {
	for _, e := range s.Elems {
		if ConstEquals(e, v) {
			return true
		}
	}
	return false
}

// InstanceData is the payload of a user-defined constant object: the
// constructor that produced it and its field values (superclass fields
// included), in declaration order.
type InstanceData struct {
	Ctor       *ConstructorElement
	FieldOrder []string
	Fields     map[string]Value
}

// Field returns the value of the named field.
func (i *InstanceData) Field(name string) (Value, bool) {
	v, ok := i.Fields[name]
	return v, ok
}

func (i *InstanceData) setField(name string, v Value) {
	if _, ok := i.Fields[name]; !ok {
		i.FieldOrder = append(i.FieldOrder, name)
	}
	i.Fields[name] = v
}

// CtorRefData is the payload of a constructor tear-off. TypeArgs nil is the
// non-instantiated generic form; it is never identical to an instantiated one.
type CtorRefData struct {
	Ctor     *ConstructorElement
	TypeArgs []Type
}

// Constructors. Each pairs the payload with the matching built-in type.

func NullVal(tp *TypeProvider) Value { return Value{Type: tp.NullType(), Kind: KNull} }
func BoolVal(tp *TypeProvider, b bool) Value {
	return Value{Type: tp.BoolType(), Kind: KBool, Data: b}
}
func IntVal(tp *TypeProvider, n int64) Value {
	return Value{Type: tp.IntType(), Kind: KInt, Data: n}
}
func DoubleVal(tp *TypeProvider, f float64) Value {
	return Value{Type: tp.DoubleType(), Kind: KDouble, Data: f}
}
func StringVal(tp *TypeProvider, s string) Value {
	return Value{Type: tp.StringType(), Kind: KString, Data: s}
}
func SymbolVal(tp *TypeProvider, name string) Value {
	return Value{Type: tp.SymbolType(), Kind: KSymbol, Data: name}
}
func TypeLiteralVal(tp *TypeProvider, t Type) Value {
	return Value{Type: tp.TypeType(), Kind: KType, Data: t}
}
func ListVal(tp *TypeProvider, elem Type, elems []Value) Value {
	return Value{Type: tp.ListType(elem), Kind: KList, Data: elems}
}
func SetVal(tp *TypeProvider, elem Type, data *SetData) Value {
	return Value{Type: tp.SetType(elem), Kind: KSet, Data: data}
}
func MapVal(tp *TypeProvider, key, val Type, data *MapData) Value {
	return Value{Type: tp.MapType(key, val), Kind: KMap, Data: data}
}
func InstanceVal(t Type, data *InstanceData) Value {
	return Value{Type: t, Kind: KInstance, Data: data}
}
func CtorRefVal(t Type, data *CtorRefData) Value {
	return Value{Type: t, Kind: KCtorRef, Data: data}
}

// UnknownVal marks a value of static type t whose payload cannot be computed
// without further environment input.
func UnknownVal(t Type) Value { return Value{Type: t, Kind: KUnknown} }

// Known payload accessors. The bool result is false for any other kind,
// including Unknown.

func (v Value) KnownBool() (bool, bool) {
	b, ok := v.Data.(bool)
	return b, ok && v.Kind == KBool
}

func (v Value) KnownInt() (int64, bool) {
	n, ok := v.Data.(int64)
	return n, ok && v.Kind == KInt
}

func (v Value) KnownDouble() (float64, bool) {
	f, ok := v.Data.(float64)
	return f, ok && v.Kind == KDouble
}

func (v Value) KnownString() (string, bool) {
	s, ok := v.Data.(string)
	return s, ok && v.Kind == KString
}

////////////////////////////////////////////////////////////////////////////////
//                              CONSTANT EQUALITY
////////////////////////////////////////////////////////////////////////////////

// ConstEquals is the deep, structural, type-aware constant equality relation.
// Unknown and invalid values equal nothing, including themselves.
func ConstEquals(a, b Value) bool {
	if a.Kind == KInvalid || a.Kind == KUnknown || b.Kind == KInvalid || b.Kind == KUnknown {
		return false
	}
	// int and double never compare equal at constant level; identical kinds only.
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KNull:
		return true
	case KBool:
		return a.Data.(bool) == b.Data.(bool)
	case KInt:
		return a.Data.(int64) == b.Data.(int64)
	case KDouble:
		return a.Data.(float64) == b.Data.(float64)
	case KString, KSymbol:
		return a.Data.(string) == b.Data.(string)
	case KType:
		return TypeEquals(a.Data.(Type), b.Data.(Type))
	case KList:
		ax, bx := a.Data.([]Value), b.Data.([]Value)
		if len(ax) != len(bx) || !TypeEquals(a.Type, b.Type) {
			return false
		}
		for i := range ax {
			if !ConstEquals(ax[i], bx[i]) {
				return false
			}
		}
		return true
	case KSet:
		as, bs := a.Data.(*SetData), b.Data.(*SetData)
		if len(as.Elems) != len(bs.Elems) || !TypeEquals(a.Type, b.Type) {
			return false
		}
		for _, e := range as.Elems {
			if !bs.Has(e) {
				return false
			}
		}
		return true
	case KMap:
		am, bm := a.Data.(*MapData), b.Data.(*MapData)
		if am.Len() != bm.Len() || !TypeEquals(a.Type, b.Type) {
			return false
		}
		for i, k := range am.Keys {
			bv, ok := bm.Get(k)
			if !ok || !ConstEquals(am.Vals[i], bv) {
				return false
			}
		}
		return true
	case KInstance:
		ai, bi := a.Data.(*InstanceData), b.Data.(*InstanceData)
		if !SameClass(ai.Ctor.Class, bi.Ctor.Class) || !TypeEquals(a.Type, b.Type) {
			return false
		}
		if len(ai.Fields) != len(bi.Fields) {
			return false
		}
		for name, av := range ai.Fields {
			bv, ok := bi.Fields[name]
			if !ok || !ConstEquals(av, bv) {
				return false
			}
		}
		return true
	case KCtorRef:
		ar, br := a.Data.(*CtorRefData), b.Data.(*CtorRefData)
		if ar.Ctor != br.Ctor {
			return false
		}
		if (ar.TypeArgs == nil) != (br.TypeArgs == nil) || len(ar.TypeArgs) != len(br.TypeArgs) {
			return false
		}
		for i := range ar.TypeArgs {
			if !TypeEquals(ar.TypeArgs[i], br.TypeArgs[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Hash returns a structural hash consistent with ConstEquals (FNV-1a over the
// payload structure). Unknown and invalid values hash to 0.
func (v Value) Hash() uint64 {
	const offset = 14695981039346656037
	const prime = 1099511628211
	h := uint64(offset)
	mix := func(x uint64) {
		h ^= x
		h *= prime
	}
	mixStr := func(s string) {
		for i := 0; i < len(s); i++ {
			mix(uint64(s[i]))
		}
	}
	mix(uint64(v.Kind))
	switch v.Kind {
	case KBool:
		if v.Data.(bool) {
			mix(1)
		}
	case KInt:
		mix(uint64(v.Data.(int64)))
	case KDouble:
		mix(math.Float64bits(v.Data.(float64)))
	case KString, KSymbol:
		mixStr(v.Data.(string))
	case KType:
		mixStr(v.Data.(Type).String())
	case KList:
		for _, e := range v.Data.([]Value) {
			mix(e.Hash())
		}
	case KSet:
		// Order-insensitive: sort element hashes before mixing.
		hs := make([]uint64, 0, len(v.Data.(*SetData).Elems))
		for _, e := range v.Data.(*SetData).Elems {
			hs = append(hs, e.Hash())
		}
		sort.Slice(hs, func(i, j int) bool { return hs[i] < hs[j] })
		for _, x := range hs {
			mix(x)
		}
	case KMap:
		m := v.Data.(*MapData)
		hs := make([]uint64, 0, m.Len())
		for i := range m.Keys {
			hs = append(hs, m.Keys[i].Hash()*31+m.Vals[i].Hash())
		}
		sort.Slice(hs, func(i, j int) bool { return hs[i] < hs[j] })
		for _, x := range hs {
			mix(x)
		}
	case KInstance:
		inst := v.Data.(*InstanceData)
		mixStr(inst.Ctor.Class.Name)
		for _, name := range inst.FieldOrder {
			mixStr(name)
			mix(inst.Fields[name].Hash())
		}
	case KCtorRef:
		ref := v.Data.(*CtorRefData)
		mixStr(ref.Ctor.DisplayName())
		for _, t := range ref.TypeArgs {
			mixStr(t.String())
		}
	case KUnknown, KInvalid:
		return 0
	}
	return h
}

////////////////////////////////////////////////////////////////////////////////
//                                  OPERATORS
////////////////////////////////////////////////////////////////////////////////

// Add implements `+`: numeric addition or string concatenation.
func (v Value) Add(tp *TypeProvider, o Value) (Value, *EvalError) {
	if v.isStringish(tp) || o.isStringish(tp) {
		if !v.isStringish(tp) || !o.isStringish(tp) {
			return Invalid, &EvalError{Code: TypeStringRequired}
		}
		if v.IsUnknown() || o.IsUnknown() {
			return UnknownVal(tp.StringType()), nil
		}
		return StringVal(tp, v.Data.(string)+o.Data.(string)), nil
	}
	return v.arith(tp, o, func(a, b int64) int64 { return a + b },
		func(a, b float64) float64 { return a + b })
}

// Subtract implements `-`.
func (v Value) Subtract(tp *TypeProvider, o Value) (Value, *EvalError) {
	return v.arith(tp, o, func(a, b int64) int64 { return a - b },
		func(a, b float64) float64 { return a - b })
}

// Multiply implements `*`.
func (v Value) Multiply(tp *TypeProvider, o Value) (Value, *EvalError) {
	return v.arith(tp, o, func(a, b int64) int64 { return a * b },
		func(a, b float64) float64 { return a * b })
}

// Divide implements `/`; the result is always a double. Division by zero on
// doubles follows IEEE semantics (infinities and NaN), never a failure.
func (v Value) Divide(tp *TypeProvider, o Value) (Value, *EvalError) {
	if err := requireNum(tp, v, o); err != nil {
		return Invalid, err
	}
	if v.IsUnknown() || o.IsUnknown() {
		return UnknownVal(tp.DoubleType()), nil
	}
	return DoubleVal(tp, v.asDouble()/o.asDouble()), nil
}

// IntegerDivide implements `~/`: truncating division with an int result.
// A zero divisor is an evaluation-time throw.
func (v Value) IntegerDivide(tp *TypeProvider, o Value) (Value, *EvalError) {
	if err := requireNum(tp, v, o); err != nil {
		return Invalid, err
	}
	if v.IsUnknown() || o.IsUnknown() {
		return UnknownVal(tp.IntType()), nil
	}
	if v.Kind == KInt && o.Kind == KInt {
		b := o.Data.(int64)
		if b == 0 {
			return Invalid, throwsErr("integer division by zero")
		}
		return IntVal(tp, v.Data.(int64)/b), nil
	}
	q := v.asDouble() / o.asDouble()
	if math.IsNaN(q) || math.IsInf(q, 0) {
		return Invalid, throwsErr("integer division by zero")
	}
	return IntVal(tp, int64(math.Trunc(q))), nil
}

// Remainder implements `%`: the Euclidean modulo with a non-negative result
// for known int operands (r in [0, |b|)). A zero int divisor throws; double
// operands follow IEEE remainder adjusted to be non-negative.
func (v Value) Remainder(tp *TypeProvider, o Value) (Value, *EvalError) {
	if err := requireNum(tp, v, o); err != nil {
		return Invalid, err
	}
	if v.IsUnknown() || o.IsUnknown() {
		return UnknownVal(numResultType(tp, v, o)), nil
	}
	if v.Kind == KInt && o.Kind == KInt {
		b := o.Data.(int64)
		if b == 0 {
			return Invalid, throwsErr("integer modulo by zero")
		}
		r := v.Data.(int64) % b
		if r < 0 {
			if b < 0 {
				r -= b
			} else {
				r += b
			}
		}
		return IntVal(tp, r), nil
	}
	r := math.Mod(v.asDouble(), o.asDouble())
	if r < 0 {
		r += math.Abs(o.asDouble())
	}
	return DoubleVal(tp, r), nil
}

// Negate implements unary `-`.
func (v Value) Negate(tp *TypeProvider) (Value, *EvalError) {
	if !v.isNumish(tp) {
		return Invalid, &EvalError{Code: TypeNumRequired}
	}
	if v.IsUnknown() {
		return UnknownVal(v.Type), nil
	}
	if v.Kind == KInt {
		return IntVal(tp, -v.Data.(int64)), nil
	}
	return DoubleVal(tp, -v.Data.(float64)), nil
}

// BitNot implements unary `~` on int.
func (v Value) BitNot(tp *TypeProvider) (Value, *EvalError) {
	if !v.isIntish(tp) {
		return Invalid, &EvalError{Code: TypeIntRequired}
	}
	if v.IsUnknown() {
		return UnknownVal(tp.IntType()), nil
	}
	return IntVal(tp, ^v.Data.(int64)), nil
}

// LogicalNot implements unary `!` on bool.
func (v Value) LogicalNot(tp *TypeProvider) (Value, *EvalError) {
	if !v.isBoolish(tp) {
		return Invalid, &EvalError{Code: TypeBoolRequired}
	}
	if v.IsUnknown() {
		return UnknownVal(tp.BoolType()), nil
	}
	return BoolVal(tp, !v.Data.(bool)), nil
}

// BitAnd implements `&` pointwise on two ints or two bools. Mixing the kinds
// is a hard failure. An Unknown bool operand keeps the result a well-typed
// Unknown bool; likewise for int.
func (v Value) BitAnd(tp *TypeProvider, o Value) (Value, *EvalError) {
	return v.bitwise(tp, o,
		func(a, b int64) int64 { return a & b },
		func(a, b bool) bool { return a && b })
}

// BitOr implements `|`; see BitAnd for the operand rules.
func (v Value) BitOr(tp *TypeProvider, o Value) (Value, *EvalError) {
	return v.bitwise(tp, o,
		func(a, b int64) int64 { return a | b },
		func(a, b bool) bool { return a || b })
}

// BitXor implements `^`; see BitAnd for the operand rules.
func (v Value) BitXor(tp *TypeProvider, o Value) (Value, *EvalError) {
	return v.bitwise(tp, o,
		func(a, b int64) int64 { return a ^ b },
		func(a, b bool) bool { return a != b })
}

// ShiftLeft implements `<<` on the 64-bit pattern. Negative shift amounts
// throw; amounts >= 64 shift everything out and yield 0.
func (v Value) ShiftLeft(tp *TypeProvider, o Value) (Value, *EvalError) {
	return v.shift(tp, o, func(x int64, n int64) int64 {
		if n >= 64 {
			return 0
		}
		return x << uint(n)
	})
}

// ShiftRight implements the arithmetic `>>`. Negative amounts throw; amounts
// >= 64 saturate to the sign extension (0 or -1).
func (v Value) ShiftRight(tp *TypeProvider, o Value) (Value, *EvalError) {
	return v.shift(tp, o, func(x int64, n int64) int64 {
		if n >= 64 {
			n = 63
		}
		return x >> uint(n)
	})
}

// ShiftRightUnsigned implements `>>>`: the operand is treated as a 64-bit
// unsigned pattern. Shifting by 0 is the identity; by >= 64 yields 0 for any
// operand; negative amounts throw.
func (v Value) ShiftRightUnsigned(tp *TypeProvider, o Value) (Value, *EvalError) {
	return v.shift(tp, o, func(x int64, n int64) int64 {
		if n >= 64 {
			return 0
		}
		return int64(uint64(x) >> uint(n))
	})
}

// LessThan implements `<` on num operands.
func (v Value) LessThan(tp *TypeProvider, o Value) (Value, *EvalError) {
	return v.compare(tp, o, func(a, b float64) bool { return a < b },
		func(a, b int64) bool { return a < b })
}

// LessOrEqual implements `<=`.
func (v Value) LessOrEqual(tp *TypeProvider, o Value) (Value, *EvalError) {
	return v.compare(tp, o, func(a, b float64) bool { return a <= b },
		func(a, b int64) bool { return a <= b })
}

// GreaterThan implements `>`.
func (v Value) GreaterThan(tp *TypeProvider, o Value) (Value, *EvalError) {
	return v.compare(tp, o, func(a, b float64) bool { return a > b },
		func(a, b int64) bool { return a > b })
}

// GreaterOrEqual implements `>=`.
func (v Value) GreaterOrEqual(tp *TypeProvider, o Value) (Value, *EvalError) {
	return v.compare(tp, o, func(a, b float64) bool { return a >= b },
		func(a, b int64) bool { return a >= b })
}

// EqualsOp implements `==`/`!=` via constant equality. Either side Unknown
// keeps the result an Unknown bool.
func (v Value) EqualsOp(tp *TypeProvider, o Value, negated bool) (Value, *EvalError) {
	if v.IsUnknown() || o.IsUnknown() {
		return UnknownVal(tp.BoolType()), nil
	}
	eq := ConstEquals(v, o)
	// int/double cross-kind numeric comparison still equates 1 and 1.0.
	if !eq && v.isNumish(tp) && o.isNumish(tp) {
		eq = v.asDouble() == o.asDouble()
	}
	if negated {
		eq = !eq
	}
	return BoolVal(tp, eq), nil
}

// IdenticalTo implements `identical(a, b)`. Constructor references compare by
// constructor identity plus the exact type-argument list: an instantiated
// reference is never identical to the non-instantiated generic form. All
// other constants use canonical (structural) identity.
func (v Value) IdenticalTo(tp *TypeProvider, o Value) (Value, *EvalError) {
	if v.IsUnknown() || o.IsUnknown() {
		return UnknownVal(tp.BoolType()), nil
	}
	if v.Kind == KCtorRef || o.Kind == KCtorRef {
		if v.Kind != o.Kind {
			return BoolVal(tp, false), nil
		}
		return BoolVal(tp, ConstEquals(v, o)), nil
	}
	if v.isNumish(tp) && o.isNumish(tp) && v.Kind == o.Kind {
		return BoolVal(tp, ConstEquals(v, o)), nil
	}
	return BoolVal(tp, ConstEquals(v, o)), nil
}

// TestType implements `is`: the subtyping relation over the value's static
// type. The payload is irrelevant except for Unknown values, whose test is
// decided by the static type when it already conforms, and Unknown otherwise.
func (v Value) TestType(tp *TypeProvider, t Type) (Value, *EvalError) {
	if v.IsUnknown() {
		if tp.IsSubtypeOf(v.Type, t) {
			return BoolVal(tp, true), nil
		}
		return UnknownVal(tp.BoolType()), nil
	}
	return BoolVal(tp, tp.IsSubtypeOf(v.Type, t)), nil
}

// CastTo implements `as`: the operand unchanged when the is-test succeeds,
// otherwise an evaluation-time throw.
func (v Value) CastTo(tp *TypeProvider, t Type) (Value, *EvalError) {
	if v.IsUnknown() {
		if tp.IsSubtypeOf(v.Type, t) {
			return v, nil
		}
		return UnknownVal(t), nil
	}
	if tp.IsSubtypeOf(v.Type, t) {
		return v, nil
	}
	return Invalid, throwsErr(fmt.Sprintf("type '%s' is not a subtype of type '%s' in type cast", v.Type, t))
}

// StringLength implements the constant `.length` property on strings. The
// result counts UTF-16 code units, matching the source language.
func (v Value) StringLength(tp *TypeProvider) (Value, *EvalError) {
	if !v.isStringish(tp) {
		return Invalid, &EvalError{Code: TypeStringRequired}
	}
	if v.IsUnknown() {
		return UnknownVal(tp.IntType()), nil
	}
	n := int64(0)
	for _, r := range v.Data.(string) {
		if r > 0xFFFF {
			n += 2
		} else {
			n++
		}
	}
	return IntVal(tp, n), nil
}

// String renders a source-like debug representation.
func (v Value) String() string {
	switch v.Kind {
	case KInvalid:
		return "<invalid>"
	case KNull:
		return "null"
	case KBool:
		return strconv.FormatBool(v.Data.(bool))
	case KInt:
		return strconv.FormatInt(v.Data.(int64), 10)
	case KDouble:
		f := v.Data.(float64)
		s := strconv.FormatFloat(f, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEnI") {
			s += ".0"
		}
		return s
	case KString:
		return strconv.Quote(v.Data.(string))
	case KSymbol:
		return "#" + v.Data.(string)
	case KType:
		return v.Data.(Type).String()
	case KList:
		parts := make([]string, 0, len(v.Data.([]Value)))
		for _, e := range v.Data.([]Value) {
			parts = append(parts, e.String())
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KSet:
		parts := make([]string, 0, len(v.Data.(*SetData).Elems))
		for _, e := range v.Data.(*SetData).Elems {
			parts = append(parts, e.String())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KMap:
		m := v.Data.(*MapData)
		parts := make([]string, 0, m.Len())
		for i := range m.Keys {
			parts = append(parts, m.Keys[i].String()+": "+m.Vals[i].String())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KInstance:
		inst := v.Data.(*InstanceData)
		parts := make([]string, 0, len(inst.FieldOrder))
		for _, name := range inst.FieldOrder {
			parts = append(parts, name+": "+inst.Fields[name].String())
		}
		return inst.Ctor.Class.Name + "(" + strings.Join(parts, ", ") + ")"
	case KCtorRef:
		ref := v.Data.(*CtorRefData)
		s := ref.Ctor.Class.Name
		if len(ref.TypeArgs) > 0 {
			args := make([]string, len(ref.TypeArgs))
			for i, t := range ref.TypeArgs {
				args[i] = t.String()
			}
			s += "<" + strings.Join(args, ", ") + ">"
		}
		if ref.Ctor.Name == "" {
			return s + ".new"
		}
		return s + "." + ref.Ctor.Name
	case KUnknown:
		return "<unknown " + v.Type.String() + ">"
	}
	return "<?>"
}

//// END_OF_PUBLIC

////////////////////////////////////////////////////////////////////////////////
//                             PRIVATE OPERATOR CORE
////////////////////////////////////////////////////////////////////////////////

func throwsErr(msg string) *EvalError {
	return &EvalError{Code: EvalThrowsException, Args: []any{msg}}
}

// Kind predicates that see through Unknown via the static type.

func (v Value) isBoolish(tp *TypeProvider) bool {
	if v.Kind == KBool {
		return true
	}
	return v.Kind == KUnknown && isClassType(v.Type, tp.BoolClass)
}

func (v Value) isIntish(tp *TypeProvider) bool {
	if v.Kind == KInt {
		return true
	}
	return v.Kind == KUnknown && isClassType(v.Type, tp.IntClass)
}

func (v Value) isNumish(tp *TypeProvider) bool {
	if v.Kind == KInt || v.Kind == KDouble {
		return true
	}
	if v.Kind != KUnknown {
		return false
	}
	return isClassType(v.Type, tp.IntClass) || isClassType(v.Type, tp.DoubleClass) ||
		isClassType(v.Type, tp.NumClass)
}

func (v Value) isStringish(tp *TypeProvider) bool {
	if v.Kind == KString {
		return true
	}
	return v.Kind == KUnknown && isClassType(v.Type, tp.StringClass)
}

func isClassType(t Type, c *ClassElement) bool {
	it, ok := t.(*InterfaceType)
	return ok && it.Class == c
}

func (v Value) asDouble() float64 {
	if v.Kind == KInt {
		return float64(v.Data.(int64))
	}
	return v.Data.(float64)
}

func requireNum(tp *TypeProvider, a, b Value) *EvalError {
	if !a.isNumish(tp) || !b.isNumish(tp) {
		return &EvalError{Code: TypeNumRequired}
	}
	return nil
}

// numResultType picks the static type of a numeric result with Unknown
// operands: int when both sides are int-typed, double when either side is
// double-typed, num otherwise.
func numResultType(tp *TypeProvider, a, b Value) Type {
	aInt := a.Kind == KInt || isClassType(a.Type, tp.IntClass)
	bInt := b.Kind == KInt || isClassType(b.Type, tp.IntClass)
	if aInt && bInt {
		return tp.IntType()
	}
	aDbl := a.Kind == KDouble || isClassType(a.Type, tp.DoubleClass)
	bDbl := b.Kind == KDouble || isClassType(b.Type, tp.DoubleClass)
	if aDbl || bDbl {
		return tp.DoubleType()
	}
	return tp.NumType()
}

// arith is the common core of + - *: int/int stays int with 64-bit
// wraparound, any double operand promotes to double.
func (v Value) arith(tp *TypeProvider, o Value, fi func(a, b int64) int64, ff func(a, b float64) float64) (Value, *EvalError) {
	if err := requireNum(tp, v, o); err != nil {
		return Invalid, err
	}
	if v.IsUnknown() || o.IsUnknown() {
		return UnknownVal(numResultType(tp, v, o)), nil
	}
	if v.Kind == KInt && o.Kind == KInt {
		return IntVal(tp, fi(v.Data.(int64), o.Data.(int64))), nil
	}
	return DoubleVal(tp, ff(v.asDouble(), o.asDouble())), nil
}

func (v Value) bitwise(tp *TypeProvider, o Value, fi func(a, b int64) int64, fb func(a, b bool) bool) (Value, *EvalError) {
	switch {
	case v.isBoolish(tp) && o.isBoolish(tp):
		if v.IsUnknown() || o.IsUnknown() {
			return UnknownVal(tp.BoolType()), nil
		}
		return BoolVal(tp, fb(v.Data.(bool), o.Data.(bool))), nil
	case v.isIntish(tp) && o.isIntish(tp):
		if v.IsUnknown() || o.IsUnknown() {
			return UnknownVal(tp.IntType()), nil
		}
		return IntVal(tp, fi(v.Data.(int64), o.Data.(int64))), nil
	default:
		return Invalid, &EvalError{Code: TypeBoolIntRequired}
	}
}

// shift validates operands and the shift amount, then applies f. The amount
// is checked even when the left operand is Unknown: a known negative amount
// always throws.
func (v Value) shift(tp *TypeProvider, o Value, f func(x, n int64) int64) (Value, *EvalError) {
	if !v.isIntish(tp) || !o.isIntish(tp) {
		return Invalid, &EvalError{Code: TypeIntRequired}
	}
	if n, ok := o.KnownInt(); ok && n < 0 {
		return Invalid, throwsErr(fmt.Sprintf("shift amount must be non-negative, was %d", n))
	}
	if v.IsUnknown() || o.IsUnknown() {
		return UnknownVal(tp.IntType()), nil
	}
	return IntVal(tp, f(v.Data.(int64), o.Data.(int64))), nil
}

func (v Value) compare(tp *TypeProvider, o Value, ff func(a, b float64) bool, fi func(a, b int64) bool) (Value, *EvalError) {
	if err := requireNum(tp, v, o); err != nil {
		return Invalid, err
	}
	if v.IsUnknown() || o.IsUnknown() {
		return UnknownVal(tp.BoolType()), nil
	}
	if v.Kind == KInt && o.Kind == KInt {
		return BoolVal(tp, fi(v.Data.(int64), o.Data.(int64))), nil
	}
	return BoolVal(tp, ff(v.asDouble(), o.asDouble())), nil
}
