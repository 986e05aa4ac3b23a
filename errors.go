// errors.go — diagnostic codes, the reporting collaborator, and caret snippets
//
// What this file does
// -------------------
// Evaluation never fails with a Go error or a panic. Every semantic failure is
// reported to an ErrorReporter as a (code, span, args) triple and the failing
// sub-expression yields the invalid Value. Hosts own the reporter: the
// canonical implementation is Collector, an append-only list that preserves
// evaluation order (first failure first).
//
// Two layers exist:
//
//   - EvalError: the span-less failure produced by Value operator methods
//     (value.go). The visitor attaches the offending node's span and forwards
//     it to the reporter.
//   - Diagnostic: the (code, span, args) record a reporter accumulates.
//
// RenderDiagnostic turns a Diagnostic into a Python-style snippet with a caret
// under the offending column:
//
//	CONST ERROR at 3:12: the operands must be of type 'bool' or 'int'
//
//	   2 | const x =
//	   3 |   true & 1
//	       |        ^
//
// Behavior guarantees
// -------------------
//   - Reporters must not panic; Collector never does.
//   - Sub-evaluations whose failures are deliberately suppressed (unselected
//     conditional branches) go through discardReporter and leave no trace.
//   - Line/column are clamped to the source so rendering is always safe.
package consteval

import (
	"fmt"
	"strings"
)

/* ===========================
   PUBLIC API
   =========================== */

// ErrorCode identifies a class of constant-evaluation failure.
type ErrorCode int

const (
	// InvalidConstant marks a sub-expression outside the constant
	// sub-language, or one whose value could not be computed.
	InvalidConstant ErrorCode = iota
	// EvalThrowsException marks an expression that would throw at run time
	// (failed cast, negative shift amount, zero divisor, failed assert).
	EvalThrowsException
	// TypeBoolRequired marks a non-bool operand where a bool is mandatory.
	TypeBoolRequired
	// TypeBoolIntRequired marks mismatched bitwise operands (bool vs int).
	TypeBoolIntRequired
	// TypeNumRequired marks a non-numeric operand of an arithmetic operator.
	TypeNumRequired
	// TypeIntRequired marks a non-int operand of a shift operator.
	TypeIntRequired
	// TypeStringRequired marks a non-string operand where a string is mandatory.
	TypeStringRequired
	// RecursiveConstant marks a const declaration whose initializer refers,
	// directly or through other declarations, to itself.
	RecursiveConstant
	// RecursiveConstructorCall marks a const constructor whose evaluation is
	// already in progress on the current evaluation stack.
	RecursiveConstructorCall
	// ConstNotAssignable marks an argument or field value whose type does not
	// conform to the declared parameter/field type.
	ConstNotAssignable
)

// String returns the stable machine-readable name of the code.
func (c ErrorCode) String() string {
	switch c {
	case InvalidConstant:
		return "INVALID_CONSTANT"
	case EvalThrowsException:
		return "CONST_EVAL_THROWS_EXCEPTION"
	case TypeBoolRequired:
		return "CONST_EVAL_TYPE_BOOL"
	case TypeBoolIntRequired:
		return "CONST_EVAL_TYPE_BOOL_INT"
	case TypeNumRequired:
		return "CONST_EVAL_TYPE_NUM"
	case TypeIntRequired:
		return "CONST_EVAL_TYPE_INT"
	case TypeStringRequired:
		return "CONST_EVAL_TYPE_STRING"
	case RecursiveConstant:
		return "RECURSIVE_COMPILE_TIME_CONSTANT"
	case RecursiveConstructorCall:
		return "RECURSIVE_CONSTANT_CONSTRUCTOR"
	case ConstNotAssignable:
		return "CONST_CONSTRUCTOR_PARAM_TYPE_MISMATCH"
	default:
		return fmt.Sprintf("ERROR_CODE(%d)", int(c))
	}
}

// EvalError is a span-less operation failure produced by Value methods.
// The visitor decides which node's span the failure belongs to.
type EvalError struct {
	Code ErrorCode
	Args []any
}

func (e *EvalError) Error() string { return diagMessage(e.Code, e.Args) }

// Diagnostic is one reported failure: an error kind plus the source range of
// the node that produced it, with optional message arguments.
type Diagnostic struct {
	Code ErrorCode
	Span Span
	Args []any
}

// Message renders the human-readable message for the diagnostic.
func (d Diagnostic) Message() string { return diagMessage(d.Code, d.Args) }

// ErrorReporter accumulates diagnostics during one evaluation session.
// Implementations must not panic; the evaluator may call Report many times.
// Reporters shared across concurrent sessions must be externally synchronized.
type ErrorReporter interface {
	Report(code ErrorCode, span Span, args ...any)
}

// Collector is the canonical ErrorReporter: an append-only diagnostic list in
// evaluation order.
type Collector struct {
	Diags []Diagnostic
}

// Report appends one diagnostic.
func (c *Collector) Report(code ErrorCode, span Span, args ...any) {
	c.Diags = append(c.Diags, Diagnostic{Code: code, Span: span, Args: args})
}

// HasErrors reports whether any diagnostic was collected.
func (c *Collector) HasErrors() bool { return len(c.Diags) > 0 }

// RenderDiagnostic formats a caret-style snippet for the diagnostic against
// the source text the spans refer to. Plain text, no ANSI escapes.
func RenderDiagnostic(src string, d Diagnostic) string {
	line, col := LineCol(src, d.Span.Start)
	return prettyErrorString(src, "CONST ERROR", line, col, d.Message())
}

//// END_OF_PUBLIC

/* ===========================
   PRIVATE: message catalog, silent reporter, rendering
   =========================== */

// discardReporter swallows diagnostics from sub-evaluations whose failures
// must not surface (e.g. the unselected branch of a conditional).
type discardReporter struct{}

func (discardReporter) Report(ErrorCode, Span, ...any) {}

func diagMessage(code ErrorCode, args []any) string {
	tmpl, ok := messageCatalog[code]
	if !ok {
		return code.String()
	}
	if strings.Contains(tmpl, "%") {
		return fmt.Sprintf(tmpl, args...)
	}
	return tmpl
}

var messageCatalog = map[ErrorCode]string{
	InvalidConstant:          "invalid constant value",
	EvalThrowsException:      "evaluation of this constant expression throws an exception: %s",
	TypeBoolRequired:         "in constant expressions, operands of this operator must be of type 'bool'",
	TypeBoolIntRequired:      "in constant expressions, operands of this operator must be of type 'bool' or 'int'",
	TypeNumRequired:          "in constant expressions, operands of this operator must be of type 'num'",
	TypeIntRequired:          "in constant expressions, operands of this operator must be of type 'int'",
	TypeStringRequired:       "in constant expressions, operands of this operator must be of type 'String'",
	RecursiveConstant:        "the compile-time constant expression depends on itself",
	RecursiveConstructorCall: "the constructor '%s' can't be referenced before the evaluation of itself completes",
	ConstNotAssignable:       "a value of type '%s' can't be assigned to a parameter or field of type '%s'",
}

// prettyErrorString builds a snippet with a header line, one line of context
// before and after when available, and a caret under the 1-based column.
// Coordinates are clamped to the source bounds.
func prettyErrorString(src, header string, line, col int, msg string) string {
	lines := strings.Split(src, "\n")
	if line < 1 {
		line = 1
	}
	if col < 1 {
		col = 1
	}
	if len(lines) == 0 {
		lines = []string{""}
	}
	if line > len(lines) {
		line = len(lines)
	}
	lineTxt := lines[line-1]

	var b strings.Builder
	fmt.Fprintf(&b, "%s at %d:%d: %s\n\n", header, line, col, msg)
	if line > 1 {
		fmt.Fprintf(&b, "%4d | %s\n", line-1, lines[line-2])
	}
	fmt.Fprintf(&b, "%4d | %s\n", line, lineTxt)
	caretPad := col - 1
	if caretPad < 0 {
		caretPad = 0
	}
	fmt.Fprintf(&b, "     | %s^\n", strings.Repeat(" ", caretPad))
	if line < len(lines) {
		fmt.Fprintf(&b, "%4d | %s\n", line+1, lines[line])
	}
	return b.String()
}
