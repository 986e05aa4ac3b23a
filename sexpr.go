// sexpr.go — a compact s-expression reader for constant expressions
//
// WHAT THIS MODULE DOES
// =====================
// The evaluator consumes resolved trees produced by a host toolchain. For the
// REPL, the eval command, and tests, this file provides a tiny self-contained
// front end: a parenthesized prefix notation that maps one-to-one onto the
// expression variants in ast.go, with real source spans for diagnostics.
//
// GRAMMAR (by example)
// ====================
//
//	42  3.5  0x1f  "hi"  true  false  null  #sym
//	(+ 1 2)  (~/ 7 2)  (>>> -1 60)  (neg x)  (~ 5)  (! true)
//	(if cond then else)        — conditional expression
//	(?? a b)  (&& a b)  (== a b)
//	(is 3 int)  (is! 3 String)  (as x num)
//	(list 1 2 3)  (set 1 2)  (map (entry "a" 1) (entry "b" 2))
//	(when cond elem [elem])    — collection if-element
//	(spread e)  (spread? e)    — collection spread (null-aware with ?)
//	(env-bool "flag")  (env-int "n" 7)  (env-string "s" "d")  (has-env "flag")
//	(identical a b)  (length "abc")  (str "n=" 42)
//
// Type positions accept int double bool String num Object Null Never Symbol
// Type dynamic void, a trailing ? for nullability, and (List T) (Set T)
// (Map K V) compounds.
//
// The reader resolves nothing beyond the built-ins: bare identifiers become
// Identifier nodes with only the name set, to be satisfied by a lexical
// environment at evaluation time.
package consteval

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

////////////////////////////////////////////////////////////////////////////////
//                                  PUBLIC API
////////////////////////////////////////////////////////////////////////////////

// ParseExpr reads one expression from src. Trailing input is an error.
func ParseExpr(tp *TypeProvider, src string) (Expr, error) {
	toks, err := scanTokens(src)
	if err != nil {
		return nil, err
	}
	r := &reader{tp: tp, src: src, toks: toks}
	e, err := r.readExpr()
	if err != nil {
		return nil, err
	}
	if r.pos < len(r.toks) {
		return nil, errors.Errorf("unexpected trailing input at offset %d", r.toks[r.pos].start)
	}
	return e, nil
}

//// END_OF_PUBLIC

////////////////////////////////////////////////////////////////////////////////
//                                   SCANNER
////////////////////////////////////////////////////////////////////////////////

type tokKind int

const (
	tokLParen tokKind = iota
	tokRParen
	tokNumber
	tokString
	tokSymbolLit // #name
	tokAtom      // operator, keyword, identifier, type name
)

type token struct {
	kind       tokKind
	text       string
	start, end int
}

func isAtomByte(b byte) bool {
	switch b {
	case '(', ')', '"', ';', ' ', '\t', '\n', '\r':
		return false
	}
	return true
}

func scanTokens(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		b := src[i]
		switch {
		case b == ' ' || b == '\t' || b == '\n' || b == '\r':
			i++
		case b == ';': // comment to end of line
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case b == '(':
			toks = append(toks, token{tokLParen, "(", i, i + 1})
			i++
		case b == ')':
			toks = append(toks, token{tokRParen, ")", i, i + 1})
			i++
		case b == '"':
			text, end, err := scanString(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{tokString, text, i, end})
			i = end
		case b == '#':
			start := i
			i++
			for i < len(src) && isAtomByte(src[i]) {
				i++
			}
			if i == start+1 {
				return nil, errors.Errorf("empty symbol literal at offset %d", start)
			}
			toks = append(toks, token{tokSymbolLit, src[start+1 : i], start, i})
		case b >= '0' && b <= '9',
			b == '-' && i+1 < len(src) && src[i+1] >= '0' && src[i+1] <= '9':
			start := i
			i++
			for i < len(src) && isAtomByte(src[i]) {
				i++
			}
			toks = append(toks, token{tokNumber, src[start:i], start, i})
		default:
			start := i
			for i < len(src) && isAtomByte(src[i]) {
				i++
			}
			if i == start {
				return nil, errors.Errorf("unexpected character %q at offset %d", src[i], i)
			}
			toks = append(toks, token{tokAtom, src[start:i], start, i})
		}
	}
	return toks, nil
}

func scanString(src string, start int) (string, int, error) {
	var b strings.Builder
	i := start + 1
	for i < len(src) {
		switch src[i] {
		case '"':
			return b.String(), i + 1, nil
		case '\\':
			if i+1 >= len(src) {
				return "", 0, errors.Errorf("unterminated escape at offset %d", i)
			}
			i++
			switch src[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '"':
				b.WriteByte('"')
			case '\\':
				b.WriteByte('\\')
			default:
				return "", 0, errors.Errorf("unknown escape \\%c at offset %d", src[i], i)
			}
			i++
		default:
			b.WriteByte(src[i])
			i++
		}
	}
	return "", 0, errors.Errorf("unterminated string starting at offset %d", start)
}

////////////////////////////////////////////////////////////////////////////////
//                                    READER
////////////////////////////////////////////////////////////////////////////////

type reader struct {
	tp   *TypeProvider
	src  string
	toks []token
	pos  int
}

func (r *reader) peek() (token, bool) {
	if r.pos < len(r.toks) {
		return r.toks[r.pos], true
	}
	return token{}, false
}

func (r *reader) next() (token, error) {
	t, ok := r.peek()
	if !ok {
		return token{}, errors.New("unexpected end of input")
	}
	r.pos++
	return t, nil
}

func (r *reader) expect(kind tokKind, what string) (token, error) {
	t, err := r.next()
	if err != nil {
		return token{}, errors.Wrapf(err, "expected %s", what)
	}
	if t.kind != kind {
		return token{}, errors.Errorf("expected %s at offset %d, got %q", what, t.start, t.text)
	}
	return t, nil
}

var binaryOps = map[string]bool{
	"+": true, "-": true, "*": true, "/": true, "~/": true, "%": true,
	"&": true, "|": true, "^": true, "<<": true, ">>": true, ">>>": true,
	"&&": true, "||": true, "??": true,
	"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
}

func (r *reader) readExpr() (Expr, error) {
	t, err := r.next()
	if err != nil {
		return nil, err
	}
	sp := Span{Start: t.start, End: t.end}
	switch t.kind {
	case tokNumber:
		return parseNumber(t)
	case tokString:
		return &StringLit{Sp: sp, Value: t.text}, nil
	case tokSymbolLit:
		return &SymbolLit{Sp: sp, Name: t.text}, nil
	case tokAtom:
		switch t.text {
		case "true":
			return &BoolLit{Sp: sp, Value: true}, nil
		case "false":
			return &BoolLit{Sp: sp, Value: false}, nil
		case "null":
			return &NullLit{Sp: sp}, nil
		}
		return &Identifier{Sp: sp, Name: t.text}, nil
	case tokLParen:
		return r.readForm(t)
	}
	return nil, errors.Errorf("unexpected token %q at offset %d", t.text, t.start)
}

// readForm reads one parenthesized form; open is the already-consumed "(".
func (r *reader) readForm(open token) (Expr, error) {
	head, err := r.expect(tokAtom, "operator")
	if err != nil {
		return nil, err
	}

	build := func(e Expr, err error) (Expr, error) {
		if err != nil {
			return nil, err
		}
		if _, cerr := r.expect(tokRParen, "')'"); cerr != nil {
			return nil, errors.Wrapf(cerr, "in (%s ...)", head.text)
		}
		return e, nil
	}
	switch {
	case binaryOps[head.text]:
		left, err := r.readExpr()
		if err != nil {
			return nil, err
		}
		right, err := r.readExpr()
		if err != nil {
			return nil, err
		}
		return build(r.finishBinary(open, head.text, left, right))
	case head.text == "neg" || head.text == "~" || head.text == "!":
		operand, err := r.readExpr()
		if err != nil {
			return nil, err
		}
		op := head.text
		if op == "neg" {
			op = "-"
		}
		return build(&Unary{Sp: r.closeSpan(open), Op: op, Operand: operand}, nil)
	case head.text == "if":
		cond, err := r.readExpr()
		if err != nil {
			return nil, err
		}
		thenE, err := r.readExpr()
		if err != nil {
			return nil, err
		}
		elseE, err := r.readExpr()
		if err != nil {
			return nil, err
		}
		return build(&Conditional{Sp: r.closeSpan(open), Cond: cond, Then: thenE, Else: elseE}, nil)
	case head.text == "is" || head.text == "is!":
		e, err := r.readExpr()
		if err != nil {
			return nil, err
		}
		t, err := r.readType()
		if err != nil {
			return nil, err
		}
		return build(&IsTest{Sp: r.closeSpan(open), Expr: e, Target: t, Negated: head.text == "is!"}, nil)
	case head.text == "as":
		e, err := r.readExpr()
		if err != nil {
			return nil, err
		}
		t, err := r.readType()
		if err != nil {
			return nil, err
		}
		return build(&Cast{Sp: r.closeSpan(open), Expr: e, Target: t}, nil)
	case head.text == "list":
		elems, err := r.readElements()
		if err != nil {
			return nil, err
		}
		return build(&ListLit{Sp: r.closeSpan(open), Elements: elems}, nil)
	case head.text == "set":
		elems, err := r.readElements()
		if err != nil {
			return nil, err
		}
		return build(&SetOrMapLit{Sp: r.closeSpan(open), Elements: elems}, nil)
	case head.text == "map":
		elems, err := r.readElements()
		if err != nil {
			return nil, err
		}
		return build(&SetOrMapLit{Sp: r.closeSpan(open), IsMap: true, Elements: elems}, nil)
	case head.text == "identical":
		a, err := r.readExpr()
		if err != nil {
			return nil, err
		}
		b, err := r.readExpr()
		if err != nil {
			return nil, err
		}
		return build(&Invocation{Sp: r.closeSpan(open), Name: "identical", Args: []Expr{a, b}}, nil)
	case head.text == "length":
		e, err := r.readExpr()
		if err != nil {
			return nil, err
		}
		return build(&PropertyAccess{Sp: r.closeSpan(open), Target: e, Name: "length"}, nil)
	case head.text == "str":
		var parts []Expr
		for {
			if t, ok := r.peek(); ok && t.kind == tokRParen {
				break
			}
			p, err := r.readExpr()
			if err != nil {
				return nil, err
			}
			parts = append(parts, p)
		}
		return build(&StringInterp{Sp: r.closeSpan(open), Parts: parts}, nil)
	case head.text == "env-bool" || head.text == "env-int" || head.text == "env-string" || head.text == "has-env":
		return r.readEnvForm(open, head.text)
	}
	return nil, errors.Errorf("unknown form %q at offset %d", head.text, head.start)
}

// finishBinary is split out so build() can wrap the common paren check.
func (r *reader) finishBinary(open token, op string, left, right Expr) (Expr, error) {
	return &Binary{Sp: r.closeSpan(open), Op: op, Left: left, Right: right}, nil
}

// closeSpan spans from the opening paren to the last token consumed so far.
// Called just before the closing ')' is consumed, which is close enough for
// caret placement.
func (r *reader) closeSpan(open token) Span {
	end := open.end
	if r.pos > 0 && r.pos <= len(r.toks) {
		end = r.toks[r.pos-1].end
	}
	return Span{Start: open.start, End: end}
}

// readEnvForm builds the intrinsic instance creations:
// (env-bool "name" [default]) etc.
func (r *reader) readEnvForm(open token, form string) (Expr, error) {
	nameTok, err := r.expect(tokString, "variable name string")
	if err != nil {
		return nil, errors.Wrapf(err, "in (%s ...)", form)
	}
	nameArg := Argument{
		Sp:    Span{Start: nameTok.start, End: nameTok.end},
		Value: &StringLit{Sp: Span{Start: nameTok.start, End: nameTok.end}, Value: nameTok.text},
	}
	args := []Argument{nameArg}

	if t, ok := r.peek(); ok && t.kind != tokRParen {
		def, err := r.readExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, Argument{Sp: def.Span(), Name: "defaultValue", Value: def})
	}
	if _, err := r.expect(tokRParen, "')'"); err != nil {
		return nil, errors.Wrapf(err, "in (%s ...)", form)
	}

	var class *ClassElement
	ctorName := "fromEnvironment"
	switch form {
	case "env-bool":
		class = r.tp.BoolClass
	case "env-int":
		class = r.tp.IntClass
	case "env-string":
		class = r.tp.StringClass
	case "has-env":
		class, ctorName = r.tp.BoolClass, "hasEnvironment"
	}
	ctor := class.Constructor(ctorName)
	if ctor == nil {
		return nil, errors.Errorf("intrinsic constructor %s.%s not installed", class.Name, ctorName)
	}
	return &InstanceCreation{Sp: r.closeSpan(open), Ctor: ctor, Args: args}, nil
}

// readElements reads collection elements up to (not consuming) the ')'.
func (r *reader) readElements() ([]CollectionElement, error) {
	var out []CollectionElement
	for {
		t, ok := r.peek()
		if !ok {
			return nil, errors.New("unexpected end of input in collection literal")
		}
		if t.kind == tokRParen {
			return out, nil
		}
		el, err := r.readElement()
		if err != nil {
			return nil, err
		}
		out = append(out, el)
	}
}

func (r *reader) readElement() (CollectionElement, error) {
	t, ok := r.peek()
	if ok && t.kind == tokLParen && r.pos+1 < len(r.toks) {
		head := r.toks[r.pos+1]
		if head.kind == tokAtom {
			switch head.text {
			case "entry":
				return r.readEntryElement()
			case "when":
				return r.readWhenElement()
			case "spread", "spread?":
				return r.readSpreadElement(head.text == "spread?")
			}
		}
	}
	e, err := r.readExpr()
	if err != nil {
		return nil, err
	}
	return &ExprElement{Expr: e}, nil
}

func (r *reader) readEntryElement() (CollectionElement, error) {
	open, _ := r.next() // (
	r.next()            // entry
	k, err := r.readExpr()
	if err != nil {
		return nil, err
	}
	v, err := r.readExpr()
	if err != nil {
		return nil, err
	}
	if _, err := r.expect(tokRParen, "')'"); err != nil {
		return nil, errors.Wrap(err, "in (entry ...)")
	}
	return &MapEntryElement{Sp: r.closeSpan(open), Key: k, Value: v}, nil
}

func (r *reader) readWhenElement() (CollectionElement, error) {
	open, _ := r.next() // (
	r.next()            // when
	cond, err := r.readExpr()
	if err != nil {
		return nil, err
	}
	thenEl, err := r.readElement()
	if err != nil {
		return nil, err
	}
	var elseEl CollectionElement
	if t, ok := r.peek(); ok && t.kind != tokRParen {
		elseEl, err = r.readElement()
		if err != nil {
			return nil, err
		}
	}
	if _, err := r.expect(tokRParen, "')'"); err != nil {
		return nil, errors.Wrap(err, "in (when ...)")
	}
	return &IfElement{Sp: r.closeSpan(open), Cond: cond, Then: thenEl, Else: elseEl}, nil
}

func (r *reader) readSpreadElement(nullAware bool) (CollectionElement, error) {
	open, _ := r.next() // (
	r.next()            // spread / spread?
	e, err := r.readExpr()
	if err != nil {
		return nil, err
	}
	if _, err := r.expect(tokRParen, "')'"); err != nil {
		return nil, errors.Wrap(err, "in (spread ...)")
	}
	return &SpreadElement{Sp: r.closeSpan(open), Expr: e, NullAware: nullAware}, nil
}

////////////////////////////////////////////////////////////////////////////////
//                                    TYPES
////////////////////////////////////////////////////////////////////////////////

// readType reads a type position: a named atom with optional trailing ?, or
// a (List T) / (Set T) / (Map K V) compound.
func (r *reader) readType() (Type, error) {
	t, err := r.next()
	if err != nil {
		return nil, errors.Wrap(err, "expected type")
	}
	if t.kind == tokLParen {
		head, err := r.expect(tokAtom, "type constructor")
		if err != nil {
			return nil, err
		}
		name, nullable := splitNullable(head.text)
		switch name {
		case "List", "Set":
			elem, err := r.readType()
			if err != nil {
				return nil, err
			}
			if _, err := r.expect(tokRParen, "')'"); err != nil {
				return nil, err
			}
			class := r.tp.ListClass
			if name == "Set" {
				class = r.tp.SetClass
			}
			return &InterfaceType{Class: class, Args: []Type{elem}, Null: nullable}, nil
		case "Map":
			k, err := r.readType()
			if err != nil {
				return nil, err
			}
			v, err := r.readType()
			if err != nil {
				return nil, err
			}
			if _, err := r.expect(tokRParen, "')'"); err != nil {
				return nil, err
			}
			return &InterfaceType{Class: r.tp.MapClass, Args: []Type{k, v}, Null: nullable}, nil
		}
		return nil, errors.Errorf("unknown type constructor %q at offset %d", head.text, head.start)
	}
	if t.kind != tokAtom {
		return nil, errors.Errorf("expected type at offset %d, got %q", t.start, t.text)
	}
	name, nullable := splitNullable(t.text)
	switch name {
	case "dynamic":
		return &DynamicType{}, nil
	case "void":
		return &VoidType{}, nil
	case "Never":
		return &NeverType{Null: nullable}, nil
	case "Null":
		return r.tp.NullType(), nil
	}
	var class *ClassElement
	switch name {
	case "Object":
		class = r.tp.ObjectClass
	case "bool":
		class = r.tp.BoolClass
	case "num":
		class = r.tp.NumClass
	case "int":
		class = r.tp.IntClass
	case "double":
		class = r.tp.DoubleClass
	case "String":
		class = r.tp.StringClass
	case "Symbol":
		class = r.tp.SymbolClass
	case "Type":
		class = r.tp.TypeClass
	default:
		return nil, errors.Errorf("unknown type %q at offset %d", t.text, t.start)
	}
	return &InterfaceType{Class: class, Null: nullable}, nil
}

func splitNullable(s string) (string, bool) {
	if strings.HasSuffix(s, "?") {
		return s[:len(s)-1], true
	}
	return s, false
}

////////////////////////////////////////////////////////////////////////////////
//                                   NUMBERS
////////////////////////////////////////////////////////////////////////////////

func parseNumber(t token) (Expr, error) {
	sp := Span{Start: t.start, End: t.end}
	text := t.text
	if strings.ContainsAny(text, ".eE") && !strings.HasPrefix(text, "0x") && !strings.HasPrefix(text, "-0x") {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "bad number %q at offset %d", text, t.start)
		}
		return &DoubleLit{Sp: sp, Value: f}, nil
	}
	n, err := strconv.ParseInt(text, 0, 64)
	if err != nil {
		// Integer literals at the 64-bit boundary (e.g. 0x8000000000000000)
		// wrap like the runtime representation does.
		u, uerr := strconv.ParseUint(strings.TrimPrefix(text, "-"), 0, 64)
		if uerr != nil {
			return nil, errors.Wrapf(err, "bad number %q at offset %d", text, t.start)
		}
		n = int64(u)
		if strings.HasPrefix(text, "-") {
			n = -n
		}
	}
	return &IntLit{Sp: sp, Value: n}, nil
}
