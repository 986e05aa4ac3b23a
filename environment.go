// environment.go — declared-variable store and lexical evaluation environments
//
// Two unrelated "environments" meet in the evaluator and both live here:
//
//   - DeclaredVariables: the process-supplied string→string flags consulted by
//     the fromEnvironment/hasEnvironment intrinsics. Owned by the caller,
//     immutable during an evaluation session. A nil *DeclaredVariables means
//     the build environment is not available at all; intrinsics then produce
//     Unknown values of the right type instead of defaults.
//
//   - LexicalEnv: a name→Value substitution active during one recursive
//     evaluation, e.g. constructor parameter bindings, or a manual override
//     supplied for testing. Frames chain through a parent link and lookups
//     walk parent-ward; frames are never mutated after the evaluation that
//     created them begins using them.
package consteval

import "strconv"

////////////////////////////////////////////////////////////////////////////////
//                              DECLARED VARIABLES
////////////////////////////////////////////////////////////////////////////////

// DeclaredVariables is a read-only set of build-time string flags.
type DeclaredVariables struct {
	vars map[string]string
}

// NewDeclaredVariables copies m into a fresh immutable store. A nil or empty
// map yields a valid store in which every lookup misses.
func NewDeclaredVariables(m map[string]string) *DeclaredVariables {
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return &DeclaredVariables{vars: cp}
}

// Lookup returns the raw string value of name and whether it is declared.
func (d *DeclaredVariables) Lookup(name string) (string, bool) {
	v, ok := d.vars[name]
	return v, ok
}

// Has reports whether name is declared, independent of its value.
func (d *DeclaredVariables) Has(name string) bool {
	_, ok := d.vars[name]
	return ok
}

// GetBool parses the declared value of name as a bool. Only the literal
// string "true" is true; any other declared value is false. An absent name
// returns def.
func (d *DeclaredVariables) GetBool(name string, def bool) bool {
	v, ok := d.vars[name]
	if !ok {
		return def
	}
	return v == "true"
}

// GetInt parses the declared value of name as an integer literal (base 10 or
// prefixed, e.g. 0x10). Absent or malformed values return def.
func (d *DeclaredVariables) GetInt(name string, def int64) int64 {
	v, ok := d.vars[name]
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 0, 64)
	if err != nil {
		return def
	}
	return n
}

// GetString returns the declared value of name, or def when absent.
func (d *DeclaredVariables) GetString(name string, def string) string {
	v, ok := d.vars[name]
	if !ok {
		return def
	}
	return v
}

////////////////////////////////////////////////////////////////////////////////
//                              LEXICAL ENVIRONMENT
////////////////////////////////////////////////////////////////////////////////

// LexicalEnv is a lexical frame mapping names to already-evaluated constant
// values, with a parent link. Lookups walk parent-ward.
type LexicalEnv struct {
	parent *LexicalEnv
	table  map[string]Value
}

// NewLexicalEnv creates a new frame with the given parent (which may be nil).
func NewLexicalEnv(parent *LexicalEnv) *LexicalEnv {
	return &LexicalEnv{parent: parent, table: make(map[string]Value)}
}

// Define binds name to v in this frame, shadowing any outer binding.
// Define is only called while a frame is being populated, before the
// evaluation that consumes it starts.
func (e *LexicalEnv) Define(name string, v Value) {
	e.table[name] = v
}

// Get retrieves the nearest visible binding for name.
func (e *LexicalEnv) Get(name string) (Value, bool) {
	for f := e; f != nil; f = f.parent {
		if v, ok := f.table[name]; ok {
			return v, true
		}
	}
	return Value{}, false
}
