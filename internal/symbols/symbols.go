// Package symbols models the symbol table that the DSL compiler hands to the
// counterexample reconstruction layer. The table records, for every variable
// of the compiled multi-agent system, its scope, its declared type, the
// mapping from backend thread ids to agent ids, and the name of the
// scheduler function that marks the start of each global round.
//
// The table is read-only for this layer: it is produced by the compiler,
// loaded once, validated, and then consumed by the decoder and the step
// reconstructor.
package symbols

import (
	"fmt"

	"github.com/swarmverify/witness/internal/cexerr"
)

// Scope identifies who owns a variable in the multi-agent system.
type Scope string

const (
	// ScopeGlobal marks variables shared by the whole flattened program,
	// including scheduler bookkeeping.
	ScopeGlobal Scope = "global"
	// ScopeAgent marks agent-local variables (the agent interface).
	ScopeAgent Scope = "agent"
	// ScopeEnvironment marks shared environment cells written through the
	// stigmergy abstraction.
	ScopeEnvironment Scope = "environment"
)

// IsValid reports whether the scope is one of the known scopes.
func (s Scope) IsValid() bool {
	switch s {
	case ScopeGlobal, ScopeAgent, ScopeEnvironment:
		return true
	}
	return false
}

// Kind identifies the shape of a declared type.
type Kind string

const (
	// KindScalar is an integer of a fixed bit width and signedness.
	KindScalar Kind = "scalar"
	// KindArray is a fixed-arity array of a single element type.
	KindArray Kind = "array"
	// KindTuple is a fixed sequence of heterogeneous element types.
	KindTuple Kind = "tuple"
)

// Type is a declared variable type.
type Type struct {
	Kind Kind
	// Width and Signed apply to scalars.
	Width  int
	Signed bool
	// Len and Elem apply to arrays.
	Len  int
	Elem *Type
	// Fields applies to tuples.
	Fields []Type
}

// Symbol is one symbol table entry.
type Symbol struct {
	Name  string
	Scope Scope
	Type  Type
}

// Table is the read-only symbol table for one compiled system.
type Table struct {
	// RoundMarker is the scheduler function name emitted at the start of
	// each fresh global round.
	RoundMarker string
	// Agents maps backend thread ids to agent ids.
	Agents map[int]int
	// Symbols maps variable names to their entries.
	Symbols map[string]Symbol
}

// Lookup finds a variable by name.
func (t *Table) Lookup(name string) (Symbol, bool) {
	sym, ok := t.Symbols[name]
	return sym, ok
}

// AgentOf maps a backend thread id to the agent it emulates.
func (t *Table) AgentOf(thread int) (int, bool) {
	agent, ok := t.Agents[thread]
	return agent, ok
}

// Validate checks that the table is usable for reconstruction.
func (t *Table) Validate() error {
	if t.RoundMarker == "" {
		return cexerr.New(cexerr.CodeSymbolsInvalid, "round marker function name is required")
	}
	if len(t.Symbols) == 0 {
		return cexerr.New(cexerr.CodeSymbolsInvalid, "symbol table has no variables")
	}
	for name, sym := range t.Symbols {
		if sym.Name != "" && sym.Name != name {
			return cexerr.Newf(cexerr.CodeSymbolsInvalid, "symbol %q keyed under %q", sym.Name, name)
		}
		if !sym.Scope.IsValid() {
			return cexerr.Newf(cexerr.CodeSymbolsInvalid, "variable %q has unknown scope %q", name, sym.Scope)
		}
		if err := validateType(name, sym.Type); err != nil {
			return err
		}
	}
	return nil
}

func validateType(name string, typ Type) error {
	switch typ.Kind {
	case KindScalar:
		if typ.Width < 1 || typ.Width > 64 {
			return cexerr.Newf(cexerr.CodeSymbolsInvalid,
				"variable %q has width %d, want 1..64", name, typ.Width)
		}
	case KindArray:
		if typ.Len < 1 {
			return cexerr.Newf(cexerr.CodeSymbolsInvalid,
				"array %q has length %d, want >= 1", name, typ.Len)
		}
		if typ.Elem == nil {
			return cexerr.Newf(cexerr.CodeSymbolsInvalid, "array %q has no element type", name)
		}
		return validateType(fmt.Sprintf("%s[]", name), *typ.Elem)
	case KindTuple:
		if len(typ.Fields) == 0 {
			return cexerr.Newf(cexerr.CodeSymbolsInvalid, "tuple %q has no fields", name)
		}
		for i, field := range typ.Fields {
			if err := validateType(fmt.Sprintf("%s.%d", name, i), field); err != nil {
				return err
			}
		}
	default:
		return cexerr.Newf(cexerr.CodeSymbolsInvalid,
			"variable %q has unknown type kind %q", name, typ.Kind)
	}
	return nil
}
