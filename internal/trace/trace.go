// Package trace parses the raw textual traces produced by the bounded model
// checking backend. The backend reasons about one flattened sequential
// program, so a trace is a flat, chronologically ordered list of variable
// assignments tagged with source location and thread id; this package turns
// that text into a stream of Event records without interpreting values.
//
// Two incompatible header dialects exist, depending on backend version; the
// caller selects one explicitly and the parser never guesses.
package trace

import "fmt"

// Dialect selects the trace grammar matching the backend that produced the
// text. Selection is never inferred from the input.
type Dialect string

const (
	// DialectCurrent places `function` before `line` in state headers.
	DialectCurrent Dialect = "current"
	// DialectLegacy places `line` before `function` in state headers.
	DialectLegacy Dialect = "legacy"
)

// ParseDialect converts a configuration string into a Dialect.
func ParseDialect(value string) (Dialect, error) {
	switch Dialect(value) {
	case DialectCurrent:
		return DialectCurrent, nil
	case DialectLegacy:
		return DialectLegacy, nil
	}
	return "", fmt.Errorf("unknown trace dialect %q", value)
}

// RawKind tags the shape of a raw right-hand side value.
type RawKind string

const (
	// RawBool is a TRUE/FALSE literal.
	RawBool RawKind = "bool"
	// RawNumber is a numeric literal (integer suffixes already stripped).
	RawNumber RawKind = "number"
	// RawString is a quoted string literal.
	RawString RawKind = "string"
	// RawList is a brace-delimited list of nested values.
	RawList RawKind = "list"
)

// Raw is an undecoded right-hand side value: a scalar literal or a nested
// brace list for arrays and tuples.
type Raw struct {
	Kind    RawKind
	Literal string // for RawNumber and RawString
	Bool    bool   // for RawBool
	Items   []Raw  // for RawList
}

// Bits is the raw bit pattern attached to an assignment. Its nesting mirrors
// the nesting of the Raw value; it may be absent entirely.
type Bits struct {
	Present bool
	// Run holds a scalar bit pattern, most-significant bit first, with
	// formatting spaces removed.
	Run string
	// Items holds nested patterns for brace-list values.
	Items []Bits
}

// IsList reports whether the pattern is a nested brace list.
func (b Bits) IsList() bool {
	return b.Present && b.Items != nil
}

// Event is one state entry of the raw trace: a single variable assignment
// with its source location and emitting thread.
type Event struct {
	// Seq is the backend's state sequence number; strictly increasing
	// across the trace.
	Seq int
	// File, Function and Line locate the assignment in the generated
	// sequential program.
	File     string
	Function string
	Line     int
	// Thread is the backend thread id that performed the assignment.
	Thread int
	// Name is the assigned variable.
	Name string
	// Value is the raw right-hand side.
	Value Raw
	// Bits is the raw bit pattern, possibly absent.
	Bits Bits
}
