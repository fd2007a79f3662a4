// Package cexerr provides structured error handling for counterexample
// reconstruction. Fatal codes abort a reconstruction run and surface a single
// diagnostic; local codes accumulate alongside the (possibly partial) witness
// so the caller can render a best-effort counterexample while flagging
// untrustworthy values.
package cexerr

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Trace structure errors (fatal)

	// CodeLex reports a malformed trace entry (bad header, missing
	// separator, unparsable assignment). Carries the offending line
	// number in metadata.
	CodeLex Code = "LEX"
	// CodeDialectMismatch reports a header whose field order belongs to
	// the other trace dialect. Raised instead of a silently wrong parse.
	CodeDialectMismatch Code = "DIALECT_MISMATCH"

	// Value errors (local to one variable)

	// CodeDecode reports that one variable's raw value could not be
	// typed; the decoded value becomes unknown.
	CodeDecode Code = "DECODE"
	// CodeDecodeWarning reports that the bit pattern and the literal of
	// an assignment decoded to different values; the bit pattern wins.
	CodeDecodeWarning Code = "DECODE_WARNING"
	// CodeSchema reports a trace reference to a variable or thread the
	// symbol table does not know about.
	CodeSchema Code = "SCHEMA"

	// Configuration and harness errors

	// CodeSymbolsInvalid reports an unusable symbol table.
	CodeSymbolsInvalid Code = "SYMBOLS_INVALID"
	// CodeArchive reports a witness archive storage failure.
	CodeArchive Code = "ARCHIVE"
)

// Fatal reports whether an error with this code invalidates the whole
// reconstruction rather than a single variable.
func (c Code) Fatal() bool {
	switch c {
	case CodeLex, CodeDialectMismatch, CodeSymbolsInvalid:
		return true
	}
	return false
}
