package cexerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorRendersLineAndVariable(t *testing.T) {
	lineErr := AtLine(CodeLex, 42, "malformed state header")
	if got := lineErr.Error(); got != "LEX: line 42: malformed state header" {
		t.Fatalf("unexpected rendering: %q", got)
	}
	if lineErr.Line() != 42 {
		t.Fatalf("expected line 42, got %d", lineErr.Line())
	}

	varErr := ForVariable(CodeDecode, "pos", "arity mismatch")
	if got := varErr.Error(); got != "DECODE: pos: arity mismatch" {
		t.Fatalf("unexpected rendering: %q", got)
	}
	if varErr.Line() != 0 {
		t.Fatalf("expected no line, got %d", varErr.Line())
	}
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", AtLine(CodeDialectMismatch, 1, "wrong field order"))
	if !errors.Is(err, New(CodeDialectMismatch, "")) {
		t.Fatal("expected code match through wrapping")
	}
	if errors.Is(err, New(CodeLex, "")) {
		t.Fatal("expected no match for a different code")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(CodeArchive, "insert run", cause)
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to unwrap")
	}
}

func TestFatalCodes(t *testing.T) {
	tests := []struct {
		code  Code
		fatal bool
	}{
		{CodeLex, true},
		{CodeDialectMismatch, true},
		{CodeSymbolsInvalid, true},
		{CodeDecode, false},
		{CodeDecodeWarning, false},
		{CodeSchema, false},
		{CodeArchive, false},
	}
	for _, tc := range tests {
		if got := tc.code.Fatal(); got != tc.fatal {
			t.Fatalf("%s: expected fatal=%v, got %v", tc.code, tc.fatal, got)
		}
	}
}
