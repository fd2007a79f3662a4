package symbols

import (
	"errors"
	"testing"

	"github.com/swarmverify/witness/internal/cexerr"
)

const validDoc = `
round_marker: sched_round
agents:
  2: 0
  5: 1
variables:
  x:
    scope: agent
    type:
      kind: scalar
      width: 8
  cell:
    scope: environment
    type:
      kind: scalar
      width: 8
      signed: true
  pos:
    scope: agent
    type:
      kind: array
      len: 2
      elem:
        kind: scalar
        width: 4
  pair:
    scope: global
    type:
      kind: tuple
      fields:
        - kind: scalar
          width: 8
        - kind: scalar
          width: 1
`

func TestParseValidTable(t *testing.T) {
	table, err := Parse([]byte(validDoc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if table.RoundMarker != "sched_round" {
		t.Fatalf("unexpected round marker: %q", table.RoundMarker)
	}
	if agent, ok := table.AgentOf(5); !ok || agent != 1 {
		t.Fatalf("unexpected agent mapping: %d (%v)", agent, ok)
	}

	cell, ok := table.Lookup("cell")
	if !ok || !cell.Type.Signed || cell.Scope != ScopeEnvironment {
		t.Fatalf("unexpected cell symbol: %+v", cell)
	}
	pos, _ := table.Lookup("pos")
	if pos.Type.Kind != KindArray || pos.Type.Len != 2 || pos.Type.Elem.Width != 4 {
		t.Fatalf("unexpected pos type: %+v", pos.Type)
	}
	pair, _ := table.Lookup("pair")
	if pair.Type.Kind != KindTuple || len(pair.Type.Fields) != 2 {
		t.Fatalf("unexpected pair type: %+v", pair.Type)
	}
}

func TestParseRejectsInvalidTables(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			"missing round marker",
			"variables:\n  x:\n    scope: agent\n    type: {kind: scalar, width: 8}\n",
		},
		{
			"no variables",
			"round_marker: m\n",
		},
		{
			"bad scope",
			"round_marker: m\nvariables:\n  x:\n    scope: cosmic\n    type: {kind: scalar, width: 8}\n",
		},
		{
			"zero width",
			"round_marker: m\nvariables:\n  x:\n    scope: agent\n    type: {kind: scalar, width: 0}\n",
		},
		{
			"width over 64",
			"round_marker: m\nvariables:\n  x:\n    scope: agent\n    type: {kind: scalar, width: 65}\n",
		},
		{
			"array without element",
			"round_marker: m\nvariables:\n  x:\n    scope: agent\n    type: {kind: array, len: 2}\n",
		},
		{
			"empty tuple",
			"round_marker: m\nvariables:\n  x:\n    scope: agent\n    type: {kind: tuple}\n",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			var cerr *cexerr.Error
			if !errors.As(err, &cerr) || cerr.Code != cexerr.CodeSymbolsInvalid {
				t.Fatalf("expected invalid-symbols error, got %v", err)
			}
		})
	}
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	if _, err := Parse([]byte("variables: [not: a: map")); err == nil {
		t.Fatal("expected yaml parse error")
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile("testdata/does-not-exist.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
