package witness

import (
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/swarmverify/witness/internal/symbols"
	"github.com/swarmverify/witness/internal/trace"
)

func testTable() *symbols.Table {
	return &symbols.Table{
		RoundMarker: "sched_round",
		Agents:      map[int]int{2: 0, 5: 1},
		Symbols: map[string]symbols.Symbol{
			"x": {Name: "x", Scope: symbols.ScopeAgent,
				Type: symbols.Type{Kind: symbols.KindScalar, Width: 8}},
			"cell": {Name: "cell", Scope: symbols.ScopeEnvironment,
				Type: symbols.Type{Kind: symbols.KindScalar, Width: 8}},
			"tick": {Name: "tick", Scope: symbols.ScopeGlobal,
				Type: symbols.Type{Kind: symbols.KindScalar, Width: 8}},
		},
	}
}

func entry(seq int, function string, thread int, assignment string) string {
	return fmt.Sprintf("State %d file p.c function %s line 1 thread %d\n----\n  %s\n",
		seq, function, thread, assignment)
}

func TestSnapshotsCarryStateForward(t *testing.T) {
	input := entry(1, "act", 2, "x = 1 ()") +
		entry(2, "act", 5, "cell = 7 ()") +
		entry(3, "act", 2, "x = 3 ()")

	w, diags, err := Reconstruct(strings.NewReader(input), trace.DialectCurrent, testTable())
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if len(w.Snapshots) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(w.Snapshots))
	}

	// x was assigned in the first step; it keeps its value through the
	// second even though that step never touches it.
	mid := w.Snapshots[1]
	x, ok := mid.Lookup("x")
	if !ok || x.Int != 1 {
		t.Fatalf("expected carried x=1, got %v (present %v)", x, ok)
	}
	cell, ok := mid.Lookup("cell")
	if !ok || cell.Int != 7 {
		t.Fatalf("expected cell=7, got %v (present %v)", cell, ok)
	}

	last := w.Snapshots[2]
	if x, _ := last.Lookup("x"); x.Int != 3 {
		t.Fatalf("expected x=3 in final snapshot, got %v", x)
	}
}

func TestUninitializedIsDistinctFromZero(t *testing.T) {
	input := entry(1, "act", 2, "x = 0 ()")

	w, _, err := Reconstruct(strings.NewReader(input), trace.DialectCurrent, testTable())
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	snap := w.Snapshots[0]
	if x, ok := snap.Lookup("x"); !ok || x.Int != 0 {
		t.Fatalf("expected assigned zero, got %v (present %v)", x, ok)
	}
	if _, ok := snap.Lookup("cell"); ok {
		t.Fatal("expected cell to be uninitialized")
	}
}

func TestChangedListsFirstAssignmentOrderWithoutDuplicates(t *testing.T) {
	input := entry(1, "act", 2, "x = 1 ()") +
		entry(2, "act", 2, "cell = 2 ()") +
		entry(3, "act", 2, "x = 3 ()")

	w, _, err := Reconstruct(strings.NewReader(input), trace.DialectCurrent, testTable())
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	snap := w.Snapshots[0]
	if diff := cmp.Diff([]string{"x", "cell"}, snap.Changed); diff != "" {
		t.Fatalf("changed set mismatch (-want +got):\n%s", diff)
	}
	if len(snap.Assignments) != 3 {
		t.Fatalf("expected raw assignments to keep duplicates, got %d", len(snap.Assignments))
	}
	if x, _ := snap.Lookup("x"); x.Int != 3 {
		t.Fatalf("expected last write to win, got %v", x)
	}
}

func TestReconstructIsDeterministic(t *testing.T) {
	input := entry(1, "sched_round", 0, "tick = 1 ()") +
		entry(2, "act", 2, "x = 5 (00000101)") +
		entry(3, "act", 5, "cell = 200 ()")

	first, firstDiags, err := Reconstruct(strings.NewReader(input), trace.DialectCurrent, testTable())
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	second, secondDiags, err := Reconstruct(strings.NewReader(input), trace.DialectCurrent, testTable())
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("witness not deterministic (-first +second):\n%s", diff)
	}
	if len(firstDiags) != len(secondDiags) {
		t.Fatalf("diagnostics not deterministic: %d vs %d", len(firstDiags), len(secondDiags))
	}
}

func TestTruncatedTraceFlagsFinalSnapshot(t *testing.T) {
	input := entry(1, "act", 2, "x = 1 ()") +
		entry(2, "act", 5, "x = 2 ()")

	w, _, err := Reconstruct(strings.NewReader(input), trace.DialectCurrent, testTable())
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	if !w.Snapshots[0].Complete {
		t.Fatal("expected first snapshot to be complete")
	}
	if w.Snapshots[1].Complete {
		t.Fatal("expected final snapshot to be incomplete")
	}
}

func TestFatalErrorKeepsEarlierSnapshots(t *testing.T) {
	input := entry(1, "act", 2, "x = 1 ()") +
		entry(2, "act", 5, "x = 2 ()") +
		"garbage\n"

	w, _, err := Reconstruct(strings.NewReader(input), trace.DialectCurrent, testTable())
	if err == nil {
		t.Fatal("expected fatal error")
	}
	if len(w.Snapshots) != 1 {
		t.Fatalf("expected the complete first snapshot to survive, got %d", len(w.Snapshots))
	}
}

// trackingReader counts bytes handed to the pipeline, proving that an early
// stop leaves the tail of the trace unread.
type trackingReader struct {
	r    io.Reader
	read int
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	t.read += n
	return n, err
}

func TestEarlyStopDoesNotForceRemainder(t *testing.T) {
	var b strings.Builder
	b.WriteString(entry(1, "act", 2, "x = 1 ()"))
	b.WriteString(entry(2, "act", 5, "x = 2 ()"))
	// A long tail the consumer never asks for.
	for i := 0; i < 10000; i++ {
		thread := 2 + 3*(i%2)
		b.WriteString(entry(3+i, "act", thread, "x = 1 ()"))
	}
	total := b.Len()

	reader := &trackingReader{r: strings.NewReader(b.String())}
	assembler := Pipeline(reader, trace.DialectCurrent, testTable())
	if !assembler.Scan() {
		t.Fatalf("expected first snapshot: %v", assembler.Err())
	}
	if reader.read >= total/2 {
		t.Fatalf("pipeline consumed %d of %d bytes for one snapshot", reader.read, total)
	}
}

func TestSnapshotMapsAreIndependent(t *testing.T) {
	input := entry(1, "act", 2, "x = 1 ()") +
		entry(2, "act", 5, "x = 2 ()")

	w, _, err := Reconstruct(strings.NewReader(input), trace.DialectCurrent, testTable())
	if err != nil {
		t.Fatalf("reconstruct: %v", err)
	}
	first, second := w.Snapshots[0], w.Snapshots[1]
	if first.Values["x"].Int != 1 {
		t.Fatalf("expected first snapshot to keep x=1, got %v", first.Values["x"])
	}
	if second.Values["x"].Int != 2 {
		t.Fatalf("expected second snapshot to hold x=2, got %v", second.Values["x"])
	}
}
