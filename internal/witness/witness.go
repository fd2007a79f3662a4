// Package witness folds reconstructed logical steps into a complete ordered
// counterexample witness: a sequence of state snapshots, each carrying every
// variable's current value plus the explicit set of variables changed since
// the previous snapshot.
//
// The pipeline under this package is lazily evaluated end to end. A consumer
// that reads only the first N snapshots (for example, to display the opening
// rounds of a long counterexample) never forces the remainder of the trace
// text through the parser.
package witness

import (
	"io"

	"github.com/swarmverify/witness/internal/cexerr"
	"github.com/swarmverify/witness/internal/decode"
	"github.com/swarmverify/witness/internal/steps"
	"github.com/swarmverify/witness/internal/symbols"
	"github.com/swarmverify/witness/internal/trace"
)

// Snapshot is the full system state after one logical step.
type Snapshot struct {
	// Round is the global round index of the step that produced the
	// snapshot.
	Round int
	// Origin attributes the step to an agent or to the environment.
	Origin steps.Origin
	// Values maps every variable assigned at least once so far to its
	// current value. A variable absent from the map has never been
	// assigned: it is uninitialized, which is distinct from holding its
	// type's zero value.
	Values map[string]decode.Value
	// Changed lists the variables assigned in this step, in first
	// assignment order.
	Changed []string
	// Assignments preserves the step's raw assignment sequence,
	// duplicates included.
	Assignments []steps.Assignment
	// Complete is false when the trace ended mid-round.
	Complete bool
}

// Lookup returns a variable's value in the snapshot. The second result is
// false for a variable that has never been assigned.
func (s Snapshot) Lookup(name string) (decode.Value, bool) {
	value, ok := s.Values[name]
	return value, ok
}

// Witness is a fully materialized reconstruction result.
type Witness struct {
	Snapshots []Snapshot
}

// Assembler streams snapshots out of a step builder, threading the running
// state forward. Once a variable has been assigned it has a defined value in
// every later snapshot.
type Assembler struct {
	builder *steps.Builder
	running map[string]decode.Value
	snap    Snapshot
}

// NewAssembler creates an assembler over a step builder.
func NewAssembler(builder *steps.Builder) *Assembler {
	return &Assembler{
		builder: builder,
		running: make(map[string]decode.Value),
	}
}

// Pipeline wires the full reconstruction chain over a raw trace reader:
// parser, decoder, step reconstructor, assembler. Every stage is pull-based.
func Pipeline(r io.Reader, dialect trace.Dialect, table *symbols.Table) *Assembler {
	return NewAssembler(steps.NewBuilder(trace.NewScanner(r, dialect), table))
}

// Scan advances to the next snapshot. It returns false at the end of the
// trace or on a fatal parse error.
func (a *Assembler) Scan() bool {
	if !a.builder.Scan() {
		return false
	}
	step := a.builder.Step()

	changed := make([]string, 0, len(step.Assignments))
	seen := make(map[string]bool, len(step.Assignments))
	for _, asgn := range step.Assignments {
		a.running[asgn.Name] = asgn.Value
		if !seen[asgn.Name] {
			seen[asgn.Name] = true
			changed = append(changed, asgn.Name)
		}
	}

	// Snapshots are immutable: hand out a copy of the running state.
	values := make(map[string]decode.Value, len(a.running))
	for name, value := range a.running {
		values[name] = value
	}

	a.snap = Snapshot{
		Round:       step.Round,
		Origin:      step.Origin,
		Values:      values,
		Changed:     changed,
		Assignments: step.Assignments,
		Complete:    step.Complete,
	}
	return true
}

// Snapshot returns the snapshot produced by the last successful Scan.
func (a *Assembler) Snapshot() Snapshot {
	return a.snap
}

// Err returns the fatal error that stopped the pipeline, if any.
func (a *Assembler) Err() error {
	return a.builder.Err()
}

// Diagnostics returns the local diagnostics accumulated so far.
func (a *Assembler) Diagnostics() []*cexerr.Error {
	return a.builder.Diagnostics()
}

// Reconstruct runs the whole pipeline and materializes the witness. The
// returned diagnostics are the local decode and schema findings; the error
// is the single fatal diagnostic, if the parse aborted. On a fatal error the
// witness holds the snapshots reconstructed before the corrupt entry.
//
// Reconstruction is deterministic: identical (text, dialect, table) inputs
// produce structurally identical witnesses.
func Reconstruct(r io.Reader, dialect trace.Dialect, table *symbols.Table) (Witness, []*cexerr.Error, error) {
	assembler := Pipeline(r, dialect, table)
	var w Witness
	for assembler.Scan() {
		w.Snapshots = append(w.Snapshots, assembler.Snapshot())
	}
	return w, assembler.Diagnostics(), assembler.Err()
}
