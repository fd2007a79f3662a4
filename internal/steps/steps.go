// Package steps reconstructs the logical rounds of the multi-agent system
// from the flattened trace. The backend interleaves agent actions through an
// explicit scheduler and emits no step boundaries of its own, so boundaries
// are inferred from thread-id changes and from the scheduler's reserved
// round-boundary marker, both supplied through the symbol table.
package steps

import (
	"github.com/swarmverify/witness/internal/cexerr"
	"github.com/swarmverify/witness/internal/decode"
	"github.com/swarmverify/witness/internal/symbols"
	"github.com/swarmverify/witness/internal/trace"
)

// OriginKind tags who a logical step is attributed to.
type OriginKind string

const (
	// OriginAgent attributes the step to one agent of the system.
	OriginAgent OriginKind = "agent"
	// OriginEnvironment attributes the step to the shared environment,
	// which has no single owning agent.
	OriginEnvironment OriginKind = "environment"
)

// Origin identifies the originator of a logical step.
type Origin struct {
	Kind  OriginKind
	Agent int // valid when Kind is OriginAgent
}

// Assignment is one decoded variable assignment within a step.
type Assignment struct {
	// Seq is the backend state sequence number of the underlying event.
	Seq int
	// Name is the assigned variable.
	Name string
	// Scope is the variable's symbol table scope; assignments to unknown
	// variables carry the global scope.
	Scope symbols.Scope
	// Value is the decoded value; unknown when decoding failed locally.
	Value decode.Value
}

// Step is one reconstructed logical round entry: the ordered assignments of
// a single atomic agent action, or of environment bookkeeping between agent
// actions.
type Step struct {
	// Round is the global round index, incremented each time the
	// scheduler's round-boundary marker begins a step.
	Round int
	// Thread is the backend thread id the step's events share.
	Thread int
	// Origin attributes the step to an agent or to the environment.
	Origin Origin
	// Assignments lists every assignment of the step in trace order.
	Assignments []Assignment
	// Complete is false for a final step cut short by the end of the
	// trace; such a step is still reported, never dropped.
	Complete bool
}

// Builder is a streaming reconstructor over a trace scanner. Like the
// scanner it is pull-based: steps are produced one at a time and the
// underlying trace is only read as far as the consumer asks.
type Builder struct {
	sc      *trace.Scanner
	table   *symbols.Table
	round   int
	step    Step
	carried *decodedEvent
	diags   []*cexerr.Error
	err     error
	done    bool
}

type decodedEvent struct {
	ev       trace.Event
	isMarker bool
	asgn     Assignment
}

// NewBuilder creates a step builder over a trace scanner.
func NewBuilder(sc *trace.Scanner, table *symbols.Table) *Builder {
	return &Builder{sc: sc, table: table}
}

// Scan advances to the next logical step. It returns false at the end of
// the trace or when the scanner reports a fatal error.
func (b *Builder) Scan() bool {
	if b.err != nil || b.done {
		return false
	}

	step := Step{Origin: Origin{Kind: OriginEnvironment}}
	started := false

	for {
		next, ok := b.nextEvent()
		if !ok {
			if b.err != nil {
				// A corrupt entry invalidates the whole parse;
				// no partial step is fabricated from it.
				return false
			}
			b.done = true
			if !started {
				return false
			}
			// The trace ended mid-round.
			step.Complete = false
			b.step = step
			return true
		}

		if started && (next.ev.Thread != step.Thread || next.isMarker) {
			b.carried = next
			step.Complete = true
			b.step = step
			return true
		}

		if !started {
			started = true
			if next.isMarker {
				b.round++
			}
			step.Round = b.round
			step.Thread = next.ev.Thread
		}
		b.fold(&step, next)
	}
}

// Step returns the step produced by the last successful Scan.
func (b *Builder) Step() Step {
	return b.step
}

// Err returns the fatal error that stopped reconstruction, if any.
func (b *Builder) Err() error {
	if b.err != nil {
		return b.err
	}
	return b.sc.Err()
}

// Diagnostics returns the local decode and schema diagnostics accumulated so
// far, in trace order.
func (b *Builder) Diagnostics() []*cexerr.Error {
	return b.diags
}

func (b *Builder) nextEvent() (*decodedEvent, bool) {
	if carried := b.carried; carried != nil {
		b.carried = nil
		return carried, true
	}
	if !b.sc.Scan() {
		b.err = b.sc.Err()
		return nil, false
	}
	ev := b.sc.Event()
	return &decodedEvent{
		ev:       ev,
		isMarker: ev.Function == b.table.RoundMarker,
		asgn:     b.decode(ev),
	}, true
}

// decode types one event's value through the symbol table. Failures stay
// local: the assignment survives with an unknown value and a diagnostic.
func (b *Builder) decode(ev trace.Event) Assignment {
	asgn := Assignment{Seq: ev.Seq, Name: ev.Name, Scope: symbols.ScopeGlobal}

	sym, ok := b.table.Lookup(ev.Name)
	if !ok {
		reason := "variable is not in the symbol table"
		b.diags = append(b.diags, cexerr.ForVariable(cexerr.CodeSchema, ev.Name, reason))
		asgn.Value = decode.Unknown(reason)
		return asgn
	}

	asgn.Scope = sym.Scope
	value, diags := decode.Decode(sym.Type, ev.Value, ev.Bits)
	for _, diag := range diags {
		if diag.Metadata == nil {
			diag.Metadata = map[string]string{}
		}
		diag.Metadata["variable"] = ev.Name
		b.diags = append(b.diags, diag)
	}
	asgn.Value = value
	return asgn
}

// fold appends the event to the step and updates the step's originator.
// Agent-local assignments claim the step for the agent emulated by the
// thread; environment and global assignments belong to whichever step they
// occur in.
func (b *Builder) fold(step *Step, next *decodedEvent) {
	step.Assignments = append(step.Assignments, next.asgn)
	if next.asgn.Scope != symbols.ScopeAgent || step.Origin.Kind == OriginAgent {
		return
	}
	agent, ok := b.table.AgentOf(next.ev.Thread)
	if !ok {
		b.diags = append(b.diags, cexerr.Newf(cexerr.CodeSchema,
			"thread %d writes %s but has no agent mapping", next.ev.Thread, next.asgn.Name))
		return
	}
	step.Origin = Origin{Kind: OriginAgent, Agent: agent}
}
