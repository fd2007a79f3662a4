// Package cexview implements the counterexample viewer command. It reads a
// raw backend trace plus a symbol table, reconstructs the witness, and prints
// a human-readable transcript of the violating run.
package cexview

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/caarlos0/env/v11"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/swarmverify/witness/internal/archive"
	"github.com/swarmverify/witness/internal/cexerr"
	"github.com/swarmverify/witness/internal/steps"
	"github.com/swarmverify/witness/internal/symbols"
	"github.com/swarmverify/witness/internal/trace"
	"github.com/swarmverify/witness/internal/witness"
)

// Config holds cexview command configuration.
type Config struct {
	Trace     string `env:"SWARMVERIFY_TRACE_FILE"`
	Symbols   string `env:"SWARMVERIFY_SYMBOLS_FILE"`
	Dialect   string `env:"SWARMVERIFY_DIALECT"      envDefault:"current"`
	Archive   string `env:"SWARMVERIFY_ARCHIVE_DB"`
	MaxRounds int    `env:"SWARMVERIFY_MAX_ROUNDS"`
	ListRuns  bool   `env:"SWARMVERIFY_LIST_RUNS"`
	Verbose   bool   `env:"SWARMVERIFY_VERBOSE"`
}

// ParseConfig parses flags into a Config. Environment variables provide the
// defaults; flags override.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fs.StringVar(&cfg.Trace, "trace", cfg.Trace, "path to raw trace file (- for stdin)")
	fs.StringVar(&cfg.Symbols, "symbols", cfg.Symbols, "path to symbol table yaml")
	fs.StringVar(&cfg.Dialect, "dialect", cfg.Dialect, "trace header dialect (current or legacy)")
	fs.StringVar(&cfg.Archive, "archive", cfg.Archive, "sqlite archive db path (empty disables)")
	fs.IntVar(&cfg.MaxRounds, "max-rounds", cfg.MaxRounds, "stop after this round (0 for all)")
	fs.BoolVar(&cfg.ListRuns, "list-runs", cfg.ListRuns, "list archived runs and exit")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "report decode diagnostics")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the cexview command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	logger := log.New(errOut, "", 0)

	if cfg.ListRuns {
		return listRuns(ctx, cfg, out)
	}

	if cfg.Trace == "" {
		return errors.New("trace path is required")
	}
	if cfg.Symbols == "" {
		return errors.New("symbols path is required")
	}
	dialect, err := trace.ParseDialect(cfg.Dialect)
	if err != nil {
		return err
	}

	table, err := symbols.LoadFile(cfg.Symbols)
	if err != nil {
		return err
	}

	traceText, err := readTrace(cfg.Trace)
	if err != nil {
		return err
	}

	ctx, span := otel.Tracer("cexview").Start(ctx, "cexview.run")
	span.SetAttributes(
		attribute.String("trace.dialect", string(dialect)),
		attribute.String("trace.digest", archive.Digest(traceText)),
	)
	defer span.End()

	res, render := reconstruct(traceText, dialect, table, cfg.MaxRounds)
	w := bufio.NewWriter(out)
	for _, line := range render {
		fmt.Fprintln(w, line)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	span.SetAttributes(
		attribute.Int("witness.snapshots", len(res.Snapshots)),
		attribute.Int("witness.diagnostics", len(res.Diagnostics)),
	)

	if cfg.Verbose {
		for _, diag := range res.Diagnostics {
			logger.Printf("diagnostic: %v", diag)
		}
	}

	if cfg.Archive != "" {
		store, err := archive.Open(cfg.Archive)
		if err != nil {
			return err
		}
		defer store.Close()
		run, err := store.RecordRun(ctx, archive.Digest(traceText), dialect,
			res.Witness, len(res.Diagnostics))
		if err != nil {
			return err
		}
		logger.Printf("archived run %s", run.ID)
	}

	return res.Err
}

// result collects everything one reconstruction pass produced.
type result struct {
	witness.Witness
	Diagnostics []*cexerr.Error
	Err         error
}

// reconstruct pulls snapshots through the pipeline, stopping early when a
// round limit is set, and renders each snapshot as it arrives. Early stop
// leaves the remainder of the trace unread.
func reconstruct(traceText []byte, dialect trace.Dialect, table *symbols.Table, maxRounds int) (result, []string) {
	assembler := witness.Pipeline(bytes.NewReader(traceText), dialect, table)

	var res result
	var lines []string
	lastRound := -1
	for assembler.Scan() {
		snap := assembler.Snapshot()
		if maxRounds > 0 && snap.Round > maxRounds {
			break
		}
		if snap.Round != lastRound {
			lines = append(lines, fmt.Sprintf("--step %d--", snap.Round))
			lastRound = snap.Round
		}
		lines = append(lines, renderSnapshot(snap)...)
		if !snap.Complete {
			lines = append(lines, "<trace truncated mid-round>")
		}
		res.Snapshots = append(res.Snapshots, snap)
	}
	res.Diagnostics = assembler.Diagnostics()
	res.Err = assembler.Err()
	return res, lines
}

// renderSnapshot prints each assignment of the step with the arrow that marks
// its scope: <- for agent-local stores, <~ for environment stores, <-- for
// global stigmergy variables.
func renderSnapshot(snap witness.Snapshot) []string {
	var lines []string
	prefix := "\t"
	if snap.Origin.Kind == steps.OriginAgent {
		lines = append(lines, fmt.Sprintf("agent %d:", snap.Origin.Agent))
	}
	for _, asgn := range snap.Assignments {
		arrow := "<--"
		switch asgn.Scope {
		case symbols.ScopeAgent:
			arrow = "<-"
		case symbols.ScopeEnvironment:
			arrow = "<~"
		}
		lines = append(lines, fmt.Sprintf("%s%s %s %s", prefix, asgn.Name, arrow, asgn.Value))
	}
	return lines
}

func listRuns(ctx context.Context, cfg Config, out io.Writer) error {
	if cfg.Archive == "" {
		return errors.New("archive path is required to list runs")
	}
	store, err := archive.Open(cfg.Archive)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(ctx)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(out)
	for _, run := range runs {
		fmt.Fprintf(w, "%s  %s  %s  snapshots=%d diagnostics=%d  %s\n",
			run.ID, run.CreatedAt.Format("2006-01-02 15:04:05"),
			run.Dialect, run.Snapshots, run.Diagnostics, run.TraceDigest[:12])
	}
	return w.Flush()
}

func readTrace(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
