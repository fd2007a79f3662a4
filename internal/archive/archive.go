// Package archive persists reconstruction runs in a SQLite database so
// previously reconstructed witnesses can be listed and re-rendered without
// re-running the backend. Runs are keyed by a digest of the raw trace text,
// which identifies repeated traces across simulation batches.
//
// The reconstruction core never touches the archive; only the command layer
// wires it in, and only when a database path is configured.
package archive

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/swarmverify/witness/internal/archive/migrations"
	"github.com/swarmverify/witness/internal/cexerr"
	"github.com/swarmverify/witness/internal/platform/storage/sqlitemigrate"
	"github.com/swarmverify/witness/internal/steps"
	"github.com/swarmverify/witness/internal/trace"
	"github.com/swarmverify/witness/internal/witness"
)

// Run is the stored metadata of one reconstruction run.
type Run struct {
	ID          string
	TraceDigest string
	Dialect     trace.Dialect
	CreatedAt   time.Time
	Snapshots   int
	Diagnostics int
}

// Store is a SQLite-backed witness archive.
type Store struct {
	sqlDB *sql.DB
	clock func() time.Time
}

// Digest returns the content digest used to key runs by their raw trace.
func Digest(traceText []byte) string {
	sum := sha256.Sum256(traceText)
	return hex.EncodeToString(sum[:])
}

// Open opens (and if needed creates) an archive at the provided path,
// applying embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, cexerr.New(cexerr.CodeArchive, "archive path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, cexerr.Wrap(cexerr.CodeArchive, "open archive db", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, cexerr.Wrap(cexerr.CodeArchive, "apply archive migrations", err)
	}
	return &Store{sqlDB: sqlDB, clock: time.Now}, nil
}

// Close closes the underlying database. It is nil-safe so callers can defer
// it unconditionally.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// RecordRun stores one reconstruction run and its flattened assignment
// timeline. It returns the generated run id.
func (s *Store) RecordRun(ctx context.Context, digest string, dialect trace.Dialect, w witness.Witness, diagnostics int) (Run, error) {
	run := Run{
		ID:          uuid.NewString(),
		TraceDigest: digest,
		Dialect:     dialect,
		CreatedAt:   s.clock().UTC(),
		Snapshots:   len(w.Snapshots),
		Diagnostics: diagnostics,
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, cexerr.Wrap(cexerr.CodeArchive, "begin run transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, trace_digest, dialect, created_at, snapshots, diagnostics)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.TraceDigest, string(run.Dialect),
		run.CreatedAt.UnixMilli(), run.Snapshots, run.Diagnostics,
	); err != nil {
		return Run{}, cexerr.Wrap(cexerr.CodeArchive, "insert run", err)
	}

	for _, snap := range w.Snapshots {
		for _, asgn := range snap.Assignments {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO assignments (run_id, seq, round, origin, agent, variable, value)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				run.ID, asgn.Seq, snap.Round,
				string(snap.Origin.Kind), originAgent(snap.Origin),
				asgn.Name, asgn.Value.String(),
			); err != nil {
				return Run{}, cexerr.Wrap(cexerr.CodeArchive,
					fmt.Sprintf("insert assignment %d", asgn.Seq), err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, cexerr.Wrap(cexerr.CodeArchive, "commit run", err)
	}
	return run, nil
}

// ListRuns returns stored runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, trace_digest, dialect, created_at, snapshots, diagnostics
		 FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, cexerr.Wrap(cexerr.CodeArchive, "list runs", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var dialect string
		var createdAt int64
		if err := rows.Scan(&run.ID, &run.TraceDigest, &dialect,
			&createdAt, &run.Snapshots, &run.Diagnostics); err != nil {
			return nil, cexerr.Wrap(cexerr.CodeArchive, "scan run", err)
		}
		run.Dialect = trace.Dialect(dialect)
		run.CreatedAt = time.UnixMilli(createdAt).UTC()
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, cexerr.Wrap(cexerr.CodeArchive, "iterate runs", err)
	}
	return runs, nil
}

func originAgent(origin steps.Origin) int {
	if origin.Kind == steps.OriginAgent {
		return origin.Agent
	}
	return -1
}
