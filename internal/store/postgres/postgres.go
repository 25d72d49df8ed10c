// Package postgres implements the worker's persistence contracts on
// PostgreSQL via a single pgxpool connection pool.
//
// The FeedbackReports, ChildCurricula, and child_lexicon tables are owned by
// the platform schema; this package only speaks their SQL contract. The two
// worker-owned scratch tables (child_g2p_cache, worker_drift_baseline) are
// created lazily with idempotent DDL on first touch.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solmave/phonatia/internal/store"
)

// workerDDL creates the tables the worker owns. Idempotent; executed once per
// process on first cache or baseline access.
const workerDDL = `
CREATE TABLE IF NOT EXISTS child_g2p_cache (
    child_id  TEXT   NOT NULL,
    word      TEXT   NOT NULL,
    phonemes  JSONB  NOT NULL DEFAULT '[]',
    PRIMARY KEY (child_id, word)
);

CREATE TABLE IF NOT EXISTS worker_drift_baseline (
    name  TEXT   PRIMARY KEY,
    hist  JSONB  NOT NULL
);
`

// baselineName is the single drift-baseline row the worker maintains.
const baselineName = "phoneme_hist"

// DB is the database interface used by [Store]. *pgxpool.Pool satisfies it.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store implements [store.Reports], [store.G2PCache], [store.Baselines], and
// [store.Lexicons]. All operations are safe for concurrent use.
type Store struct {
	db   DB
	pool *pgxpool.Pool // nil when constructed via NewWithDB

	ddlOnce sync.Once
	ddlErr  error
}

// Compile-time interface checks.
var (
	_ store.Reports   = (*Store)(nil)
	_ store.G2PCache  = (*Store)(nil)
	_ store.Baselines = (*Store)(nil)
	_ store.Lexicons  = (*Store)(nil)
)

// New connects a pool to the PostgreSQL database at dsn and pings it.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Store{db: pool, pool: pool}, nil
}

// NewWithDB wraps an existing connection or pool. Used by tests.
func NewWithDB(db DB) *Store {
	return &Store{db: db}
}

// Ping probes database connectivity for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	return s.pool.Ping(ctx)
}

// Close releases all pooled connections.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// ensureWorkerTables runs the worker-owned DDL once per process.
func (s *Store) ensureWorkerTables(ctx context.Context) error {
	s.ddlOnce.Do(func() {
		if _, err := s.db.Exec(ctx, workerDDL); err != nil {
			s.ddlErr = fmt.Errorf("postgres: worker ddl: %w", err)
		}
	})
	return s.ddlErr
}

// ─── Reports ─────────────────────────────────────────────────────────────────

// SaveReportAndCurriculum writes the feedback report row and upserts the
// child's curriculum inside one transaction.
func (s *Store) SaveReportAndCurriculum(ctx context.Context, r store.Report, c store.Curriculum) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	const insertReport = `
		INSERT INTO "FeedbackReports"
			("Id", "SubmissionId", "Score0_100", "Weakness", "Recommendation", "CreatedAtUtc")
		VALUES ($1, $2, $3, $4, $5, now())`

	if _, err := tx.Exec(ctx, insertReport,
		uuid.NewString(), r.SubmissionID, r.Score, r.Weakness, r.Recommendation,
	); err != nil {
		return fmt.Errorf("postgres: insert report %q: %w", r.SubmissionID, err)
	}

	const upsertCurriculum = `
		INSERT INTO "ChildCurricula"
			("Id", "ChildId", "FocusPhonemesCsv", "Difficulty", "SuccessStreak", "UpdatedAtUtc")
		VALUES ($1, $2, $3, $4, 0, now())
		ON CONFLICT ("ChildId") DO UPDATE SET
			"FocusPhonemesCsv" = EXCLUDED."FocusPhonemesCsv",
			"Difficulty"       = EXCLUDED."Difficulty",
			"UpdatedAtUtc"     = now()`

	if _, err := tx.Exec(ctx, upsertCurriculum,
		uuid.NewString(), c.ChildID, c.FocusPhonemesCSV, c.Difficulty,
	); err != nil {
		return fmt.Errorf("postgres: upsert curriculum %q: %w", c.ChildID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit report %q: %w", r.SubmissionID, err)
	}
	return nil
}

// ─── G2P cache ───────────────────────────────────────────────────────────────

// Lookup returns cached (child_id, word) → phonemes mappings.
func (s *Store) Lookup(ctx context.Context, childID string, words []string) (map[string][]string, error) {
	if err := s.ensureWorkerTables(ctx); err != nil {
		return nil, err
	}

	const query = `
		SELECT word, phonemes
		FROM child_g2p_cache
		WHERE child_id = $1 AND word = ANY($2)`

	rows, err := s.db.Query(ctx, query, childID, words)
	if err != nil {
		return nil, fmt.Errorf("postgres: g2p cache lookup: %w", err)
	}
	defer rows.Close()

	found := make(map[string][]string)
	for rows.Next() {
		var word string
		var phonemesJSON []byte
		if err := rows.Scan(&word, &phonemesJSON); err != nil {
			return nil, fmt.Errorf("postgres: g2p cache scan: %w", err)
		}
		var phonemes []string
		if err := json.Unmarshal(phonemesJSON, &phonemes); err != nil {
			return nil, fmt.Errorf("postgres: g2p cache entry %q: %w", word, err)
		}
		found[word] = phonemes
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: g2p cache lookup: %w", err)
	}
	return found, nil
}

// Store upserts word → phonemes mappings for a child.
func (s *Store) Store(ctx context.Context, childID string, mapping map[string][]string) error {
	if err := s.ensureWorkerTables(ctx); err != nil {
		return err
	}

	const upsert = `
		INSERT INTO child_g2p_cache (child_id, word, phonemes)
		VALUES ($1, $2, $3)
		ON CONFLICT (child_id, word) DO UPDATE SET phonemes = EXCLUDED.phonemes`

	for word, phonemes := range mapping {
		phonemesJSON, err := json.Marshal(emptySlice(phonemes))
		if err != nil {
			return fmt.Errorf("postgres: marshal phonemes for %q: %w", word, err)
		}
		if _, err := s.db.Exec(ctx, upsert, childID, word, phonemesJSON); err != nil {
			return fmt.Errorf("postgres: g2p cache store %q: %w", word, err)
		}
	}
	return nil
}

// ─── Drift baseline ──────────────────────────────────────────────────────────

// LoadBaseline returns the stored phoneme histogram, if any.
func (s *Store) LoadBaseline(ctx context.Context) ([]float64, bool, error) {
	if err := s.ensureWorkerTables(ctx); err != nil {
		return nil, false, err
	}

	const query = `SELECT hist FROM worker_drift_baseline WHERE name = $1`

	var histJSON []byte
	err := s.db.QueryRow(ctx, query, baselineName).Scan(&histJSON)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("postgres: load baseline: %w", err)
	}
	var hist []float64
	if err := json.Unmarshal(histJSON, &hist); err != nil {
		return nil, false, fmt.Errorf("postgres: baseline payload: %w", err)
	}
	return hist, true, nil
}

// SaveBaseline inserts or replaces the phoneme histogram.
func (s *Store) SaveBaseline(ctx context.Context, hist []float64) error {
	if err := s.ensureWorkerTables(ctx); err != nil {
		return err
	}

	histJSON, err := json.Marshal(hist)
	if err != nil {
		return fmt.Errorf("postgres: marshal baseline: %w", err)
	}

	const upsert = `
		INSERT INTO worker_drift_baseline (name, hist)
		VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET hist = EXCLUDED.hist`

	if _, err := s.db.Exec(ctx, upsert, baselineName, histJSON); err != nil {
		return fmt.Errorf("postgres: save baseline: %w", err)
	}
	return nil
}

// ─── Child lexicon ───────────────────────────────────────────────────────────

// ChildLexicon reads the child's expected-utterance row. A missing row is not
// an error; it yields a zero [store.Lexicon].
func (s *Store) ChildLexicon(ctx context.Context, childID string) (store.Lexicon, error) {
	const query = `SELECT phonemes, words FROM child_lexicon WHERE child_id = $1`

	var phonemesJSON []byte
	var words []string
	err := s.db.QueryRow(ctx, query, childID).Scan(&phonemesJSON, &words)
	if err == pgx.ErrNoRows {
		return store.Lexicon{}, nil
	}
	if err != nil {
		return store.Lexicon{}, fmt.Errorf("postgres: child lexicon %q: %w", childID, err)
	}

	lex := store.Lexicon{Words: words}
	if len(phonemesJSON) > 0 {
		if err := json.Unmarshal(phonemesJSON, &lex.Phonemes); err != nil {
			return store.Lexicon{}, fmt.Errorf("postgres: child lexicon %q phonemes: %w", childID, err)
		}
	}
	return lex, nil
}

// emptySlice ensures JSON marshalling produces "[]" instead of "null".
func emptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
