// Package store defines the persistence contracts of the worker: feedback
// report + curriculum writes, the per-child G2P cache, the drift baseline
// register, and the read-only child lexicon table.
//
// Implementations live in the postgres sub-package; memstore provides
// in-memory doubles for tests.
package store

import (
	"context"

	"github.com/solmave/phonatia/internal/ctc"
)

// Report is the scored feedback produced for one submission. Segments and
// the emotion label travel with the report in memory; the persisted row
// carries the scalar columns only.
type Report struct {
	SubmissionID   string
	Score          int
	Weakness       string
	Recommendation string
	Segments       []ctc.Segment
	Emotion        string
}

// Curriculum is the per-child adaptive focus derived from a report.
type Curriculum struct {
	ChildID          string
	FocusPhonemesCSV string
	Difficulty       int
}

// Lexicon is a child's expected-utterance row. Either field may be empty.
type Lexicon struct {
	Phonemes []string
	Words    []string
}

// Reports persists feedback reports and curriculum updates.
type Reports interface {
	// SaveReportAndCurriculum writes the report row and upserts the child's
	// curriculum in a single transaction. Both commit or neither does.
	SaveReportAndCurriculum(ctx context.Context, r Report, c Curriculum) error
}

// G2PCache is the per-child write-through grapheme-to-phoneme cache keyed by
// (child_id, word).
type G2PCache interface {
	// Lookup returns the cached word→phonemes mappings for the given words.
	// Words without an entry are simply absent from the result.
	Lookup(ctx context.Context, childID string, words []string) (map[string][]string, error)

	// Store upserts the given word→phonemes mappings.
	Store(ctx context.Context, childID string, mapping map[string][]string) error
}

// Baselines is the named drift-baseline register. The worker uses a single
// row; concurrent writers are last-writer-wins.
type Baselines interface {
	// LoadBaseline returns the baseline histogram and whether one exists.
	LoadBaseline(ctx context.Context) ([]float64, bool, error)

	// SaveBaseline inserts or replaces the baseline histogram.
	SaveBaseline(ctx context.Context, hist []float64) error
}

// Lexicons reads the child_lexicon table. The worker never writes it.
type Lexicons interface {
	// ChildLexicon returns the child's lexicon row, or a zero Lexicon when
	// the child has none.
	ChildLexicon(ctx context.Context, childID string) (Lexicon, error)
}
