// Package memstore provides in-memory implementations of the store contracts
// for tests and for running without a database.
package memstore

import (
	"context"
	"sync"

	"github.com/solmave/phonatia/internal/store"
)

// Store implements every contract in [store] with mutex-guarded maps.
type Store struct {
	mu sync.Mutex

	reports   []store.Report
	curricula map[string]store.Curriculum

	g2pCache map[string]map[string][]string

	baseline    []float64
	hasBaseline bool

	lexicons map[string]store.Lexicon
}

var (
	_ store.Reports   = (*Store)(nil)
	_ store.G2PCache  = (*Store)(nil)
	_ store.Baselines = (*Store)(nil)
	_ store.Lexicons  = (*Store)(nil)
)

func New() *Store {
	return &Store{
		curricula: make(map[string]store.Curriculum),
		g2pCache:  make(map[string]map[string][]string),
		lexicons:  make(map[string]store.Lexicon),
	}
}

// SaveReportAndCurriculum implements [store.Reports].
func (s *Store) SaveReportAndCurriculum(_ context.Context, r store.Report, c store.Curriculum) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	s.curricula[c.ChildID] = c
	return nil
}

// Reports returns a copy of all saved reports.
func (s *Store) Reports() []store.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.Report(nil), s.reports...)
}

// Curriculum returns the latest curriculum for a child.
func (s *Store) Curriculum(childID string) (store.Curriculum, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.curricula[childID]
	return c, ok
}

// Lookup implements [store.G2PCache].
func (s *Store) Lookup(_ context.Context, childID string, words []string) (map[string][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := make(map[string][]string)
	cached := s.g2pCache[childID]
	for _, w := range words {
		if phs, ok := cached[w]; ok {
			found[w] = append([]string(nil), phs...)
		}
	}
	return found, nil
}

// Store implements [store.G2PCache].
func (s *Store) Store(_ context.Context, childID string, mapping map[string][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cached := s.g2pCache[childID]
	if cached == nil {
		cached = make(map[string][]string)
		s.g2pCache[childID] = cached
	}
	for w, phs := range mapping {
		cached[w] = append([]string(nil), phs...)
	}
	return nil
}

// LoadBaseline implements [store.Baselines].
func (s *Store) LoadBaseline(_ context.Context) ([]float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasBaseline {
		return nil, false, nil
	}
	return append([]float64(nil), s.baseline...), true, nil
}

// SaveBaseline implements [store.Baselines].
func (s *Store) SaveBaseline(_ context.Context, hist []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseline = append([]float64(nil), hist...)
	s.hasBaseline = true
	return nil
}

// SetLexicon seeds a child's lexicon row.
func (s *Store) SetLexicon(childID string, lex store.Lexicon) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lexicons[childID] = lex
}

// ChildLexicon implements [store.Lexicons].
func (s *Store) ChildLexicon(_ context.Context, childID string) (store.Lexicon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lexicons[childID], nil
}
