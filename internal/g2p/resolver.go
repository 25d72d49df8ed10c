package g2p

import (
	"context"
	"log/slog"
	"strings"

	"github.com/solmave/phonatia/internal/store"
)

// Backend selector names accepted by [NewBackend].
const (
	BackendEnglish       = "english"
	BackendPhonetisaurus = "phonetisaurus"
	BackendSequitur      = "sequitur"
)

// NewBackend selects the conversion backend. Unknown names select English.
func NewBackend(name, modelPath string) Backend {
	switch strings.ToLower(name) {
	case BackendPhonetisaurus:
		return NewPhonetisaurus(modelPath)
	case BackendSequitur:
		return NewSequitur(modelPath)
	default:
		return NewEnglish()
	}
}

// Resolver routes words through the right backend for the configured language
// and maintains the per-child write-through cache. Persian and German bypass
// the cache: their character mappings are cheaper than a database round trip.
type Resolver struct {
	backend Backend
	cache   store.G2PCache // nil disables caching
	lang    string
}

// NewResolver builds a resolver. cache may be nil.
func NewResolver(backend Backend, cache store.G2PCache, lang string) *Resolver {
	return &Resolver{backend: backend, cache: cache, lang: strings.ToLower(lang)}
}

// Convert returns the flat phoneme sequence for words, concatenated in input
// order. Cache failures are logged and bypassed; conversion itself degrades
// to the letter heuristic inside the backend, so Convert only fails on
// context cancellation.
func (r *Resolver) Convert(ctx context.Context, childID string, words []string) ([]string, error) {
	words = compactWords(words)
	if len(words) == 0 {
		return nil, nil
	}

	switch r.lang {
	case "fa":
		return PersianWords(words), nil
	case "de":
		return GermanWords(words), nil
	}

	if r.cache == nil || childID == "" {
		return r.backend.Phonemes(ctx, words)
	}
	return r.convertCached(ctx, childID, words)
}

// convertCached resolves cache hits, converts the misses in one backend call,
// distributes the flat result across the missed words, and writes the new
// entries back.
func (r *Resolver) convertCached(ctx context.Context, childID string, words []string) ([]string, error) {
	mapping, err := r.cache.Lookup(ctx, childID, words)
	if err != nil {
		slog.Warn("g2p cache lookup failed, bypassing cache", "child", childID, "err", err)
		return r.backend.Phonemes(ctx, words)
	}
	if mapping == nil {
		mapping = make(map[string][]string)
	}

	var miss []string
	for _, w := range words {
		if _, ok := mapping[w]; !ok {
			miss = append(miss, w)
		}
	}

	if len(miss) > 0 {
		phs, err := r.backend.Phonemes(ctx, miss)
		if err != nil {
			return nil, err
		}
		fresh := distribute(miss, phs)
		for w, ph := range fresh {
			mapping[w] = ph
		}
		if err := r.cache.Store(ctx, childID, fresh); err != nil {
			slog.Warn("g2p cache store failed", "child", childID, "err", err)
		}
	}

	var seq []string
	for _, w := range words {
		seq = append(seq, mapping[w]...)
	}
	return seq, nil
}

// distribute splits a flat phoneme list evenly across the words it was
// produced from; the last word takes any remainder. Backends return a flat
// sequence without word boundaries, so an even split is the best recovery.
func distribute(words []string, phs []string) map[string][]string {
	mapping := make(map[string][]string, len(words))
	if len(words) == 0 {
		return mapping
	}

	perWord := len(phs) / len(words)
	if perWord < 1 {
		perWord = 1
	}
	idx := 0
	for i, w := range words {
		end := idx + perWord
		if i == len(words)-1 || end > len(phs) {
			end = len(phs)
		}
		if idx >= end {
			// Ran out of phonemes; repeat the full sequence rather than
			// caching an empty pronunciation.
			mapping[w] = append([]string(nil), phs...)
			continue
		}
		mapping[w] = append([]string(nil), phs[idx:end]...)
		idx = end
	}
	return mapping
}

// compactWords drops empty and whitespace-only entries.
func compactWords(words []string) []string {
	out := words[:0:0]
	for _, w := range words {
		if strings.TrimSpace(w) != "" {
			out = append(out, w)
		}
	}
	return out
}
