// Package lexicon resolves the target phoneme sequence for an utterance: the
// child's own lexicon row when present, then the configured default. Word
// lists are converted through the G2P resolver.
package lexicon

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/solmave/phonatia/internal/g2p"
	"github.com/solmave/phonatia/internal/store"
)

// Provider resolves target phoneme sequences. An empty result means the
// utterance is scored from free decoding alone.
type Provider struct {
	store    store.Lexicons // nil when no database is configured
	resolver *g2p.Resolver

	mu       sync.RWMutex
	fallback []string
}

// New builds a provider. lexicons may be nil; defaultTarget is the parsed
// fallback sequence from [LoadDefault].
func New(lexicons store.Lexicons, resolver *g2p.Resolver, defaultTarget []string) *Provider {
	return &Provider{store: lexicons, resolver: resolver, fallback: defaultTarget}
}

// SetDefault replaces the fallback target. Safe to call concurrently with
// Fetch; used when configuration is hot-reloaded.
func (p *Provider) SetDefault(target []string) {
	p.mu.Lock()
	p.fallback = target
	p.mu.Unlock()
}

// Fetch returns the target phonemes for a child. Lookup and conversion
// failures are logged and degrade to the next source; a child with no lexicon
// and no configured default yields nil.
func (p *Provider) Fetch(ctx context.Context, childID string) []string {
	if p.store != nil && childID != "" {
		lex, err := p.store.ChildLexicon(ctx, childID)
		if err != nil {
			slog.Warn("child lexicon lookup failed", "child", childID, "err", err)
		} else if len(lex.Phonemes) > 0 {
			return lex.Phonemes
		} else if len(lex.Words) > 0 {
			phs, err := p.resolver.Convert(ctx, childID, lex.Words)
			if err != nil {
				slog.Warn("child lexicon conversion failed", "child", childID, "err", err)
			} else if len(phs) > 0 {
				return phs
			}
		}
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fallback
}

// LoadDefault parses the default target-lexicon setting. A path to an
// existing file is read as a JSON array of phonemes; anything else is treated
// as a comma-separated list. Empty input or a malformed file yields nil.
func LoadDefault(value string) []string {
	if value == "" {
		return nil
	}
	if _, err := os.Stat(value); err == nil {
		data, err := os.ReadFile(value)
		if err != nil {
			slog.Warn("default lexicon file unreadable", "path", value, "err", err)
			return nil
		}
		var phs []string
		if err := json.Unmarshal(data, &phs); err != nil {
			slog.Warn("default lexicon file is not a JSON array", "path", value, "err", err)
			return nil
		}
		return phs
	}

	var phs []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			phs = append(phs, p)
		}
	}
	return phs
}
