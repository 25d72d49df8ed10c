// Package g2p converts target words into phoneme sequences. It supports an
// in-process English backend, external phonetisaurus/sequitur binaries, and
// direct character mappings for Persian and German. A per-child write-through
// cache avoids repeated conversions for the same vocabulary.
package g2p

import (
	"context"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// Backend converts words into one flat phoneme sequence, concatenated in word
// order. Implementations degrade to the letter heuristic rather than fail, so
// an error return is reserved for context cancellation.
type Backend interface {
	Phonemes(ctx context.Context, words []string) ([]string, error)
}

// baseLexicon covers the core early-vocabulary words used in therapy
// exercises. Everything else goes through the letter heuristic.
var baseLexicon = map[string][]string{
	"cat":  {"K", "AE", "T"},
	"dog":  {"D", "AO", "G"},
	"mama": {"M", "AA", "M", "AA"},
	"papa": {"P", "AA", "P", "AA"},
	"car":  {"K", "AA", "R"},
	"ball": {"B", "AO", "L"},
}

var (
	englishVowels = map[rune]string{
		'a': "AH", 'e': "EH", 'i': "IH", 'o': "AO", 'u': "UH",
	}
	englishConsonants = map[rune]string{
		'b': "B", 'c': "K", 'd': "D", 'f': "F", 'g': "G", 'h': "HH",
		'j': "JH", 'k': "K", 'l': "L", 'm': "M", 'n': "N", 'p': "P",
		'q': "K", 'r': "R", 's': "S", 't': "T", 'v': "V", 'w': "W",
		'x': "K", 'y': "Y", 'z': "Z",
	}
)

// normalizeWord lowercases and strips non-letters.
func normalizeWord(w string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(w) {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Heuristic maps words to phonemes letter by letter, consulting the base
// lexicon first. Unknown consonant-like characters map to "S".
func Heuristic(words []string) []string {
	var seq []string
	for _, w := range words {
		norm := normalizeWord(w)
		if phs, ok := baseLexicon[norm]; ok {
			seq = append(seq, phs...)
			continue
		}
		for _, r := range norm {
			if v, ok := englishVowels[r]; ok {
				seq = append(seq, v)
			} else if c, ok := englishConsonants[r]; ok {
				seq = append(seq, c)
			} else {
				seq = append(seq, "S")
			}
		}
	}
	return seq
}

// English is the in-process English backend. It extends the base lexicon with
// Double Metaphone matching, so common misspellings and child-speech variants
// ("kat", "dawg") resolve to the canonical lexicon pronunciation before the
// letter heuristic takes over.
type English struct {
	metaphoneIndex map[string]string // metaphone code → lexicon word
}

var _ Backend = (*English)(nil)

// NewEnglish builds the backend and its metaphone index.
func NewEnglish() *English {
	idx := make(map[string]string, len(baseLexicon)*2)
	for word := range baseLexicon {
		p, s := matchr.DoubleMetaphone(word)
		if p != "" {
			idx[p] = word
		}
		if s != "" && s != p {
			idx[s] = word
		}
	}
	return &English{metaphoneIndex: idx}
}

// Phonemes implements [Backend].
func (e *English) Phonemes(_ context.Context, words []string) ([]string, error) {
	var seq []string
	for _, w := range words {
		norm := normalizeWord(w)
		if norm == "" {
			continue
		}
		if phs, ok := baseLexicon[norm]; ok {
			seq = append(seq, phs...)
			continue
		}
		if match, ok := e.metaphoneMatch(norm); ok {
			seq = append(seq, baseLexicon[match]...)
			continue
		}
		seq = append(seq, Heuristic([]string{norm})...)
	}
	return seq, nil
}

// metaphoneMatch finds a lexicon word sharing a Double Metaphone code with w.
func (e *English) metaphoneMatch(w string) (string, bool) {
	p, s := matchr.DoubleMetaphone(w)
	if word, ok := e.metaphoneIndex[p]; ok && p != "" {
		return word, true
	}
	if word, ok := e.metaphoneIndex[s]; ok && s != "" {
		return word, true
	}
	return "", false
}
