// Package phoneme defines the process-global phoneme vocabulary used by the
// acoustic decoder, the G2P resolver, and the drift monitor.
//
// A [Vocabulary] is an ordered symbol set with O(1) lookup in both directions.
// Index 0 is always the CTC blank symbol. The vocabulary is immutable after
// construction and safe for concurrent reads.
package phoneme

import (
	"encoding/json"
	"fmt"
	"os"
)

// BlankID is the vocabulary index of the CTC blank symbol.
const BlankID = 0

// BlankSymbol is the textual representation of the CTC blank.
const BlankSymbol = "<blank>"

// defaultSymbols is the built-in 40-entry ARPAbet-style symbol set used when
// no phoneme list file is configured.
var defaultSymbols = []string{
	BlankSymbol,
	"AA", "AE", "AH", "AO", "AW", "AY", "B", "CH", "D", "DH",
	"EH", "ER", "EY", "F", "G", "HH", "IH", "IY", "JH", "K",
	"L", "M", "N", "NG", "OW", "OY", "P", "R", "S", "SH",
	"T", "TH", "UH", "UW", "V", "W", "Y", "Z", "ZH",
}

// Vocabulary is an immutable ordered phoneme symbol set.
type Vocabulary struct {
	symbols []string
	index   map[string]int
}

// New builds a Vocabulary from the given ordered symbol list. The first entry
// must be the blank symbol. Duplicate symbols are rejected.
func New(symbols []string) (*Vocabulary, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("phoneme: empty symbol list")
	}
	if symbols[BlankID] != BlankSymbol {
		return nil, fmt.Errorf("phoneme: entry 0 must be %q, got %q", BlankSymbol, symbols[0])
	}

	v := &Vocabulary{
		symbols: make([]string, len(symbols)),
		index:   make(map[string]int, len(symbols)),
	}
	copy(v.symbols, symbols)
	for i, s := range v.symbols {
		if _, dup := v.index[s]; dup {
			return nil, fmt.Errorf("phoneme: duplicate symbol %q", s)
		}
		v.index[s] = i
	}
	return v, nil
}

// Default returns the built-in 40-entry ARPAbet vocabulary.
func Default() *Vocabulary {
	v, err := New(defaultSymbols)
	if err != nil {
		// The built-in table is validated by tests; this cannot happen at runtime.
		panic("phoneme: invalid default vocabulary: " + err.Error())
	}
	return v
}

// Load reads a vocabulary from a JSON array file (e.g. ["<blank>","AA",...]).
func Load(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("phoneme: read %q: %w", path, err)
	}
	var symbols []string
	if err := json.Unmarshal(data, &symbols); err != nil {
		return nil, fmt.Errorf("phoneme: parse %q: %w", path, err)
	}
	v, err := New(symbols)
	if err != nil {
		return nil, fmt.Errorf("phoneme: %q: %w", path, err)
	}
	return v, nil
}

// Size returns the number of symbols including blank.
func (v *Vocabulary) Size() int { return len(v.symbols) }

// Symbol returns the symbol at id. Out-of-range ids yield a synthetic
// "ID<n>" marker rather than panicking, mirroring how unknown model outputs
// are rendered in decoded transcripts.
func (v *Vocabulary) Symbol(id int) string {
	if id < 0 || id >= len(v.symbols) {
		return fmt.Sprintf("ID%d", id)
	}
	return v.symbols[id]
}

// ID returns the index of symbol and whether it is part of the vocabulary.
func (v *Vocabulary) ID(symbol string) (int, bool) {
	id, ok := v.index[symbol]
	return id, ok
}

// IDOrBlank returns the index of symbol, or [BlankID] when the symbol is not
// in the vocabulary. A blank target entry never advances during forced
// alignment, so unknown symbols degrade to silence.
func (v *Vocabulary) IDOrBlank(symbol string) int {
	if id, ok := v.index[symbol]; ok {
		return id
	}
	return BlankID
}

// Contains reports whether symbol is part of the vocabulary.
func (v *Vocabulary) Contains(symbol string) bool {
	_, ok := v.index[symbol]
	return ok
}

// Symbols returns a copy of the ordered symbol list.
func (v *Vocabulary) Symbols() []string {
	out := make([]string, len(v.symbols))
	copy(out, v.symbols)
	return out
}
