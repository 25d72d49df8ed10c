package g2p

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
)

// External shells out to a grapheme-to-phoneme binary. Two output dialects
// are supported: phonetisaurus emits "word\tscore-or-phonemes\t..." lines
// where the second tab field holds the pronunciation, while sequitur emits
// bare phoneme lines. Any failure, including a missing model, falls back to
// the letter heuristic.
type External struct {
	binPath   string
	modelPath string
	args      func(modelPath string) []string
	parse     func(output string) []string
}

var _ Backend = (*External)(nil)

// NewPhonetisaurus builds the phonetisaurus-g2p adapter.
func NewPhonetisaurus(modelPath string) *External {
	return &External{
		binPath:   "phonetisaurus-g2p",
		modelPath: modelPath,
		args: func(mp string) []string {
			return []string{"--model=" + mp}
		},
		parse: parsePhonetisaurus,
	}
}

// NewSequitur builds the sequitur-g2p adapter.
func NewSequitur(modelPath string) *External {
	return &External{
		binPath:   "sequitur-g2p",
		modelPath: modelPath,
		args: func(mp string) []string {
			return []string{"-m", mp, "-x", " ", "-e", ""}
		},
		parse: parseSequitur,
	}
}

// Phonemes implements [Backend]. The binary receives one word per stdin line.
func (x *External) Phonemes(ctx context.Context, words []string) ([]string, error) {
	if x.modelPath == "" {
		return Heuristic(words), nil
	}

	cmd := exec.CommandContext(ctx, x.binPath, x.args(x.modelPath)...)
	cmd.Stdin = strings.NewReader(strings.Join(words, "\n"))
	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("g2p binary failed, using heuristic", "bin", x.binPath, "err", err)
		return Heuristic(words), nil
	}

	phs := x.parse(out.String())
	if len(phs) == 0 {
		return Heuristic(words), nil
	}
	return phs, nil
}

func parsePhonetisaurus(output string) []string {
	var phs []string
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			continue
		}
		for _, p := range strings.Fields(parts[1]) {
			phs = append(phs, strings.ToUpper(strings.TrimSpace(p)))
		}
	}
	return phs
}

func parseSequitur(output string) []string {
	var phs []string
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		for _, p := range strings.Fields(line) {
			phs = append(phs, strings.ToUpper(strings.TrimSpace(p)))
		}
	}
	return phs
}
