// Package score turns aligned phoneme segments and an emotion label into the
// feedback report fields: the 0-100 composite score, the weakness category
// with its recommendation, and the weakest-phoneme curriculum focus.
package score

import (
	"sort"

	"github.com/solmave/phonatia/internal/ctc"
	"github.com/solmave/phonatia/internal/phoneme"
)

// Weakness categories and their fixed recommendations.
const (
	WeaknessArticulation = "articulation"
	WeaknessProsody      = "prosody"

	RecommendArticulation = "Slow down and repeat target words; emphasize endings."
	RecommendProsody      = "Vary pitch and stress; try call-and-response games."
)

// articulationThreshold splits the two weakness categories.
const articulationThreshold = 75

// negativeEmotions incur the engagement penalty.
var negativeEmotions = map[string]bool{
	"sad": true, "angry": true, "frustrated": true,
}

// Composite maps the mean segment confidence onto [60,100], subtracts 10 for
// a negative emotion, and clamps to [0,100]. No segments scores zero.
func Composite(segments []ctc.Segment, emotion string) int {
	if len(segments) == 0 {
		return 0
	}
	var sum float64
	for _, s := range segments {
		sum += s.Confidence
	}
	base := int(60 + 40*(sum/float64(len(segments))))
	if negativeEmotions[emotion] {
		base -= 10
	}
	if base < 0 {
		return 0
	}
	if base > 100 {
		return 100
	}
	return base
}

// Weakness categorizes the score and returns the matching recommendation.
func Weakness(score int) (weakness, recommendation string) {
	if score < articulationThreshold {
		return WeaknessArticulation, RecommendArticulation
	}
	return WeaknessProsody, RecommendProsody
}

// focusPad fills the curriculum focus when fewer than three distinct phonemes
// were observed. R and S are the most common late-acquired sounds.
var focusPad = []string{"R", "S"}

// WeakestPhonemes returns up to three vocabulary phonemes with the lowest
// mean confidence, ascending, alphabetical on ties. Segments whose label is
// not in the vocabulary (or is blank) are skipped. Short results are padded
// from R and S without duplicates.
func WeakestPhonemes(segments []ctc.Segment, vocab *phoneme.Vocabulary) []string {
	type agg struct {
		sum float64
		n   int
	}
	byPhoneme := make(map[string]*agg)
	for _, s := range segments {
		if s.Phoneme == phoneme.BlankSymbol {
			continue
		}
		if !vocab.Contains(s.Phoneme) {
			continue
		}
		a := byPhoneme[s.Phoneme]
		if a == nil {
			a = &agg{}
			byPhoneme[s.Phoneme] = a
		}
		a.sum += s.Confidence
		a.n++
	}

	type ranked struct {
		phoneme string
		mean    float64
	}
	items := make([]ranked, 0, len(byPhoneme))
	for p, a := range byPhoneme {
		items = append(items, ranked{p, a.sum / float64(a.n)})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].mean != items[j].mean {
			return items[i].mean < items[j].mean
		}
		return items[i].phoneme < items[j].phoneme
	})

	weak := make([]string, 0, 3)
	for _, it := range items {
		if len(weak) == 3 {
			break
		}
		weak = append(weak, it.phoneme)
	}
	for _, p := range focusPad {
		if len(weak) == 3 {
			break
		}
		if !contains(weak, p) {
			weak = append(weak, p)
		}
	}
	return weak
}

// Difficulty derives the curriculum difficulty level from the score.
func Difficulty(score int) int {
	if score < 70 {
		return 1
	}
	return 2
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
