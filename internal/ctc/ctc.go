// Package ctc implements the CTC decoding and forced-alignment engine:
// row-wise softmax, greedy decoding, Viterbi forced alignment against a
// target phoneme sequence, and run-length segment grouping.
//
// All functions operate on a logits matrix of shape [T frames, V vocabulary
// entries] with a fixed 20 ms frame hop. Vocabulary index 0 is the CTC blank.
package ctc

import (
	"math"
	"strings"

	"github.com/solmave/phonatia/internal/phoneme"
)

// FrameHop is the duration of one logits frame in seconds.
const FrameHop = 0.02

// NoPhoneme is the frame-assignment sentinel meaning "blank / no phoneme".
const NoPhoneme = -1

// probFloor is the lower bound applied before taking logarithms so that a
// zero probability never produces -Inf in the DP table.
const probFloor = 1e-8

// Segment is a contiguous run of frames labelled with the same phoneme.
type Segment struct {
	Phoneme    string  `json:"p"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"conf"`
}

// Softmax converts logits to row-wise probabilities, numerically stabilised
// by subtracting each row's maximum before exponentiation.
func Softmax(logits [][]float32) [][]float64 {
	probs := make([][]float64, len(logits))
	for t, row := range logits {
		out := make([]float64, len(row))
		if len(row) == 0 {
			probs[t] = out
			continue
		}
		maxVal := float64(row[0])
		for _, v := range row[1:] {
			if float64(v) > maxVal {
				maxVal = float64(v)
			}
		}
		var sum float64
		for i, v := range row {
			e := math.Exp(float64(v) - maxVal)
			out[i] = e
			sum += e
		}
		for i := range out {
			out[i] /= sum
		}
		probs[t] = out
	}
	return probs
}

// GreedyDecode performs greedy CTC decoding of logits.
//
// It returns the space-separated decoded phoneme string, the per-frame argmax
// vocabulary ids, and the softmax probabilities. A phoneme is emitted whenever
// the argmax id changes from the previous frame and is not blank.
func GreedyDecode(logits [][]float32, vocab *phoneme.Vocabulary) (string, []int, [][]float64) {
	probs := Softmax(logits)
	frameIDs := make([]int, len(probs))
	var decoded []string

	prev := NoPhoneme
	for t, row := range probs {
		id := argmax(row)
		frameIDs[t] = id
		if id != prev && id != phoneme.BlankID {
			decoded = append(decoded, vocab.Symbol(id))
		}
		prev = id
	}
	return strings.Join(decoded, " "), frameIDs, probs
}

// ViterbiAlign computes a forced alignment of logits against the target
// vocabulary-id sequence (blanks excluded).
//
// The DP models two transitions per frame: stay-on-blank (emit blank, keep
// the target position) and advance (emit the next target phoneme). Ties
// prefer the stay transition. The result has one entry per frame: the target
// index advanced at that frame, or [NoPhoneme].
//
// The emitted label has no self-loop: a target phoneme occupies exactly the
// frame it advances on, and every other frame is blank.
func ViterbiAlign(logits [][]float32, targetIDs []int) []int {
	T := len(logits)
	N := len(targetIDs)
	assign := make([]int, T)
	for i := range assign {
		assign[i] = NoPhoneme
	}
	if T == 0 || N == 0 {
		return assign
	}

	probs := Softmax(logits)

	negInf := math.Inf(-1)
	dp := make([][]float64, T+1)
	adv := make([][]bool, T+1)
	for t := 0; t <= T; t++ {
		dp[t] = make([]float64, N+1)
		adv[t] = make([]bool, N+1)
		for n := 0; n <= N; n++ {
			dp[t][n] = negInf
		}
	}
	dp[0][0] = 0

	for t := 1; t <= T; t++ {
		row := probs[t-1]
		logBlank := math.Log(math.Max(row[phoneme.BlankID], probFloor))
		// Stay on blank: same target position, consume one frame.
		for n := 0; n <= N; n++ {
			if dp[t-1][n] > negInf {
				dp[t][n] = dp[t-1][n] + logBlank
			}
		}
		// Advance to the next target phoneme. Strict > keeps ties on stay.
		for n := 1; n <= N; n++ {
			id := targetIDs[n-1]
			var p float64
			if id >= 0 && id < len(row) {
				p = row[id]
			}
			if dp[t-1][n-1] == negInf {
				continue
			}
			cand := dp[t-1][n-1] + math.Log(math.Max(p, probFloor))
			if cand > dp[t][n] {
				dp[t][n] = cand
				adv[t][n] = true
			}
		}
	}

	// Best final target position; first maximum wins (fewest advances on tie).
	best := 0
	for n := 1; n <= N; n++ {
		if dp[T][n] > dp[T][best] {
			best = n
		}
	}

	for t, n := T, best; t > 0 && n >= 0; t-- {
		if adv[t][n] {
			assign[t-1] = n - 1
			n--
		}
	}
	return assign
}

// GroupSegments collapses the per-frame vocabulary ids of a greedy decode into
// time-aligned segments. Blank runs are dropped; confidence is the mean
// softmax probability of the segment's phoneme across its frames. Times are
// rounded to 3 decimals.
func GroupSegments(frameIDs []int, probs [][]float64, vocab *phoneme.Vocabulary) []Segment {
	var segs []Segment
	for i := 0; i < len(frameIDs); {
		id := frameIDs[i]
		j := i + 1
		for j < len(frameIDs) && frameIDs[j] == id {
			j++
		}
		if id != phoneme.BlankID {
			segs = append(segs, Segment{
				Phoneme:    vocab.Symbol(id),
				Start:      round3(float64(i) * FrameHop),
				End:        round3(float64(j) * FrameHop),
				Confidence: round3(meanProb(probs, i, j, id)),
			})
		}
		i = j
	}
	return segs
}

// AlignmentSegments collapses a Viterbi frame assignment into segments over
// the target sequence. Each run of equal non-sentinel target indices becomes
// one segment labelled with the target phoneme; confidence is the mean softmax
// probability of that phoneme's vocabulary id across the run.
func AlignmentSegments(assign []int, probs [][]float64, target []string, vocab *phoneme.Vocabulary) []Segment {
	var segs []Segment
	for i := 0; i < len(assign); {
		idx := assign[i]
		j := i + 1
		for j < len(assign) && assign[j] == idx {
			j++
		}
		if idx >= 0 && idx < len(target) {
			sym := target[idx]
			segs = append(segs, Segment{
				Phoneme:    sym,
				Start:      round3(float64(i) * FrameHop),
				End:        round3(float64(j) * FrameHop),
				Confidence: round3(meanProb(probs, i, j, vocab.IDOrBlank(sym))),
			})
		}
		i = j
	}
	return segs
}

func meanProb(probs [][]float64, from, to, id int) float64 {
	if to <= from {
		return 0
	}
	var sum float64
	for t := from; t < to; t++ {
		if id >= 0 && id < len(probs[t]) {
			sum += probs[t][id]
		}
	}
	return sum / float64(to-from)
}

func argmax(row []float64) int {
	best := 0
	for i := 1; i < len(row); i++ {
		if row[i] > row[best] {
			best = i
		}
	}
	return best
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
