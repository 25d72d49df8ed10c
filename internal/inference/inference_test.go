package inference

import (
	"context"
	"math"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/solmave/phonatia/internal/phoneme"
)

func waveform(n int, amp float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = amp
		} else {
			out[i] = -amp
		}
	}
	return out
}

func TestNew_MissingModelsUseFallback(t *testing.T) {
	t.Parallel()
	e := New(Config{
		ASRModelPath: filepath.Join(t.TempDir(), "missing-asr.onnx"),
		SERModelPath: filepath.Join(t.TempDir(), "missing-ser.onnx"),
	}, phoneme.Default())
	defer e.Close()

	if e.ASRLoaded() {
		t.Error("ASRLoaded() = true with missing model file")
	}
	if e.SERLoaded() {
		t.Error("SERLoaded() = true with missing model file")
	}

	logits, err := e.ASRLogits(context.Background(), waveform(16000, 0.3), 16000)
	if err != nil {
		t.Fatalf("ASRLogits: %v", err)
	}
	if len(logits) == 0 {
		t.Fatal("fallback produced no frames")
	}

	emotion, err := e.Emotion(context.Background(), waveform(16000, 0.3), 16000)
	if err != nil {
		t.Fatalf("Emotion: %v", err)
	}
	if emotion == "" {
		t.Error("fallback emotion is empty")
	}
}

func TestFallbackLogits_Deterministic(t *testing.T) {
	t.Parallel()
	v := phoneme.Default()
	wf := waveform(16000, 0.2)

	a := fallbackLogits(wf, 16000, v)
	b := fallbackLogits(wf, 16000, v)
	if !reflect.DeepEqual(a, b) {
		t.Error("identical waveforms produced different logits")
	}
}

func TestFallbackLogits_Shape(t *testing.T) {
	t.Parallel()
	v := phoneme.Default()

	// One second at a 20 ms hop is 50 frames.
	logits := fallbackLogits(waveform(16000, 0.2), 16000, v)
	if len(logits) != 50 {
		t.Errorf("frame count = %d, want 50", len(logits))
	}
	for _, row := range logits {
		if len(row) != v.Size() {
			t.Fatalf("row width = %d, want %d", len(row), v.Size())
		}
	}

	// Sub-frame input still yields one frame.
	if got := fallbackLogits(waveform(10, 0.2), 16000, v); len(got) != 1 {
		t.Errorf("tiny waveform frame count = %d, want 1", len(got))
	}
}

func TestFallbackLogits_BlankDominatesExceptBiasFrames(t *testing.T) {
	t.Parallel()
	v := phoneme.Default()

	logits := fallbackLogits(waveform(16000, 0.2), 16000, v)
	for ti, row := range logits {
		best := 0
		for i := 1; i < len(row); i++ {
			if row[i] > row[best] {
				best = i
			}
		}
		if ti%fallbackBiasPeriod == 1 {
			if best == phoneme.BlankID {
				t.Errorf("frame %d: blank wins on a biased frame", ti)
			}
		} else if best != phoneme.BlankID {
			t.Errorf("frame %d: argmax = %d, want blank", ti, best)
		}
	}
}

func TestBiasedIndex(t *testing.T) {
	t.Parallel()
	v := phoneme.Default()

	if got := biasedIndex(waveform(100, 0.2), v.Size()); got <= phoneme.BlankID || got >= v.Size() {
		t.Errorf("biasedIndex = %d, want non-blank in range", got)
	}
	if got := biasedIndex(nil, v.Size()); got != 1 {
		t.Errorf("biasedIndex(silence) = %d, want 1", got)
	}
	if got := biasedIndex(waveform(100, 0.2), 1); got != phoneme.BlankID {
		t.Errorf("biasedIndex with blank-only vocab = %d, want blank", got)
	}
}

func TestFallbackEmotion(t *testing.T) {
	t.Parallel()
	if got := fallbackEmotion(waveform(100, 0.5)); got != "happy" {
		t.Errorf("loud waveform emotion = %q, want happy", got)
	}
	if got := fallbackEmotion(waveform(100, 0.01)); got != "neutral" {
		t.Errorf("quiet waveform emotion = %q, want neutral", got)
	}
	if got := fallbackEmotion(nil); got != "neutral" {
		t.Errorf("empty waveform emotion = %q, want neutral", got)
	}
}

func TestMeanAbs(t *testing.T) {
	t.Parallel()
	if got := meanAbs([]float32{0.5, -0.5, 1, -1}); math.Abs(got-0.75) > 1e-9 {
		t.Errorf("meanAbs = %v, want 0.75", got)
	}
	if got := meanAbs(nil); got != 0 {
		t.Errorf("meanAbs(nil) = %v, want 0", got)
	}
}

func TestReshapeLogits(t *testing.T) {
	t.Parallel()
	data := []float32{1, 2, 3, 4, 5, 6}

	got, err := reshapeLogits(data, []int64{2, 3})
	if err != nil {
		t.Fatalf("reshape [2,3]: %v", err)
	}
	if len(got) != 2 || len(got[0]) != 3 || got[1][0] != 4 {
		t.Errorf("reshape [2,3] = %v", got)
	}

	got, err = reshapeLogits(data, []int64{1, 3, 2})
	if err != nil {
		t.Fatalf("reshape [1,3,2]: %v", err)
	}
	if len(got) != 3 || len(got[0]) != 2 {
		t.Errorf("reshape [1,3,2] = %v", got)
	}

	if _, err := reshapeLogits(data, []int64{6}); err == nil {
		t.Error("reshape [6] succeeded, want shape error")
	}
	if _, err := reshapeLogits(data, []int64{4, 2}); err == nil {
		t.Error("reshape with mismatched size succeeded, want error")
	}
}
