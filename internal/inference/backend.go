// Package inference owns the ASR and SER model sessions and exposes them as
// two pure functions: phoneme logits and an emotion label.
//
// Models are ONNX graphs executed through onnxruntime. When a model file (or
// the runtime library) is unavailable the engine degrades to deterministic
// fallbacks so the full pipeline remains exercisable without model assets.
package inference

import "context"

// EmotionLabels is the fixed label set produced by the SER model, in output
// index order.
var EmotionLabels = []string{"neutral", "happy", "sad", "angry", "frustrated"}

// Backend provides thread-safe acoustic inference for one utterance at a time.
type Backend interface {
	// ASRLogits runs the acoustic model over the waveform and returns a
	// [T frames, V vocabulary] logits matrix with a 20 ms frame hop.
	ASRLogits(ctx context.Context, waveform []float32, sampleRate int) ([][]float32, error)

	// Emotion classifies the utterance into one of [EmotionLabels].
	Emotion(ctx context.Context, waveform []float32, sampleRate int) (string, error)

	// ASRLoaded reports whether a real ASR model session is active.
	ASRLoaded() bool

	// SERLoaded reports whether a real SER model session is active.
	SERLoaded() bool

	// Close releases model sessions. Safe to call multiple times.
	Close() error
}

// meanAbs returns the mean absolute sample amplitude of the waveform.
func meanAbs(waveform []float32) float64 {
	if len(waveform) == 0 {
		return 0
	}
	var sum float64
	for _, s := range waveform {
		if s < 0 {
			sum -= float64(s)
		} else {
			sum += float64(s)
		}
	}
	return sum / float64(len(waveform))
}

// frameCount returns the number of 20 ms logits frames for a waveform,
// never less than one.
func frameCount(samples, sampleRate int) int {
	t := int(float64(samples) / (float64(sampleRate) * 0.02))
	if t < 1 {
		t = 1
	}
	return t
}
