package inference

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	ort "github.com/shota3506/onnxruntime-purego/onnxruntime"

	"github.com/solmave/phonatia/internal/phoneme"
)

// Config holds the model and runtime paths for the ONNX engine.
type Config struct {
	// ASRModelPath is the acoustic model graph. Empty or missing → fallback logits.
	ASRModelPath string

	// SERModelPath is the emotion model graph. Empty or missing → energy fallback.
	SERModelPath string

	// LibraryPath locates the onnxruntime shared library.
	LibraryPath string

	// APIVersion is the ORT C API version. Zero selects the default.
	APIVersion uint32
}

const defaultORTAPIVersion = 23

// Engine is the ONNX-backed [Backend]. Sessions are created once at startup
// and guarded by a mutex each, since ORT session thread safety is not assumed.
type Engine struct {
	vocab *phoneme.Vocabulary
	asr   *session
	ser   *session
}

var _ Backend = (*Engine)(nil)

type session struct {
	mu      sync.Mutex
	runtime *ort.Runtime
	env     *ort.Env
	sess    *ort.Session
}

// New creates an Engine for the configured model paths. A missing model file
// or runtime library is not an error: the affected stage logs a warning and
// uses its deterministic fallback, keeping the pipeline exercisable.
func New(cfg Config, vocab *phoneme.Vocabulary) *Engine {
	if cfg.APIVersion == 0 {
		cfg.APIVersion = defaultORTAPIVersion
	}
	return &Engine{
		vocab: vocab,
		asr:   openSession("asr", cfg.ASRModelPath, cfg),
		ser:   openSession("ser", cfg.SERModelPath, cfg),
	}
}

// openSession creates one ORT session, or returns nil when the model cannot
// be loaded.
func openSession(name, modelPath string, cfg Config) *session {
	if modelPath == "" {
		return nil
	}
	if _, err := os.Stat(modelPath); err != nil {
		slog.Warn("model file not found, using fallback", "model", name, "path", modelPath)
		return nil
	}

	runtime, err := ort.NewRuntime(cfg.LibraryPath, cfg.APIVersion)
	if err != nil {
		slog.Warn("onnxruntime unavailable, using fallback", "model", name, "err", err)
		return nil
	}
	env, err := runtime.NewEnv("phonatia-"+name, ort.LoggingLevelWarning)
	if err != nil {
		_ = runtime.Close()
		slog.Warn("onnxruntime env failed, using fallback", "model", name, "err", err)
		return nil
	}
	sess, err := runtime.NewSession(env, modelPath, nil)
	if err != nil {
		env.Close()
		_ = runtime.Close()
		slog.Warn("model session failed, using fallback", "model", name, "path", modelPath, "err", err)
		return nil
	}
	return &session{runtime: runtime, env: env, sess: sess}
}

// ASRLoaded reports whether a real ASR session is active.
func (e *Engine) ASRLoaded() bool { return e.asr != nil }

// SERLoaded reports whether a real SER session is active.
func (e *Engine) SERLoaded() bool { return e.ser != nil }

// ASRLogits implements [Backend].
func (e *Engine) ASRLogits(ctx context.Context, waveform []float32, sampleRate int) ([][]float32, error) {
	if e.asr == nil {
		return fallbackLogits(waveform, sampleRate, e.vocab), nil
	}
	data, shape, err := e.asr.run(ctx, waveform)
	if err != nil {
		return nil, fmt.Errorf("inference: asr: %w", err)
	}
	return reshapeLogits(data, shape)
}

// Emotion implements [Backend].
func (e *Engine) Emotion(ctx context.Context, waveform []float32, sampleRate int) (string, error) {
	if e.ser == nil {
		return fallbackEmotion(waveform), nil
	}
	data, _, err := e.ser.run(ctx, waveform)
	if err != nil {
		return "", fmt.Errorf("inference: ser: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("inference: ser: empty model output")
	}
	best := 0
	for i := 1; i < len(data); i++ {
		if data[i] > data[best] {
			best = i
		}
	}
	return EmotionLabels[best%len(EmotionLabels)], nil
}

// Close releases both model sessions.
func (e *Engine) Close() error {
	e.asr.close()
	e.ser.close()
	return nil
}

// run executes the graph with the waveform as the single "input" tensor of
// shape [1, samples] and returns the first output tensor.
func (s *session) run(ctx context.Context, waveform []float32) ([]float32, []int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	input, err := ort.NewTensorValue(s.runtime, waveform, []int64{1, int64(len(waveform))})
	if err != nil {
		return nil, nil, fmt.Errorf("input tensor: %w", err)
	}
	defer input.Close()

	outputs, err := s.sess.Run(ctx, map[string]*ort.Value{"input": input})
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		for _, v := range outputs {
			v.Close()
		}
	}()

	for name, v := range outputs {
		data, shape, err := ort.GetTensorData[float32](v)
		if err != nil {
			return nil, nil, fmt.Errorf("output %q: %w", name, err)
		}
		return data, shape, nil
	}
	return nil, nil, fmt.Errorf("model produced no outputs")
}

func (s *session) close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess != nil {
		s.sess.Close()
		s.sess = nil
	}
	if s.env != nil {
		s.env.Close()
		s.env = nil
	}
	if s.runtime != nil {
		_ = s.runtime.Close()
		s.runtime = nil
	}
}

// reshapeLogits converts a flat model output into a [T,V] matrix. Accepts
// [T,V] or a batch-1 [1,T,V] shape.
func reshapeLogits(data []float32, shape []int64) ([][]float32, error) {
	dims := shape
	if len(dims) == 3 && dims[0] == 1 {
		dims = dims[1:]
	}
	if len(dims) != 2 {
		return nil, fmt.Errorf("inference: asr: unexpected output shape %v", shape)
	}
	T, V := int(dims[0]), int(dims[1])
	if T < 0 || V <= 0 || T*V != len(data) {
		return nil, fmt.Errorf("inference: asr: shape %v does not match %d values", shape, len(data))
	}
	logits := make([][]float32, T)
	for t := 0; t < T; t++ {
		logits[t] = data[t*V : (t+1)*V]
	}
	return logits, nil
}
