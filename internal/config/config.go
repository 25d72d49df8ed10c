// Package config provides the configuration schema, loader, and file watcher
// for the Phonatia inference worker.
package config

import (
	"runtime"
	"time"
)

// LogLevel controls log verbosity for the worker.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for the worker.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader];
// [ApplyEnv] layers environment-variable overrides on top.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Broker  BrokerConfig  `yaml:"broker"`
	Storage StorageConfig `yaml:"storage"`
	Models  ModelsConfig  `yaml:"models"`
	G2P     G2PConfig     `yaml:"g2p"`
	Lexicon LexiconConfig `yaml:"lexicon"`
	Worker  WorkerConfig  `yaml:"worker"`
	Blob    BlobConfig    `yaml:"blob"`
}

// ServerConfig holds network and logging settings for the HTTP sidecar that
// serves /health and /metrics.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8000").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// BrokerConfig holds the submission queue connection settings.
type BrokerConfig struct {
	// URL is the queue server address. Empty means no queue: the worker
	// starts, logs a warning, and stays idle.
	URL string `yaml:"url"`

	// Queue is the subject the worker pulls submissions from.
	Queue string `yaml:"queue"`
}

// StorageConfig holds database connection settings.
type StorageConfig struct {
	// PostgresDSN is the PostgreSQL connection string. Empty disables all
	// persistence: reports are computed and logged but not written.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// ModelsConfig holds paths to the inference model assets. A missing model
// degrades that stage to its deterministic fallback.
type ModelsConfig struct {
	// ASRPath is the phoneme acoustic model (ONNX).
	ASRPath string `yaml:"asr_path"`

	// SERPath is the emotion model (ONNX).
	SERPath string `yaml:"ser_path"`

	// PhonemeListPath optionally replaces the built-in phoneme vocabulary
	// with a JSON array file. Entry 0 must be the blank symbol.
	PhonemeListPath string `yaml:"phoneme_list_path"`

	// ORTLibraryPath locates the onnxruntime shared library.
	ORTLibraryPath string `yaml:"ort_library_path"`
}

// G2PConfig selects the grapheme-to-phoneme backend.
type G2PConfig struct {
	// Backend is "english", "phonetisaurus", or "sequitur".
	Backend string `yaml:"backend"`

	// ModelPath is the model file for external backends.
	ModelPath string `yaml:"model_path"`

	// Language routes conversion: "fa" and "de" use built-in character
	// mappings, anything else uses Backend.
	Language string `yaml:"language"`
}

// LexiconConfig holds the default alignment target.
type LexiconConfig struct {
	// Default is either a path to a JSON array file or a comma-separated
	// phoneme list. Used when a child has no lexicon row.
	Default string `yaml:"default"`
}

// WorkerConfig tunes the message loop.
type WorkerConfig struct {
	// MaxInFlight bounds concurrently processed submissions.
	// Zero means runtime.NumCPU().
	MaxInFlight int `yaml:"max_in_flight"`

	// BatchSize is the maximum messages fetched per queue poll.
	BatchSize int `yaml:"batch_size"`

	// FetchWait is how long a poll waits for the first message.
	FetchWait time.Duration `yaml:"fetch_wait"`

	// IdleSleep is the pause after an empty poll.
	IdleSleep time.Duration `yaml:"idle_sleep"`

	// ProcessTimeout bounds one submission end to end. Zero disables the
	// watchdog.
	ProcessTimeout time.Duration `yaml:"process_timeout"`
}

// BlobConfig configures audio downloads.
type BlobConfig struct {
	// HTTPTimeout bounds a single HTTP blob download.
	HTTPTimeout time.Duration `yaml:"http_timeout"`

	// S3Region, S3Endpoint and the credential pair configure s3:// URL
	// support. An empty region leaves S3 fetching disabled unless an
	// endpoint is set.
	S3Region    string `yaml:"s3_region"`
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3AccessKey string `yaml:"s3_access_key"`
	S3SecretKey string `yaml:"s3_secret_key"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// Default returns a config populated with the worker's default settings.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr: ":8000",
			LogLevel:   LogInfo,
		},
		Broker: BrokerConfig{
			Queue: "submissions",
		},
		G2P: G2PConfig{
			Backend:  "english",
			Language: "auto",
		},
		Worker: WorkerConfig{
			MaxInFlight:    runtime.NumCPU(),
			BatchSize:      5,
			FetchWait:      5 * time.Second,
			IdleSleep:      time.Second,
			ProcessTimeout: 2 * time.Minute,
		},
		Blob: BlobConfig{
			HTTPTimeout: 30 * time.Second,
		},
	}
}

// S3Enabled reports whether object-store fetching is configured.
func (b BlobConfig) S3Enabled() bool {
	return b.S3Region != "" || b.S3Endpoint != ""
}
