package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path, layers it over [Default],
// and returns a validated [Config]. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		if err := Validate(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over the defaults and validates
// the result. Useful in tests where configs are constructed from string
// literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envOverrides maps environment variables onto config fields. The names match
// the deployment environment of the surrounding platform.
var envOverrides = []struct {
	name  string
	apply func(cfg *Config, value string) error
}{
	{"LISTEN_ADDR", func(c *Config, v string) error { c.Server.ListenAddr = v; return nil }},
	{"LOG_LEVEL", func(c *Config, v string) error { c.Server.LogLevel = LogLevel(v); return nil }},
	{"BROKER_URL", func(c *Config, v string) error { c.Broker.URL = v; return nil }},
	{"SUBMISSION_QUEUE", func(c *Config, v string) error { c.Broker.Queue = v; return nil }},
	{"PG_CONN", func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil }},
	{"ONNX_ASR_PATH", func(c *Config, v string) error { c.Models.ASRPath = v; return nil }},
	{"ONNX_SER_PATH", func(c *Config, v string) error { c.Models.SERPath = v; return nil }},
	{"PHONEMES", func(c *Config, v string) error { c.Models.PhonemeListPath = v; return nil }},
	{"ORT_LIBRARY", func(c *Config, v string) error { c.Models.ORTLibraryPath = v; return nil }},
	{"G2P_BACKEND", func(c *Config, v string) error { c.G2P.Backend = v; return nil }},
	{"G2P_MODEL", func(c *Config, v string) error { c.G2P.ModelPath = v; return nil }},
	{"G2P_LANG", func(c *Config, v string) error { c.G2P.Language = v; return nil }},
	{"TARGET_LEXICON", func(c *Config, v string) error { c.Lexicon.Default = v; return nil }},
	{"MAX_IN_FLIGHT", func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MAX_IN_FLIGHT: %w", err)
		}
		c.Worker.MaxInFlight = n
		return nil
	}},
	{"PROCESS_TIMEOUT", func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PROCESS_TIMEOUT: %w", err)
		}
		c.Worker.ProcessTimeout = d
		return nil
	}},
	{"S3_REGION", func(c *Config, v string) error { c.Blob.S3Region = v; return nil }},
	{"S3_ENDPOINT", func(c *Config, v string) error { c.Blob.S3Endpoint = v; return nil }},
	{"S3_ACCESS_KEY", func(c *Config, v string) error { c.Blob.S3AccessKey = v; return nil }},
	{"S3_SECRET_KEY", func(c *Config, v string) error { c.Blob.S3SecretKey = v; return nil }},
}

// ApplyEnv overrides cfg fields from environment variables and re-validates.
func ApplyEnv(cfg *Config) error {
	var errs []error
	for _, o := range envOverrides {
		if v, ok := os.LookupEnv(o.name); ok && v != "" {
			if err := o.apply(cfg, v); err != nil {
				errs = append(errs, fmt.Errorf("config: env %s", err))
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	return Validate(cfg)
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required"))
	}
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Broker.URL != "" && cfg.Broker.Queue == "" {
		errs = append(errs, errors.New("broker.queue is required when broker.url is set"))
	}
	switch cfg.G2P.Backend {
	case "", "english":
	case "phonetisaurus", "sequitur":
		// External backends run without a model, falling back to the letter
		// heuristic, so an empty model_path is allowed.
	default:
		errs = append(errs, fmt.Errorf("g2p.backend %q is invalid; valid values: english, phonetisaurus, sequitur", cfg.G2P.Backend))
	}
	if cfg.Worker.MaxInFlight < 0 {
		errs = append(errs, fmt.Errorf("worker.max_in_flight %d must not be negative", cfg.Worker.MaxInFlight))
	}
	if cfg.Worker.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("worker.batch_size %d must be at least 1", cfg.Worker.BatchSize))
	}
	if cfg.Worker.FetchWait <= 0 {
		errs = append(errs, errors.New("worker.fetch_wait must be positive"))
	}
	if cfg.Worker.IdleSleep < 0 {
		errs = append(errs, errors.New("worker.idle_sleep must not be negative"))
	}
	if cfg.Blob.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("blob.http_timeout must be positive"))
	}

	return errors.Join(errs...)
}
