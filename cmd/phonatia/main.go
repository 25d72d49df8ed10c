// Command phonatia is the speech-analysis inference worker. It pulls audio
// submissions from the queue, scores pronunciation and emotion, and writes
// feedback reports and curriculum updates to PostgreSQL. An HTTP sidecar
// serves /health and /metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/solmave/phonatia/internal/blob"
	"github.com/solmave/phonatia/internal/broker"
	"github.com/solmave/phonatia/internal/config"
	"github.com/solmave/phonatia/internal/drift"
	"github.com/solmave/phonatia/internal/g2p"
	"github.com/solmave/phonatia/internal/health"
	"github.com/solmave/phonatia/internal/inference"
	"github.com/solmave/phonatia/internal/lexicon"
	"github.com/solmave/phonatia/internal/observe"
	"github.com/solmave/phonatia/internal/phoneme"
	"github.com/solmave/phonatia/internal/store"
	"github.com/solmave/phonatia/internal/store/postgres"
	"github.com/solmave/phonatia/internal/worker"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to the YAML configuration file (optional)")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "phonatia: %v\n", err)
		return 1
	}
	if err := config.ApplyEnv(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "phonatia: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logLevel := new(slog.LevelVar)
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("phonatia starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "phonatia"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Phoneme vocabulary ────────────────────────────────────────────────────
	vocab := phoneme.Default()
	if cfg.Models.PhonemeListPath != "" {
		vocab, err = phoneme.Load(cfg.Models.PhonemeListPath)
		if err != nil {
			slog.Error("failed to load phoneme vocabulary", "path", cfg.Models.PhonemeListPath, "err", err)
			return 1
		}
	}

	// ── Storage ───────────────────────────────────────────────────────────────
	var db *postgres.Store
	if cfg.Storage.PostgresDSN != "" {
		db, err = postgres.New(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			slog.Error("failed to connect to database", "err", err)
			return 1
		}
		defer db.Close()
	} else {
		slog.Warn("postgres_dsn not set; reports will not be persisted")
	}

	// ── Inference engine ──────────────────────────────────────────────────────
	engine := inference.New(inference.Config{
		ASRModelPath: cfg.Models.ASRPath,
		SERModelPath: cfg.Models.SERPath,
		LibraryPath:  cfg.Models.ORTLibraryPath,
	}, vocab)
	defer engine.Close()

	// ── G2P and lexicon ───────────────────────────────────────────────────────
	var g2pCache store.G2PCache
	var lexicons store.Lexicons
	if db != nil {
		g2pCache, lexicons = db, db
	}
	resolver := g2p.NewResolver(g2p.NewBackend(cfg.G2P.Backend, cfg.G2P.ModelPath), g2pCache, cfg.G2P.Language)
	targets := lexicon.New(lexicons, resolver, lexicon.LoadDefault(cfg.Lexicon.Default))

	// ── Drift monitor ─────────────────────────────────────────────────────────
	var monitor *drift.Monitor
	if db != nil {
		monitor = drift.NewMonitor(db, metrics.PhonemeKL)
	}

	// ── Blob fetching ─────────────────────────────────────────────────────────
	router := &blob.Router{HTTP: blob.NewHTTP(cfg.Blob.HTTPTimeout)}
	if cfg.Blob.S3Enabled() {
		router.S3 = blob.NewS3(blob.S3Config{
			Region:    cfg.Blob.S3Region,
			Endpoint:  cfg.Blob.S3Endpoint,
			AccessKey: cfg.Blob.S3AccessKey,
			SecretKey: cfg.Blob.S3SecretKey,
			PathStyle: cfg.Blob.S3PathStyle,
		})
	}
	fetcher := blob.NewBreaker(router, blob.BreakerConfig{Name: "blob-store"})

	// ── Pipeline ──────────────────────────────────────────────────────────────
	pipeline := &worker.Pipeline{
		Backend: engine,
		Fetcher: fetcher,
		Vocab:   vocab,
		Lexicon: targets,
		Drift:   monitor,
	}
	if db != nil {
		pipeline.Reports = db
	}

	// ── Queue ─────────────────────────────────────────────────────────────────
	var loop *worker.Loop
	if cfg.Broker.URL != "" {
		receiver, err := broker.NewNATS(cfg.Broker.URL, cfg.Broker.Queue)
		if err != nil {
			slog.Error("failed to connect to queue", "err", err)
			return 1
		}
		defer receiver.Close()
		loop = worker.NewLoop(receiver, pipeline, metrics, cfg.Worker.MaxInFlight, tuningFrom(cfg))
	} else {
		slog.Warn("broker url not set; worker idle")
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	if *configPath != "" {
		watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
			d := config.Diff(old, new)
			if d.Empty() {
				return
			}
			if d.LogLevelChanged {
				logLevel.Set(slogLevel(d.NewLogLevel))
				slog.Info("log level changed", "level", d.NewLogLevel)
			}
			if d.LexiconChanged {
				targets.SetDefault(lexicon.LoadDefault(new.Lexicon.Default))
				slog.Info("default lexicon changed")
			}
			if d.WorkerChanged && loop != nil {
				loop.SetTuning(tuningFrom(new))
				slog.Info("worker tuning changed")
			}
		})
		if err != nil {
			slog.Warn("config watcher disabled", "err", err)
		} else {
			defer watcher.Stop()
		}
	}

	// ── HTTP sidecar ──────────────────────────────────────────────────────────
	var checkers []health.Checker
	if db != nil {
		checkers = append(checkers, health.Checker{Name: "database", Check: db.Ping})
	}
	mux := http.NewServeMux()
	health.New(engine.ASRLoaded, engine.SERLoaded, checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ── Run ───────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if loop != nil {
		g.Go(func() error {
			return loop.Run(gctx)
		})
	}

	slog.Info("worker ready")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

func tuningFrom(cfg *config.Config) worker.Tuning {
	return worker.Tuning{
		BatchSize:      cfg.Worker.BatchSize,
		FetchWait:      cfg.Worker.FetchWait,
		IdleSleep:      cfg.Worker.IdleSleep,
		ProcessTimeout: cfg.Worker.ProcessTimeout,
	}
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
