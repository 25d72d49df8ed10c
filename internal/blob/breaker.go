package blob

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrStoreUnavailable is returned by [BreakerFetcher.Fetch] while the breaker
// is open and the reset timeout has not yet elapsed.
var ErrStoreUnavailable = errors.New("blob: store unavailable")

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerClosed:
		return "closed"
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a [BreakerFetcher]. Zero-value fields are replaced with
// defaults.
type BreakerConfig struct {
	// Name labels the breaker in log messages.
	Name string

	// MaxFailures is the number of consecutive failed downloads before the
	// breaker opens. Default: 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before allowing probe
	// downloads again. Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the number of probe downloads allowed while half-open.
	// Default: 3.
	HalfOpenMax int
}

// BreakerFetcher wraps a [Fetcher] with a three-state circuit breaker so that
// an unreachable blob store sheds load quickly instead of stalling every
// queue message for the full download timeout. Failed messages are abandoned
// and redelivered, so fast rejection is cheaper than a slow timeout.
//
// Context cancellation does not count as a store failure: a worker shutting
// down mid-download says nothing about the store's health.
type BreakerFetcher struct {
	inner        Fetcher
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int

	mu              sync.Mutex
	state           breakerState
	consecutiveFail int
	lastFailure     time.Time
	halfOpenCalls   int
	halfOpenFails   int
}

var _ Fetcher = (*BreakerFetcher)(nil)

// NewBreaker wraps inner with a circuit breaker.
func NewBreaker(inner Fetcher, cfg BreakerConfig) *BreakerFetcher {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	return &BreakerFetcher{
		inner:        inner,
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
	}
}

// Fetch implements [Fetcher]. While the breaker is open it fails immediately
// with [ErrStoreUnavailable].
func (b *BreakerFetcher) Fetch(ctx context.Context, blobURL string) ([]byte, error) {
	b.mu.Lock()
	switch b.state {
	case breakerOpen:
		if time.Since(b.lastFailure) < b.resetTimeout {
			b.mu.Unlock()
			return nil, ErrStoreUnavailable
		}
		b.state = breakerHalfOpen
		b.halfOpenCalls = 0
		b.halfOpenFails = 0
		slog.Info("blob breaker probing store", "name", b.name)
	case breakerHalfOpen:
		if b.halfOpenCalls >= b.halfOpenMax {
			b.mu.Unlock()
			return nil, ErrStoreUnavailable
		}
	}
	inHalfOpen := b.state == breakerHalfOpen
	if inHalfOpen {
		b.halfOpenCalls++
	}
	b.mu.Unlock()

	data, err := b.inner.Fetch(ctx, blobURL)

	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case err == nil:
		b.recordSuccess(inHalfOpen)
	case ctx.Err() != nil:
		// Cancelled or timed out by the caller: no verdict on the store.
	default:
		b.recordFailure(inHalfOpen)
	}
	return data, err
}

func (b *BreakerFetcher) recordFailure(inHalfOpen bool) {
	b.lastFailure = time.Now()

	if inHalfOpen {
		b.halfOpenFails++
		b.state = breakerOpen
		b.consecutiveFail = b.maxFailures
		slog.Warn("blob breaker re-opened", "name", b.name)
		return
	}
	b.consecutiveFail++
	if b.consecutiveFail >= b.maxFailures {
		b.state = breakerOpen
		slog.Warn("blob breaker opened",
			"name", b.name,
			"consecutive_failures", b.consecutiveFail)
	}
}

func (b *BreakerFetcher) recordSuccess(inHalfOpen bool) {
	if inHalfOpen {
		if b.halfOpenCalls-b.halfOpenFails >= b.halfOpenMax {
			b.state = breakerClosed
			b.consecutiveFail = 0
			b.halfOpenCalls = 0
			b.halfOpenFails = 0
			slog.Info("blob breaker closed", "name", b.name)
		}
		return
	}
	b.consecutiveFail = 0
}

// currentState reports the breaker state, accounting for an elapsed reset
// timeout. The actual transition happens on the next Fetch.
func (b *BreakerFetcher) currentState() breakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == breakerOpen && time.Since(b.lastFailure) >= b.resetTimeout {
		return breakerHalfOpen
	}
	return b.state
}
