// Package drift tracks the distribution of decoded phonemes over time. Each
// utterance's histogram is compared against a persisted baseline with KL
// divergence, the divergence is exported as a metric, and the baseline is
// advanced with an exponential moving average.
package drift

import (
	"context"
	"log/slog"
	"math"

	"go.opentelemetry.io/otel/metric"

	"github.com/solmave/phonatia/internal/phoneme"
	"github.com/solmave/phonatia/internal/store"
)

const (
	// Alpha is the EMA weight of the newest histogram. Small on purpose:
	// the baseline should track slow population shifts, not single
	// utterances.
	Alpha = 0.01

	// klEpsilon avoids log(0) on empty histogram bins.
	klEpsilon = 1e-8
)

// Histogram counts non-blank frame IDs into a vocabulary-sized vector.
func Histogram(frameIDs []int, vocabSize int) []float64 {
	hist := make([]float64, vocabSize)
	for _, id := range frameIDs {
		if id <= phoneme.BlankID || id >= vocabSize {
			continue
		}
		hist[id]++
	}
	return hist
}

// KL computes the Kullback-Leibler divergence KL(p‖q) between two count
// vectors. Both sides are epsilon-smoothed and normalized; mismatched
// lengths are zero-padded. The result is non-negative and zero only when the
// normalized distributions coincide.
func KL(p, q []float64) float64 {
	n := len(p)
	if len(q) > n {
		n = len(q)
	}
	if n == 0 {
		return 0
	}

	ps := make([]float64, n)
	qs := make([]float64, n)
	var pSum, qSum float64
	for i := 0; i < n; i++ {
		pv, qv := klEpsilon, klEpsilon
		if i < len(p) {
			pv += p[i]
		}
		if i < len(q) {
			qv += q[i]
		}
		ps[i], qs[i] = pv, qv
		pSum += pv
		qSum += qv
	}

	var kl float64
	for i := 0; i < n; i++ {
		pn := ps[i] / pSum
		qn := qs[i] / qSum
		kl += pn * (math.Log(pn) - math.Log(qn))
	}
	return kl
}

// Monitor owns the baseline lifecycle. It never fails the pipeline: storage
// errors are logged and the utterance proceeds unscored for drift.
type Monitor struct {
	store store.Baselines
	gauge metric.Float64Gauge
}

// NewMonitor builds a monitor. gauge may be nil in tests.
func NewMonitor(baselines store.Baselines, gauge metric.Float64Gauge) *Monitor {
	return &Monitor{store: baselines, gauge: gauge}
}

// Observe folds one utterance histogram into the drift state. The first
// histogram seen becomes the baseline; afterwards the divergence is recorded
// and the baseline advanced by EMA with zero-padding to the longer vector.
func (m *Monitor) Observe(ctx context.Context, hist []float64) {
	if m.store == nil {
		return
	}

	base, ok, err := m.store.LoadBaseline(ctx)
	if err != nil {
		slog.Warn("drift baseline load failed", "err", err)
		return
	}
	if !ok {
		if err := m.store.SaveBaseline(ctx, hist); err != nil {
			slog.Warn("drift baseline init failed", "err", err)
		}
		return
	}

	kl := KL(hist, base)
	if m.gauge != nil {
		m.gauge.Record(ctx, kl)
	}

	n := len(base)
	if len(hist) > n {
		n = len(hist)
	}
	ema := make([]float64, n)
	for i := 0; i < n; i++ {
		var b, h float64
		if i < len(base) {
			b = base[i]
		}
		if i < len(hist) {
			h = hist[i]
		}
		ema[i] = (1-Alpha)*b + Alpha*h
	}
	if err := m.store.SaveBaseline(ctx, ema); err != nil {
		slog.Warn("drift baseline update failed", "err", err)
	}
}
