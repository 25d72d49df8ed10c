package drift

import (
	"context"
	"math"
	"reflect"
	"testing"

	"github.com/solmave/phonatia/internal/store/memstore"
)

func TestHistogram(t *testing.T) {
	t.Parallel()
	frameIDs := []int{0, 1, 1, 3, 0, 3, 3, -1, 99}

	hist := Histogram(frameIDs, 5)
	want := []float64{0, 2, 0, 3, 0}
	if !reflect.DeepEqual(hist, want) {
		t.Errorf("Histogram() = %v, want %v", hist, want)
	}
}

func TestKL_SelfIsZero(t *testing.T) {
	t.Parallel()
	p := []float64{1, 2, 3, 4}
	if kl := KL(p, p); math.Abs(kl) > 1e-12 {
		t.Errorf("KL(p,p) = %v, want 0", kl)
	}
}

func TestKL_NonNegative(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		p, q []float64
	}{
		{"different", []float64{5, 1, 0}, []float64{1, 1, 4}},
		{"zero bins", []float64{1, 0, 0}, []float64{0, 0, 1}},
		{"mismatched lengths", []float64{1, 2, 3}, []float64{3, 1}},
		{"empty current", nil, []float64{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if kl := KL(tt.p, tt.q); kl < 0 {
				t.Errorf("KL() = %v, want >= 0", kl)
			}
		})
	}
}

func TestKL_GrowsWithDivergence(t *testing.T) {
	t.Parallel()
	base := []float64{10, 10, 10}
	near := KL([]float64{10, 11, 9}, base)
	far := KL([]float64{30, 0, 0}, base)
	if far <= near {
		t.Errorf("KL(far) = %v not greater than KL(near) = %v", far, near)
	}
}

func TestMonitor_FirstObservationBecomesBaseline(t *testing.T) {
	t.Parallel()
	ms := memstore.New()
	m := NewMonitor(ms, nil)

	hist := []float64{1, 2, 3}
	m.Observe(context.Background(), hist)

	base, ok, err := ms.LoadBaseline(context.Background())
	if err != nil || !ok {
		t.Fatalf("LoadBaseline: %v, ok=%v", err, ok)
	}
	if !reflect.DeepEqual(base, hist) {
		t.Errorf("baseline = %v, want %v", base, hist)
	}
}

func TestMonitor_EMAUpdate(t *testing.T) {
	t.Parallel()
	ms := memstore.New()
	if err := ms.SaveBaseline(context.Background(), []float64{100, 0}); err != nil {
		t.Fatal(err)
	}
	m := NewMonitor(ms, nil)

	m.Observe(context.Background(), []float64{0, 100})

	base, ok, err := ms.LoadBaseline(context.Background())
	if err != nil || !ok {
		t.Fatalf("LoadBaseline: %v, ok=%v", err, ok)
	}
	want := []float64{(1 - Alpha) * 100, Alpha * 100}
	for i := range want {
		if math.Abs(base[i]-want[i]) > 1e-9 {
			t.Errorf("baseline[%d] = %v, want %v", i, base[i], want[i])
		}
	}
}

func TestMonitor_EMAZeroPadsShorterVector(t *testing.T) {
	t.Parallel()
	ms := memstore.New()
	if err := ms.SaveBaseline(context.Background(), []float64{10}); err != nil {
		t.Fatal(err)
	}
	m := NewMonitor(ms, nil)

	m.Observe(context.Background(), []float64{10, 20})

	base, _, err := ms.LoadBaseline(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(base) != 2 {
		t.Fatalf("baseline length = %d, want 2", len(base))
	}
	if math.Abs(base[1]-Alpha*20) > 1e-9 {
		t.Errorf("baseline[1] = %v, want %v", base[1], Alpha*20)
	}
}

func TestMonitor_NilStoreIsNoop(t *testing.T) {
	t.Parallel()
	m := NewMonitor(nil, nil)
	m.Observe(context.Background(), []float64{1}) // must not panic
}
