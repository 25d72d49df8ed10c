// Package health provides the worker's HTTP health endpoint.
//
// GET /health reports whether the process is up, whether the ASR and SER
// model sessions were actually loaded (versus running on fallbacks), and the
// result of each registered dependency check. The endpoint returns 200 when
// every check passes and 503 otherwise, so it doubles as a readiness probe.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// checkTimeout is the maximum time a single dependency check may take before
// the context is cancelled.
const checkTimeout = 5 * time.Second

// Checker is a named dependency check. Check returns nil when the dependency
// is healthy and a non-nil error describing the failure otherwise.
type Checker struct {
	// Name is a short label for this check (e.g. "database", "broker"). It
	// appears as a key in the JSON response.
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// result is the JSON response body.
type result struct {
	Status    string            `json:"status"`
	ASRLoaded bool              `json:"asr_loaded"`
	SERLoaded bool              `json:"ser_loaded"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// Handler serves the /health endpoint. It is safe for concurrent use; the
// checker list is fixed at construction time.
type Handler struct {
	asrLoaded func() bool
	serLoaded func() bool
	checkers  []Checker
}

// New creates a [Handler]. The two load reporters may be nil, in which case
// the corresponding flag is reported false. Checkers are evaluated
// sequentially in the order provided.
func New(asrLoaded, serLoaded func() bool, checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{asrLoaded: asrLoaded, serLoaded: serLoaded, checkers: c}
}

// Health reports process and model status plus dependency checks. Model
// fallback mode is intentionally not a failure: the worker still produces
// reports without model assets.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	res := result{
		Status: "ok",
		Checks: make(map[string]string, len(h.checkers)),
	}
	if h.asrLoaded != nil {
		res.ASRLoaded = h.asrLoaded()
	}
	if h.serLoaded != nil {
		res.SERLoaded = h.serLoaded()
	}

	status := http.StatusOK
	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			res.Checks[c.Name] = "fail: " + err.Error()
			res.Status = "fail"
			status = http.StatusServiceUnavailable
		} else {
			res.Checks[c.Name] = "ok"
		}
	}
	if len(res.Checks) == 0 {
		res.Checks = nil
	}

	writeJSON(w, status, res)
}

// Register adds the /health route to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
}

// writeJSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
