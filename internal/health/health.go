// Package health serves the liveness and readiness endpoints of the
// voicewire telemetry server.
//
//   - /healthz reports liveness; a process that can answer HTTP is alive.
//   - /readyz reports readiness; it passes only while every registered
//     [Probe] passes, so a client whose session dropped shows up as not
//     ready without the process dying.
//
// Responses are JSON with a top-level "status" ("ok" or "degraded") and a
// per-probe breakdown including the probe's evaluation time.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// probeTimeout bounds a single readiness probe.
const probeTimeout = 2 * time.Second

// Probe is a named readiness check. Check returns nil while the probed
// component is serviceable.
type Probe struct {
	// Name keys the probe's entry in the /readyz response (e.g. "session").
	Name string

	// Check evaluates the component. It must respect context cancellation.
	Check func(ctx context.Context) error
}

type probeResult struct {
	State   string `json:"state"`
	Error   string `json:"error,omitempty"`
	Elapsed string `json:"elapsed"`
}

type response struct {
	Status string                 `json:"status"`
	Probes map[string]probeResult `json:"probes,omitempty"`
}

// Handler serves /healthz and /readyz. Safe for concurrent use; the probe
// list is fixed at construction.
type Handler struct {
	probes []Probe
}

// New creates a Handler evaluating the given probes on each /readyz request,
// in order.
func New(probes ...Probe) *Handler {
	p := make([]Probe, len(probes))
	copy(p, probes)
	return &Handler{probes: p}
}

// Healthz always answers 200.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, response{Status: "ok"})
}

// Readyz answers 200 while every probe passes and 503 otherwise, with the
// per-probe breakdown either way.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	res := response{
		Status: "ok",
		Probes: make(map[string]probeResult, len(h.probes)),
	}
	code := http.StatusOK

	for _, p := range h.probes {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		start := time.Now()
		err := p.Check(ctx)
		elapsed := time.Since(start)
		cancel()

		pr := probeResult{State: "ok", Elapsed: elapsed.String()}
		if err != nil {
			pr.State = "fail"
			pr.Error = err.Error()
			res.Status = "degraded"
			code = http.StatusServiceUnavailable
		}
		res.Probes[p.Name] = pr
	}

	writeJSON(w, code, res)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
