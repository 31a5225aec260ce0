// Package ops exposes the operational probe endpoints. This is not a data
// API: it reports liveness and refresh health for monitoring.
package ops

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/sgweather/sgweather/internal/coordinator"
	"github.com/sgweather/sgweather/internal/weather"
)

// SnapshotSource reads the current snapshot. Satisfied by *snapshot.Store.
type SnapshotSource interface {
	Current() (*weather.Snapshot, error)
}

// HealthSource reports per-source refresh state. Satisfied by
// *coordinator.Coordinator.
type HealthSource interface {
	Health() []coordinator.SourceHealth
}

// RouterConfig holds configuration for the ops router.
type RouterConfig struct {
	Version string
	Logger  zerolog.Logger

	// RateLimit is requests per minute per IP. Default: 60.
	RateLimit int

	// Now is the clock, overridable in tests.
	Now func() time.Time
}

type handler struct {
	version   string
	now       func() time.Time
	snapshots SnapshotSource
	health    HealthSource
}

// NewRouter builds the ops router: GET /healthz and GET /status.
func NewRouter(cfg RouterConfig, snapshots SnapshotSource, health HealthSource) *chi.Mux {
	limit := cfg.RateLimit
	if limit == 0 {
		limit = 60
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	h := &handler{version: cfg.Version, now: now, snapshots: snapshots, health: health}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(cfg.Logger))
	r.Use(httprate.Limit(limit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByRealIP)))
	r.Get("/healthz", h.healthz)
	r.Get("/status", h.status)
	return r
}

// requestLogger logs each request with zerolog.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("ops request")
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (h *handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": h.version,
		"time":    h.now().UTC(),
	})
}

// statusResponse is the /status body.
type statusResponse struct {
	Status   string                     `json:"status"`
	Time     time.Time                  `json:"time"`
	Snapshot *snapshotStatus            `json:"snapshot,omitempty"`
	Sources  []coordinator.SourceHealth `json:"sources"`
}

type snapshotStatus struct {
	Timestamp   time.Time `json:"timestamp"`
	AgeSeconds  float64   `json:"age_seconds"`
	CycleID     string    `json:"cycle_id"`
	Areas       int       `json:"areas"`
	RadarFrames int       `json:"radar_frames"`
}

func (h *handler) status(w http.ResponseWriter, _ *http.Request) {
	now := h.now()
	resp := statusResponse{
		Status:  "ok",
		Time:    now.UTC(),
		Sources: h.health.Health(),
	}

	snap, err := h.snapshots.Current()
	switch {
	case err != nil:
		// Not initialized yet: alive but not serving data.
		resp.Status = "initializing"
	default:
		resp.Snapshot = &snapshotStatus{
			Timestamp:   snap.Timestamp,
			AgeSeconds:  now.Sub(snap.Timestamp).Seconds(),
			CycleID:     snap.CycleID,
			Areas:       len(snap.Areas),
			RadarFrames: len(snap.Radar),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
