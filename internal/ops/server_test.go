package ops_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgweather/sgweather/internal/coordinator"
	"github.com/sgweather/sgweather/internal/ops"
	"github.com/sgweather/sgweather/internal/snapshot"
	"github.com/sgweather/sgweather/internal/weather"
)

type fakeHealth struct{ records []coordinator.SourceHealth }

func (f fakeHealth) Health() []coordinator.SourceHealth { return f.records }

func newRouter(store *snapshot.Store, now time.Time) http.Handler {
	return ops.NewRouter(ops.RouterConfig{
		Version: "test",
		Logger:  zerolog.Nop(),
		Now:     func() time.Time { return now },
	}, store, fakeHealth{records: []coordinator.SourceHealth{
		{Source: weather.SourceTemperature, State: coordinator.StateIdle},
	}})
}

func TestHealthz(t *testing.T) {
	store := snapshot.NewStore(snapshot.StoreConfig{Logger: zerolog.Nop()})
	router := newRouter(store, time.Now())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestStatusBeforeBootstrap(t *testing.T) {
	store := snapshot.NewStore(snapshot.StoreConfig{Logger: zerolog.Nop()})
	router := newRouter(store, time.Now())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status   string          `json:"status"`
		Snapshot json.RawMessage `json:"snapshot"`
		Sources  []struct {
			Source string `json:"source"`
			State  string `json:"state"`
		} `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "initializing", body.Status)
	assert.Empty(t, body.Snapshot)
	require.Len(t, body.Sources, 1)
	assert.Equal(t, "idle", body.Sources[0].State)
}

func TestStatusWithSnapshot(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 10, 0, 0, weather.SGT)
	store := snapshot.NewStore(snapshot.StoreConfig{Logger: zerolog.Nop()})
	require.NoError(t, store.Commit(&weather.Snapshot{
		Timestamp: now.Add(-5 * time.Minute),
		CycleID:   "c9",
		Areas:     map[string]weather.AreaConditions{"Bedok": {}},
	}))
	router := newRouter(store, now)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status   string `json:"status"`
		Snapshot struct {
			CycleID    string  `json:"cycle_id"`
			AgeSeconds float64 `json:"age_seconds"`
			Areas      int     `json:"areas"`
		} `json:"snapshot"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "c9", body.Snapshot.CycleID)
	assert.InDelta(t, 300, body.Snapshot.AgeSeconds, 1)
	assert.Equal(t, 1, body.Snapshot.Areas)
}
