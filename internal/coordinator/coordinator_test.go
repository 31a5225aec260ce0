package coordinator_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgweather/sgweather/internal/coordinator"
	"github.com/sgweather/sgweather/internal/nea"
	"github.com/sgweather/sgweather/internal/snapshot"
	"github.com/sgweather/sgweather/internal/weather"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeUpstream serves canned payloads and fails the sources listed in fail.
type fakeUpstream struct {
	mu    sync.Mutex
	fail  map[weather.Source]bool
	calls map[weather.Source]int
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		fail:  make(map[weather.Source]bool),
		calls: make(map[weather.Source]int),
	}
}

func (f *fakeUpstream) record(src weather.Source) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[src]++
	if f.fail[src] {
		return errors.New("upstream unavailable")
	}
	return nil
}

func (f *fakeUpstream) callCount(src weather.Source) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[src]
}

func (f *fakeUpstream) setFail(src weather.Source, v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[src] = v
}

func (f *fakeUpstream) FetchRealtime(_ context.Context, src weather.Source) (*nea.RealtimePayload, error) {
	if err := f.record(src); err != nil {
		return nil, err
	}
	p := &nea.RealtimePayload{}
	err := json.Unmarshal([]byte(`{
		"metadata": {"stations": [{"id": "S107", "name": "East Coast Parkway", "location": {"latitude": 1.3135, "longitude": 103.9625}}]},
		"items": [{"readings": [{"station_id": "S107", "value": 29.1}]}]
	}`), p)
	return p, err
}

func (f *fakeUpstream) FetchForecast2Hr(context.Context) (*nea.Forecast2HrPayload, error) {
	if err := f.record(weather.SourceForecast2Hr); err != nil {
		return nil, err
	}
	p := &nea.Forecast2HrPayload{}
	err := json.Unmarshal([]byte(`{
		"items": [{"forecasts": [{"area": "Bedok", "forecast": "Cloudy"}]}]
	}`), p)
	return p, err
}

func (f *fakeUpstream) FetchForecast24Hr(context.Context) (*nea.Forecast24HrPayload, error) {
	if err := f.record(weather.SourceForecast24Hr); err != nil {
		return nil, err
	}
	return &nea.Forecast24HrPayload{}, nil
}

func (f *fakeUpstream) FetchForecast4Day(context.Context) (*nea.Forecast4DayPayload, error) {
	if err := f.record(weather.SourceForecast4Day); err != nil {
		return nil, err
	}
	return &nea.Forecast4DayPayload{}, nil
}

func (f *fakeUpstream) FetchPM25(context.Context) (*nea.PM25Payload, error) {
	if err := f.record(weather.SourcePM25); err != nil {
		return nil, err
	}
	return &nea.PM25Payload{}, nil
}

func (f *fakeUpstream) FetchUV(context.Context) (*nea.UVPayload, error) {
	if err := f.record(weather.SourceUV); err != nil {
		return nil, err
	}
	return &nea.UVPayload{}, nil
}

type fakeRadar struct {
	mu    sync.Mutex
	fail  bool
	calls int
	ts    time.Time
}

func (f *fakeRadar) LatestFrame(context.Context) (*weather.RadarFrame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return nil, errors.New("radar unavailable")
	}
	return &weather.RadarFrame{Timestamp: f.ts, URL: "frame"}, nil
}

type resolverStub struct{}

func (resolverStub) ResolveStationArea(string, float64, float64) (weather.AreaRef, error) {
	return weather.AreaRef{Name: "Bedok", Region: weather.RegionEast}, nil
}

func (resolverStub) RegionOf(string) weather.Region { return weather.RegionEast }

type fixture struct {
	clock    *fakeClock
	upstream *fakeUpstream
	radar    *fakeRadar
	store    *snapshot.Store
	coord    *coordinator.Coordinator
}

func newFixture(t *testing.T, cfg coordinator.Config) *fixture {
	t.Helper()

	clock := &fakeClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, weather.SGT)}
	upstream := newFakeUpstream()
	radar := &fakeRadar{ts: clock.Now()}
	store := snapshot.NewStore(snapshot.StoreConfig{Logger: zerolog.Nop()})

	if len(cfg.Sources) == 0 {
		cfg.Sources = coordinator.DefaultSourceSpecs()
	}
	cfg.Logger = zerolog.Nop()
	cfg.Now = clock.Now

	agg := weather.NewAggregator(weather.AggregatorConfig{
		Resolver:  resolverStub{},
		Logger:    zerolog.Nop(),
		Intervals: coordinator.Intervals(cfg.Sources),
	})

	coord, err := coordinator.New(cfg, upstream, radar, agg, store)
	require.NoError(t, err)

	return &fixture{clock: clock, upstream: upstream, radar: radar, store: store, coord: coord}
}

func TestRunCycleCommitsSnapshot(t *testing.T) {
	f := newFixture(t, coordinator.Config{})

	require.NoError(t, f.coord.RunCycle(context.Background()))

	snap, err := f.store.Current()
	require.NoError(t, err)
	assert.NotEmpty(t, snap.CycleID)
	assert.Contains(t, snap.Areas, "Bedok")
	assert.Len(t, snap.Radar, 1)
	assert.Equal(t, 1, f.upstream.callCount(weather.SourceTemperature))

	for _, h := range f.coord.Health() {
		assert.Equal(t, coordinator.StateIdle, h.State)
		assert.Zero(t, h.Failures)
	}
}

func TestRunCycleNoDueSourcesIsNoop(t *testing.T) {
	f := newFixture(t, coordinator.Config{})

	require.NoError(t, f.coord.RunCycle(context.Background()))
	calls := f.upstream.callCount(weather.SourceTemperature)

	// Nothing is due ten seconds later.
	f.clock.Advance(10 * time.Second)
	require.NoError(t, f.coord.RunCycle(context.Background()))
	assert.Equal(t, calls, f.upstream.callCount(weather.SourceTemperature))
}

func TestRunCyclePartialFailureStillCommits(t *testing.T) {
	f := newFixture(t, coordinator.Config{BackoffBase: 30 * time.Second})
	f.upstream.setFail(weather.SourceTemperature, true)

	require.NoError(t, f.coord.RunCycle(context.Background()))

	snap, err := f.store.Current()
	require.NoError(t, err)
	assert.Contains(t, snap.Areas, "Bedok")
	assert.True(t, snap.SourceStamp(weather.SourceTemperature).IsZero())

	var temp coordinator.SourceHealth
	for _, h := range f.coord.Health() {
		if h.Source == weather.SourceTemperature {
			temp = h
		}
	}
	assert.Equal(t, coordinator.StateBackingOff, temp.State)
	assert.Equal(t, 1, temp.Failures)
	assert.Equal(t, 30*time.Second, temp.Backoff)
	assert.Equal(t, "upstream unavailable", temp.LastError)
}

func TestRunCycleBackoffSkipsSourceUntilEligible(t *testing.T) {
	f := newFixture(t, coordinator.Config{BackoffBase: 90 * time.Second})
	f.upstream.setFail(weather.SourceTemperature, true)

	require.NoError(t, f.coord.RunCycle(context.Background()))
	assert.Equal(t, 1, f.upstream.callCount(weather.SourceTemperature))

	// One minute in: the temperature source is past its interval but still
	// inside its backoff window, so only the other realtime sources go out.
	f.clock.Advance(time.Minute)
	require.NoError(t, f.coord.RunCycle(context.Background()))
	assert.Equal(t, 1, f.upstream.callCount(weather.SourceTemperature))
	assert.Equal(t, 2, f.upstream.callCount(weather.SourceHumidity))

	// Past the backoff window it is retried.
	f.upstream.setFail(weather.SourceTemperature, false)
	f.clock.Advance(time.Minute)
	require.NoError(t, f.coord.RunCycle(context.Background()))
	assert.Equal(t, 2, f.upstream.callCount(weather.SourceTemperature))

	for _, h := range f.coord.Health() {
		if h.Source == weather.SourceTemperature {
			assert.Zero(t, h.Failures)
			assert.Equal(t, coordinator.StateIdle, h.State)
		}
	}
}

func TestRunCycleBackoffDoublesAndCaps(t *testing.T) {
	f := newFixture(t, coordinator.Config{
		Sources: []coordinator.SourceSpec{
			{Source: weather.SourceTemperature, Interval: time.Minute, Enabled: true},
		},
		BackoffBase: 30 * time.Second,
		BackoffMax:  2 * time.Minute,
	})
	f.upstream.setFail(weather.SourceTemperature, true)

	want := []time.Duration{
		30 * time.Second,
		time.Minute,
		2 * time.Minute,
		2 * time.Minute, // capped
	}
	for i, expected := range want {
		err := f.coord.RunCycle(context.Background())
		require.ErrorIs(t, err, weather.ErrAllSourcesFailed)

		h := f.coord.Health()[0]
		assert.Equal(t, i+1, h.Failures)
		assert.Equal(t, expected, h.Backoff, "failure %d", i+1)

		f.clock.Advance(expected + time.Second)
	}
}

func TestRunCycleAllFailedRetainsSnapshot(t *testing.T) {
	f := newFixture(t, coordinator.Config{BackoffBase: 10 * time.Second})

	require.NoError(t, f.coord.RunCycle(context.Background()))
	before, err := f.store.Current()
	require.NoError(t, err)

	for _, spec := range coordinator.DefaultSourceSpecs() {
		f.upstream.setFail(spec.Source, true)
	}
	f.radar.mu.Lock()
	f.radar.fail = true
	f.radar.mu.Unlock()

	f.clock.Advance(time.Hour)
	err = f.coord.RunCycle(context.Background())
	require.ErrorIs(t, err, weather.ErrAllSourcesFailed)

	// The published snapshot is untouched, not merely equivalent.
	after, err := f.store.Current()
	require.NoError(t, err)
	assert.Same(t, before, after)
}

func TestRunCycleAllFailedBeforeBootstrap(t *testing.T) {
	f := newFixture(t, coordinator.Config{BackoffBase: 10 * time.Second})
	for _, spec := range coordinator.DefaultSourceSpecs() {
		f.upstream.setFail(spec.Source, true)
	}
	f.radar.mu.Lock()
	f.radar.fail = true
	f.radar.mu.Unlock()

	err := f.coord.RunCycle(context.Background())
	require.ErrorIs(t, err, weather.ErrAllSourcesFailed)

	_, err = f.store.Current()
	assert.ErrorIs(t, err, weather.ErrNotInitialized)
}
