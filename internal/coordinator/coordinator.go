// Package coordinator drives the refresh cycle: it decides which sources are
// due, fetches them concurrently, normalizes and aggregates the results, and
// commits one snapshot per completed cycle.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sgweather/sgweather/internal/nea"
	"github.com/sgweather/sgweather/internal/snapshot"
	"github.com/sgweather/sgweather/internal/weather"
)

// State is a source's position in the refresh lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StateCommitting State = "committing"
	StateBackingOff State = "backing_off"
)

// SourceHealth is one source's refresh record.
type SourceHealth struct {
	Source       weather.Source `json:"source"`
	State        State          `json:"state"`
	LastSuccess  time.Time      `json:"last_success,omitzero"`
	LastAttempt  time.Time      `json:"last_attempt,omitzero"`
	LastError    string         `json:"last_error,omitempty"`
	Failures     int            `json:"failures"`
	Backoff      time.Duration  `json:"backoff,omitempty"`
	NextEligible time.Time      `json:"next_eligible,omitzero"`
}

// SourceSpec declares one source's polling interval.
type SourceSpec struct {
	Source   weather.Source
	Interval time.Duration
	Enabled  bool
}

// DefaultSourceSpecs returns the polling schedule for every source.
func DefaultSourceSpecs() []SourceSpec {
	return []SourceSpec{
		{Source: weather.SourceForecast2Hr, Interval: 15 * time.Minute, Enabled: true},
		{Source: weather.SourceForecast24Hr, Interval: 30 * time.Minute, Enabled: true},
		{Source: weather.SourceForecast4Day, Interval: 6 * time.Hour, Enabled: true},
		{Source: weather.SourceTemperature, Interval: time.Minute, Enabled: true},
		{Source: weather.SourceHumidity, Interval: time.Minute, Enabled: true},
		{Source: weather.SourceWindSpeed, Interval: time.Minute, Enabled: true},
		{Source: weather.SourceWindDirection, Interval: time.Minute, Enabled: true},
		{Source: weather.SourceRainfall, Interval: 5 * time.Minute, Enabled: true},
		{Source: weather.SourcePM25, Interval: time.Hour, Enabled: true},
		{Source: weather.SourceUV, Interval: time.Hour, Enabled: true},
		{Source: weather.SourceRadar, Interval: 5 * time.Minute, Enabled: true},
	}
}

// Intervals extracts the interval map used for freshness windows.
func Intervals(specs []SourceSpec) map[weather.Source]time.Duration {
	m := make(map[weather.Source]time.Duration, len(specs))
	for _, s := range specs {
		m[s.Source] = s.Interval
	}
	return m
}

// Upstream is the set of endpoint fetches one cycle draws on. Satisfied by
// *nea.Client.
type Upstream interface {
	FetchRealtime(ctx context.Context, src weather.Source) (*nea.RealtimePayload, error)
	FetchForecast2Hr(ctx context.Context) (*nea.Forecast2HrPayload, error)
	FetchForecast24Hr(ctx context.Context) (*nea.Forecast24HrPayload, error)
	FetchForecast4Day(ctx context.Context) (*nea.Forecast4DayPayload, error)
	FetchPM25(ctx context.Context) (*nea.PM25Payload, error)
	FetchUV(ctx context.Context) (*nea.UVPayload, error)
}

// RadarSource fetches the latest rain-map frame. Satisfied by
// *nea.RadarClient.
type RadarSource interface {
	LatestFrame(ctx context.Context) (*weather.RadarFrame, error)
}

// Config holds configuration for the coordinator.
type Config struct {
	// Sources is the polling schedule. Default: DefaultSourceSpecs.
	Sources []SourceSpec

	// BackoffBase is the first failure's backoff. Default: 30 seconds.
	BackoffBase time.Duration

	// BackoffMax caps the per-source backoff. Default: 10 minutes.
	BackoffMax time.Duration

	// FetchTimeout bounds each source fetch within a cycle.
	// Default: 15 seconds.
	FetchTimeout time.Duration

	Logger zerolog.Logger

	// Now is the clock, overridable in tests.
	Now func() time.Time
}

// Coordinator owns the per-source refresh state machine. Cycles never
// overlap.
type Coordinator struct {
	config   Config
	logger   zerolog.Logger
	now      func() time.Time
	upstream Upstream
	radar    RadarSource
	agg      *weather.Aggregator
	store    *snapshot.Store
	metrics  *cycleMetrics

	mu     sync.Mutex
	health map[weather.Source]*SourceHealth
}

// New creates a coordinator.
func New(cfg Config, upstream Upstream, radar RadarSource, agg *weather.Aggregator, store *snapshot.Store) (*Coordinator, error) {
	if len(cfg.Sources) == 0 {
		cfg.Sources = DefaultSourceSpecs()
	}
	if cfg.BackoffBase == 0 {
		cfg.BackoffBase = 30 * time.Second
	}
	if cfg.BackoffMax == 0 {
		cfg.BackoffMax = 10 * time.Minute
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = 15 * time.Second
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	metrics, err := newCycleMetrics()
	if err != nil {
		return nil, err
	}

	health := make(map[weather.Source]*SourceHealth, len(cfg.Sources))
	for _, spec := range cfg.Sources {
		health[spec.Source] = &SourceHealth{Source: spec.Source, State: StateIdle}
	}

	return &Coordinator{
		config:   cfg,
		logger:   cfg.Logger,
		now:      now,
		upstream: upstream,
		radar:    radar,
		agg:      agg,
		store:    store,
		metrics:  metrics,
		health:   health,
	}, nil
}

// backoffFor computes the delay after the given consecutive failure count:
// base doubled per failure, capped at the maximum.
func (c *Coordinator) backoffFor(failures int) time.Duration {
	d := c.config.BackoffBase
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= c.config.BackoffMax {
			return c.config.BackoffMax
		}
	}
	if d > c.config.BackoffMax {
		return c.config.BackoffMax
	}
	return d
}

// dueSources returns the enabled sources whose interval has elapsed and whose
// backoff window has passed.
func (c *Coordinator) dueSources(now time.Time) []SourceSpec {
	var due []SourceSpec
	for _, spec := range c.config.Sources {
		if !spec.Enabled {
			continue
		}
		h := c.health[spec.Source]
		if !h.LastSuccess.IsZero() && now.Sub(h.LastSuccess) < spec.Interval {
			continue
		}
		if now.Before(h.NextEligible) {
			continue
		}
		due = append(due, spec)
	}
	return due
}

// cycleResult collects one cycle's fetch outcomes under its own lock.
type cycleResult struct {
	mu    sync.Mutex
	input weather.CycleInput
}

func (r *cycleResult) success(src weather.Source, at time.Time, apply func(*weather.CycleInput)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.input.FetchTimes == nil {
		r.input.FetchTimes = make(map[weather.Source]time.Time)
	}
	r.input.FetchTimes[src] = at
	if apply != nil {
		apply(&r.input)
	}
}

// RunCycle executes one refresh cycle: fetch due sources concurrently,
// aggregate once, commit once. A cycle with no due sources is a no-op. When
// every due source fails the existing snapshot is retained and
// weather.ErrAllSourcesFailed is returned.
func (c *Coordinator) RunCycle(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	started := c.now()
	cycleID := uuid.NewString()
	due := c.dueSources(started)
	if len(due) == 0 {
		return nil
	}

	logger := c.logger.With().Str("cycle_id", cycleID).Logger()
	logger.Debug().Int("due", len(due)).Msg("refresh cycle started")

	result := &cycleResult{}
	result.input.CycleID = cycleID
	result.input.Now = started

	var g errgroup.Group
	for _, spec := range due {
		spec := spec
		c.health[spec.Source].State = StateFetching
		c.health[spec.Source].LastAttempt = started
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(ctx, c.config.FetchTimeout)
			defer cancel()
			c.fetchSource(fetchCtx, spec.Source, result)
			return nil
		})
	}
	_ = g.Wait()

	finished := c.now()
	failed := 0
	for _, spec := range due {
		h := c.health[spec.Source]
		if _, ok := result.input.FetchTimes[spec.Source]; ok {
			h.State = StateIdle
			h.LastSuccess = result.input.FetchTimes[spec.Source]
			h.LastError = ""
			h.Failures = 0
			h.Backoff = 0
			h.NextEligible = time.Time{}
			c.metrics.recordFetch(ctx, spec.Source, true)
			continue
		}
		failed++
		h.Failures++
		h.Backoff = c.backoffFor(h.Failures)
		h.NextEligible = finished.Add(h.Backoff)
		h.State = StateBackingOff
		c.metrics.recordFetch(ctx, spec.Source, false)
		logger.Warn().
			Str("source", string(spec.Source)).
			Int("failures", h.Failures).
			Dur("backoff", h.Backoff).
			Str("error", h.LastError).
			Msg("source fetch failed, backing off")
	}

	if failed == len(due) {
		logger.Error().Int("sources", failed).Msg("every due source failed, snapshot retained")
		c.metrics.recordCycle(ctx, c.now().Sub(started), false)
		return weather.ErrAllSourcesFailed
	}

	for _, spec := range due {
		if c.health[spec.Source].State == StateIdle {
			c.health[spec.Source].State = StateCommitting
		}
	}

	prev, _ := c.store.Current()
	snap, err := c.agg.Aggregate(result.input, prev)
	if err != nil {
		c.metrics.recordCycle(ctx, c.now().Sub(started), false)
		c.resetCommitting()
		return err
	}
	if err := c.store.Commit(snap); err != nil {
		// An out-of-order snapshot is discarded, not fatal: the store keeps
		// the newer one.
		logger.Warn().Err(err).Msg("snapshot commit rejected")
	}
	c.resetCommitting()

	c.metrics.recordCycle(ctx, c.now().Sub(started), true)
	logger.Info().
		Int("fetched", len(result.input.FetchTimes)).
		Int("failed", failed).
		Time("snapshot", snap.Timestamp).
		Msg("refresh cycle committed")
	return nil
}

func (c *Coordinator) resetCommitting() {
	for _, h := range c.health {
		if h.State == StateCommitting {
			h.State = StateIdle
		}
	}
}

// fetchSource fetches and normalizes one source into the cycle result.
// Failures are recorded on the source's health and leave the result
// untouched.
func (c *Coordinator) fetchSource(ctx context.Context, src weather.Source, result *cycleResult) {
	at := c.now()
	var err error

	switch src {
	case weather.SourceForecast2Hr:
		var p *nea.Forecast2HrPayload
		if p, err = c.upstream.FetchForecast2Hr(ctx); err == nil {
			rec := nea.NormalizeForecast2Hr(p, at)
			result.success(src, at, func(in *weather.CycleInput) { in.AreaForecast = rec })
		}
	case weather.SourceForecast24Hr:
		var p *nea.Forecast24HrPayload
		if p, err = c.upstream.FetchForecast24Hr(ctx); err == nil {
			rec := nea.NormalizeForecast24Hr(p, at)
			result.success(src, at, func(in *weather.CycleInput) { in.RegionForecast = rec })
		}
	case weather.SourceForecast4Day:
		var p *nea.Forecast4DayPayload
		if p, err = c.upstream.FetchForecast4Day(ctx); err == nil {
			rec := nea.NormalizeForecast4Day(p, at)
			result.success(src, at, func(in *weather.CycleInput) { in.Forecast4Day = rec })
		}
	case weather.SourcePM25:
		var p *nea.PM25Payload
		if p, err = c.upstream.FetchPM25(ctx); err == nil {
			rec := nea.NormalizePM25(p, at)
			result.success(src, at, func(in *weather.CycleInput) { in.PM25 = rec })
		}
	case weather.SourceUV:
		var p *nea.UVPayload
		if p, err = c.upstream.FetchUV(ctx); err == nil {
			rec := nea.NormalizeUV(p, at)
			result.success(src, at, func(in *weather.CycleInput) { in.UV = rec })
		}
	case weather.SourceRadar:
		var frame *weather.RadarFrame
		if frame, err = c.radar.LatestFrame(ctx); err == nil {
			result.success(src, at, func(in *weather.CycleInput) { in.RadarFrame = frame })
		}
	default:
		var p *nea.RealtimePayload
		if p, err = c.upstream.FetchRealtime(ctx, src); err == nil {
			rec := nea.NormalizeReadings(src, p, at)
			result.success(src, at, func(in *weather.CycleInput) {
				if in.Readings == nil {
					in.Readings = make(map[weather.Source]*weather.ReadingsRecord)
				}
				in.Readings[src] = rec
			})
		}
	}

	if err != nil {
		c.health[src].LastError = err.Error()
	}
}

// Health returns a copy of every source's refresh record.
func (c *Coordinator) Health() []SourceHealth {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]SourceHealth, 0, len(c.config.Sources))
	for _, spec := range c.config.Sources {
		out = append(out, *c.health[spec.Source])
	}
	return out
}
