package nea

import (
	"context"
	"net/http"
	"time"

	"github.com/sgweather/sgweather/internal/fetch"
	"github.com/sgweather/sgweather/internal/weather"
)

const (
	// DefaultRadarBaseURL is the weather.gov.sg rain-radar tile base.
	DefaultRadarBaseURL = "https://www.weather.gov.sg/files/rainarea/50km/v2"

	radarFilePrefix = "dpsri_70km_"
	radarFileSuffix = "0000dBR.dpsri.png"

	// radarStep is the publication grid of radar frames.
	radarStep = 5 * time.Minute
)

// RadarClientConfig holds configuration for the radar imagery client.
type RadarClientConfig struct {
	// BaseURL is the radar tile base (defaults to DefaultRadarBaseURL).
	BaseURL string

	// Timeout for individual requests (default: 10s).
	Timeout time.Duration

	// MaxWalkback is how many 5-minute slots to step back when the newest
	// frame is not yet published (default: 3).
	MaxWalkback int

	// Getter overrides the HTTP layer, mainly for tests.
	Getter Getter

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// RadarClient fetches rain-radar frames. Frame URLs embed an SGT timestamp
// floored to the 5-minute grid; the newest frame lags publication, so a 404
// walks back one slot at a time.
type RadarClient struct {
	baseURL     string
	getter      Getter
	maxWalkback int
	now         func() time.Time
}

// NewRadarClient creates a new radar imagery client.
func NewRadarClient(cfg RadarClientConfig) *RadarClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultRadarBaseURL
	}
	maxWalkback := cfg.MaxWalkback
	if maxWalkback == 0 {
		maxWalkback = 3
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	getter := cfg.Getter
	if getter == nil {
		getter = fetch.NewClient(fetch.ClientConfig{
			Source:  string(weather.SourceRadar),
			Timeout: cfg.Timeout,
			Headers: map[string]string{
				"User-Agent": defaultUserAgent,
				"Referer":    "https://www.nea.gov.sg/weather/rain-areas",
			},
		})
	}

	return &RadarClient{
		baseURL:     baseURL,
		getter:      getter,
		maxWalkback: maxWalkback,
		now:         now,
	}
}

// FrameURL returns the tile URL for the frame at ts (floored to the grid).
func (c *RadarClient) FrameURL(ts time.Time) string {
	slot := ts.In(weather.SGT).Truncate(radarStep)
	return c.baseURL + "/" + radarFilePrefix + slot.Format("200601021504") + radarFileSuffix
}

// LatestFrame fetches the most recent available radar frame, walking back
// through earlier slots while the newest is not yet published.
func (c *RadarClient) LatestFrame(ctx context.Context) (*weather.RadarFrame, error) {
	slot := c.now().In(weather.SGT).Truncate(radarStep)

	var lastErr error
	for i := 0; i <= c.maxWalkback; i++ {
		ts := slot.Add(-time.Duration(i) * radarStep)
		url := c.FrameURL(ts)

		body, err := c.getter.Get(ctx, url)
		if err == nil {
			return &weather.RadarFrame{Timestamp: ts, URL: url, Image: body}, nil
		}
		lastErr = err

		// Only a not-found means "not published yet"; anything else is a
		// real failure.
		fe := fetch.AsError(err)
		if fe == nil || fe.Kind != fetch.KindHTTPStatus || fe.StatusCode != http.StatusNotFound {
			return nil, err
		}
	}
	return nil, lastErr
}
