// Package nea provides clients for Singapore's NEA open-data endpoints on
// api.data.gov.sg and the rain-radar imagery on www.weather.gov.sg.
package nea

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/sgweather/sgweather/internal/fetch"
	"github.com/sgweather/sgweather/internal/weather"
)

const (
	// DefaultBaseURL is the data.gov.sg environment API base.
	DefaultBaseURL = "https://api.data.gov.sg/v1/environment"

	// defaultUserAgent matches a browser; the NEA endpoints reject obvious
	// bot agents.
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/96.0.4664.45 Safari/537.36"
)

// endpointPaths maps each source to its path under the API base.
var endpointPaths = map[weather.Source]string{
	weather.SourceForecast2Hr:   "2-hour-weather-forecast",
	weather.SourceForecast24Hr:  "24-hour-weather-forecast",
	weather.SourceForecast4Day:  "4-day-weather-forecast",
	weather.SourceTemperature:   "air-temperature",
	weather.SourceHumidity:      "relative-humidity",
	weather.SourceWindSpeed:     "wind-speed",
	weather.SourceWindDirection: "wind-direction",
	weather.SourceRainfall:      "rainfall",
	weather.SourcePM25:          "pm25",
	weather.SourceUV:            "uv-index",
}

// Getter abstracts the resilient HTTP client for tests.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// ClientConfig holds configuration for the NEA API client.
type ClientConfig struct {
	// BaseURL is the API base (defaults to DefaultBaseURL).
	BaseURL string

	// Timeout for individual requests (default: 10s).
	Timeout time.Duration

	// Getter overrides the HTTP layer, mainly for tests. If set, it is used
	// for every source.
	Getter Getter

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Client fetches raw payloads from the data.gov.sg environment endpoints.
// One resilient fetch client is kept per source so a flapping endpoint trips
// only its own circuit breaker.
type Client struct {
	baseURL string
	getters map[weather.Source]Getter
	now     func() time.Time
}

// NewClient creates a new NEA API client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	getters := make(map[weather.Source]Getter, len(endpointPaths))
	for src := range endpointPaths {
		if cfg.Getter != nil {
			getters[src] = cfg.Getter
			continue
		}
		getters[src] = fetch.NewClient(fetch.ClientConfig{
			Source:  string(src),
			Timeout: cfg.Timeout,
			Headers: map[string]string{"User-Agent": defaultUserAgent},
		})
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		getters: getters,
		now:     now,
	}
}

// url builds the endpoint URL with the date_time parameter the API expects.
func (c *Client) url(src weather.Source) string {
	dateTime := c.now().In(weather.SGT).Format("2006-01-02T15:04:05")
	return c.baseURL + "/" + endpointPaths[src] + "?date_time=" + dateTime
}

// get fetches a source and decodes the body into out. Decode failures are
// reported as malformed fetch errors.
func (c *Client) get(ctx context.Context, src weather.Source, out any) error {
	body, err := c.getters[src].Get(ctx, c.url(src))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &fetch.Error{Source: string(src), Kind: fetch.KindMalformed, Err: err}
	}
	return nil
}

// FetchRealtime fetches one of the per-station realtime reading sources
// (temperature, humidity, wind-speed, wind-direction, rainfall).
func (c *Client) FetchRealtime(ctx context.Context, src weather.Source) (*RealtimePayload, error) {
	var payload RealtimePayload
	if err := c.get(ctx, src, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// FetchForecast2Hr fetches the per-area 2-hour nowcast.
func (c *Client) FetchForecast2Hr(ctx context.Context) (*Forecast2HrPayload, error) {
	var payload Forecast2HrPayload
	if err := c.get(ctx, weather.SourceForecast2Hr, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// FetchForecast24Hr fetches the per-region 24-hour outlook.
func (c *Client) FetchForecast24Hr(ctx context.Context) (*Forecast24HrPayload, error) {
	var payload Forecast24HrPayload
	if err := c.get(ctx, weather.SourceForecast24Hr, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// FetchForecast4Day fetches the 4-day outlook.
func (c *Client) FetchForecast4Day(ctx context.Context) (*Forecast4DayPayload, error) {
	var payload Forecast4DayPayload
	if err := c.get(ctx, weather.SourceForecast4Day, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// FetchPM25 fetches the one-hourly regional PM2.5 readings.
func (c *Client) FetchPM25(ctx context.Context) (*PM25Payload, error) {
	var payload PM25Payload
	if err := c.get(ctx, weather.SourcePM25, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// FetchUV fetches the national UV index.
func (c *Client) FetchUV(ctx context.Context) (*UVPayload, error) {
	var payload UVPayload
	if err := c.get(ctx, weather.SourceUV, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}
