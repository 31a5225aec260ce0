package nea_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgweather/sgweather/internal/fetch"
	"github.com/sgweather/sgweather/internal/nea"
	"github.com/sgweather/sgweather/internal/weather"
)

func TestClient_FetchRealtime(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/air-temperature", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("date_time"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"metadata": {
				"stations": [
					{"id": "S107", "device_id": "S107", "name": "East Coast Parkway",
					 "location": {"latitude": 1.3135, "longitude": 103.9625}}
				],
				"reading_type": "DBT 1M F",
				"reading_unit": "deg C"
			},
			"items": [
				{"timestamp": "2026-08-30T14:01:00+08:00",
				 "readings": [{"station_id": "S107", "value": 29.4}]}
			]
		}`))
	}))
	defer server.Close()

	client := nea.NewClient(nea.ClientConfig{
		BaseURL: server.URL,
		Getter:  fetch.NewClient(fetch.ClientConfig{Source: "test"}),
	})

	payload, err := client.FetchRealtime(context.Background(), weather.SourceTemperature)
	require.NoError(t, err)
	require.Len(t, payload.Metadata.Stations, 1)
	assert.Equal(t, "S107", payload.Metadata.Stations[0].ID)
	require.Len(t, payload.Items, 1)
	require.Len(t, payload.Items[0].Readings, 1)

	v, err := payload.Items[0].Readings[0].Value.Float64()
	require.NoError(t, err)
	assert.InDelta(t, 29.4, v, 0.001)
}

func TestClient_FetchForecast2Hr(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2-hour-weather-forecast", r.URL.Path)
		w.Write([]byte(`{
			"area_metadata": [
				{"name": "Bedok", "label_location": {"latitude": 1.321, "longitude": 103.924}}
			],
			"items": [
				{"timestamp": "2026-08-30T14:05:00+08:00",
				 "valid_period": {"start": "2026-08-30T14:00:00+08:00", "end": "2026-08-30T16:00:00+08:00"},
				 "forecasts": [{"area": "Bedok", "forecast": "Partly Cloudy (Day)"}]}
			]
		}`))
	}))
	defer server.Close()

	client := nea.NewClient(nea.ClientConfig{
		BaseURL: server.URL,
		Getter:  fetch.NewClient(fetch.ClientConfig{Source: "test"}),
	})

	payload, err := client.FetchForecast2Hr(context.Background())
	require.NoError(t, err)
	require.Len(t, payload.Items, 1)
	assert.Equal(t, "Bedok", payload.Items[0].Forecasts[0].Area)
	assert.Equal(t, "Partly Cloudy (Day)", payload.Items[0].Forecasts[0].Forecast)
}

func TestClient_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer server.Close()

	client := nea.NewClient(nea.ClientConfig{
		BaseURL: server.URL,
		Getter:  fetch.NewClient(fetch.ClientConfig{Source: "pm25"}),
	})

	_, err := client.FetchPM25(context.Background())
	require.Error(t, err)

	fe := fetch.AsError(err)
	require.NotNil(t, fe)
	assert.Equal(t, fetch.KindMalformed, fe.Kind)
}

func TestRadarClient_LatestFrame_WalksBackOn404(t *testing.T) {
	// Only the frame two slots back exists.
	now := time.Date(2026, 8, 30, 14, 3, 0, 0, weather.SGT)
	available := "dpsri_70km_2026083013550000dBR.dpsri.png"

	var requested []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = append(requested, r.URL.Path)
		if r.URL.Path == "/"+available {
			w.Write([]byte("png-bytes"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := nea.NewRadarClient(nea.RadarClientConfig{
		BaseURL:     server.URL,
		MaxWalkback: 3,
		Getter:      fetch.NewClient(fetch.ClientConfig{Source: "radar"}),
		Now:         func() time.Time { return now },
	})

	frame, err := client.LatestFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), frame.Image)
	assert.Equal(t, time.Date(2026, 8, 30, 13, 55, 0, 0, weather.SGT).Unix(), frame.Timestamp.Unix())
	assert.Len(t, requested, 2, "should stop at the first published frame")
}

func TestRadarClient_LatestFrame_AllMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := nea.NewRadarClient(nea.RadarClientConfig{
		BaseURL:     server.URL,
		MaxWalkback: 2,
		Getter:      fetch.NewClient(fetch.ClientConfig{Source: "radar"}),
	})

	_, err := client.LatestFrame(context.Background())
	require.Error(t, err)

	fe := fetch.AsError(err)
	require.NotNil(t, fe)
	assert.Equal(t, 404, fe.StatusCode)
}

func TestRadarClient_FrameURL(t *testing.T) {
	client := nea.NewRadarClient(nea.RadarClientConfig{
		Getter: fetch.NewClient(fetch.ClientConfig{Source: "radar"}),
	})

	ts := time.Date(2026, 8, 30, 14, 7, 30, 0, weather.SGT)
	url := client.FrameURL(ts)
	assert.Equal(t, nea.DefaultRadarBaseURL+"/dpsri_70km_2026083014050000dBR.dpsri.png", url)
}
