package nea_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgweather/sgweather/internal/nea"
	"github.com/sgweather/sgweather/internal/weather"
)

func TestNormalizeReadings(t *testing.T) {
	fetched := time.Date(2026, 3, 14, 9, 0, 0, 0, weather.SGT)
	payload := &nea.RealtimePayload{}
	require.NoError(t, json.Unmarshal([]byte(`{
		"metadata": {
			"stations": [
				{"id": "S107", "name": "East Coast Parkway", "location": {"latitude": 1.3135, "longitude": 103.9625}},
				{"id": "S109", "name": "Ang Mo Kio Avenue 5", "location": {"latitude": 1.3764, "longitude": 103.8492}}
			],
			"reading_type": "DBT 1M F",
			"reading_unit": "deg C"
		},
		"items": [{
			"timestamp": "2026-03-14T08:55:00+08:00",
			"readings": [
				{"station_id": "S107", "value": 29.4},
				{"station_id": "S109", "value": null}
			]
		}]
	}`), payload))

	rec := nea.NormalizeReadings(weather.SourceTemperature, payload, fetched)

	assert.Equal(t, weather.MetricTemperature, rec.Metric)
	assert.Equal(t, "°C", rec.Unit)
	assert.Equal(t, time.Date(2026, 3, 14, 8, 55, 0, 0, weather.SGT).Unix(), rec.Timestamp.Unix())
	require.Len(t, rec.Stations, 2)
	assert.InDelta(t, 1.3135, rec.Stations[0].Lat, 1e-9)

	require.Len(t, rec.Readings, 2)
	assert.Equal(t, weather.QualityOK, rec.Readings[0].Quality)
	assert.InDelta(t, 29.4, rec.Readings[0].Value, 1e-9)

	// Null upstream value is flagged missing, never coerced to zero.
	assert.Equal(t, weather.QualityMissing, rec.Readings[1].Quality)
}

func TestNormalizeReadingsMalformedValue(t *testing.T) {
	fetched := time.Now()
	payload := &nea.RealtimePayload{}
	require.NoError(t, json.Unmarshal([]byte(`{
		"items": [{
			"timestamp": "not-a-timestamp",
			"readings": [{"station_id": "S50", "value": 12.1}]
		}]
	}`), payload))

	rec := nea.NormalizeReadings(weather.SourceRainfall, payload, fetched)

	// Unparseable timestamps fall back to the fetch time.
	assert.Equal(t, fetched, rec.Timestamp)
	require.Len(t, rec.Readings, 1)
	assert.Equal(t, weather.QualityOK, rec.Readings[0].Quality)
}

func TestNormalizeReadingsNilPayload(t *testing.T) {
	rec := nea.NormalizeReadings(weather.SourceHumidity, nil, time.Now())
	assert.Equal(t, weather.MetricHumidity, rec.Metric)
	assert.Empty(t, rec.Readings)
}

func TestNormalizeForecast2Hr(t *testing.T) {
	fetched := time.Now()
	payload := &nea.Forecast2HrPayload{}
	require.NoError(t, json.Unmarshal([]byte(`{
		"area_metadata": [
			{"name": "Bedok", "label_location": {"latitude": 1.321, "longitude": 103.924}}
		],
		"items": [{
			"timestamp": "2026-03-14T09:00:00+08:00",
			"forecasts": [
				{"area": "Bedok", "forecast": "Showers"},
				{"area": "Tuas", "forecast": "Partly Cloudy (Day)"},
				{"area": "", "forecast": "Cloudy"}
			]
		}]
	}`), payload))

	rec := nea.NormalizeForecast2Hr(payload, fetched)

	require.Len(t, rec.Areas, 2)
	assert.Equal(t, weather.ConditionRain, rec.Areas[0].Condition)
	assert.InDelta(t, 1.321, rec.Areas[0].Lat, 1e-9)
	assert.Equal(t, weather.ConditionPartlyCloudy, rec.Areas[1].Condition)
	// Tuas has no metadata entry; coordinates default to zero.
	assert.Zero(t, rec.Areas[1].Lat)
}

func TestPeriodLabel(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, weather.SGT)

	tests := []struct {
		start time.Time
		want  string
	}{
		{time.Date(2026, 3, 14, 6, 0, 0, 0, weather.SGT), "Today morning"},
		{time.Date(2026, 3, 14, 12, 0, 0, 0, weather.SGT), "Today afternoon"},
		{time.Date(2026, 3, 14, 18, 0, 0, 0, weather.SGT), "Today evening"},
		{time.Date(2026, 3, 15, 6, 0, 0, 0, weather.SGT), "Tomorrow morning"},
		{time.Date(2026, 3, 15, 0, 0, 0, 0, weather.SGT), "Tomorrow evening"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, nea.PeriodLabel(tc.start, now))
	}
}

func TestNormalizeForecast24Hr(t *testing.T) {
	fetched := time.Date(2026, 3, 14, 10, 0, 0, 0, weather.SGT)
	payload := &nea.Forecast24HrPayload{}
	require.NoError(t, json.Unmarshal([]byte(`{
		"items": [{
			"timestamp": "2026-03-14T09:30:00+08:00",
			"periods": [
				{
					"time": {"start": "2026-03-14T12:00:00+08:00", "end": "2026-03-14T18:00:00+08:00"},
					"regions": {"north": "Thundery Showers", "south": "Cloudy", "east": "Cloudy", "west": "Thundery Showers", "central": "Cloudy"}
				},
				{
					"time": {"start": "2026-03-14T18:00:00+08:00", "end": "2026-03-15T06:00:00+08:00"},
					"regions": {"north": "Fair (Night)", "south": "Fair (Night)", "east": "Fair (Night)", "west": "Fair (Night)", "central": "Fair (Night)"}
				}
			]
		}]
	}`), payload))

	rec := nea.NormalizeForecast24Hr(payload, fetched)

	assert.Equal(t, time.Date(2026, 3, 14, 9, 30, 0, 0, weather.SGT).Unix(), rec.IssuedAt.Unix())
	require.Len(t, rec.Periods, 2)
	assert.Equal(t, "Today afternoon", rec.Periods[0].Label)
	assert.Equal(t, "Thundery Showers", rec.Periods[0].Conditions[weather.RegionNorth])
	assert.Equal(t, "Today evening", rec.Periods[1].Label)
}

func TestNormalizeForecast4Day(t *testing.T) {
	fetched := time.Now()
	payload := &nea.Forecast4DayPayload{}
	require.NoError(t, json.Unmarshal([]byte(`{
		"items": [{
			"timestamp": "2026-03-14T11:00:00+08:00",
			"forecasts": [
				{
					"timestamp": "2026-03-15T00:00:00+08:00",
					"forecast": "Late morning and early afternoon thundery showers.",
					"temperature": {"low": 24, "high": 33},
					"relative_humidity": {"low": 55, "high": 95},
					"wind": {"speed": {"low": 10, "high": 20}, "direction": "NNE"}
				},
				{
					"timestamp": "2026-03-16T00:00:00+08:00",
					"forecast": "Unusual haze-like conditions.",
					"temperature": {"low": 25, "high": 32},
					"relative_humidity": {"low": 60, "high": 90},
					"wind": {"speed": {"low": 5, "high": 15}, "direction": "N"}
				}
			]
		}]
	}`), payload))

	rec := nea.NormalizeForecast4Day(payload, fetched)

	require.Len(t, rec.Entries, 2)
	assert.Equal(t, weather.ConditionThunderstorm, rec.Entries[0].Condition)
	assert.InDelta(t, 24, rec.Entries[0].TempLow, 1e-9)
	assert.InDelta(t, 33, rec.Entries[0].TempHigh, 1e-9)
	assert.Equal(t, "NNE", rec.Entries[0].WindBearing)
	assert.Equal(t, rec.IssuedAt, rec.Entries[0].IssuedAt)

	// Unrecognized sentences are kept, not dropped.
	assert.Equal(t, weather.ConditionUnknown, rec.Entries[1].Condition)
}

func TestNormalizePM25(t *testing.T) {
	fetched := time.Now()
	payload := &nea.PM25Payload{}
	require.NoError(t, json.Unmarshal([]byte(`{
		"items": [{
			"timestamp": "2026-03-14T09:00:00+08:00",
			"readings": {"pm25_one_hourly": {"north": 12, "south": 8, "east": 15, "central": 11}}
		}]
	}`), payload))

	rec := nea.NormalizePM25(payload, fetched)

	require.Len(t, rec.ByRegion, 5)
	assert.Equal(t, weather.QualityOK, rec.ByRegion[weather.RegionNorth].Quality)
	assert.InDelta(t, 12, rec.ByRegion[weather.RegionNorth].Value, 1e-9)

	// Absent region carries a missing-quality measure, not zero.
	assert.Equal(t, weather.QualityMissing, rec.ByRegion[weather.RegionWest].Quality)
	assert.Zero(t, rec.ByRegion[weather.RegionWest].ObservedAt)
}

func TestNormalizeUV(t *testing.T) {
	fetched := time.Now()
	payload := &nea.UVPayload{}
	require.NoError(t, json.Unmarshal([]byte(`{
		"items": [{
			"timestamp": "2026-03-14T12:00:00+08:00",
			"index": [
				{"value": 9, "timestamp": "2026-03-14T12:00:00+08:00"},
				{"value": 7, "timestamp": "2026-03-14T11:00:00+08:00"}
			]
		}]
	}`), payload))

	rec := nea.NormalizeUV(payload, fetched)

	assert.Equal(t, weather.QualityOK, rec.Value.Quality)
	assert.InDelta(t, 9, rec.Value.Value, 1e-9)
}

func TestNormalizeUVEmpty(t *testing.T) {
	rec := nea.NormalizeUV(&nea.UVPayload{}, time.Now())
	assert.Equal(t, weather.QualityMissing, rec.Value.Quality)
}
