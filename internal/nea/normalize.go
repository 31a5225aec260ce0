package nea

import (
	"encoding/json"
	"time"

	"github.com/sgweather/sgweather/internal/weather"
)

// realtimeMetrics maps realtime sources to their metric kind and unit.
var realtimeMetrics = map[weather.Source]struct {
	metric weather.Metric
	unit   string
}{
	weather.SourceTemperature:   {weather.MetricTemperature, "°C"},
	weather.SourceHumidity:      {weather.MetricHumidity, "%"},
	weather.SourceWindSpeed:     {weather.MetricWindSpeed, "knots"},
	weather.SourceWindDirection: {weather.MetricWindDirection, "°"},
	weather.SourceRainfall:      {weather.MetricRainfall, "mm"},
}

// parseNumber extracts a float from a tolerant JSON number. The second return
// is the quality: missing for absent or unparseable values.
func parseNumber(n json.Number) (float64, weather.Quality) {
	if n == "" {
		return 0, weather.QualityMissing
	}
	v, err := n.Float64()
	if err != nil {
		return 0, weather.QualityMissing
	}
	return v, weather.QualityOK
}

// parseTimestamp parses upstream RFC3339 timestamps, falling back to the
// fetch time when absent or malformed.
func parseTimestamp(s string, fallback time.Time) time.Time {
	if s == "" {
		return fallback
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fallback
	}
	return ts
}

// NormalizeReadings converts a realtime per-station payload into canonical
// readings.
func NormalizeReadings(src weather.Source, p *RealtimePayload, fetchedAt time.Time) *weather.ReadingsRecord {
	info := realtimeMetrics[src]
	rec := &weather.ReadingsRecord{
		Source:    src,
		Metric:    info.metric,
		Unit:      info.unit,
		Timestamp: fetchedAt,
		FetchedAt: fetchedAt,
	}
	if p == nil {
		return rec
	}

	for _, s := range p.Metadata.Stations {
		lat, latQ := parseNumber(s.Location.Latitude)
		lon, lonQ := parseNumber(s.Location.Longitude)
		if latQ != weather.QualityOK || lonQ != weather.QualityOK {
			lat, lon = 0, 0
		}
		rec.Stations = append(rec.Stations, weather.StationMeta{
			ID:   s.ID,
			Name: s.Name,
			Lat:  lat,
			Lon:  lon,
		})
	}

	if len(p.Items) == 0 {
		return rec
	}
	item := p.Items[0]
	rec.Timestamp = parseTimestamp(item.Timestamp, fetchedAt)

	for _, r := range item.Readings {
		if r.StationID == "" {
			continue
		}
		value, quality := parseNumber(r.Value)
		rec.Readings = append(rec.Readings, weather.Reading{
			StationID:  r.StationID,
			Metric:     info.metric,
			Value:      value,
			Unit:       info.unit,
			ObservedAt: rec.Timestamp,
			Quality:    quality,
		})
	}
	return rec
}

// NormalizeForecast2Hr converts the 2-hour nowcast into per-area conditions.
func NormalizeForecast2Hr(p *Forecast2HrPayload, fetchedAt time.Time) *weather.AreaForecastRecord {
	rec := &weather.AreaForecastRecord{Timestamp: fetchedAt, FetchedAt: fetchedAt}
	if p == nil || len(p.Items) == 0 {
		return rec
	}

	item := p.Items[0]
	rec.Timestamp = parseTimestamp(item.Timestamp, fetchedAt)

	locations := make(map[string][2]float64, len(p.AreaMetadata))
	for _, m := range p.AreaMetadata {
		lat, latQ := parseNumber(m.LabelLocation.Latitude)
		lon, lonQ := parseNumber(m.LabelLocation.Longitude)
		if latQ == weather.QualityOK && lonQ == weather.QualityOK {
			locations[m.Name] = [2]float64{lat, lon}
		}
	}

	for _, f := range item.Forecasts {
		if f.Area == "" {
			continue
		}
		loc := locations[f.Area]
		rec.Areas = append(rec.Areas, weather.AreaForecast{
			Area:        f.Area,
			Description: f.Forecast,
			Condition:   weather.MapCondition(f.Forecast),
			IconCode:    weather.MapIconCode(f.Forecast),
			Lat:         loc[0],
			Lon:         loc[1],
		})
	}
	return rec
}

// PeriodLabel names a 24-hour outlook window relative to now: "Today" or
// "Tomorrow" plus morning (6h start), afternoon (12h start) or evening.
func PeriodLabel(start, now time.Time) string {
	start = start.In(weather.SGT)
	day := "Tomorrow "
	if start.Format("2006-01-02") == now.In(weather.SGT).Format("2006-01-02") {
		day = "Today "
	}
	switch start.Hour() {
	case 6:
		return day + "morning"
	case 12:
		return day + "afternoon"
	default:
		return day + "evening"
	}
}

// NormalizeForecast24Hr converts the 24-hour outlook into region periods.
func NormalizeForecast24Hr(p *Forecast24HrPayload, fetchedAt time.Time) *weather.RegionForecastRecord {
	rec := &weather.RegionForecastRecord{IssuedAt: fetchedAt, FetchedAt: fetchedAt}
	if p == nil || len(p.Items) == 0 {
		return rec
	}

	item := p.Items[0]
	rec.IssuedAt = parseTimestamp(item.Timestamp, fetchedAt)

	for _, period := range item.Periods {
		start := parseTimestamp(period.Time.Start, time.Time{})
		if start.IsZero() || len(period.Regions) == 0 {
			continue
		}
		conditions := make(map[weather.Region]string, len(period.Regions))
		for name, desc := range period.Regions {
			conditions[weather.Region(name)] = desc
		}
		rec.Periods = append(rec.Periods, weather.RegionPeriod{
			Label:      PeriodLabel(start, fetchedAt),
			Start:      start,
			End:        parseTimestamp(period.Time.End, start.Add(6*time.Hour)),
			Conditions: conditions,
		})
	}
	return rec
}

// NormalizeForecast4Day converts the 4-day outlook. Sentence-style forecasts
// map to conditions by keyword; entries with no recognizable condition are
// kept with ConditionUnknown rather than dropped.
func NormalizeForecast4Day(p *Forecast4DayPayload, fetchedAt time.Time) *weather.Forecast4DayRecord {
	rec := &weather.Forecast4DayRecord{IssuedAt: fetchedAt, FetchedAt: fetchedAt}
	if p == nil || len(p.Items) == 0 {
		return rec
	}

	item := p.Items[0]
	rec.IssuedAt = parseTimestamp(item.Timestamp, fetchedAt)

	for _, f := range item.Forecasts {
		date := parseTimestamp(f.Timestamp, time.Time{})
		if date.IsZero() {
			continue
		}
		tempLow, _ := parseNumber(f.Temperature.Low)
		tempHigh, _ := parseNumber(f.Temperature.High)
		humidityLow, _ := parseNumber(f.RelativeHumidity.Low)
		humidityHigh, _ := parseNumber(f.RelativeHumidity.High)
		windLow, _ := parseNumber(f.Wind.Speed.Low)
		windHigh, _ := parseNumber(f.Wind.Speed.High)

		rec.Entries = append(rec.Entries, weather.ForecastEntry{
			Date:          date,
			Description:   f.Forecast,
			Condition:     weather.MapForecastCondition(f.Forecast),
			TempLow:       tempLow,
			TempHigh:      tempHigh,
			HumidityLow:   humidityLow,
			HumidityHigh:  humidityHigh,
			WindSpeedLow:  windLow,
			WindSpeedHigh: windHigh,
			WindBearing:   f.Wind.Direction,
			IssuedAt:      rec.IssuedAt,
		})
	}
	return rec
}

// NormalizePM25 converts the regional one-hourly PM2.5 payload. Every region
// is always present; regions absent from the payload carry a missing-quality
// measure.
func NormalizePM25(p *PM25Payload, fetchedAt time.Time) *weather.PM25Record {
	rec := &weather.PM25Record{
		Timestamp: fetchedAt,
		FetchedAt: fetchedAt,
		ByRegion:  make(map[weather.Region]weather.Measure),
	}
	if p == nil || len(p.Items) == 0 {
		for _, region := range weather.Regions() {
			rec.ByRegion[region] = weather.Measure{Quality: weather.QualityMissing, Unit: "µg/m³"}
		}
		return rec
	}

	item := p.Items[0]
	rec.Timestamp = parseTimestamp(item.Timestamp, fetchedAt)

	for _, region := range weather.Regions() {
		n, ok := item.Readings.PM25OneHourly[string(region)]
		if !ok {
			rec.ByRegion[region] = weather.Measure{Quality: weather.QualityMissing, Unit: "µg/m³"}
			continue
		}
		value, quality := parseNumber(n)
		rec.ByRegion[region] = weather.Measure{
			Value:      value,
			Unit:       "µg/m³",
			Quality:    quality,
			ObservedAt: rec.Timestamp,
		}
	}
	return rec
}

// NormalizeUV converts the UV index payload; index entries are most recent
// first.
func NormalizeUV(p *UVPayload, fetchedAt time.Time) *weather.UVRecord {
	rec := &weather.UVRecord{
		FetchedAt: fetchedAt,
		Value:     weather.Measure{Quality: weather.QualityMissing, Unit: "index"},
	}
	if p == nil || len(p.Items) == 0 || len(p.Items[0].Index) == 0 {
		return rec
	}

	latest := p.Items[0].Index[0]
	value, quality := parseNumber(latest.Value)
	rec.Value = weather.Measure{
		Value:      value,
		Unit:       "index",
		Quality:    quality,
		ObservedAt: parseTimestamp(latest.Timestamp, fetchedAt),
	}
	return rec
}
