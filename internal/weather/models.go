// Package weather defines the canonical weather records aggregated from
// Singapore's NEA open-data endpoints and the aggregator that merges them
// into immutable snapshots.
package weather

import (
	"errors"
	"time"
)

// Aggregation errors.
var (
	ErrAllSourcesFailed = errors.New("all sources failed in refresh cycle")
	ErrNotInitialized   = errors.New("no snapshot committed yet")
)

// SGT is the fixed Singapore timezone all upstream timestamps use.
var SGT = time.FixedZone("SGT", 8*60*60)

// Source identifies one upstream endpoint.
type Source string

const (
	SourceForecast2Hr   Source = "forecast2hr"
	SourceForecast24Hr  Source = "forecast24hr"
	SourceForecast4Day  Source = "forecast4day"
	SourceTemperature   Source = "temperature"
	SourceHumidity      Source = "humidity"
	SourceWindSpeed     Source = "wind-speed"
	SourceWindDirection Source = "wind-direction"
	SourceRainfall      Source = "rainfall"
	SourcePM25          Source = "pm25"
	SourceUV            Source = "uv"
	SourceRadar         Source = "radar"
)

// AllSources lists every upstream source in a stable order.
func AllSources() []Source {
	return []Source{
		SourceForecast2Hr,
		SourceForecast24Hr,
		SourceForecast4Day,
		SourceTemperature,
		SourceHumidity,
		SourceWindSpeed,
		SourceWindDirection,
		SourceRainfall,
		SourcePM25,
		SourceUV,
		SourceRadar,
	}
}

// Quality flags the trustworthiness of a value. The absent-vs-zero-vs-stale
// distinction is load-bearing: aggregation excludes missing values instead of
// treating them as zero, and stale values are surfaced with their last known
// reading rather than silently reused as fresh.
type Quality string

const (
	QualityOK        Quality = "ok"
	QualityStale     Quality = "stale"
	QualityMissing   Quality = "missing"
	QualityMalformed Quality = "malformed"
)

// Usable reports whether a value of this quality may feed numeric aggregation.
func (q Quality) Usable() bool {
	return q == QualityOK
}

// Metric identifies a measurement kind.
type Metric string

const (
	MetricTemperature   Metric = "temperature"   // °C
	MetricHumidity      Metric = "humidity"      // %
	MetricWindSpeed     Metric = "wind_speed"    // knots
	MetricWindDirection Metric = "wind_direction" // degrees
	MetricRainfall      Metric = "rainfall"      // mm (5-minute total)
	MetricPM25          Metric = "pm25"          // µg/m³
	MetricUV            Metric = "uv"            // UV index
)

// Reading is one measurement at one station at one instant. Immutable once
// constructed.
type Reading struct {
	StationID  string
	Metric     Metric
	Value      float64
	Unit       string
	ObservedAt time.Time
	Quality    Quality
}

// Measure is a derived numeric value carrying its quality and observation
// time. A Measure with non-ok quality keeps the last known value so consumers
// can show it with a staleness indicator.
type Measure struct {
	Value      float64
	Unit       string
	Quality    Quality
	ObservedAt time.Time
}

// StationMeta is station metadata as reported by the realtime endpoints.
type StationMeta struct {
	ID   string
	Name string
	Lat  float64
	Lon  float64
}

// AreaForecast is one area's 2-hour nowcast condition.
type AreaForecast struct {
	Area        string
	Description string
	Condition   Condition
	IconCode    string
	Lat         float64
	Lon         float64
}

// AreaConditions is the aggregated current state of one area.
type AreaConditions struct {
	Area        string
	Region      string
	Condition   Condition
	Description string
	IconCode    string
	Lat         float64
	Lon         float64
	Quality     Quality
	UpdatedAt   time.Time

	// Readings holds per-metric values aggregated from the area's member
	// stations. Metrics with no usable station data carry the last known
	// value flagged stale, or missing quality when none was ever seen.
	Readings map[Metric]Measure
}

// ForecastPeriod is one 24-hour outlook window for a region.
type ForecastPeriod struct {
	Label       string // "Today morning", "Tomorrow evening", ...
	Start       time.Time
	End         time.Time
	Description string
	Condition   Condition
}

// RegionOutlook is the aggregated state of one region: the condition rolled
// up from member areas, region-level readings averaged over areas with ok
// data, the 24-hour forecast periods, and the regional PM2.5 value.
type RegionOutlook struct {
	Region    Region
	Condition Condition
	Periods   []ForecastPeriod
	PM25      Measure
	Readings  map[Metric]Measure
	UpdatedAt time.Time
}

// ForecastEntry is one day of the 4-day outlook.
type ForecastEntry struct {
	Date          time.Time
	Description   string
	Condition     Condition
	TempLow       float64
	TempHigh      float64
	HumidityLow   float64
	HumidityHigh  float64
	WindSpeedLow  float64
	WindSpeedHigh float64
	WindBearing   string
	IssuedAt      time.Time
}

// RadarFrame is one timestamped rain-radar image reference. Image bytes are
// optional; adapters may fetch lazily via URL.
type RadarFrame struct {
	Timestamp time.Time
	URL       string
	Image     []byte
}

// NationalSummary holds island-wide current conditions derived from all
// stations and areas.
type NationalSummary struct {
	Condition   Condition
	Description string
	Temperature Measure
	Humidity    Measure
	WindSpeed   Measure
	WindBearing Measure
}

// Region is one of the five coarse geographic groupings.
type Region string

const (
	RegionNorth   Region = "north"
	RegionSouth   Region = "south"
	RegionEast    Region = "east"
	RegionWest    Region = "west"
	RegionCentral Region = "central"
)

// Regions lists all regions in a stable order.
func Regions() []Region {
	return []Region{RegionNorth, RegionSouth, RegionEast, RegionWest, RegionCentral}
}

// Snapshot is the atomic, immutable aggregate of all weather data valid at
// one refresh cycle. A Snapshot is fully replaced or not replaced at all;
// consumers never observe a partially updated one.
type Snapshot struct {
	// Timestamp is the latest fetch time among constituent sources.
	Timestamp time.Time

	// CycleID correlates the snapshot with the refresh cycle that built it.
	CycleID string

	National NationalSummary
	Areas    map[string]AreaConditions
	Regions  map[Region]RegionOutlook
	Forecast []ForecastEntry
	UV       Measure
	Radar    []RadarFrame // most recent first, bounded length

	// RainStations holds rainfall by station ID. Stations on the
	// configured list keep their identity with a missing-quality measure
	// when a payload omits them.
	RainStations map[string]Measure

	// SourceStamps records each source's last successful fetch time as of
	// this snapshot, including values carried over from earlier cycles.
	SourceStamps map[Source]time.Time
}

// ContentEqual reports whether two snapshots carry the same observable
// content, ignoring the cycle ID. Used to keep commits idempotent.
func (s *Snapshot) ContentEqual(other *Snapshot) bool {
	if s == nil || other == nil {
		return s == other
	}
	if !s.Timestamp.Equal(other.Timestamp) {
		return false
	}
	if len(s.Areas) != len(other.Areas) || len(s.Regions) != len(other.Regions) {
		return false
	}
	if len(s.Forecast) != len(other.Forecast) || len(s.Radar) != len(other.Radar) {
		return false
	}
	for src, ts := range s.SourceStamps {
		if !other.SourceStamps[src].Equal(ts) {
			return false
		}
	}
	return true
}

// SourceStamp returns the snapshot's fetch time for a source, zero if never
// fetched.
func (s *Snapshot) SourceStamp(src Source) time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.SourceStamps[src]
}
