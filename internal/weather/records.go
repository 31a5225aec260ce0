package weather

import "time"

// Normalized record types, one per upstream payload shape. Normalization
// never fails: absent or ill-shaped fields yield per-field quality flags
// instead of aborting the record, and numeric parse failures yield missing
// values, never zero.

// ReadingsRecord is the canonical form of one realtime per-station payload.
type ReadingsRecord struct {
	Source    Source
	Metric    Metric
	Unit      string
	Timestamp time.Time // upstream observation timestamp
	FetchedAt time.Time
	Stations  []StationMeta
	Readings  []Reading
}

// AreaForecastRecord is the canonical form of the 2-hour nowcast.
type AreaForecastRecord struct {
	Timestamp time.Time
	FetchedAt time.Time
	Areas     []AreaForecast
}

// RegionPeriod is one 24-hour outlook window across all regions.
type RegionPeriod struct {
	Label      string
	Start      time.Time
	End        time.Time
	Conditions map[Region]string // upstream description per region
}

// RegionForecastRecord is the canonical form of the 24-hour outlook.
type RegionForecastRecord struct {
	IssuedAt  time.Time
	FetchedAt time.Time
	Periods   []RegionPeriod
}

// Forecast4DayRecord is the canonical form of the 4-day outlook.
type Forecast4DayRecord struct {
	IssuedAt  time.Time
	FetchedAt time.Time
	Entries   []ForecastEntry
}

// PM25Record is the canonical form of the regional PM2.5 payload.
type PM25Record struct {
	Timestamp time.Time
	FetchedAt time.Time
	ByRegion  map[Region]Measure
}

// UVRecord is the canonical form of the UV index payload.
type UVRecord struct {
	FetchedAt time.Time
	Value     Measure
}
