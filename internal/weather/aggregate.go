package weather

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// AreaRef identifies an area and the region it belongs to.
type AreaRef struct {
	Name   string
	Region Region
}

// AreaResolver locates stations within the island's geography and assigns
// areas to regions. Unresolvable stations return an error and are excluded
// from aggregation.
type AreaResolver interface {
	ResolveStationArea(stationID string, lat, lon float64) (AreaRef, error)
	RegionOf(area string) Region
}

// RegionConditionRule selects how member-area conditions roll up to a region.
type RegionConditionRule string

const (
	// RegionConditionMajority picks the most common condition among member
	// areas (the default).
	RegionConditionMajority RegionConditionRule = "majority"

	// RegionConditionWorst picks the most severe condition among member
	// areas.
	RegionConditionWorst RegionConditionRule = "worst"
)

// conditionSeverity orders conditions for the worst-of rule.
var conditionSeverity = map[Condition]int{
	ConditionSunny:        0,
	ConditionClearNight:   0,
	ConditionPartlyCloudy: 1,
	ConditionCloudy:       2,
	ConditionWindy:        3,
	ConditionFog:          4,
	ConditionDrizzle:      5,
	ConditionRain:         6,
	ConditionPouring:      7,
	ConditionSnow:         7,
	ConditionThunderstorm: 8,
}

// AggregatePolicy holds the tunable aggregation rules.
type AggregatePolicy struct {
	// FreshnessMultiplier scales a source's nominal interval into its
	// freshness window: values older than multiplier × interval are stale.
	// Default: 2.
	FreshnessMultiplier float64

	// RegionCondition selects the region rollup rule. Default: majority.
	RegionCondition RegionConditionRule
}

// AggregatorConfig holds configuration for the aggregator.
type AggregatorConfig struct {
	// Resolver maps stations to areas and areas to regions.
	Resolver AreaResolver

	// Logger for resolution and merge anomalies.
	Logger zerolog.Logger

	// Intervals are the nominal polling intervals per source, used for
	// freshness windows.
	Intervals map[Source]time.Duration

	// MaxRadarFrames bounds the radar animation sequence. Default: 12.
	MaxRadarFrames int

	// RainStations is the fixed list of rain gauge station IDs. Listed
	// stations always appear in the snapshot, with a missing-quality
	// measure when the payload omits them.
	RainStations []string

	Policy AggregatePolicy
}

// Aggregator merges normalized records of all sources into snapshots. It
// never mutates its inputs or the previous snapshot.
type Aggregator struct {
	resolver       AreaResolver
	logger         zerolog.Logger
	intervals      map[Source]time.Duration
	maxRadarFrames int
	rainStations   []string
	policy         AggregatePolicy
}

// NewAggregator creates an aggregator.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	policy := cfg.Policy
	if policy.FreshnessMultiplier == 0 {
		policy.FreshnessMultiplier = 2
	}
	if policy.RegionCondition == "" {
		policy.RegionCondition = RegionConditionMajority
	}
	maxFrames := cfg.MaxRadarFrames
	if maxFrames == 0 {
		maxFrames = 12
	}
	return &Aggregator{
		resolver:       cfg.Resolver,
		logger:         cfg.Logger,
		intervals:      cfg.Intervals,
		maxRadarFrames: maxFrames,
		rainStations:   cfg.RainStations,
		policy:         policy,
	}
}

// CycleInput carries one refresh cycle's normalized records. Sources that
// failed this cycle are nil; their sections carry over from the previous
// snapshot.
type CycleInput struct {
	CycleID string
	Now     time.Time

	AreaForecast   *AreaForecastRecord
	RegionForecast *RegionForecastRecord
	Forecast4Day   *Forecast4DayRecord
	Readings       map[Source]*ReadingsRecord
	PM25           *PM25Record
	UV             *UVRecord
	RadarFrame     *RadarFrame

	// FetchTimes holds the successful fetch time per source this cycle.
	FetchTimes map[Source]time.Time
}

// freshness returns the freshness window for a source.
func (a *Aggregator) freshness(src Source) time.Duration {
	interval, ok := a.intervals[src]
	if !ok {
		interval = 15 * time.Minute
	}
	return time.Duration(float64(interval) * a.policy.FreshnessMultiplier)
}

// Aggregate merges one cycle's records with the previous snapshot into a new
// immutable snapshot. When every source failed, no snapshot is built and the
// caller retains the existing one.
func (a *Aggregator) Aggregate(in CycleInput, prev *Snapshot) (*Snapshot, error) {
	if len(in.FetchTimes) == 0 {
		return nil, ErrAllSourcesFailed
	}

	snap := &Snapshot{
		CycleID:      in.CycleID,
		SourceStamps: make(map[Source]time.Time),
	}
	if prev != nil {
		for src, ts := range prev.SourceStamps {
			snap.SourceStamps[src] = ts
		}
	}
	for src, ts := range in.FetchTimes {
		snap.SourceStamps[src] = ts
	}
	for _, ts := range snap.SourceStamps {
		if ts.After(snap.Timestamp) {
			snap.Timestamp = ts
		}
	}

	areaReadings := a.groupReadingsByArea(in)

	snap.Areas = a.buildAreas(in, prev, areaReadings)
	snap.National = a.buildNational(in, prev, snap.Areas)
	snap.Regions = a.buildRegions(in, prev, snap.Areas)
	snap.Forecast = a.mergeForecast(in, prev)
	snap.UV = a.mergeUV(in, prev)
	snap.Radar = a.appendRadar(in, prev)
	snap.RainStations = a.buildRainStations(in, prev)

	return snap, nil
}

// groupReadingsByArea resolves this cycle's station readings to areas and
// averages the ok readings per area and metric. Unresolvable stations are
// logged and excluded, never fatal.
func (a *Aggregator) groupReadingsByArea(in CycleInput) map[string]map[Metric]Measure {
	grouped := make(map[string]map[Metric]Measure)

	type acc struct {
		sum        float64
		n          int
		unit       string
		observedAt time.Time
	}
	accs := make(map[string]map[Metric]*acc)

	for _, rec := range in.Readings {
		if rec == nil {
			continue
		}
		stations := make(map[string]StationMeta, len(rec.Stations))
		for _, s := range rec.Stations {
			stations[s.ID] = s
		}
		for _, r := range rec.Readings {
			if !r.Quality.Usable() {
				continue
			}
			meta := stations[r.StationID]
			area, err := a.resolver.ResolveStationArea(r.StationID, meta.Lat, meta.Lon)
			if err != nil {
				a.logger.Debug().
					Str("station", r.StationID).
					Str("metric", string(r.Metric)).
					Msg("station unresolvable, excluded from area aggregation")
				continue
			}
			if accs[area.Name] == nil {
				accs[area.Name] = make(map[Metric]*acc)
			}
			m := accs[area.Name][r.Metric]
			if m == nil {
				m = &acc{unit: r.Unit, observedAt: r.ObservedAt}
				accs[area.Name][r.Metric] = m
			}
			m.sum += r.Value
			m.n++
			if r.ObservedAt.After(m.observedAt) {
				m.observedAt = r.ObservedAt
			}
		}
	}

	for areaName, metrics := range accs {
		grouped[areaName] = make(map[Metric]Measure, len(metrics))
		for metric, m := range metrics {
			grouped[areaName][metric] = Measure{
				Value:      m.sum / float64(m.n),
				Unit:       m.unit,
				Quality:    QualityOK,
				ObservedAt: m.observedAt,
			}
		}
	}
	return grouped
}

// buildAreas assembles per-area current conditions, carrying forward the
// previous snapshot's values with a staleness flag where no fresh data
// arrived.
func (a *Aggregator) buildAreas(in CycleInput, prev *Snapshot, readings map[string]map[Metric]Measure) map[string]AreaConditions {
	areas := make(map[string]AreaConditions)
	forecastWindow := a.freshness(SourceForecast2Hr)

	if in.AreaForecast != nil {
		for _, af := range in.AreaForecast.Areas {
			areas[af.Area] = AreaConditions{
				Area:        af.Area,
				Region:      string(a.resolver.RegionOf(af.Area)),
				Condition:   af.Condition,
				Description: af.Description,
				IconCode:    af.IconCode,
				Lat:         af.Lat,
				Lon:         af.Lon,
				Quality:     QualityOK,
				UpdatedAt:   in.AreaForecast.Timestamp,
				Readings:    make(map[Metric]Measure),
			}
		}
	} else if prev != nil {
		// Carry last known conditions; flag stale beyond the window.
		for name, ac := range prev.Areas {
			carried := ac
			carried.Readings = make(map[Metric]Measure, len(ac.Readings))
			for k, v := range ac.Readings {
				carried.Readings[k] = v
			}
			if in.Now.Sub(carried.UpdatedAt) > forecastWindow {
				carried.Quality = QualityStale
			}
			areas[name] = carried
		}
	}

	// Attach readings: fresh values this cycle, else last known, stale
	// beyond the metric source's window.
	for name, ac := range areas {
		var prevReadings map[Metric]Measure
		if prev != nil {
			if prevAC, ok := prev.Areas[name]; ok {
				prevReadings = prevAC.Readings
			}
		}
		for metric, src := range metricSources() {
			window := a.freshness(src)
			if fresh, ok := readings[name][metric]; ok {
				ac.Readings[metric] = fresh
				continue
			}
			last, ok := prevReadings[metric]
			if !ok {
				continue
			}
			if in.Now.Sub(last.ObservedAt) > window && last.Quality == QualityOK {
				last.Quality = QualityStale
			}
			ac.Readings[metric] = last
		}
		areas[name] = ac
	}
	return areas
}

// metricSources maps area-level metrics to the source whose interval bounds
// their freshness.
func metricSources() map[Metric]Source {
	return map[Metric]Source{
		MetricTemperature: SourceTemperature,
		MetricHumidity:    SourceHumidity,
		MetricWindSpeed:   SourceWindSpeed,
		MetricRainfall:    SourceRainfall,
	}
}

// buildNational derives island-wide current conditions: modal condition over
// areas, mean temperature and humidity over ok station readings, and a
// vector-averaged wind from paired speed and direction stations.
func (a *Aggregator) buildNational(in CycleInput, prev *Snapshot, areas map[string]AreaConditions) NationalSummary {
	national := NationalSummary{Condition: ConditionUnknown}
	if prev != nil {
		national = prev.National
		a.staleNational(&national, in.Now)
	}

	if cond, desc, ok := modalCondition(areas); ok {
		national.Condition = cond
		national.Description = desc
	}

	if m, ok := a.meanReading(in.Readings[SourceTemperature]); ok {
		national.Temperature = m
	}
	if m, ok := a.meanReading(in.Readings[SourceHumidity]); ok {
		national.Humidity = m
	}
	if speed, bearing, ok := vectorWind(in.Readings[SourceWindSpeed], in.Readings[SourceWindDirection]); ok {
		national.WindSpeed = speed
		national.WindBearing = bearing
	}
	return national
}

// staleNational downgrades carried national measures past their windows.
func (a *Aggregator) staleNational(n *NationalSummary, now time.Time) {
	stale := func(m *Measure, src Source) {
		if m.Quality == QualityOK && now.Sub(m.ObservedAt) > a.freshness(src) {
			m.Quality = QualityStale
		}
	}
	stale(&n.Temperature, SourceTemperature)
	stale(&n.Humidity, SourceHumidity)
	stale(&n.WindSpeed, SourceWindSpeed)
	stale(&n.WindBearing, SourceWindDirection)
}

// modalCondition returns the most common ok-quality condition across areas.
func modalCondition(areas map[string]AreaConditions) (Condition, string, bool) {
	counts := make(map[Condition]int)
	descriptions := make(map[Condition]string)
	for _, ac := range areas {
		if ac.Quality != QualityOK || ac.Condition == ConditionUnknown {
			continue
		}
		counts[ac.Condition]++
		descriptions[ac.Condition] = ac.Description
	}
	if len(counts) == 0 {
		return ConditionUnknown, "", false
	}

	conditions := make([]Condition, 0, len(counts))
	for c := range counts {
		conditions = append(conditions, c)
	}
	// Stable tie-break so repeated aggregation of the same data is
	// deterministic.
	sort.Slice(conditions, func(i, j int) bool {
		if counts[conditions[i]] != counts[conditions[j]] {
			return counts[conditions[i]] > counts[conditions[j]]
		}
		return conditions[i] < conditions[j]
	})
	best := conditions[0]
	return best, descriptions[best], true
}

// meanReading averages the ok readings of one record. Readings flagged
// missing are excluded, not treated as zero.
func (a *Aggregator) meanReading(rec *ReadingsRecord) (Measure, bool) {
	if rec == nil {
		return Measure{}, false
	}
	var sum float64
	var n int
	for _, r := range rec.Readings {
		if !r.Quality.Usable() {
			continue
		}
		sum += r.Value
		n++
	}
	if n == 0 {
		return Measure{}, false
	}
	return Measure{
		Value:      sum / float64(n),
		Unit:       rec.Unit,
		Quality:    QualityOK,
		ObservedAt: rec.Timestamp,
	}, true
}

// vectorWind combines per-station speed and direction readings into one
// aggregate wind: component sums over paired stations, magnitude and bearing
// from the averaged components.
func vectorWind(speeds, directions *ReadingsRecord) (Measure, Measure, bool) {
	if speeds == nil || directions == nil {
		return Measure{}, Measure{}, false
	}
	dirByStation := make(map[string]float64, len(directions.Readings))
	for _, r := range directions.Readings {
		if r.Quality.Usable() {
			dirByStation[r.StationID] = r.Value
		}
	}

	var nsSum, ewSum float64
	var used int
	for _, r := range speeds.Readings {
		if !r.Quality.Usable() {
			continue
		}
		dir, ok := dirByStation[r.StationID]
		if !ok {
			continue
		}
		rad := (dir + 180) * math.Pi / 180
		nsSum += r.Value * math.Cos(rad)
		ewSum += r.Value * math.Sin(rad)
		used++
	}
	if used == 0 {
		return Measure{}, Measure{}, false
	}

	nsAvg := nsSum / float64(used)
	ewAvg := ewSum / float64(used)
	speed := math.Sqrt(nsAvg*nsAvg + ewAvg*ewAvg)
	bearing := math.Atan2(ewAvg, nsAvg) * 180 / math.Pi
	if bearing < 0 {
		bearing += 360
	}

	return Measure{
			Value:      speed,
			Unit:       speeds.Unit,
			Quality:    QualityOK,
			ObservedAt: speeds.Timestamp,
		}, Measure{
			Value:      bearing,
			Unit:       directions.Unit,
			Quality:    QualityOK,
			ObservedAt: directions.Timestamp,
		}, true
}

// buildRegions rolls area conditions up to regions and merges the 24-hour
// outlook and PM2.5 values.
func (a *Aggregator) buildRegions(in CycleInput, prev *Snapshot, areas map[string]AreaConditions) map[Region]RegionOutlook {
	regions := make(map[Region]RegionOutlook, 5)

	for _, region := range Regions() {
		outlook := RegionOutlook{Region: region, Condition: ConditionUnknown, Readings: make(map[Metric]Measure)}
		if prev != nil {
			if prevOutlook, ok := prev.Regions[region]; ok {
				outlook = prevOutlook
				outlook.Readings = make(map[Metric]Measure, len(prevOutlook.Readings))
				for k, v := range prevOutlook.Readings {
					outlook.Readings[k] = v
				}
			}
		}

		// Condition rollup from member areas.
		if cond, ok := a.rollupCondition(region, areas); ok {
			outlook.Condition = cond
		}

		// Numeric metrics averaged over areas with ok data only.
		for metric := range metricSources() {
			if m, ok := regionMean(region, metric, areas); ok {
				outlook.Readings[metric] = m
			}
		}

		// 24-hour outlook periods: newest issuance supersedes.
		if in.RegionForecast != nil && !regionForecastRegresses(in.RegionForecast, prev) {
			outlook.Periods = periodsFor(region, in.RegionForecast)
			outlook.UpdatedAt = in.RegionForecast.IssuedAt
		}

		if in.PM25 != nil {
			if m, ok := in.PM25.ByRegion[region]; ok && m.Quality == QualityOK {
				outlook.PM25 = m
			} else if outlook.PM25.Quality == QualityOK {
				if in.Now.Sub(outlook.PM25.ObservedAt) > a.freshness(SourcePM25) {
					outlook.PM25.Quality = QualityStale
				}
			} else if m, ok := in.PM25.ByRegion[region]; ok {
				// No usable prior value; keep the flagged measure.
				outlook.PM25 = m
			}
		} else if outlook.PM25.Quality == QualityOK &&
			in.Now.Sub(outlook.PM25.ObservedAt) > a.freshness(SourcePM25) {
			outlook.PM25.Quality = QualityStale
		}

		regions[region] = outlook
	}
	return regions
}

// regionForecastRegresses reports whether the incoming 24-hour outlook is an
// older issuance than what the previous snapshot already carries.
func regionForecastRegresses(rec *RegionForecastRecord, prev *Snapshot) bool {
	if prev == nil {
		return false
	}
	for _, outlook := range prev.Regions {
		if outlook.UpdatedAt.After(rec.IssuedAt) {
			return true
		}
	}
	return false
}

// periodsFor extracts one region's periods from the 24-hour record.
func periodsFor(region Region, rec *RegionForecastRecord) []ForecastPeriod {
	periods := make([]ForecastPeriod, 0, len(rec.Periods))
	for _, p := range rec.Periods {
		desc, ok := p.Conditions[region]
		if !ok {
			continue
		}
		periods = append(periods, ForecastPeriod{
			Label:       p.Label,
			Start:       p.Start,
			End:         p.End,
			Description: desc,
			Condition:   MapCondition(desc),
		})
	}
	return periods
}

// rollupCondition applies the configured rule over a region's member areas.
func (a *Aggregator) rollupCondition(region Region, areas map[string]AreaConditions) (Condition, bool) {
	counts := make(map[Condition]int)
	for _, ac := range areas {
		if ac.Region != string(region) || ac.Quality != QualityOK || ac.Condition == ConditionUnknown {
			continue
		}
		counts[ac.Condition]++
	}
	if len(counts) == 0 {
		return ConditionUnknown, false
	}

	conditions := make([]Condition, 0, len(counts))
	for c := range counts {
		conditions = append(conditions, c)
	}

	switch a.policy.RegionCondition {
	case RegionConditionWorst:
		sort.Slice(conditions, func(i, j int) bool {
			return conditionSeverity[conditions[i]] > conditionSeverity[conditions[j]]
		})
	default:
		sort.Slice(conditions, func(i, j int) bool {
			if counts[conditions[i]] != counts[conditions[j]] {
				return counts[conditions[i]] > counts[conditions[j]]
			}
			return conditions[i] < conditions[j]
		})
	}
	return conditions[0], true
}

// regionMean averages one metric over a region's areas with ok data. Areas
// with no ok value are excluded from the average, not treated as zero.
func regionMean(region Region, metric Metric, areas map[string]AreaConditions) (Measure, bool) {
	var sum float64
	var n int
	var unit string
	var latest time.Time
	for _, ac := range areas {
		if ac.Region != string(region) {
			continue
		}
		m, ok := ac.Readings[metric]
		if !ok || m.Quality != QualityOK {
			continue
		}
		sum += m.Value
		n++
		unit = m.Unit
		if m.ObservedAt.After(latest) {
			latest = m.ObservedAt
		}
	}
	if n == 0 {
		return Measure{}, false
	}
	return Measure{Value: sum / float64(n), Unit: unit, Quality: QualityOK, ObservedAt: latest}, true
}

// mergeForecast merges 4-day outlook issuances by day window: the most
// recently issued forecast for a day supersedes an older issuance.
func (a *Aggregator) mergeForecast(in CycleInput, prev *Snapshot) []ForecastEntry {
	byDay := make(map[string]ForecastEntry)
	if prev != nil {
		for _, e := range prev.Forecast {
			byDay[e.Date.In(SGT).Format("2006-01-02")] = e
		}
	}
	if in.Forecast4Day != nil {
		for _, e := range in.Forecast4Day.Entries {
			key := e.Date.In(SGT).Format("2006-01-02")
			if existing, ok := byDay[key]; ok && existing.IssuedAt.After(e.IssuedAt) {
				continue
			}
			byDay[key] = e
		}
	}

	merged := make([]ForecastEntry, 0, len(byDay))
	cutoff := in.Now.In(SGT).AddDate(0, 0, -1)
	for _, e := range byDay {
		if e.Date.Before(cutoff) {
			continue // drop expired days
		}
		merged = append(merged, e)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Date.Before(merged[j].Date) })
	if len(merged) > 4 {
		merged = merged[:4]
	}
	return merged
}

// mergeUV takes this cycle's UV value or carries the previous one, stale past
// its window.
func (a *Aggregator) mergeUV(in CycleInput, prev *Snapshot) Measure {
	if in.UV != nil && in.UV.Value.Quality == QualityOK {
		return in.UV.Value
	}
	if prev == nil {
		return Measure{Quality: QualityMissing, Unit: "index"}
	}
	uv := prev.UV
	if uv.Quality == QualityOK && in.Now.Sub(uv.ObservedAt) > a.freshness(SourceUV) {
		uv.Quality = QualityStale
	}
	return uv
}

// buildRainStations keys rainfall to stations. Listed stations keep their
// identity with a missing-quality measure when the payload omits them;
// unlisted stations present in the payload are included as reported.
func (a *Aggregator) buildRainStations(in CycleInput, prev *Snapshot) map[string]Measure {
	stations := make(map[string]Measure, len(a.rainStations))
	window := a.freshness(SourceRainfall)

	// Carry last known values, stale past the window.
	if prev != nil {
		for id, m := range prev.RainStations {
			if m.Quality == QualityOK && in.Now.Sub(m.ObservedAt) > window {
				m.Quality = QualityStale
			}
			stations[id] = m
		}
	}
	for _, id := range a.rainStations {
		if _, ok := stations[id]; !ok {
			stations[id] = Measure{Quality: QualityMissing, Unit: "mm"}
		}
	}

	rec := in.Readings[SourceRainfall]
	if rec == nil {
		return stations
	}

	reported := make(map[string]bool, len(rec.Readings))
	for _, r := range rec.Readings {
		reported[r.StationID] = true
		stations[r.StationID] = Measure{
			Value:      r.Value,
			Unit:       r.Unit,
			Quality:    r.Quality,
			ObservedAt: r.ObservedAt,
		}
	}
	// A listed station absent from a fresh payload is missing, not zero
	// and not a stale carry.
	for _, id := range a.rainStations {
		if !reported[id] {
			stations[id] = Measure{Quality: QualityMissing, Unit: "mm"}
		}
	}
	return stations
}

// appendRadar prepends this cycle's radar frame to the bounded sequence.
// Duplicate-timestamp frames are rejected so ingestion is idempotent.
func (a *Aggregator) appendRadar(in CycleInput, prev *Snapshot) []RadarFrame {
	var frames []RadarFrame
	if prev != nil {
		frames = prev.Radar
	}
	if in.RadarFrame == nil {
		return frames
	}

	for _, f := range frames {
		if f.Timestamp.Equal(in.RadarFrame.Timestamp) {
			return frames
		}
	}

	next := make([]RadarFrame, 0, len(frames)+1)
	next = append(next, *in.RadarFrame)
	next = append(next, frames...)
	if len(next) > a.maxRadarFrames {
		next = next[:a.maxRadarFrames]
	}
	return next
}
