package entity

import (
	"fmt"
	"sort"

	"github.com/sgweather/sgweather/internal/weather"
)

// Adapter builds one group's updates from a snapshot.
type Adapter interface {
	Group() Group
	Updates(snap *weather.Snapshot) []Update
}

// adapterFor returns the adapter for a group, nil for unknown groups.
func adapterFor(group Group) Adapter {
	switch group {
	case GroupAreas:
		return areaAdapter{}
	case GroupRegion:
		return regionAdapter{}
	case GroupRain:
		return rainAdapter{}
	case GroupPM25:
		return pm25Adapter{}
	case GroupUV:
		return uvAdapter{}
	case GroupWeather:
		return weatherAdapter{}
	case GroupCamera:
		return cameraAdapter{}
	default:
		return nil
	}
}

// measureAttrs renders a measure into attributes, keeping absent values
// absent instead of zero. Stale values are kept with a staleness marker.
func measureAttrs(attrs map[string]any, key string, m weather.Measure) {
	if m.Quality != weather.QualityOK && m.Quality != weather.QualityStale {
		return
	}
	attrs[key] = m.Value
	attrs[key+"_unit"] = m.Unit
	if m.Quality == weather.QualityStale {
		attrs[key+"_stale"] = true
	}
}

type areaAdapter struct{}

func (areaAdapter) Group() Group { return GroupAreas }

func (areaAdapter) Updates(snap *weather.Snapshot) []Update {
	names := make([]string, 0, len(snap.Areas))
	for name := range snap.Areas {
		names = append(names, name)
	}
	sort.Strings(names)

	updates := make([]Update, 0, len(names))
	for _, name := range names {
		ac := snap.Areas[name]
		attrs := map[string]any{
			"condition": string(ac.Condition),
			"icon_code": ac.IconCode,
			"region":    ac.Region,
			"latitude":  ac.Lat,
			"longitude": ac.Lon,
		}
		if !ac.UpdatedAt.IsZero() {
			attrs["updated_at"] = ac.UpdatedAt
		}
		for metric, m := range ac.Readings {
			measureAttrs(attrs, string(metric), m)
		}
		updates = append(updates, Update{
			Entity: Entity{
				ID:    "sgweather_" + slug(name),
				Name:  name,
				Kind:  KindSensor,
				Group: GroupAreas,
			},
			State:      ac.Description,
			Attributes: attrs,
			Stale:      ac.Quality == weather.QualityStale,
		})
	}
	return updates
}

type regionAdapter struct{}

func (regionAdapter) Group() Group { return GroupRegion }

func (regionAdapter) Updates(snap *weather.Snapshot) []Update {
	updates := make([]Update, 0, len(snap.Regions))
	for _, region := range weather.Regions() {
		outlook, ok := snap.Regions[region]
		if !ok {
			continue
		}
		periods := make([]map[string]any, 0, len(outlook.Periods))
		for _, p := range outlook.Periods {
			periods = append(periods, map[string]any{
				"label":       p.Label,
				"start":       p.Start,
				"end":         p.End,
				"description": p.Description,
				"condition":   string(p.Condition),
			})
		}
		attrs := map[string]any{"periods": periods}
		measureAttrs(attrs, "pm25", outlook.PM25)
		for metric, m := range outlook.Readings {
			measureAttrs(attrs, string(metric), m)
		}

		state := any(string(outlook.Condition))
		if len(outlook.Periods) > 0 {
			state = outlook.Periods[0].Description
		}
		updates = append(updates, Update{
			Entity: Entity{
				ID:    "sgweather_region_" + string(region),
				Name:  string(region),
				Kind:  KindSensor,
				Group: GroupRegion,
			},
			State:      state,
			Attributes: attrs,
		})
	}
	return updates
}

type rainAdapter struct{}

func (rainAdapter) Group() Group { return GroupRain }

func (rainAdapter) Updates(snap *weather.Snapshot) []Update {
	ids := make([]string, 0, len(snap.RainStations))
	for id := range snap.RainStations {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	updates := make([]Update, 0, len(ids))
	for _, id := range ids {
		m := snap.RainStations[id]
		attrs := map[string]any{
			"station_id": id,
			"quality":    string(m.Quality),
		}
		var state any
		if m.Quality.Usable() {
			state = m.Value
			attrs["unit"] = m.Unit
		}
		updates = append(updates, Update{
			Entity: Entity{
				ID:    "sgweather_rain_" + slug(id),
				Name:  fmt.Sprintf("Rainfall %s", id),
				Kind:  KindSensor,
				Group: GroupRain,
			},
			State:      state,
			Attributes: attrs,
			Stale:      m.Quality == weather.QualityStale,
		})
	}
	return updates
}

type pm25Adapter struct{}

func (pm25Adapter) Group() Group { return GroupPM25 }

func (pm25Adapter) Updates(snap *weather.Snapshot) []Update {
	updates := make([]Update, 0, len(snap.Regions))
	for _, region := range weather.Regions() {
		outlook, ok := snap.Regions[region]
		if !ok {
			continue
		}
		m := outlook.PM25
		attrs := map[string]any{"quality": string(m.Quality)}
		var state any
		if m.Quality.Usable() {
			state = m.Value
			attrs["unit"] = m.Unit
		}
		updates = append(updates, Update{
			Entity: Entity{
				ID:    "sgweather_pm25_" + string(region),
				Name:  fmt.Sprintf("PM2.5 %s", region),
				Kind:  KindSensor,
				Group: GroupPM25,
			},
			State:      state,
			Attributes: attrs,
			Stale:      m.Quality == weather.QualityStale,
		})
	}
	return updates
}

type uvAdapter struct{}

func (uvAdapter) Group() Group { return GroupUV }

func (uvAdapter) Updates(snap *weather.Snapshot) []Update {
	m := snap.UV
	attrs := map[string]any{"quality": string(m.Quality)}
	var state any
	if m.Quality.Usable() {
		state = m.Value
		if !m.ObservedAt.IsZero() {
			attrs["observed_at"] = m.ObservedAt
		}
	}
	return []Update{{
		Entity: Entity{
			ID:    "sgweather_uv_index",
			Name:  "UV Index",
			Kind:  KindSensor,
			Group: GroupUV,
		},
		State:      state,
		Attributes: attrs,
		Stale:      m.Quality == weather.QualityStale,
	}}
}

type weatherAdapter struct{}

func (weatherAdapter) Group() Group { return GroupWeather }

func (weatherAdapter) Updates(snap *weather.Snapshot) []Update {
	attrs := map[string]any{
		"description": snap.National.Description,
	}
	measureAttrs(attrs, "temperature", snap.National.Temperature)
	measureAttrs(attrs, "humidity", snap.National.Humidity)
	measureAttrs(attrs, "wind_speed", snap.National.WindSpeed)
	measureAttrs(attrs, "wind_bearing", snap.National.WindBearing)

	forecast := make([]map[string]any, 0, len(snap.Forecast))
	for _, e := range snap.Forecast {
		forecast = append(forecast, map[string]any{
			"date":        e.Date,
			"condition":   string(e.Condition),
			"description": e.Description,
			"temp_low":    e.TempLow,
			"temp_high":   e.TempHigh,
			"wind_low":    e.WindSpeedLow,
			"wind_high":   e.WindSpeedHigh,
		})
	}
	attrs["forecast"] = forecast

	return []Update{{
		Entity: Entity{
			ID:    "sgweather",
			Name:  "Singapore Weather",
			Kind:  KindWeather,
			Group: GroupWeather,
		},
		State:      string(snap.National.Condition),
		Attributes: attrs,
	}}
}

type cameraAdapter struct{}

func (cameraAdapter) Group() Group { return GroupCamera }

func (cameraAdapter) Updates(snap *weather.Snapshot) []Update {
	attrs := map[string]any{}
	var state any
	if len(snap.Radar) > 0 {
		state = snap.Radar[0].URL
		attrs["frame_timestamp"] = snap.Radar[0].Timestamp
		sequence := make([]string, 0, len(snap.Radar))
		for _, f := range snap.Radar {
			sequence = append(sequence, f.URL)
		}
		attrs["sequence"] = sequence
	}
	return []Update{{
		Entity: Entity{
			ID:    "sgweather_rain_map",
			Name:  "Rain Map",
			Kind:  KindCamera,
			Group: GroupCamera,
		},
		State:      state,
		Attributes: attrs,
	}}
}
