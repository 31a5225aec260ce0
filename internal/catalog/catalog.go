// Package catalog holds the static Station/Area/Region catalog and resolves
// station readings to forecast areas. The catalog is loaded once and treated
// as read-only for the process lifetime.
package catalog

import (
	"errors"
	"fmt"
	"math"
	"sort"

	_ "embed"

	"gopkg.in/yaml.v3"

	"github.com/sgweather/sgweather/internal/weather"
)

//go:embed data.yaml
var rawCatalog []byte

// Resolution errors.
var (
	// ErrUnresolved is returned when a station cannot be mapped to any area
	// within the distance threshold. Callers exclude such stations from area
	// aggregation; the condition is logged, never fatal.
	ErrUnresolved = errors.New("station unresolvable to any area")
)

// Area is one of Singapore's named forecast towns.
type Area struct {
	Name   string         `yaml:"name"`
	Lat    float64        `yaml:"lat"`
	Lon    float64        `yaml:"lon"`
	Region weather.Region `yaml:"-"`
}

// Station is a static catalog entry for an NEA weather station.
type Station struct {
	ID   string  `yaml:"id"`
	Name string  `yaml:"name"`
	Lat  float64 `yaml:"lat"`
	Lon  float64 `yaml:"lon"`
}

type regionAnchor struct {
	Name string  `yaml:"name"`
	Lat  float64 `yaml:"lat"`
	Lon  float64 `yaml:"lon"`
}

type rawData struct {
	Regions  []regionAnchor `yaml:"regions"`
	Areas    []Area         `yaml:"areas"`
	Stations []Station      `yaml:"stations"`
}

// Config holds resolver tuning.
type Config struct {
	// MaxDistanceKm is the farthest a station may sit from an area centroid
	// and still resolve to it. Default: 10.
	MaxDistanceKm float64
}

// Catalog is the loaded, immutable station/area/region catalog.
type Catalog struct {
	areas         []Area
	areasByName   map[string]*Area
	stationsByID  map[string]*Station
	regions       []regionAnchor
	maxDistanceKm float64
}

// Load parses the embedded catalog data.
func Load(cfg Config) (*Catalog, error) {
	maxDistance := cfg.MaxDistanceKm
	if maxDistance == 0 {
		maxDistance = 10
	}

	var data rawData
	if err := yaml.Unmarshal(rawCatalog, &data); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(data.Areas) == 0 || len(data.Regions) == 0 {
		return nil, fmt.Errorf("catalog incomplete: %d areas, %d regions", len(data.Areas), len(data.Regions))
	}

	c := &Catalog{
		areas:         data.Areas,
		areasByName:   make(map[string]*Area, len(data.Areas)),
		stationsByID:  make(map[string]*Station, len(data.Stations)),
		regions:       data.Regions,
		maxDistanceKm: maxDistance,
	}

	for i := range c.areas {
		area := &c.areas[i]
		area.Region = c.nearestRegion(area.Lat, area.Lon)
		c.areasByName[area.Name] = area
	}
	for i := range data.Stations {
		s := &data.Stations[i]
		c.stationsByID[s.ID] = s
	}

	return c, nil
}

// Areas returns all catalog areas.
func (c *Catalog) Areas() []Area {
	return c.areas
}

// StationIDs returns every cataloged station ID, sorted.
func (c *Catalog) StationIDs() []string {
	ids := make([]string, 0, len(c.stationsByID))
	for id := range c.stationsByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AreaByName looks up an area by its NEA name.
func (c *Catalog) AreaByName(name string) (*Area, bool) {
	a, ok := c.areasByName[name]
	return a, ok
}

// StationByID looks up a station in the static catalog.
func (c *Catalog) StationByID(id string) (*Station, bool) {
	s, ok := c.stationsByID[id]
	return s, ok
}

// RegionOf returns the region an area belongs to, empty for unknown areas.
func (c *Catalog) RegionOf(areaName string) weather.Region {
	if a, ok := c.areasByName[areaName]; ok {
		return a.Region
	}
	return ""
}

// ResolveStation maps a station to its area: exact catalog id match first,
// then nearest area by the supplied coordinates. Stations beyond the distance
// threshold return ErrUnresolved.
func (c *Catalog) ResolveStation(stationID string, lat, lon float64) (*Area, error) {
	if s, ok := c.stationsByID[stationID]; ok {
		lat, lon = s.Lat, s.Lon
	}
	if lat == 0 && lon == 0 {
		return nil, fmt.Errorf("station %s: no coordinates: %w", stationID, ErrUnresolved)
	}
	return c.ResolveCoords(lat, lon)
}

// ResolveStationArea resolves a station to its area and region. It satisfies
// weather.AreaResolver.
func (c *Catalog) ResolveStationArea(stationID string, lat, lon float64) (weather.AreaRef, error) {
	area, err := c.ResolveStation(stationID, lat, lon)
	if err != nil {
		return weather.AreaRef{}, err
	}
	return weather.AreaRef{Name: area.Name, Region: area.Region}, nil
}

// ResolveCoords maps coordinates to the nearest area within the threshold.
func (c *Catalog) ResolveCoords(lat, lon float64) (*Area, error) {
	var nearest *Area
	best := math.MaxFloat64
	for i := range c.areas {
		d := haversineKm(lat, lon, c.areas[i].Lat, c.areas[i].Lon)
		if d < best {
			best = d
			nearest = &c.areas[i]
		}
	}
	if nearest == nil || best > c.maxDistanceKm {
		return nil, ErrUnresolved
	}
	return nearest, nil
}

func (c *Catalog) nearestRegion(lat, lon float64) weather.Region {
	var name string
	best := math.MaxFloat64
	for _, r := range c.regions {
		d := haversineKm(lat, lon, r.Lat, r.Lon)
		if d < best {
			best = d
			name = r.Name
		}
	}
	return weather.Region(name)
}

// haversineKm returns the great-circle distance between two points in km.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371.0

	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
