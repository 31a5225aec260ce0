// Package entity projects snapshots onto host-platform entities: per-area
// condition sensors, region outlook sensors, rain gauge sensors, PM2.5 and UV
// sensors, a weather entity and a rain-map camera.
package entity

import (
	"context"
	"strings"
)

// Group names a toggleable set of entities.
type Group string

const (
	GroupAreas   Group = "areas"
	GroupRegion  Group = "region"
	GroupRain    Group = "rain"
	GroupPM25    Group = "pm25"
	GroupUV      Group = "uv"
	GroupWeather Group = "weather"
	GroupCamera  Group = "camera"
)

// AllGroups returns every entity group.
func AllGroups() []Group {
	return []Group{GroupAreas, GroupRegion, GroupRain, GroupPM25, GroupUV, GroupWeather, GroupCamera}
}

// Kind is the host-platform entity class.
type Kind string

const (
	KindSensor  Kind = "sensor"
	KindWeather Kind = "weather"
	KindCamera  Kind = "camera"
)

// Entity identifies one platform entity.
type Entity struct {
	ID    string
	Name  string
	Kind  Kind
	Group Group
}

// Update is one entity state push. Stale marks values carried past their
// freshness window so the platform can surface them as degraded rather than
// current.
type Update struct {
	Entity     Entity
	State      any
	Attributes map[string]any
	Stale      bool
}

// Registrar receives entity updates. Implemented by the host platform
// integration, faked in tests.
type Registrar interface {
	Push(ctx context.Context, updates []Update) error
}

// slug converts an NEA display name into an entity ID fragment.
func slug(name string) string {
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "'", "")
	s = strings.ReplaceAll(s, ".", "")
	return s
}
