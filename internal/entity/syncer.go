package entity

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/sgweather/sgweather/internal/snapshot"
	"github.com/sgweather/sgweather/internal/weather"
)

// SyncerConfig holds configuration for the syncer.
type SyncerConfig struct {
	// Groups are the enabled entity groups. Default: all.
	Groups []Group

	Logger zerolog.Logger
}

// Syncer pushes entity updates to the registrar whenever a snapshot is
// committed.
type Syncer struct {
	logger    zerolog.Logger
	registrar Registrar
	adapters  []Adapter
}

// NewSyncer creates a syncer for the enabled groups.
func NewSyncer(cfg SyncerConfig, registrar Registrar) *Syncer {
	groups := cfg.Groups
	if len(groups) == 0 {
		groups = AllGroups()
	}

	var adapters []Adapter
	for _, g := range groups {
		if a := adapterFor(g); a != nil {
			adapters = append(adapters, a)
		} else {
			cfg.Logger.Warn().Str("group", string(g)).Msg("unknown entity group ignored")
		}
	}
	return &Syncer{
		logger:    cfg.Logger,
		registrar: registrar,
		adapters:  adapters,
	}
}

// SyncOnce pushes all enabled groups' updates for one snapshot.
func (s *Syncer) SyncOnce(ctx context.Context, snap *weather.Snapshot) error {
	if snap == nil {
		return nil
	}
	var updates []Update
	for _, a := range s.adapters {
		updates = append(updates, a.Updates(snap)...)
	}
	if len(updates) == 0 {
		return nil
	}
	if err := s.registrar.Push(ctx, updates); err != nil {
		s.logger.Error().Err(err).Int("updates", len(updates)).Msg("entity push failed")
		return err
	}
	s.logger.Debug().
		Int("updates", len(updates)).
		Str("cycle_id", snap.CycleID).
		Msg("entities synced")
	return nil
}

// Run consumes snapshot events until the context is cancelled or the channel
// closes. Push failures are logged and do not stop the loop.
func (s *Syncer) Run(ctx context.Context, events <-chan snapshot.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			_ = s.SyncOnce(ctx, ev.Snapshot)
		}
	}
}
