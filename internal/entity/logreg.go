package entity

import (
	"context"

	"github.com/rs/zerolog"
)

// LogRegistrar writes entity updates to the log. It stands in when the
// daemon runs without a host platform integration.
type LogRegistrar struct {
	Logger zerolog.Logger
}

func (r LogRegistrar) Push(_ context.Context, updates []Update) error {
	for _, u := range updates {
		ev := r.Logger.Debug().
			Str("entity", u.Entity.ID).
			Str("group", string(u.Entity.Group))
		if u.State != nil {
			ev = ev.Interface("state", u.State)
		}
		if u.Stale {
			ev = ev.Bool("stale", true)
		}
		ev.Msg("entity update")
	}
	return nil
}
