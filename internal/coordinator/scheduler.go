package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"github.com/sgweather/sgweather/internal/weather"
)

// Scheduler drives RunCycle on a fixed tick. Singleton mode guarantees ticks
// never overlap even when a cycle outruns the interval.
type Scheduler struct {
	scheduler *gocron.Scheduler
	coord     *Coordinator
	interval  time.Duration
	logger    zerolog.Logger
}

// NewScheduler creates a scheduler ticking at the given interval.
func NewScheduler(coord *Coordinator, interval time.Duration, logger zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		coord:     coord,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the refresh job and starts ticking in the background.
func (s *Scheduler) Start() error {
	_, err := s.scheduler.Every(s.interval).SingletonMode().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*s.interval)
		defer cancel()

		if err := s.coord.RunCycle(ctx); err != nil {
			if errors.Is(err, weather.ErrAllSourcesFailed) {
				s.logger.Warn().Msg("refresh cycle produced no data")
				return
			}
			s.logger.Error().Err(err).Msg("refresh cycle failed")
		}
	})
	if err != nil {
		return err
	}
	s.scheduler.StartAsync()
	return nil
}

// Stop halts the tick and waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}
