// Package snapshot holds the latest committed weather snapshot and fans
// commit notifications out to in-process subscribers.
package snapshot

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/sgweather/sgweather/internal/weather"
)

// ErrOutOfOrder is returned when a commit carries an older timestamp than the
// current snapshot. The store keeps the newer snapshot.
var ErrOutOfOrder = errors.New("snapshot: commit older than current snapshot")

// Event is delivered to subscribers on every accepted commit.
type Event struct {
	Snapshot    *weather.Snapshot
	CommittedAt time.Time
}

// StoreConfig holds configuration for the store.
type StoreConfig struct {
	Logger zerolog.Logger

	// Now is the clock, overridable in tests.
	Now func() time.Time
}

// Store is the atomic snapshot holder. Reads never block commits and always
// observe a complete snapshot or none at all.
type Store struct {
	logger zerolog.Logger
	now    func() time.Time

	current  atomic.Pointer[weather.Snapshot]
	previous atomic.Pointer[weather.Snapshot]

	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewStore creates an empty store.
func NewStore(cfg StoreConfig) *Store {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		logger: cfg.Logger,
		now:    now,
		subs:   make(map[int]chan Event),
	}
}

// Current returns the latest committed snapshot. Before the first commit it
// returns weather.ErrNotInitialized.
func (s *Store) Current() (*weather.Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, weather.ErrNotInitialized
	}
	return snap, nil
}

// Previous returns the snapshot superseded by the current one, or nil.
func (s *Store) Previous() *weather.Snapshot {
	return s.previous.Load()
}

// Commit installs a new snapshot. Commits are monotonic: a snapshot older
// than the current one is discarded with ErrOutOfOrder, and re-committing the
// current snapshot is a no-op. Subscribers are notified of accepted commits.
func (s *Store) Commit(snap *weather.Snapshot) error {
	if snap == nil {
		return errors.New("snapshot: nil commit")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cur := s.current.Load(); cur != nil {
		if snap.Timestamp.Before(cur.Timestamp) {
			s.logger.Warn().
				Time("current", cur.Timestamp).
				Time("rejected", snap.Timestamp).
				Str("cycle_id", snap.CycleID).
				Msg("out-of-order snapshot discarded")
			return ErrOutOfOrder
		}
		if snap.Timestamp.Equal(cur.Timestamp) && snap.ContentEqual(cur) {
			return nil
		}
		s.previous.Store(cur)
	}
	s.current.Store(snap)

	committedAt := s.now()
	s.logger.Debug().
		Time("timestamp", snap.Timestamp).
		Str("cycle_id", snap.CycleID).
		Int("areas", len(snap.Areas)).
		Msg("snapshot committed")

	ev := Event{Snapshot: snap, CommittedAt: committedAt}
	for _, ch := range s.subs {
		// Conflate: a slow subscriber sees only the newest event.
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
	return nil
}

// Subscribe registers for commit events. The channel is buffered and
// conflating, so slow consumers never block commits. The returned cancel
// function closes the channel.
func (s *Store) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.next
	s.next++
	ch := make(chan Event, 1)
	s.subs[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}
