package telemetry

import (
	"sync"
	"time"

	"github.com/mizuna-io/mizuna/internal/remote/connectivity"
)

// UpdateListener is called after a feed's outcome is written.
type UpdateListener func(feed string, snap Snapshot)

// Store is the shared telemetry snapshot. Each feed writes only its own
// fields; readers always get a consistent copy.
type Store struct {
	mu        sync.RWMutex
	snap      Snapshot
	listeners []UpdateListener
}

// NewStore creates a Store with every feed Pending.
func NewStore(feeds ...string) *Store {
	s := &Store{snap: Snapshot{Feeds: make(map[string]FeedStatus, len(feeds))}}
	for _, f := range feeds {
		s.snap.Feeds[f] = FeedStatus{Outcome: connectivity.Pending}
	}
	return s
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.clone()
}

// Subscribe registers fn for updates.
func (s *Store) Subscribe(fn UpdateListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// succeed applies a decoded reading and marks feed Success.
func (s *Store) succeed(feed string, at time.Time, apply func(*Snapshot)) {
	s.write(feed, func(snap *Snapshot) {
		apply(snap)
		snap.Feeds[feed] = FeedStatus{LastUpdated: at, LastAttempt: at, Outcome: connectivity.Success}
	})
}

// fail marks feed Failure and keeps every reading.
func (s *Store) fail(feed string, at time.Time, err error) {
	s.write(feed, func(snap *Snapshot) {
		st := snap.Feeds[feed]
		st.LastAttempt = at
		st.Outcome = connectivity.Failure
		st.LastError = err.Error()
		snap.Feeds[feed] = st
	})
}

func (s *Store) write(feed string, fn func(*Snapshot)) {
	s.mu.Lock()
	fn(&s.snap)
	snap := s.snap.clone()
	listeners := append([]UpdateListener(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(feed, snap)
	}
}
