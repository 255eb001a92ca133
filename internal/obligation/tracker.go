package obligation

import (
	"context"
	"sync"
	"time"

	"github.com/bevanyudira/IPBB-sub000/internal/nop"
)

// DefaultRetention is how long a finished session stays retrievable by ID.
const DefaultRetention = 10 * time.Minute

// Tracker holds the current session of each viewer. Loading a new NOP for a
// viewer cancels the session it replaces.
type Tracker struct {
	agg       *Aggregator
	retention time.Duration
	now       func() time.Time

	mu       sync.Mutex
	current  map[string]*Session
	viewSeq  map[string]uint64
	sessions map[string]*Session
	closed   bool
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithRetention sets how long finished sessions are kept.
func WithRetention(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		if d > 0 {
			t.retention = d
		}
	}
}

// WithTrackerClock sets the clock used for eviction.
func WithTrackerClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTracker creates a Tracker that starts sessions on agg.
func NewTracker(agg *Aggregator, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		agg:       agg,
		retention: DefaultRetention,
		now:       time.Now,
		current:   make(map[string]*Session),
		viewSeq:   make(map[string]uint64),
		sessions:  make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Load cancels the viewer's current session and starts one for id.
//
// If another Load for the same viewer wins the race, the session started here
// is cancelled before it is returned.
func (t *Tracker) Load(ctx context.Context, viewer string, id nop.TaxObjectID) (*Session, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, ErrSessionCancelled
	}
	t.viewSeq[viewer]++
	seq := t.viewSeq[viewer]
	if prev, ok := t.current[viewer]; ok {
		prev.Cancel()
		delete(t.current, viewer)
	}
	t.mu.Unlock()

	s, err := t.agg.Start(ctx, id)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.sessions[s.ID()] = s
	if t.closed || t.viewSeq[viewer] != seq {
		s.Cancel()
		return s, nil
	}
	t.current[viewer] = s
	t.evictLocked()
	return s, nil
}

// Current returns the viewer's current session.
func (t *Tracker) Current(viewer string) (*Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.current[viewer]
	return s, ok
}

// Cancel cancels the viewer's current session. It reports whether there was one.
func (t *Tracker) Cancel(viewer string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.viewSeq[viewer]++
	s, ok := t.current[viewer]
	if !ok {
		return false
	}
	s.Cancel()
	delete(t.current, viewer)
	return true
}

// Session looks up a session by ID.
func (t *Tracker) Session(id string) (*Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.evictLocked()
	s, ok := t.sessions[id]
	return s, ok
}

// retained returns the number of sessions still retrievable by ID.
func (t *Tracker) retained() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// Close cancels every session and rejects further loads.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	for _, s := range t.sessions {
		s.Cancel()
	}
	clear(t.current)
}

// evictLocked drops finished sessions older than the retention period that
// are no longer any viewer's current session.
func (t *Tracker) evictLocked() {
	cutoff := t.now().Add(-t.retention)
	live := make(map[*Session]struct{}, len(t.current))
	for _, s := range t.current {
		live[s] = struct{}{}
	}
	for id, s := range t.sessions {
		if _, ok := live[s]; ok {
			continue
		}
		snap := s.Snapshot()
		if snap.SettledAt != nil && snap.SettledAt.Before(cutoff) {
			delete(t.sessions, id)
		}
	}
}
