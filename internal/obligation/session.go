package obligation

import (
	"context"
	"sync"
	"time"

	"github.com/bevanyudira/IPBB-sub000/internal/logger"
	"github.com/bevanyudira/IPBB-sub000/internal/metrics"
	"github.com/bevanyudira/IPBB-sub000/internal/models"
	"github.com/bevanyudira/IPBB-sub000/internal/nop"
)

// State is the lifecycle stage of a Session.
type State string

// A session moves Populating -> Settled, or Populating -> Cancelled. Years
// are listed inside Aggregator.Start before the session exists, so a
// snapshot is never observed in an earlier stage.
const (
	StatePopulating State = "populating"
	StateSettled    State = "settled"
	StateCancelled  State = "cancelled"
)

// Snapshot is an immutable copy of a session's rows and rollup.
type Snapshot struct {
	SessionID string                  `json:"session_id"`
	NOP       string                  `json:"nop"`
	State     State                   `json:"state"`
	Batch     int                     `json:"batch"`
	Batches   int                     `json:"batches"`
	Rows      []models.TaxYearSummary `json:"rows"`
	Rollup    models.ObligationRollup `json:"rollup"`
	StartedAt time.Time               `json:"started_at"`
	SettledAt *time.Time              `json:"settled_at,omitempty"`
}

func (s Snapshot) clone() Snapshot {
	c := s
	c.Rows = make([]models.TaxYearSummary, len(s.Rows))
	for i, row := range s.Rows {
		c.Rows[i] = row.Clone()
	}
	if s.SettledAt != nil {
		t := *s.SettledAt
		c.SettledAt = &t
	}
	return c
}

// Finished reports whether the session has stopped populating rows.
func (s Snapshot) Finished() bool {
	return s.State == StateSettled || s.State == StateCancelled
}

// rowUpdate carries the settled row for one index. Each session has its own
// update channel, and only the owner goroutine applies what arrives on it.
type rowUpdate struct {
	index   int
	row     models.TaxYearSummary
	outcome string
}

// Session is one "view a tax object" run.
type Session struct {
	id  string
	nop nop.TaxObjectID

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	// owned by the run goroutine
	rows []models.TaxYearSummary

	mu       sync.RWMutex
	snapshot Snapshot
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// NOP returns the tax object being loaded.
func (s *Session) NOP() nop.TaxObjectID { return s.nop }

// State returns the current lifecycle stage.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.State
}

// Snapshot returns a copy of the rows and rollup as of now.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.clone()
}

// Done is closed once every row has settled or the session was cancelled and
// its in-flight fetches have returned.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the session is done or ctx expires. It returns the last
// snapshot along with ctx.Err() on expiry or ErrSessionCancelled for a
// cancelled session.
func (s *Session) Wait(ctx context.Context) (Snapshot, error) {
	select {
	case <-s.done:
		snap := s.Snapshot()
		if snap.State == StateCancelled {
			return snap, ErrSessionCancelled
		}
		return snap, nil
	case <-ctx.Done():
		return s.Snapshot(), ctx.Err()
	}
}

// Cancel abandons the session. Results that arrive afterwards are dropped.
// Cancelling a settled session has no effect.
func (s *Session) Cancel() {
	s.cancel()
}

func (s *Session) setBatch(batch int) {
	s.mu.Lock()
	s.snapshot.Batch = batch
	s.mu.Unlock()
}

// publish stores a fresh snapshot of the owned rows. Called by the owner only.
func (s *Session) publish() {
	rows := make([]models.TaxYearSummary, len(s.rows))
	for i, row := range s.rows {
		rows[i] = row.Clone()
	}
	rollup := models.Rollup(rows)

	s.mu.Lock()
	s.snapshot.Rows = rows
	s.snapshot.Rollup = rollup
	s.mu.Unlock()
}

func (s *Session) loading() bool {
	for _, row := range s.rows {
		if row.Loading {
			return true
		}
	}
	return false
}

// run is the owner loop. It applies row updates until the channel is closed
// by the batch driver, then marks the session finished.
func (s *Session) run(updates <-chan rowUpdate) {
	defer close(s.done)

	discarded := 0
	for u := range updates {
		if s.ctx.Err() != nil {
			discarded++
			continue
		}
		s.rows[u.index] = u.row
		s.metrics.IncYearOutcome(u.outcome)
		s.publish()
	}

	// A cancel that lands after the last row was applied changes nothing.
	state := StateSettled
	if s.ctx.Err() != nil && s.loading() {
		state = StateCancelled
	}
	settledAt := s.now()

	s.mu.Lock()
	s.snapshot.State = state
	s.snapshot.SettledAt = &settledAt
	rollup := s.snapshot.Rollup
	s.mu.Unlock()

	s.metrics.SessionFinished(string(state))
	// Release the context once nothing else can use it.
	s.cancel()

	s.log.Info("Obligation session finished", map[string]interface{}{
		"session_id":        s.id,
		"state":             state,
		"years":             len(s.rows),
		"years_failed":      rollup.YearsFailed,
		"discarded_updates": discarded,
		"total_owed":        rollup.TotalOwed,
	})
}
