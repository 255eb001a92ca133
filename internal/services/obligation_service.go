package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bevanyudira/IPBB-sub000/internal/logger"
	"github.com/bevanyudira/IPBB-sub000/internal/nop"
	"github.com/bevanyudira/IPBB-sub000/internal/obligation"
	"github.com/bevanyudira/IPBB-sub000/internal/penalty"
	"github.com/bevanyudira/IPBB-sub000/internal/report"
)

// DefaultSettleTimeout bounds how long Summary waits for all years.
const DefaultSettleTimeout = 30 * time.Second

// Service-level errors
var (
	ErrInvalidNOP = errors.New("invalid NOP")
	ErrNoData     = errors.New("no data available for this identifier")
	ErrNoSession  = errors.New("no obligation session for viewer")
)

// ObligationService defines the business operations over tax objects and
// their multi-year obligations.
type ObligationService interface {
	// DecodeNOP normalizes and validates a raw or dot-formatted NOP.
	// Returns an error wrapping ErrInvalidNOP and a *nop.DecodeError.
	DecodeNOP(raw string) (nop.TaxObjectID, error)

	// EncodeNOP assembles and validates a NOP from its components.
	EncodeNOP(c nop.Components) (nop.TaxObjectID, error)

	// QuotePenalty computes the penalty breakdown for in. A zero AsOf means now.
	QuotePenalty(in penalty.Input) penalty.Quote

	// Summary loads every tax year of raw and waits for them to settle.
	// If the settle timeout expires first, the partial report is returned
	// with Complete=false. Returns ErrNoData when no year can be listed.
	Summary(ctx context.Context, raw string) (report.Report, error)

	// StartViewing starts a live session for the viewer, cancelling the one
	// it replaces, and returns its first snapshot.
	StartViewing(ctx context.Context, viewer, raw string) (obligation.Snapshot, error)

	// CurrentView returns the viewer's live snapshot or ErrNoSession.
	CurrentView(viewer string) (obligation.Snapshot, error)

	// StopViewing cancels the viewer's session. It reports whether one existed.
	StopViewing(viewer string) bool

	// SessionView returns the snapshot of a retained session by ID, whether
	// or not it is still some viewer's current one. Returns ErrNoSession
	// once it has been evicted.
	SessionView(id string) (obligation.Snapshot, error)

	// Export writes the Summary report of raw as an XLSX workbook.
	Export(ctx context.Context, raw string, w io.Writer) (report.Report, error)
}

// obligationService is the concrete implementation of ObligationService.
type obligationService struct {
	agg           *obligation.Aggregator
	tracker       *obligation.Tracker
	calc          *penalty.Calculator
	settleTimeout time.Duration
	now           func() time.Time
	log           *logger.Logger
}

// NewObligationService creates a new instance of ObligationService.
func NewObligationService(
	agg *obligation.Aggregator,
	tracker *obligation.Tracker,
	calc *penalty.Calculator,
	settleTimeout time.Duration,
	log *logger.Logger,
) ObligationService {
	if settleTimeout <= 0 {
		settleTimeout = DefaultSettleTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &obligationService{
		agg:           agg,
		tracker:       tracker,
		calc:          calc,
		settleTimeout: settleTimeout,
		now:           time.Now,
		log:           log,
	}
}

func (s *obligationService) DecodeNOP(raw string) (nop.TaxObjectID, error) {
	id, err := nop.Decode(nop.Normalize(raw))
	if err != nil {
		s.log.Debug("Rejected NOP", map[string]interface{}{
			"nop":   raw,
			"error": err.Error(),
		})
		return nop.TaxObjectID{}, fmt.Errorf("%w: %w", ErrInvalidNOP, err)
	}
	return id, nil
}

func (s *obligationService) EncodeNOP(c nop.Components) (nop.TaxObjectID, error) {
	raw, err := nop.Encode(c)
	if err != nil {
		return nop.TaxObjectID{}, fmt.Errorf("%w: %w", ErrInvalidNOP, err)
	}
	return s.DecodeNOP(raw)
}

func (s *obligationService) QuotePenalty(in penalty.Input) penalty.Quote {
	if in.AsOf.IsZero() {
		in.AsOf = s.now()
	}
	return s.calc.Quote(in)
}

func (s *obligationService) Summary(ctx context.Context, raw string) (report.Report, error) {
	id, err := s.DecodeNOP(raw)
	if err != nil {
		return report.Report{}, err
	}
	log := s.log.WithNOP(id.String())

	sess, err := s.agg.Start(ctx, id)
	if err != nil {
		return report.Report{}, s.mapStartError(err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.settleTimeout)
	defer cancel()

	snap, err := sess.Wait(waitCtx)
	if err != nil {
		// The caller only gets one answer, so stop fetching what is left.
		sess.Cancel()
		log.Warn("Obligation summary returned before all years settled", map[string]interface{}{
			"session_id":    sess.ID(),
			"error":         err.Error(),
			"years_loading": snap.Rollup.YearsLoading,
		})
	}

	rep := report.Project(snap)
	log.Info("Obligation summary built", map[string]interface{}{
		"session_id": sess.ID(),
		"years":      len(rep.Rows),
		"complete":   rep.Complete,
		"total_owed": rep.Rollup.TotalOwed,
	})
	return rep, nil
}

func (s *obligationService) StartViewing(ctx context.Context, viewer, raw string) (obligation.Snapshot, error) {
	id, err := s.DecodeNOP(raw)
	if err != nil {
		return obligation.Snapshot{}, err
	}

	sess, err := s.tracker.Load(ctx, viewer, id)
	if err != nil {
		return obligation.Snapshot{}, s.mapStartError(err)
	}

	s.log.Info("Viewer started obligation session", map[string]interface{}{
		"viewer":     viewer,
		"nop":        id.String(),
		"session_id": sess.ID(),
	})
	return sess.Snapshot(), nil
}

func (s *obligationService) CurrentView(viewer string) (obligation.Snapshot, error) {
	sess, ok := s.tracker.Current(viewer)
	if !ok {
		return obligation.Snapshot{}, ErrNoSession
	}
	return sess.Snapshot(), nil
}

func (s *obligationService) StopViewing(viewer string) bool {
	stopped := s.tracker.Cancel(viewer)
	if stopped {
		s.log.Debug("Viewer cancelled obligation session", map[string]interface{}{
			"viewer": viewer,
		})
	}
	return stopped
}

func (s *obligationService) SessionView(id string) (obligation.Snapshot, error) {
	sess, ok := s.tracker.Session(id)
	if !ok {
		return obligation.Snapshot{}, ErrNoSession
	}
	return sess.Snapshot(), nil
}

func (s *obligationService) Export(ctx context.Context, raw string, w io.Writer) (report.Report, error) {
	rep, err := s.Summary(ctx, raw)
	if err != nil {
		return report.Report{}, err
	}
	if err := report.WriteXLSX(w, rep); err != nil {
		s.log.Error("Failed to write obligation workbook", err, map[string]interface{}{
			"nop": rep.NOP,
		})
		return report.Report{}, fmt.Errorf("failed to export obligations: %w", err)
	}
	return rep, nil
}

func (s *obligationService) mapStartError(err error) error {
	if errors.Is(err, obligation.ErrNoData) {
		return fmt.Errorf("%w: %w", ErrNoData, err)
	}
	return err
}
