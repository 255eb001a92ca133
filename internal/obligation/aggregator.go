package obligation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bevanyudira/IPBB-sub000/internal/logger"
	"github.com/bevanyudira/IPBB-sub000/internal/metrics"
	"github.com/bevanyudira/IPBB-sub000/internal/models"
	"github.com/bevanyudira/IPBB-sub000/internal/nop"
	"github.com/bevanyudira/IPBB-sub000/internal/penalty"
)

const (
	// DefaultBatchSize is the number of tax years fetched concurrently.
	DefaultBatchSize = 5

	// DefaultFetchTimeout bounds each remote call.
	DefaultFetchTimeout = 10 * time.Second
)

// Aggregator starts obligation sessions against a Fetcher.
type Aggregator struct {
	fetcher      Fetcher
	calc         *penalty.Calculator
	log          *logger.Logger
	metrics      *metrics.Metrics
	batchSize    int
	fetchTimeout time.Duration
	now          func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithBatchSize sets how many years are fetched at once. Values below 1 are ignored.
func WithBatchSize(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.batchSize = n
		}
	}
}

// WithFetchTimeout sets the per-call timeout. Values below 1 are ignored.
func WithFetchTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.fetchTimeout = d
		}
	}
}

// WithClock sets the clock used as the penalty as-of date.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithMetrics records session and year outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Aggregator) {
		a.metrics = m
	}
}

// New creates an Aggregator. A nil calc uses the default penalty rules.
func New(fetcher Fetcher, calc *penalty.Calculator, log *logger.Logger, opts ...Option) *Aggregator {
	if calc == nil {
		calc = penalty.New(penalty.DefaultRules())
	}
	if log == nil {
		log = logger.Nop()
	}
	a := &Aggregator{
		fetcher:      fetcher,
		calc:         calc,
		log:          log,
		batchSize:    DefaultBatchSize,
		fetchTimeout: DefaultFetchTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// BatchSize returns the configured batch size.
func (a *Aggregator) BatchSize() int { return a.batchSize }

// Start lists the tax years of id and returns a live session whose rows are
// populated in the background. ctx bounds the listing call only; the session
// runs until it settles or is cancelled.
//
// A listing failure, or a listing with no years, returns ErrNoData.
func (a *Aggregator) Start(ctx context.Context, id nop.TaxObjectID) (*Session, error) {
	log := a.log.WithNOP(id.String())

	listCtx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
	listing, err := a.fetcher.ListTaxYears(listCtx, id.String())
	cancel()

	if err != nil {
		a.metrics.SessionFailed()
		log.Warn("Failed to list tax years", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, fmt.Errorf("%w: %w", ErrNoData, err)
	}

	years := dedupeYears(listing)
	if len(years) == 0 {
		a.metrics.SessionFailed()
		log.Info("No tax years listed", nil)
		return nil, ErrNoData
	}

	sessCtx, sessCancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &Session{
		id:      uuid.NewString(),
		nop:     id,
		ctx:     sessCtx,
		cancel:  sessCancel,
		done:    make(chan struct{}),
		metrics: a.metrics,
		now:     a.now,
		rows:    make([]models.TaxYearSummary, len(years)),
	}
	s.log = log.With(map[string]interface{}{"session_id": s.id})

	for i, y := range years {
		s.rows[i] = models.TaxYearSummary{
			Year:         y.Year,
			TaxpayerName: y.TaxpayerName,
			AmountDue:    y.AmountDue,
			Loading:      true,
		}
	}
	s.snapshot = Snapshot{
		SessionID: s.id,
		NOP:       id.String(),
		State:     StatePopulating,
		Batches:   (len(years) + a.batchSize - 1) / a.batchSize,
		StartedAt: a.now(),
	}
	s.publish()

	a.metrics.SessionStarted()
	s.log.Info("Obligation session started", map[string]interface{}{
		"years":      len(years),
		"batch_size": a.batchSize,
	})

	updates := make(chan rowUpdate, a.batchSize)
	go s.run(updates)
	go a.populate(s, years, updates)

	return s, nil
}

// dedupeYears keeps the first occurrence of every non-empty year in source order.
func dedupeYears(listing []models.YearListing) []models.YearListing {
	seen := make(map[string]struct{}, len(listing))
	years := make([]models.YearListing, 0, len(listing))
	for _, y := range listing {
		if y.Year == "" {
			continue
		}
		if _, dup := seen[y.Year]; dup {
			continue
		}
		seen[y.Year] = struct{}{}
		years = append(years, y)
	}
	return years
}

// populate runs the batches in order. Every worker of a batch must return
// before the next batch starts, and no batch starts after cancellation.
func (a *Aggregator) populate(s *Session, years []models.YearListing, updates chan<- rowUpdate) {
	defer close(updates)

	for batch, from := 1, 0; from < len(years); batch, from = batch+1, from+a.batchSize {
		if s.ctx.Err() != nil {
			s.log.Debug("Session cancelled, skipping remaining batches", map[string]interface{}{
				"next_batch": batch,
			})
			return
		}
		to := min(from+a.batchSize, len(years))
		s.setBatch(batch)

		// Workers report through updates and always return nil, so Wait
		// means every year of the batch has settled.
		var g errgroup.Group
		for i := from; i < to; i++ {
			g.Go(func() error {
				updates <- a.populateYear(s, i, years[i])
				return nil
			})
		}
		_ = g.Wait()
	}
}

// populateYear fetches the detail then the payment history of one year and
// returns the settled row.
func (a *Aggregator) populateYear(s *Session, index int, listing models.YearListing) rowUpdate {
	id := s.nop.String()
	row := models.TaxYearSummary{
		Year:         listing.Year,
		TaxpayerName: listing.TaxpayerName,
		AmountDue:    listing.AmountDue,
	}
	u := rowUpdate{index: index}

	detail, err := a.fetchDetail(s.ctx, listing.Year, id)
	if err != nil {
		row.Error = true
		row.ErrorMessage = err.Error()
		u.row, u.outcome = row, metrics.OutcomeError
		if s.ctx.Err() == nil {
			s.log.Warn("Failed to load tax year", map[string]interface{}{
				"year":  listing.Year,
				"error": err.Error(),
			})
		}
		return u
	}
	mergeDetail(&row, detail)
	u.outcome = metrics.OutcomeOK

	payment, err := a.fetchPayment(s.ctx, listing.Year, id)
	switch {
	case err != nil:
		row.PaymentUnavailable = true
		u.outcome = metrics.OutcomePaymentUnavailable
		if s.ctx.Err() == nil {
			s.log.Warn("Payment history unavailable", map[string]interface{}{
				"year":  listing.Year,
				"error": err.Error(),
			})
		}
	case payment != nil:
		mergePayment(&row, payment)
	}

	row.Penalty = a.calc.ComputePenalty(row.AmountDue, row.DueDate, row.Paid, s.nop.RegionCode(), a.now())
	u.row = row
	return u
}

func (a *Aggregator) fetchDetail(ctx context.Context, year, id string) (*models.TaxYearDetail, error) {
	ctx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
	defer cancel()

	detail, err := a.fetcher.GetTaxYearDetail(ctx, year, id)
	if err == nil && detail == nil {
		err = fmt.Errorf("empty tax year detail for %s", year)
	}
	return detail, err
}

func (a *Aggregator) fetchPayment(ctx context.Context, year, id string) (*models.PaymentDetail, error) {
	ctx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
	defer cancel()

	return a.fetcher.GetPaymentDetail(ctx, year, id)
}

func mergeDetail(row *models.TaxYearSummary, d *models.TaxYearDetail) {
	if d.TaxpayerName != "" {
		row.TaxpayerName = d.TaxpayerName
	}
	row.DueDate = d.DueDate.Ptr()
	row.LandArea = d.LandArea
	row.BuildingArea = d.BuildingArea
	row.LandNJOP = d.LandNJOP
	row.BuildingNJOP = d.BuildingNJOP
	row.AmountDue = d.AmountDue
	row.Paid = bool(d.PaymentStatus)
}

func mergePayment(row *models.TaxYearSummary, p *models.PaymentDetail) {
	row.TotalPaid = p.TotalPaid
	if p.TotalPenaltyPaid != nil {
		row.TotalPenaltyPaid = *p.TotalPenaltyPaid
	}
	if len(p.PaymentDates) > 0 {
		row.PaymentDates = make([]time.Time, 0, len(p.PaymentDates))
		for _, d := range p.PaymentDates {
			if !d.IsZero() {
				row.PaymentDates = append(row.PaymentDates, d.Time)
			}
		}
	}
}
