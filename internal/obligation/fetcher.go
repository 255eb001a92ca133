// Package obligation loads every tax year of a NOP into per-year summary rows
// and keeps the rollup of what is paid, outstanding and owed as penalty.
//
// A Session is created once the tax-year listing succeeds. Its rows start in
// the loading state and are filled in by background workers in fixed-size
// batches. All row writes go through a single owner goroutine per session, so
// readers only ever see consistent snapshots.
package obligation

import (
	"context"
	"errors"

	"github.com/bevanyudira/IPBB-sub000/internal/models"
)

var (
	// ErrNoData is returned when the tax years of a NOP cannot be listed.
	ErrNoData = errors.New("no data available for this tax object")

	// ErrSessionCancelled is returned by Session.Wait for a session that was
	// cancelled before it settled.
	ErrSessionCancelled = errors.New("obligation session cancelled")
)

// Fetcher is the remote tax-records service as seen by the aggregator.
type Fetcher interface {
	ListTaxYears(ctx context.Context, nop string) ([]models.YearListing, error)

	// GetTaxYearDetail returns the SPPT of one year. A nil detail with a nil
	// error is treated as a failed year.
	GetTaxYearDetail(ctx context.Context, year, nop string) (*models.TaxYearDetail, error)

	// GetPaymentDetail returns the payment history of one year, or nil when
	// nothing has been paid.
	GetPaymentDetail(ctx context.Context, year, nop string) (*models.PaymentDetail, error)
}
