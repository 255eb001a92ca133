package obligation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bevanyudira/IPBB-sub000/internal/models"
)

var errUpstream = errors.New("upstream returned 502")

// fakeFetcher serves canned tax-records responses keyed by "nop/year".
type fakeFetcher struct {
	mu sync.Mutex

	listings   map[string][]models.YearListing
	listErr    error
	details    map[string]*models.TaxYearDetail
	detailErr  map[string]error
	payments   map[string]*models.PaymentDetail
	paymentErr map[string]error

	// gates block detail calls for a NOP until closed, ignoring ctx.
	gates map[string]chan struct{}
	// honorCtx makes detail calls for the listed keys wait for ctx expiry.
	honorCtx map[string]bool
	delay    time.Duration

	detailCalls map[string]int
	inFlight    int
	maxInFlight int
	settled     int
	// settledAtStart records how many years had settled when each year's
	// detail call began.
	settledAtStart map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		listings:       make(map[string][]models.YearListing),
		details:        make(map[string]*models.TaxYearDetail),
		detailErr:      make(map[string]error),
		payments:       make(map[string]*models.PaymentDetail),
		paymentErr:     make(map[string]error),
		gates:          make(map[string]chan struct{}),
		honorCtx:       make(map[string]bool),
		detailCalls:    make(map[string]int),
		settledAtStart: make(map[string]int),
	}
}

func key(nop, year string) string { return nop + "/" + year }

// addYear registers a listing entry and its detail.
func (f *fakeFetcher) addYear(nop string, d *models.TaxYearDetail) {
	f.listings[nop] = append(f.listings[nop], models.YearListing{Year: d.Year, TaxpayerName: d.TaxpayerName})
	f.details[key(nop, d.Year)] = d
}

func (f *fakeFetcher) ListTaxYears(_ context.Context, nop string) ([]models.YearListing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]models.YearListing(nil), f.listings[nop]...), nil
}

func (f *fakeFetcher) GetTaxYearDetail(ctx context.Context, year, nop string) (*models.TaxYearDetail, error) {
	k := key(nop, year)

	f.mu.Lock()
	f.detailCalls[nop]++
	f.settledAtStart[k] = f.settled
	f.inFlight++
	f.maxInFlight = max(f.maxInFlight, f.inFlight)
	gate := f.gates[nop]
	honor := f.honorCtx[k]
	delay := f.delay
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if gate != nil {
		<-gate
	}
	if honor {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.detailErr[k]; err != nil {
		f.settled++
		return nil, err
	}
	d, ok := f.details[k]
	if !ok || d == nil {
		f.settled++
		return nil, nil
	}
	c := *d
	return &c, nil
}

func (f *fakeFetcher) GetPaymentDetail(_ context.Context, year, nop string) (*models.PaymentDetail, error) {
	k := key(nop, year)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.settled++
	if err := f.paymentErr[k]; err != nil {
		return nil, err
	}
	return f.payments[k], nil
}

func (f *fakeFetcher) calls(nop string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detailCalls[nop]
}

// detail builds a TaxYearDetail with a due date in the given month.
func detail(year string, amount int64, due time.Time, paid bool) *models.TaxYearDetail {
	return &models.TaxYearDetail{
		Year:          year,
		TaxpayerName:  fmt.Sprintf("WAJIB PAJAK %s", year),
		DueDate:       models.NewDate(due),
		LandArea:      120,
		BuildingArea:  45,
		LandNJOP:      96000000,
		BuildingNJOP:  54000000,
		AmountDue:     amount,
		PaymentStatus: models.Flag(paid),
	}
}
