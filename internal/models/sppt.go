package models

import (
	"time"
)

// YearListing is one entry of the tax-years list returned for a NOP.
// Only Year is relied upon; the remaining fields seed the placeholder row.
type YearListing struct {
	Year         string `json:"year"`
	TaxpayerName string `json:"nm_wp_sppt,omitempty"`
	AmountDue    int64  `json:"pbb_yg_harus_dibayar_sppt,omitempty"`
}

// YearList is the envelope returned by the tax-years endpoint.
type YearList struct {
	AvailableYears []YearListing `json:"availableYears"`
}

// TaxYearDetail is the SPPT record for one NOP and tax year.
type TaxYearDetail struct {
	Year          string `json:"thn_pajak_sppt"`
	TaxpayerName  string `json:"nm_wp_sppt"`
	DueDate       Date   `json:"tgl_jatuh_tempo_sppt"`
	LandArea      int64  `json:"luas_bumi_sppt"`
	BuildingArea  int64  `json:"luas_bng_sppt"`
	LandNJOP      int64  `json:"njop_bumi_sppt"`
	BuildingNJOP  int64  `json:"njop_bng_sppt"`
	AmountDue     int64  `json:"pbb_yg_harus_dibayar_sppt"`
	PaymentStatus Flag   `json:"status_pembayaran_sppt"`
}

// PaymentDetail is the payment history for one NOP and tax year.
type PaymentDetail struct {
	TotalPaid        int64  `json:"totalPaid"`
	TotalPenaltyPaid *int64 `json:"totalPenaltyPaid,omitempty"`
	PaymentDates     []Date `json:"paymentDates"`
}

// TaxYearSummary is the merged per-year row shown for a NOP.
// Loading is true until the year's fetches settle; Error marks a year whose
// tax data could not be loaded. Rows are never removed.
type TaxYearSummary struct {
	Year               string      `json:"year"`
	TaxpayerName       string      `json:"taxpayer_name"`
	DueDate            *time.Time  `json:"due_date"`
	LandArea           int64       `json:"land_area"`
	BuildingArea       int64       `json:"building_area"`
	LandNJOP           int64       `json:"land_njop"`
	BuildingNJOP       int64       `json:"building_njop"`
	AmountDue          int64       `json:"amount_due"`
	Paid               bool        `json:"paid"`
	TotalPaid          int64       `json:"total_paid"`
	TotalPenaltyPaid   int64       `json:"total_penalty_paid"`
	PaymentDates       []time.Time `json:"payment_dates"`
	Penalty            int64       `json:"penalty"`
	Loading            bool        `json:"loading"`
	Error              bool        `json:"error"`
	ErrorMessage       string      `json:"error_message,omitempty"`
	PaymentUnavailable bool        `json:"payment_unavailable,omitempty"`
}

// Clone returns a deep copy of s.
func (s TaxYearSummary) Clone() TaxYearSummary {
	c := s
	if s.DueDate != nil {
		d := *s.DueDate
		c.DueDate = &d
	}
	if s.PaymentDates != nil {
		c.PaymentDates = append([]time.Time(nil), s.PaymentDates...)
	}
	return c
}

// Settled reports whether the row counts towards the rollup.
func (s TaxYearSummary) Settled() bool {
	return !s.Loading && !s.Error
}

// ObligationRollup totals the settled rows of one NOP.
type ObligationRollup struct {
	TotalPaid        int64 `json:"total_paid"`
	TotalOutstanding int64 `json:"total_outstanding"`
	TotalPenalty     int64 `json:"total_penalty"`
	TotalOwed        int64 `json:"total_owed"`
	YearsCounted     int   `json:"years_counted"`
	YearsFailed      int   `json:"years_failed"`
	YearsLoading     int   `json:"years_loading"`
}

// Rollup folds rows into an ObligationRollup. Loading and error rows are
// counted but contribute no amounts.
func Rollup(rows []TaxYearSummary) ObligationRollup {
	var r ObligationRollup
	for _, row := range rows {
		switch {
		case row.Loading:
			r.YearsLoading++
			continue
		case row.Error:
			r.YearsFailed++
			continue
		}

		r.YearsCounted++
		if row.Paid {
			r.TotalPaid += row.AmountDue
		} else {
			r.TotalOutstanding += row.AmountDue
		}
		r.TotalPenalty += row.Penalty
	}
	r.TotalOwed = r.TotalOutstanding + r.TotalPenalty
	return r
}
