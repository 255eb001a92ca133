// Package report projects obligation snapshots for display and print.
// It only formats and labels; every amount comes from the snapshot as is.
package report

import (
	"sort"
	"time"

	"github.com/bevanyudira/IPBB-sub000/internal/models"
	"github.com/bevanyudira/IPBB-sub000/internal/nop"
	"github.com/bevanyudira/IPBB-sub000/internal/obligation"
)

// DisplayDate is the date layout used on screen and in exports.
const DisplayDate = "02-01-2006"

// Status is the label shown for a tax year.
type Status string

const (
	StatusPaid    Status = "LUNAS"
	StatusUnpaid  Status = "BELUM LUNAS"
	StatusFailed  Status = "GAGAL DIMUAT"
	StatusLoading Status = "MEMUAT"
)

// Row is one tax year as displayed.
type Row struct {
	Year               string   `json:"year"`
	TaxpayerName       string   `json:"taxpayer_name"`
	DueDate            string   `json:"due_date"`
	LandArea           int64    `json:"land_area"`
	BuildingArea       int64    `json:"building_area"`
	LandNJOP           int64    `json:"land_njop"`
	BuildingNJOP       int64    `json:"building_njop"`
	AmountDue          int64    `json:"amount_due"`
	TotalPaid          int64    `json:"total_paid"`
	TotalPenaltyPaid   int64    `json:"total_penalty_paid"`
	PaymentDates       []string `json:"payment_dates"`
	Penalty            int64    `json:"penalty"`
	Status             Status   `json:"status"`
	PaymentUnavailable bool     `json:"payment_unavailable,omitempty"`
	ErrorMessage       string   `json:"error_message,omitempty"`
}

// Report is the read-only view of one NOP's obligations.
type Report struct {
	SessionID  string                  `json:"session_id"`
	NOP        string                  `json:"nop"`
	Formatted  string                  `json:"formatted"`
	RegionCode string                  `json:"region_code"`
	State      obligation.State        `json:"state"`
	Complete   bool                    `json:"complete"`
	Rows       []Row                   `json:"rows"`
	Rollup     models.ObligationRollup `json:"rollup"`
}

// Project builds a Report from snap. Rows are sorted by year ascending.
func Project(snap obligation.Snapshot) Report {
	r := Report{
		SessionID: snap.SessionID,
		NOP:       snap.NOP,
		Formatted: nop.Format(snap.NOP),
		State:     snap.State,
		Complete:  snap.State == obligation.StateSettled,
		Rows:      make([]Row, 0, len(snap.Rows)),
		Rollup:    snap.Rollup,
	}
	if id, err := nop.Decode(snap.NOP); err == nil {
		r.RegionCode = id.RegionCode()
	}

	for _, s := range snap.Rows {
		r.Rows = append(r.Rows, projectRow(s))
	}
	sort.SliceStable(r.Rows, func(i, j int) bool {
		return r.Rows[i].Year < r.Rows[j].Year
	})
	return r
}

func projectRow(s models.TaxYearSummary) Row {
	row := Row{
		Year:               s.Year,
		TaxpayerName:       s.TaxpayerName,
		DueDate:            formatDate(s.DueDate),
		LandArea:           s.LandArea,
		BuildingArea:       s.BuildingArea,
		LandNJOP:           s.LandNJOP,
		BuildingNJOP:       s.BuildingNJOP,
		AmountDue:          s.AmountDue,
		TotalPaid:          s.TotalPaid,
		TotalPenaltyPaid:   s.TotalPenaltyPaid,
		PaymentDates:       make([]string, 0, len(s.PaymentDates)),
		Penalty:            s.Penalty,
		Status:             statusOf(s),
		PaymentUnavailable: s.PaymentUnavailable,
		ErrorMessage:       s.ErrorMessage,
	}
	for _, d := range s.PaymentDates {
		row.PaymentDates = append(row.PaymentDates, d.Format(DisplayDate))
	}
	return row
}

func statusOf(s models.TaxYearSummary) Status {
	switch {
	case s.Loading:
		return StatusLoading
	case s.Error:
		return StatusFailed
	case s.Paid:
		return StatusPaid
	default:
		return StatusUnpaid
	}
}

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(DisplayDate)
}
