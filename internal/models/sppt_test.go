package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRollup(t *testing.T) {
	rows := []TaxYearSummary{
		{Year: "2021", AmountDue: 400_000, Paid: true},
		{Year: "2022", AmountDue: 420_000, Penalty: 100_800},
		{Year: "2023", AmountDue: 432_044, Penalty: 8_640},
		{Year: "2024", AmountDue: 999_999, Error: true},
		{Year: "2025", Loading: true},
	}

	r := Rollup(rows)

	assert.Equal(t, int64(400_000), r.TotalPaid)
	assert.Equal(t, int64(852_044), r.TotalOutstanding)
	assert.Equal(t, int64(109_440), r.TotalPenalty)
	assert.Equal(t, int64(961_484), r.TotalOwed)
	assert.Equal(t, 3, r.YearsCounted)
	assert.Equal(t, 1, r.YearsFailed)
	assert.Equal(t, 1, r.YearsLoading)
}

func TestRollup_Empty(t *testing.T) {
	assert.Equal(t, ObligationRollup{}, Rollup(nil))
}

func TestTaxYearSummaryClone(t *testing.T) {
	due := time.Date(2024, time.August, 31, 0, 0, 0, 0, time.UTC)
	original := TaxYearSummary{
		Year:         "2024",
		DueDate:      &due,
		PaymentDates: []time.Time{due},
	}

	c := original.Clone()
	*c.DueDate = due.AddDate(1, 0, 0)
	c.PaymentDates[0] = due.AddDate(0, 1, 0)

	assert.Equal(t, due, *original.DueDate)
	assert.Equal(t, due, original.PaymentDates[0])
}
