// Package penalty computes the late-payment surcharge (denda) owed on a single
// tax year.
package penalty

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Defaults applied when no rule overrides them.
const (
	DefaultCapMonths = 24
)

// DefaultRate is the monthly surcharge rate applied when no rule overrides it.
var DefaultRate = decimal.RequireFromString("0.02")

// Rule overrides the cap and/or the monthly rate for due dates in or after
// MinDueYear within regions whose code starts with RegionPrefix.
// A zero CapMonths or an invalid Rate leaves that value to the next rule.
type Rule struct {
	RegionPrefix string              `json:"region_prefix"`
	MinDueYear   int                 `json:"min_due_year"`
	CapMonths    int                 `json:"cap_months,omitempty"`
	Rate         decimal.NullDecimal `json:"rate"`
}

func (r Rule) matches(region string, dueYear int) bool {
	return strings.HasPrefix(region, r.RegionPrefix) && dueYear >= r.MinDueYear
}

// DefaultRules returns the override rows currently in force.
func DefaultRules() []Rule {
	return []Rule{
		{RegionPrefix: "21", MinDueYear: 2012, CapMonths: 15},
		{RegionPrefix: "5102", MinDueYear: 2024, Rate: decimal.NewNullDecimal(decimal.RequireFromString("0.01"))},
	}
}

// Input is everything Compute needs for one tax year.
type Input struct {
	BaseAmount int64
	DueDate    *time.Time
	IsPaid     bool
	RegionCode string
	AsOf       time.Time
}

// Quote is a penalty together with the terms that produced it.
type Quote struct {
	MonthsLate      int             `json:"months_late"`
	EffectiveMonths int             `json:"effective_months"`
	CapMonths       int             `json:"cap_months"`
	Rate            decimal.Decimal `json:"rate"`
	Amount          int64           `json:"amount"`
}

// Calculator resolves rules and computes penalties. It is safe for
// concurrent use once built.
type Calculator struct {
	rules       []Rule
	defaultCap  int
	defaultRate decimal.Decimal
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithDefaultCap sets the cap used when no rule supplies one.
func WithDefaultCap(months int) Option {
	return func(c *Calculator) {
		if months > 0 {
			c.defaultCap = months
		}
	}
}

// WithDefaultRate sets the monthly rate used when no rule supplies one.
func WithDefaultRate(rate decimal.Decimal) Option {
	return func(c *Calculator) {
		if rate.IsPositive() {
			c.defaultRate = rate
		}
	}
}

// New returns a Calculator evaluating rules in order, first match wins.
func New(rules []Rule, opts ...Option) *Calculator {
	c := &Calculator{
		rules:       append([]Rule(nil), rules...),
		defaultCap:  DefaultCapMonths,
		defaultRate: DefaultRate,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Rules returns a copy of the rule table.
func (c *Calculator) Rules() []Rule {
	return append([]Rule(nil), c.rules...)
}

// Terms returns the cap and monthly rate in force for a region and due year.
func (c *Calculator) Terms(region string, dueYear int) (int, decimal.Decimal) {
	capMonths, rate := 0, decimal.Decimal{}
	capSet, rateSet := false, false

	for _, r := range c.rules {
		if !r.matches(region, dueYear) {
			continue
		}
		if !capSet && r.CapMonths > 0 {
			capMonths, capSet = r.CapMonths, true
		}
		if !rateSet && r.Rate.Valid {
			rate, rateSet = r.Rate.Decimal, true
		}
		if capSet && rateSet {
			break
		}
	}

	if !capSet {
		capMonths = c.defaultCap
	}
	if !rateSet {
		rate = c.defaultRate
	}
	return capMonths, rate
}

// Quote computes the penalty for in and reports the terms used.
func (c *Calculator) Quote(in Input) Quote {
	if in.BaseAmount <= 0 || in.DueDate == nil || in.DueDate.IsZero() || in.IsPaid {
		return Quote{}
	}

	due := *in.DueDate
	capMonths, rate := c.Terms(in.RegionCode, due.Year())
	q := Quote{CapMonths: capMonths, Rate: rate}

	q.MonthsLate = MonthsLate(due, in.AsOf)
	if q.MonthsLate <= 0 {
		q.MonthsLate = 0
		return q
	}

	q.EffectiveMonths = min(q.MonthsLate, capMonths)
	amount := rate.
		Mul(decimal.NewFromInt(int64(q.EffectiveMonths))).
		Mul(decimal.NewFromInt(in.BaseAmount)).
		Floor().
		IntPart()
	if amount < 0 {
		amount = 0
	}
	q.Amount = amount
	return q
}

// Compute returns the penalty for in. It never fails; unusable input yields 0.
func (c *Calculator) Compute(in Input) int64 {
	return c.Quote(in).Amount
}

// ComputePenalty is Compute with positional arguments.
func (c *Calculator) ComputePenalty(baseAmount int64, dueDate *time.Time, isPaid bool, regionCode string, asOf time.Time) int64 {
	return c.Compute(Input{
		BaseAmount: baseAmount,
		DueDate:    dueDate,
		IsPaid:     isPaid,
		RegionCode: regionCode,
		AsOf:       asOf,
	})
}

// MonthsLate is the calendar-month distance from due to asOf. Days within the
// month are ignored, so a payment due on the 31st is one month late on the 1st
// of the following month.
func MonthsLate(due, asOf time.Time) int {
	return (asOf.Year()*12 + int(asOf.Month())) - (due.Year()*12 + int(due.Month()))
}
