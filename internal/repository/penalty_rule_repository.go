package repository

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bevanyudira/IPBB-sub000/internal/database"
	"github.com/bevanyudira/IPBB-sub000/internal/penalty"
)

// PenaltyRuleRepository defines the interface for penalty rule data access.
type PenaltyRuleRepository interface {
	// ListActive returns active penalty override rules in evaluation order.
	// Returns an empty slice if no rules are configured (not an error).
	ListActive(ctx context.Context) ([]penalty.Rule, error)
}

// penaltyRuleRepository is the concrete implementation of PenaltyRuleRepository.
type penaltyRuleRepository struct {
	db database.Querier
}

// NewPenaltyRuleRepository creates a new instance of PenaltyRuleRepository.
func NewPenaltyRuleRepository(db database.Querier) PenaltyRuleRepository {
	return &penaltyRuleRepository{
		db: db,
	}
}

const listActiveRulesQuery = `
	SELECT
		region_prefix,
		min_due_year,
		cap_months,
		rate::text
	FROM penalty_rules
	WHERE active
	ORDER BY priority, id
`

// ListActive reads the rule table ordered by priority. A NULL cap_months or
// rate leaves that term to later rules or the calculator default.
func (r *penaltyRuleRepository) ListActive(ctx context.Context) ([]penalty.Rule, error) {
	rows, err := r.db.Query(ctx, listActiveRulesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query penalty rules: %w", err)
	}
	defer rows.Close()

	rules := []penalty.Rule{}
	for rows.Next() {
		var (
			rule      penalty.Rule
			minYear   int32
			capMonths *int32
			rate      *string
		)

		if err := rows.Scan(&rule.RegionPrefix, &minYear, &capMonths, &rate); err != nil {
			return nil, fmt.Errorf("failed to scan penalty rule row: %w", err)
		}

		rule.MinDueYear = int(minYear)
		if capMonths != nil {
			rule.CapMonths = int(*capMonths)
		}
		if rate != nil {
			d, err := decimal.NewFromString(*rate)
			if err != nil {
				return nil, fmt.Errorf("invalid rate %q for region %s: %w", *rate, rule.RegionPrefix, err)
			}
			rule.Rate = decimal.NewNullDecimal(d)
		}

		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating penalty rule rows: %w", err)
	}

	return rules, nil
}
