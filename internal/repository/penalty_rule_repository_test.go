package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bevanyudira/IPBB-sub000/internal/config"
	"github.com/bevanyudira/IPBB-sub000/internal/database"
)

// fakeRows is an in-memory pgx.Rows over region_prefix, min_due_year,
// cap_months, rate rows.
type fakeRows struct {
	data    [][]any
	pos     int
	err     error
	scanErr error
	closed  bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.data[r.pos-1], nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	row := r.data[r.pos-1]
	if len(dest) != len(row) {
		return fmt.Errorf("expected %d destinations, got %d", len(row), len(dest))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = row[i].(string)
		case *int32:
			*p = row[i].(int32)
		case **int32:
			if row[i] == nil {
				*p = nil
			} else {
				v := row[i].(int32)
				*p = &v
			}
		case **string:
			if row[i] == nil {
				*p = nil
			} else {
				v := row[i].(string)
				*p = &v
			}
		default:
			return fmt.Errorf("unsupported destination %T", d)
		}
	}
	return nil
}

type fakeQuerier struct {
	rows     *fakeRows
	err      error
	lastSQL  string
	numCalls int
}

func (q *fakeQuerier) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	q.numCalls++
	q.lastSQL = sql
	if q.err != nil {
		return nil, q.err
	}
	return q.rows, nil
}

func TestListActive_MapsRows(t *testing.T) {
	rows := &fakeRows{data: [][]any{
		{"21", int32(2012), int32(15), nil},
		{"5102", int32(2024), nil, "0.0100"},
	}}
	q := &fakeQuerier{rows: rows}
	repo := NewPenaltyRuleRepository(q)

	rules, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.Equal(t, "21", rules[0].RegionPrefix)
	assert.Equal(t, 2012, rules[0].MinDueYear)
	assert.Equal(t, 15, rules[0].CapMonths)
	assert.False(t, rules[0].Rate.Valid)

	assert.Equal(t, "5102", rules[1].RegionPrefix)
	assert.Equal(t, 0, rules[1].CapMonths)
	require.True(t, rules[1].Rate.Valid)
	assert.True(t, rules[1].Rate.Decimal.Equal(decimal.RequireFromString("0.01")))

	assert.Contains(t, q.lastSQL, "ORDER BY priority")
	assert.True(t, rows.closed, "rows should be closed")
}

func TestListActive_Empty(t *testing.T) {
	repo := NewPenaltyRuleRepository(&fakeQuerier{rows: &fakeRows{}})

	rules, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, rules)
	assert.Empty(t, rules)
}

func TestListActive_Errors(t *testing.T) {
	t.Run("query failure", func(t *testing.T) {
		repo := NewPenaltyRuleRepository(&fakeQuerier{err: errors.New("connection refused")})
		_, err := repo.ListActive(context.Background())
		assert.ErrorContains(t, err, "failed to query penalty rules")
	})

	t.Run("scan failure", func(t *testing.T) {
		rows := &fakeRows{data: [][]any{{"21", int32(2012), int32(15), nil}}, scanErr: errors.New("bad column")}
		repo := NewPenaltyRuleRepository(&fakeQuerier{rows: rows})
		_, err := repo.ListActive(context.Background())
		assert.ErrorContains(t, err, "failed to scan")
	})

	t.Run("invalid rate", func(t *testing.T) {
		rows := &fakeRows{data: [][]any{{"21", int32(2012), nil, "abc"}}}
		repo := NewPenaltyRuleRepository(&fakeQuerier{rows: rows})
		_, err := repo.ListActive(context.Background())
		assert.ErrorContains(t, err, "invalid rate")
	})

	t.Run("iteration failure", func(t *testing.T) {
		rows := &fakeRows{err: errors.New("network reset")}
		repo := NewPenaltyRuleRepository(&fakeQuerier{rows: rows})
		_, err := repo.ListActive(context.Background())
		assert.ErrorContains(t, err, "error iterating")
	})
}

// TestListActive_Integration runs against a real database that has the
// penalty_rules migration applied.
func TestListActive_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if os.Getenv("DB_INTEGRATION") == "" {
		t.Skip("Skipping integration test: DB_INTEGRATION not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := database.NewPostgresPool(ctx, config.DatabaseConfig{
		Host:     os.Getenv("DB_HOST"),
		Port:     os.Getenv("DB_PORT"),
		Name:     os.Getenv("DB_NAME"),
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		PoolMin:  1,
		PoolMax:  2,
	})
	require.NoError(t, err)
	defer db.Close()

	rules, err := NewPenaltyRuleRepository(db).ListActive(ctx)
	require.NoError(t, err)
	assert.NotNil(t, rules)
}
