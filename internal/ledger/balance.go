package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/hisabdesk/api/internal/store"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// EntryStore provides the aggregate queries over ledger entries.
// Satisfied by *store.Queries.
type EntryStore interface {
	SumEntriesInRange(ctx context.Context, arg store.SumEntriesInRangeParams) (string, error)
	SumEntriesAsOf(ctx context.Context, arg store.SumEntriesAsOfParams) (string, error)
	DailyEntrySums(ctx context.Context, arg store.DailyEntrySumsParams) ([]store.DailyEntrySumsRow, error)
}

// DayAmount is one point of a zero-filled daily series.
type DayAmount struct {
	Date   time.Time
	Amount decimal.Decimal
}

// Calculator computes signed balances over ledger entries. All results
// are raw Σ(dr - cr): the natural balance for asset and expense accounts.
// Revenue and other credit-natured accounts come out negative; negating
// them (e.g. for a "sales" KPI) is the caller's responsibility. Do not
// negate inside this type, or callers end up double-negating.
type Calculator struct {
	store EntryStore
}

// NewCalculator creates a Calculator.
func NewCalculator(s EntryStore) *Calculator {
	return &Calculator{store: s}
}

// RangeSum returns Σ(dr - cr) for entries on the given accounts whose
// journal date falls within [from, to] inclusive. An empty account set
// short-circuits to zero without touching storage.
func (c *Calculator) RangeSum(ctx context.Context, orgID int64, accountIDs []int64, from, to time.Time) (decimal.Decimal, error) {
	if len(accountIDs) == 0 {
		return decimal.Zero, nil
	}
	raw, err := c.store.SumEntriesInRange(ctx, store.SumEntriesInRangeParams{
		OrgID:      orgID,
		AccountIDs: accountIDs,
		FromDate:   pgtype.Date{Time: from, Valid: true},
		ToDate:     pgtype.Date{Time: to, Valid: true},
	})
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}

// BalanceAsOf returns the cumulative Σ(dr - cr) for the accounts up to and
// including asOf. An empty account set short-circuits to zero.
func (c *Calculator) BalanceAsOf(ctx context.Context, orgID int64, accountIDs []int64, asOf time.Time) (decimal.Decimal, error) {
	if len(accountIDs) == 0 {
		return decimal.Zero, nil
	}
	raw, err := c.store.SumEntriesAsOf(ctx, store.SumEntriesAsOfParams{
		OrgID:      orgID,
		AccountIDs: accountIDs,
		AsOf:       pgtype.Date{Time: asOf, Valid: true},
	})
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(raw)
}

// Series returns one DayAmount per calendar day in [from, to] inclusive,
// in date order. Days without postings carry zero, so the series is
// contiguous and chartable. With an empty account set the storage layer
// is never queried and every day is zero.
func (c *Calculator) Series(ctx context.Context, orgID int64, accountIDs []int64, from, to time.Time) ([]DayAmount, error) {
	from = truncateToDay(from)
	to = truncateToDay(to)
	if to.Before(from) {
		return nil, fmt.Errorf("series: to %s before from %s", to.Format("2006-01-02"), from.Format("2006-01-02"))
	}

	byDay := make(map[string]decimal.Decimal)
	if len(accountIDs) > 0 {
		rows, err := c.store.DailyEntrySums(ctx, store.DailyEntrySumsParams{
			OrgID:      orgID,
			AccountIDs: accountIDs,
			FromDate:   pgtype.Date{Time: from, Valid: true},
			ToDate:     pgtype.Date{Time: to, Valid: true},
		})
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			amount, err := decimal.NewFromString(row.Total)
			if err != nil {
				return nil, fmt.Errorf("series: parse total %q: %w", row.Total, err)
			}
			byDay[row.Day.Time.Format("2006-01-02")] = amount
		}
	}

	var series []DayAmount
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		amount, ok := byDay[day.Format("2006-01-02")]
		if !ok {
			amount = decimal.Zero
		}
		series = append(series, DayAmount{Date: day, Amount: amount})
	}
	return series, nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
