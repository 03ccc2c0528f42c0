package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const trendDays = 14

// Snapshot is the KPI block for the accounting dashboard. All amounts are
// positive in their business sense: sales and payables have already had
// the credit-nature negation applied here, once.
type Snapshot struct {
	Date         time.Time
	SalesToday   decimal.Decimal
	SalesMonth   decimal.Decimal
	COGSMonth    decimal.Decimal
	GrossProfit  decimal.Decimal
	Receivables  decimal.Decimal
	Payables     decimal.Decimal
	CashBalance  decimal.Decimal
	BankBalance  decimal.Decimal
	MobileBalance decimal.Decimal
}

// Aggregator composes the key-account resolver and the balance calculator
// into dashboard reads. Unresolved roles contribute zero: a sparse chart
// of accounts degrades the dashboard, it never errors it.
type Aggregator struct {
	keys *KeyAccountResolver
	bal  *Calculator
}

// NewAggregator creates an Aggregator.
func NewAggregator(keys *KeyAccountResolver, bal *Calculator) *Aggregator {
	return &Aggregator{keys: keys, bal: bal}
}

// Snapshot computes today's KPI block. today is truncated to a calendar
// day; month figures cover the 1st of today's month through today.
func (a *Aggregator) Snapshot(ctx context.Context, orgID int64, today time.Time) (*Snapshot, error) {
	today = truncateToDay(today)
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)

	revenueSet, err := a.keys.ResolveRollupSet(ctx, orgID, RoleRevenue)
	if err != nil {
		return nil, err
	}
	cogsSet, err := a.keys.ResolveRollupSet(ctx, orgID, RoleCOGS)
	if err != nil {
		return nil, err
	}

	salesToday, err := a.bal.RangeSum(ctx, orgID, revenueSet, today, today)
	if err != nil {
		return nil, err
	}
	salesMonth, err := a.bal.RangeSum(ctx, orgID, revenueSet, monthStart, today)
	if err != nil {
		return nil, err
	}
	cogsMonth, err := a.bal.RangeSum(ctx, orgID, cogsSet, monthStart, today)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Date:       today,
		SalesToday: salesToday.Neg(), // revenue is credit-natured
		SalesMonth: salesMonth.Neg(),
		COGSMonth:  cogsMonth,
	}
	snap.GrossProfit = snap.SalesMonth.Sub(snap.COGSMonth)

	snap.Receivables, err = a.roleBalance(ctx, orgID, RoleAR, today, false)
	if err != nil {
		return nil, err
	}
	snap.Payables, err = a.roleBalance(ctx, orgID, RoleAP, today, true)
	if err != nil {
		return nil, err
	}
	snap.CashBalance, err = a.roleBalance(ctx, orgID, RoleCash, today, false)
	if err != nil {
		return nil, err
	}
	snap.BankBalance, err = a.roleBalance(ctx, orgID, RoleBank, today, false)
	if err != nil {
		return nil, err
	}
	snap.MobileBalance, err = a.roleBalance(ctx, orgID, RoleMobile, today, false)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// SalesTrend returns a 14-day zero-filled daily sales series ending today,
// with the revenue negation already applied.
func (a *Aggregator) SalesTrend(ctx context.Context, orgID int64, today time.Time) ([]DayAmount, error) {
	today = truncateToDay(today)
	from := today.AddDate(0, 0, -(trendDays - 1))

	revenueSet, err := a.keys.ResolveRollupSet(ctx, orgID, RoleRevenue)
	if err != nil {
		return nil, err
	}
	series, err := a.bal.Series(ctx, orgID, revenueSet, from, today)
	if err != nil {
		return nil, err
	}
	for i := range series {
		series[i].Amount = series[i].Amount.Neg()
	}
	return series, nil
}

// roleBalance is the cumulative balance of a single key account, zero
// when the role is unresolved. creditNatured flips the sign so the
// caller-facing number is positive in its business sense.
func (a *Aggregator) roleBalance(ctx context.Context, orgID int64, role Role, asOf time.Time, creditNatured bool) (decimal.Decimal, error) {
	id, err := a.keys.Resolve(ctx, orgID, role)
	if err != nil {
		return decimal.Zero, err
	}
	if id == 0 {
		return decimal.Zero, nil
	}
	balance, err := a.bal.BalanceAsOf(ctx, orgID, []int64{id}, asOf)
	if err != nil {
		return decimal.Zero, err
	}
	if creditNatured {
		return balance.Neg(), nil
	}
	return balance, nil
}
