package analytics

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/core"
)

// CategorySource supplies the category taxonomy snapshot.
type CategorySource interface {
	Categories(ctx context.Context) ([]core.Category, error)
}

// TransactionSource supplies the transaction snapshot for a resolved range.
// includeSavings controls whether savings-typed rows appear.
type TransactionSource interface {
	TransactionsInRange(ctx context.Context, rng Range, includeSavings bool) ([]core.Transaction, error)
}

// Request selects what to aggregate.
type Request struct {
	Period    Period    `json:"period"`
	StartDate core.Date `json:"start_date,omitempty"`
	EndDate   core.Date `json:"end_date,omitempty"`
	// GroupBy names the breakdown key. Only "category" is defined today;
	// it is carried on the wire so adding a key is not an API change.
	GroupBy        string `json:"group_by,omitempty"`
	IncludeSavings bool   `json:"include_savings,omitempty"`
}

// ResolvedPeriod echoes the concrete range a report covers, for display.
type ResolvedPeriod struct {
	Range
	Type Period `json:"type"`
}

// Result is the primary-ledger analytics response. The savings totals ride
// along so a single request paints the whole dashboard.
type Result struct {
	LedgerTotals
	SavingsTotals
	ByCategory         []CategoryTotal     `json:"by_category"`
	DailyTotals        []DailyTotal        `json:"daily_totals"`
	SavingsDailyTotals []SavingsDailyTotal `json:"savings_daily_totals"`
	Period             ResolvedPeriod      `json:"period"`
}

// SavingsResult is the savings sub-ledger analytics response. ByCategory
// holds savings-typed categories only.
type SavingsResult struct {
	SavingsTotals
	ByCategory  []CategoryTotal     `json:"by_category"`
	DailyTotals []SavingsDailyTotal `json:"daily_totals"`
	Period      ResolvedPeriod      `json:"period"`
}

// Service is the analytics façade: it resolves the period, fetches the
// snapshots, classifies and aggregates. Any component failure aborts the
// whole request; a partially computed result is never returned.
type Service struct {
	categories   CategorySource
	transactions TransactionSource
	today        func() core.Date
}

func NewService(categories CategorySource, transactions TransactionSource) *Service {
	return &Service{
		categories:   categories,
		transactions: transactions,
		today:        func() core.Date { return core.DateOf(time.Now()) },
	}
}

// Today returns the service's current date, the anchor for relative
// periods.
func (s *Service) Today() core.Date {
	return s.today()
}

// Report runs the primary-ledger aggregation for a request.
func (s *Service) Report(ctx context.Context, req Request) (*Result, error) {
	rng, rows, err := s.fetch(ctx, req)
	if err != nil {
		return nil, err
	}

	breakdownRows := rows
	if !req.IncludeSavings {
		breakdownRows = FilterByTypes(rows, func(t core.CategoryType) bool { return !t.IsSavings() })
	}

	return &Result{
		LedgerTotals:       SumLedger(rows),
		SavingsTotals:      SumSavings(rows),
		ByCategory:         BreakdownByCategory(breakdownRows),
		DailyTotals:        BuildDailySeries(rows, rng),
		SavingsDailyTotals: BuildSavingsDailySeries(rows, rng),
		Period:             ResolvedPeriod{Range: rng, Type: req.Period},
	}, nil
}

// SavingsReport runs the savings sub-ledger aggregation for a request.
func (s *Service) SavingsReport(ctx context.Context, req Request) (*SavingsResult, error) {
	rng, rows, err := s.fetch(ctx, req)
	if err != nil {
		return nil, err
	}

	savingsRows := FilterByTypes(rows, core.CategoryType.IsSavings)

	return &SavingsResult{
		SavingsTotals: SumSavings(savingsRows),
		ByCategory:    BreakdownByCategory(savingsRows),
		DailyTotals:   BuildSavingsDailySeries(savingsRows, rng),
		Period:        ResolvedPeriod{Range: rng, Type: req.Period},
	}, nil
}

// fetch resolves the period and assembles the classified snapshot. The
// transaction fetch always includes savings rows: the sub-ledger totals are
// part of every report, and IncludeSavings only widens the breakdown.
func (s *Service) fetch(ctx context.Context, req Request) (Range, []core.ClassifiedTransaction, error) {
	if req.Period == "" {
		req.Period = PeriodMonth
	}

	rng, err := Resolve(req.Period, req.StartDate, req.EndDate, s.today())
	if err != nil {
		return Range{}, nil, err
	}

	categories, err := s.categories.Categories(ctx)
	if err != nil {
		return Range{}, nil, fmt.Errorf("fetch categories: %w", err)
	}

	transactions, err := s.transactions.TransactionsInRange(ctx, rng, true)
	if err != nil {
		return Range{}, nil, fmt.Errorf("fetch transactions: %w", err)
	}

	rows, err := Classify(transactions, CategoryIndex(categories))
	if err != nil {
		return Range{}, nil, err
	}
	return rng, rows, nil
}
