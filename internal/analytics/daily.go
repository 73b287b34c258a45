package analytics

import "fintrack/internal/core"

// DailyTotal is one day's bucket of the primary ledger time series.
type DailyTotal struct {
	Date    core.Date  `json:"date"`
	Income  core.Money `json:"income"`
	Expense core.Money `json:"expense"`
}

// SavingsDailyTotal is one day's bucket of the savings time series.
type SavingsDailyTotal struct {
	Date           core.Date  `json:"date"`
	SavingsIncome  core.Money `json:"savings_income"`
	SavingsExpense core.Money `json:"savings_expense"`
}

// BuildDailySeries buckets the primary ledger by calendar day. Every day of
// the range gets a bucket, zero-filled when nothing happened, so trend
// charts have no gaps. Rows dated outside the range are ignored; the fetch
// layer pre-filters, but a stray row must not stretch the series.
func BuildDailySeries(rows []core.ClassifiedTransaction, rng Range) []DailyTotal {
	series := make([]DailyTotal, rng.Days())
	for i := range series {
		series[i].Date = rng.Start.AddDays(i)
	}
	for _, row := range rows {
		if !rng.Contains(row.Date) {
			continue
		}
		bucket := &series[rng.Start.DaysUntil(row.Date)]
		switch row.CategoryType {
		case core.TypeIncome:
			bucket.Income = bucket.Income.Add(row.Amount)
		case core.TypeExpense:
			bucket.Expense = bucket.Expense.Add(row.Amount)
		case core.TypeSavingsIncome, core.TypeSavingsExpense:
			// savings rows feed BuildSavingsDailySeries
		}
	}
	return series
}

// BuildSavingsDailySeries is the savings-ledger counterpart of
// BuildDailySeries, keyed by the sub-ledger's income/expense sides.
func BuildSavingsDailySeries(rows []core.ClassifiedTransaction, rng Range) []SavingsDailyTotal {
	series := make([]SavingsDailyTotal, rng.Days())
	for i := range series {
		series[i].Date = rng.Start.AddDays(i)
	}
	for _, row := range rows {
		if !rng.Contains(row.Date) {
			continue
		}
		bucket := &series[rng.Start.DaysUntil(row.Date)]
		switch row.CategoryType {
		case core.TypeSavingsIncome:
			bucket.SavingsIncome = bucket.SavingsIncome.Add(row.Amount)
		case core.TypeSavingsExpense:
			bucket.SavingsExpense = bucket.SavingsExpense.Add(row.Amount)
		case core.TypeIncome, core.TypeExpense:
			// primary rows feed BuildDailySeries
		}
	}
	return series
}
