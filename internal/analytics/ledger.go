package analytics

import "fintrack/internal/core"

// LedgerTotals summarizes the primary ledger over a transaction set.
type LedgerTotals struct {
	TotalIncome  core.Money `json:"total_income"`
	TotalExpense core.Money `json:"total_expense"`
	Balance      core.Money `json:"balance"`
}

// SavingsTotals summarizes the savings sub-ledger. The field names follow
// the display convention: SavingsIncome is money taken OUT of savings
// (withdrawals), SavingsExpense is money put INTO savings (deposits), so
// the balance grows positive as the pool accumulates. Do not flip these.
type SavingsTotals struct {
	SavingsIncome  core.Money `json:"savings_income"`
	SavingsExpense core.Money `json:"savings_expense"`
	SavingsBalance core.Money `json:"savings_balance"`
}

// SumLedger computes income and expense totals over the primary ledger.
// Savings-typed rows belong to the sub-ledger and never enter these totals,
// even when a listing folds them into the same slice. An empty set yields
// zeros, not an error.
func SumLedger(rows []core.ClassifiedTransaction) LedgerTotals {
	var t LedgerTotals
	for _, row := range rows {
		switch row.CategoryType {
		case core.TypeIncome:
			t.TotalIncome = t.TotalIncome.Add(row.Amount)
		case core.TypeExpense:
			t.TotalExpense = t.TotalExpense.Add(row.Amount)
		case core.TypeSavingsIncome, core.TypeSavingsExpense:
			// sub-ledger, summed by SumSavings
		}
	}
	t.Balance = t.TotalIncome.Sub(t.TotalExpense)
	return t
}

// SumSavings computes the savings sub-ledger totals. Balance is deposits
// minus withdrawals.
func SumSavings(rows []core.ClassifiedTransaction) SavingsTotals {
	var t SavingsTotals
	for _, row := range rows {
		switch row.CategoryType {
		case core.TypeSavingsIncome:
			t.SavingsIncome = t.SavingsIncome.Add(row.Amount)
		case core.TypeSavingsExpense:
			t.SavingsExpense = t.SavingsExpense.Add(row.Amount)
		case core.TypeIncome, core.TypeExpense:
			// primary ledger, summed by SumLedger
		}
	}
	t.SavingsBalance = t.SavingsExpense.Sub(t.SavingsIncome)
	return t
}
