package analytics

import (
	"fmt"

	"fintrack/internal/core"
)

// CategoryIndex builds an id lookup over a category snapshot.
func CategoryIndex(categories []core.Category) map[int64]core.Category {
	idx := make(map[int64]core.Category, len(categories))
	for _, c := range categories {
		idx[c.ID] = c
	}
	return idx
}

// Classify joins each transaction to its category, preserving input order.
// A transaction whose category is missing from the snapshot fails the whole
// call with core.ErrDanglingCategory; it is never dropped or mis-tagged.
func Classify(transactions []core.Transaction, categories map[int64]core.Category) ([]core.ClassifiedTransaction, error) {
	classified := make([]core.ClassifiedTransaction, 0, len(transactions))
	for _, tx := range transactions {
		cat, ok := categories[tx.CategoryID]
		if !ok {
			return nil, fmt.Errorf("%w: transaction %d, category %d", core.ErrDanglingCategory, tx.ID, tx.CategoryID)
		}
		classified = append(classified, core.ClassifiedTransaction{
			Transaction:   tx,
			CategoryName:  cat.Name,
			CategoryType:  cat.Type,
			CategoryColor: cat.Color,
		})
	}
	return classified, nil
}
