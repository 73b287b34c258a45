package analytics

import (
	"sort"

	"fintrack/internal/core"
)

// CategoryTotal is one row of a per-category breakdown.
type CategoryTotal struct {
	CategoryID    int64             `json:"category_id"`
	CategoryName  string            `json:"category_name"`
	CategoryColor string            `json:"category_color"`
	CategoryType  core.CategoryType `json:"category_type"`
	Total         core.Money        `json:"total"`
}

// BreakdownByCategory groups a transaction set by category and sums the
// amounts. The result is ordered by total descending, ties broken by
// category id ascending, so presentation-side truncation (top-N lists)
// is deterministic.
func BreakdownByCategory(rows []core.ClassifiedTransaction) []CategoryTotal {
	byID := make(map[int64]*CategoryTotal)
	for _, row := range rows {
		entry, ok := byID[row.CategoryID]
		if !ok {
			entry = &CategoryTotal{
				CategoryID:    row.CategoryID,
				CategoryName:  row.CategoryName,
				CategoryColor: row.CategoryColor,
				CategoryType:  row.CategoryType,
			}
			byID[row.CategoryID] = entry
		}
		entry.Total = entry.Total.Add(row.Amount)
	}

	out := make([]CategoryTotal, 0, len(byID))
	for _, entry := range byID {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total.Cents != out[j].Total.Cents {
			return out[i].Total.Cents > out[j].Total.Cents
		}
		return out[i].CategoryID < out[j].CategoryID
	})
	return out
}

// FilterByTypes returns the rows whose category type passes keep.
func FilterByTypes(rows []core.ClassifiedTransaction, keep func(core.CategoryType) bool) []core.ClassifiedTransaction {
	out := make([]core.ClassifiedTransaction, 0, len(rows))
	for _, row := range rows {
		if keep(row.CategoryType) {
			out = append(out, row)
		}
	}
	return out
}
