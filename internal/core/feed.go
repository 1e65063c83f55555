package core

import "sort"

// Kind tags a feed row as income or expense.
type Kind string

const (
	KindIncome  Kind = "income"
	KindExpense Kind = "expense"
)

// TransactionView is one row of the merged transaction feed.
type TransactionView struct {
	ID           int64  `json:"id"`
	Kind         Kind   `json:"kind"`
	Label        string `json:"label"`
	Amount       Money  `json:"amount"`
	Date         Date   `json:"date"`
	EnvelopeID   int64  `json:"envelope_id"`
	EnvelopeName string `json:"envelope_name"`
	EnvelopeIcon string `json:"envelope_icon"`
}

// SortFeed orders rows newest first: date descending (compared as calendar
// dates, never as the DD/MM/YYYY literal), then id descending among equal
// dates, then expense before income so equal ids from the two entry tables
// still yield a total order.
func SortFeed(rows []TransactionView) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.Date.Equal(b.Date.Time) {
			return a.Date.After(b.Date.Time)
		}
		if a.ID != b.ID {
			return a.ID > b.ID
		}
		return a.Kind == KindExpense && b.Kind == KindIncome
	})
}

// MergeFeed combines income and expense rows into one ordered feed. A
// non-positive limit means no limit; the limit applies only after sorting.
func MergeFeed(income, expense []TransactionView, limit int) []TransactionView {
	merged := make([]TransactionView, 0, len(income)+len(expense))
	merged = append(merged, income...)
	merged = append(merged, expense...)
	SortFeed(merged)
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}
