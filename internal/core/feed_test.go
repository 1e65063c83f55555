package core

import "testing"

func tx(id int64, kind Kind, label string, d Date) TransactionView {
	return TransactionView{ID: id, Kind: kind, Label: label, Amount: Money{Cents: 100}, Date: d, EnvelopeID: 1}
}

func TestMergeFeedDateDescending(t *testing.T) {
	// Labels chosen so alphabetical order disagrees with date order, and
	// dates chosen so the literal DD/MM/YYYY strings sort wrongly.
	income := []TransactionView{
		tx(1, KindIncome, "zz-oldest", NewDate(2025, 1, 30)),
	}
	expense := []TransactionView{
		tx(2, KindExpense, "aa-newest", NewDate(2025, 12, 2)),
		tx(3, KindExpense, "mm-middle", NewDate(2025, 6, 15)),
	}

	got := MergeFeed(income, expense, 0)
	wantLabels := []string{"aa-newest", "mm-middle", "zz-oldest"}
	for i, want := range wantLabels {
		if got[i].Label != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, got[i].Label)
		}
	}
}

func TestMergeFeedTiesByIDDescending(t *testing.T) {
	d := NewDate(2026, 3, 1)
	income := []TransactionView{
		tx(5, KindIncome, "income-5", d),
		tx(9, KindIncome, "income-9", d),
	}
	expense := []TransactionView{
		tx(7, KindExpense, "expense-7", d),
	}

	got := MergeFeed(income, expense, 0)
	wantIDs := []int64{9, 7, 5}
	for i, want := range wantIDs {
		if got[i].ID != want {
			t.Fatalf("position %d: expected id %d, got %d", i, want, got[i].ID)
		}
	}
}

func TestMergeFeedEqualIDsTotalOrder(t *testing.T) {
	// Income and expense ids come from separate tables and may collide;
	// kind must still give a deterministic order.
	d := NewDate(2026, 3, 1)
	income := []TransactionView{tx(4, KindIncome, "income", d)}
	expense := []TransactionView{tx(4, KindExpense, "expense", d)}

	got := MergeFeed(income, expense, 0)
	if got[0].Kind != KindExpense || got[1].Kind != KindIncome {
		t.Fatalf("expected expense before income on full tie, got %s then %s", got[0].Kind, got[1].Kind)
	}
}

func TestMergeFeedLimitAfterSort(t *testing.T) {
	income := []TransactionView{
		tx(1, KindIncome, "old", NewDate(2026, 1, 1)),
	}
	expense := []TransactionView{
		tx(2, KindExpense, "new", NewDate(2026, 2, 1)),
	}

	got := MergeFeed(income, expense, 1)
	if len(got) != 1 {
		t.Fatalf("expected 1 row, got %d", len(got))
	}
	if got[0].Label != "new" {
		t.Fatalf("limit must apply after sorting, got %s", got[0].Label)
	}

	if n := len(MergeFeed(income, expense, 0)); n != 2 {
		t.Fatalf("limit 0 means no limit, got %d rows", n)
	}
	if n := len(MergeFeed(income, expense, 10)); n != 2 {
		t.Fatalf("limit above size keeps all rows, got %d", n)
	}
}

func TestMergeFeedDoesNotMutateInputs(t *testing.T) {
	income := []TransactionView{
		tx(1, KindIncome, "a", NewDate(2026, 1, 1)),
		tx(2, KindIncome, "b", NewDate(2026, 2, 1)),
	}
	MergeFeed(income, nil, 0)
	if income[0].ID != 1 || income[1].ID != 2 {
		t.Fatal("MergeFeed reordered the caller's slice")
	}
}
