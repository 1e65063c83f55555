package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"envelopes/internal/core"
	"envelopes/internal/storage/memory"
)

const owner = "user@example.com"

func newTestEngine() *Engine {
	return New(memory.New(), nil)
}

func mustEnvelope(t *testing.T, e *Engine, allocationCents int64) core.Envelope {
	t.Helper()
	env, err := e.CreateEnvelope(context.Background(), owner, "Vacation", "🏖️", core.Money{Cents: allocationCents})
	if err != nil {
		t.Fatalf("create envelope: %v", err)
	}
	return env
}

func date() core.Date { return core.NewDate(2026, 8, 15) }

func TestCreateEnvelopeValidation(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	if _, err := e.CreateEnvelope(ctx, owner, "X", "", core.Money{Cents: -1}); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := e.CreateEnvelope(ctx, owner, "  ", "", core.Money{Cents: 100}); !errors.Is(err, core.ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	if _, err := e.CreateEnvelope(ctx, owner, "Zero", "", core.Money{}); err != nil {
		t.Fatalf("zero allocation should be allowed: %v", err)
	}
}

func TestAddIncomeReturnsPostMutationSnapshot(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	env := mustEnvelope(t, e, 100000)

	snap, err := e.AddIncome(ctx, owner, env.ID, "Bonus", core.Money{Cents: 20000}, date())
	if err != nil {
		t.Fatal(err)
	}
	if snap.Balance.Cents != 120000 {
		t.Fatalf("expected balance 120000, got %d", snap.Balance.Cents)
	}
	if snap.TotalIncome.Cents != 20000 {
		t.Fatalf("expected total income 20000, got %d", snap.TotalIncome.Cents)
	}
}

func TestAddIncomeDefaultsLabel(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	env := mustEnvelope(t, e, 100000)

	if _, err := e.AddIncome(ctx, owner, env.ID, "  ", core.Money{Cents: 100}, date()); err != nil {
		t.Fatal(err)
	}
	feed, err := e.Feed(ctx, owner, env.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(feed) != 1 || feed[0].Label != "Income" {
		t.Fatalf("expected default label Income, got %+v", feed)
	}
}

func TestAddIncomeInvalidAmount(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	env := mustEnvelope(t, e, 100000)

	for _, cents := range []int64{0, -500} {
		if _, err := e.AddIncome(ctx, owner, env.ID, "x", core.Money{Cents: cents}, date()); !errors.Is(err, core.ErrInvalidAmount) {
			t.Fatalf("cents=%d: expected ErrInvalidAmount, got %v", cents, err)
		}
	}
}

func TestAddExpenseInsufficientFundsWritesNothing(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	env := mustEnvelope(t, e, 50000)

	if _, err := e.AddExpense(ctx, owner, env.ID, "too big", core.Money{Cents: 50001}, date()); !errors.Is(err, core.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	feed, err := e.Feed(ctx, owner, env.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(feed) != 0 {
		t.Fatalf("rejected expense must not create an entry, feed has %d rows", len(feed))
	}

	snap, err := e.ComputeBalance(ctx, owner, env.ID)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Balance.Cents != 50000 {
		t.Fatalf("balance changed by rejected expense: %d", snap.Balance.Cents)
	}
}

func TestAddExpenseExactBalanceSucceeds(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	env := mustEnvelope(t, e, 50000)

	snap, err := e.AddExpense(ctx, owner, env.ID, "everything", core.Money{Cents: 50000}, date())
	if err != nil {
		t.Fatal(err)
	}
	if snap.Balance.Cents != 0 || snap.Tier != core.TierDepleted {
		t.Fatalf("expected zero depleted balance, got %+v", snap)
	}
}

func TestUnknownEnvelopeFailsNotFound(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()

	if _, err := e.AddExpense(ctx, owner, 42, "x", core.Money{Cents: 100}, date()); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := e.ComputeBalance(ctx, owner, 42); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := e.DeleteIncomeEntry(ctx, owner, 42); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := e.DeleteExpenseEntry(ctx, owner, 42); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCrossOwnerAccessFailsNotFound(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	env := mustEnvelope(t, e, 100000)

	if _, err := e.AddExpense(ctx, "intruder@example.com", env.ID, "x", core.Money{Cents: 100}, date()); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := e.DeleteEnvelope(ctx, "intruder@example.com", env.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// Create-then-delete of an entry restores the exact previous balance.
func TestEntryDeleteRoundTrip(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	env := mustEnvelope(t, e, 100000)

	before, err := e.ComputeBalance(ctx, owner, env.ID)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := e.AddIncome(ctx, owner, env.ID, "bonus", core.Money{Cents: 7700}, date()); err != nil {
		t.Fatal(err)
	}
	feed, _ := e.Feed(ctx, owner, env.ID, 0)
	if len(feed) != 1 {
		t.Fatalf("expected 1 feed row, got %d", len(feed))
	}

	after, err := e.DeleteIncomeEntry(ctx, owner, feed[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if after.Balance != before.Balance {
		t.Fatalf("delete did not restore balance: %d != %d", after.Balance.Cents, before.Balance.Cents)
	}
}

// The documented asymmetry: deleting income is unguarded and may drive the
// balance negative retroactively.
func TestIncomeDeletionMayGoNegative(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	env := mustEnvelope(t, e, 100000) // 1000.00

	if _, err := e.AddExpense(ctx, owner, env.ID, "groceries", core.Money{Cents: 40000}, date()); err != nil {
		t.Fatal(err) // balance 600
	}
	if _, err := e.AddExpense(ctx, owner, env.ID, "rent", core.Money{Cents: 70000}, date()); !errors.Is(err, core.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	snap, _ := e.ComputeBalance(ctx, owner, env.ID)
	if snap.Balance.Cents != 60000 {
		t.Fatalf("expected balance 60000, got %d", snap.Balance.Cents)
	}

	if _, err := e.AddIncome(ctx, owner, env.ID, "bonus", core.Money{Cents: 20000}, date()); err != nil {
		t.Fatal(err) // balance 800
	}
	snap, err := e.AddExpense(ctx, owner, env.ID, "rent", core.Money{Cents: 70000}, date())
	if err != nil {
		t.Fatal(err)
	}
	if snap.Balance.Cents != 10000 {
		t.Fatalf("expected balance 10000, got %d", snap.Balance.Cents)
	}

	// Find and delete the income entry of 200.00.
	feed, _ := e.Feed(ctx, owner, env.ID, 0)
	var incomeID int64
	for _, row := range feed {
		if row.Kind == core.KindIncome {
			incomeID = row.ID
		}
	}
	if incomeID == 0 {
		t.Fatal("income entry not found in feed")
	}

	snap, err = e.DeleteIncomeEntry(ctx, owner, incomeID)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Balance.Cents != -10000 {
		t.Fatalf("expected balance -10000, got %d", snap.Balance.Cents)
	}
	if snap.Tier != core.TierDepleted {
		t.Fatalf("expected depleted tier, got %s", snap.Tier)
	}
}

// The invariant balance == allocation + Σincome − Σexpense holds after every
// operation, recomputed fresh each time.
func TestBalanceInvariantAfterEachOperation(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	env := mustEnvelope(t, e, 30000)

	var income, expense int64
	check := func() {
		t.Helper()
		snap, err := e.ComputeBalance(ctx, owner, env.ID)
		if err != nil {
			t.Fatal(err)
		}
		want := 30000 + income - expense
		if snap.Balance.Cents != want {
			t.Fatalf("invariant broken: expected %d, got %d", want, snap.Balance.Cents)
		}
	}

	check()
	if _, err := e.AddIncome(ctx, owner, env.ID, "a", core.Money{Cents: 5000}, date()); err != nil {
		t.Fatal(err)
	}
	income += 5000
	check()
	if _, err := e.AddExpense(ctx, owner, env.ID, "b", core.Money{Cents: 12000}, date()); err != nil {
		t.Fatal(err)
	}
	expense += 12000
	check()
	if _, err := e.AddExpense(ctx, owner, env.ID, "c", core.Money{Cents: 23000}, date()); err != nil {
		t.Fatal(err)
	}
	expense += 23000
	check()
}

func TestComputeBalanceDeterministic(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	env := mustEnvelope(t, e, 100000)
	if _, err := e.AddExpense(ctx, owner, env.ID, "x", core.Money{Cents: 2500}, date()); err != nil {
		t.Fatal(err)
	}

	a, err := e.ComputeBalance(ctx, owner, env.ID)
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.ComputeBalance(ctx, owner, env.ID)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatalf("two reads without mutation differ: %+v != %+v", a, b)
	}
}

// EditEnvelope changes the allocation; entry flows never do.
func TestEditEnvelope(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	env := mustEnvelope(t, e, 100000)

	updated, err := e.EditEnvelope(ctx, owner, env.ID, "Renamed", "✈️", core.Money{Cents: 150000})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Name != "Renamed" || updated.Allocation.Cents != 150000 {
		t.Fatalf("unexpected envelope after edit: %+v", updated)
	}

	if _, err := e.EditEnvelope(ctx, owner, env.ID, "X", "", core.Money{Cents: -1}); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestAllocationUntouchedByEntryFlows(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	env := mustEnvelope(t, e, 100000)

	if _, err := e.AddIncome(ctx, owner, env.ID, "a", core.Money{Cents: 5000}, date()); err != nil {
		t.Fatal(err)
	}
	if _, err := e.AddExpense(ctx, owner, env.ID, "b", core.Money{Cents: 3000}, date()); err != nil {
		t.Fatal(err)
	}
	feed, _ := e.Feed(ctx, owner, env.ID, 0)
	for _, row := range feed {
		if row.Kind == core.KindExpense {
			if _, err := e.DeleteExpenseEntry(ctx, owner, row.ID); err != nil {
				t.Fatal(err)
			}
		}
	}

	got, err := e.GetEnvelope(ctx, owner, env.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Envelope.Allocation.Cents != 100000 {
		t.Fatalf("allocation mutated by entry flow: %d", got.Envelope.Allocation.Cents)
	}
}

func TestDeleteEnvelopeCascadesAndFeedEmpties(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	env := mustEnvelope(t, e, 100000)
	other := mustEnvelope(t, e, 50000)

	if _, err := e.AddExpense(ctx, owner, env.ID, "a", core.Money{Cents: 100}, date()); err != nil {
		t.Fatal(err)
	}
	if _, err := e.AddIncome(ctx, owner, other.ID, "b", core.Money{Cents: 200}, date()); err != nil {
		t.Fatal(err)
	}

	if err := e.DeleteEnvelope(ctx, owner, env.ID); err != nil {
		t.Fatal(err)
	}

	feed, err := e.Feed(ctx, owner, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(feed) != 1 || feed[0].EnvelopeID != other.ID {
		t.Fatalf("expected only the surviving envelope's entry, got %+v", feed)
	}
}

func TestListEnvelopesSummaries(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	first := mustEnvelope(t, e, 100000)
	second := mustEnvelope(t, e, 40000)
	if _, err := e.AddExpense(ctx, owner, second.ID, "x", core.Money{Cents: 30000}, date()); err != nil {
		t.Fatal(err)
	}

	list, err := e.ListEnvelopes(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 envelopes, got %d", len(list))
	}
	// Newest first.
	if list[0].Envelope.ID != second.ID || list[1].Envelope.ID != first.ID {
		t.Fatalf("unexpected order: %+v", list)
	}
	if list[0].Items != 1 || list[0].Snapshot.Balance.Cents != 10000 {
		t.Fatalf("unexpected summary: %+v", list[0])
	}
	if list[0].Snapshot.Tier != core.TierLow {
		t.Fatalf("expected low tier at 25%% remaining, got %s", list[0].Snapshot.Tier)
	}
}

// Two concurrent expenses that are each individually affordable but jointly
// overdraw the envelope: exactly one must succeed.
func TestConcurrentExpensesCannotOverdraw(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	env := mustEnvelope(t, e, 100000) // 1000.00

	const attempts = 2
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.AddExpense(ctx, owner, env.ID, "big", core.Money{Cents: 60000}, date())
		}(i)
	}
	wg.Wait()

	var succeeded, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, core.ErrInsufficientFunds):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || insufficient != 1 {
		t.Fatalf("expected exactly one success and one rejection, got %d/%d", succeeded, insufficient)
	}

	snap, err := e.ComputeBalance(ctx, owner, env.ID)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Balance.Cents != 40000 {
		t.Fatalf("expected balance 40000, got %d", snap.Balance.Cents)
	}
}

// Heavier interleaving: many concurrent expenses against one envelope must
// never drive the balance negative.
func TestConcurrentExpenseStormNeverOverdraws(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	env := mustEnvelope(t, e, 10000) // 100.00

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.AddExpense(ctx, owner, env.ID, "nibble", core.Money{Cents: 900}, date())
			if err != nil && !errors.Is(err, core.ErrInsufficientFunds) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	snap, err := e.ComputeBalance(ctx, owner, env.ID)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Balance.Cents < 0 {
		t.Fatalf("balance overdrawn: %d", snap.Balance.Cents)
	}
}

// Mutations on different envelopes are independent: a storm across two
// envelopes keeps both non-negative and both make progress.
func TestConcurrentMutationsAcrossEnvelopes(t *testing.T) {
	e := newTestEngine()
	ctx := context.Background()
	a := mustEnvelope(t, e, 50000)
	b := mustEnvelope(t, e, 50000)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		for _, id := range []int64{a.ID, b.ID} {
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				if _, err := e.AddIncome(ctx, owner, id, "tick", core.Money{Cents: 100}, date()); err != nil {
					t.Errorf("income failed: %v", err)
				}
			}(id)
		}
	}
	wg.Wait()

	for _, id := range []int64{a.ID, b.ID} {
		snap, err := e.ComputeBalance(ctx, owner, id)
		if err != nil {
			t.Fatal(err)
		}
		if snap.Balance.Cents != 52000 {
			t.Fatalf("envelope %d: expected 52000, got %d", id, snap.Balance.Cents)
		}
	}
}
