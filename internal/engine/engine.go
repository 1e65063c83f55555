// Package engine is the envelope ledger engine: it guards every mutation
// with the per-envelope consistency checks, derives balances fresh on every
// read, and composes the merged transaction feed.
//
// The balance of an envelope is never stored. It is always
//
//	allocation + Σ income − Σ expense
//
// recomputed from the entry store, so deleting an entry reverses its
// contribution with no compensating write. The allocation itself changes
// only through EditEnvelope.
package engine

import (
	"context"
	"log/slog"
	"strings"

	"envelopes/internal/amqp"
	"envelopes/internal/core"
	"envelopes/internal/storage"
)

// Engine wraps an entry store with the consistency guard. Mutations on the
// same envelope are serialized through a keyed mutex; mutations on different
// envelopes proceed concurrently.
type Engine struct {
	store  storage.Store
	locks  *keyedMutex
	events *amqp.Client // nil disables activity publishing
}

func New(store storage.Store, events *amqp.Client) *Engine {
	return &Engine{
		store:  store,
		locks:  newKeyedMutex(),
		events: events,
	}
}

// EnvelopeSummary pairs an envelope with its derived snapshot and entry
// count for list views.
type EnvelopeSummary struct {
	Envelope core.Envelope `json:"envelope"`
	Snapshot core.Snapshot `json:"snapshot"`
	Items    int           `json:"items"`
}

func (e *Engine) CreateEnvelope(ctx context.Context, owner, name, icon string, allocation core.Money) (core.Envelope, error) {
	if allocation.Cents < 0 {
		return core.Envelope{}, core.ErrInvalidAmount
	}

	env, err := e.store.CreateEnvelope(ctx, core.Envelope{
		Owner:      owner,
		Name:       strings.TrimSpace(name),
		Icon:       icon,
		Allocation: allocation,
	})
	if err != nil {
		return core.Envelope{}, err
	}

	e.publishActivity(ctx, amqp.OpEnvelopeCreated, owner, env.ID)
	return env, nil
}

// EditEnvelope is the only operation allowed to change an allocation, and it
// is invoked by an explicit human action, never by income/expense flows.
func (e *Engine) EditEnvelope(ctx context.Context, owner string, id int64, name, icon string, allocation core.Money) (core.Envelope, error) {
	if allocation.Cents < 0 {
		return core.Envelope{}, core.ErrInvalidAmount
	}

	e.locks.Lock(id)
	defer e.locks.Unlock(id)

	env, err := e.store.UpdateEnvelope(ctx, core.Envelope{
		ID:         id,
		Owner:      owner,
		Name:       strings.TrimSpace(name),
		Icon:       icon,
		Allocation: allocation,
	})
	if err != nil {
		return core.Envelope{}, err
	}

	e.publishActivity(ctx, amqp.OpEnvelopeUpdated, owner, id)
	return env, nil
}

// DeleteEnvelope cascades to all entries of the envelope. Irreversible.
func (e *Engine) DeleteEnvelope(ctx context.Context, owner string, id int64) error {
	e.locks.Lock(id)
	defer e.locks.Unlock(id)

	if err := e.store.DeleteEnvelope(ctx, owner, id); err != nil {
		return err
	}

	e.publishActivity(ctx, amqp.OpEnvelopeDeleted, owner, id)
	return nil
}

// AddIncome records an income entry and returns the post-mutation snapshot.
// There is no upper bound on income.
func (e *Engine) AddIncome(ctx context.Context, owner string, envelopeID int64, label string, amount core.Money, date core.Date) (core.Snapshot, error) {
	if err := amount.Validate(); err != nil {
		return core.Snapshot{}, err
	}
	label = strings.TrimSpace(label)
	if label == "" {
		label = "Income"
	}

	e.locks.Lock(envelopeID)
	defer e.locks.Unlock(envelopeID)

	env, err := e.store.GetEnvelope(ctx, owner, envelopeID)
	if err != nil {
		return core.Snapshot{}, err
	}

	entry, err := e.store.CreateIncome(ctx, core.IncomeEntry{
		EnvelopeID: env.ID,
		Label:      label,
		Amount:     amount,
		Date:       date,
	})
	if err != nil {
		return core.Snapshot{}, err
	}

	snap, err := e.snapshot(ctx, env)
	if err != nil {
		return core.Snapshot{}, err
	}

	slog.InfoContext(ctx, "Income recorded",
		"entry_id", entry.ID,
		"envelope_id", env.ID,
		"amount_cents", amount.Cents,
		"balance_cents", snap.Balance.Cents)

	e.publishActivity(ctx, amqp.OpIncomeCreated, owner, env.ID)
	return snap, nil
}

// AddExpense checks the derived balance and records an expense entry as one
// atomic step with respect to other mutations on the same envelope. If the
// entry would drive the balance negative, it fails with ErrInsufficientFunds
// and writes nothing.
func (e *Engine) AddExpense(ctx context.Context, owner string, envelopeID int64, label string, amount core.Money, date core.Date) (core.Snapshot, error) {
	if err := amount.Validate(); err != nil {
		return core.Snapshot{}, err
	}

	e.locks.Lock(envelopeID)
	defer e.locks.Unlock(envelopeID)

	env, err := e.store.GetEnvelope(ctx, owner, envelopeID)
	if err != nil {
		return core.Snapshot{}, err
	}

	current, err := e.snapshot(ctx, env)
	if err != nil {
		return core.Snapshot{}, err
	}
	if current.Balance.LessThan(amount) {
		slog.InfoContext(ctx, "Expense rejected",
			"envelope_id", env.ID,
			"amount_cents", amount.Cents,
			"balance_cents", current.Balance.Cents)
		return core.Snapshot{}, core.ErrInsufficientFunds
	}

	entry, err := e.store.CreateExpense(ctx, core.ExpenseEntry{
		EnvelopeID: env.ID,
		Label:      strings.TrimSpace(label),
		Amount:     amount,
		Date:       date,
	})
	if err != nil {
		return core.Snapshot{}, err
	}

	snap, err := e.snapshot(ctx, env)
	if err != nil {
		return core.Snapshot{}, err
	}

	slog.InfoContext(ctx, "Expense recorded",
		"entry_id", entry.ID,
		"envelope_id", env.ID,
		"amount_cents", amount.Cents,
		"balance_cents", snap.Balance.Cents)

	e.publishActivity(ctx, amqp.OpExpenseCreated, owner, env.ID)
	return snap, nil
}

// DeleteIncomeEntry removes an income entry. The reversal may drive the
// balance negative; only expense creation checks the balance.
func (e *Engine) DeleteIncomeEntry(ctx context.Context, owner string, id int64) (core.Snapshot, error) {
	entry, err := e.store.GetIncome(ctx, owner, id)
	if err != nil {
		return core.Snapshot{}, err
	}

	e.locks.Lock(entry.EnvelopeID)
	defer e.locks.Unlock(entry.EnvelopeID)

	env, err := e.store.GetEnvelope(ctx, owner, entry.EnvelopeID)
	if err != nil {
		return core.Snapshot{}, err
	}
	if err := e.store.DeleteIncome(ctx, owner, id); err != nil {
		return core.Snapshot{}, err
	}

	snap, err := e.snapshot(ctx, env)
	if err != nil {
		return core.Snapshot{}, err
	}

	slog.InfoContext(ctx, "Income entry deleted",
		"entry_id", id,
		"envelope_id", env.ID,
		"balance_cents", snap.Balance.Cents)

	e.publishActivity(ctx, amqp.OpIncomeDeleted, owner, env.ID)
	return snap, nil
}

// DeleteExpenseEntry removes an expense entry; the balance reflects the
// reversal on the next read.
func (e *Engine) DeleteExpenseEntry(ctx context.Context, owner string, id int64) (core.Snapshot, error) {
	entry, err := e.store.GetExpense(ctx, owner, id)
	if err != nil {
		return core.Snapshot{}, err
	}

	e.locks.Lock(entry.EnvelopeID)
	defer e.locks.Unlock(entry.EnvelopeID)

	env, err := e.store.GetEnvelope(ctx, owner, entry.EnvelopeID)
	if err != nil {
		return core.Snapshot{}, err
	}
	if err := e.store.DeleteExpense(ctx, owner, id); err != nil {
		return core.Snapshot{}, err
	}

	snap, err := e.snapshot(ctx, env)
	if err != nil {
		return core.Snapshot{}, err
	}

	slog.InfoContext(ctx, "Expense entry deleted",
		"entry_id", id,
		"envelope_id", env.ID,
		"balance_cents", snap.Balance.Cents)

	e.publishActivity(ctx, amqp.OpExpenseDeleted, owner, env.ID)
	return snap, nil
}

// ComputeBalance derives the current snapshot of one envelope. Read-only,
// side-effect-free and safe to call arbitrarily often.
func (e *Engine) ComputeBalance(ctx context.Context, owner string, envelopeID int64) (core.Snapshot, error) {
	env, err := e.store.GetEnvelope(ctx, owner, envelopeID)
	if err != nil {
		return core.Snapshot{}, err
	}
	return e.snapshot(ctx, env)
}

// ListEnvelopes returns the owner's envelopes, newest first, each with its
// derived snapshot and expense count.
func (e *Engine) ListEnvelopes(ctx context.Context, owner string) ([]EnvelopeSummary, error) {
	envs, err := e.store.ListEnvelopes(ctx, owner)
	if err != nil {
		return nil, err
	}

	out := make([]EnvelopeSummary, 0, len(envs))
	for _, env := range envs {
		snap, err := e.snapshot(ctx, env)
		if err != nil {
			return nil, err
		}
		expenses, err := e.store.ListExpense(ctx, owner, env.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, EnvelopeSummary{Envelope: env, Snapshot: snap, Items: len(expenses)})
	}
	return out, nil
}

// GetEnvelope returns one envelope with its snapshot.
func (e *Engine) GetEnvelope(ctx context.Context, owner string, id int64) (EnvelopeSummary, error) {
	env, err := e.store.GetEnvelope(ctx, owner, id)
	if err != nil {
		return EnvelopeSummary{}, err
	}
	snap, err := e.snapshot(ctx, env)
	if err != nil {
		return EnvelopeSummary{}, err
	}
	expenses, err := e.store.ListExpense(ctx, owner, env.ID)
	if err != nil {
		return EnvelopeSummary{}, err
	}
	return EnvelopeSummary{Envelope: env, Snapshot: snap, Items: len(expenses)}, nil
}

func (e *Engine) snapshot(ctx context.Context, env core.Envelope) (core.Snapshot, error) {
	income, err := e.store.SumIncome(ctx, env.Owner, env.ID)
	if err != nil {
		return core.Snapshot{}, err
	}
	expense, err := e.store.SumExpense(ctx, env.Owner, env.ID)
	if err != nil {
		return core.Snapshot{}, err
	}
	return core.NewSnapshot(env.ID, env.Allocation, income, expense), nil
}

// publishActivity announces a committed mutation. Failures are logged and
// swallowed: the write already happened and consumers re-read anyway.
func (e *Engine) publishActivity(ctx context.Context, op, owner string, envelopeID int64) {
	if e.events == nil {
		return
	}
	msg := amqp.NewActivityMessage(op, owner, envelopeID)
	if err := e.events.PublishActivity(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish activity message",
			"error", err,
			"op", op,
			"envelope_id", envelopeID)
	}
}

// Close releases the store and, when configured, the event client.
func (e *Engine) Close() error {
	var firstErr error
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			firstErr = err
		}
	}
	if e.events != nil {
		if err := e.events.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
