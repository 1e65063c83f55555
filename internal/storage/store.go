// Package storage defines the entry store contract and its SQL-backed
// implementations. Every read and write is scoped by the owner identifier;
// ids that exist but belong to another owner behave exactly like ids that do
// not exist.
package storage

import (
	"context"

	"envelopes/internal/core"
)

// Store is durable storage for envelopes and their entries.
//
// Implementations map absent or foreign-owned ids to core.ErrNotFound and
// wrap driver failures with core.ErrStorage. They provide read-committed
// consistency; per-envelope mutation serialization is the engine's job.
type Store interface {
	CreateEnvelope(ctx context.Context, e core.Envelope) (core.Envelope, error)
	GetEnvelope(ctx context.Context, owner string, id int64) (core.Envelope, error)
	ListEnvelopes(ctx context.Context, owner string) ([]core.Envelope, error)
	UpdateEnvelope(ctx context.Context, e core.Envelope) (core.Envelope, error)

	// DeleteEnvelope removes the envelope and all of its entries in one
	// atomic step. A partial cascade must never be observable.
	DeleteEnvelope(ctx context.Context, owner string, id int64) error

	CreateIncome(ctx context.Context, in core.IncomeEntry) (core.IncomeEntry, error)
	CreateExpense(ctx context.Context, ex core.ExpenseEntry) (core.ExpenseEntry, error)
	GetIncome(ctx context.Context, owner string, id int64) (core.IncomeEntry, error)
	GetExpense(ctx context.Context, owner string, id int64) (core.ExpenseEntry, error)
	DeleteIncome(ctx context.Context, owner string, id int64) error
	DeleteExpense(ctx context.Context, owner string, id int64) error
	ListIncome(ctx context.Context, owner string, envelopeID int64) ([]core.IncomeEntry, error)
	ListExpense(ctx context.Context, owner string, envelopeID int64) ([]core.ExpenseEntry, error)

	// SumIncome and SumExpense aggregate all entries of one envelope.
	// Absent entries sum to zero cents, never to NULL.
	SumIncome(ctx context.Context, owner string, envelopeID int64) (core.Money, error)
	SumExpense(ctx context.Context, owner string, envelopeID int64) (core.Money, error)

	// FeedIncome and FeedExpense return feed rows joined with envelope name
	// and icon. envelopeID 0 means all envelopes of the owner.
	FeedIncome(ctx context.Context, owner string, envelopeID int64) ([]core.TransactionView, error)
	FeedExpense(ctx context.Context, owner string, envelopeID int64) ([]core.TransactionView, error)

	Close() error
}
