package engine

import (
	"context"

	"envelopes/internal/core"
)

// Feed returns the merged income/expense feed, newest first. envelopeID 0
// scopes the feed to all envelopes of the owner; limit ≤ 0 means no limit
// and is applied only after sorting.
//
// Feed is a pure read over committed state. It takes no locks, so rows
// reflect whatever the store had at read time (read committed, no snapshot
// isolation).
func (e *Engine) Feed(ctx context.Context, owner string, envelopeID int64, limit int) ([]core.TransactionView, error) {
	if envelopeID != 0 {
		// Scoped feed: make missing/foreign envelopes fail loudly instead
		// of returning an empty feed.
		if _, err := e.store.GetEnvelope(ctx, owner, envelopeID); err != nil {
			return nil, err
		}
	}

	income, err := e.store.FeedIncome(ctx, owner, envelopeID)
	if err != nil {
		return nil, err
	}
	expense, err := e.store.FeedExpense(ctx, owner, envelopeID)
	if err != nil {
		return nil, err
	}

	return core.MergeFeed(income, expense, limit), nil
}
