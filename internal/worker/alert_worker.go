// Package worker consumes activity events and raises low-balance alerts.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"envelopes/internal/amqp"
	"envelopes/internal/core"
)

// BalanceReader is the slice of the engine the worker needs.
type BalanceReader interface {
	ComputeBalance(ctx context.Context, owner string, envelopeID int64) (core.Snapshot, error)
}

// AlertWorker watches activity events and warns when an envelope drops into
// the critical or depleted tier. The balance is recomputed from the store on
// every event; the message itself carries no balance.
type AlertWorker struct {
	balances BalanceReader
	cooldown time.Duration

	mu        sync.Mutex
	lastAlert map[int64]time.Time
}

func NewAlertWorker(balances BalanceReader, cooldown time.Duration) *AlertWorker {
	return &AlertWorker{
		balances:  balances,
		cooldown:  cooldown,
		lastAlert: make(map[int64]time.Time),
	}
}

// HandleActivityMessage processes one event. A returned error means the
// message should be redelivered.
func (w *AlertWorker) HandleActivityMessage(ctx context.Context, msg *amqp.ActivityMessage) error {
	slog.InfoContext(ctx, "Processing activity message",
		"op", msg.Op,
		"envelope_id", msg.EnvelopeID)

	if msg.Op == amqp.OpEnvelopeDeleted {
		w.forget(msg.EnvelopeID)
		return nil
	}

	snap, err := w.balances.ComputeBalance(ctx, msg.Owner, msg.EnvelopeID)
	if errors.Is(err, core.ErrNotFound) {
		// Envelope deleted after the event was published. Nothing to alert on.
		w.forget(msg.EnvelopeID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("compute balance for envelope %d: %w", msg.EnvelopeID, err)
	}

	switch snap.Tier {
	case core.TierCritical, core.TierDepleted:
		if !w.shouldAlert(msg.EnvelopeID) {
			slog.DebugContext(ctx, "Alert suppressed by cooldown",
				"envelope_id", msg.EnvelopeID,
				"tier", snap.Tier)
			return nil
		}
		slog.WarnContext(ctx, "Envelope balance low",
			"envelope_id", msg.EnvelopeID,
			"owner", msg.Owner,
			"tier", snap.Tier,
			"balance_cents", snap.Balance.Cents,
			"percent_remaining", snap.PercentRemaining,
			"triggered_by", msg.Op)
	default:
		// Back to low/healthy: clear the cooldown so the next dip alerts
		// again immediately.
		w.forget(msg.EnvelopeID)
	}

	return nil
}

// shouldAlert records an alert for the envelope unless one fired within the
// cooldown window.
func (w *AlertWorker) shouldAlert(envelopeID int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	if last, ok := w.lastAlert[envelopeID]; ok && now.Sub(last) < w.cooldown {
		return false
	}
	w.lastAlert[envelopeID] = now
	return true
}

func (w *AlertWorker) forget(envelopeID int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.lastAlert, envelopeID)
}
