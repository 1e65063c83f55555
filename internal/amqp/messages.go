package amqp

import (
	"encoding/json"
	"time"
)

// Activity operation names carried on the wire.
const (
	OpEnvelopeCreated = "envelope.created"
	OpEnvelopeUpdated = "envelope.updated"
	OpEnvelopeDeleted = "envelope.deleted"
	OpIncomeCreated   = "income.created"
	OpIncomeDeleted   = "income.deleted"
	OpExpenseCreated  = "expense.created"
	OpExpenseDeleted  = "expense.deleted"
)

// ActivityMessage announces a committed mutation. Consumers re-read the
// engine for current state; the message intentionally carries no balance.
type ActivityMessage struct {
	Op         string    `json:"op"`
	Owner      string    `json:"owner"`
	EnvelopeID int64     `json:"envelope_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewActivityMessage(op, owner string, envelopeID int64) *ActivityMessage {
	return &ActivityMessage{
		Op:         op,
		Owner:      owner,
		EnvelopeID: envelopeID,
		OccurredAt: time.Now().UTC(),
	}
}

func (m *ActivityMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ActivityMessageFromJSON(data []byte) (*ActivityMessage, error) {
	var m ActivityMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
