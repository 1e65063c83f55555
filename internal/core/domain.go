package core

import (
	"errors"
	"strings"
	"time"
)

const maxLabelLen = 200

// Envelope is a named budget bucket with a fixed allocation. The allocation
// is immutable input: it changes only through the explicit edit operation,
// never as a side effect of income or expense entries. The spendable balance
// is always derived from it, never stored.
type Envelope struct {
	ID         int64
	Owner      string
	Name       string
	Icon       string
	Allocation Money
	CreatedAt  time.Time
}

// IncomeEntry is an immutable amount added to an envelope. Deleting it
// reverses its contribution on the next balance read.
type IncomeEntry struct {
	ID         int64
	EnvelopeID int64
	Label      string
	Amount     Money
	Date       Date
}

// ExpenseEntry is the expense-side counterpart of IncomeEntry.
type ExpenseEntry struct {
	ID         int64
	EnvelopeID int64
	Label      string
	Amount     Money
	Date       Date
}

func (e Envelope) Validate() error {
	if strings.TrimSpace(e.Owner) == "" {
		return ErrEmptyOwner
	}
	if strings.TrimSpace(e.Name) == "" {
		return ErrEmptyName
	}
	if len(e.Name) > maxLabelLen {
		return errors.New("name too long (max 200 characters)")
	}
	if e.Allocation.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (i IncomeEntry) Validate() error {
	if i.EnvelopeID <= 0 {
		return errors.New("missing envelope id")
	}
	if len(i.Label) > maxLabelLen {
		return errors.New("label too long (max 200 characters)")
	}
	if err := i.Amount.Validate(); err != nil {
		return err
	}
	return i.Date.Validate()
}

func (e ExpenseEntry) Validate() error {
	if e.EnvelopeID <= 0 {
		return errors.New("missing envelope id")
	}
	if strings.TrimSpace(e.Label) == "" {
		return ErrEmptyName
	}
	if len(e.Label) > maxLabelLen {
		return errors.New("label too long (max 200 characters)")
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	return e.Date.Validate()
}
