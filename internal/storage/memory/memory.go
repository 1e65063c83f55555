// Package memory provides an in-process entry store. It is the default
// backend for local runs and the substrate the engine tests run against.
package memory

import (
	"context"
	"sync"
	"time"

	"envelopes/internal/core"
)

type Store struct {
	mu        sync.Mutex
	envelopes map[int64]core.Envelope
	income    map[int64]core.IncomeEntry
	expenses  map[int64]core.ExpenseEntry

	nextEnvelopeID int64
	nextIncomeID   int64
	nextExpenseID  int64
}

func New() *Store {
	return &Store{
		envelopes: make(map[int64]core.Envelope),
		income:    make(map[int64]core.IncomeEntry),
		expenses:  make(map[int64]core.ExpenseEntry),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) CreateEnvelope(_ context.Context, e core.Envelope) (core.Envelope, error) {
	if err := e.Validate(); err != nil {
		return core.Envelope{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextEnvelopeID++
	e.ID = s.nextEnvelopeID
	e.CreatedAt = time.Now().UTC()
	s.envelopes[e.ID] = e
	return e, nil
}

func (s *Store) GetEnvelope(_ context.Context, owner string, id int64) (core.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getEnvelopeLocked(owner, id)
}

func (s *Store) getEnvelopeLocked(owner string, id int64) (core.Envelope, error) {
	e, ok := s.envelopes[id]
	if !ok || e.Owner != owner {
		return core.Envelope{}, core.ErrNotFound
	}
	return e, nil
}

func (s *Store) ListEnvelopes(_ context.Context, owner string) ([]core.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.Envelope
	// Newest first, matching the SQL backends' ORDER BY id DESC.
	for id := s.nextEnvelopeID; id > 0; id-- {
		if e, ok := s.envelopes[id]; ok && e.Owner == owner {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) UpdateEnvelope(_ context.Context, e core.Envelope) (core.Envelope, error) {
	if err := e.Validate(); err != nil {
		return core.Envelope{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.getEnvelopeLocked(e.Owner, e.ID)
	if err != nil {
		return core.Envelope{}, err
	}
	cur.Name = e.Name
	cur.Icon = e.Icon
	cur.Allocation = e.Allocation
	s.envelopes[cur.ID] = cur
	return cur, nil
}

func (s *Store) DeleteEnvelope(_ context.Context, owner string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getEnvelopeLocked(owner, id); err != nil {
		return err
	}
	delete(s.envelopes, id)
	for entryID, in := range s.income {
		if in.EnvelopeID == id {
			delete(s.income, entryID)
		}
	}
	for entryID, ex := range s.expenses {
		if ex.EnvelopeID == id {
			delete(s.expenses, entryID)
		}
	}
	return nil
}

func (s *Store) CreateIncome(_ context.Context, in core.IncomeEntry) (core.IncomeEntry, error) {
	if err := in.Validate(); err != nil {
		return core.IncomeEntry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextIncomeID++
	in.ID = s.nextIncomeID
	s.income[in.ID] = in
	return in, nil
}

func (s *Store) CreateExpense(_ context.Context, ex core.ExpenseEntry) (core.ExpenseEntry, error) {
	if err := ex.Validate(); err != nil {
		return core.ExpenseEntry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextExpenseID++
	ex.ID = s.nextExpenseID
	s.expenses[ex.ID] = ex
	return ex, nil
}

func (s *Store) GetIncome(_ context.Context, owner string, id int64) (core.IncomeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	in, ok := s.income[id]
	if !ok || !s.ownsLocked(owner, in.EnvelopeID) {
		return core.IncomeEntry{}, core.ErrNotFound
	}
	return in, nil
}

func (s *Store) GetExpense(_ context.Context, owner string, id int64) (core.ExpenseEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ex, ok := s.expenses[id]
	if !ok || !s.ownsLocked(owner, ex.EnvelopeID) {
		return core.ExpenseEntry{}, core.ErrNotFound
	}
	return ex, nil
}

func (s *Store) DeleteIncome(_ context.Context, owner string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	in, ok := s.income[id]
	if !ok || !s.ownsLocked(owner, in.EnvelopeID) {
		return core.ErrNotFound
	}
	delete(s.income, id)
	return nil
}

func (s *Store) DeleteExpense(_ context.Context, owner string, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ex, ok := s.expenses[id]
	if !ok || !s.ownsLocked(owner, ex.EnvelopeID) {
		return core.ErrNotFound
	}
	delete(s.expenses, id)
	return nil
}

func (s *Store) ListIncome(_ context.Context, owner string, envelopeID int64) ([]core.IncomeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.IncomeEntry
	for id := s.nextIncomeID; id > 0; id-- {
		if in, ok := s.income[id]; ok && in.EnvelopeID == envelopeID && s.ownsLocked(owner, in.EnvelopeID) {
			out = append(out, in)
		}
	}
	return out, nil
}

func (s *Store) ListExpense(_ context.Context, owner string, envelopeID int64) ([]core.ExpenseEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.ExpenseEntry
	for id := s.nextExpenseID; id > 0; id-- {
		if ex, ok := s.expenses[id]; ok && ex.EnvelopeID == envelopeID && s.ownsLocked(owner, ex.EnvelopeID) {
			out = append(out, ex)
		}
	}
	return out, nil
}

func (s *Store) SumIncome(_ context.Context, owner string, envelopeID int64) (core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total core.Money
	if !s.ownsLocked(owner, envelopeID) {
		return total, nil
	}
	for _, in := range s.income {
		if in.EnvelopeID == envelopeID {
			total = total.Add(in.Amount)
		}
	}
	return total, nil
}

func (s *Store) SumExpense(_ context.Context, owner string, envelopeID int64) (core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total core.Money
	if !s.ownsLocked(owner, envelopeID) {
		return total, nil
	}
	for _, ex := range s.expenses {
		if ex.EnvelopeID == envelopeID {
			total = total.Add(ex.Amount)
		}
	}
	return total, nil
}

func (s *Store) FeedIncome(_ context.Context, owner string, envelopeID int64) ([]core.TransactionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.TransactionView
	for _, in := range s.income {
		e, ok := s.envelopes[in.EnvelopeID]
		if !ok || e.Owner != owner {
			continue
		}
		if envelopeID != 0 && e.ID != envelopeID {
			continue
		}
		out = append(out, core.TransactionView{
			ID:           in.ID,
			Kind:         core.KindIncome,
			Label:        in.Label,
			Amount:       in.Amount,
			Date:         in.Date,
			EnvelopeID:   e.ID,
			EnvelopeName: e.Name,
			EnvelopeIcon: e.Icon,
		})
	}
	return out, nil
}

func (s *Store) FeedExpense(_ context.Context, owner string, envelopeID int64) ([]core.TransactionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.TransactionView
	for _, ex := range s.expenses {
		e, ok := s.envelopes[ex.EnvelopeID]
		if !ok || e.Owner != owner {
			continue
		}
		if envelopeID != 0 && e.ID != envelopeID {
			continue
		}
		out = append(out, core.TransactionView{
			ID:           ex.ID,
			Kind:         core.KindExpense,
			Label:        ex.Label,
			Amount:       ex.Amount,
			Date:         ex.Date,
			EnvelopeID:   e.ID,
			EnvelopeName: e.Name,
			EnvelopeIcon: e.Icon,
		})
	}
	return out, nil
}

func (s *Store) ownsLocked(owner string, envelopeID int64) bool {
	e, ok := s.envelopes[envelopeID]
	return ok && e.Owner == owner
}
