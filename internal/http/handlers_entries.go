package http

import (
	"context"
	"net/http"

	"envelopes/internal/core"
)

type addEntryFunc func(ctx context.Context, owner string, envelopeID int64, label string, amount core.Money, date core.Date) (core.Snapshot, error)

type deleteEntryFunc func(ctx context.Context, owner string, id int64) (core.Snapshot, error)

func (s *Server) handleAddIncome(w http.ResponseWriter, r *http.Request) {
	s.handleAddEntry(w, r, s.engine.AddIncome)
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	s.handleAddEntry(w, r, s.engine.AddExpense)
}

func (s *Server) handleAddEntry(w http.ResponseWriter, r *http.Request, add addEntryFunc) {
	owner, err := ownerFromRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req entryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	date, err := req.entryDate()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	snap, err := add(r.Context(), owner, id, sanitizeInput(req.Label), amount, date)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	s.invalidateFeeds(owner)
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleDeleteIncome(w http.ResponseWriter, r *http.Request) {
	s.handleDeleteEntry(w, r, s.engine.DeleteIncomeEntry)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	s.handleDeleteEntry(w, r, s.engine.DeleteExpenseEntry)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request, del deleteEntryFunc) {
	owner, err := ownerFromRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := del(r.Context(), owner, id)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	s.invalidateFeeds(owner)
	writeJSON(w, http.StatusOK, snap)
}
