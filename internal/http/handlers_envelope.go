package http

import (
	"net/http"

	"envelopes/internal/core"
)

func (s *Server) handleCreateEnvelope(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFromRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req envelopeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	allocation, err := core.ParseAllocation(req.Allocation)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	env, err := s.engine.CreateEnvelope(r.Context(), owner, sanitizeInput(req.Name), sanitizeInput(req.Icon), allocation)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	s.invalidateFeeds(owner)
	writeJSON(w, http.StatusCreated, env)
}

func (s *Server) handleListEnvelopes(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFromRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	list, err := s.engine.ListEnvelopes(r.Context(), owner)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetEnvelope(w http.ResponseWriter, r *http.Request) {
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

	summary, err := s.engine.GetEnvelope(r.Context(), owner, id)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleEditEnvelope(w http.ResponseWriter, r *http.Request) {
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

	var req envelopeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	allocation, err := core.ParseAllocation(req.Allocation)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	env, err := s.engine.EditEnvelope(r.Context(), owner, id, sanitizeInput(req.Name), sanitizeInput(req.Icon), allocation)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	s.invalidateFeeds(owner)
	writeJSON(w, http.StatusOK, env)
}

func (s *Server) handleDeleteEnvelope(w http.ResponseWriter, r *http.Request) {
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

	if err := s.engine.DeleteEnvelope(r.Context(), owner, id); err != nil {
		writeEngineError(w, r, err)
		return
	}

	s.invalidateFeeds(owner)
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
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

	// Always computed fresh, never cached.
	snap, err := s.engine.ComputeBalance(r.Context(), owner, id)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
