package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"envelopes/internal/core"
)

// feedKey is prefixed with the owner so one invalidation call drops every
// cached feed view of that owner.
func feedKey(owner string, envelopeID int64, limit int) string {
	return owner + ":feed:" + strconv.FormatInt(envelopeID, 10) + ":" + strconv.Itoa(limit)
}

func (s *Server) invalidateFeeds(owner string) {
	s.feedCache.DeletePrefix(owner + ":")
}

// handleFeed serves the merged transaction feed. It is the only cached read:
// concurrent identical requests are collapsed through singleflight and hits
// are served from the TTL'd LRU until the next mutation by the same owner.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFromRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var envelopeID int64
	if v := strings.TrimSpace(r.URL.Query().Get("envelope_id")); v != "" {
		envelopeID, err = strconv.ParseInt(v, 10, 64)
		if err != nil || envelopeID <= 0 {
			writeError(w, http.StatusBadRequest, "invalid envelope_id")
			return
		}
	}
	limit := 0
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
	}

	key := feedKey(owner, envelopeID, limit)
	if rows, found := s.feedCache.Get(key); found {
		slog.DebugContext(r.Context(), "Feed cache hit", "owner", owner, "envelope_id", envelopeID)
		writeJSON(w, http.StatusOK, feedResponse(rows))
		return
	}

	result, err, _ := s.feedGroup.Do(key, func() (any, error) {
		rows, err := s.engine.Feed(r.Context(), owner, envelopeID, limit)
		if err != nil {
			return nil, err
		}
		s.feedCache.Set(key, rows)
		return rows, nil
	})
	if err != nil {
		writeEngineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, feedResponse(result.([]core.TransactionView)))
}

// feedResponse keeps the JSON shape stable: an empty feed is [], not null.
func feedResponse(rows []core.TransactionView) []core.TransactionView {
	if rows == nil {
		return []core.TransactionView{}
	}
	return rows
}
