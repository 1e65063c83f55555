package http

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"envelopes/internal/core"
)

type contextKey string

const requestIDKey contextKey = "request_id"

const maxBodyBytes = 64 << 10

var errNoOwner = errors.New("missing X-Owner header")

// ownerFromRequest reads the opaque owner id set by the upstream
// authenticator. Comparison elsewhere is exact string match.
func ownerFromRequest(r *http.Request) (string, error) {
	owner := strings.TrimSpace(r.Header.Get("X-Owner"))
	if owner == "" {
		return "", errNoOwner
	}
	return owner, nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", r.PathValue("id"))
	}
	return id, nil
}

func decodeBody(r *http.Request, into any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, into); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

type envelopeRequest struct {
	Name       string `json:"name"`
	Icon       string `json:"icon"`
	Allocation string `json:"allocation"`
}

type entryRequest struct {
	Label  string `json:"label"`
	Amount string `json:"amount"`
	Date   string `json:"date"` // DD/MM/YYYY, empty means today
}

// entryDate parses the request date field, defaulting to today.
func (e entryRequest) entryDate() (core.Date, error) {
	if strings.TrimSpace(e.Date) == "" {
		return core.Today(), nil
	}
	return core.ParseDate(e.Date)
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
