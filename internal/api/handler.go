package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/eugenenazirov/meals-shell/internal/flags"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// FlagsProvider exposes the flags handed to the front-end application, if any.
type FlagsProvider interface {
	Flags() (flags.Flags, bool)
}

// Handler serves the shell's JSON endpoints.
type Handler struct {
	flags   FlagsProvider
	started time.Time

	clock func() time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// NewHandler constructs a Handler reading flags from provider.
func NewHandler(provider FlagsProvider, opts ...HandlerOption) *Handler {
	h := &Handler{
		flags: provider,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.started = h.clock()
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	_, launched := h.flags.Flags()

	resp := healthResponse{
		Status:    "ok",
		Launched:  launched,
		StartedAt: h.started,
		Timestamp: h.clock(),
	}
	if !launched {
		resp.Status = "starting"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetFlags(w http.ResponseWriter, r *http.Request) {
	_ = r
	resolved, ok := h.flags.Flags()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "Not launched", "flags have not been handed to the application yet")
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, resolved)
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type healthResponse struct {
	Status    string    `json:"status"`
	Launched  bool      `json:"launched"`
	StartedAt time.Time `json:"startedAt"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, errorResponse{Error: message, Details: details})
}
