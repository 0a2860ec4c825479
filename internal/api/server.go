package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stewardbot/steward/internal/agent"
)

const maxAskBodySize = 1 << 20 // 1MB

// AskRequest is the front-door request shape.
type AskRequest struct {
	Query          string `json:"query"`
	Specialization string `json:"specialization"`
}

// Runner abstracts the agent loop for the API layer.
type Runner interface {
	Run(ctx context.Context, userQuery, specialization string) agent.Result
}

// NewHandler builds the HTTP front door: one endpoint to run a request
// through the loop, one health probe.
func NewHandler(loop Runner, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()
	r.Post("/ask", handleAsk(loop, log))
	r.Get("/health", handleHealth())
	return r
}

func handleAsk(loop Runner, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxAskBodySize)
		defer r.Body.Close()

		var req AskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body: %v", err)
			return
		}
		if req.Query == "" {
			httpError(w, http.StatusBadRequest, "query is required")
			return
		}

		result := loop.Run(r.Context(), req.Query, req.Specialization)
		log.Info("request handled",
			"specialization", result.Specialization,
			"transcript_entries", len(result.Transcript))
		writeJSON(w, http.StatusOK, result)
	}
}

func handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func httpError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]any{
		"error": fmt.Sprintf(format, args...),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
