package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fundsage/FundSage/internal/adapter/ws"
	"github.com/fundsage/FundSage/internal/domain"
	"github.com/fundsage/FundSage/internal/domain/flow"
	"github.com/fundsage/FundSage/internal/domain/pension"
	"github.com/fundsage/FundSage/internal/port/database"
	"github.com/fundsage/FundSage/internal/port/messagequeue"
	"github.com/fundsage/FundSage/internal/service"
)

const maxQueryLength = 2000

// Handlers holds the dependencies of all HTTP handlers.
type Handlers struct {
	engine  *service.Engine
	archive *service.Archive
	store   database.Store
	hub     *ws.Hub
	queue   messagequeue.Queue // optional; health reporting only
}

// NewHandlers creates the handler set. queue may be nil.
func NewHandlers(engine *service.Engine, archive *service.Archive, store database.Store, hub *ws.Hub, queue messagequeue.Queue) *Handlers {
	return &Handlers{
		engine:  engine,
		archive: archive,
		store:   store,
		hub:     hub,
		queue:   queue,
	}
}

type analysisRequest struct {
	SubjectID string `json:"subject_id"`
	Query     string `json:"query"`
}

func (req *analysisRequest) validate(w http.ResponseWriter) bool {
	if !requireField(w, req.SubjectID, "subject_id") {
		return false
	}
	if !requireField(w, req.Query, "query") {
		return false
	}
	if len(req.Query) > maxQueryLength {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("query too long (max %d chars)", maxQueryLength))
		return false
	}
	return true
}

// StartAnalysis handles POST /api/v1/analysis. It runs one orchestrated
// analysis to completion and returns the final result.
func (h *Handlers) StartAnalysis(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[analysisRequest](w, r)
	if !ok {
		return
	}
	if !req.validate(w) {
		return
	}

	result, err := h.engine.Run(r.Context(), flow.RunRequest{
		SubjectID: req.SubjectID,
		Query:     req.Query,
	})
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// StreamAnalysis handles POST /api/v1/analysis/stream. It runs one analysis
// and streams a Server-Sent Event per dispatcher transition, terminated by a
// "result" event carrying the final payload.
func (h *Handlers) StreamAnalysis(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[analysisRequest](w, r)
	if !ok {
		return
	}
	if !req.validate(w) {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	result, err := h.engine.RunStream(r.Context(), flow.RunRequest{
		SubjectID: req.SubjectID,
		Query:     req.Query,
	}, func(ev flow.Event) {
		writeSSE(w, "step", ev)
		flusher.Flush()
	})
	if err != nil {
		writeSSE(w, "error", errorResponse{Error: "analysis failed"})
		flusher.Flush()
		return
	}

	writeSSE(w, "result", result)
	flusher.Flush()
}

// writeSSE writes one named Server-Sent Event with a JSON payload.
func writeSSE(w http.ResponseWriter, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

// GetRun handles GET /api/v1/runs/{id}.
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.archive.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ListRuns handles GET /api/v1/runs?subject_id=...&limit=N.
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	subjectID := r.URL.Query().Get("subject_id")
	if !requireField(w, subjectID, "subject_id") {
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	recs, err := h.archive.ListBySubject(r.Context(), subjectID, limit)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if recs == nil {
		recs = []database.RunRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// GetMember handles GET /api/v1/members/{id}. It returns the raw pension
// record the workers analyze.
func (h *Handlers) GetMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.store.GetPensionRecord(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "member not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// UpsertMember handles PUT /api/v1/members/{id}.
func (h *Handlers) UpsertMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, ok := readJSON[pension.Record](w, r)
	if !ok {
		return
	}
	rec.SubjectID = id

	if err := h.store.UpsertPensionRecord(r.Context(), &rec); err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleWS upgrades GET /ws to a WebSocket subscribed to run events.
func (h *Handlers) HandleWS(w http.ResponseWriter, r *http.Request) {
	h.hub.HandleWS(w, r)
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":         "ok",
		"ws_connections": h.hub.ConnectionCount(),
	}
	if h.queue != nil {
		status["queue_connected"] = h.queue.IsConnected()
	}

	// The store is the one hard dependency; probe it with a known-missing key.
	if _, err := h.store.GetPensionRecord(r.Context(), "health-probe"); err != nil && !errors.Is(err, domain.ErrNotFound) {
		status["status"] = "degraded"
		status["database"] = "unreachable"
		writeJSON(w, http.StatusServiceUnavailable, status)
		return
	}

	writeJSON(w, http.StatusOK, status)
}
