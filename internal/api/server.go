package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"interview-orchestrator/internal/config"
	"interview-orchestrator/internal/dispatch"
	"interview-orchestrator/internal/events"
	"interview-orchestrator/internal/queue"
	"interview-orchestrator/internal/ratelimit"
	"interview-orchestrator/internal/realtime"
	"interview-orchestrator/internal/store"
	"interview-orchestrator/internal/telemetry"
)

// Server wires HTTP handlers for the producer API: event emission, event
// status, DLQ inspection, and realtime subscription tokens.
type Server struct {
	cfg     config.Config
	store   *store.Store
	queue   *queue.RedisQueue
	emitter *dispatch.Emitter
	tokens  *realtime.TokenIssuer
	limiter *ratelimit.TokenBucket
}

// New constructs the API server.
func New(cfg config.Config, st *store.Store, q *queue.RedisQueue, emitter *dispatch.Emitter, tokens *realtime.TokenIssuer, limiter *ratelimit.TokenBucket) *Server {
	return &Server{
		cfg:     cfg,
		store:   st,
		queue:   q,
		emitter: emitter,
		tokens:  tokens,
		limiter: limiter,
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/metrics", telemetry.Handler())

	r.Post("/events", s.handleEmit)
	r.Get("/events/{id}", s.handleGetEvent)
	r.Get("/events/{id}/audit", s.handleAudit)
	r.Post("/events/{id}/cancel", s.handleCancel)
	r.Get("/dlq", s.handleDLQ)
	r.Post("/realtime/token", s.handleRealtimeToken)
	return r
}

type emitRequest struct {
	Name           string         `json:"name"`
	Payload        map[string]any `json:"payload"`
	IdempotencyKey string         `json:"idempotency_key"`
	RunAt          *time.Time     `json:"run_at"`
	DelaySeconds   int            `json:"delay_seconds"`
	Priority       string         `json:"priority"`
	MaxAttempts    int            `json:"max_attempts"`
}

type emitResponse struct {
	Event      any  `json:"event"`
	Idempotent bool `json:"idempotent"`
}

func (s *Server) handleEmit(w http.ResponseWriter, r *http.Request) {
	var req emitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	tenant := tenantFromRequest(r)
	if s.limiter != nil {
		allowed, _, err := s.limiter.Allow(r.Context(), tenant)
		if err != nil {
			http.Error(w, "rate limit error", http.StatusInternalServerError)
			return
		}
		if !allowed {
			telemetry.RateLimitRejects.Inc()
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
	}

	var runAt time.Time
	if req.RunAt != nil {
		runAt = *req.RunAt
	}
	if req.DelaySeconds > 0 {
		runAt = time.Now().Add(time.Duration(req.DelaySeconds) * time.Second)
	}

	event, idempotent, err := s.emitter.EmitRaw(r.Context(), req.Name, req.Payload, dispatch.Options{
		Priority:       req.Priority,
		Tenant:         tenant,
		IdempotencyKey: req.IdempotencyKey,
		RunAt:          runAt,
		MaxAttempts:    req.MaxAttempts,
	})
	if err != nil {
		var verr *events.ValidationError
		switch {
		case errors.Is(err, events.ErrUnknownEvent):
			http.Error(w, fmt.Sprintf("unknown event name %q", req.Name), http.StatusBadRequest)
		case errors.As(err, &verr):
			http.Error(w, verr.Error(), http.StatusUnprocessableEntity)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusAccepted, emitResponse{Event: event, Idempotent: idempotent})
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	event, err := s.store.GetEvent(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// handleAudit returns the audit trail recorded for one event.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetEvent(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	logs, err := s.store.ListAudit(r.Context(), id)
	if err != nil {
		http.Error(w, "failed to read audit trail", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": logs})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.queue.Cancel(r.Context(), id); err != nil {
		http.Error(w, "failed to cancel queue item", http.StatusInternalServerError)
		return
	}
	if err := s.store.MarkCancelled(r.Context(), id); err != nil {
		http.Error(w, "failed to cancel event", http.StatusInternalServerError)
		return
	}
	_ = s.store.AppendAudit(r.Context(), id, "cancelled", "cancel requested via API")
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// handleDLQ returns the DLQ contents (IDs only).
func (s *Server) handleDLQ(w http.ResponseWriter, r *http.Request) {
	items, err := s.queue.DLQPeek(r.Context(), 100)
	if err != nil {
		http.Error(w, "failed to read dlq", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type tokenRequest struct {
	ChannelKey string   `json:"channel_key"`
	Topics     []string `json:"topics"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// handleRealtimeToken mints a subscription token after checking the caller's
// workspace actually owns the entity behind the channel key.
func (s *Server) handleRealtimeToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	ch, ok := realtime.ChannelForKey(req.ChannelKey)
	if !ok {
		http.Error(w, "unknown channel key", http.StatusBadRequest)
		return
	}

	workspaceID := r.Header.Get("X-Workspace-ID")
	if workspaceID == "" {
		http.Error(w, "workspace is required", http.StatusUnauthorized)
		return
	}
	owns, err := s.store.WorkspaceOwnsVacancy(r.Context(), workspaceID, realtime.EntityID(ch.Key))
	if err != nil {
		http.Error(w, "authorization check failed", http.StatusInternalServerError)
		return
	}
	if !owns {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	topics := req.Topics
	if len(topics) == 0 {
		topics = ch.Topics
	}
	token, err := s.tokens.Mint(ch, topics)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

func tenantFromRequest(r *http.Request) string {
	if v := r.Header.Get("X-Tenant-ID"); v != "" {
		return v
	}
	return "default"
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
