package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/shop-assistant/internal/actions"
)

// ReplayHeader is set on responses served from the replay cache.
const ReplayHeader = "Idempotent-Replay"

// ResponseCache keeps rendered responses of state-changing actions so a
// redelivered message is answered without running the action twice.
type ResponseCache interface {
	Key(action, sender, messageID string) string
	Recall(ctx context.Context, key string) ([]byte, bool, error)
	Remember(ctx context.Context, key string, body []byte) error
}

type Handler struct {
	log      *slog.Logger
	registry *actions.Registry
	cache    ResponseCache
	tracer   trace.Tracer
}

// NewHandler serves registry over the action webhook. cache may be nil.
func NewHandler(log *slog.Logger, registry *actions.Registry, cache ResponseCache) *Handler {
	return &Handler{
		log:      log,
		registry: registry,
		cache:    cache,
		tracer:   otel.Tracer("actions-http"),
	}
}

type webhookReq struct {
	NextAction string          `json:"next_action"`
	SenderID   string          `json:"sender_id"`
	Tracker    actions.Tracker `json:"tracker"`
}

type webhookResp struct {
	Events    []any             `json:"events"`
	Responses []actions.Message `json:"responses"`
}

type errorResp struct {
	Error      string `json:"error"`
	ActionName string `json:"action_name,omitempty"`
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/webhook", h.webhook)
	r.Get("/health", h.health)

	return otelhttp.NewHandler(r, "action-server")
}

func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Webhook")
	defer span.End()

	var req webhookReq
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "invalid body"})
		return
	}
	if req.NextAction == "" {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "missing next_action"})
		return
	}
	t := req.Tracker
	if req.SenderID != "" {
		t.SenderID = req.SenderID
	}
	span.SetAttributes(attribute.String("action", req.NextAction), attribute.String("sender_id", t.SenderID))

	key := h.replayKey(req.NextAction, t)
	if key != "" {
		body, ok, err := h.cache.Recall(ctx, key)
		if err != nil {
			h.log.Warn("replay cache recall failed", "action", req.NextAction, "err", err)
		}
		if ok {
			h.log.Info("replaying action response", "action", req.NextAction, "sender_id", t.SenderID)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set(ReplayHeader, "true")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(body)
			return
		}
	}

	msgs, err := h.registry.Run(ctx, req.NextAction, t)
	if errors.Is(err, actions.ErrUnknownAction) {
		writeJSON(w, http.StatusNotFound, errorResp{
			Error:      fmt.Sprintf("No registered action found for name '%s'.", req.NextAction),
			ActionName: req.NextAction,
		})
		return
	}
	if err != nil {
		h.log.Error("action failed", "action", req.NextAction, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResp{Error: "action failed", ActionName: req.NextAction})
		return
	}

	body, err := json.Marshal(webhookResp{Events: []any{}, Responses: msgs})
	if err != nil {
		h.log.Error("encode response failed", "action", req.NextAction, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResp{Error: "encode failed"})
		return
	}
	if key != "" {
		if err := h.cache.Remember(ctx, key, body); err != nil {
			h.log.Warn("replay cache remember failed", "action", req.NextAction, "err", err)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// replayKey is empty when the request is not eligible for replay.
func (h *Handler) replayKey(action string, t actions.Tracker) string {
	if h.cache == nil || t.LatestMessage.MessageID == "" || !h.registry.Mutates(action) {
		return ""
	}
	return h.cache.Key(action, t.SenderID, t.LatestMessage.MessageID)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
