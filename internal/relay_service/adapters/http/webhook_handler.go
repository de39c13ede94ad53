package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	chi_middleware "github.com/go-chi/chi/v5/middleware"

	"github.com/chanrelay/chanrelay/internal/relay_service/app"
	"github.com/chanrelay/chanrelay/internal/relay_service/domain"
)

const maxWebhookBodySize = 1 << 20 // 1 MB

// EventSink is the reconciliation surface the webhook handler feeds.
// An interface so the handler is testable with a mock engine.
type EventSink interface {
	HandleEvent(ctx context.Context, event domain.Event)
}

// WebhookHandler receives webhook deliveries from the WAHA gateway.
type WebhookHandler struct {
	sink   EventSink
	logger *slog.Logger
}

// NewWebhookHandler creates the webhook intake handler.
func NewWebhookHandler(sink EventSink, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		sink:   sink,
		logger: logger.With("handler", "webhook"),
	}
}

// HandleWebhook classifies and reconciles one gateway event. It always
// acknowledges with 200: only transport failures may trigger gateway
// retries, never application-level rejections, so a malformed or failed
// event is logged and acked rather than surfaced.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.ErrorContext(ctx, "failed to read webhook body", "error", err)
		h.ack(ctx, w, logger)
		return
	}

	var envelope app.WebhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		logger.WarnContext(ctx, "failed to decode webhook envelope", "error", err)
		h.ack(ctx, w, logger)
		return
	}

	logger.InfoContext(ctx, "received webhook event", "event", envelope.Event)

	event, err := app.ParseEvent(envelope)
	if err != nil {
		logger.WarnContext(ctx, "failed to parse webhook payload",
			"event", envelope.Event, "error", err)
		h.ack(ctx, w, logger)
		return
	}

	if unknown, ok := event.(*domain.UnknownEvent); ok {
		logger.InfoContext(ctx, "dropping unhandled event kind", "event", unknown.Kind)
		app.ObserveDroppedEvent(unknown.Kind)
		h.ack(ctx, w, logger)
		return
	}

	h.sink.HandleEvent(ctx, event)
	h.ack(ctx, w, logger)
}

func (h *WebhookHandler) ack(ctx context.Context, w http.ResponseWriter, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(WebhookAckResponse{Status: "received"}); err != nil {
		logger.WarnContext(ctx, "failed to write webhook acknowledgement", "error", err)
	}
}
