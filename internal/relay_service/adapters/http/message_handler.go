package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/chanrelay/chanrelay/internal/relay_service/app"
	"github.com/chanrelay/chanrelay/internal/relay_service/domain"
)

// MessageService is the application surface behind the message endpoints.
type MessageService interface {
	Publish(ctx context.Context, text string) (*domain.Message, error)
	RecentMessages(ctx context.Context) ([]*domain.Message, error)
}

// MessageHandler serves the outbound publish and read endpoints.
type MessageHandler struct {
	service  MessageService
	logger   *slog.Logger
	validate *validator.Validate
}

// NewMessageHandler creates the message transport handler.
func NewMessageHandler(service MessageService, logger *slog.Logger, validate *validator.Validate) *MessageHandler {
	return &MessageHandler{
		service:  service,
		logger:   logger.With("handler", "messages"),
		validate: validate,
	}
}

// RegisterRoutes mounts the message endpoints on the given router.
func (h *MessageHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.HandlePublish)
	r.Get("/", h.HandleList)
}

// HandlePublish accepts {text}, sends it through the gateway and persists
// the resulting record. Gateway failures surface to the caller; nothing is
// stored in that case.
func (h *MessageHandler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	var req PublishMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "failed to decode publish request", "error", err)
		writeJSONError(w, http.StatusBadRequest, "Invalid JSON body", err.Error())
		return
	}

	if err := h.validate.StructCtx(ctx, req); err != nil {
		logger.WarnContext(ctx, "publish request failed validation", "error", err)
		writeJSONError(w, http.StatusBadRequest, "Validation failed", err.Error())
		return
	}

	msg, err := h.service.Publish(ctx, req.Text)
	if err != nil {
		if errors.Is(err, app.ErrEmptyText) {
			writeJSONError(w, http.StatusBadRequest, "Message text is required", "")
			return
		}
		logger.ErrorContext(ctx, "publish failed", "error", err)
		writeJSONError(w, http.StatusBadGateway, "Failed to publish message", err.Error())
		return
	}

	logger.InfoContext(ctx, "message published", "external_id", msg.ExternalID)
	writeJSON(w, http.StatusCreated, PublishMessageResponse{
		Status:  "sent",
		Message: msg.Body,
		ID:      msg.ExternalID,
	})
}

// HandleList returns the most recent messages, newest first.
func (h *MessageHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	messages, err := h.service.RecentMessages(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list recent messages", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Failed to load messages", "")
		return
	}

	writeJSON(w, http.StatusOK, messages)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg, details string) {
	writeJSON(w, status, GenericErrorResponse{Error: msg, Details: details})
}
