package broker

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/chanrelay/chanrelay/internal/platform/messagebroker"
	"github.com/chanrelay/chanrelay/internal/relay_service/domain"
)

// NATS subjects the relay publishes notifications on, mirroring the three
// websocket frame types for downstream services.
const (
	SubjectMessageCreated = "chanrelay.message.created"
	SubjectMessageDeleted = "chanrelay.message.deleted"
	SubjectMessageStatus  = "chanrelay.message.status"
)

type deletedEvent struct {
	ID string `json:"id"`
}

type statusEvent struct {
	ID     string               `json:"id"`
	Status domain.MessageStatus `json:"status"`
}

// Relay republishes message notifications onto NATS. Like every notifier it
// is fire-and-forget: publish failures are logged and swallowed.
type Relay struct {
	nats   messagebroker.NATSClient
	logger *slog.Logger
}

// NewRelay wires the NATS notifier.
func NewRelay(nats messagebroker.NATSClient, logger *slog.Logger) *Relay {
	return &Relay{
		nats:   nats,
		logger: logger.With("component", "nats_relay"),
	}
}

func (r *Relay) publish(subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.Error("failed to marshal NATS notification", "subject", subject, "error", err)
		return
	}
	if err := r.nats.Publish(context.Background(), subject, data); err != nil {
		r.logger.Warn("failed to publish NATS notification", "subject", subject, "error", err)
	}
}

// MessageCreated implements domain.Notifier.
func (r *Relay) MessageCreated(msg *domain.Message) {
	r.publish(SubjectMessageCreated, msg)
}

// MessageDeleted implements domain.Notifier.
func (r *Relay) MessageDeleted(externalID string) {
	r.publish(SubjectMessageDeleted, deletedEvent{ID: externalID})
}

// MessageStatusUpdated implements domain.Notifier.
func (r *Relay) MessageStatusUpdated(externalID string, status domain.MessageStatus) {
	r.publish(SubjectMessageStatus, statusEvent{ID: externalID, Status: status})
}
