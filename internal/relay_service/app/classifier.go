package app

import (
	"encoding/json"
	"fmt"

	"github.com/chanrelay/chanrelay/internal/relay_service/domain"
)

// WebhookEnvelope is the wire shape of every gateway webhook delivery.
type WebhookEnvelope struct {
	Event   string          `json:"event" validate:"required"`
	Payload json.RawMessage `json:"payload"`
}

// ParseEvent classifies a webhook envelope into a typed event by its
// discriminator. Payload shape is not validated here beyond JSON
// decodability; each reconciler handler validates what it needs.
// Unrecognised discriminators classify as *domain.UnknownEvent.
func ParseEvent(envelope WebhookEnvelope) (domain.Event, error) {
	switch envelope.Event {
	case "message":
		var ev domain.NewMessageEvent
		if err := decodePayload(envelope.Payload, &ev); err != nil {
			return nil, err
		}
		return &ev, nil
	case "message.revoked":
		var ev domain.MessageRevokedEvent
		if err := decodePayload(envelope.Payload, &ev); err != nil {
			return nil, err
		}
		return &ev, nil
	case "message.ack":
		var ev domain.AckEvent
		if err := decodePayload(envelope.Payload, &ev); err != nil {
			return nil, err
		}
		return &ev, nil
	case "session.status":
		var ev domain.SessionStatusEvent
		if err := decodePayload(envelope.Payload, &ev); err != nil {
			return nil, err
		}
		return &ev, nil
	default:
		return &domain.UnknownEvent{Kind: envelope.Event}, nil
	}
}

func decodePayload(payload json.RawMessage, dst any) error {
	if len(payload) == 0 {
		// A missing payload still classifies; the handler rejects it on
		// its own terms (empty body, unresolvable id).
		return nil
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return fmt.Errorf("failed to decode event payload: %w", err)
	}
	return nil
}
