package domain

import (
	"time"

	"github.com/google/uuid"
)

// MessageStatus is the lifecycle tag of a stored message. Acknowledgement
// updates simply overwrite it; out-of-order or missing acks are tolerated.
type MessageStatus string

const (
	StatusReceived  MessageStatus = "received"
	StatusPublished MessageStatus = "published"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusClock     MessageStatus = "clock"
	StatusUnknown   MessageStatus = "unknown"
)

// StatusFromAck maps a WAHA acknowledgement code to a message status.
// Codes outside the fixed table map to StatusUnknown.
func StatusFromAck(code int) MessageStatus {
	switch code {
	case 0:
		return StatusClock
	case 1:
		return StatusSent
	case 2:
		return StatusDelivered
	case 3:
		return StatusRead
	default:
		return StatusUnknown
	}
}

// Message is the durable record of one chat message on the watched channel.
// ExternalID is the gateway-assigned identity and the correlation key for
// every later event (acks, revocations); it is unique across live records.
type Message struct {
	ID         string        `json:"id"`
	ExternalID string        `json:"external_id"`
	Sender     string        `json:"sender"`
	FromMe     bool          `json:"from_me"`
	Body       string        `json:"body"`
	HasMedia   bool          `json:"has_media"`
	Status     MessageStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
}

// NewMessage builds a message record with a fresh local id and creation
// timestamp. All fields except Status are immutable after this point.
func NewMessage(externalID, sender, body string, fromMe, hasMedia bool, status MessageStatus) *Message {
	return &Message{
		ID:         uuid.NewString(),
		ExternalID: externalID,
		Sender:     sender,
		FromMe:     fromMe,
		Body:       body,
		HasMedia:   hasMedia,
		Status:     status,
		CreatedAt:  time.Now().UTC(),
	}
}
