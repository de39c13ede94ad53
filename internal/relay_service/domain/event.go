package domain

import "encoding/json"

// Event is the closed set of webhook event variants produced by the
// classifier. The reconciler dispatches on the concrete type, so a new
// variant forces every switch to be revisited.
type Event interface {
	// EventKind returns the wire-level discriminator, used for logging and
	// metrics labels.
	EventKind() string
}

// NewMessageEvent carries an inbound or echoed outbound chat message.
type NewMessageEvent struct {
	RawID    json.RawMessage `json:"id"`
	From     string          `json:"from"`
	FromMe   bool            `json:"fromMe"`
	Body     string          `json:"body"`
	HasMedia bool            `json:"hasMedia"`
}

func (*NewMessageEvent) EventKind() string { return "message" }

// RevokedRef is the nested "after" object some gateways attach to a
// revocation, pointing at the message that was removed.
type RevokedRef struct {
	RawID json.RawMessage `json:"id"`
}

// MessageRevokedEvent signals that a message was deleted at the gateway.
// Either the top-level id or the nested after.id may identify it; both can
// be absent or unresolvable.
type MessageRevokedEvent struct {
	RawID json.RawMessage `json:"id"`
	After *RevokedRef     `json:"after"`
}

func (*MessageRevokedEvent) EventKind() string { return "message.revoked" }

// AckEvent carries a delivery acknowledgement code for a message.
type AckEvent struct {
	RawID json.RawMessage `json:"id"`
	Ack   int             `json:"ack"`
}

func (*AckEvent) EventKind() string { return "message.ack" }

// SessionStatusEvent reports the gateway session state. Observability only;
// it never touches the store.
type SessionStatusEvent struct {
	Session string `json:"session"`
	Status  string `json:"status"`
}

func (*SessionStatusEvent) EventKind() string { return "session.status" }

// UnknownEvent stands in for any discriminator the relay does not handle.
// It is logged and dropped before reconciliation.
type UnknownEvent struct {
	Kind string
}

func (e *UnknownEvent) EventKind() string { return e.Kind }

type serializedID struct {
	Serialized string `json:"_serialized"`
}

// ResolveID extracts a gateway message id from a raw JSON value that is
// either a plain string or an object wrapping the id in "_serialized".
// Returns "" when no id is resolvable. Every event handler goes through
// this one helper rather than probing fields ad hoc.
func ResolveID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}
	var wrapped serializedID
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		return wrapped.Serialized
	}
	return ""
}
