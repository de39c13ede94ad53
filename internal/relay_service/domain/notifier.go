package domain

// Notifier pushes real-time notifications to connected viewers. Calls are
// fire-and-forget: implementations must never block the event-handling path
// and must swallow delivery failures (best-effort, not queued or replayed).
type Notifier interface {
	MessageCreated(msg *Message)
	MessageDeleted(externalID string)
	MessageStatusUpdated(externalID string, status MessageStatus)
}
