package app

import "github.com/chanrelay/chanrelay/internal/relay_service/domain"

// MultiNotifier fans a notification out to every registered notifier.
// Ordering between notifiers is not significant.
type MultiNotifier []domain.Notifier

func (m MultiNotifier) MessageCreated(msg *domain.Message) {
	for _, n := range m {
		n.MessageCreated(msg)
	}
}

func (m MultiNotifier) MessageDeleted(externalID string) {
	for _, n := range m {
		n.MessageDeleted(externalID)
	}
}

func (m MultiNotifier) MessageStatusUpdated(externalID string, status domain.MessageStatus) {
	for _, n := range m {
		n.MessageStatusUpdated(externalID, status)
	}
}
