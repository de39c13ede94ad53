package domain

import (
	"context"
	"errors"
)

var (
	// ErrDuplicateMessage is returned by Create when a record with the same
	// external id already exists. Callers on the ingestion path treat it as
	// the expected idempotent outcome, not a failure.
	ErrDuplicateMessage = errors.New("message with this external id already exists")

	// ErrMessageNotFound is returned by lookups and mutations that matched
	// no record.
	ErrMessageNotFound = errors.New("message not found")
)

// MessageRepository is the durable store contract the reconciler depends on.
// The store's uniqueness constraint on external_id is the concurrency-safety
// mechanism for duplicate inserts; there is no in-process lock.
type MessageRepository interface {
	// Create inserts a new message record. Returns ErrDuplicateMessage when
	// a record with the same ExternalID is already stored.
	Create(ctx context.Context, msg *Message) error

	// UpdateStatus overwrites the status of the record with the given
	// external id. Returns ErrMessageNotFound when no record matches.
	UpdateStatus(ctx context.Context, externalID string, status MessageStatus) error

	// DeleteByExternalID removes the record entirely (no tombstone).
	// Returns ErrMessageNotFound when no record matches.
	DeleteByExternalID(ctx context.Context, externalID string) error

	// LatestOwnMessage returns the newest self-originated record for the
	// given sender, or ErrMessageNotFound. It backs the revocation fallback
	// heuristic.
	LatestOwnMessage(ctx context.Context, sender string) (*Message, error)

	// ListRecent returns up to limit records ordered by CreatedAt
	// descending.
	ListRecent(ctx context.Context, limit int) ([]*Message, error)
}
