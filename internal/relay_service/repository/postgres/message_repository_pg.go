package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chanrelay/chanrelay/internal/relay_service/domain"
)

const uniqueViolationCode = "23505"

type pgMessageRepository struct {
	db *pgxpool.Pool
}

// NewPgMessageRepository creates the PostgreSQL-backed message store.
func NewPgMessageRepository(db *pgxpool.Pool) domain.MessageRepository {
	return &pgMessageRepository{db: db}
}

func (r *pgMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	query := `
		INSERT INTO messages (id, external_id, sender, from_me, body, has_media, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Exec(ctx, query,
		msg.ID, msg.ExternalID, msg.Sender, msg.FromMe, msg.Body, msg.HasMedia, msg.Status, msg.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return domain.ErrDuplicateMessage
		}
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

func (r *pgMessageRepository) UpdateStatus(ctx context.Context, externalID string, status domain.MessageStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE messages SET status = $2 WHERE external_id = $1`,
		externalID, status,
	)
	if err != nil {
		return fmt.Errorf("failed to update message status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

func (r *pgMessageRepository) DeleteByExternalID(ctx context.Context, externalID string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM messages WHERE external_id = $1`,
		externalID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

func (r *pgMessageRepository) LatestOwnMessage(ctx context.Context, sender string) (*domain.Message, error) {
	msg := &domain.Message{}
	query := `
		SELECT id, external_id, sender, from_me, body, has_media, status, created_at
		FROM messages
		WHERE sender = $1 AND from_me = TRUE
		ORDER BY created_at DESC
		LIMIT 1
	`
	err := r.db.QueryRow(ctx, query, sender).Scan(
		&msg.ID, &msg.ExternalID, &msg.Sender, &msg.FromMe, &msg.Body, &msg.HasMedia, &msg.Status, &msg.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to query latest own message: %w", err)
	}
	return msg, nil
}

func (r *pgMessageRepository) ListRecent(ctx context.Context, limit int) ([]*domain.Message, error) {
	query := `
		SELECT id, external_id, sender, from_me, body, has_media, status, created_at
		FROM messages
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*domain.Message, 0, limit)
	for rows.Next() {
		msg := &domain.Message{}
		if err := rows.Scan(
			&msg.ID, &msg.ExternalID, &msg.Sender, &msg.FromMe, &msg.Body, &msg.HasMedia, &msg.Status, &msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate message rows: %w", err)
	}
	return messages, nil
}
