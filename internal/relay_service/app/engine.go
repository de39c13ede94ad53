package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/chanrelay/chanrelay/internal/relay_service/domain"
)

// ErrEmptyText rejects a publish request with missing or blank text before
// anything is sent to the gateway.
var ErrEmptyText = errors.New("message text is required")

// TextPublisher sends locally authored text to the gateway and returns the
// gateway-assigned external id.
type TextPublisher interface {
	SendText(ctx context.Context, text string) (string, error)
}

// Reconciler is the webhook event reconciliation engine. Its state is the
// message store, not an in-memory session: each event is an independent unit
// of work, and concurrent duplicates are resolved by the store's uniqueness
// constraint on the external id.
type Reconciler struct {
	messages    domain.MessageRepository
	notifier    domain.Notifier
	gateway     TextPublisher
	watched     string
	recentLimit int
	logger      *slog.Logger
}

// NewReconciler wires the engine with its injected collaborators.
// watchedChannel is the only sender whose inbound messages are persisted.
func NewReconciler(
	messages domain.MessageRepository,
	notifier domain.Notifier,
	gateway TextPublisher,
	watchedChannel string,
	recentLimit int,
	logger *slog.Logger,
) *Reconciler {
	if recentLimit <= 0 {
		recentLimit = 50
	}
	return &Reconciler{
		messages:    messages,
		notifier:    notifier,
		gateway:     gateway,
		watched:     watchedChannel,
		recentLimit: recentLimit,
		logger:      logger.With("component", "reconciler"),
	}
}

// HandleEvent reconciles one classified webhook event against the store.
// It never returns an error: internal failures are logged and the event is
// abandoned, so the webhook intake can always acknowledge receipt and the
// gateway never replays a non-idempotent path.
func (r *Reconciler) HandleEvent(ctx context.Context, event domain.Event) {
	kind := event.EventKind()
	timer := prometheus.NewTimer(eventProcessingDuration.WithLabelValues(kind))
	defer timer.ObserveDuration()

	switch ev := event.(type) {
	case *domain.NewMessageEvent:
		r.handleNewMessage(ctx, ev)
	case *domain.MessageRevokedEvent:
		r.handleRevoked(ctx, ev)
	case *domain.AckEvent:
		r.handleAck(ctx, ev)
	case *domain.SessionStatusEvent:
		r.logger.InfoContext(ctx, "gateway session status changed",
			"session", ev.Session, "status", ev.Status)
	case *domain.UnknownEvent:
		// Normally filtered out before dispatch; kept so the switch covers
		// the whole variant set.
		r.logger.WarnContext(ctx, "unhandled event kind reached reconciler", "kind", ev.Kind)
		webhookEventsTotal.WithLabelValues(kind, "dropped").Inc()
	}
}

func (r *Reconciler) handleNewMessage(ctx context.Context, ev *domain.NewMessageEvent) {
	const kind = "message"
	externalID := domain.ResolveID(ev.RawID)
	logger := r.logger.With("external_id", externalID, "from", ev.From)

	if ev.From != r.watched {
		logger.DebugContext(ctx, "ignoring message from unwatched sender")
		webhookEventsTotal.WithLabelValues(kind, "filtered_sender").Inc()
		return
	}
	if ev.Body == "" {
		logger.DebugContext(ctx, "ignoring message with empty body")
		webhookEventsTotal.WithLabelValues(kind, "filtered_empty").Inc()
		return
	}

	msg := domain.NewMessage(externalID, ev.From, ev.Body, ev.FromMe, ev.HasMedia, domain.StatusPublished)
	if err := r.messages.Create(ctx, msg); err != nil {
		if errors.Is(err, domain.ErrDuplicateMessage) {
			// Redelivery from the gateway is expected, not an error.
			logger.DebugContext(ctx, "duplicate delivery of already stored message")
			webhookEventsTotal.WithLabelValues(kind, "duplicate").Inc()
			return
		}
		logger.ErrorContext(ctx, "failed to store message", "error", err)
		webhookEventsTotal.WithLabelValues(kind, "error").Inc()
		return
	}

	logger.InfoContext(ctx, "stored new message", "local_id", msg.ID)
	webhookEventsTotal.WithLabelValues(kind, "stored").Inc()
	r.notifier.MessageCreated(msg)
}

func (r *Reconciler) handleRevoked(ctx context.Context, ev *domain.MessageRevokedEvent) {
	const kind = "message.revoked"

	externalID := ""
	if ev.After != nil {
		externalID = domain.ResolveID(ev.After.RawID)
	}
	if externalID == "" {
		externalID = domain.ResolveID(ev.RawID)
	}
	logger := r.logger.With("external_id", externalID)

	if externalID != "" {
		err := r.messages.DeleteByExternalID(ctx, externalID)
		if err == nil {
			logger.InfoContext(ctx, "deleted revoked message")
			webhookEventsTotal.WithLabelValues(kind, "deleted").Inc()
			r.notifier.MessageDeleted(externalID)
			return
		}
		if !errors.Is(err, domain.ErrMessageNotFound) {
			logger.ErrorContext(ctx, "failed to delete revoked message", "error", err)
			webhookEventsTotal.WithLabelValues(kind, "error").Inc()
			return
		}
	}

	// Fallback heuristic: the gateway sometimes reports a revocation without
	// a resolvable or matching id. Guess the newest self-originated message
	// on the watched channel. Best-effort only; two revocations racing here
	// can pick the same record.
	latest, err := r.messages.LatestOwnMessage(ctx, r.watched)
	if err != nil {
		if errors.Is(err, domain.ErrMessageNotFound) {
			logger.InfoContext(ctx, "revocation did not match any stored message, giving up")
			webhookEventsTotal.WithLabelValues(kind, "unmatched").Inc()
			return
		}
		logger.ErrorContext(ctx, "failed to look up fallback revocation candidate", "error", err)
		webhookEventsTotal.WithLabelValues(kind, "error").Inc()
		return
	}

	if err := r.messages.DeleteByExternalID(ctx, latest.ExternalID); err != nil {
		if errors.Is(err, domain.ErrMessageNotFound) {
			// Lost the race with a concurrent revocation.
			logger.InfoContext(ctx, "fallback revocation candidate already gone",
				"candidate_external_id", latest.ExternalID)
			webhookEventsTotal.WithLabelValues(kind, "unmatched").Inc()
			return
		}
		logger.ErrorContext(ctx, "failed to delete fallback revocation candidate", "error", err)
		webhookEventsTotal.WithLabelValues(kind, "error").Inc()
		return
	}

	logger.InfoContext(ctx, "deleted newest own message as revocation fallback",
		"candidate_external_id", latest.ExternalID)
	webhookEventsTotal.WithLabelValues(kind, "fallback_deleted").Inc()
	r.notifier.MessageDeleted(latest.ExternalID)
}

func (r *Reconciler) handleAck(ctx context.Context, ev *domain.AckEvent) {
	const kind = "message.ack"

	status := domain.StatusFromAck(ev.Ack)
	externalID := domain.ResolveID(ev.RawID)
	logger := r.logger.With("external_id", externalID, "ack", ev.Ack, "status", string(status))

	if externalID == "" {
		logger.WarnContext(ctx, "acknowledgement without resolvable message id")
		webhookEventsTotal.WithLabelValues(kind, "dropped").Inc()
		return
	}

	if err := r.messages.UpdateStatus(ctx, externalID, status); err != nil {
		if errors.Is(err, domain.ErrMessageNotFound) {
			// The message may have been filtered out at ingestion; viewers
			// still get the status update.
			logger.DebugContext(ctx, "acknowledgement for a message that is not stored")
			webhookEventsTotal.WithLabelValues(kind, "ack_unmatched").Inc()
		} else {
			logger.ErrorContext(ctx, "failed to update message status", "error", err)
			webhookEventsTotal.WithLabelValues(kind, "error").Inc()
			return
		}
	} else {
		logger.InfoContext(ctx, "updated message status")
		webhookEventsTotal.WithLabelValues(kind, "ack_applied").Inc()
	}

	r.notifier.MessageStatusUpdated(externalID, status)
}

// Publish sends locally authored text to the gateway, persists the resulting
// self-originated record and notifies viewers. On gateway failure nothing is
// persisted and the error propagates to the caller.
func (r *Reconciler) Publish(ctx context.Context, text string) (*domain.Message, error) {
	if strings.TrimSpace(text) == "" {
		publishTotal.WithLabelValues("rejected").Inc()
		return nil, ErrEmptyText
	}

	externalID, err := r.gateway.SendText(ctx, text)
	if err != nil {
		publishTotal.WithLabelValues("gateway_error").Inc()
		return nil, fmt.Errorf("gateway send failed: %w", err)
	}

	msg := domain.NewMessage(externalID, r.watched, text, true, false, domain.StatusSent)
	if err := r.messages.Create(ctx, msg); err != nil {
		if errors.Is(err, domain.ErrDuplicateMessage) {
			// The gateway echoes published messages back as a "message"
			// webhook; when the echo wins the insert race the record is
			// already stored and broadcast. The publish still succeeded.
			r.logger.InfoContext(ctx, "published message already stored by webhook echo",
				"external_id", externalID)
			publishTotal.WithLabelValues("duplicate").Inc()
			return msg, nil
		}
		publishTotal.WithLabelValues("store_error").Inc()
		return nil, fmt.Errorf("failed to store published message: %w", err)
	}

	r.logger.InfoContext(ctx, "published message to gateway",
		"external_id", externalID, "local_id", msg.ID)
	publishTotal.WithLabelValues("success").Inc()
	r.notifier.MessageCreated(msg)
	return msg, nil
}

// RecentMessages returns the newest records, newest first, bounded by the
// configured limit.
func (r *Reconciler) RecentMessages(ctx context.Context) ([]*domain.Message, error) {
	return r.messages.ListRecent(ctx, r.recentLimit)
}
