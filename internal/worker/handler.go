package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"rollermate/internal/logging"
	"rollermate/internal/metrics"
	"rollermate/internal/model"
	"rollermate/internal/queue"
)

// NotificationCreator stores a notification and delivers it to the recipient.
type NotificationCreator interface {
	CreateNotification(ctx context.Context, n model.NewNotification) error
}

// Handler turns activity events into notifications.
type Handler struct {
	notifCreator NotificationCreator
	log          zerolog.Logger
}

func NewHandler(notifCreator NotificationCreator) *Handler {
	return &Handler{notifCreator: notifCreator, log: logging.For("Worker")}
}

// HandleEvent routes an event by type. Events where the actor is also the
// recipient are dropped.
func (h *Handler) HandleEvent(ctx context.Context, event queue.ActivityEvent) error {
	startTime := time.Now()

	n, err := notificationFor(event)
	if err != nil {
		metrics.ActivityEvents.WithLabelValues(event.Type, "unknown").Inc()
		h.log.Warn().Str(logging.EVENT, event.Type).Msg("unknown event type")
		return err
	}

	if event.ActorID == event.RecipientID {
		metrics.ActivityEvents.WithLabelValues(event.Type, "skipped").Inc()
		return nil
	}

	if err := h.notifCreator.CreateNotification(ctx, n); err != nil {
		metrics.ActivityEvents.WithLabelValues(event.Type, "error").Inc()
		h.log.Error().Err(err).
			Str(logging.EVENT, event.Type).
			Str("recipient", event.RecipientID).
			Dur("duration", time.Since(startTime)).
			Msg("HandleEvent FAILED")
		return fmt.Errorf("create %s notification: %w", n.Type, err)
	}

	metrics.ActivityEvents.WithLabelValues(event.Type, "ok").Inc()
	h.log.Debug().
		Str(logging.EVENT, event.Type).
		Str("recipient", event.RecipientID).
		Dur("duration", time.Since(startTime)).
		Msg("HandleEvent OK")
	return nil
}

func notificationFor(event queue.ActivityEvent) (model.NewNotification, error) {
	n := model.NewNotification{UserID: event.RecipientID, ActorID: event.ActorID}

	switch event.Type {
	case queue.EventPostLiked:
		n.Type = model.NotificationTypeLike
		n.Payload.PostID = optional(event.PostID)
	case queue.EventPostCommented:
		n.Type = model.NotificationTypeComment
		n.Payload.PostID = optional(event.PostID)
		n.Payload.CommentID = optional(event.CommentID)
	case queue.EventCommentLiked:
		n.Type = model.NotificationTypeCommentLike
		n.Payload.PostID = optional(event.PostID)
		n.Payload.CommentID = optional(event.CommentID)
	case queue.EventCommentReplied:
		n.Type = model.NotificationTypeReply
		n.Payload.PostID = optional(event.PostID)
		n.Payload.CommentID = optional(event.CommentID)
	case queue.EventUserFollowed:
		n.Type = model.NotificationTypeFollow
		n.Payload.FollowerID = optional(event.ActorID)
	default:
		return n, fmt.Errorf("unknown event type: %s", event.Type)
	}
	return n, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
