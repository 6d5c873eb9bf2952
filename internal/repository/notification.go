package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"rollermate/internal/model"
)

type notificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n model.NewNotification) (*model.Notification, error) {
	query := `
		INSERT INTO notifications (user_id, actor_id, type, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, actor_id, type, payload, read, created_at
	`
	var notification model.Notification
	if err := r.db.GetContext(ctx, &notification, query, n.UserID, n.ActorID, n.Type, n.Payload); err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	return &notification, nil
}

// ListRecent returns the newest notifications with the actor snippet joined.
func (r *notificationRepository) ListRecent(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	query := `
		SELECT n.id, n.user_id, n.actor_id, n.type, n.payload, n.read, n.created_at,
		       a.full_name AS "actor.full_name", a.avatar_url AS "actor.avatar_url"
		FROM notifications n
		LEFT JOIN profiles a ON a.id = n.actor_id
		WHERE n.user_id = $1
		ORDER BY n.created_at DESC, n.id DESC
		LIMIT $2
	`

	type notifRow struct {
		model.Notification
		ActorFullName  *string `db:"actor.full_name"`
		ActorAvatarURL *string `db:"actor.avatar_url"`
	}

	var rows []notifRow
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	notifications := make([]model.Notification, len(rows))
	for i, row := range rows {
		notifications[i] = row.Notification
		notifications[i].Actor = &model.ProfileSummary{
			ID:        row.ActorID,
			FullName:  row.ActorFullName,
			AvatarURL: row.ActorAvatarURL,
		}
	}
	return notifications, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = FALSE`
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	query := `UPDATE notifications SET read = TRUE WHERE user_id = $1 AND read = FALSE`
	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return result.RowsAffected()
}
