package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"rollermate/internal/model"
)

type messageRepository struct {
	db *sqlx.DB
}

func NewMessageRepository(db *sqlx.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, msg *model.Message) error {
	query := `
		INSERT INTO messages (chat_id, sender_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, read, created_at
	`
	if err := r.db.QueryRowxContext(ctx, query, msg.ChatID, msg.SenderID, msg.Content).
		Scan(&msg.ID, &msg.Read, &msg.CreatedAt); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// List pages a chat newest first. limit is passed through unchanged.
func (r *messageRepository) List(ctx context.Context, chatID string, cursor *model.FeedCursor, limit int) ([]model.Message, error) {
	query := `
		SELECT id, chat_id, sender_id, content, read, created_at
		FROM messages
		WHERE chat_id = $1
		  AND ($2::timestamptz IS NULL OR (created_at, id) < ($2, $3::uuid))
		ORDER BY created_at DESC, id DESC
		LIMIT $4
	`
	var (
		cursorAt interface{}
		cursorID *string
	)
	if cursor != nil {
		cursorAt = cursor.CreatedAt
		cursorID = &cursor.ID
	}

	var messages []model.Message
	if err := r.db.SelectContext(ctx, &messages, query, chatID, cursorAt, cursorID, limit); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

func (r *messageRepository) MarkRead(ctx context.Context, chatID, readerID string) (int64, error) {
	query := `UPDATE messages SET read = TRUE WHERE chat_id = $1 AND sender_id <> $2 AND read = FALSE`
	result, err := r.db.ExecContext(ctx, query, chatID, readerID)
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}
	return result.RowsAffected()
}

// CountUnread counts messages addressed to userID across every chat they belong to.
func (r *messageRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM messages m
		JOIN chat_participants cp ON cp.chat_id = m.chat_id AND cp.user_id = $1
		WHERE m.sender_id <> $1 AND m.read = FALSE
	`
	var n int
	if err := r.db.GetContext(ctx, &n, query, userID); err != nil {
		return 0, fmt.Errorf("count unread messages: %w", err)
	}
	return n, nil
}
