package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"rollermate/internal/database"
	"rollermate/internal/model"
)

type chatRepository struct {
	db *sqlx.DB
}

func NewChatRepository(db *sqlx.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) FindDirect(ctx context.Context, userID, targetID string) (string, error) {
	query := `
		SELECT cp.chat_id
		FROM chat_participants cp
		WHERE cp.user_id = $1
		  AND EXISTS (
		      SELECT 1 FROM chat_participants other
		      WHERE other.chat_id = cp.chat_id AND other.user_id = $2
		  )
		LIMIT 1
	`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, userID, targetID); err != nil {
		return "", fmt.Errorf("find direct chat: %w", err)
	}
	if len(ids) == 0 {
		return "", nil
	}
	return ids[0], nil
}

// CreateDirect relies on the unique pair key: a concurrent create for the same
// pair resolves to the row that won, reported with created=false.
func (r *chatRepository) CreateDirect(ctx context.Context, userID, targetID string) (string, bool, error) {
	var (
		chatID  string
		created bool
	)
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO chats (pair_key) VALUES ($1)
			ON CONFLICT (pair_key) DO UPDATE SET pair_key = EXCLUDED.pair_key
			RETURNING id, (xmax = 0) AS created
		`
		if err := tx.QueryRowxContext(ctx, query, model.PairKey(userID, targetID)).Scan(&chatID, &created); err != nil {
			return fmt.Errorf("insert chat: %w", err)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO chat_participants (chat_id, user_id)
			VALUES ($1, $2), ($1, $3)
			ON CONFLICT (chat_id, user_id) DO NOTHING
		`, chatID, userID, targetID)
		if err != nil {
			return fmt.Errorf("insert participants: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return chatID, created, nil
}

func (r *chatRepository) IsMember(ctx context.Context, chatID, userID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM chat_participants WHERE chat_id = $1 AND user_id = $2)`
	var ok bool
	if err := r.db.GetContext(ctx, &ok, query, chatID, userID); err != nil {
		return false, fmt.Errorf("check chat membership: %w", err)
	}
	return ok, nil
}

func (r *chatRepository) Members(ctx context.Context, chatID string) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT user_id FROM chat_participants WHERE chat_id = $1`, chatID); err != nil {
		return nil, fmt.Errorf("list chat members: %w", err)
	}
	return ids, nil
}

// ListForUser returns the user's inbox, most recently active chat first.
func (r *chatRepository) ListForUser(ctx context.Context, userID string) ([]model.ChatSummary, error) {
	query := `
		SELECT c.id, c.created_at,
		       (SELECT COUNT(*) FROM messages um
		         WHERE um.chat_id = c.id AND um.sender_id <> $1 AND um.read = FALSE) AS unread_count,
		       peer.id AS peer_id, peer.full_name AS peer_full_name, peer.avatar_url AS peer_avatar_url,
		       lm.id AS last_id, lm.sender_id AS last_sender_id, lm.content AS last_content,
		       lm.read AS last_read, lm.created_at AS last_created_at
		FROM chat_participants me
		JOIN chats c ON c.id = me.chat_id
		LEFT JOIN chat_participants op ON op.chat_id = c.id AND op.user_id <> $1
		LEFT JOIN profiles peer ON peer.id = op.user_id
		LEFT JOIN LATERAL (
		    SELECT m.id, m.sender_id, m.content, m.read, m.created_at
		    FROM messages m
		    WHERE m.chat_id = c.id
		    ORDER BY m.created_at DESC, m.id DESC
		    LIMIT 1
		) lm ON TRUE
		WHERE me.user_id = $1
		ORDER BY COALESCE(lm.created_at, c.created_at) DESC
	`

	type chatRow struct {
		model.ChatSummary
		PeerID        *string    `db:"peer_id"`
		PeerFullName  *string    `db:"peer_full_name"`
		PeerAvatarURL *string    `db:"peer_avatar_url"`
		LastID        *string    `db:"last_id"`
		LastSenderID  *string    `db:"last_sender_id"`
		LastContent   *string    `db:"last_content"`
		LastRead      *bool      `db:"last_read"`
		LastCreatedAt *time.Time `db:"last_created_at"`
	}

	var rows []chatRow
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}

	chats := make([]model.ChatSummary, len(rows))
	for i, row := range rows {
		chats[i] = row.ChatSummary
		if row.PeerID != nil {
			chats[i].Peer = &model.ProfileSummary{ID: *row.PeerID, FullName: row.PeerFullName, AvatarURL: row.PeerAvatarURL}
		}
		if row.LastID != nil {
			chats[i].LastMessage = &model.Message{
				ID:        *row.LastID,
				ChatID:    row.ID,
				SenderID:  *row.LastSenderID,
				Content:   *row.LastContent,
				Read:      *row.LastRead,
				CreatedAt: *row.LastCreatedAt,
			}
		}
	}
	return chats, nil
}
