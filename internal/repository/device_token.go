package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type deviceTokenRepository struct {
	db *sqlx.DB
}

func NewDeviceTokenRepository(db *sqlx.DB) DeviceTokenRepository {
	return &deviceTokenRepository{db: db}
}

// Upsert registers token for userID. A device that signs into another account
// moves its token there instead of delivering to both.
func (r *deviceTokenRepository) Upsert(ctx context.Context, userID, token, platform string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO device_tokens (user_id, token, platform)
		VALUES ($1, $2, $3)
		ON CONFLICT (token) DO UPDATE
		SET user_id = EXCLUDED.user_id, platform = EXCLUDED.platform, updated_at = NOW()`,
		userID, token, platform)
	if err != nil {
		return fmt.Errorf("upsert device token: %w", err)
	}
	return nil
}

// Tokens lists the user's push tokens, most recently seen first.
func (r *deviceTokenRepository) Tokens(ctx context.Context, userID string) ([]string, error) {
	var tokens []string
	err := r.db.SelectContext(ctx, &tokens, `SELECT token FROM device_tokens WHERE user_id = $1 ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("select device tokens: %w", err)
	}
	return tokens, nil
}

// Delete removes the given tokens of userID and reports how many existed.
func (r *deviceTokenRepository) Delete(ctx context.Context, userID string, tokens ...string) (int64, error) {
	if len(tokens) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM device_tokens WHERE user_id = $1 AND token = ANY($2)`, userID, pq.Array(tokens))
	if err != nil {
		return 0, fmt.Errorf("delete device tokens: %w", err)
	}
	return res.RowsAffected()
}
