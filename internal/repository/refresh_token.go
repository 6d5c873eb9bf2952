package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"rollermate/internal/database"
	"rollermate/internal/model"
)

const refreshTokenColumns = `id, user_id, token_hash, expires_at, created_at, revoked_at, replaced_by, device_info, ip_address`

const insertRefreshToken = `
	INSERT INTO refresh_tokens (user_id, token_hash, expires_at, device_info, ip_address)
	VALUES (:user_id, :token_hash, :expires_at, :device_info, :ip_address)
	RETURNING id, created_at`

type refreshTokenRepository struct {
	db *sqlx.DB
}

func NewRefreshTokenRepository(db *sqlx.DB) RefreshTokenRepository {
	return &refreshTokenRepository{db: db}
}

func (r *refreshTokenRepository) Create(ctx context.Context, token *model.RefreshToken) error {
	if err := insertToken(ctx, r.db, token); err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

func (r *refreshTokenRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	var token model.RefreshToken
	err := r.db.GetContext(ctx, &token, `SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token_hash = $1`, tokenHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrRefreshTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select refresh token: %w", err)
	}
	return &token, nil
}

// Rotate revokes currentID and stores next in one transaction. The revoke only
// matches a live row, so of two concurrent rotations of the same token exactly
// one succeeds; the other gets ErrRefreshTokenReused.
func (r *refreshTokenRepository) Rotate(ctx context.Context, currentID string, next *model.RefreshToken) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := insertToken(ctx, tx, next); err != nil {
			return fmt.Errorf("insert rotated token: %w", err)
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE refresh_tokens SET revoked_at = NOW(), replaced_by = $2
			WHERE id = $1 AND revoked_at IS NULL`, currentID, next.ID)
		if err != nil {
			return fmt.Errorf("revoke rotated token: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return model.ErrRefreshTokenReused
		}
		return nil
	})
}

func (r *refreshTokenRepository) Revoke(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAllForUser revokes the user's live tokens and drops their expired ones.
func (r *refreshTokenRepository) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	var revoked int64
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE refresh_tokens SET revoked_at = NOW()
			WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > NOW()`, userID)
		if err != nil {
			return fmt.Errorf("revoke user tokens: %w", err)
		}
		revoked, _ = res.RowsAffected()

		if _, err := tx.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1 AND expires_at <= NOW()`, userID); err != nil {
			return fmt.Errorf("purge expired tokens: %w", err)
		}
		return nil
	})
	return revoked, err
}

func insertToken(ctx context.Context, q sqlx.ExtContext, token *model.RefreshToken) error {
	rows, err := sqlx.NamedQueryContext(ctx, q, insertRefreshToken, token)
	if err != nil {
		return err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return sql.ErrNoRows
	}
	return rows.Scan(&token.ID, &token.CreatedAt)
}
