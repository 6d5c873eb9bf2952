package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"rollermate/internal/model"
)

type followRepository struct {
	db *sqlx.DB
}

func NewFollowRepository(db *sqlx.DB) FollowRepository {
	return &followRepository{db: db}
}

func (r *followRepository) Create(ctx context.Context, followerID, followingID string) (bool, error) {
	query := `
		INSERT INTO follows (follower_id, following_id)
		VALUES ($1, $2)
		ON CONFLICT (follower_id, following_id) DO NOTHING
	`
	result, err := r.db.ExecContext(ctx, query, followerID, followingID)
	if err != nil {
		return false, fmt.Errorf("failed to create follow: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

func (r *followRepository) Delete(ctx context.Context, followerID, followingID string) (bool, error) {
	query := `DELETE FROM follows WHERE follower_id = $1 AND following_id = $2`
	result, err := r.db.ExecContext(ctx, query, followerID, followingID)
	if err != nil {
		return false, fmt.Errorf("failed to delete follow: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *followRepository) Exists(ctx context.Context, followerID, followingID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM follows WHERE follower_id = $1 AND following_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, followerID, followingID); err != nil {
		return false, fmt.Errorf("failed to check follow existence: %w", err)
	}
	return exists, nil
}

func (r *followRepository) CountFollowers(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM follows WHERE following_id = $1`, userID); err != nil {
		return 0, fmt.Errorf("failed to count followers: %w", err)
	}
	return n, nil
}

func (r *followRepository) CountFollowing(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM follows WHERE follower_id = $1`, userID); err != nil {
		return 0, fmt.Errorf("failed to count following: %w", err)
	}
	return n, nil
}

// GetFollowers pages the users following userID, newest edge first.
// A nil cursor starts at the top; nextCursor is nil on the last page.
func (r *followRepository) GetFollowers(ctx context.Context, userID string, cursor *time.Time, limit int) ([]model.ProfileSummary, *time.Time, error) {
	return r.page(ctx, "follower_id", "following_id", userID, cursor, limit)
}

func (r *followRepository) GetFollowing(ctx context.Context, userID string, cursor *time.Time, limit int) ([]model.ProfileSummary, *time.Time, error) {
	return r.page(ctx, "following_id", "follower_id", userID, cursor, limit)
}

// page joins profiles on joinCol and filters on filterCol.
func (r *followRepository) page(ctx context.Context, joinCol, filterCol, userID string, cursor *time.Time, limit int) ([]model.ProfileSummary, *time.Time, error) {
	query := fmt.Sprintf(`
		SELECT p.id, p.full_name, p.avatar_url, f.created_at
		FROM follows f
		JOIN profiles p ON p.id = f.%s
		WHERE f.%s = $1 AND ($2::timestamptz IS NULL OR f.created_at < $2)
		ORDER BY f.created_at DESC
		LIMIT $3
	`, joinCol, filterCol)

	type userWithTime struct {
		model.ProfileSummary
		CreatedAt time.Time `db:"created_at"`
	}

	var results []userWithTime
	if err := r.db.SelectContext(ctx, &results, query, userID, cursor, limit+1); err != nil {
		return nil, nil, fmt.Errorf("failed to list follows: %w", err)
	}

	var nextCursor *time.Time
	if len(results) > limit {
		results = results[:limit]
		nextCursor = &results[len(results)-1].CreatedAt
	}

	users := make([]model.ProfileSummary, 0, len(results))
	for _, result := range results {
		users = append(users, result.ProfileSummary)
	}
	return users, nextCursor, nil
}

func (r *followRepository) CheckFollows(ctx context.Context, followerID string, ids []string) (map[string]bool, error) {
	result := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := `SELECT following_id FROM follows WHERE follower_id = $1 AND following_id = ANY($2::uuid[])`
	var followed []string
	if err := r.db.SelectContext(ctx, &followed, query, followerID, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to check follows: %w", err)
	}

	for _, id := range ids {
		result[id] = false
	}
	for _, id := range followed {
		result[id] = true
	}
	return result, nil
}
