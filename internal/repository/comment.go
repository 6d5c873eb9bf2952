package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"rollermate/internal/model"
)

type commentRepository struct {
	db *sqlx.DB
}

func NewCommentRepository(db *sqlx.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, c *model.Comment) error {
	query := `
		INSERT INTO comments (post_id, author_id, parent_id, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	if err := r.db.QueryRowxContext(ctx, query, c.PostID, c.AuthorID, c.ParentID, c.Content).
		Scan(&c.ID, &c.CreatedAt); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, commentID string) (*model.Comment, error) {
	query := `
		SELECT id, post_id, author_id, parent_id, content, created_at
		FROM comments
		WHERE id = $1
	`
	var comment model.Comment
	err := r.db.GetContext(ctx, &comment, query, commentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrCommentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	return &comment, nil
}

// ListByPost returns every comment on a post oldest first, replies included.
func (r *commentRepository) ListByPost(ctx context.Context, postID, viewerID string) ([]model.Comment, error) {
	query := `
		SELECT c.id, c.post_id, c.author_id, c.parent_id, c.content, c.created_at,
		       (SELECT COUNT(*) FROM comment_likes cl WHERE cl.comment_id = c.id) AS likes,
		       EXISTS(SELECT 1 FROM comment_likes cl WHERE cl.comment_id = c.id AND cl.user_id = $2::uuid) AS liked_by_user,
		       a.full_name AS author_full_name, a.avatar_url AS author_avatar_url
		FROM comments c
		JOIN profiles a ON a.id = c.author_id
		WHERE c.post_id = $1
		ORDER BY c.created_at ASC, c.id ASC
	`

	type commentRow struct {
		model.Comment
		AuthorFullName  *string `db:"author_full_name"`
		AuthorAvatarURL *string `db:"author_avatar_url"`
	}

	var rows []commentRow
	if err := r.db.SelectContext(ctx, &rows, query, postID, nullableID(viewerID)); err != nil {
		return nil, fmt.Errorf("get comments: %w", err)
	}

	comments := make([]model.Comment, len(rows))
	for i, row := range rows {
		comments[i] = row.Comment
		comments[i].Author = &model.ProfileSummary{
			ID:        row.AuthorID,
			FullName:  row.AuthorFullName,
			AvatarURL: row.AuthorAvatarURL,
		}
	}
	return comments, nil
}

func (r *commentRepository) Like(ctx context.Context, commentID, userID string) (bool, error) {
	return execAffected(ctx, r.db,
		`INSERT INTO comment_likes (comment_id, user_id) VALUES ($1, $2) ON CONFLICT (comment_id, user_id) DO NOTHING`,
		commentID, userID)
}

func (r *commentRepository) Unlike(ctx context.Context, commentID, userID string) (bool, error) {
	return execAffected(ctx, r.db, `DELETE FROM comment_likes WHERE comment_id = $1 AND user_id = $2`, commentID, userID)
}

func (r *commentRepository) CountLikes(ctx context.Context, commentID string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM comment_likes WHERE comment_id = $1`, commentID); err != nil {
		return 0, fmt.Errorf("count comment likes: %w", err)
	}
	return n, nil
}
