package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"rollermate/internal/model"
)

type postRepository struct {
	db *sqlx.DB
}

func NewPostRepository(db *sqlx.DB) PostRepository {
	return &postRepository{db: db}
}

// postSelect reads posts with their derived counts. $1 is the viewer (nullable).
const postSelect = `
	SELECT
		p.id, p.author_id, p.content, p.image_url, p.image_key, p.latitude, p.longitude, p.created_at,
		(SELECT COUNT(*) FROM likes l WHERE l.post_id = p.id) AS likes,
		(SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id) AS comments_count,
		EXISTS(SELECT 1 FROM likes l WHERE l.post_id = p.id AND l.user_id = $1::uuid) AS liked_by_user,
		a.full_name AS author_full_name,
		a.avatar_url AS author_avatar_url
	FROM posts p
	JOIN profiles a ON a.id = p.author_id
`

type postRow struct {
	model.Post
	AuthorFullName  *string `db:"author_full_name"`
	AuthorAvatarURL *string `db:"author_avatar_url"`
}

func (row postRow) toPost() model.Post {
	post := row.Post
	post.Author = &model.ProfileSummary{
		ID:        post.AuthorID,
		FullName:  row.AuthorFullName,
		AvatarURL: row.AuthorAvatarURL,
	}
	return post
}

func nullableID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

func (r *postRepository) Create(ctx context.Context, post *model.Post) error {
	query := `
		INSERT INTO posts (author_id, content, image_url, image_key, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		post.AuthorID,
		post.Content,
		post.ImageURL,
		post.ImageKey,
		post.Latitude,
		post.Longitude,
	).Scan(&post.ID, &post.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, postID, viewerID string) (*model.Post, error) {
	var row postRow
	err := r.db.GetContext(ctx, &row, postSelect+` WHERE p.id = $2`, nullableID(viewerID), postID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrPostNotFound
		}
		return nil, fmt.Errorf("get post: %w", err)
	}
	post := row.toPost()
	return &post, nil
}

// List pages posts in (created_at DESC, id DESC) order, optionally filtered to
// one author. The cursor is exclusive.
func (r *postRepository) List(ctx context.Context, q model.FeedQuery) ([]model.Post, error) {
	query := postSelect + `
		WHERE ($2::uuid IS NULL OR p.author_id = $2::uuid)
		  AND ($3::timestamptz IS NULL OR (p.created_at, p.id) < ($3, $4::uuid))
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $5
	`
	var (
		cursorAt interface{}
		cursorID *string
	)
	if q.Cursor != nil {
		cursorAt = q.Cursor.CreatedAt
		cursorID = &q.Cursor.ID
	}

	var rows []postRow
	if err := r.db.SelectContext(ctx, &rows, query, nullableID(q.ViewerID), q.AuthorID, cursorAt, cursorID, q.Limit); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	posts := make([]model.Post, 0, len(rows))
	for _, row := range rows {
		posts = append(posts, row.toPost())
	}
	return posts, nil
}

func (r *postRepository) Delete(ctx context.Context, postID, authorID string) (*string, error) {
	var imageKey *string
	err := r.db.GetContext(ctx, &imageKey,
		`DELETE FROM posts WHERE id = $1 AND author_id = $2 RETURNING image_key`, postID, authorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrPostNotFound
		}
		return nil, fmt.Errorf("delete post: %w", err)
	}
	return imageKey, nil
}

func (r *postRepository) CountByAuthor(ctx context.Context, authorID string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM posts WHERE author_id = $1`, authorID); err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	return n, nil
}

func (r *postRepository) GetAuthorID(ctx context.Context, postID string) (string, error) {
	var authorID string
	if err := r.db.GetContext(ctx, &authorID, `SELECT author_id FROM posts WHERE id = $1`, postID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", model.ErrPostNotFound
		}
		return "", fmt.Errorf("get post author: %w", err)
	}
	return authorID, nil
}

func (r *postRepository) Like(ctx context.Context, postID, userID string) (bool, error) {
	return execAffected(ctx, r.db,
		`INSERT INTO likes (post_id, user_id) VALUES ($1, $2) ON CONFLICT (post_id, user_id) DO NOTHING`,
		postID, userID)
}

func (r *postRepository) Unlike(ctx context.Context, postID, userID string) (bool, error) {
	return execAffected(ctx, r.db, `DELETE FROM likes WHERE post_id = $1 AND user_id = $2`, postID, userID)
}

func (r *postRepository) CountLikes(ctx context.Context, postID string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM likes WHERE post_id = $1`, postID); err != nil {
		return 0, fmt.Errorf("count likes: %w", err)
	}
	return n, nil
}

// execAffected runs an idempotent write and reports whether it changed a row.
func execAffected(ctx context.Context, db sqlx.ExecerContext, query string, args ...interface{}) (bool, error) {
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("exec: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}
