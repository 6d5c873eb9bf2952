package model

import "time"

// Comment is a comment on a post, optionally replying to another comment.
type Comment struct {
	ID        string          `db:"id" json:"id"`
	PostID    string          `db:"post_id" json:"post_id"`
	AuthorID  string          `db:"author_id" json:"author_id"`
	ParentID  *string         `db:"parent_id" json:"parent_id,omitempty"`
	Content   string          `db:"content" json:"content"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	Likes     int             `db:"likes" json:"likes"`
	LikedByMe bool            `db:"liked_by_user" json:"liked_by_user"`
	Author    *ProfileSummary `db:"-" json:"author,omitempty"`
}

// CreateCommentRequest is the request body for creating a comment.
type CreateCommentRequest struct {
	Content  string  `json:"content"`
	ParentID *string `json:"parent_id,omitempty"`
}

// CommentListResponse is the list of comments on a post, oldest first.
type CommentListResponse struct {
	Comments []Comment `json:"comments"`
}

const MaxCommentLength = 1000

var (
	ErrCommentNotFound   = newError(ErrNotFound, "comment not found")
	ErrCommentRequired   = newError(ErrValidation, "comment content is required")
	ErrCommentTooLong    = newError(ErrValidation, "comment content too long")
	ErrParentOnOtherPost = newError(ErrValidation, "parent comment belongs to another post")
)
