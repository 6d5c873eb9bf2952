package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Post is a feed item with its per-request derived fields.
type Post struct {
	ID        string    `db:"id" json:"id"`
	AuthorID  string    `db:"author_id" json:"author_id"`
	Content   string    `db:"content" json:"content"`
	ImageURL  *string   `db:"image_url" json:"image_url"`
	ImageKey  *string   `db:"image_key" json:"-"`
	Latitude  *float64  `db:"latitude" json:"latitude,omitempty"`
	Longitude *float64  `db:"longitude" json:"longitude,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	Likes         int             `db:"likes" json:"likes"`
	CommentsCount int             `db:"comments_count" json:"comments_count"`
	LikedByUser   bool            `db:"liked_by_user" json:"liked_by_user"`
	Author        *ProfileSummary `db:"-" json:"author,omitempty"`
}

// Location is an optional coordinate pair attached to a post.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the coordinates are on the globe.
func (l Location) Valid() bool {
	return l.Latitude >= -90 && l.Latitude <= 90 && l.Longitude >= -180 && l.Longitude <= 180
}

// Image is an uploaded image before it is normalised and stored.
type Image struct {
	Data        []byte
	ContentType string
}

// CreatePostInput is everything the composer submits.
type CreatePostInput struct {
	Content string
	Image   *Image
	// Location is nil when the device has no fix.
	Location *Location
	// LocationDenied is set when the user refused the location permission.
	LocationDenied bool
}

// FeedQuery selects a page of posts for a viewer.
type FeedQuery struct {
	ViewerID string
	AuthorID *string
	Cursor   *FeedCursor
	Limit    int
}

// FeedCursor is the (created_at, id) position of the last item on a page.
type FeedCursor struct {
	CreatedAt time.Time
	ID        string
}

func (c FeedCursor) String() string {
	return fmt.Sprintf("%d:%s", c.CreatedAt.UnixNano(), c.ID)
}

// ParseFeedCursor parses the "<unix_nanos>:<id>" form produced by String.
func ParseFeedCursor(s string) (*FeedCursor, error) {
	nanos, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return nil, ErrInvalidCursor
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, ErrInvalidCursor
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidCursor
	}
	return &FeedCursor{CreatedAt: time.Unix(0, n).UTC(), ID: id}, nil
}

// FeedResponse is the paginated feed response.
type FeedResponse struct {
	Posts      []Post  `json:"posts"`
	NextCursor *string `json:"next_cursor,omitempty"`
	HasMore    bool    `json:"has_more"`
}

// LikeToggleRequest carries the caller's view of the like before the toggle.
type LikeToggleRequest struct {
	Liked bool `json:"liked"`
}

// LikeToggleResult is the confirmed state after a toggle.
type LikeToggleResult struct {
	Liked bool `json:"liked"`
	Likes int  `json:"likes"`
}

// Post constraints
const (
	MaxPostContentLength = 2000
	PostImageFolder      = "posts"
	MaxPostImageSize     = 10 * 1024 * 1024
	PostImageMaxSide     = 1440
	DefaultFeedLimit     = 20
	MaxFeedLimit         = 50
)

var (
	ErrPostNotFound    = newError(ErrNotFound, "post not found")
	ErrNotPostOwner    = newError(ErrPermissionDenied, "not the owner of this post")
	ErrEmptyPost       = newError(ErrValidation, "post needs text or an image")
	ErrContentTooLong  = newError(ErrValidation, "post content exceeds 2000 characters")
	ErrInvalidLocation = newError(ErrValidation, "invalid coordinates")
	ErrInvalidCursor   = newError(ErrValidation, "invalid cursor")
	ErrLocationDenied  = newError(ErrPermissionDenied, "location permission denied")
)
