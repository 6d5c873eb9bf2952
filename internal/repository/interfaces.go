package repository

import (
	"context"
	"time"

	"rollermate/internal/model"
)

type ProfileRepository interface {
	Create(ctx context.Context, profile *model.Profile) error
	GetByID(ctx context.Context, id string) (*model.Profile, error)
	GetByEmail(ctx context.Context, email string) (*model.Profile, error)
	Search(ctx context.Context, query string, limit int) ([]model.ProfileSummary, error)
	Update(ctx context.Context, id string, req *model.UpdateProfileRequest) (*model.Profile, error)
	// UpdateAvatar stores the new avatar and returns the previous object key, if any.
	UpdateAvatar(ctx context.Context, id string, upload *model.UploadResult) (*string, error)
}

type FollowRepository interface {
	// Create reports whether a new edge was inserted.
	Create(ctx context.Context, followerID, followingID string) (bool, error)
	// Delete reports whether an edge was removed.
	Delete(ctx context.Context, followerID, followingID string) (bool, error)
	Exists(ctx context.Context, followerID, followingID string) (bool, error)
	CountFollowers(ctx context.Context, userID string) (int, error)
	CountFollowing(ctx context.Context, userID string) (int, error)
	GetFollowers(ctx context.Context, userID string, cursor *time.Time, limit int) ([]model.ProfileSummary, *time.Time, error)
	GetFollowing(ctx context.Context, userID string, cursor *time.Time, limit int) ([]model.ProfileSummary, *time.Time, error)
	CheckFollows(ctx context.Context, followerID string, ids []string) (map[string]bool, error)
}

type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	GetByID(ctx context.Context, postID, viewerID string) (*model.Post, error)
	// List returns at most q.Limit posts ordered by created_at DESC, id DESC.
	List(ctx context.Context, q model.FeedQuery) ([]model.Post, error)
	// Delete removes an owned post and returns its image key.
	Delete(ctx context.Context, postID, authorID string) (*string, error)
	CountByAuthor(ctx context.Context, authorID string) (int, error)
	GetAuthorID(ctx context.Context, postID string) (string, error)
	Like(ctx context.Context, postID, userID string) (bool, error)
	Unlike(ctx context.Context, postID, userID string) (bool, error)
	CountLikes(ctx context.Context, postID string) (int, error)
}

type CommentRepository interface {
	Create(ctx context.Context, comment *model.Comment) error
	GetByID(ctx context.Context, commentID string) (*model.Comment, error)
	ListByPost(ctx context.Context, postID, viewerID string) ([]model.Comment, error)
	Like(ctx context.Context, commentID, userID string) (bool, error)
	Unlike(ctx context.Context, commentID, userID string) (bool, error)
	CountLikes(ctx context.Context, commentID string) (int, error)
}

type ChatRepository interface {
	// FindDirect returns the id of a chat both users participate in, or "".
	FindDirect(ctx context.Context, userID, targetID string) (string, error)
	// CreateDirect inserts the chat for the pair and both participants in one
	// transaction. created is false when the pair already had a chat.
	CreateDirect(ctx context.Context, userID, targetID string) (chatID string, created bool, err error)
	IsMember(ctx context.Context, chatID, userID string) (bool, error)
	Members(ctx context.Context, chatID string) ([]string, error)
	ListForUser(ctx context.Context, userID string) ([]model.ChatSummary, error)
}

type MessageRepository interface {
	Create(ctx context.Context, msg *model.Message) error
	List(ctx context.Context, chatID string, cursor *model.FeedCursor, limit int) ([]model.Message, error)
	// MarkRead flags every message in the chat not sent by readerID as read.
	MarkRead(ctx context.Context, chatID, readerID string) (int64, error)
	CountUnread(ctx context.Context, userID string) (int, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n model.NewNotification) (*model.Notification, error)
	ListRecent(ctx context.Context, userID string, limit int) ([]model.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

type RefreshTokenRepository interface {
	Create(ctx context.Context, token *model.RefreshToken) error
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	// Rotate fails with model.ErrRefreshTokenReused when currentID is no longer live.
	Rotate(ctx context.Context, currentID string, next *model.RefreshToken) error
	Revoke(ctx context.Context, id string) error
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
}

type DeviceTokenRepository interface {
	Upsert(ctx context.Context, userID, token, platform string) error
	Tokens(ctx context.Context, userID string) ([]string, error)
	Delete(ctx context.Context, userID string, tokens ...string) (int64, error)
}
