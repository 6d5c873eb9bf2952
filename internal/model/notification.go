package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Notification types
const (
	NotificationTypeLike        = "like"
	NotificationTypeComment     = "comment"
	NotificationTypeFollow      = "follow"
	NotificationTypeCommentLike = "comment_like"
	NotificationTypeReply       = "reply"
)

// NotificationPayload is the jsonb payload of a notification row.
type NotificationPayload struct {
	PostID     *string `json:"post_id,omitempty"`
	CommentID  *string `json:"comment_id,omitempty"`
	FollowerID *string `json:"follower_id,omitempty"`
}

func (p NotificationPayload) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal notification payload: %w", err)
	}
	return b, nil
}

func (p *NotificationPayload) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*p = NotificationPayload{}
		return nil
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("unsupported notification payload type %T", src)
	}
}

// Notification is a single notification row with the joined actor snippet.
type Notification struct {
	ID        string              `db:"id" json:"id"`
	UserID    string              `db:"user_id" json:"-"`
	ActorID   string              `db:"actor_id" json:"actor_id"`
	Type      string              `db:"type" json:"type"`
	Payload   NotificationPayload `db:"payload" json:"payload"`
	Read      bool                `db:"read" json:"read"`
	CreatedAt time.Time           `db:"created_at" json:"created_at"`

	Actor *ProfileSummary `db:"-" json:"actor,omitempty"`
}

// NewNotification is the input for creating a notification row.
type NewNotification struct {
	UserID  string
	ActorID string
	Type    string
	Payload NotificationPayload
}

// BadgeCounts are the two unread counters shown on the tab bar.
type BadgeCounts struct {
	Notifications int `json:"notifications"`
	Messages      int `json:"messages"`
}

type NotificationListResponse struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unread_count"`
}

const (
	DefaultNotificationLimit = 20
	MaxNotificationLimit     = 50
)
