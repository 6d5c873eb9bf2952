package model

import "time"

// Chat bootstrap states.
const (
	ChatStateFound   = "found"
	ChatStateCreated = "created"
)

type Chat struct {
	ID        string    `db:"id" json:"id"`
	PairKey   string    `db:"pair_key" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ChatBootstrap is the result of a find-or-create.
type ChatBootstrap struct {
	ChatID string `json:"chat_id"`
	State  string `json:"state"`
}

// ChatSummary is one row of the inbox.
type ChatSummary struct {
	ID          string          `db:"id" json:"id"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	LastMessage *Message        `db:"-" json:"last_message,omitempty"`
	UnreadCount int             `db:"unread_count" json:"unread_count"`
	Peer        *ProfileSummary `db:"-" json:"peer,omitempty"`
}

type Message struct {
	ID        string    `db:"id" json:"id"`
	ChatID    string    `db:"chat_id" json:"chat_id"`
	SenderID  string    `db:"sender_id" json:"sender_id"`
	Content   string    `db:"content" json:"content"`
	Read      bool      `db:"read" json:"read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type SendMessageRequest struct {
	Content string `json:"content"`
}

type MessageListResponse struct {
	Messages   []Message `json:"messages"`
	NextCursor *string   `json:"next_cursor,omitempty"`
	HasMore    bool      `json:"has_more"`
}

// PairKey is the order-independent key of a two-person chat.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

const (
	MaxMessageLength   = 4000
	DefaultMessagePage = 30
	MaxMessagePage     = 100
)

var (
	ErrNotChatMember   = newError(ErrPermissionDenied, "not a member of this chat")
	ErrCannotChatSelf  = newError(ErrValidation, "cannot start a chat with yourself")
	ErrMessageRequired = newError(ErrValidation, "message content is required")
	ErrMessageTooLong  = newError(ErrValidation, "message content too long")
)
