package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Activity event types
const (
	EventPostLiked      = "post_liked"
	EventPostCommented  = "post_commented"
	EventCommentLiked   = "comment_liked"
	EventCommentReplied = "comment_replied"
	EventUserFollowed   = "user_followed"
)

const (
	StreamActivity = "stream:activity"

	ConsumerGroupNotifications = "notification_workers"
)

// ActivityEvent is something a user did that another user should hear about.
type ActivityEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`

	ActorID     string `json:"actor_id"`
	RecipientID string `json:"recipient_id"`

	PostID    string `json:"post_id,omitempty"`
	CommentID string `json:"comment_id,omitempty"`
}

func newEvent(eventType, actorID, recipientID string) ActivityEvent {
	return ActivityEvent{
		Type:        eventType,
		Timestamp:   time.Now().Unix(),
		ActorID:     actorID,
		RecipientID: recipientID,
	}
}

func NewPostLikedEvent(postID, likerID, authorID string) ActivityEvent {
	e := newEvent(EventPostLiked, likerID, authorID)
	e.PostID = postID
	return e
}

func NewPostCommentedEvent(postID, commentID, commenterID, authorID string) ActivityEvent {
	e := newEvent(EventPostCommented, commenterID, authorID)
	e.PostID = postID
	e.CommentID = commentID
	return e
}

func NewCommentLikedEvent(postID, commentID, likerID, authorID string) ActivityEvent {
	e := newEvent(EventCommentLiked, likerID, authorID)
	e.PostID = postID
	e.CommentID = commentID
	return e
}

// NewCommentRepliedEvent notifies the parent comment's author; commentID is the reply.
func NewCommentRepliedEvent(postID, commentID, replierID, parentAuthorID string) ActivityEvent {
	e := newEvent(EventCommentReplied, replierID, parentAuthorID)
	e.PostID = postID
	e.CommentID = commentID
	return e
}

func NewUserFollowedEvent(followerID, followingID string) ActivityEvent {
	return newEvent(EventUserFollowed, followerID, followingID)
}

// ToMap converts the event to XADD field-value pairs. The full event is
// JSON-encoded in the "data" field.
func (e ActivityEvent) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]interface{}{
		"type": e.Type,
		"data": string(data),
	}, nil
}

// ParseActivityEvent parses an event from Redis stream message values.
func ParseActivityEvent(values map[string]interface{}) (ActivityEvent, error) {
	data, ok := values["data"].(string)
	if !ok {
		return ActivityEvent{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event ActivityEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return ActivityEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}
