package model

import "time"

type Follow struct {
	FollowerID  string    `db:"follower_id" json:"follower_id"`
	FollowingID string    `db:"following_id" json:"following_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// FollowToggleRequest carries the caller's view of the edge before the toggle.
type FollowToggleRequest struct {
	IsFollowing bool `json:"is_following"`
}

// FollowToggleResult is the confirmed state after a toggle.
type FollowToggleResult struct {
	IsFollowing    bool `json:"is_following"`
	FollowersCount int  `json:"followers_count"`
}

type FollowListResponse struct {
	Users      []ProfileSummary `json:"users"`
	NextCursor *string          `json:"next_cursor,omitempty"`
	HasMore    bool             `json:"has_more"`
}

var (
	ErrCannotFollowSelf = newError(ErrValidation, "cannot follow yourself")
)
