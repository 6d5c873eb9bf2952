package notify

import (
	"strings"

	"rollermate/internal/model"
)

// Navigation targets
const (
	TargetPost    = "post"
	TargetProfile = "profile"
)

// Target is where tapping a notification leads.
type Target struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

// Item is a notification with its display text.
type Item struct {
	model.Notification
	Text   string  `json:"text"`
	Target *Target `json:"target,omitempty"`
}

const (
	unknownActor = "Someone"
	fallbackText = "You have a new notification"
)

// Render produces the display text and navigation target for n. Unknown types
// get a generic text and no target.
func Render(n model.Notification) Item {
	actor := actorName(n.Actor)
	item := Item{Notification: n}

	switch n.Type {
	case model.NotificationTypeLike:
		item.Text = actor + " liked your post"
		item.Target = postTarget(n.Payload)
	case model.NotificationTypeComment:
		item.Text = actor + " commented on your post"
		item.Target = postTarget(n.Payload)
	case model.NotificationTypeCommentLike:
		item.Text = actor + " liked your comment"
		item.Target = postTarget(n.Payload)
	case model.NotificationTypeReply:
		item.Text = actor + " replied to your comment"
		item.Target = postTarget(n.Payload)
	case model.NotificationTypeFollow:
		item.Text = actor + " started following you"
		id := n.ActorID
		if n.Payload.FollowerID != nil {
			id = *n.Payload.FollowerID
		}
		if id != "" {
			item.Target = &Target{Kind: TargetProfile, ID: id}
		}
	default:
		item.Text = fallbackText
	}
	return item
}

// RenderAll renders a list in order.
func RenderAll(ns []model.Notification) []Item {
	items := make([]Item, len(ns))
	for i, n := range ns {
		items[i] = Render(n)
	}
	return items
}

func actorName(actor *model.ProfileSummary) string {
	if actor == nil || actor.FullName == nil {
		return unknownActor
	}
	if name := strings.TrimSpace(*actor.FullName); name != "" {
		return name
	}
	return unknownActor
}

func postTarget(p model.NotificationPayload) *Target {
	if p.PostID == nil || *p.PostID == "" {
		return nil
	}
	return &Target{Kind: TargetPost, ID: *p.PostID}
}
