// Package realtime delivers row-change events to subscribers scoped by table and user.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Tables that publish change events.
const (
	TableNotifications = "notifications"
	TableMessages      = "messages"
	TableSessions      = "sessions"
)

// Event types
const (
	TypeInsert    = "INSERT"
	TypeSignedOut = "SIGNED_OUT"
)

// subscriberBuffer is the per-subscription queue depth.
const subscriberBuffer = 64

// Event is a change on a table, addressed to one user.
type Event struct {
	Table  string          `json:"table"`
	Type   string          `json:"type"`
	UserID string          `json:"user_id"`
	Record json.RawMessage `json:"record,omitempty"`
	At     time.Time       `json:"at"`
}

// NewInsertEvent builds an INSERT event carrying record as JSON.
func NewInsertEvent(table, userID string, record any) (Event, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s record: %w", table, err)
	}
	return Event{
		Table:  table,
		Type:   TypeInsert,
		UserID: userID,
		Record: data,
		At:     time.Now().UTC(),
	}, nil
}

// Broker publishes events and hands out subscriptions.
type Broker interface {
	Publish(ctx context.Context, event Event) error
	// Subscribe returns once the subscription is live, so events published
	// after it returns are delivered.
	Subscribe(ctx context.Context, table, userID string) (*Subscription, error)
}

// Subscription is a live feed of events. Close it to unsubscribe; C is
// closed once the subscription is torn down.
type Subscription struct {
	C <-chan Event

	once    sync.Once
	closeFn func() error
	err     error
}

func newSubscription(c <-chan Event, closeFn func() error) *Subscription {
	return &Subscription{C: c, closeFn: closeFn}
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() error {
	s.once.Do(func() {
		s.err = s.closeFn()
	})
	return s.err
}

func channelName(table, userID string) string {
	return "realtime:" + table + ":" + userID
}
