package realtime

import (
	"context"
	"sync"

	"rollermate/internal/metrics"
)

// MemoryBroker delivers events within a single process.
type MemoryBroker struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{subs: map[string]map[chan Event]struct{}{}}
}

func (b *MemoryBroker) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[channelName(event.Table, event.UserID)] {
		select {
		case ch <- event:
		default:
		}
	}
	metrics.RealtimeEvents.WithLabelValues(event.Table).Inc()
	return nil
}

func (b *MemoryBroker) Subscribe(ctx context.Context, table, userID string) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := channelName(table, userID)
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	if b.subs[key] == nil {
		b.subs[key] = map[chan Event]struct{}{}
	}
	b.subs[key][ch] = struct{}{}
	b.mu.Unlock()

	return newSubscription(ch, func() error {
		b.mu.Lock()
		defer b.mu.Unlock()
		if subs, ok := b.subs[key]; ok {
			delete(subs, ch)
			if len(subs) == 0 {
				delete(b.subs, key)
			}
		}
		close(ch)
		return nil
	}), nil
}

// Subscribers reports how many live subscriptions exist for table and user.
func (b *MemoryBroker) Subscribers(table, userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[channelName(table, userID)])
}
