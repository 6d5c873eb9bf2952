package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"rollermate/internal/logging"
	"rollermate/internal/metrics"
)

// RedisBroker fans events out over Redis pub/sub so every API instance sees them.
type RedisBroker struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client, log: logging.For("RealtimeBroker")}
}

func (b *RedisBroker) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ch := channelName(event.Table, event.UserID)
	if err := b.client.Publish(ctx, ch, payload).Err(); err != nil {
		b.log.Error().Err(err).Str("channel", ch).Msg("Publish FAILED")
		return fmt.Errorf("redis publish: %w", err)
	}

	metrics.RealtimeEvents.WithLabelValues(event.Table).Inc()
	b.log.Debug().Str("channel", ch).Str("type", event.Type).Msg("Publish OK")
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, table, userID string) (*Subscription, error) {
	ch := channelName(table, userID)
	pubsub := b.client.Subscribe(ctx, ch)

	// Wait for the subscribe confirmation so nothing published afterwards is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", ch, err)
	}

	out := make(chan Event, subscriberBuffer)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.log.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed event")
				continue
			}
			select {
			case out <- event:
			default:
				// A full buffer already holds undelivered events for this subscriber.
				b.log.Warn().Str("channel", msg.Channel).Msg("subscriber buffer full, dropping event")
			}
		}
	}()

	b.log.Debug().Str("channel", ch).Msg("Subscribe OK")
	return newSubscription(out, pubsub.Close), nil
}
