package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"rollermate/internal/logging"
)

// Publisher appends activity events to a stream.
type Publisher interface {
	// Publish returns the message ID assigned by Redis.
	Publish(ctx context.Context, stream string, event ActivityEvent) (messageID string, err error)
}

type RedisPublisher struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewPublisher(client *redis.Client) Publisher {
	return &RedisPublisher{client: client, log: logging.For("Publisher")}
}

func (p *RedisPublisher) Publish(ctx context.Context, stream string, event ActivityEvent) (string, error) {
	startTime := time.Now()

	values, err := event.ToMap()
	if err != nil {
		p.log.Error().Err(err).Str("stream", stream).Str(logging.EVENT, event.Type).Msg("Publish FAILED")
		return "", fmt.Errorf("serialize event: %w", err)
	}

	messageID, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: values,
	}).Result()
	if err != nil {
		p.log.Error().Err(err).Str("stream", stream).Str(logging.EVENT, event.Type).Msg("Publish FAILED")
		return "", fmt.Errorf("xadd to stream: %w", err)
	}

	p.log.Debug().
		Str("stream", stream).
		Str(logging.EVENT, event.Type).
		Str("msg_id", messageID).
		Str("actor", event.ActorID).
		Str("recipient", event.RecipientID).
		Dur("duration", time.Since(startTime)).
		Msg("Publish OK")
	return messageID, nil
}
