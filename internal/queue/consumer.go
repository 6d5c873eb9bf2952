package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"rollermate/internal/logging"
)

// Message is one event read from a stream.
type Message struct {
	ID    string
	Event ActivityEvent
}

// Consumer reads a stream through a consumer group.
type Consumer interface {
	// EnsureGroup creates the group (and stream) if missing.
	EnsureGroup(ctx context.Context, stream, group string) error
	// Read returns new messages for consumer, blocking up to block.
	Read(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]Message, error)
	// ReadPending returns messages delivered to consumer but never acknowledged.
	ReadPending(ctx context.Context, stream, group, consumer string, count int64) ([]Message, error)
	Ack(ctx context.Context, stream, group string, messageIDs ...string) error
	Pending(ctx context.Context, stream, group string) (int64, error)
}

type RedisConsumer struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewConsumer(client *redis.Client) Consumer {
	return &RedisConsumer{client: client, log: logging.For("Consumer")}
}

// EnsureGroup starts a new group at "0" so events queued before the first
// worker came up are still delivered.
func (c *RedisConsumer) EnsureGroup(ctx context.Context, stream, group string) error {
	err := c.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil {
		if strings.HasPrefix(err.Error(), "BUSYGROUP") {
			c.log.Debug().Str("stream", stream).Str("group", group).Msg("EnsureGroup: already exists")
			return nil
		}
		c.log.Error().Err(err).Str("stream", stream).Str("group", group).Msg("EnsureGroup FAILED")
		return fmt.Errorf("create consumer group: %w", err)
	}

	c.log.Info().Str("stream", stream).Str("group", group).Msg("EnsureGroup OK")
	return nil
}

func (c *RedisConsumer) Read(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]Message, error) {
	return c.read(ctx, stream, group, consumer, ">", count, block)
}

func (c *RedisConsumer) ReadPending(ctx context.Context, stream, group, consumer string, count int64) ([]Message, error) {
	return c.read(ctx, stream, group, consumer, "0", count, -1)
}

// read issues XREADGROUP from id; a negative block means do not block.
func (c *RedisConsumer) read(ctx context.Context, stream, group, consumer, id string, count int64, block time.Duration) ([]Message, error) {
	startTime := time.Now()

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, id},
		Count:    count,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		c.log.Error().Err(err).Str("stream", stream).Str("consumer", consumer).Str("from", id).Msg("Read FAILED")
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}

	var messages []Message
	for _, s := range streams {
		for _, msg := range s.Messages {
			event, err := ParseActivityEvent(msg.Values)
			if err != nil {
				c.log.Warn().Err(err).Str("msg_id", msg.ID).Msg("skipping malformed message")
				// Ack it so it does not come back on every pending scan.
				_ = c.client.XAck(ctx, stream, group, msg.ID).Err()
				continue
			}
			messages = append(messages, Message{ID: msg.ID, Event: event})
		}
	}

	if len(messages) > 0 {
		c.log.Debug().
			Str("stream", stream).
			Str("consumer", consumer).
			Str("from", id).
			Int("count", len(messages)).
			Dur("duration", time.Since(startTime)).
			Msg("Read OK")
	}
	return messages, nil
}

func (c *RedisConsumer) Ack(ctx context.Context, stream, group string, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return nil
	}

	if err := c.client.XAck(ctx, stream, group, messageIDs...).Err(); err != nil {
		c.log.Error().Err(err).Str("stream", stream).Strs("ids", messageIDs).Msg("Ack FAILED")
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}

func (c *RedisConsumer) Pending(ctx context.Context, stream, group string) (int64, error) {
	info, err := c.client.XPending(ctx, stream, group).Result()
	if err != nil {
		return 0, fmt.Errorf("xpending: %w", err)
	}
	return info.Count, nil
}
