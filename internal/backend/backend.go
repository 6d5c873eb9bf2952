// Package backend binds the configured backing services into one handle.
package backend

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"rollermate/internal/config"
	"rollermate/internal/database"
	"rollermate/internal/logging"
	"rollermate/internal/queue"
	"rollermate/internal/realtime"
	redisclient "rollermate/internal/redis"
	"rollermate/internal/service"
	"rollermate/internal/session"
	"rollermate/internal/storage"
)

// Client is the configured handle shared by every service.
type Client struct {
	DB        *sqlx.DB
	Redis     *redisclient.Client
	Objects   storage.ObjectStore
	Broker    realtime.Broker
	Sessions  *session.Manager
	Publisher queue.Publisher
	Pusher    service.Pusher // nil when push is not configured

	log zerolog.Logger
}

// Connect opens Postgres (applying the schema) and Redis, then binds the rest.
func Connect(ctx context.Context, cfg *config.Config) (*Client, error) {
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := database.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	rdb, err := redisclient.Connect(ctx, cfg.RedisURL)
	if err != nil {
		db.Close()
		return nil, err
	}

	c, err := New(ctx, cfg, db, rdb)
	if err != nil {
		rdb.Close()
		db.Close()
		return nil, err
	}
	return c, nil
}

// New binds already-open connections. Object storage falls back to
// storage.Disabled and push to nil when their settings are absent.
func New(ctx context.Context, cfg *config.Config, db *sqlx.DB, rdb *redisclient.Client) (*Client, error) {
	c := &Client{
		DB:        db,
		Redis:     rdb,
		Objects:   storage.Disabled{},
		Broker:    realtime.NewRedisBroker(rdb.Client),
		Publisher: queue.NewPublisher(rdb.Client),
		log:       logging.For("Backend"),
	}
	c.Sessions = session.NewManager(session.NewRedisStore(rdb.Client), c.Broker, cfg.JWTSecret, cfg.AccessTokenTTL())

	if cfg.StorageConfigured() {
		r2, err := storage.NewR2Store(ctx, cfg)
		if err != nil {
			return nil, err
		}
		c.Objects = r2
	} else {
		c.log.Warn().Msg("R2 not configured, image uploads disabled")
	}

	if cfg.PushConfigured() {
		fcm, err := service.NewFCMClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		c.Pusher = fcm
	} else {
		c.log.Warn().Msg("FCM not configured, push notifications disabled")
	}

	return c, nil
}

// Close releases Redis and the database pool.
func (c *Client) Close() error {
	return errors.Join(c.Redis.Close(), c.DB.Close())
}
