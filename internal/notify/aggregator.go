// Package notify keeps a live, per-connection view of a user's unread
// notifications and messages, refreshed by realtime insert events.
package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"gopkg.in/tomb.v2"

	"rollermate/internal/logging"
	"rollermate/internal/metrics"
	"rollermate/internal/model"
	"rollermate/internal/optimistic"
	"rollermate/internal/realtime"
)

// Source reads and updates the aggregates.
type Source interface {
	UnreadNotifications(ctx context.Context, userID string) (int, error)
	UnreadMessages(ctx context.Context, userID string) (int, error)
	RecentNotifications(ctx context.Context, userID string, limit int) ([]model.Notification, error)
	MarkAllRead(ctx context.Context, userID string) error
}

// Aggregate names
const (
	AggregateNotifications = "notifications"
	AggregateMessages      = "messages"
)

var errSubscriptionClosed = errors.New("realtime subscription closed")

// Config tunes an Aggregator. Zero values take the defaults.
type Config struct {
	// Debounce is the settling window that coalesces bursts of events.
	Debounce time.Duration
	// Timeout bounds each fetch.
	Timeout time.Duration
	// Limit is the size of the recent list.
	Limit int
}

const (
	defaultDebounce = 250 * time.Millisecond
	defaultTimeout  = 5 * time.Second
)

func (c Config) withDefaults() Config {
	if c.Debounce <= 0 {
		c.Debounce = defaultDebounce
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.Limit <= 0 {
		c.Limit = model.DefaultNotificationLimit
	}
	return c
}

// Snapshot is the state pushed to the client.
type Snapshot struct {
	UnreadNotifications int    `json:"unread_notifications"`
	UnreadMessages      int    `json:"unread_messages"`
	Recent              []Item `json:"recent"`
	// Pending is set while a mark-all-read is awaiting the server.
	Pending bool `json:"pending"`
}

// Aggregator is owned by one realtime connection. Start it once, read
// Updates, and Close it when the connection goes away.
type Aggregator struct {
	src    Source
	broker realtime.Broker
	userID string
	cfg    Config
	log    zerolog.Logger

	notifications optimistic.Counter
	messages      optimistic.Counter

	mu     sync.Mutex
	recent []model.Notification

	flight singleflight.Group
	markMu sync.Mutex
	// refreshes counts completed notification refreshes.
	refreshes atomic.Uint64

	emitMu  sync.Mutex
	updates chan Snapshot

	t       tomb.Tomb
	started bool
	subs    []*realtime.Subscription
}

func New(src Source, broker realtime.Broker, userID string, cfg Config) *Aggregator {
	return &Aggregator{
		src:     src,
		broker:  broker,
		userID:  userID,
		cfg:     cfg.withDefaults(),
		log:     logging.For("Aggregator").With().Str(logging.USER, userID).Logger(),
		updates: make(chan Snapshot, 1),
	}
}

// Start fetches both counters and the recent list, then subscribes to
// inserts. Any failed fetch fails Start.
func (a *Aggregator) Start(ctx context.Context) error {
	startTime := time.Now()

	var (
		unreadNotifs, unreadMsgs int
		recent                   []model.Notification
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		unreadNotifs, err = a.fetchCount(gctx, a.src.UnreadNotifications)
		return err
	})
	g.Go(func() (err error) {
		unreadMsgs, err = a.fetchCount(gctx, a.src.UnreadMessages)
		return err
	})
	g.Go(func() (err error) {
		recent, err = a.fetchRecent(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		a.log.Error().Err(err).Msg("Start FAILED")
		return err
	}

	a.notifications.Store(unreadNotifs)
	a.messages.Store(unreadMsgs)
	a.setRecent(recent)

	notifSub, err := a.broker.Subscribe(ctx, realtime.TableNotifications, a.userID)
	if err != nil {
		return model.Upstream("subscribe notifications", err)
	}
	msgSub, err := a.broker.Subscribe(ctx, realtime.TableMessages, a.userID)
	if err != nil {
		notifSub.Close()
		return model.Upstream("subscribe messages", err)
	}
	a.subs = []*realtime.Subscription{notifSub, msgSub}

	a.started = true
	a.t.Go(func() error { return a.loop(notifSub.C, msgSub.C) })
	a.emit()

	a.log.Debug().Dur("duration", time.Since(startTime)).Msg("Start OK")
	return nil
}

// Updates delivers the latest snapshot. Only the newest unread snapshot is kept.
func (a *Aggregator) Updates() <-chan Snapshot {
	return a.updates
}

// Dead is closed once the aggregator has stopped.
func (a *Aggregator) Dead() <-chan struct{} {
	return a.t.Dead()
}

// Close unsubscribes and stops the refresh loop.
func (a *Aggregator) Close() error {
	var err error
	if a.started {
		a.t.Kill(nil)
		err = a.t.Wait()
	}
	for _, sub := range a.subs {
		sub.Close()
	}
	a.subs = nil
	if errors.Is(err, tomb.ErrDying) {
		err = nil
	}
	return err
}

func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	recent := RenderAll(a.recent)
	a.mu.Unlock()
	return Snapshot{
		UnreadNotifications: a.notifications.Value(),
		UnreadMessages:      a.messages.Value(),
		Recent:              recent,
		Pending:             a.notifications.Pending(),
	}
}

// MarkAllRead shows zero unread immediately, then writes. On failure the
// previous counter and read flags come back and the error is returned.
func (a *Aggregator) MarkAllRead(ctx context.Context) error {
	a.markMu.Lock()
	defer a.markMu.Unlock()

	a.notifications.Propose(0)
	seen := a.refreshes.Load()
	a.mu.Lock()
	wasUnread := make(map[string]struct{})
	for i := range a.recent {
		if !a.recent[i].Read {
			wasUnread[a.recent[i].ID] = struct{}{}
			a.recent[i].Read = true
		}
	}
	a.mu.Unlock()
	a.emit()

	wctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	err := a.src.MarkAllRead(wctx, a.userID)
	cancel()

	if err != nil {
		restored := a.notifications.Rollback()
		a.mu.Lock()
		for i := range a.recent {
			if _, ok := wasUnread[a.recent[i].ID]; ok {
				a.recent[i].Read = false
			}
		}
		a.mu.Unlock()
		a.emit()
		a.log.Warn().Err(err).Int("restored", restored).Msg("MarkAllRead FAILED, rolled back")
		return err
	}

	a.notifications.Confirm(0)

	// a refresh that landed while the write was pending may hold rows
	// inserted after it, and their events are already consumed
	if a.refreshes.Load() != seen {
		if err := a.refreshNotifications(ctx); err != nil && ctx.Err() == nil {
			a.log.Warn().Err(err).Msg("MarkAllRead refetch FAILED, keeping zero")
		}
	}
	a.emit()
	a.log.Debug().Msg("MarkAllRead OK")
	return nil
}

// Refresh refetches one aggregate now. Concurrent callers share one fetch.
func (a *Aggregator) Refresh(ctx context.Context, aggregate string) error {
	_, err, _ := a.flight.Do(aggregate, func() (interface{}, error) {
		var err error
		switch aggregate {
		case AggregateNotifications:
			err = a.refreshNotifications(ctx)
		case AggregateMessages:
			var n int
			if n, err = a.fetchCount(ctx, a.src.UnreadMessages); err == nil {
				a.messages.Store(n)
			}
		}
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.AggregateRefreshes.WithLabelValues(aggregate, result).Inc()
		return nil, err
	})
	return err
}

func (a *Aggregator) refreshNotifications(ctx context.Context) error {
	var (
		unread int
		recent []model.Notification
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		unread, err = a.fetchCount(gctx, a.src.UnreadNotifications)
		return err
	})
	g.Go(func() (err error) {
		recent, err = a.fetchRecent(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	a.notifications.Store(unread)
	a.setRecent(recent)
	a.refreshes.Add(1)
	return nil
}

// loop coalesces events: the first event after a quiet period opens a
// settling window, and every aggregate marked dirty inside it is refreshed
// once when the window closes.
func (a *Aggregator) loop(notifC, msgC <-chan realtime.Event) error {
	ctx := a.t.Context(nil)

	var (
		window                 <-chan time.Time
		dirtyNotifs, dirtyMsgs bool
	)
	arm := func() {
		if window == nil {
			window = time.After(a.cfg.Debounce)
		}
	}

	for {
		select {
		case <-a.t.Dying():
			return nil
		case _, ok := <-notifC:
			if !ok {
				return errSubscriptionClosed
			}
			dirtyNotifs = true
			arm()
		case _, ok := <-msgC:
			if !ok {
				return errSubscriptionClosed
			}
			dirtyMsgs = true
			arm()
		case <-window:
			window = nil
			a.refreshDirty(ctx, dirtyNotifs, dirtyMsgs)
			dirtyNotifs, dirtyMsgs = false, false
		}
	}
}

func (a *Aggregator) refreshDirty(ctx context.Context, notifs, msgs bool) {
	var wg sync.WaitGroup
	run := func(aggregate string) {
		defer wg.Done()
		if err := a.Refresh(ctx, aggregate); err != nil && ctx.Err() == nil {
			a.log.Warn().Err(err).Str("aggregate", aggregate).Msg("refresh FAILED, keeping previous value")
		}
	}
	if notifs {
		wg.Add(1)
		go run(AggregateNotifications)
	}
	if msgs {
		wg.Add(1)
		go run(AggregateMessages)
	}
	wg.Wait()
	a.emit()
}

func (a *Aggregator) fetchCount(ctx context.Context, fn func(context.Context, string) (int, error)) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()
	return fn(ctx, a.userID)
}

func (a *Aggregator) fetchRecent(ctx context.Context) ([]model.Notification, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()
	return a.src.RecentNotifications(ctx, a.userID, a.cfg.Limit)
}

// setRecent replaces the list. While a mark-all-read is pending the fetched
// rows may predate it, so they are shown as read.
func (a *Aggregator) setRecent(recent []model.Notification) {
	pending := a.notifications.Pending()
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recent = append([]model.Notification(nil), recent...)
	if pending {
		for i := range a.recent {
			a.recent[i].Read = true
		}
	}
}

func (a *Aggregator) emit() {
	a.emitMu.Lock()
	defer a.emitMu.Unlock()
	snap := a.Snapshot()
	select {
	case <-a.updates:
	default:
	}
	a.updates <- snap
}
