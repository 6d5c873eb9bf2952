package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"rollermate/internal/logging"
	"rollermate/internal/model"
	"rollermate/internal/notify"
	"rollermate/internal/realtime"
	"rollermate/internal/repository"
)

const pushTitle = "RollerMate"

// NotificationService stores notifications, fans them out over realtime and
// push, and serves the unread aggregates.
type NotificationService struct {
	notifRepo    repository.NotificationRepository
	messageRepo  repository.MessageRepository
	tokenRepo    repository.DeviceTokenRepository
	profileRepo  repository.ProfileRepository
	broker       realtime.Broker
	pusher       Pusher // nil when push is not configured
	queryTimeout time.Duration
	log          zerolog.Logger
}

func NewNotificationService(
	notifRepo repository.NotificationRepository,
	messageRepo repository.MessageRepository,
	tokenRepo repository.DeviceTokenRepository,
	profileRepo repository.ProfileRepository,
	broker realtime.Broker,
	pusher Pusher,
	queryTimeout time.Duration,
) *NotificationService {
	return &NotificationService{
		notifRepo:    notifRepo,
		messageRepo:  messageRepo,
		tokenRepo:    tokenRepo,
		profileRepo:  profileRepo,
		broker:       broker,
		pusher:       pusher,
		queryTimeout: queryTimeout,
		log:          logging.For("NotificationService"),
	}
}

// CreateNotification inserts the row, then publishes the realtime insert and
// sends a push. Only the insert can fail the call.
func (s *NotificationService) CreateNotification(ctx context.Context, n model.NewNotification) error {
	created, err := s.notifRepo.Create(ctx, n)
	if err != nil {
		s.log.Error().Err(err).Str(logging.USER, n.UserID).Str("type", n.Type).Msg("CreateNotification FAILED")
		return model.Upstream("insert notification", err)
	}

	if actor, err := s.profileRepo.GetByID(ctx, n.ActorID); err == nil {
		summary := actor.Summary()
		created.Actor = &summary
	}

	event, err := realtime.NewInsertEvent(realtime.TableNotifications, n.UserID, created)
	if err == nil {
		err = s.broker.Publish(ctx, event)
	}
	if err != nil {
		s.log.Warn().Err(err).Str(logging.USER, n.UserID).Msg("publish notification FAILED")
	}

	s.push(ctx, notify.Render(*created))

	s.log.Info().Str(logging.USER, n.UserID).Str("type", n.Type).Str("notification_id", created.ID).Msg("CreateNotification OK")
	return nil
}

func (s *NotificationService) push(ctx context.Context, item notify.Item) {
	if s.pusher == nil {
		return
	}

	tokens, err := s.tokenRepo.Tokens(ctx, item.UserID)
	if err != nil {
		s.log.Warn().Err(err).Str(logging.USER, item.UserID).Msg("load device tokens FAILED")
		return
	}
	if len(tokens) == 0 {
		return
	}

	data := map[string]string{"type": item.Type, "notification_id": item.ID}
	if item.Target != nil {
		data["target_kind"] = item.Target.Kind
		data["target_id"] = item.Target.ID
	}

	stale, err := s.pusher.SendToTokens(ctx, tokens, pushTitle, item.Text, data)
	if err != nil {
		s.log.Warn().Err(err).Str(logging.USER, item.UserID).Msg("push FAILED")
	}
	if pruned, err := s.tokenRepo.Delete(ctx, item.UserID, stale...); err != nil {
		s.log.Warn().Err(err).Msg("prune stale device tokens FAILED")
	} else if pruned > 0 {
		s.log.Debug().Str(logging.USER, item.UserID).Int64("tokens", pruned).Msg("pruned stale device tokens")
	}
}

// List returns the rendered recent notifications and the unread count.
func (s *NotificationService) List(ctx context.Context, userID string, limit int) (*model.NotificationListResponse, []notify.Item, error) {
	limit = clampLimit(limit, model.DefaultNotificationLimit, model.MaxNotificationLimit)

	var (
		recent []model.Notification
		unread int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		recent, err = s.RecentNotifications(gctx, userID, limit)
		return err
	})
	g.Go(func() (err error) {
		unread, err = s.UnreadNotifications(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	if recent == nil {
		recent = []model.Notification{}
	}
	return &model.NotificationListResponse{Notifications: recent, UnreadCount: unread}, notify.RenderAll(recent), nil
}

// Badges returns both unread counters. Either failing fails the call.
func (s *NotificationService) Badges(ctx context.Context, userID string) (*model.BadgeCounts, error) {
	var counts model.BadgeCounts
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		counts.Notifications, err = s.UnreadNotifications(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		counts.Messages, err = s.UnreadMessages(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &counts, nil
}

func (s *NotificationService) UnreadNotifications(ctx context.Context, userID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	n, err := s.notifRepo.CountUnread(ctx, userID)
	return n, model.Upstream("count unread notifications", err)
}

func (s *NotificationService) UnreadMessages(ctx context.Context, userID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	n, err := s.messageRepo.CountUnread(ctx, userID)
	return n, model.Upstream("count unread messages", err)
}

func (s *NotificationService) RecentNotifications(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	ns, err := s.notifRepo.ListRecent(ctx, userID, limit)
	return ns, model.Upstream("list notifications", err)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	n, err := s.notifRepo.MarkAllRead(ctx, userID)
	if err != nil {
		s.log.Error().Err(err).Str(logging.USER, userID).Msg("MarkAllRead FAILED")
		return model.Upstream("mark all read", err)
	}
	s.log.Debug().Str(logging.USER, userID).Int64("updated", n).Msg("MarkAllRead OK")
	return nil
}

func (s *NotificationService) RegisterDevice(ctx context.Context, userID string, req *model.RegisterTokenRequest) error {
	if req.Platform != model.PlatformIOS && req.Platform != model.PlatformAndroid {
		return model.ErrInvalidPlatform
	}
	if req.Token == "" {
		return model.ErrDeviceTokenRequired
	}
	if err := s.tokenRepo.Upsert(ctx, userID, req.Token, req.Platform); err != nil {
		return model.Upstream("register device", err)
	}
	s.log.Info().Str(logging.USER, userID).Str("platform", req.Platform).Msg("RegisterDevice OK")
	return nil
}

func (s *NotificationService) UnregisterDevice(ctx context.Context, userID, token string) error {
	if token == "" {
		return model.ErrDeviceTokenRequired
	}
	if _, err := s.tokenRepo.Delete(ctx, userID, token); err != nil {
		return model.Upstream("unregister device", err)
	}
	return nil
}
