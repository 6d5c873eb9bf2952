package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"rollermate/internal/backend"
	"rollermate/internal/config"
	"rollermate/internal/handler"
	"rollermate/internal/logging"
	"rollermate/internal/notify"
	"rollermate/internal/queue"
	"rollermate/internal/repository"
	"rollermate/internal/service"
	transport "rollermate/internal/transport/http"
	"rollermate/internal/worker"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logging.Setup(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, err := backend.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.Close()
	db := be.DB

	// Repositories
	profileRepo := repository.NewProfileRepository(db)
	followRepo := repository.NewFollowRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	chatRepo := repository.NewChatRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	notifRepo := repository.NewNotificationRepository(db)
	tokenRepo := repository.NewDeviceTokenRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)

	// Services
	authService := service.NewAuthService(profileRepo, refreshTokenRepo, be.Sessions, cfg)
	profileService := service.NewProfileService(profileRepo, followRepo, postRepo, be.Objects, cfg.QueryTimeout)
	followService := service.NewFollowService(followRepo, profileRepo, be.Publisher)
	feedService := service.NewFeedService(postRepo)
	postService := service.NewPostService(postRepo, be.Objects, be.Publisher)
	commentService := service.NewCommentService(commentRepo, postRepo, be.Publisher)
	chatService := service.NewChatService(chatRepo, messageRepo, profileRepo, be.Broker)
	notifService := service.NewNotificationService(notifRepo, messageRepo, tokenRepo, profileRepo, be.Broker, be.Pusher, cfg.QueryTimeout)

	workers := worker.NewManager(queue.NewConsumer(be.Redis.Client), worker.NewHandler(notifService), worker.ManagerConfig{
		WorkerCount: cfg.WorkerCount,
	})
	if err := workers.Start(ctx); err != nil {
		return err
	}
	defer workers.Stop()

	router := transport.NewRouter(transport.RouterConfig{
		AuthHandler:         handler.NewAuthHandler(authService, profileService),
		ProfileHandler:      handler.NewProfileHandler(profileService),
		FollowHandler:       handler.NewFollowHandler(followService),
		FeedHandler:         handler.NewFeedHandler(feedService),
		PostHandler:         handler.NewPostHandler(postService),
		CommentHandler:      handler.NewCommentHandler(commentService),
		ChatHandler:         handler.NewChatHandler(chatService),
		NotificationHandler: handler.NewNotificationHandler(notifService),
		RealtimeHandler: handler.NewRealtimeHandler(notifService, be.Broker, be.Sessions, notify.Config{
			Debounce: cfg.RealtimeDebounce,
			Timeout:  cfg.QueryTimeout,
		}),
		Sessions: be.Sessions,
	})

	return transport.NewServer(cfg.ServerPort, router).Run(ctx)
}
