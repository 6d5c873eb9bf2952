package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"rollermate/internal/handler"
	"rollermate/internal/httputil"
	"rollermate/internal/metrics"
	authmw "rollermate/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	AuthHandler         *handler.AuthHandler
	ProfileHandler      *handler.ProfileHandler
	FollowHandler       *handler.FollowHandler
	FeedHandler         *handler.FeedHandler
	PostHandler         *handler.PostHandler
	CommentHandler      *handler.CommentHandler
	ChatHandler         *handler.ChatHandler
	NotificationHandler *handler.NotificationHandler
	RealtimeHandler     *handler.RealtimeHandler
	Sessions            authmw.Resolver
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(authmw.Metrics)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	optional := authmw.OptionalAuthMiddleware(cfg.Sessions)

	// Public routes
	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", cfg.AuthHandler.SignUp)
		r.Post("/signin", cfg.AuthHandler.SignIn)
		r.Post("/refresh", cfg.AuthHandler.Refresh)
	})

	// Readable without a session; the viewer's relation is filled in when present
	r.Route("/profiles", func(r chi.Router) {
		r.Use(optional)
		r.Get("/search", cfg.ProfileHandler.Search)
		r.Get("/{id}", cfg.ProfileHandler.GetProfile)
		r.Get("/{id}/followers", cfg.FollowHandler.GetFollowers)
		r.Get("/{id}/following", cfg.FollowHandler.GetFollowing)
		r.Get("/{id}/posts", cfg.FeedHandler.GetProfilePosts)
	})
	r.With(optional).Get("/posts/{id}", cfg.PostHandler.GetByID)
	r.With(optional).Get("/posts/{id}/comments", cfg.CommentHandler.List)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(authmw.AuthMiddleware(cfg.Sessions))

		r.Post("/auth/signout", cfg.AuthHandler.SignOut)
		r.Post("/auth/signout-all", cfg.AuthHandler.SignOutAll)

		r.Get("/me", cfg.AuthHandler.Me)
		r.Patch("/me/profile", cfg.ProfileHandler.UpdateProfile)
		r.Put("/me/avatar", cfg.ProfileHandler.UpdateAvatar)

		r.Post("/profiles/{id}/follow/toggle", cfg.FollowHandler.Toggle)

		r.Get("/feed", cfg.FeedHandler.GetFeed)

		r.Post("/posts", cfg.PostHandler.Create)
		r.Delete("/posts/{id}", cfg.PostHandler.Delete)
		r.Post("/posts/{id}/like/toggle", cfg.PostHandler.ToggleLike)
		r.Post("/posts/{id}/comments", cfg.CommentHandler.Create)
		r.Post("/comments/{id}/like/toggle", cfg.CommentHandler.ToggleLike)

		r.Route("/chats", func(r chi.Router) {
			r.Get("/", cfg.ChatHandler.List)
			r.Post("/with/{id}", cfg.ChatHandler.FindOrCreate)
			r.Get("/{id}/messages", cfg.ChatHandler.Messages)
			r.Post("/{id}/messages", cfg.ChatHandler.Send)
			r.Post("/{id}/read", cfg.ChatHandler.MarkRead)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", cfg.NotificationHandler.List)
			r.Get("/badges", cfg.NotificationHandler.Badges)
			r.Post("/read-all", cfg.NotificationHandler.MarkAllRead)
		})

		r.Post("/devices/token", cfg.NotificationHandler.RegisterToken)
		r.Delete("/devices/token", cfg.NotificationHandler.RemoveToken)

		r.Get("/realtime", cfg.RealtimeHandler.Serve)
	})

	return r
}
