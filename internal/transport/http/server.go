package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"rollermate/internal/logging"
)

const shutdownTimeout = 10 * time.Second

// Server is the API listener with graceful shutdown.
type Server struct {
	srv *http.Server
	log zerolog.Logger
}

func NewServer(port string, h http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              ":" + port,
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: logging.For("Server"),
	}
}

// Run serves until ctx is cancelled, then drains open requests. Websocket
// connections are hijacked and untracked by Shutdown; their request contexts
// are cancelled once the drain finishes.
func (s *Server) Run(ctx context.Context) error {
	base, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	s.srv.BaseContext = func(net.Listener) context.Context { return base }

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.srv.Addr).Msg("listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.log.Error().Err(err).Msg("shutdown FAILED")
		return err
	}
	s.log.Info().Msg("server stopped")
	return nil
}
