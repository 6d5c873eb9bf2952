package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"rollermate/internal/httputil"
	"rollermate/internal/logging"
	"rollermate/internal/metrics"
	"rollermate/internal/notify"
	"rollermate/internal/realtime"
	"rollermate/internal/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxClientFrame = 4096
)

// Server frame types
const (
	FrameSnapshot  = "snapshot"
	FrameError     = "error"
	FrameSignedOut = "signed_out"
)

// Client commands
const (
	CommandMarkAllRead = "mark_all_read"
	CommandRefresh     = "refresh"
)

type serverFrame struct {
	Type    string           `json:"type"`
	Data    *notify.Snapshot `json:"data,omitempty"`
	Message string           `json:"message,omitempty"`
}

type clientCommand struct {
	Type string `json:"type"`
}

// RealtimeHandler streams the caller's unread aggregates over a websocket.
type RealtimeHandler struct {
	source   notify.Source
	broker   realtime.Broker
	sessions *session.Manager
	cfg      notify.Config
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewRealtimeHandler(source notify.Source, broker realtime.Broker, sessions *session.Manager, cfg notify.Config) *RealtimeHandler {
	return &RealtimeHandler{
		source:   source,
		broker:   broker,
		sessions: sessions,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Mobile clients send no Origin; browsers are authenticated by token.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: logging.For("RealtimeHandler"),
	}
}

// Serve handles GET /realtime
// Pushes a snapshot on connect and after every settled change, accepts
// mark_all_read and refresh commands, and closes when the session ends.
func (h *RealtimeHandler) Serve(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	watch, err := h.sessions.Watch(ctx, sess.UserID)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	defer watch.Close()

	agg := notify.New(h.source, h.broker, sess.UserID, h.cfg)
	if err := agg.Start(ctx); err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	defer agg.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str(logging.USER, sess.UserID).Msg("upgrade FAILED")
		return
	}
	defer conn.Close()

	metrics.RealtimeConnections.Inc()
	defer metrics.RealtimeConnections.Dec()
	h.log.Debug().Str(logging.USER, sess.UserID).Msg("connection OK")

	commands := make(chan clientCommand)
	go h.readCommands(ctx, cancel, conn, commands)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-agg.Dead():
			h.close(conn, websocket.CloseTryAgainLater, "realtime feed interrupted")
			return

		case snap := <-agg.Updates():
			if err := h.write(conn, serverFrame{Type: FrameSnapshot, Data: &snap}); err != nil {
				return
			}

		case ev, ok := <-watch.C:
			if !ok {
				h.close(conn, websocket.CloseTryAgainLater, "session watch interrupted")
				return
			}
			if endsSession(ev, sess.ID) {
				h.write(conn, serverFrame{Type: FrameSignedOut})
				h.close(conn, websocket.ClosePolicyViolation, "signed out")
				h.log.Info().Str(logging.USER, sess.UserID).Msg("closed on sign-out")
				return
			}

		case cmd := <-commands:
			if err := h.handle(ctx, conn, agg, cmd); err != nil {
				return
			}

		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handle runs one client command. Only write failures are returned; command
// failures are reported to the client as error frames.
func (h *RealtimeHandler) handle(ctx context.Context, conn *websocket.Conn, agg *notify.Aggregator, cmd clientCommand) error {
	var err error
	switch cmd.Type {
	case CommandMarkAllRead:
		err = agg.MarkAllRead(ctx)
	case CommandRefresh:
		err = agg.Refresh(ctx, notify.AggregateNotifications)
		if err == nil {
			err = agg.Refresh(ctx, notify.AggregateMessages)
		}
		if err == nil {
			snap := agg.Snapshot()
			return h.write(conn, serverFrame{Type: FrameSnapshot, Data: &snap})
		}
	default:
		return h.write(conn, serverFrame{Type: FrameError, Message: "unknown command " + cmd.Type})
	}
	if err != nil {
		return h.write(conn, serverFrame{Type: FrameError, Message: err.Error()})
	}
	return nil
}

// readCommands is the connection's only reader. It cancels the connection
// context when the client goes away.
func (h *RealtimeHandler) readCommands(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, out chan<- clientCommand) {
	defer cancel()

	conn.SetReadLimit(maxClientFrame)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var cmd clientCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug().Err(err).Msg("read FAILED")
			}
			return
		}
		select {
		case out <- cmd:
		case <-ctx.Done():
			return
		}
	}
}

func (h *RealtimeHandler) write(conn *websocket.Conn, frame serverFrame) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(frame)
}

func (h *RealtimeHandler) close(conn *websocket.Conn, code int, reason string) {
	conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
}

// endsSession reports whether a sign-out event covers sessionID.
func endsSession(ev realtime.Event, sessionID string) bool {
	if ev.Type != realtime.TypeSignedOut {
		return false
	}
	var ids []string
	if err := json.Unmarshal(ev.Record, &ids); err != nil {
		return false
	}
	for _, id := range ids {
		if id == sessionID {
			return true
		}
	}
	return false
}
