package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"rollermate/internal/model"
	"rollermate/internal/notify"
	"rollermate/internal/realtime"
	"rollermate/internal/session"
)

type mockSource struct {
	unread    atomic.Int64
	markCalls atomic.Int64
	markAllRead chan struct{}
}

func newMockSource(unread int) *mockSource {
	s := &mockSource{markAllRead: make(chan struct{}, 1)}
	s.unread.Store(int64(unread))
	return s
}

func (s *mockSource) UnreadNotifications(ctx context.Context, userID string) (int, error) {
	return int(s.unread.Load()), nil
}

func (s *mockSource) UnreadMessages(ctx context.Context, userID string) (int, error) {
	return 1, nil
}

func (s *mockSource) RecentNotifications(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	return nil, nil
}

func (s *mockSource) MarkAllRead(ctx context.Context, userID string) error {
	s.unread.Store(0)
	s.markCalls.Add(1)
	select {
	case s.markAllRead <- struct{}{}:
	default:
	}
	return nil
}

type clientFrame struct {
	Type    string           `json:"type"`
	Data    *notify.Snapshot `json:"data"`
	Message string           `json:"message"`
}

type realtimeFixture struct {
	sessions *session.Manager
	sess     *session.Session
	server   *httptest.Server
	conn     *websocket.Conn
}

func newRealtimeFixture(t *testing.T, src notify.Source) *realtimeFixture {
	t.Helper()
	broker := realtime.NewMemoryBroker()
	sessions := session.NewManager(session.NewMemoryStore(), broker, "test-secret", time.Minute)

	_, sess, err := sessions.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}

	h := NewRealtimeHandler(src, broker, sessions, notify.Config{Debounce: 10 * time.Millisecond, Timeout: time.Second})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.Serve(w, r.WithContext(session.WithSession(r.Context(), sess)))
	}))
	t.Cleanup(server.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return &realtimeFixture{sessions: sessions, sess: sess, server: server, conn: conn}
}

func (f *realtimeFixture) read(t *testing.T) clientFrame {
	t.Helper()
	f.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame clientFrame
	if err := f.conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read error: %v", err)
	}
	return frame
}

// readUntil skips frames until match accepts one.
func (f *realtimeFixture) readUntil(t *testing.T, match func(clientFrame) bool) clientFrame {
	t.Helper()
	for i := 0; i < 10; i++ {
		if frame := f.read(t); match(frame) {
			return frame
		}
	}
	t.Fatal("expected frame never arrived")
	return clientFrame{}
}

func TestRealtime_SnapshotOnConnect(t *testing.T) {
	// ARRANGE
	f := newRealtimeFixture(t, newMockSource(3))

	// ACT
	frame := f.read(t)

	// ASSERT
	if frame.Type != FrameSnapshot || frame.Data == nil {
		t.Fatalf("expected snapshot frame, got %+v", frame)
	}
	if frame.Data.UnreadNotifications != 3 || frame.Data.UnreadMessages != 1 {
		t.Errorf("unexpected counts: %+v", frame.Data)
	}
}

func TestRealtime_MarkAllReadCommand(t *testing.T) {
	// ARRANGE
	src := newMockSource(5)
	f := newRealtimeFixture(t, src)
	f.read(t)

	// ACT
	if err := f.conn.WriteJSON(map[string]string{"type": CommandMarkAllRead}); err != nil {
		t.Fatalf("write error: %v", err)
	}

	// ASSERT
	frame := f.readUntil(t, func(c clientFrame) bool { return c.Type == FrameSnapshot })
	if frame.Data.UnreadNotifications != 0 {
		t.Errorf("expected optimistic zero, got %d", frame.Data.UnreadNotifications)
	}
	select {
	case <-src.markAllRead:
	case <-time.After(2 * time.Second):
		t.Fatal("expected server mark-all-read")
	}
	if src.markCalls.Load() != 1 {
		t.Errorf("expected 1 mark call, got %d", src.markCalls.Load())
	}
}

func TestRealtime_RefreshCommand(t *testing.T) {
	// ARRANGE
	src := newMockSource(2)
	f := newRealtimeFixture(t, src)
	f.read(t)
	src.unread.Store(7)

	// ACT
	if err := f.conn.WriteJSON(map[string]string{"type": CommandRefresh}); err != nil {
		t.Fatalf("write error: %v", err)
	}

	// ASSERT
	frame := f.readUntil(t, func(c clientFrame) bool {
		return c.Type == FrameSnapshot && c.Data.UnreadNotifications == 7
	})
	if frame.Data.UnreadMessages != 1 {
		t.Errorf("expected messages 1, got %d", frame.Data.UnreadMessages)
	}
}

func TestRealtime_UnknownCommand(t *testing.T) {
	// ARRANGE
	f := newRealtimeFixture(t, newMockSource(0))
	f.read(t)

	// ACT
	if err := f.conn.WriteJSON(map[string]string{"type": "dance"}); err != nil {
		t.Fatalf("write error: %v", err)
	}

	// ASSERT
	frame := f.readUntil(t, func(c clientFrame) bool { return c.Type == FrameError })
	if !strings.Contains(frame.Message, "dance") {
		t.Errorf("unexpected error message %q", frame.Message)
	}
}

func TestRealtime_ClosesOnSignOut(t *testing.T) {
	// ARRANGE
	f := newRealtimeFixture(t, newMockSource(0))
	f.read(t)

	// ACT
	if err := f.sessions.End(context.Background(), f.sess); err != nil {
		t.Fatalf("end session: %v", err)
	}

	// ASSERT
	f.readUntil(t, func(c clientFrame) bool { return c.Type == FrameSignedOut })
	f.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := f.conn.ReadMessage(); !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Errorf("expected policy close, got %v", err)
	}
}

func TestRealtime_OtherSessionSignOutIgnored(t *testing.T) {
	// ARRANGE
	src := newMockSource(4)
	f := newRealtimeFixture(t, src)
	f.read(t)
	_, other, err := f.sessions.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}

	// ACT
	if err := f.sessions.End(context.Background(), other); err != nil {
		t.Fatalf("end session: %v", err)
	}
	if err := f.conn.WriteJSON(map[string]string{"type": CommandRefresh}); err != nil {
		t.Fatalf("write error: %v", err)
	}

	// ASSERT
	frame := f.read(t)
	if frame.Type != FrameSnapshot {
		t.Errorf("expected connection to stay open, got %+v", frame)
	}
}

func TestRealtime_RequiresSession(t *testing.T) {
	// ARRANGE
	broker := realtime.NewMemoryBroker()
	sessions := session.NewManager(session.NewMemoryStore(), broker, "test-secret", time.Minute)
	h := NewRealtimeHandler(newMockSource(0), broker, sessions, notify.Config{})
	rec := httptest.NewRecorder()

	// ACT
	h.Serve(rec, httptest.NewRequest(http.MethodGet, "/realtime", nil))

	// ASSERT
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestEndsSession(t *testing.T) {
	signedOut, _ := realtime.NewInsertEvent(realtime.TableSessions, "user-1", []string{"a", "b"})
	signedOut.Type = realtime.TypeSignedOut
	insert, _ := realtime.NewInsertEvent(realtime.TableSessions, "user-1", []string{"a"})

	tests := []struct {
		name      string
		event     realtime.Event
		sessionID string
		want      bool
	}{
		{"listed session", signedOut, "b", true},
		{"other session", signedOut, "c", false},
		{"not a sign-out", insert, "a", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := endsSession(tt.event, tt.sessionID); got != tt.want {
				t.Errorf("endsSession = %v, want %v", got, tt.want)
			}
		})
	}
}
