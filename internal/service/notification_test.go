package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"rollermate/internal/model"
	"rollermate/internal/realtime"
)

func TestNotificationService_CreateNotification_FansOut(t *testing.T) {
	// ARRANGE
	name := "Alex"
	profiles := &mockProfileRepository{
		getByIDFn: func(ctx context.Context, id string) (*model.Profile, error) {
			return &model.Profile{ID: id, FullName: &name}, nil
		},
	}
	var pruned []string
	tokens := &mockDeviceTokenRepository{
		tokensFn: func(ctx context.Context, userID string) ([]string, error) {
			return []string{"live", "stale"}, nil
		},
		deleteFn: func(ctx context.Context, userID string, tokens ...string) (int64, error) {
			pruned = append(pruned, tokens...)
			return int64(len(tokens)), nil
		},
	}
	pusher := &mockPusher{
		sendFn: func(ctx context.Context, tokens []string, title, body string, data map[string]string) ([]string, error) {
			return []string{"stale"}, nil
		},
	}
	broker := realtime.NewMemoryBroker()
	sub, _ := broker.Subscribe(context.Background(), realtime.TableNotifications, "owner")
	defer sub.Close()
	svc := NewNotificationService(&mockNotificationRepository{}, &mockMessageRepository{}, tokens, profiles, broker, pusher, time.Second)

	// ACT
	postID := "p1"
	err := svc.CreateNotification(context.Background(), model.NewNotification{
		UserID: "owner", ActorID: "alex", Type: model.NotificationTypeLike,
		Payload: model.NotificationPayload{PostID: &postID},
	})

	// ASSERT
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	select {
	case ev := <-sub.C:
		if !strings.Contains(string(ev.Record), `"full_name":"Alex"`) {
			t.Errorf("record = %s, want the joined actor", ev.Record)
		}
	case <-time.After(time.Second):
		t.Fatal("no realtime event")
	}
	if len(pusher.bodies) != 1 || pusher.bodies[0] != "Alex liked your post" {
		t.Errorf("push bodies = %v", pusher.bodies)
	}
	if len(pruned) != 1 || pruned[0] != "stale" {
		t.Errorf("pruned = %v, want [stale]", pruned)
	}
}

func TestNotificationService_CreateNotification_InsertFailure(t *testing.T) {
	repo := &mockNotificationRepository{
		createFn: func(ctx context.Context, n model.NewNotification) (*model.Notification, error) {
			return nil, errors.New("db down")
		},
	}
	pusher := &mockPusher{}
	svc := NewNotificationService(repo, &mockMessageRepository{}, &mockDeviceTokenRepository{}, &mockProfileRepository{}, realtime.NewMemoryBroker(), pusher, time.Second)

	err := svc.CreateNotification(context.Background(), model.NewNotification{UserID: "u", ActorID: "a", Type: model.NotificationTypeFollow})

	if !errors.Is(err, model.ErrUpstream) {
		t.Errorf("error = %v, want upstream", err)
	}
	if len(pusher.bodies) != 0 {
		t.Error("nothing should be pushed when the insert fails")
	}
}

func TestNotificationService_Badges(t *testing.T) {
	notifs := &mockNotificationRepository{
		countUnreadFn: func(ctx context.Context, userID string) (int, error) { return 4, nil },
	}
	messages := &mockMessageRepository{
		countUnreadFn: func(ctx context.Context, userID string) (int, error) { return 2, nil },
	}
	svc := NewNotificationService(notifs, messages, &mockDeviceTokenRepository{}, &mockProfileRepository{}, realtime.NewMemoryBroker(), nil, time.Second)

	counts, err := svc.Badges(context.Background(), "u")

	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if counts.Notifications != 4 || counts.Messages != 2 {
		t.Errorf("counts = %+v, want 4/2", counts)
	}
}

func TestNotificationService_Badges_EitherFailureFails(t *testing.T) {
	messages := &mockMessageRepository{
		countUnreadFn: func(ctx context.Context, userID string) (int, error) { return 0, errors.New("timeout") },
	}
	svc := NewNotificationService(&mockNotificationRepository{}, messages, &mockDeviceTokenRepository{}, &mockProfileRepository{}, realtime.NewMemoryBroker(), nil, time.Second)

	counts, err := svc.Badges(context.Background(), "u")

	if err == nil || counts != nil {
		t.Errorf("counts = %v, err = %v, want failure", counts, err)
	}
}

func TestNotificationService_List_Renders(t *testing.T) {
	notifs := &mockNotificationRepository{
		listRecentFn: func(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
			return []model.Notification{{ID: "n1", Type: model.NotificationTypeFollow, ActorID: "a"}}, nil
		},
		countUnreadFn: func(ctx context.Context, userID string) (int, error) { return 1, nil },
	}
	svc := NewNotificationService(notifs, &mockMessageRepository{}, &mockDeviceTokenRepository{}, &mockProfileRepository{}, realtime.NewMemoryBroker(), nil, time.Second)

	resp, items, err := svc.List(context.Background(), "u", 0)

	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if resp.UnreadCount != 1 || len(items) != 1 {
		t.Fatalf("resp = %+v items = %d", resp, len(items))
	}
	if items[0].Text != "Someone started following you" {
		t.Errorf("text = %q", items[0].Text)
	}
}

func TestNotificationService_RegisterDevice(t *testing.T) {
	tests := []struct {
		name string
		req  model.RegisterTokenRequest
		want error
	}{
		{"ok", model.RegisterTokenRequest{Token: "t", Platform: model.PlatformIOS}, nil},
		{"bad platform", model.RegisterTokenRequest{Token: "t", Platform: "web"}, model.ErrInvalidPlatform},
		{"missing token", model.RegisterTokenRequest{Platform: model.PlatformAndroid}, model.ErrDeviceTokenRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewNotificationService(&mockNotificationRepository{}, &mockMessageRepository{}, &mockDeviceTokenRepository{}, &mockProfileRepository{}, realtime.NewMemoryBroker(), nil, time.Second)

			err := svc.RegisterDevice(context.Background(), "u", &tt.req)

			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestNotificationService_UnregisterDevice(t *testing.T) {
	// ARRANGE
	var deleted []string
	tokens := &mockDeviceTokenRepository{
		deleteFn: func(ctx context.Context, userID string, toks ...string) (int64, error) {
			deleted = append(deleted, toks...)
			return 1, nil
		},
	}
	svc := NewNotificationService(&mockNotificationRepository{}, &mockMessageRepository{}, tokens, &mockProfileRepository{}, realtime.NewMemoryBroker(), nil, time.Second)

	// ACT
	emptyErr := svc.UnregisterDevice(context.Background(), "u", "")
	err := svc.UnregisterDevice(context.Background(), "u", "device-1")

	// ASSERT
	if !errors.Is(emptyErr, model.ErrDeviceTokenRequired) {
		t.Errorf("empty token error = %v, want ErrDeviceTokenRequired", emptyErr)
	}
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(deleted) != 1 || deleted[0] != "device-1" {
		t.Errorf("deleted = %v, want [device-1]", deleted)
	}
}
