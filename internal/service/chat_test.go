package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rollermate/internal/model"
	"rollermate/internal/realtime"
)

// chatTable is an in-memory chats table keyed by pair, mirroring the unique
// constraint the database enforces.
type chatTable struct {
	mu      sync.Mutex
	byPair  map[string]string
	members map[string][]string
}

func newChatTable() *chatTable {
	return &chatTable{byPair: map[string]string{}, members: map[string][]string{}}
}

func (c *chatTable) repo() *mockChatRepository {
	return &mockChatRepository{
		findDirectFn: func(ctx context.Context, userID, targetID string) (string, error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			return c.byPair[model.PairKey(userID, targetID)], nil
		},
		createDirectFn: func(ctx context.Context, userID, targetID string) (string, bool, error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			key := model.PairKey(userID, targetID)
			if id, ok := c.byPair[key]; ok {
				return id, false, nil
			}
			id := "chat-" + key
			c.byPair[key] = id
			c.members[id] = []string{userID, targetID}
			return id, true, nil
		},
		isMemberFn: func(ctx context.Context, chatID, userID string) (bool, error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			for _, m := range c.members[chatID] {
				if m == userID {
					return true, nil
				}
			}
			return false, nil
		},
		membersFn: func(ctx context.Context, chatID string) ([]string, error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			return c.members[chatID], nil
		},
	}
}

func TestChatService_FindOrCreate_ConcurrentPairYieldsOneChat(t *testing.T) {
	// ARRANGE: both finds miss, then both users insert at once. The table
	// keys chats by pair like the unique pair_key upsert in the chat
	// repository; TestChatRepository_CreateDirect_ConcurrentPairConverges
	// runs the same race against Postgres.
	table := newChatTable()
	repo := table.repo()
	var ready sync.WaitGroup
	ready.Add(2)
	repo.findDirectFn = func(ctx context.Context, userID, targetID string) (string, error) {
		ready.Done()
		ready.Wait()
		return "", nil
	}
	svc := NewChatService(repo, &mockMessageRepository{}, &mockProfileRepository{}, realtime.NewMemoryBroker())

	// ACT
	results := make([]*model.ChatBootstrap, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		wg.Add(1)
		go func(i int, from, to string) {
			defer wg.Done()
			results[i], errs[i] = svc.FindOrCreate(context.Background(), from, to)
		}(i, pair[0], pair[1])
	}
	wg.Wait()

	// ASSERT
	for _, err := range errs {
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
	}
	if results[0].ChatID != results[1].ChatID {
		t.Errorf("chat ids differ: %s vs %s", results[0].ChatID, results[1].ChatID)
	}
	created := 0
	for _, r := range results {
		if r.State == model.ChatStateCreated {
			created++
		}
	}
	if created != 1 {
		t.Errorf("created = %d, want exactly one", created)
	}
	if len(table.byPair) != 1 {
		t.Errorf("chats = %d, want 1", len(table.byPair))
	}
}

func TestChatService_FindOrCreate_Existing(t *testing.T) {
	table := newChatTable()
	svc := NewChatService(table.repo(), &mockMessageRepository{}, &mockProfileRepository{}, realtime.NewMemoryBroker())
	ctx := context.Background()

	first, err := svc.FindOrCreate(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := svc.FindOrCreate(ctx, "bob", "alice")

	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.State != model.ChatStateCreated || second.State != model.ChatStateFound {
		t.Errorf("states = %s/%s, want created/found", first.State, second.State)
	}
	if first.ChatID != second.ChatID {
		t.Error("expected the same chat")
	}
}

func TestChatService_FindOrCreate_Errors(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		profiles *mockProfileRepository
		want     error
	}{
		{"self", "me", &mockProfileRepository{}, model.ErrCannotChatSelf},
		{"missing target", "ghost", &mockProfileRepository{
			getByIDFn: func(ctx context.Context, id string) (*model.Profile, error) { return nil, model.ErrProfileNotFound },
		}, model.ErrProfileNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewChatService(newChatTable().repo(), &mockMessageRepository{}, tt.profiles, realtime.NewMemoryBroker())

			_, err := svc.FindOrCreate(context.Background(), "me", tt.target)

			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestChatService_Send_PublishesToPeer(t *testing.T) {
	// ARRANGE
	table := newChatTable()
	broker := realtime.NewMemoryBroker()
	svc := NewChatService(table.repo(), &mockMessageRepository{}, &mockProfileRepository{}, broker)
	ctx := context.Background()
	boot, err := svc.FindOrCreate(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	bobSub, _ := broker.Subscribe(ctx, realtime.TableMessages, "bob")
	defer bobSub.Close()
	aliceSub, _ := broker.Subscribe(ctx, realtime.TableMessages, "alice")
	defer aliceSub.Close()

	// ACT
	msg, err := svc.Send(ctx, boot.ChatID, "alice", "  see you at the park ")

	// ASSERT
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if msg.Content != "see you at the park" {
		t.Errorf("content = %q", msg.Content)
	}
	select {
	case ev := <-bobSub.C:
		if ev.Type != realtime.TypeInsert {
			t.Errorf("event type = %s", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("bob received no event")
	}
	select {
	case <-aliceSub.C:
		t.Error("sender should not receive their own message event")
	default:
	}
}

func TestChatService_Send_NotMember(t *testing.T) {
	svc := NewChatService(newChatTable().repo(), &mockMessageRepository{}, &mockProfileRepository{}, realtime.NewMemoryBroker())

	_, err := svc.Send(context.Background(), "chat-x", "mallory", "hi")

	if !errors.Is(err, model.ErrNotChatMember) {
		t.Errorf("error = %v, want ErrNotChatMember", err)
	}
}

func TestChatService_ListMessages_BadCursor(t *testing.T) {
	svc := NewChatService(&mockChatRepository{}, &mockMessageRepository{}, &mockProfileRepository{}, realtime.NewMemoryBroker())

	for _, cursor := range []string{"garbage", "1700000000000000000:not-a-uuid"} {
		_, err := svc.ListMessages(context.Background(), "c", "me", cursor, 10)

		if !errors.Is(err, model.ErrInvalidCursor) {
			t.Errorf("cursor %q: error = %v, want ErrInvalidCursor", cursor, err)
		}
	}
}
