package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"rollermate/internal/model"
	"rollermate/internal/queue"
)

func TestFollowService_Toggle_FollowersCountMatchesEdges(t *testing.T) {
	// ARRANGE
	graph := newFollowGraph()
	publisher := &mockPublisher{}
	svc := NewFollowService(graph.repo(), &mockProfileRepository{}, publisher)
	ctx := context.Background()

	// ACT
	for _, follower := range []string{"a", "b", "c"} {
		if _, err := svc.Toggle(ctx, follower, "target", false); err != nil {
			t.Fatalf("follow by %s: %v", follower, err)
		}
	}
	res, err := svc.Toggle(ctx, "b", "target", true)

	// ASSERT
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	edges := graph.count(func(k [2]string) bool { return k[1] == "target" })
	if res.FollowersCount != edges || edges != 2 {
		t.Errorf("followers_count = %d, edges = %d, want 2", res.FollowersCount, edges)
	}
	if res.IsFollowing {
		t.Error("expected is_following false after unfollow")
	}
	if got := len(publisher.types()); got != 3 {
		t.Errorf("published %d follow events, want 3", got)
	}
}

func TestFollowService_Toggle_TwiceRestoresState(t *testing.T) {
	// ARRANGE
	graph := newFollowGraph()
	svc := NewFollowService(graph.repo(), &mockProfileRepository{}, nil)
	ctx := context.Background()

	// ACT
	first, err := svc.Toggle(ctx, "me", "you", false)
	if err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	second, err := svc.Toggle(ctx, "me", "you", first.IsFollowing)

	// ASSERT
	if err != nil {
		t.Fatalf("second toggle: %v", err)
	}
	if !first.IsFollowing || first.FollowersCount != 1 {
		t.Errorf("first = %+v, want following with 1 follower", first)
	}
	if second.IsFollowing || second.FollowersCount != 0 {
		t.Errorf("second = %+v, want back to not following with 0", second)
	}
}

func TestFollowService_Toggle_StaleBeliefConverges(t *testing.T) {
	// ARRANGE: the client thinks it is not following, but the edge exists.
	graph := newFollowGraph()
	svc := NewFollowService(graph.repo(), &mockProfileRepository{}, nil)
	ctx := context.Background()
	if _, err := svc.Toggle(ctx, "me", "you", false); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// ACT
	res, err := svc.Toggle(ctx, "me", "you", false)

	// ASSERT
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !res.IsFollowing || res.FollowersCount != 1 {
		t.Errorf("result = %+v, want following with exactly 1 follower", res)
	}
}

func TestFollowService_Toggle_Self(t *testing.T) {
	svc := NewFollowService(newFollowGraph().repo(), &mockProfileRepository{}, nil)

	_, err := svc.Toggle(context.Background(), "me", "me", false)

	if !errors.Is(err, model.ErrCannotFollowSelf) {
		t.Errorf("error = %v, want ErrCannotFollowSelf", err)
	}
}

func TestFollowService_Toggle_UnknownTarget(t *testing.T) {
	// ARRANGE
	graph := newFollowGraph()
	profiles := &mockProfileRepository{
		getByIDFn: func(ctx context.Context, id string) (*model.Profile, error) {
			return nil, model.ErrProfileNotFound
		},
	}
	svc := NewFollowService(graph.repo(), profiles, nil)

	// ACT
	_, err := svc.Toggle(context.Background(), "me", "ghost", false)

	// ASSERT
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("error = %v, want not found", err)
	}
	if graph.count(func([2]string) bool { return true }) != 0 {
		t.Error("no edge should be created for a missing profile")
	}
}

func TestFollowService_Toggle_CountFailureIsUpstream(t *testing.T) {
	// ARRANGE
	repo := newFollowGraph().repo()
	repo.countFollowersFn = func(ctx context.Context, userID string) (int, error) {
		return 0, errors.New("connection reset")
	}
	svc := NewFollowService(repo, &mockProfileRepository{}, nil)

	// ACT
	_, err := svc.Toggle(context.Background(), "me", "you", false)

	// ASSERT
	if !errors.Is(err, model.ErrUpstream) {
		t.Errorf("error = %v, want upstream", err)
	}
}

func TestFollowService_Followers_EnrichesAndPages(t *testing.T) {
	// ARRANGE
	next := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	repo := &mockFollowRepository{
		getFollowersFn: func(ctx context.Context, userID string, cursor *time.Time, limit int) ([]model.ProfileSummary, *time.Time, error) {
			if limit != defaultFollowPage {
				t.Errorf("limit = %d, want default %d", limit, defaultFollowPage)
			}
			return []model.ProfileSummary{{ID: "a"}, {ID: "b"}}, &next, nil
		},
		checkFollowsFn: func(ctx context.Context, followerID string, ids []string) (map[string]bool, error) {
			return map[string]bool{"b": true}, nil
		},
	}
	svc := NewFollowService(repo, &mockProfileRepository{}, nil)

	// ACT
	resp, err := svc.Followers(context.Background(), "target", nil, 0, "viewer")

	// ASSERT
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if resp.Users[0].IsFollowing || !resp.Users[1].IsFollowing {
		t.Errorf("follow status = %v/%v, want false/true", resp.Users[0].IsFollowing, resp.Users[1].IsFollowing)
	}
	if !resp.HasMore || resp.NextCursor == nil || *resp.NextCursor != next.Format(time.RFC3339Nano) {
		t.Errorf("cursor = %v has_more = %v", resp.NextCursor, resp.HasMore)
	}
}

func TestFollowService_Followers_CheckFailureLogsAndKeepsList(t *testing.T) {
	// ARRANGE
	repo := &mockFollowRepository{
		getFollowersFn: func(ctx context.Context, userID string, cursor *time.Time, limit int) ([]model.ProfileSummary, *time.Time, error) {
			return []model.ProfileSummary{{ID: "a"}, {ID: "b"}}, nil, nil
		},
		checkFollowsFn: func(ctx context.Context, followerID string, ids []string) (map[string]bool, error) {
			return nil, errors.New("connection reset")
		},
	}
	svc := NewFollowService(repo, &mockProfileRepository{}, nil)
	var buf bytes.Buffer
	svc.log = zerolog.New(&buf)

	// ACT
	resp, err := svc.Followers(context.Background(), "target", nil, 0, "viewer")

	// ASSERT
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(resp.Users) != 2 || resp.Users[0].IsFollowing || resp.Users[1].IsFollowing {
		t.Errorf("users = %+v, want both listed without follow status", resp.Users)
	}
	if !strings.Contains(buf.String(), "CheckFollows FAILED") {
		t.Errorf("expected a warning, log = %q", buf.String())
	}
}

func TestPublishActivity_NilPublisher(t *testing.T) {
	svc := NewFollowService(newFollowGraph().repo(), &mockProfileRepository{}, nil)

	publishActivity(context.Background(), svc.log, nil, queue.NewUserFollowedEvent("a", "b"))
}
