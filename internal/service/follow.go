package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"rollermate/internal/logging"
	"rollermate/internal/model"
	"rollermate/internal/queue"
	"rollermate/internal/repository"
)

const (
	defaultFollowPage = 20
	maxFollowPage     = 100
)

type FollowService struct {
	followRepo  repository.FollowRepository
	profileRepo repository.ProfileRepository
	publisher   queue.Publisher
	log         zerolog.Logger
}

func NewFollowService(
	followRepo repository.FollowRepository,
	profileRepo repository.ProfileRepository,
	publisher queue.Publisher,
) *FollowService {
	return &FollowService{
		followRepo:  followRepo,
		profileRepo: profileRepo,
		publisher:   publisher,
		log:         logging.For("FollowService"),
	}
}

// Toggle flips the follow edge from the state the caller believes it is in.
// Both directions are idempotent, so a stale belief converges on the
// requested state. The result is read back after the write.
func (s *FollowService) Toggle(ctx context.Context, followerID, targetID string, currentlyFollowing bool) (*model.FollowToggleResult, error) {
	if followerID == targetID {
		return nil, model.ErrCannotFollowSelf
	}

	if currentlyFollowing {
		if _, err := s.followRepo.Delete(ctx, followerID, targetID); err != nil {
			s.log.Error().Err(err).Str(logging.USER, followerID).Str("target", targetID).Msg("Unfollow FAILED")
			return nil, model.Upstream("delete follow", err)
		}
	} else {
		if _, err := s.profileRepo.GetByID(ctx, targetID); err != nil {
			return nil, model.Upstream("get profile", err)
		}
		inserted, err := s.followRepo.Create(ctx, followerID, targetID)
		if err != nil {
			s.log.Error().Err(err).Str(logging.USER, followerID).Str("target", targetID).Msg("Follow FAILED")
			return nil, model.Upstream("create follow", err)
		}
		if inserted {
			publishActivity(ctx, s.log, s.publisher, queue.NewUserFollowedEvent(followerID, targetID))
		}
	}

	count, err := s.followRepo.CountFollowers(ctx, targetID)
	if err != nil {
		return nil, model.Upstream("count followers", err)
	}

	s.log.Info().
		Str(logging.USER, followerID).
		Str("target", targetID).
		Bool("following", !currentlyFollowing).
		Int("followers", count).
		Msg("Toggle OK")
	return &model.FollowToggleResult{IsFollowing: !currentlyFollowing, FollowersCount: count}, nil
}

// Followers pages the users following userID, newest first.
func (s *FollowService) Followers(ctx context.Context, userID string, cursor *time.Time, limit int, viewerID string) (*model.FollowListResponse, error) {
	limit = clampLimit(limit, defaultFollowPage, maxFollowPage)
	users, next, err := s.followRepo.GetFollowers(ctx, userID, cursor, limit)
	if err != nil {
		return nil, model.Upstream("get followers", err)
	}
	return s.listResponse(ctx, users, next, viewerID), nil
}

// Following pages the users userID follows, newest first.
func (s *FollowService) Following(ctx context.Context, userID string, cursor *time.Time, limit int, viewerID string) (*model.FollowListResponse, error) {
	limit = clampLimit(limit, defaultFollowPage, maxFollowPage)
	users, next, err := s.followRepo.GetFollowing(ctx, userID, cursor, limit)
	if err != nil {
		return nil, model.Upstream("get following", err)
	}
	return s.listResponse(ctx, users, next, viewerID), nil
}

func (s *FollowService) listResponse(ctx context.Context, users []model.ProfileSummary, next *time.Time, viewerID string) *model.FollowListResponse {
	if viewerID != "" {
		users = enrichWithFollowStatus(ctx, s.log, s.followRepo, viewerID, users)
	}

	var nextCursor *string
	if next != nil {
		str := next.Format(time.RFC3339Nano)
		nextCursor = &str
	}
	return &model.FollowListResponse{
		Users:      users,
		NextCursor: nextCursor,
		HasMore:    next != nil,
	}
}

// enrichWithFollowStatus batch-checks whether the viewer follows each user.
// The check is best effort: on failure the list is returned with
// is_following false and a warning is logged.
func enrichWithFollowStatus(ctx context.Context, log zerolog.Logger, followRepo repository.FollowRepository, viewerID string, users []model.ProfileSummary) []model.ProfileSummary {
	if len(users) == 0 {
		return users
	}

	ids := make([]string, len(users))
	for i, user := range users {
		ids[i] = user.ID
	}

	followMap, err := followRepo.CheckFollows(ctx, viewerID, ids)
	if err != nil {
		log.Warn().Err(err).Str(logging.USER, viewerID).Int("users", len(users)).Msg("CheckFollows FAILED, follow status omitted")
		return users
	}
	for i := range users {
		users[i].IsFollowing = followMap[users[i].ID]
	}
	return users
}

// publishActivity queues an event for the notification workers. Failure is
// logged and swallowed: the write it describes has already committed.
func publishActivity(ctx context.Context, log zerolog.Logger, publisher queue.Publisher, event queue.ActivityEvent) {
	if publisher == nil {
		return
	}
	if _, err := publisher.Publish(ctx, queue.StreamActivity, event); err != nil {
		log.Warn().Err(err).Str(logging.EVENT, event.Type).Str("actor", event.ActorID).Msg("publish activity FAILED")
	}
}
