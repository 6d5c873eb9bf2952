package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"rollermate/internal/logging"
	"rollermate/internal/model"
	"rollermate/internal/repository"
	"rollermate/internal/storage"
)

const (
	avatarQuality = 85

	defaultSearchLimit = 20
	maxSearchLimit     = 50
)

// ProfileService reads profile aggregates and edits the caller's own profile.
type ProfileService struct {
	profileRepo  repository.ProfileRepository
	followRepo   repository.FollowRepository
	postRepo     repository.PostRepository
	store        storage.ObjectStore
	queryTimeout time.Duration
	log          zerolog.Logger
}

func NewProfileService(
	profileRepo repository.ProfileRepository,
	followRepo repository.FollowRepository,
	postRepo repository.PostRepository,
	store storage.ObjectStore,
	queryTimeout time.Duration,
) *ProfileService {
	return &ProfileService{
		profileRepo:  profileRepo,
		followRepo:   followRepo,
		postRepo:     postRepo,
		store:        store,
		queryTimeout: queryTimeout,
		log:          logging.For("ProfileService"),
	}
}

// GetProfile loads the profile and its derived counts concurrently. Every
// piece must succeed: a failed count fails the call instead of showing zero.
// viewerID may be nil for anonymous reads.
func (s *ProfileService) GetProfile(ctx context.Context, profileID string, viewerID *string) (*model.Profile, error) {
	startTime := time.Now()

	var (
		profile                  *model.Profile
		followers, following, np int
		isFollowing              bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.withTimeout(gctx, func(ctx context.Context) (err error) {
			profile, err = s.profileRepo.GetByID(ctx, profileID)
			return model.Upstream("get profile", err)
		})
	})
	g.Go(func() error {
		return s.withTimeout(gctx, func(ctx context.Context) (err error) {
			followers, err = s.followRepo.CountFollowers(ctx, profileID)
			return model.Upstream("count followers", err)
		})
	})
	g.Go(func() error {
		return s.withTimeout(gctx, func(ctx context.Context) (err error) {
			following, err = s.followRepo.CountFollowing(ctx, profileID)
			return model.Upstream("count following", err)
		})
	})
	g.Go(func() error {
		return s.withTimeout(gctx, func(ctx context.Context) (err error) {
			np, err = s.postRepo.CountByAuthor(ctx, profileID)
			return model.Upstream("count posts", err)
		})
	})
	if viewerID != nil && *viewerID != profileID {
		g.Go(func() error {
			return s.withTimeout(gctx, func(ctx context.Context) (err error) {
				isFollowing, err = s.followRepo.Exists(ctx, *viewerID, profileID)
				return model.Upstream("check follow", err)
			})
		})
	}

	if err := g.Wait(); err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			s.log.Error().Err(err).Str("profile_id", profileID).Dur("duration", time.Since(startTime)).Msg("GetProfile FAILED")
		}
		return nil, err
	}

	profile.FollowersCount = followers
	profile.FollowingCount = following
	profile.PostsCount = np
	profile.IsFollowing = isFollowing
	if viewerID == nil || *viewerID != profileID {
		profile.Email = ""
	}

	s.log.Debug().Str("profile_id", profileID).Dur("duration", time.Since(startTime)).Msg("GetProfile OK")
	return profile, nil
}

func (s *ProfileService) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	return fn(ctx)
}

// UpdateProfile overwrites the fields present in req and returns the fresh aggregate.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, req *model.UpdateProfileRequest) (*model.Profile, error) {
	if req.Empty() {
		return nil, model.ErrNothingToUpdate
	}
	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if utf8.RuneCountInString(name) > model.MaxFullNameLength {
			return nil, model.ErrFullNameTooLong
		}
		req.FullName = &name
	}
	if req.Bio != nil {
		bio := strings.TrimSpace(*req.Bio)
		if utf8.RuneCountInString(bio) > model.MaxBioLength {
			return nil, model.ErrBioTooLong
		}
		req.Bio = &bio
	}
	if req.Sports != nil {
		sports, err := cleanSports(*req.Sports)
		if err != nil {
			return nil, err
		}
		req.Sports = &sports
	}

	if _, err := s.profileRepo.Update(ctx, userID, req); err != nil {
		s.log.Error().Err(err).Str(logging.USER, userID).Msg("UpdateProfile FAILED")
		return nil, model.Upstream("update profile", err)
	}

	s.log.Info().Str(logging.USER, userID).Msg("UpdateProfile OK")
	return s.GetProfile(ctx, userID, &userID)
}

// UpdateAvatar crops the image to a square avatar, stores it and replaces the
// previous one.
func (s *ProfileService) UpdateAvatar(ctx context.Context, userID string, img *model.Image) (*model.Profile, error) {
	data, err := storage.FillJPEG(img.Data, model.AvatarWidth, model.AvatarHeight, avatarQuality)
	if err != nil {
		return nil, err
	}

	upload, err := s.store.Put(ctx, storage.AvatarKey(), data, model.ContentTypeJPEG)
	if err != nil {
		s.log.Error().Err(err).Str(logging.USER, userID).Msg("UpdateAvatar upload FAILED")
		return nil, err
	}

	oldKey, err := s.profileRepo.UpdateAvatar(ctx, userID, upload)
	if err != nil {
		s.deleteObject(ctx, upload.Key)
		s.log.Error().Err(err).Str(logging.USER, userID).Msg("UpdateAvatar FAILED")
		return nil, model.Upstream("update avatar", err)
	}
	if oldKey != nil && *oldKey != "" {
		s.deleteObject(ctx, *oldKey)
	}

	s.log.Info().Str(logging.USER, userID).Str("key", upload.Key).Msg("UpdateAvatar OK")
	return s.GetProfile(ctx, userID, &userID)
}

func (s *ProfileService) deleteObject(ctx context.Context, key string) {
	if err := deleteDetached(ctx, s.store, key); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("delete object FAILED")
	}
}

// Search matches profiles by name prefix and flags the ones the viewer follows.
func (s *ProfileService) Search(ctx context.Context, query, viewerID string, limit int) ([]model.ProfileSummary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.ProfileSummary{}, nil
	}
	limit = clampLimit(limit, defaultSearchLimit, maxSearchLimit)

	users, err := s.profileRepo.Search(ctx, query, limit)
	if err != nil {
		return nil, model.Upstream("search profiles", err)
	}
	if viewerID != "" {
		users = enrichWithFollowStatus(ctx, s.log, s.followRepo, viewerID, users)
	}
	return users, nil
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

// deleteDetached removes an object even when ctx is already cancelled, so a
// cleanup triggered by a failed request still runs.
func deleteDetached(ctx context.Context, store storage.ObjectStore, key string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return store.Delete(ctx, key)
}
