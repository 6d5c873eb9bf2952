package service

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"rollermate/internal/logging"
	"rollermate/internal/model"
	"rollermate/internal/repository"
)

type FeedService struct {
	postRepo repository.PostRepository
	log      zerolog.Logger
}

func NewFeedService(postRepo repository.PostRepository) *FeedService {
	return &FeedService{postRepo: postRepo, log: logging.For("FeedService")}
}

// List returns a page of posts, newest first, with counts for q.ViewerID.
// Equal timestamps are ordered by id so pages never overlap or skip.
func (s *FeedService) List(ctx context.Context, q model.FeedQuery) (*model.FeedResponse, error) {
	startTime := time.Now()
	limit := clampLimit(q.Limit, model.DefaultFeedLimit, model.MaxFeedLimit)

	// One extra row tells us whether another page exists.
	q.Limit = limit + 1
	posts, err := s.postRepo.List(ctx, q)
	if err != nil {
		s.log.Error().Err(err).Str(logging.USER, q.ViewerID).Msg("List FAILED")
		return nil, model.Upstream("list posts", err)
	}

	sort.SliceStable(posts, func(i, j int) bool {
		return newerFirst(posts[i].CreatedAt, posts[i].ID, posts[j].CreatedAt, posts[j].ID)
	})

	resp := &model.FeedResponse{Posts: posts}
	if len(posts) > limit {
		resp.Posts = posts[:limit]
		last := resp.Posts[limit-1]
		cursor := model.FeedCursor{CreatedAt: last.CreatedAt, ID: last.ID}.String()
		resp.NextCursor = &cursor
		resp.HasMore = true
	}

	s.log.Debug().
		Str(logging.USER, q.ViewerID).
		Int("count", len(resp.Posts)).
		Bool("has_more", resp.HasMore).
		Dur("duration", time.Since(startTime)).
		Msg("List OK")
	return resp, nil
}

func newerFirst(at time.Time, id string, bt time.Time, bid string) bool {
	if !at.Equal(bt) {
		return at.After(bt)
	}
	return id > bid
}
