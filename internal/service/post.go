package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"rollermate/internal/logging"
	"rollermate/internal/model"
	"rollermate/internal/queue"
	"rollermate/internal/repository"
	"rollermate/internal/storage"
)

const postImageQuality = 85

type PostService struct {
	postRepo  repository.PostRepository
	store     storage.ObjectStore
	publisher queue.Publisher
	now       func() time.Time
	log       zerolog.Logger
}

func NewPostService(postRepo repository.PostRepository, store storage.ObjectStore, publisher queue.Publisher) *PostService {
	return &PostService{
		postRepo:  postRepo,
		store:     store,
		publisher: publisher,
		now:       time.Now,
		log:       logging.For("PostService"),
	}
}

// Create validates the input before touching storage, uploads the image (if
// any) and inserts the post. An image uploaded for a post that then fails to
// insert is deleted again.
func (s *PostService) Create(ctx context.Context, authorID string, in model.CreatePostInput) (*model.Post, error) {
	startTime := time.Now()

	content := strings.TrimSpace(in.Content)
	if utf8.RuneCountInString(content) > model.MaxPostContentLength {
		return nil, model.ErrContentTooLong
	}
	if content == "" && in.Image == nil {
		return nil, model.ErrEmptyPost
	}

	var loc *model.Location
	switch {
	case in.LocationDenied:
		s.log.Debug().Str(logging.USER, authorID).Err(model.ErrLocationDenied).Msg("posting without location")
	case in.Location != nil:
		if !in.Location.Valid() {
			return nil, model.ErrInvalidLocation
		}
		loc = in.Location
	}

	if in.Image != nil {
		if !model.IsAllowedImageType(in.Image.ContentType) {
			return nil, model.ErrInvalidImageType
		}
		if len(in.Image.Data) > model.MaxPostImageSize {
			return nil, model.ErrFileTooLarge
		}
	}

	post := &model.Post{AuthorID: authorID, Content: content}
	if loc != nil {
		post.Latitude = &loc.Latitude
		post.Longitude = &loc.Longitude
	}

	if in.Image != nil {
		data, err := storage.FitJPEG(in.Image.Data, model.PostImageMaxSide, postImageQuality)
		if err != nil {
			return nil, err
		}
		upload, err := s.store.Put(ctx, storage.PostImageKey(authorID, s.now()), data, model.ContentTypeJPEG)
		if err != nil {
			s.log.Error().Err(err).Str(logging.USER, authorID).Msg("Create upload FAILED")
			return nil, err
		}
		post.ImageURL = &upload.URL
		post.ImageKey = &upload.Key
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		s.log.Error().Err(err).Str(logging.USER, authorID).Msg("Create FAILED")
		if post.ImageKey != nil {
			if derr := deleteDetached(ctx, s.store, *post.ImageKey); derr != nil {
				s.log.Error().Err(derr).Str("key", *post.ImageKey).Msg("orphan image cleanup FAILED")
			}
		}
		return nil, model.Upstream("insert post", err)
	}

	s.log.Info().
		Str(logging.USER, authorID).
		Str("post_id", post.ID).
		Bool("image", post.ImageKey != nil).
		Bool("location", loc != nil).
		Dur("duration", time.Since(startTime)).
		Msg("Create OK")

	full, err := s.postRepo.GetByID(ctx, post.ID, authorID)
	if err != nil {
		s.log.Warn().Err(err).Str("post_id", post.ID).Msg("re-read after create FAILED")
		return post, nil
	}
	return full, nil
}

func (s *PostService) GetByID(ctx context.Context, postID, viewerID string) (*model.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID, viewerID)
	if err != nil {
		return nil, model.Upstream("get post", err)
	}
	return post, nil
}

// Delete removes the caller's own post and its image.
func (s *PostService) Delete(ctx context.Context, postID, userID string) error {
	authorID, err := s.postRepo.GetAuthorID(ctx, postID)
	if err != nil {
		return model.Upstream("get post author", err)
	}
	if authorID != userID {
		return model.ErrNotPostOwner
	}

	imageKey, err := s.postRepo.Delete(ctx, postID, userID)
	if err != nil {
		s.log.Error().Err(err).Str("post_id", postID).Msg("Delete FAILED")
		return model.Upstream("delete post", err)
	}
	if imageKey != nil {
		if err := deleteDetached(ctx, s.store, *imageKey); err != nil {
			s.log.Warn().Err(err).Str("key", *imageKey).Msg("delete post image FAILED")
		}
	}

	s.log.Info().Str(logging.USER, userID).Str("post_id", postID).Msg("Delete OK")
	return nil
}

// ToggleLike flips the like from the state the caller believes it is in and
// returns the confirmed state with the re-read count.
func (s *PostService) ToggleLike(ctx context.Context, postID, userID string, currentlyLiked bool) (*model.LikeToggleResult, error) {
	if currentlyLiked {
		if _, err := s.postRepo.Unlike(ctx, postID, userID); err != nil {
			return nil, model.Upstream("unlike post", err)
		}
	} else {
		authorID, err := s.postRepo.GetAuthorID(ctx, postID)
		if err != nil {
			return nil, model.Upstream("get post author", err)
		}
		inserted, err := s.postRepo.Like(ctx, postID, userID)
		if err != nil {
			return nil, model.Upstream("like post", err)
		}
		if inserted && authorID != userID {
			publishActivity(ctx, s.log, s.publisher, queue.NewPostLikedEvent(postID, userID, authorID))
		}
	}

	likes, err := s.postRepo.CountLikes(ctx, postID)
	if err != nil {
		return nil, model.Upstream("count likes", err)
	}

	s.log.Debug().Str(logging.USER, userID).Str("post_id", postID).Bool("liked", !currentlyLiked).Int("likes", likes).Msg("ToggleLike OK")
	return &model.LikeToggleResult{Liked: !currentlyLiked, Likes: likes}, nil
}
