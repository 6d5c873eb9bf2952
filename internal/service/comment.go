package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"rollermate/internal/logging"
	"rollermate/internal/model"
	"rollermate/internal/queue"
	"rollermate/internal/repository"
)

type CommentService struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	publisher   queue.Publisher
	log         zerolog.Logger
}

func NewCommentService(commentRepo repository.CommentRepository, postRepo repository.PostRepository, publisher queue.Publisher) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		publisher:   publisher,
		log:         logging.For("CommentService"),
	}
}

// Create adds a comment. A reply notifies the parent comment's author;
// a top-level comment notifies the post's author.
func (s *CommentService) Create(ctx context.Context, postID, userID string, req *model.CreateCommentRequest) (*model.Comment, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, model.ErrCommentRequired
	}
	if utf8.RuneCountInString(content) > model.MaxCommentLength {
		return nil, model.ErrCommentTooLong
	}

	postAuthorID, err := s.postRepo.GetAuthorID(ctx, postID)
	if err != nil {
		return nil, model.Upstream("get post author", err)
	}

	var parent *model.Comment
	if req.ParentID != nil && *req.ParentID != "" {
		parent, err = s.commentRepo.GetByID(ctx, *req.ParentID)
		if err != nil {
			return nil, model.Upstream("get parent comment", err)
		}
		if parent.PostID != postID {
			return nil, model.ErrParentOnOtherPost
		}
	}

	comment := &model.Comment{PostID: postID, AuthorID: userID, Content: content}
	if parent != nil {
		comment.ParentID = &parent.ID
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		s.log.Error().Err(err).Str(logging.USER, userID).Str("post_id", postID).Msg("Create FAILED")
		return nil, model.Upstream("insert comment", err)
	}

	switch {
	case parent != nil && parent.AuthorID != userID:
		publishActivity(ctx, s.log, s.publisher, queue.NewCommentRepliedEvent(postID, comment.ID, userID, parent.AuthorID))
	case parent == nil && postAuthorID != userID:
		publishActivity(ctx, s.log, s.publisher, queue.NewPostCommentedEvent(postID, comment.ID, userID, postAuthorID))
	}

	s.log.Info().Str(logging.USER, userID).Str("post_id", postID).Str("comment_id", comment.ID).Msg("Create OK")
	return comment, nil
}

// List returns a post's comments oldest first.
func (s *CommentService) List(ctx context.Context, postID, viewerID string) (*model.CommentListResponse, error) {
	if _, err := s.postRepo.GetAuthorID(ctx, postID); err != nil {
		return nil, model.Upstream("get post", err)
	}
	comments, err := s.commentRepo.ListByPost(ctx, postID, viewerID)
	if err != nil {
		return nil, model.Upstream("list comments", err)
	}
	if comments == nil {
		comments = []model.Comment{}
	}
	return &model.CommentListResponse{Comments: comments}, nil
}

func (s *CommentService) ToggleLike(ctx context.Context, commentID, userID string, currentlyLiked bool) (*model.LikeToggleResult, error) {
	if currentlyLiked {
		if _, err := s.commentRepo.Unlike(ctx, commentID, userID); err != nil {
			return nil, model.Upstream("unlike comment", err)
		}
	} else {
		comment, err := s.commentRepo.GetByID(ctx, commentID)
		if err != nil {
			return nil, model.Upstream("get comment", err)
		}
		inserted, err := s.commentRepo.Like(ctx, commentID, userID)
		if err != nil {
			return nil, model.Upstream("like comment", err)
		}
		if inserted && comment.AuthorID != userID {
			publishActivity(ctx, s.log, s.publisher, queue.NewCommentLikedEvent(comment.PostID, commentID, userID, comment.AuthorID))
		}
	}

	likes, err := s.commentRepo.CountLikes(ctx, commentID)
	if err != nil {
		return nil, model.Upstream("count comment likes", err)
	}
	return &model.LikeToggleResult{Liked: !currentlyLiked, Likes: likes}, nil
}
