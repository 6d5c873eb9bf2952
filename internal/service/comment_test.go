package service

import (
	"context"
	"errors"
	"testing"

	"rollermate/internal/model"
	"rollermate/internal/queue"
)

func TestCommentService_Create_Notifications(t *testing.T) {
	parentOnPost := &model.Comment{ID: "parent", PostID: "p", AuthorID: "parent-author"}
	ownParent := &model.Comment{ID: "own", PostID: "p", AuthorID: "me"}

	tests := []struct {
		name       string
		postAuthor string
		parentID   *string
		wantEvent  string
	}{
		{"top level on someone's post", "author", nil, queue.EventPostCommented},
		{"top level on own post", "me", nil, ""},
		{"reply to someone", "author", &parentOnPost.ID, queue.EventCommentReplied},
		{"reply to self", "author", &ownParent.ID, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			posts := &mockPostRepository{
				getAuthorIDFn: func(ctx context.Context, postID string) (string, error) { return tt.postAuthor, nil },
			}
			comments := &mockCommentRepository{
				getByIDFn: func(ctx context.Context, id string) (*model.Comment, error) {
					if id == ownParent.ID {
						return ownParent, nil
					}
					return parentOnPost, nil
				},
			}
			publisher := &mockPublisher{}
			svc := NewCommentService(comments, posts, publisher)

			c, err := svc.Create(context.Background(), "p", "me", &model.CreateCommentRequest{Content: " nice line ", ParentID: tt.parentID})

			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}
			if c.Content != "nice line" {
				t.Errorf("content = %q", c.Content)
			}
			types := publisher.types()
			if tt.wantEvent == "" {
				if len(types) != 0 {
					t.Errorf("events = %v, want none", types)
				}
				return
			}
			if len(types) != 1 || types[0] != tt.wantEvent {
				t.Errorf("events = %v, want [%s]", types, tt.wantEvent)
			}
		})
	}
}

func TestCommentService_Create_ParentOnOtherPost(t *testing.T) {
	comments := &mockCommentRepository{
		getByIDFn: func(ctx context.Context, id string) (*model.Comment, error) {
			return &model.Comment{ID: id, PostID: "other"}, nil
		},
	}
	svc := NewCommentService(comments, &mockPostRepository{}, nil)
	parent := "c1"

	_, err := svc.Create(context.Background(), "p", "me", &model.CreateCommentRequest{Content: "hi", ParentID: &parent})

	if !errors.Is(err, model.ErrParentOnOtherPost) {
		t.Errorf("error = %v, want ErrParentOnOtherPost", err)
	}
}

func TestCommentService_Create_Empty(t *testing.T) {
	svc := NewCommentService(&mockCommentRepository{}, &mockPostRepository{}, nil)

	_, err := svc.Create(context.Background(), "p", "me", &model.CreateCommentRequest{Content: "  "})

	if !errors.Is(err, model.ErrCommentRequired) {
		t.Errorf("error = %v, want ErrCommentRequired", err)
	}
}

func TestCommentService_ToggleLike(t *testing.T) {
	comments := &mockCommentRepository{
		getByIDFn:    func(ctx context.Context, id string) (*model.Comment, error) { return &model.Comment{ID: id, PostID: "p", AuthorID: "author"}, nil },
		countLikesFn: func(ctx context.Context, id string) (int, error) { return 1, nil },
	}
	publisher := &mockPublisher{}
	svc := NewCommentService(comments, &mockPostRepository{}, publisher)

	res, err := svc.ToggleLike(context.Background(), "c1", "me", false)

	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !res.Liked || res.Likes != 1 {
		t.Errorf("result = %+v", res)
	}
	if types := publisher.types(); len(types) != 1 || types[0] != queue.EventCommentLiked {
		t.Errorf("events = %v", types)
	}
}

func TestCommentService_List_MissingPost(t *testing.T) {
	posts := &mockPostRepository{
		getAuthorIDFn: func(ctx context.Context, postID string) (string, error) { return "", model.ErrPostNotFound },
	}
	svc := NewCommentService(&mockCommentRepository{}, posts, nil)

	_, err := svc.List(context.Background(), "p", "me")

	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("error = %v, want not found", err)
	}
}
