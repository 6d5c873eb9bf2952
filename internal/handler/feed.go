package handler

import (
	"net/http"

	"rollermate/internal/httputil"
	"rollermate/internal/model"
	"rollermate/internal/service"
)

type FeedHandler struct {
	feedService *service.FeedService
}

func NewFeedHandler(feedService *service.FeedService) *FeedHandler {
	return &FeedHandler{
		feedService: feedService,
	}
}

// GetFeed handles GET /feed
//
// Query params:
//   - cursor: optional, the next_cursor of the previous page
//   - limit: optional, posts per page (default 20, max 50)
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	h.serve(w, r, model.FeedQuery{ViewerID: userID})
}

// GetProfilePosts handles GET /profiles/{id}/posts with the same paging as the feed.
func (h *FeedHandler) GetProfilePosts(w http.ResponseWriter, r *http.Request) {
	authorID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	h.serve(w, r, model.FeedQuery{ViewerID: viewerID(r), AuthorID: &authorID})
}

func (h *FeedHandler) serve(w http.ResponseWriter, r *http.Request, q model.FeedQuery) {
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		cursor, err := model.ParseFeedCursor(raw)
		if err != nil {
			httputil.WriteDomainError(w, r, err)
			return
		}
		q.Cursor = cursor
	}

	limit, err := httputil.QueryInt(r, "limit")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	q.Limit = limit

	feed, err := h.feedService.List(r.Context(), q)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, feed)
}
