package handler

import (
	"context"
	"net/http"
	"time"

	"rollermate/internal/httputil"
	"rollermate/internal/model"
	"rollermate/internal/service"
)

type FollowHandler struct {
	followService *service.FollowService
}

func NewFollowHandler(followService *service.FollowService) *FollowHandler {
	return &FollowHandler{
		followService: followService,
	}
}

// Toggle handles POST /profiles/{id}/follow/toggle
// The body carries what the client currently shows; the response is the
// confirmed state to reconcile with.
func (h *FollowHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	followerID, ok := requireUser(w, r)
	if !ok {
		return
	}
	targetID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req model.FollowToggleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.followService.Toggle(r.Context(), followerID, targetID, req.IsFollowing)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// GetFollowers handles GET /profiles/{id}/followers?cursor=&limit=
func (h *FollowHandler) GetFollowers(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.followService.Followers)
}

// GetFollowing handles GET /profiles/{id}/following?cursor=&limit=
func (h *FollowHandler) GetFollowing(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.followService.Following)
}

type followPage func(ctx context.Context, userID string, cursor *time.Time, limit int, viewerID string) (*model.FollowListResponse, error)

func (h *FollowHandler) list(w http.ResponseWriter, r *http.Request, page followPage) {
	userID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var cursor *time.Time
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			httputil.WriteBadRequest(w, "Invalid cursor format")
			return
		}
		cursor = &parsed
	}

	limit, err := httputil.QueryInt(r, "limit")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	resp, err := page(r.Context(), userID, cursor, limit, viewerID(r))
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
