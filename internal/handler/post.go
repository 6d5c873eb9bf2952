package handler

import (
	"net/http"
	"strconv"
	"strings"

	"rollermate/internal/httputil"
	"rollermate/internal/model"
	"rollermate/internal/service"
)

type PostHandler struct {
	postService *service.PostService
}

func NewPostHandler(postService *service.PostService) *PostHandler {
	return &PostHandler{
		postService: postService,
	}
}

// createPostBody is the JSON form of a text-only post.
type createPostBody struct {
	Content        string          `json:"content"`
	Location       *model.Location `json:"location"`
	LocationDenied bool            `json:"location_denied"`
}

// Create handles POST /posts
// Accepts multipart/form-data (content, latitude, longitude, location_denied,
// image) or a JSON body for posts without an image.
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var in model.CreatePostInput
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		img, ok := readMultipartImage(w, r, "image", model.MaxPostImageSize)
		if !ok {
			return
		}
		in.Image = img
		in.Content = r.FormValue("content")
		in.LocationDenied, _ = strconv.ParseBool(r.FormValue("location_denied"))
		if lat, lng := r.FormValue("latitude"), r.FormValue("longitude"); lat != "" || lng != "" {
			loc, err := parseLocation(lat, lng)
			if err != nil {
				httputil.WriteDomainError(w, r, err)
				return
			}
			in.Location = loc
		}
	} else {
		var body createPostBody
		if err := httputil.DecodeJSON(r, &body); err != nil {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		in.Content = body.Content
		in.Location = body.Location
		in.LocationDenied = body.LocationDenied
	}

	post, err := h.postService.Create(r.Context(), userID, in)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, post)
}

func parseLocation(lat, lng string) (*model.Location, error) {
	latitude, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return nil, model.ErrInvalidLocation
	}
	longitude, err := strconv.ParseFloat(lng, 64)
	if err != nil {
		return nil, model.ErrInvalidLocation
	}
	return &model.Location{Latitude: latitude, Longitude: longitude}, nil
}

// GetByID handles GET /posts/{id}
func (h *PostHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	postID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	post, err := h.postService.GetByID(r.Context(), postID, viewerID(r))
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, post)
}

// Delete handles DELETE /posts/{id}
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	postID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.postService.Delete(r.Context(), postID, userID); err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleLike handles POST /posts/{id}/like/toggle
func (h *PostHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	postID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req model.LikeToggleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.postService.ToggleLike(r.Context(), postID, userID, req.Liked)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
