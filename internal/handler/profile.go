package handler

import (
	"errors"
	"net/http"
	"strings"

	"rollermate/internal/httputil"
	"rollermate/internal/model"
	"rollermate/internal/service"
	"rollermate/internal/storage"
)

type ProfileHandler struct {
	profileService *service.ProfileService
}

func NewProfileHandler(profileService *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

// GetProfile handles GET /profiles/{id}
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profileID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var viewer *string
	if id := viewerID(r); id != "" {
		viewer = &id
	}

	profile, err := h.profileService.GetProfile(r.Context(), profileID, viewer)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

// Search handles GET /profiles/search?q=&limit=
func (h *ProfileHandler) Search(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.QueryInt(r, "limit")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	users, err := h.profileService.Search(r.Context(), r.URL.Query().Get("q"), viewerID(r), limit)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

// UpdateProfile handles PATCH /me/profile
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.UpdateProfileRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	profile, err := h.profileService.UpdateProfile(r.Context(), userID, &req)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

// UpdateAvatar handles PUT /me/avatar (multipart field "avatar").
func (h *ProfileHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	img, ok := readMultipartImage(w, r, "avatar", model.MaxAvatarSizeBytes)
	if !ok {
		return
	}
	if img == nil {
		httputil.WriteBadRequest(w, "Avatar file is required")
		return
	}

	profile, err := h.profileService.UpdateAvatar(r.Context(), userID, img)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

// readMultipartImage parses a multipart form and reads the image in field.
// A missing file yields (nil, true).
func readMultipartImage(w http.ResponseWriter, r *http.Request, field string, maxSize int) (*model.Image, bool) {
	maxFormSize := int64(maxSize) + 1024*1024 // form overhead
	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, http.ErrNotMultipart):
			httputil.WriteBadRequest(w, "Content-Type must be multipart/form-data")
		case errors.As(err, &tooLarge), strings.Contains(err.Error(), "request body too large"):
			httputil.WriteDomainError(w, r, model.ErrFileTooLarge)
		default:
			httputil.WriteBadRequest(w, "Invalid form data")
		}
		return nil, false
	}

	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, true
	}
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid "+field+" upload")
		return nil, false
	}
	defer file.Close()

	img, err := storage.ReadImage(file, header.Header.Get("Content-Type"), int64(maxSize))
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return nil, false
	}
	return img, true
}
