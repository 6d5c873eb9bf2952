package handler

import (
	"net/http"

	"rollermate/internal/httputil"
	"rollermate/internal/model"
	"rollermate/internal/notify"
	"rollermate/internal/service"
)

type NotificationHandler struct {
	notifService *service.NotificationService
}

func NewNotificationHandler(notifService *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{
		notifService: notifService,
	}
}

type notificationListResponse struct {
	Notifications []notify.Item `json:"notifications"`
	UnreadCount   int           `json:"unread_count"`
}

// List handles GET /notifications?limit=
// Returns the newest notifications with display text and navigation target.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	limit, err := httputil.QueryInt(r, "limit")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	resp, items, err := h.notifService.List(r.Context(), userID, limit)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, notificationListResponse{Notifications: items, UnreadCount: resp.UnreadCount})
}

// Badges handles GET /notifications/badges
func (h *NotificationHandler) Badges(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	counts, err := h.notifService.Badges(r.Context(), userID)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, counts)
}

// MarkAllRead handles POST /notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.notifService.MarkAllRead(r.Context(), userID); err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"unread_count": 0})
}

// RegisterToken handles POST /devices/token
func (h *NotificationHandler) RegisterToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.RegisterTokenRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.notifService.RegisterDevice(r.Context(), userID, &req); err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Device registered"})
}

// RemoveToken handles DELETE /devices/token
func (h *NotificationHandler) RemoveToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.RegisterTokenRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if err := h.notifService.UnregisterDevice(r.Context(), userID, req.Token); err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
