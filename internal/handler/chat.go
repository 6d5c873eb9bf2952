package handler

import (
	"net/http"

	"rollermate/internal/httputil"
	"rollermate/internal/model"
	"rollermate/internal/service"
)

type ChatHandler struct {
	chatService *service.ChatService
}

func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// FindOrCreate handles POST /chats/with/{id}
// Responds 201 when the chat was created and 200 when it already existed.
func (h *ChatHandler) FindOrCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	targetID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	boot, err := h.chatService.FindOrCreate(r.Context(), userID, targetID)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	status := http.StatusOK
	if boot.State == model.ChatStateCreated {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, boot)
}

// List handles GET /chats
func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	chats, err := h.chatService.ListChats(r.Context(), userID)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"chats": chats})
}

// Messages handles GET /chats/{id}/messages?cursor=&limit=
func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	chatID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	limit, err := httputil.QueryInt(r, "limit")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	resp, err := h.chatService.ListMessages(r.Context(), chatID, userID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Send handles POST /chats/{id}/messages
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	chatID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req model.SendMessageRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	msg, err := h.chatService.Send(r.Context(), chatID, userID, req.Content)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, msg)
}

// MarkRead handles POST /chats/{id}/read
func (h *ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	chatID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	n, err := h.chatService.MarkRead(r.Context(), chatID, userID)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int64{"updated": n})
}
