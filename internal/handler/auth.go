package handler

import (
	"net/http"

	"rollermate/internal/httputil"
	"rollermate/internal/model"
	"rollermate/internal/service"
	"rollermate/internal/session"
)

type AuthHandler struct {
	authService    *service.AuthService
	profileService *service.ProfileService
}

func NewAuthHandler(authService *service.AuthService, profileService *service.ProfileService) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		profileService: profileService,
	}
}

// SignUp handles POST /auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req model.SignUpRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	resp, err := h.authService.SignUp(r.Context(), &req, h.client(r))
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

// SignIn handles POST /auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req model.SignInRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.WriteBadRequest(w, "Email and password are required")
		return
	}

	resp, err := h.authService.SignIn(r.Context(), &req, h.client(r))
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Refresh handles POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req model.RefreshRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if req.RefreshToken == "" {
		httputil.WriteBadRequest(w, "Refresh token is required")
		return
	}

	pair, err := h.authService.Refresh(r.Context(), req.RefreshToken, h.client(r))
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pair)
}

// SignOut handles POST /auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Not authenticated")
		return
	}

	var req model.SignOutRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.authService.SignOut(r.Context(), sess, req.RefreshToken); err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Signed out"})
}

// SignOutAll handles POST /auth/signout-all
func (h *AuthHandler) SignOutAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.authService.SignOutAll(r.Context(), userID); err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Signed out from all devices"})
}

// Me handles GET /me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	profile, err := h.profileService.GetProfile(r.Context(), userID, &userID)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

func (h *AuthHandler) client(r *http.Request) service.ClientInfo {
	return service.ClientInfo{DeviceInfo: r.Header.Get("User-Agent"), IPAddress: clientIP(r)}
}
