// Package auth_api exposes the credential service over HTTP.
package auth_api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"gatekeeper/internal/auth"
	"gatekeeper/internal/errs"
	"gatekeeper/internal/utils"
)

type Handler struct {
	Auth *auth.AuthService
}

func NewHandler(svc *auth.AuthService) *Handler {
	return &Handler{Auth: svc}
}

// RegisterPublic mounts the routes that work without a bearer token.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/auth/login", h.Login)
	r.Post("/auth/refresh", h.Refresh)
}

// RegisterRoutes mounts the authenticated routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/logout", h.Logout)
	r.Get("/auth/me", h.Me)
	r.Get("/auth/verify", h.VerifyToken)
	r.Post("/auth/revoke-all", h.RevokeAll)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, errs.Validation("invalid request body"))
		return
	}
	if req.Username == "" || req.Password == "" {
		utils.WriteError(w, errs.Validation("username and password are required"))
		return
	}

	result, err := h.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("login successful", result))
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	user := auth.CurrentUser(r.Context())
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		utils.WriteError(w, errs.Validation("refresh_token is required"))
		return
	}

	if err := h.Auth.Logout(r.Context(), user.ID, req.RefreshToken); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("logged out", nil))
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		utils.WriteError(w, errs.Validation("refresh_token is required"))
		return
	}

	result, err := h.Auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("token refreshed", result))
}

// Me returns the authenticated user loaded by the middleware.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.CurrentUser(r.Context())
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("current user", user))
}

// VerifyToken is a liveness check for an access token; reaching it at
// all means the middleware accepted the token.
func (h *Handler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	user := auth.CurrentUser(r.Context())
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("token valid", map[string]interface{}{
		"user_id": user.ID,
		"role":    user.Role,
	}))
}

func (h *Handler) RevokeAll(w http.ResponseWriter, r *http.Request) {
	user := auth.CurrentUser(r.Context())
	if err := h.Auth.RevokeAll(r.Context(), user.ID); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("all sessions revoked", nil))
}
