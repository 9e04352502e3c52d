// Package user_api exposes account management over HTTP.
package user_api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"gatekeeper/internal/auth"
	"gatekeeper/internal/errs"
	"gatekeeper/internal/users"
	"gatekeeper/internal/utils"
)

type Handler struct {
	Users *users.UserService
}

func NewHandler(svc *users.UserService) *Handler {
	return &Handler{Users: svc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{userID}", h.Get)
	r.Put("/{userID}", h.Update)
	r.Put("/{userID}/password", h.ChangePassword)
	r.Post("/{userID}/deactivate", h.Deactivate)
	r.Delete("/{userID}", h.Delete)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req users.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, errs.Validation("invalid request body"))
		return
	}

	user, err := h.Users.Create(r.Context(), req, auth.CurrentUser(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("user created", user))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := users.ListOptions{
		Page:   intQuery(q.Get("page"), 1),
		Limit:  intQuery(q.Get("limit"), 50),
		Role:   q.Get("role"),
		Search: q.Get("search"),
	}
	if v := q.Get("active"); v != "" {
		active := v == "true"
		opts.Active = &active
	}

	list, total, err := h.Users.List(r.Context(), opts, auth.CurrentUser(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("users", map[string]interface{}{
		"users":      list,
		"pagination": utils.NewPagination(opts.Page, opts.Limit, total),
	}))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	user, err := h.Users.Get(r.Context(), id, auth.CurrentUser(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("user", user))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	var req users.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, errs.Validation("invalid request body"))
		return
	}

	user, err := h.Users.Update(r.Context(), id, req, auth.CurrentUser(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("user updated", user))
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, errs.Validation("invalid request body"))
		return
	}

	if err := h.Users.ChangePassword(r.Context(), id, req.CurrentPassword, req.NewPassword, auth.CurrentUser(r.Context())); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("password changed", nil))
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	if err := h.Users.Deactivate(r.Context(), id, auth.CurrentUser(r.Context())); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("user deactivated", nil))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	if err := h.Users.Purge(r.Context(), id, auth.CurrentUser(r.Context())); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("user deleted", nil))
}

func userID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		return 0, errs.Validation("invalid user id")
	}
	return id, nil
}

func intQuery(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
