// Package stats_api exposes the reporting rollups over HTTP.
package stats_api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"gatekeeper/internal/auth"
	"gatekeeper/internal/stats"
	"gatekeeper/internal/utils"
)

type Handler struct {
	Stats *stats.StatsService
}

func NewHandler(svc *stats.StatsService) *Handler {
	return &Handler{Stats: svc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Global)
	r.Get("/vendors", h.Vendors)
	r.Get("/categories", h.Categories)
	r.Get("/orders", h.Orders)
	r.Get("/orders/{orderID}", h.Order)
	r.Get("/users", h.Users)
	r.Get("/dashboard", h.Dashboard)
}

func (h *Handler) Global(w http.ResponseWriter, r *http.Request) {
	result, err := h.Stats.Global(r.Context(), auth.CurrentUser(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("global stats", result))
}

func (h *Handler) Vendors(w http.ResponseWriter, r *http.Request) {
	result, err := h.Stats.Vendors(r.Context(), auth.CurrentUser(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("vendor stats", result))
}

func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	result, err := h.Stats.ByCategory(r.Context(), auth.CurrentUser(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("category stats", result))
}

func (h *Handler) Orders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := intQuery(q.Get("page"), 1)
	limit := intQuery(q.Get("limit"), 50)

	result, err := h.Stats.Orders(r.Context(), auth.CurrentUser(r.Context()), page, limit)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("orders", result))
}

func (h *Handler) Order(w http.ResponseWriter, r *http.Request) {
	result, err := h.Stats.Order(r.Context(), auth.CurrentUser(r.Context()), chi.URLParam(r, "orderID"))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("order stats", result))
}

func (h *Handler) Users(w http.ResponseWriter, r *http.Request) {
	result, err := h.Stats.Users(r.Context(), auth.CurrentUser(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("user stats", result))
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	result, err := h.Stats.GetDashboard(r.Context(), auth.CurrentUser(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("dashboard", result))
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
