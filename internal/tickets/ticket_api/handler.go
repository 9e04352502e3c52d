// Package ticket_api exposes issuance, lookup and scan validation over
// HTTP. Handlers stay thin: decode, call the service, write the
// envelope. Scan business outcomes (already used, unknown ticket) are
// 200 responses with success=false, not HTTP errors.
package ticket_api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"gatekeeper/internal/auth"
	"gatekeeper/internal/errs"
	"gatekeeper/internal/orders"
	"gatekeeper/internal/tickets/db"
	tickets "gatekeeper/internal/tickets/service"
	"gatekeeper/internal/utils"
)

type Handler struct {
	Tickets *tickets.TicketService
	Orders  *orders.OrderService
}

func NewHandler(ticketSvc *tickets.TicketService, orderSvc *orders.OrderService) *Handler {
	return &Handler{Tickets: ticketSvc, Orders: orderSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{ticketID}", h.Get)
	r.Post("/{ticketID}/scan", h.Scan)
	r.Post("/{ticketID}/sent", h.MarkSent)
	r.Post("/bulk-sent", h.MarkSentBatch)
	r.Delete("/{ticketID}", h.Delete)
	r.Get("/order/{orderID}", h.ByOrder)
	r.Get("/{ticketID}/message", h.DeliveryMessage)
}

// Create issues a batch of tickets as one order.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req orders.IssueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, errs.Validation("invalid request body"))
		return
	}

	result, err := h.Orders.Issue(r.Context(), req, auth.CurrentUser(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("tickets created", result))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := db.ListOptions{
		Page:     intQuery(q.Get("page"), 1),
		Limit:    intQuery(q.Get("limit"), 50),
		OrderID:  q.Get("order_id"),
		Category: q.Get("category"),
	}
	if v := q.Get("used"); v != "" {
		used := v == "true"
		opts.Used = &used
	}
	if v := q.Get("sent"); v != "" {
		sent := v == "true"
		opts.Sent = &sent
	}
	if v := q.Get("created_by"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			opts.CreatedBy = id
		}
	}

	list, total, err := h.Tickets.List(r.Context(), opts, auth.CurrentUser(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("tickets", map[string]interface{}{
		"tickets":    list,
		"pagination": utils.NewPagination(opts.Page, opts.Limit, total),
	}))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.Tickets.Get(r.Context(), chi.URLParam(r, "ticketID"), auth.CurrentUser(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("ticket", ticket))
}

// Scan validates a ticket at the gate. Both outcomes are 200; the
// success flag tells the scanner device what to display.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.Tickets.Scan(r.Context(), chi.URLParam(r, "ticketID"), auth.CurrentUser(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	resp := utils.APIResponse{
		Success:   outcome.Success,
		Message:   outcome.Message,
		Data:      outcome,
		Timestamp: time.Now(),
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) MarkSent(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.Tickets.MarkSent(r.Context(), chi.URLParam(r, "ticketID"), auth.CurrentUser(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("ticket marked as sent", ticket))
}

func (h *Handler) MarkSentBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TicketIDs []string `json:"ticket_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.TicketIDs) == 0 {
		utils.WriteError(w, errs.Validation("ticket_ids is required"))
		return
	}

	result, err := h.Tickets.MarkSentBatch(r.Context(), req.TicketIDs, auth.CurrentUser(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("batch processed", result))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Tickets.Delete(r.Context(), chi.URLParam(r, "ticketID"), auth.CurrentUser(r.Context())); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("ticket deleted", nil))
}

func (h *Handler) ByOrder(w http.ResponseWriter, r *http.Request) {
	list, err := h.Tickets.ByOrder(r.Context(), chi.URLParam(r, "orderID"), auth.CurrentUser(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("order tickets", list))
}

func (h *Handler) DeliveryMessage(w http.ResponseWriter, r *http.Request) {
	message, err := h.Tickets.DeliveryMessage(r.Context(), chi.URLParam(r, "ticketID"), auth.CurrentUser(r.Context()))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("delivery message", map[string]string{"message": message}))
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
