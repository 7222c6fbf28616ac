package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Pain0402/CoolStyle/services/api/internal/app"
	"github.com/Pain0402/CoolStyle/services/api/internal/domain"
)

// AdminService is the minimal interface needed for back-office reads.
type AdminService interface {
	ListOrders(ctx context.Context, in app.ListOrdersInput) ([]domain.Order, error)
	Revenue(ctx context.Context) (app.RevenueReport, error)
}

// StatusUpdater moves an order along the fulfillment transition table.
type StatusUpdater interface {
	Transition(ctx context.Context, orderID int64, to domain.FulfillmentStatus) (domain.Order, error)
}

type AdminHandler struct {
	admin  AdminService
	status StatusUpdater
}

func NewAdminHandler(admin AdminService, status StatusUpdater) *AdminHandler {
	return &AdminHandler{admin: admin, status: status}
}

type listOrdersResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// ListOrders handles GET /api/orders/admin?limit=&offset=.
func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	offset, ok := queryInt(w, r, "offset")
	if !ok {
		return
	}

	in := app.ListOrdersInput{Limit: limit, Offset: offset}.Normalized()
	orders, err := h.admin.ListOrders(r.Context(), in)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listOrdersResponse{
		Orders: newOrderResponses(orders),
		Limit:  in.Limit,
		Offset: in.Offset,
	}, "")
}

// UpdateStatus handles PUT /api/orders/admin/{id}/status.
func (h *AdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}
	to, err := domain.ParseFulfillmentStatus(string(req.Status))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	order, err := h.status.Transition(r.Context(), id, to)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(order), "order status updated")
}

// Revenue handles GET /api/admin/dashboard/revenue.
func (h *AdminHandler) Revenue(w http.ResponseWriter, r *http.Request) {
	report, err := h.admin.Revenue(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newRevenueResponse(report), "")
}

func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, r, http.StatusBadRequest, codeValidationFailed, "invalid "+name)
		return 0, false
	}
	return n, true
}
