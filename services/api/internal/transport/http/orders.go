package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Pain0402/CoolStyle/services/api/internal/app"
	"github.com/Pain0402/CoolStyle/services/api/internal/auth"
	"github.com/Pain0402/CoolStyle/services/api/internal/domain"
	"github.com/Pain0402/CoolStyle/services/api/internal/observability"
	"github.com/Pain0402/CoolStyle/services/api/internal/payment"
)

const (
	idempotencyHeader       = "Idempotency-Key"
	maxIdempotencyKeyLength = 128
	maxRequestBody          = 1 << 20
)

// OrderService is the minimal interface needed by the storefront order endpoints.
type OrderService interface {
	PlaceOrder(ctx context.Context, in app.PlaceOrderInput) (app.PlaceOrderResult, error)
	GetOrder(ctx context.Context, id int64) (domain.Order, error)
}

type PaymentLinker interface {
	PaymentURL(ctx context.Context, orderID int64) (string, error)
}

type PaymentReconciler interface {
	Reconcile(ctx context.Context, cb app.Callback) (app.ReconcileResult, error)
}

// CallbackVerifier checks the gateway signature on callback parameters.
type CallbackVerifier interface {
	Verify(values url.Values) error
}

// RedirectTargets are the storefront pages the payment callback lands the shopper on.
type RedirectTargets struct {
	Success string
	Failure string
}

type OrderHandler struct {
	orders     OrderService
	links      PaymentLinker
	reconciler PaymentReconciler
	verifier   CallbackVerifier
	redirects  RedirectTargets
}

func NewOrderHandler(orders OrderService, links PaymentLinker, reconciler PaymentReconciler, verifier CallbackVerifier, redirects RedirectTargets) *OrderHandler {
	return &OrderHandler{
		orders:     orders,
		links:      links,
		reconciler: reconciler,
		verifier:   verifier,
		redirects:  redirects,
	}
}

// CreateOrder handles POST /api/orders.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeErrorDetails(w, r, http.StatusBadRequest, codeValidationFailed, "invalid request", validationDetails(err))
		return
	}

	key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if len(key) > maxIdempotencyKeyLength {
		writeError(w, r, http.StatusBadRequest, codeInvalidIdempotencyKey, "idempotency key too long")
		return
	}

	in, err := req.toInput()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	in.IdempotencyKey = key
	if id, ok := auth.FromContext(r.Context()); ok {
		owner := id.UserID
		in.OwnerUserID = &owner
	}

	res, err := h.orders.PlaceOrder(r.Context(), in)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	status, msg := http.StatusCreated, "order placed"
	if !res.Created {
		status, msg = http.StatusOK, "order already placed"
	}
	writeJSON(w, status, newOrderResponse(res.Order), msg)
}

// GetOrder handles GET /api/orders/{id}. Orders owned by a user are only visible to
// that user and to admins.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if !canView(r.Context(), order) {
		writeDomainError(w, r, domain.ErrOrderNotFound)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(order), "")
}

func canView(ctx context.Context, order domain.Order) bool {
	if order.OwnerUserID == nil {
		return true
	}
	id, ok := auth.FromContext(ctx)
	if !ok {
		return false
	}
	return id.IsAdmin() || id.UserID == *order.OwnerUserID
}

// PaymentURL handles GET /api/orders/{id}/pay. Visibility follows GetOrder.
func (h *OrderHandler) PaymentURL(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if !canView(r.Context(), order) {
		writeDomainError(w, r, domain.ErrOrderNotFound)
		return
	}
	link, err := h.links.PaymentURL(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"payment_url": link}, "")
}

// PaymentCallback handles the gateway return. Verified results are applied and the
// shopper is redirected to the storefront success or failure page.
func (h *OrderHandler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	if err := h.verifier.Verify(values); err != nil {
		observability.FromContext(r.Context()).Warn("payment callback rejected",
			zap.String("txn_ref", values.Get(payment.ParamTxnRef)),
			zap.Error(err),
		)
		writeDomainError(w, r, err)
		return
	}

	amount, err := payment.ParseAmount(values.Get(payment.ParamAmount))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	res, err := h.reconciler.Reconcile(r.Context(), app.Callback{
		OrderRef:      values.Get(payment.ParamTxnRef),
		ResponseCode:  values.Get(payment.ParamResponseCode),
		TransactionID: values.Get(payment.ParamTransactionNo),
		Amount:        amount,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	target := h.redirects.Failure
	if res.Paid() {
		target = h.redirects.Success
	}
	http.Redirect(w, r, withOrderID(target, res.Order.ID), http.StatusFound)
}

func withOrderID(target string, id int64) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	q.Set("orderId", strconv.FormatInt(id, 10))
	u.RawQuery = q.Encode()
	return u.String()
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, codeInvalidID, domain.ErrInvalidID.Error())
		return 0, false
	}
	return id, true
}

func validationDetails(err error) map[string]any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return map[string]any{"fields": fields}
}
