package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Pain0402/CoolStyle/services/api/internal/domain"
	"github.com/Pain0402/CoolStyle/services/api/internal/observability"
)

const (
	codeMethodNotAllowed      = "method_not_allowed"
	codeNotFound              = "not_found"
	codeInvalidRequestBody    = "invalid_request_body"
	codeValidationFailed      = "validation_failed"
	codeInvalidID             = "invalid_id"
	codeInvalidIdempotencyKey = "invalid_idempotency_key"
	codeEmptyCart             = "empty_cart"
	codeInvalidQuantity       = "invalid_quantity"
	codeInvalidPrice          = "invalid_price"
	codeInvalidPaymentMethod  = "invalid_payment_method"
	codeInvalidStatus         = "invalid_status"
	codeCustomerInfoRequired  = "customer_info_required"
	codeInvalidCallback       = "invalid_callback"
	codeInvalidSignature      = "invalid_signature"
	codeAmountMismatch        = "amount_mismatch"
	codePaymentNotPayable     = "payment_not_payable"
	codeInvalidTransition     = "invalid_transition"
	codeOrderNotFound         = "order_not_found"
	codeProductNotFound       = "product_not_found"
	codeVariantNotFound       = "variant_not_found"
	codeConflict              = "conflict"
	codeIdempotencyConflict   = "idempotency_conflict"
	codeCatalogUnavailable    = "catalog_unavailable"
	codeUnauthorized          = "unauthorized"
	codeForbidden             = "forbidden"
	codeInternalError         = "internal_error"
)

const (
	statusSuccess = "success"
	statusFail    = "fail"
	statusError   = "error"
)

type envelope struct {
	Status    string         `json:"status"`
	Data      any            `json:"data,omitempty"`
	Message   string         `json:"message,omitempty"`
	Code      string         `json:"code,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Status: statusSuccess, Data: data, Message: msg})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	writeErrorDetails(w, r, status, code, msg, nil)
}

func writeErrorDetails(w http.ResponseWriter, r *http.Request, status int, code, msg string, details map[string]any) {
	env := envelope{
		Status:  statusFail,
		Message: msg,
		Code:    code,
		Details: details,
	}
	if status >= http.StatusInternalServerError {
		env.Status = statusError
	}
	if r != nil {
		env.RequestID = middleware.GetReqID(r.Context())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	payload, err := json.Marshal(env)
	if err != nil {
		_, _ = w.Write([]byte(`{"status":"error","message":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

var errorTable = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrEmptyCart, http.StatusBadRequest, codeEmptyCart},
	{domain.ErrInvalidQuantity, http.StatusBadRequest, codeInvalidQuantity},
	{domain.ErrInvalidPrice, http.StatusUnprocessableEntity, codeInvalidPrice},
	{domain.ErrInvalidPaymentMethod, http.StatusBadRequest, codeInvalidPaymentMethod},
	{domain.ErrInvalidStatus, http.StatusBadRequest, codeInvalidStatus},
	{domain.ErrCustomerInfoRequired, http.StatusBadRequest, codeCustomerInfoRequired},
	{domain.ErrInvalidID, http.StatusBadRequest, codeInvalidID},
	{domain.ErrInvalidCallback, http.StatusBadRequest, codeInvalidCallback},
	{domain.ErrInvalidSignature, http.StatusBadRequest, codeInvalidSignature},
	{domain.ErrAmountMismatch, http.StatusBadRequest, codeAmountMismatch},
	{domain.ErrPaymentNotPayable, http.StatusBadRequest, codePaymentNotPayable},
	{domain.ErrInvalidTransition, http.StatusConflict, codeInvalidTransition},
	{domain.ErrOrderNotFound, http.StatusNotFound, codeOrderNotFound},
	{domain.ErrProductNotFound, http.StatusNotFound, codeProductNotFound},
	{domain.ErrVariantNotFound, http.StatusNotFound, codeVariantNotFound},
	{domain.ErrIdempotencyConflict, http.StatusConflict, codeIdempotencyConflict},
	{domain.ErrConflict, http.StatusConflict, codeConflict},
	{domain.ErrCatalogUnavailable, http.StatusServiceUnavailable, codeCatalogUnavailable},
}

// writeDomainError maps an application error onto the envelope. Storage and unknown
// failures are logged and reported without their cause.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	for _, e := range errorTable {
		if !errors.Is(err, e.err) {
			continue
		}
		var details map[string]any
		var notFound *domain.ProductNotFoundError
		if errors.As(err, &notFound) {
			details = map[string]any{"product_id": notFound.ProductID}
		}
		var transition *domain.InvalidTransitionError
		if errors.As(err, &transition) {
			details = map[string]any{
				"from":    transition.From,
				"to":      transition.To,
				"allowed": domain.NextStatuses(transition.From),
			}
		}
		msg := err.Error()
		if e.status >= http.StatusInternalServerError {
			msg = e.err.Error()
			observability.FromContext(r.Context()).Warn("upstream dependency failed", zap.Error(err))
		}
		writeErrorDetails(w, r, e.status, e.code, msg, details)
		return
	}

	observability.FromContext(r.Context()).Error("request failed",
		zap.Error(err),
		zap.String("kind", domain.KindOf(err).String()),
	)
	writeError(w, r, http.StatusInternalServerError, codeInternalError, "internal error")
}
