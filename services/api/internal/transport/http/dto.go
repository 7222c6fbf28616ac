package http

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"

	"github.com/Pain0402/CoolStyle/services/api/internal/app"
	"github.com/Pain0402/CoolStyle/services/api/internal/domain"
)

var (
	validate  = newValidator()
	sanitizer = bluemonday.StrictPolicy()
)

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// enumValue accepts either a JSON string or a JSON number, so the storefront can send
// "COD" and the legacy admin client can send 0.
type enumValue string

func (e *enumValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*e = enumValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*e = enumValue(n.String())
	return nil
}

type createOrderItem struct {
	ProductID int64  `json:"product_id"`
	VariantID *int64 `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

type createOrderRequest struct {
	CustomerName    string            `json:"customer_name" validate:"max=200"`
	CustomerEmail   string            `json:"customer_email" validate:"omitempty,email,max=254"`
	PhoneNumber     string            `json:"phone_number" validate:"omitempty,max=32"`
	ShippingAddress string            `json:"shipping_address" validate:"max=500"`
	Note            string            `json:"note" validate:"max=1000"`
	PaymentMethod   enumValue         `json:"payment_method"`
	Items           []createOrderItem `json:"items"`
}

func clean(s string) string {
	return strings.TrimSpace(sanitizer.Sanitize(s))
}

func (req createOrderRequest) toInput() (app.PlaceOrderInput, error) {
	method, err := domain.ParsePaymentMethod(string(req.PaymentMethod))
	if err != nil {
		return app.PlaceOrderInput{}, err
	}
	lines := make([]app.CartLine, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, app.CartLine{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
		})
	}
	return app.PlaceOrderInput{
		Customer: domain.Customer{
			Name:            clean(req.CustomerName),
			Email:           strings.TrimSpace(req.CustomerEmail),
			Phone:           strings.TrimSpace(req.PhoneNumber),
			ShippingAddress: clean(req.ShippingAddress),
			Note:            clean(req.Note),
		},
		PaymentMethod: method,
		Lines:         lines,
	}, nil
}

type updateStatusRequest struct {
	Status enumValue `json:"status"`
}

type orderLineResponse struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"product_id"`
	VariantID   *int64          `json:"variant_id,omitempty"`
	ProductName string          `json:"product_name"`
	SKU         string          `json:"sku"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type orderResponse struct {
	ID              int64               `json:"id"`
	CustomerName    string              `json:"customer_name"`
	CustomerEmail   string              `json:"customer_email"`
	PhoneNumber     string              `json:"phone_number"`
	ShippingAddress string              `json:"shipping_address"`
	Note            string              `json:"note,omitempty"`
	TotalAmount     decimal.Decimal     `json:"total_amount"`
	Status          string              `json:"status"`
	PaymentMethod   string              `json:"payment_method"`
	PaymentStatus   string              `json:"payment_status"`
	TransactionID   *string             `json:"transaction_id,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	Items           []orderLineResponse `json:"items"`
}

func newOrderResponse(o domain.Order) orderResponse {
	items := make([]orderLineResponse, 0, len(o.Lines))
	for _, l := range o.Lines {
		items = append(items, orderLineResponse{
			ID:          l.ID,
			ProductID:   l.ProductID,
			VariantID:   l.VariantID,
			ProductName: l.ProductName,
			SKU:         l.SKU,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			LineTotal:   l.LineTotal(),
		})
	}
	return orderResponse{
		ID:              o.ID,
		CustomerName:    o.Customer.Name,
		CustomerEmail:   o.Customer.Email,
		PhoneNumber:     o.Customer.Phone,
		ShippingAddress: o.Customer.ShippingAddress,
		Note:            o.Customer.Note,
		TotalAmount:     o.TotalAmount,
		Status:          o.FulfillmentStatus.String(),
		PaymentMethod:   o.PaymentMethod.String(),
		PaymentStatus:   o.PaymentStatus.String(),
		TransactionID:   o.TransactionID,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		Items:           items,
	}
}

func newOrderResponses(orders []domain.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, newOrderResponse(o))
	}
	return out
}

type dailyRevenueResponse struct {
	Date    string          `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
}

type revenueResponse struct {
	TotalOrders  int64                  `json:"total_orders"`
	TotalRevenue decimal.Decimal        `json:"total_revenue"`
	Daily        []dailyRevenueResponse `json:"daily"`
	RecentOrders []orderResponse        `json:"recent_orders"`
}

func newRevenueResponse(r app.RevenueReport) revenueResponse {
	daily := make([]dailyRevenueResponse, 0, len(r.Daily))
	for _, d := range r.Daily {
		daily = append(daily, dailyRevenueResponse{Date: d.Date.Format(time.DateOnly), Revenue: d.Revenue})
	}
	return revenueResponse{
		TotalOrders:  r.TotalOrders,
		TotalRevenue: r.TotalRevenue,
		Daily:        daily,
		RecentOrders: newOrderResponses(r.Recent),
	}
}
