package app

import (
	"context"

	"github.com/Pain0402/CoolStyle/services/api/internal/domain"
)

// LinkBuilder signs a hosted payment page URL for an order.
type LinkBuilder interface {
	PaymentURL(order domain.Order) (string, error)
}

type PaymentService struct {
	orders *OrderService
	links  LinkBuilder
}

func NewPaymentService(orders *OrderService, links LinkBuilder) *PaymentService {
	return &PaymentService{orders: orders, links: links}
}

// PaymentURL returns the gateway URL for an order still awaiting online payment.
func (s *PaymentService) PaymentURL(ctx context.Context, orderID int64) (string, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	if !order.PaymentMethod.UsesGateway() || order.PaymentStatus != domain.PaymentPending ||
		order.FulfillmentStatus == domain.FulfillmentCancelled {
		return "", domain.ErrPaymentNotPayable
	}
	return s.links.PaymentURL(order)
}
