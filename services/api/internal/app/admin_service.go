package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Pain0402/CoolStyle/services/api/internal/clock"
	"github.com/Pain0402/CoolStyle/services/api/internal/domain"
)

// AdminRepository serves the read-only back-office queries over orders.
type AdminRepository interface {
	ListOrders(ctx context.Context, limit, offset int) ([]domain.Order, error)
	CountOrders(ctx context.Context) (int64, error)
	SumRevenue(ctx context.Context) (decimal.Decimal, error)
	DailyRevenue(ctx context.Context, since time.Time) ([]domain.DailyRevenue, error)
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
	revenueDays      = 7
	recentOrders     = 5
)

type AdminService struct {
	repo  AdminRepository
	clock clock.Clock
}

func NewAdminService(repo AdminRepository, clk clock.Clock) *AdminService {
	return &AdminService{
		repo:  repo,
		clock: clk,
	}
}

type ListOrdersInput struct {
	Limit  int
	Offset int
}

// Normalized applies the default page size and clamps out-of-range values.
func (in ListOrdersInput) Normalized() ListOrdersInput {
	if in.Limit <= 0 {
		in.Limit = defaultListLimit
	}
	if in.Limit > maxListLimit {
		in.Limit = maxListLimit
	}
	if in.Offset < 0 {
		in.Offset = 0
	}
	return in
}

// ListOrders returns orders newest first.
func (s *AdminService) ListOrders(ctx context.Context, in ListOrdersInput) ([]domain.Order, error) {
	in = in.Normalized()
	orders, err := s.repo.ListOrders(ctx, in.Limit, in.Offset)
	if err != nil {
		return nil, persistenceError("list orders", err)
	}
	return orders, nil
}

type RevenueReport struct {
	TotalOrders  int64
	TotalRevenue decimal.Decimal
	Daily        []domain.DailyRevenue
	Recent       []domain.Order
}

// Revenue summarises order volume for the dashboard. Cancelled orders carry no revenue.
// Daily always has one entry per day of the trailing week, oldest first.
func (s *AdminService) Revenue(ctx context.Context) (RevenueReport, error) {
	total, err := s.repo.CountOrders(ctx)
	if err != nil {
		return RevenueReport{}, persistenceError("count orders", err)
	}
	revenue, err := s.repo.SumRevenue(ctx)
	if err != nil {
		return RevenueReport{}, persistenceError("sum revenue", err)
	}

	today := truncateDay(s.clock.Now())
	since := today.AddDate(0, 0, -(revenueDays - 1))
	rows, err := s.repo.DailyRevenue(ctx, since)
	if err != nil {
		return RevenueReport{}, persistenceError("daily revenue", err)
	}
	byDay := make(map[time.Time]decimal.Decimal, len(rows))
	for _, row := range rows {
		day := truncateDay(row.Date)
		byDay[day] = byDay[day].Add(row.Revenue)
	}
	daily := make([]domain.DailyRevenue, 0, revenueDays)
	for d := since; !d.After(today); d = d.AddDate(0, 0, 1) {
		daily = append(daily, domain.DailyRevenue{Date: d, Revenue: byDay[d]})
	}

	recent, err := s.repo.ListOrders(ctx, recentOrders, 0)
	if err != nil {
		return RevenueReport{}, persistenceError("list recent orders", err)
	}

	return RevenueReport{
		TotalOrders:  total,
		TotalRevenue: revenue,
		Daily:        daily,
		Recent:       recent,
	}, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
