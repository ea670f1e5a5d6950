package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fjod/go_cart/canteen/internal/domain"
	"github.com/fjod/go_cart/canteen/internal/policy"
	"github.com/fjod/go_cart/canteen/internal/repository"
	"github.com/shopspring/decimal"
)

const bestSellersLimit = 10

type StatsService struct {
	tx      TxRunner
	orders  OrderStore
	catalog Catalog
	checker *policy.Checker
	opts    options
}

func NewStatsService(tx TxRunner, orders OrderStore, catalog Catalog, checker *policy.Checker, opts ...Option) *StatsService {
	return &StatsService{
		tx:      tx,
		orders:  orders,
		catalog: catalog,
		checker: checker,
		opts:    buildOptions(opts),
	}
}

// GetCanteenStats aggregates the canteen's orders placed in [from, to). Nil bounds are open.
func (s *StatsService) GetCanteenStats(ctx context.Context, actorID, canteenID int64, from, to *time.Time) (*domain.CanteenStats, error) {
	if _, err := s.catalog.GetCanteen(ctx, canteenID); err != nil {
		return nil, err
	}
	if err := s.checker.CanManageCanteen(ctx, actorID, canteenID); err != nil {
		return nil, err
	}
	if from != nil && to != nil && !from.Before(*to) {
		return nil, fmt.Errorf("stats range is empty: %w", domain.ErrValidation)
	}

	orders, err := s.orders.ListOrders(ctx, s.tx.Reader(), repository.OrderFilter{
		CanteenID: canteenID,
		From:      from,
		To:        to,
	})
	if err != nil {
		return nil, err
	}

	stats := Aggregate(orders, s.opts.clock(), s.opts.loc)
	stats.CanteenID = canteenID
	stats.From = from
	stats.To = to
	return stats, nil
}

// Aggregate derives statistics from a set of orders. Calendar days and hours are taken in loc.
// It has no side effects.
func Aggregate(orders []*domain.Order, now time.Time, loc *time.Location) *domain.CanteenStats {
	if loc == nil {
		loc = time.UTC
	}
	today := now.In(loc).Format(time.DateOnly)

	stats := &domain.CanteenStats{
		TotalOrders:  len(orders),
		OrdersByHour: make([]domain.HourVolume, 24),
	}
	for h := range stats.OrdersByHour {
		stats.OrdersByHour[h].Hour = h
	}

	volume := make(map[string]int)
	revenue := make(map[string]domain.Money)
	items := make(map[int64]*domain.ItemSales)
	var (
		revenueOrders int
		prepTotal     time.Duration
		prepCount     int
	)

	for _, o := range orders {
		countStatus(&stats.StatusCounts, o.Status)

		placed := o.OrderTime.In(loc)
		day := placed.Format(time.DateOnly)
		volume[day]++
		stats.OrdersByHour[placed.Hour()].OrderCount++
		if day == today {
			stats.TodayOrders++
		}

		if o.EarnsRevenue() {
			revenueOrders++
			stats.TotalRevenue += o.Total
			revenue[day] += o.Total
			if day == today {
				stats.TodayRevenue += o.Total
			}
		}

		if o.Status != domain.OrderStatusCancelled {
			for _, l := range o.Lines {
				it, ok := items[l.MenuItemID]
				if !ok {
					it = &domain.ItemSales{MenuItemID: l.MenuItemID, Name: l.Name}
					items[l.MenuItemID] = it
				}
				it.QuantitySold += l.Quantity
				it.Revenue += l.Total()
			}
		}

		if d, ok := o.PreparationTime(); ok {
			prepTotal += d
			prepCount++
		}
	}

	if revenueOrders > 0 {
		stats.AverageOrderValue = domain.Money(decimal.NewFromInt(int64(stats.TotalRevenue)).
			Div(decimal.NewFromInt(int64(revenueOrders))).
			Round(0).
			IntPart())
	}
	if prepCount > 0 {
		stats.AveragePreparationTime = decimal.NewFromFloat(prepTotal.Minutes()).
			Div(decimal.NewFromInt(int64(prepCount))).
			Round(2).
			InexactFloat64()
	}

	stats.OrderVolumeByDay = make([]domain.DayVolume, 0, len(volume))
	for day, n := range volume {
		stats.OrderVolumeByDay = append(stats.OrderVolumeByDay, domain.DayVolume{Date: day, OrderCount: n})
	}
	sort.Slice(stats.OrderVolumeByDay, func(i, j int) bool {
		return stats.OrderVolumeByDay[i].Date < stats.OrderVolumeByDay[j].Date
	})

	stats.RevenueByDay = make([]domain.DayRevenue, 0, len(revenue))
	for day, amount := range revenue {
		stats.RevenueByDay = append(stats.RevenueByDay, domain.DayRevenue{Date: day, Revenue: amount})
	}
	sort.Slice(stats.RevenueByDay, func(i, j int) bool {
		return stats.RevenueByDay[i].Date < stats.RevenueByDay[j].Date
	})

	stats.BestSellingItems = make([]domain.ItemSales, 0, len(items))
	for _, it := range items {
		stats.BestSellingItems = append(stats.BestSellingItems, *it)
	}
	sort.Slice(stats.BestSellingItems, func(i, j int) bool {
		a, b := stats.BestSellingItems[i], stats.BestSellingItems[j]
		if a.QuantitySold != b.QuantitySold {
			return a.QuantitySold > b.QuantitySold
		}
		if a.Revenue != b.Revenue {
			return a.Revenue > b.Revenue
		}
		return a.MenuItemID < b.MenuItemID
	})
	if len(stats.BestSellingItems) > bestSellersLimit {
		stats.BestSellingItems = stats.BestSellingItems[:bestSellersLimit]
	}

	return stats
}

func countStatus(c *domain.StatusCounts, s domain.OrderStatus) {
	switch s {
	case domain.OrderStatusPending:
		c.Pending++
	case domain.OrderStatusConfirmed:
		c.Confirmed++
	case domain.OrderStatusPreparing:
		c.Preparing++
	case domain.OrderStatusReady:
		c.Ready++
	case domain.OrderStatusDelivered:
		c.Completed++
	case domain.OrderStatusCancelled:
		c.Cancelled++
	}
	if s.IsActive() {
		c.Active++
	}
}
