package domain

import "time"

type DayVolume struct {
	Date       string `json:"date"`
	OrderCount int    `json:"order_count"`
}

type DayRevenue struct {
	Date    string `json:"date"`
	Revenue Money  `json:"revenue_cents"`
}

type ItemSales struct {
	MenuItemID   int64  `json:"menu_item_id"`
	Name         string `json:"name"`
	QuantitySold int    `json:"quantity_sold"`
	Revenue      Money  `json:"revenue_cents"`
}

type HourVolume struct {
	Hour       int `json:"hour"`
	OrderCount int `json:"order_count"`
}

type StatusCounts struct {
	Pending   int `json:"pending_orders"`
	Confirmed int `json:"confirmed_orders"`
	Preparing int `json:"preparing_orders"`
	Ready     int `json:"ready_orders"`
	Completed int `json:"completed_orders"`
	Cancelled int `json:"cancelled_orders"`
	Active    int `json:"active_orders"`
}

// CanteenStats is derived from order history on every request and never stored.
type CanteenStats struct {
	CanteenID int64      `json:"canteen_id"`
	From      *time.Time `json:"from,omitempty"`
	To        *time.Time `json:"to,omitempty"`
	StatusCounts
	TotalOrders            int          `json:"total_orders"`
	TotalRevenue           Money        `json:"total_revenue_cents"`
	AverageOrderValue      Money        `json:"average_order_value_cents"`
	OrderVolumeByDay       []DayVolume  `json:"order_volume_by_day"`
	RevenueByDay           []DayRevenue `json:"revenue_by_day"`
	BestSellingItems       []ItemSales  `json:"best_selling_items"`
	OrdersByHour           []HourVolume `json:"order_by_time_of_day"`
	TodayOrders            int          `json:"today_orders"`
	TodayRevenue           Money        `json:"today_revenue_cents"`
	AveragePreparationTime float64      `json:"average_preparation_minutes"`
}
