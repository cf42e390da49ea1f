package domain

import "time"

// Order is one purchased product. It is never modified after creation.
type Order struct {
	ID               string
	UserID           string
	ProductID        string
	PricePaidInCents int64
	CreatedAt        time.Time
}

// OrderDetails joins an order with the names shown in listings.
type OrderDetails struct {
	Order
	ProductName string
	UserEmail   string
}

type SalesStats struct {
	ProductCount           int64
	AvailableProductCount  int64
	OrderCount             int64
	UserCount              int64
	RevenueInCents         int64
	AverageOrderValueCents int64
}
