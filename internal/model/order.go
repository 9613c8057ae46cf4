package model

import "time"

// OrderStatus is the lifecycle state of a paper order.
type OrderStatus string

const (
	OrderPending  OrderStatus = "pending"
	OrderFilled   OrderStatus = "filled"
	OrderRejected OrderStatus = "rejected"
)

// Order is a paper-trading order. LimitPrice == 0 means market order.
type Order struct {
	OrderID     string      `json:"order_id"`
	Symbol      string      `json:"symbol"`
	Side        Action      `json:"side"` // buy or sell
	Quantity    float64     `json:"quantity"`
	LimitPrice  float64     `json:"limit_price"` // 0 for market
	Status      OrderStatus `json:"status"`
	FilledQty   float64     `json:"filled_qty"`
	FilledPrice float64     `json:"filled_price"`
	Reason      string      `json:"reason,omitempty"` // rejection reason
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
