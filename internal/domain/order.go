package domain

import (
	"fmt"
	"time"
)

// OrderType distinguishes limit orders from market orders.
type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
)

// OrderSide indicates whether an order buys or sells.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusRejected        OrderStatus = "REJECTED"
)

// ParseOrderType validates a wire-level order type string.
func ParseOrderType(s string) (OrderType, error) {
	switch OrderType(s) {
	case OrderTypeLimit, OrderTypeMarket:
		return OrderType(s), nil
	}
	return "", fmt.Errorf("unknown order type %q, must be one of: LIMIT, MARKET", s)
}

// ParseOrderSide validates a wire-level order side string.
func ParseOrderSide(s string) (OrderSide, error) {
	switch OrderSide(s) {
	case OrderSideBuy, OrderSideSell:
		return OrderSide(s), nil
	}
	return "", fmt.Errorf("unknown order side %q, must be one of: BUY, SELL", s)
}

// ParseOrderStatus validates a wire-level order status string.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch OrderStatus(s) {
	case OrderStatusNew, OrderStatusPartiallyFilled, OrderStatusFilled,
		OrderStatusCancelled, OrderStatusRejected:
		return OrderStatus(s), nil
	}
	return "", fmt.Errorf("unknown order status %q, must be one of: NEW, PARTIALLY_FILLED, FILLED, CANCELLED, REJECTED", s)
}

// Order represents a buy or sell instruction submitted by a user.
// Identity fields (OrderID, UserID, Symbol, Side, Type, Price, Quantity,
// CreatedAt, Sequence) never change after acceptance; RemainingQuantity
// and Status are mutated only by the matching engine and by cancellation,
// and never again once the order reaches a terminal status.
type Order struct {
	OrderID           string      `json:"order_id"`
	UserID            string      `json:"user_id"`
	Symbol            string      `json:"symbol"`
	Side              OrderSide   `json:"side"`
	Type              OrderType   `json:"type"`
	Price             int64       `json:"price"` // cents, 0 for market orders
	Quantity          int64       `json:"quantity"`
	RemainingQuantity int64       `json:"remaining_quantity"`
	Status            OrderStatus `json:"status"`
	CreatedAt         time.Time   `json:"created_at"`
	Sequence          uint64      `json:"sequence"`
}

// FilledQuantity returns the executed portion of the order.
func (o *Order) FilledQuantity() int64 {
	return o.Quantity - o.RemainingQuantity
}

// IsTerminal reports whether the order can no longer change state.
func (o *Order) IsTerminal() bool {
	switch o.Status {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected:
		return true
	}
	return false
}

// IsOpen reports whether the order is live on (or eligible for) the book.
func (o *Order) IsOpen() bool {
	return o.Status == OrderStatusNew || o.Status == OrderStatusPartiallyFilled
}

// Clone returns a deep copy of the order. The matching engine snapshots
// resting orders before mutating them so a failed durable write can be
// rolled back.
func (o *Order) Clone() *Order {
	c := *o
	return &c
}
