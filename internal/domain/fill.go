package domain

import "time"

// Fill records a single match between an incoming (taker) order and a
// resting (maker) order. Fills execute at the maker's price and are
// immutable once created.
type Fill struct {
	MakerOrderID string    `json:"maker_order_id"`
	TakerOrderID string    `json:"taker_order_id"`
	Symbol       string    `json:"symbol"`
	Price        int64     `json:"price"` // cents, always the maker's price
	Quantity     int64     `json:"quantity"`
	Sequence     uint64    `json:"sequence"`
	ExecutedAt   time.Time `json:"executed_at"`
}
