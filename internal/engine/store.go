package engine

import "github.com/tradecraft/tradecraft/internal/domain"

// OrderStore is the durable system of record the matching engine writes
// through to. Every state transition must be durable before the engine
// acknowledges it; implementations that cannot reach their backing store
// return an error wrapping domain.ErrStoreUnavailable and the engine
// rolls the in-memory mutation back.
type OrderStore interface {
	// Persist inserts or updates a single order record.
	Persist(order *domain.Order) error

	// ApplyMatch atomically persists the taker order, every maker order
	// touched during the matching pass, and the resulting fills. Either
	// all records become durable or none do.
	ApplyMatch(taker *domain.Order, makers []*domain.Order, fills []*domain.Fill) error

	// Get returns the order with the given ID, or domain.ErrOrderNotFound.
	Get(id string) (*domain.Order, error)

	// LoadOpenOrders returns the symbol's non-terminal orders in ascending
	// sequence order, sufficient to rebuild the book's FIFO structure.
	LoadOpenOrders(symbol string) ([]*domain.Order, error)

	// OpenSymbols returns every symbol that has at least one open order.
	OpenSymbols() ([]string, error)

	// MaxSequence returns the highest sequence number ever persisted,
	// or 0 for an empty store. Seeds the sequencer on startup.
	MaxSequence() (uint64, error)
}
