package store

import (
	"sync"

	"github.com/tradecraft/tradecraft/internal/domain"
)

// Memory is an in-process OrderStore used by tests and by runs that
// disable durability (DATA_DIR=""). It keeps its own copies of every
// record, so a caller mutating an order after a write does not alter
// what was "persisted" — the same contract a real backing store gives.
type Memory struct {
	mu         sync.RWMutex
	orders     map[string]*domain.Order
	userOrders map[string][]string // user_id → order ids, submission order
	symOrders  map[string][]string // symbol → order ids, submission order
	fills      map[string][]*domain.Fill
	maxSeq     uint64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		orders:     make(map[string]*domain.Order),
		userOrders: make(map[string][]string),
		symOrders:  make(map[string][]string),
		fills:      make(map[string][]*domain.Fill),
	}
}

// Persist inserts or updates a single order record.
func (s *Memory) Persist(order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistLocked(order)
	return nil
}

func (s *Memory) persistLocked(order *domain.Order) {
	if _, exists := s.orders[order.OrderID]; !exists {
		s.userOrders[order.UserID] = append(s.userOrders[order.UserID], order.OrderID)
		s.symOrders[order.Symbol] = append(s.symOrders[order.Symbol], order.OrderID)
	}
	s.orders[order.OrderID] = order.Clone()
	if order.Sequence > s.maxSeq {
		s.maxSeq = order.Sequence
	}
}

// ApplyMatch persists the taker, every touched maker, and the fills as
// one unit. The in-memory store cannot fail halfway, which is exactly
// the atomicity the engine requires.
func (s *Memory) ApplyMatch(taker *domain.Order, makers []*domain.Order, fills []*domain.Fill) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.persistLocked(taker)
	for _, maker := range makers {
		s.persistLocked(maker)
	}
	for _, fill := range fills {
		f := *fill
		s.fills[fill.Symbol] = append(s.fills[fill.Symbol], &f)
		if fill.Sequence > s.maxSeq {
			s.maxSeq = fill.Sequence
		}
	}
	return nil
}

// Get returns a copy of the order with the given ID.
func (s *Memory) Get(id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o.Clone(), nil
}

// LoadOpenOrders returns the symbol's non-terminal orders in ascending
// sequence order. Submission order equals sequence order, so the
// insertion list already carries the right ordering.
func (s *Memory) LoadOpenOrders(symbol string) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var open []*domain.Order
	for _, id := range s.symOrders[symbol] {
		if o := s.orders[id]; o.IsOpen() {
			open = append(open, o.Clone())
		}
	}
	return open, nil
}

// OpenSymbols returns every symbol with at least one open order.
func (s *Memory) OpenSymbols() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var symbols []string
	for symbol, ids := range s.symOrders {
		for _, id := range ids {
			if s.orders[id].IsOpen() {
				symbols = append(symbols, symbol)
				break
			}
		}
	}
	return symbols, nil
}

// ListByUser returns the user's orders newest first.
func (s *Memory) ListByUser(userID string) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.newestFirst(s.userOrders[userID], nil), nil
}

// ListByUserAndStatus returns the user's orders with the given status,
// newest first.
func (s *Memory) ListByUserAndStatus(userID string, status domain.OrderStatus) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.newestFirst(s.userOrders[userID], func(o *domain.Order) bool {
		return o.Status == status
	}), nil
}

// ListBySymbol returns the symbol's orders newest first.
func (s *Memory) ListBySymbol(symbol string) ([]*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.newestFirst(s.symOrders[symbol], nil), nil
}

func (s *Memory) newestFirst(ids []string, keep func(*domain.Order) bool) []*domain.Order {
	out := make([]*domain.Order, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		o := s.orders[ids[i]]
		if keep != nil && !keep(o) {
			continue
		}
		out = append(out, o.Clone())
	}
	return out
}

// ListFills returns the symbol's fills in ascending sequence order.
func (s *Memory) ListFills(symbol string) ([]*domain.Fill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fills := s.fills[symbol]
	out := make([]*domain.Fill, len(fills))
	for i, f := range fills {
		c := *f
		out[i] = &c
	}
	return out, nil
}

// MaxSequence returns the highest sequence number ever persisted.
func (s *Memory) MaxSequence() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxSeq, nil
}

// Close is a no-op for the in-memory store.
func (s *Memory) Close() error {
	return nil
}
