package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tradecraft/tradecraft/internal/domain"
)

// Matcher implements the matching engine. It exclusively owns the
// in-memory books; the OrderStore is the durable system of record and
// every state transition is written through before the call returns.
type Matcher struct {
	books *BookManager
	store OrderStore
	seq   *Sequencer

	// live indexes open orders by ID so cancels can reach the exact
	// object resting on the book. Orders leave the index on any
	// terminal transition.
	liveMu sync.RWMutex
	live   map[string]*domain.Order
}

// NewMatcher creates a Matcher over the given books, store, and sequencer.
func NewMatcher(books *BookManager, store OrderStore, seq *Sequencer) *Matcher {
	return &Matcher{
		books: books,
		store: store,
		seq:   seq,
		live:  make(map[string]*domain.Order),
	}
}

// restorePoint captures the pre-mutation state of a maker order so a
// failed durable write can be undone.
type restorePoint struct {
	order    *domain.Order
	snapshot domain.Order
	entry    BookEntry
	removed  bool
}

// Submit runs an incoming order through the matching engine.
//
// The caller must provide an order with UserID, Symbol, Side, Type,
// Price (limit only), and Quantity validated and set. Submit takes
// ownership of the order: it assigns OrderID, CreatedAt, and Sequence,
// matches against the opposite side in price-then-time priority
// executing at the resting (maker) order's price, persists the complete
// state change, and returns a snapshot of the accepted order together
// with the fills. The engine keeps the passed-in order as book state;
// later matching passes mutate it under the book lock, so callers must
// read only the returned snapshot.
//
// A limit remainder rests on the book. A market remainder is dropped:
// the order ends FILLED when fully executed, otherwise CANCELLED with
// its unexecuted quantity still recorded in RemainingQuantity. Market
// orders never rest.
//
// On store failure no in-memory mutation survives and the returned
// error wraps domain.ErrStoreUnavailable.
func (m *Matcher) Submit(order *domain.Order) (*domain.Order, []*domain.Fill, error) {
	book := m.books.GetOrCreate(order.Symbol)

	book.mu.Lock()
	defer book.mu.Unlock()

	order.OrderID = uuid.New().String()
	order.CreatedAt = time.Now()
	order.Sequence = m.seq.Next()
	order.RemainingQuantity = order.Quantity
	order.Status = domain.OrderStatusNew

	var (
		fills   []*domain.Fill
		touched []*restorePoint
	)

	for order.RemainingQuantity > 0 {
		var bestEntry BookEntry
		var found bool

		if order.Side == domain.OrderSideBuy {
			bestEntry, found = book.BestAsk()
		} else {
			bestEntry, found = book.BestBid()
		}
		if !found {
			break
		}

		// Limit orders only cross while the price is compatible.
		// Market orders take any price.
		if order.Type == domain.OrderTypeLimit {
			if order.Side == domain.OrderSideBuy && bestEntry.Price > order.Price {
				break
			}
			if order.Side == domain.OrderSideSell && bestEntry.Price < order.Price {
				break
			}
		}

		maker := bestEntry.Order

		fillQty := order.RemainingQuantity
		if maker.RemainingQuantity < fillQty {
			fillQty = maker.RemainingQuantity
		}

		rp := &restorePoint{order: maker, snapshot: *maker, entry: bestEntry}
		touched = append(touched, rp)

		order.RemainingQuantity -= fillQty
		maker.RemainingQuantity -= fillQty

		if order.RemainingQuantity == 0 {
			order.Status = domain.OrderStatusFilled
		} else {
			order.Status = domain.OrderStatusPartiallyFilled
		}
		if maker.RemainingQuantity == 0 {
			maker.Status = domain.OrderStatusFilled
			book.Remove(maker.OrderID)
			rp.removed = true
		} else {
			maker.Status = domain.OrderStatusPartiallyFilled
		}

		// Execution always happens at the maker's price.
		fills = append(fills, &domain.Fill{
			MakerOrderID: maker.OrderID,
			TakerOrderID: order.OrderID,
			Symbol:       order.Symbol,
			Price:        bestEntry.Price,
			Quantity:     fillQty,
			Sequence:     m.seq.Next(),
			ExecutedAt:   time.Now(),
		})
	}

	rested := false
	if order.RemainingQuantity > 0 {
		if order.Type == domain.OrderTypeLimit {
			book.Insert(BookEntry{
				Price:    order.Price,
				Sequence: order.Sequence,
				OrderID:  order.OrderID,
				Order:    order,
			})
			rested = true
		} else {
			// IOC: a market remainder is dropped, never queued.
			order.Status = domain.OrderStatusCancelled
		}
	}

	makers := make([]*domain.Order, len(touched))
	for i, rp := range touched {
		makers[i] = rp.order
	}

	if err := m.store.ApplyMatch(order, makers, fills); err != nil {
		m.rollback(book, order, touched, rested)
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	m.liveMu.Lock()
	if order.IsOpen() {
		m.live[order.OrderID] = order
	}
	for _, rp := range touched {
		if rp.order.IsTerminal() {
			delete(m.live, rp.order.OrderID)
		}
	}
	m.liveMu.Unlock()

	log.Debug().
		Str("order_id", order.OrderID).
		Str("symbol", order.Symbol).
		Str("side", string(order.Side)).
		Str("status", string(order.Status)).
		Uint64("sequence", order.Sequence).
		Int("fills", len(fills)).
		Msg("order accepted")

	// Cloned under the book lock: the book-resident order stays private
	// to the engine.
	return order.Clone(), fills, nil
}

// rollback undoes every in-memory mutation of a failed submit: the
// incoming order leaves the book and each touched maker is restored to
// its pre-match state, re-entering the book if it had been removed.
func (m *Matcher) rollback(book *OrderBook, order *domain.Order, touched []*restorePoint, rested bool) {
	if rested {
		book.Remove(order.OrderID)
	}
	for _, rp := range touched {
		*rp.order = rp.snapshot
		if rp.removed {
			book.Insert(rp.entry)
		}
	}
}

// RecordRejection stamps an order that failed admission checks and
// persists it with status REJECTED for audit. The order never touches
// the book. Rejections consume a sequence number so the audit record
// takes its place in the total event order.
func (m *Matcher) RecordRejection(order *domain.Order) error {
	order.OrderID = uuid.New().String()
	order.CreatedAt = time.Now()
	order.Sequence = m.seq.Next()
	order.RemainingQuantity = order.Quantity
	order.Status = domain.OrderStatusRejected

	if err := m.store.Persist(order); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	log.Debug().
		Str("order_id", order.OrderID).
		Str("symbol", order.Symbol).
		Uint64("sequence", order.Sequence).
		Msg("order rejected")

	return nil
}

// Cancel removes an open order from the book and marks it CANCELLED,
// keeping any already-executed quantity. Returns domain.ErrOrderNotFound
// for unknown IDs, domain.ErrOrderNotCancellable for terminal orders,
// and a domain.ErrStoreUnavailable wrap if durability cannot be
// confirmed (in which case the order stays on the book untouched).
func (m *Matcher) Cancel(orderID string) (*domain.Order, error) {
	m.liveMu.RLock()
	order, ok := m.live[orderID]
	m.liveMu.RUnlock()
	if !ok {
		// Not live: either terminal or never seen.
		if _, err := m.store.Get(orderID); err != nil {
			return nil, domain.ErrOrderNotFound
		}
		return nil, domain.ErrOrderNotCancellable
	}

	book := m.books.GetOrCreate(order.Symbol)
	book.mu.Lock()
	defer book.mu.Unlock()

	// Re-check under the book lock: a racing submit may have filled it.
	if order.IsTerminal() {
		return nil, domain.ErrOrderNotCancellable
	}

	snapshot := *order
	wasOnBook := book.Remove(orderID)
	order.Status = domain.OrderStatusCancelled
	cancelSeq := m.seq.Next()

	if err := m.store.Persist(order); err != nil {
		*order = snapshot
		if wasOnBook {
			book.Insert(BookEntry{
				Price:    order.Price,
				Sequence: order.Sequence,
				OrderID:  order.OrderID,
				Order:    order,
			})
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	m.liveMu.Lock()
	delete(m.live, orderID)
	m.liveMu.Unlock()

	log.Debug().
		Str("order_id", orderID).
		Str("symbol", order.Symbol).
		Uint64("sequence", cancelSeq).
		Int64("unfilled", order.RemainingQuantity).
		Msg("order cancelled")

	return order.Clone(), nil
}

// Rebuild reloads every open order from the store and re-inserts it into
// its symbol's book. Because entries sort by (price, sequence), the
// rebuilt books reproduce the exact levels and FIFO order that existed
// before shutdown. Must run before the engine accepts requests.
func (m *Matcher) Rebuild() error {
	symbols, err := m.store.OpenSymbols()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	for _, symbol := range symbols {
		orders, err := m.store.LoadOpenOrders(symbol)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}

		book := m.books.GetOrCreate(symbol)
		book.mu.Lock()
		for _, order := range orders {
			book.Insert(BookEntry{
				Price:    order.Price,
				Sequence: order.Sequence,
				OrderID:  order.OrderID,
				Order:    order,
			})
			m.liveMu.Lock()
			m.live[order.OrderID] = order
			m.liveMu.Unlock()
		}
		book.mu.Unlock()

		log.Info().
			Str("symbol", symbol).
			Int("orders", len(orders)).
			Msg("order book rebuilt")
	}

	return nil
}

// Depth returns up to n aggregated price levels per side under a
// consistent read snapshot.
func (m *Matcher) Depth(symbol string, n int) (bids, asks []PriceLevel) {
	book := m.books.GetOrCreate(symbol)
	book.mu.RLock()
	defer book.mu.RUnlock()
	return book.TopBids(n), book.TopAsks(n)
}

// Books exposes the book manager for read-side collaborators.
func (m *Matcher) Books() *BookManager {
	return m.books
}
