package engine

import (
	"sync"

	"github.com/google/btree"

	"github.com/tradecraft/tradecraft/internal/domain"
)

// BookEntry represents a single limit order resting on the book.
// Sequence is the time-priority key: within a price level, lower
// sequence numbers fill first.
type BookEntry struct {
	Price    int64
	Sequence uint64
	OrderID  string
	Order    *domain.Order
}

// PriceLevel is an aggregated view of one price level in the book.
type PriceLevel struct {
	Price         int64
	TotalQuantity int64
	OrderCount    int
}

// bidLess defines ordering for the bid side: price descending, then
// sequence ascending. Min() returns the best bid (highest price,
// earliest arrival).
func bidLess(a, b BookEntry) bool {
	if a.Price != b.Price {
		return a.Price > b.Price
	}
	return a.Sequence < b.Sequence
}

// askLess defines ordering for the ask side: price ascending, then
// sequence ascending. Min() returns the best ask (lowest price,
// earliest arrival).
func askLess(a, b BookEntry) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	return a.Sequence < b.Sequence
}

// OrderBook maintains the bid and ask sides for a single symbol using
// B-trees with a secondary index for O(log n) removal by order ID.
// All mutating passes over one symbol's book are serialized through mu,
// which the Matcher holds for the duration of a submit or cancel.
type OrderBook struct {
	symbol string
	mu     sync.RWMutex
	bids   *btree.BTreeG[BookEntry]
	asks   *btree.BTreeG[BookEntry]
	index  map[string]BookEntry // order_id → entry
}

// NewOrderBook creates an order book for the given symbol.
func NewOrderBook(symbol string) *OrderBook {
	const degree = 32
	return &OrderBook{
		symbol: symbol,
		bids:   btree.NewG[BookEntry](degree, bidLess),
		asks:   btree.NewG[BookEntry](degree, askLess),
		index:  make(map[string]BookEntry),
	}
}

// Symbol returns the symbol this book serves.
func (ob *OrderBook) Symbol() string {
	return ob.symbol
}

// Insert adds a resting entry to the side matching the order.
func (ob *OrderBook) Insert(entry BookEntry) {
	if entry.Order.Side == domain.OrderSideBuy {
		ob.bids.ReplaceOrInsert(entry)
	} else {
		ob.asks.ReplaceOrInsert(entry)
	}
	ob.index[entry.OrderID] = entry
}

// Remove deletes an order from the book by order ID using the
// secondary index. Returns true if the order was on the book.
func (ob *OrderBook) Remove(orderID string) bool {
	entry, ok := ob.index[orderID]
	if !ok {
		return false
	}
	delete(ob.index, orderID)
	if entry.Order.Side == domain.OrderSideBuy {
		ob.bids.Delete(entry)
	} else {
		ob.asks.Delete(entry)
	}
	return true
}

// Contains reports whether the order currently rests on the book.
func (ob *OrderBook) Contains(orderID string) bool {
	_, ok := ob.index[orderID]
	return ok
}

// BestBid returns the highest-priority bid (highest price, lowest sequence).
func (ob *OrderBook) BestBid() (BookEntry, bool) {
	return ob.bids.Min()
}

// BestAsk returns the highest-priority ask (lowest price, lowest sequence).
func (ob *OrderBook) BestAsk() (BookEntry, bool) {
	return ob.asks.Min()
}

// TopBids returns up to n aggregated price levels from the bid side,
// ordered by price descending.
func (ob *OrderBook) TopBids(n int) []PriceLevel {
	return topLevels(ob.bids, n)
}

// TopAsks returns up to n aggregated price levels from the ask side,
// ordered by price ascending.
func (ob *OrderBook) TopAsks(n int) []PriceLevel {
	return topLevels(ob.asks, n)
}

// topLevels iterates the B-tree in order and aggregates entries into
// at most n price levels.
func topLevels(tree *btree.BTreeG[BookEntry], n int) []PriceLevel {
	if n <= 0 {
		return nil
	}
	levels := make([]PriceLevel, 0, n)
	tree.Ascend(func(entry BookEntry) bool {
		if len(levels) > 0 && levels[len(levels)-1].Price == entry.Price {
			levels[len(levels)-1].TotalQuantity += entry.Order.RemainingQuantity
			levels[len(levels)-1].OrderCount++
			return true
		}
		if len(levels) >= n {
			return false
		}
		levels = append(levels, PriceLevel{
			Price:         entry.Price,
			TotalQuantity: entry.Order.RemainingQuantity,
			OrderCount:    1,
		})
		return true
	})
	return levels
}

// WalkAsks iterates asks in priority order (lowest price, then lowest
// sequence). The callback returns true to continue, false to stop.
func (ob *OrderBook) WalkAsks(fn func(BookEntry) bool) {
	ob.asks.Ascend(fn)
}

// WalkBids iterates bids in priority order (highest price, then lowest
// sequence). The callback returns true to continue, false to stop.
func (ob *OrderBook) WalkBids(fn func(BookEntry) bool) {
	ob.bids.Ascend(fn)
}

// BidCount returns the number of individual bid orders on the book.
func (ob *OrderBook) BidCount() int {
	return ob.bids.Len()
}

// AskCount returns the number of individual ask orders on the book.
func (ob *OrderBook) AskCount() int {
	return ob.asks.Len()
}

// RLock acquires the read lock, allowing consistent multi-call reads
// without blocking other readers.
func (ob *OrderBook) RLock() {
	ob.mu.RLock()
}

// RUnlock releases the read lock on the order book.
func (ob *OrderBook) RUnlock() {
	ob.mu.RUnlock()
}

// BookManager is a thread-safe map of symbol → OrderBook. The map lock
// only guards book creation; each book carries its own lock, so matching
// on distinct symbols proceeds in parallel.
type BookManager struct {
	mu    sync.RWMutex
	books map[string]*OrderBook
}

// NewBookManager creates a new BookManager.
func NewBookManager() *BookManager {
	return &BookManager{
		books: make(map[string]*OrderBook),
	}
}

// GetOrCreate returns the order book for the given symbol, creating
// one if it doesn't already exist.
func (bm *BookManager) GetOrCreate(symbol string) *OrderBook {
	bm.mu.RLock()
	book, ok := bm.books[symbol]
	bm.mu.RUnlock()
	if ok {
		return book
	}

	bm.mu.Lock()
	defer bm.mu.Unlock()
	// Double-check after acquiring write lock.
	if book, ok = bm.books[symbol]; ok {
		return book
	}
	book = NewOrderBook(symbol)
	bm.books[symbol] = book
	return book
}
