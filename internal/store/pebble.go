package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/tradecraft/tradecraft/internal/domain"
)

// Pebble is the durable OrderStore: one record per order, one per fill,
// plus secondary indexes that make every reporting query a single range
// scan. All multi-record transitions commit through a single synced
// batch, so a matching pass is either fully durable or not at all.
type Pebble struct {
	db *pebble.DB

	// maxSeq caches meta:maxseq; batches update both together.
	seqMu  sync.Mutex
	maxSeq uint64
}

// OpenPebble opens (or creates) a Pebble database at the given path.
func OpenPebble(path string) (*Pebble, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble db at %s: %w", path, err)
	}

	s := &Pebble{db: db}
	if err := s.loadMaxSeq(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Pebble) Close() error {
	return s.db.Close()
}

func (s *Pebble) loadMaxSeq() error {
	data, closer, err := s.db.Get([]byte(keyMaxSeq))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load max sequence: %w", err)
	}
	defer closer.Close()
	s.maxSeq = binary.BigEndian.Uint64(data)
	return nil
}

// writeOrder stages an order record and its index updates into a batch.
func writeOrder(batch *pebble.Batch, order *domain.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal order %s: %w", order.OrderID, err)
	}
	if err := batch.Set(orderKey(order.OrderID), data, nil); err != nil {
		return err
	}
	id := []byte(order.OrderID)
	if err := batch.Set(userKey(order.UserID, order.Sequence), id, nil); err != nil {
		return err
	}
	if err := batch.Set(symKey(order.Symbol, order.Sequence), id, nil); err != nil {
		return err
	}
	// The open index exists only while the order can still trade.
	if order.IsOpen() {
		return batch.Set(openKey(order.Symbol, order.Sequence), id, nil)
	}
	return batch.Delete(openKey(order.Symbol, order.Sequence), nil)
}

// commit stages the max-sequence watermark and commits the batch synced.
func (s *Pebble) commit(batch *pebble.Batch, highest uint64) error {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	if highest > s.maxSeq {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], highest)
		if err := batch.Set([]byte(keyMaxSeq), buf[:], nil); err != nil {
			return err
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return err
	}
	if highest > s.maxSeq {
		s.maxSeq = highest
	}
	return nil
}

// Persist inserts or updates a single order record.
func (s *Pebble) Persist(order *domain.Order) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	if err := writeOrder(batch, order); err != nil {
		return fmt.Errorf("persist order: %w", err)
	}
	if err := s.commit(batch, order.Sequence); err != nil {
		return fmt.Errorf("persist order: %w", err)
	}
	return nil
}

// ApplyMatch atomically persists the taker, every touched maker, and the
// resulting fills in one synced batch.
func (s *Pebble) ApplyMatch(taker *domain.Order, makers []*domain.Order, fills []*domain.Fill) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	highest := taker.Sequence
	if err := writeOrder(batch, taker); err != nil {
		return fmt.Errorf("apply match: %w", err)
	}
	for _, maker := range makers {
		if err := writeOrder(batch, maker); err != nil {
			return fmt.Errorf("apply match: %w", err)
		}
	}
	for _, fill := range fills {
		data, err := json.Marshal(fill)
		if err != nil {
			return fmt.Errorf("apply match: marshal fill %d: %w", fill.Sequence, err)
		}
		if err := batch.Set(fillKey(fill.Symbol, fill.Sequence), data, nil); err != nil {
			return fmt.Errorf("apply match: %w", err)
		}
		if fill.Sequence > highest {
			highest = fill.Sequence
		}
	}

	if err := s.commit(batch, highest); err != nil {
		return fmt.Errorf("apply match: %w", err)
	}
	return nil
}

// Get returns the order with the given ID.
func (s *Pebble) Get(id string) (*domain.Order, error) {
	data, closer, err := s.db.Get(orderKey(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	defer closer.Close()

	var order domain.Order
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, fmt.Errorf("unmarshal order %s: %w", id, err)
	}
	return &order, nil
}

// LoadOpenOrders returns the symbol's non-terminal orders in ascending
// sequence order, via the open index.
func (s *Pebble) LoadOpenOrders(symbol string) ([]*domain.Order, error) {
	var orders []*domain.Order
	err := s.scanIDs(openPrefix(symbol), true, func(id string) error {
		order, err := s.Get(id)
		if err != nil {
			return err
		}
		orders = append(orders, order)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load open orders for %s: %w", symbol, err)
	}
	return orders, nil
}

// OpenSymbols returns every symbol with at least one open order.
func (s *Pebble) OpenSymbols() ([]string, error) {
	prefix := []byte(prefixOpen)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("open symbols: %w", err)
	}
	defer iter.Close()

	var symbols []string
	seen := make(map[string]bool)
	for iter.First(); iter.Valid(); iter.Next() {
		symbol := openKeySymbol(iter.Key())
		if !seen[symbol] {
			seen[symbol] = true
			symbols = append(symbols, symbol)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("open symbols: %w", err)
	}
	return symbols, nil
}

// ListByUser returns the user's orders newest first.
func (s *Pebble) ListByUser(userID string) ([]*domain.Order, error) {
	return s.listOrders(userPrefix(userID), nil)
}

// ListByUserAndStatus returns the user's orders with the given status,
// newest first.
func (s *Pebble) ListByUserAndStatus(userID string, status domain.OrderStatus) ([]*domain.Order, error) {
	return s.listOrders(userPrefix(userID), func(o *domain.Order) bool {
		return o.Status == status
	})
}

// ListBySymbol returns the symbol's orders newest first.
func (s *Pebble) ListBySymbol(symbol string) ([]*domain.Order, error) {
	return s.listOrders(symPrefix(symbol), nil)
}

// listOrders walks an index prefix in descending sequence order (newest
// first) and resolves each order id, applying the optional filter.
func (s *Pebble) listOrders(prefix []byte, keep func(*domain.Order) bool) ([]*domain.Order, error) {
	orders := make([]*domain.Order, 0)
	err := s.scanIDs(prefix, false, func(id string) error {
		order, err := s.Get(id)
		if err != nil {
			return err
		}
		if keep == nil || keep(order) {
			orders = append(orders, order)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// scanIDs iterates an index prefix, ascending or descending, calling fn
// with each stored order id.
func (s *Pebble) scanIDs(prefix []byte, ascending bool, fn func(id string) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	if ascending {
		for iter.First(); iter.Valid(); iter.Next() {
			if err := fn(string(iter.Value())); err != nil {
				return err
			}
		}
	} else {
		for iter.Last(); iter.Valid(); iter.Prev() {
			if err := fn(string(iter.Value())); err != nil {
				return err
			}
		}
	}
	return iter.Error()
}

// ListFills returns the symbol's fills in ascending sequence order.
func (s *Pebble) ListFills(symbol string) ([]*domain.Fill, error) {
	prefix := fillPrefix(symbol)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("list fills for %s: %w", symbol, err)
	}
	defer iter.Close()

	fills := make([]*domain.Fill, 0)
	for iter.First(); iter.Valid(); iter.Next() {
		var fill domain.Fill
		if err := json.Unmarshal(iter.Value(), &fill); err != nil {
			return nil, fmt.Errorf("unmarshal fill %s: %w", iter.Key(), err)
		}
		fills = append(fills, &fill)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("list fills for %s: %w", symbol, err)
	}
	return fills, nil
}

// MaxSequence returns the highest sequence number ever persisted.
func (s *Pebble) MaxSequence() (uint64, error) {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	return s.maxSeq, nil
}
