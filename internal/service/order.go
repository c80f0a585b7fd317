package service

import (
	"fmt"
	"regexp"

	"github.com/rs/zerolog/log"

	"github.com/tradecraft/tradecraft/internal/domain"
	"github.com/tradecraft/tradecraft/internal/engine"
)

var (
	userIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
	symbolRegex = regexp.MustCompile(`^[A-Z]{1,10}$`)
)

// Store is the reporting surface the service reads from. Both the
// Pebble and in-memory stores implement it.
type Store interface {
	Get(id string) (*domain.Order, error)
	ListByUser(userID string) ([]*domain.Order, error)
	ListBySymbol(symbol string) ([]*domain.Order, error)
	ListByUserAndStatus(userID string, status domain.OrderStatus) ([]*domain.Order, error)
	ListFills(symbol string) ([]*domain.Fill, error)
}

// FillPublisher receives every executed fill after it is durable.
type FillPublisher interface {
	PublishFill(fill *domain.Fill)
}

// SubmitOrderRequest represents the input for order submission.
type SubmitOrderRequest struct {
	UserID   string
	Symbol   string
	Side     domain.OrderSide
	Type     domain.OrderType
	Price    *float64 // required for LIMIT, must be absent for MARKET
	Quantity int64
}

// OrderService validates requests and orchestrates the matching engine,
// the store, and the fill feed.
type OrderService struct {
	matcher *engine.Matcher
	store   Store
	symbols *domain.SymbolRegistry
	feed    FillPublisher // may be nil
}

// NewOrderService creates an OrderService. feed may be nil when no fill
// feed is attached.
func NewOrderService(matcher *engine.Matcher, store Store, symbols *domain.SymbolRegistry, feed FillPublisher) *OrderService {
	return &OrderService{
		matcher: matcher,
		store:   store,
		symbols: symbols,
		feed:    feed,
	}
}

// SubmitOrder validates the request and runs it through the matching
// engine. Admission failures return *domain.RejectedError and leave an
// audit record with status REJECTED; the book is never touched.
func (s *OrderService) SubmitOrder(req SubmitOrderRequest) (*domain.Order, []*domain.Fill, error) {
	if reason := s.admissionFailure(req); reason != "" {
		s.auditRejection(req, reason)
		return nil, nil, &domain.RejectedError{Reason: reason}
	}

	order := &domain.Order{
		UserID:   req.UserID,
		Symbol:   req.Symbol,
		Side:     req.Side,
		Type:     req.Type,
		Quantity: req.Quantity,
	}
	if req.Type == domain.OrderTypeLimit {
		priceCents, err := domain.DollarsToCents(*req.Price)
		if err != nil {
			s.auditRejection(req, "price must have at most 2 decimal places")
			return nil, nil, &domain.RejectedError{Reason: "price must have at most 2 decimal places"}
		}
		order.Price = priceCents
	}

	accepted, fills, err := s.matcher.Submit(order)
	if err != nil {
		return nil, nil, err
	}

	if s.feed != nil {
		for _, fill := range fills {
			s.feed.PublishFill(fill)
		}
	}

	return accepted, fills, nil
}

// admissionFailure returns the rejection reason for a malformed request,
// or "" when the request may enter the engine.
func (s *OrderService) admissionFailure(req SubmitOrderRequest) string {
	if _, err := domain.ParseOrderType(string(req.Type)); err != nil {
		return err.Error()
	}
	if _, err := domain.ParseOrderSide(string(req.Side)); err != nil {
		return err.Error()
	}
	if !userIDRegex.MatchString(req.UserID) {
		return "user_id must match ^[a-zA-Z0-9_-]{1,64}$"
	}
	if !symbolRegex.MatchString(req.Symbol) {
		return "symbol must match ^[A-Z]{1,10}$"
	}
	if !s.symbols.Exists(req.Symbol) {
		return fmt.Sprintf("unknown symbol %q", req.Symbol)
	}
	if req.Quantity <= 0 {
		return "quantity must be a positive integer"
	}
	if req.Type == domain.OrderTypeLimit {
		if req.Price == nil {
			return "price is required for LIMIT orders"
		}
		if *req.Price <= 0 {
			return "price must be greater than 0"
		}
	} else if req.Price != nil {
		return "MARKET orders must not include price"
	}
	return ""
}

// auditRejection records the rejected submission in the store. A store
// failure here does not mask the rejection, but it is never dropped
// silently.
func (s *OrderService) auditRejection(req SubmitOrderRequest, reason string) {
	order := &domain.Order{
		UserID:   req.UserID,
		Symbol:   req.Symbol,
		Side:     req.Side,
		Type:     req.Type,
		Quantity: req.Quantity,
	}
	if err := s.matcher.RecordRejection(order); err != nil {
		log.Error().Err(err).Str("reason", reason).Msg("failed to persist rejection audit record")
	}
}

// GetOrder retrieves an order by ID.
func (s *OrderService) GetOrder(orderID string) (*domain.Order, error) {
	return s.store.Get(orderID)
}

// CancelOrder cancels an open order.
func (s *OrderService) CancelOrder(orderID string) (*domain.Order, error) {
	return s.matcher.Cancel(orderID)
}

// ListUserOrders returns a user's orders newest first. A non-nil status
// restricts the result to that status; openOnly restricts it to orders
// still live on the book (NEW or PARTIALLY_FILLED).
func (s *OrderService) ListUserOrders(userID string, status *domain.OrderStatus, openOnly bool) ([]*domain.Order, error) {
	if !userIDRegex.MatchString(userID) {
		return nil, &domain.RejectedError{Reason: "user_id must match ^[a-zA-Z0-9_-]{1,64}$"}
	}
	if status != nil {
		return s.store.ListByUserAndStatus(userID, *status)
	}
	orders, err := s.store.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	if !openOnly {
		return orders, nil
	}
	open := make([]*domain.Order, 0, len(orders))
	for _, o := range orders {
		if o.IsOpen() {
			open = append(open, o)
		}
	}
	return open, nil
}

// ListSymbolOrders returns a symbol's orders newest first.
func (s *OrderService) ListSymbolOrders(symbol string) ([]*domain.Order, error) {
	if err := s.knownSymbol(symbol); err != nil {
		return nil, err
	}
	return s.store.ListBySymbol(symbol)
}

// ListFills returns a symbol's fill history in sequence order.
func (s *OrderService) ListFills(symbol string) ([]*domain.Fill, error) {
	if err := s.knownSymbol(symbol); err != nil {
		return nil, err
	}
	return s.store.ListFills(symbol)
}

// Depth returns up to n aggregated price levels per side of the
// symbol's book.
func (s *OrderService) Depth(symbol string, n int) (bids, asks []engine.PriceLevel, err error) {
	if err := s.knownSymbol(symbol); err != nil {
		return nil, nil, err
	}
	bids, asks = s.matcher.Depth(symbol, n)
	return bids, asks, nil
}

func (s *OrderService) knownSymbol(symbol string) error {
	if !symbolRegex.MatchString(symbol) || !s.symbols.Exists(symbol) {
		return domain.ErrSymbolNotFound
	}
	return nil
}
