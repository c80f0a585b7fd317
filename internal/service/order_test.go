package service

import (
	"errors"
	"testing"

	"github.com/tradecraft/tradecraft/internal/domain"
	"github.com/tradecraft/tradecraft/internal/engine"
	"github.com/tradecraft/tradecraft/internal/store"
)

// capturingFeed records every published fill.
type capturingFeed struct {
	fills []*domain.Fill
}

func (f *capturingFeed) PublishFill(fill *domain.Fill) {
	f.fills = append(f.fills, fill)
}

func newTestService() (*OrderService, *store.Memory, *capturingFeed) {
	st := store.NewMemory()
	matcher := engine.NewMatcher(engine.NewBookManager(), st, engine.NewSequencer(0))
	symbols := domain.NewSymbolRegistry("AAPL", "GOOG")
	feed := &capturingFeed{}
	return NewOrderService(matcher, st, symbols, feed), st, feed
}

func floatPtr(v float64) *float64 { return &v }

func limitReq(user, symbol string, side domain.OrderSide, price float64, qty int64) SubmitOrderRequest {
	return SubmitOrderRequest{
		UserID:   user,
		Symbol:   symbol,
		Side:     side,
		Type:     domain.OrderTypeLimit,
		Price:    floatPtr(price),
		Quantity: qty,
	}
}

func TestSubmitOrder_Accepted(t *testing.T) {
	svc, st, _ := newTestService()

	order, fills, err := svc.SubmitOrder(limitReq("alice", "AAPL", domain.OrderSideBuy, 100.50, 10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fills) != 0 {
		t.Errorf("expected no fills on an empty book, got %d", len(fills))
	}
	if order.Price != 10050 {
		t.Errorf("price = %d cents, want 10050", order.Price)
	}
	if order.Status != domain.OrderStatusNew {
		t.Errorf("status = %s, want NEW", order.Status)
	}
	if _, err := st.Get(order.OrderID); err != nil {
		t.Errorf("accepted order not persisted: %v", err)
	}
}

func TestSubmitOrder_PublishesFills(t *testing.T) {
	svc, _, feed := newTestService()

	if _, _, err := svc.SubmitOrder(limitReq("seller", "AAPL", domain.OrderSideSell, 100, 4)); err != nil {
		t.Fatal(err)
	}
	_, fills, err := svc.SubmitOrder(limitReq("buyer", "AAPL", domain.OrderSideBuy, 100, 4))
	if err != nil {
		t.Fatal(err)
	}
	if len(fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(fills))
	}
	if len(feed.fills) != 1 || feed.fills[0] != fills[0] {
		t.Error("executed fill was not published to the feed")
	}
}

func TestSubmitOrder_Rejections(t *testing.T) {
	tests := []struct {
		name string
		req  SubmitOrderRequest
	}{
		{
			name: "unknown type",
			req: SubmitOrderRequest{
				UserID: "alice", Symbol: "AAPL", Side: domain.OrderSideBuy,
				Type: "STOP", Price: floatPtr(100), Quantity: 1,
			},
		},
		{
			name: "unknown side",
			req: SubmitOrderRequest{
				UserID: "alice", Symbol: "AAPL", Side: "HOLD",
				Type: domain.OrderTypeLimit, Price: floatPtr(100), Quantity: 1,
			},
		},
		{
			name: "empty user id",
			req:  limitReq("", "AAPL", domain.OrderSideBuy, 100, 1),
		},
		{
			name: "user id with spaces",
			req:  limitReq("not a user", "AAPL", domain.OrderSideBuy, 100, 1),
		},
		{
			name: "lowercase symbol",
			req:  limitReq("alice", "aapl", domain.OrderSideBuy, 100, 1),
		},
		{
			name: "symbol too long",
			req:  limitReq("alice", "ABCDEFGHIJK", domain.OrderSideBuy, 100, 1),
		},
		{
			name: "untraded symbol",
			req:  limitReq("alice", "TSLA", domain.OrderSideBuy, 100, 1),
		},
		{
			name: "zero quantity",
			req:  limitReq("alice", "AAPL", domain.OrderSideBuy, 100, 0),
		},
		{
			name: "negative quantity",
			req:  limitReq("alice", "AAPL", domain.OrderSideBuy, 100, -5),
		},
		{
			name: "limit without price",
			req: SubmitOrderRequest{
				UserID: "alice", Symbol: "AAPL", Side: domain.OrderSideBuy,
				Type: domain.OrderTypeLimit, Quantity: 1,
			},
		},
		{
			name: "zero price",
			req:  limitReq("alice", "AAPL", domain.OrderSideBuy, 0, 1),
		},
		{
			name: "negative price",
			req:  limitReq("alice", "AAPL", domain.OrderSideBuy, -1, 1),
		},
		{
			name: "sub-cent price",
			req:  limitReq("alice", "AAPL", domain.OrderSideBuy, 100.123, 1),
		},
		{
			name: "market with price",
			req: SubmitOrderRequest{
				UserID: "alice", Symbol: "AAPL", Side: domain.OrderSideSell,
				Type: domain.OrderTypeMarket, Price: floatPtr(100), Quantity: 1,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestService()

			_, _, err := svc.SubmitOrder(tt.req)
			var rej *domain.RejectedError
			if !errors.As(err, &rej) {
				t.Fatalf("error = %v, want *RejectedError", err)
			}
			if rej.Reason == "" {
				t.Error("rejection must carry a reason")
			}
		})
	}
}

func TestSubmitOrder_RejectionLeavesAuditRecord(t *testing.T) {
	svc, st, _ := newTestService()

	_, _, err := svc.SubmitOrder(limitReq("alice", "AAPL", domain.OrderSideBuy, 100, 0))
	var rej *domain.RejectedError
	if !errors.As(err, &rej) {
		t.Fatalf("error = %v, want *RejectedError", err)
	}

	orders, err := st.ListByUser("alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(orders))
	}
	rec := orders[0]
	if rec.Status != domain.OrderStatusRejected {
		t.Errorf("audit status = %s, want REJECTED", rec.Status)
	}
	if rec.Sequence == 0 {
		t.Error("audit record must carry a sequence number")
	}

	// The rejected order never reaches the book.
	open, err := st.LoadOpenOrders("AAPL")
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 0 {
		t.Errorf("rejected order listed as open: %+v", open)
	}
}

func TestCancelOrder(t *testing.T) {
	svc, _, _ := newTestService()

	order, _, err := svc.SubmitOrder(limitReq("alice", "AAPL", domain.OrderSideBuy, 100, 10))
	if err != nil {
		t.Fatal(err)
	}

	cancelled, err := svc.CancelOrder(order.OrderID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelled {
		t.Errorf("status = %s, want CANCELLED", cancelled.Status)
	}

	if _, err := svc.CancelOrder(order.OrderID); !errors.Is(err, domain.ErrOrderNotCancellable) {
		t.Errorf("second cancel error = %v, want ErrOrderNotCancellable", err)
	}
	if _, err := svc.CancelOrder("missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("unknown id error = %v, want ErrOrderNotFound", err)
	}
}

func TestGetOrder(t *testing.T) {
	svc, _, _ := newTestService()

	order, _, err := svc.SubmitOrder(limitReq("alice", "AAPL", domain.OrderSideBuy, 100, 10))
	if err != nil {
		t.Fatal(err)
	}

	got, err := svc.GetOrder(order.OrderID)
	if err != nil {
		t.Fatal(err)
	}
	if got.OrderID != order.OrderID {
		t.Errorf("got order %s, want %s", got.OrderID, order.OrderID)
	}
	if _, err := svc.GetOrder("missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("error = %v, want ErrOrderNotFound", err)
	}
}

func TestListUserOrders(t *testing.T) {
	svc, _, _ := newTestService()

	first, _, err := svc.SubmitOrder(limitReq("alice", "AAPL", domain.OrderSideBuy, 100, 10))
	if err != nil {
		t.Fatal(err)
	}
	second, _, err := svc.SubmitOrder(limitReq("alice", "GOOG", domain.OrderSideSell, 200, 5))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.CancelOrder(second.OrderID); err != nil {
		t.Fatal(err)
	}

	all, err := svc.ListUserOrders("alice", nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(all))
	}
	if all[0].OrderID != second.OrderID || all[1].OrderID != first.OrderID {
		t.Error("listing must be newest first")
	}

	open, err := svc.ListUserOrders("alice", nil, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 1 || open[0].OrderID != first.OrderID {
		t.Errorf("open filter returned %+v", open)
	}

	status := domain.OrderStatusCancelled
	cancelled, err := svc.ListUserOrders("alice", &status, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(cancelled) != 1 || cancelled[0].OrderID != second.OrderID {
		t.Errorf("status filter returned %+v", cancelled)
	}

	if _, err := svc.ListUserOrders("not a user", nil, false); err == nil {
		t.Error("expected an error for an invalid user id")
	}

	none, err := svc.ListUserOrders("bob", nil, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("expected empty listing for unknown user, got %d", len(none))
	}
}

func TestListSymbolOrders(t *testing.T) {
	svc, _, _ := newTestService()

	order, _, err := svc.SubmitOrder(limitReq("alice", "AAPL", domain.OrderSideBuy, 100, 10))
	if err != nil {
		t.Fatal(err)
	}

	orders, err := svc.ListSymbolOrders("AAPL")
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 1 || orders[0].OrderID != order.OrderID {
		t.Errorf("listing returned %+v", orders)
	}

	if _, err := svc.ListSymbolOrders("TSLA"); !errors.Is(err, domain.ErrSymbolNotFound) {
		t.Errorf("untraded symbol error = %v, want ErrSymbolNotFound", err)
	}
	if _, err := svc.ListSymbolOrders("aapl"); !errors.Is(err, domain.ErrSymbolNotFound) {
		t.Errorf("malformed symbol error = %v, want ErrSymbolNotFound", err)
	}
}

func TestListFills(t *testing.T) {
	svc, _, _ := newTestService()

	if _, _, err := svc.SubmitOrder(limitReq("seller", "AAPL", domain.OrderSideSell, 100, 4)); err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.SubmitOrder(limitReq("buyer", "AAPL", domain.OrderSideBuy, 100, 4)); err != nil {
		t.Fatal(err)
	}

	fills, err := svc.ListFills("AAPL")
	if err != nil {
		t.Fatal(err)
	}
	if len(fills) != 1 || fills[0].Quantity != 4 || fills[0].Price != 10000 {
		t.Errorf("fills = %+v", fills)
	}

	if _, err := svc.ListFills("TSLA"); !errors.Is(err, domain.ErrSymbolNotFound) {
		t.Errorf("error = %v, want ErrSymbolNotFound", err)
	}
}

func TestDepth(t *testing.T) {
	svc, _, _ := newTestService()

	if _, _, err := svc.SubmitOrder(limitReq("a", "AAPL", domain.OrderSideBuy, 100, 10)); err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.SubmitOrder(limitReq("b", "AAPL", domain.OrderSideBuy, 100, 5)); err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.SubmitOrder(limitReq("c", "AAPL", domain.OrderSideSell, 101, 7)); err != nil {
		t.Fatal(err)
	}

	bids, asks, err := svc.Depth("AAPL", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(bids) != 1 || bids[0].Price != 10000 || bids[0].TotalQuantity != 15 || bids[0].OrderCount != 2 {
		t.Errorf("bids = %+v", bids)
	}
	if len(asks) != 1 || asks[0].Price != 10100 || asks[0].TotalQuantity != 7 {
		t.Errorf("asks = %+v", asks)
	}

	if _, _, err := svc.Depth("TSLA", 10); !errors.Is(err, domain.ErrSymbolNotFound) {
		t.Errorf("error = %v, want ErrSymbolNotFound", err)
	}
}
