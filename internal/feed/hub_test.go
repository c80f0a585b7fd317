package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tradecraft/tradecraft/internal/domain"
)

func dialHub(t *testing.T, hub *Hub) (*websocket.Conn, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, srv
}

// awaitFill publishes the fill until the subscriber receives a message,
// riding out the race between registration and the first publish.
func awaitFill(t *testing.T, hub *Hub, conn *websocket.Conn, fill *domain.Fill) []byte {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	_ = conn.SetReadDeadline(deadline)

	received := make(chan []byte, 1)
	go func() {
		_, data, err := conn.ReadMessage()
		if err == nil {
			received <- data
		}
	}()

	for {
		hub.PublishFill(fill)
		select {
		case data := <-received:
			return data
		case <-time.After(50 * time.Millisecond):
			if time.Now().After(deadline) {
				t.Fatal("no fill received before deadline")
			}
		}
	}
}

func TestHubBroadcastsFills(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	conn, _ := dialHub(t, hub)

	data := awaitFill(t, hub, conn, &domain.Fill{
		MakerOrderID: "maker-1",
		TakerOrderID: "taker-1",
		Symbol:       "AAPL",
		Price:        10050,
		Quantity:     4,
		Sequence:     9,
		ExecutedAt:   time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	})

	var msg struct {
		Type       string  `json:"type"`
		Symbol     string  `json:"symbol"`
		Price      float64 `json:"price"`
		Quantity   int64   `json:"quantity"`
		Sequence   uint64  `json:"sequence"`
		ExecutedAt string  `json:"executed_at"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Type != "fill" {
		t.Errorf("type = %q, want fill", msg.Type)
	}
	if msg.Symbol != "AAPL" || msg.Price != 100.50 || msg.Quantity != 4 || msg.Sequence != 9 {
		t.Errorf("message = %+v", msg)
	}
	if msg.ExecutedAt != "2026-08-30T12:00:00.000Z" {
		t.Errorf("executed_at = %q", msg.ExecutedAt)
	}
}

func TestHubPublishNeverBlocks(t *testing.T) {
	hub := NewHub()
	// Run is intentionally not started: the buffer fills and overflow
	// must be dropped without blocking the caller.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.PublishFill(&domain.Fill{Symbol: "AAPL", Sequence: uint64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("PublishFill blocked on a full buffer")
	}
}

func TestHubShutdownReleasesSubscribers(t *testing.T) {
	base := runtime.NumGoroutine()

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	conn, srv := dialHub(t, hub)
	awaitFill(t, hub, conn, &domain.Fill{Symbol: "AAPL", Sequence: 1})

	cancel()
	<-hub.done

	// The hub closes every send channel on shutdown; the write pump
	// turns that into a close frame on the wire.
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected the connection to close after shutdown")
	}

	// Every goroutine the subscription spawned must wind down: the read
	// pump in particular must not stay parked on unregister against the
	// stopped hub.
	conn.Close()
	srv.Close()
	deadline := time.Now().Add(3 * time.Second)
	for runtime.NumGoroutine() > base {
		if time.Now().After(deadline) {
			t.Fatalf("goroutines leaked after shutdown: %d running, baseline %d",
				runtime.NumGoroutine(), base)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
