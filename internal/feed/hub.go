// Package feed pushes executed fills to WebSocket subscribers.
package feed

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/tradecraft/tradecraft/internal/domain"
)

// fillMessage is the wire format for a broadcast fill.
type fillMessage struct {
	Type         string  `json:"type"`
	Symbol       string  `json:"symbol"`
	MakerOrderID string  `json:"maker_order_id"`
	TakerOrderID string  `json:"taker_order_id"`
	Price        float64 `json:"price"`
	Quantity     int64   `json:"quantity"`
	Sequence     uint64  `json:"sequence"`
	ExecutedAt   string  `json:"executed_at"`
}

// Hub maintains the set of connected clients and fans fills out to
// them. All client-set mutation happens on the Run goroutine; the
// publisher never blocks on a slow consumer.
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan *domain.Fill

	// done is closed when Run exits so client goroutines never block
	// on register/unregister against a stopped hub.
	done chan struct{}
}

// NewHub creates a Hub. Call Run before publishing.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan *domain.Fill, 256),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				c.close()
			}
			close(h.done)
			return
		case c := <-h.register:
			h.clients[c] = true
		case c := <-h.unregister:
			if h.clients[c] {
				delete(h.clients, c)
				c.close()
			}
		case fill := <-h.broadcast:
			data, err := json.Marshal(fillMessage{
				Type:         "fill",
				Symbol:       fill.Symbol,
				MakerOrderID: fill.MakerOrderID,
				TakerOrderID: fill.TakerOrderID,
				Price:        domain.CentsToDollars(fill.Price),
				Quantity:     fill.Quantity,
				Sequence:     fill.Sequence,
				ExecutedAt:   fill.ExecutedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
			})
			if err != nil {
				log.Error().Err(err).Msg("failed to marshal fill message")
				continue
			}
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					// Slow consumer: drop the connection, not the feed.
					delete(h.clients, c)
					c.close()
				}
			}
		}
	}
}

// PublishFill queues a fill for broadcast. Never blocks; if the hub's
// buffer is full the fill is dropped from the feed (it remains durable
// in the store).
func (h *Hub) PublishFill(fill *domain.Fill) {
	select {
	case h.broadcast <- fill:
	default:
		log.Warn().Uint64("sequence", fill.Sequence).Msg("fill feed buffer full, dropping broadcast")
	}
}
