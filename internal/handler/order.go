package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tradecraft/tradecraft/internal/domain"
	"github.com/tradecraft/tradecraft/internal/service"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	orderSvc *service.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc *service.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// submitOrderRequest is the JSON request body for POST /orders.
type submitOrderRequest struct {
	UserID   string   `json:"user_id"`
	Symbol   string   `json:"symbol"`
	Side     string   `json:"side"`
	Type     string   `json:"type"`
	Price    *float64 `json:"price"`
	Quantity int64    `json:"quantity"`
}

// orderResponse is the JSON representation of an order. Price is in
// dollars and omitted for market orders.
type orderResponse struct {
	OrderID           string   `json:"order_id"`
	UserID            string   `json:"user_id"`
	Symbol            string   `json:"symbol"`
	Side              string   `json:"side"`
	Type              string   `json:"type"`
	Price             *float64 `json:"price,omitempty"`
	Quantity          int64    `json:"quantity"`
	FilledQuantity    int64    `json:"filled_quantity"`
	RemainingQuantity int64    `json:"remaining_quantity"`
	Status            string   `json:"status"`
	CreatedAt         string   `json:"created_at"`
	Sequence          uint64   `json:"sequence"`
}

// fillResponse is a single fill in submit and history responses.
type fillResponse struct {
	MakerOrderID string  `json:"maker_order_id"`
	TakerOrderID string  `json:"taker_order_id"`
	Symbol       string  `json:"symbol"`
	Price        float64 `json:"price"`
	Quantity     int64   `json:"quantity"`
	Sequence     uint64  `json:"sequence"`
	ExecutedAt   string  `json:"executed_at"`
}

// submitOrderResponse is the JSON response for POST /orders.
type submitOrderResponse struct {
	Order orderResponse  `json:"order"`
	Fills []fillResponse `json:"fills"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

func toOrderResponse(o *domain.Order) orderResponse {
	resp := orderResponse{
		OrderID:           o.OrderID,
		UserID:            o.UserID,
		Symbol:            o.Symbol,
		Side:              string(o.Side),
		Type:              string(o.Type),
		Quantity:          o.Quantity,
		FilledQuantity:    o.FilledQuantity(),
		RemainingQuantity: o.RemainingQuantity,
		Status:            string(o.Status),
		CreatedAt:         formatTime(o.CreatedAt),
		Sequence:          o.Sequence,
	}
	if o.Type == domain.OrderTypeLimit {
		price := domain.CentsToDollars(o.Price)
		resp.Price = &price
	}
	return resp
}

func toFillResponses(fills []*domain.Fill) []fillResponse {
	out := make([]fillResponse, len(fills))
	for i, f := range fills {
		out[i] = fillResponse{
			MakerOrderID: f.MakerOrderID,
			TakerOrderID: f.TakerOrderID,
			Symbol:       f.Symbol,
			Price:        domain.CentsToDollars(f.Price),
			Quantity:     f.Quantity,
			Sequence:     f.Sequence,
			ExecutedAt:   formatTime(f.ExecutedAt),
		}
	}
	return out
}

func toOrderResponses(orders []*domain.Order) []orderResponse {
	out := make([]orderResponse, len(orders))
	for i, o := range orders {
		out[i] = toOrderResponse(o)
	}
	return out
}

// SubmitOrder handles POST /orders.
func (h *OrderHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	order, fills, err := h.orderSvc.SubmitOrder(service.SubmitOrderRequest{
		UserID:   req.UserID,
		Symbol:   req.Symbol,
		Side:     domain.OrderSide(req.Side),
		Type:     domain.OrderType(req.Type),
		Price:    req.Price,
		Quantity: req.Quantity,
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, submitOrderResponse{
		Order: toOrderResponse(order),
		Fills: toFillResponses(fills),
	})
}

// GetOrder handles GET /orders/{order_id}.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderSvc.GetOrder(chi.URLParam(r, "order_id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toOrderResponse(order))
}

// CancelOrder handles DELETE /orders/{order_id}.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderSvc.CancelOrder(chi.URLParam(r, "order_id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toOrderResponse(order))
}

// ListUserOrders handles GET /users/{user_id}/orders with optional
// status and open=true query filters.
func (h *OrderHandler) ListUserOrders(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	var status *domain.OrderStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := domain.ParseOrderStatus(raw)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		status = &parsed
	}
	openOnly := r.URL.Query().Get("open") == "true"
	if status != nil && openOnly {
		WriteError(w, http.StatusBadRequest, "invalid_request", "status and open filters are mutually exclusive")
		return
	}

	orders, err := h.orderSvc.ListUserOrders(userID, status, openOnly)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string][]orderResponse{"orders": toOrderResponses(orders)})
}

// ListSymbolOrders handles GET /symbols/{symbol}/orders.
func (h *OrderHandler) ListSymbolOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orderSvc.ListSymbolOrders(chi.URLParam(r, "symbol"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string][]orderResponse{"orders": toOrderResponses(orders)})
}
