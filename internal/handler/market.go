package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tradecraft/tradecraft/internal/domain"
	"github.com/tradecraft/tradecraft/internal/engine"
	"github.com/tradecraft/tradecraft/internal/service"
)

// MarketHandler serves read-only market data: depth snapshots and fill
// history.
type MarketHandler struct {
	orderSvc     *service.OrderService
	defaultDepth int
}

// NewMarketHandler creates a MarketHandler. defaultDepth is the number
// of levels a book snapshot returns when the request has no depth
// parameter.
func NewMarketHandler(orderSvc *service.OrderService, defaultDepth int) *MarketHandler {
	return &MarketHandler{orderSvc: orderSvc, defaultDepth: defaultDepth}
}

// levelResponse is one aggregated price level in a depth snapshot.
type levelResponse struct {
	Price         float64 `json:"price"`
	TotalQuantity int64   `json:"total_quantity"`
	OrderCount    int     `json:"order_count"`
}

// bookResponse is the JSON response for a depth snapshot.
type bookResponse struct {
	Symbol string          `json:"symbol"`
	Bids   []levelResponse `json:"bids"`
	Asks   []levelResponse `json:"asks"`
}

func toLevelResponses(levels []engine.PriceLevel) []levelResponse {
	out := make([]levelResponse, len(levels))
	for i, l := range levels {
		out[i] = levelResponse{
			Price:         domain.CentsToDollars(l.Price),
			TotalQuantity: l.TotalQuantity,
			OrderCount:    l.OrderCount,
		}
	}
	return out
}

// GetBook handles GET /symbols/{symbol}/book?depth=N.
func (h *MarketHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	depth := h.defaultDepth
	if raw := r.URL.Query().Get("depth"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			WriteError(w, http.StatusBadRequest, "invalid_request", "depth must be an integer between 1 and 100")
			return
		}
		depth = n
	}

	bids, asks, err := h.orderSvc.Depth(symbol, depth)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, bookResponse{
		Symbol: symbol,
		Bids:   toLevelResponses(bids),
		Asks:   toLevelResponses(asks),
	})
}

// GetFills handles GET /symbols/{symbol}/fills.
func (h *MarketHandler) GetFills(w http.ResponseWriter, r *http.Request) {
	fills, err := h.orderSvc.ListFills(chi.URLParam(r, "symbol"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string][]fillResponse{"fills": toFillResponses(fills)})
}
