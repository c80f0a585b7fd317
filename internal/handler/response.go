package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tradecraft/tradecraft/internal/domain"
)

// WriteJSON writes a JSON response with the given status code and data.
// Sets Content-Type to application/json before writing the status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) // Write error intentionally ignored in response helper
}

// errorResponse is the standard error response format.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a standard error response with the given status code,
// error code, and human-readable message.
func WriteError(w http.ResponseWriter, status int, errorCode, message string) {
	WriteJSON(w, status, errorResponse{
		Error:   errorCode,
		Message: message,
	})
}

// WriteDomainError maps a domain error to its HTTP representation.
func WriteDomainError(w http.ResponseWriter, err error) {
	var rejected *domain.RejectedError
	switch {
	case errors.As(err, &rejected):
		WriteError(w, http.StatusBadRequest, "rejected_order", rejected.Reason)
	case errors.Is(err, domain.ErrOrderNotFound):
		WriteError(w, http.StatusNotFound, "order_not_found", "No order exists with the given id")
	case errors.Is(err, domain.ErrOrderNotCancellable):
		WriteError(w, http.StatusConflict, "order_not_cancellable", "Order has already reached a terminal status")
	case errors.Is(err, domain.ErrSymbolNotFound):
		WriteError(w, http.StatusNotFound, "symbol_not_found", "Symbol is not traded on this exchange")
	case errors.Is(err, domain.ErrStoreUnavailable):
		WriteError(w, http.StatusServiceUnavailable, "store_unavailable", "Durable store unreachable, request not applied")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "Unexpected internal error")
	}
}

// ParseJSON decodes the request body as JSON into v, rejecting unknown
// fields and non-JSON content types.
func ParseJSON(r *http.Request, v any) error {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(ct, "application/json") {
		return fmt.Errorf("request body must be valid JSON with Content-Type: application/json")
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("request body must be valid JSON with Content-Type: application/json")
	}

	return nil
}
