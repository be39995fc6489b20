package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-shop-orders/internal/apperr"
	"github.com/ariefcatur/go-shop-orders/internal/logging"
	"github.com/ariefcatur/go-shop-orders/internal/redisx"
	"go.uber.org/zap"
	"io"
	"net/http"
)

type errorBody struct {
	Error   string               `json:"error"`
	Code    string               `json:"code"`
	Details []apperr.StockDetail `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrInvalidStatus),
		errors.Is(err, apperr.ErrInvalidQuantity),
		errors.Is(err, apperr.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrInsufficientStock),
		errors.Is(err, apperr.ErrOutOfStock),
		errors.Is(err, apperr.ErrProductInactive),
		errors.Is(err, apperr.ErrEmptyCart),
		errors.Is(err, apperr.ErrCartInactivePruned),
		errors.Is(err, apperr.ErrIllegalTransition),
		errors.Is(err, redisx.ErrInFlight):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrTransient):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	body := errorBody{Error: err.Error(), Code: apperr.Code(err)}
	if errors.Is(err, redisx.ErrInFlight) {
		body.Code = "IN_PROGRESS"
	}
	var se *apperr.StockError
	if errors.As(err, &se) {
		body.Details = se.Details
	}
	switch code {
	case http.StatusInternalServerError:
		logging.FromContext(r.Context()).Error("request failed", zap.Error(err))
		body.Error = "internal error"
	case http.StatusServiceUnavailable:
		logging.FromContext(r.Context()).Warn("transient failure", zap.Error(err))
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, code, body)
}

// decode reads a JSON body; an empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid json: %v: %w", err, apperr.ErrInvalidInput)
	}
	return nil
}
