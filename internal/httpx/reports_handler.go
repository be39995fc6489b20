package httpx

import (
	"context"
	"fmt"
	"github.com/ariefcatur/go-shop-orders/internal/apperr"
	"github.com/ariefcatur/go-shop-orders/internal/reports"
	"github.com/go-chi/chi/v5"
	"net/http"
	"strconv"
	"time"
)

type ReportService interface {
	Sales(ctx context.Context, r reports.Range, includePending bool) (reports.Sales, error)
	TopProducts(ctx context.Context, r reports.Range, includePending bool, limit int) ([]reports.TopProduct, error)
}

type ReportsHandler struct {
	Reports ReportService
	Now     func() time.Time
}

// Register expects to be mounted under /admin.
func (h *ReportsHandler) Register(r chi.Router) {
	r.Get("/reports/sales", h.sales)
	r.Get("/reports/top-products", h.topProducts)
}

func (h *ReportsHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *ReportsHandler) params(r *http.Request) (reports.Range, bool, error) {
	q := r.URL.Query()
	rng, err := reports.ParseRange(q.Get("from"), q.Get("to"), h.now())
	return rng, q.Get("include_pending") == "1", err
}

func (h *ReportsHandler) sales(w http.ResponseWriter, r *http.Request) {
	rng, pending, err := h.params(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.Reports.Sales(r.Context(), rng, pending)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ReportsHandler) topProducts(w http.ResponseWriter, r *http.Request) {
	rng, pending, err := h.params(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil {
			writeError(w, r, fmt.Errorf("limit %q: %w", s, apperr.ErrInvalidInput))
			return
		}
	}
	out, err := h.Reports.TopProducts(r.Context(), rng, pending, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
