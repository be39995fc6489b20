package httpx

import (
	"context"
	"github.com/ariefcatur/go-shop-orders/internal/cart"
	"github.com/go-chi/chi/v5"
	"net/http"
)

type CartService interface {
	AddLine(ctx context.Context, userID string, productID int64, qty int) (cart.LineState, error)
	SetLineQty(ctx context.Context, userID string, productID int64, qty int) (cart.LineState, error)
	RemoveLine(ctx context.Context, userID string, productID int64) error
	View(ctx context.Context, userID string) (cart.View, error)
}

type CartHandler struct {
	Cart CartService
}

type addLineReq struct {
	ProductID int64 `json:"product_id"`
	Qty       int   `json:"qty"`
}

type setQtyReq struct {
	Qty int `json:"qty"`
}

func (h *CartHandler) Register(r chi.Router) {
	r.Get("/cart", h.view)
	r.Post("/cart/items", h.add)
	r.Put("/cart/items/{productID}", h.setQty)
	r.Delete("/cart/items/{productID}", h.remove)
	// preview = view: both prune, so the preview matches what checkout will accept
	r.Post("/checkout/preview", h.view)
}

func (h *CartHandler) view(w http.ResponseWriter, r *http.Request) {
	v, err := h.Cart.View(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *CartHandler) add(w http.ResponseWriter, r *http.Request) {
	var req addLineReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	st, err := h.Cart.AddLine(r.Context(), userID(r), req.ProductID, req.Qty)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *CartHandler) setQty(w http.ResponseWriter, r *http.Request) {
	pid, err := idParam(r, "productID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req setQtyReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	st, err := h.Cart.SetLineQty(r.Context(), userID(r), pid, req.Qty)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *CartHandler) remove(w http.ResponseWriter, r *http.Request) {
	pid, err := idParam(r, "productID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Cart.RemoveLine(r.Context(), userID(r), pid); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
