package httpx

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-shop-orders/internal/apperr"
	"github.com/ariefcatur/go-shop-orders/internal/logging"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/ariefcatur/go-shop-orders/internal/redisx"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"net/http"
	"strings"
)

const headerIdempotencyKey = "Idempotency-Key"

type OrderService interface {
	Materialize(ctx context.Context, userID string, ship orders.Shipping) (orders.CheckoutResult, error)
	SetStatus(ctx context.Context, orderID, status string, trackingNo *string) (orders.StatusChange, error)
	SetPaymentStatus(ctx context.Context, paymentID, status string) (orders.PaymentChange, error)
	UploadPayment(ctx context.Context, userID, orderID, proofRef string) (orders.Payment, error)
}

type OrderReader interface {
	Get(ctx context.Context, orderID, userID string) (orders.Detail, error)
	ListByUser(ctx context.Context, userID string) ([]orders.Summary, error)
	List(ctx context.Context, status string) ([]orders.Summary, error)
	GetStatus(ctx context.Context, orderID string) (orders.StatusView, error)
}

type Idempotency interface {
	Begin(ctx context.Context, userID, key string) (string, bool, error)
	Finish(ctx context.Context, userID, key, orderID string) error
	Abort(ctx context.Context, userID, key string) error
}

type StatusCache interface {
	Get(ctx context.Context, orderID string) (redisx.StatusEntry, bool, error)
	Put(ctx context.Context, orderID string, e redisx.StatusEntry) (bool, error)
}

// OrdersHandler serves checkout, order reads and the admin status endpoints.
// Idem and Cache are optional.
type OrdersHandler struct {
	Orders OrderService
	Reader OrderReader
	Idem   Idempotency
	Cache  StatusCache
}

type checkoutResp struct {
	OrderID    string             `json:"order_id"`
	TotalCents int64              `json:"total_cents,omitempty"`
	Items      []orders.OrderItem `json:"items,omitempty"`
	Idempotent bool               `json:"idempotent"`
}

type uploadPaymentReq struct {
	OrderID  string `json:"order_id"`
	ProofRef string `json:"proof_ref"`
}

type setStatusReq struct {
	Status     string  `json:"status"`
	TrackingNo *string `json:"tracking_no"`
}

type setPaymentReq struct {
	Status string `json:"status"`
}

// Register mounts the customer routes; the caller applies requireUser.
func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/checkout/confirm", h.confirm)
	r.Get("/orders", h.listMine)
	r.Get("/orders/{id}", h.getMine)
	r.Get("/orders/{id}/status", h.status)
	r.Post("/payments", h.uploadPayment)
}

// RegisterAdmin expects to be mounted under /admin.
func (h *OrdersHandler) RegisterAdmin(r chi.Router) {
	r.Get("/orders", h.adminList)
	r.Get("/orders/{id}", h.adminGet)
	r.Put("/orders/{id}/status", h.setStatus)
	r.Put("/payments/{id}/status", h.setPaymentStatus)
}

func (h *OrdersHandler) confirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	uid := userID(r)
	var ship orders.Shipping
	if err := decode(r, &ship); err != nil {
		writeError(w, r, err)
		return
	}

	var key string
	if h.Idem != nil {
		key = strings.TrimSpace(r.Header.Get(headerIdempotencyKey))
	}
	if key != "" {
		orderID, done, err := h.Idem.Begin(ctx, uid, key)
		switch {
		case errors.Is(err, redisx.ErrInFlight):
			writeError(w, r, err)
			return
		case err != nil:
			// redis down: checkout still works, only retries lose their shortcut
			logging.FromContext(ctx).Warn("idempotency unavailable", zap.Error(err))
			key = ""
		case done:
			writeJSON(w, http.StatusOK, checkoutResp{OrderID: orderID, Idempotent: true})
			return
		}
	}

	res, err := h.Orders.Materialize(ctx, uid, ship)
	if err != nil {
		if key != "" {
			if aerr := h.Idem.Abort(ctx, uid, key); aerr != nil {
				logging.FromContext(ctx).Warn("idempotency abort failed", zap.Error(aerr))
			}
		}
		writeError(w, r, err)
		return
	}
	if key != "" {
		if ferr := h.Idem.Finish(ctx, uid, key, res.OrderID); ferr != nil {
			logging.FromContext(ctx).Warn("idempotency finish failed",
				zap.String("order_id", res.OrderID), zap.Error(ferr))
		}
	}
	writeJSON(w, http.StatusCreated, checkoutResp{OrderID: res.OrderID, TotalCents: res.TotalCents, Items: res.Items})
}

func (h *OrdersHandler) listMine(w http.ResponseWriter, r *http.Request) {
	list, err := h.Reader.ListByUser(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) getMine(w http.ResponseWriter, r *http.Request) {
	d, err := h.Reader.Get(r.Context(), chi.URLParam(r, "id"), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *OrdersHandler) adminList(w http.ResponseWriter, r *http.Request) {
	list, err := h.Reader.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) adminGet(w http.ResponseWriter, r *http.Request) {
	d, err := h.Reader.Get(r.Context(), chi.URLParam(r, "id"), "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// status is the cheap polling endpoint: cache first, Postgres on a miss or
// when the cached entry does not know its owner yet. Someone else's order is
// reported as missing, like the other /orders routes.
func (h *OrdersHandler) status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	uid := userID(r)
	log := logging.FromContext(ctx)
	notFound := fmt.Errorf("order %s: %w", id, apperr.ErrNotFound)

	if h.Cache != nil {
		e, ok, err := h.Cache.Get(ctx, id)
		if err != nil {
			log.Warn("status cache get failed", zap.String("order_id", id), zap.Error(err))
		}
		if ok && e.UserID != "" {
			if e.UserID != uid {
				writeError(w, r, notFound)
				return
			}
			w.Header().Set("X-Cache", "HIT")
			writeJSON(w, http.StatusOK, statusResp(id, e))
			return
		}
	}

	v, err := h.Reader.GetStatus(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	e := redisx.StatusEntry{Status: string(v.Status), UserID: v.UserID, UpdatedAt: v.UpdatedAt.UTC()}
	if h.Cache != nil {
		if _, err := h.Cache.Put(ctx, id, e); err != nil {
			log.Warn("status cache put failed", zap.String("order_id", id), zap.Error(err))
		}
	}
	if v.UserID != uid {
		writeError(w, r, notFound)
		return
	}
	w.Header().Set("X-Cache", "MISS")
	writeJSON(w, http.StatusOK, statusResp(id, e))
}

func statusResp(orderID string, e redisx.StatusEntry) map[string]any {
	return map[string]any{"order_id": orderID, "status": e.Status, "updated_at": e.UpdatedAt}
}

func (h *OrdersHandler) uploadPayment(w http.ResponseWriter, r *http.Request) {
	var req uploadPaymentReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.Orders.UploadPayment(r.Context(), userID(r), req.OrderID, req.ProofRef)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *OrdersHandler) setStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ch, err := h.Orders.SetStatus(r.Context(), chi.URLParam(r, "id"), req.Status, req.TrackingNo)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

func (h *OrdersHandler) setPaymentStatus(w http.ResponseWriter, r *http.Request) {
	var req setPaymentReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ch, err := h.Orders.SetPaymentStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}
