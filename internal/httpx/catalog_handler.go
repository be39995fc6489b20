package httpx

import (
	"context"
	"github.com/ariefcatur/go-shop-orders/internal/catalog"
	"github.com/go-chi/chi/v5"
	"net/http"
)

type CatalogService interface {
	List(ctx context.Context, q string) ([]catalog.Product, error)
	Get(ctx context.Context, id int64) (catalog.Product, error)
	AdminList(ctx context.Context) ([]catalog.Product, error)
	AdminGet(ctx context.Context, id int64) (catalog.Product, error)
	Create(ctx context.Context, in catalog.NewProduct) (catalog.Product, error)
	Update(ctx context.Context, id int64, in catalog.Patch) (catalog.Product, error)
	AdjustStock(ctx context.Context, id int64, delta int) (catalog.Product, error)
	Archive(ctx context.Context, id int64) error
	Restore(ctx context.Context, id int64) error
}

type CatalogHandler struct {
	Catalog CatalogService
}

func (h *CatalogHandler) Register(r chi.Router) {
	r.Get("/catalog/products", h.list)
	r.Get("/catalog/products/{id}", h.get)
}

// RegisterAdmin expects to be mounted under /admin.
func (h *CatalogHandler) RegisterAdmin(r chi.Router) {
	r.Get("/products", h.adminList)
	r.Post("/products", h.create)
	r.Get("/products/{id}", h.adminGet)
	r.Put("/products/{id}", h.update)
	r.Post("/products/{id}/stock", h.adjustStock)
	r.Put("/products/{id}/archive", h.archive)
	r.Put("/products/{id}/restore", h.restore)
}

func (h *CatalogHandler) list(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Catalog.List(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *CatalogHandler) get(w http.ResponseWriter, r *http.Request) {
	h.byID(w, r, h.Catalog.Get)
}

func (h *CatalogHandler) adminGet(w http.ResponseWriter, r *http.Request) {
	h.byID(w, r, h.Catalog.AdminGet)
}

func (h *CatalogHandler) byID(w http.ResponseWriter, r *http.Request, load func(context.Context, int64) (catalog.Product, error)) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := load(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) adminList(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Catalog.AdminList(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *CatalogHandler) create(w http.ResponseWriter, r *http.Request) {
	var req catalog.NewProduct
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.Catalog.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *CatalogHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req catalog.Patch
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.Catalog.Update(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type adjustStockReq struct {
	Delta int `json:"delta"`
}

func (h *CatalogHandler) adjustStock(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req adjustStockReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.Catalog.AdjustStock(r.Context(), id, req.Delta)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) archive(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.Catalog.Archive)
}

func (h *CatalogHandler) restore(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.Catalog.Restore)
}

func (h *CatalogHandler) toggle(w http.ResponseWriter, r *http.Request, op func(context.Context, int64) error) {
	id, err := idParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := op(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
