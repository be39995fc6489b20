package httpx

import "github.com/go-chi/chi/v5"

type Handlers struct {
	Catalog *CatalogHandler
	Cart    *CartHandler
	Orders  *OrdersHandler
	Reports *ReportsHandler
}

// Mount wires every API route onto r.
func (h Handlers) Mount(r chi.Router) {
	h.Catalog.Register(r)

	r.Group(func(r chi.Router) {
		r.Use(requireUser)
		h.Cart.Register(r)
		h.Orders.Register(r)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(requireAdmin)
		h.Catalog.RegisterAdmin(r)
		h.Orders.RegisterAdmin(r)
		h.Reports.Register(r)
	})
}
