package tracker

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/buildtrack/buildtrack-backend/internal/middleware"
)

// SetupRoutes mounts every tracker endpoint behind the session middleware.
// uploadLimiter applies to the upload route only.
func SetupRoutes(h *Handler, sessions middleware.SessionFetcher, uploadLimiter *middleware.RateLimiter) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.SessionMiddleware(sessions))

	r.Route("/clients", func(r chi.Router) {
		r.Get("/", h.ListClients)
		r.Post("/", h.CreateClient)
		r.Get("/{id}", h.GetClient)
		r.Put("/{id}", h.UpdateClient)
		r.Delete("/{id}", h.DeleteClient)
	})

	r.Route("/projects", func(r chi.Router) {
		r.Get("/", h.ListProjects)
		r.Post("/", h.CreateProject)
		r.Get("/{id}", h.GetProject)
		r.Put("/{id}", h.UpdateProject)
		r.Delete("/{id}", h.DeleteProject)
		r.Get("/{id}/contracts", h.ListProjectContracts)
		r.Get("/{id}/receipts", h.ListProjectReceipts)
	})

	r.Route("/contracts", func(r chi.Router) {
		r.Post("/", h.CreateContract)
		r.Get("/{id}", h.GetContract)
		r.Put("/{id}", h.UpdateContract)
		r.Delete("/{id}", h.DeleteContract)
		r.Get("/{id}/line-items", h.ListLineItems)
	})

	r.Route("/line-items", func(r chi.Router) {
		r.Post("/", h.CreateLineItem)
		r.Put("/{id}", h.UpdateLineItem)
		r.Delete("/{id}", h.DeleteLineItem)
	})

	r.Route("/receipts", func(r chi.Router) {
		r.Get("/", h.ListReceipts)
		r.Get("/export", h.ExportReceipts)
		r.With(uploadLimiter.Middleware).Post("/upload", h.UploadReceipt)
		r.Get("/{id}", h.GetReceipt)
		r.Put("/{id}", h.UpdateReceipt)
		r.Delete("/{id}", h.DeleteReceipt)
		r.Get("/{id}/line-items", h.ListReceiptLineItems)
		r.Post("/{id}/parse", h.ReparseReceipt)
	})

	r.Get("/parse-tasks/{taskId}", h.ParseTaskStatus)

	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Post("/", h.CreateProduct)
		r.Get("/similar/{name}", h.SimilarProducts)
	})

	r.Get("/dashboard/stats", h.DashboardStats)

	return r
}
