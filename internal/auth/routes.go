package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/buildtrack/buildtrack-backend/internal/middleware"
)

func SetupRoutes(h *Handler) http.Handler {
	r := chi.NewRouter()
	sessionFetcher := SessionInfo{DB: h.db}

	r.Post("/register", h.RegisterHandler)
	r.Post("/login", h.LoginHandler)

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(sessionFetcher))
		r.Post("/logout", h.LogoutHandler)
		r.Get("/user", h.MeHandler)
		r.Post("/password", h.UpdatePasswordHandler)
	})

	return r
}
