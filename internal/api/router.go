package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.RegisterHandler)
			r.Post("/login", h.LoginHandler)
			r.Post("/logout", h.LogoutHandler)
			r.Get("/me", h.MeHandler)
		})

		// Session-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(h.SessionAuthMiddleware)

			r.Patch("/user/profile", h.UpdateProfileHandler)
			r.Post("/user/location", h.UpdateLocationHandler)
			r.Post("/chat", h.ChatHandler)
		})
	})

	return r
}
