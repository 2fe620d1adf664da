package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"studybuddy-backend/internal/handlers"
	"studybuddy-backend/internal/middleware"
	"studybuddy-backend/internal/websocket"
)

func New(
	sessionHandler *handlers.SessionHandler,
	wsHub *websocket.Hub,
	askLimiter *middleware.RateLimiter,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Session Routes ────
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", sessionHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", sessionHandler.Get)
				r.Delete("/", sessionHandler.Delete)
				r.Put("/credential", sessionHandler.SetCredential)

				r.Post("/document", sessionHandler.UploadDocument)
				r.Delete("/document", sessionHandler.ClearDocument)
				r.Delete("/history", sessionHandler.ClearHistory)

				r.Group(func(r chi.Router) {
					r.Use(askLimiter.Middleware)
					r.Post("/ask", sessionHandler.Ask)
				})

				// ──── WebSocket ────
				r.Get("/ws", wsHub.HandleWebSocket)
			})
		})
	})

	return r
}
