package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warung-pos/api/internal/catalog"
	"github.com/warung-pos/api/internal/config"
	"github.com/warung-pos/api/internal/handler"
	mw "github.com/warung-pos/api/internal/middleware"
	"github.com/warung-pos/api/internal/store"
	"github.com/warung-pos/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
func New(cfg *config.Config, st *store.Store, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(st, cfg.JWTSecret)
	r.Post("/auth/login", authHandler.Login)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		resolver := catalog.NewResolver(st)
		catalogHandler := handler.NewCatalogHandler(st, resolver)
		r.Route("/catalog", catalogHandler.RegisterRoutes)

		orderHandler := handler.NewOrderHandler(st, hub)
		r.Route("/orders", orderHandler.RegisterRoutes)
	})

	return r
}
