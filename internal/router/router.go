package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/khana-fast/api/internal/config"
	"github.com/khana-fast/api/internal/database"
	"github.com/khana-fast/api/internal/enum"
	"github.com/khana-fast/api/internal/handler"
	mw "github.com/khana-fast/api/internal/middleware"
	"github.com/khana-fast/api/internal/service"
	"github.com/khana-fast/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
func New(cfg *config.Config, queries *database.Queries, pool service.TxBeginner, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173",         // dashboard dev server
			"https://admin.khanafast.in",    // production dashboard
			"https://stg-admin.khanafast.in",
		},
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
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Order events fan out to every role's screen.
	publisher := ws.NewPublisher(hub, enum.UserRoleAdmin, enum.UserRolePicker, enum.UserRolePacker)

	newOrderStore := func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}
	orderService := service.NewOrderService(pool, newOrderStore, queries, publisher)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		handler.NewOrderHandler(queries, orderService).RegisterRoutes(r)
		handler.NewInvoiceHandler(queries).RegisterRoutes(r)
		handler.NewUserHandler(queries).RegisterRoutes(r)
		handler.NewAddressHandler(queries).RegisterRoutes(r)
	})

	return r
}
