package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/baharkarakas/securebank/internal/api/handlers"
	"github.com/baharkarakas/securebank/internal/auth"
	"github.com/baharkarakas/securebank/internal/metrics"
	"github.com/baharkarakas/securebank/internal/middleware"
)

type RouterDeps struct {
	Log       *slog.Logger
	RateRPS   int
	Tokens    *auth.TokenManager
	Transfers *handlers.TransferHandler
	Accounts  *handlers.AccountHandler
	Auth      *handlers.AuthHandler
	// KafkaMetrics serves the producer client metrics when Kafka is in use.
	KafkaMetrics http.Handler
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recover(d.Log), middleware.AccessLog(d.Log), middleware.HTTPMetrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Idempotency-Key", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
	}))

	// health & metrics
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", metrics.Handler())
	if d.KafkaMetrics != nil {
		r.Handle("/metrics/kafka", d.KafkaMetrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(d.RateRPS))

		r.Post("/transfers", d.Transfers.Create)
		r.Post("/auth/token", d.Auth.Token)

		// operator routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(d.Tokens))

			r.Get("/accounts/{id}", d.Accounts.Get)
			r.Get("/accounts/number/{number}", d.Accounts.GetByNumber)
			r.Get("/accounts/{id}/transactions", d.Accounts.Transactions)
			r.Get("/accounts/{id}/audit", d.Accounts.History)
			r.Get("/transactions/{id}", d.Accounts.Transaction)

			r.With(middleware.RequireRole(auth.RoleManager)).Group(func(r chi.Router) {
				r.Post("/accounts", d.Accounts.Open)
				r.Post("/accounts/{id}/freeze", d.Accounts.Freeze)
				r.Post("/accounts/{id}/adjust", d.Accounts.Adjust)
			})
		})
	})

	return r
}
