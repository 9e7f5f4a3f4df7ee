// internal/api/router.go
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"rideflow-wallet/internal/api/handler"
)

// NewRouter sets up and returns a new HTTP router.
func NewRouter(walletHandler *handler.WalletHandler, refundHandler *handler.RefundHandler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middlewares
	r.Use(middleware.RequestID)                       // Add a request ID to the context
	r.Use(middleware.RealIP)                          // Use the real IP address
	r.Use(middleware.Logger)                          // Log HTTP requests
	r.Use(middleware.Recoverer)                       // Recover from panics and return 500
	r.Use(middleware.Timeout(handler.DefaultTimeout)) // Set a default timeout for requests
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Wallet API routes
	r.Route("/wallets", func(r chi.Router) {
		r.Post("/deposits", walletHandler.InitiateDeposit)
		r.Get("/deposits/{transactionID}/verify", walletHandler.VerifyDeposit)
		r.Post("/ride-payments", walletHandler.PayForRide)
		r.Post("/withdrawals", walletHandler.Withdraw)
		r.Get("/{userID}/balance", walletHandler.GetBalance)
		r.Get("/{userID}/transactions", walletHandler.GetTransactionHistory)
	})

	// Settlement webhook called by the payment provider
	r.Post("/payments/callback", walletHandler.PaymentCallback)

	// Refund workflow routes
	r.Route("/refunds", func(r chi.Router) {
		r.Post("/", refundHandler.RequestRefund)
		r.Get("/pending", refundHandler.ListPendingRefunds)
		r.Post("/{requestID}/approve", refundHandler.ApproveRefund)
		r.Post("/{requestID}/reject", refundHandler.RejectRefund)
	})

	return r
}
