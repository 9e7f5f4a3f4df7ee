// internal/api/handler/wallet.go
package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"rideflow-wallet/internal/api/types"
	"rideflow-wallet/internal/domain"
	"rideflow-wallet/internal/gateway"
	"rideflow-wallet/internal/service"
	"rideflow-wallet/internal/util"
)

// DefaultTimeout bounds request handling in the router middleware.
const DefaultTimeout = 30 * time.Second

// WalletHandler handles HTTP requests related to wallet operations.
type WalletHandler struct {
	service    service.WalletService
	reconciler *service.CallbackReconciler
	validate   *validator.Validate
	logger     *slog.Logger
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(svc service.WalletService, reconciler *service.CallbackReconciler, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{
		service:    svc,
		reconciler: reconciler,
		validate:   validator.New(),
		logger:     logger,
	}
}

// Helper function to send JSON responses.
func respondWithJSON(w http.ResponseWriter, logger *slog.Logger, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// Helper function to send error responses.
func respondWithError(w http.ResponseWriter, logger *slog.Logger, err error) {
	statusCode := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case util.IsError(err, util.ErrInvalidInput):
		statusCode = http.StatusBadRequest
		message = "Invalid input provided"
	case util.IsError(err, util.ErrNotFound),
		util.IsError(err, util.ErrWalletNotFound),
		util.IsError(err, util.ErrTransactionNotFound):
		statusCode = http.StatusNotFound
		message = "Resource not found"
	case util.IsError(err, util.ErrInsufficientBalance):
		statusCode = http.StatusPaymentRequired // 402 Payment Required
		message = "Insufficient balance"
	case util.IsError(err, util.ErrGateway):
		statusCode = http.StatusBadGateway
		message = "Payment provider is unavailable, please retry"
	case util.IsError(err, util.ErrNoExternalReference):
		statusCode = http.StatusConflict
		message = "Transaction never reached the payment provider"
	case util.IsError(err, util.ErrAlreadyProcessed):
		statusCode = http.StatusConflict
		message = "Refund request already processed"
	case util.IsError(err, util.ErrRefundExceedsPayment):
		statusCode = http.StatusUnprocessableEntity
		message = "Refund exceeds refundable amount"
	default:
		logger.Error("Unhandled service error", "error", err)
	}

	respondWithJSON(w, logger, statusCode, map[string]string{"error": message})
}

// DepositRequest represents the request body for deposit initiation.
type DepositRequest struct {
	UserID        int64  `json:"user_id" validate:"required,gt=0"`
	Amount        int64  `json:"amount" validate:"required,gt=0"`
	PhoneNumber   string `json:"phone_number" validate:"required,numeric,min=9,max=15"`
	PaymentMethod string `json:"payment_method" validate:"required"`
}

// DepositResponse is the deposit initiation output.
type DepositResponse struct {
	TransactionID int64                    `json:"transaction_id"`
	Reference     string                   `json:"reference"`
	ExternalID    *string                  `json:"external_id,omitempty"`
	Amount        int64                    `json:"amount"`
	Fees          int64                    `json:"fees"`
	TotalAmount   int64                    `json:"total_amount"`
	Status        domain.TransactionStatus `json:"status"`
}

// InitiateDeposit handles the deposit initiation request.
// POST /wallets/deposits
func (h *WalletHandler) InitiateDeposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}

	transaction, breakdown, err := h.service.InitiateDeposit(r.Context(), req.UserID, req.Amount, req.PhoneNumber, req.PaymentMethod)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusCreated, DepositResponse{
		TransactionID: transaction.ID,
		Reference:     transaction.Reference,
		ExternalID:    transaction.ExternalID,
		Amount:        breakdown.BaseAmount,
		Fees:          breakdown.TotalFees,
		TotalAmount:   breakdown.TotalAmount,
		Status:        transaction.Status,
	})
}

// PaymentCallback handles asynchronous settlement notifications from the gateway.
// POST /payments/callback
//
// The provider must always receive a success acknowledgment for a processed
// callback, even a discarded one, or it will retry indefinitely. Only
// infrastructure failures return a non-2xx status.
func (h *WalletHandler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("Failed to read callback body", "error", err)
		respondWithJSON(w, h.logger, http.StatusOK, map[string]string{"status": "ack"})
		return
	}

	notice, err := gateway.ParseCallback(body)
	if err != nil {
		h.logger.Warn("Discarding malformed callback payload", "error", err)
		respondWithJSON(w, h.logger, http.StatusOK, map[string]string{"status": "ack"})
		return
	}

	if err := h.reconciler.HandleCallback(r.Context(), notice); err != nil {
		h.logger.Error("Callback reconciliation failed", "reference", notice.Reference, "error", err)
		respondWithJSON(w, h.logger, http.StatusInternalServerError, map[string]string{"error": "reconciliation failed"})
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, map[string]string{"status": "ack"})
}

// VerifyDeposit handles the fallback status poll for a deposit.
// GET /wallets/deposits/{transactionID}/verify?user_id=
func (h *WalletHandler) VerifyDeposit(w http.ResponseWriter, r *http.Request) {
	transactionID, err := strconv.ParseInt(chi.URLParam(r, "transactionID"), 10, 64)
	if err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}

	transaction, status, err := h.service.VerifyDeposit(r.Context(), transactionID, userID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"transaction":    transaction,
		"gateway_status": status,
	})
}

// RidePaymentRequest represents the request body for a ride payment.
type RidePaymentRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
	Amount int64 `json:"amount" validate:"required,gt=0"`
	RideID int64 `json:"ride_id" validate:"required,gt=0"`
}

// PayForRide debits the user's wallet for a completed ride.
// POST /wallets/ride-payments
func (h *WalletHandler) PayForRide(w http.ResponseWriter, r *http.Request) {
	var req RidePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}

	wallet, transaction, err := h.service.PayForRide(r.Context(), req.UserID, req.Amount, req.RideID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"message":        "Ride payment successful",
		"wallet_id":      wallet.ID,
		"new_balance":    wallet.Balance,
		"transaction_id": transaction.ID,
	})
}

// WithdrawRequest represents the request body for a withdrawal.
type WithdrawRequest struct {
	UserID      int64  `json:"user_id" validate:"required,gt=0"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	PhoneNumber string `json:"phone_number" validate:"required,numeric,min=9,max=15"`
}

// Withdraw debits the user's wallet for a payout.
// POST /wallets/withdrawals
func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}

	wallet, transaction, err := h.service.Withdraw(r.Context(), req.UserID, req.Amount, req.PhoneNumber)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"message":        "Withdrawal successful",
		"wallet_id":      wallet.ID,
		"new_balance":    wallet.Balance,
		"transaction_id": transaction.ID,
	})
}

// GetBalance returns the user's wallet balance.
// GET /wallets/{userID}/balance
func (h *WalletHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}

	wallet, err := h.service.GetBalance(r.Context(), userID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"wallet_id": wallet.ID,
		"user_id":   wallet.UserID,
		"balance":   wallet.Balance,
	})
}

// GetTransactionHistory returns the user's paginated transaction history.
// GET /wallets/{userID}/transactions?limit=&offset=
func (h *WalletHandler) GetTransactionHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}

	limit := queryIntOr(r, "limit", 20)
	offset := queryIntOr(r, "offset", 0)
	if limit <= 0 || limit > 100 || offset < 0 {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}

	transactions, totalCount, err := h.service.GetTransactionHistory(r.Context(), userID, limit, offset)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, types.PaginatedResponse[domain.Transaction]{
		Data:       transactions,
		Limit:      limit,
		Offset:     offset,
		TotalCount: totalCount,
	})
}

func queryIntOr(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return v
}
