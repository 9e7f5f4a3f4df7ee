// internal/api/handler/refund.go
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"rideflow-wallet/internal/api/types"
	"rideflow-wallet/internal/domain"
	"rideflow-wallet/internal/service"
	"rideflow-wallet/internal/util"
)

// RefundHandler handles HTTP requests for the refund workflow.
type RefundHandler struct {
	service  service.RefundService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewRefundHandler creates a new RefundHandler.
func NewRefundHandler(svc service.RefundService, logger *slog.Logger) *RefundHandler {
	return &RefundHandler{
		service:  svc,
		validate: validator.New(),
		logger:   logger,
	}
}

// RefundRequestBody represents the request body for a refund request.
type RefundRequestBody struct {
	UserID        int64  `json:"user_id" validate:"required,gt=0"`
	TransactionID int64  `json:"transaction_id" validate:"required,gt=0"`
	Amount        int64  `json:"amount" validate:"required,gt=0"`
	Reason        string `json:"reason" validate:"required"`
	RideID        *int64 `json:"ride_id,omitempty"`
}

// RequestRefund records a pending refund request.
// POST /refunds
func (h *RefundHandler) RequestRefund(w http.ResponseWriter, r *http.Request) {
	var req RefundRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}

	request, err := h.service.RequestRefund(r.Context(), req.UserID, req.TransactionID, req.Amount, req.Reason, req.RideID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusCreated, request)
}

// RefundDecisionBody carries the admin identity for a refund decision.
type RefundDecisionBody struct {
	AdminID int64 `json:"admin_id" validate:"required,gt=0"`
}

// ApproveRefund approves a pending refund request and credits the wallet.
// POST /refunds/{requestID}/approve
func (h *RefundHandler) ApproveRefund(w http.ResponseWriter, r *http.Request) {
	requestID, err := strconv.ParseInt(chi.URLParam(r, "requestID"), 10, 64)
	if err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}
	var body RefundDecisionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}
	if err := h.validate.Struct(body); err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}

	request, refundTx, err := h.service.ApproveRefund(r.Context(), requestID, body.AdminID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"refund_request":        request,
		"refund_transaction_id": refundTx.ID,
	})
}

// RejectRefund rejects a pending refund request.
// POST /refunds/{requestID}/reject
func (h *RefundHandler) RejectRefund(w http.ResponseWriter, r *http.Request) {
	requestID, err := strconv.ParseInt(chi.URLParam(r, "requestID"), 10, 64)
	if err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}
	var body RefundDecisionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}
	if err := h.validate.Struct(body); err != nil {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}

	request, err := h.service.RejectRefund(r.Context(), requestID, body.AdminID)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, request)
}

// ListPendingRefunds returns undecided refund requests, oldest first.
// GET /refunds/pending?limit=&offset=
func (h *RefundHandler) ListPendingRefunds(w http.ResponseWriter, r *http.Request) {
	limit := queryIntOr(r, "limit", 20)
	offset := queryIntOr(r, "offset", 0)
	if limit <= 0 || limit > 100 || offset < 0 {
		respondWithError(w, h.logger, util.ErrInvalidInput)
		return
	}

	requests, totalCount, err := h.service.ListPendingRefunds(r.Context(), limit, offset)
	if err != nil {
		respondWithError(w, h.logger, err)
		return
	}

	respondWithJSON(w, h.logger, http.StatusOK, types.PaginatedResponse[domain.RefundRequest]{
		Data:       requests,
		Limit:      limit,
		Offset:     offset,
		TotalCount: totalCount,
	})
}
