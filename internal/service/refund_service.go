// internal/service/refund_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rideflow-wallet/internal/domain"
	"rideflow-wallet/internal/repository"
	"rideflow-wallet/internal/util"
	"rideflow-wallet/pkg/db"
)

// RefundService is the manually-reviewed refund workflow: a user requests a
// refund of a past payment, an admin approves (crediting the wallet through
// the ledger) or rejects it. Both decisions are terminal and single-fire.
type RefundService interface {
	// RequestRefund validates the referenced payment and records a pending
	// request. Cumulative refunds against one payment can never exceed its
	// original amount.
	RequestRefund(ctx context.Context, userID, transactionID, amount int64, reason string, rideID *int64) (*domain.RefundRequest, error)
	// ApproveRefund credits the wallet and marks the request approved, as one
	// atomic unit. A second decision on the same request fails with
	// util.ErrAlreadyProcessed.
	ApproveRefund(ctx context.Context, requestID, adminID int64) (*domain.RefundRequest, *domain.Transaction, error)
	// RejectRefund marks the request rejected with no ledger effect.
	RejectRefund(ctx context.Context, requestID, adminID int64) (*domain.RefundRequest, error)
	// ListPendingRefunds returns undecided requests, oldest first.
	ListPendingRefunds(ctx context.Context, limit, offset int) ([]domain.RefundRequest, int64, error)
}

// refundService implements RefundService.
type refundService struct {
	dbBeginner db.DBTxBeginner
	dbExecutor repository.DBExecutor
	refundRepo repository.RefundRepository
	txRepo     repository.TransactionRepository
	ledger     TransactionLedger
	beginTx    db.BeginTxFunc
	commitTx   db.CommitTxFunc
	rollbackTx db.RollbackTxFunc
	logger     *slog.Logger
}

// NewRefundService creates a new RefundService.
func NewRefundService(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	refundRepo repository.RefundRepository,
	txRepo repository.TransactionRepository,
	ledger TransactionLedger,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
	logger *slog.Logger,
) RefundService {
	return &refundService{
		dbBeginner: dbBeginner,
		dbExecutor: dbExecutor,
		refundRepo: refundRepo,
		txRepo:     txRepo,
		ledger:     ledger,
		beginTx:    beginTx,
		commitTx:   commitTx,
		rollbackTx: rollbackTx,
		logger:     logger,
	}
}

// RequestRefund records a pending refund request for a payment owned by the user.
func (s *refundService) RequestRefund(ctx context.Context, userID, transactionID, amount int64, reason string, rideID *int64) (*domain.RefundRequest, error) {
	if amount <= 0 || reason == "" {
		return nil, util.ErrInvalidInput
	}

	transaction, err := s.ledger.GetTransactionByID(ctx, transactionID, userID)
	if err != nil {
		return nil, err
	}
	if transaction.Status != domain.TransactionStatusCompleted {
		return nil, util.ErrInvalidInput
	}
	// Only ride payments are refundable. A settled deposit already credited
	// the wallet, so "refunding" it here would credit the same money twice;
	// returning deposited funds to the user is a withdrawal, not a refund.
	if transaction.Type != domain.TransactionTypeRidePayment {
		return nil, util.ErrInvalidInput
	}

	refunded, err := s.txRepo.SumCompletedRefunds(ctx, s.dbExecutor, transactionID)
	if err != nil {
		return nil, fmt.Errorf("request refund: %w", err)
	}
	if refunded+amount > transaction.Amount {
		return nil, util.ErrRefundExceedsPayment
	}

	request := domain.NewRefundRequest(userID, transactionID, amount, reason, rideID)
	if err := s.refundRepo.CreateRefundRequest(ctx, s.dbExecutor, request); err != nil {
		return nil, fmt.Errorf("request refund: %w", err)
	}

	s.logger.InfoContext(ctx, "Refund requested",
		"refund_request_id", request.ID, "user_id", userID,
		"transaction_id", transactionID, "amount", amount)
	return request, nil
}

// ApproveRefund decides a pending request and credits the wallet. The request
// row lock makes the decision single-fire; the refund bound is re-checked
// under the same database transaction, so two racing approvals of different
// requests against the same payment cannot jointly overshoot it.
func (s *refundService) ApproveRefund(ctx context.Context, requestID, adminID int64) (*domain.RefundRequest, *domain.Transaction, error) {
	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, nil, fmt.Errorf("approve refund: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, nil, fmt.Errorf("approve refund: transaction controller does not implement DBExecutor")
	}

	request, err := s.lockPendingRequest(ctx, txExecutor, requestID)
	if err != nil {
		return nil, nil, err
	}

	original, err := s.txRepo.GetTransactionByID(ctx, txExecutor, request.TransactionID)
	if err != nil {
		return nil, nil, fmt.Errorf("approve refund: failed to get original payment %d: %w", request.TransactionID, err)
	}
	refunded, err := s.txRepo.SumCompletedRefunds(ctx, txExecutor, request.TransactionID)
	if err != nil {
		return nil, nil, fmt.Errorf("approve refund: %w", err)
	}
	if refunded+request.Amount > original.Amount {
		return nil, nil, util.ErrRefundExceedsPayment
	}

	decidedAt := time.Now().UTC()
	if err := s.refundRepo.UpdateRefundRequestStatus(ctx, txExecutor, request.ID, domain.RefundStatusApproved, adminID, decidedAt); err != nil {
		return nil, nil, fmt.Errorf("approve refund: %w", err)
	}

	_, refundTx, err := s.ledger.AddFundsTx(ctx, txExecutor, request.UserID, request.Amount,
		domain.TransactionTypeRefund, &request.TransactionID, request.Reason)
	if err != nil {
		return nil, nil, fmt.Errorf("approve refund: failed to credit wallet: %w", err)
	}

	if err := s.commitTx(txController); err != nil {
		return nil, nil, fmt.Errorf("approve refund: failed to commit: %w", err)
	}

	request.Status = domain.RefundStatusApproved
	request.ProcessedBy = &adminID
	request.ProcessedAt = &decidedAt
	request.UpdatedAt = decidedAt
	s.logger.InfoContext(ctx, "Refund approved",
		"refund_request_id", request.ID, "admin_id", adminID,
		"amount", request.Amount, "refund_transaction_id", refundTx.ID)
	return request, refundTx, nil
}

// RejectRefund decides a pending request with no ledger effect.
func (s *refundService) RejectRefund(ctx context.Context, requestID, adminID int64) (*domain.RefundRequest, error) {
	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("reject refund: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("reject refund: transaction controller does not implement DBExecutor")
	}

	request, err := s.lockPendingRequest(ctx, txExecutor, requestID)
	if err != nil {
		return nil, err
	}

	decidedAt := time.Now().UTC()
	if err := s.refundRepo.UpdateRefundRequestStatus(ctx, txExecutor, request.ID, domain.RefundStatusRejected, adminID, decidedAt); err != nil {
		return nil, fmt.Errorf("reject refund: %w", err)
	}

	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("reject refund: failed to commit: %w", err)
	}

	request.Status = domain.RefundStatusRejected
	request.ProcessedBy = &adminID
	request.ProcessedAt = &decidedAt
	request.UpdatedAt = decidedAt
	s.logger.InfoContext(ctx, "Refund rejected",
		"refund_request_id", request.ID, "admin_id", adminID)
	return request, nil
}

// ListPendingRefunds returns undecided requests, oldest first.
func (s *refundService) ListPendingRefunds(ctx context.Context, limit, offset int) ([]domain.RefundRequest, int64, error) {
	return s.refundRepo.ListPendingRefundRequests(ctx, s.dbExecutor, limit, offset)
}

func (s *refundService) lockPendingRequest(ctx context.Context, q repository.DBExecutor, requestID int64) (*domain.RefundRequest, error) {
	request, err := s.refundRepo.GetRefundRequestByIDForUpdate(ctx, q, requestID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock refund request %d: %w", requestID, err)
	}
	if request.Status != domain.RefundStatusPending {
		return nil, util.ErrAlreadyProcessed
	}
	return request, nil
}
