// internal/repository/refund_repo.go
package repository

import (
	"context"
	"time"

	"rideflow-wallet/internal/domain"
)

// RefundRepository defines the interface for refund request data operations.
// Refund requests are append-then-decide records; they are never deleted.
type RefundRepository interface {
	// CreateRefundRequest adds a new pending refund request.
	CreateRefundRequest(ctx context.Context, q DBExecutor, req *domain.RefundRequest) error
	// GetRefundRequestByID retrieves a refund request by its ID.
	GetRefundRequestByID(ctx context.Context, q DBExecutor, id int64) (*domain.RefundRequest, error)
	// GetRefundRequestByIDForUpdate retrieves a refund request with a row lock,
	// so approve/reject decisions are single-fire under concurrency.
	GetRefundRequestByIDForUpdate(ctx context.Context, q DBExecutor, id int64) (*domain.RefundRequest, error)
	// UpdateRefundRequestStatus records the decision on a request. The caller
	// supplies decidedAt so the returned domain object and the stored row carry
	// the same decision timestamp.
	UpdateRefundRequestStatus(ctx context.Context, q DBExecutor, id int64, status domain.RefundStatus, processedBy int64, decidedAt time.Time) error
	// ListPendingRefundRequests retrieves pending requests, oldest first.
	ListPendingRefundRequests(ctx context.Context, q DBExecutor, limit, offset int) ([]domain.RefundRequest, int64, error)
}
