// internal/repository/postgres/refund_pg.go
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"rideflow-wallet/internal/domain"
	"rideflow-wallet/internal/repository"
	"rideflow-wallet/internal/util"
)

// RefundRepository implements repository.RefundRepository for PostgreSQL.
type RefundRepository struct{}

// NewRefundRepository creates a new RefundRepository.
func NewRefundRepository() repository.RefundRepository {
	return &RefundRepository{}
}

const refundColumns = `id, user_id, ride_id, transaction_id, amount, reason, status,
	processed_by, processed_at, created_at, updated_at`

// CreateRefundRequest inserts a new pending refund request using the provided DBExecutor.
func (r *RefundRepository) CreateRefundRequest(ctx context.Context, q repository.DBExecutor, req *domain.RefundRequest) error {
	query := `INSERT INTO refund_requests (user_id, ride_id, transaction_id, amount, reason, status, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`
	err := q.QueryRowContext(ctx, query,
		req.UserID, req.RideID, req.TransactionID, req.Amount, req.Reason, req.Status, req.CreatedAt, req.UpdatedAt,
	).Scan(&req.ID)
	if err != nil {
		return fmt.Errorf("failed to create refund request: %w", err)
	}
	return nil
}

// GetRefundRequestByID retrieves a refund request by its ID.
func (r *RefundRepository) GetRefundRequestByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.RefundRequest, error) {
	var req domain.RefundRequest
	query := `SELECT ` + refundColumns + ` FROM refund_requests WHERE id = $1`
	err := q.GetContext(ctx, &req, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get refund request %d: %w", id, err)
	}
	return &req, nil
}

// GetRefundRequestByIDForUpdate retrieves a refund request with a row lock.
func (r *RefundRepository) GetRefundRequestByIDForUpdate(ctx context.Context, q repository.DBExecutor, id int64) (*domain.RefundRequest, error) {
	var req domain.RefundRequest
	query := `SELECT ` + refundColumns + ` FROM refund_requests WHERE id = $1 FOR UPDATE`
	err := q.GetContext(ctx, &req, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock refund request %d: %w", id, err)
	}
	return &req, nil
}

// UpdateRefundRequestStatus records the decision on a request.
func (r *RefundRepository) UpdateRefundRequestStatus(ctx context.Context, q repository.DBExecutor, id int64, status domain.RefundStatus, processedBy int64, decidedAt time.Time) error {
	query := `UPDATE refund_requests SET status = $1, processed_by = $2, processed_at = $3, updated_at = $3 WHERE id = $4`
	result, err := q.ExecContext(ctx, query, status, processedBy, decidedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update refund request %d: %w", id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after updating refund request %d: %w", id, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no rows affected when updating refund request %d: %w", id, util.ErrNotFound)
	}
	return nil
}

// ListPendingRefundRequests retrieves pending requests, oldest first, with the total count.
func (r *RefundRepository) ListPendingRefundRequests(ctx context.Context, q repository.DBExecutor, limit, offset int) ([]domain.RefundRequest, int64, error) {
	requests := []domain.RefundRequest{}

	query := `SELECT ` + refundColumns + ` FROM refund_requests
              WHERE status = $1 ORDER BY created_at ASC LIMIT $2 OFFSET $3`
	err := q.SelectContext(ctx, &requests, query, domain.RefundStatusPending, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list pending refund requests: %w", err)
	}

	var totalCount int64
	countQuery := `SELECT COUNT(*) FROM refund_requests WHERE status = $1`
	err = q.GetContext(ctx, &totalCount, countQuery, domain.RefundStatusPending)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count pending refund requests: %w", err)
	}

	return requests, totalCount, nil
}
