// internal/domain/refund.go
package domain

import "time"

// RefundStatus defines the status of a refund request.
type RefundStatus string

const (
	RefundStatusPending  RefundStatus = "pending"
	RefundStatusApproved RefundStatus = "approved"
	RefundStatusRejected RefundStatus = "rejected"
)

// RefundRequest is a manually-reviewed request to refund a past payment.
// It stays separate from the transaction ledger until approval; approval creates
// a COMPLETED REFUND transaction, rejection has no ledger effect. Requests are
// never deleted (audit trail).
type RefundRequest struct {
	ID            int64        `db:"id" json:"id"`                               // Primary key, BIGSERIAL in DB
	UserID        int64        `db:"user_id" json:"user_id"`                     // Requesting user
	RideID        *int64       `db:"ride_id" json:"ride_id,omitempty"`           // Optional ride the payment was for
	TransactionID int64        `db:"transaction_id" json:"transaction_id"`       // Original payment being refunded
	Amount        int64        `db:"amount" json:"amount"`                       // Requested refund amount
	Reason        string       `db:"reason" json:"reason"`                       // User-supplied reason
	Status        RefundStatus `db:"status" json:"status"`                       // pending, approved, rejected
	ProcessedBy   *int64       `db:"processed_by" json:"processed_by,omitempty"` // Admin who decided the request
	ProcessedAt   *time.Time   `db:"processed_at" json:"processed_at,omitempty"` // Decision timestamp
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`               // Timestamp of creation
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`               // Timestamp of last update
}

// NewRefundRequest creates a pending refund request.
func NewRefundRequest(userID, transactionID, amount int64, reason string, rideID *int64) *RefundRequest {
	now := time.Now().UTC()
	return &RefundRequest{
		UserID:        userID,
		RideID:        rideID,
		TransactionID: transactionID,
		Amount:        amount,
		Reason:        reason,
		Status:        RefundStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
