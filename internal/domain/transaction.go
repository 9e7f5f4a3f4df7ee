// internal/domain/transaction.go
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
)

// TransactionType defines the type of a financial transaction.
type TransactionType string

const (
	TransactionTypeDeposit     TransactionType = "DEPOSIT"
	TransactionTypeRidePayment TransactionType = "RIDE_PAYMENT"
	TransactionTypeRefund      TransactionType = "REFUND"
	TransactionTypeWithdrawal  TransactionType = "WITHDRAWAL"
)

// TransactionStatus defines the status of a financial transaction.
// PENDING and FAILED only occur for deposits; ride payments, refunds and
// withdrawals are created already COMPLETED, atomically with the balance change.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// Transaction represents a balance-affecting event on a wallet.
// Amount is the net effect on the balance (always a positive magnitude, the sign
// is implied by Type). Fees are charged on deposits only; TotalAmount is what the
// user is charged externally (amount + fees for deposits, amount otherwise).
type Transaction struct {
	ID              int64             `db:"id" json:"id"`                                       // Primary key, BIGSERIAL in DB
	WalletID        int64             `db:"wallet_id" json:"wallet_id"`                         // Owning wallet
	Reference       string            `db:"reference" json:"reference"`                         // Unique merchant reference sent to the gateway
	Type            TransactionType   `db:"type" json:"type"`                                   // DEPOSIT, RIDE_PAYMENT, REFUND, WITHDRAWAL
	Amount          int64             `db:"amount" json:"amount"`                               // Net effect on the balance
	Fees            int64             `db:"fees" json:"fees"`                                   // Gateway + operator fees (deposits only)
	TotalAmount     int64             `db:"total_amount" json:"total_amount"`                   // Amount charged to the user externally
	Status          TransactionStatus `db:"status" json:"status"`                               // PENDING, COMPLETED, FAILED
	PaymentMethod   *string           `db:"payment_method" json:"payment_method,omitempty"`     // e.g. "ORANGE_MONEY", "MTN_MOMO"
	PaymentProvider *string           `db:"payment_provider" json:"payment_provider,omitempty"` // e.g. "MY_COOLPAY"
	ExternalID      *string           `db:"external_id" json:"external_id,omitempty"`           // Gateway-assigned reference, set after initiation
	RideID          *int64            `db:"ride_id" json:"ride_id,omitempty"`                   // Ride paid for (RIDE_PAYMENT only)
	RefundOf        *int64            `db:"refund_of" json:"refund_of,omitempty"`               // Original payment being refunded (REFUND only)
	PhoneNumber     *string           `db:"phone_number" json:"phone_number,omitempty"`         // Customer mobile-money number (deposits/withdrawals)
	Description     *string           `db:"description" json:"description,omitempty"`           // Optional free-form description
	ProviderData    types.JSONText    `db:"provider_data" json:"provider_data,omitempty"`       // Raw provider passthrough (latest callback payload)
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`                       // Timestamp of record creation
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`                       // Timestamp of last update
}

// IsTerminal reports whether the transaction has reached a terminal status.
// Terminal transactions are immutable; replayed gateway callbacks against them
// must be discarded.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusCompleted || t.Status == TransactionStatusFailed
}

// BalanceEffect returns the signed effect of this transaction on the wallet
// balance, assuming it is (or becomes) COMPLETED.
func (t *Transaction) BalanceEffect() int64 {
	switch t.Type {
	case TransactionTypeDeposit, TransactionTypeRefund:
		return t.Amount
	case TransactionTypeRidePayment, TransactionTypeWithdrawal:
		return -t.Amount
	}
	return 0
}

// NewPendingDeposit creates a PENDING deposit transaction. The gateway call is
// dispatched after the record exists, so a failed dispatch leaves evidence of
// the attempt for later reconciliation.
func NewPendingDeposit(walletID, amount, fees int64, method, provider, phoneNumber string) *Transaction {
	now := time.Now().UTC()
	return &Transaction{
		WalletID:        walletID,
		Reference:       uuid.NewString(),
		Type:            TransactionTypeDeposit,
		Amount:          amount,
		Fees:            fees,
		TotalAmount:     amount + fees,
		Status:          TransactionStatusPending,
		PaymentMethod:   &method,
		PaymentProvider: &provider,
		PhoneNumber:     &phoneNumber,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// NewCompletedTransaction creates a transaction that is finalized atomically
// with its balance mutation (ride payments, refunds, withdrawals, admin credits).
func NewCompletedTransaction(walletID, amount int64, txType TransactionType, description *string) *Transaction {
	now := time.Now().UTC()
	return &Transaction{
		WalletID:    walletID,
		Reference:   uuid.NewString(),
		Type:        txType,
		Amount:      amount,
		Fees:        0,
		TotalAmount: amount,
		Status:      TransactionStatusCompleted,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
