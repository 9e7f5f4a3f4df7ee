// internal/repository/transaction_repo.go
package repository

import (
	"context"

	"rideflow-wallet/internal/domain"
)

// TransactionRepository defines the interface for transaction data operations.
type TransactionRepository interface {
	// CreateTransaction adds a new transaction record to the database using the provided DBExecutor.
	CreateTransaction(ctx context.Context, q DBExecutor, transaction *domain.Transaction) error
	// GetTransactionByID retrieves a transaction by its ID.
	GetTransactionByID(ctx context.Context, q DBExecutor, id int64) (*domain.Transaction, error)
	// GetTransactionByReference retrieves a transaction by its merchant reference.
	GetTransactionByReference(ctx context.Context, q DBExecutor, reference string) (*domain.Transaction, error)
	// GetTransactionByReferenceForUpdate retrieves a transaction by merchant
	// reference with a row lock. Must be called inside a transaction; duplicate
	// callbacks for the same payment serialize on this lock.
	GetTransactionByReferenceForUpdate(ctx context.Context, q DBExecutor, reference string) (*domain.Transaction, error)
	// SetExternalID stores the gateway-assigned reference on a transaction.
	SetExternalID(ctx context.Context, q DBExecutor, id int64, externalID string) error
	// UpdateTransactionStatus moves a transaction to the given status, storing
	// the provider payload (may be nil) alongside it.
	UpdateTransactionStatus(ctx context.Context, q DBExecutor, id int64, status domain.TransactionStatus, providerData []byte) error
	// UpdateProviderData stores the latest provider payload without changing status.
	UpdateProviderData(ctx context.Context, q DBExecutor, id int64, providerData []byte) error
	// GetTransactionsByWalletID retrieves paginated transaction history for a
	// wallet, newest first, along with the total count.
	GetTransactionsByWalletID(ctx context.Context, q DBExecutor, walletID int64, limit, offset int) ([]domain.Transaction, int64, error)
	// SumCompletedRefunds returns the total amount of COMPLETED REFUND
	// transactions that reference the given original transaction.
	SumCompletedRefunds(ctx context.Context, q DBExecutor, transactionID int64) (int64, error)
}
