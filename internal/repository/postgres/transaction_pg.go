// internal/repository/postgres/transaction_pg.go
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

// TransactionRepository implements repository.TransactionRepository for PostgreSQL.
type TransactionRepository struct{}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository() repository.TransactionRepository {
	return &TransactionRepository{}
}

const transactionColumns = `id, wallet_id, reference, type, amount, fees, total_amount, status,
	payment_method, payment_provider, external_id, ride_id, refund_of, phone_number,
	description, provider_data, created_at, updated_at`

// CreateTransaction inserts a new transaction record into the database using the provided DBExecutor.
func (r *TransactionRepository) CreateTransaction(ctx context.Context, q repository.DBExecutor, transaction *domain.Transaction) error {
	query := `INSERT INTO transactions (wallet_id, reference, type, amount, fees, total_amount, status,
                payment_method, payment_provider, external_id, ride_id, refund_of, phone_number,
                description, provider_data, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
              RETURNING id`

	err := q.QueryRowContext(ctx, query,
		transaction.WalletID,
		transaction.Reference,
		transaction.Type,
		transaction.Amount,
		transaction.Fees,
		transaction.TotalAmount,
		transaction.Status,
		transaction.PaymentMethod,
		transaction.PaymentProvider,
		transaction.ExternalID,
		transaction.RideID,
		transaction.RefundOf,
		transaction.PhoneNumber,
		transaction.Description,
		transaction.ProviderData,
		transaction.CreatedAt,
		transaction.UpdatedAt,
	).Scan(&transaction.ID)

	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// GetTransactionByID retrieves a transaction by its ID using the provided DBExecutor.
func (r *TransactionRepository) GetTransactionByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Transaction, error) {
	var transaction domain.Transaction
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	err := q.GetContext(ctx, &transaction, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction %d: %w", id, err)
	}
	return &transaction, nil
}

// GetTransactionByReference retrieves a transaction by its merchant reference.
func (r *TransactionRepository) GetTransactionByReference(ctx context.Context, q repository.DBExecutor, reference string) (*domain.Transaction, error) {
	var transaction domain.Transaction
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference = $1`
	err := q.GetContext(ctx, &transaction, query, reference)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction by reference %q: %w", reference, err)
	}
	return &transaction, nil
}

// GetTransactionByReferenceForUpdate retrieves a transaction by merchant reference with a row lock.
func (r *TransactionRepository) GetTransactionByReferenceForUpdate(ctx context.Context, q repository.DBExecutor, reference string) (*domain.Transaction, error) {
	var transaction domain.Transaction
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference = $1 FOR UPDATE`
	err := q.GetContext(ctx, &transaction, query, reference)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock transaction by reference %q: %w", reference, err)
	}
	return &transaction, nil
}

// SetExternalID stores the gateway-assigned reference on a transaction.
func (r *TransactionRepository) SetExternalID(ctx context.Context, q repository.DBExecutor, id int64, externalID string) error {
	query := `UPDATE transactions SET external_id = $1, updated_at = $2 WHERE id = $3`
	if _, err := q.ExecContext(ctx, query, externalID, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("failed to set external ID on transaction %d: %w", id, err)
	}
	return nil
}

// UpdateTransactionStatus moves a transaction to the given status, storing the provider payload alongside it.
func (r *TransactionRepository) UpdateTransactionStatus(ctx context.Context, q repository.DBExecutor, id int64, status domain.TransactionStatus, providerData []byte) error {
	query := `UPDATE transactions SET status = $1, provider_data = COALESCE($2, provider_data), updated_at = $3 WHERE id = $4`
	var data interface{}
	if len(providerData) > 0 {
		data = providerData
	}
	if _, err := q.ExecContext(ctx, query, status, data, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("failed to update status of transaction %d: %w", id, err)
	}
	return nil
}

// UpdateProviderData stores the latest provider payload without changing status.
func (r *TransactionRepository) UpdateProviderData(ctx context.Context, q repository.DBExecutor, id int64, providerData []byte) error {
	query := `UPDATE transactions SET provider_data = $1, updated_at = $2 WHERE id = $3`
	if _, err := q.ExecContext(ctx, query, providerData, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("failed to update provider data of transaction %d: %w", id, err)
	}
	return nil
}

// GetTransactionsByWalletID retrieves a paginated list of transactions for a specific wallet.
// It performs two queries: one for the data and one for the total count.
func (r *TransactionRepository) GetTransactionsByWalletID(ctx context.Context, q repository.DBExecutor, walletID int64, limit, offset int) ([]domain.Transaction, int64, error) {
	transactions := []domain.Transaction{}

	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE wallet_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	err := q.SelectContext(ctx, &transactions, query, walletID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch transactions for wallet %d: %w", walletID, err)
	}

	var totalCount int64
	countQuery := `SELECT COUNT(*) FROM transactions WHERE wallet_id = $1`
	err = q.GetContext(ctx, &totalCount, countQuery, walletID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get total transaction count for wallet %d: %w", walletID, err)
	}

	return transactions, totalCount, nil
}

// SumCompletedRefunds returns the total amount of COMPLETED REFUND transactions
// referencing the given original transaction.
func (r *TransactionRepository) SumCompletedRefunds(ctx context.Context, q repository.DBExecutor, transactionID int64) (int64, error) {
	var total int64
	query := `SELECT COALESCE(SUM(amount), 0) FROM transactions
              WHERE refund_of = $1 AND type = $2 AND status = $3`
	err := q.GetContext(ctx, &total, query, transactionID, domain.TransactionTypeRefund, domain.TransactionStatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("failed to sum refunds of transaction %d: %w", transactionID, err)
	}
	return total, nil
}
