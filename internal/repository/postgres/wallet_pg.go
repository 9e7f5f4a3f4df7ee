// internal/repository/postgres/wallet_pg.go
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

// WalletRepository implements repository.WalletRepository for PostgreSQL.
type WalletRepository struct{}

// NewWalletRepository creates a new WalletRepository.
func NewWalletRepository() repository.WalletRepository {
	return &WalletRepository{}
}

const walletColumns = `id, user_id, balance, created_at, updated_at`

// CreateWallet inserts a new wallet into the database using the provided DBExecutor.
func (r *WalletRepository) CreateWallet(ctx context.Context, q repository.DBExecutor, wallet *domain.Wallet) error {
	query := `INSERT INTO wallets (user_id, balance, created_at, updated_at)
              VALUES ($1, $2, $3, $4) RETURNING id`
	err := q.QueryRowContext(ctx, query, wallet.UserID, wallet.Balance, wallet.CreatedAt, wallet.UpdatedAt).Scan(&wallet.ID)
	if err != nil {
		return fmt.Errorf("failed to create wallet for user %d: %w", wallet.UserID, err)
	}
	return nil
}

// GetWalletByUserID retrieves a user's wallet using the provided DBExecutor.
func (r *WalletRepository) GetWalletByUserID(ctx context.Context, q repository.DBExecutor, userID int64) (*domain.Wallet, error) {
	var wallet domain.Wallet
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1`
	err := q.GetContext(ctx, &wallet, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get wallet for user %d: %w", userID, err)
	}
	return &wallet, nil
}

// GetWalletByUserIDForUpdate retrieves a user's wallet with a row lock.
func (r *WalletRepository) GetWalletByUserIDForUpdate(ctx context.Context, q repository.DBExecutor, userID int64) (*domain.Wallet, error) {
	var wallet domain.Wallet
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 FOR UPDATE`
	err := q.GetContext(ctx, &wallet, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock wallet for user %d: %w", userID, err)
	}
	return &wallet, nil
}

// GetWalletByID retrieves a wallet by its ID using the provided DBExecutor.
func (r *WalletRepository) GetWalletByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Wallet, error) {
	var wallet domain.Wallet
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`
	err := q.GetContext(ctx, &wallet, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get wallet %d: %w", id, err)
	}
	return &wallet, nil
}

// GetWalletByIDForUpdate retrieves a wallet by its ID with a row lock.
func (r *WalletRepository) GetWalletByIDForUpdate(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Wallet, error) {
	var wallet domain.Wallet
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1 FOR UPDATE`
	err := q.GetContext(ctx, &wallet, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to lock wallet %d: %w", id, err)
	}
	return &wallet, nil
}

// UpdateWalletBalance applies a signed delta to a wallet's balance using the provided DBExecutor.
func (r *WalletRepository) UpdateWalletBalance(ctx context.Context, q repository.DBExecutor, walletID int64, delta int64) error {
	query := `UPDATE wallets SET balance = balance + $1, updated_at = $2 WHERE id = $3`
	result, err := q.ExecContext(ctx, query, delta, time.Now().UTC(), walletID)
	if err != nil {
		return fmt.Errorf("failed to update wallet balance for ID %d: %w", walletID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after updating wallet balance for ID %d: %w", walletID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no rows affected when updating wallet balance for ID %d: %w", walletID, util.ErrWalletNotFound)
	}
	return nil
}
