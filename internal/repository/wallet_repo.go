// internal/repository/wallet_repo.go
package repository

import (
	"context"

	"rideflow-wallet/internal/domain"
)

// WalletRepository defines the interface for wallet data operations.
type WalletRepository interface {
	// CreateWallet adds a new wallet to the database using the provided DBExecutor.
	CreateWallet(ctx context.Context, q DBExecutor, wallet *domain.Wallet) error
	// GetWalletByUserID retrieves a user's wallet using the provided DBExecutor.
	GetWalletByUserID(ctx context.Context, q DBExecutor, userID int64) (*domain.Wallet, error)
	// GetWalletByUserIDForUpdate retrieves a user's wallet with a row lock.
	// Must be called inside a transaction; the lock is held until commit or
	// rollback, serializing concurrent balance mutations on the wallet.
	GetWalletByUserIDForUpdate(ctx context.Context, q DBExecutor, userID int64) (*domain.Wallet, error)
	// GetWalletByID retrieves a wallet by its ID using the provided DBExecutor.
	GetWalletByID(ctx context.Context, q DBExecutor, id int64) (*domain.Wallet, error)
	// GetWalletByIDForUpdate retrieves a wallet by its ID with a row lock.
	GetWalletByIDForUpdate(ctx context.Context, q DBExecutor, id int64) (*domain.Wallet, error)
	// UpdateWalletBalance applies a signed delta to a wallet's balance.
	UpdateWalletBalance(ctx context.Context, q DBExecutor, walletID int64, delta int64) error
}
