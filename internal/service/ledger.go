// internal/service/ledger.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"rideflow-wallet/internal/domain"
	"rideflow-wallet/internal/repository"
	"rideflow-wallet/internal/util"
	"rideflow-wallet/pkg/db"
)

// TransactionLedger owns all wallet balance mutations. Every debit and credit
// runs as a single atomic unit with its transaction record, under a row lock
// on the wallet, so the balance is always reconstructible from the COMPLETED
// transaction history.
type TransactionLedger interface {
	// GetBalance returns the user's wallet, creating a zero-balance wallet on
	// first access.
	GetBalance(ctx context.Context, userID int64) (*domain.Wallet, error)
	// DeductBalance debits the wallet for a completed ride. Fails with
	// util.ErrInsufficientBalance and no mutation if the balance is too low.
	DeductBalance(ctx context.Context, userID, amount, rideID int64) (*domain.Wallet, *domain.Transaction, error)
	// Withdraw debits the wallet for a payout to the user's mobile-money account.
	Withdraw(ctx context.Context, userID, amount int64, phoneNumber string) (*domain.Wallet, *domain.Transaction, error)
	// AddFunds credits the wallet unconditionally (refund approvals, admin
	// credits). refundOf links a REFUND to the payment it reverses.
	AddFunds(ctx context.Context, userID, amount int64, txType domain.TransactionType, refundOf *int64, description string) (*domain.Wallet, *domain.Transaction, error)
	// AddFundsTx is AddFunds running inside the caller's database transaction,
	// for workflows that must commit the credit together with their own rows.
	AddFundsTx(ctx context.Context, q repository.DBExecutor, userID, amount int64, txType domain.TransactionType, refundOf *int64, description string) (*domain.Wallet, *domain.Transaction, error)
	// GetTransactionHistory returns the wallet's transactions, newest first.
	GetTransactionHistory(ctx context.Context, userID int64, limit, offset int) ([]domain.Transaction, int64, error)
	// GetTransactionByID returns a transaction only if it belongs to the user.
	GetTransactionByID(ctx context.Context, transactionID, userID int64) (*domain.Transaction, error)
}

// transactionLedger implements TransactionLedger over the repositories.
type transactionLedger struct {
	dbBeginner db.DBTxBeginner
	dbExecutor repository.DBExecutor
	walletRepo repository.WalletRepository
	txRepo     repository.TransactionRepository
	beginTx    db.BeginTxFunc
	commitTx   db.CommitTxFunc
	rollbackTx db.RollbackTxFunc
	logger     *slog.Logger
}

// NewTransactionLedger creates a new TransactionLedger.
func NewTransactionLedger(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	walletRepo repository.WalletRepository,
	txRepo repository.TransactionRepository,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
	logger *slog.Logger,
) TransactionLedger {
	return &transactionLedger{
		dbBeginner: dbBeginner,
		dbExecutor: dbExecutor,
		walletRepo: walletRepo,
		txRepo:     txRepo,
		beginTx:    beginTx,
		commitTx:   commitTx,
		rollbackTx: rollbackTx,
		logger:     logger,
	}
}

// GetBalance returns the user's wallet, provisioning it lazily on first access.
func (l *transactionLedger) GetBalance(ctx context.Context, userID int64) (*domain.Wallet, error) {
	wallet, err := l.walletRepo.GetWalletByUserID(ctx, l.dbExecutor, userID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, util.ErrNotFound) {
		return nil, fmt.Errorf("get balance: failed to get wallet for user %d: %w", userID, err)
	}

	// First access: provision a zero-balance wallet inside a transaction so a
	// concurrent first access cannot create a second wallet for the user.
	txController, err := l.beginTx(ctx, l.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("get balance: failed to begin transaction: %w", err)
	}
	defer l.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("get balance: transaction controller does not implement DBExecutor")
	}

	wallet, err = l.walletRepo.GetWalletByUserID(ctx, txExecutor, userID)
	if err == nil {
		return wallet, l.commitTx(txController)
	}
	if !errors.Is(err, util.ErrNotFound) {
		return nil, fmt.Errorf("get balance: failed to re-check wallet for user %d: %w", userID, err)
	}

	wallet = domain.NewWallet(userID)
	if err := l.walletRepo.CreateWallet(ctx, txExecutor, wallet); err != nil {
		return nil, fmt.Errorf("get balance: failed to provision wallet for user %d: %w", userID, err)
	}
	if err := l.commitTx(txController); err != nil {
		return nil, fmt.Errorf("get balance: failed to commit wallet provisioning: %w", err)
	}

	l.logger.Info("Provisioned wallet on first access", "user_id", userID, "wallet_id", wallet.ID)
	return wallet, nil
}

// DeductBalance debits the wallet for a completed ride as one atomic unit:
// lock wallet row, check funds, decrement balance, insert the RIDE_PAYMENT
// transaction. Two concurrent debits serialize on the row lock, so they can
// never jointly overdraw the wallet.
func (l *transactionLedger) DeductBalance(ctx context.Context, userID, amount, rideID int64) (*domain.Wallet, *domain.Transaction, error) {
	return l.debit(ctx, userID, amount, domain.TransactionTypeRidePayment, &rideID, nil)
}

// Withdraw debits the wallet for a payout.
func (l *transactionLedger) Withdraw(ctx context.Context, userID, amount int64, phoneNumber string) (*domain.Wallet, *domain.Transaction, error) {
	return l.debit(ctx, userID, amount, domain.TransactionTypeWithdrawal, nil, &phoneNumber)
}

func (l *transactionLedger) debit(ctx context.Context, userID, amount int64, txType domain.TransactionType, rideID *int64, phoneNumber *string) (*domain.Wallet, *domain.Transaction, error) {
	if amount <= 0 {
		return nil, nil, util.ErrInvalidInput
	}

	txController, err := l.beginTx(ctx, l.dbBeginner)
	if err != nil {
		return nil, nil, fmt.Errorf("debit: failed to begin transaction: %w", err)
	}
	defer l.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, nil, fmt.Errorf("debit: transaction controller does not implement DBExecutor")
	}

	wallet, err := l.walletRepo.GetWalletByUserIDForUpdate(ctx, txExecutor, userID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return nil, nil, util.ErrWalletNotFound
		}
		return nil, nil, fmt.Errorf("debit: failed to lock wallet for user %d: %w", userID, err)
	}

	if wallet.Balance < amount {
		return nil, nil, util.ErrInsufficientBalance
	}

	if err := l.walletRepo.UpdateWalletBalance(ctx, txExecutor, wallet.ID, -amount); err != nil {
		return nil, nil, fmt.Errorf("debit: failed to update wallet balance: %w", err)
	}

	transaction := domain.NewCompletedTransaction(wallet.ID, amount, txType, nil)
	transaction.RideID = rideID
	transaction.PhoneNumber = phoneNumber
	if err := l.txRepo.CreateTransaction(ctx, txExecutor, transaction); err != nil {
		return nil, nil, fmt.Errorf("debit: failed to create transaction: %w", err)
	}

	if err := l.commitTx(txController); err != nil {
		return nil, nil, fmt.Errorf("debit: failed to commit transaction: %w", err)
	}

	wallet.Balance -= amount
	return wallet, transaction, nil
}

// AddFunds credits the wallet in its own database transaction.
func (l *transactionLedger) AddFunds(ctx context.Context, userID, amount int64, txType domain.TransactionType, refundOf *int64, description string) (*domain.Wallet, *domain.Transaction, error) {
	txController, err := l.beginTx(ctx, l.dbBeginner)
	if err != nil {
		return nil, nil, fmt.Errorf("add funds: failed to begin transaction: %w", err)
	}
	defer l.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, nil, fmt.Errorf("add funds: transaction controller does not implement DBExecutor")
	}

	wallet, transaction, err := l.AddFundsTx(ctx, txExecutor, userID, amount, txType, refundOf, description)
	if err != nil {
		return nil, nil, err
	}

	if err := l.commitTx(txController); err != nil {
		return nil, nil, fmt.Errorf("add funds: failed to commit transaction: %w", err)
	}
	return wallet, transaction, nil
}

// AddFundsTx credits the wallet inside the caller's database transaction.
// Unlike GetBalance this does not provision wallets: a credit against a user
// with no wallet means the caller skipped the lookup path, which is an
// invariant violation, not a state to heal.
func (l *transactionLedger) AddFundsTx(ctx context.Context, q repository.DBExecutor, userID, amount int64, txType domain.TransactionType, refundOf *int64, description string) (*domain.Wallet, *domain.Transaction, error) {
	if amount <= 0 {
		return nil, nil, util.ErrInvalidInput
	}

	wallet, err := l.walletRepo.GetWalletByUserIDForUpdate(ctx, q, userID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return nil, nil, util.ErrWalletNotFound
		}
		return nil, nil, fmt.Errorf("add funds: failed to lock wallet for user %d: %w", userID, err)
	}

	if err := l.walletRepo.UpdateWalletBalance(ctx, q, wallet.ID, amount); err != nil {
		return nil, nil, fmt.Errorf("add funds: failed to update wallet balance: %w", err)
	}

	var desc *string
	if description != "" {
		desc = &description
	}
	transaction := domain.NewCompletedTransaction(wallet.ID, amount, txType, desc)
	transaction.RefundOf = refundOf
	if err := l.txRepo.CreateTransaction(ctx, q, transaction); err != nil {
		return nil, nil, fmt.Errorf("add funds: failed to create transaction: %w", err)
	}

	wallet.Balance += amount
	return wallet, transaction, nil
}

// GetTransactionHistory returns the user's transactions, newest first.
func (l *transactionLedger) GetTransactionHistory(ctx context.Context, userID int64, limit, offset int) ([]domain.Transaction, int64, error) {
	wallet, err := l.GetBalance(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("transaction history: %w", err)
	}

	transactions, totalCount, err := l.txRepo.GetTransactionsByWalletID(ctx, l.dbExecutor, wallet.ID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("transaction history: %w", err)
	}
	return transactions, totalCount, nil
}

// GetTransactionByID returns a transaction only if it belongs to the user.
// The ownership check is part of the contract: a transaction ID from another
// user's wallet behaves exactly like a nonexistent one.
func (l *transactionLedger) GetTransactionByID(ctx context.Context, transactionID, userID int64) (*domain.Transaction, error) {
	transaction, err := l.txRepo.GetTransactionByID(ctx, l.dbExecutor, transactionID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return nil, util.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}

	wallet, err := l.walletRepo.GetWalletByUserID(ctx, l.dbExecutor, userID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return nil, util.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("get transaction: failed to get wallet for user %d: %w", userID, err)
	}
	if transaction.WalletID != wallet.ID {
		return nil, util.ErrTransactionNotFound
	}

	return transaction, nil
}
