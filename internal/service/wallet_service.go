// internal/service/wallet_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"rideflow-wallet/internal/domain"
	"rideflow-wallet/internal/fees"
	"rideflow-wallet/internal/gateway"
	"rideflow-wallet/internal/repository"
	"rideflow-wallet/internal/util"
)

// WalletService orchestrates the wallet use cases: deposits through the
// mobile-money gateway, ride payments, withdrawals, and reads. All balance
// mutations are delegated to the TransactionLedger; settlement of PENDING
// deposits is delegated to the CallbackReconciler.
type WalletService interface {
	// InitiateDeposit computes fees, records a PENDING deposit and dispatches
	// the gateway collection request. On gateway failure the PENDING
	// transaction is kept (with no external reference) and util.ErrGateway is
	// returned; the caller may retry initiation or reconcile later.
	InitiateDeposit(ctx context.Context, userID, amount int64, phoneNumber, paymentMethod string) (*domain.Transaction, *fees.Breakdown, error)
	// VerifyDeposit polls the gateway for a deposit's state and, if the
	// transaction is still PENDING, applies the same settlement logic as a
	// webhook callback.
	VerifyDeposit(ctx context.Context, transactionID, userID int64) (*domain.Transaction, *gateway.StatusResponse, error)
	// PayForRide debits the wallet for a completed ride.
	PayForRide(ctx context.Context, userID, amount, rideID int64) (*domain.Wallet, *domain.Transaction, error)
	// Withdraw debits the wallet for a payout to the user's mobile-money account.
	Withdraw(ctx context.Context, userID, amount int64, phoneNumber string) (*domain.Wallet, *domain.Transaction, error)
	// GetBalance returns the user's wallet, creating it on first access.
	GetBalance(ctx context.Context, userID int64) (*domain.Wallet, error)
	// GetTransactionHistory returns the user's transactions, newest first.
	GetTransactionHistory(ctx context.Context, userID int64, limit, offset int) ([]domain.Transaction, int64, error)
	// GetTransaction returns a transaction only if it belongs to the user.
	GetTransaction(ctx context.Context, transactionID, userID int64) (*domain.Transaction, error)
}

// walletService implements the WalletService interface.
type walletService struct {
	ledger     TransactionLedger
	reconciler *CallbackReconciler
	calculator *fees.Calculator
	gw         gateway.Client
	provider   string
	dbExecutor repository.DBExecutor
	walletRepo repository.WalletRepository
	txRepo     repository.TransactionRepository
	logger     *slog.Logger
}

// NewWalletService creates a new instance of WalletService.
func NewWalletService(
	ledger TransactionLedger,
	reconciler *CallbackReconciler,
	calculator *fees.Calculator,
	gw gateway.Client,
	provider string,
	dbExecutor repository.DBExecutor,
	walletRepo repository.WalletRepository,
	txRepo repository.TransactionRepository,
	logger *slog.Logger,
) WalletService {
	return &walletService{
		ledger:     ledger,
		reconciler: reconciler,
		calculator: calculator,
		gw:         gw,
		provider:   provider,
		dbExecutor: dbExecutor,
		walletRepo: walletRepo,
		txRepo:     txRepo,
		logger:     logger,
	}
}

// InitiateDeposit starts a mobile-money top-up.
//
// The PENDING transaction is committed before the gateway call so a crash or
// gateway failure leaves evidence of the attempt; it only ever turns COMPLETED
// through the reconciler (webhook or verify poll).
func (s *walletService) InitiateDeposit(ctx context.Context, userID, amount int64, phoneNumber, paymentMethod string) (*domain.Transaction, *fees.Breakdown, error) {
	if phoneNumber == "" || paymentMethod == "" {
		return nil, nil, util.ErrInvalidInput
	}

	breakdown, err := s.calculator.Calculate(amount)
	if err != nil {
		return nil, nil, err
	}

	wallet, err := s.walletRepo.GetWalletByUserID(ctx, s.dbExecutor, userID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return nil, nil, util.ErrWalletNotFound
		}
		return nil, nil, fmt.Errorf("initiate deposit: failed to get wallet for user %d: %w", userID, err)
	}

	transaction := domain.NewPendingDeposit(wallet.ID, breakdown.BaseAmount, breakdown.TotalFees, paymentMethod, s.provider, phoneNumber)
	if err := s.txRepo.CreateTransaction(ctx, s.dbExecutor, transaction); err != nil {
		return nil, nil, fmt.Errorf("initiate deposit: failed to create transaction: %w", err)
	}

	gwResp, err := s.gw.InitiatePayment(ctx, &gateway.InitiateRequest{
		Reference:     transaction.Reference,
		Amount:        breakdown.TotalAmount,
		Currency:      "XAF",
		PaymentMethod: paymentMethod,
		CustomerPhone: phoneNumber,
		Reason:        "Wallet top-up",
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Gateway initiation failed, transaction left pending",
			"transaction_id", transaction.ID, "user_id", userID, "error", err)
		if errors.Is(err, util.ErrGateway) {
			return transaction, breakdown, err
		}
		return transaction, breakdown, fmt.Errorf("%w: %v", util.ErrGateway, err)
	}

	if err := s.txRepo.SetExternalID(ctx, s.dbExecutor, transaction.ID, gwResp.ExternalID); err != nil {
		return nil, nil, fmt.Errorf("initiate deposit: failed to store external ID: %w", err)
	}
	transaction.ExternalID = &gwResp.ExternalID

	s.logger.InfoContext(ctx, "Deposit initiated",
		"transaction_id", transaction.ID, "user_id", userID,
		"amount", breakdown.BaseAmount, "total_amount", breakdown.TotalAmount,
		"external_id", gwResp.ExternalID)
	return transaction, breakdown, nil
}

// VerifyDeposit polls the gateway as a fallback to the webhook.
func (s *walletService) VerifyDeposit(ctx context.Context, transactionID, userID int64) (*domain.Transaction, *gateway.StatusResponse, error) {
	transaction, err := s.ledger.GetTransactionByID(ctx, transactionID, userID)
	if err != nil {
		return nil, nil, err
	}
	if transaction.ExternalID == nil {
		return nil, nil, util.ErrNoExternalReference
	}

	status, err := s.gw.PaymentStatus(ctx, *transaction.ExternalID)
	if err != nil {
		return nil, nil, err
	}

	if !transaction.IsTerminal() {
		// Mirror the webhook transition logic exactly.
		notice := &gateway.CallbackNotice{
			Reference:  transaction.Reference,
			ExternalID: *transaction.ExternalID,
			Status:     status.Status,
			Raw:        status.Raw,
		}
		if err := s.reconciler.HandleCallback(ctx, notice); err != nil {
			return nil, nil, fmt.Errorf("verify deposit: %w", err)
		}
		transaction, err = s.ledger.GetTransactionByID(ctx, transactionID, userID)
		if err != nil {
			return nil, nil, err
		}
	}

	return transaction, status, nil
}

// PayForRide debits the wallet for a completed ride.
func (s *walletService) PayForRide(ctx context.Context, userID, amount, rideID int64) (*domain.Wallet, *domain.Transaction, error) {
	return s.ledger.DeductBalance(ctx, userID, amount, rideID)
}

// Withdraw debits the wallet for a payout.
func (s *walletService) Withdraw(ctx context.Context, userID, amount int64, phoneNumber string) (*domain.Wallet, *domain.Transaction, error) {
	if phoneNumber == "" {
		return nil, nil, util.ErrInvalidInput
	}
	return s.ledger.Withdraw(ctx, userID, amount, phoneNumber)
}

// GetBalance returns the user's wallet, creating it on first access.
func (s *walletService) GetBalance(ctx context.Context, userID int64) (*domain.Wallet, error) {
	return s.ledger.GetBalance(ctx, userID)
}

// GetTransactionHistory returns the user's transactions, newest first.
func (s *walletService) GetTransactionHistory(ctx context.Context, userID int64, limit, offset int) ([]domain.Transaction, int64, error) {
	return s.ledger.GetTransactionHistory(ctx, userID, limit, offset)
}

// GetTransaction returns a transaction only if it belongs to the user.
func (s *walletService) GetTransaction(ctx context.Context, transactionID, userID int64) (*domain.Transaction, error) {
	return s.ledger.GetTransactionByID(ctx, transactionID, userID)
}
