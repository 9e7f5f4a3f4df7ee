// internal/service/reconciler.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"rideflow-wallet/internal/domain"
	"rideflow-wallet/internal/gateway"
	"rideflow-wallet/internal/notify"
	"rideflow-wallet/internal/repository"
	"rideflow-wallet/internal/util"
	"rideflow-wallet/pkg/db"
)

// CallbackReconciler drives PENDING deposits to a terminal state from gateway
// settlement notices, idempotently. It is the single entry point for both
// webhook callbacks and verify polls.
//
// Returned errors are infrastructure failures only. Unknown references and
// replayed callbacks resolve to nil so the webhook layer always acknowledges
// the provider and no retry storm builds up.
type CallbackReconciler struct {
	dbBeginner db.DBTxBeginner
	walletRepo repository.WalletRepository
	txRepo     repository.TransactionRepository
	notifier   notify.Notifier
	beginTx    db.BeginTxFunc
	commitTx   db.CommitTxFunc
	rollbackTx db.RollbackTxFunc
	logger     *slog.Logger
}

// NewCallbackReconciler creates a new CallbackReconciler.
func NewCallbackReconciler(
	dbBeginner db.DBTxBeginner,
	walletRepo repository.WalletRepository,
	txRepo repository.TransactionRepository,
	notifier notify.Notifier,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
	logger *slog.Logger,
) *CallbackReconciler {
	return &CallbackReconciler{
		dbBeginner: dbBeginner,
		walletRepo: walletRepo,
		txRepo:     txRepo,
		notifier:   notifier,
		beginTx:    beginTx,
		commitTx:   commitTx,
		rollbackTx: rollbackTx,
		logger:     logger,
	}
}

// HandleCallback settles the transaction named by the notice.
//
// The whole read-transition-credit sequence runs in one database transaction.
// The transaction row is locked first, so two near-simultaneous duplicate
// callbacks serialize: the second observes a terminal status and is discarded.
// The status transition and the balance increment commit together or not at all.
func (r *CallbackReconciler) HandleCallback(ctx context.Context, notice *gateway.CallbackNotice) error {
	txController, err := r.beginTx(ctx, r.dbBeginner)
	if err != nil {
		return fmt.Errorf("handle callback: failed to begin transaction: %w", err)
	}
	defer r.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return fmt.Errorf("handle callback: transaction controller does not implement DBExecutor")
	}

	transaction, err := r.txRepo.GetTransactionByReferenceForUpdate(ctx, txExecutor, notice.Reference)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			// Gateways retry against restarted or rotated deployments;
			// an unknown reference is tolerated, not an error.
			r.logger.WarnContext(ctx, "Callback for unknown transaction reference discarded",
				"reference", notice.Reference, "status", notice.Status)
			return nil
		}
		return fmt.Errorf("handle callback: failed to look up transaction %q: %w", notice.Reference, err)
	}

	if transaction.IsTerminal() {
		// Idempotency: replayed callbacks never re-mutate the wallet.
		r.logger.InfoContext(ctx, "Callback for settled transaction discarded",
			"transaction_id", transaction.ID, "status", transaction.Status, "callback_status", notice.Status)
		return nil
	}

	switch {
	case notice.IsSuccess():
		return r.settleSuccess(ctx, txController, txExecutor, transaction, notice)
	case notice.IsFailure():
		return r.settleFailure(ctx, txController, txExecutor, transaction, notice)
	default:
		// Multi-stage gateway flows ("awaiting confirmation" etc.): keep the
		// latest payload, stay PENDING.
		if err := r.txRepo.UpdateProviderData(ctx, txExecutor, transaction.ID, notice.RawJSON()); err != nil {
			return fmt.Errorf("handle callback: failed to store intermediate payload: %w", err)
		}
		if err := r.commitTx(txController); err != nil {
			return fmt.Errorf("handle callback: failed to commit intermediate update: %w", err)
		}
		r.logger.InfoContext(ctx, "Intermediate callback recorded, transaction stays pending",
			"transaction_id", transaction.ID, "callback_status", notice.Status)
		return nil
	}
}

func (r *CallbackReconciler) settleSuccess(ctx context.Context, txController db.TxController, q repository.DBExecutor, transaction *domain.Transaction, notice *gateway.CallbackNotice) error {
	if err := r.txRepo.UpdateTransactionStatus(ctx, q, transaction.ID, domain.TransactionStatusCompleted, notice.RawJSON()); err != nil {
		return fmt.Errorf("handle callback: failed to complete transaction %d: %w", transaction.ID, err)
	}
	if transaction.ExternalID == nil && notice.ExternalID != "" {
		if err := r.txRepo.SetExternalID(ctx, q, transaction.ID, notice.ExternalID); err != nil {
			return fmt.Errorf("handle callback: failed to store external ID on transaction %d: %w", transaction.ID, err)
		}
	}

	// Credit the net amount: fees are the provider's margin, never credited.
	wallet, err := r.walletRepo.GetWalletByIDForUpdate(ctx, q, transaction.WalletID)
	if err != nil {
		return fmt.Errorf("handle callback: failed to lock wallet %d: %w", transaction.WalletID, err)
	}
	if err := r.walletRepo.UpdateWalletBalance(ctx, q, wallet.ID, transaction.Amount); err != nil {
		return fmt.Errorf("handle callback: failed to credit wallet %d: %w", wallet.ID, err)
	}

	if err := r.commitTx(txController); err != nil {
		return fmt.Errorf("handle callback: failed to commit settlement: %w", err)
	}

	transaction.Status = domain.TransactionStatusCompleted
	r.logger.InfoContext(ctx, "Deposit settled",
		"transaction_id", transaction.ID, "wallet_id", wallet.ID, "amount", transaction.Amount)
	r.notifier.DepositSucceeded(ctx, wallet.UserID, transaction)
	return nil
}

func (r *CallbackReconciler) settleFailure(ctx context.Context, txController db.TxController, q repository.DBExecutor, transaction *domain.Transaction, notice *gateway.CallbackNotice) error {
	if err := r.txRepo.UpdateTransactionStatus(ctx, q, transaction.ID, domain.TransactionStatusFailed, notice.RawJSON()); err != nil {
		return fmt.Errorf("handle callback: failed to fail transaction %d: %w", transaction.ID, err)
	}

	wallet, err := r.walletRepo.GetWalletByID(ctx, q, transaction.WalletID)
	if err != nil {
		return fmt.Errorf("handle callback: failed to get wallet %d: %w", transaction.WalletID, err)
	}

	if err := r.commitTx(txController); err != nil {
		return fmt.Errorf("handle callback: failed to commit failure: %w", err)
	}

	transaction.Status = domain.TransactionStatusFailed
	r.logger.InfoContext(ctx, "Deposit rejected by provider",
		"transaction_id", transaction.ID, "callback_status", notice.Status)
	r.notifier.DepositFailed(ctx, wallet.UserID, transaction)
	return nil
}
