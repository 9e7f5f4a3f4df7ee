// internal/notify/notifier.go
package notify

import (
	"context"
	"log/slog"

	"rideflow-wallet/internal/domain"
)

// Notifier receives deposit settlement outcomes. Delivery channels (push,
// SMS, email) live outside this module; the reconciler only emits the event.
type Notifier interface {
	DepositSucceeded(ctx context.Context, userID int64, tx *domain.Transaction)
	DepositFailed(ctx context.Context, userID int64, tx *domain.Transaction)
}

// LogNotifier is the default Notifier; it records outcomes in the
// structured log.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) DepositSucceeded(ctx context.Context, userID int64, tx *domain.Transaction) {
	n.logger.InfoContext(ctx, "Deposit succeeded",
		"user_id", userID, "transaction_id", tx.ID, "amount", tx.Amount)
}

func (n *LogNotifier) DepositFailed(ctx context.Context, userID int64, tx *domain.Transaction) {
	n.logger.InfoContext(ctx, "Deposit failed",
		"user_id", userID, "transaction_id", tx.ID, "amount", tx.Amount)
}
