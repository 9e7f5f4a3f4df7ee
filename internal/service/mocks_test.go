// internal/service/mocks_test.go
package service

import (
	"context"
	"database/sql"
	"time"

	"rideflow-wallet/internal/domain"
	"rideflow-wallet/internal/repository"
	"rideflow-wallet/pkg/db"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"
)

// MockDBExecutor is a mock implementation of repository.DBExecutor.
type MockDBExecutor struct {
	mock.Mock
}

func (m *MockDBExecutor) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	argsCalled := m.Called(ctx, dest, query, args)
	return argsCalled.Error(0)
}

func (m *MockDBExecutor) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	argsCalled := m.Called(ctx, dest, query, args)
	return argsCalled.Error(0)
}

func (m *MockDBExecutor) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	argsCalled := m.Called(ctx, query, args)
	return argsCalled.Get(0).(sql.Result), argsCalled.Error(1)
}

func (m *MockDBExecutor) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	m.Called(ctx, query, args)
	return &sql.Row{}
}

// MockDBBeginner is a mock implementation of db.DBTxBeginner.
type MockDBBeginner struct {
	mock.Mock
}

func (m *MockDBBeginner) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	args := m.Called(ctx, opts)
	return &sqlx.Tx{}, args.Error(1)
}

// MockTxController is a mock implementation of db.TxController.
// It embeds MockDBExecutor so it also satisfies repository.DBExecutor, the way
// *sqlx.Tx does in production.
type MockTxController struct {
	mock.Mock
	MockDBExecutor
}

func (m *MockTxController) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockTxController) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

// MockWalletRepository is a mock implementation of repository.WalletRepository.
type MockWalletRepository struct {
	mock.Mock
}

func (m *MockWalletRepository) CreateWallet(ctx context.Context, q repository.DBExecutor, wallet *domain.Wallet) error {
	args := m.Called(ctx, q, wallet)
	return args.Error(0)
}

func (m *MockWalletRepository) GetWalletByUserID(ctx context.Context, q repository.DBExecutor, userID int64) (*domain.Wallet, error) {
	args := m.Called(ctx, q, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Wallet), args.Error(1)
}

func (m *MockWalletRepository) GetWalletByUserIDForUpdate(ctx context.Context, q repository.DBExecutor, userID int64) (*domain.Wallet, error) {
	args := m.Called(ctx, q, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Wallet), args.Error(1)
}

func (m *MockWalletRepository) GetWalletByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Wallet, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Wallet), args.Error(1)
}

func (m *MockWalletRepository) GetWalletByIDForUpdate(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Wallet, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Wallet), args.Error(1)
}

func (m *MockWalletRepository) UpdateWalletBalance(ctx context.Context, q repository.DBExecutor, walletID int64, delta int64) error {
	args := m.Called(ctx, q, walletID, delta)
	return args.Error(0)
}

// MockTransactionRepository is a mock implementation of repository.TransactionRepository.
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) CreateTransaction(ctx context.Context, q repository.DBExecutor, transaction *domain.Transaction) error {
	args := m.Called(ctx, q, transaction)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetTransactionByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Transaction, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetTransactionByReference(ctx context.Context, q repository.DBExecutor, reference string) (*domain.Transaction, error) {
	args := m.Called(ctx, q, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetTransactionByReferenceForUpdate(ctx context.Context, q repository.DBExecutor, reference string) (*domain.Transaction, error) {
	args := m.Called(ctx, q, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) SetExternalID(ctx context.Context, q repository.DBExecutor, id int64, externalID string) error {
	args := m.Called(ctx, q, id, externalID)
	return args.Error(0)
}

func (m *MockTransactionRepository) UpdateTransactionStatus(ctx context.Context, q repository.DBExecutor, id int64, status domain.TransactionStatus, providerData []byte) error {
	args := m.Called(ctx, q, id, status, providerData)
	return args.Error(0)
}

func (m *MockTransactionRepository) UpdateProviderData(ctx context.Context, q repository.DBExecutor, id int64, providerData []byte) error {
	args := m.Called(ctx, q, id, providerData)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetTransactionsByWalletID(ctx context.Context, q repository.DBExecutor, walletID int64, limit, offset int) ([]domain.Transaction, int64, error) {
	args := m.Called(ctx, q, walletID, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.Transaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockTransactionRepository) SumCompletedRefunds(ctx context.Context, q repository.DBExecutor, transactionID int64) (int64, error) {
	args := m.Called(ctx, q, transactionID)
	return args.Get(0).(int64), args.Error(1)
}

// MockRefundRepository is a mock implementation of repository.RefundRepository.
type MockRefundRepository struct {
	mock.Mock
}

func (m *MockRefundRepository) CreateRefundRequest(ctx context.Context, q repository.DBExecutor, req *domain.RefundRequest) error {
	args := m.Called(ctx, q, req)
	return args.Error(0)
}

func (m *MockRefundRepository) GetRefundRequestByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.RefundRequest, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefundRequest), args.Error(1)
}

func (m *MockRefundRepository) GetRefundRequestByIDForUpdate(ctx context.Context, q repository.DBExecutor, id int64) (*domain.RefundRequest, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefundRequest), args.Error(1)
}

func (m *MockRefundRepository) UpdateRefundRequestStatus(ctx context.Context, q repository.DBExecutor, id int64, status domain.RefundStatus, processedBy int64, decidedAt time.Time) error {
	args := m.Called(ctx, q, id, status, processedBy, decidedAt)
	return args.Error(0)
}

func (m *MockRefundRepository) ListPendingRefundRequests(ctx context.Context, q repository.DBExecutor, limit, offset int) ([]domain.RefundRequest, int64, error) {
	args := m.Called(ctx, q, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.RefundRequest), args.Get(1).(int64), args.Error(2)
}

// MockNotifier is a mock implementation of notify.Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) DepositSucceeded(ctx context.Context, userID int64, tx *domain.Transaction) {
	m.Called(ctx, userID, tx)
}

func (m *MockNotifier) DepositFailed(ctx context.Context, userID int64, tx *domain.Transaction) {
	m.Called(ctx, userID, tx)
}

// fixedTxFuncs returns transaction lifecycle functions bound to the given
// controller, the way tests inject a fake unit of work.
func fixedTxFuncs(controller *MockTxController) (db.BeginTxFunc, db.CommitTxFunc, db.RollbackTxFunc) {
	begin := func(ctx context.Context, dbConn db.DBTxBeginner) (db.TxController, error) {
		return controller, nil
	}
	commit := func(tx db.TxController) error {
		return controller.Commit()
	}
	rollback := func(tx db.TxController) {
		_ = controller.Rollback()
	}
	return begin, commit, rollback
}
