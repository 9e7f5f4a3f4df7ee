// internal/api/handler/handler_test.go
package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rideflow-wallet/internal/api/handler"
	"rideflow-wallet/internal/domain"
	"rideflow-wallet/internal/fees"
	"rideflow-wallet/internal/gateway"
	"rideflow-wallet/internal/repository"
	"rideflow-wallet/internal/service"
	"rideflow-wallet/internal/util"
	"rideflow-wallet/pkg/db"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockWalletService is a mock implementation of service.WalletService.
type MockWalletService struct {
	mock.Mock
}

func (m *MockWalletService) InitiateDeposit(ctx context.Context, userID, amount int64, phoneNumber, paymentMethod string) (*domain.Transaction, *fees.Breakdown, error) {
	args := m.Called(ctx, userID, amount, phoneNumber, paymentMethod)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.Transaction), args.Get(1).(*fees.Breakdown), args.Error(2)
}

func (m *MockWalletService) VerifyDeposit(ctx context.Context, transactionID, userID int64) (*domain.Transaction, *gateway.StatusResponse, error) {
	args := m.Called(ctx, transactionID, userID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.Transaction), args.Get(1).(*gateway.StatusResponse), args.Error(2)
}

func (m *MockWalletService) PayForRide(ctx context.Context, userID, amount, rideID int64) (*domain.Wallet, *domain.Transaction, error) {
	args := m.Called(ctx, userID, amount, rideID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.Wallet), args.Get(1).(*domain.Transaction), args.Error(2)
}

func (m *MockWalletService) Withdraw(ctx context.Context, userID, amount int64, phoneNumber string) (*domain.Wallet, *domain.Transaction, error) {
	args := m.Called(ctx, userID, amount, phoneNumber)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.Wallet), args.Get(1).(*domain.Transaction), args.Error(2)
}

func (m *MockWalletService) GetBalance(ctx context.Context, userID int64) (*domain.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Wallet), args.Error(1)
}

func (m *MockWalletService) GetTransactionHistory(ctx context.Context, userID int64, limit, offset int) ([]domain.Transaction, int64, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.Transaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockWalletService) GetTransaction(ctx context.Context, transactionID, userID int64) (*domain.Transaction, error) {
	args := m.Called(ctx, transactionID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

// MockRefundService is a mock implementation of service.RefundService.
type MockRefundService struct {
	mock.Mock
}

func (m *MockRefundService) RequestRefund(ctx context.Context, userID, transactionID, amount int64, reason string, rideID *int64) (*domain.RefundRequest, error) {
	args := m.Called(ctx, userID, transactionID, amount, reason, rideID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefundRequest), args.Error(1)
}

func (m *MockRefundService) ApproveRefund(ctx context.Context, requestID, adminID int64) (*domain.RefundRequest, *domain.Transaction, error) {
	args := m.Called(ctx, requestID, adminID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.RefundRequest), args.Get(1).(*domain.Transaction), args.Error(2)
}

func (m *MockRefundService) RejectRefund(ctx context.Context, requestID, adminID int64) (*domain.RefundRequest, error) {
	args := m.Called(ctx, requestID, adminID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefundRequest), args.Error(1)
}

func (m *MockRefundService) ListPendingRefunds(ctx context.Context, limit, offset int) ([]domain.RefundRequest, int64, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.RefundRequest), args.Get(1).(int64), args.Error(2)
}

// unknownRefTxRepo serves the callback handler tests: every lookup misses.
type unknownRefTxRepo struct {
	repository.TransactionRepository
}

func (unknownRefTxRepo) GetTransactionByReferenceForUpdate(ctx context.Context, q repository.DBExecutor, reference string) (*domain.Transaction, error) {
	return nil, util.ErrNotFound
}

// stubTx satisfies db.TxController and repository.DBExecutor without a database.
type stubTx struct {
	repository.DBExecutor
}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

func stubTxFuncs() (db.BeginTxFunc, db.CommitTxFunc, db.RollbackTxFunc) {
	begin := func(ctx context.Context, dbConn db.DBTxBeginner) (db.TxController, error) {
		return stubTx{}, nil
	}
	commit := func(tx db.TxController) error { return tx.Commit() }
	rollback := func(tx db.TxController) { _ = tx.Rollback() }
	return begin, commit, rollback
}

func newWalletRouter(svc service.WalletService, reconciler *service.CallbackReconciler) http.Handler {
	h := handler.NewWalletHandler(svc, reconciler, testLogger())
	r := chi.NewRouter()
	r.Post("/wallets/deposits", h.InitiateDeposit)
	r.Get("/wallets/deposits/{transactionID}/verify", h.VerifyDeposit)
	r.Post("/wallets/ride-payments", h.PayForRide)
	r.Post("/wallets/withdrawals", h.Withdraw)
	r.Get("/wallets/{userID}/balance", h.GetBalance)
	r.Get("/wallets/{userID}/transactions", h.GetTransactionHistory)
	r.Post("/payments/callback", h.PaymentCallback)
	return r
}

func newRefundRouter(svc service.RefundService) http.Handler {
	h := handler.NewRefundHandler(svc, testLogger())
	r := chi.NewRouter()
	r.Post("/refunds", h.RequestRefund)
	r.Get("/refunds/pending", h.ListPendingRefunds)
	r.Post("/refunds/{requestID}/approve", h.ApproveRefund)
	r.Post("/refunds/{requestID}/reject", h.RejectRefund)
	return r
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var parsed map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	}
	return rec, parsed
}

func TestInitiateDepositHandler(t *testing.T) {
	t.Run("Created", func(t *testing.T) {
		svc := new(MockWalletService)
		router := newWalletRouter(svc, nil)

		externalID := "GW-1"
		svc.On("InitiateDeposit", mock.Anything, int64(42), int64(5000), "237677111111", "ORANGE_MONEY").
			Return(
				&domain.Transaction{ID: 10, Reference: "ref-1", ExternalID: &externalID, Status: domain.TransactionStatusPending},
				&fees.Breakdown{BaseAmount: 5000, PrimaryFee: 100, SecondaryFee: 200, TotalFees: 300, TotalAmount: 5300},
				nil,
			).Once()

		rec, body := doRequest(t, router, http.MethodPost, "/wallets/deposits",
			`{"user_id": 42, "amount": 5000, "phone_number": "237677111111", "payment_method": "ORANGE_MONEY"}`)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, float64(10), body["transaction_id"])
		assert.Equal(t, float64(5300), body["total_amount"])
		assert.Equal(t, string(domain.TransactionStatusPending), body["status"])
		svc.AssertExpectations(t)
	})

	t.Run("GatewayDown", func(t *testing.T) {
		svc := new(MockWalletService)
		router := newWalletRouter(svc, nil)

		svc.On("InitiateDeposit", mock.Anything, int64(42), int64(5000), "237677111111", "ORANGE_MONEY").
			Return(nil, nil, util.ErrGateway).Once()

		rec, _ := doRequest(t, router, http.MethodPost, "/wallets/deposits",
			`{"user_id": 42, "amount": 5000, "phone_number": "237677111111", "payment_method": "ORANGE_MONEY"}`)

		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("NonNumericPhoneRejected", func(t *testing.T) {
		svc := new(MockWalletService)
		router := newWalletRouter(svc, nil)

		rec, _ := doRequest(t, router, http.MethodPost, "/wallets/deposits",
			`{"user_id": 42, "amount": 5000, "phone_number": "not-a-phone", "payment_method": "ORANGE_MONEY"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "InitiateDeposit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("MalformedBody", func(t *testing.T) {
		svc := new(MockWalletService)
		router := newWalletRouter(svc, nil)

		rec, _ := doRequest(t, router, http.MethodPost, "/wallets/deposits", `{"user_id": `)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPaymentCallbackHandler(t *testing.T) {
	t.Run("MalformedPayloadStillAcked", func(t *testing.T) {
		// A provider retries any non-2xx forever, so garbage gets a 200.
		router := newWalletRouter(new(MockWalletService), nil)

		rec, body := doRequest(t, router, http.MethodPost, "/payments/callback", `not json at all`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ack", body["status"])
	})

	t.Run("UnknownReferenceAcked", func(t *testing.T) {
		begin, commit, rollback := stubTxFuncs()
		reconciler := service.NewCallbackReconciler(nil, nil, unknownRefTxRepo{}, nil, begin, commit, rollback, testLogger())
		router := newWalletRouter(new(MockWalletService), reconciler)

		rec, body := doRequest(t, router, http.MethodPost, "/payments/callback",
			`{"app_transaction_ref": "ref-unknown", "transaction_status": "SUCCESS"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ack", body["status"])
	})
}

func TestPayForRideHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		svc := new(MockWalletService)
		router := newWalletRouter(svc, nil)

		svc.On("PayForRide", mock.Anything, int64(42), int64(600), int64(300)).
			Return(&domain.Wallet{ID: 7, UserID: 42, Balance: 400}, &domain.Transaction{ID: 11}, nil).Once()

		rec, body := doRequest(t, router, http.MethodPost, "/wallets/ride-payments",
			`{"user_id": 42, "amount": 600, "ride_id": 300}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(400), body["new_balance"])
		svc.AssertExpectations(t)
	})

	t.Run("InsufficientBalance", func(t *testing.T) {
		svc := new(MockWalletService)
		router := newWalletRouter(svc, nil)

		svc.On("PayForRide", mock.Anything, int64(42), int64(600), int64(300)).
			Return(nil, nil, util.ErrInsufficientBalance).Once()

		rec, body := doRequest(t, router, http.MethodPost, "/wallets/ride-payments",
			`{"user_id": 42, "amount": 600, "ride_id": 300}`)

		assert.Equal(t, http.StatusPaymentRequired, rec.Code)
		assert.Contains(t, body["error"], "Insufficient balance")
	})

	t.Run("NegativeAmountRejected", func(t *testing.T) {
		svc := new(MockWalletService)
		router := newWalletRouter(svc, nil)

		rec, _ := doRequest(t, router, http.MethodPost, "/wallets/ride-payments",
			`{"user_id": 42, "amount": -600, "ride_id": 300}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "PayForRide", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestGetBalanceHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		svc := new(MockWalletService)
		router := newWalletRouter(svc, nil)

		svc.On("GetBalance", mock.Anything, int64(42)).
			Return(&domain.Wallet{ID: 7, UserID: 42, Balance: 1500}, nil).Once()

		rec, body := doRequest(t, router, http.MethodGet, "/wallets/42/balance", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(1500), body["balance"])
	})

	t.Run("BadUserID", func(t *testing.T) {
		router := newWalletRouter(new(MockWalletService), nil)

		rec, _ := doRequest(t, router, http.MethodGet, "/wallets/abc/balance", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetTransactionHistoryHandler(t *testing.T) {
	t.Run("Paginated", func(t *testing.T) {
		svc := new(MockWalletService)
		router := newWalletRouter(svc, nil)

		transactions := []domain.Transaction{{ID: 10, Type: domain.TransactionTypeDeposit, Amount: 5000}}
		svc.On("GetTransactionHistory", mock.Anything, int64(42), 10, 0).
			Return(transactions, int64(1), nil).Once()

		rec, body := doRequest(t, router, http.MethodGet, "/wallets/42/transactions?limit=10&offset=0", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(1), body["total_count"])
		assert.Len(t, body["data"], 1)
	})

	t.Run("LimitTooLarge", func(t *testing.T) {
		svc := new(MockWalletService)
		router := newWalletRouter(svc, nil)

		rec, _ := doRequest(t, router, http.MethodGet, "/wallets/42/transactions?limit=500", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "GetTransactionHistory", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestRefundHandlers(t *testing.T) {
	t.Run("RequestCreated", func(t *testing.T) {
		svc := new(MockRefundService)
		router := newRefundRouter(svc)

		svc.On("RequestRefund", mock.Anything, int64(42), int64(20), int64(600), "bike had a flat tire", mock.Anything).
			Return(&domain.RefundRequest{ID: 5, UserID: 42, TransactionID: 20, Amount: 600, Status: domain.RefundStatusPending}, nil).Once()

		rec, body := doRequest(t, router, http.MethodPost, "/refunds",
			`{"user_id": 42, "transaction_id": 20, "amount": 600, "reason": "bike had a flat tire"}`)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, string(domain.RefundStatusPending), body["status"])
		svc.AssertExpectations(t)
	})

	t.Run("RequestExceedsRefundable", func(t *testing.T) {
		svc := new(MockRefundService)
		router := newRefundRouter(svc)

		svc.On("RequestRefund", mock.Anything, int64(42), int64(20), int64(900), "too much", mock.Anything).
			Return(nil, util.ErrRefundExceedsPayment).Once()

		rec, _ := doRequest(t, router, http.MethodPost, "/refunds",
			`{"user_id": 42, "transaction_id": 20, "amount": 900, "reason": "too much"}`)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("ApproveSuccess", func(t *testing.T) {
		svc := new(MockRefundService)
		router := newRefundRouter(svc)

		svc.On("ApproveRefund", mock.Anything, int64(5), int64(99)).
			Return(&domain.RefundRequest{ID: 5, Status: domain.RefundStatusApproved}, &domain.Transaction{ID: 30}, nil).Once()

		rec, body := doRequest(t, router, http.MethodPost, "/refunds/5/approve", `{"admin_id": 99}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(30), body["refund_transaction_id"])
	})

	t.Run("ApproveTwiceConflicts", func(t *testing.T) {
		svc := new(MockRefundService)
		router := newRefundRouter(svc)

		svc.On("ApproveRefund", mock.Anything, int64(5), int64(99)).
			Return(nil, nil, util.ErrAlreadyProcessed).Once()

		rec, _ := doRequest(t, router, http.MethodPost, "/refunds/5/approve", `{"admin_id": 99}`)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("RejectMissingAdminID", func(t *testing.T) {
		svc := new(MockRefundService)
		router := newRefundRouter(svc)

		rec, _ := doRequest(t, router, http.MethodPost, "/refunds/5/reject", `{}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "RejectRefund", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ListPending", func(t *testing.T) {
		svc := new(MockRefundService)
		router := newRefundRouter(svc)

		svc.On("ListPendingRefunds", mock.Anything, 20, 0).
			Return([]domain.RefundRequest{{ID: 5, Status: domain.RefundStatusPending}}, int64(1), nil).Once()

		rec, body := doRequest(t, router, http.MethodGet, "/refunds/pending", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(1), body["total_count"])
	})
}
