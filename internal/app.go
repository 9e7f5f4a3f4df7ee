// internal/app.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"

	router "rideflow-wallet/internal/api"
	"rideflow-wallet/internal/api/handler"
	"rideflow-wallet/internal/config"
	"rideflow-wallet/internal/fees"
	"rideflow-wallet/internal/gateway"
	"rideflow-wallet/internal/notify"
	"rideflow-wallet/internal/repository"
	"rideflow-wallet/internal/repository/postgres"
	"rideflow-wallet/internal/service"
	"rideflow-wallet/internal/util"
	"rideflow-wallet/pkg/db"
)

// Application holds all the initialized components of the application.
type Application struct {
	Config *config.AppConfig
	Logger *slog.Logger
	DB     *sqlx.DB

	// Repositories
	WalletRepository      repository.WalletRepository
	TransactionRepository repository.TransactionRepository
	RefundRepository      repository.RefundRepository

	// Collaborators
	Gateway  gateway.Client
	Notifier notify.Notifier

	// Services
	Ledger        service.TransactionLedger
	Reconciler    *service.CallbackReconciler
	WalletService service.WalletService
	RefundService service.RefundService

	// HTTP API
	HTTPHandler http.Handler
}

// NewApplication creates a new Application instance.
func NewApplication() *Application {
	return &Application{}
}

// Initialize initializes all application components.
func (app *Application) Initialize(ctx context.Context) error {
	// 1. Initialize Logger
	util.InitLogger()
	app.Logger = util.GetLogger()

	// 2. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	app.Config = cfg
	app.Logger.Info("Application configuration loaded successfully.")

	// 3. Connect to Database
	database, err := db.NewPostgresDB(app.Config.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = database
	app.Logger.Info("Database connection established.")

	// 4. Initialize Repositories
	app.WalletRepository = postgres.NewWalletRepository()
	app.TransactionRepository = postgres.NewTransactionRepository()
	app.RefundRepository = postgres.NewRefundRepository()
	app.Logger.Info("Repositories initialized.")

	// 5. Initialize external collaborators
	app.Gateway = gateway.NewHTTPClient(app.Config.Gateway, app.Logger)
	app.Notifier = notify.NewLogNotifier(app.Logger)

	// 6. Initialize Services
	// Pass the concrete db.BeginTx, db.CommitTx, db.RollbackTx functions from pkg/db
	app.Ledger = service.NewTransactionLedger(
		app.DB, // DBTxBeginner
		app.DB, // DBExecutor for non-transactional reads
		app.WalletRepository,
		app.TransactionRepository,
		db.BeginTx,
		db.CommitTx,
		db.RollbackTx,
		app.Logger,
	)
	app.Reconciler = service.NewCallbackReconciler(
		app.DB,
		app.WalletRepository,
		app.TransactionRepository,
		app.Notifier,
		db.BeginTx,
		db.CommitTx,
		db.RollbackTx,
		app.Logger,
	)
	calculator := fees.NewCalculator(app.Config.Fees.PrimaryRate, app.Config.Fees.SecondaryRate)
	app.WalletService = service.NewWalletService(
		app.Ledger,
		app.Reconciler,
		calculator,
		app.Gateway,
		app.Config.Gateway.Provider,
		app.DB,
		app.WalletRepository,
		app.TransactionRepository,
		app.Logger,
	)
	app.RefundService = service.NewRefundService(
		app.DB,
		app.DB,
		app.RefundRepository,
		app.TransactionRepository,
		app.Ledger,
		db.BeginTx,
		db.CommitTx,
		db.RollbackTx,
		app.Logger,
	)
	app.Logger.Info("Services initialized.")

	// 7. Initialize HTTP Handlers and Router
	walletHandler := handler.NewWalletHandler(app.WalletService, app.Reconciler, app.Logger)
	refundHandler := handler.NewRefundHandler(app.RefundService, app.Logger)
	app.HTTPHandler = router.NewRouter(walletHandler, refundHandler, app.Logger)
	app.Logger.Info("HTTP router and handlers initialized.")

	return nil
}

// Shutdown gracefully shuts down application resources.
func (app *Application) Shutdown(ctx context.Context) error {
	app.Logger.Info("Shutting down application...")
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			app.Logger.Error("Failed to close database connection", "error", err)
			return fmt.Errorf("failed to close database connection: %w", err)
		}
		app.Logger.Info("Database connection closed.")
	}
	app.Logger.Info("Application shut down gracefully.")
	return nil
}
