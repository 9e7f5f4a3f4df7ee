// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"rideflow-wallet/internal/gateway"
	"rideflow-wallet/pkg/db"

	"github.com/shopspring/decimal"
)

// FeeConfig holds the deposit fee rates, expressed as fractions (0.02 for 2%).
type FeeConfig struct {
	PrimaryRate   decimal.Decimal // gateway fee
	SecondaryRate decimal.Decimal // mobile-money operator fee
}

// AppConfig holds all application-wide configurations.
type AppConfig struct {
	ServerPort string
	DB         db.Config
	Fees       FeeConfig
	Gateway    gateway.Config
}

// LoadConfig loads configuration from environment variables.
// It returns an AppConfig instance or an error if any required variable is missing or invalid.
func LoadConfig() (*AppConfig, error) {
	serverPort := envOr("SERVER_PORT", "8080")

	dbPort, err := strconv.Atoi(envOr("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	primaryRate, err := decimal.NewFromString(envOr("FEE_PRIMARY_RATE", "0.02"))
	if err != nil {
		return nil, fmt.Errorf("invalid FEE_PRIMARY_RATE: %w", err)
	}
	secondaryRate, err := decimal.NewFromString(envOr("FEE_SECONDARY_RATE", "0.04"))
	if err != nil {
		return nil, fmt.Errorf("invalid FEE_SECONDARY_RATE: %w", err)
	}

	gatewayTimeout, err := strconv.Atoi(envOr("GATEWAY_TIMEOUT_SECONDS", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid GATEWAY_TIMEOUT_SECONDS: %w", err)
	}

	return &AppConfig{
		ServerPort: serverPort,
		DB: db.Config{
			Host:     envOr("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     envOr("DB_USER", "user"),
			Password: envOr("DB_PASSWORD", "password"),
			DBName:   envOr("DB_NAME", "walletdb"),
			SSLMode:  envOr("DB_SSLMODE", "disable"),
		},
		Fees: FeeConfig{
			PrimaryRate:   primaryRate,
			SecondaryRate: secondaryRate,
		},
		Gateway: gateway.Config{
			BaseURL:       envOr("GATEWAY_BASE_URL", "https://api.my-coolpay.com"),
			APIKey:        os.Getenv("GATEWAY_API_KEY"),
			MerchantPhone: os.Getenv("GATEWAY_MERCHANT_PHONE"),
			CallbackURL:   os.Getenv("GATEWAY_CALLBACK_URL"),
			Provider:      envOr("GATEWAY_PROVIDER", "MY_COOLPAY"),
			Timeout:       time.Duration(gatewayTimeout) * time.Second,
		},
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
