// internal/domain/wallet.go
package domain

import "time"

// Wallet represents a user's stored balance on the platform.
// The platform currency has no subunits, so the balance is a whole-unit integer.
type Wallet struct {
	ID        int64     `db:"id" json:"id"`                 // Primary key, BIGSERIAL in DB
	UserID    int64     `db:"user_id" json:"user_id"`       // Owning user, one wallet per user
	Balance   int64     `db:"balance" json:"balance"`       // Current balance in whole currency units
	CreatedAt time.Time `db:"created_at" json:"created_at"` // Timestamp of creation
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"` // Timestamp of last update
}

// NewWallet creates a new zero-balance Wallet for a user.
// Wallets are provisioned lazily on first access.
func NewWallet(userID int64) *Wallet {
	now := time.Now().UTC()
	return &Wallet{
		UserID:    userID,
		Balance:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
