package models

import "time"

// All monetary amounts are integer cents.
type Wallet struct {
	UserID        int64 `json:"user_id" redis:"user_id"`
	Balance       int64 `json:"balance" redis:"balance"`
	FrozenBalance int64 `json:"frozen_balance" redis:"frozen_balance"`
	TotalEarned   int64 `json:"total_earned" redis:"total_earned"`
	TotalSpent    int64 `json:"total_spent" redis:"total_spent"`

	CreatedAt int64 `json:"created_at" redis:"created_at"`
	UpdatedAt int64 `json:"updated_at" redis:"updated_at"`
}

func NewWallet(userID int64) *Wallet {
	now := time.Now().Unix()
	return &Wallet{
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Spendable is the portion of the balance not reserved by holds.
func (w *Wallet) Spendable() int64 {
	return w.Balance - w.FrozenBalance
}

type BalanceResponse struct {
	Balance       int64 `json:"balance"`
	FrozenBalance int64 `json:"frozen_balance"`
	Spendable     int64 `json:"spendable"`
	TotalEarned   int64 `json:"total_earned"`
	TotalSpent    int64 `json:"total_spent"`
}

func (w *Wallet) ToBalanceResponse() *BalanceResponse {
	return &BalanceResponse{
		Balance:       w.Balance,
		FrozenBalance: w.FrozenBalance,
		Spendable:     w.Spendable(),
		TotalEarned:   w.TotalEarned,
		TotalSpent:    w.TotalSpent,
	}
}
