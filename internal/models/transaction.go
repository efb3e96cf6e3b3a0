package models

import "encoding/json"

type TransactionType string

const (
	TransactionTypeEarn     TransactionType = "earn"
	TransactionTypeSpend    TransactionType = "spend"
	TransactionTypeRefund   TransactionType = "refund"
	TransactionTypeFreeze   TransactionType = "freeze"
	TransactionTypeUnfreeze TransactionType = "unfreeze"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeEarn, TransactionTypeSpend, TransactionTypeRefund,
		TransactionTypeFreeze, TransactionTypeUnfreeze:
		return true
	}
	return false
}

// Transaction is an append-only ledger entry. Amount is always positive;
// its sign is implied by Type. Metadata is opaque to the ledger.
type Transaction struct {
	ID            string          `json:"id" redis:"id"`
	UserID        int64           `json:"user_id" redis:"user_id"`
	Type          TransactionType `json:"type" redis:"type"`
	Source        string          `json:"source" redis:"source"`
	Amount        int64           `json:"amount" redis:"amount"`
	BalanceBefore int64           `json:"balance_before" redis:"balance_before"`
	BalanceAfter  int64           `json:"balance_after" redis:"balance_after"`
	Metadata      json.RawMessage `json:"metadata,omitempty" redis:"metadata"`
	CreatedAt     int64           `json:"created_at" redis:"created_at"`
}
