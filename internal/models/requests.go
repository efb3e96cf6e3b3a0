package models

import "fmt"

type PlayRequest struct {
	GameID string `json:"game_id" binding:"required"`
}

type RedeemRequest struct {
	RequestID  string `json:"request_id" binding:"required"`
	Benefit    string `json:"benefit" binding:"required"`
	Cost       int64  `json:"cost" binding:"required,min=1"`
	OrderTotal int64  `json:"order_total"`
}

type RedeemResult struct {
	RequestID     string `json:"request_id"`
	Benefit       string `json:"benefit"`
	Cost          int64  `json:"cost"`
	TransactionID string `json:"transaction_id"`
	Balance       int64  `json:"balance"`
	Duplicate     bool   `json:"duplicate,omitempty"`
}

type OpenHoldRequest struct {
	OrderID string `json:"order_id" binding:"required"`
	Amount  int64  `json:"amount" binding:"required,min=1"`
}

type SettleHoldRequest struct {
	HoldID string `json:"hold_id" binding:"required"`
}

type OrderRewardRequest struct {
	OrderID  string `json:"order_id" binding:"required"`
	Subtotal int64  `json:"subtotal" binding:"required,min=1"`
}

func (r *RedeemRequest) Validate() error {
	if r.OrderTotal < 0 {
		return fmt.Errorf("order total cannot be negative")
	}
	if r.OrderTotal > 0 && r.Cost > r.OrderTotal {
		return fmt.Errorf("cost %d exceeds order total %d", r.Cost, r.OrderTotal)
	}
	return nil
}
