package models

type HoldStatus string

const (
	HoldStatusPending   HoldStatus = "pending"
	HoldStatusCompleted HoldStatus = "completed"
	HoldStatusFailed    HoldStatus = "failed"
	HoldStatusCancelled HoldStatus = "cancelled"
)

// OrderHold reserves wallet funds against an order during checkout.
// Pending holds freeze balance; settlement spends it, release returns it.
type OrderHold struct {
	ID        string     `json:"id" redis:"id"`
	UserID    int64      `json:"user_id" redis:"user_id"`
	OrderID   string     `json:"order_id" redis:"order_id"`
	Amount    int64      `json:"amount" redis:"amount"`
	Status    HoldStatus `json:"status" redis:"status"`
	CreatedAt int64      `json:"created_at" redis:"created_at"`
	UpdatedAt int64      `json:"updated_at" redis:"updated_at"`
}
