package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pawmart/wallet-backend/internal/middleware"
	"github.com/pawmart/wallet-backend/internal/models"
	"github.com/pawmart/wallet-backend/internal/services"
)

// OrderHandler covers the order-facing wallet surface: checkout holds and
// purchase rewards. Benefit and order fulfilment stay with the order
// subsystem; this handler only moves wallet balance.
type OrderHandler struct {
	holds  *services.HoldService
	policy *services.EarningPolicy
	ws     *WebSocketHandler
}

func NewOrderHandler(holds *services.HoldService, policy *services.EarningPolicy, ws *WebSocketHandler) *OrderHandler {
	return &OrderHandler{
		holds:  holds,
		policy: policy,
		ws:     ws,
	}
}

func (h *OrderHandler) OpenHold(c *gin.Context) {
	userID := c.GetInt64("user_id")

	var req models.OpenHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	hold, err := h.holds.Open(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.ws.PublishHold(hold)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"hold":    hold,
	})
}

func (h *OrderHandler) SettleHold(c *gin.Context) {
	h.transition(c, h.holds.Settle)
}

func (h *OrderHandler) ReleaseHold(c *gin.Context) {
	h.transition(c, h.holds.Release)
}

func (h *OrderHandler) transition(c *gin.Context, fn func(ctx context.Context, userID int64, holdID string) (*models.OrderHold, error)) {
	userID := c.GetInt64("user_id")

	var req models.SettleHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	hold, err := fn(c.Request.Context(), userID, req.HoldID)
	if hold != nil {
		h.ws.PublishHold(hold)
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"hold":    hold,
	})
}

func (h *OrderHandler) GetHold(c *gin.Context) {
	userID := c.GetInt64("user_id")

	hold, err := h.holds.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if hold.UserID != userID {
		respondError(c, services.ErrHoldNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"hold":    hold,
	})
}

// PurchaseReward credits the earn for a completed order, subject to the
// same daily cap as the games.
func (h *OrderHandler) PurchaseReward(c *gin.Context) {
	userID := c.GetInt64("user_id")
	tier := middleware.UserTier(c)
	ctx := c.Request.Context()

	var req models.OrderRewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	reward := h.policy.PurchaseReward(req.Subtotal, tier)
	if reward == 0 {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"reward":  0,
		})
		return
	}

	metadata, _ := json.Marshal(map[string]interface{}{
		"order_id": req.OrderID,
		"subtotal": req.Subtotal,
		"tier":     string(tier),
	})

	wallet, record, err := h.policy.Earn(ctx, userID, reward, "order:"+req.OrderID, metadata)
	if err != nil {
		respondError(c, err)
		return
	}

	h.ws.PublishWallet(wallet, record)

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"reward":      reward,
		"transaction": record,
		"wallet":      wallet.ToBalanceResponse(),
	})
}
