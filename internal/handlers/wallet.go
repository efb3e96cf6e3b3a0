package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pawmart/wallet-backend/internal/middleware"
	"github.com/pawmart/wallet-backend/internal/models"
	"github.com/pawmart/wallet-backend/internal/services"
)

type WalletHandler struct {
	redisService *services.RedisService
	redeemer     *services.Redeemer
	ws           *WebSocketHandler
}

func NewWalletHandler(redisService *services.RedisService, redeemer *services.Redeemer, ws *WebSocketHandler) *WalletHandler {
	return &WalletHandler{
		redisService: redisService,
		redeemer:     redeemer,
		ws:           ws,
	}
}

func (h *WalletHandler) GetWallet(c *gin.Context) {
	userID := c.GetInt64("user_id")

	wallet, err := h.redisService.GetOrCreateWallet(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"wallet":  wallet.ToBalanceResponse(),
	})
}

func (h *WalletHandler) ListTransactions(c *gin.Context) {
	userID := c.GetInt64("user_id")

	limitStr := c.DefaultQuery("limit", "50")
	limit, err := strconv.ParseInt(limitStr, 10, 64)
	if err != nil || limit <= 0 || limit > 100 {
		limit = 50
	}

	transactions, err := h.redisService.ListTransactions(c.Request.Context(), userID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"transactions": transactions,
		"count":        len(transactions),
	})
}

func (h *WalletHandler) Redeem(c *gin.Context) {
	userID := c.GetInt64("user_id")
	tier := middleware.UserTier(c)

	var req models.RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	result, err := h.redeemer.Redeem(c.Request.Context(), userID, tier, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	if !result.Duplicate {
		if wallet, err := h.redisService.GetOrCreateWallet(c.Request.Context(), userID); err == nil {
			h.ws.PublishWallet(wallet, nil)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}
