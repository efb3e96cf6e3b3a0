package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pawmart/wallet-backend/internal/services"
)

// AdminHandler exposes the explicit admin actions: wallet reset and ledger
// reconciliation. Wallets are never reset implicitly.
type AdminHandler struct {
	redisService *services.RedisService
}

func NewAdminHandler(redisService *services.RedisService) *AdminHandler {
	return &AdminHandler{redisService: redisService}
}

type resetRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

func (h *AdminHandler) ResetWallet(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	wallet, err := h.redisService.ResetWallet(c.Request.Context(), req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"wallet":  wallet.ToBalanceResponse(),
	})
}

func (h *AdminHandler) ReconcileWallet(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id query parameter required"})
		return
	}

	if err := h.redisService.ReconcileWallet(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"consistent": false,
			"details":    err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"consistent": true,
	})
}
