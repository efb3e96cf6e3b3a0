package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pawmart/wallet-backend/internal/middleware"
	"github.com/pawmart/wallet-backend/internal/models"
	"github.com/pawmart/wallet-backend/internal/services"
)

type GameHandler struct {
	gate   *services.GameGate
	policy *services.EarningPolicy
	ws     *WebSocketHandler
}

func NewGameHandler(gate *services.GameGate, policy *services.EarningPolicy, ws *WebSocketHandler) *GameHandler {
	return &GameHandler{
		gate:   gate,
		policy: policy,
		ws:     ws,
	}
}

// Play runs one reward-earning game round: gate eligibility, reward
// computation, then a single cap-checked EARN through the ledger. A cap
// denial aborts the play before anything is mutated or counted.
func (h *GameHandler) Play(c *gin.Context) {
	userID := c.GetInt64("user_id")
	tier := middleware.UserTier(c)
	ctx := c.Request.Context()

	var req models.PlayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	rule, err := h.gate.Begin(ctx, userID, req.GameID, tier)
	if err != nil {
		respondError(c, err)
		return
	}

	reward := h.policy.ComputeReward(rule, tier)

	metadata, _ := json.Marshal(map[string]interface{}{
		"game_id": req.GameID,
		"tier":    string(tier),
	})

	wallet, record, err := h.policy.Earn(ctx, userID, reward, "game:"+req.GameID, metadata)
	if err != nil {
		if abortErr := h.gate.Abort(ctx, userID, req.GameID); abortErr != nil {
			logrus.WithError(abortErr).Warn("failed to abort play")
		}
		respondError(c, err)
		return
	}

	if err := h.gate.Complete(ctx, userID, req.GameID); err != nil {
		// The earn already landed; the play just won't be throttled.
		logrus.WithError(err).WithField("user_id", userID).Error("failed to complete play")
	}

	h.ws.PublishWallet(wallet, record)

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"reward":      reward,
		"transaction": record,
		"wallet":      wallet.ToBalanceResponse(),
	})
}

func (h *GameHandler) Status(c *gin.Context) {
	userID := c.GetInt64("user_id")
	tier := middleware.UserTier(c)

	status, err := h.gate.Status(c.Request.Context(), userID, tier)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"status":  status,
	})
}
