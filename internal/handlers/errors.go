package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pawmart/wallet-backend/internal/services"
)

// respondError maps service errors onto the JSON error contract. Business
// denials keep their reason code plus whatever the client needs to recover
// (wait time, remaining allowance); infrastructure failures collapse to a
// generic 500.
func respondError(c *gin.Context, err error) {
	resp := gin.H{"error": err.Error(), "code": errorCode(err)}

	var d *services.Denial
	if errors.As(err, &d) {
		if d.RetryAfter > 0 {
			resp["retry_after_seconds"] = int64(d.RetryAfter.Round(time.Second).Seconds())
		} else {
			resp["remaining_cents"] = d.Remaining
		}
	}

	switch {
	case errors.Is(err, services.ErrCooldownActive),
		errors.Is(err, services.ErrDailyPlayLimit),
		errors.Is(err, services.ErrRequestInFlight),
		errors.Is(err, services.ErrPlayInProgress):
		c.JSON(http.StatusTooManyRequests, resp)
	case errors.Is(err, services.ErrMembershipRequired):
		c.JSON(http.StatusForbidden, resp)
	case errors.Is(err, services.ErrHoldNotFound):
		c.JSON(http.StatusNotFound, resp)
	case errors.Is(err, services.ErrConcurrentModification):
		c.JSON(http.StatusConflict, resp)
	case services.IsDenial(err):
		c.JSON(http.StatusBadRequest, resp)
	default:
		logrus.WithError(err).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error", "code": "internal"})
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, services.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, services.ErrDailyCapExceeded):
		return "daily_cap_exceeded"
	case errors.Is(err, services.ErrCooldownActive):
		return "cooldown_active"
	case errors.Is(err, services.ErrDailyPlayLimit):
		return "daily_play_limit"
	case errors.Is(err, services.ErrMembershipRequired):
		return "membership_required"
	case errors.Is(err, services.ErrConcurrentModification):
		return "concurrent_modification"
	case errors.Is(err, services.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, services.ErrUnknownGame):
		return "unknown_game"
	case errors.Is(err, services.ErrPlayInProgress):
		return "play_in_progress"
	case errors.Is(err, services.ErrRequestInFlight):
		return "request_in_flight"
	case errors.Is(err, services.ErrHoldNotFound):
		return "hold_not_found"
	case errors.Is(err, services.ErrHoldNotPending):
		return "hold_not_pending"
	case errors.Is(err, services.ErrUsageCapExceeded):
		return "usage_cap_exceeded"
	default:
		return "internal"
	}
}
