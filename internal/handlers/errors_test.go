package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawmart/wallet-backend/internal/services"
)

func recordError(t *testing.T, err error) (int, map[string]interface{}) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respondError(c, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestRespondErrorCooldown(t *testing.T) {
	err := &services.Denial{Reason: services.ErrCooldownActive, RetryAfter: 42 * time.Second}

	code, body := recordError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "cooldown_active", body["code"])
	assert.Equal(t, float64(42), body["retry_after_seconds"])
}

func TestRespondErrorInsufficientBalance(t *testing.T) {
	err := &services.Denial{Reason: services.ErrInsufficientBalance, Remaining: 150}

	code, body := recordError(t, err)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "insufficient_balance", body["code"])
	assert.Equal(t, float64(150), body["remaining_cents"])
}

func TestRespondErrorDailyCap(t *testing.T) {
	err := &services.Denial{Reason: services.ErrDailyCapExceeded, Remaining: 0}

	code, body := recordError(t, err)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "daily_cap_exceeded", body["code"])
}

func TestRespondErrorMembership(t *testing.T) {
	code, body := recordError(t, services.ErrMembershipRequired)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "membership_required", body["code"])
}

func TestRespondErrorConcurrentModification(t *testing.T) {
	code, body := recordError(t, services.ErrConcurrentModification)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "concurrent_modification", body["code"])
}

func TestRespondErrorInfrastructure(t *testing.T) {
	code, body := recordError(t, errors.New("redis: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "internal", body["code"])
	assert.Equal(t, "Internal error", body["error"], "infrastructure detail must not leak")
}
