package handlers

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawmart/wallet-backend/internal/config"
	"github.com/pawmart/wallet-backend/internal/models"
	"github.com/pawmart/wallet-backend/internal/services"
)

func setupWebSocket(t *testing.T, userID int64) (*WebSocketHandler, *websocket.Conn, *services.RedisService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	redisService, err := services.NewRedisService(&config.Config{RedisURL: "localhost:6379"})
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { redisService.Close() })

	handler := NewWebSocketHandler(redisService)

	router := gin.New()
	router.GET("/ws", func(c *gin.Context) {
		c.Set("user_id", userID)
		handler.HandleWebSocket(c)
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return handler, conn, redisService
}

func TestWebSocketInitialWalletSnapshot(t *testing.T) {
	userID := int64(910000000 + time.Now().UnixNano()%100000000)
	_, conn, redisService := setupWebSocket(t, userID)
	defer redisService.DeleteWalletData(context.Background(), userID)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "WALLET_UPDATE", msg.Type)
}

func TestWebSocketInterleavedPingsAndPublishes(t *testing.T) {
	userID := int64(910000000 + time.Now().UnixNano()%100000000)
	handler, conn, redisService := setupWebSocket(t, userID)
	defer redisService.DeleteWalletData(context.Background(), userID)

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "WALLET_UPDATE", msg.Type)

	// Pings answered from the read loop and publishes pushed by the hub
	// land on the same connection; every write goes through the client's
	// write pump, so none of them may corrupt another.
	const rounds = 10
	wallet := &models.Wallet{UserID: userID}
	for i := 0; i < rounds; i++ {
		require.NoError(t, conn.WriteJSON(Message{Type: "PING"}))
		handler.PublishWallet(wallet, nil)
	}

	counts := map[string]int{}
	for i := 0; i < 2*rounds; i++ {
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))
		counts[msg.Type]++
	}
	assert.Equal(t, rounds, counts["PONG"])
	assert.Equal(t, rounds, counts["WALLET_UPDATE"])
}
