package main

import (
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/pawmart/wallet-backend/internal/config"
	"github.com/pawmart/wallet-backend/internal/handlers"
	"github.com/pawmart/wallet-backend/internal/jobs"
	"github.com/pawmart/wallet-backend/internal/middleware"
	"github.com/pawmart/wallet-backend/internal/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}
	if cfg.Env == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	redisService, err := services.NewRedisService(cfg)
	if err != nil {
		logrus.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisService.Close()

	jwtService := services.NewJWTService(cfg)

	policy := services.NewEarningPolicy(cfg, redisService)
	gate := services.NewGameGate(cfg, redisService)
	redeemer := services.NewRedeemer(cfg, redisService)
	holds := services.NewHoldService(cfg, redisService)

	wsHandler := handlers.NewWebSocketHandler(redisService)
	walletHandler := handlers.NewWalletHandler(redisService, redeemer, wsHandler)
	gameHandler := handlers.NewGameHandler(gate, policy, wsHandler)
	orderHandler := handlers.NewOrderHandler(holds, policy, wsHandler)
	adminHandler := handlers.NewAdminHandler(redisService)

	scheduler := jobs.NewScheduler(cfg, redisService, holds)
	if err := scheduler.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer scheduler.Stop()

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(jwtService))
	{
		protected.GET("/ws", wsHandler.HandleWebSocket)

		wallet := protected.Group("/wallet")
		{
			wallet.GET("", walletHandler.GetWallet)
			wallet.GET("/transactions", walletHandler.ListTransactions)
			wallet.POST("/redeem", walletHandler.Redeem)
		}

		games := protected.Group("/games")
		{
			games.POST("/play", gameHandler.Play)
			games.GET("/status", gameHandler.Status)
		}

		orders := protected.Group("/orders")
		{
			orders.POST("/hold", orderHandler.OpenHold)
			orders.POST("/settle", orderHandler.SettleHold)
			orders.POST("/release", orderHandler.ReleaseHold)
			orders.GET("/hold/:id", orderHandler.GetHold)
			orders.POST("/reward", orderHandler.PurchaseReward)
		}

		admin := protected.Group("/admin")
		admin.Use(middleware.AdminOnly())
		{
			admin.POST("/wallet/reset", adminHandler.ResetWallet)
			admin.GET("/wallet/reconcile", adminHandler.ReconcileWallet)
		}
	}

	logrus.Infof("Server starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		logrus.Fatalf("Failed to start server: %v", err)
	}
}
