package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/natehollidaynh-pixel/alpha-channel-media/internal/auth"
	"github.com/natehollidaynh-pixel/alpha-channel-media/internal/config"
	"github.com/natehollidaynh-pixel/alpha-channel-media/internal/database"
	"github.com/natehollidaynh-pixel/alpha-channel-media/internal/handlers"
	"github.com/natehollidaynh-pixel/alpha-channel-media/internal/jobs"
	"github.com/natehollidaynh-pixel/alpha-channel-media/internal/notify"
	"github.com/natehollidaynh-pixel/alpha-channel-media/internal/realtime"
	"github.com/natehollidaynh-pixel/alpha-channel-media/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	if err := database.Connect(cfg.GetDSN()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	db := database.GetDB()

	// Token verification with the secret resolved once at startup
	authenticator := auth.NewAuthenticator(cfg.App.JWTSecret)

	// Best-effort outbound notifications (log sink until a gateway adapter
	// is plugged in)
	notifier := notify.New(nil)

	initialBalance, err := decimal.NewFromString(cfg.App.InitialTraderBalance)
	if err != nil {
		log.Fatalf("Invalid INITIAL_TRADER_BALANCE: %v", err)
	}

	// Initialize services
	judgeService := services.NewJudgeService(db, notifier,
		cfg.Judging.ScreeningSetSize, cfg.Judging.RejectionCooldownDays)
	sessionService := services.NewSessionService(db)
	tradingService := services.NewTradingService(db, sessionService, initialBalance)
	leaderboardService := services.NewLeaderboardService(db)

	// Realtime hub and settlement (settlement broadcasts through the hub)
	hub := realtime.NewHub(authenticator, sessionService)
	settlementService := services.NewSettlementService(db, notifier, hub)

	// Initialize handlers
	judgeHandler := handlers.NewJudgeHandler(judgeService)
	sessionHandler := handlers.NewSessionHandler(sessionService, settlementService)
	tradingHandler := handlers.NewTradingHandler(tradingService)
	leaderboardHandler := handlers.NewLeaderboardHandler(leaderboardService)
	anchorHandler := handlers.NewAnchorHandler(db)

	// Auto-start sessions whose scheduled start has passed
	scheduler := jobs.NewSessionScheduler(db, sessionService)
	scheduler.Start(time.Duration(cfg.Judging.SchedulerIntervalSecs) * time.Second)
	log.Println("Session scheduler started")

	// Set up Gin router
	router := gin.Default()

	// CORS middleware
	allowedOrigins := []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
	if cfg.App.FrontendURL != "" {
		allowedOrigins = append(allowedOrigins, cfg.App.FrontendURL)
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Realtime channel (handshake carries its own token)
	router.GET("/ws", hub.HandleConnection)

	// Public session routes
	router.GET("/sessions", sessionHandler.List)
	router.GET("/sessions/:id", sessionHandler.Get)
	router.GET("/sessions/:id/history", sessionHandler.History)

	// Public leaderboards
	router.GET("/leaderboards/traders", leaderboardHandler.Traders)
	router.GET("/leaderboards/judges", leaderboardHandler.Judges)

	// Authenticated routes
	protected := router.Group("/")
	protected.Use(authenticator.Middleware())
	{
		// Judge qualification
		protected.POST("/judges/apply", judgeHandler.Apply)
		protected.GET("/judges/screening/:applicationId", judgeHandler.GetScreeningSet)
		protected.POST("/judges/screening/:applicationId/submit", judgeHandler.SubmitScreening)
		protected.GET("/judges/profile", judgeHandler.Profile)

		// Trading
		protected.GET("/traders/profile", tradingHandler.TraderProfile)
		protected.POST("/trades", tradingHandler.PlaceTrade)
		protected.GET("/trades/active", tradingHandler.ActiveTrades)
		protected.GET("/trades/history", tradingHandler.TradeHistory)
	}

	// Master (admin) routes
	admin := router.Group("/")
	admin.Use(authenticator.Middleware())
	admin.Use(auth.RequireMaster())
	{
		admin.POST("/sessions", sessionHandler.Create)
		admin.PATCH("/sessions/:id/start", sessionHandler.Start)
		admin.POST("/sessions/:id/settle", sessionHandler.Settle)

		admin.POST("/admin/anchors", anchorHandler.Create)
		admin.GET("/admin/anchors", anchorHandler.List)
		admin.PATCH("/admin/anchors/:id/deactivate", anchorHandler.Deactivate)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		log.Printf("Health check: http://localhost:%s/health", cfg.Server.Port)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with 5 second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
