// Package router assembles the HTTP engine: middleware, documentation and
// every API route.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "expensetracker/internal/docs" // Import swagger docs
	"expensetracker/internal/handlers"
	"expensetracker/internal/imagehost"
	"expensetracker/internal/middleware"
)

// Handlers groups the HTTP handlers the API serves.
type Handlers struct {
	Auth        *handlers.AuthHandler
	Wallet      *handlers.WalletHandler
	Transaction *handlers.TransactionHandler
	Goal        *handlers.GoalHandler
	Statistics  *handlers.StatisticsHandler
	Image       *handlers.ImageHandler
	Stream      *handlers.StreamHandler
}

// Options tunes the engine.
type Options struct {
	// UploadDir, when set, is served under /uploads for the local image host.
	UploadDir string
	// DisableRequestLog skips per-request logging.
	DisableRequestLog bool
}

// New builds the gin engine with all routes registered.
func New(h Handlers, opts Options) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if !opts.DisableRequestLog {
		router.Use(middleware.RequestLogging())
	}
	router.Use(middleware.ErrorHandler())
	router.Use(cors())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if opts.UploadDir != "" {
		router.Static(imagehost.LocalPrefix, opts.UploadDir)
	}

	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.RefreshToken)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	protected.POST("/auth/logout", h.Auth.Logout)
	protected.GET("/profile", h.Auth.GetProfile)
	protected.PUT("/profile", h.Auth.UpdateProfile)

	wallets := protected.Group("/wallets")
	wallets.POST("", h.Wallet.CreateWallet)
	wallets.GET("", h.Wallet.GetUserWallets)
	wallets.GET("/:id", h.Wallet.GetWalletByID)
	wallets.PUT("/:id", h.Wallet.UpdateWallet)
	wallets.DELETE("/:id", h.Wallet.DeleteWallet)
	wallets.GET("/:id/transactions", h.Transaction.GetWalletTransactions)

	transactions := protected.Group("/transactions")
	transactions.POST("", h.Transaction.CreateTransaction)
	transactions.GET("", h.Transaction.GetUserTransactions)
	transactions.GET("/:id", h.Transaction.GetTransactionByID)
	transactions.PUT("/:id", h.Transaction.UpdateTransaction)
	transactions.DELETE("/:id", h.Transaction.DeleteTransaction)

	goals := protected.Group("/goals")
	goals.POST("", h.Goal.CreateGoal)
	goals.GET("", h.Goal.GetUserGoals)
	goals.GET("/:id", h.Goal.GetGoalByID)
	goals.PUT("/:id", h.Goal.UpdateGoal)
	goals.DELETE("/:id", h.Goal.DeleteGoal)
	goals.POST("/:id/complete", h.Goal.CompleteGoal)
	goals.GET("/:id/progress", h.Goal.GetGoalProgress)

	statistics := protected.Group("/statistics")
	statistics.GET("/weekly", h.Statistics.GetWeekly)
	statistics.GET("/monthly", h.Statistics.GetMonthly)
	statistics.GET("/yearly", h.Statistics.GetYearly)
	statistics.GET("/highlights", h.Statistics.GetHighlights)

	protected.POST("/images", h.Image.UploadImage)
	protected.GET("/stream/:collection", h.Stream.Stream)

	return router
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
