package handler

import (
	"net/http"

	"bingoledger/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config, log *zap.Logger) *gin.Engine {
	gin.SetMode(ginMode(cfg.Server.Mode))

	r := gin.New()

	httpLog := log.Named("http")
	r.Use(RecoveryMiddleware(httpLog))
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(httpLog))
	r.Use(CORSMiddleware())

	h := NewHandler(db, rdb, cfg, log)

	api := r.Group("/api/v1")
	{
		games := api.Group("/games")
		{
			games.POST("/create", h.CreateGame)
			games.POST("/complete", h.CompleteGame)
			games.POST("/update", h.UpdateGame)
			games.GET("/list", h.ListGames)
		}

		sales := api.Group("/sales")
		{
			sales.GET("/list", h.ListSales)
			sales.GET("/stats", h.SalesStats)
		}

		auth := api.Group("/auth")
		{
			auth.POST("/login", h.Login)
			auth.POST("/change-password", h.ChangePassword)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}

func ginMode(mode string) string {
	switch mode {
	case gin.ReleaseMode, gin.TestMode:
		return mode
	default:
		return gin.DebugMode
	}
}
