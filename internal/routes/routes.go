package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/YongWoo-8933/Cafejari-Server/internal/app/domain/account"
	"github.com/YongWoo-8933/Cafejari-Server/internal/app/domain/catalog"
	"github.com/YongWoo-8933/Cafejari-Server/internal/app/domain/occupancy"
	"github.com/YongWoo-8933/Cafejari-Server/internal/app/middleware"
	"github.com/YongWoo-8933/Cafejari-Server/internal/pkg/config"
)

type AppHandlers struct {
	Occupancy *occupancy.Handler
}

// Setup wires repositories, services and handlers onto the router.
func Setup(r *gin.Engine, dbPool *pgxpool.Pool, cfg *config.Config, logger *zap.Logger) *AppHandlers {
	occupancyRepo := occupancy.NewRepository(dbPool, logger)
	catalogRepo := catalog.NewRepository(dbPool, logger)
	accountRepo := account.NewRepository(dbPool, logger)

	occupancyService := occupancy.NewService(occupancyRepo, catalogRepo, accountRepo,
		cfg.Occupancy, cfg.Timezone, logger)

	handlers := &AppHandlers{
		Occupancy: occupancy.NewHandler(occupancyService, logger),
	}

	r.GET("/healthz", func(c *gin.Context) {
		if err := dbPool.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "database unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	{
		api.POST("/occupancy/guest", handlers.Occupancy.SubmitGuestReading)

		authed := api.Group("")
		authed.Use(middleware.AuthMiddleware(cfg.JWTSecret, logger))
		{
			authed.POST("/occupancy", handlers.Occupancy.SubmitReading)
			authed.GET("/occupancy/mine", handlers.Occupancy.MyReadings)
			authed.GET("/occupancy/mine/today", handlers.Occupancy.MyReadingsToday)
		}
	}

	return handlers
}
