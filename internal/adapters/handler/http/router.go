package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/comitanigiacomo/kanso-habits/docs"
	"github.com/comitanigiacomo/kanso-habits/internal/adapters/cache"
	"github.com/comitanigiacomo/kanso-habits/internal/adapters/handler/http/middleware"
)

const healthTimeout = 2 * time.Second

type RouterDependencies struct {
	AuthHandler   *AuthHandler
	HabitHandler  *HabitHandler
	ChecksHandler *ChecksHandler
	StatsHandler  *StatsHandler
	Tokens        middleware.TokenValidator
	DB            *sqlx.DB
	Redis         *redis.Client
	RateLimit     int
	StartTime     time.Time
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Redis    string `json:"redis"`
	Uptime   string `json:"uptime"`
}

func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.Default()

	router.Use(middleware.CORS())
	router.Use(middleware.Metrics())

	switch {
	case deps.RateLimit <= 0:
	case deps.Redis != nil:
		router.Use(middleware.RateLimiterMiddleware(deps.Redis, deps.RateLimit, time.Minute))
	default:
		router.Use(middleware.NewLocalRateLimiter(deps.RateLimit).Middleware())
	}

	router.GET("/health", healthHandler(deps))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	apiV1 := router.Group("/api/v1")

	deps.AuthHandler.RegisterRoutes(apiV1)

	protected := apiV1.Group("")
	protected.Use(middleware.AuthMiddleware(deps.Tokens))
	{
		deps.HabitHandler.RegisterRoutes(protected)
		deps.ChecksHandler.RegisterRoutes(protected)
		deps.StatsHandler.RegisterRoutes(protected)
	}

	return router
}

// healthHandler reports 503 only when the database is down. Redis is optional,
// so "disabled" is a healthy state.
func healthHandler(deps RouterDependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()

		resp := healthResponse{
			Status:   "ok",
			Database: "connected",
			Redis:    "connected",
			Uptime:   time.Since(deps.StartTime).Round(time.Second).String(),
		}
		status := http.StatusOK

		if deps.DB == nil || deps.DB.PingContext(ctx) != nil {
			resp.Status = "degraded"
			resp.Database = "unreachable"
			status = http.StatusServiceUnavailable
		}

		switch {
		case deps.Redis == nil:
			resp.Redis = "disabled"
		case cache.Ping(ctx, deps.Redis) != nil:
			resp.Redis = "unreachable"
			resp.Status = "degraded"
		}

		c.JSON(status, resp)
	}
}
