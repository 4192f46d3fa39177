package bootstrap

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/ledgersync/internal/infrastructure/logger"
	"github.com/erp/ledgersync/internal/interfaces/http/handler"
	"github.com/erp/ledgersync/internal/interfaces/http/middleware"
	"github.com/erp/ledgersync/internal/interfaces/http/router"
)

// NewEngine builds the gin engine. jobs may be nil when the scheduler is
// disabled.
func (a *App) NewEngine(jobs handler.JobScheduler) *gin.Engine {
	cfg := a.Config
	log := a.Logger

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Order matters: the request id feeds the span and the request logger
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Tracing())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	engine.Use(middleware.CORSWithConfig(corsConfig))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	engine.GET("/health", healthHandler(a))

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	if cfg.HTTP.RateLimitEnabled {
		r.Use(middleware.RateLimit(middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	syncHandler := handler.NewSyncHandler(a.Runner, jobs)
	for _, group := range syncHandler.RouteGroups() {
		r.Register(group)
	}

	systemHandler := handler.NewSystemHandler(a.Runner, handler.SystemSettings{
		LedgerDriver:     a.LedgerDriver(),
		SchedulerEnabled: jobs != nil,
	})
	r.Register(systemHandler.RouteGroup())

	r.Setup()
	return engine
}

// NewServer wraps the engine in an http.Server using the HTTP settings
func (a *App) NewServer(engine http.Handler) *http.Server {
	return &http.Server{
		Addr:           ":" + a.Config.App.Port,
		Handler:        engine,
		ReadTimeout:    a.Config.HTTP.ReadTimeout,
		WriteTimeout:   a.Config.HTTP.WriteTimeout,
		IdleTimeout:    a.Config.HTTP.IdleTimeout,
		MaxHeaderBytes: a.Config.HTTP.MaxHeaderBytes,
	}
}

// healthHandler returns a handler for health check endpoints
func healthHandler(a *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := a.Ping(); err != nil {
			logger.GetGinLogger(c).Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"time":   time.Now().Format(time.RFC3339),
				"ledger": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
			"ledger": a.LedgerDriver(),
		})
	}
}
