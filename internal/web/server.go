package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"alpaca/internal/cache"
	"alpaca/internal/metrics"
	"alpaca/internal/provider"
	"alpaca/internal/session"
	"alpaca/internal/storage"
)

type Server struct {
	store      *storage.Store
	backend    provider.Backend
	runner     *session.Runner
	modelCache *cache.ModelCache
	logger     zerolog.Logger
	metrics    *metrics.Metrics

	// exchangeCtx outlives individual websocket requests so a client
	// disconnect does not cancel an in-flight generation.
	exchangeCtx context.Context
}

type Config struct {
	Store       *storage.Store
	Backend     provider.Backend
	Runner      *session.Runner
	ModelCache  *cache.ModelCache
	Logger      zerolog.Logger
	Metrics     *metrics.Metrics
	ExchangeCtx context.Context
	HealthPath  string
	MetricsPath string
}

func NewRouter(cfg Config) *gin.Engine {
	m := cfg.Metrics
	if m == nil {
		m = metrics.Global()
	}
	if cfg.ExchangeCtx == nil {
		cfg.ExchangeCtx = context.Background()
	}
	if cfg.HealthPath == "" {
		cfg.HealthPath = "/healthz"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}

	s := &Server{
		store:       cfg.Store,
		backend:     cfg.Backend,
		runner:      cfg.Runner,
		modelCache:  cfg.ModelCache,
		logger:      cfg.Logger,
		metrics:     m,
		exchangeCtx: cfg.ExchangeCtx,
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery())
	r.Use(requestLogger(cfg.Logger))

	r.GET(cfg.HealthPath, func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET(cfg.MetricsPath, gin.WrapH(promhttp.Handler()))

	r.GET("/api/models", s.listModels)
	r.GET("/api/custom-models", s.listCustomModels)
	r.POST("/api/custom-model", s.createCustomModel)
	r.PUT("/api/custom-model/:id", s.updateCustomModel)
	r.DELETE("/api/custom-model/:id", s.deleteCustomModel)

	r.GET("/api/chats", s.listChats)
	r.POST("/api/chat", s.createChat)
	r.GET("/api/chat/:id", s.getChat)
	r.DELETE("/api/chat/:id", s.deleteChat)

	r.GET("/ws", s.handleWS)

	return r
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	}
}

func respondOK(c *gin.Context, payload gin.H) {
	if payload == nil {
		payload = gin.H{}
	}
	payload["success"] = true
	c.JSON(http.StatusOK, payload)
}

func respondErr(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}
