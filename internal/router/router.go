package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	authhandler "github.com/jwalitptl/fieldservice-api/internal/handler/auth"
	"github.com/jwalitptl/fieldservice-api/internal/handler/health"
	promhandler "github.com/jwalitptl/fieldservice-api/internal/handler/prometheus"
	"github.com/jwalitptl/fieldservice-api/internal/handler/ws"
	"github.com/jwalitptl/fieldservice-api/internal/middleware"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// Handlers groups everything mounted by the router. Metrics and WS are optional.
type Handlers struct {
	Auth       *authhandler.Handler
	Health     *health.Handler
	Metrics    *promhandler.Handler
	WS         *ws.Handler
	Users      Handler
	Clients    Handler
	Categories Handler
	Services   Handler
	Reports    Handler
	Payments   Handler
	Stats      Handler
	Audit      Handler
}

type RouterConfig struct {
	Mode             string
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
	CORSConfig       middleware.CORSConfig
	MaxBodyBytes     int64
	RequestTimeout   time.Duration
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	handlers Handlers
}

func NewRouter(auth *middleware.AuthMiddleware, handlers Handlers, config RouterConfig) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	middleware.RegisterValidators()

	engine := gin.New()

	r := &Router{
		engine:   engine,
		auth:     auth,
		handlers: handlers,
	}

	// Core middlewares
	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.ErrorHandler(),
	)
	if handlers.Metrics != nil {
		engine.Use(handlers.Metrics.Middleware())
	}

	engine.Use(
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.CORS(config.CORSConfig),
	)

	if config.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(rateLimiter.RateLimit())
	}

	sizeLimit := middleware.DefaultSizeLimitConfig()
	if config.MaxBodyBytes > 0 {
		sizeLimit.MaxBodySize = config.MaxBodyBytes
	}
	timeout := middleware.DefaultTimeoutConfig()
	if config.RequestTimeout > 0 {
		timeout.Duration = config.RequestTimeout
	}
	engine.Use(
		middleware.SizeLimit(sizeLimit),
		middleware.Timeout(timeout),
	)

	return r
}

func (r *Router) Setup() {
	r.setupHealthCheck()

	if r.handlers.WS != nil {
		r.handlers.WS.RegisterRoutes(r.engine)
	}

	api := r.engine.Group("/api/v1")

	// Protected routes
	protected := api.Group("")
	protected.Use(r.auth.Authenticate())

	// Public routes
	r.handlers.Auth.RegisterRoutes(api, protected)

	r.setupProtectedRoutes(protected)
}

func (r *Router) setupHealthCheck() {
	if r.handlers.Health != nil {
		r.handlers.Health.RegisterRoutes(r.engine)
	}
	if r.handlers.Metrics != nil {
		r.engine.GET("/metrics", r.handlers.Metrics.Handler())
	}
}

func (r *Router) setupProtectedRoutes(rg *gin.RouterGroup) {
	for _, h := range []Handler{
		r.handlers.Users,
		r.handlers.Clients,
		r.handlers.Categories,
		r.handlers.Services,
		r.handlers.Reports,
		r.handlers.Payments,
		r.handlers.Stats,
		r.handlers.Audit,
	} {
		if h != nil {
			h.RegisterRoutes(rg)
		}
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
