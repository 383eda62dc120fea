// Package httpapi wires the HTTP transport (Gin) to the webhook services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, body limits, and per-token rate limiting.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-crm-webhooks/docs"
	"github.com/tbourn/go-crm-webhooks/internal/config"
	"github.com/tbourn/go-crm-webhooks/internal/http/handlers"
	"github.com/tbourn/go-crm-webhooks/internal/http/middleware"
	"github.com/tbourn/go-crm-webhooks/internal/repo"
	"github.com/tbourn/go-crm-webhooks/internal/services"
	"github.com/tbourn/go-crm-webhooks/internal/tenantcache"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and returns the WebhookService it built, so callers can reuse it.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs, webhook tokens masked
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. CORS and security headers
//  8. Rate limiter (webhook group only, per token)
func RegisterRoutes(r *gin.Engine, db *gorm.DB, tokens tenantcache.Cache, cfg config.Config) *services.WebhookService {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders:      []string{"X-Api-Key", "X-Webhook-Signature"},
		MaskPathPrefixes: []string{cfg.Webhook.PathPrefix},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit
	r.Use(limitBody(cfg.Webhook.MaxBodyBytes))

	// 6) Prometheus metrics
	r.Use(middleware.Metrics())

	// 7) CORS posture and security headers
	r.Use(cors.New(corsConfig(cfg.CORS)))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      true,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Operator endpoints, compressed
	ops := r.Group("", gzip.Gzip(gzip.DefaultCompression))
	ops.GET("/metrics", gin.WrapH(promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		DisableCompression: true,
	})))
	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = "/"
		ops.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/cache
	svc := services.NewWebhookService(db, tokens, repo.LastMessagePolicy(cfg.Webhook.LastMessagePolicy))
	h := handlers.New(svc)

	// Provider-facing webhook, one URL per source token
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByParamOrIP("token"))
	hooks := groupWithPrefix(r, cfg.Webhook.PathPrefix)
	hooks.Use(rl.Handler())
	{
		hooks.POST("/:token", h.ReceiveWebhook)
		hooks.OPTIONS("/:token", h.Preflight)
	}
	return svc
}

// corsConfig allows any origin when none are configured. Webhook calls are
// server-to-server, so credentials are never allowed.
func corsConfig(c config.CORSConfig) cors.Config {
	cc := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(c.AllowedOrigins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = c.AllowedOrigins
	}
	return cc
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
