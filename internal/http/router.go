// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, rate limiting, CORS, and security headers.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-user-sync-backend/docs"
	"github.com/tbourn/go-user-sync-backend/internal/auth"
	"github.com/tbourn/go-user-sync-backend/internal/config"
	"github.com/tbourn/go-user-sync-backend/internal/http/handlers"
	"github.com/tbourn/go-user-sync-backend/internal/http/middleware"
	"github.com/tbourn/go-user-sync-backend/internal/services"
	"github.com/tbourn/go-user-sync-backend/internal/webhook"
)

// maxProfileBody caps JSON bodies on the profile routes. Profile updates are
// three short fields; anything larger is malformed or abusive.
const maxProfileBody = 10 << 10 // 10 KiB

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine: observability (tracing, metrics), structured logging with header
// masking, panic recovery, compression, tiered rate limiting, CORS, security
// headers, operational probes, the webhook sink, and the authenticated
// profile API.
//
// tokens may be nil when no JWT verification key is configured; the profile
// routes then fail closed with a 500. verifier may likewise be nil; the
// webhook endpoint fails closed the same way.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs with credential masking
//  4. Recovery: capture panics after logger (stack in body only outside prod)
//  5. Gzip compression
//  6. Metrics and the /metrics endpoint
//  7. General rate limiter (all routes; probes exempt)
//  8. CORS
//  9. Security headers
//
// Stricter per-group limiters stack on top of the general one: the webhook
// sink carries the heavy-API policy, the profile routes the auth-sensitive
// policy.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, tokens auth.TokenVerifier, verifier *webhook.Verifier, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging; probe chatter suppressed, credentials masked
	r.Use(middleware.Logger(middleware.LoggerOptions{
		SkipPaths:   []string{"/health", "/ready"},
		MaskHeaders: []string{"Authorization", webhook.HeaderSignature},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery(!cfg.IsProduction()))

	// 5) Response compression
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Tiered fixed-window rate limiting over one shared counter store
	store := middleware.NewMemoryStore()
	general := middleware.NewRateLimiter(middleware.Policy{
		Name:   "general",
		Window: cfg.RateGeneral.Window,
		Limit:  cfg.RateGeneral.Limit,
	}, store)
	authPolicy := middleware.NewRateLimiter(middleware.Policy{
		Name:   "auth",
		Window: cfg.RateAuth.Window,
		Limit:  cfg.RateAuth.Limit,
	}, store)
	apiPolicy := middleware.NewRateLimiter(middleware.Policy{
		Name:   "api",
		Window: cfg.RateAPI.Window,
		Limit:  cfg.RateAPI.Limit,
	}, store)
	r.Use(general.Handler())

	// 8) CORS posture (safe defaults: allow all if none configured)
	corsHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization"}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowHeaders:     corsHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowHeaders:     corsHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	// 9) Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS: cfg.Security.EnableHSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound,
			"Route "+c.Request.Method+" "+c.Request.URL.Path+" not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "Method not allowed")
	})

	// Dependency injection: services ← db
	syncSvc := &services.SyncService{DB: db, Log: log.With().Str("component", "sync").Logger()}
	userSvc := &services.UserService{DB: db}
	h := handlers.New(syncSvc, userSvc, db, verifier)

	// Liveness and readiness probes (exempt from rate limiting)
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)

	// Webhook sink: raw-body route under the heavy-API policy. The handler
	// applies its own body cap over the canonical bytes.
	webhooks := r.Group("/api/webhooks", apiPolicy.Handler())
	{
		webhooks.POST("/clerk", h.ClerkWebhook)
	}

	// Profile API: auth-sensitive policy, tight body cap, credential gate.
	users := r.Group("/api/users", authPolicy.Handler(), limitBody(maxProfileBody), requireAuth(tokens))
	{
		users.GET("/me", h.GetMe)
		users.PATCH("/me", h.UpdateMe)
	}

	// Swagger UI (non-production convenience)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
}

// requireAuth wraps auth.RequireAuth, failing closed when no verifier is
// configured. A missing verification key is an operator fault; surfacing it
// as 401 would send clients chasing their own credentials.
func requireAuth(tokens auth.TokenVerifier) gin.HandlerFunc {
	if tokens == nil {
		return func(c *gin.Context) {
			handlers.Fail(c, http.StatusInternalServerError, handlers.ErrCodeInternal,
				"Authentication is not configured")
		}
	}
	return auth.RequireAuth(tokens)
}

// limitBody returns a Gin middleware that caps the request body size using
// http.MaxBytesReader. Requests exceeding the cap cause downstream body reads
// to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
