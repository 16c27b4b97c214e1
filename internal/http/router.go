// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and rate limiting.
//
// Three surfaces share one engine:
//   - public embed endpoints, callable from any origin
//   - /bot-info, callable only from the dashboard origin
//   - the authenticated dashboard API under cfg.APIBasePath
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/go-bot-builder/internal/auth"
	"github.com/tbourn/go-bot-builder/internal/config"
	"github.com/tbourn/go-bot-builder/internal/embed"
	"github.com/tbourn/go-bot-builder/internal/http/handlers"
	"github.com/tbourn/go-bot-builder/internal/http/middleware"
	"github.com/tbourn/go-bot-builder/internal/llm"
	"github.com/tbourn/go-bot-builder/internal/services"
	"github.com/tbourn/go-bot-builder/internal/widget"
)

// Deps are the external resources the routes need. Redis is optional; when
// nil the chat limit is enforced per process.
type Deps struct {
	DB        *gorm.DB
	Completer llm.Completer
	Redis     *redis.Client
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Security headers
//
// CORS, idempotency and rate limiting are applied per route group.
func RegisterRoutes(r *gin.Engine, d Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(middleware.NewRedactor(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
		MaskParams:  []string{"token"},
	})))
	r.Use(middleware.Recovery())
	r.Use(limitBody(1 << 20))
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	security := middleware.SecurityOptions{
		EnableHSTS:                cfg.Security.EnableHSTS,
		HSTSMaxAge:                cfg.Security.HSTSMaxAge,
		EnablePolicy:              true,
		CrossOriginResourcePolicy: "same-origin",
	}
	r.Use(middleware.SecurityHeaders(security))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/completer
	var verifier *auth.Verifier
	if cfg.Auth.JWTSecret != "" {
		verifier = auth.NewVerifier(cfg.Auth.JWTSecret)
	}
	resolver := &widget.Resolver{DB: d.DB, CDNBase: cfg.Widget.CDNBase}
	h := handlers.New(handlers.Deps{
		Chat: &services.ChatService{
			DB:             d.DB,
			Completer:      d.Completer,
			Tokens:         verifier,
			DefaultModel:   cfg.OpenAI.DefaultModel,
			MaxPromptRunes: 4000,
			IdempotencyTTL: cfg.IdempotencyTTL,
			TitleLocale:    language.English,
			TitleMaxLen:    services.DefaultTitleMaxLen,
		},
		Feedback:      &services.FeedbackService{DB: d.DB},
		Bots:          &services.BotService{DB: d.DB, Completer: d.Completer, DefaultModel: cfg.OpenAI.DefaultModel},
		Widgets:       &services.WidgetService{DB: d.DB, Resolver: resolver},
		Resolver:      resolver,
		Conversations: &services.ConversationService{DB: d.DB},
		Script: embed.Script(embed.ScriptOptions{
			WebURL:       cfg.Widget.WebURL,
			APIURL:       cfg.Widget.APIURL,
			FetchTimeout: cfg.Widget.FetchTimeout,
		}),
	})

	// Public embed surface: any origin, resources loadable cross-origin.
	security.CrossOriginResourcePolicy = "cross-origin"
	public := r.Group("", publicCORS(), middleware.SecurityHeaders(security))
	{
		public.GET("/widget-config/:id", h.GetWidgetConfig)
		public.GET("/widget.js", gzip.Gzip(gzip.DefaultCompression), h.WidgetScript)
		public.POST("/chat",
			middleware.IdempotencyValidator(middleware.IdempotencyOptions{MaxLen: 200}),
			middleware.RateLimit("chat", chatLimiter(d, cfg), middleware.KeyByClientIP()),
			h.Chat,
		)
		public.POST("/chat/messages/:id/feedback", h.LeaveFeedback)

		public.OPTIONS("/widget-config/:id", preflight)
		public.OPTIONS("/chat", preflight)
		public.OPTIONS("/chat/messages/:id/feedback", preflight)
	}

	// Bot card for the hosted chat page only.
	botInfoCORS := originCORS([]string{cfg.BotInfoOrigin})
	r.GET("/bot-info", botInfoCORS, h.BotInfo)
	r.OPTIONS("/bot-info", botInfoCORS, preflight)

	// Dashboard API
	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(
		originCORS(cfg.CORS.AllowedOrigins),
		middleware.RequireUser(middleware.AuthOptions{Verifier: verifier, DevHeader: cfg.Auth.DevHeader}),
		middleware.RateLimit("api", middleware.NewTokenBucket(cfg.RateRPS, cfg.RateBurst), middleware.KeyByUserOrIP()),
	)
	{
		// Bots
		api.POST("/bots", h.CreateBot)
		api.GET("/bots", h.ListBots)
		api.GET("/bots/:id", h.GetBot)

		// Prompt authoring
		api.GET("/bots/:id/steps", h.ListSteps)
		api.PUT("/bots/:id/steps/:step", h.SaveStep)
		api.POST("/bots/:id/steps/generate", h.GenerateSteps)
		api.GET("/bots/:id/prompt", h.PreviewPrompt)
		api.POST("/bots/:id/versions", h.PublishVersion)
		api.GET("/bots/:id/versions", h.ListVersions)

		// Suggested prompts
		api.POST("/bots/:id/suggested-prompts", h.AddSuggestedPrompt)
		api.GET("/bots/:id/suggested-prompts", h.ListSuggestedPrompts)

		// Conversations
		api.GET("/bots/:id/conversations", h.ListConversations)
		api.GET("/bots/:id/conversations/:cid/messages", h.ListMessages)

		// Widgets
		api.POST("/widgets", h.CreateWidget)
		api.PUT("/widgets/:id", h.UpdateWidget)
		api.GET("/widgets/:id/preview", h.PreviewWidget)

		// Settings
		api.PUT("/api-key", h.SetAPIKey)

		if cfg.APIBasePath != "/" {
			api.OPTIONS("/*path", preflight)
		}
	}
}

// preflight answers OPTIONS requests the CORS middleware did not terminate.
func preflight(c *gin.Context) { c.Status(http.StatusNoContent) }

// chatLimiter shares the per-minute chat budget across replicas through
// Redis when configured, and falls back to a local token bucket.
func chatLimiter(d Deps, cfg config.Config) middleware.Limiter {
	if d.Redis != nil {
		return middleware.NewRedisLimiter(d.Redis, cfg.ChatRatePerMinute)
	}
	return middleware.NewTokenBucket(cfg.RateRPS, cfg.RateBurst)
}

var (
	corsMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.DevUserHeader, middleware.HeaderIdempotencyKey}
	corsExpose  = []string{"X-Request-ID", "Content-Length", "ETag", "Retry-After", middleware.HeaderIdempotencyReplayed}
)

// publicCORS allows any origin without credentials.
func publicCORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     corsMethods,
		AllowHeaders:     corsHeaders,
		ExposeHeaders:    corsExpose,
		AllowCredentials: false, // must remain false with AllowAllOrigins
		MaxAge:           12 * time.Hour,
	})
}

// originCORS allows only origins. An empty list rejects every cross-origin
// request; same-origin requests (no Origin header) always pass.
func originCORS(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		return func(c *gin.Context) {
			if c.GetHeader("Origin") != "" {
				handlers.Fail(c, http.StatusForbidden, handlers.ErrCodeForbidden, "origin not allowed")
				return
			}
			c.Next()
		}
	}
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     corsMethods,
		AllowHeaders:     corsHeaders,
		ExposeHeaders:    corsExpose,
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
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
