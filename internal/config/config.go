// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, the database, authentication, the OpenAI
// upstream, widget embedding, rate limiting, and observability.
package config

import (
	"errors"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// DBConfig selects the database driver and its connection target.
type DBConfig struct {
	Driver string // DB_DRIVER: sqlite|postgres
	Path   string // DB_PATH: SQLite file (sqlite driver)
	DSN    string // DATABASE_URL: Postgres DSN (postgres driver)
}

// AuthConfig defines dashboard authentication and chat token verification.
type AuthConfig struct {
	JWTSecret string // JWT_SECRET: HS256 secret; empty enables the dev header fallback
	DevHeader bool   // AUTH_DEV_HEADER: accept X-User-ID when JWT_SECRET is empty
}

// OpenAIConfig defines the completion upstream.
type OpenAIConfig struct {
	BaseURL       string        // OPENAI_BASE_URL
	Timeout       time.Duration // OPENAI_TIMEOUT per completion attempt
	RetryAttempts int           // OPENAI_RETRY_ATTEMPTS (>= 1)
	DefaultModel  string        // OPENAI_DEFAULT_MODEL
}

// WidgetConfig defines how embeds and widget assets are served.
type WidgetConfig struct {
	WebURL       string        // WIDGET_WEB_URL: public origin hosting the chat iframe
	APIURL       string        // WIDGET_API_URL: public origin of this API, baked into widget.js
	CDNBase      string        // WIDGET_CDN_BASE: base for default widget images
	FetchTimeout time.Duration // WIDGET_FETCH_TIMEOUT: embed config fetch bound
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-bot-builder")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DB     DBConfig
	Auth   AuthConfig
	OpenAI OpenAIConfig
	Widget WidgetConfig

	// Rate limiting
	RateRPS           float64 // tokens per second (>= 0)
	RateBurst         int     // bucket size (>= 1)
	RedisURL          string  // optional; enables the shared per-minute chat limit
	ChatRatePerMinute int     // chat turns per client per minute when RedisURL is set

	// Web protection
	CORS          CORSConfig
	Security      SecurityConfig
	BotInfoOrigin string // the only origin allowed to call /bot-info

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DB: DBConfig{
			Driver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			Path:   getenv("DB_PATH", "botbuilder.db"),
			DSN:    getenv("DATABASE_URL", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getenv("JWT_SECRET", ""),
			DevHeader: getbool("AUTH_DEV_HEADER", false),
		},
		OpenAI: OpenAIConfig{
			BaseURL:       getenv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Timeout:       getdur("OPENAI_TIMEOUT", 30*time.Second),
			RetryAttempts: getint("OPENAI_RETRY_ATTEMPTS", 3),
			DefaultModel:  getenv("OPENAI_DEFAULT_MODEL", "gpt-3.5-turbo"),
		},
		Widget: WidgetConfig{
			WebURL:       strings.TrimRight(getenv("WIDGET_WEB_URL", "https://app.botbuilder.chat"), "/"),
			APIURL:       strings.TrimRight(getenv("WIDGET_API_URL", "https://api.botbuilder.chat"), "/"),
			CDNBase:      strings.TrimRight(getenv("WIDGET_CDN_BASE", "https://cdn.botbuilder.chat/widget"), "/"),
			FetchTimeout: getdur("WIDGET_FETCH_TIMEOUT", 10*time.Second),
		},

		// Rate limiting
		RateRPS:           getfloat("RATE_RPS", 5.0),
		RateBurst:         getint("RATE_BURST", 10),
		RedisURL:          getenv("REDIS_URL", ""),
		ChatRatePerMinute: getint("CHAT_RATE_PER_MINUTE", 30),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},
		BotInfoOrigin: strings.TrimRight(getenv("BOT_INFO_ORIGIN", "https://app.botbuilder.chat"), "/"),

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-bot-builder"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DB.Driver {
	case "sqlite":
		if strings.TrimSpace(cfg.DB.Path) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DB.DSN) == "" {
			return cfg, errors.New("DATABASE_URL must be set when DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	if cfg.OpenAI.Timeout <= 0 {
		return cfg, errors.New("OPENAI_TIMEOUT must be > 0")
	}
	if cfg.OpenAI.RetryAttempts < 1 {
		return cfg, errors.New("OPENAI_RETRY_ATTEMPTS must be >= 1")
	}
	if strings.TrimSpace(cfg.OpenAI.DefaultModel) == "" {
		return cfg, errors.New("OPENAI_DEFAULT_MODEL must not be empty")
	}
	if !isAbsURL(cfg.OpenAI.BaseURL) {
		return cfg, errors.New("OPENAI_BASE_URL must be an absolute http(s) URL")
	}
	if !isAbsURL(cfg.Widget.WebURL) {
		return cfg, errors.New("WIDGET_WEB_URL must be an absolute http(s) URL")
	}
	if !isAbsURL(cfg.Widget.APIURL) {
		return cfg, errors.New("WIDGET_API_URL must be an absolute http(s) URL")
	}
	if !isAbsURL(cfg.Widget.CDNBase) {
		return cfg, errors.New("WIDGET_CDN_BASE must be an absolute http(s) URL")
	}
	if cfg.Widget.FetchTimeout <= 0 {
		return cfg, errors.New("WIDGET_FETCH_TIMEOUT must be > 0")
	}
	for _, o := range cfg.CORS.AllowedOrigins {
		if !isAbsURL(o) {
			return cfg, errors.New("CORS_ALLOWED_ORIGINS entries must be absolute http(s) origins")
		}
	}
	if !isAbsURL(cfg.BotInfoOrigin) {
		return cfg, errors.New("BOT_INFO_ORIGIN must be an absolute http(s) URL")
	}
	if cfg.RedisURL != "" && cfg.ChatRatePerMinute < 1 {
		return cfg, errors.New("CHAT_RATE_PER_MINUTE must be >= 1")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func isAbsURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
