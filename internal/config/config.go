package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env      string
	HTTPPort string

	DatabaseURL string
	RedisURL    string

	JWTIssuer   string
	JWTAudience string
	JWTSecret   string
	JWTTTL      time.Duration

	PasswordResetTTL     time.Duration
	EmailVerificationTTL time.Duration

	CookieDomain   string
	CookieSecure   bool
	CookieSameSite string

	CORSAllowedOrigins []string

	SensitiveOpLimit    int
	SensitiveOpWindow   time.Duration
	RateLimiterBackend  string
	APIRateLimitPerMin  int
	AuthRateLimitPerMin int

	FeedCacheTTL time.Duration

	AuthAbuseFreeAttempts int
	AuthAbuseBaseDelay    time.Duration
	AuthAbuseMaxDelay     time.Duration
	AuthAbuseResetWindow  time.Duration

	ReadinessProbeTimeout  time.Duration
	ServerStartGracePeriod time.Duration
	ShutdownTimeout        time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string
	MailFromName string
	AppBaseURL   string

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool

	BootstrapAdminEmail    string
	BootstrapAdminPassword string

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsExportInterval time.Duration
	OTELTraceSamplingRatio    float64
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELLogLevel              string
}

func Load() (*Config, error) {
	env := getEnv("APP_ENV", "development")

	cfg := &Config{
		Env:         env,
		HTTPPort:    getEnv("HTTP_PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		JWTIssuer:   getEnv("JWT_ISSUER", "campuslink"),
		JWTAudience: getEnv("JWT_AUDIENCE", "campuslink-api"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		CookieDomain:   os.Getenv("COOKIE_DOMAIN"),
		CookieSecure:   getEnvBool("COOKIE_SECURE", env == "production"),
		CookieSameSite: strings.ToLower(getEnv("COOKIE_SAMESITE", "strict")),

		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),

		SensitiveOpLimit:    getEnvInt("SENSITIVE_OP_LIMIT", 5),
		RateLimiterBackend:  strings.ToLower(getEnv("RATE_LIMITER_BACKEND", "local")),
		APIRateLimitPerMin:  getEnvInt("API_RATE_LIMIT_PER_MIN", 120),
		AuthRateLimitPerMin: getEnvInt("AUTH_RATE_LIMIT_PER_MIN", 30),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		MailFrom:     getEnv("MAIL_FROM", "noreply@campuslink.edu"),
		MailFromName: getEnv("MAIL_FROM_NAME", "CampusLink"),
		AppBaseURL:   getEnv("APP_BASE_URL", "http://localhost:3000"),

		MinIOEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinIOAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinIOSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinIOBucket:    getEnv("MINIO_BUCKET", "campuslink-avatars"),
		MinIOUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		BootstrapAdminEmail:    strings.TrimSpace(strings.ToLower(os.Getenv("BOOTSTRAP_ADMIN_EMAIL"))),
		BootstrapAdminPassword: os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),

		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "campuslink-server"),
		OTELEnvironment:          getEnv("OTEL_ENVIRONMENT", env),
		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure: getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELTraceSamplingRatio:   getEnvFloat("OTEL_TRACE_SAMPLING_RATIO", 1.0),
		OTELMetricsEnabled:       getEnvBool("OTEL_METRICS_ENABLED", true),
		OTELTracingEnabled:       getEnvBool("OTEL_TRACING_ENABLED", true),
		OTELLogsEnabled:          getEnvBool("OTEL_LOGS_ENABLED", true),
		OTELLogLevel:             strings.ToLower(getEnv("OTEL_LOG_LEVEL", "info")),
	}

	jwtTTL, err := time.ParseDuration(getEnv("JWT_TTL", "720h"))
	if err != nil {
		return nil, fmt.Errorf("parse JWT_TTL: %w", err)
	}
	cfg.JWTTTL = jwtTTL

	resetTTL, err := time.ParseDuration(getEnv("PASSWORD_RESET_TTL", "1h"))
	if err != nil {
		return nil, fmt.Errorf("parse PASSWORD_RESET_TTL: %w", err)
	}
	cfg.PasswordResetTTL = resetTTL

	verifyTTL, err := time.ParseDuration(getEnv("EMAIL_VERIFICATION_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("parse EMAIL_VERIFICATION_TTL: %w", err)
	}
	cfg.EmailVerificationTTL = verifyTTL

	opWindow, err := time.ParseDuration(getEnv("SENSITIVE_OP_WINDOW", "15m"))
	if err != nil {
		return nil, fmt.Errorf("parse SENSITIVE_OP_WINDOW: %w", err)
	}
	cfg.SensitiveOpWindow = opWindow

	for _, d := range []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"FEED_CACHE_TTL", "30s", &cfg.FeedCacheTTL},
		{"AUTH_ABUSE_BASE_DELAY", "2s", &cfg.AuthAbuseBaseDelay},
		{"AUTH_ABUSE_MAX_DELAY", "5m", &cfg.AuthAbuseMaxDelay},
		{"AUTH_ABUSE_RESET_WINDOW", "30m", &cfg.AuthAbuseResetWindow},
		{"READINESS_PROBE_TIMEOUT", "2s", &cfg.ReadinessProbeTimeout},
		{"SERVER_START_GRACE_PERIOD", "0s", &cfg.ServerStartGracePeriod},
		{"SHUTDOWN_TIMEOUT", "20s", &cfg.ShutdownTimeout},
	} {
		v, err := time.ParseDuration(getEnv(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}
	cfg.AuthAbuseFreeAttempts = getEnvInt("AUTH_ABUSE_FREE_ATTEMPTS", 5)

	metricsInterval, err := time.ParseDuration(getEnv("OTEL_METRICS_EXPORT_INTERVAL", "10s"))
	if err != nil {
		return nil, fmt.Errorf("parse OTEL_METRICS_EXPORT_INTERVAL: %w", err)
	}
	cfg.OTELMetricsExportInterval = metricsInterval

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if len(c.JWTSecret) < 32 {
		errs = append(errs, "JWT_SECRET must be at least 32 chars")
	}
	if c.JWTTTL <= 0 || c.JWTTTL > (90*24*time.Hour) {
		errs = append(errs, "JWT_TTL must be between 1s and 90d")
	}
	if c.PasswordResetTTL <= 0 || c.PasswordResetTTL > (24*time.Hour) {
		errs = append(errs, "PASSWORD_RESET_TTL must be between 1s and 24h")
	}
	if c.EmailVerificationTTL <= 0 || c.EmailVerificationTTL > (7*24*time.Hour) {
		errs = append(errs, "EMAIL_VERIFICATION_TTL must be between 1s and 7d")
	}
	switch c.CookieSameSite {
	case "strict", "lax", "none":
	default:
		errs = append(errs, "COOKIE_SAMESITE must be one of strict, lax, none")
	}
	if c.SensitiveOpLimit <= 0 {
		errs = append(errs, "SENSITIVE_OP_LIMIT must be > 0")
	}
	if c.SensitiveOpWindow <= 0 {
		errs = append(errs, "SENSITIVE_OP_WINDOW must be > 0")
	}
	switch c.RateLimiterBackend {
	case "local":
	case "redis":
		if c.RedisURL == "" {
			errs = append(errs, "REDIS_URL is required when RATE_LIMITER_BACKEND=redis")
		}
	default:
		errs = append(errs, "RATE_LIMITER_BACKEND must be one of local, redis")
	}
	if c.APIRateLimitPerMin <= 0 {
		errs = append(errs, "API_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.AuthRateLimitPerMin <= 0 {
		errs = append(errs, "AUTH_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.Env == "production" && c.SMTPHost == "" {
		errs = append(errs, "SMTP_HOST is required in production")
	}
	if c.Env == "production" && c.MinIOEndpoint == "" {
		errs = append(errs, "MINIO_ENDPOINT is required in production")
	}
	if c.BootstrapAdminEmail != "" && c.BootstrapAdminPassword == "" {
		errs = append(errs, "BOOTSTRAP_ADMIN_PASSWORD is required when BOOTSTRAP_ADMIN_EMAIL is set")
	}
	if (c.OTELMetricsEnabled || c.OTELTracingEnabled || c.OTELLogsEnabled) && c.OTELExporterOTLPEndpoint == "" {
		errs = append(errs, "OTEL_EXPORTER_OTLP_ENDPOINT is required when OTel is enabled")
	}
	if c.OTELTraceSamplingRatio < 0 || c.OTELTraceSamplingRatio > 1 {
		errs = append(errs, "OTEL_TRACE_SAMPLING_RATIO must be between 0 and 1")
	}
	if c.OTELMetricsExportInterval <= 0 {
		errs = append(errs, "OTEL_METRICS_EXPORT_INTERVAL must be > 0")
	}
	if !isValidLogLevel(c.OTELLogLevel) {
		errs = append(errs, "OTEL_LOG_LEVEL must be one of debug, info, warn, error")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func isValidLogLevel(v string) bool {
	switch strings.ToLower(v) {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trim := strings.TrimSpace(p)
		if trim != "" {
			out = append(out, trim)
		}
	}
	return out
}
