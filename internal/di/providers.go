package di

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/campuslink/campuslink-server/internal/app"
	"github.com/campuslink/campuslink-server/internal/config"
	"github.com/campuslink/campuslink-server/internal/database"
	"github.com/campuslink/campuslink-server/internal/health"
	"github.com/campuslink/campuslink-server/internal/http/handler"
	"github.com/campuslink/campuslink-server/internal/http/middleware"
	"github.com/campuslink/campuslink-server/internal/http/router"
	"github.com/campuslink/campuslink-server/internal/observability"
	"github.com/campuslink/campuslink-server/internal/repository"
	"github.com/campuslink/campuslink-server/internal/security"
	"github.com/campuslink/campuslink-server/internal/service"
)

// Cooldowns double on each failure past the free budget.
const authAbuseMultiplier = 2.0

var ConfigSet = wire.NewSet(config.Load)

var ObservabilitySet = wire.NewSet(
	provideObservabilityRuntime,
	provideAppLogger,
)

var RuntimeInfraSet = wire.NewSet(
	provideRuntimeDB,
	provideRedisClient,
	provideReadinessProbeRunner,
)

var RepositorySet = wire.NewSet(
	repository.NewUserRepository,
	repository.NewCredentialRepository,
	repository.NewVerificationTokenRepository,
	repository.NewAnnouncementRepository,
	repository.NewComplaintRepository,
)

var SecuritySet = wire.NewSet(
	provideJWTManager,
	provideCookieManager,
)

var ServiceSet = wire.NewSet(
	provideTokenService,
	provideNotifier,
	provideStorage,
	provideFeedCache,
	provideAnnouncementService,
	provideAuthAbuseGuard,
	service.NewAuthService,
	service.NewUserService,
	service.NewComplaintService,
)

var HTTPSet = wire.NewSet(
	provideAuthHandler,
	handler.NewUserHandler,
	handler.NewAnnouncementHandler,
	handler.NewComplaintHandler,
	provideGeneralLimiter,
	provideSensitiveLimiter,
	provideRouterDependencies,
	router.NewRouter,
	provideHTTPServer,
)

var AppSet = wire.NewSet(app.New)

type MigrationRunner struct {
	cfg *config.Config
	db  *gorm.DB
}

func NewMigrationRunner(cfg *config.Config, db *gorm.DB) *MigrationRunner {
	return &MigrationRunner{cfg: cfg, db: db}
}

func (m *MigrationRunner) Run() error {
	if err := database.Migrate(m.db); err != nil {
		return err
	}
	if err := database.Seed(m.db, m.cfg.BootstrapAdminEmail, m.cfg.BootstrapAdminPassword); err != nil {
		return err
	}
	fmt.Println("migration complete")
	return nil
}

func provideObservabilityRuntime(cfg *config.Config) (*observability.Runtime, error) {
	bootstrapLogger := observability.NewBootstrapLogger(cfg)
	return observability.InitRuntime(context.Background(), cfg, bootstrapLogger)
}

func provideAppLogger(cfg *config.Config, runtime *observability.Runtime) *slog.Logger {
	return observability.InitLogger(cfg, runtime.LoggerProvider)
}

func provideOpenDB(cfg *config.Config) (*gorm.DB, error) {
	return database.Open(cfg)
}

// provideRuntimeDB opens the database and brings the schema and the bootstrap
// admin up to date before the server accepts traffic.
func provideRuntimeDB(cfg *config.Config) (*gorm.DB, error) {
	ctx := context.Background()

	start := time.Now()
	db, err := database.Open(cfg)
	if err != nil {
		observability.RecordDatabaseStartupEvent(ctx, "connect", "failure")
		return nil, err
	}
	observability.RecordDatabaseStartupEvent(ctx, "connect", "success")
	observability.RecordDatabaseStartupDuration(ctx, "connect", time.Since(start))

	start = time.Now()
	if err := database.Migrate(db); err != nil {
		observability.RecordDatabaseStartupEvent(ctx, "migrate", "failure")
		return nil, err
	}
	observability.RecordDatabaseStartupEvent(ctx, "migrate", "success")
	observability.RecordDatabaseStartupDuration(ctx, "migrate", time.Since(start))

	if err := database.Seed(db, cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword); err != nil {
		return nil, err
	}
	return db, nil
}

func provideRedisClient(cfg *config.Config, logger *slog.Logger) (redis.UniversalClient, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	observability.InstrumentRedisClient(client, logger)
	return client, nil
}

func provideJWTManager(cfg *config.Config) *security.JWTManager {
	return security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTSecret)
}

func provideCookieManager(cfg *config.Config) *security.CookieManager {
	return security.NewCookieManager(cfg.CookieDomain, cfg.CookieSecure, cfg.CookieSameSite)
}

func provideTokenService(cfg *config.Config, jwtMgr *security.JWTManager, tokenRepo repository.VerificationTokenRepository) *service.TokenService {
	return service.NewTokenService(jwtMgr, tokenRepo, cfg.JWTTTL, cfg.PasswordResetTTL, cfg.EmailVerificationTTL)
}

func provideNotifier(cfg *config.Config, logger *slog.Logger) (service.EmailNotifier, error) {
	if cfg.SMTPHost == "" {
		logger.Warn("SMTP_HOST not set, emails are logged instead of sent")
		return service.NewDevNotifier(logger), nil
	}
	return service.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom, cfg.MailFromName)
}

func provideStorage(cfg *config.Config, logger *slog.Logger) (service.StorageService, error) {
	if cfg.MinIOEndpoint == "" {
		logger.Warn("MINIO_ENDPOINT not set, avatars are stored in process memory")
		return service.NewDevStorage(cfg.AppBaseURL), nil
	}
	return service.NewMinIOStorage(cfg.MinIOEndpoint, cfg.MinIOAccessKey, cfg.MinIOSecretKey, cfg.MinIOBucket, cfg.MinIOUseSSL)
}

func provideFeedCache(cfg *config.Config, redisClient redis.UniversalClient) service.FeedCacheStore {
	if cfg.FeedCacheTTL <= 0 {
		return service.NewNoopFeedCacheStore()
	}
	if redisClient != nil {
		return service.NewRedisFeedCacheStore(redisClient, "")
	}
	return service.NewInMemoryFeedCacheStore()
}

func provideAnnouncementService(repo repository.AnnouncementRepository, cache service.FeedCacheStore, cfg *config.Config) *service.AnnouncementService {
	return service.NewCachedAnnouncementService(repo, cache, cfg.FeedCacheTTL)
}

func provideAuthAbuseGuard(cfg *config.Config, redisClient redis.UniversalClient) service.AuthAbuseGuard {
	policy := service.AuthAbusePolicy{
		FreeAttempts: cfg.AuthAbuseFreeAttempts,
		BaseDelay:    cfg.AuthAbuseBaseDelay,
		Multiplier:   authAbuseMultiplier,
		MaxDelay:     cfg.AuthAbuseMaxDelay,
		ResetWindow:  cfg.AuthAbuseResetWindow,
	}
	if redisClient != nil {
		return service.NewRedisAuthAbuseGuard(redisClient, "", policy)
	}
	return service.NewInMemoryAuthAbuseGuard(policy)
}

func provideAuthHandler(
	authSvc *service.AuthService,
	userSvc *service.UserService,
	cookieMgr *security.CookieManager,
	abuse service.AuthAbuseGuard,
	cfg *config.Config,
) *handler.AuthHandler {
	return handler.NewAuthHandler(authSvc, userSvc, cookieMgr, abuse, cfg.JWTTTL)
}

func provideGeneralLimiter(cfg *config.Config, redisClient redis.UniversalClient) *middleware.RateLimiter {
	if cfg.RateLimiterBackend == "redis" && redisClient != nil {
		redisLimiter := middleware.NewRedisFixedWindowLimiter(redisClient, "campuslink:rl:api")
		return middleware.NewDistributedRateLimiter(
			redisLimiter,
			cfg.APIRateLimitPerMin,
			time.Minute,
			middleware.FailOpen,
			"api",
		)
	}
	return middleware.NewRateLimiter(cfg.APIRateLimitPerMin, time.Minute)
}

// provideSensitiveLimiter backs the per-subject budgets on credential routes.
// It fails closed inside SensitiveOpLimit, so a Redis outage blocks those
// routes rather than lifting the limit.
func provideSensitiveLimiter(cfg *config.Config, redisClient redis.UniversalClient) middleware.Limiter {
	if cfg.RateLimiterBackend == "redis" && redisClient != nil {
		return middleware.NewRedisFixedWindowLimiter(redisClient, "campuslink:rl:sensitive")
	}
	return middleware.NewLocalSlidingWindowLimiter()
}

func provideRouterDependencies(
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	announcementHandler *handler.AnnouncementHandler,
	complaintHandler *handler.ComplaintHandler,
	tokenSvc *service.TokenService,
	users repository.UserRepository,
	generalLimiter *middleware.RateLimiter,
	sensitiveLimiter middleware.Limiter,
	readiness *health.ProbeRunner,
	cfg *config.Config,
) router.Dependencies {
	return router.Dependencies{
		AuthHandler:         authHandler,
		UserHandler:         userHandler,
		AnnouncementHandler: announcementHandler,
		ComplaintHandler:    complaintHandler,
		TokenService:        tokenSvc,
		Users:               users,
		CORSOrigins:         cfg.CORSAllowedOrigins,
		GeneralLimiter:      generalLimiter,
		SensitiveLimiter:    sensitiveLimiter,
		SensitiveOpLimit:    cfg.SensitiveOpLimit,
		SensitiveOpWindow:   cfg.SensitiveOpWindow,
		Readiness:           readiness,
		EnableOTelHTTP:      cfg.OTELMetricsEnabled || cfg.OTELTracingEnabled,
	}
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func provideReadinessProbeRunner(cfg *config.Config, db *gorm.DB, redisClient redis.UniversalClient) *health.ProbeRunner {
	checkers := make([]health.Checker, 0, 2)
	if c := health.NewDBChecker(db); c != nil {
		checkers = append(checkers, c)
	}
	if redisClient != nil {
		if c := health.NewRedisChecker(redisClient); c != nil {
			checkers = append(checkers, c)
		}
	}
	return health.NewProbeRunner(cfg.ReadinessProbeTimeout, cfg.ServerStartGracePeriod, checkers...)
}
