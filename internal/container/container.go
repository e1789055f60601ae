package container

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	database "github.com/FACorreiaa/onelink-market/app/db"
	"github.com/FACorreiaa/onelink-market/app/encryption"
	"github.com/FACorreiaa/onelink-market/app/mailer"
	appMiddleware "github.com/FACorreiaa/onelink-market/app/middleware"
	"github.com/FACorreiaa/onelink-market/app/storage"
	"github.com/FACorreiaa/onelink-market/config"
	"github.com/FACorreiaa/onelink-market/internal/api/auth"
	"github.com/FACorreiaa/onelink-market/internal/api/authz"
	"github.com/FACorreiaa/onelink-market/internal/api/documents"
	"github.com/FACorreiaa/onelink-market/internal/api/freeze"
	"github.com/FACorreiaa/onelink-market/internal/api/health"
	"github.com/FACorreiaa/onelink-market/internal/api/onboarding"
	"github.com/FACorreiaa/onelink-market/internal/api/products"
	"github.com/FACorreiaa/onelink-market/internal/api/profiles"
	"github.com/FACorreiaa/onelink-market/internal/api/shops"
	"github.com/FACorreiaa/onelink-market/internal/api/verification"
	"github.com/FACorreiaa/onelink-market/internal/router"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	Logger *slog.Logger
	Pool   *pgxpool.Pool
	Redis  *redis.Client
	Freeze freeze.Source
	Router *router.Config
}

// NewContainer opens the pool and builds every repository, service and
// handler. metrics may be nil.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics http.Handler) (*Container, error) {
	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		return nil, err
	}

	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		return nil, err
	}

	tokens, err := auth.NewTokenManager(cfg.JWT)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create token manager: %w", err)
	}
	encryptor, err := encryption.New(ctx, cfg.Encryption, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}
	blobs, err := storage.New(ctx, cfg.Storage, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to open document storage: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Repositories.Redis.Addr,
		Password: cfg.Repositories.Redis.Password,
		DB:       cfg.Repositories.Redis.DB,
	})

	flags := freeze.NewEnvSource()
	mail := mailer.New(cfg.Email, logger)
	auth.SetupProviders(*cfg, logger)

	// Repositories
	authRepo := auth.NewPostgresAuthRepo(pool, logger)
	profileRepo := profiles.NewPostgresProfileRepo(pool, logger)
	verificationRepo := verification.NewPostgresVerificationRepo(pool, logger)
	onboardingRepo := onboarding.NewPostgresOnboardingRepo(pool, logger)
	documentRepo := documents.NewPostgresDocumentRepo(pool, logger)
	productRepo := products.NewPostgresProductRepo(pool, logger)
	shopRepo := shops.NewPostgresShopRepo(pool, logger)

	// Services
	authService := auth.NewAuthService(authRepo, profileRepo, tokens, mail, logger)
	profileService := profiles.NewProfileService(profileRepo, logger)
	verificationService := verification.NewVerificationService(verificationRepo, mail, flags, logger)
	onboardingService := onboarding.NewOnboardingService(onboardingRepo, profileRepo, documentRepo,
		encryptor, flags, cfg.Features.ExperimentalBrandPersist, logger)
	documentService := documents.NewDocumentService(documentRepo, profileRepo, blobs, flags, logger)
	productService := products.NewProductService(productRepo, logger)
	shopService := shops.NewShopService(shopRepo, productRepo, logger)

	limiter := appMiddleware.NewRateLimiter(rdb, appMiddleware.RateLimitConfig{
		Limit:    appMiddleware.PerMinute(cfg.RateLimit.AuthPerMinute, cfg.RateLimit.AuthBurst),
		KeyFunc:  appMiddleware.KeyByIPAndPath,
		FailOpen: cfg.RateLimit.FailOpen,
	}, logger)

	routes := &router.Config{
		Logger:      logger,
		CorsOrigins: cfg.Server.CorsOrigins,
		Timeout:     cfg.Server.Timeout,
		PagesDir:    cfg.Storage.PagesDir,

		AuthHandler:         auth.NewAuthHandler(authService, cfg.JWT, tokens.TTL(), logger),
		VerificationHandler: verification.NewVerificationHandler(verificationService, logger),
		OnboardingHandler:   onboarding.NewOnboardingHandler(onboardingService, logger),
		DocumentHandler:     documents.NewDocumentHandler(documentService, logger),
		ProfileHandler:      profiles.NewProfileHandler(profileService, logger),
		ProductHandler:      products.NewProductHandler(productService, logger),
		ShopHandler:         shops.NewShopHandler(shopService, logger),
		HealthHandler:       health.NewHealthHandler(flags, cfg.Mode, logger),

		Guard:         authz.NewGuard(profileRepo, logger),
		Freeze:        flags,
		Authenticate:  auth.Authenticate(logger, tokens, cfg.JWT.CookieName),
		Identify:      auth.Identify(logger, tokens, cfg.JWT.CookieName),
		AuthRateLimit: limiter.Handler,

		MetricsHandler: metrics,
	}

	return &Container{
		Config: cfg,
		Logger: logger,
		Pool:   pool,
		Redis:  rdb,
		Freeze: flags,
		Router: routes,
	}, nil
}

// Close releases all resources held by the container
func (c *Container) Close() {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Warn("Failed to close redis client", slog.Any("error", err))
		}
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// WaitForDB waits for the database to be ready
func (c *Container) WaitForDB(ctx context.Context) bool {
	return database.WaitForDB(ctx, c.Pool, c.Logger)
}
