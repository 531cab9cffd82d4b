package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"wallet-quest-ledger/config"
	"wallet-quest-ledger/handlers"
	"wallet-quest-ledger/metrics"
	"wallet-quest-ledger/middleware"
	"wallet-quest-ledger/services"
	"wallet-quest-ledger/storage"
	"wallet-quest-ledger/utils"
	"wallet-quest-ledger/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.StorageDriver {
	case config.DriverMongo:
		return storage.OpenMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case config.DriverMemory:
		return storage.NewMemoryStore(), nil
	default:
		return storage.OpenPostgres(cfg.DatabaseURL)
	}
}

func main() {
	cfg, dotenv, err := config.Load()
	if err != nil {
		log.Fatalf("❌ invalid configuration: %v", err)
	}

	logger, err := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("❌ failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	if !dotenv {
		logger.Info("⚠️  No .env file found, reading environment variables directly")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	openCtx, cancelOpen := context.WithTimeout(ctx, 30*time.Second)
	store, err := openStore(openCtx, cfg)
	cancelOpen()
	if err != nil {
		logger.Fatal("failed to open storage", zap.String("driver", cfg.StorageDriver), zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(registry)
	if err != nil {
		logger.Fatal("failed to register metrics", zap.Error(err))
	}

	catalog, err := services.LoadQuestCatalog(cfg.QuestCatalogPath)
	if err != nil {
		logger.Fatal("failed to load quest catalog", zap.Error(err))
	}

	sessions, err := services.NewSessionIssuer(cfg.JWTSecret)
	if err != nil {
		logger.Fatal("failed to create session issuer", zap.Error(err))
	}

	var (
		balance services.BalanceOracle
		assets  services.RewardAssetOracle
	)
	if cfg.OracleURL != "" {
		oracle := services.NewOracleClient(cfg.OracleURL, cfg.OracleToken, utils.NewHTTPClient(cfg.OracleTimeout), logger)
		balance, assets = oracle, oracle
	} else {
		logger.Warn("⚠️  ORACLE_URL not set: balance quests answer 503 and reward boosts are not refreshed")
	}

	ledger := services.NewProgressionService(store, catalog, balance, assets, logger, m)
	authService := services.NewAuthService(store, ledger, sessions, logger, m, cfg.ChallengeTTL)
	leaderboard := services.NewLeaderboardService(store)

	jobs := []workers.Job{workers.ChallengeSweepJob(store, cfg.ChallengeSweepInterval, logger)}
	if cfg.R2.Enabled() {
		r2, err := utils.NewR2Client(ctx, cfg.R2)
		if err != nil {
			logger.Fatal("failed to initialize R2 client", zap.Error(err))
		}
		publisher := workers.NewLeaderboardPublisher(leaderboard, r2, logger)
		jobs = append(jobs, publisher.Job(cfg.LeaderboardSnapshotInterval))
	}
	sched, err := workers.StartScheduler(ctx, logger, jobs...)
	if err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}

	if assets != nil && cfg.BoostRefreshInterval > 0 {
		go workers.PollBoosts(ctx, workers.NewBoostRefreshWorker(store, ledger, logger), cfg.BoostRefreshInterval)
	}

	app := fiber.New(fiber.Config{
		BodyLimit:    64 * 1024,
		ErrorHandler: handlers.ErrorHandler,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,PUT,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	requireSession := middleware.SessionMiddleware(authService, logger)
	requireAdmin := middleware.AdminTokenMiddleware(cfg.AdminAPIToken, logger)

	handlers.SetupSystemRoutes(app, store, registry)
	handlers.SetupAuthRoutes(app, authService)
	handlers.SetupLeaderboardRoutes(app, leaderboard)
	handlers.SetupProgressionRoutes(app, ledger, requireSession, requireAdmin)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	logger.Info("✅ Server running",
		zap.String("port", cfg.Port),
		zap.String("storage", cfg.StorageDriver),
		zap.Strings("cors_origins", cfg.AllowedOrigins),
		zap.Int("quests", len(catalog.All())))

	<-ctx.Done()
	logger.Info("Shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	if err := sched.Shutdown(); err != nil {
		logger.Error("scheduler shutdown", zap.Error(err))
	}

	closeCtx, cancelClose := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelClose()
	if err := store.Close(closeCtx); err != nil {
		logger.Error("storage close", zap.Error(err))
	}
}
