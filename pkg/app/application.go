package app

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pgxn-tester/server/internal/metrics"
	"github.com/pgxn-tester/server/internal/middleware"
	"github.com/pgxn-tester/server/internal/providers"
	"github.com/pgxn-tester/server/internal/ratelimit"
	"github.com/pgxn-tester/server/internal/repository"
	"github.com/pgxn-tester/server/internal/services"
	"github.com/pgxn-tester/server/internal/tracing"
	"github.com/pgxn-tester/server/pkg/config"
)

type Application struct {
	Config *config.Config
	Engine *gin.Engine
	Logger *slog.Logger

	DB            *sql.DB
	Machines      repository.MachineRepository
	Distributions repository.DistributionRepository
	Results       repository.ResultRepository

	Intake services.IntakeService
	Queue  services.QueueService
	Stats  services.StatsService

	RateLimiter     ratelimit.Limiter
	ShutdownTracing func(context.Context) error
}

// ApplicationOption configures the Application
type ApplicationOption func(*Application) error

// WithRateLimiter sets a custom rate limiter (tests use this to bypass Redis)
func WithRateLimiter(lim ratelimit.Limiter) ApplicationOption {
	return func(app *Application) error {
		app.RateLimiter = lim
		return nil
	}
}

func NewApplication(ctx context.Context, cfg *config.Config, opts ...ApplicationOption) (*Application, error) {
	level := new(slog.LevelVar)
	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	logger := slog.New(handler).With("service", "pgxn-tester", "env", cfg.Env)
	slog.SetDefault(logger)

	db, err := repository.Open(ctx, cfg.DBPath, cfg.DBMaxConns)
	if err != nil {
		return nil, err
	}
	metrics.RegisterStoreCollector(db, logger)

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		Enabled:      cfg.TracingEnabled,
		ServiceName:  "pgxn-tester",
		OTLPEndpoint: cfg.TracingEndpoint,
		OTLPInsecure: cfg.TracingInsecure,
		SampleRatio:  cfg.TracingSampleRatio,
	}, logger)
	if err != nil {
		return nil, err
	}

	machines := repository.NewMachineRepository(db)
	dists := repository.NewDistributionRepository(db)
	results := repository.NewResultRepository(db)

	intake := services.NewIntakeService(machines, dists, results, logger, time.Now)
	queue := services.NewQueueService(results, logger)
	stats := services.NewStatsService(db, results)

	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware(),
		middleware.LoggerMiddleware(logger),
		middleware.CORSMiddleware(cfg.CORSOrigin),
		middleware.JSONPMiddleware(),
	)

	app := &Application{
		Config:          cfg,
		Engine:          engine,
		Logger:          logger,
		DB:              db,
		Machines:        machines,
		Distributions:   dists,
		Results:         results,
		Intake:          intake,
		Queue:           queue,
		Stats:           stats,
		ShutdownTracing: shutdownTracing,
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	// Rate limiting needs Redis; without an address the limiter stays nil
	// and the middleware fails open.
	if app.RateLimiter == nil && cfg.RedisAddr != "" {
		redisClient := providers.NewRedisProvider(cfg.RedisAddr, cfg.RedisPassword)
		app.RateLimiter = ratelimit.NewTokenBucketLimiter(redisClient)
	}

	return app, nil
}

func (a *Application) Close(ctx context.Context) error {
	if a.ShutdownTracing != nil {
		if err := a.ShutdownTracing(ctx); err != nil {
			a.Logger.Warn("tracing shutdown failed", "error", err)
		}
	}
	return a.DB.Close()
}
