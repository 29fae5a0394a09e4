package main

import (
	"context"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/shiftline/backend/api/handler"
	"github.com/shiftline/backend/internal/config"
	"github.com/shiftline/backend/internal/infrastructure/monitor"
	"github.com/shiftline/backend/internal/infrastructure/outbox"
	pgInfra "github.com/shiftline/backend/internal/infrastructure/postgres"
	redisInfra "github.com/shiftline/backend/internal/infrastructure/redis"
	"github.com/shiftline/backend/internal/middleware"
	"github.com/shiftline/backend/internal/router"
	"github.com/shiftline/backend/internal/services"
	"github.com/shiftline/backend/internal/services/lifecycle"
	"github.com/shiftline/backend/pkg/httpcontext"
	"github.com/shiftline/backend/pkg/logger"
	"github.com/shiftline/backend/repository/postgres"
	redisRepo "github.com/shiftline/backend/repository/redis"
	authUC "github.com/shiftline/backend/usecase/auth"
	budgetUC "github.com/shiftline/backend/usecase/budget"
	taskUC "github.com/shiftline/backend/usecase/task"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
		zapLogger.Fatal("migrations failed", zap.Error(err))
	}

	pool, err := pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("postgres connection failed", zap.Error(err))
	}
	manager.Register("postgres", func(ctx context.Context) error {
		pool.Close()
		return nil
	})

	redisClient, err := redisInfra.NewClient(cfg.Redis)
	if err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	manager.Register("redis", func(ctx context.Context) error {
		return redisClient.Close()
	})

	outboxStore, err := outbox.Open(cfg.Outbox.Path, "outbox")
	if err != nil {
		zapLogger.Fatal("failed to open notification outbox", zap.Error(err))
	}
	manager.Register("outbox", func(ctx context.Context) error {
		return outboxStore.Close()
	})

	mon := monitor.New(pool, redisClient, outboxStore, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	actorRepo := postgres.NewActorRepository(pool)
	taskRepo := postgres.NewTaskRepository(pool)
	budgetRepo := postgres.NewBudgetRepository(pool)
	sessionRepo := redisRepo.NewSessionRepository(redisClient, 24*time.Hour)

	ledger := budgetUC.New(budgetRepo, cfg.Points.DailyAllowance, zapLogger)
	machine := taskUC.NewMachine(taskUC.NewCalculator(cfg.Points.MultiplierMin, cfg.Points.MultiplierMax))
	notifier := services.NewOutboxNotifier(outboxStore)

	authUseCase := authUC.New(actorRepo, sessionRepo, zapLogger)
	taskUseCase := taskUC.New(taskRepo, actorRepo, ledger, machine, notifier, zapLogger)

	sweeper := services.NewSweeper(taskUseCase, zapLogger, services.SweeperConfig{
		Interval:  cfg.Sweeper.Interval,
		BatchSize: cfg.Sweeper.BatchSize,
	})
	sweeper.Start()
	manager.Register("sweeper", func(ctx context.Context) error {
		sweeper.Stop(ctx)
		return nil
	})

	noticeProcessor := services.NewNoticeProcessor(
		outboxStore,
		services.NewLogSender(zapLogger),
		zapLogger,
		services.ProcessorConfig{
			Interval:   cfg.Outbox.DrainInterval,
			BatchSize:  50,
			MaxRetries: cfg.Outbox.MaxRetry,
		},
	)
	noticeProcessor.Start()
	manager.Register("notice_processor", func(ctx context.Context) error {
		noticeProcessor.Stop(ctx)
		return nil
	})

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Auth:   apiHandler.NewAuthHandler(authUseCase, ctxAdapter, zapLogger, time.Hour),
		Task:   apiHandler.NewTaskHandler(taskUseCase, ctxAdapter, zapLogger),
		Budget: apiHandler.NewBudgetHandler(taskUseCase, ctxAdapter, zapLogger),
		Health: apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	authMiddleware := middleware.JWTAuth(cfg.JWT.Secret, zapLogger)
	r := router.New(handlers, authMiddleware)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.Shutdown()
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
