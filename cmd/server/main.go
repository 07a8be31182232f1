package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"judge_zone/internal/api"
	"judge_zone/internal/app/service"
	"judge_zone/internal/app/worker"
	"judge_zone/internal/common/security"
	"judge_zone/internal/domain/repository"
	"judge_zone/internal/platform/config"
	"judge_zone/internal/platform/database"
	"judge_zone/internal/platform/logger"
	"judge_zone/internal/platform/metrics"
	"judge_zone/internal/platform/notify"
	"judge_zone/internal/platform/queue"
)

func main() {
	if err := run(); err != nil {
		os.Stderr.WriteString("judge_zone: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Initialize Database
	db, err := database.Connect(ctx, cfg.DBConnStr)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}
	log.Info("database ready", zap.String("host", cfg.DBHost), zap.String("name", cfg.DBName))

	// 3. Initialize Redis, shared by the judge queue and notifications
	rdb, err := queue.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer rdb.Close()
	judgeQueue := queue.NewRedisJudgeQueue(rdb, cfg.JudgeQueueName)
	notifier := notify.NewRedisNotifier(rdb)
	log.Info("redis connected", zap.String("addr", cfg.RedisAddr), zap.String("queue", cfg.JudgeQueueName))

	// 4. Initialize Repositories
	userRepo := repository.NewPgUserRepository(db)
	problemRepo := repository.NewPgProblemRepository(db)
	contestRepo := repository.NewPgContestRepository(db)
	submissionRepo := repository.NewPgSubmissionRepository(db)
	txRunner := repository.NewTxRunner(db)

	// 5. Initialize Services
	m := metrics.New()
	m.WatchQueue(judgeQueue)
	tokens := security.NewTokenIssuer(cfg.JWTKey, cfg.AccessTTL, cfg.RefreshTTL)
	authService := service.NewAuthService(userRepo, tokens, log)
	userService := service.NewUserService(userRepo, log)
	problemService := service.NewProblemService(problemRepo, log)
	contestService := service.NewContestService(contestRepo, problemRepo, txRunner, log)
	submissionService := service.NewSubmissionService(submissionRepo, problemRepo, contestRepo, judgeQueue, m, log, cfg.SubmissionListLimit)
	judgeService := service.NewJudgeService(submissionRepo, notifier, m, log)

	// 6. Initialize Router & HTTP Server
	router := api.NewRouter(api.Deps{
		JWTAuth:        tokens.JWTAuth(),
		Auth:           authService,
		Users:          userService,
		Problems:       problemService,
		Contests:       contestService,
		Submissions:    submissionService,
		Judge:          judgeService,
		Subscriber:     notifier,
		Metrics:        m,
		Log:            log,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		DataDir:        cfg.DataDir,
	})

	// No WriteTimeout: event streams are long lived. Other routes are
	// bounded by the router's timeout middleware.
	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server starting", zap.String("port", cfg.APIPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	// 7. Development judge worker
	if cfg.MockJudgeEnabled {
		judge := worker.NewMockJudge(judgeQueue, submissionRepo, problemRepo, judgeService, cfg.MockJudgeVerdict, log)
		g.Go(func() error {
			log.Info("mock judge started", zap.String("verdict", cfg.MockJudgeVerdict))
			return judge.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", zap.Error(err))
		return err
	}
	log.Info("server and worker stopped gracefully")
	return nil
}
