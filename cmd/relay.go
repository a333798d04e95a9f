package cmd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/qrave1/TeleVisit/internal/application/config"
	"github.com/qrave1/TeleVisit/internal/application/constant"
	"github.com/qrave1/TeleVisit/internal/application/logger"
	"github.com/qrave1/TeleVisit/internal/application/metric"
	"github.com/qrave1/TeleVisit/internal/domain/repository"
	"github.com/qrave1/TeleVisit/internal/infra/adapters/memory"
	"github.com/qrave1/TeleVisit/internal/infra/adapters/postgres"
	pgrepo "github.com/qrave1/TeleVisit/internal/infra/adapters/postgres/repository"
	"github.com/qrave1/TeleVisit/internal/infra/adapters/redis"
	"github.com/qrave1/TeleVisit/internal/infra/adapters/storage"
	"github.com/qrave1/TeleVisit/internal/infra/ports/http/handlers"
	"github.com/qrave1/TeleVisit/internal/infra/ports/http/server"
	"github.com/qrave1/TeleVisit/internal/usecase"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run the signaling relay with auth, ICE configuration and file sharing endpoints",
	Run: func(cmd *cobra.Command, args []string) {
		runRelay(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(relayCmd)
}

func runRelay(parent context.Context) {
	if parent == nil {
		parent = context.Background()
	}

	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.New()
	if err != nil {
		logger.Setup(false)
		slog.Error("parse config", slog.Any(constant.Error, err))
		os.Exit(1)
	}

	logger.Setup(cfg.Debug)

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	var (
		userRepo  repository.UserRepository
		auditRepo repository.AuditRepository
	)

	switch cfg.Storage {
	case config.StoragePostgres:
		dbConn, err := postgres.NewPostgres(ctx, cfg.Postgres.DSN())
		if err != nil {
			slog.Error("connect to postgres", slog.Any(constant.Error, err))
			os.Exit(1)
		}
		closers = append(closers, dbConn)

		userRepo = pgrepo.NewUserRepo(dbConn)
		auditRepo = pgrepo.NewAuditRepo(dbConn)
	default:
		slog.Warn("users and audit are kept in memory")

		userRepo = memory.NewUserRepository()
		auditRepo = memory.NewAuditRepository()
	}

	presenceRepo := memory.NewPresenceRepository()

	if cfg.Redis.URL != "" {
		redisClient, err := redis.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			slog.Error("connect to redis", slog.Any(constant.Error, err))
			os.Exit(1)
		}
		closers = append(closers, redisClient)

		presenceRepo = redis.NewPresenceRepository(redisClient, cfg.Redis.TTL)
	}

	fileStore, err := storage.NewLocalStore(cfg.Files.Dir, cfg.Files.MaxSize)
	if err != nil {
		slog.Error("open file store", slog.Any(constant.Error, err))
		os.Exit(1)
	}

	roomConnRepo := memory.NewRoomConnectionRepository()

	userUsecase := usecase.NewUserUsecase([]byte(cfg.JWTSecret), userRepo)
	relayUsecase := usecase.NewRelayUsecase(roomConnRepo, presenceRepo)
	fileUsecase := usecase.NewFileUsecase(fileStore, storage.NewSigner(cfg.Files.Secret, cfg.Files.TTL), auditRepo)

	echoSrv := server.New(
		userUsecase,
		handlers.NewAuthHandler(cfg, userUsecase),
		handlers.NewIceHandler(cfg),
		handlers.NewWebSocketHandler(cfg, relayUsecase),
		handlers.NewFileHandler(cfg, fileUsecase),
		handlers.NewRoomHandler(relayUsecase),
	)

	metricsSrv := metric.NewServer()

	echoSrvCh := make(chan error, 1)
	metricsSrvCh := make(chan error, 1)

	go func() {
		echoSrvCh <- echoSrv.Start(":" + cfg.Port)
	}()

	go func() {
		metricsSrvCh <- metricsSrv.Start(":" + cfg.MetricPort)
	}()

	slog.Info("relay started", slog.String("port", cfg.Port), slog.String("storage", cfg.Storage))

	select {
	case <-ctx.Done():
		slog.Info("Shutting down servers due to context cancel")
	case err := <-echoSrvCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server failed", slog.Any(constant.Error, err))
		}
	case err := <-metricsSrvCh:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", slog.Any(constant.Error, err))
		}
	}

	// Graceful shutdown
	timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer timeoutCancel()

	if err := echoSrv.Shutdown(timeoutCtx); err != nil {
		slog.Error("Failed to gracefully shutdown HTTP server", slog.Any(constant.Error, err))
	}

	if err := metricsSrv.Shutdown(timeoutCtx); err != nil {
		slog.Error("Failed to gracefully shutdown metric server", slog.Any(constant.Error, err))
	}
}
