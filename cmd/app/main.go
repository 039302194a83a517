package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Okprime/MVP-Match-Assessment/config"
	"github.com/Okprime/MVP-Match-Assessment/handlers"
	"github.com/Okprime/MVP-Match-Assessment/repository"
	"github.com/Okprime/MVP-Match-Assessment/service"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfigOrPanic()

	logger, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	shutdownTracing, err := config.SetupTracing(ctx, cfg)
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	}

	db := config.InitDB(ctx, cfg)
	defer func() { _ = db.Close() }()

	if err := repository.Migrate(db, cfg.DatabaseName); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	repoImpl := repository.NewPostgresRepository(db)

	engine := service.NewDefaultEngine(repoImpl, logger.Named("engine"))
	auth := service.NewAuthService(repoImpl, cfg.JWTSecret)

	h := handlers.NewHandler(engine, auth, logger.Named("http"))

	srv := http.Server{
		Handler:      handlers.NewRouter(h),
		Addr:         ":" + cfg.ServerPort,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	go func() {
		logger.Info("server started", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown failed", zap.Error(err))
	}
	logger.Info("server stopped")
}
