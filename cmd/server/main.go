package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	webAdapter "github.com/Marcoscjr/temporipro2-sub000/internal/adapters/web"
	"github.com/Marcoscjr/temporipro2-sub000/internal/ai"
	"github.com/Marcoscjr/temporipro2-sub000/internal/app"
	"github.com/Marcoscjr/temporipro2-sub000/internal/config"
	"github.com/Marcoscjr/temporipro2-sub000/internal/core"
	"github.com/Marcoscjr/temporipro2-sub000/internal/db"
	"github.com/Marcoscjr/temporipro2-sub000/internal/logging"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.MustNew(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "quote-server"})
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var contracts core.ContractService
	var settings core.SettingsService
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()
		contracts = core.NewContractService(pool)
		settings = core.NewSettingsService(pool)
	} else {
		logger.Warn("DATABASE_URL is not set, contracts will not be persisted")
	}

	var interpreter ai.PaymentPlanInterpreter
	if cfg.OpenAIAPIKey != "" {
		interpreter = ai.NewAgent(cfg.OpenAIAPIKey)
	} else {
		logger.Warn("OPENAI_API_KEY is not set, payment plan assistant disabled")
	}

	svc := app.NewAppService(contracts, settings, interpreter, app.Options{
		Pricing:     cfg.Pricing(),
		CompanyCode: cfg.CompanyCode,
		OperatorID:  cfg.OperatorID,
		DraftTTL:    cfg.DraftTTL,
	}, logger)
	svc.StartPurge(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           webAdapter.NewHandler(svc, cfg.AllowedOrigins, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
	}()

	logger.Info("server starting", zap.String("port", cfg.ServerPort))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server", zap.Error(err))
	}
	logger.Info("server stopped")
}
