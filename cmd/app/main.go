package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/Marcoscjr/temporipro2-sub000/internal/adapters/cli"
	"github.com/Marcoscjr/temporipro2-sub000/internal/adapters/repl"
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

	// Interactive sessions keep stdout for the operator.
	logger := logging.MustNew(logging.Config{
		Level:      cfg.LogLevel,
		Format:     "console",
		OutputPath: "stderr",
		Service:    "quote-app",
	})
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
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
	}

	var interpreter ai.PaymentPlanInterpreter
	if cfg.OpenAIAPIKey != "" {
		interpreter = ai.NewAgent(cfg.OpenAIAPIKey)
	}

	svc := app.NewAppService(contracts, settings, interpreter, app.Options{
		Pricing:     cfg.Pricing(),
		CompanyCode: cfg.CompanyCode,
		OperatorID:  cfg.OperatorID,
		DraftTTL:    cfg.DraftTTL,
	}, logger)

	if len(os.Args) > 1 {
		if err := cli.Run(ctx, svc, os.Args[1:], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := repl.Run(ctx, svc, bufio.NewReader(os.Stdin), os.Stdout, app.CreateDraftRequest{}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
