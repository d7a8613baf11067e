package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/rovshanmuradov/solana-keeper/internal/bot"
	"github.com/rovshanmuradov/solana-keeper/internal/config"
	"github.com/rovshanmuradov/solana-keeper/internal/logger"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logCfg := logger.DefaultConfig()
	logCfg.LogFile = cfg.LogFile
	logCfg.Development = cfg.DebugLogging

	appLogger, err := logger.New(logCfg)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	appLogger.Info("🚀 Starting Solana position keeper")

	runner, err := bot.NewRunner(cfg, appLogger)
	if err != nil {
		appLogger.Fatal("💥 Failed to assemble keeper", zap.Error(err))
	}

	err = runner.Run(context.Background())
	runner.Shutdown()
	if err != nil {
		appLogger.Error("💥 Keeper stopped with error", zap.Error(err))
		os.Exit(1)
	}
}
