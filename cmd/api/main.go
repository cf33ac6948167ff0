package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/listergram/backend/internal/app/apiapp"
	"github.com/listergram/backend/internal/config"
	"github.com/listergram/backend/internal/infra/logger"
)

func main() {
	cfgPath := os.Getenv("APP_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Env, cfg.Log.Level)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := apiapp.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("create api app", zap.Error(err))
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Error("close api app", zap.Error(err))
		}
	}()

	if err := app.Run(ctx); err != nil {
		log.Error("api app stopped", zap.Error(err))
		return
	}
	log.Info("api app stopped")
}
