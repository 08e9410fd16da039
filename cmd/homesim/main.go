// v2
// cmd/homesim/main.go
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"it.uniroma2.dicii/homesim/internal/app"
	"it.uniroma2.dicii/homesim/internal/config"
)

func main() {
	bootstrap := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		bootstrap.Warn("dotenv load failed", slog.Any("err", err))
	}

	cfg, err := config.Load()
	if err != nil {
		bootstrap.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	application, err := app.New(cfg, nil)
	if err != nil {
		bootstrap.Error("app init failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if cerr := application.Close(); cerr != nil {
			bootstrap.Error("app close failed", slog.Any("err", cerr))
		}
	}()

	logger := application.Logger()
	logger.Info("simulator boot",
		slog.String("listen_address", cfg.ListenAddress),
		slog.String("log_path", cfg.LogFilePath),
		slog.String("data_dir", cfg.DataDir),
		slog.String("properties_path", cfg.PropertiesPath),
		slog.String("kafka_brokers", strings.Join(cfg.KafkaBrokers, ",")),
		slog.String("mqtt_broker", cfg.MQTTBroker),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		logger.Error("simulator terminated", slog.Any("err", err))
		os.Exit(1)
	}

	logger.Info("simulator stopped")
}
