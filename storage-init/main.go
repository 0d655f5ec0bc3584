package main

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"access-api/config"
	"access-api/storage"
)

func main() {
	envFile := pflag.String("env-file", ".env", "dotenv file applied before reading the environment")
	timeout := pflag.Duration("timeout", 2*time.Minute, "overall provisioning timeout")
	pflag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := cfg.NewLogger()
	logger.Info("storage init starting")

	store, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		logger.Fatalf("storage: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	tables := []string{cfg.TendersTable, cfg.LegacyHistoryTable}
	if cfg.HistoryDriver == config.HistoryDriverTables {
		tables = append(tables, cfg.HistoryTable)
	}
	if err := store.EnsureTables(ctx, tables...); err != nil {
		logger.Fatalf("create tables: %v", err)
	}
	if err := store.EnsureQueues(ctx, cfg.IncidentQueue); err != nil {
		logger.Fatalf("create queues: %v", err)
	}

	logger.WithFields(log.Fields{"tables": tables, "incident_queue": cfg.IncidentQueue}).Info("storage init complete")
}
