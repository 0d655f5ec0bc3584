package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"access-api/api"
	"access-api/config"
	"access-api/dispatch"
	"access-api/history"
	"access-api/notify"
	"access-api/response"
	"access-api/storage"
	"access-api/tender"
)

func main() {
	envFile := pflag.String("env-file", ".env", "dotenv file applied before reading the environment")
	listen := pflag.String("listen", "", "listen address (overrides LISTEN_ADDR)")
	pflag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *listen != "" {
		cfg.ListenAddr = *listen
	}
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		logger.Fatalf("storage: %v", err)
	}

	redisOpts, err := cfg.RedisOptions()
	if err != nil {
		logger.Fatalf("redis config: %v", err)
	}
	var rc *redis.Client
	if redisOpts != nil {
		rc = redis.NewClient(redisOpts)
		defer rc.Close()
	}

	var primary history.Store
	switch cfg.HistoryDriver {
	case config.HistoryDriverSQLite:
		db, err := history.OpenSQLite(ctx, cfg.HistorySQLitePath)
		if err != nil {
			logger.Fatalf("history: %v", err)
		}
		defer db.Close()
		primary = db
	default:
		primary = history.NewTableStore(store.Table(cfg.HistoryTable))
	}
	if rc != nil && cfg.HistoryCacheTTL > 0 {
		primary = history.NewCache(primary, rc, cfg.HistoryCacheTTL)
	}
	var legacy []history.Store
	if cfg.LegacyHistoryTable != "" {
		legacy = append(legacy, history.NewTableStore(store.Table(cfg.LegacyHistoryTable)))
	}
	chain := history.NewChain(logger, primary, legacy...)

	var sink notify.Notifier
	if cfg.IncidentQueue != "" {
		q, err := store.Queue(cfg.IncidentQueue)
		if err != nil {
			logger.Fatalf("incident queue: %v", err)
		}
		sink = notify.NewQueueNotifier(q)
	}

	opts := []dispatch.Option{
		dispatch.WithLogger(logger),
		dispatch.WithNotifier(notify.NewLogging(logger, sink)),
	}
	if rc != nil {
		opts = append(opts, dispatch.WithGuard(history.NewGuard(rc, cfg.InflightTTL)))
	}

	registry := dispatch.NewRegistry()
	tender.Register(registry, tender.NewService(tender.NewTableRepository(store.Table(cfg.TendersTable))))
	d := dispatch.New(registry, chain, response.NewBuilder(cfg.ResponseService()), opts...)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderContentEncoding},
	}))
	e.Use(echoprometheus.NewMiddleware("access_api"))

	apiOpts := []api.Option{api.WithMaxBodyBytes(cfg.MaxBodyBytes)}
	if rc != nil {
		apiOpts = append(apiOpts, api.WithHealthCheck(func(ctx context.Context) error {
			return rc.Ping(ctx).Err()
		}))
	}
	api.Register(e, d, logger, apiOpts...)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("shutdown: %v", err)
		}
	}()

	logger.WithFields(log.Fields{
		"addr":       cfg.Addr(),
		"service_id": cfg.Service.ID,
		"history":    cfg.HistoryDriver,
		"redis":      rc != nil,
	}).Info("access api starting")
	if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("server: %v", err)
	}
}
