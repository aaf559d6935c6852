package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/stream-wager-ledger/internal/ledger-service/directory"
	httpapi "github.com/radieske/stream-wager-ledger/internal/ledger-service/http"
	"github.com/radieske/stream-wager-ledger/internal/ledger-service/producer"
	"github.com/radieske/stream-wager-ledger/internal/ledger-service/repo"
	"github.com/radieske/stream-wager-ledger/internal/ledger-service/service"
	"github.com/radieske/stream-wager-ledger/internal/shared/cache"
	"github.com/radieske/stream-wager-ledger/internal/shared/config"
	"github.com/radieske/stream-wager-ledger/internal/shared/db"
	"github.com/radieske/stream-wager-ledger/internal/shared/kafka"
	"github.com/radieske/stream-wager-ledger/internal/shared/logger"
	"github.com/radieske/stream-wager-ledger/internal/shared/metrics"
)

func main() {
	// carrega config
	cfg := config.Load()

	// inicia logger
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	log.Info("starting service",
		zap.String("service", cfg.ServiceName),
		zap.String("env", cfg.Env),
		zap.String("store", cfg.StoreBackend),
	)

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bootCtx, cancelBoot := context.WithTimeout(ctx, 10*time.Second)
	defer cancelBoot()

	// Store de apostas e diretório de usuários
	var (
		pg    *sql.DB
		store repo.Store
		dir   directory.Resolver
	)
	switch cfg.StoreBackend {
	case "memory":
		store = repo.NewMemory()
		if cfg.UserDirectoryURL == "" {
			log.Fatal("memory store requires USER_DIRECTORY_URL")
		}
	default:
		pg, err = db.ConnectPostgres(bootCtx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer pg.Close()
		if err := db.Migrate(bootCtx, pg); err != nil {
			log.Fatal("failed to migrate schema", zap.Error(err))
		}
		log.Info("postgres connected")
		store = repo.NewPostgres(pg)
		dir = directory.NewPostgres(pg)
	}
	if cfg.UserDirectoryURL != "" {
		dir = directory.NewHTTPClient(cfg.UserDirectoryURL)
		log.Info("user directory via http", zap.String("url", cfg.UserDirectoryURL))
	}

	// Cache Redis de nomes (REDIS_ADDR vazio desliga)
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = cache.ConnectRedis(bootCtx, cfg.RedisAddr)
		if err != nil {
			log.Fatal("failed to connect redis", zap.Error(err))
		}
		defer rdb.Close()
		dir = directory.NewCached(rdb, dir, cfg.UserNameCacheTTL, log)
		log.Info("redis connected", zap.Duration("nameTTL", cfg.UserNameCacheTTL))
	}

	// Métricas das operações do ledger
	collectors := metrics.NewLedgerCollectors(prometheus.DefaultRegisterer)
	opts := []service.Option{service.WithObserver(service.MetricsObserver(collectors))}

	// Eventos de domínio (KAFKA_BROKERS vazio desliga)
	if cfg.KafkaBrokers != "" {
		placedW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWagerPlaced)
		defer placedW.Close()
		resolvedW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWagerResolved)
		defer resolvedW.Close()
		deletedW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWagerDeleted)
		defer deletedW.Close()

		opts = append(opts, service.WithPublisher(producer.NewKafkaPublisher(placedW, resolvedW, deletedW)))
		log.Info("kafka publisher ready",
			zap.String("placed", cfg.TopicWagerPlaced),
			zap.String("resolved", cfg.TopicWagerResolved),
			zap.String("deleted", cfg.TopicWagerDeleted),
		)
	}

	ledger := service.New(log, store, dir, opts...)

	// healthz: valida dependências críticas
	health := func(ctx context.Context) error {
		if pg != nil {
			if err := pg.PingContext(ctx); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
		}
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		return nil
	}
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, health, func(err error) {
		log.Error("metrics server failed", zap.Error(err))
	})
	log.Info("metrics/health server starting", zap.String("addr", metricsSrv.Addr))

	api := &httpapi.API{Log: log, Ledger: ledger, Timeout: cfg.RequestTimeout}
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("metrics shutdown", zap.Error(err))
	}
	log.Info("ledger-service stopped")
}
