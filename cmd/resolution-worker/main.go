package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/stream-wager-ledger/internal/ledger-service/directory"
	"github.com/radieske/stream-wager-ledger/internal/ledger-service/producer"
	"github.com/radieske/stream-wager-ledger/internal/ledger-service/repo"
	"github.com/radieske/stream-wager-ledger/internal/ledger-service/service"
	"github.com/radieske/stream-wager-ledger/internal/resolution-worker/consumer"
	"github.com/radieske/stream-wager-ledger/internal/shared/config"
	"github.com/radieske/stream-wager-ledger/internal/shared/db"
	"github.com/radieske/stream-wager-ledger/internal/shared/kafka"
	"github.com/radieske/stream-wager-ledger/internal/shared/logger"
	"github.com/radieske/stream-wager-ledger/internal/shared/metrics"
)

func main() {
	// roda por último, depois de todos os Close
	exitCode := 0
	defer func() {
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	}()

	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if cfg.StoreBackend == "memory" {
		log.Fatal("resolution-worker needs the postgres store")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bootCtx, cancelBoot := context.WithTimeout(ctx, 10*time.Second)
	defer cancelBoot()

	// Postgres: mesmo store do ledger-service; a trava de linha garante uma única resolução
	pg, err := db.ConnectPostgres(bootCtx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	// Kafka consumer (consumer group resolution-worker) + writer de wager.resolved e DLQ
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicResolutionRequests, "resolution-worker")
	defer reader.Close()

	resolvedW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWagerResolved)
	defer resolvedW.Close()

	var dlq kafka.MessageWriter
	if cfg.TopicResolutionDLQ != "" {
		dlqW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicResolutionDLQ)
		defer dlqW.Close()
		dlq = dlqW
	}

	collectors := metrics.NewLedgerCollectors(prometheus.DefaultRegisterer)
	ledger := service.New(log, repo.NewPostgres(pg), directory.NewPostgres(pg),
		service.WithPublisher(producer.NewKafkaPublisher(nil, resolvedW, nil)),
		service.WithObserver(service.MetricsObserver(collectors)),
	)

	// Métricas Prometheus do processamento
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "resolution_messages_consumed_total", Help: "mensagens consumidas"})
	resolved := prometheus.NewCounter(prometheus.CounterOpts{Name: "resolution_bets_resolved_total", Help: "apostas resolvidas"})
	deadBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "resolution_dead_letters_total", Help: "pedidos enviados à DLQ por tipo de erro"}, []string{"kind"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "resolution_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, resolved, deadBy, errorsBy)

	proc := &consumer.Processor{
		Log:          log,
		Reader:       reader,
		DLQ:          dlq,
		Ledger:       ledger,
		OnConsumed:   func() { consumed.Inc() },
		OnResolved:   func() { resolved.Inc() },
		OnDeadLetter: func(kind string) { deadBy.WithLabelValues(kind).Inc() },
		OnError:      func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		return pg.PingContext(ctx)
	}, func(err error) {
		log.Error("metrics server failed", zap.Error(err))
	})
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	log.Info("resolution-worker started",
		zap.String("consume", cfg.TopicResolutionRequests),
		zap.String("publish", cfg.TopicWagerResolved),
		zap.String("dlq", cfg.TopicResolutionDLQ),
	)
	// erro fora do cancelamento: a mensagem não confirmada volta na próxima subida
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("processor stopped with error", zap.Error(err))
		exitCode = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("resolution-worker stopped")
}
