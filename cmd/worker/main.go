package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"medisupply/internal/config"
	eventsdb "medisupply/internal/db/events"
	salesdb "medisupply/internal/db/sales"
	"medisupply/internal/events"
	"medisupply/internal/logger"
	"medisupply/internal/sales"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const probeCacheTTL = 24 * time.Hour

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("worker error: %v", err)
	}
}

func run(ctx context.Context) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slogger := logger.Setup(cfg.LogLevel)

	plans, processed, cleanupStores, err := buildStores(ctx, cfg, slogger)
	if err != nil {
		return err
	}
	defer cleanupStores()

	queue, err := buildQueue(ctx, cfg, slogger)
	if err != nil {
		return err
	}

	registry := events.NewRegistry()
	registry.Register("order_created", sales.NewOrderCreatedHandler(plans, processed, slogger))

	consumer := events.NewConsumer(queue, registry, events.ConsumerConfig{
		MaxMessages:  cfg.MaxMessages,
		WaitTime:     cfg.WaitTime,
		ErrorBackoff: cfg.ErrorBackoff,
	}, slogger)

	return consumer.Run(ctx)
}

// buildStores opens Postgres when DATABASE_URL is set and falls back to
// in-memory stores otherwise. The processed-event store is fronted by a
// Redis probe cache when REDIS_URL is configured.
func buildStores(ctx context.Context, cfg *config.Config, slogger *slog.Logger) (sales.PlanStore, eventsdb.EventStore, func(), error) {
	if cfg.DatabaseURL == "" {
		slogger.Warn("DATABASE_URL not set, using in-memory stores")
		plans := salesdb.NewMemoryStore()
		return plans, plans.Processed, func() {}, nil
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, nil, err
	}

	plans, err := salesdb.NewStoreWithSchema(ctx, db)
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	store, err := eventsdb.NewStoreWithSchema(ctx, db)
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}

	var processed eventsdb.EventStore = store
	cleanup := func() { db.Close() }

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			db.Close()
			return nil, nil, nil, err
		}
		processed = eventsdb.NewCachedStore(store, eventsdb.NewRedisProbe(client, probeCacheTTL), slogger)
		cleanup = func() {
			client.Close()
			db.Close()
		}
	}

	return plans, processed, cleanup, nil
}

// buildQueue connects to SQS when SQS_QUEUE_URL is set and falls back to
// an in-memory queue otherwise. AWS_ENDPOINT_URL redirects the client to
// a local broker such as LocalStack.
func buildQueue(ctx context.Context, cfg *config.Config, slogger *slog.Logger) (events.QueueClient, error) {
	if cfg.QueueURL == "" {
		slogger.Warn("SQS_QUEUE_URL not set, using in-memory queue")
		return events.NewMemoryQueue(), nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, err
	}

	client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.AWSEndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		}
	})

	return events.NewSQSQueue(client, cfg.QueueURL), nil
}
