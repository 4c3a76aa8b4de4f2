package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/joho/godotenv"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Ramsey-B/clover/config"
	castrepo "github.com/Ramsey-B/clover/internal/repositories/cast"
	feedrepo "github.com/Ramsey-B/clover/internal/repositories/feed"
	postrepo "github.com/Ramsey-B/clover/internal/repositories/post"
	relationshiprepo "github.com/Ramsey-B/clover/internal/repositories/relationship"
	stickerrepo "github.com/Ramsey-B/clover/internal/repositories/sticker"
	userrepo "github.com/Ramsey-B/clover/internal/repositories/user"

	"github.com/Ramsey-B/clover/internal/handlers"
	"github.com/Ramsey-B/clover/internal/server"
	"github.com/Ramsey-B/clover/pkg/graph"
	"github.com/Ramsey-B/clover/pkg/health"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/logging"
	"github.com/Ramsey-B/clover/pkg/poller"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/startup"
	"github.com/Ramsey-B/clover/pkg/storage"
	"github.com/Ramsey-B/clover/pkg/sweeper"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/tracing/exporters"
)

// version is stamped at build time.
var version = "dev"

// expiryStore adapts the content repositories to the sweeper.
type expiryStore struct {
	stickers *stickerrepo.Repository
	casts    *castrepo.Repository
}

func (s *expiryStore) ExpireStickers(ctx context.Context, olderThan time.Duration) (int, error) {
	return s.stickers.ExpireOlderThan(ctx, olderThan)
}

func (s *expiryStore) ExpireCasts(ctx context.Context) (int, error) {
	return s.casts.ExpireElapsed(ctx)
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, flush := logging.New(cfg.AppName, cfg.LogLevel, cfg.PrettyLogs)
	defer flush()

	fatal := func(err error, msg string) {
		logger.WithError(err).Error(msg)
		_ = flush()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var exporter sdktrace.SpanExporter = &exporters.ConsoleExporter{}
	if cfg.TracingEnabled {
		otlp, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
			Endpoint: cfg.TracingOTLPEndpoint,
			Protocol: cfg.TracingOTLPProtocol,
			Insecure: true,
			Timeout:  10 * time.Second,
		})
		if err != nil {
			fatal(err, "Failed to create trace exporter")
		}
		exporter = otlp
	}
	shutdownTracing := tracing.Init(cfg.AppName, exporter)

	graphClient, err := graph.NewClient(graph.Config{
		Host:     cfg.GraphDBHost,
		Port:     cfg.GraphDBPort,
		Username: cfg.GraphDBUser,
		Password: cfg.GraphDBPassword,
	}, logger)
	if err != nil {
		fatal(err, "Failed to create graph client")
	}

	err = startup.Retry(ctx, logger, cfg.StartupMaxAttempts, "graph database", func(ctx context.Context) error {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return graphClient.VerifyConnectivity(connectCtx)
	})
	if err != nil {
		fatal(err, "Graph database is unreachable")
	}

	var redisClient *redis.Client
	err = startup.Retry(ctx, logger, cfg.StartupMaxAttempts, "redis", func(ctx context.Context) error {
		var connErr error
		redisClient, connErr = redis.NewClient(redis.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, logger)
		return connErr
	})
	if err != nil {
		fatal(err, "Failed to connect to Redis")
	}

	locker := redis.NewLocker(redisClient, "clover:")
	invites := redis.NewInviteLinks(redisClient, cfg.InviteLinkTTL, cfg.InviteLinkMaxActive)

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        cfg.KafkaEventsTopic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
		Compression:  cfg.KafkaCompression,
	}, logger)

	var notifier *kafka.Notifier
	if cfg.KafkaNotifierEnabled {
		notifier, err = kafka.NewNotifier(kafka.NotifierConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaEventsTopic,
			GroupID: cfg.KafkaNotifierGroup,
		}, logger)
		if err != nil {
			fatal(err, "Failed to create notifier")
		}
		if err := notifier.Start(ctx); err != nil {
			fatal(err, "Failed to start notifier")
		}
	}

	blob, err := storage.NewMinioStore(storage.Config{
		Endpoint:  cfg.BlobEndpoint,
		AccessKey: cfg.BlobAccessKey,
		SecretKey: cfg.BlobSecretKey,
		Bucket:    cfg.BlobBucket,
		UseSSL:    cfg.BlobUseSSL,
		PublicURL: cfg.BlobPublicURL,
	})
	if err != nil {
		fatal(err, "Failed to create blob store")
	}

	feedRepo := feedrepo.NewRepository(graphClient, logger)
	relRepo := relationshiprepo.NewRepository(graphClient, logger)
	stickerRepo := stickerrepo.NewRepository(graphClient, logger)
	postRepo := postrepo.NewRepository(graphClient, logger)
	castRepo := castrepo.NewRepository(graphClient, logger)
	userRepo := userrepo.NewRepository(graphClient, logger)

	var sweep *sweeper.Sweeper
	if cfg.SweeperEnabled {
		sweep = sweeper.NewSweeper(&expiryStore{stickers: stickerRepo, casts: castRepo}, locker, sweeper.Config{
			StickerTTL:      cfg.StickerTTL,
			StickerInterval: cfg.StickerSweepEvery,
			CastInterval:    cfg.CastSweepEvery,
			LockTTL:         cfg.SweeperLockTTL,
		}, logger)
		if err := sweep.Start(ctx); err != nil {
			fatal(err, "Failed to start sweeper")
		}
	}

	feedPoller := poller.New(cfg.FeedPollAttempts, cfg.FeedPollInterval)

	checker := health.NewChecker(graphClient, redisClient, version)

	srv := server.New(&cfg, logger, checker,
		handlers.NewFeedHandler(feedRepo, feedPoller, logger),
		handlers.NewKnockHandler(relRepo, invites, producer, cfg.InviteLinkBaseURL, logger),
		handlers.NewRoommateHandler(relRepo, logger),
		handlers.NewMuteHandler(relRepo, logger),
		handlers.NewBlockHandler(relRepo, logger),
		handlers.NewStickerHandler(stickerRepo, blob, logger),
		handlers.NewPostHandler(postRepo, blob, logger),
		handlers.NewCastHandler(castRepo, producer, logger),
		handlers.NewUserHandler(userRepo, blob, logger),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()
	checker.SetReady(true)

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.WithError(err).Error("Server exited")
		}
	}

	checker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Failed to drain HTTP server")
	}
	if sweep != nil {
		if err := sweep.Stop(shutdownCtx); err != nil {
			logger.WithError(err).Error("Failed to stop sweeper")
		}
	}
	if notifier != nil {
		if err := notifier.Stop(); err != nil {
			logger.WithError(err).Error("Failed to stop notifier")
		}
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Error("Failed to close producer")
	}
	if err := redisClient.Close(); err != nil {
		logger.WithError(err).Error("Failed to close Redis")
	}
	if err := graphClient.Close(shutdownCtx); err != nil {
		logger.WithError(err).Error("Failed to close graph client")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.WithError(err).Error("Failed to flush traces")
	}

	logger.Info("Shutdown complete")
}
