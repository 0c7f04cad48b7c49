package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/grycap/oscard/internal/api"
	"github.com/grycap/oscard/internal/builder"
	"github.com/grycap/oscard/internal/cluster"
	"github.com/grycap/oscard/internal/config"
	"github.com/grycap/oscard/internal/eventrouter"
	"github.com/grycap/oscard/internal/faas"
	"github.com/grycap/oscard/internal/filesystem"
	"github.com/grycap/oscard/internal/objectstore"
	"github.com/grycap/oscard/internal/orchestrator"
)

const lockTTL = 30 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	clusterClient, err := cluster.New(cluster.Config{
		Host: cfg.KubernetesServiceHost,
		Port: cfg.KubernetesServicePort,
	}, logger)
	if err != nil {
		logger.Fatal("failed to build cluster client", zap.Error(err))
	}

	builderClient := builder.New(clusterClient, builder.Config{
		WorkDir:           cfg.BuildWorkDir,
		Registry:          cfg.DockerRegistry,
		SupervisorVersion: cfg.SupervisorVersion,
		WatchdogVersion:   cfg.WatchdogVersion,
		PollInterval:      cfg.PollInterval,
	}, logger)

	objectstoreClient, err := objectstore.New(ctx, objectstore.Config{
		Endpoint:   cfg.MinioEndpoint,
		User:       cfg.MinioUser,
		Pass:       cfg.MinioPass,
		WebhookARN: cfg.WebhookARN,
	}, logger)
	if err != nil {
		logger.Fatal("failed to build object store client", zap.Error(err))
	}

	filesystemClient := filesystem.New(logger)
	faasClient := faas.New(cfg.OpenfaasEndpoint, logger)

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("invalid REDIS_URL", zap.Error(err))
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis ping failed, falling back to process-local locking only", zap.Error(err))
			redisClient = nil
		} else {
			logger.Info("connected to Redis lock store")
		}
	}
	locker := orchestrator.NewLocker(redisClient, lockTTL, logger)

	orch := orchestrator.New(
		clusterClient,
		builderClient,
		objectstoreClient,
		filesystemClient,
		faasClient,
		locker,
		orchestrator.Config{
			OnetriggerVersion: cfg.OnetriggerVersion,
			OpenfaasEndpoint:  cfg.OpenfaasEndpoint,
			InitTimeout:       30 * time.Minute,
		},
		logger,
	)

	events := eventrouter.New(orch, logger)
	handlers := api.NewHandlers(orch, events, logger)
	server := api.NewServer(handlers, logger)

	addr := ":" + cfg.APIPort
	logger.Info("starting oscard", zap.String("port", cfg.APIPort))

	if err := server.Run(addr); err != nil {
		logger.Fatal("server failed", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zapcore.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(zapLevel)
	return zapCfg.Build()
}
