// Package main implements jobmanager, a satellite consumer of the job
// fan-out topic. It is not on the hot mining path: poold's Work Director
// constructs and broadcasts jobs synchronously to subscribed sessions and
// only afterward publishes a best-effort copy here, which this service
// caches in Redis for external consumers (a job-history API, dashboards).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/INT-devs/mining-pool/internal/config"
	"github.com/INT-devs/mining-pool/internal/database/redis"
	"github.com/INT-devs/mining-pool/internal/messaging"
	"github.com/INT-devs/mining-pool/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := log.New(cfg.ServiceName, cfg.Version, cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting jobmanager", "version", cfg.Version)

	redisClient, err := redis.NewClient(&redis.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		logger.WithError(err).Error("failed to connect to Redis")
		os.Exit(1)
	}
	defer redisClient.Close()

	kafkaClient := messaging.NewKafkaClient(cfg.KafkaBrokers, logger.Logger)
	defer kafkaClient.Close()

	jm := NewJobManager(cfg, logger, redisClient, kafkaClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := jm.Start(ctx); err != nil {
			logger.WithError(err).Error("job manager failed")
			cancel()
		}
	}()

	<-sigChan
	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := jm.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown failed")
		os.Exit(1)
	}

	logger.Info("jobmanager stopped")
}

// JobManager archives the pool's job fan-out into Redis for external readers.
type JobManager struct {
	cfg         *config.Config
	logger      *log.Logger
	redis       *redis.Client
	kafkaClient *messaging.KafkaClient

	done chan struct{}
}

// NewJobManager creates a new job history archiver.
func NewJobManager(cfg *config.Config, logger *log.Logger, redisClient *redis.Client, kafkaClient *messaging.KafkaClient) *JobManager {
	return &JobManager{
		cfg:         cfg,
		logger:      logger.WithComponent("jobmanager"),
		redis:       redisClient,
		kafkaClient: kafkaClient,
		done:        make(chan struct{}),
	}
}

// Start consumes the job fan-out topic until ctx is cancelled or Shutdown is called.
func (jm *JobManager) Start(ctx context.Context) error {
	jm.logger.Info("job manager starting")

	reader := jm.kafkaClient.GetConsumer(messaging.TopicJobs, jm.cfg.KafkaGroupID+"-jobmanager")
	defer func() {
		if err := reader.Close(); err != nil {
			jm.logger.Error("failed to close Kafka reader", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-jm.done:
			return nil
		default:
		}

		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			jm.logger.WithError(err).Error("failed to read job event")
			continue
		}

		var job messaging.JobMessage
		if err := json.Unmarshal(msg.Value, &job); err != nil {
			jm.logger.WithError(err).Error("failed to unmarshal job event")
			continue
		}

		jm.archiveJob(ctx, &job)
	}
}

// Shutdown stops the consumer loop.
func (jm *JobManager) Shutdown(_ context.Context) error {
	jm.logger.Info("shutting down job manager")
	close(jm.done)
	return nil
}

func (jm *JobManager) archiveJob(ctx context.Context, job *messaging.JobMessage) {
	if err := jm.redis.SetCurrentJob(ctx, job); err != nil {
		jm.logger.WithError(err).Warn("failed to cache current job")
	}
	if err := jm.redis.SetJobTemplate(ctx, job.JobID, job, 10*time.Minute); err != nil {
		jm.logger.WithError(err).Warn("failed to cache job template")
	}

	jm.logger.LogJobDistribution(job.JobID, job.BlockHeight, job.CleanJobs, 0)
}
