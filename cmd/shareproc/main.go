// Package main implements shareproc, a satellite consumer of the share
// fan-out topic. Share validation and crediting happen synchronously inside
// poold against the core Engine; this service only archives the resulting
// outcomes into Postgres/InfluxDB/Redis for dashboards and audit history.
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
	"github.com/INT-devs/mining-pool/internal/database"
	"github.com/INT-devs/mining-pool/internal/database/postgres"
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
	logger.Info("starting shareproc", "version", cfg.Version)

	db, err := database.NewManager(database.ConfigFromPool(cfg))
	if err != nil {
		logger.WithError(err).Error("failed to connect to databases")
		os.Exit(1)
	}
	defer db.Close()

	kafkaClient := messaging.NewKafkaClient(cfg.KafkaBrokers, logger.Logger)
	defer kafkaClient.Close()

	sp := NewShareProcessor(cfg, logger, db, kafkaClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := sp.Start(ctx); err != nil {
			logger.WithError(err).Error("share processor failed")
			cancel()
		}
	}()

	<-sigChan
	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := sp.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown failed")
		os.Exit(1)
	}

	logger.Info("shareproc stopped")
}

// ShareProcessor archives share outcomes fanned out from the hot path.
type ShareProcessor struct {
	cfg         *config.Config
	logger      *log.Logger
	db          *database.Manager
	kafkaClient *messaging.KafkaClient

	// minerCache/workerCache avoid a lookup round-trip for every share from a
	// miner already seen in this process's lifetime.
	minerCache  map[string]int64
	workerCache map[string]int64

	done chan struct{}
}

// NewShareProcessor creates a new share outcome archiver.
func NewShareProcessor(cfg *config.Config, logger *log.Logger, db *database.Manager, kafkaClient *messaging.KafkaClient) *ShareProcessor {
	return &ShareProcessor{
		cfg:         cfg,
		logger:      logger.WithComponent("shareproc"),
		db:          db,
		kafkaClient: kafkaClient,
		minerCache:  make(map[string]int64),
		workerCache: make(map[string]int64),
		done:        make(chan struct{}),
	}
}

// Start consumes the share-outcome fan-out topic until ctx is cancelled or
// Shutdown is called.
func (sp *ShareProcessor) Start(ctx context.Context) error {
	sp.logger.Info("share processor starting")

	reader := sp.kafkaClient.GetConsumer(messaging.TopicShareResults, sp.cfg.KafkaGroupID+"-shareproc")
	defer func() {
		if err := reader.Close(); err != nil {
			sp.logger.Error("failed to close Kafka reader", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-sp.done:
			return nil
		default:
		}

		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			sp.logger.WithError(err).Error("failed to read share event")
			continue
		}

		var result messaging.ShareValidationResult
		if err := json.Unmarshal(msg.Value, &result); err != nil {
			sp.logger.WithError(err).Error("failed to unmarshal share event")
			continue
		}

		if err := sp.archiveShare(ctx, &result); err != nil {
			sp.logger.WithError(err).Error("failed to archive share", "share_id", result.ShareID)
		}
	}
}

// Shutdown stops the consumer loop.
func (sp *ShareProcessor) Shutdown(_ context.Context) error {
	sp.logger.Info("shutting down share processor")
	close(sp.done)
	return nil
}

func (sp *ShareProcessor) archiveShare(ctx context.Context, result *messaging.ShareValidationResult) error {
	if result.MinerAddress == "" {
		return nil // nothing to attribute the share to
	}

	minerID, err := sp.resolveMiner(ctx, result.MinerAddress)
	if err != nil {
		return fmt.Errorf("resolve miner: %w", err)
	}
	workerID, err := sp.resolveWorker(ctx, minerID, result.WorkerName)
	if err != nil {
		return fmt.Errorf("resolve worker: %w", err)
	}

	share := &postgres.Share{
		MinerID:          minerID,
		WorkerID:         workerID,
		JobID:            result.JobID,
		Difficulty:       result.Difficulty,
		IsValid:          result.Status == "valid",
		IsBlockCandidate: result.IsBlockCandidate,
		SubmittedAt:      result.ProcessedAt,
	}

	return sp.db.RecordShare(ctx, share)
}

func (sp *ShareProcessor) resolveMiner(ctx context.Context, address string) (int64, error) {
	if id, ok := sp.minerCache[address]; ok {
		return id, nil
	}

	miner, err := sp.db.Miners.GetMinerByAddress(ctx, address)
	if err != nil {
		miner = &postgres.Miner{Address: address, Username: address, IsActive: true}
		if createErr := sp.db.Miners.CreateMiner(ctx, miner); createErr != nil {
			return 0, createErr
		}
	}

	sp.minerCache[address] = miner.ID
	return miner.ID, nil
}

func (sp *ShareProcessor) resolveWorker(ctx context.Context, minerID int64, name string) (int64, error) {
	if name == "" {
		name = "default"
	}
	cacheKey := fmt.Sprintf("%d:%s", minerID, name)
	if id, ok := sp.workerCache[cacheKey]; ok {
		return id, nil
	}

	worker, err := sp.db.Workers.GetWorkerByName(ctx, minerID, name)
	if err != nil {
		worker = &postgres.Worker{MinerID: minerID, Name: name, IsActive: true}
		if createErr := sp.db.Workers.CreateWorker(ctx, worker); createErr != nil {
			return 0, createErr
		}
	}

	sp.workerCache[cacheKey] = worker.ID
	return worker.ID, nil
}
