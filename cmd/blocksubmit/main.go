// Package main implements blocksubmit, a satellite consumer of the block
// fan-out topic. Actual submission to Bitcoin Core happens synchronously
// inside poold's Share Ledger on the path that first detects a block; this
// service only archives the resulting outcomes into Postgres/InfluxDB for a
// block-history audit trail.
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
	logger.Info("starting blocksubmit", "version", cfg.Version)

	db, err := database.NewManager(database.ConfigFromPool(cfg))
	if err != nil {
		logger.WithError(err).Error("failed to connect to databases")
		os.Exit(1)
	}
	defer db.Close()

	kafkaClient := messaging.NewKafkaClient(cfg.KafkaBrokers, logger.Logger)
	defer kafkaClient.Close()

	bs := NewBlockArchiver(cfg, logger, db, kafkaClient)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := bs.Start(ctx); err != nil {
			logger.WithError(err).Error("block archiver failed")
			cancel()
		}
	}()

	<-sigChan
	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := bs.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown failed")
		os.Exit(1)
	}

	logger.Info("blocksubmit stopped")
}

// BlockArchiver persists round outcomes fanned out from the ledger when a
// share meets network difficulty and its block is submitted.
type BlockArchiver struct {
	cfg         *config.Config
	logger      *log.Logger
	db          *database.Manager
	kafkaClient *messaging.KafkaClient

	minerCache map[string]int64

	done chan struct{}
}

// NewBlockArchiver creates a new round outcome archiver.
func NewBlockArchiver(cfg *config.Config, logger *log.Logger, db *database.Manager, kafkaClient *messaging.KafkaClient) *BlockArchiver {
	return &BlockArchiver{
		cfg:         cfg,
		logger:      logger.WithComponent("blocksubmit"),
		db:          db,
		kafkaClient: kafkaClient,
		minerCache:  make(map[string]int64),
		done:        make(chan struct{}),
	}
}

// Start consumes the block-outcome fan-out topic until ctx is cancelled or
// Shutdown is called.
func (bs *BlockArchiver) Start(ctx context.Context) error {
	bs.logger.Info("block archiver starting")

	reader := bs.kafkaClient.GetConsumer(messaging.TopicBlockResults, bs.cfg.KafkaGroupID+"-blocksubmit")
	defer func() {
		if err := reader.Close(); err != nil {
			bs.logger.Error("failed to close Kafka reader", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-bs.done:
			return nil
		default:
		}

		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			bs.logger.WithError(err).Error("failed to read block event")
			continue
		}

		var result messaging.BlockSubmissionResult
		if err := json.Unmarshal(msg.Value, &result); err != nil {
			bs.logger.WithError(err).Error("failed to unmarshal block event")
			continue
		}

		if err := bs.archiveBlock(ctx, &result); err != nil {
			bs.logger.WithError(err).Error("failed to archive block", "block_hash", result.BlockHash)
		}
	}
}

// Shutdown stops the consumer loop.
func (bs *BlockArchiver) Shutdown(_ context.Context) error {
	bs.logger.Info("shutting down block archiver")
	close(bs.done)
	return nil
}

func (bs *BlockArchiver) archiveBlock(ctx context.Context, result *messaging.BlockSubmissionResult) error {
	bs.logger.LogBlockFound(result.BlockHash, result.BlockHeight, result.MinerAddress, result.WorkerName, 0)

	var minerID *int64
	if result.MinerAddress != "" {
		id, err := bs.resolveMiner(ctx, result.MinerAddress)
		if err != nil {
			return fmt.Errorf("resolve miner: %w", err)
		}
		minerID = &id
	}

	round := &postgres.Round{
		Height:  result.BlockHeight,
		Hash:    result.BlockHash,
		MinerID: minerID,
		Status:  result.Status,
		FoundAt: result.SubmissionTime,
	}

	return bs.db.RecordRound(ctx, round)
}

func (bs *BlockArchiver) resolveMiner(ctx context.Context, address string) (int64, error) {
	if id, ok := bs.minerCache[address]; ok {
		return id, nil
	}

	miner, err := bs.db.Miners.GetMinerByAddress(ctx, address)
	if err != nil {
		miner = &postgres.Miner{Address: address, Username: address, IsActive: true}
		if createErr := bs.db.Miners.CreateMiner(ctx, miner); createErr != nil {
			return 0, createErr
		}
	}

	bs.minerCache[address] = miner.ID
	return miner.ID, nil
}
