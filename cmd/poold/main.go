// Package main implements poold, the mining pool's single-process server:
// Stratum session handling, work distribution, share validation, difficulty
// retargeting, and payout scheduling all run in one address space behind the
// core.Engine actor.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/INT-devs/mining-pool/internal/accounting"
	"github.com/INT-devs/mining-pool/internal/bitcoin"
	"github.com/INT-devs/mining-pool/internal/config"
	"github.com/INT-devs/mining-pool/internal/core"
	"github.com/INT-devs/mining-pool/internal/ledger"
	"github.com/INT-devs/mining-pool/internal/messaging"
	"github.com/INT-devs/mining-pool/internal/stratum"
	"github.com/INT-devs/mining-pool/internal/vardiff"
	"github.com/INT-devs/mining-pool/internal/wallet"
	"github.com/INT-devs/mining-pool/internal/work"
	"github.com/INT-devs/mining-pool/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := log.New(cfg.ServiceName, cfg.Version, cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting poold",
		"version", cfg.Version,
		"listen_addr", cfg.ListenAddr,
		"listen_port", cfg.ListenPort,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := newPool(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Error("failed to initialize pool")
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := pool.Start(ctx); err != nil {
			logger.WithError(err).Error("pool server failed")
			cancel()
		}
	}()

	<-sigChan
	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := pool.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown failed")
		os.Exit(1)
	}

	logger.Info("poold stopped")
}

// Pool wires every subsystem named in the spec behind a single Stratum
// listener: the Session Authority (internal/stratum), the Work Director, the
// Share Ledger, the VarDiff Controller, and the Accounting Engine's payment
// scheduler.
type Pool struct {
	cfg    *config.Config
	logger *log.Logger

	engine   *core.Engine
	director *work.Director
	vardiff  *vardiff.Controller
	ledger   *ledger.Ledger
	chain    work.ChainNode
	wal      wallet.Wallet
	sched    *accounting.Scheduler
	kafka    *messaging.KafkaClient

	listener net.Listener
	sessions map[string]*stratum.Session
	mu       sync.RWMutex
	wg       sync.WaitGroup
}

func newPool(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Pool, error) {
	chainParams := &chaincfg.MainNetParams

	rpc, err := bitcoin.NewRPCClient(cfg.BitcoinRPCHost, cfg.BitcoinRPCPort, cfg.BitcoinRPCUser, cfg.BitcoinRPCPassword)
	if err != nil {
		return nil, fmt.Errorf("create bitcoin rpc client: %w", err)
	}
	zmq, err := bitcoin.NewZMQNotifier(cfg.BitcoinZMQAddr, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("create zmq notifier: %w", err)
	}

	workCfg := work.DefaultConfig()
	workCfg.PoolAddress = cfg.PoolAddress
	workCfg.ChainParams = chainParams
	chainAdapter := work.NewChainAdapter(rpc, zmq, cfg.PoolAddress, workCfg.ExtraNonce1Size)

	engine := core.New(ctx, core.DefaultConfig(), logger)
	director := work.New(workCfg, chainAdapter, logger)

	vdCfg := vardiff.DefaultConfig()
	vdCfg.TargetShareTime = cfg.VardiffTarget
	vdCfg.RetargetPeriod = cfg.VardiffRetarget
	vdCfg.MinDifficulty = cfg.MinDifficulty
	vdCfg.MaxDifficulty = cfg.MaxDifficulty
	vc := vardiff.New(vdCfg)

	ledgerCfg := ledger.DefaultConfig()
	ledgerCfg.ChainParams = chainParams
	led := ledger.New(ledgerCfg, engine, director, vc, chainAdapter, logger)

	var wal wallet.Wallet
	if cfg.WalletDryRun {
		wal = wallet.NewNoopWallet()
	} else {
		wal, err = wallet.NewRPCClient(cfg.WalletRPCHost, cfg.WalletRPCPort, cfg.WalletRPCUser, cfg.WalletRPCPassword, chainParams)
		if err != nil {
			return nil, fmt.Errorf("create wallet rpc client: %w", err)
		}
	}

	distributor := accounting.NewDistributor(engine, accounting.Method(cfg.PayoutMethod), cfg.PoolFeePercent, logger)
	led.SetDistributor(distributor)

	schedCfg := &accounting.SchedulerConfig{
		MinPayout:      cfg.MinPayout,
		PayoutInterval: cfg.PayoutInterval,
		SweepInterval:  cfg.SweepInterval,
	}
	sched := accounting.NewScheduler(schedCfg, engine, wal, logger)

	if _, err := director.Refresh(ctx, true); err != nil {
		logger.WithError(err).Warn("initial template fetch failed, will retry on the first tip notification")
	}

	// Kafka fan-out is for external consumers (dashboards, audit archival,
	// stats aggregation) only; the submit->validate->credit path above never
	// waits on it.
	kafkaClient := messaging.NewKafkaClient(cfg.KafkaBrokers, slog.Default())

	return &Pool{
		cfg:      cfg,
		logger:   logger.WithComponent("pool"),
		engine:   engine,
		director: director,
		vardiff:  vc,
		ledger:   led,
		chain:    chainAdapter,
		wal:      wal,
		sched:    sched,
		kafka:    kafkaClient,
		sessions: make(map[string]*stratum.Session),
	}, nil
}

// Start runs the Stratum listener and the background job/payout loops. Blocks
// until ctx is cancelled or the listener fails.
func (p *Pool) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", p.cfg.ListenAddr, p.cfg.ListenPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	p.listener = listener
	p.logger.Info("server listening", "address", addr)

	p.wg.Add(1)
	go p.jobBroadcastLoop(ctx)

	p.wg.Add(1)
	go p.payoutLoop(ctx)

	p.wg.Add(1)
	go p.tipWatchLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				p.logger.WithError(err).Error("failed to accept connection")
				continue
			}
		}

		p.wg.Add(1)
		go p.handleConnection(ctx, conn)
	}
}

// Shutdown closes the listener and every session, then waits for background
// loops to drain.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.logger.Info("shutting down pool")

	if p.listener != nil {
		if err := p.listener.Close(); err != nil {
			p.logger.WithError(err).Error("failed to close listener")
		}
	}

	p.mu.RLock()
	for _, session := range p.sessions {
		session.Close()
	}
	p.mu.RUnlock()

	p.engine.Stop()

	if err := p.kafka.Close(); err != nil {
		p.logger.WithError(err).Warn("failed to close kafka client")
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("all connections closed")
		return nil
	case <-ctx.Done():
		p.logger.Warn("shutdown timeout exceeded")
		return ctx.Err()
	}
}

func (p *Pool) handleConnection(ctx context.Context, conn net.Conn) {
	defer p.wg.Done()
	defer func() {
		if err := conn.Close(); err != nil {
			p.logger.Error("failed to close connection", "error", err)
		}
	}()

	sessionID := fmt.Sprintf("session_%d", time.Now().UnixNano())
	session := stratum.NewSession(sessionID, conn, p.logger, p.cfg.ReadTimeout, p.cfg.WriteTimeout)

	p.mu.Lock()
	p.sessions[sessionID] = session
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.sessions, sessionID)
		p.mu.Unlock()
	}()

	handler := &messageHandler{pool: p, logger: p.logger.WithComponent("handler")}
	if err := session.Start(ctx, handler); err != nil {
		if err != context.Canceled {
			p.logger.WithError(err).Error("session failed")
		}
	}
}

// jobBroadcastLoop relays newly-built jobs from the Work Director to every
// subscribed session as mining.notify.
func (p *Pool) jobBroadcastLoop(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.director.Broadcast():
			if !ok {
				return
			}
			p.broadcastJob(job)
		}
	}
}

func (p *Pool) broadcastJob(job *work.Job) {
	p.mu.RLock()
	for _, session := range p.sessions {
		if !session.IsAuthorized() {
			continue
		}
		s := session
		go p.sendJobToSession(s, job)
	}
	p.mu.RUnlock()

	go p.publishJobEvent(job)
}

// publishJobEvent fans a constructed job out to Kafka for external consumers
// (job history cache, dashboards). Best-effort: a publish failure never
// affects the hot mining.notify path above.
func (p *Pool) publishJobEvent(job *work.Job) {
	branch := make([]string, len(job.MerkleBranch))
	for i, h := range job.MerkleBranch {
		branch[i] = h.String()
	}

	msg := &messaging.JobMessage{
		JobID:        job.ID,
		PrevHash:     job.PrevHash,
		Coinb1:       job.Coinb1,
		Coinb2:       job.Coinb2,
		MerkleBranch: branch,
		Version:      job.Version,
		NBits:        job.NBits,
		NTime:        job.NTime,
		CleanJobs:    job.CleanJobs,
		BlockHeight:  job.Height,
		CreatedAt:    job.CreatedAt,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		p.logger.WithError(err).Warn("failed to marshal job fan-out event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.kafka.PublishJSON(ctx, messaging.TopicJobs, job.ID, data); err != nil {
		p.logger.WithError(err).Debug("job fan-out publish failed")
	}
}

// publishShareEvent fans out a share submission outcome for external audit
// and stats consumers. Never called from a path that blocks mining.submit.
func (p *Pool) publishShareEvent(shareID, jobID, minerAddr, workerName, status string, isBlockCandidate bool) {
	msg := &messaging.ShareValidationResult{
		ShareID:          shareID,
		JobID:            jobID,
		MinerAddress:     minerAddr,
		WorkerName:       workerName,
		Status:           status,
		IsBlockCandidate: isBlockCandidate,
		ProcessedAt:      time.Now(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.kafka.PublishJSON(ctx, messaging.TopicShareResults, shareID, data); err != nil {
		p.logger.WithError(err).Debug("share fan-out publish failed")
	}
}

// publishBlockEvent fans out a block submission outcome for external audit
// consumers (block history archive).
func (p *Pool) publishBlockEvent(blockHash string, height int64, minerAddr, workerName string, status string) {
	msg := &messaging.BlockSubmissionResult{
		BlockHash:      blockHash,
		BlockHeight:    height,
		MinerAddress:   minerAddr,
		WorkerName:     workerName,
		Status:         status,
		SubmissionTime: time.Now(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.kafka.PublishJSON(ctx, messaging.TopicBlockResults, blockHash, data); err != nil {
		p.logger.WithError(err).Debug("block fan-out publish failed")
	}
}

func (p *Pool) sendJobToSession(session *stratum.Session, job *work.Job) {
	branch := make([]string, len(job.MerkleBranch))
	for i, h := range job.MerkleBranch {
		branch[i] = h.String()
	}

	params := []interface{}{
		job.ID,
		job.PrevHash,
		job.Coinb1,
		job.Coinb2,
		branch,
		job.Version,
		job.NBits,
		job.NTime,
		job.CleanJobs,
	}

	if err := session.SendNotification("mining.notify", params); err != nil {
		p.logger.WithError(err).Error("failed to send job to session", "session_id", session.ID())
	}
}

// tipWatchLoop refreshes the Work Director whenever the chain node reports a
// new tip, so jobs rotate without waiting for the next mining.submit.
func (p *Pool) tipWatchLoop(ctx context.Context) {
	defer p.wg.Done()

	tips, err := p.chain.SubscribeTips(ctx)
	if err != nil {
		p.logger.WithError(err).Warn("tip subscription unavailable, relying on submit-triggered refresh only")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-tips:
			if !ok {
				return
			}
			if _, err := p.director.Refresh(ctx, true); err != nil {
				p.logger.WithError(err).Warn("template refresh after tip notification failed")
			}
		}
	}
}

// payoutLoop runs the Accounting Engine's payment sweep against a live view
// of miner balances.
func (p *Pool) payoutLoop(ctx context.Context) {
	defer p.wg.Done()
	if err := p.sched.Run(ctx, p.minerBalances); err != nil {
		p.logger.WithError(err).Error("payment scheduler stopped")
	}
}

func (p *Pool) minerBalances() []accounting.MinerBalance {
	engineBalances := p.engine.ListMinerBalances()
	out := make([]accounting.MinerBalance, 0, len(engineBalances))
	for _, b := range engineBalances {
		out = append(out, accounting.MinerBalance{
			MinerID:       b.MinerID,
			Address:       b.Address,
			UnpaidBalance: b.UnpaidBalance,
			LastPayoutAt:  b.LastPayoutAt,
		})
	}
	return out
}
