// Package ledger implements the share ledger: validates submitted shares
// against a job, detects duplicates and block candidates, and drives round
// accounting and difficulty retargeting off the outcome.
package ledger

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/INT-devs/mining-pool/internal/bitcoin"
	"github.com/INT-devs/mining-pool/internal/core"
	"github.com/INT-devs/mining-pool/internal/vardiff"
	"github.com/INT-devs/mining-pool/internal/work"
	"github.com/INT-devs/mining-pool/pkg/errors"
	"github.com/INT-devs/mining-pool/pkg/log"
)

// RejectCode mirrors the Stratum error-code taxonomy used to answer a
// mining.submit that failed ledger validation.
type RejectCode int

const (
	RejectOther            RejectCode = 20
	RejectJobNotFound      RejectCode = 21
	RejectDuplicateShare   RejectCode = 22
	RejectLowDifficulty    RejectCode = 23
	RejectUnauthorizedWork RejectCode = 24
)

// RejectError carries the Stratum error code alongside the underlying reason.
type RejectError struct {
	Code    RejectCode
	Message string
}

func (e *RejectError) Error() string { return e.Message }

// Submission is a mining.submit translated into ledger terms.
type Submission struct {
	MinerID     int64
	WorkerID    int64
	JobID       string
	ExtraNonce1 string
	ExtraNonce2 string
	NTime       string
	Nonce       string
	Difficulty  float64 // the worker's currently assigned difficulty
}

// Result reports what happened to an accepted share.
type Result struct {
	ShareDifficulty   float64
	IsBlock           bool
	BlockHex          string
	BlockHeight       int64
	BlockHash         string
	NewDifficulty     float64
	DifficultyChanged bool
}

type seenKey struct {
	jobID       string
	extraNonce1 string
	extraNonce2 string
	ntime       string
	nonce       string
}

// Config bounds duplicate-window retention.
type Config struct {
	ChainParams *chaincfg.Params
	StaleWindow time.Duration
}

// DefaultConfig mirrors the Work Director's default stale window.
func DefaultConfig() *Config {
	return &Config{ChainParams: &chaincfg.MainNetParams, StaleWindow: 5 * time.Minute}
}

// RoundDistributor credits a closed round's block reward to the miners who
// earned a share of it, and/or a single accepted share's fixed per-share
// reward. Implemented by internal/accounting.Distributor.
type RoundDistributor interface {
	Distribute(round *core.Round, soloMinerID int64)
	CreditShare(minerID int64, shareDifficulty, networkDifficulty float64, blockReward int64)
}

// Ledger validates shares, detects duplicates and blocks, and applies the
// resulting outcome to the engine, director, and vardiff controller.
type Ledger struct {
	cfg      *Config
	engine   *core.Engine
	director *work.Director
	vardiff  *vardiff.Controller
	chain    work.ChainNode
	logger   *log.Logger

	distributor RoundDistributor

	mu   sync.Mutex
	seen map[seenKey]time.Time
}

// SetDistributor wires the Accounting Engine's round distributor. Optional:
// without one, closed rounds still credit round-share counts but never turn
// into unpaid balances.
func (l *Ledger) SetDistributor(d RoundDistributor) {
	l.distributor = d
}

// New wires a Ledger over an already-running Engine, Director, and vardiff
// Controller, submitting accepted blocks through chain.
func New(cfg *Config, engine *core.Engine, director *work.Director, vc *vardiff.Controller, chain work.ChainNode, logger *log.Logger) *Ledger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Ledger{
		cfg:      cfg,
		engine:   engine,
		director: director,
		vardiff:  vc,
		chain:    chain,
		logger:   logger.WithComponent("ledger"),
		seen:     make(map[seenKey]time.Time),
	}
}

// Submit runs a share through the full validation order (duplicate, then
// difficulty, then job freshness — reject at the first failure), records the
// outcome on the engine, evaluates a vardiff retarget, and submits any block
// candidate to the chain.
func (l *Ledger) Submit(ctx context.Context, sub Submission) (*Result, error) {
	job, isCurrent, ok := l.director.LookupJob(sub.JobID)
	if !ok {
		l.recordOutcome(sub, core.ShareOutcome{Stale: true})
		return nil, &RejectError{Code: RejectJobNotFound, Message: "Job not found"}
	}

	key := seenKey{jobID: sub.JobID, extraNonce1: sub.ExtraNonce1, extraNonce2: sub.ExtraNonce2, ntime: sub.NTime, nonce: sub.Nonce}
	if l.isDuplicate(key) {
		l.recordOutcome(sub, core.ShareOutcome{Duplicate: true})
		return nil, &RejectError{Code: RejectDuplicateShare, Message: "Duplicate share"}
	}
	l.markSeen(key)

	ntime, err := strconv.ParseUint(sub.NTime, 16, 32)
	if err != nil || len(sub.NTime) != 8 {
		l.recordOutcome(sub, core.ShareOutcome{Stale: true})
		return nil, &RejectError{Code: RejectOther, Message: "Invalid time"}
	}
	shareTime := time.Unix(int64(ntime), 0)
	if shareTime.Before(time.Unix(job.Template.MinTime, 0)) || shareTime.After(time.Now().Add(2*time.Hour)) {
		l.recordOutcome(sub, core.ShareOutcome{Stale: true})
		return nil, &RejectError{Code: RejectOther, Message: "Invalid time"}
	}

	fullExtraNonce := sub.ExtraNonce1 + sub.ExtraNonce2
	coinbaseTx, _, _, err := bitcoin.CreateCoinbaseTransaction(job.Height, job.CoinbaseValue, fullExtraNonce, "", l.cfg.ChainParams)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "ledger", "reconstruct coinbase")
	}

	if err := bitcoin.ValidateShare(sub.JobID, sub.ExtraNonce2, sub.NTime, sub.Nonce, sub.Difficulty, job.Template, coinbaseTx); err != nil {
		l.recordOutcome(sub, core.ShareOutcome{LowDiff: true})
		return nil, &RejectError{Code: RejectLowDifficulty, Message: "Low difficulty share"}
	}

	if !isCurrent && time.Since(job.CreatedAt) > l.cfg.StaleWindow {
		l.recordOutcome(sub, core.ShareOutcome{Stale: true})
		return nil, &RejectError{Code: RejectJobNotFound, Message: "Job is stale"}
	}

	block, blockHex, err := bitcoin.ReconstructBlock(job.Template, coinbaseTx, sub.ExtraNonce2, sub.NTime, sub.Nonce)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "ledger", "reconstruct block")
	}
	shareDiff := bitcoin.ShareDifficulty(block.Header.BlockHash())

	isBlock, err := bitcoin.IsBlockCandidate(sub.JobID, sub.ExtraNonce2, sub.NTime, sub.Nonce, job.Template, coinbaseTx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "ledger", "check block candidate")
	}

	l.recordOutcome(sub, core.ShareOutcome{Accepted: true, IsBlock: isBlock})
	l.engine.CreditRoundShare(sub.MinerID)

	if l.distributor != nil {
		if networkDiff, diffErr := l.chain.CurrentDifficulty(ctx); diffErr != nil {
			l.logger.WithError(diffErr).Warn("failed to fetch network difficulty for per-share credit")
		} else {
			l.distributor.CreditShare(sub.MinerID, shareDiff, networkDiff, job.CoinbaseValue)
		}
	}

	result := &Result{ShareDifficulty: shareDiff}

	if isBlock {
		result.IsBlock = true
		result.BlockHex = blockHex
		result.BlockHash = block.BlockHash().String()
		result.BlockHeight = job.Height
		l.logger.LogBlockFound(result.BlockHash, job.Height, "", "", shareDiff)

		accepted, reason, err := l.chain.SubmitBlock(ctx, blockHex)
		if err != nil {
			return result, errors.Wrap(err, errors.ErrorTypeBitcoin, "ledger", "submit block")
		}
		if accepted {
			closedRound := l.engine.CloseRound(job.Height, result.BlockHash, job.CoinbaseValue)
			if _, refreshErr := l.director.Refresh(ctx, true); refreshErr != nil {
				l.logger.WithError(refreshErr).Warn("template refresh after block submission failed")
			}
			if closedRound != nil && l.distributor != nil {
				l.distributor.Distribute(closedRound, sub.MinerID)
			}
		} else {
			l.logger.Warn(fmt.Sprintf("block submission rejected: %s", reason))
		}
	}

	if worker := l.engine.GetWorker(sub.WorkerID); worker != nil {
		newDiff, adjust := l.vardiff.Evaluate(worker.RecentShares, worker.Difficulty, worker.LastRetarget, time.Now())
		if l.vardiff.CheckForcedReset(shareDiff) {
			newDiff, adjust = l.vardiff.MinDifficulty(), true
		}
		if adjust && newDiff != worker.Difficulty {
			l.engine.SetWorkerDifficulty(sub.WorkerID, newDiff)
			result.NewDifficulty = newDiff
			result.DifficultyChanged = true
		}
	}

	return result, nil
}

func (l *Ledger) recordOutcome(sub Submission, outcome core.ShareOutcome) {
	_, banned, until := l.engine.RecordShareOutcome(sub.MinerID, sub.WorkerID, outcome)
	if banned {
		l.logger.Warn(fmt.Sprintf("miner %d banned until %s for excessive invalid shares", sub.MinerID, until.Format(time.RFC3339)))
	}
}

func (l *Ledger) isDuplicate(key seenKey) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evictLocked()
	_, ok := l.seen[key]
	return ok
}

func (l *Ledger) markSeen(key seenKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen[key] = time.Now()
}

func (l *Ledger) evictLocked() {
	cutoff := time.Now().Add(-l.cfg.StaleWindow)
	for k, t := range l.seen {
		if t.Before(cutoff) {
			delete(l.seen, k)
		}
	}
}
