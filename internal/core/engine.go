package core

import (
	"context"
	"fmt"
	"time"

	gomperrors "github.com/INT-devs/mining-pool/pkg/errors"
	"github.com/INT-devs/mining-pool/pkg/log"
)

// Config bounds the Engine's bookkeeping behavior.
type Config struct {
	MaxInvalidShares int           // ban threshold within InvalidShareWindow
	InvalidWindow    time.Duration // sliding window for MaxInvalidShares
	BanDuration      time.Duration
	RecentShareRing  int // per-worker VarDiff timestamp ring capacity
	CommandQueue     int // buffered command channel depth
}

// DefaultConfig mirrors the teacher's conservative production defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxInvalidShares: 20,
		InvalidWindow:    10 * time.Minute,
		BanDuration:      30 * time.Minute,
		RecentShareRing:  100,
		CommandQueue:     1024,
	}
}

// command is the closed set of mutations the Engine goroutine serializes.
// Every command carries its own reply mechanism; the Engine never blocks on
// a caller and callers never touch the tables directly.
type command interface {
	apply(e *Engine)
}

// Engine is the single serializing authority over the Miner/Worker/Round
// tables. All mutation flows through its command channel and is applied by
// exactly one goroutine (run), eliminating the need for table-wide locks
// while keeping submit-after-authorize and similar orderings enforceable.
type Engine struct {
	cfg    *Config
	logger *log.Logger

	cmds chan command
	done chan struct{}

	miners       map[int64]*Miner
	minersByUser map[string]int64
	workers      map[int64]*Worker
	rounds       []*Round
	currentRound *Round
	nextMinerID  int64
	nextWorkerID int64
	nextRoundID  int64
	lastBlockAt  time.Time
	lastBlockH   int64
	networkDiff  float64
}

// New starts a new Engine goroutine. Cancel ctx to stop it; Stop() also works.
func New(ctx context.Context, cfg *Config, logger *log.Logger) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	e := &Engine{
		cfg:          cfg,
		logger:       logger.WithComponent("core.engine"),
		cmds:         make(chan command, cfg.CommandQueue),
		done:         make(chan struct{}),
		miners:       make(map[int64]*Miner),
		minersByUser: make(map[string]int64),
		workers:      make(map[int64]*Worker),
		nextMinerID:  1,
		nextWorkerID: 1,
		nextRoundID:  1,
	}
	e.currentRound = e.openRoundLocked()
	go e.run(ctx)
	return e
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-e.cmds:
			cmd.apply(e)
		}
	}
}

// Stop blocks until the Engine goroutine has exited (call after cancelling ctx).
func (e *Engine) Stop() {
	<-e.done
}

func (e *Engine) submit(cmd command) {
	select {
	case e.cmds <- cmd:
	case <-e.done:
	}
}

// --- GetOrCreateMiner -------------------------------------------------

type getOrCreateMinerCmd struct {
	username      string
	payoutAddress string
	resp          chan *Miner
}

func (c *getOrCreateMinerCmd) apply(e *Engine) {
	defer close(c.resp)
	if id, ok := e.minersByUser[c.username]; ok {
		m := e.miners[id]
		if c.payoutAddress != "" {
			m.PayoutAddress = c.payoutAddress
		}
		c.resp <- m.Clone()
		return
	}
	m := &Miner{
		ID:            e.nextMinerID,
		Username:      c.username,
		PayoutAddress: c.payoutAddress,
		Workers:       make(map[int64]struct{}),
		CreatedAt:     time.Now(),
	}
	e.nextMinerID++
	e.miners[m.ID] = m
	e.minersByUser[m.Username] = m.ID
	c.resp <- m.Clone()
}

// GetOrCreateMiner resolves (creating if necessary) a Miner by username,
// satisfying the injective username→miner_id invariant.
func (e *Engine) GetOrCreateMiner(username, payoutAddress string) *Miner {
	cmd := &getOrCreateMinerCmd{username: username, payoutAddress: payoutAddress, resp: make(chan *Miner, 1)}
	e.submit(cmd)
	return <-cmd.resp
}

// --- ListMinerBalances ----------------------------------------------------

type listMinerBalancesCmd struct {
	resp chan []MinerBalance
}

func (c *listMinerBalancesCmd) apply(e *Engine) {
	defer close(c.resp)
	out := make([]MinerBalance, 0, len(e.miners))
	for _, m := range e.miners {
		out = append(out, MinerBalance{
			MinerID:       m.ID,
			Address:       m.PayoutAddress,
			UnpaidBalance: m.UnpaidBalance,
			LastPayoutAt:  m.LastPayoutAt,
		})
	}
	c.resp <- out
}

// MinerBalance is the payout-eligibility slice of Miner state, exposed so the
// Accounting Engine's Payment Scheduler doesn't need direct access to the
// miner table.
type MinerBalance struct {
	MinerID       int64
	Address       string
	UnpaidBalance int64
	LastPayoutAt  time.Time
}

// ListMinerBalances returns every miner's current payout-eligibility state.
func (e *Engine) ListMinerBalances() []MinerBalance {
	cmd := &listMinerBalancesCmd{resp: make(chan []MinerBalance, 1)}
	e.submit(cmd)
	return <-cmd.resp
}

// --- GetMiner -----------------------------------------------------------

type getMinerCmd struct {
	id   int64
	resp chan *Miner
}

func (c *getMinerCmd) apply(e *Engine) {
	defer close(c.resp)
	c.resp <- e.miners[c.id].Clone()
}

// GetMiner returns a snapshot of the miner, or nil if unknown.
func (e *Engine) GetMiner(id int64) *Miner {
	cmd := &getMinerCmd{id: id, resp: make(chan *Miner, 1)}
	e.submit(cmd)
	return <-cmd.resp
}

// --- RegisterWorker -------------------------------------------------------

type registerWorkerCmd struct {
	minerID     int64
	name        string
	ip          string
	sessionID   string
	defaultDiff float64
	resp        chan *Worker
}

func (c *registerWorkerCmd) apply(e *Engine) {
	defer close(c.resp)
	m, ok := e.miners[c.minerID]
	if !ok {
		c.resp <- nil
		return
	}
	now := time.Now()
	w := &Worker{
		ID:             e.nextWorkerID,
		MinerID:        c.minerID,
		Name:           c.name,
		IP:             c.ip,
		ConnectedAt:    now,
		LastActivityAt: now,
		SessionID:      c.sessionID,
		Difficulty:     c.defaultDiff,
		LastRetarget:   now,
	}
	e.nextWorkerID++
	e.workers[w.ID] = w
	m.Workers[w.ID] = struct{}{}
	c.resp <- w.Clone()
}

// RegisterWorker creates a new Worker owned by minerID. Returns nil if the
// miner does not exist.
func (e *Engine) RegisterWorker(minerID int64, name, ip, sessionID string, defaultDiff float64) *Worker {
	cmd := &registerWorkerCmd{minerID: minerID, name: name, ip: ip, sessionID: sessionID, defaultDiff: defaultDiff, resp: make(chan *Worker, 1)}
	e.submit(cmd)
	return <-cmd.resp
}

// --- UnregisterWorker -------------------------------------------------------

type unregisterWorkerCmd struct {
	workerID int64
	done     chan struct{}
}

func (c *unregisterWorkerCmd) apply(e *Engine) {
	defer close(c.done)
	w, ok := e.workers[c.workerID]
	if !ok {
		return
	}
	if m, ok := e.miners[w.MinerID]; ok {
		delete(m.Workers, c.workerID)
	}
	delete(e.workers, c.workerID)
}

// UnregisterWorker removes a Worker (e.g. on session close), keeping the
// owning Miner's worker set consistent.
func (e *Engine) UnregisterWorker(workerID int64) {
	cmd := &unregisterWorkerCmd{workerID: workerID, done: make(chan struct{})}
	e.submit(cmd)
	<-cmd.done
}

// --- GetWorker / SetWorkerDifficulty -----------------------------------

type getWorkerCmd struct {
	id   int64
	resp chan *Worker
}

func (c *getWorkerCmd) apply(e *Engine) {
	defer close(c.resp)
	c.resp <- e.workers[c.id].Clone()
}

// GetWorker returns a snapshot of the worker, or nil if unknown.
func (e *Engine) GetWorker(id int64) *Worker {
	cmd := &getWorkerCmd{id: id, resp: make(chan *Worker, 1)}
	e.submit(cmd)
	return <-cmd.resp
}

type setWorkerDifficultyCmd struct {
	workerID   int64
	difficulty float64
	done       chan struct{}
}

func (c *setWorkerDifficultyCmd) apply(e *Engine) {
	defer close(c.done)
	if w, ok := e.workers[c.workerID]; ok {
		w.Difficulty = c.difficulty
		w.LastRetarget = time.Now()
		w.RecentShares = nil
	}
}

// SetWorkerDifficulty updates a worker's credited difficulty and resets its
// VarDiff ring, per the forced-reset behavior on min_difficulty/4 breach.
func (e *Engine) SetWorkerDifficulty(workerID int64, difficulty float64) {
	cmd := &setWorkerDifficultyCmd{workerID: workerID, difficulty: difficulty, done: make(chan struct{})}
	e.submit(cmd)
	<-cmd.done
}

// --- RecordShareOutcome -------------------------------------------------

type recordShareOutcomeCmd struct {
	minerID  int64
	workerID int64
	outcome  ShareOutcome
	at       time.Time
	resp     chan recordShareResult
}

// recordShareResult reports the post-update worker snapshot plus whether
// this update just tripped the ban threshold.
type recordShareResult struct {
	worker   *Worker
	banned   bool
	banUntil time.Time
}

func (c *recordShareOutcomeCmd) apply(e *Engine) {
	defer close(c.resp)
	var result recordShareResult

	if w, ok := e.workers[c.workerID]; ok {
		switch {
		case c.outcome.Accepted:
			w.Accepted++
			w.RecentShares = append(w.RecentShares, c.at)
			if over := len(w.RecentShares) - e.cfg.RecentShareRing; over > 0 {
				w.RecentShares = w.RecentShares[over:]
			}
		case c.outcome.Stale:
			w.Stale++
		default:
			w.Rejected++
		}
		w.LastActivityAt = c.at
		result.worker = w.Clone()
	}

	m, ok := e.miners[c.minerID]
	if !ok {
		c.resp <- result
		return
	}
	if c.outcome.Accepted {
		m.AcceptedShares++
	} else {
		m.RejectedShares++
		if m.invalidWindowStart.IsZero() || c.at.Sub(m.invalidWindowStart) > e.cfg.InvalidWindow {
			m.invalidWindowStart = c.at
			m.invalidShares = 0
		}
		m.invalidShares++
		if m.invalidShares >= int64(e.cfg.MaxInvalidShares) && !m.Banned {
			m.Banned = true
			m.BanReason = "max_invalid_shares exceeded"
			m.BanUntil = c.at.Add(e.cfg.BanDuration)
			result.banned = true
			result.banUntil = m.BanUntil
		}
	}
	c.resp <- result
}

// RecordShareOutcome updates worker/miner counters for one validated share
// and returns the refreshed worker snapshot, plus whether this share just
// caused the miner to be banned.
func (e *Engine) RecordShareOutcome(minerID, workerID int64, outcome ShareOutcome) (*Worker, bool, time.Time) {
	cmd := &recordShareOutcomeCmd{minerID: minerID, workerID: workerID, outcome: outcome, at: time.Now(), resp: make(chan recordShareResult, 1)}
	e.submit(cmd)
	r := <-cmd.resp
	return r.worker, r.banned, r.banUntil
}

// --- Round lifecycle ------------------------------------------------------

func (e *Engine) openRoundLocked() *Round {
	r := &Round{
		ID:          e.nextRoundID,
		StartTime:   time.Now(),
		MinerShares: make(map[int64]int64),
	}
	e.nextRoundID++
	e.rounds = append(e.rounds, r)
	return r
}

type currentRoundCmd struct {
	resp chan *Round
}

func (c *currentRoundCmd) apply(e *Engine) {
	defer close(c.resp)
	c.resp <- e.currentRound.Clone()
}

// CurrentRound returns a snapshot of the open round.
func (e *Engine) CurrentRound() *Round {
	cmd := &currentRoundCmd{resp: make(chan *Round, 1)}
	e.submit(cmd)
	return <-cmd.resp
}

type creditRoundShareCmd struct {
	minerID int64
	done    chan struct{}
}

func (c *creditRoundShareCmd) apply(e *Engine) {
	defer close(c.done)
	e.currentRound.MinerShares[c.minerID]++
	e.currentRound.TotalShares++
}

// CreditRoundShare increments the open round's per-miner share count,
// satisfying the Share Ledger's round-accounting requirement.
func (e *Engine) CreditRoundShare(minerID int64) {
	cmd := &creditRoundShareCmd{minerID: minerID, done: make(chan struct{})}
	e.submit(cmd)
	<-cmd.done
}

type closeRoundCmd struct {
	height int64
	hash   string
	reward int64
	resp   chan *Round
}

func (c *closeRoundCmd) apply(e *Engine) {
	defer close(c.resp)
	closed := e.currentRound
	closed.EndTime = time.Now()
	closed.BlockHeight = c.height
	closed.BlockHash = c.hash
	closed.BlockReward = c.reward
	closed.Complete = true
	e.lastBlockAt = closed.EndTime
	e.lastBlockH = c.height
	e.currentRound = e.openRoundLocked()
	c.resp <- closed.Clone()
}

// CloseRound finalizes the open round as a found block and opens a new one.
// Invariant: at most one round is open at a time.
func (e *Engine) CloseRound(height int64, hash string, reward int64) *Round {
	cmd := &closeRoundCmd{height: height, hash: hash, reward: reward, resp: make(chan *Round, 1)}
	e.submit(cmd)
	return <-cmd.resp
}

// --- Balance adjustment (used by the Accounting Engine) -------------------

type adjustBalanceCmd struct {
	minerID int64
	delta   int64
	paid    bool // true => move from unpaid to paid (payment confirmed)
	resp    chan error
}

func (c *adjustBalanceCmd) apply(e *Engine) {
	defer close(c.resp)
	m, ok := e.miners[c.minerID]
	if !ok {
		c.resp <- fmt.Errorf("unknown miner %d", c.minerID)
		return
	}
	if c.paid {
		m.PaidBalance += c.delta
		m.LastPayoutAt = time.Now()
	} else {
		m.UnpaidBalance += c.delta
	}
	c.resp <- nil
}

// CreditUnpaid adds delta (may be negative, e.g. when scheduling a payment)
// to a miner's unpaid balance.
func (e *Engine) CreditUnpaid(minerID, delta int64) error {
	cmd := &adjustBalanceCmd{minerID: minerID, delta: delta, resp: make(chan error, 1)}
	e.submit(cmd)
	return <-cmd.resp
}

// ConfirmPayout moves amount from unpaid/paid bookkeeping once a Wallet send
// has been confirmed on-chain.
func (e *Engine) ConfirmPayout(minerID, amount int64) error {
	cmd := &adjustBalanceCmd{minerID: minerID, delta: amount, paid: true, resp: make(chan error, 1)}
	e.submit(cmd)
	return <-cmd.resp
}

// --- Bans -----------------------------------------------------------------

type banMinerCmd struct {
	minerID  int64
	reason   string
	duration time.Duration
	done     chan struct{}
}

func (c *banMinerCmd) apply(e *Engine) {
	defer close(c.done)
	if m, ok := e.miners[c.minerID]; ok {
		m.Banned = true
		m.BanReason = c.reason
		m.BanUntil = time.Now().Add(c.duration)
	}
}

// BanMiner marks a miner banned for the admin control surface's ban_miner op.
func (e *Engine) BanMiner(minerID int64, reason string, duration time.Duration) {
	cmd := &banMinerCmd{minerID: minerID, reason: reason, duration: duration, done: make(chan struct{})}
	e.submit(cmd)
	<-cmd.done
}

type unbanMinerCmd struct {
	minerID int64
	done    chan struct{}
}

func (c *unbanMinerCmd) apply(e *Engine) {
	defer close(c.done)
	if m, ok := e.miners[c.minerID]; ok {
		m.Banned = false
		m.BanReason = ""
		m.BanUntil = time.Time{}
		m.invalidShares = 0
	}
}

// UnbanMiner clears a miner's ban for the admin control surface's unban_miner op.
func (e *Engine) UnbanMiner(minerID int64) {
	cmd := &unbanMinerCmd{minerID: minerID, done: make(chan struct{})}
	e.submit(cmd)
	<-cmd.done
}

type isBannedCmd struct {
	minerID int64
	resp    chan bool
}

func (c *isBannedCmd) apply(e *Engine) {
	defer close(c.resp)
	m, ok := e.miners[c.minerID]
	if !ok {
		c.resp <- false
		return
	}
	if m.Banned && time.Now().After(m.BanUntil) {
		m.Banned = false
		c.resp <- false
		return
	}
	c.resp <- m.Banned
}

// IsBanned reports whether the miner is currently banned, lazily clearing
// expired bans.
func (e *Engine) IsBanned(minerID int64) bool {
	cmd := &isBannedCmd{minerID: minerID, resp: make(chan bool, 1)}
	e.submit(cmd)
	return <-cmd.resp
}

// --- Statistics -------------------------------------------------------------

type snapshotStatsCmd struct {
	networkDiff float64
	resp        chan PoolStatistics
}

func (c *snapshotStatsCmd) apply(e *Engine) {
	defer close(c.resp)
	c.resp <- PoolStatistics{
		TotalWorkers:       len(e.workers),
		TotalMiners:        len(e.miners),
		CurrentRoundShares: e.currentRound.TotalShares,
		NetworkDifficulty:  c.networkDiff,
		LastBlockFoundAt:   e.lastBlockAt,
		LastBlockHeight:    e.lastBlockH,
		OpenRoundID:        e.currentRound.ID,
	}
}

// Snapshot returns a PoolStatistics projection for the control surface and
// the Influx-backed metrics path.
func (e *Engine) Snapshot(networkDifficulty float64) PoolStatistics {
	cmd := &snapshotStatsCmd{networkDiff: networkDifficulty, resp: make(chan PoolStatistics, 1)}
	e.submit(cmd)
	return <-cmd.resp
}

// ErrMinerNotFound is returned by collaborators that look a miner up outside
// the Engine and need a sentinel to distinguish "not yet known" from other
// failures.
var ErrMinerNotFound = gomperrors.New(gomperrors.ErrorTypeValidation, "core.engine", "miner not found")
