package accounting

import (
	"context"
	"sync"
	"time"

	"github.com/INT-devs/mining-pool/internal/core"
	"github.com/INT-devs/mining-pool/internal/wallet"
	"github.com/INT-devs/mining-pool/pkg/log"
)

// PaymentStatus mirrors the Payment entity's 3-state lifecycle.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentConfirmed PaymentStatus = "confirmed"
	PaymentFailed    PaymentStatus = "failed"
)

// Payment is an outbound credit settlement in flight.
type Payment struct {
	ID          int64
	MinerID     int64
	Address     string
	Amount      int64
	Status      PaymentStatus
	CreatedAt   time.Time
	ConfirmedAt time.Time
	TxHash      string
}

// SchedulerConfig bounds the payment sweep's eligibility rules.
type SchedulerConfig struct {
	MinPayout      int64
	PayoutInterval time.Duration
	SweepInterval  time.Duration
}

// DefaultSchedulerConfig mirrors common pool defaults: a daily sweep,
// 0.01 BTC minimum payout, no more than once a day per miner.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		MinPayout:      1_000_000,
		PayoutInterval: 24 * time.Hour,
		SweepInterval:  10 * time.Minute,
	}
}

// MinerBalance is the slice of engine state the scheduler needs per miner to
// decide payout eligibility, without depending on core.Engine internals
// beyond its exported snapshot accessors.
type MinerBalance struct {
	MinerID       int64
	Address       string
	UnpaidBalance int64
	LastPayoutAt  time.Time
}

// Scheduler runs the periodic payment sweep: it allocates pending Payments
// for eligible miners, hands them to the Wallet, and reconciles confirmed or
// failed sends back onto the Engine's balances. The Accounting Engine never
// double-credits: a failed send restores exactly the amount that was
// decremented when the Payment was allocated.
type Scheduler struct {
	cfg    *SchedulerConfig
	engine *core.Engine
	wallet wallet.Wallet
	logger *log.Logger

	mu       sync.Mutex
	payments map[string]*Payment // keyed by tx hash, pending confirmation
	nextID   int64
}

// NewScheduler wires a Scheduler over an already-running Engine and Wallet.
func NewScheduler(cfg *SchedulerConfig, engine *core.Engine, w wallet.Wallet, logger *log.Logger) *Scheduler {
	if cfg == nil {
		cfg = DefaultSchedulerConfig()
	}
	return &Scheduler{
		cfg:      cfg,
		engine:   engine,
		wallet:   w,
		logger:   logger.WithComponent("accounting.scheduler"),
		payments: make(map[string]*Payment),
		nextID:   1,
	}
}

// Run starts the periodic sweep and the confirmation-event listener; it
// blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, balances func() []MinerBalance) error {
	events, err := s.wallet.ConfirmationEvents(ctx)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep(ctx, balances())
		case conf, ok := <-events:
			if !ok {
				return nil
			}
			s.reconcile(conf)
		}
	}
}

// Sweep allocates a pending Payment for every miner whose unpaid_balance
// meets min_payout and whose last payment is at least payout_interval old,
// then hands each to the Wallet.
func (s *Scheduler) Sweep(ctx context.Context, balances []MinerBalance) {
	now := time.Now()
	for _, b := range balances {
		if b.UnpaidBalance < s.cfg.MinPayout {
			continue
		}
		if !b.LastPayoutAt.IsZero() && now.Sub(b.LastPayoutAt) < s.cfg.PayoutInterval {
			continue
		}
		s.schedule(ctx, b)
	}
}

func (s *Scheduler) schedule(ctx context.Context, b MinerBalance) {
	if err := s.engine.CreditUnpaid(b.MinerID, -b.UnpaidBalance); err != nil {
		s.logger.WithError(err).Warn("failed to debit unpaid balance before payout send")
		return
	}

	s.mu.Lock()
	p := &Payment{ID: s.nextID, MinerID: b.MinerID, Address: b.Address, Amount: b.UnpaidBalance, Status: PaymentPending, CreatedAt: time.Now()}
	s.nextID++
	s.mu.Unlock()

	txHash, broadcastOK, err := s.wallet.Send(ctx, b.Address, b.UnpaidBalance)
	if err != nil || !broadcastOK {
		// Broadcast itself failed: restore the balance immediately rather
		// than waiting on a confirmation event that will never arrive.
		if creditErr := s.engine.CreditUnpaid(b.MinerID, b.UnpaidBalance); creditErr != nil {
			s.logger.WithError(creditErr).Warn("failed to restore unpaid balance after a failed send")
		}
		s.logger.WithError(err).Warn("payout send failed, balance restored")
		return
	}

	p.TxHash = txHash
	s.mu.Lock()
	s.payments[txHash] = p
	s.mu.Unlock()
	s.logger.LogPayout(txHash, b.Address, b.UnpaidBalance, string(PaymentPending))
}

func (s *Scheduler) reconcile(conf wallet.Confirmation) {
	s.mu.Lock()
	p, ok := s.payments[conf.TxHash]
	if ok {
		delete(s.payments, conf.TxHash)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	switch conf.Status {
	case wallet.StatusConfirmed:
		p.Status = PaymentConfirmed
		p.ConfirmedAt = time.Now()
		if err := s.engine.ConfirmPayout(p.MinerID, p.Amount); err != nil {
			s.logger.WithError(err).Warn("failed to record confirmed payout")
		}
		s.logger.LogPayout(p.TxHash, "", p.Amount, string(PaymentConfirmed))
	case wallet.StatusFailed:
		p.Status = PaymentFailed
		if err := s.engine.CreditUnpaid(p.MinerID, p.Amount); err != nil {
			s.logger.WithError(err).Warn("failed to restore unpaid balance after a failed payout")
		}
		s.logger.LogPayout(p.TxHash, "", p.Amount, string(PaymentFailed))
	}
}
