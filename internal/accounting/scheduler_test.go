package accounting

import (
	"context"
	"testing"
	"time"

	"github.com/INT-devs/mining-pool/internal/core"
	"github.com/INT-devs/mining-pool/internal/wallet"
	"github.com/INT-devs/mining-pool/pkg/log"
)

func testLogger() *log.Logger {
	return log.New("mining-pool-test", "dev", "error", "text")
}

func TestSweep_SkipsBelowMinPayout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine := core.New(ctx, core.DefaultConfig(), testLogger())
	defer engine.Stop()

	w := wallet.NewNoopWallet()
	s := NewScheduler(&SchedulerConfig{MinPayout: 1_000_000, PayoutInterval: time.Hour, SweepInterval: time.Minute}, engine, w, testLogger())

	s.Sweep(ctx, []MinerBalance{{MinerID: 1, Address: "addr", UnpaidBalance: 500_000}})

	s.mu.Lock()
	count := len(s.payments)
	s.mu.Unlock()
	if count != 0 {
		t.Errorf("expected no payments scheduled below min payout, got %d", count)
	}
}

func TestSweep_SkipsWithinPayoutInterval(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine := core.New(ctx, core.DefaultConfig(), testLogger())
	defer engine.Stop()

	w := wallet.NewNoopWallet()
	s := NewScheduler(DefaultSchedulerConfig(), engine, w, testLogger())

	s.Sweep(ctx, []MinerBalance{{
		MinerID:       1,
		Address:       "addr",
		UnpaidBalance: 2_000_000,
		LastPayoutAt:  time.Now().Add(-time.Hour),
	}})

	s.mu.Lock()
	count := len(s.payments)
	s.mu.Unlock()
	if count != 0 {
		t.Errorf("expected no payment scheduled inside the payout interval, got %d", count)
	}
}

func TestSweep_SchedulesEligiblePayoutAndReconcilesConfirmation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine := core.New(ctx, core.DefaultConfig(), testLogger())
	defer engine.Stop()

	miner := engine.GetOrCreateMiner("alice", "addr123")
	if err := engine.CreditUnpaid(miner.ID, 5_000_000); err != nil {
		t.Fatalf("unexpected error crediting balance: %v", err)
	}

	w := wallet.NewNoopWallet()
	s := NewScheduler(DefaultSchedulerConfig(), engine, w, testLogger())

	events, err := w.ConfirmationEvents(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s.Sweep(ctx, []MinerBalance{{MinerID: miner.ID, Address: "addr123", UnpaidBalance: 5_000_000}})

	afterSweep := engine.GetMiner(miner.ID)
	if afterSweep.UnpaidBalance != 0 {
		t.Errorf("expected unpaid balance debited on scheduling, got %d", afterSweep.UnpaidBalance)
	}

	select {
	case conf := <-events:
		s.reconcile(conf)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for confirmation event")
	}

	final := engine.GetMiner(miner.ID)
	if final.PaidBalance != 5_000_000 {
		t.Errorf("expected paid balance credited after confirmation, got %d", final.PaidBalance)
	}
	if final.UnpaidBalance != 0 {
		t.Errorf("expected unpaid balance to remain 0 after confirmation, got %d", final.UnpaidBalance)
	}
}

func TestReconcile_FailedSendRestoresUnpaidBalance(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine := core.New(ctx, core.DefaultConfig(), testLogger())
	defer engine.Stop()

	miner := engine.GetOrCreateMiner("bob", "addr456")

	w := wallet.NewNoopWallet()
	s := NewScheduler(DefaultSchedulerConfig(), engine, w, testLogger())

	s.mu.Lock()
	s.payments["fake-tx"] = &Payment{ID: 1, MinerID: miner.ID, Amount: 3_000_000, Status: PaymentPending}
	s.mu.Unlock()

	s.reconcile(wallet.Confirmation{TxHash: "fake-tx", Status: wallet.StatusFailed})

	final := engine.GetMiner(miner.ID)
	if final.UnpaidBalance != 3_000_000 {
		t.Errorf("expected unpaid balance restored to 3,000,000, got %d", final.UnpaidBalance)
	}
}
