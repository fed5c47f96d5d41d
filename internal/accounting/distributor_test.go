package accounting

import (
	"context"
	"testing"

	"github.com/INT-devs/mining-pool/internal/core"
	"github.com/INT-devs/mining-pool/pkg/log"
)

func testDistributorLogger() *log.Logger {
	return log.New("mining-pool-test", "dev", "error", "text")
}

func newTestEngine(t *testing.T) *core.Engine {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	engine := core.New(ctx, core.DefaultConfig(), testDistributorLogger())
	t.Cleanup(engine.Stop)
	t.Cleanup(cancel)
	return engine
}

func TestDistributor_Distribute_PPLNSCreditsEveryContributor(t *testing.T) {
	engine := newTestEngine(t)

	miner1 := engine.GetOrCreateMiner("alice", "alice")
	miner2 := engine.GetOrCreateMiner("bob", "bob")

	d := NewDistributor(engine, MethodPPLNS, 1.0, testDistributorLogger())

	round := &core.Round{
		BlockHeight: 100,
		BlockHash:   "abc",
		BlockReward: 100_000_000,
		MinerShares: map[int64]int64{miner1.ID: 300, miner2.ID: 700},
	}

	d.Distribute(round, miner1.ID)

	got1 := engine.GetMiner(miner1.ID).UnpaidBalance
	got2 := engine.GetMiner(miner2.ID).UnpaidBalance

	if got1 != 29_700_000 {
		t.Errorf("miner1 unpaid balance = %d, want 29700000", got1)
	}
	if got2 != 69_300_000 {
		t.Errorf("miner2 unpaid balance = %d, want 69300000", got2)
	}
}

func TestDistributor_Distribute_SOLOCreditsOnlyFinder(t *testing.T) {
	engine := newTestEngine(t)

	finder := engine.GetOrCreateMiner("alice", "alice")
	other := engine.GetOrCreateMiner("bob", "bob")

	d := NewDistributor(engine, MethodSOLO, 2.0, testDistributorLogger())

	round := &core.Round{
		BlockHeight: 100,
		BlockHash:   "abc",
		BlockReward: 100_000_000,
		MinerShares: map[int64]int64{finder.ID: 300, other.ID: 700},
	}

	d.Distribute(round, finder.ID)

	if got := engine.GetMiner(finder.ID).UnpaidBalance; got != 98_000_000 {
		t.Errorf("finder unpaid balance = %d, want 98000000 (reward minus 2%% fee)", got)
	}
	if got := engine.GetMiner(other.ID).UnpaidBalance; got != 0 {
		t.Errorf("non-finder unpaid balance = %d, want 0", got)
	}
}

func TestDistributor_Distribute_EmptyRoundCreditsNobody(t *testing.T) {
	engine := newTestEngine(t)
	d := NewDistributor(engine, MethodPROP, 1.0, testDistributorLogger())

	round := &core.Round{
		BlockHeight: 100,
		BlockHash:   "abc",
		BlockReward: 100_000_000,
		MinerShares: map[int64]int64{},
	}

	// Must not panic on a round with no contributing shares.
	d.Distribute(round, 0)
}

func TestDistributor_Distribute_UnknownMinerIsLoggedNotFatal(t *testing.T) {
	engine := newTestEngine(t)
	d := NewDistributor(engine, MethodPROP, 0, testDistributorLogger())

	round := &core.Round{
		BlockHeight: 100,
		BlockHash:   "abc",
		BlockReward: 50_000_000,
		MinerShares: map[int64]int64{999: 1000}, // never registered via GetOrCreateMiner
	}

	// CreditUnpaid fails for an unknown miner id; Distribute must swallow the
	// error (logged, not returned) rather than panic.
	d.Distribute(round, 0)
}
