package work

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/wire"

	"github.com/INT-devs/mining-pool/pkg/log"
)

func fakeTxHash() string {
	return strings.Repeat("0", 62) + "f0"
}

func fakePrevHash(suffix string) string {
	return strings.Repeat("0", 64-len(suffix)) + suffix
}

type fakeChainNode struct {
	prevHash string
	height   int64
	diff     float64
}

func (f *fakeChainNode) GetTemplate(ctx context.Context) (*Template, error) {
	value := int64(625000000)
	raw := &btcjson.GetBlockTemplateResult{
		Height:        f.height,
		PreviousHash:  f.prevHash,
		Bits:          "1d00ffff",
		Target:        "00000000ffff000000000000000000000000000000000000000000000000",
		CurTime:       time.Now().Unix(),
		Version:       1,
		CoinbaseValue: &value,
		Transactions: []btcjson.GetBlockTemplateResultTx{
			{Hash: fakeTxHash()},
		},
	}
	tx := wire.NewMsgTx(wire.TxVersion)
	return &Template{Raw: raw, PlaceholderTx: tx, Coinb1: "aa", Coinb2: "bb"}, nil
}

func (f *fakeChainNode) SubmitBlock(ctx context.Context, blockHex string) (bool, string, error) {
	return true, "", nil
}

func (f *fakeChainNode) SubscribeTips(ctx context.Context) (<-chan string, error) {
	ch := make(chan string)
	return ch, nil
}

func (f *fakeChainNode) CurrentDifficulty(ctx context.Context) (float64, error) {
	return f.diff, nil
}

func testLogger() *log.Logger {
	return log.New("mining-pool-test", "dev", "error", "text")
}

func TestRefresh_BuildsCleanJobOnNewTip(t *testing.T) {
	chain := &fakeChainNode{prevHash: fakePrevHash("a"), height: 700000}
	d := New(DefaultConfig(), chain, testLogger())

	job, err := d.Refresh(context.Background(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !job.CleanJobs {
		t.Error("expected first job to be clean_jobs=true")
	}
	if d.CurrentJob().ID != job.ID {
		t.Error("expected CurrentJob to return the freshly built job")
	}
}

func TestRefresh_SameTipIsNoOpWithoutForce(t *testing.T) {
	chain := &fakeChainNode{prevHash: fakePrevHash("a"), height: 700000}
	d := New(DefaultConfig(), chain, testLogger())

	first, _ := d.Refresh(context.Background(), false)
	second, err := d.Refresh(context.Background(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.ID != second.ID {
		t.Error("expected same job to be returned when the tip hasn't changed")
	}
}

func TestRefresh_RetiresPreviousJobIntoStaleWindow(t *testing.T) {
	chain := &fakeChainNode{prevHash: fakePrevHash("a"), height: 700000}
	d := New(DefaultConfig(), chain, testLogger())

	first, _ := d.Refresh(context.Background(), false)
	chain.prevHash = fakePrevHash("b")
	chain.height = 700001
	second, _ := d.Refresh(context.Background(), false)

	if first.ID == second.ID {
		t.Fatal("expected a new job id on tip change")
	}

	job, isCurrent, ok := d.LookupJob(first.ID)
	if !ok || isCurrent {
		t.Error("expected the retired job to still be found but not current")
	}
	if job == nil {
		t.Fatal("expected retired job lookup to succeed within stale window")
	}
}

func TestLookupJob_UnknownReturnsNotOK(t *testing.T) {
	chain := &fakeChainNode{prevHash: fakePrevHash("a"), height: 700000}
	d := New(DefaultConfig(), chain, testLogger())
	d.Refresh(context.Background(), false)

	_, _, ok := d.LookupJob("nonexistent")
	if ok {
		t.Error("expected lookup of unknown job id to fail")
	}
}

func TestLookupJob_ExpiredBeyondStaleWindow(t *testing.T) {
	chain := &fakeChainNode{prevHash: fakePrevHash("a"), height: 700000}
	cfg := DefaultConfig()
	cfg.StaleWindow = 1 * time.Millisecond
	d := New(cfg, chain, testLogger())

	first, _ := d.Refresh(context.Background(), false)
	chain.prevHash = fakePrevHash("b")
	d.Refresh(context.Background(), false)

	time.Sleep(5 * time.Millisecond)

	_, _, ok := d.LookupJob(first.ID)
	if ok {
		t.Error("expected retired job to be considered stale past StaleWindow")
	}
}

func TestNextExtraNonce1_Uniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		n := NextExtraNonce1(4)
		if seen[n] {
			t.Fatalf("expected globally unique extranonce1, got duplicate %s", n)
		}
		seen[n] = true
		if len(n) != 8 {
			t.Fatalf("expected 8 hex chars for a 4-byte extranonce1, got %d", len(n))
		}
	}
}
