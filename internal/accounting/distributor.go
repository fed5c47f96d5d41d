package accounting

import (
	"github.com/INT-devs/mining-pool/internal/core"
	"github.com/INT-devs/mining-pool/pkg/log"
)

// Distributor turns a closed round's per-miner share counts into unpaid
// balance credits on core.Engine, using the pool's configured payout Method
// and fee. The in-memory Engine retains share counts only for the round
// currently closing, not a cross-round trailing history, so PPLNS and PPS
// here treat that round's shares as the whole window; a deployment wanting a
// true trailing-N-share PPLNS window across round boundaries sources it from
// the persisted share log in internal/database instead.
type Distributor struct {
	engine         *core.Engine
	method         Method
	poolFeePercent float64
	logger         *log.Logger
}

// NewDistributor wires a Distributor over an already-running Engine.
func NewDistributor(engine *core.Engine, method Method, poolFeePercent float64, logger *log.Logger) *Distributor {
	return &Distributor{
		engine:         engine,
		method:         method,
		poolFeePercent: poolFeePercent,
		logger:         logger.WithComponent("accounting.distributor"),
	}
}

// CreditShare credits one accepted share's worth of unpaid balance
// immediately, independent of whether it belongs to a round that ever
// closes. Only MethodPPS pays this way — it funds a fixed reward per share
// from pool reserves regardless of block luck, so waiting for a round to
// close would mean PPS miners are never paid. PPLNS/PROP score shares
// against a round's total and can only be settled once that round closes
// (Distribute, below); SOLO's entire payout is the finder's block reward
// and is likewise settled at round-close.
func (d *Distributor) CreditShare(minerID int64, shareDifficulty, networkDifficulty float64, blockReward int64) {
	if d.method != MethodPPS {
		return
	}

	expectedShares := CalculateExpectedShares(int64(networkDifficulty), int64(shareDifficulty))
	payouts := CalculatePPS([]ShareRecord{{MinerID: minerID, Valid: true}}, expectedShares, blockReward, d.poolFeePercent)

	for id, amount := range payouts {
		if amount <= 0 {
			continue
		}
		if err := d.engine.CreditUnpaid(id, amount); err != nil {
			d.logger.WithError(err).Warn("failed to credit per-share payout")
		}
	}
}

// Distribute credits every miner's share of round's block reward to their
// unpaid_balance. soloMinerID is the miner whose share triggered the block,
// used only when the configured method is MethodSOLO.
func (d *Distributor) Distribute(round *core.Round, soloMinerID int64) {
	var payouts map[int64]int64
	if d.method == MethodSOLO {
		payouts = CalculateSolo(soloMinerID, round.BlockReward, d.poolFeePercent)
	} else {
		shares := sharesFromCounts(round.MinerShares)
		payouts = Calculate(d.method, shares, shares, soloMinerID, len(shares), int64(len(shares)), round.BlockReward, d.poolFeePercent)
	}

	for minerID, amount := range payouts {
		if amount <= 0 {
			continue
		}
		if err := d.engine.CreditUnpaid(minerID, amount); err != nil {
			d.logger.WithError(err).Warn("failed to credit round payout")
		}
	}
}

func sharesFromCounts(counts map[int64]int64) []ShareRecord {
	shares := make([]ShareRecord, 0, len(counts))
	for minerID, count := range counts {
		for i := int64(0); i < count; i++ {
			shares = append(shares, ShareRecord{MinerID: minerID, Valid: true, Difficulty: 1})
		}
	}
	return shares
}
