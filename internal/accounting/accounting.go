// Package accounting implements the pool's payout calculators (PPLNS, PPS,
// PROP, SOLO) and the payment scheduling sweep that turns a miner's unpaid
// balance into a confirmed, on-chain payment.
package accounting

import "time"

// Method names a payout scheme, matching the four the pool supports.
type Method string

const (
	MethodPPLNS Method = "PPLNS"
	MethodPPS   Method = "PPS"
	MethodPROP  Method = "PROP"
	MethodSOLO  Method = "SOLO"
)

// ShareRecord is the minimal per-share data the calculators need: which
// miner submitted it, whether it was accepted, and at what difficulty.
type ShareRecord struct {
	MinerID    int64
	Valid      bool
	Difficulty int64
	Timestamp  time.Time
}

// CalculateFee truncates amount*feePercent/100 to satoshis, matching the
// pool's integer-truncating fee arithmetic exactly (no rounding).
func CalculateFee(amount int64, feePercent float64) int64 {
	return int64(float64(amount) * feePercent / 100.0)
}

// CalculatePPLNS pays out a block reward proportional to each miner's share
// of the last nShares valid shares (Pay Per Last N Shares). Reward splits
// use integer truncation (reward*count/total), so the sum of payouts may be
// a few satoshis below reward - fee; the remainder stays with the pool.
func CalculatePPLNS(shares []ShareRecord, nShares int, blockReward int64, poolFeePercent float64) map[int64]int64 {
	payouts := make(map[int64]int64)
	fee := CalculateFee(blockReward, poolFeePercent)
	reward := blockReward - fee

	start := 0
	if len(shares) > nShares {
		start = len(shares) - nShares
	}

	minerShares := make(map[int64]int64)
	var total int64
	for _, s := range shares[start:] {
		if s.Valid {
			minerShares[s.MinerID]++
			total++
		}
	}
	if total == 0 {
		return payouts
	}

	for minerID, count := range minerShares {
		payouts[minerID] = (reward * count) / total
	}
	return payouts
}

// CalculatePPS pays a fixed reward per valid share regardless of whether
// this pool found the block (Pay Per Share), funded from pool reserves.
func CalculatePPS(shares []ShareRecord, expectedSharesPerBlock int64, blockReward int64, poolFeePercent float64) map[int64]int64 {
	payouts := make(map[int64]int64)
	if expectedSharesPerBlock == 0 {
		return payouts
	}
	fee := CalculateFee(blockReward, poolFeePercent)
	rewardPerShare := (blockReward - fee) / expectedSharesPerBlock

	for _, s := range shares {
		if s.Valid {
			payouts[s.MinerID] += rewardPerShare
		}
	}
	return payouts
}

// CalculateProportional pays out a block reward proportional to each
// miner's share of valid shares submitted within the round that found it
// (PROP) — unlike PPLNS, scoped to round_shares rather than a fixed window.
func CalculateProportional(roundShares []ShareRecord, blockReward int64, poolFeePercent float64) map[int64]int64 {
	payouts := make(map[int64]int64)
	fee := CalculateFee(blockReward, poolFeePercent)
	reward := blockReward - fee

	minerShares := make(map[int64]int64)
	var total int64
	for _, s := range roundShares {
		if s.Valid {
			minerShares[s.MinerID]++
			total++
		}
	}
	if total == 0 {
		return payouts
	}

	for minerID, count := range minerShares {
		payouts[minerID] = (reward * count) / total
	}
	return payouts
}

// CalculateSolo pays the entire block reward (minus fee) to the single
// miner who found it; there is no share-splitting to do.
func CalculateSolo(minerID int64, blockReward int64, poolFeePercent float64) map[int64]int64 {
	fee := CalculateFee(blockReward, poolFeePercent)
	return map[int64]int64{minerID: blockReward - fee}
}

// Calculate dispatches to the configured payout method.
func Calculate(method Method, shares []ShareRecord, roundShares []ShareRecord, soloMinerID int64, pplnsWindow int, expectedSharesPerBlock, blockReward int64, poolFeePercent float64) map[int64]int64 {
	switch method {
	case MethodPPS:
		return CalculatePPS(shares, expectedSharesPerBlock, blockReward, poolFeePercent)
	case MethodPROP:
		return CalculateProportional(roundShares, blockReward, poolFeePercent)
	case MethodSOLO:
		return CalculateSolo(soloMinerID, blockReward, poolFeePercent)
	default:
		return CalculatePPLNS(shares, pplnsWindow, blockReward, poolFeePercent)
	}
}

// CalculateHashrate estimates a hashrate in H/s from shares seen within the
// trailing window, matching the pool's difficulty*2^32/time formula.
func CalculateHashrate(shares []ShareRecord, window time.Duration) float64 {
	if window <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-window)
	var totalDifficulty int64
	count := 0
	for _, s := range shares {
		if s.Valid && !s.Timestamp.Before(cutoff) {
			totalDifficulty += s.Difficulty
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return (float64(totalDifficulty) * 4294967296.0) / window.Seconds()
}

// EstimateBlockTime estimates the expected time to find a block at the
// given pool hashrate against the current network difficulty.
func EstimateBlockTime(poolHashrate float64, networkDifficulty float64) time.Duration {
	if poolHashrate == 0 {
		return time.Duration(1<<63 - 1)
	}
	expectedHashes := networkDifficulty * 4294967296.0
	return time.Duration(expectedHashes/poolHashrate) * time.Second
}

// CalculateExpectedShares derives PPS's expected_shares_per_block denominator
// from the ratio of network to pool share difficulty.
func CalculateExpectedShares(networkDifficulty, shareDifficulty int64) int64 {
	if shareDifficulty == 0 {
		return 0
	}
	return networkDifficulty / shareDifficulty
}
