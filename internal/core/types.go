// Package core implements the pool's single serializing authority: the
// canonical Miner, Worker, and Round tables shared by the Session Authority,
// the Share Ledger, and the Accounting Engine.
package core

import "time"

// Miner is a registered pool account, keyed by a process-unique monotonic id.
type Miner struct {
	ID            int64
	Username      string
	PayoutAddress string

	AcceptedShares int64
	RejectedShares int64
	StaleShares    int64

	UnpaidBalance int64 // satoshis, credited by the Accounting Engine
	PaidBalance   int64 // satoshis, sum of confirmed payments
	LastPayoutAt  time.Time

	Banned    bool
	BanReason string
	BanUntil  time.Time

	invalidShares      int64
	invalidWindowStart time.Time

	Workers   map[int64]struct{}
	CreatedAt time.Time
}

// Clone returns a value copy safe to hand to callers outside the Engine goroutine.
func (m *Miner) Clone() *Miner {
	if m == nil {
		return nil
	}
	cp := *m
	cp.Workers = make(map[int64]struct{}, len(m.Workers))
	for id := range m.Workers {
		cp.Workers[id] = struct{}{}
	}
	return &cp
}

// Worker is one physical/logical mining device owned by exactly one Miner.
type Worker struct {
	ID      int64
	MinerID int64
	Name    string
	IP      string

	ConnectedAt    time.Time
	LastActivityAt time.Time
	SessionID      string

	Difficulty   float64
	RecentShares []time.Time // bounded ring, oldest first
	LastRetarget time.Time

	Accepted int64
	Rejected int64
	Stale    int64
}

// Clone returns a value copy safe to hand to callers outside the Engine goroutine.
func (w *Worker) Clone() *Worker {
	if w == nil {
		return nil
	}
	cp := *w
	cp.RecentShares = append([]time.Time(nil), w.RecentShares...)
	return &cp
}

// Round is the interval between two blocks found by this pool.
type Round struct {
	ID          int64
	StartTime   time.Time
	EndTime     time.Time
	MinerShares map[int64]int64
	TotalShares int64

	BlockHeight int64
	BlockHash   string
	BlockReward int64
	Complete    bool
}

// Clone returns a value copy safe to hand to callers outside the Engine goroutine.
func (r *Round) Clone() *Round {
	if r == nil {
		return nil
	}
	cp := *r
	cp.MinerShares = make(map[int64]int64, len(r.MinerShares))
	for k, v := range r.MinerShares {
		cp.MinerShares[k] = v
	}
	return &cp
}

// PoolStatistics is a read-only projection mirroring pool.cpp's statistics
// accumulation, exposed through the control surface and the Influx-backed
// metrics path.
type PoolStatistics struct {
	TotalWorkers       int
	TotalMiners        int
	CurrentRoundShares int64
	NetworkDifficulty  float64
	LastBlockFoundAt   time.Time
	LastBlockHeight    int64
	OpenRoundID        int64
}

// ShareOutcome describes the result of validating one share, fed back into
// the Worker/Miner counters by RecordShareOutcome.
type ShareOutcome struct {
	Accepted  bool
	Stale     bool
	Duplicate bool
	LowDiff   bool
	IsBlock   bool
}
