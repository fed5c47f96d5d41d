// Package work implements the Work Director: block-template acquisition,
// coinbase/Merkle job construction, and job broadcast/staleness tracking.
package work

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/INT-devs/mining-pool/internal/bitcoin"
	"github.com/INT-devs/mining-pool/pkg/log"
)

// Config bounds job construction and retention.
type Config struct {
	PoolAddress     string
	ChainParams     *chaincfg.Params
	ExtraNonce1Size int // bytes, >= 4
	ExtraNonce2Size int // bytes, 4 recommended
	StaleWindow     time.Duration
}

// DefaultConfig mirrors the spec's recommended widths and 5-minute stale window.
func DefaultConfig() *Config {
	return &Config{
		ExtraNonce1Size: 4,
		ExtraNonce2Size: 4,
		StaleWindow:     5 * time.Minute,
		ChainParams:     &chaincfg.MainNetParams,
	}
}

// Template is the ChainNode's response to a template request: the raw
// btcjson template plus a coinbase transaction built against a zero
// placeholder extranonce, from which coinb1/coinb2 are split.
type Template struct {
	Raw           *btcjson.GetBlockTemplateResult
	PlaceholderTx *wire.MsgTx
	Coinb1        string
	Coinb2        string
}

// Job is the mining problem currently offered to workers.
type Job struct {
	ID            string
	Height        int64
	CoinbaseValue int64
	Template      *btcjson.GetBlockTemplateResult
	Coinb1        string
	Coinb2        string
	MerkleBranch  []chainhash.Hash
	Version       string // hex, big-endian as broadcast
	PrevHash      string // hex, stratum byte-reversed
	NBits         string
	NTime         string
	NetworkTarget []byte
	CreatedAt     time.Time
	CleanJobs     bool
}

// Director owns the current job slot and the stale-window retirement list.
type Director struct {
	cfg    *Config
	chain  ChainNode
	logger *log.Logger

	mu      sync.RWMutex
	current *Job
	retired map[string]*Job

	jobCounter uint64
	broadcast  chan *Job
}

// New creates a Director bound to chain (DefaultConfig() if cfg is nil).
func New(cfg *Config, chain ChainNode, logger *log.Logger) *Director {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Director{
		cfg:       cfg,
		chain:     chain,
		logger:    logger.WithComponent("work.director"),
		retired:   make(map[string]*Job),
		broadcast: make(chan *Job, 64),
	}
}

// Broadcast returns the channel of newly-constructed jobs for the Session
// Authority to push as mining.notify.
func (d *Director) Broadcast() <-chan *Job {
	return d.broadcast
}

// ExtraNonce1Size returns the configured extranonce1 width in bytes.
func (d *Director) ExtraNonce1Size() int {
	return d.cfg.ExtraNonce1Size
}

// ExtraNonce2Size returns the configured extranonce2 width in bytes, reported
// to miners in the mining.subscribe response.
func (d *Director) ExtraNonce2Size() int {
	return d.cfg.ExtraNonce2Size
}

// CurrentJob returns the currently offered job, or nil if none yet.
func (d *Director) CurrentJob() *Job {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.current
}

// LookupJob finds a job by id among the current job and those still inside
// the stale window. Returns (job, isCurrent, ok).
func (d *Director) LookupJob(id string) (*Job, bool, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.current != nil && d.current.ID == id {
		return d.current, true, true
	}
	if j, ok := d.retired[id]; ok {
		if time.Since(j.CreatedAt) <= d.cfg.StaleWindow {
			return j, false, true
		}
		return nil, false, false
	}
	return nil, false, false
}

// Refresh fetches a new template from the ChainNode and, if it yields a
// different previous-block-hash than the current job, constructs and
// broadcasts a new one. forceClean forces clean_jobs=true (used after this
// pool's own block submission and on ChainNode tip notifications).
func (d *Director) Refresh(ctx context.Context, forceClean bool) (*Job, error) {
	tmpl, err := d.chain.GetTemplate(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch template: %w", err)
	}

	d.mu.RLock()
	prev := d.current
	d.mu.RUnlock()

	newTip := prev == nil || prev.Template.PreviousHash != tmpl.Raw.PreviousHash
	if !newTip && !forceClean {
		return prev, nil
	}

	job, err := d.buildJob(tmpl, forceClean || newTip)
	if err != nil {
		return nil, fmt.Errorf("build job: %w", err)
	}

	d.mu.Lock()
	if prev != nil {
		d.retired[prev.ID] = prev
		d.evictStaleLocked()
	}
	d.current = job
	d.mu.Unlock()

	d.logger.LogJobDistribution(job.ID, job.Height, job.CleanJobs, 0)

	select {
	case d.broadcast <- job:
	default:
		d.logger.Warn("broadcast channel full, dropping oldest notification is caller's responsibility")
	}

	return job, nil
}

func (d *Director) evictStaleLocked() {
	cutoff := time.Now().Add(-d.cfg.StaleWindow)
	for id, j := range d.retired {
		if j.CreatedAt.Before(cutoff) {
			delete(d.retired, id)
		}
	}
}

func (d *Director) buildJob(tmpl *Template, clean bool) (*Job, error) {
	raw := tmpl.Raw

	coinbaseValue := int64(0)
	if raw.CoinbaseValue != nil {
		coinbaseValue = *raw.CoinbaseValue
	}

	txHashes := make([]chainhash.Hash, 0, len(raw.Transactions)+1)
	txHashes = append(txHashes, tmpl.PlaceholderTx.TxHash())
	for _, tx := range raw.Transactions {
		h, err := chainhash.NewHashFromStr(tx.Hash)
		if err != nil {
			return nil, fmt.Errorf("invalid template tx hash %q: %w", tx.Hash, err)
		}
		txHashes = append(txHashes, *h)
	}
	branch := bitcoin.GetMerkleBranch(txHashes, 0)

	d.jobCounter++
	id := fmt.Sprintf("%08x", d.jobCounter)

	prevHash, err := chainhash.NewHashFromStr(raw.PreviousHash)
	if err != nil {
		return nil, fmt.Errorf("invalid previous hash: %w", err)
	}

	job := &Job{
		ID:            id,
		Height:        raw.Height,
		CoinbaseValue: coinbaseValue,
		Template:      raw,
		Coinb1:        tmpl.Coinb1,
		Coinb2:        tmpl.Coinb2,
		MerkleBranch:  branch,
		Version:       fmt.Sprintf("%08x", uint32(raw.Version)),
		PrevHash:      prevHash.String(),
		NBits:         raw.Bits,
		NTime:         fmt.Sprintf("%08x", uint32(raw.CurTime)),
		NetworkTarget: bitcoin.DifficultyToTarget(0), // overwritten below if Target parses
		CreatedAt:     time.Now(),
		CleanJobs:     clean,
	}

	if target, err := hex.DecodeString(padHex(raw.Target)); err == nil && len(target) == 32 {
		job.NetworkTarget = target
	}

	return job, nil
}

// padHex left-pads a template target to 64 hex characters (32 bytes).
func padHex(s string) string {
	for len(s) < 64 {
		s = "0" + s
	}
	return s
}

// NextExtraNonce1 hands out a globally-unique, fixed-width extranonce1 for a
// new session. Grounded on a monotonic counter combined with process-start
// entropy rather than wall-clock seconds, per §4.1's fix note: wall-clock
// seconds collide under concurrent subscribes.
func NextExtraNonce1(size int) string {
	n := atomic.AddUint64(&extraNonceCounter, 1)
	buf := make([]byte, size)
	mixed := n ^ processEntropy
	for i := size - 1; i >= 0 && mixed != 0; i-- {
		buf[i] = byte(mixed)
		mixed >>= 8
	}
	return hex.EncodeToString(buf)
}

var (
	extraNonceCounter uint64
	processEntropy    = uint64(time.Now().UnixNano())
)
