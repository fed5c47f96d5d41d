// Package vardiff implements the VarDiff Controller: per-worker difficulty
// retargeting driven by recent share inter-arrival times.
package vardiff

import (
	"math"
	"time"
)

// Config bounds the retargeting behavior. Field names and defaults mirror
// the tunables named in SPEC_FULL.md's Configuration section.
type Config struct {
	TargetShareTime time.Duration // desired mean inter-arrival time
	Variance        float64       // tolerance band around TargetShareTime, e.g. 0.3
	RetargetPeriod  time.Duration // minimum time between adjustments
	MinDifficulty   float64
	MaxDifficulty   float64
	RingCapacity    int // worker.RecentShares capacity (also owned by core.Engine)
}

// DefaultConfig matches the spec's literal example values (§8 scenario 5).
func DefaultConfig() *Config {
	return &Config{
		TargetShareTime: 15 * time.Second,
		Variance:        0.3,
		RetargetPeriod:  90 * time.Second,
		MinDifficulty:   1.0,
		MaxDifficulty:   1000000.0,
		RingCapacity:    100,
	}
}

// Controller evaluates worker share-timestamp rings and proposes difficulty
// adjustments. It is stateless between invocations: all state lives in the
// core.Worker record's RecentShares ring and LastRetarget timestamp, owned
// by core.Engine.
type Controller struct {
	cfg *Config
}

// New creates a Controller bound to cfg (DefaultConfig() if nil).
func New(cfg *Config) *Controller {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Controller{cfg: cfg}
}

// Evaluate decides whether a worker's difficulty should change, given its
// recent-share ring, current difficulty, and the time of its last retarget.
// It does not mutate anything; callers apply the result through core.Engine.
func (c *Controller) Evaluate(recentShares []time.Time, currentDifficulty float64, lastRetarget, now time.Time) (newDifficulty float64, shouldAdjust bool) {
	ringFull := len(recentShares) >= c.cfg.RingCapacity
	periodElapsed := now.Sub(lastRetarget) >= c.cfg.RetargetPeriod
	if !ringFull && !periodElapsed {
		return currentDifficulty, false
	}
	if len(recentShares) < 3 {
		return currentDifficulty, false
	}

	first := recentShares[0]
	last := recentShares[len(recentShares)-1]
	avg := last.Sub(first).Seconds() / float64(len(recentShares)-1)
	if avg <= 0 {
		return currentDifficulty, false
	}

	ratio := avg / c.cfg.TargetShareTime.Seconds()

	var proposed float64
	switch {
	case ratio < 1-c.cfg.Variance:
		proposed = math.Ceil(currentDifficulty * 1.5)
	case ratio > 1+c.cfg.Variance:
		proposed = math.Floor(currentDifficulty * 0.75)
	default:
		return currentDifficulty, false
	}

	proposed = c.clamp(proposed)
	if proposed == currentDifficulty {
		return currentDifficulty, false
	}
	return proposed, true
}

// clamp bounds a proposed difficulty to [MinDifficulty, MaxDifficulty].
func (c *Controller) clamp(difficulty float64) float64 {
	if difficulty < c.cfg.MinDifficulty {
		return c.cfg.MinDifficulty
	}
	if difficulty > c.cfg.MaxDifficulty {
		return c.cfg.MaxDifficulty
	}
	return difficulty
}

// CheckForcedReset reports whether a share's actual difficulty fell far
// enough below the worker's minimum to force an immediate reset to
// MinDifficulty (and ring clear), per §4.4's `min_difficulty / 4` rule.
func (c *Controller) CheckForcedReset(shareDifficulty float64) bool {
	return shareDifficulty < c.cfg.MinDifficulty/4
}

// MinDifficulty returns the configured floor, used by callers that need to
// apply a forced reset.
func (c *Controller) MinDifficulty() float64 {
	return c.cfg.MinDifficulty
}
