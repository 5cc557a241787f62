package chain

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Alerter is pinged when a sweep marks chains stale and when detection
// creates a chain that needs eyes right away. Implementations are
// best-effort.
type Alerter interface {
	StaleChains(ctx context.Context, count int) error
	UrgentChain(ctx context.Context, c *Chain) error
}

// SweepConfig holds the staleness policy. The window is explicit here
// rather than buried in the batch runner: an active chain untouched for
// longer than StaleAfter flips to stale.
type SweepConfig struct {
	StaleAfter time.Duration
}

// DefaultSweepConfig returns the standard 14 day inactivity window.
func DefaultSweepConfig() SweepConfig {
	return SweepConfig{StaleAfter: 14 * 24 * time.Hour}
}

// Sweeper runs the periodic, shipment-wide staleness sweep. Scheduling is
// the caller's concern.
type Sweeper struct {
	repo  Repository
	cfg   SweepConfig
	alert Alerter
	now   func() time.Time
}

// NewSweeper builds a sweeper over the chain repository. alert may be nil.
func NewSweeper(repo Repository, cfg SweepConfig, alert Alerter) *Sweeper {
	if cfg.StaleAfter <= 0 {
		cfg = DefaultSweepConfig()
	}
	return &Sweeper{repo: repo, cfg: cfg, alert: alert, now: time.Now}
}

// MarkStaleChains flips active chains with no activity inside the window to
// stale and returns how many were flipped.
func (sw *Sweeper) MarkStaleChains(ctx context.Context) (int, error) {
	cutoff := sw.now().Add(-sw.cfg.StaleAfter)
	n, err := sw.repo.MarkStaleBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("mark stale chains: %w", err)
	}
	if n > 0 {
		slog.Info("stale sweep complete", "marked", n, "window", sw.cfg.StaleAfter)
		if sw.alert != nil {
			if err := sw.alert.StaleChains(ctx, n); err != nil {
				slog.Warn("stale alert failed", "error", err)
			}
		}
	}
	return n, nil
}
