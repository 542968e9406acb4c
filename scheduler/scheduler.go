package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coreybb/quire/processing"
)

const DefaultInterval = time.Minute

// StaleReclaimer fails busy generations whose lease started before cutoff.
type StaleReclaimer interface {
	ReclaimStaleGenerations(ctx context.Context, cutoff time.Time, message string) (int64, error)
}

// Reaper recovers projects left in a busy generation status by a crashed or
// abandoned run.
type Reaper struct {
	store    StaleReclaimer
	lease    time.Duration
	interval time.Duration
	now      func() time.Time
}

// New creates a Reaper. Zero durations fall back to the defaults.
func New(store StaleReclaimer, lease, interval time.Duration) *Reaper {
	if lease <= 0 {
		lease = processing.DefaultLeaseTimeout
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reaper{
		store:    store,
		lease:    lease,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// HandleTick is an HTTP handler that triggers a reaper tick.
// Used by an external cron or manual curl requests.
func (r *Reaper) HandleTick(w http.ResponseWriter, req *http.Request) {
	slog.InfoContext(req.Context(), "reaper tick triggered via HTTP")

	reclaimed, err := r.Tick(req.Context())
	if err != nil {
		slog.ErrorContext(req.Context(), "reaper tick failed", "error", err)
		http.Error(w, "scheduler tick failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK: reclaimed %d generations", reclaimed)
}

// Tick runs a single cycle and returns the number of projects reclaimed.
func (r *Reaper) Tick(ctx context.Context) (int64, error) {
	cutoff := r.now().Add(-r.lease)
	n, err := r.store.ReclaimStaleGenerations(ctx, cutoff, processing.LeaseExpiredMessage)
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim stale generations: %w", err)
	}
	if n > 0 {
		slog.WarnContext(ctx, "reclaimed stale generations", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

// Run ticks on the configured interval until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	slog.Info("stale generation reaper started", "interval", r.interval, "lease", r.lease)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Tick(ctx); err != nil {
				slog.ErrorContext(ctx, "reaper tick failed", "error", err)
			}
		}
	}
}
