package jobs

import (
	"context"
	"log"
	"time"

	"registrar/clearance/internal/clearance"
	"registrar/clearance/internal/config"
)

// StartPermitExpirySweep flips active permits whose expiry has passed to
// expired. The verifier already rejects stale permits on its own clock;
// the sweep keeps the stored rows in step for reporting.
func StartPermitExpirySweep(ctx context.Context, cfg config.Config, store clearance.Store) {
	if !cfg.ExpirySweepEnabled {
		return
	}
	runSweep(ctx, "permit expiry sweep", cfg.ExpirySweepInterval, cfg.SweepTimeout, func(tickCtx context.Context, now time.Time) (int64, error) {
		return store.MarkExpiredPermits(tickCtx, now)
	})
}

// StartRevocationSweep revokes active permits for students that have
// unsigned requirements again, catching revocations lost when the
// in-band trigger failed.
func StartRevocationSweep(ctx context.Context, cfg config.Config, svc *clearance.Service) {
	if !cfg.RevocationSweep {
		return
	}
	runSweep(ctx, "revocation sweep", cfg.RevocationInterval, cfg.SweepTimeout, func(tickCtx context.Context, _ time.Time) (int64, error) {
		return svc.ReconcileRevocations(tickCtx)
	})
}

// StartDeadlineSweep marks incomplete course requirements as missing once
// the clearance period deadline has passed.
func StartDeadlineSweep(ctx context.Context, cfg config.Config, store clearance.Store) {
	if !cfg.DeadlineSweepEnabled {
		return
	}
	runSweep(ctx, "deadline sweep", cfg.DeadlineInterval, cfg.SweepTimeout, func(tickCtx context.Context, now time.Time) (int64, error) {
		return store.MarkMissingPastDeadline(tickCtx, now)
	})
}

func runSweep(ctx context.Context, name string, interval, timeout time.Duration, fn func(context.Context, time.Time) (int64, error)) {
	if interval <= 0 {
		interval = time.Minute
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				now := time.Now().UTC()
				tickCtx, cancel := context.WithTimeout(ctx, timeout)
				count, err := fn(tickCtx, now)
				cancel()
				if err != nil {
					log.Printf("%s error: %v", name, err)
					continue
				}
				if count > 0 {
					log.Printf("%s updated %d rows", name, count)
				}
			}
		}
	}()
}
