package worker

import (
	"context"
	"time"

	"github.com/yakoovad/finflow/internal/events"
	"github.com/yakoovad/finflow/pkg/logger"
	"go.uber.org/zap"
)

type Claimer interface {
	ClaimStale(ctx context.Context, minIdle time.Duration, count int64) ([]events.Event, error)
}

type ReclaimerConfig struct {
	MinIdle   time.Duration
	Interval  time.Duration
	BatchSize int64
}

// Reclaimer picks up messages left pending by a consumer that died before acking them.
type Reclaimer struct {
	claimer Claimer
	worker  *Worker
	cfg     ReclaimerConfig
}

func NewReclaimer(claimer Claimer, worker *Worker, cfg ReclaimerConfig) *Reclaimer {
	if cfg.MinIdle <= 0 {
		cfg.MinIdle = 5 * time.Minute
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Reclaimer{claimer: claimer, worker: worker, cfg: cfg}
}

func (r *Reclaimer) Run(ctx context.Context) {
	l := logger.FromContext(ctx).With(zap.String("component", "worker.reclaimer"))
	l.Info("reclaimer started", zap.Duration("interval", r.cfg.Interval), zap.Duration("min_idle", r.cfg.MinIdle))

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.ReclaimOnce(ctx); err != nil {
				l.Error("reclaim cycle failed", zap.Error(err))
			}
		}
	}
}

func (r *Reclaimer) ReclaimOnce(ctx context.Context) (int, error) {
	evs, err := r.claimer.ClaimStale(ctx, r.cfg.MinIdle, r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	if len(evs) > 0 {
		logger.FromContext(ctx).Info("reclaimed stale events", zap.Int("count", len(evs)))
	}
	for _, ev := range evs {
		r.worker.Handle(ctx, ev)
	}
	return len(evs), nil
}
