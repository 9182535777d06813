package jobs

import (
	"context"

	"github.com/pkg/errors"
	"github.com/yakoovad/finflow/internal/bank"
	"github.com/yakoovad/finflow/internal/events"
	"github.com/yakoovad/finflow/internal/repository"
	"github.com/yakoovad/finflow/pkg/logger"
	"go.uber.org/zap"
)

// CheckConnectionHealth asks the aggregator about the stalest connections, one at a time,
// and records the resulting status. A failing connection never stops the batch.
func (j *Jobs) CheckConnectionHealth(ctx context.Context, _ events.Event) error {
	l := logger.FromContext(ctx)

	conns, err := j.connections.ListStalest(ctx, healthBatchSize)
	if err != nil {
		return errors.Wrap(err, "listing connections")
	}

	counts := make(map[string]int)
	for _, c := range conns {
		cls := bank.Classify(j.provider.ItemStatus(ctx, c.AccessToken))
		counts[string(cls.Status)]++

		if err = j.storeStatus(ctx, c.ID, cls); err != nil {
			l.Error("failed to store connection status",
				zap.String("connection_id", c.ID), zap.Error(err))
			continue
		}

		if cls.Status != c.Status {
			l.Info("connection status changed",
				zap.String("connection_id", c.ID),
				zap.String("from", string(c.Status)),
				zap.String("to", string(cls.Status)),
				zap.String("error_code", cls.Code))
		}
	}

	l.Info("connection health checked", zap.Int("checked", len(conns)), zap.Any("statuses", counts))
	return nil
}

func (j *Jobs) storeStatus(ctx context.Context, connectionID string, cls bank.Classification) error {
	now := j.now()
	return j.connections.UpdateStatus(ctx, &repository.ConnectionStatusUpdate{
		ID:           connectionID,
		Status:       cls.Status,
		ErrorCode:    cls.Code,
		ErrorMessage: cls.Message,
		CheckedAt:    &now,
	})
}
