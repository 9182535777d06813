package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/yakoovad/finflow/pkg/logger"
	"go.uber.org/zap"
)

// Promoter moves due delayed events onto the stream.
type Promoter struct {
	producer  *Producer
	interval  time.Duration
	batchSize int64
}

func NewPromoter(producer *Producer, interval time.Duration) *Promoter {
	if interval <= 0 {
		interval = time.Second
	}
	return &Promoter{
		producer:  producer,
		interval:  interval,
		batchSize: 100,
	}
}

// Run blocks until ctx is done.
func (p *Promoter) Run(ctx context.Context) {
	l := logger.FromContext(ctx).With(zap.String("component", "events.promoter"))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.PromoteDue(ctx); err != nil {
				l.Error("promote cycle failed", zap.Error(err))
			}
		}
	}
}

// PromoteDue moves every event whose due time has passed and returns how many were moved.
func (p *Promoter) PromoteDue(ctx context.Context) (int, error) {
	key := delayedKey(p.producer.stream)
	now := p.producer.now().UnixMilli()

	members, err := p.producer.client.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now, 10),
		Count: p.batchSize,
	}).Result()
	if err != nil {
		return 0, errors.Wrap(err, "zrangebyscore")
	}

	moved := 0
	for _, z := range members {
		m, ok := z.Member.(string)
		if !ok {
			continue
		}

		// only the caller that removes the member may publish it
		removed, err := p.producer.client.ZRem(ctx, key, m).Result()
		if err != nil {
			return moved, errors.Wrap(err, "zrem")
		}
		if removed == 0 {
			continue
		}

		var ev Event
		if err = json.Unmarshal([]byte(m), &ev); err != nil {
			logger.FromContext(ctx).Error("dropping malformed delayed event", zap.Error(err))
			continue
		}
		if err = p.producer.add(ctx, ev); err != nil {
			// put it back so the next cycle retries it
			if zerr := p.producer.client.ZAdd(ctx, key, redis.Z{Score: z.Score, Member: m}).Err(); zerr != nil {
				logger.FromContext(ctx).Error("lost delayed event", zap.String("event_id", ev.ID), zap.Error(zerr))
			}
			return moved, err
		}
		moved++
	}

	return moved, nil
}
