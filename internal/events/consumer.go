package events

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/yakoovad/finflow/pkg/logger"
	"go.uber.org/zap"
)

type ConsumerConfig struct {
	Stream    string
	Group     string
	Consumer  string
	DLQStream string
	BatchSize int64
	// Block is how long a read waits for new entries; negative means do not wait.
	Block time.Duration
}

type Consumer struct {
	client *redis.Client
	cfg    ConsumerConfig
}

func NewConsumer(ctx context.Context, client *redis.Client, cfg ConsumerConfig) (*Consumer, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Block == 0 {
		cfg.Block = 5 * time.Second
	}

	c := &Consumer{client: client, cfg: cfg}

	// start at "0" so entries added before the group existed are not skipped
	err := client.XGroupCreateMkStream(ctx, cfg.Stream, cfg.Group, "0").Err()
	if err != nil && !redis.HasErrorPrefix(err, "BUSYGROUP") {
		return nil, errors.Wrap(err, "creating consumer group")
	}

	return c, nil
}

func (c *Consumer) Read(ctx context.Context) ([]Event, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, ">"},
		Count:    c.cfg.BatchSize,
		Block:    c.cfg.Block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading from stream")
	}

	return c.parse(ctx, streams), nil
}

func (c *Consumer) parse(ctx context.Context, streams []redis.XStream) []Event {
	var out []Event
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			ev, err := parseMessage(msg)
			if err != nil {
				logger.FromContext(ctx).Error("dropping malformed message",
					zap.String("stream_id", msg.ID), zap.Error(err))
				_ = c.Ack(ctx, Event{StreamID: msg.ID})
				continue
			}
			out = append(out, ev)
		}
	}
	return out
}

func (c *Consumer) Ack(ctx context.Context, ev Event) error {
	return errors.Wrap(c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, ev.StreamID).Err(), "xack")
}

// Requeue acks ev and appends it again with the attempt counter bumped.
func (c *Consumer) Requeue(ctx context.Context, ev Event, reason string) error {
	if err := c.Ack(ctx, ev); err != nil {
		return errors.Wrap(err, "acking message for requeue")
	}

	ev.Attempt++
	ev.LastError = reason

	return errors.Wrap(c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.Stream,
		Values: ev.values(),
	}).Err(), "xadd requeue")
}

func (c *Consumer) SendDLQ(ctx context.Context, ev Event, reason string) error {
	if err := c.Ack(ctx, ev); err != nil {
		return errors.Wrap(err, "acking message for dlq")
	}

	ev.LastError = reason

	return errors.Wrap(c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.DLQStream,
		Values: ev.values(),
	}).Err(), "xadd dlq")
}

// ClaimStale takes over entries pending longer than minIdle on any consumer.
func (c *Consumer) ClaimStale(ctx context.Context, minIdle time.Duration, count int64) ([]Event, error) {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.cfg.Stream,
		Group:  c.cfg.Group,
		Idle:   minIdle,
		Start:  "-",
		End:    "+",
		Count:  count,
	}).Result()
	if err != nil {
		return nil, errors.Wrap(err, "xpending")
	}
	if len(pending) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(pending))
	for _, p := range pending {
		ids = append(ids, p.ID)
	}

	msgs, err := c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   c.cfg.Stream,
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		MinIdle:  minIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return nil, errors.Wrap(err, "xclaim")
	}

	return c.parse(ctx, []redis.XStream{{Stream: c.cfg.Stream, Messages: msgs}}), nil
}
