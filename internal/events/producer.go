package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/yakoovad/finflow/internal/id"
	"github.com/yakoovad/finflow/pkg/logger"
	"go.uber.org/zap"
)

// Emitter publishes application events.
type Emitter interface {
	Emit(ctx context.Context, name string, payload any, opts ...EmitOption) error
}

type emitOptions struct {
	delay time.Duration
}

type EmitOption func(*emitOptions)

// WithDelay holds the event back until d has passed.
func WithDelay(d time.Duration) EmitOption {
	return func(o *emitOptions) {
		o.delay = d
	}
}

type Producer struct {
	client *redis.Client
	stream string
	now    func() time.Time
}

func NewProducer(client *redis.Client, stream string) *Producer {
	return &Producer{
		client: client,
		stream: stream,
		now:    time.Now,
	}
}

func delayedKey(stream string) string {
	return stream + ":delayed"
}

func (p *Producer) Emit(ctx context.Context, name string, payload any, opts ...EmitOption) error {
	o := emitOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "encoding %s payload", name)
	}

	ev := Event{
		ID:      strconv.FormatInt(id.New(), 10),
		Name:    name,
		Payload: raw,
		Attempt: 1,
	}

	l := logger.FromContext(ctx).With(zap.String("event", name), zap.String("event_id", ev.ID))

	if o.delay > 0 {
		member, err := json.Marshal(ev)
		if err != nil {
			return errors.Wrap(err, "encoding delayed event")
		}
		due := p.now().Add(o.delay)
		if err = p.client.ZAdd(ctx, delayedKey(p.stream), redis.Z{
			Score:  float64(due.UnixMilli()),
			Member: string(member),
		}).Err(); err != nil {
			return errors.Wrap(err, "zadd delayed event")
		}
		l.Debug("scheduled delayed event", zap.Duration("delay", o.delay))
		return nil
	}

	if err = p.add(ctx, ev); err != nil {
		return err
	}
	l.Debug("emitted event")
	return nil
}

func (p *Producer) add(ctx context.Context, ev Event) error {
	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: ev.values(),
	}).Err(); err != nil {
		return errors.Wrap(err, "xadd event")
	}
	return nil
}

// DelayOf resolves the delay carried by opts.
func DelayOf(opts ...EmitOption) time.Duration {
	o := emitOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	return o.delay
}
