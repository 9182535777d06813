package worker

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/yakoovad/finflow/internal/events"
	"github.com/yakoovad/finflow/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Queue is the subset of the events consumer the worker drives.
type Queue interface {
	Read(ctx context.Context) ([]events.Event, error)
	Ack(ctx context.Context, ev events.Event) error
	Requeue(ctx context.Context, ev events.Event, reason string) error
	SendDLQ(ctx context.Context, ev events.Event, reason string) error
}

type Config struct {
	MaxAttempts int
}

type Worker struct {
	queue    Queue
	registry *Registry
	cfg      Config
	tracer   trace.Tracer
}

func New(queue Queue, registry *Registry, cfg Config) *Worker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Worker{
		queue:    queue,
		registry: registry,
		cfg:      cfg,
		tracer:   otel.Tracer("github.com/yakoovad/finflow/internal/worker"),
	}
}

// Run reads and handles batches until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	l := logger.FromContext(ctx)
	l.Info("worker started", zap.Strings("events", w.registry.Names()))

	for {
		select {
		case <-ctx.Done():
			l.Info("worker stopping")
			return nil
		default:
		}

		evs, err := w.queue.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			l.Error("failed to read events", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		for _, ev := range evs {
			w.Handle(ctx, ev)
		}
	}
}

// Handle runs the event's handler and settles the message: ack on success,
// requeue on failure, dead letter once attempts are exhausted.
func (w *Worker) Handle(ctx context.Context, ev events.Event) {
	l := logger.FromContext(ctx).With(
		zap.String("event", ev.Name),
		zap.String("event_id", ev.ID),
		zap.Int("attempt", ev.Attempt),
	)
	ctx = logger.WithLogger(ctx, l)

	h, ok := w.registry.Lookup(ev.Name)
	if !ok {
		l.Warn("no handler registered, dropping event")
		if err := w.queue.Ack(ctx, ev); err != nil {
			l.Error("failed to ack event", zap.Error(err))
		}
		return
	}

	start := time.Now()
	err := w.process(ctx, h, ev)
	if err == nil {
		l.Info("event processed", zap.Duration("took", time.Since(start)))
		if ackErr := w.queue.Ack(ctx, ev); ackErr != nil {
			l.Warn("failed to ack event", zap.Error(ackErr))
		}
		return
	}

	if ev.Attempt >= w.cfg.MaxAttempts {
		l.Error("event failed, max attempts reached", zap.Error(err))
		if dlqErr := w.queue.SendDLQ(ctx, ev, err.Error()); dlqErr != nil {
			l.Error("failed to dead letter event", zap.Error(dlqErr))
		}
		return
	}

	l.Warn("event failed, requeueing", zap.Error(err))
	if reqErr := w.queue.Requeue(ctx, ev, err.Error()); reqErr != nil {
		l.Error("failed to requeue event", zap.Error(reqErr))
	}
}

func (w *Worker) process(ctx context.Context, h Handler, ev events.Event) (err error) {
	ctx, span := w.tracer.Start(ctx, "event "+ev.Name, trace.WithAttributes(
		attribute.String("event.name", ev.Name),
		attribute.String("event.id", ev.ID),
		attribute.Int("event.attempt", ev.Attempt),
	))
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	return h(ctx, ev)
}
