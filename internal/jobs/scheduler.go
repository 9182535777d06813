package jobs

import (
	"context"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/yakoovad/finflow/internal/events"
	"github.com/yakoovad/finflow/pkg/logger"
	"go.uber.org/zap"
)

// Schedule binds a cron expression to the event it emits.
type Schedule struct {
	Name  string `json:"name"`
	Event string `json:"event"`
	Cron  string `json:"cron"`
}

var DefaultSchedules = []Schedule{
	{Name: "bank-connection-health", Event: events.CheckConnectionHealth, Cron: "0 */8 * * *"},
	{Name: "bank-sync-scheduler", Event: events.BankSyncScheduler, Cron: "0 */6 * * *"},
	{Name: "transaction-categorizer", Event: events.CategorizeTransactions, Cron: "*/30 * * * *"},
}

type UpcomingRun struct {
	Schedule
	Next time.Time `json:"next"`
}

// Locker lets exactly one scheduler replica fire a given run.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type Scheduler struct {
	cron      *cron.Cron
	emitter   events.Emitter
	locker    Locker
	schedules []Schedule
	log       *zap.Logger
}

func NewScheduler(emitter events.Emitter, locker Locker, schedules []Schedule, log *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:      cron.New(),
		emitter:   emitter,
		locker:    locker,
		schedules: schedules,
		log:       log,
	}

	for _, sc := range schedules {
		if _, err := s.cron.AddFunc(sc.Cron, s.fire(sc)); err != nil {
			return nil, errors.Wrapf(err, "adding schedule %s", sc.Name)
		}
	}

	return s, nil
}

func (s *Scheduler) fire(sc Schedule) func() {
	return func() {
		ctx := logger.WithLogger(context.Background(), s.log.With(zap.String("schedule", sc.Name)))
		if err := s.Fire(ctx, sc, time.Now()); err != nil {
			s.log.Error("scheduled run failed", zap.String("schedule", sc.Name), zap.Error(err))
		}
	}
}

// Fire emits the schedule's event for the run due at t, unless another replica already did.
func (s *Scheduler) Fire(ctx context.Context, sc Schedule, t time.Time) error {
	if s.locker != nil {
		key := "cron:" + sc.Name + ":" + strconv.FormatInt(t.Truncate(time.Minute).Unix(), 10)
		ok, err := s.locker.Acquire(ctx, key, time.Hour)
		if err != nil {
			return errors.Wrap(err, "acquiring run lock")
		}
		if !ok {
			logger.FromContext(ctx).Debug("run already fired elsewhere")
			return nil
		}
	}

	if err := s.emitter.Emit(ctx, sc.Event, struct{}{}); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("scheduled run emitted", zap.String("event", sc.Event))
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running fire funcs to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Upcoming returns each schedule with its next fire time after now.
func Upcoming(schedules []Schedule, now time.Time) ([]UpcomingRun, error) {
	out := make([]UpcomingRun, 0, len(schedules))
	for _, sc := range schedules {
		parsed, err := cron.ParseStandard(sc.Cron)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing schedule %s", sc.Name)
		}
		out = append(out, UpcomingRun{Schedule: sc, Next: parsed.Next(now)})
	}
	return out, nil
}

type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, key, "1", ttl).Result()
}
