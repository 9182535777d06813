package commands

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/yakoovad/finflow/internal/bank"
	"github.com/yakoovad/finflow/internal/cache"
	"github.com/yakoovad/finflow/internal/db"
	"github.com/yakoovad/finflow/internal/events"
	"github.com/yakoovad/finflow/internal/jobs"
	"github.com/yakoovad/finflow/internal/notify"
	"github.com/yakoovad/finflow/internal/telemetry"
	"github.com/yakoovad/finflow/internal/worker"
	"go.uber.org/zap"
)

func newWorkerCommand() *cobra.Command {
	var noScheduler bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume background jobs and fire cron schedules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.logger.Sync()

			ctx, stop := signal.NotifyContext(a.context(cmd.Context()), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runWorker(ctx, a, !noScheduler)
		},
	}

	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "only consume events, do not fire cron schedules")

	return cmd
}

func runWorker(ctx context.Context, a *app, withScheduler bool) error {
	a.logger.Info("starting worker", zap.String("consumer", a.cfg.Events.Consumer))

	tel, err := telemetry.Setup(ctx, a.cfg.OTel)
	if err != nil {
		return err
	}
	defer tel.Shutdown(context.Background())

	pool, err := a.pool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	rdb, err := a.redis(ctx)
	if err != nil {
		return err
	}
	defer rdb.Close()

	consumer, err := events.NewConsumer(ctx, rdb, events.ConsumerConfig{
		Stream:    a.cfg.Events.Stream,
		Group:     a.cfg.Events.Group,
		Consumer:  a.cfg.Events.Consumer,
		DLQStream: a.cfg.Events.DLQStream,
	})
	if err != nil {
		return err
	}
	producer := events.NewProducer(rdb, a.cfg.Events.Stream)

	if !a.cfg.Plaid.Enabled() {
		a.logger.Warn("plaid credentials missing, bank calls will fail")
	}

	r := newRepos(pool)
	registry := worker.NewRegistry()
	jobs.New(db.NewPgxTransactor(pool)).
		WithConnectionRepo(r.connections).
		WithAccountRepo(r.accounts).
		WithTransactionRepo(r.transactions).
		WithRecurringRepo(r.recurring).
		WithTeamRepo(r.teams).
		WithNotificationRepo(r.notifications).
		WithProvider(bank.NewPlaidProvider(a.cfg.Plaid)).
		WithEmitter(producer).
		WithSender(notify.NewSender(a.cfg.Email)).
		WithInvalidator(cache.NewPublisher(rdb, a.cfg.Cache.Channel)).
		WithMaxAttempts(a.cfg.Events.MaxAttempts).
		Register(registry)

	w := worker.New(consumer, registry, worker.Config{MaxAttempts: a.cfg.Events.MaxAttempts})

	if withScheduler {
		scheduler, err := jobs.NewScheduler(producer, jobs.NewRedisLocker(rdb), jobs.DefaultSchedules, a.logger)
		if err != nil {
			return err
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		events.NewPromoter(producer, 0).Run(ctx)
	}()
	go func() {
		defer wg.Done()
		worker.NewReclaimer(consumer, w, worker.ReclaimerConfig{}).Run(ctx)
	}()

	err = w.Run(ctx)
	wg.Wait()
	return err
}
