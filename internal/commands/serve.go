package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/yakoovad/finflow/internal/api"
	"github.com/yakoovad/finflow/internal/cache"
	"github.com/yakoovad/finflow/internal/db"
	"github.com/yakoovad/finflow/internal/events"
	"github.com/yakoovad/finflow/internal/service"
	"github.com/yakoovad/finflow/internal/telemetry"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var version = "dev"

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.logger.Sync()

			ctx, stop := signal.NotifyContext(a.context(cmd.Context()), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, a)
		},
	}
}

func runServe(ctx context.Context, a *app) error {
	a.logger.Info("starting api", zap.String("env", a.cfg.Env))

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

	txCache := cache.NewTransactions(a.cfg.Cache.Size, a.cfg.Cache.TTL)
	if err = txCache.Subscribe(ctx, rdb, a.cfg.Cache.Channel); err != nil {
		return err
	}

	transactor := db.NewPgxTransactor(pool)
	r := newRepos(pool)
	producer := events.NewProducer(rdb, a.cfg.Events.Stream)

	transactions := service.NewTransactionService(transactor).WithTransactionRepo(r.transactions).WithCache(txCache)
	team := service.NewTeamService(transactor).WithTeamRepo(r.teams).WithUserRepo(r.users).WithInviteRepo(r.invites).WithEmitter(producer)
	recurring := service.NewRecurringService(transactor).WithRecurringRepo(r.recurring).WithTransactionRepo(r.transactions).WithCache(txCache)
	bank := service.NewBankService().WithConnectionRepo(r.connections).WithAccountRepo(r.accounts).WithEmitter(producer)
	notifications := service.NewNotificationService().WithNotificationRepo(r.notifications)
	user := service.NewUserService().WithUserRepo(r.users)

	handler := api.NewHandler(a.logger).
		WithHealthChecker(api.MustNewHealthChecker(version, api.PostgresCheck(pool), api.RedisCheck(rdb))).
		WithTransactionService(transactions).
		WithTeamService(team).
		WithRecurringService(recurring).
		WithBankService(bank).
		WithNotificationService(notifications).
		WithUserService(user)

	e := echo.New()
	e.HideBanner = true
	handler.RegisterRoutes(e)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", zap.String("port", a.cfg.Port))
		if err := e.Start(":" + a.cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err = <-errCh:
		return errors.Wrap(err, "serving http")
	case <-ctx.Done():
	}

	a.logger.Info("shutting down api")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
