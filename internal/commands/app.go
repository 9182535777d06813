package commands

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/yakoovad/finflow/internal/auth"
	"github.com/yakoovad/finflow/internal/config"
	"github.com/yakoovad/finflow/internal/db"
	"github.com/yakoovad/finflow/internal/id"
	"github.com/yakoovad/finflow/internal/repository"
	"github.com/yakoovad/finflow/pkg/logger"
	"go.uber.org/zap"
)

// app is the process-wide state every subcommand starts from.
type app struct {
	cfg    config.Config
	logger *zap.Logger
}

func bootstrap() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "loading config")
	}

	l, err := logger.New(cfg.Env)
	if err != nil {
		return nil, errors.Wrap(err, "creating logger")
	}
	zap.ReplaceGlobals(l)

	if err = id.Init(cfg.NodeID); err != nil {
		return nil, errors.Wrap(err, "initialising id generator")
	}

	if cfg.Auth.TokenSecret != "" {
		auth.TokenSecretKey = cfg.Auth.TokenSecret
	}

	return &app{cfg: cfg, logger: l}, nil
}

func (a *app) context(ctx context.Context) context.Context {
	return logger.WithLogger(ctx, a.logger)
}

func (a *app) pool(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := db.NewPool(ctx, a.cfg.DB)
	if err != nil {
		return nil, err
	}
	a.logger.Info("database connection established")
	return pool, nil
}

func (a *app) redis(ctx context.Context) (*redis.Client, error) {
	opts, err := redis.ParseURL(a.cfg.Events.RedisURL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing redis url")
	}

	client := redis.NewClient(opts)
	if err = client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

type repos struct {
	teams         repository.TeamRepository
	users         repository.UserRepository
	invites       repository.InviteRepository
	connections   repository.BankConnectionRepository
	accounts      repository.BankAccountRepository
	transactions  repository.TransactionRepository
	recurring     repository.RecurringTransactionRepository
	notifications repository.NotificationRepository
	catalog       repository.CatalogRepository
}

func newRepos(pool *pgxpool.Pool) repos {
	return repos{
		teams:         repository.NewPgxTeamRepository(pool),
		users:         repository.NewPgxUserRepository(pool),
		invites:       repository.NewPgxInviteRepository(pool),
		connections:   repository.NewPgxBankConnectionRepository(pool),
		accounts:      repository.NewPgxBankAccountRepository(pool),
		transactions:  repository.NewPgxTransactionRepository(pool),
		recurring:     repository.NewPgxRecurringTransactionRepository(pool),
		notifications: repository.NewPgxNotificationRepository(pool),
		catalog:       repository.NewPgxCatalogRepository(pool),
	}
}
