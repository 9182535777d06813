package api

import (
	"context"
	"time"

	"github.com/hellofresh/health-go/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const checkTimeout = 2 * time.Second

type HealthChecker interface {
	HealthCheck() echo.HandlerFunc
}

type healthChecker struct {
	health *health.Health
}

func MustNewHealthChecker(version string, checks ...health.Config) HealthChecker {
	h, err := health.New(health.WithComponent(health.Component{Name: "finflow", Version: version}))
	if err != nil {
		panic(errors.Wrap(err, "creating health checker"))
	}

	for _, check := range checks {
		if err = h.Register(check); err != nil {
			panic(errors.Wrapf(err, "registering health check %s", check.Name))
		}
	}

	return &healthChecker{
		health: h,
	}
}

func (h *healthChecker) HealthCheck() echo.HandlerFunc {
	return echo.WrapHandler(h.health.Handler())
}

func PostgresCheck(pool *pgxpool.Pool) health.Config {
	return health.Config{
		Name:    "postgres",
		Timeout: checkTimeout,
		Check: func(ctx context.Context) error {
			return pool.Ping(ctx)
		},
	}
}

// RedisCheck is soft: the API keeps serving reads while the bus is down.
func RedisCheck(client *redis.Client) health.Config {
	return health.Config{
		Name:      "redis",
		Timeout:   checkTimeout,
		SkipOnErr: true,
		Check: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
	}
}
