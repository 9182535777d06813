package cache

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/yakoovad/finflow/pkg/logger"
	"go.uber.org/zap"
)

// Publisher tells every API process that a team's transactions changed.
// The payload is the team id.
type Publisher struct {
	client  redis.UniversalClient
	channel string
}

func NewPublisher(client redis.UniversalClient, channel string) *Publisher {
	return &Publisher{client: client, channel: channel}
}

func (p *Publisher) Invalidate(ctx context.Context, teamID string) error {
	return errors.Wrapf(p.client.Publish(ctx, p.channel, teamID).Err(), "publishing invalidation for team %s", teamID)
}

// Subscribe drops a team's pages whenever its id is published on channel.
// It returns once the subscription is confirmed; messages are consumed until ctx is done.
func (c *Transactions) Subscribe(ctx context.Context, client redis.UniversalClient, channel string) error {
	sub := client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return errors.Wrapf(err, "subscribing to %s", channel)
	}

	l := logger.FromContext(ctx).With(zap.String("channel", channel))
	msgs := sub.Channel()

	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				c.Invalidate(msg.Payload)
				l.Debug("transaction cache invalidated", zap.String("team_id", msg.Payload))
			}
		}
	}()

	return nil
}
