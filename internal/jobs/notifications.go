package jobs

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/yakoovad/finflow/internal/events"
	"github.com/yakoovad/finflow/internal/model"
	"github.com/yakoovad/finflow/internal/notify"
	"github.com/yakoovad/finflow/internal/repository"
	"github.com/yakoovad/finflow/pkg/logger"
	"go.uber.org/zap"
)

// TransactionsNotification tells every team member about newly synced transactions.
func (j *Jobs) TransactionsNotification(ctx context.Context, ev events.Event) error {
	var p events.TransactionsNotificationPayload
	if err := ev.Decode(&p); err != nil {
		return err
	}
	if len(p.TransactionIDs) == 0 {
		return nil
	}

	team, err := j.teams.Get(ctx, p.TeamID)
	if errors.Is(err, repository.ErrNotFound) {
		logger.FromContext(ctx).Warn("team not found, skipping notification", zap.String("team_id", p.TeamID))
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "loading team")
	}

	members, err := j.teams.GetTeamMembers(ctx, p.TeamID)
	if err != nil {
		return errors.Wrap(err, "listing team members")
	}

	count := len(p.TransactionIDs)
	title := fmt.Sprintf("%d new transaction", count)
	if count != 1 {
		title += "s"
	}

	notified := 0
	for _, m := range members {
		// keyed on the event id, so a retried event skips members already notified
		inserted, err := j.notifications.Create(ctx, &repository.Notification{
			TeamID:  p.TeamID,
			UserID:  m.UserID,
			EventID: ev.ID,
			Type:    model.NotificationTypeTransactions,
			Title:   title,
			Body:    fmt.Sprintf("%s arrived for %s.", title, team.Name),
		})
		if err != nil {
			return errors.Wrapf(err, "creating notification for %s", m.UserID)
		}
		if !inserted {
			continue
		}

		html, err := notify.TransactionsEmail(notify.TransactionsData{
			FullName: m.FullName,
			TeamName: team.Name,
			Count:    count,
		})
		if err != nil {
			return errors.Wrap(err, "rendering email")
		}

		if err = j.emitter.Emit(ctx, events.SendEmail, events.SendEmailPayload{
			To:      m.Email,
			Subject: title,
			HTML:    html,
		}); err != nil {
			return errors.Wrap(err, "emitting email")
		}
		notified++
	}

	logger.FromContext(ctx).Info("team notified",
		zap.String("team_id", p.TeamID),
		zap.Int("members", len(members)),
		zap.Int("notified", notified))
	return nil
}

func (j *Jobs) SendEmail(ctx context.Context, ev events.Event) error {
	var p events.SendEmailPayload
	if err := ev.Decode(&p); err != nil {
		return err
	}

	return j.sender.Send(ctx, notify.Email{To: p.To, Subject: p.Subject, HTML: p.HTML})
}
