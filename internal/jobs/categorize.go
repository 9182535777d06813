package jobs

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/yakoovad/finflow/internal/categorize"
	"github.com/yakoovad/finflow/internal/events"
	"github.com/yakoovad/finflow/internal/repository"
	"github.com/yakoovad/finflow/pkg/logger"
	"go.uber.org/zap"
)

// CategorizeTransactions assigns categories to uncategorized transactions,
// then refreshes recurring series for teams with recent activity.
func (j *Jobs) CategorizeTransactions(ctx context.Context, _ events.Event) error {
	l := logger.FromContext(ctx)

	txs, err := j.transactions.ListUncategorized(ctx, categorizeBatchSize)
	if err != nil {
		return errors.Wrap(err, "listing uncategorized transactions")
	}

	categorized := 0
	touched := make(map[string]struct{})
	for _, t := range txs {
		category := categorize.Categorize(t.Name, t.MerchantName)
		if err = j.transactions.SetCategory(ctx, t.ID, category); err != nil {
			l.Error("failed to set category", zap.String("transaction_id", t.ID), zap.Error(err))
			continue
		}
		touched[t.TeamID] = struct{}{}
		categorized++
	}
	for teamID := range touched {
		j.invalidate(ctx, teamID)
	}

	since := j.now().Add(-categorize.LookbackDays * 24 * time.Hour)
	teams, err := j.transactions.TeamsWithActivitySince(ctx, since)
	if err != nil {
		return errors.Wrap(err, "listing active teams")
	}

	series := 0
	for _, teamID := range teams {
		n, err := j.detectRecurring(ctx, teamID, since)
		if err != nil {
			l.Error("recurrence detection failed", zap.String("team_id", teamID), zap.Error(err))
			continue
		}
		series += n
	}

	l.Info("transactions categorized",
		zap.Int("categorized", categorized),
		zap.Int("teams", len(teams)),
		zap.Int("recurring_series", series))
	return nil
}

func (j *Jobs) detectRecurring(ctx context.Context, teamID string, since time.Time) (int, error) {
	txs, err := j.transactions.ListSince(ctx, teamID, since)
	if err != nil {
		return 0, errors.Wrap(err, "listing transactions")
	}

	items := make([]categorize.Item, 0, len(txs))
	for _, t := range txs {
		items = append(items, categorize.Item{
			ID:       t.ID,
			Name:     t.Name,
			Merchant: t.MerchantName,
			Amount:   t.Amount,
			Currency: t.Currency,
			Date:     t.Date,
		})
	}

	found := categorize.Detect(items)
	stored := 0
	for _, s := range found {
		err = j.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
			r := &repository.RecurringTransaction{
				TeamID:           teamID,
				Name:             s.Name,
				MerchantKey:      s.MerchantKey,
				Amount:           s.Amount,
				Currency:         s.Currency,
				Frequency:        s.Frequency,
				LastDate:         s.LastDate,
				NextDate:         s.NextDate,
				TransactionCount: len(s.TransactionIDs),
			}
			err := j.recurring.Upsert(txCtx, r)
			if errors.Is(err, repository.ErrNotFound) {
				// dismissed by the user
				return nil
			}
			if err != nil {
				return errors.Wrap(err, "upserting recurring transaction")
			}
			stored++
			// r now holds the stored row, so a frequency the user picked wins
			return errors.Wrap(j.transactions.MarkRecurring(txCtx, s.TransactionIDs, r.Frequency, r.ID), "marking transactions recurring")
		})
		if err != nil {
			return 0, err
		}
	}

	if stored > 0 {
		j.invalidate(ctx, teamID)
	}
	return stored, nil
}
