package service

import (
	"context"

	"github.com/pkg/errors"
	"github.com/yakoovad/finflow/internal/cache"
	"github.com/yakoovad/finflow/internal/db"
	"github.com/yakoovad/finflow/internal/model"
	"github.com/yakoovad/finflow/internal/repository"
	"github.com/yakoovad/finflow/pkg/logger"
	"go.uber.org/zap"
)

type RecurringService struct {
	tx db.Transactor

	recurring    repository.RecurringTransactionRepository
	transactions repository.TransactionRepository
	cache        *cache.Transactions
}

func NewRecurringService(tx db.Transactor) *RecurringService {
	return &RecurringService{
		tx: tx,
	}
}

func (s *RecurringService) List(ctx context.Context, teamID string, status model.RecurringStatus) ([]*model.RecurringTransaction, *Error) {
	rows, err := s.recurring.List(ctx, teamID, status)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list recurring transactions", zap.String("team_id", teamID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to list recurring transactions")
	}

	res := make([]*model.RecurringTransaction, 0, len(rows))
	for _, r := range rows {
		res = append(res, toModelRecurring(r))
	}
	return res, nil
}

// Get returns the series with the transactions that belong to it.
func (s *RecurringService) Get(ctx context.Context, teamID, id string) (*model.RecurringTransaction, *Error) {
	l := logger.FromContext(ctx).With(zap.String("recurring_id", id))

	r, err := s.recurring.Get(ctx, teamID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "recurring transaction not found")
	}
	if err != nil {
		l.Error("failed to get recurring transaction", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to get recurring transaction")
	}

	txs, err := s.transactions.ListByRecurring(ctx, teamID, id)
	if err != nil {
		l.Error("failed to list series transactions", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to get recurring transaction")
	}

	res := toModelRecurring(r)
	res.Transactions = make([]*model.Transaction, 0, len(txs))
	for _, t := range txs {
		res.Transactions = append(res.Transactions, toModelTransaction(t))
	}
	return res, nil
}

func (s *RecurringService) Update(ctx context.Context, teamID, id string, upd *model.RecurringUpdate) (*model.RecurringTransaction, *Error) {
	l := logger.FromContext(ctx).With(zap.String("recurring_id", id))
	l.Info("updating recurring transaction")

	r, err := s.recurring.Patch(ctx, &repository.RecurringPatch{
		ID:        id,
		TeamID:    teamID,
		Name:      upd.Name,
		Status:    upd.Status,
		Frequency: upd.Frequency,
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "recurring transaction not found")
	}
	if err != nil {
		l.Error("failed to update recurring transaction", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to update recurring transaction")
	}

	return toModelRecurring(r), nil
}

// Delete drops the series and unflags its transactions in one transaction.
func (s *RecurringService) Delete(ctx context.Context, teamID, id string) *Error {
	l := logger.FromContext(ctx).With(zap.String("recurring_id", id))
	l.Info("deleting recurring transaction")

	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := s.transactions.ClearRecurring(txCtx, teamID, id); err != nil {
			l.Error("failed to clear recurring flags", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to delete recurring transaction")
		}

		err := s.recurring.Delete(txCtx, teamID, id)
		if errors.Is(err, repository.ErrNotFound) {
			return NewError(ErrorCodeNotFound, "recurring transaction not found")
		}
		if err != nil {
			l.Error("failed to delete recurring transaction", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to delete recurring transaction")
		}
		return nil
	})
	if err != nil {
		return asError(err, "failed to delete recurring transaction")
	}

	// cached pages carry the recurring flag
	s.cache.Invalidate(teamID)
	return nil
}

func toModelRecurring(r *repository.RecurringTransaction) *model.RecurringTransaction {
	return &model.RecurringTransaction{
		ID:               r.ID,
		Name:             r.Name,
		Amount:           r.Amount,
		Currency:         r.Currency,
		Frequency:        r.Frequency,
		Status:           r.Status,
		LastDate:         r.LastDate,
		NextDate:         r.NextDate,
		TransactionCount: r.TransactionCount,
	}
}

func (s *RecurringService) WithRecurringRepo(r repository.RecurringTransactionRepository) *RecurringService {
	s.recurring = r
	return s
}

func (s *RecurringService) WithTransactionRepo(r repository.TransactionRepository) *RecurringService {
	s.transactions = r
	return s
}

func (s *RecurringService) WithCache(c *cache.Transactions) *RecurringService {
	s.cache = c
	return s
}
