package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/yakoovad/finflow/internal/cache"
	"github.com/yakoovad/finflow/internal/db"
	"github.com/yakoovad/finflow/internal/model"
	"github.com/yakoovad/finflow/internal/repository"
	"github.com/yakoovad/finflow/pkg/logger"
	"go.uber.org/zap"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

type TransactionService struct {
	tx db.Transactor

	transactions repository.TransactionRepository
	cache        *cache.Transactions
}

func NewTransactionService(tx db.Transactor) *TransactionService {
	return &TransactionService{
		tx: tx,
	}
}

// List returns one page of the team's transactions, newest first, served from the cache when possible.
func (s *TransactionService) List(ctx context.Context, teamID string, filter model.TransactionFilter) (*model.TransactionPage, *Error) {
	l := logger.FromContext(ctx)

	if filter.PageSize <= 0 {
		filter.PageSize = DefaultPageSize
	}
	if filter.PageSize > MaxPageSize {
		filter.PageSize = MaxPageSize
	}
	if filter.Cursor < 0 {
		filter.Cursor = 0
	}

	if page, ok := s.cache.Get(teamID, filter); ok {
		l.Debug("transactions served from cache", zap.String("team_id", teamID))
		return page, nil
	}

	// one extra row tells whether another page exists
	query := filter
	query.PageSize++

	rows, err := s.transactions.List(ctx, teamID, query)
	if err != nil {
		l.Error("failed to list transactions", zap.String("team_id", teamID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to list transactions")
	}

	page := &model.TransactionPage{Data: make([]*model.Transaction, 0, min(len(rows), filter.PageSize))}
	for i, r := range rows {
		if i == filter.PageSize {
			next := filter.Cursor + filter.PageSize
			page.NextCursor = &next
			break
		}
		page.Data = append(page.Data, toModelTransaction(r))
	}

	s.cache.Set(teamID, filter, page)
	return page, nil
}

func (s *TransactionService) Get(ctx context.Context, teamID, id string) (*model.Transaction, *Error) {
	t, err := s.transactions.Get(ctx, teamID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "transaction not found")
	}
	if err != nil {
		logger.FromContext(ctx).Error("failed to get transaction", zap.String("transaction_id", id), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to get transaction")
	}
	return toModelTransaction(t), nil
}

func (s *TransactionService) Update(ctx context.Context, teamID, id string, patch model.TransactionPatch) (*model.Transaction, *Error) {
	updated, serr := s.UpdateMany(ctx, teamID, []string{id}, patch)
	if serr != nil {
		return nil, serr
	}
	return updated[0], nil
}

// UpdateMany patches the cached rows first so readers see the change at once.
// If the write fails the cached pages are restored; otherwise the stored rows replace the guesses.
func (s *TransactionService) UpdateMany(ctx context.Context, teamID string, ids []string, patch model.TransactionPatch) ([]*model.Transaction, *Error) {
	l := logger.FromContext(ctx).With(zap.String("team_id", teamID))

	if len(ids) == 0 || patch.IsEmpty() {
		return nil, NewError(ErrorCodeInvalidBody, "nothing to update")
	}

	snap := s.cache.Patch(teamID, ids, patch.Apply)
	l.Debug("optimistic update applied", zap.Int("ids", len(ids)), zap.Int("pages", snap.Len()))

	rows, err := s.transactions.Patch(ctx, teamID, ids, patch)
	if err != nil {
		s.cache.Rollback(snap)
		if errors.Is(err, repository.ErrNotFound) {
			l.Warn("transactions not found", zap.Strings("ids", ids))
			return nil, NewError(ErrorCodeNotFound, "transaction not found")
		}
		l.Error("failed to update transactions, cache rolled back", zap.Strings("ids", ids), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to update transactions")
	}

	res := make([]*model.Transaction, 0, len(rows))
	for _, r := range rows {
		res = append(res, toModelTransaction(r))
	}
	s.cache.Replace(teamID, res...)

	return res, nil
}

func (s *TransactionService) Create(ctx context.Context, teamID string, req *model.TransactionCreate) (*model.Transaction, *Error) {
	l := logger.FromContext(ctx).With(zap.String("team_id", teamID))

	if req.Date.IsZero() {
		return nil, NewError(ErrorCodeInvalidBody, "date is required")
	}

	category := model.CategoryUncategorized
	if req.Category != nil {
		category = *req.Category
	}
	method := req.Method
	if method == "" {
		method = "other"
	}

	row := &repository.Transaction{
		TeamID:        teamID,
		BankAccountID: req.BankAccountID,
		InternalID:    "manual_" + uuid.NewString(),
		Name:          req.Name,
		Description:   req.Description,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Date:          req.Date.Time,
		Status:        model.TransactionStatusPosted,
		Category:      category,
		Method:        method,
		Manual:        true,
	}

	err := s.transactions.Create(ctx, row)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, NewError(ErrorCodeNotFound, "bank account not found")
	}
	if err != nil {
		l.Error("failed to create transaction", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to create transaction")
	}

	s.cache.Invalidate(teamID)
	return toModelTransaction(row), nil
}

// DeleteMany removes manual transactions only; synced rows are left alone.
func (s *TransactionService) DeleteMany(ctx context.Context, teamID string, ids []string) (int64, *Error) {
	if len(ids) == 0 {
		return 0, NewError(ErrorCodeInvalidBody, "no ids given")
	}

	n, err := s.transactions.DeleteManual(ctx, teamID, ids)
	if err != nil {
		logger.FromContext(ctx).Error("failed to delete transactions", zap.String("team_id", teamID), zap.Error(err))
		return 0, NewError(ErrorCodeUnspecified, "failed to delete transactions")
	}

	s.cache.Invalidate(teamID)
	return n, nil
}

func toModelTransaction(t *repository.Transaction) *model.Transaction {
	return &model.Transaction{
		ID:            t.ID,
		BankAccountID: t.BankAccountID,
		Name:          t.Name,
		Description:   t.Description,
		MerchantName:  t.MerchantName,
		Amount:        t.Amount,
		Currency:      t.Currency,
		Date:          t.Date,
		Status:        t.Status,
		Category:      t.Category,
		CategorySlug:  t.CategorySlug,
		Method:        t.Method,
		Note:          t.Note,
		TagID:         t.TagID,
		AssignedID:    t.AssignedID,
		Recurring:     t.Recurring,
		Frequency:     t.Frequency,
		RecurringID:   t.RecurringID,
		Manual:        t.Manual,
	}
}

func (s *TransactionService) WithTransactionRepo(r repository.TransactionRepository) *TransactionService {
	s.transactions = r
	return s
}

func (s *TransactionService) WithCache(c *cache.Transactions) *TransactionService {
	s.cache = c
	return s
}
