package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yakoovad/finflow/internal/cache"
	"github.com/yakoovad/finflow/internal/mocks"
	"github.com/yakoovad/finflow/internal/model"
	"github.com/yakoovad/finflow/internal/repository"
)

func newTransactionService(t *testing.T) (*TransactionService, *mocks.MockTransactionRepository, *cache.Transactions) {
	t.Helper()
	c := cache.NewTransactions(16, time.Minute)

	repo := new(mocks.MockTransactionRepository)
	s := NewTransactionService(new(mocks.MockTransactor)).
		WithTransactionRepo(repo).
		WithCache(c)
	return s, repo, c
}

func storedRows(n int) []*repository.Transaction {
	rows := make([]*repository.Transaction, n)
	for i := range rows {
		rows[i] = &repository.Transaction{
			ID:       string(rune('a' + i)),
			TeamID:   "team-1",
			Name:     "row",
			Amount:   decimal.NewFromInt(int64(-10 * (i + 1))),
			Currency: "USD",
			Date:     time.Date(2024, 5, 30-i, 0, 0, 0, 0, time.UTC),
			Status:   model.TransactionStatusPosted,
			Category: model.CategoryUncategorized,
		}
	}
	return rows
}

func TestTransactionService_List(t *testing.T) {
	tests := []struct {
		name         string
		filter       model.TransactionFilter
		repoPageSize int
		rows         int
		wantLen      int
		wantNext     *int
	}{
		{name: "default page size", filter: model.TransactionFilter{}, repoPageSize: 51, rows: 3, wantLen: 3},
		{name: "more rows than page", filter: model.TransactionFilter{PageSize: 2}, repoPageSize: 3, rows: 3, wantLen: 2, wantNext: ptr(2)},
		{name: "page size capped", filter: model.TransactionFilter{PageSize: 5000, Cursor: 10}, repoPageSize: 501, rows: 1, wantLen: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, repo, _ := newTransactionService(t)
			repo.On("List", mock.Anything, "team-1", mock.MatchedBy(func(f model.TransactionFilter) bool {
				return f.PageSize == tt.repoPageSize
			})).Return(storedRows(tt.rows), nil).Once()

			page, err := service.List(context.Background(), "team-1", tt.filter)
			require.Nil(t, err)
			assert.Len(t, page.Data, tt.wantLen)
			assert.Equal(t, tt.wantNext, page.NextCursor)

			// served from the cache the second time
			again, err := service.List(context.Background(), "team-1", tt.filter)
			require.Nil(t, err)
			assert.Same(t, page, again)
			repo.AssertExpectations(t)
		})
	}
}

func TestTransactionService_List_Failure(t *testing.T) {
	service, repo, _ := newTransactionService(t)
	repo.On("List", mock.Anything, "team-1", mock.Anything).Return(nil, errors.New("db error"))

	_, err := service.List(context.Background(), "team-1", model.TransactionFilter{})

	require.NotNil(t, err)
	assert.Equal(t, ErrorCodeUnspecified, err.Code)
}

func TestTransactionService_List_PicksUpOutOfProcessWrites(t *testing.T) {
	tests := []struct {
		name    string
		ttl     time.Duration
		refresh func(c *cache.Transactions)
	}{
		{
			name:    "invalidation from the worker",
			ttl:     time.Minute,
			refresh: func(c *cache.Transactions) { c.Invalidate("team-1") },
		},
		{
			name:    "page expiry",
			ttl:     20 * time.Millisecond,
			refresh: func(*cache.Transactions) { time.Sleep(40 * time.Millisecond) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cache.NewTransactions(16, tt.ttl)
			repo := new(mocks.MockTransactionRepository)
			service := NewTransactionService(new(mocks.MockTransactor)).WithTransactionRepo(repo).WithCache(c)

			repo.On("List", mock.Anything, "team-1", mock.Anything).Return(storedRows(1), nil).Once()
			page, err := service.List(context.Background(), "team-1", model.TransactionFilter{})
			require.Nil(t, err)
			require.Len(t, page.Data, 1)

			// a sync job stored two more rows
			repo.On("List", mock.Anything, "team-1", mock.Anything).Return(storedRows(3), nil).Once()
			stale, err := service.List(context.Background(), "team-1", model.TransactionFilter{})
			require.Nil(t, err)
			assert.Len(t, stale.Data, 1)

			tt.refresh(c)

			fresh, err := service.List(context.Background(), "team-1", model.TransactionFilter{})
			require.Nil(t, err)
			assert.Len(t, fresh.Data, 3)
			repo.AssertExpectations(t)
		})
	}
}

func TestTransactionService_UpdateMany_DropsPagesTheRowsLeft(t *testing.T) {
	service, repo, _ := newTransactionService(t)
	uncategorized := model.TransactionFilter{Category: model.CategoryUncategorized}

	repo.On("List", mock.Anything, "team-1", mock.Anything).Return(storedRows(2), nil).Once()
	_, err := service.List(context.Background(), "team-1", uncategorized)
	require.Nil(t, err)

	travel := model.CategoryTravel
	patched := storedRows(2)
	for _, r := range patched {
		r.Category = travel
	}
	repo.On("Patch", mock.Anything, "team-1", []string{"a", "b"}, mock.Anything).Return(patched, nil).Once()
	_, err = service.UpdateMany(context.Background(), "team-1", []string{"a", "b"}, model.TransactionPatch{Category: &travel})
	require.Nil(t, err)

	repo.On("List", mock.Anything, "team-1", mock.Anything).Return([]*repository.Transaction{}, nil).Once()
	page, err := service.List(context.Background(), "team-1", uncategorized)
	require.Nil(t, err)
	assert.Empty(t, page.Data)
	repo.AssertNumberOfCalls(t, "List", 2)
}

func TestTransactionService_UpdateOptimistic(t *testing.T) {
	travel := model.CategoryTravel
	patch := model.TransactionPatch{Category: &travel}

	t.Run("cache reflects stored row on success", func(t *testing.T) {
		service, repo, c := newTransactionService(t)
		repo.On("List", mock.Anything, "team-1", mock.Anything).Return(storedRows(2), nil).Once()

		_, serr := service.List(context.Background(), "team-1", model.TransactionFilter{})
		require.Nil(t, serr)

		stored := storedRows(1)[0]
		stored.Category = model.CategoryTravel
		stored.Note = "set by trigger"
		repo.On("Patch", mock.Anything, "team-1", []string{"a"}, patch).
			Run(func(mock.Arguments) {
				// the write has not returned yet, readers already see the new category
				page, ok := c.Get("team-1", model.TransactionFilter{PageSize: DefaultPageSize})
				require.True(t, ok)
				assert.Equal(t, model.CategoryTravel, page.Data[0].Category)
			}).
			Return([]*repository.Transaction{stored}, nil).Once()

		updated, serr := service.Update(context.Background(), "team-1", "a", patch)
		require.Nil(t, serr)
		assert.Equal(t, model.CategoryTravel, updated.Category)

		page, ok := c.Get("team-1", model.TransactionFilter{PageSize: DefaultPageSize})
		require.True(t, ok)
		assert.Equal(t, "set by trigger", page.Data[0].Note)
		assert.Equal(t, model.CategoryUncategorized, page.Data[1].Category)
	})

	t.Run("cache reverts on failure", func(t *testing.T) {
		service, repo, c := newTransactionService(t)
		repo.On("List", mock.Anything, "team-1", mock.Anything).Return(storedRows(2), nil).Once()

		_, serr := service.List(context.Background(), "team-1", model.TransactionFilter{})
		require.Nil(t, serr)

		repo.On("Patch", mock.Anything, "team-1", []string{"a", "b"}, patch).Return(nil, errors.New("db error")).Once()

		_, serr = service.UpdateMany(context.Background(), "team-1", []string{"a", "b"}, patch)
		require.NotNil(t, serr)
		assert.Equal(t, ErrorCodeUnspecified, serr.Code)

		page, ok := c.Get("team-1", model.TransactionFilter{PageSize: DefaultPageSize})
		require.True(t, ok)
		for _, row := range page.Data {
			assert.Equal(t, model.CategoryUncategorized, row.Category)
		}
	})

	t.Run("missing rows", func(t *testing.T) {
		service, repo, _ := newTransactionService(t)
		repo.On("Patch", mock.Anything, "team-1", []string{"zz"}, patch).Return(nil, repository.ErrNotFound).Once()

		_, serr := service.Update(context.Background(), "team-1", "zz", patch)
		require.NotNil(t, serr)
		assert.Equal(t, ErrorCodeNotFound, serr.Code)
	})

	t.Run("empty patch", func(t *testing.T) {
		service, repo, _ := newTransactionService(t)

		_, serr := service.Update(context.Background(), "team-1", "a", model.TransactionPatch{})
		require.NotNil(t, serr)
		assert.Equal(t, ErrorCodeInvalidBody, serr.Code)
		repo.AssertNotCalled(t, "Patch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestTransactionService_Create(t *testing.T) {
	service, repo, c := newTransactionService(t)
	c.Set("team-1", model.TransactionFilter{PageSize: DefaultPageSize}, &model.TransactionPage{})

	repo.On("Create", mock.Anything, mock.MatchedBy(func(row *repository.Transaction) bool {
		return row.Manual && row.TeamID == "team-1" &&
			len(row.InternalID) > len("manual_") && row.InternalID[:7] == "manual_" &&
			row.Category == model.CategoryUncategorized && row.Method == "other" &&
			row.Status == model.TransactionStatusPosted
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*repository.Transaction).ID = "new"
	}).Return(nil).Once()

	created, err := service.Create(context.Background(), "team-1", &model.TransactionCreate{
		Name:     "Cash lunch",
		Amount:   decimal.NewFromInt(-12),
		Currency: "USD",
		Date:     model.Date{Time: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
	})

	require.Nil(t, err)
	assert.Equal(t, "new", created.ID)
	assert.True(t, created.Manual)

	_, cached := c.Get("team-1", model.TransactionFilter{PageSize: DefaultPageSize})
	assert.False(t, cached)
	repo.AssertExpectations(t)
}

func TestTransactionService_Create_MissingDate(t *testing.T) {
	service, _, _ := newTransactionService(t)

	_, err := service.Create(context.Background(), "team-1", &model.TransactionCreate{Name: "x", Currency: "USD"})

	require.NotNil(t, err)
	assert.Equal(t, ErrorCodeInvalidBody, err.Code)
}

func TestTransactionService_DeleteMany(t *testing.T) {
	service, repo, c := newTransactionService(t)
	c.Set("team-1", model.TransactionFilter{}, &model.TransactionPage{})
	repo.On("DeleteManual", mock.Anything, "team-1", []string{"a", "b"}).Return(int64(1), nil).Once()

	n, err := service.DeleteMany(context.Background(), "team-1", []string{"a", "b"})

	require.Nil(t, err)
	assert.Equal(t, int64(1), n)
	_, cached := c.Get("team-1", model.TransactionFilter{})
	assert.False(t, cached)
}

func ptr[T any](v T) *T {
	return &v
}
