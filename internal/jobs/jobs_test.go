package jobs

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yakoovad/finflow/internal/bank"
	"github.com/yakoovad/finflow/internal/events"
	"github.com/yakoovad/finflow/internal/mocks"
	"github.com/yakoovad/finflow/internal/model"
	"github.com/yakoovad/finflow/internal/repository"
	"github.com/yakoovad/finflow/internal/worker"
)

var fixedNow = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func event(t *testing.T, name string, payload any) events.Event {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return events.Event{ID: "1", Name: name, Payload: raw, Attempt: 1}
}

type fixture struct {
	connections   *mocks.MockBankConnectionRepository
	accounts      *mocks.MockBankAccountRepository
	transactions  *mocks.MockTransactionRepository
	recurring     *mocks.MockRecurringTransactionRepository
	teams         *mocks.MockTeamRepository
	notifications *mocks.MockNotificationRepository
	provider      *mocks.MockProvider
	sender        *mocks.MockSender
	emitter       *mocks.MockEmitter
	cache         *mocks.MockInvalidator
	jobs          *Jobs
}

func newFixture() *fixture {
	f := &fixture{
		connections:   new(mocks.MockBankConnectionRepository),
		accounts:      new(mocks.MockBankAccountRepository),
		transactions:  new(mocks.MockTransactionRepository),
		recurring:     new(mocks.MockRecurringTransactionRepository),
		teams:         new(mocks.MockTeamRepository),
		notifications: new(mocks.MockNotificationRepository),
		provider:      new(mocks.MockProvider),
		sender:        new(mocks.MockSender),
		emitter:       &mocks.MockEmitter{},
		cache:         &mocks.MockInvalidator{},
	}
	f.jobs = New(new(mocks.MockTransactor)).
		WithConnectionRepo(f.connections).
		WithAccountRepo(f.accounts).
		WithTransactionRepo(f.transactions).
		WithRecurringRepo(f.recurring).
		WithTeamRepo(f.teams).
		WithNotificationRepo(f.notifications).
		WithProvider(f.provider).
		WithEmitter(f.emitter).
		WithSender(f.sender).
		WithInvalidator(f.cache).
		WithClock(func() time.Time { return fixedNow })
	return f
}

func statusUpdate(id string, status model.BankConnectionStatus) any {
	return mock.MatchedBy(func(u *repository.ConnectionStatusUpdate) bool {
		return u.ID == id && u.Status == status && u.CheckedAt != nil && u.CheckedAt.Equal(fixedNow)
	})
}

func TestRegisterBindsEveryEvent(t *testing.T) {
	r := worker.NewRegistry()
	newFixture().jobs.Register(r)

	assert.ElementsMatch(t, []string{
		events.CheckConnectionHealth,
		events.BankSyncScheduler,
		events.InitialSetup,
		events.SyncConnection,
		events.SyncAccount,
		events.UpsertTransactions,
		events.CategorizeTransactions,
		events.TransactionsNotification,
		events.SendEmail,
	}, r.Names())
}

func TestCheckConnectionHealth(t *testing.T) {
	f := newFixture()

	f.connections.On("ListStalest", mock.Anything, 100).Return([]*repository.BankConnection{
		{ID: "ok", AccessToken: "tok-ok", Status: model.BankConnectionStatusError},
		{ID: "reauth", AccessToken: "tok-reauth", Status: model.BankConnectionStatusConnected},
		{ID: "broken", AccessToken: "tok-broken", Status: model.BankConnectionStatusConnected},
		{ID: "after", AccessToken: "tok-after", Status: model.BankConnectionStatusConnected},
	}, nil)

	f.provider.On("ItemStatus", mock.Anything, "tok-ok").Return(nil)
	f.provider.On("ItemStatus", mock.Anything, "tok-reauth").Return(&bank.ProviderError{Code: "ITEM_LOGIN_REQUIRED", Message: "login"})
	f.provider.On("ItemStatus", mock.Anything, "tok-broken").Return(&bank.ProviderError{Code: "INSTITUTION_DOWN", Message: "down"})
	f.provider.On("ItemStatus", mock.Anything, "tok-after").Return(nil)

	f.connections.On("UpdateStatus", mock.Anything, statusUpdate("ok", model.BankConnectionStatusConnected)).Return(nil).Once()
	f.connections.On("UpdateStatus", mock.Anything, statusUpdate("reauth", model.BankConnectionStatusRequiresReauth)).Return(nil).Once()
	// a failing write must not stop the batch
	f.connections.On("UpdateStatus", mock.Anything, statusUpdate("broken", model.BankConnectionStatusError)).Return(errors.New("db down")).Once()
	f.connections.On("UpdateStatus", mock.Anything, statusUpdate("after", model.BankConnectionStatusConnected)).Return(nil).Once()

	err := f.jobs.CheckConnectionHealth(context.Background(), events.Event{Name: events.CheckConnectionHealth})

	require.NoError(t, err)
	f.connections.AssertExpectations(t)
	f.provider.AssertExpectations(t)
}

func TestCheckConnectionHealthListFailure(t *testing.T) {
	f := newFixture()
	f.connections.On("ListStalest", mock.Anything, 100).Return(nil, errors.New("db down"))

	assert.Error(t, f.jobs.CheckConnectionHealth(context.Background(), events.Event{}))
}

func TestScheduleBankSync(t *testing.T) {
	f := newFixture()
	f.connections.On("ListByStatus", mock.Anything, model.BankConnectionStatusConnected).Return([]*repository.BankConnection{
		{ID: "c1"}, {ID: "c2"},
	}, nil)

	require.NoError(t, f.jobs.ScheduleBankSync(context.Background(), events.Event{}))

	require.Len(t, f.emitter.Emitted, 2)
	assert.Equal(t, events.SyncConnectionPayload{ConnectionID: "c1"}, f.emitter.Emitted[0].Payload)
	assert.Equal(t, events.SyncConnectionPayload{ConnectionID: "c2"}, f.emitter.Emitted[1].Payload)
}

func TestInitialSetup(t *testing.T) {
	tests := []struct {
		name       string
		payload    events.InitialSetupPayload
		setup      func(f *fixture)
		wantEmits  int
		wantManual bool
	}{
		{
			name:    "emits manual sync",
			payload: events.InitialSetupPayload{TeamID: "team-1", ConnectionID: "c1"},
			setup: func(f *fixture) {
				f.connections.On("Get", mock.Anything, "c1").Return(&repository.BankConnection{ID: "c1", TeamID: "team-1"}, nil)
			},
			wantEmits:  1,
			wantManual: true,
		},
		{
			name:    "foreign team is skipped",
			payload: events.InitialSetupPayload{TeamID: "team-2", ConnectionID: "c1"},
			setup: func(f *fixture) {
				f.connections.On("Get", mock.Anything, "c1").Return(&repository.BankConnection{ID: "c1", TeamID: "team-1"}, nil)
			},
		},
		{
			name:    "missing connection is skipped",
			payload: events.InitialSetupPayload{TeamID: "team-1", ConnectionID: "gone"},
			setup: func(f *fixture) {
				f.connections.On("Get", mock.Anything, "gone").Return(nil, repository.ErrNotFound)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			tt.setup(f)

			require.NoError(t, f.jobs.InitialSetup(context.Background(), event(t, events.InitialSetup, tt.payload)))

			require.Len(t, f.emitter.Emitted, tt.wantEmits)
			if tt.wantEmits > 0 {
				p := f.emitter.Emitted[0].Payload.(events.SyncConnectionPayload)
				assert.Equal(t, tt.wantManual, p.ManualSync)
			}
		})
	}
}

func TestSyncConnection(t *testing.T) {
	conn := &repository.BankConnection{ID: "c1", TeamID: "team-1", AccessToken: "tok", Status: model.BankConnectionStatusConnected}
	remote := []bank.Account{
		{ID: "p-1", Name: "Checking", Currency: "USD", Balance: decimal.NewFromInt(100)},
		{ID: "p-2", Name: "Savings", Currency: "USD", Balance: decimal.NewFromInt(200)},
		{ID: "p-3", Name: "Card", Currency: "USD", Balance: decimal.NewFromInt(-50)},
	}

	upserts := func(f *fixture) {
		ids := map[string]string{"p-1": "a1", "p-2": "a2", "p-3": "a3"}
		f.accounts.On("Upsert", mock.Anything, mock.AnythingOfType("*repository.BankAccount")).
			Run(func(args mock.Arguments) {
				a := args.Get(1).(*repository.BankAccount)
				a.ID = ids[a.AccountID]
				// the user switched the savings account off
				a.Enabled = a.AccountID != "p-2"
			}).Return(nil)
	}

	tests := []struct {
		name       string
		manual     bool
		wantDelays []time.Duration
	}{
		{name: "scheduled sync is staggered", manual: false, wantDelays: []time.Duration{0, 5 * time.Second}},
		{name: "manual sync runs at once", manual: true, wantDelays: []time.Duration{0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.connections.On("Get", mock.Anything, "c1").Return(conn, nil)
			f.provider.On("Accounts", mock.Anything, "tok").Return(remote, nil)
			upserts(f)
			f.connections.On("MarkSynced", mock.Anything, "c1", fixedNow).Return(nil).Once()

			err := f.jobs.SyncConnection(context.Background(), event(t, events.SyncConnection,
				events.SyncConnectionPayload{ConnectionID: "c1", ManualSync: tt.manual}))
			require.NoError(t, err)

			require.Len(t, f.emitter.Emitted, 2)
			var delays []time.Duration
			var accounts []string
			for _, e := range f.emitter.Emitted {
				assert.Equal(t, events.SyncAccount, e.Name)
				p := e.Payload.(events.SyncAccountPayload)
				assert.Equal(t, tt.manual, p.ManualSync)
				accounts = append(accounts, p.AccountID)
				delays = append(delays, e.Delay)
			}
			assert.Equal(t, []string{"a1", "a3"}, accounts)
			assert.Equal(t, tt.wantDelays, delays)

			f.accounts.AssertNumberOfCalls(t, "Upsert", 3)
			f.connections.AssertExpectations(t)
		})
	}
}

func TestSyncConnectionSkipsUnhealthy(t *testing.T) {
	f := newFixture()
	f.connections.On("Get", mock.Anything, "c1").Return(&repository.BankConnection{ID: "c1", Status: model.BankConnectionStatusRequiresReauth}, nil)

	err := f.jobs.SyncConnection(context.Background(), event(t, events.SyncConnection, events.SyncConnectionPayload{ConnectionID: "c1"}))

	require.NoError(t, err)
	f.provider.AssertNotCalled(t, "Accounts", mock.Anything, mock.Anything)
	assert.Empty(t, f.emitter.Emitted)
}

func TestSyncConnectionProviderFailure(t *testing.T) {
	tests := []struct {
		name       string
		cause      error
		attempt    int
		wantStatus model.BankConnectionStatus
		wantStored bool
		wantErr    bool
	}{
		{
			name:       "reauth is stored and not retried",
			cause:      &bank.ProviderError{Code: "ITEM_LOGIN_REQUIRED", Message: "login"},
			attempt:    1,
			wantStatus: model.BankConnectionStatusRequiresReauth,
			wantStored: true,
		},
		{
			name:    "transient error is retried without touching the status",
			cause:   errors.New("timeout"),
			attempt: 1,
			wantErr: true,
		},
		{
			name:    "classified error before the last attempt is retried",
			cause:   &bank.ProviderError{Code: "INSTITUTION_DOWN", Message: "down"},
			attempt: 2,
			wantErr: true,
		},
		{
			name:       "error on the last attempt is stored",
			cause:      errors.New("timeout"),
			attempt:    3,
			wantStatus: model.BankConnectionStatusError,
			wantStored: true,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.connections.On("Get", mock.Anything, "c1").Return(&repository.BankConnection{ID: "c1", AccessToken: "tok", Status: model.BankConnectionStatusConnected}, nil)
			f.provider.On("Accounts", mock.Anything, "tok").Return(nil, tt.cause)
			if tt.wantStored {
				f.connections.On("UpdateStatus", mock.Anything, statusUpdate("c1", tt.wantStatus)).Return(nil).Once()
			}

			ev := event(t, events.SyncConnection, events.SyncConnectionPayload{ConnectionID: "c1"})
			ev.Attempt = tt.attempt
			err := f.jobs.SyncConnection(context.Background(), ev)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			f.connections.AssertExpectations(t)
			if !tt.wantStored {
				f.connections.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything)
			}
			f.connections.AssertNotCalled(t, "MarkSynced", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestSyncConnectionRetrySyncsAfterTransientFailure(t *testing.T) {
	f := newFixture()
	f.connections.On("Get", mock.Anything, "c1").Return(&repository.BankConnection{ID: "c1", TeamID: "team-1", AccessToken: "tok", Status: model.BankConnectionStatusConnected}, nil)
	f.provider.On("Accounts", mock.Anything, "tok").Return(nil, errors.New("timeout")).Once()
	f.provider.On("Accounts", mock.Anything, "tok").Return([]bank.Account{}, nil).Once()
	f.connections.On("MarkSynced", mock.Anything, "c1", fixedNow).Return(nil).Once()

	ev := event(t, events.SyncConnection, events.SyncConnectionPayload{ConnectionID: "c1"})
	require.Error(t, f.jobs.SyncConnection(context.Background(), ev))

	ev.Attempt++
	require.NoError(t, f.jobs.SyncConnection(context.Background(), ev))

	f.provider.AssertNumberOfCalls(t, "Accounts", 2)
	f.connections.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything)
	f.connections.AssertExpectations(t)
}

func TestWithMaxAttempts(t *testing.T) {
	f := newFixture()
	f.jobs.WithMaxAttempts(1)
	f.connections.On("Get", mock.Anything, "c1").Return(&repository.BankConnection{ID: "c1", AccessToken: "tok", Status: model.BankConnectionStatusConnected}, nil)
	f.provider.On("Accounts", mock.Anything, "tok").Return(nil, errors.New("timeout"))
	f.connections.On("UpdateStatus", mock.Anything, statusUpdate("c1", model.BankConnectionStatusError)).Return(nil).Once()

	err := f.jobs.SyncConnection(context.Background(), event(t, events.SyncConnection, events.SyncConnectionPayload{ConnectionID: "c1"}))

	assert.Error(t, err)
	f.connections.AssertExpectations(t)
}

func providerTxs(n int) []bank.Transaction {
	out := make([]bank.Transaction, n)
	for i := range out {
		out[i] = bank.Transaction{
			InternalID: "p-1_" + strconv.Itoa(i),
			AccountID:  "p-1",
			Name:       "Coffee",
			Amount:     decimal.NewFromFloat(-3.5),
			Currency:   "USD",
			Date:       fixedNow.AddDate(0, 0, -1),
		}
	}
	return out
}

func TestSyncAccountScheduled(t *testing.T) {
	f := newFixture()
	f.accounts.On("Get", mock.Anything, "a1").Return(&repository.BankAccount{
		ID: "a1", TeamID: "team-1", BankConnectionID: "c1", AccountID: "p-1", Enabled: true,
	}, nil)
	f.connections.On("Get", mock.Anything, "c1").Return(&repository.BankConnection{ID: "c1", AccessToken: "tok", Status: model.BankConnectionStatusConnected}, nil)
	f.provider.On("Accounts", mock.Anything, "tok").Return([]bank.Account{{ID: "p-1", Balance: decimal.NewFromInt(42)}}, nil)
	f.accounts.On("UpdateBalance", mock.Anything, "a1", decimal.NewFromInt(42)).Return(nil).Once()

	txs := providerTxs(2)
	txs = append(txs, txs[0])
	txs[1].Pending = true
	f.provider.On("Transactions", mock.Anything, "tok", "p-1", fixedNow.Add(-5*24*time.Hour), fixedNow).Return(txs, nil)
	f.transactions.On("UpsertBatch", mock.Anything, mock.MatchedBy(func(rows []*repository.Transaction) bool {
		return len(rows) == 2 &&
			rows[0].Status == model.TransactionStatusPosted &&
			rows[1].Status == model.TransactionStatusPending &&
			rows[0].TeamID == "team-1" && rows[0].BankAccountID == "a1" &&
			rows[0].Category == model.CategoryUncategorized
	})).Return([]string{"t-new"}, nil).Once()

	err := f.jobs.SyncAccount(context.Background(), event(t, events.SyncAccount, events.SyncAccountPayload{AccountID: "a1"}))

	require.NoError(t, err)
	assert.Equal(t, []string{"team-1"}, f.cache.Teams)
	require.Len(t, f.emitter.Emitted, 1)
	assert.Equal(t, events.TransactionsNotification, f.emitter.Emitted[0].Name)
	assert.Equal(t, events.TransactionsNotificationPayload{TeamID: "team-1", TransactionIDs: []string{"t-new"}}, f.emitter.Emitted[0].Payload)
	f.accounts.AssertExpectations(t)
	f.transactions.AssertExpectations(t)
}

func TestSyncAccountManualBatches(t *testing.T) {
	f := newFixture()
	f.accounts.On("Get", mock.Anything, "a1").Return(&repository.BankAccount{
		ID: "a1", TeamID: "team-1", BankConnectionID: "c1", AccountID: "p-1", Enabled: true,
	}, nil)
	f.connections.On("Get", mock.Anything, "c1").Return(&repository.BankConnection{ID: "c1", AccessToken: "tok", Status: model.BankConnectionStatusConnected}, nil)
	f.provider.On("Accounts", mock.Anything, "tok").Return([]bank.Account{}, nil)
	f.provider.On("Transactions", mock.Anything, "tok", "p-1", fixedNow.Add(-90*24*time.Hour), fixedNow).Return(providerTxs(1200), nil)

	err := f.jobs.SyncAccount(context.Background(), event(t, events.SyncAccount, events.SyncAccountPayload{AccountID: "a1", ManualSync: true}))

	require.NoError(t, err)
	require.Len(t, f.emitter.Emitted, 3)
	sizes := make([]int, 0, 3)
	for _, e := range f.emitter.Emitted {
		assert.Equal(t, events.UpsertTransactions, e.Name)
		sizes = append(sizes, len(e.Payload.(events.UpsertTransactionsPayload).Transactions))
	}
	assert.Equal(t, []int{500, 500, 200}, sizes)
	f.transactions.AssertNotCalled(t, "UpsertBatch", mock.Anything, mock.Anything)
	assert.Empty(t, f.cache.Teams)
}

func TestSyncAccountSkipsDisabled(t *testing.T) {
	f := newFixture()
	f.accounts.On("Get", mock.Anything, "a1").Return(&repository.BankAccount{ID: "a1", BankConnectionID: "c1", Enabled: false}, nil)

	require.NoError(t, f.jobs.SyncAccount(context.Background(), event(t, events.SyncAccount, events.SyncAccountPayload{AccountID: "a1"})))
	f.connections.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestUpsertTransactions(t *testing.T) {
	f := newFixture()
	f.transactions.On("UpsertBatch", mock.Anything, mock.MatchedBy(func(rows []*repository.Transaction) bool {
		return len(rows) == 3 && rows[2].BankAccountID == "a1"
	})).Return([]string{"x"}, nil).Once()

	err := f.jobs.UpsertTransactions(context.Background(), event(t, events.UpsertTransactions, events.UpsertTransactionsPayload{
		TeamID: "team-1", BankAccountID: "a1", Transactions: providerTxs(3),
	}))

	require.NoError(t, err)
	f.transactions.AssertExpectations(t)
	assert.Equal(t, []string{"team-1"}, f.cache.Teams)
}

func TestUpsertTransactionsIgnoresInvalidationFailure(t *testing.T) {
	f := newFixture()
	f.cache.Err = errors.New("redis down")
	f.transactions.On("UpsertBatch", mock.Anything, mock.Anything).Return([]string{}, nil).Once()

	err := f.jobs.UpsertTransactions(context.Background(), event(t, events.UpsertTransactions, events.UpsertTransactionsPayload{
		TeamID: "team-1", BankAccountID: "a1", Transactions: providerTxs(1),
	}))

	assert.NoError(t, err)
}

func TestCategorizeTransactions(t *testing.T) {
	f := newFixture()

	f.transactions.On("ListUncategorized", mock.Anything, 500).Return([]*repository.Transaction{
		{ID: "t1", TeamID: "team-2", Name: "ACME PAYROLL"},
		{ID: "t2", TeamID: "team-2", Name: "mystery"},
	}, nil)
	f.transactions.On("SetCategory", mock.Anything, "t1", model.CategoryIncome).Return(nil).Once()
	f.transactions.On("SetCategory", mock.Anything, "t2", model.CategoryOther).Return(nil).Once()

	since := fixedNow.Add(-180 * 24 * time.Hour)
	f.transactions.On("TeamsWithActivitySince", mock.Anything, since).Return([]string{"team-1"}, nil)

	date := func(s string) time.Time {
		d, _ := time.Parse(time.DateOnly, s)
		return d
	}
	f.transactions.On("ListSince", mock.Anything, "team-1", since).Return([]*repository.Transaction{
		{ID: "n1", Name: "NETFLIX", MerchantName: "Netflix", Amount: decimal.RequireFromString("-15.49"), Currency: "USD", Date: date("2024-03-01")},
		{ID: "n2", Name: "NETFLIX", MerchantName: "Netflix", Amount: decimal.RequireFromString("-15.49"), Currency: "USD", Date: date("2024-03-31")},
		{ID: "n3", Name: "NETFLIX", MerchantName: "Netflix", Amount: decimal.RequireFromString("-15.49"), Currency: "USD", Date: date("2024-05-01")},
		{ID: "d1", Name: "DELL", Amount: decimal.RequireFromString("-999"), Currency: "USD", Date: date("2024-04-11")},
	}, nil)

	f.recurring.On("Upsert", mock.Anything, mock.MatchedBy(func(r *repository.RecurringTransaction) bool {
		return r.TeamID == "team-1" && r.MerchantKey == "netflix" &&
			r.Frequency == model.FrequencyMonthly && r.TransactionCount == 3
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*repository.RecurringTransaction).ID = "rec-1"
	}).Return(nil).Once()
	f.transactions.On("MarkRecurring", mock.Anything, []string{"n1", "n2", "n3"}, model.FrequencyMonthly, "rec-1").Return(nil).Once()

	require.NoError(t, f.jobs.CategorizeTransactions(context.Background(), events.Event{}))

	f.transactions.AssertExpectations(t)
	f.recurring.AssertExpectations(t)
	assert.ElementsMatch(t, []string{"team-2", "team-1"}, f.cache.Teams)
}

func netflixHistory() []*repository.Transaction {
	date := func(s string) time.Time {
		d, _ := time.Parse(time.DateOnly, s)
		return d
	}
	return []*repository.Transaction{
		{ID: "n1", Name: "NETFLIX", MerchantName: "Netflix", Amount: decimal.RequireFromString("-15.49"), Currency: "USD", Date: date("2024-03-01")},
		{ID: "n2", Name: "NETFLIX", MerchantName: "Netflix", Amount: decimal.RequireFromString("-15.49"), Currency: "USD", Date: date("2024-03-31")},
		{ID: "n3", Name: "NETFLIX", MerchantName: "Netflix", Amount: decimal.RequireFromString("-15.49"), Currency: "USD", Date: date("2024-05-01")},
	}
}

func TestCategorizeSkipsDismissedSeries(t *testing.T) {
	f := newFixture()
	since := fixedNow.Add(-180 * 24 * time.Hour)
	f.transactions.On("ListUncategorized", mock.Anything, 500).Return([]*repository.Transaction{}, nil)
	f.transactions.On("TeamsWithActivitySince", mock.Anything, since).Return([]string{"team-1"}, nil)
	f.transactions.On("ListSince", mock.Anything, "team-1", since).Return(netflixHistory(), nil)
	f.recurring.On("Upsert", mock.Anything, mock.Anything).Return(repository.ErrNotFound).Once()

	require.NoError(t, f.jobs.CategorizeTransactions(context.Background(), events.Event{}))

	f.transactions.AssertNotCalled(t, "MarkRecurring", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.cache.Teams)
}

func TestCategorizeKeepsEditedFrequency(t *testing.T) {
	f := newFixture()
	since := fixedNow.Add(-180 * 24 * time.Hour)
	f.transactions.On("ListUncategorized", mock.Anything, 500).Return([]*repository.Transaction{}, nil)
	f.transactions.On("TeamsWithActivitySince", mock.Anything, since).Return([]string{"team-1"}, nil)
	f.transactions.On("ListSince", mock.Anything, "team-1", since).Return(netflixHistory(), nil)
	f.recurring.On("Upsert", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		r := args.Get(1).(*repository.RecurringTransaction)
		r.ID = "rec-1"
		r.Frequency = model.FrequencyIrregular
	}).Return(nil).Once()
	f.transactions.On("MarkRecurring", mock.Anything, []string{"n1", "n2", "n3"}, model.FrequencyIrregular, "rec-1").Return(nil).Once()

	require.NoError(t, f.jobs.CategorizeTransactions(context.Background(), events.Event{}))

	f.transactions.AssertExpectations(t)
}

func TestTransactionsNotification(t *testing.T) {
	f := newFixture()
	f.teams.On("Get", mock.Anything, "team-1").Return(&repository.Team{ID: "team-1", Name: "Acme"}, nil)
	f.teams.On("GetTeamMembers", mock.Anything, "team-1").Return([]*repository.Member{
		{UserID: "u1", FullName: "Ada", Email: "ada@acme.io"},
		{UserID: "u2", FullName: "Bob", Email: "bob@acme.io"},
	}, nil)
	f.notifications.On("Create", mock.Anything, mock.MatchedBy(func(n *repository.Notification) bool {
		return n.TeamID == "team-1" && n.EventID == "1" && n.Type == model.NotificationTypeTransactions && n.Title == "2 new transactions"
	})).Return(true, nil).Twice()

	err := f.jobs.TransactionsNotification(context.Background(), event(t, events.TransactionsNotification,
		events.TransactionsNotificationPayload{TeamID: "team-1", TransactionIDs: []string{"t1", "t2"}}))

	require.NoError(t, err)
	assert.Equal(t, []string{events.SendEmail, events.SendEmail}, f.emitter.Names())
	assert.Equal(t, "ada@acme.io", f.emitter.Emitted[0].Payload.(events.SendEmailPayload).To)
	f.notifications.AssertExpectations(t)
}

func TestTransactionsNotificationRetrySkipsNotifiedMembers(t *testing.T) {
	f := newFixture()
	f.teams.On("Get", mock.Anything, "team-1").Return(&repository.Team{ID: "team-1", Name: "Acme"}, nil)
	f.teams.On("GetTeamMembers", mock.Anything, "team-1").Return([]*repository.Member{
		{UserID: "u1", FullName: "Ada", Email: "ada@acme.io"},
		{UserID: "u2", FullName: "Bob", Email: "bob@acme.io"},
	}, nil)
	// u1 was notified by the failed first attempt
	f.notifications.On("Create", mock.Anything, mock.MatchedBy(func(n *repository.Notification) bool { return n.UserID == "u1" })).Return(false, nil).Once()
	f.notifications.On("Create", mock.Anything, mock.MatchedBy(func(n *repository.Notification) bool { return n.UserID == "u2" })).Return(true, nil).Once()

	ev := event(t, events.TransactionsNotification, events.TransactionsNotificationPayload{TeamID: "team-1", TransactionIDs: []string{"t1"}})
	ev.Attempt = 2
	require.NoError(t, f.jobs.TransactionsNotification(context.Background(), ev))

	require.Len(t, f.emitter.Emitted, 1)
	assert.Equal(t, "bob@acme.io", f.emitter.Emitted[0].Payload.(events.SendEmailPayload).To)
	f.notifications.AssertExpectations(t)
}

func TestSendEmail(t *testing.T) {
	f := newFixture()
	f.sender.On("Send", mock.Anything, mock.AnythingOfType("notify.Email")).Return(nil).Once()

	err := f.jobs.SendEmail(context.Background(), event(t, events.SendEmail, events.SendEmailPayload{To: "a@b.c", Subject: "s", HTML: "<p>x</p>"}))

	require.NoError(t, err)
	f.sender.AssertExpectations(t)
}
