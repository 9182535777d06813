package mocks

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/yakoovad/finflow/internal/model"
	"github.com/yakoovad/finflow/internal/repository"
)

type MockTransactor struct {
	mock.Mock
}

func (m *MockTransactor) WithinTransaction(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type MockTeamRepository struct {
	mock.Mock
}

func (m *MockTeamRepository) Upsert(ctx context.Context, team *repository.Team) error {
	args := m.Called(ctx, team)
	return args.Error(0)
}

func (m *MockTeamRepository) Get(ctx context.Context, id string) (*repository.Team, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Team), args.Error(1)
}

func (m *MockTeamRepository) Patch(ctx context.Context, patch *repository.TeamPatch) (*repository.Team, error) {
	args := m.Called(ctx, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Team), args.Error(1)
}

func (m *MockTeamRepository) AddMember(ctx context.Context, teamID, userID string, role model.TeamRole) error {
	args := m.Called(ctx, teamID, userID, role)
	return args.Error(0)
}

func (m *MockTeamRepository) UpsertMember(ctx context.Context, teamID, userID string, role model.TeamRole) error {
	args := m.Called(ctx, teamID, userID, role)
	return args.Error(0)
}

func (m *MockTeamRepository) GetMember(ctx context.Context, teamID, userID string) (*repository.Member, error) {
	args := m.Called(ctx, teamID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Member), args.Error(1)
}

func (m *MockTeamRepository) GetTeamMembers(ctx context.Context, teamID string) ([]*repository.Member, error) {
	args := m.Called(ctx, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Member), args.Error(1)
}

func (m *MockTeamRepository) UpdateMemberRole(ctx context.Context, teamID, userID string, role model.TeamRole) error {
	args := m.Called(ctx, teamID, userID, role)
	return args.Error(0)
}

func (m *MockTeamRepository) RemoveMember(ctx context.Context, teamID, userID string) error {
	args := m.Called(ctx, teamID, userID)
	return args.Error(0)
}

func (m *MockTeamRepository) CountOwners(ctx context.Context, teamID string) (int, error) {
	args := m.Called(ctx, teamID)
	return args.Int(0), args.Error(1)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Get(ctx context.Context, userID string) (*repository.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*repository.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.User), args.Error(1)
}

func (m *MockUserRepository) Upsert(ctx context.Context, user *repository.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) SetTeam(ctx context.Context, userID, teamID string) error {
	args := m.Called(ctx, userID, teamID)
	return args.Error(0)
}

func (m *MockUserRepository) Patch(ctx context.Context, patch *repository.UserPatch) (*repository.User, error) {
	args := m.Called(ctx, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.User), args.Error(1)
}

type MockInviteRepository struct {
	mock.Mock
}

func (m *MockInviteRepository) Upsert(ctx context.Context, invite *repository.Invite) error {
	args := m.Called(ctx, invite)
	return args.Error(0)
}

func (m *MockInviteRepository) List(ctx context.Context, teamID string) ([]*repository.Invite, error) {
	args := m.Called(ctx, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Invite), args.Error(1)
}

func (m *MockInviteRepository) GetByCode(ctx context.Context, code string) (*repository.Invite, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Invite), args.Error(1)
}

func (m *MockInviteRepository) Delete(ctx context.Context, teamID, inviteID string) error {
	args := m.Called(ctx, teamID, inviteID)
	return args.Error(0)
}

type MockBankConnectionRepository struct {
	mock.Mock
}

func (m *MockBankConnectionRepository) Get(ctx context.Context, id string) (*repository.BankConnection, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.BankConnection), args.Error(1)
}

func (m *MockBankConnectionRepository) ListStalest(ctx context.Context, limit int) ([]*repository.BankConnection, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.BankConnection), args.Error(1)
}

func (m *MockBankConnectionRepository) ListByStatus(ctx context.Context, status model.BankConnectionStatus) ([]*repository.BankConnection, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.BankConnection), args.Error(1)
}

func (m *MockBankConnectionRepository) ListByTeam(ctx context.Context, teamID string) ([]*repository.BankConnection, error) {
	args := m.Called(ctx, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.BankConnection), args.Error(1)
}

func (m *MockBankConnectionRepository) UpdateStatus(ctx context.Context, update *repository.ConnectionStatusUpdate) error {
	args := m.Called(ctx, update)
	return args.Error(0)
}

func (m *MockBankConnectionRepository) MarkSynced(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

type MockBankAccountRepository struct {
	mock.Mock
}

func (m *MockBankAccountRepository) Get(ctx context.Context, id string) (*repository.BankAccount, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.BankAccount), args.Error(1)
}

func (m *MockBankAccountRepository) ListByConnection(ctx context.Context, connectionID string) ([]*repository.BankAccount, error) {
	args := m.Called(ctx, connectionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.BankAccount), args.Error(1)
}

func (m *MockBankAccountRepository) ListByTeam(ctx context.Context, teamID string) ([]*repository.BankAccount, error) {
	args := m.Called(ctx, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.BankAccount), args.Error(1)
}

func (m *MockBankAccountRepository) Upsert(ctx context.Context, account *repository.BankAccount) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockBankAccountRepository) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	args := m.Called(ctx, id, balance)
	return args.Error(0)
}

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) List(ctx context.Context, teamID string, filter model.TransactionFilter) ([]*repository.Transaction, error) {
	args := m.Called(ctx, teamID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) Get(ctx context.Context, teamID, id string) (*repository.Transaction, error) {
	args := m.Called(ctx, teamID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx *repository.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockTransactionRepository) Patch(ctx context.Context, teamID string, ids []string, patch model.TransactionPatch) ([]*repository.Transaction, error) {
	args := m.Called(ctx, teamID, ids, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) DeleteManual(ctx context.Context, teamID string, ids []string) (int64, error) {
	args := m.Called(ctx, teamID, ids)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTransactionRepository) UpsertBatch(ctx context.Context, txs []*repository.Transaction) ([]string, error) {
	args := m.Called(ctx, txs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockTransactionRepository) ListUncategorized(ctx context.Context, limit int) ([]*repository.Transaction, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) SetCategory(ctx context.Context, id string, category model.TransactionCategory) error {
	args := m.Called(ctx, id, category)
	return args.Error(0)
}

func (m *MockTransactionRepository) ListSince(ctx context.Context, teamID string, since time.Time) ([]*repository.Transaction, error) {
	args := m.Called(ctx, teamID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) ListByRecurring(ctx context.Context, teamID, recurringID string) ([]*repository.Transaction, error) {
	args := m.Called(ctx, teamID, recurringID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) MarkRecurring(ctx context.Context, ids []string, frequency model.TransactionFrequency, recurringID string) error {
	args := m.Called(ctx, ids, frequency, recurringID)
	return args.Error(0)
}

func (m *MockTransactionRepository) ClearRecurring(ctx context.Context, teamID, recurringID string) error {
	args := m.Called(ctx, teamID, recurringID)
	return args.Error(0)
}

func (m *MockTransactionRepository) TeamsWithActivitySince(ctx context.Context, since time.Time) ([]string, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockRecurringTransactionRepository struct {
	mock.Mock
}

func (m *MockRecurringTransactionRepository) Upsert(ctx context.Context, r *repository.RecurringTransaction) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockRecurringTransactionRepository) List(ctx context.Context, teamID string, status model.RecurringStatus) ([]*repository.RecurringTransaction, error) {
	args := m.Called(ctx, teamID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.RecurringTransaction), args.Error(1)
}

func (m *MockRecurringTransactionRepository) Get(ctx context.Context, teamID, id string) (*repository.RecurringTransaction, error) {
	args := m.Called(ctx, teamID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.RecurringTransaction), args.Error(1)
}

func (m *MockRecurringTransactionRepository) Patch(ctx context.Context, patch *repository.RecurringPatch) (*repository.RecurringTransaction, error) {
	args := m.Called(ctx, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.RecurringTransaction), args.Error(1)
}

func (m *MockRecurringTransactionRepository) Delete(ctx context.Context, teamID, id string) error {
	args := m.Called(ctx, teamID, id)
	return args.Error(0)
}

type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) Create(ctx context.Context, n *repository.Notification) (bool, error) {
	args := m.Called(ctx, n)
	return args.Bool(0), args.Error(1)
}

func (m *MockNotificationRepository) List(ctx context.Context, teamID, userID string, limit int) ([]*repository.Notification, error) {
	args := m.Called(ctx, teamID, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*repository.Notification), args.Error(1)
}

func (m *MockNotificationRepository) MarkRead(ctx context.Context, teamID, userID string, ids []string, at time.Time) (int64, error) {
	args := m.Called(ctx, teamID, userID, ids, at)
	return args.Get(0).(int64), args.Error(1)
}

type MockCatalogRepository struct {
	mock.Mock
}

func (m *MockCatalogRepository) UpsertTag(ctx context.Context, tag *repository.Tag) error {
	args := m.Called(ctx, tag)
	return args.Error(0)
}

func (m *MockCatalogRepository) UpsertCustomer(ctx context.Context, customer *repository.Customer) error {
	args := m.Called(ctx, customer)
	return args.Error(0)
}

func (m *MockCatalogRepository) UpsertCategory(ctx context.Context, category *repository.Category) error {
	args := m.Called(ctx, category)
	return args.Error(0)
}
