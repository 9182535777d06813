package jobs

import (
	"context"
	"time"

	"github.com/yakoovad/finflow/internal/bank"
	"github.com/yakoovad/finflow/internal/db"
	"github.com/yakoovad/finflow/internal/events"
	"github.com/yakoovad/finflow/internal/notify"
	"github.com/yakoovad/finflow/internal/repository"
	"github.com/yakoovad/finflow/internal/worker"
	"github.com/yakoovad/finflow/pkg/logger"
	"go.uber.org/zap"
)

const (
	healthBatchSize     = 100
	categorizeBatchSize = 500
	upsertBatchSize     = 500
	accountSyncSpacing  = 5 * time.Second
	scheduledSyncWindow = 5 * 24 * time.Hour
	manualSyncWindow    = 90 * 24 * time.Hour
	defaultMaxAttempts  = 3
)

// Invalidator drops the cached transaction pages of a team in every API process.
type Invalidator interface {
	Invalidate(ctx context.Context, teamID string) error
}

// Jobs holds the background job handlers. Every handler runs sequentially inside the worker.
type Jobs struct {
	tx db.Transactor

	connections   repository.BankConnectionRepository
	accounts      repository.BankAccountRepository
	transactions  repository.TransactionRepository
	recurring     repository.RecurringTransactionRepository
	teams         repository.TeamRepository
	notifications repository.NotificationRepository

	provider bank.Provider
	emitter  events.Emitter
	sender   notify.Sender
	cache    Invalidator

	// maxAttempts matches the worker's retry budget so a failure is only
	// persisted once no retry will follow.
	maxAttempts int
	now         func() time.Time
}

func New(tx db.Transactor) *Jobs {
	return &Jobs{
		tx:          tx,
		maxAttempts: defaultMaxAttempts,
		now:         time.Now,
	}
}

// Register binds every job to its event.
func (j *Jobs) Register(r *worker.Registry) {
	r.Register(events.CheckConnectionHealth, j.CheckConnectionHealth).
		Register(events.BankSyncScheduler, j.ScheduleBankSync).
		Register(events.InitialSetup, j.InitialSetup).
		Register(events.SyncConnection, j.SyncConnection).
		Register(events.SyncAccount, j.SyncAccount).
		Register(events.UpsertTransactions, j.UpsertTransactions).
		Register(events.CategorizeTransactions, j.CategorizeTransactions).
		Register(events.TransactionsNotification, j.TransactionsNotification).
		Register(events.SendEmail, j.SendEmail)
}

func (j *Jobs) WithConnectionRepo(r repository.BankConnectionRepository) *Jobs {
	j.connections = r
	return j
}

func (j *Jobs) WithAccountRepo(r repository.BankAccountRepository) *Jobs {
	j.accounts = r
	return j
}

func (j *Jobs) WithTransactionRepo(r repository.TransactionRepository) *Jobs {
	j.transactions = r
	return j
}

func (j *Jobs) WithRecurringRepo(r repository.RecurringTransactionRepository) *Jobs {
	j.recurring = r
	return j
}

func (j *Jobs) WithTeamRepo(r repository.TeamRepository) *Jobs {
	j.teams = r
	return j
}

func (j *Jobs) WithNotificationRepo(r repository.NotificationRepository) *Jobs {
	j.notifications = r
	return j
}

func (j *Jobs) WithProvider(p bank.Provider) *Jobs {
	j.provider = p
	return j
}

func (j *Jobs) WithEmitter(e events.Emitter) *Jobs {
	j.emitter = e
	return j
}

func (j *Jobs) WithSender(s notify.Sender) *Jobs {
	j.sender = s
	return j
}

func (j *Jobs) WithInvalidator(i Invalidator) *Jobs {
	j.cache = i
	return j
}

func (j *Jobs) WithMaxAttempts(n int) *Jobs {
	if n > 0 {
		j.maxAttempts = n
	}
	return j
}

// invalidate is best effort: cached pages still expire on their own.
func (j *Jobs) invalidate(ctx context.Context, teamID string) {
	if j.cache == nil {
		return
	}
	if err := j.cache.Invalidate(ctx, teamID); err != nil {
		logger.FromContext(ctx).Warn("failed to invalidate transaction cache", zap.String("team_id", teamID), zap.Error(err))
	}
}

func (j *Jobs) WithClock(now func() time.Time) *Jobs {
	j.now = now
	return j
}
