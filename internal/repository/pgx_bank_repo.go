package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/bob/dialect/psql/um"
	"github.com/yakoovad/finflow/internal/db"
	"github.com/yakoovad/finflow/internal/model"
)

type BankConnection struct {
	ID            string                     `db:"id"`
	TeamID        string                     `db:"team_id"`
	InstitutionID string                     `db:"institution_id"`
	Name          string                     `db:"name"`
	Provider      string                     `db:"provider"`
	AccessToken   string                     `db:"access_token"`
	Status        model.BankConnectionStatus `db:"status"`
	ErrorCode     string                     `db:"error_code"`
	ErrorMessage  string                     `db:"error_message"`
	LastCheckedAt *time.Time                 `db:"last_checked_at"`
	LastSyncedAt  *time.Time                 `db:"last_synced_at"`
}

type ConnectionStatusUpdate struct {
	ID           string
	Status       model.BankConnectionStatus
	ErrorCode    string
	ErrorMessage string
	CheckedAt    *time.Time
}

type BankAccount struct {
	ID               string          `db:"id"`
	TeamID           string          `db:"team_id"`
	BankConnectionID string          `db:"bank_connection_id"`
	AccountID        string          `db:"account_id"`
	Name             string          `db:"name"`
	Currency         string          `db:"currency"`
	Balance          decimal.Decimal `db:"balance"`
	Type             string          `db:"type"`
	Enabled          bool            `db:"enabled"`
	Manual           bool            `db:"manual"`
}

type BankConnectionRepository interface {
	Get(ctx context.Context, id string) (*BankConnection, error)
	// ListStalest returns non-disconnected connections, least recently checked first.
	ListStalest(ctx context.Context, limit int) ([]*BankConnection, error)
	ListByStatus(ctx context.Context, status model.BankConnectionStatus) ([]*BankConnection, error)
	ListByTeam(ctx context.Context, teamID string) ([]*BankConnection, error)
	UpdateStatus(ctx context.Context, update *ConnectionStatusUpdate) error
	MarkSynced(ctx context.Context, id string, at time.Time) error
}

type BankAccountRepository interface {
	Get(ctx context.Context, id string) (*BankAccount, error)
	ListByConnection(ctx context.Context, connectionID string) ([]*BankAccount, error)
	ListByTeam(ctx context.Context, teamID string) ([]*BankAccount, error)
	// Upsert keys on the provider account id and sets account.ID to the stored id.
	Upsert(ctx context.Context, account *BankAccount) error
	UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) error
}

var connectionColumns = []any{
	"id", "team_id", "institution_id", "name", "provider", "access_token", "status",
	"COALESCE(error_code, '')", "COALESCE(error_message, '')", "last_checked_at", "last_synced_at",
}

type pgxBankConnectionRepository struct {
	pool *pgxpool.Pool
}

func NewPgxBankConnectionRepository(pool *pgxpool.Pool) BankConnectionRepository {
	return &pgxBankConnectionRepository{pool: pool}
}

func scanConnection(row pgx.Row) (*BankConnection, error) {
	c := &BankConnection{}
	if err := row.Scan(
		&c.ID,
		&c.TeamID,
		&c.InstitutionID,
		&c.Name,
		&c.Provider,
		&c.AccessToken,
		&c.Status,
		&c.ErrorCode,
		&c.ErrorMessage,
		&c.LastCheckedAt,
		&c.LastSyncedAt,
	); err != nil {
		return nil, mapError(err)
	}
	return c, nil
}

func (p *pgxBankConnectionRepository) Get(ctx context.Context, id string) (*BankConnection, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(connectionColumns...),
		sm.From("bank_connections"),
		sm.Where(psql.Quote("id").EQ(psql.Arg(id))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	return scanConnection(e.QueryRow(ctx, sql, args...))
}

func (p *pgxBankConnectionRepository) ListStalest(ctx context.Context, limit int) ([]*BankConnection, error) {
	q := psql.Select(
		sm.Columns(connectionColumns...),
		sm.From("bank_connections"),
		sm.Where(psql.Quote("status").NE(psql.Arg(model.BankConnectionStatusDisconnected))),
		sm.OrderBy("last_checked_at ASC NULLS FIRST"),
		sm.Limit(limit),
	)
	return p.list(ctx, q)
}

func (p *pgxBankConnectionRepository) ListByStatus(ctx context.Context, status model.BankConnectionStatus) ([]*BankConnection, error) {
	q := psql.Select(
		sm.Columns(connectionColumns...),
		sm.From("bank_connections"),
		sm.Where(psql.Quote("status").EQ(psql.Arg(status))),
		sm.OrderBy("created_at"),
	)
	return p.list(ctx, q)
}

func (p *pgxBankConnectionRepository) ListByTeam(ctx context.Context, teamID string) ([]*BankConnection, error) {
	q := psql.Select(
		sm.Columns(connectionColumns...),
		sm.From("bank_connections"),
		sm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID))),
		sm.OrderBy("created_at"),
	)
	return p.list(ctx, q)
}

func (p *pgxBankConnectionRepository) list(ctx context.Context, q interface {
	Build(context.Context) (string, []any, error)
},
) ([]*BankConnection, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*BankConnection, error) {
		return scanConnection(row)
	})
}

func (p *pgxBankConnectionRepository) UpdateStatus(ctx context.Context, update *ConnectionStatusUpdate) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Update(
		um.Table("bank_connections"),
		um.SetCol("status").ToArg(update.Status),
		um.SetCol("error_code").ToArg(nullable(update.ErrorCode)),
		um.SetCol("error_message").ToArg(nullable(update.ErrorMessage)),
		um.Where(psql.Quote("id").EQ(psql.Arg(update.ID))),
	)
	if update.CheckedAt != nil {
		q.Apply(um.SetCol("last_checked_at").ToArg(*update.CheckedAt))
	}

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	tag, err := e.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *pgxBankConnectionRepository) MarkSynced(ctx context.Context, id string, at time.Time) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Update(
		um.Table("bank_connections"),
		um.SetCol("last_synced_at").ToArg(at),
		um.Where(psql.Quote("id").EQ(psql.Arg(id))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	_, err = e.Exec(ctx, sql, args...)
	return err
}

var accountColumns = []any{
	"id", "team_id", "COALESCE(bank_connection_id::text, '')", "account_id", "name", "currency",
	"balance", "COALESCE(type, '')", "enabled", "manual",
}

type pgxBankAccountRepository struct {
	pool *pgxpool.Pool
}

func NewPgxBankAccountRepository(pool *pgxpool.Pool) BankAccountRepository {
	return &pgxBankAccountRepository{pool: pool}
}

func scanAccount(row pgx.Row) (*BankAccount, error) {
	a := &BankAccount{}
	if err := row.Scan(
		&a.ID,
		&a.TeamID,
		&a.BankConnectionID,
		&a.AccountID,
		&a.Name,
		&a.Currency,
		&a.Balance,
		&a.Type,
		&a.Enabled,
		&a.Manual,
	); err != nil {
		return nil, mapError(err)
	}
	return a, nil
}

func (p *pgxBankAccountRepository) Get(ctx context.Context, id string) (*BankAccount, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(accountColumns...),
		sm.From("bank_accounts"),
		sm.Where(psql.Quote("id").EQ(psql.Arg(id))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	return scanAccount(e.QueryRow(ctx, sql, args...))
}

func (p *pgxBankAccountRepository) ListByConnection(ctx context.Context, connectionID string) ([]*BankAccount, error) {
	return p.listWhere(ctx, "bank_connection_id", connectionID)
}

func (p *pgxBankAccountRepository) ListByTeam(ctx context.Context, teamID string) ([]*BankAccount, error) {
	return p.listWhere(ctx, "team_id", teamID)
}

func (p *pgxBankAccountRepository) listWhere(ctx context.Context, column, value string) ([]*BankAccount, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(accountColumns...),
		sm.From("bank_accounts"),
		sm.Where(psql.Quote(column).EQ(psql.Arg(value))),
		sm.OrderBy("created_at"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*BankAccount, error) {
		return scanAccount(row)
	})
}

func (p *pgxBankAccountRepository) Upsert(ctx context.Context, account *BankAccount) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("bank_accounts", "id", "team_id", "bank_connection_id", "account_id", "name", "currency", "balance", "type", "enabled", "manual"),
		im.Values(
			psql.Arg(withID(account.ID)),
			psql.Arg(account.TeamID),
			psql.Arg(nullable(account.BankConnectionID)),
			psql.Arg(account.AccountID),
			psql.Arg(account.Name),
			psql.Arg(account.Currency),
			psql.Arg(account.Balance),
			psql.Arg(nullable(account.Type)),
			psql.Arg(account.Enabled),
			psql.Arg(account.Manual),
		),
		// enabled is user controlled, a sync never flips it back on
		im.OnConflict(psql.Quote("account_id")).DoUpdate(
			im.SetCol("name").ToArg(account.Name),
			im.SetCol("currency").ToArg(account.Currency),
			im.SetCol("balance").ToArg(account.Balance),
			im.SetCol("type").ToArg(nullable(account.Type)),
		),
		im.Returning(accountColumns...),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	stored, err := scanAccount(e.QueryRow(ctx, sql, args...))
	if err != nil {
		return err
	}
	*account = *stored
	return nil
}

func (p *pgxBankAccountRepository) UpdateBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Update(
		um.Table("bank_accounts"),
		um.SetCol("balance").ToArg(balance),
		um.Where(psql.Quote("id").EQ(psql.Arg(id))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	tag, err := e.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
