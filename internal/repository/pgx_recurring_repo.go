package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dialect"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/bob/dialect/psql/um"
	"github.com/yakoovad/finflow/internal/db"
	"github.com/yakoovad/finflow/internal/model"
)

type RecurringTransaction struct {
	ID               string                     `db:"id"`
	TeamID           string                     `db:"team_id"`
	Name             string                     `db:"name"`
	MerchantKey      string                     `db:"merchant_key"`
	Amount           decimal.Decimal            `db:"amount"`
	Currency         string                     `db:"currency"`
	Frequency        model.TransactionFrequency `db:"frequency"`
	Status           model.RecurringStatus      `db:"status"`
	LastDate         time.Time                  `db:"last_date"`
	NextDate         time.Time                  `db:"next_date"`
	TransactionCount int                        `db:"transaction_count"`
}

type RecurringPatch struct {
	ID        string
	TeamID    string
	Name      *string
	Status    *model.RecurringStatus
	Frequency *model.TransactionFrequency
}

type RecurringTransactionRepository interface {
	// Upsert keys on (team_id, merchant_key, amount); a paused series keeps its status.
	// A name or frequency set by the user survives detection. A dismissed series
	// is left alone and ErrNotFound is returned.
	Upsert(ctx context.Context, r *RecurringTransaction) error
	List(ctx context.Context, teamID string, status model.RecurringStatus) ([]*RecurringTransaction, error)
	Get(ctx context.Context, teamID, id string) (*RecurringTransaction, error)
	Patch(ctx context.Context, patch *RecurringPatch) (*RecurringTransaction, error)
	// Delete dismisses the series; List and Get no longer return it.
	Delete(ctx context.Context, teamID, id string) error
}

var recurringColumns = []any{
	"id", "team_id", "name", "merchant_key", "amount", "currency", "frequency", "status",
	"last_date", "next_date", "transaction_count",
}

type pgxRecurringTransactionRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRecurringTransactionRepository(pool *pgxpool.Pool) RecurringTransactionRepository {
	return &pgxRecurringTransactionRepository{pool: pool}
}

func scanRecurring(row pgx.Row) (*RecurringTransaction, error) {
	r := &RecurringTransaction{}
	if err := row.Scan(
		&r.ID,
		&r.TeamID,
		&r.Name,
		&r.MerchantKey,
		&r.Amount,
		&r.Currency,
		&r.Frequency,
		&r.Status,
		&r.LastDate,
		&r.NextDate,
		&r.TransactionCount,
	); err != nil {
		return nil, mapError(err)
	}
	return r, nil
}

func (p *pgxRecurringTransactionRepository) Upsert(ctx context.Context, r *RecurringTransaction) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := upsertRecurringQuery(r)
	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	stored, err := scanRecurring(e.QueryRow(ctx, sql, args...))
	if err != nil {
		return err
	}
	*r = *stored
	return nil
}

func upsertRecurringQuery(r *RecurringTransaction) bob.BaseQuery[*dialect.InsertQuery] {
	status := r.Status
	if status == "" {
		status = model.RecurringStatusActive
	}

	return psql.Insert(
		im.Into("recurring_transactions", "id", "team_id", "name", "merchant_key", "amount", "currency",
			"frequency", "status", "last_date", "next_date", "transaction_count"),
		im.Values(
			psql.Arg(withID(r.ID)),
			psql.Arg(r.TeamID),
			psql.Arg(r.Name),
			psql.Arg(r.MerchantKey),
			psql.Arg(r.Amount),
			psql.Arg(r.Currency),
			psql.Arg(r.Frequency),
			psql.Arg(status),
			psql.Arg(r.LastDate),
			psql.Arg(r.NextDate),
			psql.Arg(r.TransactionCount),
		),
		im.OnConflict(psql.Quote("team_id"), psql.Quote("merchant_key"), psql.Quote("amount")).DoUpdate(
			im.SetCol("frequency").To(psql.Raw("CASE WHEN recurring_transactions.edited THEN recurring_transactions.frequency ELSE EXCLUDED.frequency END")),
			im.SetCol("last_date").ToArg(r.LastDate),
			im.SetCol("next_date").ToArg(r.NextDate),
			im.SetCol("transaction_count").ToArg(r.TransactionCount),
			im.Where(notDismissed("recurring_transactions.status")),
		),
		im.Returning(recurringColumns...),
	)
}

func (p *pgxRecurringTransactionRepository) List(ctx context.Context, teamID string, status model.RecurringStatus) ([]*RecurringTransaction, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(recurringColumns...),
		sm.From("recurring_transactions"),
		sm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID))),
		sm.Where(notDismissed("status")),
		sm.OrderBy("next_date"),
	)
	if status != "" {
		q.Apply(sm.Where(psql.Quote("status").EQ(psql.Arg(status))))
	}

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*RecurringTransaction, error) {
		return scanRecurring(row)
	})
}

func (p *pgxRecurringTransactionRepository) Get(ctx context.Context, teamID, id string) (*RecurringTransaction, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(recurringColumns...),
		sm.From("recurring_transactions"),
		sm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID)).And(psql.Quote("id").EQ(psql.Arg(id)))),
		sm.Where(notDismissed("status")),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	return scanRecurring(e.QueryRow(ctx, sql, args...))
}

func (p *pgxRecurringTransactionRepository) Patch(ctx context.Context, patch *RecurringPatch) (*RecurringTransaction, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	sets := make([]bob.Mod[*dialect.UpdateQuery], 0, 4)
	if patch.Name != nil {
		sets = append(sets, um.SetCol("name").ToArg(*patch.Name))
	}
	if patch.Status != nil {
		sets = append(sets, um.SetCol("status").ToArg(*patch.Status))
	}
	if patch.Frequency != nil {
		sets = append(sets, um.SetCol("frequency").ToArg(*patch.Frequency))
	}
	if len(sets) == 0 {
		return p.Get(ctx, patch.TeamID, patch.ID)
	}
	if patch.Name != nil || patch.Frequency != nil {
		sets = append(sets, um.SetCol("edited").ToArg(true))
	}

	q := psql.Update(
		um.Table("recurring_transactions"),
		um.Where(psql.Quote("team_id").EQ(psql.Arg(patch.TeamID)).And(psql.Quote("id").EQ(psql.Arg(patch.ID)))),
		um.Where(notDismissed("status")),
		um.Returning(recurringColumns...),
	)
	q.Apply(sets...)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	return scanRecurring(e.QueryRow(ctx, sql, args...))
}

func (p *pgxRecurringTransactionRepository) Delete(ctx context.Context, teamID, id string) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := deleteRecurringQuery(teamID, id)
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

func deleteRecurringQuery(teamID, id string) bob.BaseQuery[*dialect.UpdateQuery] {
	return psql.Update(
		um.Table("recurring_transactions"),
		um.SetCol("status").ToArg(model.RecurringStatusDismissed),
		um.Where(psql.Quote("team_id").EQ(psql.Arg(teamID)).And(psql.Quote("id").EQ(psql.Arg(id)))),
		um.Where(notDismissed("status")),
	)
}

func notDismissed(column string) bob.Expression {
	return psql.Raw(column+" <> ?", model.RecurringStatusDismissed)
}
