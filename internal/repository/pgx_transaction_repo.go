package repository

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dialect"
	"github.com/stephenafamo/bob/dialect/psql/dm"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/bob/dialect/psql/um"
	"github.com/yakoovad/finflow/internal/db"
	"github.com/yakoovad/finflow/internal/model"
)

type Transaction struct {
	ID            string                      `db:"id"`
	TeamID        string                      `db:"team_id"`
	BankAccountID string                      `db:"bank_account_id"`
	InternalID    string                      `db:"internal_id"`
	Name          string                      `db:"name"`
	Description   string                      `db:"description"`
	MerchantName  string                      `db:"merchant_name"`
	Amount        decimal.Decimal             `db:"amount"`
	Currency      string                      `db:"currency"`
	Date          time.Time                   `db:"date"`
	Status        model.TransactionStatus     `db:"status"`
	Category      model.TransactionCategory   `db:"category"`
	CategorySlug  string                      `db:"category_slug"`
	Method        string                      `db:"method"`
	Note          string                      `db:"note"`
	TagID         string                      `db:"tag_id"`
	AssignedID    string                      `db:"assigned_id"`
	Recurring     bool                        `db:"recurring"`
	Frequency     *model.TransactionFrequency `db:"frequency"`
	RecurringID   string                      `db:"recurring_id"`
	Manual        bool                        `db:"manual"`
}

type TransactionRepository interface {
	List(ctx context.Context, teamID string, filter model.TransactionFilter) ([]*Transaction, error)
	Get(ctx context.Context, teamID, id string) (*Transaction, error)
	Create(ctx context.Context, tx *Transaction) error
	// Patch applies the same patch to every listed transaction of the team and returns the stored rows.
	Patch(ctx context.Context, teamID string, ids []string, patch model.TransactionPatch) ([]*Transaction, error)
	DeleteManual(ctx context.Context, teamID string, ids []string) (int64, error)

	// UpsertBatch inserts or refreshes provider transactions keyed by internal_id.
	// It returns the ids of rows that did not exist before.
	UpsertBatch(ctx context.Context, txs []*Transaction) ([]string, error)
	ListUncategorized(ctx context.Context, limit int) ([]*Transaction, error)
	SetCategory(ctx context.Context, id string, category model.TransactionCategory) error
	ListSince(ctx context.Context, teamID string, since time.Time) ([]*Transaction, error)
	ListByRecurring(ctx context.Context, teamID, recurringID string) ([]*Transaction, error)
	MarkRecurring(ctx context.Context, ids []string, frequency model.TransactionFrequency, recurringID string) error
	ClearRecurring(ctx context.Context, teamID, recurringID string) error
	TeamsWithActivitySince(ctx context.Context, since time.Time) ([]string, error)
}

var transactionColumns = []any{
	"id", "team_id", "COALESCE(bank_account_id::text, '')", "internal_id", "name",
	"COALESCE(description, '')", "COALESCE(merchant_name, '')", "amount", "currency", "date",
	"status", "category", "COALESCE(category_slug, '')", "method", "COALESCE(note, '')",
	"COALESCE(tag_id::text, '')", "COALESCE(assigned_id::text, '')", "recurring", "frequency",
	"COALESCE(recurring_id::text, '')", "manual",
}

type pgxTransactionRepository struct {
	pool *pgxpool.Pool
}

func NewPgxTransactionRepository(pool *pgxpool.Pool) TransactionRepository {
	return &pgxTransactionRepository{pool: pool}
}

func scanTransaction(row pgx.Row) (*Transaction, error) {
	t := &Transaction{}
	if err := row.Scan(
		&t.ID,
		&t.TeamID,
		&t.BankAccountID,
		&t.InternalID,
		&t.Name,
		&t.Description,
		&t.MerchantName,
		&t.Amount,
		&t.Currency,
		&t.Date,
		&t.Status,
		&t.Category,
		&t.CategorySlug,
		&t.Method,
		&t.Note,
		&t.TagID,
		&t.AssignedID,
		&t.Recurring,
		&t.Frequency,
		&t.RecurringID,
		&t.Manual,
	); err != nil {
		return nil, mapError(err)
	}
	return t, nil
}

func (p *pgxTransactionRepository) collect(ctx context.Context, q bob.BaseQuery[*dialect.SelectQuery]) ([]*Transaction, error) {
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

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Transaction, error) {
		return scanTransaction(row)
	})
}

func (p *pgxTransactionRepository) List(ctx context.Context, teamID string, filter model.TransactionFilter) ([]*Transaction, error) {
	return p.collect(ctx, listQuery(teamID, filter))
}

func listQuery(teamID string, filter model.TransactionFilter) bob.BaseQuery[*dialect.SelectQuery] {
	q := psql.Select(
		sm.Columns(transactionColumns...),
		sm.From("transactions"),
		sm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID))),
		sm.OrderBy("date").Desc(),
		sm.OrderBy("created_at").Desc(),
		sm.Limit(filter.PageSize),
		sm.Offset(filter.Cursor),
	)

	if filter.From != nil {
		q.Apply(sm.Where(psql.Quote("date").GTE(psql.Arg(*filter.From))))
	}
	if filter.To != nil {
		q.Apply(sm.Where(psql.Quote("date").LTE(psql.Arg(*filter.To))))
	}
	if filter.Status != "" {
		q.Apply(sm.Where(psql.Quote("status").EQ(psql.Arg(filter.Status))))
	}
	if filter.Category != "" {
		q.Apply(sm.Where(psql.Quote("category").EQ(psql.Arg(filter.Category))))
	}
	if filter.Recurring != nil {
		q.Apply(sm.Where(psql.Quote("recurring").EQ(psql.Arg(*filter.Recurring))))
	}
	if filter.Search != "" {
		pattern := "%" + escapeLike(filter.Search) + "%"
		q.Apply(sm.Where(psql.Raw(`(name ILIKE ? ESCAPE '\' OR merchant_name ILIKE ? ESCAPE '\')`, pattern, pattern)))
	}

	return q
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside an ILIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (p *pgxTransactionRepository) Get(ctx context.Context, teamID, id string) (*Transaction, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(transactionColumns...),
		sm.From("transactions"),
		sm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID)).And(psql.Quote("id").EQ(psql.Arg(id)))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	return scanTransaction(e.QueryRow(ctx, sql, args...))
}

func insertValues(t *Transaction) bob.Mod[*dialect.InsertQuery] {
	return im.Values(
		psql.Arg(withID(t.ID)),
		psql.Arg(t.TeamID),
		psql.Arg(nullable(t.BankAccountID)),
		psql.Arg(t.InternalID),
		psql.Arg(t.Name),
		psql.Arg(nullable(t.Description)),
		psql.Arg(nullable(t.MerchantName)),
		psql.Arg(t.Amount),
		psql.Arg(t.Currency),
		psql.Arg(t.Date),
		psql.Arg(t.Status),
		psql.Arg(t.Category),
		psql.Arg(t.Method),
		psql.Arg(t.Manual),
	)
}

var insertColumns = []string{
	"id", "team_id", "bank_account_id", "internal_id", "name", "description", "merchant_name",
	"amount", "currency", "date", "status", "category", "method", "manual",
}

func (p *pgxTransactionRepository) Create(ctx context.Context, tx *Transaction) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("transactions", insertColumns...),
		insertValues(tx),
		im.Returning(transactionColumns...),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	stored, err := scanTransaction(e.QueryRow(ctx, sql, args...))
	if err != nil {
		return err
	}
	*tx = *stored
	return nil
}

func (p *pgxTransactionRepository) Patch(ctx context.Context, teamID string, ids []string, patch model.TransactionPatch) ([]*Transaction, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	sets := make([]bob.Mod[*dialect.UpdateQuery], 0, 6)
	if patch.Category != nil {
		sets = append(sets, um.SetCol("category").ToArg(*patch.Category))
	}
	if patch.CategorySlug != nil {
		sets = append(sets, um.SetCol("category_slug").ToArg(nullable(*patch.CategorySlug)))
	}
	if patch.Status != nil {
		sets = append(sets, um.SetCol("status").ToArg(*patch.Status))
	}
	if patch.Note != nil {
		sets = append(sets, um.SetCol("note").ToArg(nullable(*patch.Note)))
	}
	if patch.AssignedID != nil {
		sets = append(sets, um.SetCol("assigned_id").ToArg(nullable(*patch.AssignedID)))
	}
	if patch.TagID != nil {
		sets = append(sets, um.SetCol("tag_id").ToArg(nullable(*patch.TagID)))
	}

	q := psql.Update(
		um.Table("transactions"),
		um.Where(psql.Quote("team_id").EQ(psql.Arg(teamID))),
		um.Where(psql.Raw("id = ANY(CAST(? AS uuid[]))", ids)),
		um.Returning(transactionColumns...),
	)
	q.Apply(sets...)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	updated, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Transaction, error) {
		return scanTransaction(row)
	})
	if err != nil {
		return nil, mapError(err)
	}
	if len(updated) == 0 {
		return nil, ErrNotFound
	}
	return updated, nil
}

func (p *pgxTransactionRepository) DeleteManual(ctx context.Context, teamID string, ids []string) (int64, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Delete(
		dm.From("transactions"),
		dm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID)).And(psql.Quote("manual").EQ(psql.Arg(true)))),
		dm.Where(psql.Raw("id = ANY(CAST(? AS uuid[]))", ids)),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return 0, err
	}

	tag, err := e.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (p *pgxTransactionRepository) UpsertBatch(ctx context.Context, txs []*Transaction) ([]string, error) {
	if len(txs) == 0 {
		return nil, nil
	}

	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	// xmax = 0 only for freshly inserted rows
	q := psql.Insert(
		im.Into("transactions", insertColumns...),
		im.OnConflict(psql.Quote("internal_id")).DoUpdate(
			im.SetExcluded("name", "merchant_name", "amount", "currency", "date", "status"),
		),
		im.Returning("id", "(xmax = 0)"),
	)
	for _, t := range txs {
		q.Apply(insertValues(t))
	}

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	inserted := make([]string, 0, len(txs))
	for rows.Next() {
		var (
			id    string
			isNew bool
		)
		if err = rows.Scan(&id, &isNew); err != nil {
			return nil, err
		}
		if isNew {
			inserted = append(inserted, id)
		}
	}
	return inserted, rows.Err()
}

func (p *pgxTransactionRepository) ListUncategorized(ctx context.Context, limit int) ([]*Transaction, error) {
	q := psql.Select(
		sm.Columns(transactionColumns...),
		sm.From("transactions"),
		sm.Where(psql.Quote("category").EQ(psql.Arg(model.CategoryUncategorized))),
		sm.OrderBy("date").Desc(),
		sm.Limit(limit),
	)
	return p.collect(ctx, q)
}

func (p *pgxTransactionRepository) SetCategory(ctx context.Context, id string, category model.TransactionCategory) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Update(
		um.Table("transactions"),
		um.SetCol("category").ToArg(category),
		um.Where(psql.Quote("id").EQ(psql.Arg(id))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	_, err = e.Exec(ctx, sql, args...)
	return err
}

func (p *pgxTransactionRepository) ListSince(ctx context.Context, teamID string, since time.Time) ([]*Transaction, error) {
	q := psql.Select(
		sm.Columns(transactionColumns...),
		sm.From("transactions"),
		sm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID))),
		sm.Where(psql.Quote("date").GTE(psql.Arg(since))),
		sm.Where(psql.Quote("status").NE(psql.Arg(model.TransactionStatusExcluded))),
		sm.OrderBy("date"),
	)
	return p.collect(ctx, q)
}

func (p *pgxTransactionRepository) ListByRecurring(ctx context.Context, teamID, recurringID string) ([]*Transaction, error) {
	q := psql.Select(
		sm.Columns(transactionColumns...),
		sm.From("transactions"),
		sm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID)).And(psql.Quote("recurring_id").EQ(psql.Arg(recurringID)))),
		sm.OrderBy("date").Desc(),
	)
	return p.collect(ctx, q)
}

func (p *pgxTransactionRepository) MarkRecurring(ctx context.Context, ids []string, frequency model.TransactionFrequency, recurringID string) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Update(
		um.Table("transactions"),
		um.SetCol("recurring").ToArg(true),
		um.SetCol("frequency").ToArg(frequency),
		um.SetCol("recurring_id").ToArg(recurringID),
		um.Where(psql.Raw("id = ANY(CAST(? AS uuid[]))", ids)),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	_, err = e.Exec(ctx, sql, args...)
	return err
}

func (p *pgxTransactionRepository) ClearRecurring(ctx context.Context, teamID, recurringID string) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Update(
		um.Table("transactions"),
		um.SetCol("recurring").ToArg(false),
		um.SetCol("frequency").ToArg(nil),
		um.SetCol("recurring_id").ToArg(nil),
		um.Where(psql.Quote("team_id").EQ(psql.Arg(teamID)).And(psql.Quote("recurring_id").EQ(psql.Arg(recurringID)))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	_, err = e.Exec(ctx, sql, args...)
	return err
}

func (p *pgxTransactionRepository) TeamsWithActivitySince(ctx context.Context, since time.Time) ([]string, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Distinct(),
		sm.Columns("team_id"),
		sm.From("transactions"),
		sm.Where(psql.Quote("date").GTE(psql.Arg(since))),
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

	return pgx.CollectRows(rows, pgx.RowTo[string])
}
