package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/yakoovad/finflow/internal/db"
)

type Tag struct {
	ID     string `db:"id"`
	TeamID string `db:"team_id"`
	Name   string `db:"name"`
}

type Customer struct {
	ID      string `db:"id"`
	TeamID  string `db:"team_id"`
	Name    string `db:"name"`
	Email   string `db:"email"`
	Website string `db:"website"`
	Country string `db:"country"`
}

type Category struct {
	ID          string           `db:"id"`
	TeamID      string           `db:"team_id"`
	Name        string           `db:"name"`
	Slug        string           `db:"slug"`
	Color       string           `db:"color"`
	Description string           `db:"description"`
	VAT         *decimal.Decimal `db:"vat"`
}

// CatalogRepository holds the per-team lookup tables: tags, customers and custom categories.
type CatalogRepository interface {
	UpsertTag(ctx context.Context, tag *Tag) error
	UpsertCustomer(ctx context.Context, customer *Customer) error
	UpsertCategory(ctx context.Context, category *Category) error
}

type pgxCatalogRepository struct {
	pool *pgxpool.Pool
}

func NewPgxCatalogRepository(pool *pgxpool.Pool) CatalogRepository {
	return &pgxCatalogRepository{pool: pool}
}

func (p *pgxCatalogRepository) UpsertTag(ctx context.Context, tag *Tag) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	// no-op update so RETURNING yields the existing id
	q := psql.Insert(
		im.Into("tags", "id", "team_id", "name"),
		im.Values(psql.Arg(withID(tag.ID)), psql.Arg(tag.TeamID), psql.Arg(tag.Name)),
		im.OnConflict(psql.Quote("team_id"), psql.Quote("name")).DoUpdate(
			im.SetCol("name").ToArg(tag.Name),
		),
		im.Returning("id"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	return mapError(e.QueryRow(ctx, sql, args...).Scan(&tag.ID))
}

func (p *pgxCatalogRepository) UpsertCustomer(ctx context.Context, customer *Customer) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("customers", "id", "team_id", "name", "email", "website", "country"),
		im.Values(
			psql.Arg(withID(customer.ID)),
			psql.Arg(customer.TeamID),
			psql.Arg(customer.Name),
			psql.Arg(customer.Email),
			psql.Arg(nullable(customer.Website)),
			psql.Arg(nullable(customer.Country)),
		),
		im.OnConflict(psql.Quote("team_id"), psql.Quote("email")).DoUpdate(
			im.SetCol("name").ToArg(customer.Name),
			im.SetCol("website").ToArg(nullable(customer.Website)),
			im.SetCol("country").ToArg(nullable(customer.Country)),
		),
		im.Returning("id"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	return mapError(e.QueryRow(ctx, sql, args...).Scan(&customer.ID))
}

func (p *pgxCatalogRepository) UpsertCategory(ctx context.Context, category *Category) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("transaction_categories", "id", "team_id", "name", "slug", "color", "description", "vat"),
		im.Values(
			psql.Arg(withID(category.ID)),
			psql.Arg(category.TeamID),
			psql.Arg(category.Name),
			psql.Arg(category.Slug),
			psql.Arg(nullable(category.Color)),
			psql.Arg(nullable(category.Description)),
			psql.Arg(category.VAT),
		),
		im.OnConflict(psql.Quote("team_id"), psql.Quote("slug")).DoUpdate(
			im.SetCol("name").ToArg(category.Name),
			im.SetCol("color").ToArg(nullable(category.Color)),
			im.SetCol("description").ToArg(nullable(category.Description)),
			im.SetCol("vat").ToArg(category.VAT),
		),
		im.Returning("id"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	return mapError(e.QueryRow(ctx, sql, args...).Scan(&category.ID))
}
