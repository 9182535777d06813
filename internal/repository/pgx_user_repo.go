package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dialect"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/bob/dialect/psql/um"
	"github.com/yakoovad/finflow/internal/db"
)

type User struct {
	ID        string `db:"id"`
	FullName  string `db:"full_name"`
	Email     string `db:"email"`
	AvatarURL string `db:"avatar_url"`
	TeamID    string `db:"team_id"`
	Locale    string `db:"locale"`
}

type UserPatch struct {
	ID        string
	FullName  *string
	AvatarURL *string
	Locale    *string
}

type UserRepository interface {
	Get(ctx context.Context, userID string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Upsert(ctx context.Context, user *User) error
	SetTeam(ctx context.Context, userID, teamID string) error
	Patch(ctx context.Context, patch *UserPatch) (*User, error)
}

var userColumns = []any{"id", "full_name", "email", "COALESCE(avatar_url, '')", "COALESCE(team_id::text, '')", "locale"}

type pgxUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgxUserRepository(pool *pgxpool.Pool) UserRepository {
	return &pgxUserRepository{pool: pool}
}

func scanUser(row pgx.Row) (*User, error) {
	u := &User{}
	if err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.AvatarURL, &u.TeamID, &u.Locale); err != nil {
		return nil, mapError(err)
	}
	return u, nil
}

// Upsert inserts or updates the user keyed by email and sets user.ID to the stored id.
func (p *pgxUserRepository) Upsert(ctx context.Context, user *User) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	locale := user.Locale
	if locale == "" {
		locale = "en"
	}

	q := psql.Insert(
		im.Into("users", "id", "full_name", "email", "avatar_url", "team_id", "locale"),
		im.Values(
			psql.Arg(withID(user.ID)),
			psql.Arg(user.FullName),
			psql.Arg(user.Email),
			psql.Arg(nullable(user.AvatarURL)),
			psql.Arg(nullable(user.TeamID)),
			psql.Arg(locale),
		),
		im.OnConflict(psql.Quote("email")).DoUpdate(
			im.SetCol("full_name").ToArg(user.FullName),
			im.SetCol("avatar_url").ToArg(nullable(user.AvatarURL)),
			im.SetCol("team_id").ToArg(nullable(user.TeamID)),
			im.SetCol("locale").ToArg(locale),
		),
		im.Returning("id"),
	)
	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	return mapError(e.QueryRow(ctx, sql, args...).Scan(&user.ID))
}

func (p *pgxUserRepository) SetTeam(ctx context.Context, userID, teamID string) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Update(
		um.Table("users"),
		um.SetCol("team_id").ToArg(nullable(teamID)),
		um.Where(psql.Quote("id").EQ(psql.Arg(userID))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	tag, err := e.Exec(ctx, sql, args...)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *pgxUserRepository) Get(ctx context.Context, userID string) (*User, error) {
	return p.getBy(ctx, "id", userID)
}

func (p *pgxUserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return p.getBy(ctx, "email", email)
}

func (p *pgxUserRepository) getBy(ctx context.Context, column, value string) (*User, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(userColumns...),
		sm.From("users"),
		sm.Where(psql.Quote(column).EQ(psql.Arg(value))),
	)
	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	return scanUser(e.QueryRow(ctx, sql, args...))
}

func (p *pgxUserRepository) Patch(ctx context.Context, patch *UserPatch) (*User, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	sets := make([]bob.Mod[*dialect.UpdateQuery], 0, 3)
	if patch.FullName != nil {
		sets = append(sets, um.SetCol("full_name").ToArg(*patch.FullName))
	}
	if patch.AvatarURL != nil {
		sets = append(sets, um.SetCol("avatar_url").ToArg(nullable(*patch.AvatarURL)))
	}
	if patch.Locale != nil {
		sets = append(sets, um.SetCol("locale").ToArg(*patch.Locale))
	}
	if len(sets) == 0 {
		return p.Get(ctx, patch.ID)
	}

	q := psql.Update(
		um.Table("users"),
		um.Where(psql.Quote("id").EQ(psql.Arg(patch.ID))),
		um.Returning(userColumns...),
	)
	q.Apply(sets...)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	return scanUser(e.QueryRow(ctx, sql, args...))
}
