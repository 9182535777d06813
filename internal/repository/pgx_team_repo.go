package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
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

type Team struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Slug         string    `db:"slug"`
	Email        string    `db:"email"`
	LogoURL      string    `db:"logo_url"`
	BaseCurrency string    `db:"base_currency"`
	CreatedAt    time.Time `db:"created_at"`
}

type TeamPatch struct {
	ID           string  `db:"id"`
	Name         *string `db:"name"`
	Email        *string `db:"email"`
	BaseCurrency *string `db:"base_currency"`
}

type Member struct {
	UserID   string         `db:"user_id"`
	TeamID   string         `db:"team_id"`
	FullName string         `db:"full_name"`
	Email    string         `db:"email"`
	Role     model.TeamRole `db:"role"`
}

type TeamRepository interface {
	Upsert(ctx context.Context, team *Team) error
	Get(ctx context.Context, id string) (*Team, error)
	Patch(ctx context.Context, patch *TeamPatch) (*Team, error)

	// AddMember inserts a membership and returns ErrAlreadyExists when the user is already in the team.
	AddMember(ctx context.Context, teamID, userID string, role model.TeamRole) error
	// UpsertMember inserts a membership or overwrites the role of an existing one.
	UpsertMember(ctx context.Context, teamID, userID string, role model.TeamRole) error
	GetMember(ctx context.Context, teamID, userID string) (*Member, error)
	GetTeamMembers(ctx context.Context, teamID string) ([]*Member, error)
	UpdateMemberRole(ctx context.Context, teamID, userID string, role model.TeamRole) error
	RemoveMember(ctx context.Context, teamID, userID string) error
	// CountOwners locks the team's owner rows until the surrounding transaction ends.
	CountOwners(ctx context.Context, teamID string) (int, error)
}

var teamColumns = []any{"id", "name", "slug", "COALESCE(email, '')", "COALESCE(logo_url, '')", "base_currency", "created_at"}

type pgxTeamRepository struct {
	pool *pgxpool.Pool
}

func NewPgxTeamRepository(pool *pgxpool.Pool) TeamRepository {
	return &pgxTeamRepository{pool: pool}
}

func scanTeam(row pgx.Row) (*Team, error) {
	t := &Team{}
	if err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.Email, &t.LogoURL, &t.BaseCurrency, &t.CreatedAt); err != nil {
		return nil, mapError(err)
	}
	return t, nil
}

// Upsert inserts the team or updates it by slug, and sets team.ID to the stored id.
func (p *pgxTeamRepository) Upsert(ctx context.Context, team *Team) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("teams", "id", "name", "slug", "email", "logo_url", "base_currency"),
		im.Values(
			psql.Arg(withID(team.ID)),
			psql.Arg(team.Name),
			psql.Arg(team.Slug),
			psql.Arg(nullable(team.Email)),
			psql.Arg(nullable(team.LogoURL)),
			psql.Arg(team.BaseCurrency),
		),
		im.OnConflict(psql.Quote("slug")).DoUpdate(
			im.SetCol("name").ToArg(team.Name),
			im.SetCol("email").ToArg(nullable(team.Email)),
			im.SetCol("logo_url").ToArg(nullable(team.LogoURL)),
			im.SetCol("base_currency").ToArg(team.BaseCurrency),
		),
		im.Returning("id"),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	return mapError(e.QueryRow(ctx, sql, args...).Scan(&team.ID))
}

func (p *pgxTeamRepository) Get(ctx context.Context, id string) (*Team, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(teamColumns...),
		sm.From("teams"),
		sm.Where(psql.Quote("id").EQ(psql.Arg(id))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	return scanTeam(e.QueryRow(ctx, sql, args...))
}

func (p *pgxTeamRepository) Patch(ctx context.Context, patch *TeamPatch) (*Team, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	sets := make([]bob.Mod[*dialect.UpdateQuery], 0, 3)
	if patch.Name != nil {
		sets = append(sets, um.SetCol("name").ToArg(*patch.Name))
	}
	if patch.Email != nil {
		sets = append(sets, um.SetCol("email").ToArg(nullable(*patch.Email)))
	}
	if patch.BaseCurrency != nil {
		sets = append(sets, um.SetCol("base_currency").ToArg(*patch.BaseCurrency))
	}
	if len(sets) == 0 {
		return p.Get(ctx, patch.ID)
	}

	q := psql.Update(
		um.Table("teams"),
		um.Where(psql.Quote("id").EQ(psql.Arg(patch.ID))),
		um.Returning(teamColumns...),
	)
	q.Apply(sets...)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	return scanTeam(e.QueryRow(ctx, sql, args...))
}

func (p *pgxTeamRepository) AddMember(ctx context.Context, teamID, userID string, role model.TeamRole) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("users_on_team", "id", "user_id", "team_id", "role"),
		im.Values(psql.Arg(newID()), psql.Arg(userID), psql.Arg(teamID), psql.Arg(role)),
		im.OnConflict(psql.Quote("user_id"), psql.Quote("team_id")).DoNothing(),
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
		return ErrAlreadyExists
	}
	return nil
}

func (p *pgxTeamRepository) UpsertMember(ctx context.Context, teamID, userID string, role model.TeamRole) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("users_on_team", "id", "user_id", "team_id", "role"),
		im.Values(psql.Arg(newID()), psql.Arg(userID), psql.Arg(teamID), psql.Arg(role)),
		im.OnConflict(psql.Quote("user_id"), psql.Quote("team_id")).DoUpdate(
			im.SetCol("role").ToArg(role),
		),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	_, err = e.Exec(ctx, sql, args...)
	return mapError(err)
}

func (p *pgxTeamRepository) memberQuery(teamID string, extra ...bob.Mod[*dialect.SelectQuery]) bob.BaseQuery[*dialect.SelectQuery] {
	q := psql.Select(
		sm.Columns("m.user_id", "m.team_id", "u.full_name", "u.email", "m.role"),
		sm.From("users_on_team").As("m"),
		sm.InnerJoin("users AS u").On(psql.Quote("u", "id").EQ(psql.Quote("m", "user_id"))),
		sm.Where(psql.Quote("m", "team_id").EQ(psql.Arg(teamID))),
	)
	q.Apply(extra...)
	return q
}

func scanMember(row pgx.Row) (*Member, error) {
	m := &Member{}
	if err := row.Scan(&m.UserID, &m.TeamID, &m.FullName, &m.Email, &m.Role); err != nil {
		return nil, err
	}
	return m, nil
}

func (p *pgxTeamRepository) GetMember(ctx context.Context, teamID, userID string) (*Member, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := p.memberQuery(teamID, sm.Where(psql.Quote("m", "user_id").EQ(psql.Arg(userID))))

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	m, err := scanMember(e.QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, mapError(err)
	}
	return m, nil
}

func (p *pgxTeamRepository) GetTeamMembers(ctx context.Context, teamID string) ([]*Member, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := p.memberQuery(teamID, sm.OrderBy(psql.Quote("m", "created_at")))

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Member, error) {
		return scanMember(row)
	})
}

func (p *pgxTeamRepository) UpdateMemberRole(ctx context.Context, teamID, userID string, role model.TeamRole) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Update(
		um.Table("users_on_team"),
		um.SetCol("role").ToArg(role),
		um.Where(psql.Quote("team_id").EQ(psql.Arg(teamID)).And(psql.Quote("user_id").EQ(psql.Arg(userID)))),
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

func (p *pgxTeamRepository) RemoveMember(ctx context.Context, teamID, userID string) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Delete(
		dm.From("users_on_team"),
		dm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID)).And(psql.Quote("user_id").EQ(psql.Arg(userID)))),
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

// ownersQuery selects the owner rows FOR UPDATE. Aggregates cannot take row locks,
// so the rows are counted by the caller.
func ownersQuery(teamID string) bob.BaseQuery[*dialect.SelectQuery] {
	return psql.Select(
		sm.Columns("user_id"),
		sm.From("users_on_team"),
		sm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID)).And(psql.Quote("role").EQ(psql.Arg(model.TeamRoleOwner)))),
		sm.ForUpdate(),
	)
}

func (p *pgxTeamRepository) CountOwners(ctx context.Context, teamID string) (int, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	sql, args, err := ownersQuery(teamID).Build(ctx)
	if err != nil {
		return 0, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	owners, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return 0, err
	}
	return len(owners), nil
}
