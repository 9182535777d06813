package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dm"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/yakoovad/finflow/internal/db"
	"github.com/yakoovad/finflow/internal/model"
)

type Invite struct {
	ID        string         `db:"id"`
	TeamID    string         `db:"team_id"`
	Email     string         `db:"email"`
	Role      model.TeamRole `db:"role"`
	Code      string         `db:"code"`
	InvitedBy string         `db:"invited_by"`
	CreatedAt time.Time      `db:"created_at"`
}

type InviteRepository interface {
	// Upsert keys on (team_id, email); a re-invite refreshes role and code.
	Upsert(ctx context.Context, invite *Invite) error
	List(ctx context.Context, teamID string) ([]*Invite, error)
	GetByCode(ctx context.Context, code string) (*Invite, error)
	Delete(ctx context.Context, teamID, inviteID string) error
}

var inviteColumns = []any{"id", "team_id", "email", "role", "code", "COALESCE(invited_by::text, '')", "created_at"}

type pgxInviteRepository struct {
	pool *pgxpool.Pool
}

func NewPgxInviteRepository(pool *pgxpool.Pool) InviteRepository {
	return &pgxInviteRepository{pool: pool}
}

func scanInvite(row pgx.Row) (*Invite, error) {
	i := &Invite{}
	if err := row.Scan(&i.ID, &i.TeamID, &i.Email, &i.Role, &i.Code, &i.InvitedBy, &i.CreatedAt); err != nil {
		return nil, mapError(err)
	}
	return i, nil
}

func (p *pgxInviteRepository) Upsert(ctx context.Context, invite *Invite) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("user_invites", "id", "team_id", "email", "role", "code", "invited_by"),
		im.Values(
			psql.Arg(withID(invite.ID)),
			psql.Arg(invite.TeamID),
			psql.Arg(invite.Email),
			psql.Arg(invite.Role),
			psql.Arg(invite.Code),
			psql.Arg(nullable(invite.InvitedBy)),
		),
		im.OnConflict(psql.Quote("team_id"), psql.Quote("email")).DoUpdate(
			im.SetCol("role").ToArg(invite.Role),
			im.SetCol("code").ToArg(invite.Code),
			im.SetCol("invited_by").ToArg(nullable(invite.InvitedBy)),
		),
		im.Returning(inviteColumns...),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	stored, err := scanInvite(e.QueryRow(ctx, sql, args...))
	if err != nil {
		return err
	}
	*invite = *stored
	return nil
}

func (p *pgxInviteRepository) List(ctx context.Context, teamID string) ([]*Invite, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(inviteColumns...),
		sm.From("user_invites"),
		sm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID))),
		sm.OrderBy("created_at").Desc(),
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

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Invite, error) {
		return scanInvite(row)
	})
}

func (p *pgxInviteRepository) GetByCode(ctx context.Context, code string) (*Invite, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(inviteColumns...),
		sm.From("user_invites"),
		sm.Where(psql.Quote("code").EQ(psql.Arg(code))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	return scanInvite(e.QueryRow(ctx, sql, args...))
}

func (p *pgxInviteRepository) Delete(ctx context.Context, teamID, inviteID string) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Delete(
		dm.From("user_invites"),
		dm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID)).And(psql.Quote("id").EQ(psql.Arg(inviteID)))),
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
