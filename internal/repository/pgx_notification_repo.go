package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dialect"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/bob/dialect/psql/um"
	"github.com/yakoovad/finflow/internal/db"
	"github.com/yakoovad/finflow/internal/model"
)

type Notification struct {
	ID        string                 `db:"id"`
	TeamID    string                 `db:"team_id"`
	UserID    string                 `db:"user_id"`
	EventID   string                 `db:"event_id"`
	Type      model.NotificationType `db:"type"`
	Title     string                 `db:"title"`
	Body      string                 `db:"body"`
	ReadAt    *time.Time             `db:"read_at"`
	CreatedAt time.Time              `db:"created_at"`
}

type NotificationRepository interface {
	// Create stores n unless a notification for the same event and user exists.
	// It reports whether a row was inserted.
	Create(ctx context.Context, n *Notification) (bool, error)
	List(ctx context.Context, teamID, userID string, limit int) ([]*Notification, error)
	MarkRead(ctx context.Context, teamID, userID string, ids []string, at time.Time) (int64, error)
}

var notificationColumns = []any{"id", "team_id", "user_id", "event_id", "type", "title", "body", "read_at", "created_at"}

type pgxNotificationRepository struct {
	pool *pgxpool.Pool
}

func NewPgxNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &pgxNotificationRepository{pool: pool}
}

func scanNotification(row pgx.Row) (*Notification, error) {
	n := &Notification{}
	var eventID *string
	if err := row.Scan(&n.ID, &n.TeamID, &n.UserID, &eventID, &n.Type, &n.Title, &n.Body, &n.ReadAt, &n.CreatedAt); err != nil {
		return nil, mapError(err)
	}
	if eventID != nil {
		n.EventID = *eventID
	}
	return n, nil
}

func (p *pgxNotificationRepository) Create(ctx context.Context, n *Notification) (bool, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	sql, args, err := createNotificationQuery(n).Build(ctx)
	if err != nil {
		return false, err
	}

	stored, err := scanNotification(e.QueryRow(ctx, sql, args...))
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	*n = *stored
	return true, nil
}

func createNotificationQuery(n *Notification) bob.BaseQuery[*dialect.InsertQuery] {
	return psql.Insert(
		im.Into("notifications", "id", "team_id", "user_id", "event_id", "type", "title", "body"),
		im.Values(
			psql.Arg(withID(n.ID)),
			psql.Arg(n.TeamID),
			psql.Arg(n.UserID),
			psql.Arg(nullable(n.EventID)),
			psql.Arg(n.Type),
			psql.Arg(n.Title),
			psql.Arg(n.Body),
		),
		im.OnConflict(psql.Quote("event_id"), psql.Quote("user_id")).DoNothing(),
		im.Returning(notificationColumns...),
	)
}

func (p *pgxNotificationRepository) List(ctx context.Context, teamID, userID string, limit int) ([]*Notification, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(notificationColumns...),
		sm.From("notifications"),
		sm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID)).And(psql.Quote("user_id").EQ(psql.Arg(userID)))),
		sm.OrderBy("created_at").Desc(),
		sm.Limit(limit),
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

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Notification, error) {
		return scanNotification(row)
	})
}

func (p *pgxNotificationRepository) MarkRead(ctx context.Context, teamID, userID string, ids []string, at time.Time) (int64, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Update(
		um.Table("notifications"),
		um.SetCol("read_at").ToArg(at),
		um.Where(psql.Quote("team_id").EQ(psql.Arg(teamID)).And(psql.Quote("user_id").EQ(psql.Arg(userID)))),
		um.Where(psql.Raw("id = ANY(CAST(? AS uuid[]))", ids)),
		um.Where(psql.Quote("read_at").IsNull()),
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
