package seed

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/yakoovad/finflow/internal/db"
	"github.com/yakoovad/finflow/internal/model"
	"github.com/yakoovad/finflow/internal/repository"
	"github.com/yakoovad/finflow/pkg/logger"
	"go.uber.org/zap"
)

type Result struct {
	Teams       int
	Users       int
	Memberships int
	Tags        int
	Categories  int
	Customers   int
}

type Seeder struct {
	tx      db.Transactor
	teams   repository.TeamRepository
	users   repository.UserRepository
	catalog repository.CatalogRepository
}

func New(tx db.Transactor) *Seeder {
	return &Seeder{tx: tx}
}

// Apply upserts the fixtures in a single transaction. Every write keys on a natural key,
// so applying the same set again leaves the database unchanged.
func (s *Seeder) Apply(ctx context.Context, f *Fixtures) (Result, error) {
	l := logger.FromContext(ctx)

	var res Result
	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		res = Result{}

		teamIDs := make(map[string]string, len(f.Teams))
		for _, tf := range f.Teams {
			id, err := s.applyTeam(txCtx, tf, &res)
			if err != nil {
				return errors.Wrapf(err, "team %s", tf.Slug)
			}
			teamIDs[tf.Slug] = id
		}

		for _, uf := range f.Users {
			if err := s.applyUser(txCtx, uf, teamIDs, &res); err != nil {
				return errors.Wrapf(err, "user %s", uf.Email)
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	l.Info("fixtures applied",
		zap.Int("teams", res.Teams),
		zap.Int("users", res.Users),
		zap.Int("memberships", res.Memberships),
		zap.Int("tags", res.Tags),
		zap.Int("categories", res.Categories),
		zap.Int("customers", res.Customers),
	)
	return res, nil
}

func (s *Seeder) applyTeam(ctx context.Context, tf TeamFixture, res *Result) (string, error) {
	team := &repository.Team{
		Name:         tf.Name,
		Slug:         tf.Slug,
		Email:        tf.Email,
		BaseCurrency: tf.BaseCurrency,
	}
	if team.BaseCurrency == "" {
		team.BaseCurrency = "USD"
	}
	if err := s.teams.Upsert(ctx, team); err != nil {
		return "", errors.Wrap(err, "upserting team")
	}
	res.Teams++

	for _, name := range tf.Tags {
		if err := s.catalog.UpsertTag(ctx, &repository.Tag{TeamID: team.ID, Name: name}); err != nil {
			return "", errors.Wrapf(err, "upserting tag %s", name)
		}
		res.Tags++
	}

	for _, cf := range tf.Categories {
		c := &repository.Category{
			TeamID:      team.ID,
			Name:        cf.Name,
			Slug:        cf.Slug,
			Color:       cf.Color,
			Description: cf.Description,
		}
		if cf.VAT != "" {
			vat, err := decimal.NewFromString(cf.VAT)
			if err != nil {
				return "", errors.Wrapf(err, "category %s vat", cf.Slug)
			}
			c.VAT = &vat
		}
		if err := s.catalog.UpsertCategory(ctx, c); err != nil {
			return "", errors.Wrapf(err, "upserting category %s", cf.Slug)
		}
		res.Categories++
	}

	for _, cf := range tf.Customers {
		c := &repository.Customer{
			TeamID:  team.ID,
			Name:    cf.Name,
			Email:   strings.ToLower(cf.Email),
			Website: cf.Website,
			Country: cf.Country,
		}
		if err := s.catalog.UpsertCustomer(ctx, c); err != nil {
			return "", errors.Wrapf(err, "upserting customer %s", cf.Email)
		}
		res.Customers++
	}

	return team.ID, nil
}

func (s *Seeder) applyUser(ctx context.Context, uf UserFixture, teamIDs map[string]string, res *Result) error {
	user := &repository.User{
		FullName: uf.FullName,
		Email:    strings.ToLower(uf.Email),
		Locale:   uf.Locale,
	}
	if len(uf.Teams) > 0 {
		user.TeamID = teamIDs[uf.Teams[0].Slug]
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return errors.Wrap(err, "upserting user")
	}
	res.Users++

	for _, m := range uf.Teams {
		if err := s.teams.UpsertMember(ctx, teamIDs[m.Slug], user.ID, model.TeamRole(m.Role)); err != nil {
			return errors.Wrapf(err, "adding to %s", m.Slug)
		}
		res.Memberships++
	}
	return nil
}

func (s *Seeder) WithTeamRepo(r repository.TeamRepository) *Seeder {
	s.teams = r
	return s
}

func (s *Seeder) WithUserRepo(r repository.UserRepository) *Seeder {
	s.users = r
	return s
}

func (s *Seeder) WithCatalogRepo(r repository.CatalogRepository) *Seeder {
	s.catalog = r
	return s
}
