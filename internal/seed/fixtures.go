package seed

import (
	_ "embed"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed fixtures.yaml
var defaultFixtures []byte

type Fixtures struct {
	Teams []TeamFixture `yaml:"teams" validate:"dive"`
	Users []UserFixture `yaml:"users" validate:"dive"`
}

type TeamFixture struct {
	Slug         string            `yaml:"slug" validate:"required,max=64"`
	Name         string            `yaml:"name" validate:"required,max=128"`
	Email        string            `yaml:"email" validate:"omitempty,email"`
	BaseCurrency string            `yaml:"base_currency" validate:"omitempty,iso4217"`
	Tags         []string          `yaml:"tags" validate:"dive,required"`
	Categories   []CategoryFixture `yaml:"categories" validate:"dive"`
	Customers    []CustomerFixture `yaml:"customers" validate:"dive"`
}

type CategoryFixture struct {
	Slug        string `yaml:"slug" validate:"required"`
	Name        string `yaml:"name" validate:"required"`
	Color       string `yaml:"color" validate:"omitempty,hexcolor"`
	Description string `yaml:"description"`
	VAT         string `yaml:"vat" validate:"omitempty,numeric"`
}

type CustomerFixture struct {
	Name    string `yaml:"name" validate:"required"`
	Email   string `yaml:"email" validate:"required,email"`
	Website string `yaml:"website"`
	Country string `yaml:"country" validate:"omitempty,iso3166_1_alpha2"`
}

type UserFixture struct {
	Email    string              `yaml:"email" validate:"required,email"`
	FullName string              `yaml:"full_name" validate:"required"`
	Locale   string              `yaml:"locale"`
	Teams    []MembershipFixture `yaml:"teams" validate:"dive"`
}

// MembershipFixture places a user in a team. The first membership becomes the user's current team.
type MembershipFixture struct {
	Slug string `yaml:"slug" validate:"required"`
	Role string `yaml:"role" validate:"required,oneof=OWNER MEMBER"`
}

// Default returns the fixture set compiled into the binary.
func Default() (*Fixtures, error) {
	return Parse(defaultFixtures)
}

func LoadFile(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return Parse(data)
}

// Parse decodes and validates fixtures. Memberships must point at a team declared in the same set.
func Parse(data []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "decoding fixtures")
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(&f); err != nil {
		return nil, errors.Wrap(err, "invalid fixtures")
	}

	slugs := make(map[string]struct{}, len(f.Teams))
	for _, t := range f.Teams {
		if _, dup := slugs[t.Slug]; dup {
			return nil, errors.Errorf("team %q declared twice", t.Slug)
		}
		slugs[t.Slug] = struct{}{}
	}
	for _, u := range f.Users {
		for _, m := range u.Teams {
			if _, ok := slugs[m.Slug]; !ok {
				return nil, errors.Errorf("user %s references unknown team %q", u.Email, m.Slug)
			}
		}
	}

	return &f, nil
}
