package blog

import (
	"context"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

// SeedTarget selects which records Seed writes
type SeedTarget string

const (
	SeedAll        SeedTarget = "all"
	SeedUsers      SeedTarget = "users"
	SeedCategories SeedTarget = "categories"
	SeedTags       SeedTarget = "tags"
)

// ParseSeedTarget defaults to SeedAll for an empty value
func ParseSeedTarget(s string) (SeedTarget, error) {
	switch target := SeedTarget(strings.ToLower(strings.TrimSpace(s))); target {
	case "":
		return SeedAll, nil
	case SeedAll, SeedUsers, SeedCategories, SeedTags:
		return target, nil
	}
	return "", goerrors.New(fmt.Sprintf("unknown seed target %q", s), goerrors.CategoryBadInput).
		WithTextCode("UNKNOWN_SEED_TARGET")
}

// SeedUser is a demo account. An empty password gets a random hash,
// the account can then only be used after a reset.
type SeedUser struct {
	Email    string
	Password string
	FullName string
	Role     UserRole
}

// SeedData is the content written by Seed
type SeedData struct {
	Users      []SeedUser
	Categories []string
	Tags       []string
}

// DefaultSeedData holds the demo principals and taxonomy
func DefaultSeedData() SeedData {
	return SeedData{
		Users: []SeedUser{
			{Email: "admin@example.com", Password: "admin-password", FullName: "Admin", Role: RoleAdmin},
			{Email: "editor@example.com", Password: "editor-password", FullName: "Editor", Role: RoleEditor},
			{Email: "user@example.com", Password: "user-password", FullName: "User", Role: RoleUser},
		},
		Categories: []string{"General", "Engineering", "Announcements"},
		Tags:       []string{"go", "databases", "http", "release"},
	}
}

// SeedResult counts the records touched per target
type SeedResult struct {
	Users      int `json:"users"`
	Categories int `json:"categories"`
	Tags       int `json:"tags"`
}

// Seeder writes SeedData. Every write is an upsert so running it again
// leaves the store unchanged.
type Seeder struct {
	repo      RepositoryManager
	passwords PasswordAuthenticator
	logger    Logger
}

func NewSeeder(repo RepositoryManager, logger Logger) *Seeder {
	return &Seeder{
		repo:      repo,
		passwords: DefaultPasswordAuthenticator,
		logger:    ensureLogger(logger),
	}
}

// Seed writes the records selected by target in a single transaction
func (s *Seeder) Seed(ctx context.Context, target SeedTarget, data SeedData) (SeedResult, error) {
	var result SeedResult

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if target == SeedAll || target == SeedUsers {
			n, err := s.seedUsers(ctx, tx, data.Users)
			if err != nil {
				return err
			}
			result.Users = n
		}

		if target == SeedAll || target == SeedCategories {
			for _, name := range data.Categories {
				if _, err := s.repo.Categories().Ensure(ctx, tx, name); err != nil {
					return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to seed category "+name)
				}
				result.Categories++
			}
		}

		if target == SeedAll || target == SeedTags {
			tags, err := s.repo.Tags().EnsureMany(ctx, tx, data.Tags)
			if err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to seed tags")
			}
			result.Tags = len(tags)
		}

		return nil
	})

	if err != nil {
		return SeedResult{}, err
	}

	s.logger.Info("seed completed",
		"target", target,
		"users", result.Users,
		"categories", result.Categories,
		"tags", result.Tags,
	)

	return result, nil
}

func (s *Seeder) seedUsers(ctx context.Context, tx bun.IDB, seeds []SeedUser) (int, error) {
	count := 0
	for _, seed := range seeds {
		email := NormalizeEmail(seed.Email)

		record := &User{
			Email:    email,
			FullName: seed.FullName,
			Role:     seed.Role,
			Status:   UserStatusActive,
		}

		if id, err := hashid.NewUUID(email); err == nil {
			record.ID = id
		}

		// only new principals get a hash, UpsertTx keeps the stored one
		if _, err := s.repo.Users().GetByEmailTx(ctx, tx, email); err != nil {
			if !IsNotFound(err) {
				return count, err
			}
			hash, err := s.hash(seed.Password)
			if err != nil {
				return count, err
			}
			record.PasswordHash = hash
		}

		if _, err := s.repo.Users().UpsertTx(ctx, tx, record); err != nil {
			return count, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to seed user "+email)
		}
		count++
	}
	return count, nil
}

func (s *Seeder) hash(password string) (string, error) {
	if password == "" {
		return RandomPasswordHash(), nil
	}
	return s.passwords.HashPassword(password)
}
