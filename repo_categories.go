package blog

import (
	"context"
	"strings"

	"github.com/goliatone/go-blog/pagination"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CategoryPatch holds the fields a category update may change
type CategoryPatch struct {
	Name *string `json:"name"`
	Slug *string `json:"slug"`
}

// Categories is the category store
type Categories interface {
	repository.Repository[*Category]

	GetBySlug(ctx context.Context, tx bun.IDB, slug string) (*Category, error)
	ListPage(ctx context.Context, tx bun.IDB, req pagination.Request) (*pagination.Page[*Category], error)
	Ensure(ctx context.Context, tx bun.IDB, name string) (*Category, error)
	Patch(ctx context.Context, tx bun.IDB, id uuid.UUID, patch CategoryPatch) (*Category, error)
	Remove(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

type categories struct {
	db *bun.DB
	repository.Repository[*Category]
}

var _ Categories = (*categories)(nil)

// NewCategoriesRepository returns the bun backed category store
func NewCategoriesRepository(db *bun.DB) Categories {
	return &categories{
		db:         db,
		Repository: repository.NewRepository[*Category](db, repository.ModelHandlers[*Category]{
			NewRecord: func() *Category { return &Category{} },
			GetID: func(c *Category) uuid.UUID {
				if c == nil {
					return uuid.Nil
				}
				return c.ID
			},
			SetID: func(c *Category, id uuid.UUID) {
				if c != nil {
					c.ID = id
				}
			},
			GetIdentifier: func() string { return "slug" },
			GetIdentifierValue: func(c *Category) string {
				if c == nil {
					return ""
				}
				return c.Slug
			},
		}),
	}
}

func (c *categories) GetBySlug(ctx context.Context, tx bun.IDB, slug string) (*Category, error) {
	return c.GetTx(ctx, tx, repository.SelectBy("slug", "=", strings.TrimSpace(slug)))
}

func (c *categories) ListPage(ctx context.Context, tx bun.IDB, req pagination.Request) (*pagination.Page[*Category], error) {
	return pagination.Paginate(ctx, &listSource[*Category]{
		repo: c.Repository,
		db:   tx,
		orderings: map[string]string{
			"id":   "?TableAlias.id",
			"name": "lower(?TableAlias.name)",
			"slug": "?TableAlias.slug",
		},
		filter: searchCriteria("name", req.Search),
	}, req)
}

func (c *categories) Create(ctx context.Context, record *Category, criteria ...repository.InsertCriteria) (*Category, error) {
	return c.CreateTx(ctx, c.db, record, criteria...)
}

func (c *categories) CreateTx(ctx context.Context, tx bun.IDB, record *Category, criteria ...repository.InsertCriteria) (*Category, error) {
	if err := prepareCategory(record); err != nil {
		return nil, err
	}
	return c.Repository.CreateTx(ctx, tx, record, criteria...)
}

// Ensure returns the category whose slug matches name, creating it on a miss
func (c *categories) Ensure(ctx context.Context, tx bun.IDB, name string) (*Category, error) {
	record := &Category{Name: name}
	if err := prepareCategory(record); err != nil {
		return nil, err
	}

	found, err := c.GetBySlug(ctx, tx, record.Slug)
	if err == nil {
		return found, nil
	}

	if !repository.IsRecordNotFound(err) {
		return nil, err
	}

	var created *Category
	err = withSavepoint(ctx, tx, "ensure_category", func() (err error) {
		created, err = c.Repository.CreateTx(ctx, tx, record)
		return err
	})
	if err == nil {
		return created, nil
	}

	if repository.IsDuplicatedKey(err) {
		return c.GetBySlug(ctx, tx, record.Slug)
	}

	return nil, err
}

func (c *categories) Patch(ctx context.Context, tx bun.IDB, id uuid.UUID, patch CategoryPatch) (*Category, error) {
	category, err := c.GetByIDTx(ctx, tx, id.String())
	if err != nil {
		return nil, err
	}

	if patch.Name == nil && patch.Slug == nil {
		return category, nil
	}

	if patch.Name != nil {
		category.Name = *patch.Name
	}

	if patch.Slug != nil {
		category.Slug = *patch.Slug
	}

	if err := prepareCategory(category); err != nil {
		return nil, err
	}

	return c.UpdateTx(ctx, tx, category, repository.UpdateColumns("name", "slug"))
}

func (c *categories) Remove(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	category, err := c.GetByIDTx(ctx, tx, id.String())
	if err != nil {
		return err
	}
	return c.DeleteTx(ctx, tx, category)
}

// prepareCategory trims the name and derives the slug when missing
func prepareCategory(category *Category) error {
	if category == nil {
		return errors.New("category must not be nil", errors.CategoryInternal)
	}

	category.Name = strings.TrimSpace(category.Name)
	if category.Name == "" {
		return errors.NewValidation("invalid category", errors.FieldError{
			Field:   "name",
			Message: "cannot be blank",
		})
	}

	if strings.TrimSpace(category.Slug) == "" {
		category.Slug = Slugify(category.Name, "category")
	} else {
		category.Slug = Slugify(category.Slug, "category")
	}

	return nil
}
