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

// TagPatch holds the fields a tag update may change
type TagPatch struct {
	Name *string `json:"name"`
}

// Tags is the tag store. Names are normalized before every lookup and write.
type Tags interface {
	repository.Repository[*Tag]

	GetByName(ctx context.Context, tx bun.IDB, name string) (*Tag, error)
	ListPage(ctx context.Context, tx bun.IDB, req pagination.Request) (*pagination.Page[*Tag], error)
	Ensure(ctx context.Context, tx bun.IDB, name string) (*Tag, error)
	EnsureMany(ctx context.Context, tx bun.IDB, names []string) ([]*Tag, error)
	Patch(ctx context.Context, tx bun.IDB, id uuid.UUID, patch TagPatch) (*Tag, error)
	Remove(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

type tags struct {
	db *bun.DB
	repository.Repository[*Tag]
}

var _ Tags = (*tags)(nil)

// NewTagsRepository returns the bun backed tag store
func NewTagsRepository(db *bun.DB) Tags {
	return &tags{
		db:         db,
		Repository: repository.NewRepository[*Tag](db, repository.ModelHandlers[*Tag]{
			NewRecord: func() *Tag { return &Tag{} },
			GetID: func(t *Tag) uuid.UUID {
				if t == nil {
					return uuid.Nil
				}
				return t.ID
			},
			SetID: func(t *Tag, id uuid.UUID) {
				if t != nil {
					t.ID = id
				}
			},
			GetIdentifier: func() string { return "name" },
			GetIdentifierValue: func(t *Tag) string {
				if t == nil {
					return ""
				}
				return t.Name
			},
		}),
	}
}

// NormalizeTagName trims and lowercases a tag name
func NormalizeTagName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// SplitTagNames expands comma separated entries, normalizes every name
// and drops empties and duplicates keeping first seen order
func SplitTagNames(values ...string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			name := NormalizeTagName(part)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

func (t *tags) GetByName(ctx context.Context, tx bun.IDB, name string) (*Tag, error) {
	return t.GetTx(ctx, tx, repository.SelectBy("name", "=", NormalizeTagName(name)))
}

func (t *tags) ListPage(ctx context.Context, tx bun.IDB, req pagination.Request) (*pagination.Page[*Tag], error) {
	return pagination.Paginate(ctx, &listSource[*Tag]{
		repo: t.Repository,
		db:   tx,
		orderings: map[string]string{
			"id":   "?TableAlias.id",
			"name": "lower(?TableAlias.name)",
		},
		filter: searchCriteria("name", req.Search),
	}, req)
}

func (t *tags) Create(ctx context.Context, record *Tag, criteria ...repository.InsertCriteria) (*Tag, error) {
	return t.CreateTx(ctx, t.db, record, criteria...)
}

func (t *tags) CreateTx(ctx context.Context, tx bun.IDB, record *Tag, criteria ...repository.InsertCriteria) (*Tag, error) {
	if err := prepareTag(record); err != nil {
		return nil, err
	}
	return t.Repository.CreateTx(ctx, tx, record, criteria...)
}

// Ensure returns the tag named name, creating it on a miss. A
// concurrent insert of the same name is resolved by re-reading once.
func (t *tags) Ensure(ctx context.Context, tx bun.IDB, name string) (*Tag, error) {
	name = NormalizeTagName(name)
	if name == "" {
		return nil, errTagNameRequired()
	}

	tag, err := t.GetByName(ctx, tx, name)
	if err == nil {
		return tag, nil
	}

	if !repository.IsRecordNotFound(err) {
		return nil, err
	}

	err = withSavepoint(ctx, tx, "ensure_tag", func() (err error) {
		tag, err = t.CreateTx(ctx, tx, &Tag{Name: name})
		return err
	})
	if err == nil {
		return tag, nil
	}

	if repository.IsDuplicatedKey(err) {
		return t.GetByName(ctx, tx, name)
	}

	return nil, err
}

func (t *tags) EnsureMany(ctx context.Context, tx bun.IDB, names []string) ([]*Tag, error) {
	out := make([]*Tag, 0, len(names))
	for _, name := range SplitTagNames(names...) {
		tag, err := t.Ensure(ctx, tx, name)
		if err != nil {
			return nil, err
		}
		out = append(out, tag)
	}
	return out, nil
}

func (t *tags) Patch(ctx context.Context, tx bun.IDB, id uuid.UUID, patch TagPatch) (*Tag, error) {
	tag, err := t.GetByIDTx(ctx, tx, id.String())
	if err != nil {
		return nil, err
	}

	if patch.Name == nil {
		return tag, nil
	}

	tag.Name = *patch.Name
	if err := prepareTag(tag); err != nil {
		return nil, err
	}

	return t.UpdateTx(ctx, tx, tag, repository.UpdateColumns("name"))
}

func (t *tags) Remove(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	tag, err := t.GetByIDTx(ctx, tx, id.String())
	if err != nil {
		return err
	}
	return t.DeleteTx(ctx, tx, tag)
}

func prepareTag(tag *Tag) error {
	if tag == nil {
		return errors.New("tag must not be nil", errors.CategoryInternal)
	}
	tag.Name = NormalizeTagName(tag.Name)
	if tag.Name == "" {
		return errTagNameRequired()
	}
	return nil
}

func errTagNameRequired() error {
	return errors.NewValidation("invalid tag", errors.FieldError{
		Field:   "name",
		Message: "cannot be blank",
	})
}
