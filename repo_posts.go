package blog

import (
	"context"
	"time"

	"github.com/goliatone/go-blog/pagination"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// MaxPostsByTags caps the by-tags listing
const MaxPostsByTags = 100

// PostInput is the payload used to create a post
type PostInput struct {
	Title      string     `json:"title" form:"title"`
	Content    string     `json:"content" form:"content"`
	ImageURL   string     `json:"image_url" form:"image_url"`
	CategoryID *uuid.UUID `json:"category_id" form:"category_id"`
	Tags       []string   `json:"tags" form:"tags"`
}

// PostPatch holds the fields a post update may change, nil fields are kept
type PostPatch struct {
	Title      *string    `json:"title"`
	Content    *string    `json:"content"`
	ImageURL   *string    `json:"image_url"`
	CategoryID *uuid.UUID `json:"category_id"`
	Tags       *[]string  `json:"tags"`
}

// Posts is the post store
type Posts interface {
	repository.Repository[*Post]

	Find(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Post, error)
	ListPage(ctx context.Context, tx bun.IDB, req pagination.Request) (*pagination.Page[*Post], error)
	ByTags(ctx context.Context, tx bun.IDB, names []string) ([]*Post, error)
	CreatePost(ctx context.Context, tx bun.IDB, author *User, input PostInput) (*Post, error)
	Patch(ctx context.Context, tx bun.IDB, id uuid.UUID, patch PostPatch) (*Post, error)
	Remove(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

type posts struct {
	repository.Repository[*Post]
	db         *bun.DB
	tags       Tags
	categories Categories
}

var _ Posts = (*posts)(nil)

// NewPostsRepository returns the bun backed post store. Tags and
// categories are used to resolve post relations on write.
func NewPostsRepository(db *bun.DB, tags Tags, categories Categories) Posts {
	return &posts{
		db:         db,
		tags:       tags,
		categories: categories,
		Repository: repository.NewRepository[*Post](db, repository.ModelHandlers[*Post]{
			NewRecord: func() *Post { return &Post{} },
			GetID: func(p *Post) uuid.UUID {
				if p == nil {
					return uuid.Nil
				}
				return p.ID
			},
			SetID: func(p *Post, id uuid.UUID) {
				if p != nil {
					p.ID = id
				}
			},
			GetIdentifier: func() string { return "slug" },
			GetIdentifierValue: func(p *Post) string {
				if p == nil {
					return ""
				}
				return p.Slug
			},
		}),
	}
}

func postRelations() []repository.SelectCriteria {
	return []repository.SelectCriteria{
		repository.SelectRelation("Author"),
		repository.SelectRelation("Category"),
		repository.SelectRelation("Tags", repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.OrderExpr("?TableAlias.name ASC")
		})),
	}
}

// Find loads a post with its author, category and tags
func (p *posts) Find(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Post, error) {
	return p.GetByIDTx(ctx, tx, id.String(), postRelations()...)
}

func (p *posts) ListPage(ctx context.Context, tx bun.IDB, req pagination.Request) (*pagination.Page[*Post], error) {
	return pagination.Paginate(ctx, &listSource[*Post]{
		repo: p.Repository,
		db:   tx,
		orderings: map[string]string{
			"id":         "?TableAlias.id",
			"title":      "lower(?TableAlias.title)",
			"created_at": "?TableAlias.created_at",
		},
		filter:    searchCriteria("title", req.Search),
		relations: postRelations(),
	}, req)
}

// ByTags returns distinct posts carrying any of the given tags, oldest first
func (p *posts) ByTags(ctx context.Context, tx bun.IDB, names []string) ([]*Post, error) {
	names = SplitTagNames(names...)
	if len(names) == 0 {
		return []*Post{}, nil
	}

	tagged := tx.NewSelect().
		TableExpr("post_tags AS pt").
		ColumnExpr("pt.post_id").
		Join("JOIN tags AS t ON t.id = pt.tag_id").
		Where("t.name IN (?)", bun.In(names))

	criteria := append(postRelations(),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.id IN (?)", tagged).
				OrderExpr("?TableAlias.created_at ASC").
				OrderExpr("?TableAlias.id ASC")
		}),
		repository.SelectPaginate(MaxPostsByTags, 0),
	)

	records, _, err := p.ListTx(ctx, tx, criteria...)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// CreatePost inserts a post authored by author, ensuring its tags and
// allocating a unique slug from the title
func (p *posts) CreatePost(ctx context.Context, tx bun.IDB, author *User, input PostInput) (*Post, error) {
	if author == nil {
		return nil, ErrUnauthenticated
	}

	if err := p.checkCategory(ctx, tx, input.CategoryID); err != nil {
		return nil, err
	}

	slug, err := p.slugFor(ctx, tx, input.Title, uuid.Nil)
	if err != nil {
		return nil, err
	}

	post := &Post{
		ID:         uuid.New(),
		Title:      input.Title,
		Slug:       slug,
		Content:    input.Content,
		ImageURL:   input.ImageURL,
		AuthorID:   author.ID,
		CategoryID: categoryRef(input.CategoryID),
		UpdatedAt:  now(),
	}

	if _, err := p.CreateTx(ctx, tx, post); err != nil {
		return nil, err
	}

	if err := p.setTags(ctx, tx, post.ID, input.Tags); err != nil {
		return nil, err
	}

	return p.Find(ctx, tx, post.ID)
}

func (p *posts) Patch(ctx context.Context, tx bun.IDB, id uuid.UUID, patch PostPatch) (*Post, error) {
	post, err := p.GetByIDTx(ctx, tx, id.String())
	if err != nil {
		return nil, err
	}

	columns := []string{}

	if patch.Title != nil && *patch.Title != post.Title {
		slug, err := p.slugFor(ctx, tx, *patch.Title, post.ID)
		if err != nil {
			return nil, err
		}
		post.Title = *patch.Title
		post.Slug = slug
		columns = append(columns, "title", "slug")
	}

	if patch.Content != nil {
		post.Content = *patch.Content
		columns = append(columns, "content")
	}

	if patch.ImageURL != nil {
		post.ImageURL = *patch.ImageURL
		columns = append(columns, "image_url")
	}

	if patch.CategoryID != nil {
		if err := p.checkCategory(ctx, tx, patch.CategoryID); err != nil {
			return nil, err
		}
		post.CategoryID = categoryRef(patch.CategoryID)
		columns = append(columns, "category_id")
	}

	if len(columns) > 0 || patch.Tags != nil {
		t := time.Now().UTC()
		post.UpdatedAt = &t
		columns = append(columns, "updated_at")

		if _, err := p.UpdateTx(ctx, tx, post, repository.UpdateColumns(columns...)); err != nil {
			return nil, err
		}
	}

	if patch.Tags != nil {
		if err := p.setTags(ctx, tx, post.ID, *patch.Tags); err != nil {
			return nil, err
		}
	}

	return p.Find(ctx, tx, post.ID)
}

func (p *posts) Remove(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	post, err := p.GetByIDTx(ctx, tx, id.String())
	if err != nil {
		return err
	}
	return p.DeleteTx(ctx, tx, post)
}

// setTags replaces the tag set of a post
func (p *posts) setTags(ctx context.Context, tx bun.IDB, postID uuid.UUID, names []string) error {
	tags, err := p.tags.EnsureMany(ctx, tx, names)
	if err != nil {
		return err
	}

	if _, err := tx.NewDelete().
		Model((*PostTag)(nil)).
		Where("post_id = ?", postID).
		Exec(ctx); err != nil {
		return repository.MapDatabaseError(err, repository.DetectDriver(p.db))
	}

	if len(tags) == 0 {
		return nil
	}

	links := make([]*PostTag, 0, len(tags))
	for _, tag := range tags {
		links = append(links, &PostTag{PostID: postID, TagID: tag.ID})
	}

	if _, err := tx.NewInsert().Model(&links).Exec(ctx); err != nil {
		return repository.MapDatabaseError(err, repository.DetectDriver(p.db))
	}

	return nil
}

func (p *posts) checkCategory(ctx context.Context, tx bun.IDB, id *uuid.UUID) error {
	if id == nil || *id == uuid.Nil {
		return nil
	}

	if _, err := p.categories.GetByIDTx(ctx, tx, id.String()); err != nil {
		if IsNotFound(err) {
			return errors.NewValidation("invalid post", errors.FieldError{
				Field:   "category_id",
				Message: "category does not exist",
				Value:   id.String(),
			})
		}
		return err
	}

	return nil
}

func (p *posts) slugFor(ctx context.Context, tx bun.IDB, title string, self uuid.UUID) (string, error) {
	base := Slugify(title, "post")
	return uniqueSlug(ctx, base, func(ctx context.Context, candidate string) (bool, error) {
		criteria := []repository.SelectCriteria{repository.SelectBy("slug", "=", candidate)}
		if self != uuid.Nil {
			criteria = append(criteria, repository.SelectBy("id", "<>", self.String()))
		}
		n, err := p.CountTx(ctx, tx, criteria...)
		if err != nil {
			return false, err
		}
		return n > 0, nil
	})
}

// categoryRef maps the zero uuid to no category
func categoryRef(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}
