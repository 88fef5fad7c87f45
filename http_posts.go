package blog

import (
	"context"
	"net/http"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-blog/pagination"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Field limits shared by post payloads
const (
	PostTitleMaxLength    = 100
	PostContentMinLength  = 10
	PostContentMaxLength  = 1000
	PostImageURLMaxLength = 500
	TagNameMinLength      = 2
	TagNameMaxLength      = 30
)

// Validate will run validation rules
func (p PostInput) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Title, validation.Required, validation.Length(1, PostTitleMaxLength)),
		validation.Field(&p.Content, validation.Length(PostContentMinLength, PostContentMaxLength)),
		validation.Field(&p.ImageURL, validation.Length(0, PostImageURLMaxLength)),
		validation.Field(&p.Tags, validation.By(validTagNames)),
	)
}

// Validate will run validation rules
func (p PostPatch) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Title, validation.NilOrNotEmpty, validation.Length(1, PostTitleMaxLength)),
		validation.Field(&p.Content, validation.Length(PostContentMinLength, PostContentMaxLength)),
		validation.Field(&p.ImageURL, validation.Length(0, PostImageURLMaxLength)),
		validation.Field(&p.Tags, validation.By(validTagNames)),
	)
}

func validTagNames(value any) error {
	var raw []string
	switch v := value.(type) {
	case []string:
		raw = v
	case *[]string:
		if v == nil {
			return nil
		}
		raw = *v
	}

	for _, name := range SplitTagNames(raw...) {
		if l := len([]rune(name)); l < TagNameMinLength || l > TagNameMaxLength {
			return validation.NewError("validation_tag_length", "each tag must be between 2 and 30 characters")
		}
	}
	return nil
}

// RegisterPostRoutes mounts /posts. Reads are public, writes need a principal
func RegisterPostRoutes[T any](app router.Router[T], opts ...PostControllerOption) {

	controller := NewPostController(opts...)

	posts := app.Group(controller.Prefix)

	posts.Get("", controller.List).
		SetName("posts.list")

	posts.Get("/by-tags", controller.ByTags).
		SetName("posts.by_tags")

	posts.Get("/:id", controller.Show).
		SetName("posts.show")

	posts.Post("", controller.Create,
		ProtectedRoute(controller.Gate, RoleUser),
	).SetName("posts.create")

	posts.Put("/:id", controller.Update,
		ProtectedRoute(controller.Gate, RoleUser),
	).SetName("posts.update")

	posts.Delete("/:id", controller.Delete,
		ProtectedRoute(controller.Gate, RoleUser),
	).SetName("posts.delete")
}

// PostController serves the post endpoints
type PostController struct {
	Prefix string
	Repo   RepositoryManager
	Gate   Gate
	Logger Logger
}

// PostControllerOption configures a PostController
type PostControllerOption func(*PostController) *PostController

// WithPostRepository sets the repository manager
func WithPostRepository(repo RepositoryManager) PostControllerOption {
	return func(c *PostController) *PostController {
		c.Repo = repo
		return c
	}
}

// WithPostGate sets the gate protecting write routes
func WithPostGate(gate Gate) PostControllerOption {
	return func(c *PostController) *PostController {
		c.Gate = gate
		return c
	}
}

// WithPostLogger sets the logger
func WithPostLogger(logger Logger) PostControllerOption {
	return func(c *PostController) *PostController {
		c.Logger = ensureLogger(logger)
		return c
	}
}

// NewPostController builds the controller, it panics without a repository or gate
func NewPostController(opts ...PostControllerOption) *PostController {
	c := &PostController{
		Prefix: "/posts",
		Logger: ensureLogger(nil),
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in post controller...")
	}

	if c.Gate == nil {
		panic("Missing Gate in post controller...")
	}

	return c
}

// PostListResponse is a page of posts. Limit and offset echo the
// legacy window parameters when the client used them.
type PostListResponse struct {
	*pagination.Page[*Post]
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// List pages through posts, honoring page/per_page and limit/offset
func (p *PostController) List(ctx router.Context) error {
	req := listRequest(ctx)

	limit := ctx.QueryInt("limit", 0)
	offset := max(ctx.QueryInt("offset", 0), 0)
	if limit > 0 {
		_, perPage := pagination.Sanitize(1, limit)
		req.PerPage = perPage
		req.Page = offset/perPage + 1
	}

	page, err := p.Repo.Posts().ListPage(ctx.Context(), p.Repo.DB(), req)
	if err != nil {
		return err
	}

	res := PostListResponse{Page: page}
	if limit > 0 {
		res.Limit = page.PerPage
		res.Offset = offset
	}

	return ctx.JSON(http.StatusOK, res)
}

// ByTags returns posts carrying any of the requested tags
func (p *PostController) ByTags(ctx router.Context) error {
	names := SplitTagNames(ctx.QueryValues("tags")...)
	if len(names) == 0 {
		return goerrors.NewValidation("invalid query", goerrors.FieldError{
			Field:   "tags",
			Message: "at least one tag is required",
		})
	}

	records, err := p.Repo.Posts().ByTags(ctx.Context(), p.Repo.DB(), names)
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, records)
}

// Show returns one post, or its summary with include_content=false
func (p *PostController) Show(ctx router.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}

	post, err := p.Repo.Posts().Find(ctx.Context(), p.Repo.DB(), id)
	if err != nil {
		return resourceNotFound(err, "post")
	}

	if !includeContent(ctx) {
		return ctx.JSON(http.StatusOK, post.Summary())
	}

	return ctx.JSON(http.StatusOK, post)
}

// Create stores a post authored by the current principal
func (p *PostController) Create(ctx router.Context) error {
	actor, err := CurrentUser(ctx)
	if err != nil {
		return err
	}

	payload := new(PostInput)
	if err := bindPayload(ctx, payload); err != nil {
		return err
	}

	if verr := goerrors.ValidateWithOzzo(payload.Validate, "invalid post"); verr != nil {
		return verr
	}

	var post *Post
	err = p.Repo.RunInTx(ctx.Context(), nil, func(c context.Context, tx bun.Tx) error {
		post, err = p.Repo.Posts().CreatePost(c, tx, actor, *payload)
		return err
	})
	if err != nil {
		return postConflict(err)
	}

	p.Logger.Info("post created", "post_id", post.ID, "author_id", actor.ID)

	return ctx.JSON(http.StatusCreated, post)
}

// Update patches a post. Editors may edit any post, authors their own
func (p *PostController) Update(ctx router.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}

	actor, err := CurrentUser(ctx)
	if err != nil {
		return err
	}

	patch := new(PostPatch)
	if err := bindPayload(ctx, patch); err != nil {
		return err
	}

	if verr := goerrors.ValidateWithOzzo(patch.Validate, "invalid post"); verr != nil {
		return verr
	}

	var post *Post
	err = p.Repo.RunInTx(ctx.Context(), nil, func(c context.Context, tx bun.Tx) error {
		if err := p.authorize(c, tx, actor, id); err != nil {
			return err
		}
		post, err = p.Repo.Posts().Patch(c, tx, id, *patch)
		return err
	})
	if err != nil {
		return postConflict(err)
	}

	return ctx.JSON(http.StatusAccepted, post)
}

// Delete removes a post under the same rule as Update
func (p *PostController) Delete(ctx router.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}

	actor, err := CurrentUser(ctx)
	if err != nil {
		return err
	}

	err = p.Repo.RunInTx(ctx.Context(), nil, func(c context.Context, tx bun.Tx) error {
		if err := p.authorize(c, tx, actor, id); err != nil {
			return err
		}
		return p.Repo.Posts().Remove(c, tx, id)
	})
	if err != nil {
		return err
	}

	p.Logger.Info("post deleted", "post_id", id, "actor_id", actor.ID)

	return ctx.JSON(http.StatusAccepted, router.ViewContext{
		"message": "post deleted",
	})
}

// authorize lets editors change any post and authors their own
func (p *PostController) authorize(ctx context.Context, tx bun.IDB, actor *User, id uuid.UUID) error {
	post, err := p.Repo.Posts().GetByIDTx(ctx, tx, id.String())
	if err != nil {
		return resourceNotFound(err, "post")
	}

	if actor.Role.CanEdit() || post.AuthorID == actor.ID {
		return nil
	}

	return ErrForbidden
}

func includeContent(ctx router.Context) bool {
	raw := ctx.Query("include_content")
	if raw == "" {
		return true
	}
	include, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return include
}

func postConflict(err error) error {
	if repository.IsDuplicatedKey(err) {
		return goerrors.Wrap(err, goerrors.CategoryConflict, "a post with this title already exists").
			WithCode(http.StatusConflict).
			WithTextCode("POST_TITLE_TAKEN")
	}
	return err
}
