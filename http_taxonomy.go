package blog

import (
	"context"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun"
)

const (
	CategoryNameMinLength = 2
	CategoryNameMaxLength = 60
)

// TagPayload is used to create a tag
type TagPayload struct {
	Name string `form:"name" json:"name"`
}

// Validate will run validation rules
func (p TagPayload) Validate() error {
	name := NormalizeTagName(p.Name)
	return validation.Errors{
		"name": validation.Validate(name, validation.Required, validation.Length(TagNameMinLength, TagNameMaxLength)),
	}.Filter()
}

// Validate will run validation rules
func (p TagPatch) Validate() error {
	if p.Name == nil {
		return nil
	}
	return TagPayload{Name: *p.Name}.Validate()
}

// CategoryPayload is used to create a category, the slug is derived
// from the name when empty
type CategoryPayload struct {
	Name string `form:"name" json:"name"`
	Slug string `form:"slug" json:"slug"`
}

// Validate will run validation rules
func (p CategoryPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required, validation.Length(CategoryNameMinLength, CategoryNameMaxLength)),
		validation.Field(&p.Slug, validation.Length(CategoryNameMinLength, CategoryNameMaxLength)),
	)
}

// Validate will run validation rules
func (p CategoryPatch) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.NilOrNotEmpty, validation.Length(CategoryNameMinLength, CategoryNameMaxLength)),
		validation.Field(&p.Slug, validation.NilOrNotEmpty, validation.Length(CategoryNameMinLength, CategoryNameMaxLength)),
	)
}

// TaxonomyController serves the tag and category endpoints
type TaxonomyController struct {
	Repo   RepositoryManager
	Gate   Gate
	Logger Logger
}

// TaxonomyControllerOption configures a TaxonomyController
type TaxonomyControllerOption func(*TaxonomyController) *TaxonomyController

// WithTaxonomyRepository sets the repository manager
func WithTaxonomyRepository(repo RepositoryManager) TaxonomyControllerOption {
	return func(c *TaxonomyController) *TaxonomyController {
		c.Repo = repo
		return c
	}
}

// WithTaxonomyGate sets the gate protecting write routes
func WithTaxonomyGate(gate Gate) TaxonomyControllerOption {
	return func(c *TaxonomyController) *TaxonomyController {
		c.Gate = gate
		return c
	}
}

// WithTaxonomyLogger sets the logger
func WithTaxonomyLogger(logger Logger) TaxonomyControllerOption {
	return func(c *TaxonomyController) *TaxonomyController {
		c.Logger = ensureLogger(logger)
		return c
	}
}

// NewTaxonomyController builds the controller, it panics without a repository or gate
func NewTaxonomyController(opts ...TaxonomyControllerOption) *TaxonomyController {
	c := &TaxonomyController{Logger: ensureLogger(nil)}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in taxonomy controller...")
	}

	if c.Gate == nil {
		panic("Missing Gate in taxonomy controller...")
	}

	return c
}

// RegisterTaxonomyRoutes mounts /tags and /categories. Tag writes need
// an authenticated principal, category writes need an editor.
func RegisterTaxonomyRoutes[T any](app router.Router[T], opts ...TaxonomyControllerOption) {

	controller := NewTaxonomyController(opts...)

	tags := app.Group("/tags")
	tags.Get("", controller.ListTags).SetName("tags.list")
	tags.Get("/:id", controller.ShowTag).SetName("tags.show")
	tags.Post("", controller.CreateTag,
		ProtectedRoute(controller.Gate, RoleUser),
	).SetName("tags.create")
	tags.Put("/:id", controller.UpdateTag,
		ProtectedRoute(controller.Gate, RoleUser),
	).SetName("tags.update")
	tags.Delete("/:id", controller.DeleteTag,
		ProtectedRoute(controller.Gate, RoleUser),
	).SetName("tags.delete")

	categories := app.Group("/categories")
	categories.Get("", controller.ListCategories).SetName("categories.list")
	categories.Get("/:id", controller.ShowCategory).SetName("categories.show")
	categories.Post("", controller.CreateCategory,
		ProtectedRoute(controller.Gate, RoleEditor),
	).SetName("categories.create")
	categories.Put("/:id", controller.UpdateCategory,
		ProtectedRoute(controller.Gate, RoleEditor),
	).SetName("categories.update")
	categories.Delete("/:id", controller.DeleteCategory,
		ProtectedRoute(controller.Gate, RoleEditor),
	).SetName("categories.delete")
}

func (t *TaxonomyController) ListTags(ctx router.Context) error {
	page, err := t.Repo.Tags().ListPage(ctx.Context(), t.Repo.DB(), listRequest(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, page)
}

func (t *TaxonomyController) ShowTag(ctx router.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}

	tag, err := t.Repo.Tags().GetByIDTx(ctx.Context(), t.Repo.DB(), id.String())
	if err != nil {
		return resourceNotFound(err, "tag")
	}

	return ctx.JSON(http.StatusOK, tag)
}

// CreateTag answers 409 DUPLICATE_TAG when the name exists
func (t *TaxonomyController) CreateTag(ctx router.Context) error {
	payload := new(TagPayload)
	if err := bindPayload(ctx, payload); err != nil {
		return err
	}

	if verr := goerrors.ValidateWithOzzo(payload.Validate, "invalid tag"); verr != nil {
		return verr
	}

	var tag *Tag
	err := t.Repo.RunInTx(ctx.Context(), nil, func(c context.Context, tx bun.Tx) (err error) {
		tag, err = t.Repo.Tags().CreateTx(c, tx, &Tag{Name: payload.Name})
		return err
	})
	if err != nil {
		return taxonomyConflict(err, "tag")
	}

	return ctx.JSON(http.StatusCreated, tag)
}

func (t *TaxonomyController) UpdateTag(ctx router.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}

	patch := new(TagPatch)
	if err := bindPayload(ctx, patch); err != nil {
		return err
	}

	if verr := goerrors.ValidateWithOzzo(patch.Validate, "invalid tag"); verr != nil {
		return verr
	}

	var tag *Tag
	err = t.Repo.RunInTx(ctx.Context(), nil, func(c context.Context, tx bun.Tx) (err error) {
		tag, err = t.Repo.Tags().Patch(c, tx, id, *patch)
		return err
	})
	if err != nil {
		return taxonomyConflict(resourceNotFound(err, "tag"), "tag")
	}

	return ctx.JSON(http.StatusOK, tag)
}

func (t *TaxonomyController) DeleteTag(ctx router.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}

	err = t.Repo.RunInTx(ctx.Context(), nil, func(c context.Context, tx bun.Tx) error {
		return t.Repo.Tags().Remove(c, tx, id)
	})
	if err != nil {
		return resourceNotFound(err, "tag")
	}

	return ctx.JSON(http.StatusOK, router.ViewContext{"message": "tag deleted"})
}

func (t *TaxonomyController) ListCategories(ctx router.Context) error {
	page, err := t.Repo.Categories().ListPage(ctx.Context(), t.Repo.DB(), listRequest(ctx))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, page)
}

func (t *TaxonomyController) ShowCategory(ctx router.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}

	category, err := t.Repo.Categories().GetByIDTx(ctx.Context(), t.Repo.DB(), id.String())
	if err != nil {
		return resourceNotFound(err, "category")
	}

	return ctx.JSON(http.StatusOK, category)
}

// CreateCategory derives the slug from the name when none is given
func (t *TaxonomyController) CreateCategory(ctx router.Context) error {
	payload := new(CategoryPayload)
	if err := bindPayload(ctx, payload); err != nil {
		return err
	}

	if verr := goerrors.ValidateWithOzzo(payload.Validate, "invalid category"); verr != nil {
		return verr
	}

	var category *Category
	err := t.Repo.RunInTx(ctx.Context(), nil, func(c context.Context, tx bun.Tx) (err error) {
		category, err = t.Repo.Categories().CreateTx(c, tx, &Category{
			Name: payload.Name,
			Slug: payload.Slug,
		})
		return err
	})
	if err != nil {
		return taxonomyConflict(err, "category")
	}

	return ctx.JSON(http.StatusCreated, category)
}

func (t *TaxonomyController) UpdateCategory(ctx router.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}

	patch := new(CategoryPatch)
	if err := bindPayload(ctx, patch); err != nil {
		return err
	}

	if verr := goerrors.ValidateWithOzzo(patch.Validate, "invalid category"); verr != nil {
		return verr
	}

	var category *Category
	err = t.Repo.RunInTx(ctx.Context(), nil, func(c context.Context, tx bun.Tx) (err error) {
		category, err = t.Repo.Categories().Patch(c, tx, id, *patch)
		return err
	})
	if err != nil {
		return taxonomyConflict(resourceNotFound(err, "category"), "category")
	}

	return ctx.JSON(http.StatusOK, category)
}

func (t *TaxonomyController) DeleteCategory(ctx router.Context) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}

	err = t.Repo.RunInTx(ctx.Context(), nil, func(c context.Context, tx bun.Tx) error {
		return t.Repo.Categories().Remove(c, tx, id)
	})
	if err != nil {
		return resourceNotFound(err, "category")
	}

	return ctx.JSON(http.StatusOK, router.ViewContext{"message": "category deleted"})
}

func taxonomyConflict(err error, resource string) error {
	if repository.IsDuplicatedKey(err) {
		return goerrors.Wrap(err, goerrors.CategoryConflict, resource+" already exists").
			WithCode(http.StatusConflict).
			WithTextCode("DUPLICATE_" + strings.ToUpper(resource))
	}
	return err
}
