package blog

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	DB() *bun.DB
	Users() Users
	Posts() Posts
	Tags() Tags
	Categories() Categories
}

type mngr struct {
	db         *bun.DB
	users      Users
	posts      Posts
	tags       Tags
	categories Categories
}

// NewRepositoryManager builds every store over db
func NewRepositoryManager(db *bun.DB) RepositoryManager {
	// the m2m join model must be known before the first Tags relation query
	db.RegisterModel((*PostTag)(nil))

	tagRepo := NewTagsRepository(db)
	categoryRepo := NewCategoriesRepository(db)

	return &mngr{
		db:         db,
		users:      NewUsersRepository(db),
		tags:       tagRepo,
		categories: categoryRepo,
		posts:      NewPostsRepository(db, tagRepo, categoryRepo),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.posts == nil {
		return errors.New("repository posts should be initialized")
	}

	if m.tags == nil {
		return errors.New("repository tags should be initialized")
	}

	if m.categories == nil {
		return errors.New("repository categories should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

// RunInTx runs f in a transaction, any error returned by f rolls it back
func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

// withSavepoint runs f under a savepoint when tx is a transaction, so a
// failed statement inside f leaves the outer transaction usable.
// Postgres aborts the whole transaction on any error otherwise.
func withSavepoint(ctx context.Context, tx bun.IDB, name string, f func() error) error {
	if _, ok := tx.(*bun.DB); ok {
		return f()
	}

	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return err
	}

	if err := f(); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}

	_, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
	return err
}

func (m mngr) DB() *bun.DB {
	return m.db
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Posts() Posts {
	return m.posts
}

func (m mngr) Tags() Tags {
	return m.tags
}

func (m mngr) Categories() Categories {
	return m.categories
}
