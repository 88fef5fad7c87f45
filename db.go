package blog

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"strings"
	"sync"

	"github.com/goliatone/go-errors"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// Migrations returns the dialect aware migration tree, rooted so that
// the sqlite and postgres folders are top level entries.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationsFS, "data/sql/migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// OpenDatabase opens the sql handle and resolves the bun dialect for driver
func OpenDatabase(driver, dsn string) (*sql.DB, schema.Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverSQLite, "sqlite3", "":
		db, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, nil, errors.Wrap(err, errors.CategoryInternal, "failed to open sqlite database")
		}
		// sqlite serializes writers, a single connection avoids SQLITE_BUSY
		db.SetMaxOpenConns(1)
		return db, sqlitedialect.New(), nil
	case DriverPostgres, "pg", "postgresql":
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, nil, errors.Wrap(err, errors.CategoryInternal, "failed to open postgres database")
		}
		return db, pgdialect.New(), nil
	}

	return nil, nil, errors.New("unsupported database driver: "+driver, errors.CategoryBadInput).
		WithTextCode("UNSUPPORTED_DRIVER")
}

// DatabaseConfig is what NewPersistence needs to open the store
type DatabaseConfig interface {
	persistence.Config
	GetDSN() string
}

var registerModels sync.Once

// NewPersistence opens the database, wraps it in a persistence client
// and registers the embedded migrations. Call Migrate on the result to
// apply them.
func NewPersistence(cfg DatabaseConfig, logger persistence.Logger) (*persistence.Client, error) {
	registerModels.Do(func() {
		persistence.RegisterMany2ManyModel((*PostTag)(nil))
	})

	sqlDB, dialect, err := OpenDatabase(cfg.GetDriver(), cfg.GetDSN())
	if err != nil {
		return nil, err
	}

	client, err := persistence.New(cfg, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to connect to database")
	}

	if logger != nil {
		client.SetLogger(logger)
	}

	client.RegisterDialectMigrations(Migrations(),
		persistence.WithDialectSourceLabel(migrationsLabel),
		persistence.WithValidationTargets(DriverPostgres, DriverSQLite),
		persistence.WithDialectValidator(dialectCoverage),
	)

	return client, nil
}

const migrationsLabel = "data/sql/migrations"

// dialectCoverage fails when a migration exists for one dialect only
func dialectCoverage(_ context.Context, result persistence.DialectValidationResult) error {
	if len(result.MissingDialects) == 0 {
		return nil
	}
	return errors.New("dialect migrations out of sync in "+result.SourceLabel, errors.CategoryInternal).
		WithTextCode("MIGRATIONS_OUT_OF_SYNC").
		WithMetadata(map[string]any{"missing": result.MissingDialects})
}
