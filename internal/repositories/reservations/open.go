package reservations

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/invoicekeeper/internal/repositories/reservations/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// DB is an opened reservation database.
type DB struct {
	Repository
	db *sql.DB
}

func (d *DB) Close() error { return d.db.Close() }

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

func isPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open connects to dsn and migrates the schema. postgres:// and
// postgresql:// URLs use pgx; anything else is a SQLite file path or DSN.
func Open(ctx context.Context, dsn string) (*DB, error) {
	driver, dialect, dir := "sqlite", "sqlite3", "sqlite"
	if isPostgres(dsn) {
		driver, dialect, dir = "pgx", "pgx", "postgres"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite" {
		// one writer at a time
		db.SetMaxOpenConns(1)
	}

	if err := migrate(ctx, db, dialect, dir); err != nil {
		_ = db.Close()
		return nil, err
	}

	var repo Repository = NewSQLiteRepository(db)
	if driver == "pgx" {
		repo = NewPostgresRepository(db)
	}
	return &DB{Repository: repo, db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB, dialect, dir string) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("migrate reservations: %w", err)
	}
	return nil
}
