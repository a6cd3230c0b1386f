package reservations

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/invoicekeeper/internal/common"
	"github.com/dmitrijs2005/invoicekeeper/internal/models"
	"github.com/pressly/goose/v3"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

const insertQuery = `(?s)^\s*INSERT\s+INTO\s+document_numbers\b.*VALUES\s*\(\$1,\s*\$2\)\s*ON\s+CONFLICT\s+DO\s+NOTHING\s*$`

func TestPostgresReserve_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(insertQuery).
		WithArgs("invoice", 7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Reserve(context.Background(), models.TypeInvoice, 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresReserve_Conflict(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(insertQuery).
		WithArgs("estimate", 2).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Reserve(context.Background(), models.TypeEstimate, 2)
	if !errors.Is(err, common.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresReserve_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(insertQuery).
		WithArgs("receipt", 1).
		WillReturnError(errors.New("conn reset"))

	err := repo.Reserve(context.Background(), models.TypeReceipt, 1)
	if err == nil || errors.Is(err, common.ErrAlreadyExists) {
		t.Fatalf("expected db error, got %v", err)
	}
}

func TestPostgresHighest(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^\s*SELECT\s+COALESCE\(MAX\(number\),\s*0\)\s+FROM\s+document_numbers\s+WHERE\s+doc_type\s*=\s*\$1\s*$`
	mock.ExpectQuery(q).
		WithArgs("invoice").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(12))

	n, err := repo.Highest(context.Background(), models.TypeInvoice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 12 {
		t.Fatalf("expected 12, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMigrate_UsesDialectDirectory(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	defer db.Close()

	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()

	var gotDir string
	gooseUpContext = func(ctx context.Context, _ *sql.DB, dir string, _ ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}

	if err := migrate(context.Background(), db, "pgx", "postgres"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotDir != "postgres" {
		t.Fatalf("expected postgres dir, got %q", gotDir)
	}

	gooseUpContext = func(ctx context.Context, _ *sql.DB, _ string, _ ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	if err := migrate(context.Background(), db, "pgx", "postgres"); err == nil {
		t.Fatal("expected migration error")
	}
}
