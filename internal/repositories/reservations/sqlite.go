package reservations

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/invoicekeeper/internal/dbx"
	"github.com/dmitrijs2005/invoicekeeper/internal/models"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Reserve(ctx context.Context, t models.DocumentType, number int) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO document_numbers (doc_type, number) VALUES (?, ?)
		ON CONFLICT (doc_type, number) DO NOTHING
	`, string(t), number)
	if err != nil {
		return fmt.Errorf("failed to reserve %s %d: %w", t, number, err)
	}
	return inserted(res)
}

// Highest returns the largest reserved number of type t, 0 when none.
func (r *SQLiteRepository) Highest(ctx context.Context, t models.DocumentType) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(number), 0) FROM document_numbers WHERE doc_type = ?`, string(t)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to read highest %s: %w", t, err)
	}
	return n, nil
}
