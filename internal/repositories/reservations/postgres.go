package reservations

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/invoicekeeper/internal/dbx"
	"github.com/dmitrijs2005/invoicekeeper/internal/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Reserve inserts the pair; a conflicting row leaves zero rows affected.
func (r *PostgresRepository) Reserve(ctx context.Context, t models.DocumentType, number int) error {
	query := `
		INSERT INTO document_numbers (doc_type, number)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query, string(t), number)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return inserted(res)
}

func (r *PostgresRepository) Highest(ctx context.Context, t models.DocumentType) (int, error) {
	query := `
		SELECT COALESCE(MAX(number), 0)
		FROM document_numbers
		WHERE doc_type = $1
	`
	var n int
	if err := r.db.QueryRowContext(ctx, query, string(t)).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
