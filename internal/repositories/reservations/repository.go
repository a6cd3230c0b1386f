// Package reservations stores document number reservations in SQL, for
// deployments where the storage backend cannot create markers atomically or
// several servers share one document store.
package reservations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/invoicekeeper/internal/common"
	"github.com/dmitrijs2005/invoicekeeper/internal/models"
)

// Repository reserves (type, number) pairs. Reserve returns
// common.ErrAlreadyExists when the pair is already taken.
type Repository interface {
	Reserve(ctx context.Context, t models.DocumentType, number int) error
	Highest(ctx context.Context, t models.DocumentType) (int, error)
}

// inserted maps the result of an INSERT ... ON CONFLICT DO NOTHING.
func inserted(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrAlreadyExists
	}
	return nil
}
