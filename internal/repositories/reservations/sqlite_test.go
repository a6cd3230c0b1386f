package reservations

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dmitrijs2005/invoicekeeper/internal/common"
	"github.com/dmitrijs2005/invoicekeeper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "reservations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSQLite_ReserveOnce(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	require.NoError(t, db.Reserve(ctx, models.TypeInvoice, 1))
	assert.ErrorIs(t, db.Reserve(ctx, models.TypeInvoice, 1), common.ErrAlreadyExists)
	require.NoError(t, db.Reserve(ctx, models.TypeEstimate, 1))
	require.NoError(t, db.Reserve(ctx, models.TypeInvoice, 5))

	n, err := db.Highest(ctx, models.TypeInvoice)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = db.Highest(ctx, models.TypeReceipt)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSQLite_ConcurrentReserveHasOneWinner(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	const workers = 10
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := db.Reserve(ctx, models.TypeReceipt, 42)
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, common.ErrAlreadyExists)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reservations.db")

	db, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, db.Reserve(ctx, models.TypeInvoice, 3))
	require.NoError(t, db.Close())

	db, err = Open(ctx, path)
	require.NoError(t, err)
	defer db.Close()
	assert.ErrorIs(t, db.Reserve(ctx, models.TypeInvoice, 3), common.ErrAlreadyExists)
}

func TestIsPostgres(t *testing.T) {
	assert.True(t, isPostgres("postgres://u:p@localhost/db"))
	assert.True(t, isPostgres("postgresql://localhost/db"))
	assert.False(t, isPostgres("data/reservations.db"))
	assert.False(t, isPostgres("file:res.db?cache=shared"))
}
