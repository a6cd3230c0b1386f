package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/invoicekeeper/internal/cache"
	"github.com/dmitrijs2005/invoicekeeper/internal/common"
	"github.com/dmitrijs2005/invoicekeeper/internal/config"
	"github.com/dmitrijs2005/invoicekeeper/internal/logging"
	"github.com/dmitrijs2005/invoicekeeper/internal/models"
	"github.com/dmitrijs2005/invoicekeeper/internal/settings"
	"github.com/dmitrijs2005/invoicekeeper/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSelector struct {
	backend storage.Backend
	err     error
}

func (f fixedSelector) Select(ctx context.Context) (storage.Backend, error) {
	return f.backend, f.err
}

// countingBackend counts List calls and can be switched to fail.
type countingBackend struct {
	storage.Backend
	lists atomic.Int32
	fail  atomic.Bool
}

func (c *countingBackend) List(ctx context.Context, t models.DocumentType) ([]models.Document, error) {
	c.lists.Add(1)
	if c.fail.Load() {
		return nil, errors.New("propfind: connection refused")
	}
	return c.Backend.List(ctx, t)
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func doc(t models.DocumentType, n int, date string) models.Document {
	return models.Document{
		ID:        models.FormatID(t, n),
		Number:    n,
		Type:      t,
		Date:      date,
		Customer:  models.Customer{ID: "c", Name: "Client"},
		LineItems: []models.LineItem{},
		Status:    models.StatusDraft,
		Tags:      []string{},
		CreatedAt: "2024-01-01T00:00:00.000Z",
		UpdatedAt: "2024-01-01T00:00:00.000Z",
	}
}

func newLocalStore(t *testing.T) (*Store, *countingBackend, *clock, string) {
	t.Helper()
	root := t.TempDir()
	b := &countingBackend{Backend: storage.NewLocalBackend(root, logging.Discard())}
	c := &clock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	s := New(fixedSelector{backend: b}, cache.NewMemory(30*time.Second, cache.WithClock(c.now)), nil, logging.Discard())
	return s, b, c, root
}

func TestStore_SaveThenGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _, _, _ := newLocalStore(t)

	d := doc(models.TypeEstimate, 3, "2024-04-04")
	d.Notes = "kitchen"
	require.NoError(t, s.SaveDocument(ctx, d))

	got, err := s.GetDocumentByID(ctx, "EST-0003")
	require.NoError(t, err)
	assert.Equal(t, d, got)
}

func TestStore_SaveIsIdempotentUpsert(t *testing.T) {
	ctx := context.Background()
	s, _, _, _ := newLocalStore(t)

	d := doc(models.TypeInvoice, 1, "2024-01-01")
	require.NoError(t, s.SaveDocument(ctx, d))
	require.NoError(t, s.SaveDocument(ctx, d))

	docs, err := s.ListDocuments(ctx, models.TypeInvoice)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestStore_ListSortedByDateDescAndIsolatedByType(t *testing.T) {
	ctx := context.Background()
	s, _, _, _ := newLocalStore(t)

	require.NoError(t, s.SaveDocument(ctx, doc(models.TypeInvoice, 1, "2024-01-10")))
	require.NoError(t, s.SaveDocument(ctx, doc(models.TypeInvoice, 2, "2024-03-01")))
	require.NoError(t, s.SaveDocument(ctx, doc(models.TypeInvoice, 3, "2024-02-15T09:30:00.000Z")))
	require.NoError(t, s.SaveDocument(ctx, doc(models.TypeInvoice, 4, "not a date")))
	require.NoError(t, s.SaveDocument(ctx, doc(models.TypeReceipt, 1, "2025-01-01")))

	docs, err := s.ListDocuments(ctx, models.TypeInvoice)
	require.NoError(t, err)
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		assert.Equal(t, models.TypeInvoice, d.Type)
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"INV-0002", "INV-0003", "INV-0001", "INV-0004"}, ids)
}

func TestStore_CacheWindow(t *testing.T) {
	ctx := context.Background()
	s, b, c, root := newLocalStore(t)

	require.NoError(t, s.SaveDocument(ctx, doc(models.TypeInvoice, 1, "2024-01-01")))

	docs, err := s.ListDocuments(ctx, models.TypeInvoice)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	// Written behind the store's back: not visible until the entry expires.
	outside := storage.NewLocalBackend(root, logging.Discard())
	require.NoError(t, outside.Write(ctx, doc(models.TypeInvoice, 2, "2024-01-02")))

	c.t = c.t.Add(29 * time.Second)
	docs, err = s.ListDocuments(ctx, models.TypeInvoice)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	assert.Equal(t, int32(1), b.lists.Load())

	c.t = c.t.Add(2 * time.Second)
	docs, err = s.ListDocuments(ctx, models.TypeInvoice)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	assert.Equal(t, int32(2), b.lists.Load())
}

func TestStore_SaveInvalidatesCachedType(t *testing.T) {
	ctx := context.Background()
	s, b, _, _ := newLocalStore(t)

	_, err := s.ListDocuments(ctx, models.TypeReceipt)
	require.NoError(t, err)
	_, err = s.ListDocuments(ctx, models.TypeInvoice)
	require.NoError(t, err)
	require.Equal(t, int32(2), b.lists.Load())

	require.NoError(t, s.SaveDocument(ctx, doc(models.TypeReceipt, 1, "2024-01-01")))

	docs, err := s.ListDocuments(ctx, models.TypeReceipt)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	assert.Equal(t, int32(3), b.lists.Load())

	_, err = s.ListDocuments(ctx, models.TypeInvoice)
	require.NoError(t, err)
	assert.Equal(t, int32(3), b.lists.Load(), "other types stay cached")
}

func TestStore_CorruptFileIsSkipped(t *testing.T) {
	ctx := context.Background()
	s, _, _, root := newLocalStore(t)

	require.NoError(t, s.SaveDocument(ctx, doc(models.TypeEstimate, 1, "2024-01-01")))
	require.NoError(t, os.WriteFile(filepath.Join(root, "estimates", "EST-0002.json"), []byte("{broken"), 0o600))

	docs, err := s.ListDocuments(ctx, models.TypeEstimate)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "EST-0001", docs[0].ID)
}

func TestStore_GetDocumentByIDSkipsLeads(t *testing.T) {
	ctx := context.Background()
	s, _, _, _ := newLocalStore(t)

	require.NoError(t, s.SaveDocument(ctx, doc(models.TypeLead, 1, "2024-01-01")))

	_, err := s.GetDocumentByID(ctx, "LEAD-0001")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = s.GetDocumentByID(ctx, "../x")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestStore_EmptyResultClassification(t *testing.T) {
	ctx := context.Background()

	unconfigured := New(fixedSelector{err: common.ErrBackendUnconfigured}, cache.NewMemory(0), nil, logging.Discard())
	docs, err := unconfigured.ListDocuments(ctx, models.TypeInvoice)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
	assert.ErrorIs(t, err, common.ErrBackendUnconfigured)

	s, b, _, _ := newLocalStore(t)
	docs, err = s.ListDocuments(ctx, models.TypeInvoice)
	assert.NoError(t, err)
	assert.NotNil(t, docs)

	b.fail.Store(true)
	docs, err = s.ListDocuments(ctx, models.TypeEstimate)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
	assert.ErrorIs(t, err, common.ErrBackendUnavailable)

	// Failures are not cached.
	b.fail.Store(false)
	_, err = s.ListDocuments(ctx, models.TypeEstimate)
	assert.NoError(t, err)

	b.fail.Store(true)
	_, err = s.GetDocumentByID(ctx, "RCT-0001")
	assert.ErrorIs(t, err, common.ErrBackendUnavailable)
}

func TestStore_SaveValidationAndUnconfigured(t *testing.T) {
	ctx := context.Background()
	s, _, _, _ := newLocalStore(t)

	bad := doc(models.TypeInvoice, 1, "2024-01-01")
	bad.Type = "memo"
	assert.ErrorIs(t, s.SaveDocument(ctx, bad), common.ErrValidation)

	bad = doc(models.TypeInvoice, 1, "2024-01-01")
	bad.ID = ""
	assert.ErrorIs(t, s.SaveDocument(ctx, bad), common.ErrValidation)

	unconfigured := New(fixedSelector{err: common.ErrBackendUnconfigured}, cache.NewMemory(0), nil, logging.Discard())
	err := unconfigured.SaveDocument(ctx, doc(models.TypeInvoice, 1, "2024-01-01"))
	assert.ErrorIs(t, err, common.ErrBackendUnconfigured)
}

func TestStore_Reserve(t *testing.T) {
	ctx := context.Background()
	s, _, _, _ := newLocalStore(t)

	// The counting wrapper hides the Reserver capability.
	assert.ErrorIs(t, s.Reserve(ctx, models.TypeInvoice, 1), common.ErrReservationUnsupported)

	local := New(fixedSelector{backend: storage.NewLocalBackend(t.TempDir(), logging.Discard())}, cache.NewMemory(0), nil, logging.Discard())
	require.NoError(t, local.Reserve(ctx, models.TypeInvoice, 1))
	assert.ErrorIs(t, local.Reserve(ctx, models.TypeInvoice, 1), common.ErrAlreadyExists)
}

func TestStore_BackendSelectionFollowsSettings(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.DataDir = filepath.Join(dir, "data")
	provider := settings.NewFileProvider(filepath.Join(dir, "settings.json"), nil, logging.Discard())
	factory := storage.NewFactory(cfg, provider, logging.Discard())
	s := New(factory, cache.NewMemory(0), nil, logging.Discard())

	require.NoError(t, s.SaveDocument(ctx, doc(models.TypeInvoice, 1, "2024-01-01")))
	_, err := os.Stat(filepath.Join(cfg.DataDir, "invoices", "INV-0001.json"))
	require.NoError(t, err, "local backend used when no remote settings exist")

	b, err := factory.Select(ctx)
	require.NoError(t, err)
	assert.Equal(t, "local", b.(storage.Named).Name())

	url, user := "https://cloud.example/remote.php/dav/files/op", "op"
	_, err = provider.Save(ctx, models.SettingsUpdate{WebDAVURL: &url, WebDAVUsername: &user})
	require.NoError(t, err)

	b, err = factory.Select(ctx)
	require.NoError(t, err)
	assert.Equal(t, "webdav", b.(storage.Named).Name())
}
