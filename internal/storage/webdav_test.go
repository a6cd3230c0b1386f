package storage

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/invoicekeeper/internal/common"
	"github.com/dmitrijs2005/invoicekeeper/internal/logging"
	"github.com/dmitrijs2005/invoicekeeper/internal/models"
	"github.com/studio-b12/gowebdav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/webdav"
)

func newDAVServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(&webdav.Handler{
		FileSystem: webdav.NewMemFS(),
		LockSystem: webdav.NewMemLS(),
	})
	t.Cleanup(srv.Close)
	return srv
}

func newTestWebDAV(t *testing.T, url string) *WebDAVBackend {
	t.Helper()
	return NewWebDAVBackend(WebDAVConfig{
		URL:      url,
		Username: "op",
		Password: "pw",
		Root:     "/MarottoSolutions",
		Timeout:  5 * time.Second,
	}, logging.Discard())
}

func TestWebDAVBackend_WriteCreatesCollectionsAndRoundTrips(t *testing.T) {
	ctx := context.Background()
	srv := newDAVServer(t)
	b := newTestWebDAV(t, srv.URL)

	ok, err := b.Exists(ctx, "invoices")
	require.NoError(t, err)
	assert.False(t, ok)

	doc := sampleDoc(models.TypeInvoice, 12, "2024-05-05")
	require.NoError(t, b.Write(ctx, doc))

	ok, err = b.Exists(ctx, "invoices")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := b.Read(ctx, "INV-0012", models.TypeInvoice)
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	raw, err := gowebdav.NewClient(srv.URL, "", "").Read("/MarottoSolutions/invoices/INV-0012.json")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n  \"number\": 12,")
}

func TestWebDAVBackend_ListMissingFolderIsEmpty(t *testing.T) {
	b := newTestWebDAV(t, newDAVServer(t).URL)

	docs, err := b.List(context.Background(), models.TypeEstimate)
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}

func TestWebDAVBackend_ListSkipsCorruptFiles(t *testing.T) {
	ctx := context.Background()
	srv := newDAVServer(t)
	b := newTestWebDAV(t, srv.URL)

	require.NoError(t, b.Write(ctx, sampleDoc(models.TypeReceipt, 1, "2024-01-01")))
	require.NoError(t, b.Write(ctx, sampleDoc(models.TypeReceipt, 2, "2024-01-02")))

	raw := gowebdav.NewClient(srv.URL, "", "")
	require.NoError(t, raw.Write("/MarottoSolutions/receipts/RCT-0003.json", []byte("{\"id\":"), 0o644))
	require.NoError(t, raw.Write("/MarottoSolutions/receipts/readme.md", []byte("#"), 0o644))

	docs, err := b.List(ctx, models.TypeReceipt)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestWebDAVBackend_ReadMissing(t *testing.T) {
	b := newTestWebDAV(t, newDAVServer(t).URL)

	_, err := b.Read(context.Background(), "EST-0001", models.TypeEstimate)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestWebDAVBackend_Reserve(t *testing.T) {
	ctx := context.Background()
	b := newTestWebDAV(t, newDAVServer(t).URL)

	require.NoError(t, b.Reserve(ctx, models.TypeInvoice, 1))
	assert.ErrorIs(t, b.Reserve(ctx, models.TypeInvoice, 1), common.ErrAlreadyExists)
	require.NoError(t, b.Reserve(ctx, models.TypeInvoice, 2))
}

func TestWebDAVBackend_Ping(t *testing.T) {
	srv := newDAVServer(t)
	require.NoError(t, newTestWebDAV(t, srv.URL).Ping(context.Background()))

	dead := httptest.NewServer(nil)
	url := dead.URL
	dead.Close()

	err := newTestWebDAV(t, url).Ping(context.Background())
	assert.ErrorIs(t, err, common.ErrBackendUnavailable)
}

func TestWebDAVBackend_UnreachableListFails(t *testing.T) {
	dead := httptest.NewServer(nil)
	url := dead.URL
	dead.Close()

	_, err := newTestWebDAV(t, url).List(context.Background(), models.TypeInvoice)
	assert.ErrorIs(t, err, common.ErrBackendUnavailable)
}
