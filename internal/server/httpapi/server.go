// Package httpapi serves the JSON API used by the document forms, the
// dashboard and the import page.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/invoicekeeper/internal/importer"
	"github.com/dmitrijs2005/invoicekeeper/internal/logging"
	"github.com/dmitrijs2005/invoicekeeper/internal/models"
	"github.com/dmitrijs2005/invoicekeeper/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"
)

type DocumentStore interface {
	ListDocuments(ctx context.Context, t models.DocumentType) ([]models.Document, error)
	GetDocumentByID(ctx context.Context, id string) (models.Document, error)
	SaveDocument(ctx context.Context, doc models.Document) error
}

type NumberService interface {
	NextNumber(ctx context.Context, t models.DocumentType) (int, error)
}

type BatchImporter interface {
	ImportBatch(ctx context.Context, payload []byte) (importer.Result, error)
}

type DocumentService interface {
	Create(ctx context.Context, in services.CreateDocumentInput) (models.Document, error)
	Dashboard(ctx context.Context) services.Dashboard
}

type SettingsService interface {
	Get(ctx context.Context) (services.SettingsView, error)
	Update(ctx context.Context, u models.SettingsUpdate) (services.SettingsView, error)
}

// Deps are the collaborators behind the routes. Gatherer may be nil, in
// which case /metrics serves the default registry.
type Deps struct {
	Store     DocumentStore
	Numbers   NumberService
	Importer  BatchImporter
	Documents DocumentService
	Settings  SettingsService
	Gatherer  prometheus.Gatherer
}

type HTTPServer struct {
	address string
	logger  logging.Logger
	handler http.Handler
}

func NewHTTPServer(address string, l logging.Logger, deps Deps) *HTTPServer {
	logger := l.With("module", "http_server")
	return &HTTPServer{
		address: address,
		logger:  logger,
		handler: newRouter(logger, deps),
	}
}

func (s *HTTPServer) Handler() http.Handler { return s.handler }

// Run listens on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
