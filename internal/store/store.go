// Package store is the document persistence entry point used by the API, the
// numbering service and the importer. It selects the backend on every call
// and serves listings through a short-lived per-type cache.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dmitrijs2005/invoicekeeper/internal/cache"
	"github.com/dmitrijs2005/invoicekeeper/internal/common"
	"github.com/dmitrijs2005/invoicekeeper/internal/logging"
	"github.com/dmitrijs2005/invoicekeeper/internal/metrics"
	"github.com/dmitrijs2005/invoicekeeper/internal/models"
	"github.com/dmitrijs2005/invoicekeeper/internal/storage"
)

// Selector resolves the backend for the current configuration.
type Selector interface {
	Select(ctx context.Context) (storage.Backend, error)
}

type Store struct {
	backends Selector
	cache    cache.Cache
	metrics  *metrics.Metrics
	logger   logging.Logger
}

func New(backends Selector, c cache.Cache, m *metrics.Metrics, logger logging.Logger) *Store {
	return &Store{
		backends: backends,
		cache:    c,
		metrics:  m,
		logger:   logger.With("module", "store"),
	}
}

// ListDocuments returns every document of type t, newest date first.
//
// The slice is never nil. The error classifies an empty result: nil for a
// real (possibly empty) listing, common.ErrBackendUnconfigured when no
// backend can be selected and common.ErrBackendUnavailable when the backend
// failed. Callers that only want "empty on failure" can ignore the error;
// failures are logged here either way.
func (s *Store) ListDocuments(ctx context.Context, t models.DocumentType) ([]models.Document, error) {
	if docs, ok := s.cache.Get(ctx, t); ok {
		s.metrics.CacheHit(string(t))
		s.logger.Debug(ctx, "listing served from cache", "type", t, "count", len(docs))
		return docs, nil
	}
	s.metrics.CacheMiss(string(t))

	b, err := s.backends.Select(ctx)
	if err != nil {
		s.logger.Warn(ctx, "no storage backend for listing", "type", t, "err", err)
		return []models.Document{}, err
	}

	started := time.Now()
	docs, err := b.List(ctx, t)
	s.metrics.ObserveBackend(backendName(b), "list", started, err)
	if err != nil {
		if !errors.Is(err, common.ErrBackendUnavailable) {
			err = fmt.Errorf("%w: %v", common.ErrBackendUnavailable, err)
		}
		s.logger.Error(ctx, "listing failed", "type", t, "backend", backendName(b), "err", err)
		return []models.Document{}, err
	}
	if docs == nil {
		docs = []models.Document{}
	}

	sortByDateDesc(docs)
	s.cache.Set(ctx, t, docs)
	return docs, nil
}

// GetDocumentByID looks id up in the invoice, estimate and receipt listings,
// in that order. Leads are never searched. When the id is not found and a
// listing failed, the listing error is returned instead of ErrorNotFound.
func (s *Store) GetDocumentByID(ctx context.Context, id string) (models.Document, error) {
	if !models.ValidID(id) {
		return models.Document{}, common.ErrorNotFound
	}

	var listErr error
	for _, t := range models.PrimaryTypes {
		docs, err := s.ListDocuments(ctx, t)
		if err != nil && listErr == nil {
			listErr = err
		}
		for _, d := range docs {
			if d.ID == id {
				return d, nil
			}
		}
	}
	if listErr != nil {
		return models.Document{}, listErr
	}
	return models.Document{}, common.ErrorNotFound
}

// SaveDocument writes doc through the active backend, replacing any document
// with the same id, and drops the cached listing of its type. Timestamps are
// stored as given.
func (s *Store) SaveDocument(ctx context.Context, doc models.Document) error {
	if !doc.Type.Valid() {
		return fmt.Errorf("%w: unknown document type %q", common.ErrValidation, doc.Type)
	}
	if !models.ValidID(doc.ID) {
		return fmt.Errorf("%w: invalid document id %q", common.ErrValidation, doc.ID)
	}
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	if doc.LineItems == nil {
		doc.LineItems = []models.LineItem{}
	}

	b, err := s.backends.Select(ctx)
	if err != nil {
		return err
	}

	started := time.Now()
	err = b.Write(ctx, doc)
	s.metrics.ObserveBackend(backendName(b), "write", started, err)
	s.cache.Invalidate(ctx, doc.Type)
	if err != nil {
		s.logger.Error(ctx, "save failed", "type", doc.Type, "id", doc.ID, "err", err)
		return err
	}

	s.logger.Info(ctx, "document saved", "type", doc.Type, "id", doc.ID, "backend", backendName(b))
	return nil
}

// Reserve creates the reservation marker for number on the active backend.
// It returns common.ErrAlreadyExists when the number is taken and
// common.ErrReservationUnsupported when the backend cannot reserve.
func (s *Store) Reserve(ctx context.Context, t models.DocumentType, number int) error {
	b, err := s.backends.Select(ctx)
	if err != nil {
		return err
	}
	r, ok := b.(storage.Reserver)
	if !ok {
		return common.ErrReservationUnsupported
	}

	started := time.Now()
	err = r.Reserve(ctx, t, number)
	if errors.Is(err, common.ErrAlreadyExists) {
		s.metrics.ObserveBackend(backendName(b), "reserve", started, nil)
	} else {
		s.metrics.ObserveBackend(backendName(b), "reserve", started, err)
	}
	return err
}

func sortByDateDesc(docs []models.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].SortTime().After(docs[j].SortTime())
	})
}

func backendName(b storage.Backend) string {
	if n, ok := b.(storage.Named); ok {
		return n.Name()
	}
	return "unknown"
}
