// Package importer loads externally produced document batches, for example an
// export of a previous installation, into the document store.
package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/invoicekeeper/internal/common"
	"github.com/dmitrijs2005/invoicekeeper/internal/logging"
	"github.com/dmitrijs2005/invoicekeeper/internal/metrics"
	"github.com/dmitrijs2005/invoicekeeper/internal/models"
)

type Saver interface {
	SaveDocument(ctx context.Context, doc models.Document) error
}

// Result counts the outcome of a batch. Skipped elements failed validation
// and were not written.
type Result struct {
	Imported int `json:"count"`
	Skipped  int `json:"errors"`
}

// PartialImportError reports a batch that stopped at the first failed save.
// Imported documents before the failure stay written.
type PartialImportError struct {
	Imported int
	Skipped  int
	Err      error
}

func (e *PartialImportError) Error() string {
	return fmt.Sprintf("import aborted after %d documents: %v", e.Imported, e.Err)
}

func (e *PartialImportError) Unwrap() error { return e.Err }

type Importer struct {
	docs    Saver
	now     func() time.Time
	metrics *metrics.Metrics
	logger  logging.Logger
}

func New(docs Saver, m *metrics.Metrics, logger logging.Logger) *Importer {
	return &Importer{
		docs:    docs,
		now:     time.Now,
		metrics: m,
		logger:  logger.With("module", "importer"),
	}
}

// ImportBatch validates every element of payload, a JSON array of documents,
// and saves the valid ones in order. The batch is not transactional: the
// first save error stops it and is returned as *PartialImportError.
func (i *Importer) ImportBatch(ctx context.Context, payload []byte) (Result, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal(payload, &elements); err != nil {
		var probe any
		if json.Unmarshal(payload, &probe) == nil {
			return Result{}, fmt.Errorf("%w: JSON must be an array of documents", common.ErrValidation)
		}
		return Result{}, fmt.Errorf("%w: failed to process file: %v", common.ErrValidation, err)
	}
	if elements == nil {
		return Result{}, fmt.Errorf("%w: JSON must be an array of documents", common.ErrValidation)
	}

	var res Result
	for idx, raw := range elements {
		doc, err := candidate(raw)
		if err != nil {
			res.Skipped++
			i.logger.Debug(ctx, "import candidate skipped", "index", idx, "err", err)
			continue
		}

		ts := models.Timestamp(i.now())
		if doc.CreatedAt == "" {
			doc.CreatedAt = ts
		}
		if doc.UpdatedAt == "" {
			doc.UpdatedAt = ts
		}

		if err := i.docs.SaveDocument(ctx, doc); err != nil {
			i.metrics.Imported(res.Imported)
			i.metrics.Skipped(res.Skipped)
			i.metrics.ImportFailed()
			i.logger.Error(ctx, "import aborted", "index", idx, "id", doc.ID, "imported", res.Imported, "err", err)
			return res, &PartialImportError{Imported: res.Imported, Skipped: res.Skipped, Err: err}
		}
		res.Imported++
	}

	i.metrics.Imported(res.Imported)
	i.metrics.Skipped(res.Skipped)
	i.logger.Info(ctx, "import finished", "imported", res.Imported, "skipped", res.Skipped)
	return res, nil
}

// candidate checks the shape of one element: a non-null object with a
// primary type, a string id usable as a file name and a numeric number.
func candidate(raw json.RawMessage) (models.Document, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return models.Document{}, fmt.Errorf("%w: not an object", common.ErrValidation)
	}

	var typ string
	if err := json.Unmarshal(fields["type"], &typ); err != nil {
		return models.Document{}, fmt.Errorf("%w: type must be a string", common.ErrValidation)
	}
	if !models.DocumentType(typ).Primary() {
		return models.Document{}, fmt.Errorf("%w: unsupported type %q", common.ErrValidation, typ)
	}

	var id string
	if err := json.Unmarshal(fields["id"], &id); err != nil {
		return models.Document{}, fmt.Errorf("%w: id must be a string", common.ErrValidation)
	}
	if !models.ValidID(id) {
		return models.Document{}, fmt.Errorf("%w: id %q is not a valid file name", common.ErrValidation, id)
	}

	if !isNumber(fields["number"]) {
		return models.Document{}, fmt.Errorf("%w: number must be a number", common.ErrValidation)
	}

	var doc models.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return models.Document{}, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	return doc, nil
}

func isNumber(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	c := raw[0]
	return c == '-' || (c >= '0' && c <= '9')
}
