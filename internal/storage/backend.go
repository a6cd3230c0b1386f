// Package storage implements the document backends: a local directory tree,
// a remote WebDAV collection and an S3-compatible bucket. All of them use the
// same relative layout, <root>/<type>s/<id>.json, one pretty-printed JSON
// object per file.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/invoicekeeper/internal/common"
	"github.com/dmitrijs2005/invoicekeeper/internal/logging"
	"github.com/dmitrijs2005/invoicekeeper/internal/models"
)

// Backend is the capability set every storage variant provides.
//
// List skips and logs entries that do not parse; it fails (wrapping
// common.ErrBackendUnavailable) only when the container itself cannot be read.
// Read returns common.ErrorNotFound for a missing document. Write overwrites
// any existing document with the same id.
type Backend interface {
	Exists(ctx context.Context, containerPath string) (bool, error)
	EnsureContainer(ctx context.Context, containerPath string) error
	List(ctx context.Context, t models.DocumentType) ([]models.Document, error)
	Read(ctx context.Context, id string, t models.DocumentType) (models.Document, error)
	Write(ctx context.Context, doc models.Document) error
}

// Reserver is implemented by backends that can atomically create a marker
// for a document number. Reserve returns common.ErrAlreadyExists when the
// number is already reserved.
type Reserver interface {
	Reserve(ctx context.Context, t models.DocumentType, number int) error
}

// Named backends report a short name for logs and metrics.
type Named interface {
	Name() string
}

const reservationsDir = ".reservations"

func documentPath(t models.DocumentType, id string) string {
	return path.Join(t.Container(), id+".json")
}

func reservationPath(t models.DocumentType, number int) string {
	return path.Join(reservationsDir, t.Container(), strconv.Itoa(number))
}

func isDocumentFile(name string) bool {
	return strings.HasSuffix(name, ".json") && !strings.HasPrefix(name, ".")
}

func encodeDocument(doc models.Document) ([]byte, error) {
	if !doc.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown document type %q", common.ErrValidation, doc.Type)
	}
	if !models.ValidID(doc.ID) {
		return nil, fmt.Errorf("%w: invalid document id %q", common.ErrValidation, doc.ID)
	}
	return json.MarshalIndent(doc, "", "  ")
}

func decodeDocument(data []byte) (models.Document, error) {
	var doc models.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return models.Document{}, fmt.Errorf("%w: %v", common.ErrMalformedDocument, err)
	}
	return doc, nil
}

// collect decodes one listed entry, logging and dropping it when it does
// not parse. A corrupt or half-written file must not break the listing.
func collect(ctx context.Context, logger logging.Logger, docs []models.Document, name string, data []byte) []models.Document {
	doc, err := decodeDocument(data)
	if err != nil {
		logger.Warn(ctx, "skipping malformed document", "path", name, "err", err)
		return docs
	}
	return append(docs, doc)
}

func unavailable(op, p string, err error) error {
	return fmt.Errorf("%w: %s %s: %v", common.ErrBackendUnavailable, op, p, err)
}
