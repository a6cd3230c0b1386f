package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/dmitrijs2005/invoicekeeper/internal/common"
	"github.com/dmitrijs2005/invoicekeeper/internal/filex"
	"github.com/dmitrijs2005/invoicekeeper/internal/logging"
	"github.com/dmitrijs2005/invoicekeeper/internal/models"
)

// LocalBackend stores documents under a root directory on disk.
type LocalBackend struct {
	root   string
	logger logging.Logger
}

func NewLocalBackend(root string, logger logging.Logger) *LocalBackend {
	return &LocalBackend{root: root, logger: logger.With("module", "storage", "backend", "local")}
}

func (b *LocalBackend) Name() string { return "local" }

func (b *LocalBackend) Root() string { return b.root }

func (b *LocalBackend) abs(p string) string {
	return filepath.Join(b.root, filepath.FromSlash(p))
}

func (b *LocalBackend) Exists(ctx context.Context, containerPath string) (bool, error) {
	_, err := os.Stat(b.abs(containerPath))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, unavailable("stat", containerPath, err)
}

func (b *LocalBackend) EnsureContainer(ctx context.Context, containerPath string) error {
	if err := filex.EnsureDir(b.abs(containerPath)); err != nil {
		return unavailable("mkdir", containerPath, err)
	}
	return nil
}

func (b *LocalBackend) List(ctx context.Context, t models.DocumentType) ([]models.Document, error) {
	dir := b.abs(t.Container())

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []models.Document{}, nil
		}
		return nil, unavailable("readdir", t.Container(), err)
	}

	docs := make([]models.Document, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isDocumentFile(e.Name()) {
			continue
		}
		name := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(name)
		if err != nil {
			b.logger.Warn(ctx, "skipping unreadable document", "path", name, "err", err)
			continue
		}
		docs = collect(ctx, b.logger, docs, name, data)
	}
	return docs, nil
}

func (b *LocalBackend) Read(ctx context.Context, id string, t models.DocumentType) (models.Document, error) {
	if !models.ValidID(id) {
		return models.Document{}, common.ErrorNotFound
	}
	p := documentPath(t, id)
	data, err := os.ReadFile(b.abs(p))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.Document{}, common.ErrorNotFound
		}
		return models.Document{}, unavailable("read", p, err)
	}
	doc, err := decodeDocument(data)
	if err != nil {
		return models.Document{}, fmt.Errorf("%s: %w", p, err)
	}
	return doc, nil
}

func (b *LocalBackend) Write(ctx context.Context, doc models.Document) error {
	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	if err := b.EnsureContainer(ctx, doc.Type.Container()); err != nil {
		return err
	}
	p := documentPath(doc.Type, doc.ID)
	if err := filex.WriteFileAtomic(b.abs(p), data, 0o640); err != nil {
		return unavailable("write", p, err)
	}
	return nil
}

// Reserve creates .reservations/<type>s/<number> with os.Mkdir, which fails
// atomically if another writer got there first.
func (b *LocalBackend) Reserve(ctx context.Context, t models.DocumentType, number int) error {
	p := reservationPath(t, number)
	if err := b.EnsureContainer(ctx, path.Dir(p)); err != nil {
		return err
	}
	if err := os.Mkdir(b.abs(p), 0o750); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return common.ErrAlreadyExists
		}
		return unavailable("reserve", p, err)
	}
	return nil
}
