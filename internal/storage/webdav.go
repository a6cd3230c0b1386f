package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/dmitrijs2005/invoicekeeper/internal/common"
	"github.com/dmitrijs2005/invoicekeeper/internal/logging"
	"github.com/dmitrijs2005/invoicekeeper/internal/models"
	"github.com/dmitrijs2005/invoicekeeper/internal/netx"
	"github.com/studio-b12/gowebdav"
)

// WebDAVConfig describes a remote collection, e.g. a Nextcloud user's files.
type WebDAVConfig struct {
	URL      string
	Username string
	Password string
	Root     string
	Timeout  time.Duration
}

// davClient is the part of *gowebdav.Client the backend uses.
type davClient interface {
	Stat(path string) (os.FileInfo, error)
	ReadDir(path string) ([]os.FileInfo, error)
	Read(path string) ([]byte, error)
	Write(path string, data []byte, perm os.FileMode) error
	MkdirAll(path string, perm os.FileMode) error
}

// WebDAVBackend stores documents in a collection rooted at cfg.Root on a
// WebDAV server. Every operation is a discrete HTTP call; no connection state
// is kept besides the client itself.
type WebDAVBackend struct {
	cfg    WebDAVConfig
	client davClient
	http   *http.Client
	logger logging.Logger
}

func NewWebDAVBackend(cfg WebDAVConfig, logger logging.Logger) *WebDAVBackend {
	if cfg.Root == "" {
		cfg.Root = "/"
	}
	c := gowebdav.NewClient(cfg.URL, cfg.Username, cfg.Password)
	hc := &http.Client{}
	if cfg.Timeout > 0 {
		c.SetTimeout(cfg.Timeout)
		hc.Timeout = cfg.Timeout
	}
	return &WebDAVBackend{
		cfg:    cfg,
		client: c,
		http:   hc,
		logger: logger.With("module", "storage", "backend", "webdav"),
	}
}

func (b *WebDAVBackend) Name() string { return "webdav" }

func (b *WebDAVBackend) abs(p string) string {
	return path.Join(b.cfg.Root, p)
}

// Ping lists the server root; it is the connectivity check used before
// settings are saved.
func (b *WebDAVBackend) Ping(ctx context.Context) error {
	if _, err := b.client.ReadDir("/"); err != nil {
		return unavailable("propfind", "/", err)
	}
	return nil
}

func (b *WebDAVBackend) Exists(ctx context.Context, containerPath string) (bool, error) {
	_, err := b.client.Stat(b.abs(containerPath))
	if err == nil {
		return true, nil
	}
	if isDAVNotFound(err) {
		return false, nil
	}
	return false, unavailable("stat", containerPath, err)
}

func (b *WebDAVBackend) EnsureContainer(ctx context.Context, containerPath string) error {
	ok, err := b.Exists(ctx, containerPath)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if err := b.client.MkdirAll(b.abs(containerPath), 0o755); err != nil {
		return unavailable("mkcol", containerPath, err)
	}
	return nil
}

func (b *WebDAVBackend) List(ctx context.Context, t models.DocumentType) ([]models.Document, error) {
	folder := b.abs(t.Container())

	files, err := b.client.ReadDir(folder)
	if err != nil {
		if isDAVNotFound(err) {
			return []models.Document{}, nil
		}
		return nil, unavailable("propfind", folder, err)
	}

	docs := make([]models.Document, 0, len(files))
	for _, f := range files {
		if f.IsDir() || !isDocumentFile(f.Name()) {
			continue
		}
		name := path.Join(folder, f.Name())
		data, err := b.client.Read(name)
		if err != nil {
			b.logger.Warn(ctx, "skipping unreadable document", "path", name, "err", err)
			continue
		}
		docs = collect(ctx, b.logger, docs, name, data)
	}
	return docs, nil
}

func (b *WebDAVBackend) Read(ctx context.Context, id string, t models.DocumentType) (models.Document, error) {
	if !models.ValidID(id) {
		return models.Document{}, common.ErrorNotFound
	}
	p := documentPath(t, id)
	data, err := b.client.Read(b.abs(p))
	if err != nil {
		if isDAVNotFound(err) {
			return models.Document{}, common.ErrorNotFound
		}
		return models.Document{}, unavailable("get", p, err)
	}
	doc, err := decodeDocument(data)
	if err != nil {
		return models.Document{}, fmt.Errorf("%s: %w", p, err)
	}
	return doc, nil
}

// Write lazily creates the root and the type collection, then PUTs the file.
func (b *WebDAVBackend) Write(ctx context.Context, doc models.Document) error {
	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	if err := b.EnsureContainer(ctx, doc.Type.Container()); err != nil {
		return err
	}
	p := documentPath(doc.Type, doc.ID)
	if err := b.client.Write(b.abs(p), data, 0o644); err != nil {
		return unavailable("put", p, err)
	}
	return nil
}

// Reserve issues a raw MKCOL for .reservations/<type>s/<number>. WebDAV
// servers answer 405 when the collection already exists, which makes the
// call an atomic create-if-absent.
func (b *WebDAVBackend) Reserve(ctx context.Context, t models.DocumentType, number int) error {
	p := reservationPath(t, number)
	if err := b.EnsureContainer(ctx, path.Dir(p)); err != nil {
		return err
	}

	target, err := b.url(b.abs(p))
	if err != nil {
		return err
	}
	res, err := netx.Mkcol(ctx, b.http, target, b.cfg.Username, b.cfg.Password)
	if err != nil {
		return unavailable("mkcol", p, err)
	}
	if res == netx.Exists {
		return common.ErrAlreadyExists
	}
	return nil
}

func (b *WebDAVBackend) url(p string) (string, error) {
	base, err := url.Parse(b.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("invalid webdav url: %w", err)
	}
	segments := strings.Split(strings.Trim(p, "/"), "/")
	return base.JoinPath(segments...).String(), nil
}

func isDAVNotFound(err error) bool {
	return gowebdav.IsErrNotFound(err) || errors.Is(err, os.ErrNotExist)
}
