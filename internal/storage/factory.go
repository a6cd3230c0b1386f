package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/invoicekeeper/internal/common"
	"github.com/dmitrijs2005/invoicekeeper/internal/config"
	"github.com/dmitrijs2005/invoicekeeper/internal/logging"
	"github.com/dmitrijs2005/invoicekeeper/internal/models"
	"github.com/dmitrijs2005/invoicekeeper/internal/settings"
)

// Factory picks the backend for every store operation based on the current
// configuration shape. Settings are re-read on each call, so saving new
// WebDAV credentials takes effect on the next operation.
type Factory struct {
	cfg      *config.Config
	settings settings.Provider
	logger   logging.Logger

	mu        sync.Mutex
	remote    *WebDAVBackend
	remoteKey string
	s3        *S3Backend

	newS3 func(ctx context.Context, cfg S3Config, logger logging.Logger) (*S3Backend, error)
}

func NewFactory(cfg *config.Config, provider settings.Provider, logger logging.Logger) *Factory {
	return &Factory{
		cfg:      cfg,
		settings: provider,
		logger:   logger.With("module", "storage"),
		newS3:    NewS3Backend,
	}
}

// Select returns the active backend:
//   - the S3 backend when BackendKind is "s3";
//   - a WebDAV backend when the settings carry a URL and a username;
//   - otherwise the local backend rooted at DataDir.
//
// An empty DataDir with no remote configured yields common.ErrBackendUnconfigured.
func (f *Factory) Select(ctx context.Context) (Backend, error) {
	if f.cfg.BackendKind == config.BackendS3 {
		return f.selectS3(ctx)
	}

	s, err := f.settings.Get(ctx)
	if err != nil {
		f.logger.Warn(ctx, "settings unreadable, using local backend", "err", err)
		s = models.Settings{}
	}
	if s.Remote() {
		return f.webdav(s), nil
	}

	if f.cfg.DataDir == "" {
		return nil, common.ErrBackendUnconfigured
	}
	return NewLocalBackend(f.cfg.DataDir, f.logger), nil
}

func (f *Factory) selectS3(ctx context.Context) (Backend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.s3 != nil {
		return f.s3, nil
	}
	if f.cfg.S3Bucket == "" {
		return nil, fmt.Errorf("%w: s3 bucket not set", common.ErrBackendUnconfigured)
	}
	b, err := f.newS3(ctx, S3Config{
		Bucket:       f.cfg.S3Bucket,
		Region:       f.cfg.S3Region,
		AccessKey:    f.cfg.S3AccessKey,
		SecretKey:    f.cfg.S3SecretKey,
		BaseEndpoint: f.cfg.S3BaseEndpoint,
		Prefix:       f.cfg.WebDAVRoot,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrBackendUnavailable, err)
	}
	f.s3 = b
	return b, nil
}

// webdav returns the memoized client, rebuilding it only when the
// connection parameters changed.
func (f *Factory) webdav(s models.Settings) *WebDAVBackend {
	key := s.WebDAVURL + "|" + s.WebDAVUsername + "|" + s.WebDAVPassword

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.remote == nil || f.remoteKey != key {
		f.remote = NewWebDAVBackend(f.webdavConfig(s), f.logger)
		f.remoteKey = key
	}
	return f.remote
}

func (f *Factory) webdavConfig(s models.Settings) WebDAVConfig {
	return WebDAVConfig{
		URL:      s.WebDAVURL,
		Username: s.WebDAVUsername,
		Password: s.WebDAVPassword,
		Root:     f.cfg.WebDAVRoot,
		Timeout:  f.cfg.WebDAVTimeout,
	}
}

// Verify checks candidate settings against the server with a fresh client,
// never the memoized one.
func (f *Factory) Verify(ctx context.Context, s models.Settings) error {
	if !s.Remote() {
		return nil
	}
	b := NewWebDAVBackend(f.webdavConfig(s), f.logger)
	if err := b.Ping(ctx); err != nil {
		f.logger.Warn(ctx, "webdav connectivity check failed", "url", s.WebDAVURL, "err", err)
		return fmt.Errorf("%w: %v", common.ErrConnectivityCheck, err)
	}
	return nil
}
