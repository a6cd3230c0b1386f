// Package settings persists the WebDAV connection settings that select and
// configure the remote storage backend.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/dmitrijs2005/invoicekeeper/internal/cryptox"
	"github.com/dmitrijs2005/invoicekeeper/internal/filex"
	"github.com/dmitrijs2005/invoicekeeper/internal/logging"
	"github.com/dmitrijs2005/invoicekeeper/internal/models"
)

// Provider is the read/write accessor the rest of the system uses.
type Provider interface {
	Get(ctx context.Context) (models.Settings, error)
	Save(ctx context.Context, update models.SettingsUpdate) (models.Settings, error)
}

// FileProvider keeps settings in a JSON file that is re-read on every Get,
// so edits made outside the process are picked up immediately.
type FileProvider struct {
	path   string
	sealer *cryptox.Sealer
	logger logging.Logger
	mu     sync.Mutex
}

// NewFileProvider returns a provider for path. A nil sealer stores the
// password as given.
func NewFileProvider(path string, sealer *cryptox.Sealer, logger logging.Logger) *FileProvider {
	return &FileProvider{path: path, sealer: sealer, logger: logger.With("module", "settings")}
}

// Get returns the stored settings. A missing or unreadable file reads as
// empty settings, which selects the local backend.
func (p *FileProvider) Get(ctx context.Context) (models.Settings, error) {
	s, err := p.read()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			p.logger.Warn(ctx, "settings unreadable, using defaults", "path", p.path, "err", err)
		}
		return models.Settings{}, nil
	}
	return s, nil
}

// Save merges update into the stored settings and writes the result.
func (p *FileProvider) Save(ctx context.Context, update models.SettingsUpdate) (models.Settings, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	current, err := p.read()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		p.logger.Warn(ctx, "overwriting unreadable settings", "path", p.path, "err", err)
	}
	merged := current.Apply(update)

	stored := merged
	if p.sealer != nil {
		if stored.WebDAVPassword, err = p.sealer.Seal(merged.WebDAVPassword); err != nil {
			return models.Settings{}, fmt.Errorf("seal password: %w", err)
		}
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return models.Settings{}, err
	}
	if err := filex.WriteFileAtomic(p.path, data, 0o600); err != nil {
		return models.Settings{}, fmt.Errorf("write settings: %w", err)
	}

	p.logger.Info(ctx, "settings saved", "remote", merged.Remote())
	return merged, nil
}

func (p *FileProvider) read() (models.Settings, error) {
	var s models.Settings

	data, err := os.ReadFile(p.path)
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return models.Settings{}, err
	}

	if cryptox.IsSealed(s.WebDAVPassword) {
		if p.sealer == nil {
			return models.Settings{}, errors.New("password is sealed but no secret key is configured")
		}
		if s.WebDAVPassword, err = p.sealer.Open(s.WebDAVPassword); err != nil {
			return models.Settings{}, err
		}
	}
	return s, nil
}
