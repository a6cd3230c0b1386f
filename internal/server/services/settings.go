package services

import (
	"context"

	"github.com/dmitrijs2005/invoicekeeper/internal/logging"
	"github.com/dmitrijs2005/invoicekeeper/internal/models"
	"github.com/dmitrijs2005/invoicekeeper/internal/settings"
)

// Verifier checks that candidate settings reach the remote server.
type Verifier interface {
	Verify(ctx context.Context, s models.Settings) error
}

// SettingsView is the settings representation handed to clients; the
// password itself never leaves the server.
type SettingsView struct {
	WebDAVURL      string `json:"webdavUrl"`
	WebDAVUsername string `json:"webdavUsername"`
	PasswordSet    bool   `json:"passwordSet"`
	Backend        string `json:"backend"`
}

func viewOf(s models.Settings) SettingsView {
	backend := "local"
	if s.Remote() {
		backend = "webdav"
	}
	return SettingsView{
		WebDAVURL:      s.WebDAVURL,
		WebDAVUsername: s.WebDAVUsername,
		PasswordSet:    s.WebDAVPassword != "",
		Backend:        backend,
	}
}

type SettingsService struct {
	provider settings.Provider
	verifier Verifier
	logger   logging.Logger
}

func NewSettingsService(provider settings.Provider, verifier Verifier, logger logging.Logger) *SettingsService {
	return &SettingsService{provider: provider, verifier: verifier, logger: logger.With("module", "settings")}
}

func (s *SettingsService) Get(ctx context.Context) (SettingsView, error) {
	cur, err := s.provider.Get(ctx)
	if err != nil {
		return SettingsView{}, err
	}
	return viewOf(cur), nil
}

// Update merges u into the stored settings. When the result selects the
// remote backend it must pass the connectivity check first; otherwise
// nothing is written and the error matches common.ErrConnectivityCheck.
func (s *SettingsService) Update(ctx context.Context, u models.SettingsUpdate) (SettingsView, error) {
	cur, err := s.provider.Get(ctx)
	if err != nil {
		return SettingsView{}, err
	}

	candidate := cur.Apply(u)
	if candidate.Remote() {
		if err := s.verifier.Verify(ctx, candidate); err != nil {
			return SettingsView{}, err
		}
	}

	saved, err := s.provider.Save(ctx, u)
	if err != nil {
		return SettingsView{}, err
	}
	s.logger.Info(ctx, "settings updated", "backend", viewOf(saved).Backend, "url", saved.WebDAVURL)
	return viewOf(saved), nil
}
