package models

// Settings is the persisted connection configuration of the remote backend.
// Empty URL or username means the local backend is used.
type Settings struct {
	WebDAVURL      string `json:"webdavUrl,omitempty"`
	WebDAVUsername string `json:"webdavUsername,omitempty"`
	WebDAVPassword string `json:"webdavPassword,omitempty"`
}

// Remote reports whether the settings select the WebDAV backend.
func (s Settings) Remote() bool {
	return s.WebDAVURL != "" && s.WebDAVUsername != ""
}

// SettingsUpdate is a partial update; nil fields keep their current value.
type SettingsUpdate struct {
	WebDAVURL      *string `json:"webdavUrl"`
	WebDAVUsername *string `json:"webdavUsername"`
	WebDAVPassword *string `json:"webdavPassword"`
}

// Apply returns s with the non-nil fields of u applied.
func (s Settings) Apply(u SettingsUpdate) Settings {
	if u.WebDAVURL != nil {
		s.WebDAVURL = *u.WebDAVURL
	}
	if u.WebDAVUsername != nil {
		s.WebDAVUsername = *u.WebDAVUsername
	}
	if u.WebDAVPassword != nil {
		s.WebDAVPassword = *u.WebDAVPassword
	}
	return s
}
