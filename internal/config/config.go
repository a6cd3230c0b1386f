// Package config handles process configuration for the server and the CLI,
// including defaults, a JSON overlay, environment variables and
// command-line flags.
package config

import "time"

// Numbering strategies accepted by NumberingStrategy.
const (
	NumberingScan     = "scan"
	NumberingReserved = "reserved"
)

// BackendS3 forces the S3-compatible backend regardless of the settings file.
const BackendS3 = "s3"

// Config holds runtime settings for invoicekeeper.
//
// Fields:
//   - HTTPAddr: bind address of the HTTP API.
//   - DataDir: root directory of the local backend.
//   - SettingsFile: path of the JSON settings (WebDAV connection) file.
//   - WebDAVRoot / WebDAVTimeout: collection all documents live under, and the per-request timeout.
//   - CacheTTL: freshness window of cached listings.
//   - RedisAddr: when set, listings are cached in Redis instead of process memory.
//   - NumberingStrategy: "scan" or "reserved".
//   - ReservationDSN: SQL database for number reservations; empty reserves on the storage backend.
//   - SecretKey: seals the WebDAV password at rest when non-empty.
//   - BackendKind: "" selects by settings, "s3" forces the object store.
//   - S3AccessKey / S3SecretKey / S3Bucket / S3Region / S3BaseEndpoint: object storage settings.
type Config struct {
	HTTPAddr          string
	DataDir           string
	SettingsFile      string
	WebDAVRoot        string
	WebDAVTimeout     time.Duration
	CacheTTL          time.Duration
	RedisAddr         string
	NumberingStrategy string
	ReservationDSN    string
	SecretKey         string
	BackendKind       string
	S3AccessKey       string
	S3SecretKey       string
	S3Bucket          string
	S3Region          string
	S3BaseEndpoint    string
}

// LoadDefaults populates Config with defaults suitable for a single-operator
// install.
func (c *Config) LoadDefaults() {
	c.HTTPAddr = ":8080"
	c.DataDir = "data"
	c.SettingsFile = "config/settings.json"
	c.WebDAVRoot = "/MarottoSolutions"
	c.WebDAVTimeout = 30 * time.Second
	c.CacheTTL = 30 * time.Second
	c.NumberingStrategy = NumberingScan
	c.S3Bucket = "invoicekeeper"
	c.S3Region = "us-east-1"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, the environment, and finally from
// command-line flags in args (usually os.Args[1:]).
func LoadConfig(args []string, lookupEnv func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg, lookupEnv); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
