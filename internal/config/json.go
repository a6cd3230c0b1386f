package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/invoicekeeper/internal/flagx"
	"github.com/dmitrijs2005/invoicekeeper/internal/timex"
)

// JsonConfig is a DTO used only for reading the JSON configuration file.
// Durations use timex.Duration so they can be written as "30s" or as
// integer nanoseconds. Absent keys leave the current value untouched.
type JsonConfig struct {
	HTTPAddr          *string         `json:"http_addr"`
	DataDir           *string         `json:"data_dir"`
	SettingsFile      *string         `json:"settings_file"`
	WebDAVRoot        *string         `json:"webdav_root"`
	WebDAVTimeout     *timex.Duration `json:"webdav_timeout"`
	CacheTTL          *timex.Duration `json:"cache_ttl"`
	RedisAddr         *string         `json:"redis_addr"`
	NumberingStrategy *string         `json:"numbering_strategy"`
	ReservationDSN    *string         `json:"reservation_dsn"`
	SecretKey         *string         `json:"secret_key"`
	BackendKind       *string         `json:"backend_kind"`
	S3AccessKey       *string         `json:"s3_access_key"`
	S3SecretKey       *string         `json:"s3_secret_key"`
	S3Bucket          *string         `json:"s3_bucket"`
	S3Region          *string         `json:"s3_region"`
	S3BaseEndpoint    *string         `json:"s3_base_endpoint"`
}

// parseJson overlays config with the JSON file named by -c/-config in args.
// Without either flag nothing is loaded.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var c JsonConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.DataDir, c.DataDir)
	setString(&config.SettingsFile, c.SettingsFile)
	setString(&config.WebDAVRoot, c.WebDAVRoot)
	if c.WebDAVTimeout != nil {
		config.WebDAVTimeout = c.WebDAVTimeout.Duration
	}
	if c.CacheTTL != nil {
		config.CacheTTL = c.CacheTTL.Duration
	}
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.NumberingStrategy, c.NumberingStrategy)
	setString(&config.ReservationDSN, c.ReservationDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.BackendKind, c.BackendKind)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)

	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
