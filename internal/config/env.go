package config

import (
	"fmt"
	"strconv"
	"time"
)

// parseEnv overlays config with environment variables. main loads a .env
// file (godotenv) before this runs, so both sources end up here.
//
// Duration variables accept Go durations ("45s") or plain seconds ("45").
func parseEnv(config *Config, lookup func(string) (string, bool)) error {
	if lookup == nil {
		return nil
	}

	strs := map[string]*string{
		"HTTP_ADDR":          &config.HTTPAddr,
		"DATA_DIR":           &config.DataDir,
		"SETTINGS_FILE":      &config.SettingsFile,
		"WEBDAV_ROOT":        &config.WebDAVRoot,
		"REDIS_ADDR":         &config.RedisAddr,
		"NUMBERING_STRATEGY": &config.NumberingStrategy,
		"RESERVATION_DSN":    &config.ReservationDSN,
		"SECRET_KEY":         &config.SecretKey,
		"BACKEND_KIND":       &config.BackendKind,
		"S3_ACCESS_KEY":      &config.S3AccessKey,
		"S3_SECRET_KEY":      &config.S3SecretKey,
		"S3_BUCKET":          &config.S3Bucket,
		"S3_REGION":          &config.S3Region,
		"S3_BASE_ENDPOINT":   &config.S3BaseEndpoint,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"WEBDAV_TIMEOUT": &config.WebDAVTimeout,
		"CACHE_TTL":      &config.CacheTTL,
	}
	for key, dst := range durations {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = d
	}

	return nil
}

func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}
