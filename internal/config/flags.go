package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/invoicekeeper/internal/flagx"
)

// Flags lists every flag parseFlags understands; the CLI uses it to separate
// its positional arguments from configuration.
var Flags = []string{"-c", "-config", "-a", "-d", "-f", "-w", "-o", "-t", "-r", "-n", "-q", "-s", "-k", "-u", "-p", "-b", "-g", "-e"}

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g. ":8080")
//	-d string   local backend root directory
//	-f string   settings file
//	-w string   WebDAV root collection
//	-o int      WebDAV timeout, seconds
//	-t int      cache freshness window, seconds
//	-r string   Redis address for the shared cache
//	-n string   numbering strategy: scan | reserved
//	-q string   reservation database DSN
//	-s string   secret key sealing the stored WebDAV password
//	-k string   backend kind override ("s3")
//	-u string   S3 access key
//	-p string   S3 secret key
//	-b string   S3 bucket
//	-g string   S3 region
//	-e string   S3 base endpoint
//
// Duration flags are whole seconds.
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "address and port to run server")
	fs.StringVar(&config.DataDir, "d", config.DataDir, "local data directory")
	fs.StringVar(&config.SettingsFile, "f", config.SettingsFile, "settings file")
	fs.StringVar(&config.WebDAVRoot, "w", config.WebDAVRoot, "WebDAV root collection")

	webdavTimeout := fs.Int("o", int(config.WebDAVTimeout.Seconds()), "WebDAV timeout (in seconds)")
	cacheTTL := fs.Int("t", int(config.CacheTTL.Seconds()), "cache TTL (in seconds)")

	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "Redis address")
	fs.StringVar(&config.NumberingStrategy, "n", config.NumberingStrategy, "numbering strategy (scan|reserved)")
	fs.StringVar(&config.ReservationDSN, "q", config.ReservationDSN, "reservation database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.BackendKind, "k", config.BackendKind, "backend kind override")
	fs.StringVar(&config.S3AccessKey, "u", config.S3AccessKey, "S3 access key")
	fs.StringVar(&config.S3SecretKey, "p", config.S3SecretKey, "S3 secret key")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	// -c/-config are consumed by parseJson; declare them so Parse accepts them.
	fs.String("c", "", "config file")
	fs.String("config", "", "config file")

	if err := fs.Parse(flagx.FilterArgs(args, Flags)); err != nil {
		return err
	}

	config.WebDAVTimeout = time.Duration(*webdavTimeout) * time.Second
	config.CacheTTL = time.Duration(*cacheTTL) * time.Second
	return nil
}
