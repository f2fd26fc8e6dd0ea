package config

import "flag"

// RegisterFlags binds the global command-line flags to cfg. The current
// values become the flag defaults, so parsing only overrides what is given.
// The config flag itself is consumed earlier by ConfigPath.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.String("config", "", "path to a JSON config file")
	fs.StringVar(&c.Storage.Driver, "storage", c.Storage.Driver, "storage driver: memory|sqlite|postgres")
	fs.StringVar(&c.Storage.SQLitePath, "db", c.Storage.SQLitePath, "sqlite database path")
	fs.StringVar(&c.Storage.PostgresDSN, "dsn", c.Storage.PostgresDSN, "postgres DSN")
	fs.StringVar(&c.Blob.Driver, "archive", c.Blob.Driver, "backup archive driver: fs|memory|s3")
	fs.StringVar(&c.Blob.FSRoot, "archive-dir", c.Blob.FSRoot, "backup archive directory for the fs driver")
	fs.StringVar(&c.Log.Level, "log-level", c.Log.Level, "log level: debug|info|warn|error")
	fs.StringVar(&c.Log.Format, "log-format", c.Log.Format, "log format: text|json")
	fs.StringVar(&c.Metrics.TextfilePath, "metrics-textfile", c.Metrics.TextfilePath, "write prometheus metrics to this file on exit")
}
