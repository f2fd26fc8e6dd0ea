package config

import (
	"fmt"
	"strconv"
	"strings"
)

// parseEnv overlays cfg with SPOOLBOOK_* variables.
//
//	SPOOLBOOK_STORAGE_DRIVER       memory|sqlite|postgres
//	SPOOLBOOK_SQLITE_PATH          sqlite database file
//	SPOOLBOOK_POSTGRES_DSN         postgres DSN
//	SPOOLBOOK_BLOB_DRIVER          fs|memory|s3
//	SPOOLBOOK_BLOB_FS_ROOT         archive directory for the fs driver
//	SPOOLBOOK_BLOB_S3_BUCKET       bucket for the s3 driver
//	SPOOLBOOK_BLOB_S3_REGION       region (default us-east-1)
//	SPOOLBOOK_BLOB_S3_ENDPOINT     custom endpoint, e.g. MinIO
//	SPOOLBOOK_BLOB_S3_PATH_STYLE   true|false
//	SPOOLBOOK_BLOB_S3_ACCESS_KEY   static access key id
//	SPOOLBOOK_BLOB_S3_SECRET_KEY   static secret key
//	SPOOLBOOK_LOG_LEVEL            debug|info|warn|error
//	SPOOLBOOK_LOG_FORMAT           text|json
//	SPOOLBOOK_METRICS_TEXTFILE     prometheus textfile output path
//	SPOOLBOOK_LOW_THRESHOLD_G      grams below which a spool is low
func parseEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("SPOOLBOOK_STORAGE_DRIVER", &cfg.Storage.Driver)
	str("SPOOLBOOK_SQLITE_PATH", &cfg.Storage.SQLitePath)
	str("SPOOLBOOK_POSTGRES_DSN", &cfg.Storage.PostgresDSN)
	str("SPOOLBOOK_BLOB_DRIVER", &cfg.Blob.Driver)
	str("SPOOLBOOK_BLOB_FS_ROOT", &cfg.Blob.FSRoot)
	str("SPOOLBOOK_BLOB_S3_BUCKET", &cfg.Blob.S3.Bucket)
	str("SPOOLBOOK_BLOB_S3_REGION", &cfg.Blob.S3.Region)
	str("SPOOLBOOK_BLOB_S3_ENDPOINT", &cfg.Blob.S3.Endpoint)
	str("SPOOLBOOK_BLOB_S3_ACCESS_KEY", &cfg.Blob.S3.AccessKeyID)
	str("SPOOLBOOK_BLOB_S3_SECRET_KEY", &cfg.Blob.S3.SecretAccessKey)
	str("SPOOLBOOK_LOG_LEVEL", &cfg.Log.Level)
	str("SPOOLBOOK_LOG_FORMAT", &cfg.Log.Format)
	str("SPOOLBOOK_METRICS_TEXTFILE", &cfg.Metrics.TextfilePath)

	if v, ok := lookup("SPOOLBOOK_BLOB_S3_PATH_STYLE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SPOOLBOOK_BLOB_S3_PATH_STYLE: %w", err)
		}
		cfg.Blob.S3.PathStyle = b
	}
	if v, ok := lookup("SPOOLBOOK_LOW_THRESHOLD_G"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SPOOLBOOK_LOW_THRESHOLD_G: %w", err)
		}
		cfg.Defaults.LowThresholdG = f
	}
	return nil
}
