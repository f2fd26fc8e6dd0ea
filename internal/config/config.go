// Package config handles spoolbook configuration: built-in defaults, an
// optional JSON file, SPOOLBOOK_* environment variables and command-line
// flags, applied in that order.
package config

import (
	"fmt"
	"strings"
)

// Config holds runtime settings for the spoolbook CLI.
type Config struct {
	Storage  Storage  `json:"storage"`
	Blob     Blob     `json:"blob"`
	Log      Log      `json:"log"`
	Metrics  Metrics  `json:"metrics"`
	Defaults Defaults `json:"defaults"`
}

// Storage selects the record store backend.
type Storage struct {
	Driver      string `json:"driver"` // memory|sqlite|postgres
	SQLitePath  string `json:"sqlite_path"`
	PostgresDSN string `json:"postgres_dsn"`
}

// Blob selects where backup archives are kept.
type Blob struct {
	Driver string `json:"driver"` // fs|memory|s3
	FSRoot string `json:"fs_root"`
	S3     S3     `json:"s3"`
}

// S3 configures an S3 or MinIO bucket. Static credentials are optional; the
// default AWS credential chain is used when they are empty.
type S3 struct {
	Bucket          string `json:"bucket"`
	Region          string `json:"region"`
	Endpoint        string `json:"endpoint"`
	PathStyle       bool   `json:"path_style"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
}

type Log struct {
	Level  string `json:"level"`
	Format string `json:"format"` // text|json
}

// Metrics configures the operation metrics exporters.
type Metrics struct {
	TextfilePath string `json:"textfile_path"` // node-exporter textfile, empty disables
	ExpvarName   string `json:"expvar_name"`
}

// Defaults carries the domain defaults applied to omitted inputs.
type Defaults struct {
	Brand               string   `json:"brand"`
	Material            string   `json:"material"`
	Color               string   `json:"color"`
	Line                string   `json:"line"`
	Finish              string   `json:"finish"`
	Additives           string   `json:"additives"`
	DiameterMM          float64  `json:"diameter_mm"`
	WeightG             float64  `json:"weight_g"`
	LowThresholdG       float64  `json:"low_threshold_g"`
	AnalyticsWindowDays int      `json:"analytics_window_days"`
	TopN                int      `json:"top_n"`
	Vendors             []string `json:"vendors"`
}

// LoadDefaults populates c with the built-in defaults.
func (c *Config) LoadDefaults() {
	c.Storage = Storage{Driver: "sqlite", SQLitePath: "spoolbook.db"}
	c.Blob = Blob{Driver: "fs", FSRoot: "./spoolbook-archive", S3: S3{Region: "us-east-1"}}
	c.Log = Log{Level: "info", Format: "text"}
	c.Metrics = Metrics{ExpvarName: "spoolbook_operations"}
	c.Defaults = Defaults{
		Brand:               "Other",
		Material:            "Other",
		Color:               "Other",
		Line:                "Standard",
		Finish:              "Standard",
		Additives:           "None",
		DiameterMM:          1.75,
		WeightG:             1000,
		LowThresholdG:       150,
		AnalyticsWindowDays: 30,
		TopN:                12,
		Vendors:             []string{"Amazon", "Prusa", "Bambu Lab", "MatterHackers", "Other"},
	}
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Blob.Driver {
	case "fs", "memory":
	case "s3":
		if strings.TrimSpace(c.Blob.S3.Bucket) == "" {
			return fmt.Errorf("blob.s3.bucket required for s3 driver")
		}
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}
	if c.Defaults.LowThresholdG < 0 {
		return fmt.Errorf("defaults.low_threshold_g must not be negative")
	}
	if c.Defaults.AnalyticsWindowDays <= 0 || c.Defaults.TopN <= 0 {
		return fmt.Errorf("analytics window and top-n must be positive")
	}
	return nil
}

// Load builds a Config from defaults, the JSON file at path (if any) and the
// environment visible through lookup. Flags are applied afterwards by the
// caller via RegisterFlags.
func Load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJSON(cfg, path); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg, lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}
