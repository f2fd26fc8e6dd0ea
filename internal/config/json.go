package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
)

// ConfigPath resolves the JSON config file: the -config/--config flag wins
// over SPOOLBOOK_CONFIG. The global flags are parsed on a scratch set so
// values of other flags are skipped and parsing stops at the subcommand.
func ConfigPath(args []string, lookup func(string) (string, bool)) string {
	var scratch Config
	scratch.LoadDefaults()
	fs := flag.NewFlagSet("spoolbook", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	scratch.RegisterFlags(fs)
	_ = fs.Parse(args)
	if path := fs.Lookup("config").Value.String(); path != "" {
		return path
	}
	if v, ok := lookup("SPOOLBOOK_CONFIG"); ok {
		return v
	}
	return ""
}

// parseJSON overlays cfg with the file at path. Fields absent from the file
// keep their current values.
func parseJSON(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}
