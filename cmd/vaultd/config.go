package main

import (
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// serverConfig holds the resolved vaultd settings. Precedence: built-in
// defaults, then the TOML file, then flags set explicitly on the
// command line.
type serverConfig struct {
	ListenAddr     string
	OracleEndpoint string
	OracleTimeout  time.Duration
	PostgresDSN    string
	ClickhouseDSN  string
	ExportInterval time.Duration
	UseMemory      bool
}

// fileConfig is the vaultd config.toml key mapping. Durations are
// strings in Go duration syntax ("10s", "1m30s").
type fileConfig struct {
	ListenAddr     string `toml:"listen_addr"`
	OracleEndpoint string `toml:"oracle_endpoint"`
	OracleTimeout  string `toml:"oracle_timeout"`
	PostgresDSN    string `toml:"postgres_dsn"`
	ClickhouseDSN  string `toml:"clickhouse_dsn"`
	ExportInterval string `toml:"export_interval"`
	UseMemory      bool   `toml:"use_memory"`
}

// setFlags returns the names of flags given explicitly on the command line.
func setFlags() map[string]bool {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// applyFileConfig overlays values from the TOML file onto cfg, skipping
// any setting whose flag was set explicitly.
func applyFileConfig(path string, cfg *serverConfig, set map[string]bool) error {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}

	if meta.IsDefined("listen_addr") && !set["listen-addr"] {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("oracle_endpoint") && !set["oracle-endpoint"] {
		cfg.OracleEndpoint = strings.TrimSpace(raw.OracleEndpoint)
	}
	if meta.IsDefined("oracle_timeout") && !set["oracle-timeout"] {
		d, err := time.ParseDuration(strings.TrimSpace(raw.OracleTimeout))
		if err != nil {
			return fmt.Errorf("load config %s: oracle_timeout: %w", path, err)
		}
		cfg.OracleTimeout = d
	}
	if meta.IsDefined("postgres_dsn") && !set["postgres-dsn"] {
		cfg.PostgresDSN = strings.TrimSpace(raw.PostgresDSN)
	}
	if meta.IsDefined("clickhouse_dsn") && !set["clickhouse-dsn"] {
		cfg.ClickhouseDSN = strings.TrimSpace(raw.ClickhouseDSN)
	}
	if meta.IsDefined("export_interval") && !set["export-interval"] {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ExportInterval))
		if err != nil {
			return fmt.Errorf("load config %s: export_interval: %w", path, err)
		}
		cfg.ExportInterval = d
	}
	if meta.IsDefined("use_memory") && !set["use-memory"] {
		cfg.UseMemory = raw.UseMemory
	}

	return nil
}
