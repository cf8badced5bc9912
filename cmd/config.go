package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/liamg/lancache/cache"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const appName = "lancache"

// fileConfig mirrors the persistent flags. Flags given on the command line
// win over the file.
type fileConfig struct {
	CacheFile string `yaml:"cache_file"`
	Backend   string `yaml:"backend"`
	TTL       string `yaml:"ttl"`
	Method    string `yaml:"method"`
	TimeoutMS int    `yaml:"timeout_ms"`
	Workers   int    `yaml:"workers"`
	Names     *bool  `yaml:"names"`
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return ""
	}
	return filepath.Join(dir, appName, "config.yaml")
}

func defaultCacheFile(backend string) string {
	name := "scan-cache.json"
	if backend == "pebble" {
		name = "scan-cache.db"
	}
	dir, err := os.UserCacheDir()
	if err != nil || dir == "" {
		return name
	}
	return filepath.Join(dir, appName, name)
}

// loadConfig reads path. A missing file is only an error when it was asked
// for explicitly.
func loadConfig(path string, explicit bool) (fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

func applyConfig(cmd *cobra.Command) error {
	path, explicit := configFile, configFile != ""
	if !explicit {
		path = defaultConfigPath()
	}

	cfg, err := loadConfig(path, explicit)
	if err != nil {
		return err
	}
	if err := cfg.apply(cmd.Flags()); err != nil {
		return err
	}

	if cacheFile == "" {
		cacheFile = defaultCacheFile(backend)
	}
	log.Debugf("Using %s cache at %s", backend, cacheFile)
	return nil
}

func (cfg fileConfig) apply(flags *pflag.FlagSet) error {
	unset := func(name string) bool {
		return !flags.Changed(name)
	}

	if cfg.CacheFile != "" && unset("cache-file") {
		cacheFile = cfg.CacheFile
	}
	if cfg.Backend != "" && unset("backend") {
		backend = strings.ToLower(cfg.Backend)
	}
	if cfg.TTL != "" && unset("ttl") {
		d, err := time.ParseDuration(cfg.TTL)
		if err != nil {
			return fmt.Errorf("invalid ttl '%s' in config: %w", cfg.TTL, err)
		}
		ttl = d
	}
	if cfg.Method != "" && unset("method") {
		method = cfg.Method
	}
	if cfg.TimeoutMS > 0 && unset("timeout-ms") {
		timeoutMS = cfg.TimeoutMS
	}
	if cfg.Workers > 0 && unset("workers") {
		parallelism = cfg.Workers
	}
	if cfg.Names != nil && unset("names") {
		resolveNames = *cfg.Names
	}
	return nil
}

// openPersister opens the store for the chosen backend. A Pebble database
// that cannot be opened is moved aside so a damaged cache never blocks a scan.
func openPersister(backendStr string, path string) (cache.Persister, error) {
	switch strings.ToLower(backendStr) {
	case "json", "file":
		return cache.NewFileStore(path), nil
	case "pebble":
		store, err := cache.OpenPebbleStore(path)
		if err == nil {
			return store, nil
		}
		aside := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
		log.WithError(err).Warnf("Unable to open cache, moving it to %s", aside)
		if renameErr := os.Rename(path, aside); renameErr != nil {
			return nil, err
		}
		return cache.OpenPebbleStore(path)
	}

	return nil, fmt.Errorf("Unknown cache backend '%s'", backendStr)
}
