package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultPaths are tried in the working directory when no path is given.
var DefaultPaths = []string{"config.yaml", "config.yml"}

// Load reads configuration from a YAML file and environment variables.
// Priority: ENV > YAML > defaults (via env-default tags).
// An explicit path must exist; without one the default names are tried and,
// if none exists, configuration comes from ENV + defaults only.
func Load(path string) (*Config, error) {
	var cfg Config

	explicitPath := path != ""
	if !explicitPath {
		for _, p := range DefaultPaths {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config: file %s: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		abs, err := filepath.Abs(filepath.Dir(path))
		if err != nil {
			return nil, fmt.Errorf("config: resolve %s: %w", path, err)
		}
		cfg.baseDir = abs
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config: read env: %w", err)
		}
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("config: working dir: %w", err)
		}
		cfg.baseDir = wd
	}

	if len(cfg.TagRules) == 0 {
		cfg.TagRules = DefaultTagRules()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return &cfg, nil
}

// Description returns the env variable help text for the config struct.
func Description() string {
	help, _ := cleanenv.GetDescription(&Config{}, nil)
	return help
}

// ResolvePath anchors a relative path at the config file directory.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) || c.baseDir == "" {
		return p
	}
	return filepath.Join(c.baseDir, p)
}

// DataPath returns the absolute location of the data directory.
func (c *Config) DataPath() string {
	return c.ResolvePath(c.DataDir)
}

// ProfilePath returns the absolute location of the persistent browser profile.
func (c *Config) ProfilePath() string {
	return c.ResolvePath(c.BrowserProfileDir)
}

// StoragePath returns the record store file for the json and sqlite drivers.
func (c *Config) StoragePath() string {
	p := c.Storage.Path
	if p == "" {
		switch c.Storage.Driver {
		case DriverSQLite:
			p = "records.db"
		default:
			p = "records.json"
		}
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataPath(), p)
}

// ExportPath returns the markdown export file for a collection.
func (c *Config) ExportPath(collection string) string {
	return filepath.Join(c.DataPath(), collection+".md")
}
