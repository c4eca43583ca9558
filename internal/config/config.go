// Package config loads the playbook server configuration from YAML or
// TOML files with PLAYBOOK_* environment overrides.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  Server  `yaml:"server" toml:"server"`
	Catalog Catalog `yaml:"catalog" toml:"catalog"`
	Lists   Lists   `yaml:"lists" toml:"lists"`
	Auth    Auth    `yaml:"auth" toml:"auth"`
	Log     Log     `yaml:"log" toml:"log"`
}

type Server struct {
	Addr            string   `yaml:"addr" toml:"addr"`
	WebDir          string   `yaml:"web_dir" toml:"web_dir"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

type Catalog struct {
	Path string `yaml:"path" toml:"path"`
	// Editions maps a db name (e.g. "2001") to an extra catalog file.
	Editions map[string]string `yaml:"editions" toml:"editions"`
}

type Lists struct {
	Backend string `yaml:"backend" toml:"backend"`
	Path    string `yaml:"path" toml:"path"`
}

type Auth struct {
	// EditorTokenHash is a bcrypt hash; empty leaves list editing open.
	EditorTokenHash string `yaml:"editor_token_hash" toml:"editor_token_hash"`
}

type Log struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Duration reads "5s"-style strings from YAML and TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q", text)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8088",
			ShutdownTimeout: Duration{5 * time.Second},
		},
		Catalog: Catalog{Path: "living_playbook.json"},
		Lists:   Lists{Backend: "file", Path: "lists.json"},
		Log:     Log{Level: "info", Format: "text"},
	}
}

// Load applies defaults, then the file at path (if any), then the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(&cfg, path); err != nil {
			return cfg, err
		}
	}

	applyEnv(&cfg, os.LookupEnv)
	return cfg, cfg.Validate()
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read from %s", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		_, err = toml.Decode(string(data), cfg)
	default:
		return errors.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	return errors.Wrapf(err, "failed to unmarshal %s", path)
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup("PLAYBOOK_ADDR"); ok {
		cfg.Server.Addr = v
	}
	if v, ok := lookup("PLAYBOOK_CATALOG"); ok {
		cfg.Catalog.Path = v
	}
	if v, ok := lookup("PLAYBOOK_LIST_BACKEND"); ok {
		cfg.Lists.Backend = v
	}
	if v, ok := lookup("PLAYBOOK_LIST_PATH"); ok {
		cfg.Lists.Path = v
	}
	if v, ok := lookup("PLAYBOOK_LOG_LEVEL"); ok {
		cfg.Log.Level = v
	}
}

// Validate reports the first bad value.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Server.ShutdownTimeout.Duration < 0 {
		return errors.New("server.shutdown_timeout must not be negative")
	}
	if c.Catalog.Path == "" {
		return errors.New("catalog.path is required")
	}
	for name, path := range c.Catalog.Editions {
		if name == "" || path == "" {
			return errors.Errorf("catalog.editions: empty name or path (%q: %q)", name, path)
		}
	}
	switch c.Lists.Backend {
	case "file", "sqlite":
	default:
		return errors.Errorf("lists.backend must be file or sqlite, got %q", c.Lists.Backend)
	}
	if c.Lists.Path == "" {
		return errors.New("lists.path is required")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log.level")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return errors.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// NewLogger builds the process logger from the log section.
func (c Config) NewLogger() *logrus.Logger {
	log := logrus.New()
	if level, err := logrus.ParseLevel(c.Log.Level); err == nil {
		log.SetLevel(level)
	}
	if c.Log.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
