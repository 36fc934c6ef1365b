package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	clog "github.com/charmbracelet/log"
)

// Config carries the settings shared by every subcommand. Environment
// variables provide the defaults; command-line flags override them.
type Config struct {
	Engine        string `env:"LITEAGENT_ENGINE"`
	Template      string `env:"LITEAGENT_TEMPLATE" envDefault:"default"`
	DataDir       string `env:"LITEAGENT_DATA_DIR"`
	LogLevel      string `env:"LITEAGENT_LOG_LEVEL" envDefault:"info"`
	TemplatesFile string `env:"LITEAGENT_TEMPLATES"`
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve data dir: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".liteagent")
	}
	return cfg, nil
}

func (c Config) journalPath() string {
	return filepath.Join(c.DataDir, "journal.db")
}

func (c Config) logger() (*clog.Logger, error) {
	level, err := clog.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return clog.NewWithOptions(os.Stderr, clog.Options{
		Prefix: "liteagent",
		Level:  level,
	}), nil
}
