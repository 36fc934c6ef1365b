package main

import (
	"context"
	"fmt"
	"os"

	clog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"liteagent/internal/engine"
	"liteagent/internal/journal"
	"liteagent/internal/session"
)

var rootCmd = &cobra.Command{
	Use:   "liteagent",
	Short: "Run untrusted Python snippets in throwaway containers",
	Long: `liteagent executes generated Python code inside short-lived docker or
podman containers. Each run gets a shadow copy of a source directory mounted
at /workspace, resource limits from a named template, and a structured
result parsed from the container's output.

Example:
  liteagent run ./project snippet.py
  liteagent run --template ml --set memory_limit=8g ./project -
  liteagent doctor`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

var (
	flagEngine    string
	flagLogLevel  string
	flagTemplates string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagEngine, "engine", "", "container engine (docker or podman, default: auto-detect)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagTemplates, "templates", "", "extra template definitions (YAML file)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// setup resolves config, logger and engine kind for a subcommand. Flags win
// over environment variables.
func setup(ctx context.Context) (Config, *clog.Logger, engine.Kind, error) {
	cfg, err := loadConfig()
	if err != nil {
		return Config{}, nil, "", err
	}
	if flagEngine != "" {
		cfg.Engine = flagEngine
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagTemplates != "" {
		cfg.TemplatesFile = flagTemplates
	}

	log, err := cfg.logger()
	if err != nil {
		return Config{}, nil, "", err
	}

	var kind engine.Kind
	if cfg.Engine != "" {
		kind, err = engine.ParseKind(cfg.Engine)
		if err != nil {
			return Config{}, nil, "", err
		}
	} else {
		info, err := engine.Detect(ctx)
		if err != nil {
			return Config{}, nil, "", err
		}
		kind = info.Kind
		log.Debug("engine auto-detected", "engine", kind, "version", info.Version)
	}
	return cfg, log, kind, nil
}

func newFactory(ctx context.Context, cfg Config, log *clog.Logger) (*session.Factory, *journal.Store, error) {
	store, err := journal.Open(cfg.journalPath())
	if err == nil {
		err = store.EnsureSchema(ctx)
	}
	if err != nil {
		// The journal is an observability aid; a broken data dir must not
		// block execution.
		log.Warn("journal unavailable", "path", cfg.journalPath(), "error", err)
		store = nil
	}

	opts := []session.FactoryOption{session.WithLogger(log)}
	if store != nil {
		opts = append(opts, session.WithJournal(store))
	}
	f := session.NewFactory(opts...)
	if cfg.TemplatesFile != "" {
		if err := f.LoadTemplates(cfg.TemplatesFile); err != nil {
			if store != nil {
				store.Close()
			}
			return nil, nil, err
		}
	}
	return f, store, nil
}
