package session

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/google/uuid"

	"liteagent/internal/engine"
	"liteagent/internal/journal"
	"liteagent/internal/shadow"
)

// Factory resolves named templates into session configurations and builds
// ready-to-prepare sessions bound to a container engine.
type Factory struct {
	templates  map[string]Template
	log        *clog.Logger
	journal    *journal.Store
	engineOpts []engine.Option
}

type FactoryOption func(*Factory)

func WithLogger(l *clog.Logger) FactoryOption {
	return func(f *Factory) { f.log = l }
}

// WithJournal attaches an execution journal. Recording stays best-effort.
func WithJournal(store *journal.Store) FactoryOption {
	return func(f *Factory) { f.journal = store }
}

// WithEngineOptions forwards options to every driver the factory constructs
// (tests use this to substitute the command runner).
func WithEngineOptions(opts ...engine.Option) FactoryOption {
	return func(f *Factory) { f.engineOpts = opts }
}

func NewFactory(opts ...FactoryOption) *Factory {
	f := &Factory{
		templates: builtinTemplates(),
		log:       clog.NewWithOptions(os.Stderr, clog.Options{Prefix: "sandbox"}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// LoadTemplates merges extra named templates from a YAML file. The builtin
// set stays fixed; a file that shadows a builtin name is rejected.
func (f *Factory) LoadTemplates(path string) error {
	extra, err := loadTemplateFile(path, f.templates[DefaultTemplate])
	if err != nil {
		return err
	}
	for name, tpl := range extra {
		f.templates[name] = tpl
	}
	return nil
}

// TemplateNames returns all known template names, sorted.
func (f *Factory) TemplateNames() []string {
	names := make([]string, 0, len(f.templates))
	for name := range f.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Template returns a template's defaults by name.
func (f *Factory) Template(name string) (Template, bool) {
	t, ok := f.templates[name]
	return t, ok
}

// Resolve merges caller overrides onto a named template. An unknown template
// name falls back to "default" with a warning; a typo in an optional
// parameter must not crash the caller.
func (f *Factory) Resolve(name string, ov Overrides) (Config, error) {
	tpl, ok := f.templates[name]
	if !ok {
		f.log.Warn("unknown template, using default", "template", name)
		tpl = f.templates[DefaultTemplate]
	}
	cfg := ov.apply(tpl.config())
	if err := cfg.validateLimits(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Create builds an unprepared session for sourceDir. The engine binary is
// probed here: a session is never handed out bound to an unusable engine.
// A missing source directory is likewise a construction-time failure.
func (f *Factory) Create(ctx context.Context, sourceDir string, kind engine.Kind, template string, ov Overrides) (*Session, error) {
	info, err := os.Stat(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("source directory does not exist: %s", sourceDir)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source is not a directory: %s", sourceDir)
	}

	cfg, err := f.Resolve(template, ov)
	if err != nil {
		return nil, err
	}
	cfg.Engine = kind
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	drv, err := engine.New(ctx, kind, f.engineOpts...)
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:        uuid.NewString(),
		cfg:       cfg.clone(),
		template:  template,
		sourceDir: sourceDir,
		drv:       drv,
		shadow:    shadow.NewManager(f.log),
		log:       f.log,
		journal:   f.journal,
	}
	if f.journal != nil {
		if err := f.journal.RecordSessionCreated(ctx, s.id, string(kind), s.Template(), time.Now()); err != nil {
			f.log.Debug("journal: record session created failed", "error", err)
		}
	}
	return s, nil
}

// With runs fn against a prepared session and guarantees cleanup, the scoped
// counterpart to Create/Prepare/Cleanup.
func (f *Factory) With(ctx context.Context, sourceDir string, kind engine.Kind, template string, ov Overrides, fn func(*Session) error) error {
	s, err := f.Create(ctx, sourceDir, kind, template, ov)
	if err != nil {
		return err
	}
	defer s.Cleanup(ctx)
	if err := s.Prepare(ctx); err != nil {
		return err
	}
	return fn(s)
}
