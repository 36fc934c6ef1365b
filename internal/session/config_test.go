package session

import (
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	clog "github.com/charmbracelet/log"

	"liteagent/internal/engine"
)

func quietFactory(opts ...FactoryOption) *Factory {
	base := []FactoryOption{WithLogger(clog.NewWithOptions(io.Discard, clog.Options{}))}
	return NewFactory(append(base, opts...)...)
}

func TestValidateRejectsBadLimits(t *testing.T) {
	base := Config{
		Engine:         engine.Docker,
		MemoryLimit:    "1g",
		CPULimit:       1,
		TimeoutSeconds: 30,
		FilesystemMode: FSReadOnly,
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing memory", func(c *Config) { c.MemoryLimit = "" }, "memory"},
		{"garbage memory", func(c *Config) { c.MemoryLimit = "lots" }, "memory"},
		{"zero cpu", func(c *Config) { c.CPULimit = 0 }, "cpu"},
		{"negative timeout", func(c *Config) { c.TimeoutSeconds = -5 }, "timeout"},
		{"bad fs mode", func(c *Config) { c.FilesystemMode = FSMode("writable") }, "filesystem"},
		{"bad engine", func(c *Config) { c.Engine = engine.Kind("lxc") }, "engine"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation failure")
			}
			if !strings.Contains(strings.ToLower(err.Error()), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestValidateAcceptsUnitSuffixedMemory(t *testing.T) {
	for _, mem := range []string{"512m", "1g", "4g", "256M", "2G", "1024k"} {
		cfg := Config{
			Engine:         engine.Podman,
			MemoryLimit:    mem,
			CPULimit:       0.5,
			TimeoutSeconds: 15,
		}
		if err := cfg.Validate(); err != nil {
			t.Fatalf("memory %q rejected: %v", mem, err)
		}
	}
}

func TestValidateFillsDefaults(t *testing.T) {
	cfg := Config{
		Engine:         engine.Docker,
		MemoryLimit:    "1g",
		CPULimit:       1,
		TimeoutSeconds: 30,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Image != DefaultImage {
		t.Fatalf("expected default image, got %q", cfg.Image)
	}
	if cfg.FilesystemMode != FSReadOnly {
		t.Fatalf("expected read-only default, got %q", cfg.FilesystemMode)
	}
}

func TestUnknownTemplateFallsBackToDefault(t *testing.T) {
	f := quietFactory()
	got, err := f.Resolve("nonexistent-template", Overrides{})
	if err != nil {
		t.Fatalf("resolve unknown: %v", err)
	}
	want, err := f.Resolve(DefaultTemplate, Overrides{})
	if err != nil {
		t.Fatalf("resolve default: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unknown template config differs from default:\n got  %+v\n want %+v", got, want)
	}
}

func TestOverrideChangesOnlyTargetedField(t *testing.T) {
	f := quietFactory()
	enabled := true
	got, err := f.Resolve("secure", Overrides{NetworkEnabled: &enabled})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	base, err := f.Resolve("secure", Overrides{})
	if err != nil {
		t.Fatalf("resolve base: %v", err)
	}
	if !got.NetworkEnabled {
		t.Fatalf("override not applied")
	}
	got.NetworkEnabled = false
	if !reflect.DeepEqual(got, base) {
		t.Fatalf("override leaked into other fields:\n got  %+v\n want %+v", got, base)
	}
}

func TestPackageOverrideReplacesWholesale(t *testing.T) {
	f := quietFactory()
	cfg, err := f.Resolve("ml", Overrides{AuthorizedPackages: []string{"polars"}})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !reflect.DeepEqual(cfg.AuthorizedPackages, []string{"polars"}) {
		t.Fatalf("expected wholesale replacement, got %v", cfg.AuthorizedPackages)
	}
}

func TestResolveRejectsInvalidOverrideValues(t *testing.T) {
	bad := "not-a-size"
	if _, err := quietFactory().Resolve("default", Overrides{MemoryLimit: &bad}); err == nil {
		t.Fatalf("expected invalid memory override to fail resolution")
	}
}

func TestParseOverrides(t *testing.T) {
	ov, err := ParseOverrides([]string{
		"memory_limit=2g",
		"cpu_limit=1.5",
		"timeout=45",
		"network_enabled=true",
		"filesystem_mode=read-write",
		"packages=numpy, requests",
		"image=python:3.11-slim",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if *ov.MemoryLimit != "2g" || *ov.CPULimit != 1.5 || *ov.TimeoutSeconds != 45 {
		t.Fatalf("limit overrides mismatch: %+v", ov)
	}
	if !*ov.NetworkEnabled || *ov.FilesystemMode != FSReadWrite || *ov.Image != "python:3.11-slim" {
		t.Fatalf("flag overrides mismatch: %+v", ov)
	}
	if !reflect.DeepEqual(ov.AuthorizedPackages, []string{"numpy", "requests"}) {
		t.Fatalf("packages mismatch: %v", ov.AuthorizedPackages)
	}
}

func TestParseOverridesRejectsBadInput(t *testing.T) {
	cases := [][]string{
		{"memory=1g"},
		{"cpu_limit=fast"},
		{"timeout=soon"},
		{"network_enabled=maybe"},
		{"filesystem_mode=writable"},
		{"justakey"},
	}
	for _, pairs := range cases {
		if _, err := ParseOverrides(pairs); err == nil {
			t.Fatalf("expected rejection of %v", pairs)
		}
	}
}

func TestLoadTemplatesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	body := `templates:
  batch:
    memory_limit: 8g
    cpu_limit: 4
    timeout: 600
    packages: [numpy]
  tiny:
    memory_limit: 128m
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write template file: %v", err)
	}

	f := quietFactory()
	if err := f.LoadTemplates(path); err != nil {
		t.Fatalf("load templates: %v", err)
	}

	cfg, err := f.Resolve("batch", Overrides{})
	if err != nil {
		t.Fatalf("resolve batch: %v", err)
	}
	if cfg.MemoryLimit != "8g" || cfg.CPULimit != 4 || cfg.TimeoutSeconds != 600 {
		t.Fatalf("batch template mismatch: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.AuthorizedPackages, []string{"numpy"}) {
		t.Fatalf("batch packages mismatch: %v", cfg.AuthorizedPackages)
	}

	// Unspecified fields inherit from the default template.
	tiny, err := f.Resolve("tiny", Overrides{})
	if err != nil {
		t.Fatalf("resolve tiny: %v", err)
	}
	if tiny.MemoryLimit != "128m" || tiny.TimeoutSeconds != 30 || tiny.Image != DefaultImage {
		t.Fatalf("tiny template inheritance mismatch: %+v", tiny)
	}

	names := f.TemplateNames()
	want := []string{"batch", "default", "ml", "secure", "tiny", "web"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("template names mismatch: %v", names)
	}
}

func TestLoadTemplatesRejectsBuiltinShadowing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	if err := os.WriteFile(path, []byte("templates:\n  secure:\n    memory_limit: 64g\n"), 0o644); err != nil {
		t.Fatalf("write template file: %v", err)
	}
	if err := quietFactory().LoadTemplates(path); err == nil {
		t.Fatalf("expected shadowing rejection")
	}
}
