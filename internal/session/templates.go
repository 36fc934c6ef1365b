package session

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultTemplate is the fallback for unknown template names.
const DefaultTemplate = "default"

// Template is a named, immutable bundle of SessionConfig defaults. The
// engine kind is not part of a template; it is chosen per session.
type Template struct {
	MemoryLimit        string
	CPULimit           float64
	TimeoutSeconds     int
	NetworkEnabled     bool
	FilesystemMode     FSMode
	AuthorizedPackages []string
	Image              string
}

func (t Template) config() Config {
	return Config{
		Image:              t.Image,
		MemoryLimit:        t.MemoryLimit,
		CPULimit:           t.CPULimit,
		TimeoutSeconds:     t.TimeoutSeconds,
		NetworkEnabled:     t.NetworkEnabled,
		FilesystemMode:     t.FilesystemMode,
		AuthorizedPackages: append([]string(nil), t.AuthorizedPackages...),
	}
}

func builtinTemplates() map[string]Template {
	return map[string]Template{
		"default": {
			MemoryLimit:        "1g",
			CPULimit:           1,
			TimeoutSeconds:     30,
			NetworkEnabled:     false,
			FilesystemMode:     FSReadOnly,
			AuthorizedPackages: []string{"os", "sys", "json", "re", "collections", "datetime"},
			Image:              DefaultImage,
		},
		"secure": {
			MemoryLimit:        "512m",
			CPULimit:           0.5,
			TimeoutSeconds:     15,
			NetworkEnabled:     false,
			FilesystemMode:     FSReadOnly,
			AuthorizedPackages: []string{"json", "re", "collections"},
			Image:              DefaultImage,
		},
		"ml": {
			MemoryLimit:        "4g",
			CPULimit:           2,
			TimeoutSeconds:     120,
			NetworkEnabled:     false,
			FilesystemMode:     FSReadOnly,
			AuthorizedPackages: []string{"numpy", "pandas", "sklearn", "matplotlib"},
			Image:              DefaultImage,
		},
		"web": {
			MemoryLimit:        "2g",
			CPULimit:           1,
			TimeoutSeconds:     60,
			NetworkEnabled:     true,
			FilesystemMode:     FSReadOnly,
			AuthorizedPackages: []string{"requests", "beautifulsoup4", "urllib3", "aiohttp"},
			Image:              DefaultImage,
		},
	}
}

// templateFile is the YAML shape for user-supplied template files.
type templateFile struct {
	Templates map[string]templateSpec `yaml:"templates"`
}

type templateSpec struct {
	MemoryLimit        string   `yaml:"memory_limit"`
	CPULimit           float64  `yaml:"cpu_limit"`
	TimeoutSeconds     int      `yaml:"timeout"`
	NetworkEnabled     bool     `yaml:"network_enabled"`
	FilesystemMode     string   `yaml:"filesystem_mode"`
	AuthorizedPackages []string `yaml:"packages"`
	Image              string   `yaml:"image"`
}

// loadTemplateFile reads extra named templates from a YAML file. Builtin
// names cannot be shadowed; missing fields inherit the default template.
func loadTemplateFile(path string, base Template) (map[string]Template, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file templateFile
	if err := yaml.Unmarshal(b, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	out := make(map[string]Template, len(file.Templates))
	for name, spec := range file.Templates {
		if _, ok := builtinTemplates()[name]; ok {
			return nil, fmt.Errorf("template %q shadows a builtin template", name)
		}
		tpl := base
		if spec.MemoryLimit != "" {
			tpl.MemoryLimit = spec.MemoryLimit
		}
		if spec.CPULimit > 0 {
			tpl.CPULimit = spec.CPULimit
		}
		if spec.TimeoutSeconds > 0 {
			tpl.TimeoutSeconds = spec.TimeoutSeconds
		}
		tpl.NetworkEnabled = spec.NetworkEnabled
		if spec.FilesystemMode != "" {
			mode := FSMode(spec.FilesystemMode)
			if mode != FSReadOnly && mode != FSReadWrite {
				return nil, fmt.Errorf("template %q: invalid filesystem mode %q", name, spec.FilesystemMode)
			}
			tpl.FilesystemMode = mode
		}
		if spec.AuthorizedPackages != nil {
			tpl.AuthorizedPackages = append([]string(nil), spec.AuthorizedPackages...)
		}
		if spec.Image != "" {
			tpl.Image = spec.Image
		}
		out[name] = tpl
	}
	return out, nil
}
