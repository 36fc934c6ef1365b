package session

import (
	"fmt"
	"strconv"
	"strings"
)

// Overrides are caller-supplied deviations from a template. Nil fields keep
// the template value; a non-nil AuthorizedPackages replaces the template list
// wholesale rather than merging with it.
type Overrides struct {
	Image              *string
	MemoryLimit        *string
	CPULimit           *float64
	TimeoutSeconds     *int
	NetworkEnabled     *bool
	FilesystemMode     *FSMode
	AuthorizedPackages []string
}

func (o Overrides) apply(c Config) Config {
	if o.Image != nil {
		c.Image = *o.Image
	}
	if o.MemoryLimit != nil {
		c.MemoryLimit = *o.MemoryLimit
	}
	if o.CPULimit != nil {
		c.CPULimit = *o.CPULimit
	}
	if o.TimeoutSeconds != nil {
		c.TimeoutSeconds = *o.TimeoutSeconds
	}
	if o.NetworkEnabled != nil {
		c.NetworkEnabled = *o.NetworkEnabled
	}
	if o.FilesystemMode != nil {
		c.FilesystemMode = *o.FilesystemMode
	}
	if o.AuthorizedPackages != nil {
		c.AuthorizedPackages = append([]string(nil), o.AuthorizedPackages...)
	}
	return c
}

// ParseOverrides converts key=value pairs (the CLI --set flag) into typed
// Overrides. Unknown keys are rejected here, at the boundary, instead of
// being silently accepted.
func ParseOverrides(pairs []string) (Overrides, error) {
	var o Overrides
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			return Overrides{}, fmt.Errorf("override %q is not key=value", pair)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "image":
			o.Image = &value
		case "memory_limit":
			o.MemoryLimit = &value
		case "cpu_limit":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return Overrides{}, fmt.Errorf("override cpu_limit: %w", err)
			}
			o.CPULimit = &f
		case "timeout":
			n, err := strconv.Atoi(value)
			if err != nil {
				return Overrides{}, fmt.Errorf("override timeout: %w", err)
			}
			o.TimeoutSeconds = &n
		case "network_enabled":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return Overrides{}, fmt.Errorf("override network_enabled: %w", err)
			}
			o.NetworkEnabled = &b
		case "filesystem_mode":
			mode := FSMode(value)
			if mode != FSReadOnly && mode != FSReadWrite {
				return Overrides{}, fmt.Errorf("override filesystem_mode: invalid mode %q", value)
			}
			o.FilesystemMode = &mode
		case "packages":
			pkgs := []string{}
			for _, p := range strings.Split(value, ",") {
				if p = strings.TrimSpace(p); p != "" {
					pkgs = append(pkgs, p)
				}
			}
			o.AuthorizedPackages = pkgs
		default:
			return Overrides{}, fmt.Errorf("unknown override key %q", key)
		}
	}
	return o, nil
}
