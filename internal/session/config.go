package session

import (
	"errors"
	"fmt"

	"github.com/docker/go-units"

	"liteagent/internal/engine"
)

// FSMode controls how the shadow directory is bind-mounted.
type FSMode string

const (
	FSReadOnly  FSMode = "read-only"
	FSReadWrite FSMode = "read-write"
)

// DefaultImage is the runtime image used when a template does not override
// it. It must expose a python interpreter and the coreutils timeout command.
const DefaultImage = "python:3.9-slim"

// Config is the complete configuration of one session. It is immutable once
// the session has been prepared.
type Config struct {
	Engine             engine.Kind
	Image              string
	MemoryLimit        string
	CPULimit           float64
	TimeoutSeconds     int
	NetworkEnabled     bool
	FilesystemMode     FSMode
	AuthorizedPackages []string
}

func (c *Config) Validate() error {
	if !c.Engine.Valid() {
		return fmt.Errorf("invalid engine %q", c.Engine)
	}
	return c.validateLimits()
}

// validateLimits checks everything except the engine kind, which a resolved
// template does not carry yet.
func (c *Config) validateLimits() error {
	if c.Image == "" {
		c.Image = DefaultImage
	}
	if c.MemoryLimit == "" {
		return errors.New("memory limit is required")
	}
	if _, err := units.RAMInBytes(c.MemoryLimit); err != nil {
		return fmt.Errorf("invalid memory limit %q: %w", c.MemoryLimit, err)
	}
	if c.CPULimit <= 0 {
		return fmt.Errorf("cpu limit must be positive, got %v", c.CPULimit)
	}
	if c.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout must be positive, got %d", c.TimeoutSeconds)
	}
	switch c.FilesystemMode {
	case FSReadOnly, FSReadWrite:
	case "":
		c.FilesystemMode = FSReadOnly
	default:
		return fmt.Errorf("invalid filesystem mode %q", c.FilesystemMode)
	}
	return nil
}

func (c Config) readOnly() bool { return c.FilesystemMode != FSReadWrite }

// clone returns a deep copy so sessions never share package slices.
func (c Config) clone() Config {
	out := c
	out.AuthorizedPackages = append([]string(nil), c.AuthorizedPackages...)
	return out
}
