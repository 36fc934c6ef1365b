package engine

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Kind identifies a supported container engine.
type Kind string

const (
	Docker Kind = "docker"
	Podman Kind = "podman"
)

// DefaultMountPoint is where the shadow directory is bound inside the container.
const DefaultMountPoint = "/workspace"

var ErrUnknownEngine = errors.New("unknown container engine")

func (k Kind) Valid() bool {
	return k == Docker || k == Podman
}

// ParseKind normalizes a user-supplied engine name.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "docker":
		return Docker, nil
	case "podman":
		return Podman, nil
	default:
		return "", fmt.Errorf("%w: %q (available: docker, podman)", ErrUnknownEngine, s)
	}
}

// Info describes a detected engine binary.
type Info struct {
	Kind    Kind
	Version string
}

// Detect probes for a usable engine, preferring podman over docker.
func Detect(ctx context.Context) (Info, error) {
	for _, kind := range []Kind{Podman, Docker} {
		info, err := Probe(ctx, kind)
		if err == nil {
			return info, nil
		}
	}
	return Info{}, errors.New("neither podman nor docker is available")
}

// Probe checks whether one specific engine binary is installed and
// responding.
func Probe(ctx context.Context, kind Kind) (Info, error) {
	if !kind.Valid() {
		return Info{}, fmt.Errorf("%w: %q", ErrUnknownEngine, kind)
	}
	bin := string(kind)
	if _, err := exec.LookPath(bin); err != nil {
		return Info{}, fmt.Errorf("%s not found in PATH", bin)
	}
	out, err := exec.CommandContext(ctx, bin, "--version").CombinedOutput()
	if err != nil {
		return Info{}, fmt.Errorf("%s --version failed: %s", bin, strings.TrimSpace(string(out)))
	}
	return Info{Kind: kind, Version: strings.TrimSpace(string(out))}, nil
}

// flavor isolates the per-engine command nuances. The two engines share the
// whole lifecycle; only the binary name and the bind-mount spec differ.
type flavor interface {
	binary() string
	mountSpec(hostDir, mountPoint string, readOnly bool) string
}

type dockerFlavor struct{}

func (dockerFlavor) binary() string { return "docker" }

func (dockerFlavor) mountSpec(hostDir, mountPoint string, readOnly bool) string {
	mode := "rw"
	if readOnly {
		mode = "ro"
	}
	return fmt.Sprintf("%s:%s:%s", hostDir, mountPoint, mode)
}

type podmanFlavor struct{}

func (podmanFlavor) binary() string { return "podman" }

// Podman needs the SELinux relabel option on writable bind mounts.
func (podmanFlavor) mountSpec(hostDir, mountPoint string, readOnly bool) string {
	mode := "rw,Z"
	if readOnly {
		mode = "ro"
	}
	return fmt.Sprintf("%s:%s:%s", hostDir, mountPoint, mode)
}

func flavorFor(kind Kind) (flavor, error) {
	switch kind {
	case Docker:
		return dockerFlavor{}, nil
	case Podman:
		return podmanFlavor{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, kind)
	}
}
