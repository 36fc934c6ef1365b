package engine

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	clog "github.com/charmbracelet/log"
)

// Labels applied to every container we create, so orphans can be found and
// removed even after the owning process is gone.
const (
	LabelManaged = "liteagent.managed"
	LabelSession = "liteagent.session"
)

// CreateSpec carries everything needed to create a detached container.
type CreateSpec struct {
	Name           string
	Image          string
	MemoryLimit    string
	CPULimit       float64
	NetworkEnabled bool
	ReadOnly       bool
	ShadowDir      string
	MountPoint     string
	SessionID      string
}

// Driver translates requests into engine CLI invocations. One Driver serves
// both engines; the flavor value holds the only differences.
type Driver struct {
	kind Kind
	fl   flavor
	run  Runner
	log  *clog.Logger
}

type Option func(*Driver)

// WithRunner substitutes the command runner (used by tests).
func WithRunner(r Runner) Option {
	return func(d *Driver) { d.run = r }
}

func WithLogger(l *clog.Logger) Option {
	return func(d *Driver) { d.log = l }
}

// New constructs a driver for the given engine and probes the binary with
// `--version`. A missing or broken binary is a construction-time failure; a
// driver is never handed out bound to an unusable engine.
func New(ctx context.Context, kind Kind, opts ...Option) (*Driver, error) {
	fl, err := flavorFor(kind)
	if err != nil {
		return nil, err
	}
	d := &Driver{
		kind: kind,
		fl:   fl,
		run:  cliRunner{},
		log:  clog.NewWithOptions(os.Stderr, clog.Options{Prefix: "engine"}),
	}
	for _, opt := range opts {
		opt(d)
	}
	if _, _, err := d.run.Run(ctx, fl.binary(), "--version"); err != nil {
		return nil, fmt.Errorf("%s is not available: %w", fl.binary(), err)
	}
	return d, nil
}

func (d *Driver) Kind() Kind { return d.kind }

// Create starts a detached container bound to the shadow directory and
// returns the engine-assigned container ID. A non-zero exit is fatal.
func (d *Driver) Create(ctx context.Context, spec CreateSpec) (string, error) {
	mountPoint := spec.MountPoint
	if mountPoint == "" {
		mountPoint = DefaultMountPoint
	}
	network := "none"
	if spec.NetworkEnabled {
		network = "bridge"
	}
	args := []string{
		"run", "-d",
		"--name", spec.Name,
		"--memory", spec.MemoryLimit,
		"--cpus", strconv.FormatFloat(spec.CPULimit, 'f', -1, 64),
		"--network=" + network,
		"--label", LabelManaged + "=true",
		"--label", LabelSession + "=" + spec.SessionID,
		"-v", d.fl.mountSpec(spec.ShadowDir, mountPoint, spec.ReadOnly),
		"-w", mountPoint,
		spec.Image,
	}
	stdout, stderr, err := d.run.Run(ctx, d.fl.binary(), args...)
	if err != nil {
		return "", fmt.Errorf("%s run failed: %s: %w", d.fl.binary(), strings.TrimSpace(stderr), err)
	}
	id := strings.TrimSpace(stdout)
	if id == "" {
		return "", fmt.Errorf("%s run returned no container id", d.fl.binary())
	}
	d.log.Info("created container", "engine", d.kind, "id", shortID(id), "name", spec.Name)
	return id, nil
}

// InstallPackages installs the authorized packages inside a running
// container. Failures degrade execution quality but are not fatal; the
// caller logs and proceeds.
func (d *Driver) InstallPackages(ctx context.Context, containerID string, packages []string) error {
	if len(packages) == 0 {
		return nil
	}
	args := append([]string{"exec", containerID, "pip", "install", "--no-cache-dir"}, packages...)
	_, stderr, err := d.run.Run(ctx, d.fl.binary(), args...)
	if err != nil {
		return fmt.Errorf("package install failed: %s: %w", strings.TrimSpace(stderr), err)
	}
	return nil
}

// Exec runs argv inside the container under the engine-side timeout command.
// The in-container timeout is the authoritative wall-clock bound: the
// sandboxed process is killed even if the host-side call is interrupted.
// Stdout and stderr are returned even on a non-zero exit.
func (d *Driver) Exec(ctx context.Context, containerID, workdir string, timeoutSeconds int, argv ...string) (string, string, error) {
	args := []string{
		"exec",
		"-w", workdir,
		containerID,
		"timeout", strconv.Itoa(timeoutSeconds),
	}
	args = append(args, argv...)
	return d.run.Run(ctx, d.fl.binary(), args...)
}

// Stop stops the container. Best-effort: an error is returned for logging
// but teardown continues regardless.
func (d *Driver) Stop(ctx context.Context, containerID string) error {
	_, stderr, err := d.run.Run(ctx, d.fl.binary(), "stop", containerID)
	if err != nil {
		return fmt.Errorf("%s stop failed: %s: %w", d.fl.binary(), strings.TrimSpace(stderr), err)
	}
	return nil
}

// Remove removes the container. Best-effort, like Stop.
func (d *Driver) Remove(ctx context.Context, containerID string) error {
	_, stderr, err := d.run.Run(ctx, d.fl.binary(), "rm", containerID)
	if err != nil {
		return fmt.Errorf("%s rm failed: %s: %w", d.fl.binary(), strings.TrimSpace(stderr), err)
	}
	return nil
}

// RemoveOrphans force-removes every liteagent-labelled container and returns
// how many were removed. Per-container failures are logged and skipped.
func (d *Driver) RemoveOrphans(ctx context.Context) (int, error) {
	stdout, stderr, err := d.run.Run(ctx, d.fl.binary(),
		"ps", "-a", "--filter", "label="+LabelManaged, "--format", "{{.ID}}")
	if err != nil {
		return 0, fmt.Errorf("list containers: %s: %w", strings.TrimSpace(stderr), err)
	}
	removed := 0
	for _, id := range strings.Fields(stdout) {
		if _, _, err := d.run.Run(ctx, d.fl.binary(), "rm", "-f", id); err != nil {
			d.log.Warn("failed to remove orphan container", "id", shortID(id), "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
