// Package session owns the lifecycle of one sandboxed execution environment:
// a shadow copy of the caller's directory, a container bound to it, and the
// result protocol for code submitted against it.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/google/uuid"

	"liteagent/internal/engine"
	"liteagent/internal/journal"
	"liteagent/internal/protocol"
	"liteagent/internal/shadow"
)

var (
	// ErrNotPrepared is returned when Execute is called before Prepare has
	// completed. This is a caller bug, not a recoverable execution failure.
	ErrNotPrepared = errors.New("session not prepared")
	// ErrSessionClosed is returned for any use of a session after Cleanup.
	ErrSessionClosed = errors.New("session already cleaned up")
)

type state int

const (
	stateNew state = iota
	stateReady
	stateCleaned
)

// Session is one container plus one shadow directory, single-use from
// Prepare through Cleanup. Multiple sessions may run concurrently; each owns
// a uniquely named container and shadow directory and they share nothing.
type Session struct {
	id        string
	cfg       Config
	template  string
	sourceDir string

	drv     *engine.Driver
	shadow  *shadow.Manager
	log     *clog.Logger
	journal *journal.Store

	containerName string
	containerID   string
	shadowDir     string
	st            state
}

func (s *Session) ID() string          { return s.id }
func (s *Session) ContainerID() string { return s.containerID }
func (s *Session) ShadowDir() string   { return s.shadowDir }

// Template returns the template name the session was requested with, even
// when an unknown name fell back to the default configuration.
func (s *Session) Template() string { return s.template }

// Config returns a copy of the session configuration.
func (s *Session) Config() Config { return s.cfg.clone() }

// Prepare takes the session from construction to ready: shadow copy, then a
// detached container bound to it, then the authorized packages. A container
// creation failure rolls the shadow directory back before propagating; no
// temp directories are orphaned on the failure path.
func (s *Session) Prepare(ctx context.Context) error {
	switch s.st {
	case stateReady:
		return errors.New("session already prepared")
	case stateCleaned:
		return ErrSessionClosed
	}

	shadowDir, err := s.shadow.Create(s.sourceDir)
	if err != nil {
		return err
	}
	s.shadowDir = shadowDir

	u := uuid.New()
	s.containerName = fmt.Sprintf("liteagent_%s_%x", s.cfg.Engine, u[:4])

	containerID, err := s.drv.Create(ctx, engine.CreateSpec{
		Name:           s.containerName,
		Image:          s.cfg.Image,
		MemoryLimit:    s.cfg.MemoryLimit,
		CPULimit:       s.cfg.CPULimit,
		NetworkEnabled: s.cfg.NetworkEnabled,
		ReadOnly:       s.cfg.readOnly(),
		ShadowDir:      s.shadowDir,
		MountPoint:     engine.DefaultMountPoint,
		SessionID:      s.id,
	})
	if err != nil {
		s.shadow.Cleanup(s.shadowDir)
		s.shadowDir = ""
		return fmt.Errorf("prepare session: %w", err)
	}
	s.containerID = containerID

	if len(s.cfg.AuthorizedPackages) > 0 {
		// Partial package availability degrades execution quality but must
		// not abort the session.
		if err := s.drv.InstallPackages(ctx, s.containerID, s.cfg.AuthorizedPackages); err != nil {
			s.log.Warn("failed to install some packages", "session", s.id, "error", err)
		}
	}

	s.st = stateReady
	if s.journal != nil {
		if err := s.journal.RecordSessionPrepared(ctx, s.id, s.containerID, time.Now()); err != nil {
			s.log.Debug("journal: record session prepared failed", "error", err)
		}
	}
	return nil
}

// Execute runs code inside the prepared container and returns the parsed
// result. Ordinary execution failures (non-zero exit, timeout, malformed
// result) come back as Success=false with diagnostic logs; an error is
// returned only for precondition violations.
func (s *Session) Execute(ctx context.Context, code string) (protocol.Result, error) {
	switch s.st {
	case stateNew:
		return protocol.Result{}, ErrNotPrepared
	case stateCleaned:
		return protocol.Result{}, ErrSessionClosed
	}
	if s.containerID == "" {
		return protocol.Result{}, errors.New("session has no container")
	}

	start := time.Now()
	res := s.executeOnce(ctx, code)
	if s.journal != nil {
		if err := s.journal.RecordExecution(ctx, s.id, res.Success, time.Since(start), len(res.Logs)); err != nil {
			s.log.Debug("journal: record execution failed", "error", err)
		}
	}
	return res, nil
}

func (s *Session) executeOnce(ctx context.Context, code string) protocol.Result {
	if err := protocol.WriteFiles(s.shadowDir, code); err != nil {
		return protocol.Result{
			Logs:    "error executing code: " + err.Error(),
			Success: false,
		}
	}

	// The in-container timeout command is the authoritative wall-clock
	// bound; the sandboxed process dies even if this call is interrupted.
	stdout, stderr, err := s.drv.Exec(ctx, s.containerID, engine.DefaultMountPoint,
		s.cfg.TimeoutSeconds, "python", protocol.WrapperFilename)
	combined := stdout + stderr
	if combined == "" && err != nil {
		return protocol.Result{
			Logs:    "error executing code: " + err.Error(),
			Success: false,
		}
	}
	return protocol.Parse(combined)
}

// Cleanup tears the session down: container stop and remove, then shadow
// directory removal. Every step is attempted regardless of earlier step
// failures, failures are logged and never returned, and calling Cleanup
// again is a no-op. The session is single-use afterwards.
func (s *Session) Cleanup(ctx context.Context) {
	if s.st == stateCleaned {
		return
	}

	if s.containerID != "" {
		if err := s.drv.Stop(ctx, s.containerID); err != nil {
			s.log.Warn("container stop failed", "session", s.id, "error", err)
		}
		if err := s.drv.Remove(ctx, s.containerID); err != nil {
			s.log.Warn("container remove failed", "session", s.id, "error", err)
		}
		s.containerID = ""
	}

	if s.shadowDir != "" {
		s.shadow.Cleanup(s.shadowDir)
		s.shadowDir = ""
	}

	s.st = stateCleaned
	if s.journal != nil {
		if err := s.journal.RecordSessionCleaned(ctx, s.id, time.Now()); err != nil {
			s.log.Debug("journal: record session cleaned failed", "error", err)
		}
	}
}
