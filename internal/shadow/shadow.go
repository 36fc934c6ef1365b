// Package shadow mirrors a source directory into a throwaway copy so a
// container can be granted filesystem access without endangering the
// original files.
package shadow

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	clog "github.com/charmbracelet/log"
)

type Manager struct {
	log *clog.Logger
}

func NewManager(log *clog.Logger) *Manager {
	if log == nil {
		log = clog.NewWithOptions(os.Stderr, clog.Options{Prefix: "shadow"})
	}
	return &Manager{log: log}
}

// Create duplicates sourceDir into a fresh uniquely-named temporary
// directory and returns its path. Individually unreadable files are logged
// and skipped; a total failure removes the partial copy before returning.
func (m *Manager) Create(sourceDir string) (string, error) {
	src, err := filepath.Abs(sourceDir)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("source directory does not exist: %s", src)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("source is not a directory: %s", src)
	}

	shadowDir, err := os.MkdirTemp("", "liteagent_shadow_")
	if err != nil {
		return "", fmt.Errorf("create shadow directory: %w", err)
	}
	m.log.Debug("creating shadow copy", "source", src, "shadow", shadowDir)

	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Unreadable entries degrade the copy but must not abort it.
			m.log.Warn("skipping unreadable entry", "path", path, "error", walkErr)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		target := filepath.Join(shadowDir, rel)
		if d.IsDir() {
			mode := fs.FileMode(0o755)
			if info, err := d.Info(); err == nil {
				mode = info.Mode().Perm()
			}
			return os.MkdirAll(target, mode)
		}
		if !d.Type().IsRegular() {
			// Sockets, devices and symlinks have no place in the sandbox.
			return nil
		}
		if err := copyFile(path, target); err != nil {
			m.log.Warn("could not copy file", "path", path, "error", err)
		}
		return nil
	})
	if err != nil {
		m.Cleanup(shadowDir)
		return "", fmt.Errorf("create shadow copy: %w", err)
	}
	return shadowDir, nil
}

// Cleanup removes a shadow directory. Errors are logged, never returned:
// cleanup must not block a teardown path.
func (m *Manager) Cleanup(shadowDir string) {
	if shadowDir == "" {
		return
	}
	if err := os.RemoveAll(shadowDir); err != nil {
		m.log.Error("failed to remove shadow directory", "shadow", shadowDir, "error", err)
		return
	}
	m.log.Debug("removed shadow directory", "shadow", shadowDir)
}

func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Chmod(info.Mode().Perm()); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
