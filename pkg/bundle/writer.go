// Package bundle persists rendered artifacts to disk with the required
// layout, ownership, and permission bits. Writes go through a temp file
// and an atomic rename so no partially-written secret-bearing file is
// ever visible under its final name.
package bundle

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/pgstack/pgstack/pkg/render"
	"github.com/pgstack/pgstack/pkg/stack"
)

// Directory permission bits.
const (
	// InstallDirPerm applies to the install directory itself.
	InstallDirPerm = os.FileMode(0o755)

	// SubDirPerm applies to created subdirectories; they hold
	// secret-bearing files, so no world access.
	SubDirPerm = os.FileMode(0o750)
)

// Result reports what a write pass accomplished.
type Result struct {
	// Completed lists artifact paths renamed into place, in order.
	Completed []string
}

// Writer persists artifact bundles.
type Writer struct {
	// Chown applies ownership. Defaults to os.Chown; tests running
	// unprivileged inject a recorder instead.
	Chown func(path string, uid, gid int) error
}

// NewWriter creates a writer that applies ownership with os.Chown.
func NewWriter() *Writer {
	return &Writer{Chown: os.Chown}
}

// Write persists every artifact under dir. On the first failure it
// aborts remaining writes and returns a filesystem-class error naming
// the failed artifact; artifacts already renamed into place are kept
// and reported through the error and the partial result.
func (w *Writer) Write(dir string, artifacts []render.Artifact) (*Result, error) {
	result := &Result{}

	if err := os.MkdirAll(dir, InstallDirPerm); err != nil {
		return result, stack.NewFilesystemError("creating install directory", "", nil, err)
	}

	for _, artifact := range artifacts {
		if err := w.writeOne(dir, artifact); err != nil {
			return result, stack.NewFilesystemError(
				"writing artifact", artifact.Path, result.Completed, err)
		}
		result.Completed = append(result.Completed, artifact.Path)
		log.Debug().
			Str("artifact", artifact.Path).
			Str("mode", fmt.Sprintf("%04o", artifact.Mode)).
			Msg("artifact written")
	}
	return result, nil
}

// writeOne writes a single artifact: parent directory, temp file in the
// same directory (created 0600, so secrets are never world-readable in
// transit), content, final mode, ownership, atomic rename.
func (w *Writer) writeOne(dir string, artifact render.Artifact) error {
	target := filepath.Join(dir, artifact.Path)
	parent := filepath.Dir(target)
	if parent != dir {
		if err := os.MkdirAll(parent, SubDirPerm); err != nil {
			return fmt.Errorf("creating %s: %w", parent, err)
		}
		// The downstream process owning the artifact must also be able
		// to traverse the directory holding it.
		if artifact.UID != render.CurrentOwner {
			if err := w.chown(parent, artifact.UID, artifact.GID); err != nil {
				return fmt.Errorf("setting directory ownership: %w", err)
			}
		}
	}

	tmp, err := os.CreateTemp(parent, "."+filepath.Base(artifact.Path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(artifact.Content); err != nil {
		tmp.Close()
		return fmt.Errorf("writing content: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, artifact.Mode); err != nil {
		return fmt.Errorf("setting mode: %w", err)
	}
	if artifact.UID != render.CurrentOwner {
		if err := w.chown(tmpPath, artifact.UID, artifact.GID); err != nil {
			return fmt.Errorf("setting ownership: %w", err)
		}
	}

	if err := os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}

func (w *Writer) chown(path string, uid, gid int) error {
	if w.Chown == nil {
		return os.Chown(path, uid, gid)
	}
	return w.Chown(path, uid, gid)
}
