package update

import (
	"errors"
	"os"
)

// Artifact is a downloaded release file owned by a single update attempt.
// It is either promoted to its final location exactly once or discarded.
type Artifact struct {
	path     string
	size     int64
	promoted string
	removed  bool
}

// Path returns the temp file location.
func (a *Artifact) Path() string { return a.path }

// Size returns the number of bytes downloaded.
func (a *Artifact) Size() int64 { return a.size }

// Promoted returns the final location, or "" while the file is still temporary.
func (a *Artifact) Promoted() string { return a.promoted }

// Discard deletes the temp file. It is safe to call more than once and does
// nothing once the artifact has been promoted.
func (a *Artifact) Discard() error {
	if a == nil || a.removed || a.promoted != "" {
		return nil
	}
	if err := os.Remove(a.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	a.removed = true
	return nil
}

// promoteTo moves the artifact to dst.
func (a *Artifact) promoteTo(dst string, perm os.FileMode) error {
	if a.promoted != "" {
		return errors.New("artifact already promoted to " + a.promoted)
	}
	if a.removed {
		return errors.New("artifact was discarded")
	}
	if err := moveFile(a.path, dst, perm); err != nil {
		return err
	}
	a.promoted = dst
	return nil
}
