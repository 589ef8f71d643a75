package update

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// renameFile is swapped in tests to simulate cross-device or locked targets.
var renameFile = os.Rename

// moveFile renames src to dst, falling back to copy-then-delete when a
// rename is not possible (e.g. the temp dir is on another filesystem).
func moveFile(src, dst string, perm os.FileMode) error {
	if err := renameFile(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst, perm); err != nil {
		_ = os.Remove(dst)
		return err
	}
	if err := os.Remove(src); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s after copy: %w", src, err)
	}
	return nil
}

// copyFile writes the contents of src to dst, creating dst with perm if it
// does not exist. An existing dst keeps its mode and is truncated.
func copyFile(src, dst string, perm os.FileMode) error {
	//nolint:gosec // G304: paths are derived from the resolved executable
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	//nolint:gosec // G302: the copy is an executable
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return fmt.Errorf("sync %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}
	return nil
}
