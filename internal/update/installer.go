package update

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	apperrors "puzzlemania/internal/errors"
)

// Apply modes.
const (
	ModeLaunch  = "launch"
	ModeReplace = "replace"
)

// Test seams for resolving the running executable.
var (
	osExecutable = os.Executable
	evalSymlinks = filepath.EvalSymlinks
)

// ResolveTarget returns the executable to update: override when set,
// otherwise the running binary with symlinks resolved.
func ResolveTarget(override string) (string, error) {
	path := override
	if path == "" {
		exe, err := osExecutable()
		if err != nil {
			return "", installError("locate running executable", err)
		}
		path = exe
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", installError("resolve executable path", err)
	}
	resolved, err := evalSymlinks(abs)
	if err != nil {
		return "", installError("resolve executable symlinks", err)
	}
	return resolved, nil
}

// LaunchResult describes a side-by-side install.
type LaunchResult struct {
	Path string
	PID  int
}

// ReplaceResult describes an in-place install.
type ReplaceResult struct {
	Target     string
	BackupPath string
	// BackupErr is set when the .bak copy could not be written. The
	// replacement still went ahead.
	BackupErr error
	// NonAtomic is set when the final rename failed and the new version was
	// copied over the target instead. The .bak should be kept until the new
	// version has been confirmed to work.
	NonAtomic bool
}

// BackupWritten reports whether a fresh .bak exists.
func (r *ReplaceResult) BackupWritten() bool {
	return r != nil && r.BackupErr == nil
}

// Installer applies a verified artifact to the target executable.
type Installer struct {
	target   string
	launcher Launcher
	logger   *zap.Logger
}

// InstallerOption configures an Installer.
type InstallerOption func(*Installer)

// WithLauncher replaces the process launcher.
func WithLauncher(l Launcher) InstallerOption {
	return func(i *Installer) {
		i.launcher = l
	}
}

// WithInstallerLogger sets the logger used for install diagnostics.
func WithInstallerLogger(logger *zap.Logger) InstallerOption {
	return func(i *Installer) {
		i.logger = logger
	}
}

// NewInstaller creates an installer for the executable at target.
func NewInstaller(target string, opts ...InstallerOption) *Installer {
	i := &Installer{
		target:   target,
		launcher: ProcessLauncher{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Target returns the executable path being updated.
func (i *Installer) Target() string { return i.target }

// BackupPath returns the location of the single .bak copy.
func (i *Installer) BackupPath() string { return i.target + ".bak" }

func (i *Installer) stagingPath() string { return i.target + ".new" }

// VersionedPath returns the side-by-side location for version next to
// target: <dir>/<stem>_v<version><ext>.
func VersionedPath(target, version string) string {
	dir := filepath.Dir(target)
	base := filepath.Base(target)
	ext := executableExt(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, stem+"_v"+sanitizeVersion(version)+ext)
}

// executableExt returns the extension of name when it looks like a file
// type (".exe", ".py") rather than the tail of a dotted version number as in
// "PuzzleMania_v1.0.2".
func executableExt(name string) string {
	ext := filepath.Ext(name)
	if strings.EqualFold(ext, ".exe") {
		return ext
	}
	if len(ext) < 2 || strings.ContainsAny(ext, "0123456789") {
		return ""
	}
	return ext
}

// sanitizeVersion keeps [0-9A-Za-z._-] and replaces everything else with
// '_'. Leading dots are dropped so the result can never name a parent dir.
func sanitizeVersion(v string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '.', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, strings.TrimSpace(v))
	mapped = strings.TrimLeft(mapped, ".")
	if mapped == "" {
		return "unknown"
	}
	return mapped
}

// targetMode returns the target's permission bits, at least owner-executable.
func (i *Installer) targetMode() os.FileMode {
	info, err := os.Stat(i.target)
	if err != nil {
		return 0o755
	}
	return info.Mode().Perm() | 0o100
}

// LaunchSideBySide installs the artifact as a versioned sibling of the
// target and starts it as a detached process. The target is never touched.
// If the file was promoted but could not be started, the result still
// carries its path so the user can run it by hand.
func (i *Installer) LaunchSideBySide(ctx context.Context, a *Artifact, version string) (*LaunchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, installError("launch cancelled", err)
	}

	dest := VersionedPath(i.target, version)
	mode := i.targetMode()
	if err := a.promoteTo(dest, mode); err != nil {
		return nil, installError("install new version", err)
	}
	res := &LaunchResult{Path: dest}
	//nolint:gosec // G302: the file is an executable
	if err := os.Chmod(dest, mode); err != nil {
		return res, installError(fmt.Sprintf("make %s executable", dest), err)
	}
	i.logger.Info("versioned copy installed", zap.String("path", dest))

	pid, err := i.launcher.Launch(dest)
	if err != nil {
		return res, installError("start new version", err)
	}
	res.PID = pid
	i.logger.Info("new version started", zap.String("path", dest), zap.Int("pid", pid))
	return res, nil
}

// ReplaceInPlace swaps the artifact in for the target:
//
//  1. copy target to <target>.bak via <target>.bak.tmp (best effort)
//  2. move artifact to <target>.new and give it the target's mode
//  3. rename <target>.new onto target
//  4. if that rename fails, copy <target>.new over target (not atomic)
//
// The target is untouched on every failure up to and including step 3.
func (i *Installer) ReplaceInPlace(ctx context.Context, a *Artifact) (*ReplaceResult, error) {
	res := &ReplaceResult{Target: i.target, BackupPath: i.BackupPath()}
	if err := ctx.Err(); err != nil {
		return res, installError("replace cancelled", err)
	}

	info, err := os.Stat(i.target)
	if err != nil {
		return res, installError("inspect executable", err)
	}
	mode := info.Mode().Perm()

	if err := i.writeBackup(mode); err != nil {
		res.BackupErr = err
		i.logger.Warn("backup failed, continuing without it", zap.String("backup", res.BackupPath), zap.Error(err))
	} else {
		i.logger.Info("backup written", zap.String("backup", res.BackupPath))
	}

	staged := i.stagingPath()
	if err := a.promoteTo(staged, mode); err != nil {
		_ = os.Remove(staged)
		return res, installError("stage new version", err)
	}
	//nolint:gosec // G302: the file is an executable
	if err := os.Chmod(staged, mode); err != nil {
		_ = os.Remove(staged)
		return res, installError("set permissions on new version", err)
	}

	renameErr := renameFile(staged, i.target)
	if renameErr == nil {
		i.logger.Info("executable replaced", zap.String("path", i.target))
		return res, nil
	}
	i.logger.Warn("atomic rename failed, copying over executable", zap.String("path", i.target), zap.Error(renameErr))

	res.NonAtomic = true
	copyErr := copyFile(staged, i.target, mode)
	_ = os.Remove(staged)
	if copyErr != nil {
		return res, installError("replace executable", errors.Join(renameErr, copyErr))
	}
	i.logger.Info("executable replaced by copy", zap.String("path", i.target))
	return res, nil
}

// writeBackup copies the target to a temp sibling and renames it onto .bak
// only once the copy is complete, so a failed backup never clobbers the
// previous one.
func (i *Installer) writeBackup(mode os.FileMode) error {
	tmp := i.BackupPath() + ".tmp"
	if err := copyFile(i.target, tmp, mode); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := renameFile(tmp, i.BackupPath()); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("move backup into place: %w", err)
	}
	return nil
}

// Restore puts the .bak copy back in place of the target. The .bak is
// kept. It is only ever run on explicit user request.
func (i *Installer) Restore() error {
	bak := i.BackupPath()
	info, err := os.Stat(bak)
	if errors.Is(err, os.ErrNotExist) {
		return apperrors.New(apperrors.CodeNoBackup, fmt.Sprintf("no backup found at %s", bak), nil)
	}
	if err != nil {
		return installError("inspect backup", err)
	}

	staged := i.stagingPath()
	if err := copyFile(bak, staged, info.Mode().Perm()|0o100); err != nil {
		_ = os.Remove(staged)
		return installError("stage backup", err)
	}
	if err := renameFile(staged, i.target); err != nil {
		_ = os.Remove(staged)
		return installError("restore backup", err)
	}
	i.logger.Info("backup restored", zap.String("backup", bak), zap.String("path", i.target))
	return nil
}
