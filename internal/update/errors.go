package update

import (
	"fmt"

	apperrors "puzzlemania/internal/errors"
)

// ErrUpdateInProgress is returned when a second attempt starts while one is running.
var ErrUpdateInProgress = apperrors.New(apperrors.CodeUpdateInProgress, "an update is already in progress", nil)

// ChecksumError details an integrity failure. It is wrapped in an
// apperrors.Error with CodeIntegrity.
type ChecksumError struct {
	Path     string
	Expected string
	Got      string
}

// Error shows both digests for debugging.
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("sha256 mismatch for %s: expected %s, got %s", e.Path, e.Expected, e.Got)
}

func networkError(msg string, err error) error {
	return apperrors.New(apperrors.CodeNetwork, msg, err)
}

func manifestError(msg string, err error) error {
	return apperrors.New(apperrors.CodeManifest, msg, err)
}

func installError(msg string, err error) error {
	return apperrors.New(apperrors.CodeInstall, msg, err)
}
