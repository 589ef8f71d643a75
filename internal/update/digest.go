package update

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	apperrors "puzzlemania/internal/errors"
)

// digestChunkSize is the read buffer used while hashing. Artifacts are
// streamed, never loaded whole.
const digestChunkSize = 64 << 10

// Digest returns the lowercase hex SHA-256 of the file at path.
func Digest(path string) (string, error) {
	//nolint:gosec // G304: path is the artifact this process just downloaded
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		// Read-only file handle; close errors are not actionable.
		_ = f.Close()
	}()

	h := sha256.New()
	buf := make([]byte, digestChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyDigest reports whether the file at path hashes to expected.
// Comparison ignores case, surrounding whitespace, and a "sha256:" prefix.
func VerifyDigest(path, expected string) (bool, error) {
	got, err := Digest(path)
	if err != nil {
		return false, err
	}
	return strings.EqualFold(got, normalizeDigest(expected)), nil
}

// CheckIntegrity verifies the artifact at path against expected.
//
// An empty expected digest skips verification entirely and the artifact is
// trusted as downloaded. Manifests without a digest therefore offer no
// tamper protection; callers warn the user instead of failing.
func CheckIntegrity(path, expected string) error {
	want := normalizeDigest(expected)
	if want == "" {
		return nil
	}
	got, err := Digest(path)
	if err != nil {
		return installError("read downloaded file", err)
	}
	if !strings.EqualFold(got, want) {
		return apperrors.New(apperrors.CodeIntegrity, "downloaded file failed integrity check", &ChecksumError{
			Path:     path,
			Expected: strings.ToLower(want),
			Got:      got,
		})
	}
	return nil
}

func normalizeDigest(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > len("sha256:") && strings.EqualFold(s[:len("sha256:")], "sha256:") {
		s = s[len("sha256:"):]
	}
	return s
}
