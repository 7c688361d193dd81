// Package checksum writes and verifies md5sum(1) compatible checksum
// files stored next to the archives they describe.
package checksum

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio"
)

// Suffix is appended to an archive path to name its checksum file.
const Suffix = ".md5"

// ErrMismatch is returned by Verify when the archive no longer matches.
var ErrMismatch = errors.New("checksum mismatch")

// PathFor returns the checksum file path for an archive.
func PathFor(archive string) string {
	return archive + Suffix
}

// Sum computes the hex md5 digest of the file at path.
func Sum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New() // #nosec G401 -- md5 is the published artifact format, not a security boundary
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("cannot hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Write computes the digest of archive and atomically stores it in the
// checksum file, in the "<digest>  <file name>" format.
func Write(archive string) (string, error) {
	sum, err := Sum(archive)
	if err != nil {
		return "", err
	}
	line := fmt.Sprintf("%s  %s\n", sum, filepath.Base(archive))
	if err := renameio.WriteFile(PathFor(archive), []byte(line), 0644); err != nil {
		return "", fmt.Errorf("cannot write checksum file: %w", err)
	}
	return sum, nil
}

// Read returns the digest stored in a checksum file. Only the first
// field is considered, so both "<digest>" and md5sum output are accepted.
func Read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return "", fmt.Errorf("checksum file %s is empty", path)
	}
	sum := strings.ToLower(fields[0])
	if _, err := hex.DecodeString(sum); err != nil || len(sum) != md5.Size*2 {
		return "", fmt.Errorf("checksum file %s does not contain an md5 digest", path)
	}
	return sum, nil
}

// Verify recomputes the digest of archive and compares it with its
// checksum file.
func Verify(archive string) error {
	want, err := Read(PathFor(archive))
	if err != nil {
		return err
	}
	got, err := Sum(archive)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: %s has %s, expected %s", ErrMismatch, filepath.Base(archive), got, want)
	}
	return nil
}
