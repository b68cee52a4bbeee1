package session

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"dissent/internal/errs"
)

// NewScratchDir creates a fresh uuid-named directory under base for one
// round's transient artifacts (received bags, partial reveals), mirroring
// the teacher's per-transfer staging directories in file_transfer.go.
func NewScratchDir(base string) (string, error) {
	dir := filepath.Join(base, uuid.NewString())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", &errs.LocalIoError{Op: "session: mkdir scratch", Err: err}
	}
	return dir, nil
}

// CleanupScratch removes a round's scratch directory, ignoring a
// not-exist error since double cleanup is harmless.
func CleanupScratch(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return &errs.LocalIoError{Op: "session: remove scratch", Err: err}
	}
	return nil
}
