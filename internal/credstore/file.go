package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// FileStore provides atomic file-based credential storage with secure permissions.
// Writes use temp file + rename for crash safety.
type FileStore struct {
	filePath string
}

// Compile-time check to ensure FileStore implements Store
var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore for the given path. No I/O is performed;
// parent directories are created on first Save.
func NewFileStore(filePath string) (*FileStore, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	return &FileStore{
		filePath: filePath,
	}, nil
}

// Path returns the location of the credential file.
func (f *FileStore) Path() string {
	return f.filePath
}

// Load reads and decodes the credential file. A missing, unreadable or
// undecodable file yields nil without error.
func (f *FileStore) Load(ctx context.Context) (*Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.filePath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.DebugContext(ctx, "credential file unreadable", "path", f.filePath, "error", err)
		}
		return nil, nil
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		slog.DebugContext(ctx, "credential file corrupt, treating as absent", "path", f.filePath, "error", err)
		return nil, nil
	}
	return &cred, nil
}

// Save atomically writes the credential using temp file + rename.
// Directory creation and the final chmod are best-effort: only a failed write
// or rename fails the call.
func (f *FileStore) Save(ctx context.Context, cred *Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cred == nil {
		return fmt.Errorf("credential cannot be nil")
	}

	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling credential: %w", err)
	}

	dir := filepath.Dir(f.filePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		slog.WarnContext(ctx, "failed to create credential directory", "dir", dir, "error", err)
	}

	// CreateTemp opens with 0600, so the secret is never world-readable
	tempFile, err := os.CreateTemp(dir, ".credential-*.tmp")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()
	// Cleanup deferred for all exit paths; Remove fails harmlessly after rename
	defer func() { _ = os.Remove(tempName) }()
	defer func() { _ = tempFile.Close() }()

	if _, err := tempFile.Write(append(data, '\n')); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}

	if err := os.Rename(tempName, f.filePath); err != nil {
		return err
	}

	// Set secure file permissions (0600 = rw-------) where the platform supports it
	if err := os.Chmod(f.filePath, 0600); err != nil {
		slog.WarnContext(ctx, "failed to restrict credential file permissions", "path", f.filePath, "error", err)
	}

	return nil
}

// Clear deletes the credential file. An already missing file counts as removed.
func (f *FileStore) Clear(ctx context.Context) bool {
	err := os.Remove(f.filePath)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return true
	}
	slog.WarnContext(ctx, "failed to remove credential file", "path", f.filePath, "error", err)
	return false
}
