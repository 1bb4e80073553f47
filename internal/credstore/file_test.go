package credstore

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCredential() *Credential {
	id := int64(42)
	return &Credential{
		AccessToken: "gho_test",
		Scope:       "repo read:org",
		TokenType:   "bearer",
		CreatedAt:   1700000000000,
		User:        &User{Login: "octocat", ID: &id, Email: "octocat@example.com"},
	}
}

func TestFileStoreSaveLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "dir", "github-auth.json")

	store, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, testCredential()))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, testCredential(), loaded)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}
}

func TestFileStoreSaveOverwritesWholesale(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "github-auth.json"))
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, testCredential()))
	require.NoError(t, store.Save(ctx, &Credential{AccessToken: "gho_second"}))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Credential{AccessToken: "gho_second"}, loaded)

	// No temp files are left behind next to the credential
	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStoreLoadAbsentOrCorrupt(t *testing.T) {
	tests := []struct {
		name    string
		content *string
	}{
		{name: "missing file"},
		{name: "corrupt json", content: ptr("{not json")},
		{name: "partial write", content: ptr(`{"accessToken": "gho_`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "github-auth.json")
			if tt.content != nil {
				require.NoError(t, os.WriteFile(path, []byte(*tt.content), 0600))
			}
			store, err := NewFileStore(path)
			require.NoError(t, err)

			loaded, err := store.Load(context.Background())
			require.NoError(t, err)
			assert.Nil(t, loaded)
		})
	}
}

func TestFileStoreClear(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "github-auth.json"))
	require.NoError(t, err)

	// Absent file counts as removed
	assert.True(t, store.Clear(ctx))

	require.NoError(t, store.Save(ctx, testCredential()))
	assert.True(t, store.Clear(ctx))
	_, err = os.Stat(store.Path())
	assert.True(t, os.IsNotExist(err))
	assert.True(t, store.Clear(ctx))
}

func TestFileStoreClearFailure(t *testing.T) {
	// A non-empty directory at the credential path cannot be removed
	path := filepath.Join(t.TempDir(), "github-auth.json")
	require.NoError(t, os.MkdirAll(filepath.Join(path, "child"), 0700))

	store, err := NewFileStore(path)
	require.NoError(t, err)
	assert.False(t, store.Clear(context.Background()))
}

func TestFileStoreCancelledContext(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "github-auth.json"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = store.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.Save(ctx, testCredential()), context.Canceled)
}

func TestNewFileStoreRequiresPath(t *testing.T) {
	_, err := NewFileStore("")
	assert.Error(t, err)
}

func ptr[T any](v T) *T {
	return &v
}
