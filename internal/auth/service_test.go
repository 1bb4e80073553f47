package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/florianilch/ghdevice/internal/autherr"
	"github.com/florianilch/ghdevice/internal/credstore"
	"github.com/florianilch/ghdevice/internal/deviceflow"
	"github.com/florianilch/ghdevice/internal/github"
)

// fakeGitHub serves the OAuth and REST endpoints the service touches.
type fakeGitHub struct {
	*httptest.Server
	tokenBody  atomic.Value
	userStatus atomic.Int32
	requests   atomic.Int32
}

func newFakeGitHub(t *testing.T) *fakeGitHub {
	t.Helper()
	f := &fakeGitHub{}
	f.tokenBody.Store(`{"error": "authorization_pending"}`)
	f.userStatus.Store(http.StatusOK)

	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/login/device/code":
			_, _ = w.Write([]byte(`{"device_code": "dev_abc", "user_code": "ABCD-1234",
				"verification_uri": "https://github.com/login/device", "expires_in": 900, "interval": 5}`))
		case "/login/oauth/access_token":
			_, _ = w.Write([]byte(f.tokenBody.Load().(string)))
		case "/user":
			status := int(f.userStatus.Load())
			w.WriteHeader(status)
			if status == http.StatusOK {
				_, _ = w.Write([]byte(`{"login": "octocat", "id": 1, "name": "The Octocat"}`))
			} else {
				_, _ = w.Write([]byte(`{"message": "Bad credentials"}`))
			}
		case "/user/emails":
			_, _ = w.Write([]byte(`[{"email": "a@x", "primary": false, "verified": true}, {"email": "b@x", "primary": true, "verified": true}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(f.Close)
	return f
}

func newFileService(t *testing.T, gh *fakeGitHub) (*Service, *credstore.FileStore) {
	t.Helper()
	store, err := credstore.NewFileStore(filepath.Join(t.TempDir(), "ghdevice", "github-auth.json"))
	require.NoError(t, err)

	client := github.NewClient(github.WithAPIBaseURL(gh.URL))
	engine, err := deviceflow.New(store, client, nil, deviceflow.WithEndpoint(github.Endpoint(gh.URL)))
	require.NoError(t, err)

	svc, err := NewService(store, client, engine)
	require.NoError(t, err)
	return svc, store
}

func writeCredentialFile(t *testing.T, store *credstore.FileStore, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(store.Path()), 0700))
	require.NoError(t, os.WriteFile(store.Path(), []byte(content), 0600))
}

func assertNoFile(t *testing.T, path string) {
	t.Helper()
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "expected %s to be removed, stat error: %v", path, err)
}

func TestStatusBlankTokenClearsStore(t *testing.T) {
	gh := newFakeGitHub(t)
	svc, store := newFileService(t, gh)
	writeCredentialFile(t, store, `{"accessToken": "   ", "scope": "repo"}`)

	status, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Status{}, status)
	assertNoFile(t, store.Path())
	assert.Zero(t, gh.requests.Load())
}

func TestStatusWithoutCredentialSkipsNetwork(t *testing.T) {
	gh := newFakeGitHub(t)
	// Network failures would surface as errors if anything were requested
	gh.Close()
	svc, _ := newFileService(t, gh)

	status, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Status{Connected: false, User: nil, Scope: ""}, status)
}

func TestStatusCorruptFileIsDisconnected(t *testing.T) {
	gh := newFakeGitHub(t)
	svc, store := newFileService(t, gh)
	writeCredentialFile(t, store, `{"accessToken": "gho_`)

	status, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Connected)
	assert.Zero(t, gh.requests.Load())
}

func TestLoginThenStatus(t *testing.T) {
	ctx := context.Background()
	gh := newFakeGitHub(t)
	gh.tokenBody.Store(`{"access_token": "gho_issued", "token_type": "bearer", "scope": "repo,user:email"}`)
	svc, store := newFileService(t, gh)

	start, err := svc.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ABCD-1234", start.UserCode)

	res, err := svc.Complete(ctx, start.DeviceCode)
	require.NoError(t, err)
	require.Equal(t, deviceflow.OutcomeSuccess, res.Outcome)
	require.NotNil(t, res.User)
	assert.Equal(t, "octocat", res.User.Login)
	assert.Equal(t, "b@x", res.User.Email)

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Equal(t, res.User, status.User)
	assert.Equal(t, "repo,user:email", status.Scope)
}

func TestCompletePendingLeavesStoreUntouched(t *testing.T) {
	gh := newFakeGitHub(t)
	svc, store := newFileService(t, gh)

	res, err := svc.Complete(context.Background(), "dev_abc")
	require.NoError(t, err)
	assert.True(t, res.IsPending())
	assert.Equal(t, "authorization_pending", res.Status)
	assertNoFile(t, store.Path())
}

func TestCompleteEmptyDeviceCode(t *testing.T) {
	gh := newFakeGitHub(t)
	svc, _ := newFileService(t, gh)

	_, err := svc.Complete(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, autherr.KindInput, autherr.KindOf(err))
	assert.Zero(t, gh.requests.Load())
}

func TestStatusRevokedClearsStore(t *testing.T) {
	gh := newFakeGitHub(t)
	gh.userStatus.Store(http.StatusUnauthorized)
	svc, store := newFileService(t, gh)
	writeCredentialFile(t, store, `{"accessToken": "gho_revoked", "scope": "repo"}`)

	for range 2 {
		status, err := svc.Status(context.Background())
		require.NoError(t, err)
		assert.Equal(t, Status{}, status)
		assertNoFile(t, store.Path())
	}
}

func TestStatusOutageKeepsCredential(t *testing.T) {
	gh := newFakeGitHub(t)
	gh.userStatus.Store(http.StatusBadGateway)
	svc, store := newFileService(t, gh)
	writeCredentialFile(t, store, `{"accessToken": "gho_valid"}`)

	_, err := svc.Status(context.Background())
	require.Error(t, err)
	assert.Equal(t, autherr.KindTransport, autherr.KindOf(err))

	_, err = os.Stat(store.Path())
	assert.NoError(t, err, "credential survives a transient failure")
}

func TestDisconnect(t *testing.T) {
	gh := newFakeGitHub(t)
	svc, store := newFileService(t, gh)

	assert.Equal(t, DisconnectResult{Removed: true}, svc.Disconnect(context.Background()))

	writeCredentialFile(t, store, `{"accessToken": "gho_valid"}`)
	assert.Equal(t, DisconnectResult{Removed: true}, svc.Disconnect(context.Background()))
	assertNoFile(t, store.Path())
}

func TestWhoami(t *testing.T) {
	ctx := context.Background()

	t.Run("not connected", func(t *testing.T) {
		svc, _ := newFileService(t, newFakeGitHub(t))
		_, err := svc.Whoami(ctx)
		assert.ErrorIs(t, err, autherr.ErrNotConnected)
	})

	t.Run("blank token", func(t *testing.T) {
		svc, store := newFileService(t, newFakeGitHub(t))
		writeCredentialFile(t, store, `{"accessToken": ""}`)
		_, err := svc.Whoami(ctx)
		assert.ErrorIs(t, err, autherr.ErrNotConnected)
		assertNoFile(t, store.Path())
	})

	t.Run("revoked", func(t *testing.T) {
		gh := newFakeGitHub(t)
		gh.userStatus.Store(http.StatusUnauthorized)
		svc, store := newFileService(t, gh)
		writeCredentialFile(t, store, `{"accessToken": "gho_revoked"}`)

		_, err := svc.Whoami(ctx)
		assert.ErrorIs(t, err, autherr.ErrTokenRevoked)
		assertNoFile(t, store.Path())
	})

	t.Run("connected", func(t *testing.T) {
		svc, store := newFileService(t, newFakeGitHub(t))
		writeCredentialFile(t, store, `{"accessToken": "gho_valid"}`)

		user, err := svc.Whoami(ctx)
		require.NoError(t, err)
		assert.Equal(t, "octocat", user.Login)
		assert.Equal(t, "b@x", user.Email)
	})

	t.Run("outage", func(t *testing.T) {
		gh := newFakeGitHub(t)
		gh.userStatus.Store(http.StatusInternalServerError)
		svc, store := newFileService(t, gh)
		writeCredentialFile(t, store, `{"accessToken": "gho_valid"}`)

		_, err := svc.Whoami(ctx)
		require.Error(t, err)
		assert.NotErrorIs(t, err, autherr.ErrTokenRevoked)
		_, statErr := os.Stat(store.Path())
		assert.NoError(t, statErr)
	})
}

func TestNewServiceValidation(t *testing.T) {
	store := credstore.NewMemoryStore(nil)
	client := github.NewClient()
	engine, err := deviceflow.New(store, client, nil)
	require.NoError(t, err)

	_, err = NewService(nil, client, engine)
	assert.Error(t, err)
	_, err = NewService(store, nil, engine)
	assert.Error(t, err)
	_, err = NewService(store, client, nil)
	assert.Error(t, err)
}
