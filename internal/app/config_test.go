package app

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/florianilch/ghdevice/internal/credstore"
)

func TestDefault(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, LogFormatText, cfg.LogFormat)
	assert.Equal(t, DefaultConfigServerHost, cfg.Server.Host)
	assert.EqualValues(t, DefaultConfigServerPort, cfg.Server.Port)
	assert.Equal(t, "https://github.com", cfg.GitHub.BaseURL)
	assert.Equal(t, "https://api.github.com", cfg.GitHub.APIBaseURL)
	assert.Equal(t, CredentialStorageTypeFile, cfg.Auth.Storage)
	assert.Equal(t, DefaultConfigAuthFileName, filepath.Base(cfg.Auth.File))
	assert.Equal(t, appDirName, filepath.Base(filepath.Dir(cfg.Auth.File)))
	assert.NoError(t, cfg.Validate())
}

func TestApplyDefaultsPerStorage(t *testing.T) {
	env := &Config{Auth: AuthConfig{Storage: CredentialStorageTypeEnv}}
	require.NoError(t, env.ApplyDefaults())
	assert.Equal(t, DefaultConfigAuthEnvKey, env.Auth.EnvKey)
	assert.Empty(t, env.Auth.File)

	kr := &Config{Auth: AuthConfig{Storage: CredentialStorageTypeKeyring}}
	require.NoError(t, kr.ApplyDefaults())
	assert.NotEmpty(t, kr.Auth.KeyringUser)

	custom := &Config{Auth: AuthConfig{File: "/tmp/custom.json"}}
	require.NoError(t, custom.ApplyDefaults())
	assert.Equal(t, "/tmp/custom.json", custom.Auth.File)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "otlp format", mutate: func(c *Config) { c.LogFormat = LogFormatOTLP }},
		{name: "unknown format", mutate: func(c *Config) { c.LogFormat = "xml" }, wantErr: true},
		{name: "bad host", mutate: func(c *Config) { c.Server.Host = "not a host" }, wantErr: true},
		{name: "ip host", mutate: func(c *Config) { c.Server.Host = "::1" }},
		{name: "bad base url", mutate: func(c *Config) { c.GitHub.BaseURL = "github" }, wantErr: true},
		{name: "enterprise urls", mutate: func(c *Config) {
			c.GitHub.BaseURL = "https://ghe.example.com"
			c.GitHub.APIBaseURL = "https://ghe.example.com/api/v3"
		}},
		{name: "negative timeout", mutate: func(c *Config) { c.GitHub.Timeout = -1 }, wantErr: true},
		{name: "unknown storage", mutate: func(c *Config) { c.Auth.Storage = "s3" }, wantErr: true},
		{name: "file storage without path", mutate: func(c *Config) { c.Auth.File = "" }, wantErr: true},
		{name: "env storage without key", mutate: func(c *Config) {
			c.Auth.Storage = CredentialStorageTypeEnv
			c.Auth.EnvKey = ""
		}, wantErr: true},
		{name: "keyring storage without user", mutate: func(c *Config) {
			c.Auth.Storage = CredentialStorageTypeKeyring
			c.Auth.KeyringUser = ""
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Default()
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateLogin(t *testing.T) {
	cfg := &Config{Auth: AuthConfig{Storage: CredentialStorageTypeEnv}}
	require.NoError(t, cfg.ApplyDefaults())
	require.NoError(t, cfg.Validate(), "env storage is fine for read-only commands")
	assert.Error(t, cfg.ValidateLogin())

	cfg.Auth = AuthConfig{Storage: CredentialStorageTypeFile, File: filepath.Join(t.TempDir(), "auth.json")}
	assert.NoError(t, cfg.ValidateLogin())
}

func TestNewCredentialStore(t *testing.T) {
	keyring.MockInit()

	tests := []struct {
		name string
		auth AuthConfig
		want credstore.Store
	}{
		{name: "file", auth: AuthConfig{Storage: CredentialStorageTypeFile, File: filepath.Join(t.TempDir(), "auth.json")}, want: &credstore.FileStore{}},
		{name: "env", auth: AuthConfig{Storage: CredentialStorageTypeEnv, EnvKey: "GHDEVICE_TEST_TOKEN"}, want: &credstore.EnvStore{}},
		{name: "keyring", auth: AuthConfig{Storage: CredentialStorageTypeKeyring, KeyringUser: "octocat"}, want: &credstore.KeyringStore{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := tt.auth.NewCredentialStore()
			require.NoError(t, err)
			assert.IsType(t, tt.want, store)
		})
	}

	_, err := (&AuthConfig{Storage: "s3"}).NewCredentialStore()
	assert.Error(t, err)
}
