package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/ghdevice/internal/credstore"
	"github.com/florianilch/ghdevice/internal/github"
	"github.com/florianilch/ghdevice/internal/observability"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = observability.FormatText
	LogFormatJSON LogFormat = observability.FormatJSON
	LogFormatOTel LogFormat = observability.FormatOTel
	LogFormatOTLP LogFormat = observability.FormatOTLP
)

// CredentialStorageType represents the storage backends for the GitHub credential.
type CredentialStorageType string

const (
	CredentialStorageTypeFile    CredentialStorageType = "file"
	CredentialStorageTypeEnv     CredentialStorageType = "env"
	CredentialStorageTypeKeyring CredentialStorageType = "keyring"
)

// Default configuration values
const (
	DefaultConfigLogFormat        = LogFormatText
	DefaultConfigServerHost       = "127.0.0.1"
	DefaultConfigServerPort       = 4100
	DefaultConfigShutdownTimeout  = 5 * time.Second
	DefaultConfigGitHubBaseURL    = github.DefaultBaseURL
	DefaultConfigGitHubAPIBaseURL = github.DefaultAPIBaseURL
	DefaultConfigGitHubTimeout    = 30 * time.Second
	DefaultConfigAuthStorage      = CredentialStorageTypeFile
	DefaultConfigAuthEnvKey       = "GITHUB_TOKEN"
	DefaultConfigAuthFileName     = "github-auth.json"

	// keyringService names the OS keyring entry holding the credential.
	keyringService = "ghdevice-github-auth"
	appDirName     = "ghdevice"
)

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"` // Port range 0-65535 handled by uint16 type
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout"`
}

// GitHubConfig points the client at github.com or a GitHub Enterprise host.
type GitHubConfig struct {
	BaseURL    string        `json:"base_url" validate:"required,url"`
	APIBaseURL string        `json:"api_base_url" validate:"required,url"`
	UserAgent  string        `json:"user_agent,omitempty"`
	Timeout    time.Duration `json:"timeout"`
}

// SettingsConfig locates the settings document holding client id and scope overrides.
type SettingsConfig struct {
	// File is optional; without it the built-in client id and scopes apply.
	File string `json:"file,omitempty"`
}

// AuthConfig describes where the GitHub credential is kept.
type AuthConfig struct {
	Storage CredentialStorageType `json:"storage" validate:"required,oneof=file env keyring"`

	// Storage-specific settings (mutually exclusive based on Storage type)
	File        string `json:"file,omitempty"`         // For file storage: path to credential file
	EnvKey      string `json:"env_key,omitempty"`      // For env storage: environment variable name
	KeyringUser string `json:"keyring_user,omitempty"` // For keyring storage: user identifier
}

// Writable reports whether the backend can persist a credential from a login.
func (a *AuthConfig) Writable() bool {
	return a.Storage != CredentialStorageTypeEnv
}

// NewCredentialStore creates a credential store from the configuration.
func (a *AuthConfig) NewCredentialStore() (credstore.Store, error) {
	switch a.Storage {
	case CredentialStorageTypeFile:
		return credstore.NewFileStore(a.File)
	case CredentialStorageTypeEnv:
		return credstore.NewEnvStore(a.EnvKey)
	case CredentialStorageTypeKeyring:
		return credstore.NewKeyringStore(keyringService, a.KeyringUser)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", a.Storage)
	}
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel  slog.Level     `json:"log_level"`
	LogFormat LogFormat      `json:"log_format" validate:"oneof=text json otel otlp"`
	Server    ServerConfig   `json:"server"`
	Shutdown  ShutdownConfig `json:"shutdown"`
	GitHub    GitHubConfig   `json:"github"`
	Settings  SettingsConfig `json:"settings"`
	Auth      AuthConfig     `json:"auth"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultConfigServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultConfigServerPort
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	if c.GitHub.BaseURL == "" {
		c.GitHub.BaseURL = DefaultConfigGitHubBaseURL
	}
	if c.GitHub.APIBaseURL == "" {
		c.GitHub.APIBaseURL = DefaultConfigGitHubAPIBaseURL
	}
	if c.GitHub.UserAgent == "" {
		c.GitHub.UserAgent = github.DefaultUserAgent
	}
	if c.GitHub.Timeout == 0 {
		c.GitHub.Timeout = DefaultConfigGitHubTimeout
	}
	if c.Auth.Storage == "" {
		c.Auth.Storage = DefaultConfigAuthStorage
	}

	// Dynamic defaults based on storage type
	switch c.Auth.Storage {
	case CredentialStorageTypeFile:
		if c.Auth.File == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("auth.file required (auto-detect failed: %w)", err)
			}
			c.Auth.File = filepath.Join(configDir, appDirName, DefaultConfigAuthFileName)
		}
	case CredentialStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			currentUser, err := user.Current()
			if err != nil {
				return fmt.Errorf("auth.keyring_user required (auto-detect failed: %w)", err)
			}
			c.Auth.KeyringUser = currentUser.Username
		}
	case CredentialStorageTypeEnv:
		if c.Auth.EnvKey == "" {
			c.Auth.EnvKey = DefaultConfigAuthEnvKey
		}
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if c.GitHub.Timeout < 0 {
		return errors.New("github.timeout must not be negative")
	}

	switch c.Auth.Storage {
	case CredentialStorageTypeFile:
		if c.Auth.File == "" {
			return errors.New("file path required for file storage")
		}
	case CredentialStorageTypeEnv:
		if c.Auth.EnvKey == "" {
			return errors.New("env_key required for env storage")
		}
	case CredentialStorageTypeKeyring:
		if c.Auth.KeyringUser == "" {
			return errors.New("keyring_user required for keyring storage")
		}
	}

	return nil
}

// ValidateLogin checks that a device flow login can persist its result.
func (c *Config) ValidateLogin() error {
	if !c.Auth.Writable() {
		return errors.New("login requires writable storage, env is read-only")
	}
	return nil
}
