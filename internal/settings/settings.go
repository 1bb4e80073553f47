// Package settings resolves the OAuth client identifier and scopes from the
// desktop app's settings document, falling back to built-in defaults.
package settings

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// DefaultClientID is the public client identifier of the GitHub OAuth app.
	// Device flow uses no client secret.
	DefaultClientID = "Ov23liNd8TxDcMXtAHHM"
	// DefaultScopes are requested when the settings carry no override.
	DefaultScopes = "repo read:org workflow read:user user:email"
)

// Settings keys read from the desktop app's settings document.
const (
	KeyClientID = "githubClientId"
	KeyScopes   = "githubScopes"
)

// Source loads the desktop app's settings as a key/value document.
type Source interface {
	Load(ctx context.Context) (map[string]any, error)
}

// ClientConfig is the client identity used for one device flow step.
type ClientConfig struct {
	ClientID string
	// Scopes is space-delimited.
	Scopes string
}

// ScopeList splits Scopes on whitespace.
func (c ClientConfig) ScopeList() []string {
	return strings.Fields(c.Scopes)
}

// Resolve reads the client id and scopes from src. Never fails: a nil source,
// a failing source, non-string values and blank values all fall back to defaults.
func Resolve(ctx context.Context, src Source) ClientConfig {
	var values map[string]any
	if src != nil {
		loaded, err := src.Load(ctx)
		if err != nil {
			slog.DebugContext(ctx, "settings unavailable, using defaults", "error", err)
		} else {
			values = loaded
		}
	}

	return ClientConfig{
		ClientID: stringSetting(values, KeyClientID, DefaultClientID),
		Scopes:   stringSetting(values, KeyScopes, DefaultScopes),
	}
}

func stringSetting(values map[string]any, key, fallback string) string {
	s, ok := values[key].(string)
	if !ok {
		return fallback
	}
	if s = strings.TrimSpace(s); s == "" {
		return fallback
	}
	return s
}

// FileSource reads a settings document from disk. Files ending in .toml are
// parsed as TOML, everything else as JSON.
type FileSource struct {
	path string
}

// Compile-time check to ensure FileSource implements Source
var _ Source = (*FileSource)(nil)

// NewFileSource creates a FileSource for path. The file is read on every Load
// so that edits made by the desktop app are picked up without a restart.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Load parses the settings file into a flat key/value map.
func (f *FileSource) Load(ctx context.Context) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.path == "" {
		return nil, fmt.Errorf("settings path not configured")
	}

	k := koanf.New(".")
	if err := LoadFile(k, f.path, json.Parser()); err != nil {
		return nil, fmt.Errorf("loading settings %s: %w", f.path, err)
	}
	return k.Raw(), nil
}

// LoadFile merges the document at path into k. The parser follows the file
// extension (.toml or .json); any other extension uses fallback.
func LoadFile(k *koanf.Koanf, path string, fallback koanf.Parser) error {
	parser := fallback
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		parser = toml.Parser()
	case ".json":
		parser = json.Parser()
	}
	return k.Load(file.Provider(path), parser)
}

// MapSource is a fixed settings document.
type MapSource map[string]any

// Load returns the map itself.
func (m MapSource) Load(context.Context) (map[string]any, error) {
	return m, nil
}
