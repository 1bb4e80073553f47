package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zalando/go-keyring"
)

// KeyringStore provides OS-native secure credential storage.
// Uses macOS Keychain, Windows Credential Manager, or Linux Secret Service.
// The credential is stored as a single JSON secret.
type KeyringStore struct {
	service string
	user    string
}

// Compile-time check to ensure KeyringStore implements Store
var _ Store = (*KeyringStore)(nil)

// NewKeyringStore creates a KeyringStore for the OS-native credential storage
// (macOS Keychain, Windows Credential Manager, etc.) using the given service and user identifiers.
func NewKeyringStore(service, user string) (*KeyringStore, error) {
	if service == "" {
		return nil, fmt.Errorf("service cannot be empty")
	}
	if user == "" {
		return nil, fmt.Errorf("user cannot be empty")
	}

	return &KeyringStore{
		service: service,
		user:    user,
	}, nil
}

// Load returns the credential from the system keyring, or nil if the entry is
// missing, the keyring is unavailable or the secret does not decode.
func (k *KeyringStore) Load(ctx context.Context) (*Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	secret, err := keyring.Get(k.service, k.user)
	if err != nil {
		if !errors.Is(err, keyring.ErrNotFound) {
			slog.DebugContext(ctx, "keyring unavailable", "service", k.service, "error", err)
		}
		return nil, nil
	}

	var cred Credential
	if err := json.Unmarshal([]byte(secret), &cred); err != nil {
		slog.DebugContext(ctx, "keyring credential corrupt, treating as absent", "service", k.service, "error", err)
		return nil, nil
	}
	return &cred, nil
}

// Save persists the credential to the system keyring, overwriting any existing value.
func (k *KeyringStore) Save(ctx context.Context, cred *Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if cred == nil {
		return fmt.Errorf("credential cannot be nil")
	}

	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshaling credential: %w", err)
	}
	return keyring.Set(k.service, k.user, string(data))
}

// Clear deletes the keyring entry. A missing entry counts as removed.
func (k *KeyringStore) Clear(ctx context.Context) bool {
	err := keyring.Delete(k.service, k.user)
	if err == nil || errors.Is(err, keyring.ErrNotFound) {
		return true
	}
	slog.WarnContext(ctx, "failed to delete keyring credential", "service", k.service, "error", err)
	return false
}
