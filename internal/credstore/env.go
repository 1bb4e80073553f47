package credstore

import (
	"context"
	"fmt"
	"os"
)

// EnvStore provides read-only access to an access token stored in an environment variable.
// Suitable for headless status checks but not for device flow login (requires writable storage).
type EnvStore struct {
	envKey string
}

// Compile-time check to ensure EnvStore implements Store
var _ Store = (*EnvStore)(nil)

// NewEnvStore creates an EnvStore for the given environment variable.
// Returns error if the variable name is empty.
func NewEnvStore(envKey string) (*EnvStore, error) {
	if envKey == "" {
		return nil, fmt.Errorf("environment key cannot be empty")
	}

	return &EnvStore{
		envKey: envKey,
	}, nil
}

// Load returns a credential holding the variable's value as access token, or
// nil if the variable is unset.
func (e *EnvStore) Load(ctx context.Context) (*Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	token, ok := os.LookupEnv(e.envKey)
	if !ok {
		return nil, nil
	}
	return &Credential{AccessToken: token, TokenType: "bearer"}, nil
}

// Save is not supported for environment variables (they are read-only).
func (e *EnvStore) Save(ctx context.Context, _ *Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return fmt.Errorf("environment variable storage is read-only")
}

// Clear cannot unset the variable for other processes, so it always reports false.
func (e *EnvStore) Clear(context.Context) bool {
	return false
}
