package credstore

import (
	"context"
	"strings"
)

// Store loads, saves and clears the one stored credential.
type Store interface {
	// Load returns the stored credential, or nil if none is stored or the stored
	// content cannot be decoded. Returns error only if ctx is done.
	Load(ctx context.Context) (*Credential, error)

	// Save replaces the stored credential wholesale. Returns error if the storage
	// backend is read-only or the write itself fails.
	Save(ctx context.Context, cred *Credential) error

	// Clear removes the stored credential. Reports true when it was removed or
	// was already absent, false on any other failure.
	Clear(ctx context.Context) bool
}

// Credential is the persisted GitHub authorization.
type Credential struct {
	AccessToken string `json:"accessToken"`
	Scope       string `json:"scope,omitempty"`
	TokenType   string `json:"tokenType,omitempty"`
	// CreatedAt is the issuance time in Unix milliseconds.
	CreatedAt int64 `json:"createdAt,omitempty"`
	User      *User `json:"user,omitempty"`
}

// HasToken reports whether the credential carries a non-blank access token.
func (c *Credential) HasToken() bool {
	return c != nil && strings.TrimSpace(c.AccessToken) != ""
}

// User summarizes the authenticated GitHub identity.
type User struct {
	Login     string `json:"login"`
	ID        *int64 `json:"id,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
}
