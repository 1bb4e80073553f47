// Package credstore persists the single GitHub credential of the desktop app.
//
// Supports four storage backends with different security and deployment tradeoffs:
//   - File: JSON document on local disk with atomic writes and 0600 permissions
//   - Keyring: OS-native credential storage (macOS Keychain, Windows Credential Manager, etc.)
//   - Env: Read-only access token from an environment variable
//   - Memory: In-process storage, mostly useful for tests
//
// Device flow login requires writable storage (file, keyring or memory).
// Every backend treats missing or corrupt content as "no credential" so that the
// first run and a damaged file follow the same recovery path.
package credstore
