// Package credential keeps the remote access token between runs and resolves
// which token an upload should use.
package credential

import "errors"

var (
	// ErrNotConfigured is returned by Load when no token has been saved.
	ErrNotConfigured = errors.New("no token saved (run 'zipup auth login')")
	// ErrWrongPassphrase is returned by Load when the passphrase does not
	// unlock the saved token.
	ErrWrongPassphrase = errors.New("incorrect passphrase")
)

// TokenStore saves an access token protected by a passphrase.
type TokenStore interface {
	// Save replaces any saved token.
	Save(token, passphrase string) error

	// Load returns the saved token.
	Load(passphrase string) (string, error)

	// IsConfigured reports whether a token has been saved.
	IsConfigured() bool
}
