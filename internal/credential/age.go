package credential

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
)

// AgeTokenStore keeps the token in a single file encrypted with age's
// scrypt passphrase recipient.
type AgeTokenStore struct {
	path       string
	workFactor int // scrypt log2 work factor, 0 keeps age's default
}

var _ TokenStore = (*AgeTokenStore)(nil)

// NewAgeTokenStore creates a store backed by the file at path.
func NewAgeTokenStore(path string) *AgeTokenStore {
	return &AgeTokenStore{path: path}
}

// Path returns the encrypted token file location.
func (s *AgeTokenStore) Path() string {
	return s.path
}

// Save encrypts token with passphrase and atomically replaces the token file.
func (s *AgeTokenStore) Save(token, passphrase string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token must not be empty")
	}
	if passphrase == "" {
		return errors.New("passphrase must not be empty")
	}

	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt recipient: %w", err)
	}
	if s.workFactor > 0 {
		recipient.SetWorkFactor(s.workFactor)
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}
	if _, err := io.WriteString(w, token); err != nil {
		return fmt.Errorf("encrypting token: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing encrypted token: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return fmt.Errorf("creating token file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("restricting token file: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing token file: %w", err)
	}
	return nil
}

// Load decrypts the saved token with passphrase.
func (s *AgeTokenStore) Load(passphrase string) (string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNotConfigured
	}
	if err != nil {
		return "", fmt.Errorf("reading token file: %w", err)
	}

	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return "", fmt.Errorf("creating scrypt identity: %w", err)
	}

	r, err := age.Decrypt(bytes.NewReader(data), identity)
	if err != nil {
		var noMatch *age.NoIdentityMatchError
		if errors.As(err, &noMatch) || errors.Is(err, age.ErrIncorrectIdentity) {
			return "", ErrWrongPassphrase
		}
		return "", fmt.Errorf("decrypting token: %w", err)
	}

	token, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading decrypted token: %w", err)
	}
	return string(token), nil
}

// IsConfigured reports whether the token file exists.
func (s *AgeTokenStore) IsConfigured() bool {
	_, err := os.Stat(s.path)
	return err == nil
}
