package credential

import (
	"errors"
	"sync"
)

// MemoryTokenStore holds the token in memory. Use in tests.
type MemoryTokenStore struct {
	mu         sync.Mutex
	token      string
	passphrase string
	saved      bool
}

var _ TokenStore = (*MemoryTokenStore)(nil)

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) Save(token, passphrase string) error {
	if token == "" {
		return errors.New("token must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.passphrase, s.saved = token, passphrase, true
	return nil
}

func (s *MemoryTokenStore) Load(passphrase string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.saved {
		return "", ErrNotConfigured
	}
	if passphrase != s.passphrase {
		return "", ErrWrongPassphrase
	}
	return s.token, nil
}

func (s *MemoryTokenStore) IsConfigured() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved
}
