package credential

import (
	"fmt"

	"zipup/internal/config"
)

// NewTokenStoreFromConfig creates a TokenStore based on the configuration type.
func NewTokenStoreFromConfig(cfg config.CredentialConfig) (TokenStore, error) {
	switch cfg.Type {
	case "age", "":
		if cfg.TokenPath == "" {
			return nil, fmt.Errorf("token_path required for age credential store")
		}
		return NewAgeTokenStore(cfg.TokenPath), nil
	case "memory":
		return NewMemoryTokenStore(), nil
	default:
		return nil, fmt.Errorf("unknown credential type: %q", cfg.Type)
	}
}
