package remote

import (
	"fmt"
	"time"

	"zipup/internal/config"
	"zipup/internal/zipup"
)

// NewConnectorFromConfig creates a Connector implementation based on the remote config type.
func NewConnectorFromConfig(cfg config.RemoteConfig) (zipup.Connector, error) {
	switch cfg.Type {
	case "github", "":
		return NewGitHubConnector(GitHubOptions{
			BaseURL:      cfg.BaseURL,
			UploadURL:    cfg.UploadURL,
			Organization: cfg.Organization,
			Timeout:      time.Duration(cfg.TimeoutSeconds) * time.Second,
		}), nil
	case "memory":
		return NewMemoryRemote(cfg.BaseURL, cfg.DefaultBranch), nil
	default:
		return nil, fmt.Errorf("unknown remote type: %s", cfg.Type)
	}
}
