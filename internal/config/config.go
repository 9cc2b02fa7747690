package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for zipup.
type Config struct {
	Owner      string           `toml:"owner"`
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Remote     RemoteConfig     `toml:"remote"`
	Upload     UploadConfig     `toml:"upload"`
	Source     SourceConfig     `toml:"source"`
	Credential CredentialConfig `toml:"credential"`
	Database   DatabaseConfig   `toml:"database"`
}

// RemoteConfig selects the Git object API uploads are sent to.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type RemoteConfig struct {
	Type string `toml:"type"` // "github" (default) or "memory"

	// GitHub-specific fields (only used when Type == "github")
	BaseURL        string `toml:"base_url,omitempty"`     // API root for GitHub Enterprise
	UploadURL      string `toml:"upload_url,omitempty"`   // defaults to base_url
	Organization   string `toml:"organization,omitempty"` // create under an org instead of the user
	TimeoutSeconds int    `toml:"timeout_seconds"`        // HTTP client timeout; 0 disables it

	Private       bool   `toml:"private"`
	DefaultBranch string `toml:"default_branch,omitempty"` // fallback when the remote reports none
}

// UploadConfig tunes the upload pipeline.
type UploadConfig struct {
	BlobConcurrency   int      `toml:"blob_concurrency"`         // parallel blob uploads; 1 keeps progress strictly ordered
	CommitMessage     string   `toml:"commit_message,omitempty"` // defaults to "Initial commit from ZIP upload"
	MaxFileSize       int64    `toml:"max_file_size"`            // per archive member, decompressed bytes
	Ignore            []string `toml:"ignore"`                   // archive members to leave out, e.g. "__MACOSX/"
	ProgressTimeoutMS int      `toml:"progress_timeout_ms"`      // how long to wait for progress output to drain
}

// SourceConfig configures where archives are loaded from.
type SourceConfig struct {
	MaxArchiveSize int64 `toml:"max_archive_size"` // bytes; must be positive

	// S3-specific fields (only used for s3://bucket/key locations)
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"` // S3-compatible endpoint, enables path-style addressing
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
}

// CredentialConfig configures where the access token is stored.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type CredentialConfig struct {
	Type      string `toml:"type"`                 // "age" (default) or "memory"
	TokenPath string `toml:"token_path,omitempty"` // only used for type=age
}

// DatabaseConfig represents configuration for the upload history database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

const (
	DefaultTimeoutSeconds    = 60
	DefaultBlobConcurrency   = 1
	DefaultMaxFileSize       = 100 * 1024 * 1024
	DefaultMaxArchiveSize    = 512 * 1024 * 1024
	DefaultProgressTimeoutMS = 5000
)

// NewConfig creates a new Config for owner with defaults rooted at baseDir.
func NewConfig(owner, baseDir string) *Config {
	return &Config{
		Owner:   owner,
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Remote: RemoteConfig{
			Type:           "github",
			TimeoutSeconds: DefaultTimeoutSeconds,
		},
		Upload: UploadConfig{
			BlobConcurrency:   DefaultBlobConcurrency,
			MaxFileSize:       DefaultMaxFileSize,
			ProgressTimeoutMS: DefaultProgressTimeoutMS,
		},
		Source: SourceConfig{
			MaxArchiveSize: DefaultMaxArchiveSize,
		},
		Credential: CredentialConfig{
			Type:      "age",
			TokenPath: filepath.Join(baseDir, "token.age"),
		},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
	}
}

// Validate checks values that would otherwise fail deep inside an upload.
func (c *Config) Validate() error {
	if c.Upload.BlobConcurrency < 0 {
		return fmt.Errorf("upload.blob_concurrency must not be negative, got %d", c.Upload.BlobConcurrency)
	}
	if c.Upload.MaxFileSize < 0 {
		return fmt.Errorf("upload.max_file_size must not be negative, got %d", c.Upload.MaxFileSize)
	}
	if c.Source.MaxArchiveSize <= 0 {
		return fmt.Errorf("source.max_archive_size must be positive, got %d", c.Source.MaxArchiveSize)
	}
	if c.Remote.TimeoutSeconds < 0 {
		return fmt.Errorf("remote.timeout_seconds must not be negative, got %d", c.Remote.TimeoutSeconds)
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
