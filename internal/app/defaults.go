package app

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	EnvConfigPath = "ZIPUP_CONFIG_PATH"
	EnvHome       = "ZIPUP_HOME"
)

// Defaults holds the paths zipup uses before a config file says otherwise.
type Defaults struct {
	ConfigPath string
	BaseDir    string
	LogDir     string
}

// GetDefaults resolves default paths. ZIPUP_CONFIG_PATH and ZIPUP_HOME win;
// otherwise XDG_CONFIG_HOME and XDG_DATA_HOME are used, falling back to
// ~/.config/zipup.toml and ~/.local/share/zipup.
func GetDefaults() (Defaults, error) {
	configPath, err := resolvePath(EnvConfigPath, "XDG_CONFIG_HOME", ".config", "zipup.toml")
	if err != nil {
		return Defaults{}, err
	}
	baseDir, err := resolvePath(EnvHome, "XDG_DATA_HOME", filepath.Join(".local", "share"), "zipup")
	if err != nil {
		return Defaults{}, err
	}
	return Defaults{
		ConfigPath: configPath,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
	}, nil
}

func resolvePath(override, xdgVar, homeRel, name string) (string, error) {
	if path := os.Getenv(override); path != "" {
		return path, nil
	}
	if dir := os.Getenv(xdgVar); filepath.IsAbs(dir) {
		return filepath.Join(dir, name), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, homeRel, name), nil
}
