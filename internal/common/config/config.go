// Package config loads the optional per-repository action configuration.
//
// A `.fedc.toml` file next to the manifest can override the checker binary,
// add extra checker flags, and point the runtime checker at a different
// flatpak remote. A missing file means defaults; a present but unparsable
// file is fatal.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// ConfigFileName is looked up in the manifest's directory.
const ConfigFileName = ".fedc.toml"

// Default flatpak remote queried by the runtime checker.
const (
	DefaultRemoteName = "flathub"
	DefaultRemoteURL  = "https://flathub.org/repo/flathub.flatpakrepo"
)

// ErrInvalidConfig is returned when .fedc.toml exists but cannot be parsed
var ErrInvalidConfig = errors.New("invalid .fedc.toml")

// CheckerConfig overrides how the external checker is invoked.
type CheckerConfig struct {
	// Binary is the checker executable; empty means PATH lookup of the default
	Binary string `toml:"binary,omitempty"`
	// ExtraFlags are appended after the assembled option list
	ExtraFlags []string `toml:"extra_flags,omitempty"`
}

// RemoteConfig points the runtime checker at a flatpak remote.
type RemoteConfig struct {
	Name string `toml:"name,omitempty"`
	URL  string `toml:"url,omitempty"`
}

// ActionConfig is the root of .fedc.toml.
type ActionConfig struct {
	Checker CheckerConfig `toml:"checker"`
	Remote  RemoteConfig  `toml:"remote"`
}

// Default returns the configuration used when no .fedc.toml exists.
func Default() *ActionConfig {
	return &ActionConfig{
		Remote: RemoteConfig{
			Name: DefaultRemoteName,
			URL:  DefaultRemoteURL,
		},
	}
}

// Load reads .fedc.toml from dir. A missing file yields the defaults.
func Load(dir string) (*ActionConfig, error) {
	return LoadFrom(filepath.Join(dir, ConfigFileName))
}

// LoadFrom reads configuration from a specific file path.
func LoadFrom(path string) (*ActionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	// Partial remote overrides keep the remaining defaults
	if cfg.Remote.Name == "" {
		cfg.Remote.Name = DefaultRemoteName
	}
	if cfg.Remote.URL == "" {
		cfg.Remote.URL = DefaultRemoteURL
	}

	return cfg, nil
}
