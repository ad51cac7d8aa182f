// Package config loads the YAML configuration file spec.md §6 describes:
// auth.cookie, auth.auth_header, downloading_settings.target_directory. On
// first run (file missing) it writes a commented sample file and returns a
// ConfigError so the caller can print guidance and exit, the same
// auto-creation-as-a-startup-side-effect spec.md §9 says to retain at the
// edges while keeping the core (everything past Load) accepting only
// fully-resolved values.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfigError wraps a missing or invalid config file (spec.md §7: fatal,
// "the program writes a sample config to disk and exits non-zero with
// guidance").
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Auth holds the platform credentials the user supplies once (spec.md §9:
// "credentials are supplied once via header + cookie and are not
// refreshed" — OAuth is explicitly out of scope).
type Auth struct {
	Cookie     string `yaml:"cookie"`
	AuthHeader string `yaml:"auth_header"`
}

// DownloadingSettings holds the one setting spec.md's config section names.
type DownloadingSettings struct {
	TargetDirectory string `yaml:"target_directory"`
}

// Config is the fully-parsed configuration file.
type Config struct {
	Auth                Auth                `yaml:"auth"`
	DownloadingSettings DownloadingSettings `yaml:"downloading_settings"`
}

const sampleFile = `# boosty-downloader configuration
#
# auth.cookie and auth.auth_header are copied from an authenticated browser
# session against the platform (DevTools -> Network -> any request to
# api.boosty.to -> Request Headers).
auth:
  cookie: ""
  auth_header: ""

downloading_settings:
  # Root directory downloaded authors are stored under. Each author gets its
  # own subdirectory.
  target_directory: "./downloads"
`

// EnsureSampleFile writes sampleFile to path if nothing exists there yet.
// Returns true if it created the file.
func EnsureSampleFile(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}
	if err := os.WriteFile(path, []byte(sampleFile), 0o600); err != nil {
		return false, err
	}
	return true, nil
}

// Load reads and validates the config file at path. If the file does not
// exist, it is auto-created (spec.md §9) and a ConfigError is returned so
// the caller can print guidance and exit non-zero without proceeding on an
// empty config.
func Load(path string) (*Config, error) {
	created, err := EnsureSampleFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	if created {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("wrote a sample config; fill in auth.cookie / auth.auth_header and re-run")}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("invalid YAML: %w", err)}
	}

	if cfg.Auth.Cookie == "" && cfg.Auth.AuthHeader == "" {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("auth.cookie and auth.auth_header are both empty")}
	}
	if cfg.DownloadingSettings.TargetDirectory == "" {
		cfg.DownloadingSettings.TargetDirectory = "./downloads"
	}

	return &cfg, nil
}
