package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"workgov/internal/config"
)

// UserConfig represents ~/.workgov/config.yaml.
type UserConfig struct {
	CurrentProfile string             `yaml:"current-profile"`
	Profiles       map[string]Profile `yaml:"profiles"`
}

// Profile is one named environment: where the metastore, gold data, and
// catalog live.
type Profile struct {
	MetaDBPath string `yaml:"meta-db-path,omitempty"`
	DataDir    string `yaml:"data-dir,omitempty"`
	CatalogDir string `yaml:"catalog-dir,omitempty"`
	ListenAddr string `yaml:"listen-addr,omitempty"`
	LogLevel   string `yaml:"log-level,omitempty"`
}

// ActiveProfile returns the profile selected by the override, falling back
// to current-profile.
func (c *UserConfig) ActiveProfile(override string) Profile {
	name := c.CurrentProfile
	if override != "" {
		name = override
	}
	if p, ok := c.Profiles[name]; ok {
		return p
	}
	return Profile{}
}

// ConfigDir returns the path to ~/.workgov/.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".workgov")
}

// ConfigPath returns the path to ~/.workgov/config.yaml.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// LoadUserConfig reads ~/.workgov/config.yaml.
func LoadUserConfig() (*UserConfig, error) {
	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg UserConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]Profile{}
	}
	return &cfg, nil
}

// SaveUserConfig writes ~/.workgov/config.yaml.
func SaveUserConfig(cfg *UserConfig) error {
	if err := os.MkdirAll(ConfigDir(), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(ConfigPath(), data, 0o600)
}

// applyProfile pushes profile values into the environment so the shared
// env config picks them up. Precedence: env > profile > default.
func applyProfile(name string) error {
	userCfg, err := LoadUserConfig()
	if err != nil {
		if name != "" && !os.IsNotExist(unwrapPathError(err)) {
			return err
		}
		return nil // config file is optional
	}
	p := userCfg.ActiveProfile(name)

	setIfUnset := func(key, value string) {
		if value != "" && os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
	setIfUnset("META_DB_PATH", p.MetaDBPath)
	setIfUnset("DATA_DIR", p.DataDir)
	setIfUnset("CATALOG_DIR", p.CatalogDir)
	setIfUnset("LISTEN_ADDR", p.ListenAddr)
	setIfUnset("LOG_LEVEL", p.LogLevel)
	return nil
}

func unwrapPathError(err error) error {
	if pe, ok := err.(interface{ Unwrap() error }); ok {
		return pe.Unwrap()
	}
	return err
}

// loadConfig resolves the effective configuration after profile and env
// application.
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	return config.LoadFromEnv()
}
