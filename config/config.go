// Package config loads and validates the inbound configuration for the
// trust manager. Precedence, lowest to highest: built-in defaults, a
// pjetrust.yaml config file, PJETRUST_* environment variables, CLI flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/arueira/pjetrust/credential"
)

// CredentialConfig selects and parameterizes the credential source.
type CredentialConfig struct {
	// Kind is "bundle" (local PKCS#12 file) or "platform" (hardware/cloud
	// identity in the system store).
	Kind           string `mapstructure:"kind"`
	BundlePath     string `mapstructure:"bundle_path"`
	BundlePassword string `mapstructure:"bundle_password"`
	Selector       string `mapstructure:"selector"`
	WarnDays       int    `mapstructure:"warn_days"`
}

// SessionConfig parameterizes the persisted browser session.
type SessionConfig struct {
	Name     string        `mapstructure:"name"`
	Dir      string        `mapstructure:"dir"`
	MaxAge   time.Duration `mapstructure:"max_age"`
	Locale   string        `mapstructure:"locale"`
	Timezone string        `mapstructure:"timezone"`
}

// AuditConfig parameterizes the local audit log.
type AuditConfig struct {
	// Path of the BBolt audit database; empty disables auditing.
	Path string `mapstructure:"path"`
}

// APIConfig parameterizes the local status/control HTTP surface.
type APIConfig struct {
	Listen string `mapstructure:"listen"`
}

// Config is the validated inbound configuration.
type Config struct {
	Credential CredentialConfig `mapstructure:"credential"`
	Session    SessionConfig    `mapstructure:"session"`
	Audit      AuditConfig      `mapstructure:"audit"`
	API        APIConfig        `mapstructure:"api"`
}

const (
	kindBundle   = "bundle"
	kindPlatform = "platform"
)

// Defaults returns the built-in configuration defaults. Every key is
// listed, including the empty-valued ones: viper's Unmarshal only walks
// keys it has seen, so a key with no default would be invisible to
// PJETRUST_* environment overrides.
func Defaults() map[string]any {
	return map[string]any{
		"credential.kind":            kindBundle,
		"credential.bundle_path":     "",
		"credential.bundle_password": "",
		"credential.selector":        "",
		"credential.warn_days":       30,
		"session.name":               "pje_default",
		"session.dir":                defaultSessionDir(),
		"session.max_age":            8 * time.Hour,
		"session.locale":             "pt-BR",
		"session.timezone":           "America/Sao_Paulo",
		"audit.path":                 "",
		"api.listen":                 "127.0.0.1:7451",
	}
}

func defaultSessionDir() string {
	if cache, err := os.UserCacheDir(); err == nil {
		return filepath.Join(cache, "pjetrust", "sessions")
	}
	return filepath.Join(".", "sessions")
}

// Load builds the configuration for cmd. Flags registered on cmd override
// environment variables, which override the config file. A missing config
// file is fine; a malformed one is not.
func Load(cmd *cobra.Command, configFile string) (Config, error) {
	var c Config
	v := viper.New()

	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}

	v.SetConfigName("pjetrust")
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	}
	if userDir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(userDir, "pjetrust"))
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return c, fmt.Errorf("reading config file: %w", err)
		}
	}

	v.AutomaticEnv()
	v.AllowEmptyEnv(true)
	v.SetEnvPrefix("pjetrust")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if cmd != nil {
		// Flag names differ from the nested config keys, so each known
		// flag is bound to its key explicitly. A blanket BindPFlags would
		// register the raw flag names and never reach the nested keys.
		for key, name := range map[string]string{
			"credential.warn_days": "warn-days",
			"api.listen":           "listen",
		} {
			if f := cmd.Flags().Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return c, err
				}
			}
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("parsing configuration: %w", err)
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// Validate enforces boundary constraints before anything touches the
// filesystem or the platform store.
func (c Config) Validate() error {
	switch c.Credential.Kind {
	case kindBundle:
		// An entirely unconfigured bundle is allowed: session-only setups
		// never touch the credential store. Half a configuration is a
		// mistake worth failing on at startup.
		if c.Credential.BundlePath != "" && c.Credential.BundlePassword == "" {
			return fmt.Errorf("credential.bundle_password is required when credential.bundle_path is set")
		}
		if c.Credential.BundlePath == "" && c.Credential.BundlePassword != "" {
			return fmt.Errorf("credential.bundle_path is required when credential.bundle_password is set")
		}
	case kindPlatform:
		// Selector optional; no local key material involved.
	default:
		return fmt.Errorf("credential.kind must be %q or %q, got %q", kindBundle, kindPlatform, c.Credential.Kind)
	}
	if c.Session.Name == "" {
		return fmt.Errorf("session.name must not be empty")
	}
	if c.Session.MaxAge <= 0 {
		return fmt.Errorf("session.max_age must be positive, got %s", c.Session.MaxAge)
	}
	return nil
}

// CredentialKind maps the config selector onto the credential package's kind.
func (c Config) CredentialKind() credential.Kind {
	if c.Credential.Kind == kindPlatform {
		return credential.KindHardwareOrCloud
	}
	return credential.KindLocalBundle
}

// BundlePath returns the bundle path with a leading ~ expanded.
func (c Config) BundlePath() string {
	path := c.Credential.BundlePath
	if strings.HasPrefix(path, "~"+string(os.PathSeparator)) || path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
