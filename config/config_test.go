package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arueira/pjetrust/config"
	"github.com/arueira/pjetrust/credential"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir()) // keep a developer's pjetrust.yaml out of the test

	c, err := config.Load(nil, "")
	require.NoError(t, err)

	assert.Equal(t, "bundle", c.Credential.Kind)
	assert.Equal(t, 30, c.Credential.WarnDays)
	assert.Equal(t, "pje_default", c.Session.Name)
	assert.Equal(t, 8*time.Hour, c.Session.MaxAge)
	assert.Equal(t, "pt-BR", c.Session.Locale)
	assert.Equal(t, "America/Sao_Paulo", c.Session.Timezone)
	assert.Equal(t, "127.0.0.1:7451", c.API.Listen)
	assert.Equal(t, credential.KindLocalBundle, c.CredentialKind())
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "pjetrust.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
credential:
  kind: platform
  selector: "A3 token"
session:
  name: tribunal_tjsp
  max_age: 4h
api:
  listen: "127.0.0.1:9000"
`), 0o600))

	c, err := config.Load(nil, file)
	require.NoError(t, err)

	assert.Equal(t, "platform", c.Credential.Kind)
	assert.Equal(t, "A3 token", c.Credential.Selector)
	assert.Equal(t, credential.KindHardwareOrCloud, c.CredentialKind())
	assert.Equal(t, "tribunal_tjsp", c.Session.Name)
	assert.Equal(t, 4*time.Hour, c.Session.MaxAge)
	assert.Equal(t, "127.0.0.1:9000", c.API.Listen)
	// Untouched keys keep their defaults.
	assert.Equal(t, "pt-BR", c.Session.Locale)
}

func TestLoad_MalformedConfigFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "pjetrust.yaml")
	require.NoError(t, os.WriteFile(file, []byte("credential: [not a map"), 0o600))

	_, err := config.Load(nil, file)
	require.Error(t, err)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PJETRUST_SESSION_NAME", "from_env")
	t.Setenv("PJETRUST_CREDENTIAL_BUNDLE_PATH", "/tmp/cert.pfx")
	t.Setenv("PJETRUST_CREDENTIAL_BUNDLE_PASSWORD", "secret")
	t.Setenv("PJETRUST_CREDENTIAL_SELECTOR", "A3 token")
	t.Setenv("PJETRUST_AUDIT_PATH", "/tmp/audit.db")

	c, err := config.Load(nil, "")
	require.NoError(t, err)

	assert.Equal(t, "from_env", c.Session.Name)
	assert.Equal(t, "/tmp/cert.pfx", c.Credential.BundlePath)
	assert.Equal(t, "secret", c.Credential.BundlePassword)
	assert.Equal(t, "A3 token", c.Credential.Selector)
	assert.Equal(t, "/tmp/audit.db", c.Audit.Path)
}

func TestLoad_FlagOverrides(t *testing.T) {
	t.Chdir(t.TempDir())

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().Int("warn-days", 30, "")
	cmd.Flags().String("listen", "", "")
	require.NoError(t, cmd.Flags().Set("warn-days", "7"))
	require.NoError(t, cmd.Flags().Set("listen", "127.0.0.1:9999"))

	c, err := config.Load(cmd, "")
	require.NoError(t, err)
	assert.Equal(t, 7, c.Credential.WarnDays)
	assert.Equal(t, "127.0.0.1:9999", c.API.Listen)
}

func TestLoad_UnchangedFlagKeepsLowerLayers(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PJETRUST_API_LISTEN", "127.0.0.1:8888")

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("listen", "", "")

	c, err := config.Load(cmd, "")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8888", c.API.Listen)
}

func TestValidate(t *testing.T) {
	base := func() config.Config {
		return config.Config{
			Credential: config.CredentialConfig{Kind: "bundle"},
			Session:    config.SessionConfig{Name: "x", MaxAge: time.Hour},
		}
	}

	t.Run("session-only bundle config is fine", func(t *testing.T) {
		require.NoError(t, base().Validate())
	})

	t.Run("bundle path without password", func(t *testing.T) {
		c := base()
		c.Credential.BundlePath = "/tmp/cert.pfx"
		err := c.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bundle_password")
	})

	t.Run("bundle password without path", func(t *testing.T) {
		c := base()
		c.Credential.BundlePassword = "secret"
		err := c.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bundle_path")
	})

	t.Run("unknown kind", func(t *testing.T) {
		c := base()
		c.Credential.Kind = "smartwatch"
		require.Error(t, c.Validate())
	})

	t.Run("empty session name", func(t *testing.T) {
		c := base()
		c.Session.Name = ""
		require.Error(t, c.Validate())
	})

	t.Run("non-positive max age", func(t *testing.T) {
		c := base()
		c.Session.MaxAge = 0
		require.Error(t, c.Validate())
	})
}

func TestBundlePath_TildeExpansion(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	c := config.Config{Credential: config.CredentialConfig{
		BundlePath: "~" + string(os.PathSeparator) + filepath.Join("certs", "pje.pfx"),
	}}
	assert.Equal(t, filepath.Join(home, "certs", "pje.pfx"), c.BundlePath())

	c.Credential.BundlePath = "/abs/pje.pfx"
	assert.Equal(t, "/abs/pje.pfx", c.BundlePath())
}
