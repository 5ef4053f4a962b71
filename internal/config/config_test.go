package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil, "")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "hangouts-sms-export", cfg.ServiceCenter)
	assert.True(t, cfg.FetchMedia)
	assert.Equal(t, 60*time.Second, cfg.MediaTimeout)
	assert.Equal(t, 10*time.Second, cfg.MediaMaxBackoff)
	assert.Empty(t, cfg.Output)
	assert.Zero(t, cfg.MessageLimit)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("HANGOUTS_SMS_LOGLEVEL", "debug")
	t.Setenv("HANGOUTS_SMS_SERVICE_CENTER", "my-sc")
	t.Setenv("HANGOUTS_SMS_MESSAGE_COUNT", "25")
	t.Setenv("HANGOUTS_SMS_FETCH_MEDIA", "false")

	cfg, err := Load(nil, "")
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "my-sc", cfg.ServiceCenter)
	assert.Equal(t, 25, cfg.MessageLimit)
	assert.False(t, cfg.FetchMedia)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
output: from-file.xml
media_timeout: 90s
contacts:
  gaia-123: "+15557778888"
  "Chase Bank": "24273"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(nil, path)
	require.NoError(t, err)

	assert.Equal(t, "from-file.xml", cfg.Output)
	assert.Equal(t, 90*time.Second, cfg.MediaTimeout)
	assert.Equal(t, "+15557778888", cfg.Contacts["gaia-123"])
	assert.Equal(t, "24273", cfg.Contacts["chase bank"]) // viper lowercases map keys
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	_, err := Load(nil, filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_FlagBeatsEnv(t *testing.T) {
	t.Setenv("HANGOUTS_SMS_OUTPUT", "env.xml")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.StringP("output", "o", "", "")
	flags.String("loglevel", "info", "")
	require.NoError(t, flags.Parse([]string{"--output", "cli.xml"}))

	cfg, err := Load(flags, "")
	require.NoError(t, err)

	assert.Equal(t, "cli.xml", cfg.Output)
}

func TestLoad_UnchangedFlagDoesNotMaskEnv(t *testing.T) {
	t.Setenv("HANGOUTS_SMS_LOGLEVEL", "warn")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("loglevel", "info", "")
	require.NoError(t, flags.Parse(nil))

	cfg, err := Load(flags, "")
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
}
