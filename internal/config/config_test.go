package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "outreach.db", cfg.Store.SQLitePath)
	assert.Equal(t, "https://api.instantly.ai/api/v2", cfg.Instantly.BaseURL)
	assert.Equal(t, 60, cfg.Instantly.TimeoutSecs)
	assert.Equal(t, "anthropic", cfg.Oracle.Provider)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	assert.Equal(t, 3, cfg.Provision.DefaultLeadCount)
	assert.Equal(t, "Etc/GMT+12", cfg.Provision.Timezone)
	assert.Equal(t, "list", cfg.Provision.Target)
	assert.False(t, cfg.Provision.SkipIfInWorkspace)
	assert.Equal(t, 3, cfg.Provision.JobPollIntervalSecs)
	assert.Equal(t, 40, cfg.Provision.JobPollAttempts)
	assert.Equal(t, 10, cfg.Enrichment.PollIntervalSecs)
	assert.Equal(t, 180, cfg.Enrichment.MaxWaitSecs)
	assert.Equal(t, 30, cfg.Followup.IntervalSecs)
	assert.Equal(t, 3, cfg.Batch.MaxConcurrent)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 5, cfg.Circuit.FailureThreshold)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/outreach
log:
  level: debug
  format: console
server:
  port: 9090
provision:
  sender_name: Dana
  accounts:
    - a@acme.io
    - b@acme.io
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "Dana", cfg.Provision.SenderName)
	assert.Equal(t, []string{"a@acme.io", "b@acme.io"}, cfg.Provision.Accounts)
	// Defaults still apply for unset values
	assert.Equal(t, 10, cfg.Enrichment.PollIntervalSecs)
}

func TestLoadFile_Explicit(t *testing.T) {
	chdirTemp(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("batch:\n  max_concurrent: 7\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Batch.MaxConcurrent)
}

func TestLoadFile_MissingExplicitFile(t *testing.T) {
	chdirTemp(t)
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("OUTREACH_STORE_DRIVER", "postgres")
	t.Setenv("OUTREACH_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("OUTREACH_SERVER_PORT", "3000")
	t.Setenv("OUTREACH_INSTANTLY_KEY", "inst-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "inst-key", cfg.Instantly.Key)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "outreach.log")
	err := InitLogger(LogConfig{Level: "info", Format: "json", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	zap.L().Info("rotated log line")
	_ = zap.L().Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "rotated log line")
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults(t *testing.T) *Config {
	t.Helper()
	chdirTemp(t)
	cfg, err := Load()
	require.NoError(t, err)
	cfg.Instantly.Key = "inst-key"
	cfg.Anthropic.Key = "sk-ant-key"
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validDefaults(t)
	for _, mode := range []string{"provision", "serve", "followup", "manage", "migrate"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestValidateProvision_MissingKeys(t *testing.T) {
	cfg := validDefaults(t)
	cfg.Instantly.Key = ""
	cfg.Anthropic.Key = ""

	err := cfg.Validate("provision")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "instantly.key is required")
	assert.Contains(t, err.Error(), "anthropic.key is required")
}

func TestValidateProvision_GeminiOracle(t *testing.T) {
	cfg := validDefaults(t)
	cfg.Oracle.Provider = "gemini"

	err := cfg.Validate("provision")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gemini.key is required")

	cfg.Gemini.Key = "g-key"
	assert.NoError(t, cfg.Validate("provision"))

	cfg.Oracle.Provider = "none"
	cfg.Gemini.Key = ""
	assert.NoError(t, cfg.Validate("provision"))
}

func TestValidate_PostgresNeedsURL(t *testing.T) {
	cfg := validDefaults(t)
	cfg.Store.Driver = "postgres"

	err := cfg.Validate("migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/outreach"
	assert.NoError(t, cfg.Validate("migrate"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults(t)
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be between 1 and 65535")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults(t)
	err := cfg.Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidate_StructTags(t *testing.T) {
	cfg := validDefaults(t)
	cfg.Store.Driver = "mysql"
	cfg.Provision.Target = "folder"
	cfg.Provision.Accounts = []string{"not-an-email"}
	cfg.Batch.MaxConcurrent = 51

	err := cfg.Validate("migrate")
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "config.store.driver failed oneof")
	assert.Contains(t, msg, "config.provision.target failed oneof")
	assert.Contains(t, msg, "config.provision.accounts[0] failed email")
	assert.Contains(t, msg, "config.batch.maxconcurrent failed lte")
}

func TestValidate_MaxWaitBelowInterval(t *testing.T) {
	cfg := validDefaults(t)
	cfg.Enrichment.MaxWaitSecs = 5

	err := cfg.Validate("migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gtefield")
}

func TestSecs(t *testing.T) {
	assert.Equal(t, 90*time.Second, Secs(90))
}
