package configs

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"MISP_URL", "MISP_KEY", "MISP_VERIFYCERT",
	"MISPERER_MISP_URL", "MISPERER_MISP_KEY", "MISPERER_MISP_VERIFYCERT",
	"MISPERER_CONFIG_FILE", "CONFIG_FILE", "MISPERER_READ_ONLY", "READ_ONLY",
	"MISPERER_LOG_LEVEL", "LOG_LEVEL", "MISPERER_HTTP_CLIENT_TIMEOUT", "HTTP_CLIENT_TIMEOUT",
}

// clearEnv unsets keys for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv("MISP_URL", "https://misp.example")
	t.Setenv("MISP_KEY", "secret")
	t.Setenv("MISP_VERIFYCERT", "false")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://misp.example", cfg.MISPURL)
	assert.Equal(t, "secret", cfg.MISPKey)
	assert.False(t, cfg.VerifyCert())
	assert.False(t, cfg.ReadOnly)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 30*time.Second, cfg.HTTPClientTimeout)
	assert.Equal(t, slog.LevelInfo, cfg.ParsedLogLevel())
}

func TestLoad_PrefixedNamesWin(t *testing.T) {
	clearEnv(t)
	t.Setenv("MISP_URL", "https://alias.example")
	t.Setenv("MISPERER_MISP_URL", "https://prefixed.example")
	t.Setenv("MISP_KEY", "secret")
	t.Setenv("MISP_VERIFYCERT", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://prefixed.example", cfg.MISPURL)
	assert.True(t, cfg.VerifyCert())
}

func TestLoad_FileThenEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "misperer.yaml", `
misp:
  url: https://file.example
  key: file-key
  verify_cert: false
read_only: true
`)
	t.Setenv("MISPERER_CONFIG_FILE", path)
	t.Setenv("MISPERER_MISP_KEY", "env-key")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://file.example", cfg.MISPURL)
	assert.Equal(t, "env-key", cfg.MISPKey)
	assert.False(t, cfg.VerifyCert())
	assert.True(t, cfg.ReadOnly)
}

func TestLoad_DotEnvFile(t *testing.T) {
	clearEnv(t)
	envFile := writeFile(t, ".env", "MISP_URL=https://dotenv.example\nMISP_KEY=dotenv-key\nMISP_VERIFYCERT=true\n")
	t.Setenv("MISP_KEY", "process-key")

	cfg, err := Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, "https://dotenv.example", cfg.MISPURL)
	assert.Equal(t, "process-key", cfg.MISPKey, "process environment wins over .env")
}

func TestLoad_Failures(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(t *testing.T)
		envFile   string
		wantInErr []string
	}{
		{
			name:      "Nothing configured",
			setup:     func(t *testing.T) {},
			envFile:   filepath.Join(os.TempDir(), "misperer-no-such.env"),
			wantInErr: []string{"MISP_URL is required", "MISP_KEY is required", "MISP_VERIFYCERT is required"},
		},
		{
			name: "Relative URL",
			setup: func(t *testing.T) {
				t.Setenv("MISP_URL", "misp.local")
				t.Setenv("MISP_KEY", "k")
				t.Setenv("MISP_VERIFYCERT", "true")
			},
			wantInErr: []string{"not an absolute http(s) URL"},
		},
		{
			name: "Unparseable boolean",
			setup: func(t *testing.T) {
				t.Setenv("MISP_VERIFYCERT", "maybe")
			},
			wantInErr: []string{"MISP_VERIFYCERT"},
		},
		{
			name: "Missing config file",
			setup: func(t *testing.T) {
				t.Setenv("MISPERER_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
			},
			wantInErr: []string{"failed to read config file"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			tt.setup(t)

			cfg, err := Load(tt.envFile)

			require.Error(t, err)
			assert.Nil(t, cfg)
			for _, want := range tt.wantInErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestConfig_ParsedLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		cfg := Config{LogLevel: in}
		assert.Equal(t, want, cfg.ParsedLogLevel(), in)
	}
}
