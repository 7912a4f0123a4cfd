package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sinkSettings struct {
	URL     string   `koanf:"url"`
	Token   Secret   `koanf:"token"`
	Timeout Duration `koanf:"timeout"`
}

func writeConfig(t *testing.T, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	require.NoError(t, os.Chmod(path, perm))
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, `
logger:
  default: app
  loggers:
    app:
      level: info
`, 0o600)

	tree, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "app", tree.String("logger.default"))
	assert.Equal(t, "info", tree.String("logger.loggers.app.level"))
	assert.Equal(t, []string{"app"}, tree.Keys("logger.loggers"))
}

func TestLoad_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logweave.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[logger]
default = "app"

[logger.loggers.app]
level = "info"

[[logger.loggers.app.transports]]
transport = "console"
format = ["timestamp", "json"]
`), 0o600))

	t.Setenv("LOGWEAVE_LOGGER__LOGGERS__APP__LEVEL", "warn")

	tree, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "app", tree.String("logger.default"))
	assert.Equal(t, "warn", tree.String("logger.loggers.app.level"))

	var app struct {
		Transports []struct {
			Transport string   `koanf:"transport"`
			Format    []string `koanf:"format"`
		} `koanf:"transports"`
	}
	require.NoError(t, tree.Unmarshal("logger.loggers.app", &app))
	require.Len(t, app.Transports, 1)
	assert.Equal(t, "console", app.Transports[0].Transport)
	assert.Equal(t, []string{"timestamp", "json"}, app.Transports[0].Format)
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logweave.toml")
	require.NoError(t, os.WriteFile(path, []byte("[logger\ndefault = "), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config file")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
logger:
  default: app
  disable_console: false
`, 0o600)

	t.Setenv("LOGWEAVE_LOGGER__DEFAULT", "audit")
	t.Setenv("LOGWEAVE_LOGGER__DISABLE_CONSOLE", "true")

	tree, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "audit", tree.String("logger.default"))
	assert.True(t, tree.Bool("logger.disable_console"))
}

func TestLoad_EmptyPathReadsEnvOnly(t *testing.T) {
	t.Setenv("LOGWEAVE_LOGGER__DEFAULT", "app")

	tree, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "app", tree.String("logger.default"))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open config file")
}

func TestLoad_RejectsWorldWritable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission model differs on windows")
	}
	path := writeConfig(t, "logger: {}\n", 0o666)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "world-writable")
}

func TestLoad_RejectsLargeFile(t *testing.T) {
	big := "logger:\n  default: " + strings.Repeat("a", maxConfigFileSize) + "\n"
	path := writeConfig(t, big, 0o600)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestLoadBytes_InvalidYAML(t *testing.T) {
	_, err := LoadBytes([]byte("logger: [unclosed"))
	require.Error(t, err)
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"LOGWEAVE_LOGGER__DEFAULT", "logger.default"},
		{"LOGWEAVE_LOGGER__DISABLE_CONSOLE", "logger.disable_console"},
		{"LOGWEAVE_LOGGER__LOGGERS__APP__LEVEL", "logger.loggers.app.level"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, envKey(tt.in))
		})
	}
}

func TestTree_UnmarshalTextTypes(t *testing.T) {
	tree, err := LoadBytes([]byte(`
sink:
  url: http://localhost:9000/logs
  token: s3cr3t
  timeout: 250ms
`))
	require.NoError(t, err)

	var s sinkSettings
	require.NoError(t, tree.Unmarshal("sink", &s))

	assert.Equal(t, "http://localhost:9000/logs", s.URL)
	assert.Equal(t, "s3cr3t", s.Token.Value())
	assert.Equal(t, 250*time.Millisecond, s.Timeout.Duration())
}

func TestFromMap(t *testing.T) {
	tree, err := FromMap(map[string]any{
		"logger": map[string]any{"default": "app"},
	})
	require.NoError(t, err)
	assert.True(t, tree.Exists("logger.default"))
	assert.Equal(t, "app", tree.String("logger.default"))
}
