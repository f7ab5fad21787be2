package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "linkboard.yml")

	validConfig := `redis:
  url: "redis://cache.internal:6379"
  namespace: "prod"
remote:
  base_url: "https://linkboard.example.com"
  token: "file-token"
push:
  transport: "redis"
engine:
  grace_window: 45s
  import_concurrency: 4
`
	err := os.WriteFile(configPath, []byte(validConfig), 0644)
	require.NoError(t, err)

	config, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "redis://cache.internal:6379", config.Redis.URL)
	assert.Equal(t, "prod", config.Redis.Namespace)
	assert.Equal(t, "https://linkboard.example.com", config.Remote.BaseURL)
	assert.Equal(t, 45*time.Second, config.Engine.GraceWindow.Std())
	assert.Equal(t, 4, config.Engine.ImportConcurrency)
}

func TestLoad_FileNotFound(t *testing.T) {
	config, err := Load("/nonexistent/linkboard.yml")
	assert.Nil(t, config)
	assert.ErrorContains(t, err, "failed to read config")
}

func TestParse_DefaultsApplied(t *testing.T) {
	config, err := Parse([]byte(`remote:
  base_url: "https://linkboard.example.com"
redis:
  url: "redis://localhost:6379"
`))
	require.NoError(t, err)

	assert.Equal(t, "default", config.Redis.Namespace)
	assert.Equal(t, "redis", config.Push.Transport)
	assert.Equal(t, 30*time.Second, config.Engine.GraceWindow.Std())
	assert.Equal(t, 1500*time.Millisecond, config.Engine.LeaseTTL.Std())
	assert.Equal(t, 2*time.Second, config.Engine.MetadataThrottle.Std())
	assert.Equal(t, 5*time.Second, config.Engine.GenericDebounce.Std())
	assert.Equal(t, 2, config.Engine.ImportConcurrency)
	assert.Equal(t, 60*time.Second, config.Engine.StallThreshold.Std())
}

func TestParse_UnknownKeyRejected(t *testing.T) {
	_, err := Parse([]byte(`redis:
  url: "redis://localhost:6379"
remote:
  base_url: "https://linkboard.example.com"
  tokne: "typo"
`))
	assert.ErrorContains(t, err, "failed to parse YAML")
}

func TestParse_InvalidDuration(t *testing.T) {
	_, err := Parse([]byte(`redis:
  url: "redis://localhost:6379"
remote:
  base_url: "https://linkboard.example.com"
engine:
  grace_window: "soon"
`))
	assert.ErrorContains(t, err, "invalid duration")
}

func TestValidate(t *testing.T) {
	t.Run("default config is valid", func(t *testing.T) {
		assert.NoError(t, Default().Validate())
	})

	t.Run("missing remote base_url", func(t *testing.T) {
		cfg := Default()
		cfg.Remote.BaseURL = ""
		assert.ErrorContains(t, cfg.Validate(), "remote.base_url is required")
	})

	t.Run("missing redis url", func(t *testing.T) {
		cfg := Default()
		cfg.Redis.URL = ""
		assert.ErrorContains(t, cfg.Validate(), "redis.url is required")
	})

	t.Run("unsupported transport", func(t *testing.T) {
		cfg := Default()
		cfg.Push.Transport = "carrier-pigeon"
		assert.ErrorContains(t, cfg.Validate(), "unsupported push.transport")
	})

	t.Run("websocket transport requires url", func(t *testing.T) {
		cfg := Default()
		cfg.Push.Transport = "websocket"
		assert.ErrorContains(t, cfg.Validate(), "push.url is required")

		cfg.Push.URL = "wss://linkboard.example.com/events"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("non-positive tunable", func(t *testing.T) {
		cfg := Default()
		cfg.Engine.GraceWindow = Duration(-time.Second)
		assert.ErrorContains(t, cfg.Validate(), "engine.grace_window must be positive")
	})

	t.Run("cap below base", func(t *testing.T) {
		cfg := Default()
		cfg.Engine.ReconnectBase = Duration(10 * time.Second)
		cfg.Engine.ReconnectCap = Duration(time.Second)
		assert.ErrorContains(t, cfg.Validate(), "reconnect_cap")
	})

	t.Run("zero import concurrency", func(t *testing.T) {
		cfg := Default()
		cfg.Engine.ImportConcurrency = 0
		assert.ErrorContains(t, cfg.Validate(), "import_concurrency")
	})
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://env.internal:6379")
	t.Setenv("LINKBOARD_TOKEN", "env-token")

	config, err := Parse([]byte(`redis:
  url: "redis://file.internal:6379"
remote:
  base_url: "https://linkboard.example.com"
  token: "file-token"
`))
	require.NoError(t, err)
	assert.Equal(t, "redis://env.internal:6379", config.Redis.URL)
	assert.Equal(t, "env-token", config.Remote.Token)
}
