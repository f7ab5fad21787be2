// Package config loads the engine's linkboard.yml configuration.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration accepts "30s" style YAML values.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the top-level linkboard.yml configuration.
type Config struct {
	Redis  RedisConfig  `yaml:"redis"`
	Remote RemoteConfig `yaml:"remote"`
	Push   PushConfig   `yaml:"push"`
	Engine EngineConfig `yaml:"engine"`
}

// RedisConfig locates the cache and pub/sub tier.
type RedisConfig struct {
	URL       string `yaml:"url"`
	Namespace string `yaml:"namespace"`
}

// RemoteConfig locates the backend API.
type RemoteConfig struct {
	BaseURL string   `yaml:"base_url"`
	Token   string   `yaml:"token,omitempty"`
	Timeout Duration `yaml:"timeout,omitempty"`
}

// PushConfig selects the realtime transport.
type PushConfig struct {
	// Transport is "redis" or "websocket".
	Transport string `yaml:"transport"`
	// URL is the WebSocket endpoint root, required for the websocket
	// transport. The redis transport reuses the redis section.
	URL string `yaml:"url,omitempty"`
}

// EngineConfig holds the reconciliation tunables. Zero values take
// the package defaults at load time.
type EngineConfig struct {
	GraceWindow       Duration `yaml:"grace_window,omitempty"`
	LeaseTTL          Duration `yaml:"lease_ttl,omitempty"`
	MetadataThrottle  Duration `yaml:"metadata_throttle,omitempty"`
	GenericDebounce   Duration `yaml:"generic_debounce,omitempty"`
	ReconnectBase     Duration `yaml:"reconnect_base,omitempty"`
	ReconnectCap      Duration `yaml:"reconnect_cap,omitempty"`
	ImportConcurrency int      `yaml:"import_concurrency,omitempty"`
	EnrichTimeout     Duration `yaml:"enrich_timeout,omitempty"`
	CommitTimeout     Duration `yaml:"commit_timeout,omitempty"`
	StallThreshold    Duration `yaml:"stall_threshold,omitempty"`
	FinalWait         Duration `yaml:"final_wait,omitempty"`
	YieldDelay        Duration `yaml:"yield_delay,omitempty"`
}

// Default returns a configuration with every tunable at its default,
// pointing at local services.
func Default() *Config {
	cfg := &Config{
		Redis: RedisConfig{
			URL:       "redis://localhost:6379",
			Namespace: "default",
		},
		Remote: RemoteConfig{
			BaseURL: "http://localhost:3000",
		},
		Push: PushConfig{
			Transport: "redis",
		},
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Redis.Namespace == "" {
		c.Redis.Namespace = "default"
	}
	if c.Push.Transport == "" {
		c.Push.Transport = "redis"
	}
	if c.Remote.Timeout == 0 {
		c.Remote.Timeout = Duration(30 * time.Second)
	}
	e := &c.Engine
	if e.GraceWindow == 0 {
		e.GraceWindow = Duration(30 * time.Second)
	}
	if e.LeaseTTL == 0 {
		e.LeaseTTL = Duration(1500 * time.Millisecond)
	}
	if e.MetadataThrottle == 0 {
		e.MetadataThrottle = Duration(2 * time.Second)
	}
	if e.GenericDebounce == 0 {
		e.GenericDebounce = Duration(5 * time.Second)
	}
	if e.ReconnectBase == 0 {
		e.ReconnectBase = Duration(time.Second)
	}
	if e.ReconnectCap == 0 {
		e.ReconnectCap = Duration(30 * time.Second)
	}
	if e.ImportConcurrency == 0 {
		e.ImportConcurrency = 2
	}
	if e.EnrichTimeout == 0 {
		e.EnrichTimeout = Duration(10 * time.Second)
	}
	if e.CommitTimeout == 0 {
		e.CommitTimeout = Duration(3 * time.Second)
	}
	if e.StallThreshold == 0 {
		e.StallThreshold = Duration(60 * time.Second)
	}
	if e.FinalWait == 0 {
		e.FinalWait = Duration(10 * time.Second)
	}
	if e.YieldDelay == 0 {
		e.YieldDelay = Duration(500 * time.Millisecond)
	}
}

// applyEnv lets deployment environments override file values without
// editing the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv("LINKBOARD_TOKEN"); v != "" {
		c.Remote.Token = v
	}
	if v := os.Getenv("LINKBOARD_API_URL"); v != "" {
		c.Remote.BaseURL = v
	}
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if c.Redis.URL == "" {
		return fmt.Errorf("redis.url is required")
	}
	if c.Redis.Namespace == "" {
		return fmt.Errorf("redis.namespace is required")
	}
	if c.Remote.BaseURL == "" {
		return fmt.Errorf("remote.base_url is required")
	}

	switch c.Push.Transport {
	case "redis":
	case "websocket":
		if c.Push.URL == "" {
			return fmt.Errorf("push.url is required for the websocket transport")
		}
	default:
		return fmt.Errorf("unsupported push.transport: %s (expected: redis or websocket)", c.Push.Transport)
	}

	e := c.Engine
	for name, d := range map[string]Duration{
		"grace_window":      e.GraceWindow,
		"lease_ttl":         e.LeaseTTL,
		"metadata_throttle": e.MetadataThrottle,
		"generic_debounce":  e.GenericDebounce,
		"reconnect_base":    e.ReconnectBase,
		"reconnect_cap":     e.ReconnectCap,
		"enrich_timeout":    e.EnrichTimeout,
		"commit_timeout":    e.CommitTimeout,
		"stall_threshold":   e.StallThreshold,
		"final_wait":        e.FinalWait,
	} {
		if d <= 0 {
			return fmt.Errorf("engine.%s must be positive, got %v", name, d.Std())
		}
	}
	if e.ReconnectCap < e.ReconnectBase {
		return fmt.Errorf("engine.reconnect_cap (%v) must be >= engine.reconnect_base (%v)",
			e.ReconnectCap.Std(), e.ReconnectBase.Std())
	}
	if e.ImportConcurrency < 1 {
		return fmt.Errorf("engine.import_concurrency must be >= 1, got %d", e.ImportConcurrency)
	}
	if e.YieldDelay < 0 {
		return fmt.Errorf("engine.yield_delay must not be negative, got %v", e.YieldDelay.Std())
	}
	return nil
}

// Load reads and validates linkboard.yml from the specified path.
// Unknown keys are rejected. Environment variables REDIS_URL,
// LINKBOARD_TOKEN, and LINKBOARD_API_URL override file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	config, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return config, nil
}

// Parse decodes raw YAML into a validated Config.
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := unmarshalStrict(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	config.applyEnv()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

// unmarshalStrict rejects unknown keys so typos fail loudly instead of
// silently falling back to defaults. Empty input decodes to the zero
// Config.
func unmarshalStrict(data []byte, out interface{}) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && err != io.EOF {
		return err
	}
	return nil
}
