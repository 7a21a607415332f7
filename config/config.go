package config

import (
	"bytes"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/outofforest/walletgate/keys"
)

// EnvPrefix is the prefix of environment variables overriding the config.
const EnvPrefix = "WALLETGATE_"

// Config is the config of walletgate daemon.
type Config struct {
	Settings `yaml:",inline"`

	// Registry is loaded from the file only.
	Registry RegistryConfig `yaml:"registry"`
}

// Settings are the parameters which might be overridden by environment variables.
type Settings struct {
	Websocket WebsocketConfig `yaml:"websocket" envPrefix:"WEBSOCKET_"`
	Resonance ResonanceConfig `yaml:"resonance" envPrefix:"RESONANCE_"`

	// MetricsAddress is the address prometheus metrics are exposed on. Empty disables the endpoint.
	MetricsAddress string `yaml:"metricsAddress" env:"METRICS_ADDRESS"`

	MaxMessageSize        uint64 `yaml:"maxMessageSize" env:"MAX_MESSAGE_SIZE"`
	MaxConcurrentRequests int    `yaml:"maxConcurrentRequests" env:"MAX_CONCURRENT_REQUESTS"`
	WorkerPoolSize        int    `yaml:"workerPoolSize" env:"WORKER_POOL_SIZE"`

	// RateLimit limits frames per second read from single connection. Zero disables the limit.
	RateLimit float64 `yaml:"rateLimit" env:"RATE_LIMIT"`
	RateBurst int     `yaml:"rateBurst" env:"RATE_BURST"`

	AuthorizationTimeout time.Duration `yaml:"authorizationTimeout" env:"AUTHORIZATION_TIMEOUT"`

	Health HealthConfig `yaml:"health" envPrefix:"HEALTH_"`

	// PrivateKey is the base58 seed or bip39 mnemonic of the server key.
	PrivateKey string `yaml:"privateKey" env:"PRIVATE_KEY"`
}

// WebsocketConfig configures websocket listener.
type WebsocketConfig struct {
	Address string `yaml:"address" env:"ADDRESS"`
	Path    string `yaml:"path" env:"PATH"`
}

// ResonanceConfig configures resonance listener. Empty address disables it.
type ResonanceConfig struct {
	Address string `yaml:"address" env:"ADDRESS"`
}

// HealthConfig configures health checks.
type HealthConfig struct {
	Interval            time.Duration `yaml:"interval" env:"INTERVAL"`
	MemoryYellowPercent float64       `yaml:"memoryYellowPercent" env:"MEMORY_YELLOW_PERCENT"`
	MemoryRedPercent    float64       `yaml:"memoryRedPercent" env:"MEMORY_RED_PERCENT"`
}

// Default returns default config.
func Default() Config {
	return Config{Settings: Settings{
		Websocket: WebsocketConfig{
			Address: ":8080",
			Path:    "/",
		},
		MetricsAddress:        ":9090",
		MaxMessageSize:        1024 * 1024,
		MaxConcurrentRequests: 1000,
		WorkerPoolSize:        runtime.NumCPU(),
		RateBurst:             1,
		AuthorizationTimeout:  2 * time.Minute,
		Health: HealthConfig{
			Interval:            30 * time.Second,
			MemoryYellowPercent: 80,
			MemoryRedPercent:    95,
		},
	}}
}

// Load loads config. Defaults are overridden by the yaml file, if path is not empty,
// and then by environment variables.
func Load(path string) (Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.WithStack(err)
		}
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, errors.Wrapf(err, "decoding config file %q failed", path)
		}
	}

	if err := env.ParseWithOptions(&config.Settings, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, errors.Wrap(err, "parsing environment failed")
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Validate validates the config.
func (c Config) Validate() error {
	switch {
	case c.Websocket.Address == "" && c.Resonance.Address == "":
		return errors.New("no listener configured")
	case c.Websocket.Address != "" && !strings.HasPrefix(c.Websocket.Path, "/"):
		return errors.Errorf("websocket path %q must start with /", c.Websocket.Path)
	case c.MaxMessageSize == 0:
		return errors.New("max message size must be positive")
	case c.MaxConcurrentRequests <= 0:
		return errors.New("max concurrent requests must be positive")
	case c.WorkerPoolSize <= 0:
		return errors.New("worker pool size must be positive")
	case c.RateLimit < 0:
		return errors.New("rate limit must not be negative")
	case c.AuthorizationTimeout < 0:
		return errors.New("authorization timeout must not be negative")
	case c.Health.MemoryYellowPercent > c.Health.MemoryRedPercent:
		return errors.New("memory yellow threshold exceeds red threshold")
	}
	return nil
}

// Key returns the private key of the server.
func (c Config) Key() (keys.PrivateKey, error) {
	if c.PrivateKey == "" {
		return keys.PrivateKey{}, errors.New("private key is not configured")
	}
	key := strings.TrimSpace(c.PrivateKey)
	if strings.Contains(key, " ") {
		return keys.FromMnemonic(key)
	}
	return keys.FromString(key)
}
