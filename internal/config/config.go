package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Plex     PlexConfig     `mapstructure:"plex"`
	Arr      ArrConfig      `mapstructure:"arr"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Path   string `mapstructure:"path"`
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// PlexConfig holds the Plex token and the servers consulted during the
// exists-on-plex short-circuit.
type PlexConfig struct {
	Token   string             `mapstructure:"token"`
	Servers []PlexServerConfig `mapstructure:"servers"`
	// CheckExistence enables the exists-on-plex short-circuit during
	// dispatch.
	CheckExistence bool `mapstructure:"check_existence"`
}

// PlexServerConfig describes one Plex server.
type PlexServerConfig struct {
	Name    string `mapstructure:"name"`
	BaseURL string `mapstructure:"base_url"`
	Shared  bool   `mapstructure:"shared"`
}

// ArrConfig holds Radarr/Sonarr client tunables.
type ArrConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	SearchOnAdd bool          `mapstructure:"search_on_add"`
}

// SyncConfig holds sync scheduling tunables.
type SyncConfig struct {
	// StatusInterval is how often the status/junction pass runs.
	StatusInterval time.Duration `mapstructure:"status_interval"`
	// InstanceInterval is how often the fleet reconciliation runs.
	InstanceInterval time.Duration `mapstructure:"instance_interval"`
	// InstanceBatchSize caps concurrent per-instance syncs.
	InstanceBatchSize int `mapstructure:"instance_batch_size"`
}

// WebhookConfig holds the outbound notification endpoint.
type WebhookConfig struct {
	URL      string `mapstructure:"url"`
	Method   string `mapstructure:"method"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.relayarr")
	}

	v.SetEnvPrefix("RELAYARR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults + env vars.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8484)

	v.SetDefault("database.path", "./data/relayarr.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.path", "./logs")

	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("plex.token", "")
	v.SetDefault("plex.check_existence", false)

	v.SetDefault("arr.timeout", 30*time.Second)
	v.SetDefault("arr.search_on_add", true)

	v.SetDefault("sync.status_interval", 10*time.Minute)
	v.SetDefault("sync.instance_interval", 12*time.Hour)
	v.SetDefault("sync.instance_batch_size", 3)

	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.method", "POST")
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
