package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Admin    AdminConfig    `mapstructure:"admin"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LimitsConfig struct {
	// IPPerWindow and TokenPerWindow cap admissions per Window for the
	// two independent limiters applied to every capture.
	IPPerWindow    int           `mapstructure:"ip_per_window"`
	TokenPerWindow int           `mapstructure:"token_per_window"`
	Window         time.Duration `mapstructure:"window"`
}

type AdminConfig struct {
	// APIKey gates the response-config admin API. Empty disables it.
	APIKey string `mapstructure:"api_key"`
}

// Load reads configuration from config.yaml (if present), environment
// variables, and defaults, in ascending precedence of env over file.
func Load(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	setDefaults()

	viper.SetEnvPrefix("ECHOENDPOINT")
	viper.AutomaticEnv()
	viper.BindEnv("server.host", "HOST")
	viper.BindEnv("server.port", "PORT")
	viper.BindEnv("database.path", "DATABASE_PATH")
	viper.BindEnv("admin.api_key", "ADMIN_API_KEY")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8000)

	viper.SetDefault("database.path", "data.db")

	viper.SetDefault("limits.ip_per_window", 120)
	viper.SetDefault("limits.token_per_window", 240)
	viper.SetDefault("limits.window", time.Minute)

	viper.SetDefault("admin.api_key", "")
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Limits.IPPerWindow <= 0 || c.Limits.TokenPerWindow <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}
	if c.Limits.Window <= 0 {
		return fmt.Errorf("rate limit window must be positive")
	}
	return nil
}
