package config

import (
	"log/slog"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Engine configuration
	Engine EngineConfig `mapstructure:"engine"`

	// Crossfade configuration
	Crossfade CrossfadeConfig `mapstructure:"crossfade"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`
}

// EngineConfig holds playback-engine configuration
type EngineConfig struct {
	DeviceRate    int     `mapstructure:"device_rate"`    // output device sample rate in Hz
	BufferSeconds int     `mapstructure:"buffer_seconds"` // decode ring buffer slack per source
	Volume        float64 `mapstructure:"volume"`         // initial master volume, 0.0 to 2.0
}

// CrossfadeConfig holds dual-stream transition configuration
type CrossfadeConfig struct {
	Enabled  bool    `mapstructure:"enabled"`
	Duration float64 `mapstructure:"duration"` // seconds
	Curve    string  `mapstructure:"curve"`    // linear, equal-power, logarithmic or s-curve
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

var validCurves = map[string]bool{
	"linear":      true,
	"equal-power": true,
	"logarithmic": true,
	"s-curve":     true,
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig() (*Config, error) {
	// Set defaults
	viper.SetDefault("engine.device_rate", 48000)
	viper.SetDefault("engine.buffer_seconds", 2)
	viper.SetDefault("engine.volume", 1.0)
	viper.SetDefault("crossfade.enabled", false)
	viper.SetDefault("crossfade.duration", 3.0)
	viper.SetDefault("crossfade.curve", "equal-power")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	// Read config file
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.tonearm")
	viper.AddConfigPath("/etc/tonearm")

	// Allow environment variables
	viper.AutomaticEnv()
	viper.SetEnvPrefix("TONEARM")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		slog.Debug("No config file found, using defaults and environment variables")
	} else {
		slog.Info("Using config file", slog.String("file", viper.ConfigFileUsed()))
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Engine.DeviceRate < 8000 || c.Engine.DeviceRate > 192000 {
		return &ConfigError{Field: "engine.device_rate", Message: "device sample rate must be between 8000 and 192000 Hz"}
	}
	if c.Engine.BufferSeconds < 1 {
		return &ConfigError{Field: "engine.buffer_seconds", Message: "buffer slack must be at least 1 second"}
	}
	if c.Engine.Volume < 0 || c.Engine.Volume > 2 {
		return &ConfigError{Field: "engine.volume", Message: "volume must be between 0.0 and 2.0"}
	}
	if c.Crossfade.Duration <= 0 {
		return &ConfigError{Field: "crossfade.duration", Message: "crossfade duration must be positive"}
	}
	if !validCurves[c.Crossfade.Curve] {
		return &ConfigError{Field: "crossfade.curve", Message: "curve must be one of linear, equal-power, logarithmic, s-curve"}
	}
	return nil
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
