// Package config loads application settings and component manifests
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/AbdouB/adaptive/internal/db"
	"github.com/AbdouB/adaptive/internal/models"
	"github.com/AbdouB/adaptive/internal/orchestrator"
)

// Config holds application configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Manifest string         `mapstructure:"manifest"` // Empty means the built-in demo components
}

// DatabaseConfig holds sqlite settings
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// EngineConfig holds orchestrator tunables
type EngineConfig struct {
	Duration          string  `mapstructure:"duration"`
	SurfaceThreshold  float64 `mapstructure:"surface_threshold"`
	DissolveThreshold float64 `mapstructure:"dissolve_threshold"`
	MaxEvents         int     `mapstructure:"max_events"`
	MaxHistory        int     `mapstructure:"max_history"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and env. Env var overrides use prefix ADAPTIVE_,
// e.g. ADAPTIVE_ENGINE_DURATION=slow. ADAPTIVE_CONFIG points at an explicit file.
func Load() (Config, error) {
	v := viper.New()

	def := orchestrator.DefaultConfig()
	v.SetDefault("database.path", db.DefaultDBPath())
	v.SetDefault("engine.duration", string(def.Duration))
	v.SetDefault("engine.surface_threshold", def.SurfaceThreshold)
	v.SetDefault("engine.dissolve_threshold", def.DissolveThreshold)
	v.SetDefault("engine.max_events", def.MaxEvents)
	v.SetDefault("engine.max_history", def.MaxHistory)
	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.format", "console")
	v.SetDefault("manifest", "")

	v.SetConfigType("yaml")
	if cfgPath := os.Getenv("ADAPTIVE_CONFIG"); cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(".adaptive")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.config/adaptive")
		}
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("ADAPTIVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return c, nil
}

// Orchestrator converts the engine section into registry tunables
func (c Config) Orchestrator(sessionID string) orchestrator.Config {
	return orchestrator.Config{
		SessionID:         sessionID,
		Duration:          models.AnimationDuration(c.Engine.Duration),
		SurfaceThreshold:  c.Engine.SurfaceThreshold,
		DissolveThreshold: c.Engine.DissolveThreshold,
		MaxEvents:         c.Engine.MaxEvents,
		MaxHistory:        c.Engine.MaxHistory,
	}
}
