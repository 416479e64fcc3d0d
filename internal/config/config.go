// Package config loads storyreel settings through viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// MaxAutoClose is the largest accepted auto-close delay
const MaxAutoClose = 60 * time.Second

type Config struct {
	API    APIConfig    `mapstructure:"api"`
	Index  IndexConfig  `mapstructure:"index"`
	Player PlayerConfig `mapstructure:"player"`
	TTS    TTSConfig    `mapstructure:"tts"`
	Log    LogConfig    `mapstructure:"log"`
}

type APIConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	WPBaseURL         string        `mapstructure:"wp_base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// IndexConfig selects which stories the player cycles through
type IndexConfig struct {
	Featured    bool          `mapstructure:"featured"`
	Search      string        `mapstructure:"search"`
	PerPage     int           `mapstructure:"per_page"`
	CacheMaxAge time.Duration `mapstructure:"cache_max_age"`
	CachePath   string        `mapstructure:"cache_path"`
}

type PlayerConfig struct {
	DeepLink     bool   `mapstructure:"deep_link"`
	AutoClose    int    `mapstructure:"auto_close"` // seconds, 0 = disabled
	ShowProgress bool   `mapstructure:"show_progress"`
	ShowControls bool   `mapstructure:"show_controls"`
	ShareURL     string `mapstructure:"share_url"`
	AccentColor  string `mapstructure:"accent_color"`
	Narrate      bool   `mapstructure:"narrate"`
}

// AutoCloseDelay converts the configured seconds, clamped to 0..60.
func (p PlayerConfig) AutoCloseDelay() time.Duration {
	d := time.Duration(p.AutoClose) * time.Second
	switch {
	case d < 0:
		return 0
	case d > MaxAutoClose:
		return MaxAutoClose
	}
	return d
}

type TTSConfig struct {
	Type      string  `mapstructure:"type"`
	Voice     string  `mapstructure:"voice"`
	Speed     float64 `mapstructure:"speed"`
	Volume    float64 `mapstructure:"volume"`
	CachePath string  `mapstructure:"cache_path"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

func SetDefaults() {
	viper.SetDefault("api.base_url", "http://localhost:8080/wp-json/cm/v1/")
	viper.SetDefault("api.wp_base_url", "")
	viper.SetDefault("api.timeout", "15s")
	viper.SetDefault("api.requests_per_second", 5.0)
	viper.SetDefault("api.burst", 2)

	viper.SetDefault("index.featured", false)
	viper.SetDefault("index.search", "")
	viper.SetDefault("index.per_page", 20)
	viper.SetDefault("index.cache_max_age", "10m")
	viper.SetDefault("index.cache_path", "")

	viper.SetDefault("player.deep_link", true)
	viper.SetDefault("player.auto_close", 0)
	viper.SetDefault("player.show_progress", true)
	viper.SetDefault("player.show_controls", true)
	viper.SetDefault("player.share_url", "")
	viper.SetDefault("player.accent_color", "#3498DB")
	viper.SetDefault("player.narrate", false)

	viper.SetDefault("tts.type", "auto") // Auto-select best engine
	viper.SetDefault("tts.voice", "default")
	viper.SetDefault("tts.speed", 1.0)
	viper.SetDefault("tts.volume", 0.8)
	viper.SetDefault("tts.cache_path", "")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.file", "storyreel.log")
}

// Init points viper at storyreel.yaml and the STORYREEL_ environment.
func Init() {
	viper.SetConfigName("storyreel")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.storyreel")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("STORYREEL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// Load reads the config file, if any, and returns the merged settings.
// A missing file is not an error.
func Load() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return Unmarshal(viper.GetViper())
}

// Unmarshal decodes and validates the settings held by v.
func Unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url must be set")
	}
	if c.Player.AutoClose < 0 || time.Duration(c.Player.AutoClose)*time.Second > MaxAutoClose {
		return fmt.Errorf("player.auto_close must be between 0 and %d seconds", int(MaxAutoClose.Seconds()))
	}
	if c.Index.PerPage < 0 {
		return fmt.Errorf("index.per_page must not be negative")
	}
	return nil
}
