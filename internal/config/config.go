// Package config provides configuration management for the talking avatar.
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Model  ModelConfig  `mapstructure:"model"`
	Window WindowConfig `mapstructure:"window"`
	Speech SpeechConfig `mapstructure:"speech"`
	Avatar AvatarConfig `mapstructure:"avatar"`
}

// ModelConfig locates the avatar asset.
type ModelConfig struct {
	Path      string `mapstructure:"path"`
	HotReload bool   `mapstructure:"hot_reload"`
}

// WindowConfig configures the render window.
type WindowConfig struct {
	Title  string `mapstructure:"title"`
	Width  int    `mapstructure:"width"`
	Height int    `mapstructure:"height"`
	VSync  bool   `mapstructure:"vsync"`
	MSAA   int    `mapstructure:"msaa"`
}

// SpeechConfig configures the streamed speech path. TokenEndpoint issues the
// ephemeral credential; an empty endpoint disables the cloud path and every
// speak request uses the heuristic timeline.
type SpeechConfig struct {
	TokenEndpoint    string  `mapstructure:"token_endpoint"`
	APIKey           string  `mapstructure:"api_key"`
	EndpointTemplate string  `mapstructure:"endpoint_template"`
	VoiceID          string  `mapstructure:"voice_id"`
	RateAdjust       float64 `mapstructure:"rate_adjust"`
	Muted            bool    `mapstructure:"muted"`
}

// AvatarConfig tunes the avatar's resting look.
type AvatarConfig struct {
	Expression string `mapstructure:"expression"`
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Path:      "assets/avatar.glb",
			HotReload: true,
		},
		Window: WindowConfig{
			Title:  "Talking Avatar",
			Width:  900,
			Height: 900,
			VSync:  true,
			MSAA:   4,
		},
		Speech: SpeechConfig{
			VoiceID:    "en-US-JennyNeural",
			RateAdjust: 0,
			Muted:      false,
		},
		Avatar: AvatarConfig{
			Expression: "neutral",
		},
	}
}

// Load reads configuration from file and environment. Missing config files
// are not an error; one is written with the defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configDir, err := GetConfigDir()
	if err != nil {
		return cfg, err
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return cfg, err
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("TALKINGAVATAR")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, err
		}
		if err := Save(cfg); err != nil {
			return cfg, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Save writes the configuration to file.
func Save(cfg *Config) error {
	configDir, err := GetConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	viper.Set("model", cfg.Model)
	viper.Set("window", cfg.Window)
	viper.Set("speech", cfg.Speech)
	viper.Set("avatar", cfg.Avatar)

	return viper.WriteConfigAs(filepath.Join(configDir, "config.yaml"))
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".talkingavatar"), nil
}
