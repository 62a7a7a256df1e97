package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds service configuration. Environment variables win over the
// optional YAML file, which wins over defaults.
type Config struct {
	Port           string `yaml:"port"`
	NATSURL        string `yaml:"nats_url"`
	SubjectPrefix  string `yaml:"subject_prefix"`
	AllowedOrigins string `yaml:"allowed_origins"`

	Presence struct {
		SweepIntervalSeconds   int `yaml:"sweep_interval_seconds"`
		IdleAfterSeconds       int `yaml:"idle_after_seconds"`
		DisconnectAfterSeconds int `yaml:"disconnect_after_seconds"`
	} `yaml:"presence"`

	Billing struct {
		StripeWebhookSecret string `yaml:"stripe_webhook_secret"`
	} `yaml:"billing"`
}

// Load builds the config from defaults, an optional YAML file named by
// PLAY_CONFIG_FILE, and environment overrides.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           "8080",
		NATSURL:        "nats://localhost:4222",
		SubjectPrefix:  "play",
		AllowedOrigins: "*",
	}
	cfg.Presence.SweepIntervalSeconds = 30
	cfg.Presence.IdleAfterSeconds = 60
	cfg.Presence.DisconnectAfterSeconds = 180

	if path := os.Getenv("PLAY_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.Port = getEnv("PLAY_PORT", cfg.Port)
	cfg.NATSURL = getEnv("NATS_URL", cfg.NATSURL)
	cfg.SubjectPrefix = getEnv("PLAY_SUBJECT_PREFIX", cfg.SubjectPrefix)
	cfg.AllowedOrigins = getEnv("PLAY_ALLOWED_ORIGINS", cfg.AllowedOrigins)
	cfg.Presence.SweepIntervalSeconds = getEnvAsInt("PLAY_PRESENCE_SWEEP_SECONDS", cfg.Presence.SweepIntervalSeconds)
	cfg.Presence.IdleAfterSeconds = getEnvAsInt("PLAY_PRESENCE_IDLE_SECONDS", cfg.Presence.IdleAfterSeconds)
	cfg.Presence.DisconnectAfterSeconds = getEnvAsInt("PLAY_PRESENCE_DISCONNECT_SECONDS", cfg.Presence.DisconnectAfterSeconds)
	cfg.Billing.StripeWebhookSecret = getEnv("STRIPE_WEBHOOK_SECRET", cfg.Billing.StripeWebhookSecret)

	return cfg, nil
}

// SweepInterval returns the presence sweep interval as a duration
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Presence.SweepIntervalSeconds) * time.Second
}

// IdleAfter returns the idle demotion threshold as a duration
func (c *Config) IdleAfter() time.Duration {
	return time.Duration(c.Presence.IdleAfterSeconds) * time.Second
}

// DisconnectAfter returns the disconnect demotion threshold as a duration
func (c *Config) DisconnectAfter() time.Duration {
	return time.Duration(c.Presence.DisconnectAfterSeconds) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
