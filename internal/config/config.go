package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "LIVEDOC"
	defaultHTTPAddress   = "0.0.0.0:8080"
	defaultDatabasePath  = "livedoc.db"
	defaultLogLevel      = "info"
	defaultTokenTTLMin   = 30
	defaultAITimeoutSecs = 20
	defaultAIModel       = "gpt-4o-mini"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress   string
	DatabasePath  string
	LogLevel      string
	SigningSecret string
	TokenTTL      time.Duration
	AIBaseURL     string
	AIModel       string
	AITimeout     time.Duration
	RedisAddress  string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("token.ttl_minutes", defaultTokenTTLMin)
	configViper.SetDefault("ai.base_url", "")
	configViper.SetDefault("ai.model", defaultAIModel)
	configViper.SetDefault("ai.timeout_seconds", defaultAITimeoutSecs)
	configViper.SetDefault("redis.addr", "")
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:   configViper.GetString("http.address"),
		DatabasePath:  configViper.GetString("database.path"),
		LogLevel:      configViper.GetString("log.level"),
		SigningSecret: configViper.GetString("auth.signing_secret"),
		TokenTTL:      time.Duration(configViper.GetInt("token.ttl_minutes")) * time.Minute,
		AIBaseURL:     configViper.GetString("ai.base_url"),
		AIModel:       configViper.GetString("ai.model"),
		AITimeout:     time.Duration(configViper.GetInt("ai.timeout_seconds")) * time.Second,
		RedisAddress:  configViper.GetString("redis.addr"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token.ttl_minutes must be positive")
	}
	if c.AITimeout <= 0 {
		return fmt.Errorf("ai.timeout_seconds must be positive")
	}
	return nil
}
