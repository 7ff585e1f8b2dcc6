package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Database struct {
		Primary struct {
			DSN string `mapstructure:"dsn"`
		} `mapstructure:"primary"`
	} `mapstructure:"database"`

	Oracle struct {
		Provider     string        `mapstructure:"provider"` // "openai" or "gemini"
		Model        string        `mapstructure:"model"`
		OpenaiApiKey string        `mapstructure:"openai_api_key"`
		GoogleApiKey string        `mapstructure:"google_api_key"`
		Timeout      time.Duration `mapstructure:"timeout"`
	} `mapstructure:"oracle"`

	Chat struct {
		// ContextMessages bounds how much history each pipeline run feeds
		// back to the oracle.
		ContextMessages int `mapstructure:"context_messages"`
	} `mapstructure:"chat"`

	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`

	Auth struct {
		JWTSecret string        `mapstructure:"jwt_secret"`
		TokenTTL  time.Duration `mapstructure:"token_ttl"`
	} `mapstructure:"auth"`

	Redis struct {
		Address  string `mapstructure:"address"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Worker struct {
		Concurrency int            `mapstructure:"concurrency"`
		Queues      map[string]int `mapstructure:"queues"`
	} `mapstructure:"worker"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	// Well-known env vars bind without a prefix so the usual provider
	// conventions keep working.
	viper.BindEnv("oracle.openai_api_key", "OPENAI_API_KEY")
	viper.BindEnv("oracle.google_api_key", "GEMINI_API_KEY")
	viper.BindEnv("auth.jwt_secret", "MUNINN_JWT_SECRET")
	viper.BindEnv("database.primary.dsn", "MUNINN_DATABASE_DSN")
	viper.BindEnv("redis.address", "MUNINN_REDIS_ADDRESS")

	viper.SetDefault("oracle.provider", "openai")
	viper.SetDefault("oracle.model", "gpt-4o-mini")
	viper.SetDefault("oracle.timeout", 30*time.Second)
	viper.SetDefault("chat.context_messages", 10)
	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("auth.token_ttl", 24*time.Hour)
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("worker.concurrency", 5)
	viper.SetDefault("worker.queues", map[string]int{"default": 1})

	if err := viper.ReadInConfig(); err != nil {
		// Missing config file is fine; env vars and defaults cover it.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}
