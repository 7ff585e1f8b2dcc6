package config

import (
	"errors"
	"fmt"
)

func (c *Config) Validate() error {
	if c.Database.Primary.DSN == "" {
		return errors.New("database.primary.dsn is required")
	}

	switch c.Oracle.Provider {
	case "openai":
		if c.Oracle.OpenaiApiKey == "" {
			return errors.New("oracle.openai_api_key is required when oracle.provider is openai")
		}
	case "gemini":
		if c.Oracle.GoogleApiKey == "" {
			return errors.New("oracle.google_api_key is required when oracle.provider is gemini")
		}
	default:
		return fmt.Errorf("oracle.provider must be 'openai' or 'gemini', got %q", c.Oracle.Provider)
	}
	if c.Oracle.Timeout <= 0 {
		return errors.New("oracle.timeout must be positive")
	}

	if c.Chat.ContextMessages <= 0 {
		return errors.New("chat.context_messages must be positive")
	}

	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return errors.New("auth.jwt_secret must be at least 32 characters")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.token_ttl must be positive")
	}

	if c.Redis.Address == "" {
		return errors.New("redis.address is required")
	}
	if c.Worker.Concurrency <= 0 {
		return errors.New("worker.concurrency must be a positive integer")
	}
	if len(c.Worker.Queues) == 0 {
		return errors.New("worker.queues must define at least one queue")
	}
	for name, priority := range c.Worker.Queues {
		if name == "" {
			return errors.New("worker.queues contains an empty queue name")
		}
		if priority <= 0 {
			return fmt.Errorf("worker.queues priority for queue %q must be positive", name)
		}
	}

	return nil
}
