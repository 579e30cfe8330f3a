package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validTestConfig() Config {
	return Config{
		Server: ServerConfig{Port: "8080", Mode: "debug"},
		CacheDB: CacheDBConfig{
			Driver: "sqlite",
			Path:   "cache.db",
		},
		Authority: AuthorityConfig{BaseURL: "http://localhost:9000"},
		JWT:       JWTConfig{Secret: "0123456789abcdef0123456789abcdef", Expire: 24},
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("Valid sqlite config", func(t *testing.T) {
		cfg := validTestConfig()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("Missing authority base url", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Authority.BaseURL = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("Sqlite driver requires a path", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.CacheDB.Path = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("Postgres driver requires connection fields", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.CacheDB = CacheDBConfig{Driver: "postgres", Host: "localhost"}
		assert.Error(t, cfg.Validate())

		cfg.CacheDB = CacheDBConfig{
			Driver: "postgres",
			Host:   "localhost", User: "app", DBName: "cache",
		}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("Unknown driver rejected", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.CacheDB.Driver = "oracle"
		assert.Error(t, cfg.Validate())
	})

	t.Run("Redis enabled requires addr", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Redis = RedisConfig{Enabled: true}
		assert.Error(t, cfg.Validate())

		cfg.Redis.Addr = "localhost:6379"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("Weak jwt secret rejected", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.JWT.Secret = "short"
		assert.Error(t, cfg.Validate())

		cfg.JWT.Secret = "your_super_secret_key"
		assert.Error(t, cfg.Validate())
	})
}
