package config

import (
	"errors"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	CacheDB   CacheDBConfig   `mapstructure:"cachedb"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Authority AuthorityConfig `mapstructure:"authority"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	App       AppConfig       `mapstructure:"app"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// CacheDBConfig 本地缓存库配置
// driver 为 sqlite 时只需要 path；为 postgres 时使用其余字段
type CacheDBConfig struct {
	Driver   string `mapstructure:"driver"` // sqlite | postgres
	Path     string `mapstructure:"path"`   // sqlite 文件路径
	Host     string `mapstructure:"host"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Port     string `mapstructure:"port"`
	SSLMode  string `mapstructure:"sslmode"`
	TimeZone string `mapstructure:"timezone"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"` // 启用后缓存存储切换为 Redis 实现
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthorityConfig 远端权益服务配置
type AuthorityConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	Timeout      time.Duration `mapstructure:"timeout"`       // 单次调用超时
	ServiceToken string        `mapstructure:"service_token"` // 服务间调用凭证
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Expire int64  `mapstructure:"expire"` // 小时
}

type AppConfig struct {
	Env   string `mapstructure:"env"`
	Debug bool   `mapstructure:"debug"`
}

var GlobalConfig Config

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Authority.BaseURL == "" {
		return errors.New("authority base_url is required")
	}

	switch c.CacheDB.Driver {
	case "sqlite":
		if c.CacheDB.Path == "" {
			return errors.New("cachedb path is required for sqlite driver")
		}
	case "postgres":
		if c.CacheDB.Host == "" || c.CacheDB.User == "" || c.CacheDB.DBName == "" {
			return errors.New("cachedb configuration is incomplete")
		}
	default:
		return errors.New("cachedb driver must be sqlite or postgres")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("redis address is required when redis is enabled")
	}

	// JWT 配置验证
	if c.JWT.Secret == "" || c.JWT.Secret == "your_super_secret_key" {
		return errors.New("please set a secure JWT secret in production")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("JWT secret should be at least 32 characters")
	}

	return nil
}

// LoadConfig 加载配置
func LoadConfig() {
	// 获取环境变量，默认为dev
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	// 根据环境选择配置文件
	configName := "config"
	if env != "" && env != "dev" {
		configName = "config." + env
	}

	viper.SetConfigName(configName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// 设置默认值
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("cachedb.driver", "sqlite")
	viper.SetDefault("cachedb.path", "benefits_cache.db")
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("authority.timeout", "10s")
	viper.SetDefault("jwt.expire", 24)
	viper.SetDefault("app.env", "dev")
	viper.SetDefault("app.debug", true)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Config file not found, using defaults or env vars: %v", err)
	}

	// 绑定环境变量
	viper.AutomaticEnv()

	if err := viper.Unmarshal(&GlobalConfig); err != nil {
		log.Fatalf("Unable to decode into struct: %v", err)
	}

	// 手动覆盖，以防 viper 无法正确解析复杂结构或环境变量
	if baseURL := os.Getenv("AUTHORITY_BASE_URL"); baseURL != "" {
		GlobalConfig.Authority.BaseURL = baseURL
	}
	if token := os.Getenv("AUTHORITY_SERVICE_TOKEN"); token != "" {
		GlobalConfig.Authority.ServiceToken = token
	}
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		GlobalConfig.Redis.Addr = redisAddr
	}
	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		GlobalConfig.JWT.Secret = jwtSecret
	}

	// 验证配置
	if err := GlobalConfig.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	log.Printf("Configuration loaded and validated successfully. Environment: %s", GlobalConfig.App.Env)
}
