package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dkeye/Chat/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type StorageConfig struct {
	Driver  string        `mapstructure:"driver"`
	DSN     string        `mapstructure:"dsn"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type UploadConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxBytes int64         `mapstructure:"max_bytes"`
}

type AdminConfig struct {
	Identity string `mapstructure:"identity"`
	Password string `mapstructure:"password"`
}

type ChatConfig struct {
	HistoryLimit  int           `mapstructure:"history_limit"`
	RateLimit     int           `mapstructure:"rate_limit"`
	RateInterval  time.Duration `mapstructure:"rate_interval"`
	AllowAnonAuth bool          `mapstructure:"allow_anonymous_auth"`
	// SlowTolerance is how many dropped frames a session may cause within
	// SlowWindow before it is kicked. Zero kicks on the first overflow.
	SlowTolerance int           `mapstructure:"slow_tolerance"`
	SlowWindow    time.Duration `mapstructure:"slow_window"`
}

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	SendBuffer int           `mapstructure:"send_buffer"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`

	Storage StorageConfig `mapstructure:"storage"`
	Upload  UploadConfig  `mapstructure:"upload"`
	Admin   AdminConfig   `mapstructure:"admin"`
	Chat    ChatConfig    `mapstructure:"chat"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("secret", "change-me")
	v.SetDefault("log_level", "info")

	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.dsn", "chat.db")
	v.SetDefault("storage.timeout", "5s")

	v.SetDefault("upload.timeout", "30s")
	v.SetDefault("upload.max_bytes", 10<<20)

	v.SetDefault("admin.identity", "admin")
	v.SetDefault("admin.password", "")

	v.SetDefault("chat.history_limit", 200)
	v.SetDefault("chat.rate_limit", 10)
	v.SetDefault("chat.rate_interval", "5s")
	v.SetDefault("chat.allow_anonymous_auth", true)
	v.SetDefault("chat.slow_tolerance", 0)
	v.SetDefault("chat.slow_window", "10s")
}

// Load reads config/config.<CONFIG_ENV>.yaml, falling back to defaults.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

// LoadFile reads fileName; CHAT_* environment variables override it.
func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("chat")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("storage", cfg.Storage.Driver).Msg("config ready")
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Chat.HistoryLimit < 1 || c.Chat.HistoryLimit > domain.HistoryLimit {
		return fmt.Errorf("chat.history_limit must be between 1 and %d, got %d", domain.HistoryLimit, c.Chat.HistoryLimit)
	}
	return nil
}
