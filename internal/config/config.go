package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Stream    StreamConfig    `mapstructure:"stream"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Session   SessionConfig   `mapstructure:"session"`
	Log       LogConfig       `mapstructure:"log"`

	// Stub backend only.
	Server    ServerConfig    `mapstructure:"server"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Responder ResponderConfig `mapstructure:"responder"`
}

type APIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	// FallbackURLs are tried in order when BaseURL cannot be reached at all.
	FallbackURLs []string      `mapstructure:"fallback_urls"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type StreamConfig struct {
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	MaxFrameBytes int           `mapstructure:"max_frame_bytes"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

type SessionConfig struct {
	StorePath string `mapstructure:"store_path"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`

	// HeartbeatInterval spaces keep-alive frames on quiet chat streams.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`

	// AdminEmail and AdminPassword seed a verified admin account on start.
	AdminEmail    string `mapstructure:"admin_email"`
	AdminPassword string `mapstructure:"admin_password"`

	// AutoVerify skips email verification for new accounts.
	AutoVerify bool `mapstructure:"auto_verify"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type ResponderConfig struct {
	Provider   string        `mapstructure:"provider"` // "echo" | "openai"
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Model      string        `mapstructure:"model"`
	ChunkDelay time.Duration `mapstructure:"chunk_delay"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:3000")
	v.SetDefault("api.fallback_urls", []string{})
	v.SetDefault("api.timeout", 15*time.Second)

	v.SetDefault("stream.idle_timeout", 60*time.Second)
	v.SetDefault("stream.max_frame_bytes", 1<<20)

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.requests_per_minute", 120)
	v.SetDefault("rate_limit.burst", 10)

	v.SetDefault("session.store_path", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 0)
	v.SetDefault("server.max_header_bytes", 1<<20)
	v.SetDefault("server.heartbeat_interval", 15*time.Second)
	v.SetDefault("server.admin_email", "admin@vita.local")
	v.SetDefault("server.admin_password", "")
	v.SetDefault("server.auto_verify", false)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Authorization", "Content-Type"})
	v.SetDefault("cors.exposed_headers", []string{"Content-Type"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 600)

	v.SetDefault("responder.provider", "echo")
	v.SetDefault("responder.api_key", "")
	v.SetDefault("responder.base_url", "")
	v.SetDefault("responder.model", "gpt-4o-mini")
	v.SetDefault("responder.chunk_delay", 20*time.Millisecond)
}

// Load reads configuration from configPath (optional) and VITA_* environment
// variables. A missing file is not an error; defaults apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("VITA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	// File and VITA_RESPONDER_API_KEY win; OPENAI_API_KEY is the fallback.
	if cfg.Responder.APIKey == "" {
		cfg.Responder.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	return cfg, nil
}
