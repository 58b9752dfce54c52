package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// StoreType selects the token store backend.
type StoreType string

const (
	StoreMemory StoreType = "memory"
	StoreBolt   StoreType = "bolt"
	StoreRedis  StoreType = "redis"
)

// Config holds all configuration for adminctl.
type Config struct {
	APIBaseURL  string        `mapstructure:"api_base_url"`
	LogLevel    string        `mapstructure:"log_level"`
	LogPretty   bool          `mapstructure:"log_pretty"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`

	TokenStore     StoreType     `mapstructure:"token_store"`
	BoltPath       string        `mapstructure:"bolt_path"`
	RedisAddr      string        `mapstructure:"redis_addr"`
	RedisPassword  string        `mapstructure:"redis_password"`
	RedisDB        int           `mapstructure:"redis_db"`
	RedisPrefix    string        `mapstructure:"redis_prefix"`
	MemoryTokenTTL time.Duration `mapstructure:"memory_token_ttl"`

	LoginPath    string `mapstructure:"login_path"`
	FallbackPath string `mapstructure:"fallback_path"`

	// MetricsAddr enables the Prometheus endpoint when set.
	MetricsAddr string `mapstructure:"metrics_addr"`
	// TraceStdout exports spans to stderr.
	TraceStdout bool `mapstructure:"trace_stdout"`
	// AuditLog appends a JSON line per session transition when set.
	AuditLog string `mapstructure:"audit_log"`
}

// EnvPrefix is prepended to every environment override, e.g. ADMIN_API_BASE_URL.
const EnvPrefix = "ADMIN"

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_base_url", "http://localhost:5000")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", true)
	v.SetDefault("http_timeout", "30s")
	v.SetDefault("token_store", string(StoreBolt))
	v.SetDefault("bolt_path", "$HOME/.adminctl/tokens.db")
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("redis_prefix", "adminctl")
	v.SetDefault("memory_token_ttl", "0s")
	v.SetDefault("login_path", "/login")
	v.SetDefault("fallback_path", "/profile")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("trace_stdout", false)
	v.SetDefault("audit_log", "")
}

// LoadConfig is Load followed by Validate.
func LoadConfig(file string) (*Config, error) {
	cfg, err := Load(file)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads configuration from defaults, an optional YAML file and
// ADMIN_* environment variables, in increasing priority. With an empty
// file the usual locations are searched and a missing file is not an error.
// The result is not validated, so callers can apply their own overrides
// first.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("admin_config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.adminctl")
		v.AddConfigPath("/etc/adminctl/")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	cfg.TokenStore = StoreType(strings.ToLower(v.GetString("token_store")))
	cfg.BoltPath = os.ExpandEnv(cfg.BoltPath)
	cfg.AuditLog = os.ExpandEnv(cfg.AuditLog)
	return &cfg, nil
}

// Validate rejects values adminctl cannot start with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid api_base_url %q", c.APIBaseURL)
	}

	switch c.TokenStore {
	case StoreMemory:
	case StoreBolt:
		if c.BoltPath == "" {
			return errors.New("bolt_path is required for the bolt token store")
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return errors.New("redis_addr is required for the redis token store")
		}
	default:
		return fmt.Errorf("unknown token_store %q (want memory, bolt or redis)", c.TokenStore)
	}

	if c.HTTPTimeout < 0 {
		return fmt.Errorf("http_timeout must not be negative, got %s", c.HTTPTimeout)
	}
	if !strings.HasPrefix(c.LoginPath, "/") || !strings.HasPrefix(c.FallbackPath, "/") {
		return errors.New("login_path and fallback_path must start with /")
	}
	return nil
}
