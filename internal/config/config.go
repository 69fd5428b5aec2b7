package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates all runtime settings required by the client.
type Config struct {
	AppName     string
	Environment string
	API         APIConfig
	Auth        AuthConfig
	Storage     StorageConfig
	Redis       RedisConfig
	Agent       AgentConfig
	Routes      RoutesConfig
	Context     ContextConfig
	Logger      LoggerConfig
}

type APIConfig struct {
	BaseURL       string
	Timeout       time.Duration
	LogoutTimeout time.Duration
	MaxRetryAfter time.Duration
	MaxConns      int
	UserAgent     string
}

type AuthConfig struct {
	GraceDelay           time.Duration
	GraceCooldown        time.Duration
	LogoutSettleDelay    time.Duration
	TokenLifetime        time.Duration
	RefreshMargin        time.Duration
	RefreshCheckInterval time.Duration
	ReevaluateBearer     bool
	CookiesDisabled      bool
}

type StorageConfig struct {
	Driver     string
	BoltPath   string
	BoltBucket string
	RedisTTL   time.Duration
	KeyPrefix  string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

type AgentConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MonitorInterval time.Duration
	EnableMetrics   bool
	Secret          string
}

type RoutesConfig struct {
	Login    string
	Register string
	Public   []string
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

// Load reads configuration from environment variables (optionally .env)
// and applies defaults so the client can start in any environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     getString("APP_NAME", "campus"),
		Environment: getString("APP_ENV", "development"),
		API: APIConfig{
			BaseURL:       strings.TrimRight(getString("API_BASE_URL", "http://localhost:8000/api"), "/"),
			Timeout:       getDuration("API_TIMEOUT", 10*time.Second),
			LogoutTimeout: getDuration("LOGOUT_TIMEOUT", 3*time.Second),
			MaxRetryAfter: getDuration("API_MAX_RETRY_AFTER", 30*time.Second),
			MaxConns:      getInt("API_MAX_CONNS", 16),
			UserAgent:     getString("API_USER_AGENT", "campusctl"),
		},
		Auth: AuthConfig{
			GraceDelay:           getDuration("AUTH_GRACE_DELAY", time.Second),
			GraceCooldown:        getDuration("AUTH_GRACE_COOLDOWN", 30*time.Second),
			LogoutSettleDelay:    getDuration("AUTH_LOGOUT_SETTLE_DELAY", 500*time.Millisecond),
			TokenLifetime:        getDuration("AUTH_TOKEN_LIFETIME", time.Hour),
			RefreshMargin:        getDuration("AUTH_REFRESH_MARGIN", 5*time.Minute),
			RefreshCheckInterval: getDuration("AUTH_REFRESH_CHECK_INTERVAL", time.Minute),
			ReevaluateBearer:     getBool("AUTH_REEVALUATE_BEARER", false),
			CookiesDisabled:      getBool("AUTH_COOKIES_DISABLED", false),
		},
		Storage: StorageConfig{
			Driver:     getString("STORAGE_DRIVER", "bolt"),
			BoltPath:   getString("BOLTDB_PATH", "./data/campus.db"),
			BoltBucket: getString("BOLTDB_BUCKET", "local_storage"),
			RedisTTL:   getDuration("STORAGE_REDIS_TTL", 30*24*time.Hour),
			KeyPrefix:  getString("STORAGE_KEY_PREFIX", "campus:"),
		},
		Redis: RedisConfig{
			URL:      getString("REDIS_URL", "redis://localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
		},
		Agent: AgentConfig{
			Host:            getString("AGENT_HOST", "127.0.0.1"),
			Port:            getString("AGENT_PORT", "7070"),
			ReadTimeout:     getDuration("AGENT_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDuration("AGENT_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:     getDuration("AGENT_IDLE_TIMEOUT", 120*time.Second),
			MonitorInterval: getDuration("AGENT_MONITOR_INTERVAL", 15*time.Second),
			EnableMetrics:   getBool("AGENT_ENABLE_METRICS", true),
			Secret:          os.Getenv("AGENT_SECRET"),
		},
		Routes: RoutesConfig{
			Login:    getString("ROUTE_LOGIN", "/login"),
			Register: getString("ROUTE_REGISTER", "/register"),
			Public: getList("ROUTES_PUBLIC", []string{
				"/", "/about", "/universities", "/courses", "/compare",
				"/feedback", "/contact", "/privacy", "/terms",
			}),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 15*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 10*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "console"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad panics if configuration cannot be loaded.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("config: API_BASE_URL must be an absolute http(s) URL, got %q", c.API.BaseURL)
	}
	switch c.Storage.Driver {
	case "bolt", "redis", "memory":
	default:
		return fmt.Errorf("config: unsupported STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if c.Auth.RefreshMargin >= c.Auth.TokenLifetime {
		return fmt.Errorf("config: AUTH_REFRESH_MARGIN (%s) must be shorter than AUTH_TOKEN_LIFETIME (%s)",
			c.Auth.RefreshMargin, c.Auth.TokenLifetime)
	}
	return nil
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

func getList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// AgentAddress returns the listen address of the local agent.
func (c *Config) AgentAddress() string {
	return fmt.Sprintf("%s:%s", c.Agent.Host, c.Agent.Port)
}
