package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// TrustedProxies decides which peers may set X-Forwarded-For; the login
	// throttle keys on the resulting client IP.
	TrustedProxies []string
}

type DatabaseConfig struct {
	// Driver is "postgres" or "memory". The memory driver keeps users in process
	// and is meant for local development only.
	Driver  string
	Migrate bool
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type PasswordConfig struct {
	MinLength     int
	MaxLength     int
	RequireDigit  bool
	RequireLetter bool
}

type SecurityConfig struct {
	JWTAccessSecret  string
	JWTRefreshSecret string
	JWTAccessTTL     time.Duration
	JWTRefreshTTL    time.Duration
	JWTIssuer        string
	OperationTimeout time.Duration
	Password         PasswordConfig
}

type CookieConfig struct {
	Secure bool
	Domain string
	Path   string
}

type RateLimitConfig struct {
	LoginAttempts int
	LoginWindow   time.Duration
}

type QueueConfig struct {
	Stream        string
	Group         string
	Consumer      string
	ClaimInterval time.Duration
}

type JobsConfig struct {
	SweepSchedule string
	DormantAfter  time.Duration
}

type AppConfig struct {
	Environment      string
	LogLevel         string
	HTTP             HTTPConfig
	Database         DatabaseConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Security         SecurityConfig
	Cookie           CookieConfig
	RateLimit        RateLimitConfig
	Queue            QueueConfig
	Jobs             JobsConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix("SOCIALHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *AppConfig) Validate() error {
	if c.Security.JWTAccessSecret == "" || c.Security.JWTRefreshSecret == "" {
		return fmt.Errorf("security: jwt access and refresh secrets are required")
	}
	if c.Security.JWTAccessSecret == c.Security.JWTRefreshSecret {
		return fmt.Errorf("security: access and refresh secrets must differ")
	}
	if c.Security.JWTAccessTTL <= 0 || c.Security.JWTRefreshTTL <= 0 {
		return fmt.Errorf("security: token ttls must be positive")
	}
	if c.Security.Password.MinLength < 1 {
		return fmt.Errorf("security: password min length must be at least 1")
	}
	switch c.Database.Driver {
	case "postgres":
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres: dsn is required")
		}
	case "memory":
	default:
		return fmt.Errorf("database: unknown driver %q", c.Database.Driver)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("loglevel", "")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")
	v.SetDefault("http.trustedproxies", "")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.migrate", true)

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 10)
	v.SetDefault("postgres.connmaxlifetime", "30m")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// secrets carry empty defaults so AutomaticEnv can fill them during Unmarshal
	v.SetDefault("security.jwtaccesssecret", "")
	v.SetDefault("security.jwtrefreshsecret", "")
	v.SetDefault("security.jwtaccessttl", "15m")
	v.SetDefault("security.jwtrefreshttl", "168h") // 7 days
	v.SetDefault("security.jwtissuer", "socialhub")
	v.SetDefault("security.operationtimeout", "5s")
	v.SetDefault("security.password.minlength", 8)
	v.SetDefault("security.password.maxlength", 128)
	v.SetDefault("security.password.requiredigit", true)
	v.SetDefault("security.password.requireletter", true)

	v.SetDefault("cookie.secure", true)
	v.SetDefault("cookie.domain", "")
	v.SetDefault("cookie.path", "/")

	v.SetDefault("ratelimit.loginattempts", 10)
	v.SetDefault("ratelimit.loginwindow", "15m")

	v.SetDefault("queue.stream", "auth:events")
	v.SetDefault("queue.group", "auth-workers")
	v.SetDefault("queue.consumer", "worker-1")
	v.SetDefault("queue.claiminterval", "30s")

	v.SetDefault("jobs.sweepschedule", "0 0 3 * * *")
	v.SetDefault("jobs.dormantafter", "4320h") // 180 days

	v.SetDefault("allowcorsorigins", "")
}
