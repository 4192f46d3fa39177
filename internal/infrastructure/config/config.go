package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig
	Log        LogConfig
	Parasut    ParasutConfig
	Sync       SyncConfig
	Scheduler  SchedulerConfig
	Ledger     LedgerConfig
	TokenCache TokenCacheConfig
	HTTP       HTTPConfig
	Telemetry  TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string `validate:"oneof=json console"`
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// ParasutConfig holds upstream API credentials and limits. Credentials are
// checked when a run starts, not at load time, so the server can boot and
// report the missing values per request.
type ParasutConfig struct {
	ClientID      string
	ClientSecret  string
	Username      string
	Password      string
	CompanyID     string
	BaseURL       string `validate:"url"`
	TokenURL      string `validate:"url"`
	PageSize      int    `validate:"min=1,max=100"`
	MaxPages      int    `validate:"min=1"`
	ListTimeout   time.Duration
	SingleTimeout time.Duration
	TokenTimeout  time.Duration
}

// SyncConfig holds orchestrator settings
type SyncConfig struct {
	PaymentBatchLimit int           `validate:"min=1"`
	PaymentDelay      time.Duration `validate:"min=0"`
}

// SchedulerConfig holds the periodic sync settings of the server
type SchedulerConfig struct {
	Enabled       bool
	Interval      time.Duration `validate:"min=0"`
	Kinds         []string
	RunOnStart    bool
	JobTimeout    time.Duration
	RetryAttempts int `validate:"min=0"`
	RetryDelay    time.Duration
}

// LedgerConfig holds ledger store connection settings
type LedgerConfig struct {
	Driver          string `validate:"oneof=postgres sqlite memory"`
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	SQLitePath      string
	AutoMigrate     bool
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	SlowQuery       time.Duration
}

// TokenCacheConfig selects where access tokens are cached
type TokenCacheConfig struct {
	Backend       string `validate:"oneof=memory redis"`
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int
	KeyPrefix     string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	TrustedProxies []string

	CORSAllowOrigins []string
	MaxBodySize      int64 `validate:"min=0"`

	RateLimitEnabled  bool
	RateLimitRequests int `validate:"min=0"`
	RateLimitWindow   time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 `validate:"min=0,max=1"`
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
}

var configValidator = validator.New()

// Load loads configuration from .env, TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with LEDGERSYNC_ prefix (e.g., LEDGERSYNC_PARASUT_CLIENT_ID)
// 2. .env file in the working directory (never overrides the real environment)
// 3. config.toml
// 4. Built-in defaults
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/ledgersync")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("LEDGERSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Parasut: ParasutConfig{
			ClientID:      v.GetString("parasut.client_id"),
			ClientSecret:  v.GetString("parasut.client_secret"),
			Username:      v.GetString("parasut.username"),
			Password:      v.GetString("parasut.password"),
			CompanyID:     v.GetString("parasut.company_id"),
			BaseURL:       v.GetString("parasut.base_url"),
			TokenURL:      v.GetString("parasut.token_url"),
			PageSize:      v.GetInt("parasut.page_size"),
			MaxPages:      v.GetInt("parasut.max_pages"),
			ListTimeout:   v.GetDuration("parasut.list_timeout"),
			SingleTimeout: v.GetDuration("parasut.single_timeout"),
			TokenTimeout:  v.GetDuration("parasut.token_timeout"),
		},
		Sync: SyncConfig{
			PaymentBatchLimit: v.GetInt("sync.payment_batch_limit"),
			PaymentDelay:      v.GetDuration("sync.payment_delay"),
		},
		Scheduler: SchedulerConfig{
			Enabled:       v.GetBool("scheduler.enabled"),
			Interval:      v.GetDuration("scheduler.interval"),
			Kinds:         v.GetStringSlice("scheduler.kinds"),
			RunOnStart:    v.GetBool("scheduler.run_on_start"),
			JobTimeout:    v.GetDuration("scheduler.job_timeout"),
			RetryAttempts: v.GetInt("scheduler.retry_attempts"),
			RetryDelay:    v.GetDuration("scheduler.retry_delay"),
		},
		Ledger: LedgerConfig{
			Driver:          v.GetString("ledger.driver"),
			Host:            v.GetString("ledger.host"),
			Port:            v.GetInt("ledger.port"),
			User:            v.GetString("ledger.user"),
			Password:        v.GetString("ledger.password"),
			DBName:          v.GetString("ledger.dbname"),
			SSLMode:         v.GetString("ledger.sslmode"),
			SQLitePath:      v.GetString("ledger.sqlite_path"),
			AutoMigrate:     v.GetBool("ledger.auto_migrate"),
			MaxOpenConns:    v.GetInt("ledger.max_open_conns"),
			MaxIdleConns:    v.GetInt("ledger.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("ledger.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("ledger.conn_max_idle_time"),
			SlowQuery:       v.GetDuration("ledger.slow_query"),
		},
		TokenCache: TokenCacheConfig{
			Backend:       v.GetString("token_cache.backend"),
			RedisHost:     v.GetString("token_cache.redis_host"),
			RedisPort:     v.GetInt("token_cache.redis_port"),
			RedisPassword: v.GetString("token_cache.redis_password"),
			RedisDB:       v.GetInt("token_cache.redis_db"),
			KeyPrefix:     v.GetString("token_cache.key_prefix"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),

			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),

			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "ledgersync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Parasut.BaseURL == "" {
		cfg.Parasut.BaseURL = "https://api.parasut.com/v4"
	}
	if cfg.Parasut.TokenURL == "" {
		cfg.Parasut.TokenURL = "https://api.parasut.com/oauth/token"
	}
	if cfg.Parasut.PageSize == 0 {
		cfg.Parasut.PageSize = 25
	}
	if cfg.Parasut.MaxPages == 0 {
		cfg.Parasut.MaxPages = 20
	}
	if cfg.Parasut.ListTimeout == 0 {
		cfg.Parasut.ListTimeout = 30 * time.Second
	}
	if cfg.Parasut.SingleTimeout == 0 {
		cfg.Parasut.SingleTimeout = 10 * time.Second
	}
	if cfg.Parasut.TokenTimeout == 0 {
		cfg.Parasut.TokenTimeout = 15 * time.Second
	}
	if cfg.Sync.PaymentBatchLimit == 0 {
		cfg.Sync.PaymentBatchLimit = 50
	}
	if cfg.Sync.PaymentDelay == 0 {
		cfg.Sync.PaymentDelay = 500 * time.Millisecond
	}
	if cfg.Scheduler.Interval == 0 {
		cfg.Scheduler.Interval = time.Hour
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 30 * time.Minute
	}
	if cfg.Scheduler.RetryDelay == 0 {
		cfg.Scheduler.RetryDelay = time.Minute
	}
	if cfg.Ledger.Driver == "" {
		cfg.Ledger.Driver = "postgres"
	}
	if cfg.Ledger.Host == "" {
		cfg.Ledger.Host = "localhost"
	}
	if cfg.Ledger.Port == 0 {
		cfg.Ledger.Port = 5432
	}
	if cfg.Ledger.User == "" {
		cfg.Ledger.User = "postgres"
	}
	if cfg.Ledger.DBName == "" {
		cfg.Ledger.DBName = "ledger"
	}
	if cfg.Ledger.SSLMode == "" {
		cfg.Ledger.SSLMode = "disable"
	}
	if cfg.Ledger.SQLitePath == "" {
		cfg.Ledger.SQLitePath = "ledgersync.db"
	}
	if cfg.Ledger.MaxOpenConns == 0 {
		cfg.Ledger.MaxOpenConns = 10
	}
	if cfg.Ledger.MaxIdleConns == 0 {
		cfg.Ledger.MaxIdleConns = 2
	}
	if cfg.Ledger.ConnMaxLifetime == 0 {
		cfg.Ledger.ConnMaxLifetime = 60
	}
	if cfg.Ledger.ConnMaxIdleTime == 0 {
		cfg.Ledger.ConnMaxIdleTime = 30
	}
	if cfg.Ledger.SlowQuery == 0 {
		cfg.Ledger.SlowQuery = 200 * time.Millisecond
	}
	if cfg.TokenCache.Backend == "" {
		cfg.TokenCache.Backend = "memory"
	}
	if cfg.TokenCache.RedisHost == "" {
		cfg.TokenCache.RedisHost = "localhost"
	}
	if cfg.TokenCache.RedisPort == 0 {
		cfg.TokenCache.RedisPort = 6379
	}
	if cfg.TokenCache.KeyPrefix == "" {
		cfg.TokenCache.KeyPrefix = "ledgersync:token:"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	// a full synchronous sync request can run for minutes
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 10 * time.Minute
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if len(cfg.HTTP.CORSAllowOrigins) == 0 {
		cfg.HTTP.CORSAllowOrigins = []string{"*"}
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 64 << 10 // 64KB, request bodies only carry kind lists
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 30
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "ledgersync"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Ledger.Driver == "postgres" {
		if c.Ledger.MaxOpenConns <= 0 {
			return fmt.Errorf("ledger.max_open_conns must be positive")
		}
		if c.Ledger.MaxIdleConns > c.Ledger.MaxOpenConns {
			return fmt.Errorf("ledger.max_idle_conns (%d) cannot exceed ledger.max_open_conns (%d)",
				c.Ledger.MaxIdleConns, c.Ledger.MaxOpenConns)
		}
	}

	if c.App.Env == "production" {
		if c.Ledger.Driver == "memory" {
			return fmt.Errorf("ledger.driver=memory is not allowed in production")
		}
		if c.Ledger.Driver == "postgres" && c.Ledger.SSLMode == "disable" {
			return fmt.Errorf("ledger.sslmode cannot be 'disable' in production")
		}
	}

	return nil
}

// MissingCredentials lists the Parasut settings that are still empty
func (p *ParasutConfig) MissingCredentials() []string {
	required := []struct {
		key   string
		value string
	}{
		{"parasut.client_id", p.ClientID},
		{"parasut.client_secret", p.ClientSecret},
		{"parasut.username", p.Username},
		{"parasut.password", p.Password},
		{"parasut.company_id", p.CompanyID},
	}
	var missing []string
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.key)
		}
	}
	return missing
}

// DSN returns the postgres connection string with properly escaped values
func (d *LedgerConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// RedisAddr returns host:port of the token cache redis
func (t *TokenCacheConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", t.RedisHost, t.RedisPort)
}
