package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var (
	cfg       *Config
	mu        sync.RWMutex
	listeners []func(*Config)
)

// EnvPrefix is the prefix of environment overrides, e.g. LOGSTI_SERVER_PORT.
const EnvPrefix = "LOGSTI"

// Config represents the application configuration
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Realtime RealtimeConfig `mapstructure:"realtime"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Backup   BackupConfig   `mapstructure:"backup"`
	Export   ExportConfig   `mapstructure:"export"`
	Health   HealthConfig   `mapstructure:"health"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	Timezone string `mapstructure:"timezone"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	// MaxConnections caps simultaneously accepted connections, websockets included.
	MaxConnections int `mapstructure:"max_connections"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RealtimeConfig selects the change broker: memory, postgres or redis.
type RealtimeConfig struct {
	Broker         string        `mapstructure:"broker"`
	ChannelPrefix  string        `mapstructure:"channel_prefix"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
}

// GatewayConfig selects how clients reach the backend: database or rest.
type GatewayConfig struct {
	Mode    string        `mapstructure:"mode"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// BackupConfig selects the snapshot store: bunt, redis or memory.
type BackupConfig struct {
	Store     string `mapstructure:"store"`
	Path      string `mapstructure:"path"`
	KeyPrefix string `mapstructure:"key_prefix"`
	Schedule  string `mapstructure:"schedule"`
}

type ExportConfig struct {
	Dir string `mapstructure:"dir"`
}

type HealthConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "logsti")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.timezone", "America/Sao_Paulo")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.max_connections", 1024)

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "file:logsti.db?_foreign_keys=on")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("realtime.broker", "memory")
	v.SetDefault("realtime.channel_prefix", "logsti_")
	v.SetDefault("realtime.reconnect_delay", 2*time.Second)

	v.SetDefault("gateway.mode", "database")
	v.SetDefault("gateway.base_url", "http://localhost:8080")
	v.SetDefault("gateway.timeout", 10*time.Second)

	v.SetDefault("backup.store", "bunt")
	v.SetDefault("backup.path", "backups.db")
	v.SetDefault("backup.key_prefix", "")
	v.SetDefault("backup.schedule", "55 23 * * *")

	v.SetDefault("export.dir", ".")
	v.SetDefault("health.interval", 30*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Load reads config.yaml from configPath (optional), applies environment
// overrides and starts watching the file for changes. An empty configPath
// uses defaults and the environment only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetConfigName("config")
	watch := false
	if configPath != "" {
		v.AddConfigPath(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		} else {
			watch = true
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	loaded, err := decode(v)
	if err != nil {
		return nil, err
	}
	set(loaded)

	if watch {
		v.OnConfigChange(func(e fsnotify.Event) {
			next, err := decode(v)
			if err != nil {
				return
			}
			set(next)
		})
		v.WatchConfig()
	}
	return loaded, nil
}

// LoadFromFile loads configuration from a specific file without watching.
// Environment overrides still apply.
func LoadFromFile(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	loaded, err := decode(v)
	if err != nil {
		return nil, err
	}
	set(loaded)
	return loaded, nil
}

func decode(v *viper.Viper) (*Config, error) {
	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func set(c *Config) {
	mu.Lock()
	cfg = c
	fns := append([]func(*Config){}, listeners...)
	mu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}

// Get returns the current configuration (thread-safe)
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// OnReload registers fn to run after every successful (re)load.
func OnReload(fn func(*Config)) {
	mu.Lock()
	defer mu.Unlock()
	listeners = append(listeners, fn)
}

// Validate rejects unknown selector values.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite3":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Realtime.Broker {
	case "memory", "postgres", "redis":
	default:
		return fmt.Errorf("unsupported realtime broker %q", c.Realtime.Broker)
	}
	switch c.Gateway.Mode {
	case "database", "rest":
	default:
		return fmt.Errorf("unsupported gateway mode %q", c.Gateway.Mode)
	}
	switch c.Backup.Store {
	case "bunt", "redis", "memory":
	default:
		return fmt.Errorf("unsupported backup store %q", c.Backup.Store)
	}
	if c.Health.Interval <= 0 {
		return fmt.Errorf("health.interval must be positive")
	}
	if c.Server.MaxConnections <= 0 {
		return fmt.Errorf("server.max_connections must be positive")
	}
	return nil
}

// Location returns the configured timezone, falling back to UTC.
func (c *AppConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetServerAddr returns the server listen address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsProduction returns true if running in production mode
func (c *AppConfig) IsProduction() bool {
	return c.Env == "production"
}
