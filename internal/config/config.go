package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Redis      RedisConfig      `mapstructure:"redis"`
	MySQL      MySQLConfig      `mapstructure:"mysql"`
	Store      StoreConfig      `mapstructure:"store"`
	Leader     LeaderConfig     `mapstructure:"leader"`
	Instance   InstanceConfig   `mapstructure:"instance"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Engine     EngineConfig     `mapstructure:"engine"`
	StoreRetry StoreRetryConfig `mapstructure:"store_retry"`
	WebSocket  WebSocketConfig  `mapstructure:"websocket"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// StoreConfig selects the durable store backend: "mysql" or "memory".
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

type LeaderConfig struct {
	Key string        `mapstructure:"key"`
	TTL time.Duration `mapstructure:"ttl"`
}

type InstanceConfig struct {
	ID string `mapstructure:"id"`
}

// AuthConfig with an empty JWTSecret falls back to trusting the user id sent by the client.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

type EngineConfig struct {
	GracePeriod     time.Duration `mapstructure:"grace_period"`
	CASMaxRetries   int           `mapstructure:"cas_max_retries"`
	ReconcileSpec   string        `mapstructure:"reconcile_spec"`
	StartRetryDelay time.Duration `mapstructure:"start_retry_delay"`
	BidStateTTL     time.Duration `mapstructure:"bid_state_ttl"`
	AllowSelfRaise  bool          `mapstructure:"allow_self_raise"`
}

type StoreRetryConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	MaxWindow time.Duration `mapstructure:"max_window"`
}

type WebSocketConfig struct {
	SendBuffer     int           `mapstructure:"send_buffer"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("mysql.dsn", "auction_user:auction_pass@tcp(localhost:3306)/auction_db?parseTime=true&clientFoundRows=true")
	v.SetDefault("mysql.max_open_conns", 25)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("store.driver", "mysql")
	v.SetDefault("leader.key", "auction_leader")
	v.SetDefault("leader.ttl", 30*time.Second)
	v.SetDefault("instance.id", "auction-service-1")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("engine.grace_period", 3*time.Second)
	v.SetDefault("engine.cas_max_retries", 5)
	v.SetDefault("engine.reconcile_spec", "@every 1m")
	v.SetDefault("engine.start_retry_delay", 5*time.Second)
	v.SetDefault("engine.bid_state_ttl", time.Hour)
	v.SetDefault("engine.allow_self_raise", true)
	v.SetDefault("store_retry.interval", 2*time.Second)
	v.SetDefault("store_retry.max_window", 2*time.Minute)
	v.SetDefault("websocket.send_buffer", 64)
	v.SetDefault("websocket.write_wait", 10*time.Second)
	v.SetDefault("websocket.pong_wait", 60*time.Second)
	v.SetDefault("websocket.max_message_size", 4096)
	v.SetDefault("log.level", "info")
}

// Load reads defaults, an optional config.yaml and environment overrides.
// SERVER_PORT, REDIS_ADDRESS, ENGINE_GRACE_PERIOD etc. map onto the nested keys.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/live-auction/")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		// Config file not found, continue with defaults and environment variables
	}

	return unmarshal(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "mysql", "memory":
	default:
		return fmt.Errorf("store.driver must be mysql or memory, got %q", c.Store.Driver)
	}
	if c.Engine.CASMaxRetries < 1 {
		return fmt.Errorf("engine.cas_max_retries must be at least 1")
	}
	if c.Engine.GracePeriod < 0 {
		return fmt.Errorf("engine.grace_period must not be negative")
	}
	if c.WebSocket.SendBuffer < 1 {
		return fmt.Errorf("websocket.send_buffer must be at least 1")
	}
	return nil
}

// GetConfigString returns a formatted string representation of the config
func (c *Config) GetConfigString() string {
	return fmt.Sprintf(
		"Server: %s:%d, Redis: %s, Store: %s, Instance: %s",
		c.Server.Host,
		c.Server.Port,
		c.Redis.Address,
		c.Store.Driver,
		c.Instance.ID,
	)
}
