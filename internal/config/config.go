package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DB       *DBconfig       `yaml:"db" validate:"required"`
	RabbitMq *RabbitMqconfig `yaml:"rabbitmq" validate:"required"`
	Redis    *Redisconfig    `yaml:"redis" validate:"required"`
	Srv      *Serviceconfig  `yaml:"server" validate:"required"`
	Log      *Loggerconfig   `yaml:"log" validate:"required"`
	JWT      *JWTconfig      `yaml:"jwt" validate:"required"`
	History  *Historyconfig  `yaml:"history" validate:"required"`
	Liveness *Livenessconfig `yaml:"liveness" validate:"required"`
	Fleet    *Fleetconfig    `yaml:"fleet" validate:"required"`
	Session  *Sessionconfig  `yaml:"session" validate:"required"`
}

type DBconfig struct {
	Host       string `yaml:"host" validate:"required"`
	Port       int    `yaml:"port" validate:"gt=0,lte=65535"`
	User       string `yaml:"user" validate:"required"`
	Password   string `yaml:"password"`
	Database   string `yaml:"database" validate:"required"`
	MaxConns   int    `yaml:"max_conns" validate:"gt=0"`
	MaxRetries int    `yaml:"max_retries" validate:"gte=1"`
}

type RabbitMqconfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host" validate:"required_if=Enabled true"`
	Port     int    `yaml:"port" validate:"gte=0,lte=65535"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	VHost    string `yaml:"vhost"`
}

type Redisconfig struct {
	Addr       string `yaml:"addr" validate:"required"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db" validate:"gte=0"`
	MaxRetries int    `yaml:"max_retries" validate:"gte=0"`
	PoolSize   int    `yaml:"pool_size" validate:"gt=0"`
}

type Serviceconfig struct {
	TrackingServicePort string        `yaml:"tracking_service" validate:"required,numeric"`
	ReadTimeout         time.Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout        time.Duration `yaml:"write_timeout" validate:"gt=0"`
	ShutdownTimeout     time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

type Loggerconfig struct {
	Level string `yaml:"level" validate:"oneof=DEBUG INFO WARN ERROR"`
}

type JWTconfig struct {
	Secret string `yaml:"secret" validate:"required"`
}

// Historyconfig tunes the history recorder. Backend is "postgres" or "redis".
type Historyconfig struct {
	Backend         string        `yaml:"backend" validate:"oneof=postgres redis"`
	QueueSize       int           `yaml:"queue_size" validate:"gt=0"`
	Workers         int           `yaml:"workers" validate:"gt=0"`
	MaxRetries      int           `yaml:"max_retries" validate:"gte=0"`
	InitialBackoff  time.Duration `yaml:"initial_backoff" validate:"gt=0"`
	MaxBackoff      time.Duration `yaml:"max_backoff" validate:"gtefield=InitialBackoff"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gt=0"`
	BreakerFailures int           `yaml:"breaker_failures" validate:"gt=0"`
	BreakerTimeout  time.Duration `yaml:"breaker_timeout" validate:"gt=0"`
}

type Livenessconfig struct {
	DriverGrace   time.Duration `yaml:"driver_grace" validate:"gt=0"`
	StaleAfter    time.Duration `yaml:"stale_after" validate:"gt=0"`
	SweepInterval time.Duration `yaml:"sweep_interval" validate:"gt=0"`
}

type Fleetconfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval" validate:"gt=0"`
}

type Sessionconfig struct {
	SendBuffer int `yaml:"send_buffer" validate:"gt=0"`
}

type warner interface {
	Warn(msg string, args ...any)
}

// New reads the configuration from the environment, loading a .env file first
// when one is present. Defaults are reported through log. When CONFIG_FILE
// names a YAML file, the keys it sets override the environment.
func New(log warner) (*Config, error) {
	_ = godotenv.Load()

	getEnv := func(key, def string) string {
		val := os.Getenv(key)
		if val == "" {
			log.Warn("using default key", "key", key, "default-key", def)
			return def
		}
		return val
	}

	getEnvInt := func(key string, def int) int {
		valStr := os.Getenv(key)
		if valStr == "" {
			log.Warn("using default key", "key", key, "default-key", def)
			return def
		}
		val, err := strconv.Atoi(valStr)
		if err != nil {
			log.Warn("cannot use atoi, usign default key", "key", key, "default-key", def)
			return def
		}
		return val
	}

	getEnvBool := func(key string, def bool) bool {
		valStr := os.Getenv(key)
		if valStr == "" {
			log.Warn("using default key", "key", key, "default-key", def)
			return def
		}
		val, err := strconv.ParseBool(valStr)
		if err != nil {
			log.Warn("cannot parse bool, usign default key", "key", key, "default-key", def)
			return def
		}
		return val
	}

	getEnvDuration := func(key string, def time.Duration) time.Duration {
		valStr := os.Getenv(key)
		if valStr == "" {
			log.Warn("using default key", "key", key, "default-key", def.String())
			return def
		}
		val, err := time.ParseDuration(valStr)
		if err != nil {
			log.Warn("cannot parse duration, usign default key", "key", key, "default-key", def.String())
			return def
		}
		return val
	}

	cnf := &Config{
		DB: &DBconfig{
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnvInt("DB_PORT", 5432),
			User:       getEnv("DB_USER", "bustracker_user"),
			Password:   getEnv("DB_PASSWORD", "bustracker_pass"),
			Database:   getEnv("DB_NAME", "bustracker_db"),
			MaxConns:   getEnvInt("DB_MAX_CONNS", 10),
			MaxRetries: getEnvInt("DB_MAX_RETRIES", 5),
		},
		RabbitMq: &RabbitMqconfig{
			Enabled:  getEnvBool("RABBITMQ_ENABLED", false),
			Host:     getEnv("RABBITMQ_HOST", "localhost"),
			Port:     getEnvInt("RABBITMQ_PORT", 5672),
			User:     getEnv("RABBITMQ_USER", "guest"),
			Password: getEnv("RABBITMQ_PASSWORD", "guest"),
			VHost:    strings.TrimPrefix(getEnv("RABBITMQ_VHOST", "/"), "/"),
		},
		Redis: &Redisconfig{
			Addr:       getEnv("REDIS_ADDR", "localhost:6379"),
			Password:   os.Getenv("REDIS_PASSWORD"),
			DB:         getEnvInt("REDIS_DB", 0),
			MaxRetries: getEnvInt("REDIS_MAX_RETRIES", 3),
			PoolSize:   getEnvInt("REDIS_POOL_SIZE", 10),
		},
		Srv: &Serviceconfig{
			TrackingServicePort: getEnv("TRACKING_SERVICE_PORT", "3001"),
			ReadTimeout:         getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:        getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout:     getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Log: &Loggerconfig{
			Level: strings.ToUpper(getEnv("LOG_LEVEL", "INFO")),
		},
		JWT: &JWTconfig{
			Secret: getEnv("JWT_SECRET", "bus-tracker-secret"),
		},
		History: &Historyconfig{
			Backend:         strings.ToLower(getEnv("HISTORY_BACKEND", "postgres")),
			QueueSize:       getEnvInt("HISTORY_QUEUE_SIZE", 1024),
			Workers:         getEnvInt("HISTORY_WORKERS", 2),
			MaxRetries:      getEnvInt("HISTORY_MAX_RETRIES", 5),
			InitialBackoff:  getEnvDuration("HISTORY_INITIAL_BACKOFF", 200*time.Millisecond),
			MaxBackoff:      getEnvDuration("HISTORY_MAX_BACKOFF", 5*time.Second),
			WriteTimeout:    getEnvDuration("HISTORY_WRITE_TIMEOUT", 3*time.Second),
			BreakerFailures: getEnvInt("HISTORY_BREAKER_FAILURES", 5),
			BreakerTimeout:  getEnvDuration("HISTORY_BREAKER_TIMEOUT", 30*time.Second),
		},
		Liveness: &Livenessconfig{
			DriverGrace:   getEnvDuration("LIVENESS_DRIVER_GRACE", 2*time.Minute),
			StaleAfter:    getEnvDuration("LIVENESS_STALE_AFTER", 5*time.Minute),
			SweepInterval: getEnvDuration("LIVENESS_SWEEP_INTERVAL", 30*time.Second),
		},
		Fleet: &Fleetconfig{
			RefreshInterval: getEnvDuration("FLEET_REFRESH_INTERVAL", time.Minute),
		},
		Session: &Sessionconfig{
			SendBuffer: getEnvInt("SESSION_SEND_BUFFER", 256),
		},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cnf.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cnf.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cnf, nil
}

// LoadFile overlays the YAML file at path onto c. Keys absent from the file
// keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	c.Log.Level = strings.ToUpper(c.Log.Level)
	c.History.Backend = strings.ToLower(c.History.Backend)
	c.RabbitMq.VHost = strings.TrimPrefix(c.RabbitMq.VHost, "/")
	return nil
}

func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// DSN builds the postgres connection string.
func (c *DBconfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%v:%v@%v:%v/%v?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// URL builds the amqp connection string.
func (c *RabbitMqconfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, c.VHost)
}
