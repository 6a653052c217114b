package config

import (
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/ilyakaznacheev/cleanenv"
)

const DefaultPath = "config.yaml"

type Config struct {
	DB       DBconfig       `yaml:"db"`
	RabbitMq RabbitMqconfig `yaml:"rabbitmq"`
	Redis    Redisconfig    `yaml:"redis"`
	Srv      Serviceconfig  `yaml:"service"`
	Log      Loggerconfig   `yaml:"log"`
	App      Appconfig      `yaml:"app"`
	Ledger   Ledgerconfig   `yaml:"ledger"`
}

type DBconfig struct {
	Host     string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"DB_USER" env-default:"ledger_user"`
	Password string `yaml:"password" env:"DB_PASSWORD" env-default:"ledger_pass"`
	Database string `yaml:"database" env:"DB_NAME" env-default:"ledger_db"`
}

type RabbitMqconfig struct {
	Host     string `yaml:"host" env:"RABBITMQ_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"RABBITMQ_PORT" env-default:"5672"`
	User     string `yaml:"user" env:"RABBITMQ_USER" env-default:"guest"`
	Password string `yaml:"password" env:"RABBITMQ_PASSWORD" env-default:"guest"`
	VHost    string `yaml:"vhost" env:"RABBITMQ_VHOST" env-default:""`
}

// Redisconfig is optional: an empty address turns idempotency keys off.
type Redisconfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:""`
	Password string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Serviceconfig struct {
	LedgerServicePort string `yaml:"ledger_service" env:"LEDGER_SERVICE_PORT" env-default:"3000"`
}

type Loggerconfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"INFO"`
}

type Appconfig struct {
	JwtSecret            string        `yaml:"jwt_secret" env:"JWT_SECRET" env-default:"change-me"`
	TokenTTL             time.Duration `yaml:"token_ttl" env:"JWT_TTL" env-default:"24h"`
	OperatorPasswordHash string        `yaml:"operator_password_hash" env:"OPERATOR_PASSWORD_HASH" env-default:""`
}

type Ledgerconfig struct {
	StartOffline bool          `yaml:"offline" env:"LEDGER_OFFLINE" env-default:"false"`
	DeclineRate  float64       `yaml:"decline_rate" env:"LEDGER_DECLINE_RATE" env-default:"0.05"`
	Timezone     string        `yaml:"timezone" env:"LEDGER_TIMEZONE" env-default:"Africa/Kampala"`
	Autopilot    bool          `yaml:"autopilot" env:"LEDGER_AUTOPILOT" env-default:"true"`
	TickInterval time.Duration `yaml:"tick_interval" env:"LEDGER_TICK_INTERVAL" env-default:"5s"`
	TripDuration time.Duration `yaml:"trip_duration" env:"LEDGER_TRIP_DURATION" env-default:"30s"`
}

// New reads DefaultPath when it exists and lets the environment override it.
func New() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = DefaultPath
	}
	return Load(path)
}

func Load(path string) (*Config, error) {
	cnf := &Config{}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cnf); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(cnf); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	if err := cnf.validate(); err != nil {
		return nil, err
	}
	return cnf, nil
}

func (c *Config) validate() error {
	if c.Ledger.DeclineRate < 0 || c.Ledger.DeclineRate > 1 {
		return fmt.Errorf("decline rate must be in range [0, 1], got %v", c.Ledger.DeclineRate)
	}
	if c.Ledger.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %v", c.Ledger.TickInterval)
	}
	if _, err := time.LoadLocation(c.Ledger.Timezone); err != nil {
		return fmt.Errorf("unknown timezone %q: %w", c.Ledger.Timezone, err)
	}
	return nil
}

// Location returns the zone used for surge hours and hour buckets.
func (l *Ledgerconfig) Location() *time.Location {
	loc, err := time.LoadLocation(l.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
