package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"atm-ledger/pkg/directory"
	"atm-ledger/pkg/ledger"
	"atm-ledger/pkg/logging"
)

// Backend names accepted by ATM_LEDGER_BACKEND and ATM_MIRROR_BACKEND.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	Log          logging.Config
	Ledger       LedgerConfig
	Redis        RedisConfig
	Postgres     PostgresConfig
	Resilience   ResilienceConfig
	Mirror       MirrorConfig
	API          APIConfig
	AccountsFile string
}

type LedgerConfig struct {
	Backend     string
	Dir         string
	Durability  ledger.DurabilityMode
	Amounts     ledger.AmountPolicy
	Duplicates  directory.DuplicatePolicy
	MaxAttempts int
	Hasher      string
	NoSync      bool

	// Location renders and parses record timestamps
	Location *time.Location
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

type PostgresConfig struct {
	DSN      string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type ResilienceConfig struct {
	Enabled          bool
	Timeout          time.Duration
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

type MirrorConfig struct {
	// Backend is empty when mirroring is disabled
	Backend   string
	Dir       string
	Workers   int
	QueueSize int
}

type APIConfig struct {
	Enabled bool
	Addr    string
}

// Load reads the configuration from ATM_* environment variables.
func Load() (*Config, error) {
	durability, err := ledger.ParseDurabilityMode(getEnv("ATM_DURABILITY", "rollback"))
	if err != nil {
		return nil, fmt.Errorf("invalid ATM_DURABILITY: %w", err)
	}
	amounts, err := ledger.ParseAmountPolicy(getEnv("ATM_AMOUNT_POLICY", "positive"))
	if err != nil {
		return nil, fmt.Errorf("invalid ATM_AMOUNT_POLICY: %w", err)
	}
	duplicates, err := directory.ParseDuplicatePolicy(getEnv("ATM_DUPLICATE_POLICY", "reject"))
	if err != nil {
		return nil, fmt.Errorf("invalid ATM_DUPLICATE_POLICY: %w", err)
	}
	maxAttempts, err := getIntEnv("ATM_MAX_ATTEMPTS", 3)
	if err != nil {
		return nil, err
	}

	redisDB, err := getIntEnv("ATM_REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	pgPort, err := getIntEnv("ATM_POSTGRES_PORT", 5432)
	if err != nil {
		return nil, err
	}

	cbTimeout, err := getDurationEnv("ATM_RESILIENCE_TIMEOUT", 2*time.Second)
	if err != nil {
		return nil, err
	}
	cbOpen, err := getDurationEnv("ATM_RESILIENCE_OPEN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	cbThreshold, err := getIntEnv("ATM_RESILIENCE_FAILURES", 5)
	if err != nil {
		return nil, err
	}

	location, err := time.LoadLocation(getEnv("ATM_TIMEZONE", "Local"))
	if err != nil {
		return nil, fmt.Errorf("invalid ATM_TIMEZONE: %w", err)
	}

	mirrorWorkers, err := getIntEnv("ATM_MIRROR_WORKERS", 2)
	if err != nil {
		return nil, err
	}
	mirrorQueue, err := getIntEnv("ATM_MIRROR_QUEUE_SIZE", 256)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Log: logging.ConfigFromEnv(),
		Ledger: LedgerConfig{
			Backend:     strings.ToLower(getEnv("ATM_LEDGER_BACKEND", BackendFile)),
			Dir:         getEnv("ATM_LEDGER_DIR", "."),
			Durability:  durability,
			Amounts:     amounts,
			Duplicates:  duplicates,
			MaxAttempts: maxAttempts,
			Hasher:      getEnv("ATM_HASHER", "sha256"),
			NoSync:      getBoolEnv("ATM_LEDGER_NO_SYNC", false),
			Location:    location,
		},
		Redis: RedisConfig{
			Addr:      getEnv("ATM_REDIS_ADDR", "localhost:6379"),
			Password:  getEnv("ATM_REDIS_PASSWORD", ""),
			DB:        redisDB,
			KeyPrefix: getEnv("ATM_REDIS_PREFIX", "atm:ledger"),
		},
		Postgres: PostgresConfig{
			DSN:      getEnv("ATM_POSTGRES_DSN", ""),
			Host:     getEnv("ATM_POSTGRES_HOST", "localhost"),
			Port:     pgPort,
			User:     getEnv("ATM_POSTGRES_USER", "postgres"),
			Password: getEnv("ATM_POSTGRES_PASSWORD", ""),
			DBName:   getEnv("ATM_POSTGRES_DB", "atm_ledger"),
			SSLMode:  getEnv("ATM_POSTGRES_SSLMODE", "disable"),
		},
		Resilience: ResilienceConfig{
			Enabled:          getBoolEnv("ATM_RESILIENCE_ENABLED", true),
			Timeout:          cbTimeout,
			FailureThreshold: uint32(cbThreshold),
			OpenTimeout:      cbOpen,
		},
		Mirror: MirrorConfig{
			Backend:   strings.ToLower(getEnv("ATM_MIRROR_BACKEND", "")),
			Dir:       getEnv("ATM_MIRROR_DIR", "mirror"),
			Workers:   mirrorWorkers,
			QueueSize: mirrorQueue,
		},
		API: APIConfig{
			Enabled: getBoolEnv("ATM_API_ENABLED", false),
			Addr:    getEnv("ATM_API_ADDR", "127.0.0.1:8080"),
		},
		AccountsFile: getEnv("ATM_ACCOUNTS_FILE", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if !validBackend(c.Ledger.Backend) {
		return fmt.Errorf("ATM_LEDGER_BACKEND must be one of file, memory, redis, postgres; got %q", c.Ledger.Backend)
	}
	if c.Mirror.Backend != "" && !validBackend(c.Mirror.Backend) {
		return fmt.Errorf("ATM_MIRROR_BACKEND must be empty or one of file, memory, redis, postgres; got %q", c.Mirror.Backend)
	}
	if c.Mirror.Backend != "" && c.Mirror.Backend == c.Ledger.Backend && c.Mirror.Backend != BackendFile {
		return fmt.Errorf("ATM_MIRROR_BACKEND must differ from ATM_LEDGER_BACKEND")
	}
	if c.Mirror.Backend == BackendFile && c.Ledger.Backend == BackendFile && c.Mirror.Dir == c.Ledger.Dir {
		return fmt.Errorf("ATM_MIRROR_DIR must differ from ATM_LEDGER_DIR")
	}
	if c.Ledger.MaxAttempts <= 0 {
		return fmt.Errorf("ATM_MAX_ATTEMPTS must be positive")
	}
	if c.Resilience.Enabled && c.Resilience.FailureThreshold == 0 {
		return fmt.Errorf("ATM_RESILIENCE_FAILURES must be positive")
	}
	return nil
}

// ConnectionString renders the lib/pq DSN.
func (c *PostgresConfig) ConnectionString() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Policy returns the ledger policy described by the configuration.
func (c *LedgerConfig) Policy() ledger.Policy {
	p := ledger.DefaultPolicy()
	p.Durability = c.Durability
	p.Amounts = c.Amounts
	if c.Location != nil {
		p.Location = c.Location
	}
	return p
}

func validBackend(name string) bool {
	switch name {
	case BackendFile, BackendMemory, BackendRedis, BackendPostgres:
		return true
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	// Accept: true, false, 1, 0, yes, no (case-insensitive)
	switch strings.ToLower(value) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
