// Package config provides configuration management for the GOMP mining pool.
// It handles loading configuration from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the global configuration for GOMP services
type Config struct {
	// Service identification
	ServiceName string
	Version     string
	Environment string

	// Network configuration
	ListenAddr string
	ListenPort int

	// Bitcoin Core connection
	BitcoinRPCHost     string
	BitcoinRPCPort     int
	BitcoinRPCUser     string
	BitcoinRPCPassword string
	BitcoinZMQAddr     string

	// Wallet connection, used only for payout sends. Defaults to the same
	// Bitcoin Core node as BitcoinRPC* since most deployments run one wallet
	// on the same node.
	WalletRPCHost     string
	WalletRPCPort     int
	WalletRPCUser     string
	WalletRPCPassword string
	WalletDryRun      bool // use a no-op wallet that never broadcasts

	// Pool identity and payout policy
	PoolAddress    string
	PayoutMethod   string // pplns, pps, prop, solo
	MinPayout      int64  // satoshis
	PayoutInterval time.Duration
	SweepInterval  time.Duration

	// Kafka configuration
	KafkaBrokers []string
	KafkaGroupID string

	// Database connections. The hot submit->validate->credit path never
	// touches these; they back the fan-out consumers (cmd/jobmanager,
	// cmd/shareproc, cmd/blocksubmit) that archive Kafka events for
	// dashboards and audit.
	PostgresHost     string
	PostgresPort     int
	PostgresDatabase string
	PostgresUser     string
	PostgresPassword string
	PostgresSSLMode  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	// Pool configuration
	PoolFeePercent    float64
	PPLNSWindowFactor float64
	MinDifficulty     float64
	MaxDifficulty     float64
	VardiffTarget     time.Duration
	VardiffRetarget   time.Duration

	// Performance tuning
	MaxConnections int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxMessageSize int
	BufferSize     int
	WorkerPoolSize int

	// Logging
	LogLevel  string
	LogFormat string
}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		// Service defaults
		ServiceName: getEnv("SERVICE_NAME", "gomp"),
		Version:     getEnv("VERSION", "dev"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Network defaults
		ListenAddr: getEnv("LISTEN_ADDR", "0.0.0.0"),
		ListenPort: getEnvInt("LISTEN_PORT", 3333),

		// Bitcoin Core defaults
		BitcoinRPCHost:     getEnv("BITCOIN_RPC_HOST", "localhost"),
		BitcoinRPCPort:     getEnvInt("BITCOIN_RPC_PORT", 8332),
		BitcoinRPCUser:     getEnv("BITCOIN_RPC_USER", ""),
		BitcoinRPCPassword: getEnv("BITCOIN_RPC_PASSWORD", ""),
		BitcoinZMQAddr:     getEnv("BITCOIN_ZMQ_ADDR", "tcp://localhost:28332"),

		WalletRPCHost:     getEnv("WALLET_RPC_HOST", getEnv("BITCOIN_RPC_HOST", "localhost")),
		WalletRPCPort:     getEnvInt("WALLET_RPC_PORT", getEnvInt("BITCOIN_RPC_PORT", 8332)),
		WalletRPCUser:     getEnv("WALLET_RPC_USER", getEnv("BITCOIN_RPC_USER", "")),
		WalletRPCPassword: getEnv("WALLET_RPC_PASSWORD", getEnv("BITCOIN_RPC_PASSWORD", "")),
		WalletDryRun:      getEnvBool("WALLET_DRY_RUN", true),

		PoolAddress:    getEnv("POOL_ADDRESS", ""),
		PayoutMethod:   getEnv("PAYOUT_METHOD", "pplns"),
		MinPayout:      int64(getEnvInt("MIN_PAYOUT_SATOSHIS", 1000000)),
		PayoutInterval: getEnvDuration("PAYOUT_INTERVAL", 24*time.Hour),
		SweepInterval:  getEnvDuration("PAYOUT_SWEEP_INTERVAL", 10*time.Minute),

		// Kafka defaults
		KafkaBrokers: getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "gomp"),

		// Database defaults
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnvInt("POSTGRES_PORT", 5432),
		PostgresDatabase: getEnv("POSTGRES_DATABASE", "gomp"),
		PostgresUser:     getEnv("POSTGRES_USER", "gomp"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		InfluxURL:    getEnv("INFLUX_URL", "http://localhost:8086"),
		InfluxToken:  getEnv("INFLUX_TOKEN", ""),
		InfluxOrg:    getEnv("INFLUX_ORG", "gomp"),
		InfluxBucket: getEnv("INFLUX_BUCKET", "mining"),

		// Pool defaults
		PoolFeePercent:    getEnvFloat("POOL_FEE_PERCENT", 1.0),
		PPLNSWindowFactor: getEnvFloat("PPLNS_WINDOW_FACTOR", 2.0),
		MinDifficulty:     getEnvFloat("MIN_DIFFICULTY", 1.0),
		MaxDifficulty:     getEnvFloat("MAX_DIFFICULTY", 1000000.0),
		VardiffTarget:     getEnvDuration("VARDIFF_TARGET", 30*time.Second),
		VardiffRetarget:   getEnvDuration("VARDIFF_RETARGET", 90*time.Second),

		// Performance defaults
		MaxConnections: getEnvInt("MAX_CONNECTIONS", 10000),
		ReadTimeout:    getEnvDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getEnvDuration("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:    getEnvDuration("IDLE_TIMEOUT", 120*time.Second),
		MaxMessageSize: getEnvInt("MAX_MESSAGE_SIZE", 4096),
		BufferSize:     getEnvInt("BUFFER_SIZE", 8192),
		WorkerPoolSize: getEnvInt("WORKER_POOL_SIZE", 100),

		// Logging defaults
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate performs basic validation of configuration values
func (c *Config) validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("SERVICE_NAME cannot be empty")
	}

	if c.ListenPort <= 0 || c.ListenPort > 65535 {
		return fmt.Errorf("LISTEN_PORT must be between 1 and 65535")
	}

	if c.PoolFeePercent < 0 || c.PoolFeePercent > 100 {
		return fmt.Errorf("POOL_FEE_PERCENT must be between 0 and 100")
	}

	if c.PPLNSWindowFactor <= 0 {
		return fmt.Errorf("PPLNS_WINDOW_FACTOR must be positive")
	}

	if c.MinDifficulty <= 0 {
		return fmt.Errorf("MIN_DIFFICULTY must be positive")
	}

	if c.MaxDifficulty <= c.MinDifficulty {
		return fmt.Errorf("MAX_DIFFICULTY must be greater than MIN_DIFFICULTY")
	}

	return nil
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		// Simple comma-separated parsing
		// In production, might want more sophisticated parsing
		return []string{value}
	}
	return defaultValue
}
