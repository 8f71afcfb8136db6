// Package config provides configuration management for the token sync jobs.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	ChainID    int64
	Gateway    GatewayConfig
	Blockscout BlockscoutConfig
	Safe       SafeConfig
	InkySwap   InkySwapConfig
	InkyPump   InkyPumpConfig
	CMC        CMCConfig
	Market     MarketConfig
	History    HistoryConfig
	Names      NamesConfig
	Logging    LoggingConfig
}

// GatewayConfig holds PostgREST persistence gateway configuration
type GatewayConfig struct {
	BaseURL    string
	ServiceKey string
}

// BlockscoutConfig holds block-explorer service configuration
type BlockscoutConfig struct {
	BaseURL  string
	APIKey   string
	MaxPages int
}

// SafeConfig holds multisig registry service configuration
type SafeConfig struct {
	BaseURL  string
	PageSize int
	MaxPages int
}

// InkySwapConfig holds AMM aggregator service configuration
type InkySwapConfig struct {
	BaseURL string
}

// InkyPumpConfig holds launch-platform service configuration
type InkyPumpConfig struct {
	BaseURL    string
	BatchSize  int
	MaxBatches int
	BatchDelay time.Duration
}

// CMCConfig holds market-data provider configuration
type CMCConfig struct {
	BaseURL   string
	APIKey    string
	BatchSize int
}

// MarketConfig holds market data synchronizer configuration
type MarketConfig struct {
	TTL              time.Duration
	SnapshotPageSize int
	StableSymbols    []string
	StableAddresses  []string
}

// HistoryConfig holds price history synchronizer configuration
type HistoryConfig struct {
	TTL        time.Duration
	Points     int
	TokenLimit int
}

// NamesConfig holds name resolver configuration
type NamesConfig struct {
	TTL       time.Duration
	MaxPerRun int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := &Config{
		ChainID: getEnvAsInt64("INK_CHAIN_ID", 57073),
		Gateway: GatewayConfig{
			BaseURL:    getEnv("SUPABASE_URL", ""),
			ServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", ""),
		},
		Blockscout: BlockscoutConfig{
			BaseURL:  getEnv("BLOCKSCOUT_BASE_URL", "https://explorer.inkonchain.com"),
			APIKey:   getEnv("INK_API_KEY", ""),
			MaxPages: getEnvAsInt("BLOCKSCOUT_MAX_PAGES", 20),
		},
		Safe: SafeConfig{
			BaseURL:  getEnv("SAFE_TX_SERVICE_BASE", ""),
			PageSize: getEnvAsInt("SAFE_TOKENS_PAGE_SIZE", 200),
			MaxPages: getEnvAsInt("SAFE_MAX_PAGES", 20),
		},
		InkySwap: InkySwapConfig{
			BaseURL: getEnv("INKYSWAP_API_BASE", "https://inkyswap.com"),
		},
		InkyPump: InkyPumpConfig{
			BaseURL:    getEnv("INKYPUMP_API_BASE", "https://inkypump.com"),
			BatchSize:  getEnvAsInt("INKYPUMP_BATCH_SIZE", 50),
			MaxBatches: getEnvAsInt("INKYPUMP_MAX_BATCHES", 10),
			BatchDelay: getEnvAsDuration("INKYPUMP_BATCH_DELAY", 2*time.Second),
		},
		CMC: CMCConfig{
			BaseURL:   getEnv("CMC_API_BASE", "https://pro-api.coinmarketcap.com"),
			APIKey:    getEnv("CMC_API_KEY", ""),
			BatchSize: getEnvAsInt("CMC_BATCH_SIZE", 100),
		},
		Market: MarketConfig{
			TTL:              time.Duration(getEnvAsInt("MARKET_DATA_TTL_MINUTES", 10)) * time.Minute,
			SnapshotPageSize: getEnvAsInt("MARKET_SNAPSHOT_PAGE_SIZE", 200),
			StableSymbols:    getEnvAsList("STABLECOIN_SYMBOLS", "USDC,USDT,DAI"),
			StableAddresses:  getEnvAsList("STABLECOIN_ADDRESSES", ""),
		},
		History: HistoryConfig{
			TTL:        time.Duration(getEnvAsInt("MARKET_HISTORY_TTL_MINUTES", 60)) * time.Minute,
			Points:     getEnvAsInt("CMC_HISTORY_POINTS", 168),
			TokenLimit: getEnvAsInt("CMC_HISTORY_TOKEN_LIMIT", 50),
		},
		Names: NamesConfig{
			TTL:       time.Duration(getEnvAsInt("NAME_RESOLUTION_TTL_HOURS", 24)) * time.Hour,
			MaxPerRun: getEnvAsInt("NAME_RESOLUTION_MAX_PER_RUN", 200),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if cfg.Gateway.BaseURL == "" || cfg.Gateway.ServiceKey == "" {
		return nil, fmt.Errorf("missing SUPABASE_URL or SUPABASE_SERVICE_ROLE_KEY")
	}

	return cfg, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt64 gets an environment variable as an int64 with a default value
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList gets a comma-separated environment variable as a string slice
func getEnvAsList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			values = append(values, part)
		}
	}
	return values
}
