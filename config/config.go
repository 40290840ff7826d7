package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL string

	// Participant defaults
	StartingBalance int64

	// Game table configuration (fees, odds, crate catalog)
	GameTablesPath string

	// Settlement pipeline
	SettleInterval   time.Duration // how often the worker picks up locked games
	SweepInterval    time.Duration // how often stuck resolving games are retried
	ResolvingTimeout time.Duration // age before a resolving game counts as stuck

	// Experience accrual: XP granted per unit wagered, in basis points
	XPRateBps int64

	// Environment
	Environment string // "development" or "production"
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the global configuration instance
func Get() *Config {
	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// load loads configuration from environment variables
func load() (*Config, error) {
	config := &Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		GameTablesPath: os.Getenv("GAME_TABLES"),

		// Defaults
		StartingBalance:  100000,
		SettleInterval:   2 * time.Second,
		SweepInterval:    30 * time.Second,
		ResolvingTimeout: time.Minute,
		XPRateBps:        100, // 1 XP per 100 wagered

		Environment: os.Getenv("ENVIRONMENT"),
	}

	// Override defaults if environment variables are set
	if balance := os.Getenv("STARTING_BALANCE"); balance != "" {
		if parsedBalance, err := strconv.ParseInt(balance, 10, 64); err == nil {
			config.StartingBalance = parsedBalance
		}
	}
	if rate := os.Getenv("XP_RATE_BPS"); rate != "" {
		if parsedRate, err := strconv.ParseInt(rate, 10, 64); err == nil {
			config.XPRateBps = parsedRate
		}
	}
	if interval := os.Getenv("SETTLE_INTERVAL"); interval != "" {
		if parsed, err := time.ParseDuration(interval); err == nil {
			config.SettleInterval = parsed
		}
	}
	if interval := os.Getenv("SWEEP_INTERVAL"); interval != "" {
		if parsed, err := time.ParseDuration(interval); err == nil {
			config.SweepInterval = parsed
		}
	}
	if timeout := os.Getenv("RESOLVING_TIMEOUT"); timeout != "" {
		if parsed, err := time.ParseDuration(timeout); err == nil {
			config.ResolvingTimeout = parsed
		}
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		// Validate required configuration
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	}

	return config, nil
}
