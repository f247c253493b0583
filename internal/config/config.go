package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // reporting timezone must resolve on hosts without zoneinfo

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Logger   Logger   `mapstructure:"logger"`
	Server   Server   `mapstructure:"server"`
	Ledger   Ledger   `mapstructure:"ledger"`
	Store    Store    `mapstructure:"store"`
	Database Database `mapstructure:"database"`
	CSV      CSV      `mapstructure:"csv"`
	Sheets   Sheets   `mapstructure:"sheets"`
	DynamoDB DynamoDB `mapstructure:"dynamodb"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Server holds the configuration for the API server.
type Server struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Ledger holds the trade ledger behaviour.
type Ledger struct {
	Timezone     string        `mapstructure:"timezone"`
	OwnerScoping bool          `mapstructure:"owner_scoping"`
	DefaultOwner string        `mapstructure:"default_owner"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
}

// Store selects the record store backend.
type Store struct {
	Driver string `mapstructure:"driver"` // sqlite, csv, sheets, dynamodb or memory
}

// Database holds the configuration for the SQL backend.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// CSV holds the configuration for the CSV file backend.
type CSV struct {
	Path string `mapstructure:"path"`
}

// Sheets holds the configuration for the spreadsheet backend.
type Sheets struct {
	BaseURL         string  `mapstructure:"base_url"`
	SpreadsheetID   string  `mapstructure:"spreadsheet_id"`
	Worksheet       string  `mapstructure:"worksheet"`
	CredentialsFile string  `mapstructure:"credentials_file"`
	RateLimit       float64 `mapstructure:"rate_limit"`
	RateLimitBurst  int     `mapstructure:"rate_limit_burst"`
}

// DynamoDB holds the configuration for the DynamoDB backend.
type DynamoDB struct {
	Table    string `mapstructure:"table"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

// Location resolves the reporting timezone.
func (l Ledger) Location() (*time.Location, error) {
	if l.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(l.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid ledger timezone %q: %w", l.Timezone, err)
	}
	return loc, nil
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error; defaults and LEDGER_* variables apply.
func LoadConfig(path string) (config Config, err error) {
	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return config, fmt.Errorf("could not load .env: %w", err)
	}

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yml")

	v.SetEnvPrefix("ledger")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return
		}
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("ledger.timezone", "Asia/Kolkata")
	v.SetDefault("ledger.owner_scoping", true)
	v.SetDefault("ledger.default_owner", "Guest")
	v.SetDefault("ledger.cache_ttl", time.Duration(0))

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("database.dsn", "paper_trades.db")
	v.SetDefault("csv.path", "paper_trades.csv")

	v.SetDefault("sheets.base_url", "https://sheets.googleapis.com")
	v.SetDefault("sheets.spreadsheet_id", "")
	v.SetDefault("sheets.worksheet", "Trades")
	v.SetDefault("sheets.credentials_file", "")
	v.SetDefault("sheets.rate_limit", 1) // requests per second
	v.SetDefault("sheets.rate_limit_burst", 5)

	v.SetDefault("dynamodb.table", "paper_trades")
	v.SetDefault("dynamodb.region", "ap-south-1")
	v.SetDefault("dynamodb.endpoint", "")
}
