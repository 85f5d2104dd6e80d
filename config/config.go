package config

import (
	"time"

	"github.com/caarlos0/env/v6"
)

// DatabaseConfig selects and configures the Lookup Store backend.
type DatabaseConfig struct {
	// Driver is either "sqlite" or "mysql"
	Driver string `env:"DB_DRIVER" envDefault:"sqlite"`

	// Path of the sqlite database file
	Path string `env:"DB_PATH" envDefault:"database/homeworth.db"`

	// DSN used when Driver is mysql
	DSN string `env:"DB_DSN"`

	// Debug enables SQL statement logging
	Debug bool `env:"DB_DEBUG" envDefault:"false"`
}

// ValuationConfig configures the valuation API source.
type ValuationConfig struct {
	// Mode is "api" for the real valuation API or "demo" for generated placeholder payloads
	Mode    string        `env:"VALUATION_MODE" envDefault:"api"`
	BaseURL string        `env:"VALUATION_BASE_URL" envDefault:"https://api.rentcast.io/v1"`
	APIKey  string        `env:"VALUATION_API_KEY"`
	Timeout time.Duration `env:"VALUATION_TIMEOUT" envDefault:"10s"`
}

// ScraperConfig configures the property page scraper.
type ScraperConfig struct {
	UserAgent string        `env:"SCRAPER_USER_AGENT" envDefault:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/102.0.0.0 Safari/537.36"`
	Timeout   time.Duration `env:"SCRAPER_TIMEOUT" envDefault:"15s"`

	// Maximum page requests per second across all workers
	RequestsPerSecond float64 `env:"SCRAPER_RPS" envDefault:"1"`
	Burst             int     `env:"SCRAPER_BURST" envDefault:"1"`
}

// CensusConfig configures the census context source.
type CensusConfig struct {
	Enabled bool          `env:"CENSUS_ENABLED" envDefault:"true"`
	BaseURL string        `env:"CENSUS_BASE_URL" envDefault:"https://api.census.gov/data/2022/pep/housing"`
	APIKey  string        `env:"CENSUS_API_KEY"`
	Timeout time.Duration `env:"CENSUS_TIMEOUT" envDefault:"10s"`
}

// GeocoderConfig configures the Nominatim coordinate source.
type GeocoderConfig struct {
	Enabled   bool          `env:"GEOCODER_ENABLED" envDefault:"false"`
	BaseURL   string        `env:"GEOCODER_BASE_URL" envDefault:"https://nominatim.openstreetmap.org"`
	UserAgent string        `env:"GEOCODER_USER_AGENT" envDefault:"HomeWorth Property Tracker/1.0"`
	Timeout   time.Duration `env:"GEOCODER_TIMEOUT" envDefault:"10s"`

	// Nominatim's usage policy allows one request per second
	RequestsPerSecond float64       `env:"GEOCODER_RPS" envDefault:"1"`
	CacheTTL          time.Duration `env:"GEOCODER_CACHE_TTL" envDefault:"24h"`
}

// TelegramConfig holds the bot credentials used for price change alerts.
type TelegramConfig struct {
	Enabled  bool   `env:"TELEGRAM_ENABLED" envDefault:"false"`
	BotToken string `env:"TELEGRAM_BOT_TOKEN"`
	ChatID   string `env:"TELEGRAM_CHAT_ID"`
	BaseURL  string `env:"TELEGRAM_BASE_URL" envDefault:"https://api.telegram.org"`

	// Only alert when the price moved by at least this many percent
	MinChangePercent float64 `env:"TELEGRAM_MIN_CHANGE_PERCENT" envDefault:"0"`

	// Only alert for properties in these state codes; empty means all
	States []string `env:"TELEGRAM_STATES" envSeparator:","`
}

type Config struct {
	Server struct {
		Port           string   `env:"PORT" envDefault:"5250"`
		AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost,http://localhost:80,http://localhost:3000"`
		GinMode        string   `env:"GIN_MODE" envDefault:"release"`
	}

	Log struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
	}

	Database  DatabaseConfig
	Valuation ValuationConfig
	Scraper   ScraperConfig
	Census    CensusConfig
	Geocoder  GeocoderConfig
	Telegram  TelegramConfig

	// Ingest configures the background page refresh pipeline
	Ingest struct {
		// Maximum number of URL batches waiting in the queue
		QueueSize int `env:"INGEST_QUEUE_SIZE" envDefault:"100"`

		// Number of concurrent ingest workers
		ProcessorCount int `env:"INGEST_PROCESSOR_COUNT" envDefault:"2"`

		// Number of URLs per queued batch
		BatchSize int `env:"INGEST_BATCH_SIZE" envDefault:"20"`

		// How often known property pages are re-scraped; zero disables the scheduler
		RefreshInterval time.Duration `env:"INGEST_REFRESH_INTERVAL" envDefault:"24h"`

		// Run a refresh right after startup
		RefreshOnStartup bool `env:"INGEST_REFRESH_ON_STARTUP" envDefault:"false"`
	}
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
