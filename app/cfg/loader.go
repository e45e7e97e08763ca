package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBHost     string `long:"db-host" env:"DB_HOST" default:"localhost" description:"Database host"`
	DBPort     string `long:"db-port" env:"DB_PORT" default:"5432" description:"Database port"`
	DBUser     string `long:"db-user" env:"DB_USER" default:"curator" description:"Database user"`
	DBPassword string `long:"db-password" env:"DB_PASSWORD" default:"curator" description:"Database password (required)" required:"true"`
	DBName     string `long:"db-name" env:"DB_NAME" default:"curator" description:"Database name"`

	// Application configuration
	SeedDir         string `long:"seed-dir" env:"SEED_DIR" default:"./channels" description:"Directory containing channel seed files"`
	Port            string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey    string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for operator endpoints (optional)"`
	IngestInterval  int    `long:"ingest-interval" env:"INGEST_INTERVAL" default:"1800" description:"Feed ingestion interval in seconds"`
	PublishInterval int    `long:"publish-interval" env:"PUBLISH_INTERVAL" default:"20" description:"Publish cycle interval in seconds"`

	// Content generation
	GenerateURL     string `long:"generate-url" env:"GENERATE_URL" default:"https://api.openai.com/v1/chat/completions" description:"Chat completions endpoint for content generation"`
	GenerateKey     string `long:"generate-key" env:"GENERATE_KEY" description:"API key for the generation endpoint (optional)"`
	GenerateTimeout int    `long:"generate-timeout" env:"GENERATE_TIMEOUT" default:"20" description:"Generation call timeout in seconds"`

	// Publishing transport
	BotToken string `long:"bot-token" env:"BOT_TOKEN" description:"Telegram bot token used for publishing" required:"true"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"BezShuma/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, Europe/Moscow)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBHost:          raw.DBHost,
		DBPort:          raw.DBPort,
		DBUser:          raw.DBUser,
		DBPassword:      raw.DBPassword,
		DBName:          raw.DBName,
		SeedDir:         raw.SeedDir,
		Port:            raw.Port,
		APIAccessKey:    raw.APIAccessKey,
		IngestInterval:  raw.IngestInterval,
		PublishInterval: raw.PublishInterval,
		GenerateURL:     raw.GenerateURL,
		GenerateKey:     raw.GenerateKey,
		GenerateTimeout: raw.GenerateTimeout,
		BotToken:        raw.BotToken,
		UserAgent:       raw.UserAgent,
		Timezone:        raw.Timezone,
		Debug:           raw.Debug,
		Version:         GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
