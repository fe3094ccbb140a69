package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Query refresh policies
const (
	PolicyLazy   = "lazy"   // block a query on a refresh when the cache is stale
	PolicyCached = "cached" // always serve the cached snapshot
)

// Config holds all application configuration
type Config struct {
	// Clash of Clans API
	CocAPIToken     string        `envconfig:"COC_API_TOKEN" default:""`
	CocEmail        string        `envconfig:"COC_EMAIL" default:""`
	CocPassword     string        `envconfig:"COC_PASSWORD" default:""`
	CocBaseURL      string        `envconfig:"COC_BASE_URL" default:"https://api.clashofclans.com/v1"`
	CocDeveloperURL string        `envconfig:"COC_DEVELOPER_URL" default:"https://developer.clashofclans.com"`
	CocKeyName      string        `envconfig:"COC_KEY_NAME" default:"roster-checker"`
	CocTimeout      time.Duration `envconfig:"COC_TIMEOUT" default:"0s"`

	// Circuit breaker around player lookups
	BreakerMaxFailures uint32        `envconfig:"BREAKER_MAX_FAILURES" default:"20"`
	BreakerOpenTimeout time.Duration `envconfig:"BREAKER_OPEN_TIMEOUT" default:"30s"`

	// Google Sheets roster source
	SheetID        string `envconfig:"SHEET_ID" required:"true"`
	SheetRange     string `envconfig:"SHEET_RANGE" default:"sheet1"`
	GoogleAPIKey   string `envconfig:"GOOGLE_API_KEY" required:"true"`
	SheetsEndpoint string `envconfig:"SHEETS_ENDPOINT" default:""`

	// Roster column layout (zero-based)
	ColumnPlayerName       int `envconfig:"COLUMN_PLAYER_NAME" default:"1"`
	ColumnPlayerTag        int `envconfig:"COLUMN_PLAYER_TAG" default:"2"`
	ColumnTownHall         int `envconfig:"COLUMN_TOWN_HALL" default:"3"`
	ColumnDiscordUsername  int `envconfig:"COLUMN_DISCORD_USERNAME" default:"5"`
	ColumnDiscordUserID    int `envconfig:"COLUMN_DISCORD_USER_ID" default:"6"`
	ColumnAssignedClanName int `envconfig:"COLUMN_ASSIGNED_CLAN_NAME" default:"7"`
	ColumnAssignedClanTag  int `envconfig:"COLUMN_ASSIGNED_CLAN_TAG" default:"8"`

	// Batching
	BatchSize  int           `envconfig:"BATCH_SIZE" default:"15"`
	BatchDelay time.Duration `envconfig:"BATCH_DELAY" default:"400ms"`

	// Refresh
	RefreshSchedule    string        `envconfig:"REFRESH_SCHEDULE" default:"@every 3m"`
	StaleAfter         time.Duration `envconfig:"STALE_AFTER" default:"3m"`
	QueryRefreshPolicy string        `envconfig:"QUERY_REFRESH_POLICY" default:"lazy"`
	EnableScheduler    bool          `envconfig:"ENABLE_SCHEDULER" default:"true"`
	InitialSyncEnabled bool          `envconfig:"INITIAL_SYNC_ENABLED" default:"true"`

	// Redis snapshot mirror
	RedisEnabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisKey      string `envconfig:"REDIS_KEY" default:"coc:roster:snapshot"`

	// Application
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Port     int    `envconfig:"PORT" default:"3001"`

	// Monitoring
	EnableMetrics bool `envconfig:"ENABLE_METRICS" default:"true"`
	MetricsPort   int  `envconfig:"METRICS_PORT" default:"9090"`
}

// Load loads configuration from environment variables
// It first attempts to load from .env file if in development mode
func Load() (*Config, error) {
	// Try to load .env file (ignore error if doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.CocAPIToken == "" && (c.CocEmail == "" || c.CocPassword == "") {
		return fmt.Errorf("COC_API_TOKEN or COC_EMAIL and COC_PASSWORD are required")
	}

	if c.SheetID == "" {
		return fmt.Errorf("SHEET_ID is required")
	}

	if c.BatchSize <= 0 {
		return fmt.Errorf("BATCH_SIZE must be positive, got %d", c.BatchSize)
	}

	if c.BatchDelay < 0 {
		return fmt.Errorf("BATCH_DELAY must not be negative")
	}

	if c.QueryRefreshPolicy != PolicyLazy && c.QueryRefreshPolicy != PolicyCached {
		return fmt.Errorf("QUERY_REFRESH_POLICY must be %q or %q, got %q", PolicyLazy, PolicyCached, c.QueryRefreshPolicy)
	}

	columns := map[string]int{
		"COLUMN_PLAYER_NAME":        c.ColumnPlayerName,
		"COLUMN_PLAYER_TAG":         c.ColumnPlayerTag,
		"COLUMN_TOWN_HALL":          c.ColumnTownHall,
		"COLUMN_DISCORD_USERNAME":   c.ColumnDiscordUsername,
		"COLUMN_DISCORD_USER_ID":    c.ColumnDiscordUserID,
		"COLUMN_ASSIGNED_CLAN_NAME": c.ColumnAssignedClanName,
		"COLUMN_ASSIGNED_CLAN_TAG":  c.ColumnAssignedClanTag,
	}
	for name, idx := range columns {
		if idx < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}

	return nil
}

// UsesDeveloperLogin reports whether API keys are obtained through the developer portal
func (c *Config) UsesDeveloperLogin() bool {
	return c.CocAPIToken == ""
}

// RedisAddr returns the Redis address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// ListenAddr returns the HTTP listen address
func (c *Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// MustLoad loads configuration or panics on error
// Use this in main() where we want to fail fast
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
