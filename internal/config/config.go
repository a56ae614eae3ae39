package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Port             string        `mapstructure:"PORT"`
	Env              string        `mapstructure:"ENV"`
	StoreDriver      string        `mapstructure:"STORE_DRIVER"`
	DatabaseURL      string        `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32         `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins      []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS     float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst   int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout   time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	AdminPasskey     string        `mapstructure:"ADMIN_PASSKEY"`
	AdminTokenSecret string        `mapstructure:"ADMIN_TOKEN_SECRET"`
	AdminTokenTTL    time.Duration `mapstructure:"ADMIN_TOKEN_TTL"`
	PublicBaseURL    string        `mapstructure:"PUBLIC_BASE_URL"`
	BlobDir          string        `mapstructure:"BLOB_DIR"`
	BucketID         string        `mapstructure:"BUCKET_ID"`
	SMSGatewayURL    string        `mapstructure:"SMS_GATEWAY_URL"`
	SMSGatewayToken  string        `mapstructure:"SMS_GATEWAY_TOKEN"`
	NotifyTimeout    time.Duration `mapstructure:"NOTIFY_TIMEOUT"`
	Timezone         string        `mapstructure:"TIMEZONE"`

	// AdminPasskeyHash is the bcrypt hash of AdminPasskey. The plain passkey
	// is cleared once hashed.
	AdminPasskeyHash []byte `mapstructure:"-"`
}

var envKeys = []string{
	"PORT", "ENV", "STORE_DRIVER", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT",
	"ADMIN_PASSKEY", "ADMIN_TOKEN_SECRET", "ADMIN_TOKEN_TTL", "PUBLIC_BASE_URL",
	"BLOB_DIR", "BUCKET_ID", "SMS_GATEWAY_URL", "SMS_GATEWAY_TOKEN",
	"NOTIFY_TIMEOUT", "TIMEZONE",
}

// Load reads configuration from the process environment, after merging any
// .env file found in the working directory. Variables already set in the
// environment win over .env entries.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("ADMIN_TOKEN_TTL", "12h")
	v.SetDefault("PUBLIC_BASE_URL", "http://localhost:8000")
	v.SetDefault("BLOB_DIR", "./data/blobs")
	v.SetDefault("BUCKET_ID", "identification")
	v.SetDefault("NOTIFY_TIMEOUT", "5s")
	v.SetDefault("TIMEZONE", "UTC")

	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if origins := v.GetString("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))

	if cfg.StoreDriver == StoreDriverPostgres && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is %q", StoreDriverPostgres)
	}
	if cfg.AdminPasskey == "" {
		return nil, fmt.Errorf("ADMIN_PASSKEY is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPasskey), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash admin passkey: %w", err)
	}
	cfg.AdminPasskeyHash = hash
	cfg.AdminPasskey = ""

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// UsesMemoryStore reports whether repositories are kept in process memory.
func (c *Config) UsesMemoryStore() bool {
	return c.StoreDriver == StoreDriverMemory
}

// Location resolves TIMEZONE, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate checks that the configuration is safe to run. Production requires
// a token secret and a Postgres store; the memory store loses every record on
// restart.
func (c *Config) Validate() error {
	if c.Env != "development" && c.Env != "production" && c.Env != "test" {
		return fmt.Errorf("ENV must be \"development\", \"test\", or \"production\", got %q", c.Env)
	}
	if c.StoreDriver != StoreDriverPostgres && c.StoreDriver != StoreDriverMemory {
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, c.StoreDriver)
	}
	if c.IsProduction() {
		if c.AdminTokenSecret == "" {
			return fmt.Errorf("ADMIN_TOKEN_SECRET is required in production")
		}
		if len(c.AdminTokenSecret) < 32 {
			return fmt.Errorf("ADMIN_TOKEN_SECRET must be at least 32 bytes, got %d", len(c.AdminTokenSecret))
		}
		if c.UsesMemoryStore() {
			return fmt.Errorf("STORE_DRIVER=%s is not allowed in production", StoreDriverMemory)
		}
	}
	if c.AdminTokenTTL <= 0 {
		return fmt.Errorf("ADMIN_TOKEN_TTL must be positive, got %s", c.AdminTokenTTL)
	}
	if c.NotifyTimeout <= 0 {
		return fmt.Errorf("NOTIFY_TIMEOUT must be positive, got %s", c.NotifyTimeout)
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
		}
	}
	return nil
}
