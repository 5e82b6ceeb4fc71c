package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	GoEnv   string `env:"GO_ENV" default:"development"`
	EnvFile string `env:"ENV_FILE" default:".env"` // also where the API key list is persisted

	// HTTP surface
	HTTPHost   string `env:"HTTP_HOST" default:"127.0.0.1"`
	HTTPPort   int    `env:"HTTP_PORT" default:"8080"`
	APIVersion string `env:"API_VERSION" default:"v1"`

	// Database (empty disables the key table and message log)
	DatabaseURL string `env:"DATABASE_URL"`

	// Redis (empty keeps pending OAuth states in memory)
	RedisURL      string `env:"REDIS_URL"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	// Authentication
	JWTSecret     string        `env:"JWT_SECRET" required:"true"`
	AdminTokenTTL time.Duration `env:"ADMIN_TOKEN_TTL" default:"1h"`
	MasterAPIKey  string        `env:"MASTER_API_KEY" required:"true"` // plain text or bcrypt hash
	APIKeys       []string      `env:"API_KEYS"`

	// Connection manager
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" default:"30s"`
	HeartbeatTimeout  time.Duration `env:"HEARTBEAT_TIMEOUT" default:"120s"`
	WSMessageRate     float64       `env:"WS_MESSAGE_RATE" default:"0"` // 0 disables the limiter
	WSMessageBurst    int           `env:"WS_MESSAGE_BURST" default:"20"`

	// Spotify OAuth
	SpotifyClientID     string        `env:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret string        `env:"SPOTIFY_CLIENT_SECRET"`
	SpotifyRedirectURI  string        `env:"SPOTIFY_REDIRECT_URI"`
	SpotifyScopes       []string      `env:"SPOTIFY_SCOPES" default:"playlist-modify-public,playlist-modify-private"`
	OAuthStateTTL       time.Duration `env:"OAUTH_STATE_TTL" default:"10m"`

	// File Storage
	CDNPath       string `env:"CDN_PATH" default:"./data/cdn"`
	CDNURL        string `env:"CDN_URL" default:"http://localhost:8080/cdn/static"`
	UploadMaxSize string `env:"UPLOAD_MAX_SIZE" default:"10MB"`

	// Development
	LogLevel    string   `env:"LOG_LEVEL" default:"info"`
	LogFormat   string   `env:"LOG_FORMAT" default:"text"`
	CORSOrigins []string `env:"CORS_ORIGINS" default:"*"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		// If .env file doesn't exist, that's OK - we can still use system env vars
		slog.Debug("env_file_not_loaded", "path", envFile, "error", err.Error())
	}

	config := &Config{EnvFile: envFile}

	if err := loadEnvString(&config.GoEnv, "GO_ENV", "development"); err != nil {
		return nil, err
	}

	// HTTP
	if err := loadEnvString(&config.HTTPHost, "HTTP_HOST", "127.0.0.1"); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.HTTPPort, "HTTP_PORT", 8080); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.APIVersion, "API_VERSION", "v1"); err != nil {
		return nil, err
	}

	// Database
	if err := loadEnvString(&config.DatabaseURL, "DATABASE_URL", ""); err != nil {
		return nil, err
	}

	// Redis
	if err := loadEnvString(&config.RedisURL, "REDIS_URL", ""); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.RedisPassword, "REDIS_PASSWORD", ""); err != nil {
		return nil, err
	}

	// Authentication
	if err := loadEnvStringRequired(&config.JWTSecret, "JWT_SECRET"); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.AdminTokenTTL, "ADMIN_TOKEN_TTL", time.Hour); err != nil {
		return nil, err
	}
	if err := loadEnvStringRequired(&config.MasterAPIKey, "MASTER_API_KEY"); err != nil {
		return nil, err
	}
	if err := loadEnvStringSlice(&config.APIKeys, "API_KEYS", nil); err != nil {
		return nil, err
	}

	// Connection manager
	if err := loadEnvDuration(&config.HeartbeatInterval, "HEARTBEAT_INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.HeartbeatTimeout, "HEARTBEAT_TIMEOUT", 120*time.Second); err != nil {
		return nil, err
	}
	if err := loadEnvFloat(&config.WSMessageRate, "WS_MESSAGE_RATE", 0); err != nil {
		return nil, err
	}
	if err := loadEnvInt(&config.WSMessageBurst, "WS_MESSAGE_BURST", 20); err != nil {
		return nil, err
	}

	// Spotify
	if err := loadEnvString(&config.SpotifyClientID, "SPOTIFY_CLIENT_ID", ""); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.SpotifyClientSecret, "SPOTIFY_CLIENT_SECRET", ""); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.SpotifyRedirectURI, "SPOTIFY_REDIRECT_URI", ""); err != nil {
		return nil, err
	}
	if err := loadEnvStringSlice(&config.SpotifyScopes, "SPOTIFY_SCOPES", []string{"playlist-modify-public", "playlist-modify-private"}); err != nil {
		return nil, err
	}
	if err := loadEnvDuration(&config.OAuthStateTTL, "OAUTH_STATE_TTL", 10*time.Minute); err != nil {
		return nil, err
	}

	// File Storage
	if err := loadEnvString(&config.CDNPath, "CDN_PATH", "./data/cdn"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.CDNURL, "CDN_URL", "http://localhost:8080/cdn/static"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.UploadMaxSize, "UPLOAD_MAX_SIZE", "10MB"); err != nil {
		return nil, err
	}

	// Development
	if err := loadEnvString(&config.LogLevel, "LOG_LEVEL", "info"); err != nil {
		return nil, err
	}
	if err := loadEnvString(&config.LogFormat, "LOG_FORMAT", "text"); err != nil {
		return nil, err
	}
	if err := loadEnvStringSlice(&config.CORSOrigins, "CORS_ORIGINS", []string{"*"}); err != nil {
		return nil, err
	}
	return config, nil
}

// Helper functions for type conversion and validation
func loadEnvString(target *string, key, defaultValue string) error {
	if value := os.Getenv(key); value != "" {
		*target = value
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvStringRequired(target *string, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return fmt.Errorf("required environment variable %s is not set", key)
	}
	*target = value
	return nil
}

func loadEnvInt(target *int, key string, defaultValue int) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvFloat(target *float64, key string, defaultValue float64) error {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid float value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

// loadEnvDuration also accepts a bare number of seconds ("30")
func loadEnvDuration(target *time.Duration, key string, defaultValue time.Duration) error {
	if value := os.Getenv(key); value != "" {
		if secs, err := strconv.ParseFloat(value, 64); err == nil {
			*target = time.Duration(secs * float64(time.Second))
			return nil
		}
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %v", key, err)
		}
		*target = parsed
	} else {
		*target = defaultValue
	}
	return nil
}

func loadEnvStringSlice(target *[]string, key string, defaultValue []string) error {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		// Trim whitespace and drop empty elements
		for _, v := range parts {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
		*target = out
	} else {
		*target = defaultValue
	}
	return nil
}

// Validate performs validation on the loaded configuration
func (c *Config) Validate() error {
	var errors []string

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errors = append(errors, "HTTP_PORT must be between 1 and 65535")
	}

	// Validate log level
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %s", strings.Join(validLogLevels, ", ")))
	}

	// Validate log format
	validLogFormats := []string{"text", "json"}
	if !contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: %s", strings.Join(validLogFormats, ", ")))
	}

	// Validate JWT secret length (should be at least 32 characters for security)
	if len(c.JWTSecret) < 32 {
		errors = append(errors, "JWT_SECRET should be at least 32 characters long")
	}

	if c.HeartbeatInterval <= 0 {
		errors = append(errors, "HEARTBEAT_INTERVAL must be positive")
	}
	if c.HeartbeatTimeout <= c.HeartbeatInterval {
		errors = append(errors, "HEARTBEAT_TIMEOUT must be greater than HEARTBEAT_INTERVAL")
	}
	if c.WSMessageRate < 0 {
		errors = append(errors, "WS_MESSAGE_RATE must not be negative")
	}
	if c.WSMessageRate > 0 && c.WSMessageBurst < 1 {
		errors = append(errors, "WS_MESSAGE_BURST must be positive when WS_MESSAGE_RATE is set")
	}

	if _, err := c.UploadMaxBytes(); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}

// SpotifyEnabled reports whether the OAuth routes can be served.
func (c *Config) SpotifyEnabled() bool {
	return c.SpotifyClientID != "" && c.SpotifyClientSecret != "" && c.SpotifyRedirectURI != ""
}

// UploadMaxBytes parses UploadMaxSize ("10MB", "512KB", "1048576").
func (c *Config) UploadMaxBytes() (int64, error) {
	value := strings.ToUpper(strings.TrimSpace(c.UploadMaxSize))
	multiplier := int64(1)
	for _, unit := range []struct {
		suffix string
		size   int64
	}{{"GB", 1 << 30}, {"MB", 1 << 20}, {"KB", 1 << 10}, {"B", 1}} {
		if strings.HasSuffix(value, unit.suffix) {
			value = strings.TrimSpace(strings.TrimSuffix(value, unit.suffix))
			multiplier = unit.size
			break
		}
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("UPLOAD_MAX_SIZE %q is not a valid size", c.UploadMaxSize)
	}
	return n * multiplier, nil
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GoEnv == "development"
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}

// Helper function to check if slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
