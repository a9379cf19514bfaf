package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var errMissingRequiredEnv = errors.New("missing required environment variables")

// Config is read once at startup and treated as immutable.
type Config struct {
	Port    string
	GinMode string

	MongoURI      string
	MongoDatabase string

	PrivateKeyPEM  string
	PrivateKeyFile string
	PublicKeyPEM   string
	PublicKeyFile  string
	TokenIssuer    string
	TokenAudience  string

	GitHubAPIURL       string
	GitHubClientID     string
	GitHubClientSecret string
	GitHubToken        string
	GitHubCacheTTL     time.Duration

	RedisURL string

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubscriber string

	CORSAllowedOrigins []string
	RateLimitPerMinute int
	AuthRateLimit      int

	LogLevel  string
	LogFormat string
}

// LoadEnvFile merges a .env file into the process environment. Variables
// already set win. A missing default file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil
		}
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string
	req := func(key string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg.MongoURI = req("MONGODB_URI")

	cfg.PrivateKeyPEM = getEnvString("JWT_PRIVATE_KEY", "")
	cfg.PrivateKeyFile = getEnvString("JWT_PRIVATE_KEY_FILE", "")
	if cfg.PrivateKeyPEM == "" && cfg.PrivateKeyFile == "" {
		missing = append(missing, "JWT_PRIVATE_KEY|JWT_PRIVATE_KEY_FILE")
	}
	cfg.PublicKeyPEM = getEnvString("JWT_PUBLIC_KEY", "")
	cfg.PublicKeyFile = getEnvString("JWT_PUBLIC_KEY_FILE", "")
	if cfg.PublicKeyPEM == "" && cfg.PublicKeyFile == "" {
		missing = append(missing, "JWT_PUBLIC_KEY|JWT_PUBLIC_KEY_FILE")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", errMissingRequiredEnv, strings.Join(missing, ", "))
	}

	cfg.Port = getEnvString("PORT", "5000")
	cfg.GinMode = getEnvString("GIN_MODE", "debug")
	cfg.MongoDatabase = getEnvString("MONGODB_DATABASE", "devconnector")
	cfg.TokenIssuer = getEnvString("JWT_ISSUER", "devconnector")
	cfg.TokenAudience = getEnvString("JWT_AUDIENCE", "http://localhost:3000")
	cfg.GitHubAPIURL = getEnvString("GITHUB_API_URL", "https://api.github.com")
	cfg.GitHubClientID = getEnvString("GITHUB_CLIENT_ID", "")
	cfg.GitHubClientSecret = getEnvString("GITHUB_CLIENT_SECRET", "")
	cfg.GitHubToken = getEnvString("GITHUB_TOKEN", "")
	cfg.GitHubCacheTTL = getEnvDuration("GITHUB_CACHE_TTL", 10*time.Minute)
	cfg.RedisURL = getEnvString("REDIS_URL", "")
	cfg.VAPIDPublicKey = getEnvString("VAPID_PUBLIC_KEY", "")
	cfg.VAPIDPrivateKey = getEnvString("VAPID_PRIVATE_KEY", "")
	cfg.VAPIDSubscriber = getEnvString("VAPID_SUBSCRIBER", "mailto:admin@devconnector.local")
	cfg.CORSAllowedOrigins = splitList(getEnvString("CORS_ALLOWED_ORIGINS", "http://localhost:3000"))
	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", 120)
	cfg.AuthRateLimit = getEnvInt("AUTH_RATE_LIMIT_PER_MINUTE", 10)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.LogFormat = getEnvString("LOG_FORMAT", "json")

	return cfg, nil
}

// PushEnabled reports whether web-push notifications can be sent.
func (c *Config) PushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

func getEnvString(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
