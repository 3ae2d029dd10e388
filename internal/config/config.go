package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName         = "ParisGate"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultSessionTTL      = time.Hour
	defaultVerificationTTL = 24 * time.Hour
	defaultMongoDatabase   = "parisgate"
	defaultGeocoderURL     = "https://api-adresse.data.gouv.fr"
	defaultPublicBaseURL   = "http://localhost:8080"
	defaultPhoneRegion     = "FR"
	defaultLoginPerMinute  = 5
	defaultDevJWTSecret    = "dev-only-secret"

	// Paris, Notre-Dame kilometre zero area.
	defaultReferenceLatitude  = 48.8566
	defaultReferenceLongitude = 2.3522
	defaultMaxDistanceKm      = 50.0
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName  string
	AppEnv   string
	Port     string
	LogLevel string

	DatabaseURL   string
	RedisURL      string
	MongoURI      string
	MongoDatabase string

	JWTSecret       string
	SessionTTL      time.Duration
	VerificationTTL time.Duration
	PublicBaseURL   string
	GoogleClientID  string

	PostmarkToken string
	EmailSender   string

	GeocoderURL        string
	ReferenceLatitude  float64
	ReferenceLongitude float64
	MaxDistanceKm      float64
	PhoneDefaultRegion string

	LoginAttemptsPerMinute int
	ShutdownPeriod         time.Duration
	IdempotencyTTL         time.Duration
}

// Load reads an optional .env file, then configuration values from the
// environment, and populates a Config instance.
func Load() (Config, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg := Config{
		AppName:            getEnv("APP_NAME", defaultAppName),
		AppEnv:             getEnv("APP_ENV", defaultAppEnv),
		Port:               getEnv("PORT", defaultPort),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		MongoURI:           os.Getenv("MONGO_URI"),
		MongoDatabase:      getEnv("MONGO_DATABASE", defaultMongoDatabase),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		PublicBaseURL:      strings.TrimRight(getEnv("PUBLIC_BASE_URL", defaultPublicBaseURL), "/"),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		PostmarkToken:      os.Getenv("POSTMARK_API_TOKEN"),
		EmailSender:        os.Getenv("EMAIL_SENDER"),
		GeocoderURL:        strings.TrimRight(getEnv("GEOCODER_URL", defaultGeocoderURL), "/"),
		PhoneDefaultRegion: strings.ToUpper(getEnv("PHONE_DEFAULT_REGION", defaultPhoneRegion)),
	}

	var err error
	if cfg.SessionTTL, err = getDuration("SESSION_TTL_SECONDS", "SESSION_TTL", defaultSessionTTL); err != nil {
		return Config{}, err
	}
	if cfg.VerificationTTL, err = getDuration("VERIFICATION_TTL_SECONDS", "VERIFICATION_TTL", defaultVerificationTTL); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownPeriod, err = getDuration("SHUTDOWN_TIMEOUT_SECONDS", "SHUTDOWN_TIMEOUT", defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = getDuration("IDEMPOTENCY_TTL_SECONDS", "IDEMPOTENCY_TTL", defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}
	if cfg.ReferenceLatitude, err = getFloat("REFERENCE_LATITUDE", defaultReferenceLatitude); err != nil {
		return Config{}, err
	}
	if cfg.ReferenceLongitude, err = getFloat("REFERENCE_LONGITUDE", defaultReferenceLongitude); err != nil {
		return Config{}, err
	}
	if cfg.MaxDistanceKm, err = getFloat("MAX_DISTANCE_KM", defaultMaxDistanceKm); err != nil {
		return Config{}, err
	}
	if cfg.MaxDistanceKm <= 0 {
		return Config{}, fmt.Errorf("MAX_DISTANCE_KM must be positive")
	}

	cfg.LoginAttemptsPerMinute = defaultLoginPerMinute
	if v := os.Getenv("LOGIN_ATTEMPTS_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOGIN_ATTEMPTS_PER_MINUTE: %w", err)
		}
		cfg.LoginAttemptsPerMinute = n
	}

	if cfg.IsDevelopment() {
		if cfg.JWTSecret == "" {
			cfg.JWTSecret = defaultDevJWTSecret
		}
		return cfg, nil
	}

	for name, value := range map[string]string{
		"DATABASE_URL": cfg.DatabaseURL,
		"REDIS_URL":    cfg.RedisURL,
		"MONGO_URI":    cfg.MongoURI,
		"JWT_SECRET":   cfg.JWTSecret,
	} {
		if value == "" {
			return Config{}, fmt.Errorf("%s must be set when APP_ENV=%s", name, cfg.AppEnv)
		}
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDevelopment reports whether the service may run without its backing stores.
func (c Config) IsDevelopment() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// VerifyEmailURL is the public endpoint embedded in verification links.
func (c Config) VerifyEmailURL() string {
	return c.PublicBaseURL + "/api/verify-email"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getDuration accepts either a whole number of seconds or a Go duration string.
func getDuration(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(durationKey); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationKey, err)
		}
		return d, nil
	}
	return fallback, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
