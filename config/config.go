// Package config loads the storefront configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

type Config struct {
	AppEnv string
	Port   string

	LogLevel  string
	LogFormat string

	StorageDriver string
	MongoURI      string
	MongoDatabase string
	StoreTimeout  time.Duration

	JWTSecret        string
	JWTRefreshSecret string

	KafkaBrokers []string
	KafkaTopic   string

	MailProvider     string
	PostmarkAPIToken string
	SendgridAPIKey   string
	EmailSender      string

	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads .env when present and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found. Proceeding with environment variables.")
	}

	cfg := Config{
		AppEnv:           getEnv("APP_ENV", "dev"),
		Port:             getEnv("PORT", "8000"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "text"),
		StorageDriver:    strings.ToLower(getEnv("STORAGE_DRIVER", DriverMongo)),
		MongoURI:         getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:    getEnv("MONGO_DATABASE", "ecommerce"),
		StoreTimeout:     getEnvDuration("STORE_TIMEOUT", 5*time.Second),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		JWTRefreshSecret: os.Getenv("JWT_REFRESH_SECRET"),
		KafkaBrokers:     getEnvList("KAFKA_BROKERS"),
		KafkaTopic:       getEnv("KAFKA_TOPIC", "cart-events"),
		MailProvider:     getEnv("MAIL_PROVIDER", "none"),
		PostmarkAPIToken: os.Getenv("POSTMARK_API_TOKEN"),
		SendgridAPIKey:   os.Getenv("SENDGRID_API_KEY"),
		EmailSender:      getEnv("EMAIL_SENDER", "no-reply@flipzone.local"),
		RateLimitRPS:     getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst:   getEnvInt("RATE_LIMIT_BURST", 40),
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations the server cannot start with
func (c Config) Validate() error {
	var errs []error
	if c.StorageDriver != DriverMongo && c.StorageDriver != DriverMemory {
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", DriverMongo, DriverMemory, c.StorageDriver))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.JWTRefreshSecret == "" {
		errs = append(errs, errors.New("JWT_REFRESH_SECRET is required"))
	}
	if c.JWTSecret != "" && c.JWTSecret == c.JWTRefreshSecret {
		errs = append(errs, errors.New("JWT_REFRESH_SECRET must differ from JWT_SECRET"))
	}
	if c.StoreTimeout <= 0 {
		errs = append(errs, errors.New("STORE_TIMEOUT must be positive"))
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive"))
	}
	return errors.Join(errs...)
}

// IsProduction reports whether secure cookies and JSON logs should be used.
func (c Config) IsProduction() bool {
	return c.AppEnv == "production" || c.AppEnv == "prod"
}

// NewLogger configures the global logrus logger and returns the root entry.
func NewLogger(c Config) *log.Entry {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	if c.LogFormat == "json" || c.IsProduction() {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return log.WithField("app", "flipzone")
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
