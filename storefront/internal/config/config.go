package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string
	Environment    string
	LogLevel       string
	RequestTimeout time.Duration
	Storage        StorageConfig
	Orders         OrdersConfig
	Payment        PaymentConfig
	Store          StoreConfig
	StatusLogURL   string // STATUS_LOG_URL: empty keeps the status log in process memory
	KafkaBrokers   []string
	Tracking       TrackingConfig
}

type StorageConfig struct {
	Backend       string // redis | sqlite | mongo
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MongoURI      string
	MongoDBName   string
}

type OrdersConfig struct {
	Backend  string // kv | postgres
	Database DatabaseConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

type PaymentConfig struct {
	Mode          string // razorpay | sandbox | disabled
	KeyID         string
	KeySecret     string
	APIURL        string
	SandboxSecret string
}

// StoreConfig is what the payment widget shows and prefills.
type StoreConfig struct {
	DisplayName     string
	Description     string
	Currency        string
	ContactName     string
	ContactEmail    string
	ContactPhone    string
	DeliveryAddress string
}

type TrackingConfig struct {
	Mode         string // status | simulated
	StepInterval time.Duration
}

func Load() (*Config, error) {
	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")

	viper.SetDefault("HTTP_PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("LOG_LEVEL", "info")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// a missing .env is fine, env vars are enough
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	requestTimeout, err := durationOrViper("REQUEST_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	stepInterval, err := durationOrViper("TRACKING_STEP_INTERVAL", 5*time.Second)
	if err != nil {
		return nil, err
	}
	dbPort, err := strconv.Atoi(getEnvOrViper("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	cfg := &Config{
		Port:           getEnvOrViper("HTTP_PORT", "8080"),
		Environment:    getEnvOrViper("ENVIRONMENT", "development"),
		LogLevel:       getEnvOrViper("LOG_LEVEL", "info"),
		RequestTimeout: requestTimeout,
		Storage: StorageConfig{
			Backend:       strings.ToLower(getEnvOrViper("STORAGE_BACKEND", "redis")),
			RedisAddr:     getEnvOrViper("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnvOrViper("REDIS_PASSWORD", ""),
			SQLitePath:    getEnvOrViper("SQLITE_PATH", "storefront.db"),
			MongoURI:      getEnvOrViper("MONGO_URI", "mongodb://localhost:27017"),
			MongoDBName:   getEnvOrViper("MONGO_DB_NAME", "storefront"),
		},
		Orders: OrdersConfig{
			Backend: strings.ToLower(getEnvOrViper("ORDER_BACKEND", "kv")),
			Database: DatabaseConfig{
				Host:     getEnvOrViper("DB_HOST", "localhost"),
				Port:     dbPort,
				User:     getEnvOrViper("DB_USER", "postgres"),
				Password: getEnvOrViper("DB_PASSWORD", "postgres"),
				DBName:   getEnvOrViper("DB_NAME", "storefront"),
			},
		},
		Payment: PaymentConfig{
			Mode:          strings.ToLower(getEnvOrViper("PAYMENT_MODE", "razorpay")),
			KeyID:         strings.TrimSpace(getEnvOrViper("RAZORPAY_KEY_ID", "")),
			KeySecret:     strings.TrimSpace(getEnvOrViper("RAZORPAY_KEY_SECRET", "")),
			APIURL:        getEnvOrViper("RAZORPAY_API_URL", "https://api.razorpay.com"),
			SandboxSecret: getEnvOrViper("SANDBOX_SECRET", "sandbox-secret"),
		},
		Store: StoreConfig{
			DisplayName:     getEnvOrViper("STORE_DISPLAY_NAME", "Online Pharmacy"),
			Description:     getEnvOrViper("STORE_DESCRIPTION", "Medicine order"),
			Currency:        strings.ToUpper(getEnvOrViper("PAYMENT_CURRENCY", "INR")),
			ContactName:     getEnvOrViper("CONTACT_NAME", ""),
			ContactEmail:    getEnvOrViper("CONTACT_EMAIL", ""),
			ContactPhone:    getEnvOrViper("CONTACT_PHONE", ""),
			DeliveryAddress: getEnvOrViper("DELIVERY_ADDRESS", ""),
		},
		StatusLogURL: strings.TrimSpace(getEnvOrViper("STATUS_LOG_URL", "")),
		KafkaBrokers: splitList(getEnvOrViper("KAFKA_BROKERS", "")),
		Tracking: TrackingConfig{
			Mode:         strings.ToLower(getEnvOrViper("TRACKING_MODE", "status")),
			StepInterval: stepInterval,
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case "redis", "sqlite", "mongo":
	default:
		return fmt.Errorf("STORAGE_BACKEND must be redis, sqlite or mongo, got %q", c.Storage.Backend)
	}
	switch c.Orders.Backend {
	case "kv", "postgres":
	default:
		return fmt.Errorf("ORDER_BACKEND must be kv or postgres, got %q", c.Orders.Backend)
	}
	switch c.Payment.Mode {
	case "razorpay", "sandbox", "disabled":
	default:
		return fmt.Errorf("PAYMENT_MODE must be razorpay, sandbox or disabled, got %q", c.Payment.Mode)
	}
	switch c.Tracking.Mode {
	case "status", "simulated":
	default:
		return fmt.Errorf("TRACKING_MODE must be status or simulated, got %q", c.Tracking.Mode)
	}
	if c.Store.Currency == "" {
		return fmt.Errorf("PAYMENT_CURRENCY is required")
	}
	return nil
}

func getEnvOrViper(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultValue
}

func durationOrViper(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnvOrViper(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
