package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	Port           string
	Environment    string
	LogLevel       string
	MongoURL       string
	MongoDBName    string
	BcryptCost     int
	RequestTimeout time.Duration
}

func Load() (*Config, error) {
	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cost, err := strconv.Atoi(getEnvOrViper("BCRYPT_COST", strconv.Itoa(bcrypt.DefaultCost)))
	if err != nil || cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	timeout, err := time.ParseDuration(getEnvOrViper("REQUEST_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid REQUEST_TIMEOUT: %w", err)
	}

	cfg := &Config{
		Port:           getEnvOrViper("PORT", "3000"),
		Environment:    getEnvOrViper("ENVIRONMENT", "development"),
		LogLevel:       getEnvOrViper("LOG_LEVEL", "info"),
		MongoURL:       getEnvOrViper("MONGOURL", ""),
		MongoDBName:    getEnvOrViper("MONGO_DB_NAME", "pharmacy"),
		BcryptCost:     cost,
		RequestTimeout: timeout,
	}
	if cfg.MongoURL == "" {
		return nil, fmt.Errorf("MONGOURL is required")
	}
	return cfg, nil
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
