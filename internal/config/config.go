/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the payout-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort               string `mapstructure:"SERVER_PORT"`
	DatabaseURL              string `mapstructure:"DATABASE_URL"`
	RedisURL                 string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix     string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL              string `mapstructure:"RABBITMQ_URL"`
	PayoutEventQueue         string `mapstructure:"PAYOUT_EVENT_QUEUE"`
	RailAPIBaseURL           string `mapstructure:"RAIL_API_BASE_URL"`
	RailAPIKey               string `mapstructure:"RAIL_API_KEY"`
	RailWebhookSecret        string `mapstructure:"RAIL_WEBHOOK_SECRET"`
	JWKSURL                  string `mapstructure:"JWKS_URL"`
	InternalAPIKey           string `mapstructure:"INTERNAL_API_KEY"`
	SupportedCurrencies      string `mapstructure:"SUPPORTED_CURRENCIES"`
	CreateRateLimitPerMinute int    `mapstructure:"CREATE_RATE_LIMIT_PER_MINUTE"`
	DispatchTimeoutSeconds   int    `mapstructure:"DISPATCH_TIMEOUT_SECONDS"`
	ReconcileSchedule        string `mapstructure:"RECONCILE_SCHEDULE"`
	AmbiguityTimeoutSeconds  int    `mapstructure:"AMBIGUITY_TIMEOUT_SECONDS"`
	AmbiguityHardCeilingSecs int    `mapstructure:"AMBIGUITY_HARD_CEILING_SECONDS"`
	ReconcileBatchLimit      int    `mapstructure:"RECONCILE_BATCH_LIMIT"`
}

// SupportedCurrencyList splits the comma-separated currency configuration.
func (c Config) SupportedCurrencyList() []string {
	parts := strings.Split(c.SupportedCurrencies, ",")
	currencies := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			currencies = append(currencies, trimmed)
		}
	}
	return currencies
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("PAYOUT_EVENT_QUEUE", "payout_service.settlement_updates")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "payout:rate_limit")
	viper.SetDefault("SUPPORTED_CURRENCIES", "USD")
	viper.SetDefault("CREATE_RATE_LIMIT_PER_MINUTE", 30)
	viper.SetDefault("DISPATCH_TIMEOUT_SECONDS", 30)
	viper.SetDefault("RECONCILE_SCHEDULE", "*/2 * * * *")
	viper.SetDefault("AMBIGUITY_TIMEOUT_SECONDS", 120)
	viper.SetDefault("AMBIGUITY_HARD_CEILING_SECONDS", 86400)
	viper.SetDefault("RECONCILE_BATCH_LIMIT", 100)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "PAYOUT_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("PAYOUT_EVENT_QUEUE")
	_ = viper.BindEnv("RAIL_API_BASE_URL")
	_ = viper.BindEnv("RAIL_API_KEY")
	_ = viper.BindEnv("RAIL_WEBHOOK_SECRET")
	_ = viper.BindEnv("JWKS_URL")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "PAYOUT_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("SUPPORTED_CURRENCIES")
	_ = viper.BindEnv("CREATE_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("DISPATCH_TIMEOUT_SECONDS")
	_ = viper.BindEnv("RECONCILE_SCHEDULE")
	_ = viper.BindEnv("AMBIGUITY_TIMEOUT_SECONDS")
	_ = viper.BindEnv("AMBIGUITY_HARD_CEILING_SECONDS")
	_ = viper.BindEnv("RECONCILE_BATCH_LIMIT")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	if strings.TrimSpace(config.InternalAPIKey) == "" {
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("PAYOUT_SERVICE_INTERNAL_API_KEY"))
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "payout:rate_limit"
	}

	if config.CreateRateLimitPerMinute <= 0 {
		config.CreateRateLimitPerMinute = 30
	}
	if config.DispatchTimeoutSeconds <= 0 {
		config.DispatchTimeoutSeconds = 30
	}
	if strings.TrimSpace(config.ReconcileSchedule) == "" {
		config.ReconcileSchedule = "*/2 * * * *"
	}
	if config.AmbiguityTimeoutSeconds <= 0 {
		config.AmbiguityTimeoutSeconds = 120
	}
	if config.AmbiguityHardCeilingSecs <= config.AmbiguityTimeoutSeconds {
		config.AmbiguityHardCeilingSecs = 86400
	}
	if config.ReconcileBatchLimit <= 0 {
		config.ReconcileBatchLimit = 100
	}

	return
}
