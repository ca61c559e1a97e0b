// Package config loads service configuration from environment variables
// prefixed with BOOKING_.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN builds the Postgres connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// JWTConfig holds token signing settings.
type JWTConfig struct {
	Secret   string
	Issuer   string
	TokenTTL time.Duration
}

// KafkaConfig holds broker and consumer settings.
type KafkaConfig struct {
	Brokers       []string
	ConsumerGroup string
}

// MapsConfig holds the routing/geocoding provider settings.
type MapsConfig struct {
	APIKey string
	Region string
}

// PaymentsConfig holds payment gateway credentials.
type PaymentsConfig struct {
	KeyID     string
	KeySecret string
}

// FirebaseConfig holds push notification settings. Push is disabled when
// ProjectID is empty.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// ServiceConfig holds all configuration for the booking service.
type ServiceConfig struct {
	Port     string
	AppEnv   string
	Database DatabaseConfig
	JWT      JWTConfig
	Kafka    KafkaConfig
	Maps     MapsConfig
	Payments PaymentsConfig
	Firebase FirebaseConfig
}

// Load reads configuration from environment variables.
func Load() (*ServiceConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("BOOKING")
	v.AutomaticEnv()

	v.SetDefault("SERVICE_PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("JWT_ISSUER", "urbancab")
	v.SetDefault("JWT_TOKEN_TTL", "24h")
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_CONSUMER_GROUP", "service-booking")
	v.SetDefault("MAPS_REGION", "in")
	v.SetDefault("PAYMENT_KEY_ID", "")
	v.SetDefault("PAYMENT_KEY_SECRET", "")
	v.SetDefault("FIREBASE_PROJECT_ID", "")
	v.SetDefault("FIREBASE_CREDENTIALS_FILE", "")

	cfg := &ServiceConfig{
		Port:   v.GetString("SERVICE_PORT"),
		AppEnv: v.GetString("APP_ENV"),
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetInt("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Name:     v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		JWT: JWTConfig{
			Secret:   v.GetString("JWT_SECRET"),
			Issuer:   v.GetString("JWT_ISSUER"),
			TokenTTL: v.GetDuration("JWT_TOKEN_TTL"),
		},
		Kafka: KafkaConfig{
			Brokers:       splitBrokers(v.GetString("KAFKA_BROKERS")),
			ConsumerGroup: v.GetString("KAFKA_CONSUMER_GROUP"),
		},
		Maps: MapsConfig{
			APIKey: v.GetString("MAPS_API_KEY"),
			Region: v.GetString("MAPS_REGION"),
		},
		Payments: PaymentsConfig{
			KeyID:     v.GetString("PAYMENT_KEY_ID"),
			KeySecret: v.GetString("PAYMENT_KEY_SECRET"),
		},
		Firebase: FirebaseConfig{
			ProjectID:       v.GetString("FIREBASE_PROJECT_ID"),
			CredentialsFile: v.GetString("FIREBASE_CREDENTIALS_FILE"),
		},
	}

	if cfg.Database.Name == "" {
		return nil, fmt.Errorf("BOOKING_DB_NAME is required")
	}
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("BOOKING_JWT_SECRET is required")
	}
	return cfg, nil
}

func splitBrokers(raw string) []string {
	parts := strings.Split(raw, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	return brokers
}
