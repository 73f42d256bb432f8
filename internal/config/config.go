package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Storage backend selectors.
const (
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

// Config holds all application configuration.
type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	// Backend selects the persistence implementation: postgres or mongo.
	Backend  string `env:"STORAGE_BACKEND" envDefault:"postgres"`
	Server   ServerConfig
	Database DatabaseConfig
	Mongo    MongoConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	QuoteAPI QuoteAPIConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port string `env:"SERVER_PORT" envDefault:"8081"`
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host         string `env:"DB_HOST" envDefault:"localhost"`
	Port         string `env:"DB_PORT" envDefault:"5432"`
	User         string `env:"DB_USER" envDefault:"trader"`
	Password     string `env:"DB_PASSWORD" envDefault:"trader5"`
	DBName       string `env:"DB_NAME" envDefault:"portfolio"`
	SSLMode      string `env:"DB_SSLMODE" envDefault:"disable"`
	MigrationDir string `env:"DB_MIGRATION_DIR" envDefault:"file://./db/migrations"`
}

// MongoConfig holds MongoDB configuration.
type MongoConfig struct {
	URI    string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	DBName string `env:"MONGO_DB_NAME" envDefault:"portfolio"`
}

// RedisConfig holds Redis configuration for the quote cache.
type RedisConfig struct {
	Host     string        `env:"REDIS_HOST" envDefault:"localhost"`
	Port     string        `env:"REDIS_PORT" envDefault:"6379"`
	Password string        `env:"REDIS_PASSWORD" envDefault:""`
	DB       int           `env:"REDIS_DB" envDefault:"0"`
	QuoteTTL time.Duration `env:"REDIS_QUOTE_TTL" envDefault:"60s"`
}

// KafkaConfig holds Kafka configuration for order events.
type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:19092"`
	Topic   string   `env:"KAFKA_ORDERS_TOPIC" envDefault:"portfolio.orders"`
}

// QuoteAPIConfig holds the Alpha Vantage quote provider configuration.
type QuoteAPIConfig struct {
	URL     string        `env:"QUOTE_API_URL" envDefault:"https://www.alphavantage.co/query"`
	Key     string        `env:"QUOTE_API_KEY" envDefault:"demo"`
	Timeout time.Duration `env:"QUOTE_API_TIMEOUT" envDefault:"10s"`
	Debug   bool          `env:"QUOTE_API_DEBUG" envDefault:"false"`
}

// MustLoad reads configuration from the environment, loading .env first when
// present. It exits on malformed values.
func MustLoad() *Config {
	_ = godotenv.Load(".env")

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	return cfg
}

// ConnectionString returns the PostgreSQL connection string.
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

// Address returns the Redis address in host:port format.
func (r *RedisConfig) Address() string {
	return r.Host + ":" + r.Port
}
