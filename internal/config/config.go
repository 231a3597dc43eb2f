package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server           ServerConfig
	Database         DatabaseConfig
	Redis            RedisConfig
	Kafka            KafkaConfig
	PaymentProcessor PaymentProcessorConfig
	ChatGateway      ChatGatewayConfig
	Shop             ShopConfig
	Features         FeatureFlags
	LogLevel         string
}

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

func (d DatabaseConfig) ConnectionString() string {
	return "host=" + d.Host +
		" port=" + strconv.Itoa(d.Port) +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.Name +
		" sslmode=" + d.SSLMode
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	DedupTTL time.Duration
}

type KafkaConfig struct {
	Brokers       []string
	OrdersTopic   string
	PaymentsTopic string
	ConsumerGroup string
	MaxRetries    int
	RetryBackoff  time.Duration
}

// PaymentProcessorConfig configures the NOWPayments invoice API.
type PaymentProcessorConfig struct {
	BaseURL     string
	APIKey      string
	IPNSecret   string
	CallbackURL string
	Timeout     time.Duration
}

type ChatGatewayConfig struct {
	BaseURL      string
	APIKey       string
	InboundToken string
	Timeout      time.Duration
}

type ShopConfig struct {
	Name             string
	OrderDescription string
	MaxQuantity      int
}

type FeatureFlags struct {
	EnableOrderEvents        bool
	EnablePaymentConsumer    bool
	EnableRedisDedup         bool
	EnableManualConfirmation bool
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  time.Duration(getEnvInt("SERVER_READ_TIMEOUT", 30)) * time.Second,
			WriteTimeout: time.Duration(getEnvInt("SERVER_WRITE_TIMEOUT", 30)) * time.Second,
		},
		Database: DatabaseConfig{
			Host:         getEnvString("DB_HOST", "localhost"),
			Port:         getEnvInt("DB_PORT", 5432),
			User:         getEnvString("DB_USER", "acme"),
			Password:     getEnvString("DB_PASSWORD", "acme"),
			Name:         getEnvString("DB_NAME", "acme_storefront"),
			SSLMode:      getEnvString("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnvString("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			DedupTTL: getEnvDuration("REDIS_DEDUP_TTL", 7*24*time.Hour),
		},
		Kafka: KafkaConfig{
			Brokers:       getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			OrdersTopic:   getEnvString("KAFKA_ORDERS_TOPIC", "storefront.orders"),
			PaymentsTopic: getEnvString("KAFKA_PAYMENTS_TOPIC", "storefront.payments"),
			ConsumerGroup: getEnvString("KAFKA_CONSUMER_GROUP", "storefront-bot"),
			MaxRetries:    getEnvInt("KAFKA_MAX_RETRIES", 3),
			RetryBackoff:  getEnvDuration("KAFKA_RETRY_BACKOFF", 2*time.Second),
		},
		PaymentProcessor: PaymentProcessorConfig{
			BaseURL:     getEnvString("NOWPAYMENTS_URL", "https://api.nowpayments.io"),
			APIKey:      getEnvString("NOWPAYMENTS_API_KEY", ""),
			IPNSecret:   getEnvString("NOWPAYMENTS_IPN_SECRET", ""),
			CallbackURL: getEnvString("NOWPAYMENTS_CALLBACK_URL", "http://localhost:8080/ipn"),
			Timeout:     time.Duration(getEnvInt("NOWPAYMENTS_TIMEOUT", 30)) * time.Second,
		},
		ChatGateway: ChatGatewayConfig{
			BaseURL:      getEnvString("CHAT_GATEWAY_URL", "http://localhost:8090"),
			APIKey:       getEnvString("CHAT_GATEWAY_API_KEY", ""),
			InboundToken: getEnvString("CHAT_GATEWAY_INBOUND_TOKEN", ""),
			Timeout:      time.Duration(getEnvInt("CHAT_GATEWAY_TIMEOUT", 10)) * time.Second,
		},
		Shop: ShopConfig{
			Name:             getEnvString("SHOP_NAME", "Acme Shop"),
			OrderDescription: getEnvString("SHOP_ORDER_DESCRIPTION", "Account bundle"),
			MaxQuantity:      getEnvInt("SHOP_MAX_QUANTITY", 100),
		},
		Features: FeatureFlags{
			EnableOrderEvents:        getEnvBool("FEATURE_ORDER_EVENTS", false),
			EnablePaymentConsumer:    getEnvBool("FEATURE_PAYMENT_CONSUMER", false),
			EnableRedisDedup:         getEnvBool("FEATURE_REDIS_DEDUP", false),
			EnableManualConfirmation: getEnvBool("FEATURE_MANUAL_CONFIRMATION", true),
		},
		LogLevel: getEnvString("LOG_LEVEL", "info"),
	}
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
