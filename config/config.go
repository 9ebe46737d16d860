package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string
	ServiceName string
	ClientURL   string

	// Redis configuration
	RedisURL          string
	SettlementLockTTL time.Duration

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string
	PubNubUserID       string

	// Payment configuration
	PaymentProvider     string
	StripeSecretKey     string
	StripeBaseURL       string
	StripeWebhookSecret string
	CheckoutCurrency    string
	PaymentTimeout      time.Duration

	// Authentication
	AuthProviders   []string
	AuthJWTSecret   string
	AuthJWTIssuer   string
	AuthJWTAudience string

	// Protection
	RateLimitPerMinute int

	// Monitoring
	EnableMetrics bool
	OTLPEndpoint  string
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),
		ServiceName: getEnv("SERVICE_NAME", "ticket-marketplace"),
		ClientURL:   strings.TrimRight(getEnv("CLIENT_URL", "http://localhost:5173"), "/"),

		// Redis
		RedisURL:          getEnv("REDIS_URL", ""),
		SettlementLockTTL: getEnvAsDuration("SETTLEMENT_LOCK_TTL", "30s"),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),
		PubNubUserID:       getEnv("PUBNUB_USER_ID", "ticket-marketplace-server"),

		// Payment
		PaymentProvider:     getEnv("PAYMENT_PROVIDER", "sandbox"),
		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeBaseURL:       getEnv("STRIPE_BASE_URL", "https://api.stripe.com"),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		CheckoutCurrency:    strings.ToLower(getEnv("CHECKOUT_CURRENCY", "usd")),
		PaymentTimeout:      getEnvAsDuration("PAYMENT_TIMEOUT", "15s"),

		// Auth
		AuthProviders:   getEnvAsList("AUTH_PROVIDERS", "pocketbase"),
		AuthJWTSecret:   getEnv("AUTH_JWT_SECRET", ""),
		AuthJWTIssuer:   getEnv("AUTH_JWT_ISSUER", ""),
		AuthJWTAudience: getEnv("AUTH_JWT_AUDIENCE", ""),

		// Protection
		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 120),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		OTLPEndpoint:  getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

// getEnvAsList splits a comma separated value, dropping empty items.
func getEnvAsList(key string, defaultValue string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, defaultValue), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, strings.ToLower(item))
		}
	}
	return out
}
