package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port     string
	JWT      JWTConfig
	Vault    VaultConfig
	Mailbox  MailboxConfig
	Gateway  GatewayConfig
	PlansURI string
}

type JWTConfig struct {
	SecretKey string
}

type VaultConfig struct {
	MasterKey string
	Salt      string
}

// MailboxConfig configures the OAuth client and the mailbox API.
type MailboxConfig struct {
	ClientID       string
	ClientSecret   string
	TokenURL       string
	APIEndpoint    string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

// GatewayConfig configures the hosted-checkout payment gateway.
type GatewayConfig struct {
	ServerKey   string
	BaseURL     string
	Timeout     time.Duration
	OrderPrefix string
	CheckoutTTL time.Duration
	FinishURL   string
}

var envBindings = map[string]string{
	"server.port":             "PORT",
	"database.host":           "DATABASE_HOST",
	"database.port":           "DATABASE_PORT",
	"database.user":           "DATABASE_USER",
	"database.password":       "DATABASE_PASSWORD",
	"database.name":           "DATABASE_NAME",
	"database.ssl_mode":       "DATABASE_SSL_MODE",
	"redis.host":              "REDIS_HOST",
	"redis.port":              "REDIS_PORT",
	"redis.password":          "REDIS_PASSWORD",
	"redis.db":                "REDIS_DB",
	"jwt.secret_key":          "JWT_SECRET_KEY",
	"vault.master_key":        "VAULT_MASTER_KEY",
	"vault.salt":              "VAULT_SALT",
	"mailbox.client_id":       "MAILBOX_CLIENT_ID",
	"mailbox.client_secret":   "MAILBOX_CLIENT_SECRET",
	"mailbox.token_url":       "MAILBOX_TOKEN_URL",
	"mailbox.api_endpoint":    "MAILBOX_API_ENDPOINT",
	"mailbox.connect_timeout": "MAILBOX_CONNECT_TIMEOUT",
	"mailbox.request_timeout": "MAILBOX_REQUEST_TIMEOUT",
	"gateway.server_key":      "GATEWAY_SERVER_KEY",
	"gateway.base_url":        "GATEWAY_BASE_URL",
	"gateway.timeout":         "GATEWAY_TIMEOUT",
	"gateway.order_prefix":    "GATEWAY_ORDER_PREFIX",
	"gateway.checkout_ttl":    "GATEWAY_CHECKOUT_TTL",
	"gateway.finish_url":      "GATEWAY_FINISH_URL",
	"plans.catalog_path":      "PLANS_CATALOG_PATH",
}

// BindEnv points viper at the .env file and binds every key to its
// environment variable.
func BindEnv() error {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			return err
		}
	}

	return viper.ReadInConfig()
}

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("mailbox.token_url", "https://oauth2.googleapis.com/token")
	viper.SetDefault("mailbox.api_endpoint", "https://gmail.googleapis.com/")
	viper.SetDefault("mailbox.connect_timeout", 10*time.Second)
	viper.SetDefault("mailbox.request_timeout", 20*time.Second)
	viper.SetDefault("gateway.base_url", "https://app.sandbox.midtrans.com")
	viper.SetDefault("gateway.timeout", 15*time.Second)
	viper.SetDefault("gateway.order_prefix", "SUB-")
	viper.SetDefault("gateway.checkout_ttl", 24*time.Hour)
	viper.SetDefault("plans.catalog_path", "./internal/config/plans.yaml")
}

// Load returns the service configuration with defaults applied.
func Load() *Config {
	setDefaults()

	return &Config{
		Port: viper.GetString("server.port"),
		JWT: JWTConfig{
			SecretKey: viper.GetString("jwt.secret_key"),
		},
		Vault: VaultConfig{
			MasterKey: viper.GetString("vault.master_key"),
			Salt:      viper.GetString("vault.salt"),
		},
		Mailbox: MailboxConfig{
			ClientID:       viper.GetString("mailbox.client_id"),
			ClientSecret:   viper.GetString("mailbox.client_secret"),
			TokenURL:       viper.GetString("mailbox.token_url"),
			APIEndpoint:    viper.GetString("mailbox.api_endpoint"),
			ConnectTimeout: viper.GetDuration("mailbox.connect_timeout"),
			RequestTimeout: viper.GetDuration("mailbox.request_timeout"),
		},
		Gateway: GatewayConfig{
			ServerKey:   viper.GetString("gateway.server_key"),
			BaseURL:     viper.GetString("gateway.base_url"),
			Timeout:     viper.GetDuration("gateway.timeout"),
			OrderPrefix: viper.GetString("gateway.order_prefix"),
			CheckoutTTL: viper.GetDuration("gateway.checkout_ttl"),
			FinishURL:   viper.GetString("gateway.finish_url"),
		},
		PlansURI: viper.GetString("plans.catalog_path"),
	}
}
