// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Ethereum    EthereumConfig    `mapstructure:"ethereum"`
	Wallet      WalletConfig      `mapstructure:"wallet"`
	Marketplace MarketplaceConfig `mapstructure:"marketplace"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Health      HealthConfig      `mapstructure:"health"`

	TUIMode bool `mapstructure:"-"` // Set at runtime, not from config file
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// Endpoint is a named JSON-RPC endpoint. Switching endpoints is how the
// wallet changes network.
type Endpoint struct {
	Name    string `mapstructure:"name"`
	HTTPURL string `mapstructure:"http_url"`
}

// EthereumConfig holds Ethereum node configuration.
type EthereumConfig struct {
	Endpoints           []Endpoint    `mapstructure:"endpoints"`
	DefaultEndpoint     string        `mapstructure:"default_endpoint"`
	HTTPURL             string        `mapstructure:"http_url"` // shorthand for a single endpoint
	NetworkPollInterval time.Duration `mapstructure:"network_poll_interval"`
	ReceiptPollInterval time.Duration `mapstructure:"receipt_poll_interval"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	MaxGasPriceGwei     int64         `mapstructure:"max_gas_price_gwei"`
	GasPriceCacheTTL    time.Duration `mapstructure:"gas_price_cache_ttl"`
}

// ResolvedEndpoints returns the configured endpoints, folding the
// http_url shorthand in as an endpoint named "default".
func (c *EthereumConfig) ResolvedEndpoints() []Endpoint {
	endpoints := make([]Endpoint, 0, len(c.Endpoints)+1)
	endpoints = append(endpoints, c.Endpoints...)
	if c.HTTPURL != "" {
		endpoints = append(endpoints, Endpoint{Name: "default", HTTPURL: c.HTTPURL})
	}
	return endpoints
}

// WalletConfig holds signer configuration.
type WalletConfig struct {
	PrivateKey         string `mapstructure:"private_key"`
	KeystorePath       string `mapstructure:"keystore_path"`
	KeystorePassphrase string `mapstructure:"keystore_passphrase"`
	AutoApprove        bool   `mapstructure:"auto_approve"`
}

// MarketplaceConfig holds contract location and transaction settings.
type MarketplaceConfig struct {
	ContractName        string        `mapstructure:"contract_name"`
	DeploymentsSource   string        `mapstructure:"deployments_source"`
	ABISource           string        `mapstructure:"abi_source"`
	PurchaseGasLimit    uint64        `mapstructure:"purchase_gas_limit"`
	CreateGasLimit      uint64        `mapstructure:"create_gas_limit"`
	Confirmations       uint64        `mapstructure:"confirmations"`
	ConfirmationTimeout time.Duration `mapstructure:"confirmation_timeout"`
	ReadConcurrency     int           `mapstructure:"read_concurrency"`
	ReadsPerSecond      float64       `mapstructure:"reads_per_second"`
	MaxProducts         int           `mapstructure:"max_products"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Provider       string `mapstructure:"provider"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// HealthConfig holds the health server settings.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("MKT")
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "MKT_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "MKT_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "MKT_LOG_LEVEL", "LOG_LEVEL")

	// Ethereum
	v.BindEnv("ethereum.http_url", "MKT_ETH_HTTP_URL", "ETH_HTTP_URL")
	v.BindEnv("ethereum.default_endpoint", "MKT_ETH_ENDPOINT")

	// Wallet
	v.BindEnv("wallet.private_key", "MKT_WALLET_PRIVATE_KEY", "PRIVATE_KEY")
	v.BindEnv("wallet.keystore_path", "MKT_WALLET_KEYSTORE")
	v.BindEnv("wallet.keystore_passphrase", "MKT_WALLET_PASSPHRASE")
	v.BindEnv("wallet.auto_approve", "MKT_WALLET_AUTO_APPROVE")

	// Marketplace
	v.BindEnv("marketplace.deployments_source", "MKT_DEPLOYMENTS")
	v.BindEnv("marketplace.abi_source", "MKT_ABI")
	v.BindEnv("marketplace.purchase_gas_limit", "MKT_PURCHASE_GAS_LIMIT")
	v.BindEnv("marketplace.confirmation_timeout", "MKT_CONFIRMATION_TIMEOUT")

	// Telemetry
	v.BindEnv("telemetry.enabled", "MKT_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "MKT_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "MKT_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.otlp_headers", "MKT_OTEL_HEADERS", "OTEL_EXPORTER_OTLP_HEADERS")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "dapp-marketplace")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("ethereum.network_poll_interval", "4s")
	v.SetDefault("ethereum.receipt_poll_interval", "2s")
	v.SetDefault("ethereum.request_timeout", "10s")
	v.SetDefault("ethereum.max_gas_price_gwei", 500)
	v.SetDefault("ethereum.gas_price_cache_ttl", "12s") // ~1 block

	v.SetDefault("wallet.auto_approve", false)

	v.SetDefault("marketplace.contract_name", "Marketplace")
	v.SetDefault("marketplace.deployments_source", "chain-info/deployments/map.json")
	v.SetDefault("marketplace.purchase_gas_limit", 50000)
	v.SetDefault("marketplace.create_gas_limit", 0) // estimate
	v.SetDefault("marketplace.confirmations", 1)
	v.SetDefault("marketplace.confirmation_timeout", "0s") // unbounded
	v.SetDefault("marketplace.read_concurrency", 4)
	v.SetDefault("marketplace.reads_per_second", 20)
	v.SetDefault("marketplace.max_products", 10000)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.provider", "zipkin")
	v.SetDefault("telemetry.service_name", "dapp-marketplace")
	v.SetDefault("telemetry.prometheus_port", 9090)

	v.SetDefault("health.enabled", true)
	v.SetDefault("health.port", 8081)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	endpoints := c.Ethereum.ResolvedEndpoints()
	if len(endpoints) == 0 {
		return fmt.Errorf("ethereum.endpoints or ethereum.http_url is required")
	}

	seen := make(map[string]bool, len(endpoints))
	for _, ep := range endpoints {
		if ep.Name == "" {
			return fmt.Errorf("ethereum endpoint name cannot be empty")
		}
		if seen[ep.Name] {
			return fmt.Errorf("duplicate ethereum endpoint %q", ep.Name)
		}
		seen[ep.Name] = true

		u, err := url.Parse(ep.HTTPURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("ethereum endpoint %q: invalid http_url %q", ep.Name, ep.HTTPURL)
		}
	}
	if c.Ethereum.DefaultEndpoint != "" && !seen[c.Ethereum.DefaultEndpoint] {
		return fmt.Errorf("ethereum.default_endpoint %q is not configured", c.Ethereum.DefaultEndpoint)
	}

	if c.Ethereum.NetworkPollInterval <= 0 {
		return fmt.Errorf("ethereum.network_poll_interval must be positive")
	}
	if c.Ethereum.ReceiptPollInterval <= 0 {
		return fmt.Errorf("ethereum.receipt_poll_interval must be positive")
	}

	if c.Wallet.KeystorePath != "" && c.Wallet.PrivateKey != "" {
		return fmt.Errorf("wallet.private_key and wallet.keystore_path are mutually exclusive")
	}

	if c.Marketplace.ContractName == "" {
		return fmt.Errorf("marketplace.contract_name cannot be empty")
	}
	if c.Marketplace.DeploymentsSource == "" {
		return fmt.Errorf("marketplace.deployments_source cannot be empty")
	}
	if c.Marketplace.PurchaseGasLimit == 0 {
		return fmt.Errorf("marketplace.purchase_gas_limit must be positive")
	}
	if c.Marketplace.Confirmations == 0 {
		return fmt.Errorf("marketplace.confirmations must be at least 1")
	}
	if c.Marketplace.ConfirmationTimeout < 0 {
		return fmt.Errorf("marketplace.confirmation_timeout cannot be negative")
	}
	if c.Marketplace.ReadConcurrency < 1 {
		return fmt.Errorf("marketplace.read_concurrency must be at least 1")
	}
	if c.Marketplace.ReadsPerSecond <= 0 {
		return fmt.Errorf("marketplace.reads_per_second must be positive")
	}
	if c.Marketplace.MaxProducts < 1 {
		return fmt.Errorf("marketplace.max_products must be at least 1")
	}

	return nil
}
