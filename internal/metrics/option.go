package metrics

import (
	"strconv"
)

// Provider names a metric reader backend.
type Provider string

const (
	// PrometheusProvider exposes metrics for scraping on /metrics.
	PrometheusProvider Provider = "prometheus"
	// OtelCollector pushes metrics to an OTLP gRPC collector.
	OtelCollector Provider = "customOtelCollector"

	InsecureOtel = true
	SecureOtel   = false
)

// Config is the meter provider configuration assembled from OptionFns.
type Config struct {
	ServiceName string
	Provider    []ProviderCfg
}

// ProviderCfg configures one reader.
type ProviderCfg struct {
	Provider Provider
	Endpoint string
	Headers  map[string]string
	Insecure bool
}

// NewOtelCollectorConfig configures a push reader for the collector at url.
func NewOtelCollectorConfig(url string, headers map[string]string, insecure bool) ProviderCfg {
	return ProviderCfg{
		Provider: OtelCollector,
		Endpoint: url,
		Headers:  headers,
		Insecure: insecure,
	}
}

type OptionFn func(config Config) Config

// WithProviderConfig adds a reader. Readers are independent; several may
// be active at once.
func WithProviderConfig(provider ProviderCfg) OptionFn {
	return func(config Config) Config {
		config.Provider = append(config.Provider, provider)
		return config
	}
}

func WithServiceName(serviceName string) OptionFn {
	return func(config Config) Config {
		config.ServiceName = serviceName
		return config
	}
}

// PromServerConfig configures the /metrics listener.
type PromServerConfig struct {
	port string
}

type PromOptionFn func(config PromServerConfig) PromServerConfig

// WithPort sets the listen port. Zero keeps the default.
func WithPort(port int) PromOptionFn {
	return func(config PromServerConfig) PromServerConfig {
		if port > 0 {
			config.port = strconv.Itoa(port)
		}
		return config
	}
}
