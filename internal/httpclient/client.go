// Package httpclient provides an instrumented HTTP client with OTEL tracing and metrics.
package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/http/httptrace"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultDialKeepAlive         = 10 * time.Second
	defaultRequestTimeout        = 10 * time.Second
	defaultMaxConnsPerHost       = 8
	defaultIdleConnTimeout       = 2 * time.Minute
	defaultExpectContinueTimeout = 100 * time.Millisecond

	metricRequestCounter = "http_client_requests_total"
)

// Client is the interface for making HTTP requests.
type Client interface {
	// NewRequest creates a new request builder.
	NewRequest(opts ...RequestOption) Request
	// StdClient exposes the instrumented *http.Client for libraries that
	// take one, such as the go-ethereum RPC dialer.
	StdClient() *http.Client
}

// ClientOption configures the instrumented client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	providerName   string
	roundTripper   http.RoundTripper
	requestTimeout time.Duration
	headers        map[string]string
	meterProvider  metric.MeterProvider
	tracer         trace.Tracer
}

// WithProviderName sets the provider name for metrics and traces.
func WithProviderName(name string) ClientOption {
	return func(o *clientOptions) { o.providerName = name }
}

// WithRoundTripper sets a custom base transport.
func WithRoundTripper(rt http.RoundTripper) ClientOption {
	return func(o *clientOptions) { o.roundTripper = rt }
}

// WithRequestTimeout sets the per-request timeout.
func WithRequestTimeout(timeout time.Duration) ClientOption {
	return func(o *clientOptions) { o.requestTimeout = timeout }
}

// WithHeaders sets default headers for all requests.
func WithHeaders(headers map[string]string) ClientOption {
	return func(o *clientOptions) { o.headers = headers }
}

// WithMeterProvider sets the OTEL meter provider.
func WithMeterProvider(mp metric.MeterProvider) ClientOption {
	return func(o *clientOptions) { o.meterProvider = mp }
}

// InstrumentedClient wraps http.Client with OTEL instrumentation.
type InstrumentedClient struct {
	client         *http.Client
	requestCounter metric.Int64Counter
	providerName   string
	tracer         trace.Tracer
	defaultHeaders map[string]string
}

// NewInstrumentedClient creates a new instrumented HTTP client.
func NewInstrumentedClient(opts ...ClientOption) (*InstrumentedClient, error) {
	options := &clientOptions{
		providerName:   "default",
		requestTimeout: defaultRequestTimeout,
	}
	for _, o := range opts {
		o(options)
	}

	base := options.roundTripper
	if base == nil {
		base = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				KeepAlive: defaultDialKeepAlive,
			}).DialContext,
			MaxConnsPerHost:       defaultMaxConnsPerHost,
			IdleConnTimeout:       defaultIdleConnTimeout,
			ExpectContinueTimeout: defaultExpectContinueTimeout,
		}
	}

	httpClient := &http.Client{
		Timeout: options.requestTimeout,
		Transport: otelhttp.NewTransport(base,
			otelhttp.WithClientTrace(func(ctx context.Context) *httptrace.ClientTrace {
				return otelhttptrace.NewClientTrace(ctx)
			}),
		),
	}

	meterProvider := options.meterProvider
	if meterProvider == nil {
		meterProvider = otel.GetMeterProvider()
	}
	meter := meterProvider.Meter(
		"instrumented_http_client",
		metric.WithInstrumentationAttributes(attribute.String("provider", options.providerName)),
	)
	requestCounter, err := meter.Int64Counter(
		metricRequestCounter,
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	tracer := options.tracer
	if tracer == nil {
		tracer = otel.Tracer("instrumented_http_client")
	}

	return &InstrumentedClient{
		client:         httpClient,
		requestCounter: requestCounter,
		providerName:   options.providerName,
		tracer:         tracer,
		defaultHeaders: options.headers,
	}, nil
}

// NewRequest creates a new request builder.
func (c *InstrumentedClient) NewRequest(opts ...RequestOption) Request {
	reqOpts := &requestOptions{}
	for _, o := range opts {
		o(reqOpts)
	}

	headers := make(map[string]string, len(c.defaultHeaders))
	for k, v := range c.defaultHeaders {
		headers[k] = v
	}

	return &requestBuilder{
		client:         c.client,
		requestCounter: c.requestCounter,
		providerName:   c.providerName,
		tracer:         c.tracer,
		headers:        headers,
		errorHandler:   reqOpts.errorHandler,
		labels:         reqOpts.labels,
	}
}

// StdClient returns the instrumented *http.Client.
func (c *InstrumentedClient) StdClient() *http.Client {
	return c.client
}
