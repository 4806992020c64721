package apm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"

	"github.com/fd1az/dapp-marketplace/internal/logger"
)

type Provider string

const (
	ZipkinProvider   Provider = "zipkin"
	OTLPGRPCProvider Provider = "otlp-grpc"
	OTLPHTTPProvider Provider = "otlp-http"
	ConsoleProvider  Provider = "console"
	EmptyProvider    Provider = "empty"
)

// ParseProvider maps a config value onto a Provider, defaulting to empty.
func ParseProvider(s string) Provider {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ZipkinProvider, OTLPGRPCProvider, OTLPHTTPProvider, ConsoleProvider:
		return p
	default:
		return EmptyProvider
	}
}

type TraceProvider interface {
	Stop() error
}

type emptyTraceProvider struct{}

func (emptyTraceProvider) Stop() error { return nil }

type traceProvider struct {
	tp *sdktrace.TracerProvider
}

// ExporterConfig carries the collector settings for a provider.
type ExporterConfig struct {
	ServiceName string
	Endpoint    string
	// Headers is a comma separated key=value list, as in OTEL_EXPORTER_OTLP_HEADERS.
	Headers string
}

type TracerOptions struct {
	exporter           sdktrace.SpanExporter
	tracerProviderName string
	serviceName        string
	useEmpty           bool
}

type TracerOption func(*TracerOptions)

// WithProvider selects the span exporter. Misconfigured exporters fall
// back to the empty provider with a warning; tracing never blocks startup.
func WithProvider(provider Provider, cfg ExporterConfig, log logger.LoggerInterface) TracerOption {
	return func(option *TracerOptions) {
		option.serviceName = cfg.ServiceName

		exp, err := newExporter(provider, cfg)
		if err != nil {
			log.Warn(context.Background(), "trace exporter unavailable, using empty provider",
				"provider", provider, "error", err)
			provider = EmptyProvider
		}
		if provider == EmptyProvider {
			option.useEmpty = true
		}

		option.exporter = exp
		option.tracerProviderName = string(provider)
	}
}

func newExporter(provider Provider, cfg ExporterConfig) (sdktrace.SpanExporter, error) {
	headers, err := ParseHeaders(cfg.Headers)
	if err != nil {
		return nil, err
	}

	switch provider {
	case ZipkinProvider:
		return zipkin.New(cfg.Endpoint)
	case OTLPGRPCProvider:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithHeaders(headers)}
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpointURL(cfg.Endpoint))
		}
		return otlptracegrpc.New(context.Background(), opts...)
	case OTLPHTTPProvider:
		opts := []otlptracehttp.Option{otlptracehttp.WithHeaders(headers)}
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpointURL(cfg.Endpoint))
		}
		return otlptracehttp.New(context.Background(), opts...)
	case ConsoleProvider:
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	default:
		return nil, nil
	}
}

// ParseHeaders parses a comma separated key=value list.
func ParseHeaders(raw string) (map[string]string, error) {
	headers := map[string]string{}
	if strings.TrimSpace(raw) == "" {
		return headers, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 || strings.TrimSpace(kv[0]) == "" {
			return nil, fmt.Errorf("invalid otlp header %q, expected key=value", pair)
		}
		headers[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	return headers, nil
}

func NewTraceProvider(options ...TracerOption) TraceProvider {
	opts := &TracerOptions{useEmpty: len(options) == 0}

	for _, opt := range options {
		opt(opts)
	}

	if opts.useEmpty || opts.exporter == nil {
		return emptyTraceProvider{}
	}

	rsrc, _ := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(opts.serviceName),
			attribute.String("otel.provider", opts.tracerProviderName),
		))

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(opts.exporter),
		sdktrace.WithResource(rsrc),
	)

	otel.SetTracerProvider(tp)

	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))

	return &traceProvider{
		tp,
	}
}

func (o *traceProvider) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5) //nolint:gomnd
	defer cancel()

	return o.tp.Shutdown(ctx)
}
