package apm

import (
	"io"
	"testing"

	"github.com/fd1az/dapp-marketplace/internal/logger"
)

func TestParseProvider(t *testing.T) {
	tests := map[string]Provider{
		"zipkin":    ZipkinProvider,
		"OTLP-GRPC": OTLPGRPCProvider,
		" otlp-http": OTLPHTTPProvider,
		"console":   ConsoleProvider,
		"newrelic":  EmptyProvider,
		"":          EmptyProvider,
	}
	for in, want := range tests {
		if got := ParseProvider(in); got != want {
			t.Errorf("ParseProvider(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseHeaders(t *testing.T) {
	got, err := ParseHeaders("x-honeycomb-team=abc, api-key = k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["x-honeycomb-team"] != "abc" || got["api-key"] != "k" {
		t.Errorf("unexpected headers %v", got)
	}

	if _, err := ParseHeaders("broken"); err == nil {
		t.Error("expected error for header without '='")
	}
}

func TestNewTraceProvider_BadHeadersFallsBackToEmpty(t *testing.T) {
	log := logger.New(io.Discard, logger.LevelDebug, "test", nil)

	tp := NewTraceProvider(WithProvider(OTLPHTTPProvider, ExporterConfig{Headers: "nope"}, log))
	if _, ok := tp.(emptyTraceProvider); !ok {
		t.Fatalf("expected empty provider, got %T", tp)
	}
	if err := tp.Stop(); err != nil {
		t.Errorf("Stop() = %v", err)
	}
}
