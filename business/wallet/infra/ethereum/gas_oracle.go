package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dapp-marketplace/business/wallet/domain"
	"github.com/fd1az/dapp-marketplace/internal/apperror"
	"github.com/fd1az/dapp-marketplace/internal/cache"
	"github.com/fd1az/dapp-marketplace/internal/circuitbreaker"
	"github.com/fd1az/dapp-marketplace/internal/logger"
)

// GasOracleConfig holds configuration for the gas oracle.
type GasOracleConfig struct {
	CacheTTL    time.Duration // How long to cache gas prices
	MaxGasPrice *big.Int      // Prices above this are clamped
}

// DefaultGasOracleConfig returns sensible defaults.
func DefaultGasOracleConfig() GasOracleConfig {
	return GasOracleConfig{
		CacheTTL:    12 * time.Second, // ~1 block
		MaxGasPrice: new(big.Int).Mul(big.NewInt(500), big.NewInt(1e9)),
	}
}

type gasOracleMetrics struct {
	gasPriceFetches metric.Int64Counter
	gasPriceGwei    metric.Float64Gauge
	estimateGas     metric.Int64Counter
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
}

// GasOracle serves gas prices for the active endpoint. The price cache is
// keyed by endpoint so a network switch never reuses another chain's price.
type GasOracle struct {
	config GasOracleConfig
	logger logger.LoggerInterface

	// client returns the active backend and its endpoint name.
	client func() (backend, string, error)

	priceCache *cache.Cache[string, *domain.GasPrice]
	cb         *circuitbreaker.CircuitBreaker[*big.Int]

	tracer  trace.Tracer
	metrics *gasOracleMetrics
}

// NewGasOracle creates a new gas oracle instance.
func NewGasOracle(cfg GasOracleConfig, log logger.LoggerInterface, client func() (backend, string, error)) (*GasOracle, error) {
	g := &GasOracle{
		config:     cfg,
		logger:     log,
		client:     client,
		priceCache: cache.New[string, *domain.GasPrice](5 * time.Minute),
		cb:         circuitbreaker.New[*big.Int](circuitbreaker.DefaultConfig("gas-oracle")),
		tracer:     otel.Tracer(tracerName),
	}

	if err := g.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return g, nil
}

func (g *GasOracle) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	g.metrics = &gasOracleMetrics{}

	g.metrics.gasPriceFetches, err = meter.Int64Counter(
		"wallet_gas_price_fetches_total",
		metric.WithDescription("Total gas price fetch attempts"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return err
	}

	g.metrics.gasPriceGwei, err = meter.Float64Gauge(
		"wallet_gas_price_gwei",
		metric.WithDescription("Current gas price in gwei"),
		metric.WithUnit("gwei"),
	)
	if err != nil {
		return err
	}

	g.metrics.estimateGas, err = meter.Int64Counter(
		"wallet_gas_estimate_total",
		metric.WithDescription("Total gas estimation calls"),
		metric.WithUnit("{estimate}"),
	)
	if err != nil {
		return err
	}

	g.metrics.cacheHits, err = meter.Int64Counter(
		"wallet_gas_cache_hits_total",
		metric.WithDescription("Gas price cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return err
	}

	g.metrics.cacheMisses, err = meter.Int64Counter(
		"wallet_gas_cache_misses_total",
		metric.WithDescription("Gas price cache misses"),
		metric.WithUnit("{miss}"),
	)
	return err
}

// GasPrice retrieves the current gas price with caching.
func (g *GasOracle) GasPrice(ctx context.Context) (*domain.GasPrice, error) {
	ctx, span := g.tracer.Start(ctx, "gas.get_price")
	defer span.End()

	client, endpoint, err := g.client()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "no backend")
		return nil, err
	}
	span.SetAttributes(attribute.String("endpoint", endpoint))

	if price, found := g.priceCache.Get(ctx, endpoint); found {
		g.metrics.cacheHits.Add(ctx, 1)
		span.AddEvent("cache_hit")
		return price, nil
	}

	g.metrics.cacheMisses.Add(ctx, 1)
	g.metrics.gasPriceFetches.Add(ctx, 1)

	wei, err := g.cb.Execute(func() (*big.Int, error) {
		return client.SuggestGasPrice(ctx)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithCause(err),
			apperror.WithContext("failed to get gas price"))
	}

	if g.config.MaxGasPrice != nil && wei.Cmp(g.config.MaxGasPrice) > 0 {
		span.AddEvent("gas_price_exceeded_max",
			trace.WithAttributes(attribute.String("wei", wei.String())))
		g.logger.Warn(ctx, "gas price exceeds max", "wei", wei.String(), "max", g.config.MaxGasPrice.String())
		wei = g.config.MaxGasPrice
	}

	price := domain.NewGasPrice(wei)

	g.priceCache.Set(ctx, endpoint, price, g.config.CacheTTL)
	g.metrics.gasPriceGwei.Record(ctx, price.Gwei)

	span.SetAttributes(attribute.Float64("gwei", price.Gwei))
	span.SetStatus(codes.Ok, "fetched")

	return price, nil
}

// EstimateGas estimates the gas needed for msg plus a 10% margin.
func (g *GasOracle) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	to := ""
	if msg.To != nil {
		to = msg.To.Hex()
	}
	ctx, span := g.tracer.Start(ctx, "gas.estimate",
		trace.WithAttributes(
			attribute.String("to", to),
			attribute.Int("data_len", len(msg.Data)),
		),
	)
	defer span.End()

	g.metrics.estimateGas.Add(ctx, 1)

	client, _, err := g.client()
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	gas, err := client.EstimateGas(ctx, msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "estimate failed")
		return 0, apperror.New(apperror.CodeGasEstimationFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("failed to estimate gas for %s", to)))
	}

	gas = gas + (gas / 10)

	span.SetAttributes(attribute.Int64("gas", int64(gas)))
	span.SetStatus(codes.Ok, "estimated")

	return gas, nil
}

// Close stops the price cache.
func (g *GasOracle) Close() error {
	g.priceCache.Close()
	return nil
}
