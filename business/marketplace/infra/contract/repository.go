package contract

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/fd1az/dapp-marketplace/business/marketplace/domain"
	"github.com/fd1az/dapp-marketplace/internal/apperror"
	"github.com/fd1az/dapp-marketplace/internal/circuitbreaker"
	"github.com/fd1az/dapp-marketplace/internal/logger"
	"github.com/fd1az/dapp-marketplace/internal/ratelimit"
)

const (
	tracerName = "github.com/fd1az/dapp-marketplace/business/marketplace/infra/contract"
	meterName  = "github.com/fd1az/dapp-marketplace/business/marketplace/infra/contract"
)

// Caller performs read-only contract calls.
type Caller interface {
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// RepositoryConfig holds configuration for product reads.
type RepositoryConfig struct {
	Concurrency    int     // products(i) calls in flight
	ReadsPerSecond float64 // 0 means unlimited
	MaxProducts    int     // upper bound on productCount; 0 means DefaultMaxProducts
}

// DefaultMaxProducts bounds a listing when no limit is configured.
const DefaultMaxProducts = 10000

type repositoryMetrics struct {
	listings     metric.Int64Counter
	productReads metric.Int64Counter
	products     metric.Int64Gauge
}

// Repository reads products from a bound marketplace contract.
type Repository struct {
	config  RepositoryConfig
	caller  Caller
	logger  logger.LoggerInterface
	limiter *ratelimit.Limiter
	cb      *circuitbreaker.CircuitBreaker[[]byte]

	tracer  trace.Tracer
	metrics *repositoryMetrics
}

// NewRepository creates a product repository.
func NewRepository(cfg RepositoryConfig, caller Caller, log logger.LoggerInterface) (*Repository, error) {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.MaxProducts < 1 {
		cfg.MaxProducts = DefaultMaxProducts
	}

	limiter := ratelimit.Unlimited()
	if cfg.ReadsPerSecond > 0 {
		limiter = ratelimit.NewWithBurst(cfg.ReadsPerSecond, cfg.Concurrency)
	}

	r := &Repository{
		config:  cfg,
		caller:  caller,
		logger:  log,
		limiter: limiter,
		cb:      circuitbreaker.New[[]byte](circuitbreaker.DefaultConfig("marketplace-reads")),
		tracer:  otel.Tracer(tracerName),
	}

	if err := r.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return r, nil
}

func (r *Repository) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	r.metrics = &repositoryMetrics{}

	r.metrics.listings, err = meter.Int64Counter(
		"marketplace_listings_total",
		metric.WithDescription("Full product listings by outcome"),
		metric.WithUnit("{listing}"),
	)
	if err != nil {
		return err
	}

	r.metrics.productReads, err = meter.Int64Counter(
		"marketplace_product_reads_total",
		metric.WithDescription("Contract view calls issued"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return err
	}

	r.metrics.products, err = meter.Int64Gauge(
		"marketplace_products",
		metric.WithDescription("Products in the last successful listing"),
		metric.WithUnit("{product}"),
	)
	return err
}

// ListAll reads productCount and then products(1..N) in parallel. The
// result is ordered by id. Any failed read fails the whole listing.
func (r *Repository) ListAll(ctx context.Context, binding *domain.ContractBinding) ([]domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "marketplace.list_products",
		trace.WithAttributes(
			attribute.String("contract", binding.Address.Hex()),
			attribute.Int64("network", int64(binding.NetworkID)),
		),
	)
	defer span.End()

	products, err := r.listAll(ctx, binding)
	r.metrics.listings.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", err == nil)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "listing failed")
		return nil, apperror.New(apperror.CodeRepositoryReadError,
			apperror.WithCause(err),
			apperror.WithContext(binding.Address.Hex()))
	}

	r.metrics.products.Record(ctx, int64(len(products)))
	span.SetAttributes(attribute.Int("products", len(products)))
	span.SetStatus(codes.Ok, "listed")

	return products, nil
}

func (r *Repository) listAll(ctx context.Context, binding *domain.ContractBinding) ([]domain.Product, error) {
	count, err := r.productCount(ctx, binding)
	if err != nil {
		return nil, err
	}

	if count > uint64(r.config.MaxProducts) {
		return nil, fmt.Errorf("productCount %d exceeds limit of %d", count, r.config.MaxProducts)
	}

	products := make([]domain.Product, count)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Concurrency)

	for id := uint64(1); id <= count; id++ {
		g.Go(func() error {
			p, err := r.product(gctx, binding, id)
			if err != nil {
				return fmt.Errorf("products(%d): %w", id, err)
			}
			products[id-1] = p
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *Repository) productCount(ctx context.Context, binding *domain.ContractBinding) (uint64, error) {
	out, err := r.call(ctx, binding, domain.MethodProductCount)
	if err != nil {
		return 0, fmt.Errorf("productCount: %w", err)
	}

	values, err := binding.ABI.Unpack(domain.MethodProductCount, out)
	if err != nil {
		return 0, fmt.Errorf("unpack productCount: %w", err)
	}
	count, ok := first[*big.Int](values)
	if !ok || !count.IsUint64() {
		return 0, fmt.Errorf("productCount: unexpected result %v", values)
	}
	return count.Uint64(), nil
}

func (r *Repository) product(ctx context.Context, binding *domain.ContractBinding, id uint64) (domain.Product, error) {
	out, err := r.call(ctx, binding, domain.MethodProducts, new(big.Int).SetUint64(id))
	if err != nil {
		return domain.Product{}, err
	}

	values, err := binding.ABI.Unpack(domain.MethodProducts, out)
	if err != nil {
		return domain.Product{}, fmt.Errorf("unpack: %w", err)
	}
	if len(values) != 5 {
		return domain.Product{}, fmt.Errorf("expected 5 fields, got %d", len(values))
	}

	gotID, ok1 := values[0].(*big.Int)
	name, ok2 := values[1].(string)
	price, ok3 := values[2].(*big.Int)
	owner, ok4 := values[3].(common.Address)
	purchased, ok5 := values[4].(bool)
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
		return domain.Product{}, fmt.Errorf("unexpected field types %T %T %T %T %T",
			values[0], values[1], values[2], values[3], values[4])
	}
	if !gotID.IsUint64() || gotID.Uint64() != id {
		return domain.Product{}, fmt.Errorf("contract returned id %s", gotID)
	}

	return domain.NewProduct(id, name, price, owner, purchased), nil
}

// ContractName reads the contract's name() view.
func (r *Repository) ContractName(ctx context.Context, binding *domain.ContractBinding) (string, error) {
	ctx, span := r.tracer.Start(ctx, "marketplace.contract_name")
	defer span.End()

	if _, ok := binding.ABI.Methods[domain.MethodName]; !ok {
		return "", nil
	}

	out, err := r.call(ctx, binding, domain.MethodName)
	if err == nil {
		var values []any
		values, err = binding.ABI.Unpack(domain.MethodName, out)
		if err == nil {
			if name, ok := first[string](values); ok {
				span.SetStatus(codes.Ok, "read")
				return name, nil
			}
			err = fmt.Errorf("unexpected result %v", values)
		}
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, "read failed")
	return "", apperror.New(apperror.CodeRepositoryReadError,
		apperror.WithCause(err),
		apperror.WithContext("name()"))
}

func (r *Repository) call(ctx context.Context, binding *domain.ContractBinding, method string, args ...any) ([]byte, error) {
	data, err := binding.ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	r.metrics.productReads.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method)))

	return r.cb.Execute(func() ([]byte, error) {
		return r.caller.Call(ctx, binding.Address, data)
	})
}

func first[T any](values []any) (T, bool) {
	var zero T
	if len(values) == 0 {
		return zero, false
	}
	v, ok := values[0].(T)
	return v, ok
}
