package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dapp-marketplace/business/wallet/app"
	"github.com/fd1az/dapp-marketplace/business/wallet/domain"
	"github.com/fd1az/dapp-marketplace/internal/apperror"
	"github.com/fd1az/dapp-marketplace/internal/circuitbreaker"
	"github.com/fd1az/dapp-marketplace/internal/config"
	"github.com/fd1az/dapp-marketplace/internal/logger"
)

// GatewayConfig holds configuration for the gateway.
type GatewayConfig struct {
	Endpoints           []config.Endpoint
	DefaultEndpoint     string
	NetworkPollInterval time.Duration
	ReceiptPollInterval time.Duration
	RequestTimeout      time.Duration
}

// GatewayConfigFrom maps the ethereum config section.
func GatewayConfigFrom(cfg config.EthereumConfig) GatewayConfig {
	return GatewayConfig{
		Endpoints:           cfg.ResolvedEndpoints(),
		DefaultEndpoint:     cfg.DefaultEndpoint,
		NetworkPollInterval: cfg.NetworkPollInterval,
		ReceiptPollInterval: cfg.ReceiptPollInterval,
		RequestTimeout:      cfg.RequestTimeout,
	}
}

type gatewayMetrics struct {
	calls        metric.Int64Counter
	approvals    metric.Int64Counter
	txSubmitted  metric.Int64Counter
	txConfirmed  metric.Int64Counter
	txReverted   metric.Int64Counter
	endpointSwap metric.Int64Counter
}

// Gateway implements app.Gateway with a local signer standing in for the
// browser wallet. Every prompt goes through the Approver.
type Gateway struct {
	config   GatewayConfig
	logger   logger.LoggerInterface
	dial     Dialer
	signer   *Signer
	approver app.Approver

	oracle  *GasOracle
	watcher *NetworkWatcher
	callCB  *circuitbreaker.CircuitBreaker[[]byte]

	mu       sync.RWMutex
	client   backend
	endpoint string
	account  *common.Address
	pokes    map[chan struct{}]struct{}

	// Serializes nonce assignment between concurrent sends.
	nonceMu sync.Mutex

	tracer  trace.Tracer
	metrics *gatewayMetrics
}

var (
	_ app.Gateway          = (*Gateway)(nil)
	_ app.EndpointSwitcher = (*Gateway)(nil)
	_ app.GasOracle        = (*GasOracle)(nil)
)

// NewGateway creates a gateway. signer may be nil, in which case Connect
// fails with WALLET_UNAVAILABLE. Call Dial before use.
func NewGateway(cfg GatewayConfig, log logger.LoggerInterface, dial Dialer, signer *Signer, approver app.Approver, oracleCfg GasOracleConfig) (*Gateway, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("no ethereum endpoints configured"))
	}
	if approver == nil {
		approver = app.AutoApprover
	}

	g := &Gateway{
		config:   cfg,
		logger:   log,
		dial:     dial,
		signer:   signer,
		approver: approver,
		callCB:   circuitbreaker.New[[]byte](circuitbreaker.DefaultConfig("wallet-eth-call")),
		pokes:    make(map[chan struct{}]struct{}),
		tracer:   otel.Tracer(tracerName),
	}

	if err := g.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	oracle, err := NewGasOracle(oracleCfg, log, g.currentClient)
	if err != nil {
		return nil, err
	}
	g.oracle = oracle

	watcher, err := NewNetworkWatcher(cfg.NetworkPollInterval, g.chainID, log)
	if err != nil {
		return nil, err
	}
	g.watcher = watcher

	return g, nil
}

func (g *Gateway) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	g.metrics = &gatewayMetrics{}

	g.metrics.calls, err = meter.Int64Counter(
		"wallet_eth_calls_total",
		metric.WithDescription("Read-only contract calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return err
	}

	g.metrics.approvals, err = meter.Int64Counter(
		"wallet_approvals_total",
		metric.WithDescription("Wallet prompts by kind and answer"),
		metric.WithUnit("{prompt}"),
	)
	if err != nil {
		return err
	}

	g.metrics.txSubmitted, err = meter.Int64Counter(
		"wallet_tx_submitted_total",
		metric.WithDescription("Transactions broadcast"),
		metric.WithUnit("{tx}"),
	)
	if err != nil {
		return err
	}

	g.metrics.txConfirmed, err = meter.Int64Counter(
		"wallet_tx_confirmed_total",
		metric.WithDescription("Transactions confirmed successfully"),
		metric.WithUnit("{tx}"),
	)
	if err != nil {
		return err
	}

	g.metrics.txReverted, err = meter.Int64Counter(
		"wallet_tx_reverted_total",
		metric.WithDescription("Transactions mined with a failed status"),
		metric.WithUnit("{tx}"),
	)
	if err != nil {
		return err
	}

	g.metrics.endpointSwap, err = meter.Int64Counter(
		"wallet_endpoint_switches_total",
		metric.WithDescription("RPC endpoint switches"),
		metric.WithUnit("{switch}"),
	)
	return err
}

// Dial connects to the default endpoint (or the first configured one).
func (g *Gateway) Dial(ctx context.Context) error {
	name := g.config.DefaultEndpoint
	if name == "" {
		name = g.config.Endpoints[0].Name
	}
	return g.SwitchEndpoint(ctx, name)
}

// Oracle exposes the gas oracle.
func (g *Gateway) Oracle() *GasOracle {
	return g.oracle
}

func (g *Gateway) currentClient() (backend, string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.client == nil {
		return nil, "", apperror.New(apperror.CodeEthereumConnectionFailed,
			apperror.WithContext("no rpc endpoint dialed"))
	}
	return g.client, g.endpoint, nil
}

func (g *Gateway) chainID(ctx context.Context) (*big.Int, error) {
	client, _, err := g.currentClient()
	if err != nil {
		return nil, err
	}
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()
	return client.ChainID(ctx)
}

func (g *Gateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.config.RequestTimeout)
}

// Account returns the connected account, if any.
func (g *Gateway) Account() (common.Address, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.account == nil {
		return common.Address{}, false
	}
	return *g.account, true
}

// NetworkID returns the chain id of the active endpoint.
func (g *Gateway) NetworkID(ctx context.Context) (domain.NetworkID, error) {
	id, err := g.chainID(ctx)
	if err != nil {
		return 0, apperror.Wrap(err, apperror.CodeEthereumRPCError, "eth_chainId")
	}
	return domain.NetworkIDFromBig(id), nil
}

// SubscribeNetwork streams network observations until ctx is done.
func (g *Gateway) SubscribeNetwork(ctx context.Context) (<-chan domain.NetworkChange, error) {
	poke := make(chan struct{}, 1)

	g.mu.Lock()
	g.pokes[poke] = struct{}{}
	g.mu.Unlock()

	go func() {
		<-ctx.Done()
		g.mu.Lock()
		delete(g.pokes, poke)
		g.mu.Unlock()
	}()

	return g.watcher.Watch(ctx, poke), nil
}

// Connect asks the approver for access to the signer's account.
func (g *Gateway) Connect(ctx context.Context) (common.Address, error) {
	ctx, span := g.tracer.Start(ctx, "wallet.connect")
	defer span.End()

	if g.signer == nil {
		err := apperror.New(apperror.CodeWalletUnavailable,
			apperror.WithContext("no private key or keystore configured"))
		span.RecordError(err)
		span.SetStatus(codes.Error, "no signer")
		return common.Address{}, err
	}

	account := g.signer.Address()
	network, _ := g.NetworkID(ctx)

	if err := g.approve(ctx, app.ApprovalRequest{
		Kind:      app.ApprovalConnect,
		Account:   account,
		NetworkID: network,
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "not approved")
		return common.Address{}, err
	}

	g.mu.Lock()
	g.account = &account
	g.mu.Unlock()

	span.SetAttributes(attribute.String("account", account.Hex()))
	span.SetStatus(codes.Ok, "connected")
	g.logger.Info(ctx, "wallet connected", "account", account.Hex(), "network", network.String())

	return account, nil
}

// Disconnect forgets the connected account.
func (g *Gateway) Disconnect(ctx context.Context) error {
	g.mu.Lock()
	had := g.account != nil
	g.account = nil
	g.mu.Unlock()

	if had {
		g.logger.Info(ctx, "wallet disconnected")
	}
	return nil
}

func (g *Gateway) approve(ctx context.Context, req app.ApprovalRequest) error {
	ok, err := g.approver.Approve(ctx, req)
	answer := "approved"
	switch {
	case err != nil:
		answer = "error"
	case !ok:
		answer = "declined"
	}
	g.metrics.approvals.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", string(req.Kind)),
		attribute.String("answer", answer),
	))

	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperror.New(apperror.CodeWalletUnavailable,
			apperror.WithCause(err),
			apperror.WithContext(string(req.Kind)+" prompt failed"))
	}
	if !ok {
		return apperror.New(apperror.CodeUserRejected,
			apperror.WithContext(string(req.Kind)+" request declined"))
	}
	return nil
}

// Call runs a read-only call against the latest block.
func (g *Gateway) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	ctx, span := g.tracer.Start(ctx, "wallet.call",
		trace.WithAttributes(attribute.String("to", to.Hex())),
	)
	defer span.End()

	client, endpoint, err := g.currentClient()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	out, err := g.callCB.Execute(func() ([]byte, error) {
		ctx, cancel := g.withTimeout(ctx)
		defer cancel()
		return client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	})
	g.metrics.calls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.Bool("success", err == nil),
	))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "call failed")
		return nil, apperror.Wrap(err, apperror.CodeContractCallFailed, to.Hex())
	}

	span.SetStatus(codes.Ok, "called")
	return out, nil
}

// Endpoints returns the configured endpoint names in order.
func (g *Gateway) Endpoints() []string {
	names := make([]string, len(g.config.Endpoints))
	for i, ep := range g.config.Endpoints {
		names[i] = ep.Name
	}
	return names
}

// ActiveEndpoint returns the name of the dialed endpoint.
func (g *Gateway) ActiveEndpoint() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.endpoint
}

// SwitchEndpoint dials name and makes it active. Network subscribers are
// poked so the change is observed without waiting for the next poll.
func (g *Gateway) SwitchEndpoint(ctx context.Context, name string) error {
	ctx, span := g.tracer.Start(ctx, "wallet.switch_endpoint",
		trace.WithAttributes(attribute.String("endpoint", name)),
	)
	defer span.End()

	var target *config.Endpoint
	for i := range g.config.Endpoints {
		if g.config.Endpoints[i].Name == name {
			target = &g.config.Endpoints[i]
			break
		}
	}
	if target == nil {
		err := apperror.New(apperror.CodeUnknownEndpoint, apperror.WithContext(name))
		span.RecordError(err)
		span.SetStatus(codes.Error, "unknown endpoint")
		return err
	}

	client, err := g.dial(ctx, target.HTTPURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "dial failed")
		return apperror.New(apperror.CodeEthereumConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext(name))
	}

	g.mu.Lock()
	old := g.client
	g.client = client
	g.endpoint = name
	for poke := range g.pokes {
		select {
		case poke <- struct{}{}:
		default:
		}
	}
	g.mu.Unlock()

	if old != nil {
		old.Close()
	}

	g.metrics.endpointSwap.Add(ctx, 1, metric.WithAttributes(attribute.String("endpoint", name)))
	span.SetStatus(codes.Ok, "switched")
	g.logger.Info(ctx, "rpc endpoint active", "endpoint", name)

	return nil
}

// NextEndpoint switches to the endpoint after the active one, wrapping.
func (g *Gateway) NextEndpoint(ctx context.Context) (string, error) {
	names := g.Endpoints()
	active := g.ActiveEndpoint()

	next := names[0]
	for i, n := range names {
		if n == active {
			next = names[(i+1)%len(names)]
			break
		}
	}

	if err := g.SwitchEndpoint(ctx, next); err != nil {
		return "", err
	}
	return next, nil
}

// Close releases the RPC client and the gas price cache.
func (g *Gateway) Close() error {
	g.mu.Lock()
	client := g.client
	g.client = nil
	g.mu.Unlock()

	if client != nil {
		client.Close()
	}
	return g.oracle.Close()
}
