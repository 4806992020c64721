package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dapp-marketplace/business/marketplace/domain"
	walletapp "github.com/fd1az/dapp-marketplace/business/wallet/app"
	walletdomain "github.com/fd1az/dapp-marketplace/business/wallet/domain"
	"github.com/fd1az/dapp-marketplace/internal/apperror"
	"github.com/fd1az/dapp-marketplace/internal/logger"
)

const (
	tracerName = "github.com/fd1az/dapp-marketplace/business/marketplace/app"
	meterName  = "github.com/fd1az/dapp-marketplace/business/marketplace/app"
)

type opKind string

const (
	opConnect opKind = "connect"
	opReload  opKind = "reload"
	opSubmit  opKind = "submit"
)

// operation is the single reload or submission a session may run. Its
// results are applied only while gen matches the session generation.
type operation struct {
	gen    uint64
	kind   opKind
	ctx    context.Context
	cancel context.CancelFunc
}

type sessionMetrics struct {
	reloads     metric.Int64Counter
	transitions metric.Int64Counter
	rejected    metric.Int64Counter
}

// Session owns the connection state and the reload pipeline. Disconnects
// and network transitions abandon whatever operation is in flight.
type Session struct {
	gateway  walletapp.Gateway
	switcher walletapp.EndpointSwitcher
	locator  *Locator
	repo     ProductRepository
	store    *Store
	logger   logger.LoggerInterface

	mu       sync.Mutex
	gen      uint64
	inflight *operation
	wg       sync.WaitGroup

	tracer  trace.Tracer
	metrics *sessionMetrics
}

// NewSession creates a session. When gateway also implements
// EndpointSwitcher the session exposes endpoint switching.
func NewSession(gateway walletapp.Gateway, locator *Locator, repo ProductRepository, store *Store, log logger.LoggerInterface) (*Session, error) {
	s := &Session{
		gateway: gateway,
		locator: locator,
		repo:    repo,
		store:   store,
		logger:  log,
		tracer:  otel.Tracer(tracerName),
	}
	if sw, ok := gateway.(walletapp.EndpointSwitcher); ok {
		s.switcher = sw
		store.Update(func(st *domain.State) { st.Endpoint = sw.ActiveEndpoint() })
	}

	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return s, nil
}

func (s *Session) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &sessionMetrics{}

	s.metrics.reloads, err = meter.Int64Counter(
		"marketplace_reloads_total",
		metric.WithDescription("Reload pipeline runs by outcome"),
		metric.WithUnit("{reload}"),
	)
	if err != nil {
		return err
	}

	s.metrics.transitions, err = meter.Int64Counter(
		"marketplace_network_transitions_total",
		metric.WithDescription("Network transitions observed while connected"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return err
	}

	s.metrics.rejected, err = meter.Int64Counter(
		"marketplace_busy_rejections_total",
		metric.WithDescription("Intents rejected because an operation was in flight"),
		metric.WithUnit("{intent}"),
	)
	return err
}

// State returns the current snapshot.
func (s *Session) State() domain.State {
	return s.store.Snapshot()
}

// Subscribe registers fn for every state change.
func (s *Session) Subscribe(fn func(domain.State)) func() {
	return s.store.Subscribe(fn)
}

// Run consumes the gateway's network stream until ctx is done. A genuine
// transition while connected abandons the in-flight operation and starts
// a reload for the new network.
func (s *Session) Run(ctx context.Context) error {
	changes, err := s.gateway.SubscribeNetwork(ctx)
	if err != nil {
		return err
	}
	defer s.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			s.onNetworkChange(ctx, change)
		}
	}
}

func (s *Session) onNetworkChange(ctx context.Context, change walletdomain.NetworkChange) {
	id := change.Current

	s.mu.Lock()
	connected := s.store.Snapshot().Connected()
	if !change.IsTransition() || !connected {
		s.store.Update(func(st *domain.State) {
			st.NetworkID = &id
			s.syncEndpoint(st)
		})
		s.mu.Unlock()
		return
	}

	s.logger.Info(ctx, "network changed",
		"from", change.Previous.String(),
		"to", id.String(),
	)
	s.metrics.transitions.Add(ctx, 1)

	s.abandonLocked()
	opCtx, cancel := context.WithCancel(ctx)
	op := &operation{gen: s.gen, kind: opReload, ctx: opCtx, cancel: cancel}
	s.inflight = op
	s.store.Update(func(st *domain.State) {
		st.NetworkID = &id
		st.Binding = nil
		st.Products = []domain.Product{}
		st.ContractName = ""
		st.Pending = nil
		s.syncEndpoint(st)
	})
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.finish(op)
		_ = s.reload(op, &id)
	}()
}

// Connect asks the wallet for an account and, once connected, reloads.
func (s *Session) Connect(ctx context.Context) error {
	op, err := s.begin(ctx, opConnect)
	if err != nil {
		return err
	}
	defer s.finish(op)

	s.apply(op, func(st *domain.State) {
		st.Connection = domain.Connection{Status: walletdomain.StateConnecting}
		st.LastError = nil
	})

	account, err := s.gateway.Connect(op.ctx)
	if err != nil {
		if !s.apply(op, func(st *domain.State) {
			disconnect(st)
			st.LastError = err
		}) {
			return abandoned(err)
		}
		s.logger.Warn(ctx, "connect failed", "error", err)
		return err
	}

	if !s.apply(op, func(st *domain.State) {
		st.Connection = domain.Connection{Status: walletdomain.StateConnected, Account: account}
	}) {
		_ = s.gateway.Disconnect(context.WithoutCancel(ctx))
		return abandoned(nil)
	}
	s.logger.Info(ctx, "wallet connected", "account", account.Hex())

	if err := s.reload(op, nil); err != nil && !apperror.HasCode(err, apperror.CodeOperationAbandoned) {
		return err
	}
	return nil
}

// Disconnect resets the session from any state. An in-flight operation is
// abandoned and its results are discarded.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	s.abandonLocked()
	s.store.Update(func(st *domain.State) {
		disconnect(st)
		st.LastError = nil
	})
	s.mu.Unlock()

	if err := s.gateway.Disconnect(ctx); err != nil {
		s.recordError(err)
		return err
	}
	s.logger.Info(ctx, "wallet disconnected")
	return nil
}

// Reload re-runs the reload pipeline for the current network.
func (s *Session) Reload(ctx context.Context) error {
	if !s.State().Connected() {
		err := apperror.New(apperror.CodeNotConnected)
		s.recordError(err)
		return err
	}

	op, err := s.begin(ctx, opReload)
	if err != nil {
		return err
	}
	defer s.finish(op)

	return s.reload(op, nil)
}

// NextEndpoint moves the gateway to its next configured endpoint. The
// resulting network change arrives through Run.
func (s *Session) NextEndpoint(ctx context.Context) (string, error) {
	if s.switcher == nil {
		err := apperror.New(apperror.CodeInvalidState, apperror.WithContext("gateway has a single endpoint"))
		s.recordError(err)
		return "", err
	}

	name, err := s.switcher.NextEndpoint(ctx)
	if err != nil {
		s.recordError(err)
		return "", err
	}
	s.store.Update(func(st *domain.State) { st.Endpoint = name })
	return name, nil
}

// ClearError drops the last surfaced error.
func (s *Session) ClearError() {
	s.store.Update(func(st *domain.State) { st.LastError = nil })
}

// reload resolves the binding and lists products. networkID is fetched
// from the gateway when nil.
func (s *Session) reload(op *operation, networkID *walletdomain.NetworkID) (err error) {
	ctx, span := s.tracer.Start(op.ctx, "marketplace.reload")
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(apperror.GetCode(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "reload failed")
		}
		s.metrics.reloads.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
		span.End()
	}()

	if !s.apply(op, func(st *domain.State) { st.Loading = true }) {
		return abandoned(nil)
	}

	var id walletdomain.NetworkID
	if networkID != nil {
		id = *networkID
	} else {
		id, err = s.gateway.NetworkID(ctx)
		if err != nil {
			return s.settle(op, err, func(st *domain.State) {})
		}
	}
	span.SetAttributes(attribute.Int64("network", int64(id)))

	binding, err := s.locator.Resolve(id)
	if err != nil {
		return s.settle(op, err, func(st *domain.State) {
			st.NetworkID = &id
			st.Binding = nil
			st.ContractName = ""
			st.Products = []domain.Product{}
		})
	}

	products, err := s.repo.ListAll(ctx, binding)
	if err != nil {
		return s.settle(op, err, func(st *domain.State) {
			if !st.Binding.Same(binding) {
				st.Products = []domain.Product{}
				st.ContractName = ""
			}
			st.NetworkID = &id
			st.Binding = binding
		})
	}

	name, nameErr := s.repo.ContractName(ctx, binding)
	if nameErr != nil {
		s.logger.Warn(ctx, "contract name unavailable", "error", nameErr)
	}

	if !s.apply(op, func(st *domain.State) {
		st.NetworkID = &id
		st.Binding = binding
		st.ContractName = name
		st.Products = products
		st.Loading = false
		st.LastError = nil
		s.syncEndpoint(st)
	}) {
		return abandoned(nil)
	}

	s.logger.Debug(ctx, "reloaded products",
		"network", id.String(),
		"contract", binding.Address.Hex(),
		"products", len(products),
	)
	return nil
}

// settle ends a failed reload: fn runs, loading clears and err is
// surfaced. Abandoned operations change nothing.
func (s *Session) settle(op *operation, err error, fn func(*domain.State)) error {
	if !s.apply(op, func(st *domain.State) {
		fn(st)
		st.Loading = false
		st.LastError = err
	}) {
		return abandoned(err)
	}
	return err
}

func (s *Session) begin(ctx context.Context, kind opKind) (*operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inflight != nil {
		s.metrics.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("intent", string(kind))))
		err := apperror.New(apperror.CodeSessionBusy, apperror.WithContext(string(s.inflight.kind)+" in progress"))
		s.store.Update(func(st *domain.State) { st.LastError = err })
		return nil, err
	}

	opCtx, cancel := context.WithCancel(ctx)
	op := &operation{gen: s.gen, kind: kind, ctx: opCtx, cancel: cancel}
	s.inflight = op
	return op, nil
}

func (s *Session) finish(op *operation) {
	s.mu.Lock()
	if s.inflight == op {
		s.inflight = nil
	}
	s.mu.Unlock()
	op.cancel()
}

// apply runs fn against the store unless op has been abandoned.
func (s *Session) apply(op *operation, fn func(*domain.State)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if op.gen != s.gen {
		return false
	}
	s.store.Update(fn)
	return true
}

func (s *Session) stale(op *operation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return op.gen != s.gen
}

// abandonLocked bumps the generation and cancels the in-flight operation.
func (s *Session) abandonLocked() {
	s.gen++
	if s.inflight != nil {
		s.inflight.cancel()
		s.inflight = nil
	}
}

func (s *Session) recordError(err error) {
	s.store.Update(func(st *domain.State) { st.LastError = err })
}

func (s *Session) syncEndpoint(st *domain.State) {
	if s.switcher != nil {
		st.Endpoint = s.switcher.ActiveEndpoint()
	}
}

func disconnect(st *domain.State) {
	st.Connection = domain.Connection{Status: walletdomain.StateDisconnected, Account: common.Address{}}
	st.Binding = nil
	st.ContractName = ""
	st.Products = []domain.Product{}
	st.Loading = false
	st.Pending = nil
}

func abandoned(cause error) error {
	opts := []apperror.Option{}
	if cause != nil {
		opts = append(opts, apperror.WithCause(cause))
	}
	return apperror.New(apperror.CodeOperationAbandoned, opts...)
}
