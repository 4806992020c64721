package app

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dapp-marketplace/business/marketplace/domain"
	walletdomain "github.com/fd1az/dapp-marketplace/business/wallet/domain"
	"github.com/fd1az/dapp-marketplace/internal/apperror"
	"github.com/fd1az/dapp-marketplace/internal/logger"
)

// OrchestratorConfig holds transaction settings.
type OrchestratorConfig struct {
	PurchaseGasLimit    uint64
	CreateGasLimit      uint64 // 0 means estimate
	Confirmations       uint64
	ConfirmationTimeout time.Duration // 0 means unbounded
}

// Outcome describes a confirmed submission.
type Outcome struct {
	Pending *domain.PendingTransaction
	TxHash  common.Hash
	Block   uint64
	Event   *domain.ProductEvent
}

type orchestratorMetrics struct {
	submissions metric.Int64Counter
	duration    metric.Float64Histogram
}

// Orchestrator runs submit, confirm and refresh for marketplace
// transactions. It shares the session's single in-flight slot.
type Orchestrator struct {
	config  OrchestratorConfig
	session *Session
	logger  logger.LoggerInterface

	tracer  trace.Tracer
	metrics *orchestratorMetrics
}

// NewOrchestrator creates an orchestrator bound to session.
func NewOrchestrator(cfg OrchestratorConfig, session *Session, log logger.LoggerInterface) (*Orchestrator, error) {
	if cfg.Confirmations == 0 {
		cfg.Confirmations = 1
	}

	o := &Orchestrator{
		config:  cfg,
		session: session,
		logger:  log,
		tracer:  otel.Tracer(tracerName),
	}
	if err := o.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return o, nil
}

func (o *Orchestrator) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	o.metrics = &orchestratorMetrics{}

	o.metrics.submissions, err = meter.Int64Counter(
		"marketplace_submissions_total",
		metric.WithDescription("Transaction submissions by kind and outcome"),
		metric.WithUnit("{submission}"),
	)
	if err != nil {
		return err
	}

	o.metrics.duration, err = meter.Float64Histogram(
		"marketplace_submission_duration_seconds",
		metric.WithDescription("Time from submission to confirmation"),
		metric.WithUnit("s"),
	)
	return err
}

// CreateProduct lists a new product priced in decimal ether.
func (o *Orchestrator) CreateProduct(ctx context.Context, name, price string) (*Outcome, error) {
	return o.Submit(ctx, domain.TxCreate, domain.TxParams{Name: name, Price: price})
}

// BuyProduct purchases product id, paying price in decimal ether.
func (o *Orchestrator) BuyProduct(ctx context.Context, id uint64, price string) (*Outcome, error) {
	return o.Submit(ctx, domain.TxPurchase, domain.TxParams{ProductID: id, Price: price})
}

// Submit sends a marketplace transaction, waits for confirmation and
// reloads the product list. Failures are surfaced as the session's last
// error and loading always ends cleared.
func (o *Orchestrator) Submit(ctx context.Context, kind domain.TxKind, params domain.TxParams) (outcome *Outcome, err error) {
	s := o.session
	start := time.Now()

	ctx, span := o.tracer.Start(ctx, "marketplace.submit",
		trace.WithAttributes(attribute.String("kind", string(kind))),
	)
	defer func() {
		result := "confirmed"
		if err != nil && outcome == nil {
			result = string(apperror.GetCode(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "submission failed")
		}
		o.metrics.submissions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", string(kind)),
			attribute.String("outcome", result),
		))
		span.End()
	}()

	op, err := s.begin(ctx, opSubmit)
	if err != nil {
		return nil, err
	}
	defer s.finish(op)

	st := s.State()
	binding, err := o.precondition(st)
	if err != nil {
		s.apply(op, func(st *domain.State) { st.LastError = err })
		return nil, err
	}

	req, err := o.request(kind, params, binding)
	if err != nil {
		s.apply(op, func(st *domain.State) { st.LastError = err })
		return nil, err
	}

	pending := domain.NewPendingTransaction(kind, params)
	if !s.apply(op, func(st *domain.State) {
		st.Loading = true
		st.Pending = pending
		st.LastError = nil
	}) {
		return nil, abandoned(nil)
	}

	handle, err := s.gateway.SendTransaction(op.ctx, req)
	if err != nil {
		return nil, o.fail(op, err, nil)
	}
	pending.Hash = handle.Hash
	span.SetAttributes(attribute.String("tx", handle.Hash.Hex()))
	s.apply(op, func(st *domain.State) {
		p := *pending
		st.Pending = &p
	})

	o.logger.Info(ctx, "transaction submitted",
		"kind", string(kind),
		"tx", handle.Hash.Hex(),
		"nonce", handle.Nonce,
	)

	awaitCtx := op.ctx
	if o.config.ConfirmationTimeout > 0 {
		var cancel context.CancelFunc
		awaitCtx, cancel = context.WithTimeout(op.ctx, o.config.ConfirmationTimeout)
		defer cancel()
	}

	receipt, err := s.gateway.AwaitConfirmation(awaitCtx, handle, o.config.Confirmations)
	if err != nil {
		return nil, o.fail(op, err, awaitCtx)
	}
	o.metrics.duration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("kind", string(kind))))

	outcome = &Outcome{Pending: pending, TxHash: handle.Hash}
	if receipt.BlockNumber != nil {
		outcome.Block = receipt.BlockNumber.Uint64()
	}
	event, decodeErr := domain.DecodeProductEvent(binding, receipt.Logs)
	if decodeErr != nil {
		o.logger.Warn(ctx, "undecodable marketplace event", "tx", handle.Hash.Hex(), "error", decodeErr)
	}
	outcome.Event = event

	if !s.apply(op, func(st *domain.State) {
		st.Pending = nil
		if event != nil {
			st.LastEvent = event
		}
	}) {
		return outcome, abandoned(nil)
	}

	o.logger.Info(ctx, "transaction confirmed",
		"kind", string(kind),
		"tx", handle.Hash.Hex(),
		"block", outcome.Block,
	)

	network := binding.NetworkID
	return outcome, s.reload(op, &network)
}

// precondition returns the binding a submission runs against.
func (o *Orchestrator) precondition(st domain.State) (*domain.ContractBinding, error) {
	if !st.Connected() {
		return nil, apperror.New(apperror.CodeNotConnected)
	}
	if st.Binding == nil {
		if st.NetworkID != nil {
			return nil, o.session.locator.Unsupported(*st.NetworkID)
		}
		return nil, apperror.New(apperror.CodeUnsupportedNetwork)
	}
	return st.Binding, nil
}

// request validates params and builds the contract call. Validation runs
// before any wallet prompt.
func (o *Orchestrator) request(kind domain.TxKind, params domain.TxParams, binding *domain.ContractBinding) (walletdomain.TxRequest, error) {
	wei, err := domain.ParseEther(params.Price)
	if err != nil {
		return walletdomain.TxRequest{}, err
	}

	req := walletdomain.TxRequest{To: binding.Address, ABI: binding.ABI}

	switch kind {
	case domain.TxCreate:
		name := strings.TrimSpace(params.Name)
		if name == "" {
			return walletdomain.TxRequest{}, apperror.New(apperror.CodeInvalidInput,
				apperror.WithContext("product name is required"))
		}
		if wei.Sign() == 0 {
			return walletdomain.TxRequest{}, apperror.New(apperror.CodeInvalidAmount,
				apperror.WithContext("price must be greater than zero"))
		}
		req.Method = domain.MethodCreateProduct
		req.Args = []any{name, wei}
		req.GasLimit = o.config.CreateGasLimit

	case domain.TxPurchase:
		if params.ProductID == 0 {
			return walletdomain.TxRequest{}, apperror.New(apperror.CodeInvalidInput,
				apperror.WithContext("product id must be positive"))
		}
		req.Method = domain.MethodPurchaseProduct
		req.Args = []any{new(big.Int).SetUint64(params.ProductID)}
		req.Value = wei
		req.GasLimit = o.config.PurchaseGasLimit

	default:
		return walletdomain.TxRequest{}, apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext("unknown transaction kind "+string(kind)))
	}

	return req, nil
}

// fail classifies err, surfaces it and clears the pending submission.
// awaitCtx is set once the transaction is waiting for confirmation.
func (o *Orchestrator) fail(op *operation, err error, awaitCtx context.Context) error {
	s := o.session

	var mapped error
	switch {
	case s.stale(op):
		return abandoned(err)
	case apperror.HasCode(err, apperror.CodeUserRejected):
		mapped = err
	case awaitCtx != nil && errors.Is(awaitCtx.Err(), context.DeadlineExceeded) && op.ctx.Err() == nil:
		mapped = apperror.New(apperror.CodeConfirmationTimeout,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("no confirmation within %s", o.config.ConfirmationTimeout)))
	default:
		mapped = apperror.New(apperror.CodeTransactionFailed,
			apperror.WithCause(err),
			apperror.WithContext(failureReason(err)))
	}

	if !s.apply(op, func(st *domain.State) {
		st.Loading = false
		st.Pending = nil
		st.LastError = mapped
	}) {
		return abandoned(err)
	}

	var appErr *apperror.AppError
	if errors.As(mapped, &appErr) {
		if appErr.TraceID == "" {
			appErr.WithTraceID(logger.TraceIDFromContext(op.ctx))
		}
		o.logger.Warn(op.ctx, "transaction failed", "error", appErr.ToLog())
	} else {
		o.logger.Warn(op.ctx, "transaction failed", "error", mapped)
	}
	return mapped
}

// failureReason extracts the revert reason when the chain supplied one.
func failureReason(err error) string {
	var appErr *apperror.AppError
	for e := err; errors.As(e, &appErr); e = appErr.Unwrap() {
		if appErr.Code == apperror.CodeTransactionReverted {
			if appErr.Context != "" {
				return appErr.Context
			}
			return "reverted"
		}
	}
	return ""
}
