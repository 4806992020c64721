package ethereum

import (
	"context"
	"math/big"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dapp-marketplace/business/wallet/domain"
	"github.com/fd1az/dapp-marketplace/internal/logger"
)

// ChainIDSource reads the chain id of whatever endpoint is active.
type ChainIDSource func(ctx context.Context) (*big.Int, error)

// NetworkWatcher turns chain-id polling into a NetworkChange stream.
type NetworkWatcher struct {
	interval time.Duration
	source   ChainIDSource
	logger   logger.LoggerInterface

	tracer      trace.Tracer
	polls       metric.Int64Counter
	transitions metric.Int64Counter
}

// NewNetworkWatcher creates a watcher polling source every interval.
func NewNetworkWatcher(interval time.Duration, source ChainIDSource, log logger.LoggerInterface) (*NetworkWatcher, error) {
	w := &NetworkWatcher{
		interval: interval,
		source:   source,
		logger:   log,
		tracer:   otel.Tracer(tracerName),
	}

	meter := otel.Meter(meterName)
	var err error
	w.polls, err = meter.Int64Counter(
		"wallet_network_polls_total",
		metric.WithDescription("Chain id polls by outcome"),
		metric.WithUnit("{poll}"),
	)
	if err != nil {
		return nil, err
	}
	w.transitions, err = meter.Int64Counter(
		"wallet_network_transitions_total",
		metric.WithDescription("Observed network transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	return w, nil
}

// Watch polls until ctx is done. The first successful poll is reported
// with Previous == nil, later polls only when the id changes. poke
// triggers an immediate poll; it may be nil.
func (w *NetworkWatcher) Watch(ctx context.Context, poke <-chan struct{}) <-chan domain.NetworkChange {
	out := make(chan domain.NetworkChange, 1)

	go func() {
		defer close(out)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		var last *domain.NetworkID
		for {
			if change, ok := w.poll(ctx, last); ok {
				current := change.Current
				last = &current
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			case <-poke:
			}
		}
	}()

	return out
}

func (w *NetworkWatcher) poll(ctx context.Context, last *domain.NetworkID) (domain.NetworkChange, bool) {
	ctx, span := w.tracer.Start(ctx, "wallet.network.poll")
	defer span.End()

	id, err := w.source(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Warn(ctx, "chain id poll failed", "error", err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "poll failed")
		w.polls.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", false)))
		return domain.NetworkChange{}, false
	}
	w.polls.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", true)))

	current := domain.NetworkIDFromBig(id)
	span.SetAttributes(attribute.Int64("chain_id", int64(current)))

	if last != nil && *last == current {
		return domain.NetworkChange{}, false
	}

	if last != nil {
		w.transitions.Add(ctx, 1)
		w.logger.Info(ctx, "network changed", "from", last.String(), "to", current.String())
	}

	return domain.NetworkChange{Current: current, Previous: last}, true
}
