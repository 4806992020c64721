package ethereum

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dapp-marketplace/business/wallet/app"
	"github.com/fd1az/dapp-marketplace/business/wallet/domain"
	"github.com/fd1az/dapp-marketplace/internal/apperror"
)

// SendTransaction packs, prices, approves, signs and broadcasts req.
func (g *Gateway) SendTransaction(ctx context.Context, req domain.TxRequest) (domain.TxHandle, error) {
	ctx, span := g.tracer.Start(ctx, "wallet.send_transaction",
		trace.WithAttributes(
			attribute.String("to", req.To.Hex()),
			attribute.String("method", req.Method),
			attribute.String("value", req.ValueOrZero().String()),
		),
	)
	defer span.End()

	fail := func(err error, status string) (domain.TxHandle, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		return domain.TxHandle{}, err
	}

	from, ok := g.Account()
	if !ok || g.signer == nil {
		return fail(apperror.New(apperror.CodeNotConnected), "not connected")
	}

	data, err := req.CallData()
	if err != nil {
		return fail(apperror.New(apperror.CodeInvalidInput,
			apperror.WithCause(err),
			apperror.WithContext(req.Method)), "pack failed")
	}

	client, _, err := g.currentClient()
	if err != nil {
		return fail(err, "no backend")
	}

	chainID, err := g.chainID(ctx)
	if err != nil {
		return fail(apperror.Wrap(err, apperror.CodeEthereumRPCError, "eth_chainId"), "chain id failed")
	}

	price, err := g.oracle.GasPrice(ctx)
	if err != nil {
		return fail(err, "gas price failed")
	}

	value := req.ValueOrZero()
	gasLimit := req.GasLimit
	if gasLimit == 0 {
		gasLimit, err = g.oracle.EstimateGas(ctx, ethereum.CallMsg{
			From:  from,
			To:    &req.To,
			Value: value,
			Data:  data,
		})
		if err != nil {
			return fail(err, "estimate failed")
		}
	}
	span.SetAttributes(attribute.Int64("gas_limit", int64(gasLimit)))

	if err := g.approve(ctx, app.ApprovalRequest{
		Kind:      app.ApprovalSign,
		Account:   from,
		NetworkID: domain.NetworkIDFromBig(chainID),
		To:        req.To,
		Method:    req.Method,
		Value:     value,
		GasLimit:  gasLimit,
		GasPrice:  price.Wei,
	}); err != nil {
		return fail(err, "not approved")
	}

	g.nonceMu.Lock()
	defer g.nonceMu.Unlock()

	nonceCtx, cancel := g.withTimeout(ctx)
	nonce, err := client.PendingNonceAt(nonceCtx, from)
	cancel()
	if err != nil {
		return fail(apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithCause(err),
			apperror.WithContext("eth_getTransactionCount")), "nonce failed")
	}

	to := req.To
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: price.Wei,
		Gas:      gasLimit,
		To:       &to,
		Value:    value,
		Data:     data,
	})

	signed, err := g.signer.Sign(tx, chainID)
	if err != nil {
		return fail(apperror.New(apperror.CodeInternalError,
			apperror.WithCause(err),
			apperror.WithContext("sign transaction")), "sign failed")
	}

	sendCtx, cancel := g.withTimeout(ctx)
	err = client.SendTransaction(sendCtx, signed)
	cancel()
	if err != nil {
		return fail(apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithCause(err),
			apperror.WithContext(revertReason(err))), "send failed")
	}

	g.metrics.txSubmitted.Add(ctx, 1)

	handle := domain.TxHandle{
		Hash:        signed.Hash(),
		From:        from,
		To:          to,
		Nonce:       nonce,
		Data:        data,
		Value:       value,
		Gas:         gasLimit,
		GasPrice:    price.Wei,
		SubmittedAt: time.Now(),
	}

	span.SetAttributes(attribute.String("tx_hash", handle.Hash.Hex()))
	span.SetStatus(codes.Ok, "sent")
	g.logger.Info(ctx, "transaction sent",
		"hash", handle.Hash.Hex(),
		"method", req.Method,
		"nonce", nonce,
		"gas", gasLimit,
	)

	return handle, nil
}

// AwaitConfirmation polls for the receipt, then for the chain head to
// reach the requested depth. It has no timeout of its own; ctx bounds it.
func (g *Gateway) AwaitConfirmation(ctx context.Context, tx domain.TxHandle, confirmations uint64) (*types.Receipt, error) {
	ctx, span := g.tracer.Start(ctx, "wallet.await_confirmation",
		trace.WithAttributes(
			attribute.String("tx_hash", tx.Hash.Hex()),
			attribute.Int64("confirmations", int64(confirmations)),
		),
	)
	defer span.End()

	if confirmations == 0 {
		confirmations = 1
	}

	ticker := time.NewTicker(g.config.ReceiptPollInterval)
	defer ticker.Stop()

	var receipt *types.Receipt
	for {
		client, _, err := g.currentClient()
		if err == nil {
			if receipt == nil {
				receipt, err = g.receipt(ctx, client, tx)
				if receipt != nil && receipt.Status == types.ReceiptStatusFailed {
					return receipt, g.reverted(ctx, span, client, tx, receipt)
				}
			}
			if receipt != nil && err == nil {
				var head uint64
				head, err = g.blockNumber(ctx, client)
				if err == nil && head+1 >= minedAt(receipt)+confirmations {
					g.metrics.txConfirmed.Add(ctx, 1)
					span.SetAttributes(attribute.Int64("block", int64(minedAt(receipt))))
					span.SetStatus(codes.Ok, "confirmed")
					g.logger.Info(ctx, "transaction confirmed",
						"hash", tx.Hash.Hex(),
						"block", minedAt(receipt),
					)
					return receipt, nil
				}
			}
		}
		if err != nil && ctx.Err() == nil {
			g.logger.Debug(ctx, "receipt poll failed", "hash", tx.Hash.Hex(), "error", err)
		}

		select {
		case <-ctx.Done():
			span.RecordError(ctx.Err())
			span.SetStatus(codes.Error, "abandoned")
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// receipt returns nil, nil while the transaction is pending.
func (g *Gateway) receipt(ctx context.Context, client backend, tx domain.TxHandle) (*types.Receipt, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	r, err := client.TransactionReceipt(ctx, tx.Hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	return r, err
}

func (g *Gateway) blockNumber(ctx context.Context, client backend) (uint64, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()
	return client.BlockNumber(ctx)
}

// reverted replays the call against the state the transaction executed on,
// the parent of its block, to recover the reason.
func (g *Gateway) reverted(ctx context.Context, span trace.Span, client backend, tx domain.TxHandle, receipt *types.Receipt) error {
	g.metrics.txReverted.Add(ctx, 1)

	reason := "transaction reverted"
	callCtx, cancel := g.withTimeout(ctx)
	_, callErr := client.CallContract(callCtx, ethereum.CallMsg{
		From:     tx.From,
		To:       &tx.To,
		Gas:      tx.Gas,
		GasPrice: tx.GasPrice,
		Value:    tx.Value,
		Data:     tx.Data,
	}, replayBlock(receipt))
	cancel()
	if callErr != nil {
		reason = revertReason(callErr)
	}

	err := apperror.New(apperror.CodeTransactionReverted, apperror.WithContext(reason))
	span.RecordError(err)
	span.SetStatus(codes.Error, "reverted")
	g.logger.Warn(ctx, "transaction reverted", "hash", tx.Hash.Hex(), "reason", reason)

	return err
}

// replayBlock returns the parent of the mined block. nil means latest.
func replayBlock(r *types.Receipt) *big.Int {
	if r.BlockNumber == nil || r.BlockNumber.Sign() <= 0 {
		return nil
	}
	return new(big.Int).Sub(r.BlockNumber, big.NewInt(1))
}

func minedAt(r *types.Receipt) uint64 {
	if r.BlockNumber == nil {
		return 0
	}
	return r.BlockNumber.Uint64()
}
