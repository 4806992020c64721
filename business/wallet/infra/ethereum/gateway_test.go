package ethereum

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/dapp-marketplace/business/wallet/app"
	"github.com/fd1az/dapp-marketplace/business/wallet/domain"
	"github.com/fd1az/dapp-marketplace/internal/apperror"
	"github.com/fd1az/dapp-marketplace/internal/config"
)

const purchaseABI = `[{"inputs":[{"name":"_id","type":"uint256"}],"name":"purchaseProduct","outputs":[],"stateMutability":"payable","type":"function"}]`

type gatewayFixture struct {
	gw       *Gateway
	backends map[string]*fakeBackend
	prompts  []app.ApprovalRequest
	answer   bool
}

func newGatewayFixture(t *testing.T, withSigner bool) *gatewayFixture {
	t.Helper()

	f := &gatewayFixture{
		backends: map[string]*fakeBackend{
			"http://rinkeby": newFakeBackend(4),
			"http://mainnet": newFakeBackend(1),
		},
		answer: true,
	}

	dial := func(_ context.Context, url string) (backend, error) {
		b, ok := f.backends[url]
		if !ok {
			return nil, errors.New("no such host")
		}
		return b, nil
	}

	var signer *Signer
	if withSigner {
		var err error
		signer, err = NewSignerFromHex(testKeyHex)
		require.NoError(t, err)
	}

	approver := app.ApproverFunc(func(_ context.Context, req app.ApprovalRequest) (bool, error) {
		f.prompts = append(f.prompts, req)
		return f.answer, nil
	})

	gw, err := NewGateway(GatewayConfig{
		Endpoints: []config.Endpoint{
			{Name: "rinkeby", HTTPURL: "http://rinkeby"},
			{Name: "mainnet", HTTPURL: "http://mainnet"},
		},
		NetworkPollInterval: 5 * time.Millisecond,
		ReceiptPollInterval: time.Millisecond,
		RequestTimeout:      time.Second,
	}, testLogger(), dial, signer, approver, DefaultGasOracleConfig())
	require.NoError(t, err)
	require.NoError(t, gw.Dial(context.Background()))
	t.Cleanup(func() { gw.Close() })

	f.gw = gw
	return f
}

func purchaseRequest(t *testing.T, gasLimit uint64) domain.TxRequest {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(purchaseABI))
	require.NoError(t, err)
	return domain.TxRequest{
		To:       common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		ABI:      &parsed,
		Method:   "purchaseProduct",
		Args:     []any{big.NewInt(1)},
		Value:    big.NewInt(1e18),
		GasLimit: gasLimit,
	}
}

func TestGateway_Connect(t *testing.T) {
	f := newGatewayFixture(t, true)
	ctx := context.Background()

	_, ok := f.gw.Account()
	require.False(t, ok)

	f.answer = false
	_, err := f.gw.Connect(ctx)
	require.True(t, apperror.HasCode(err, apperror.CodeUserRejected), "got %v", err)
	_, ok = f.gw.Account()
	require.False(t, ok)

	f.answer = true
	account, err := f.gw.Connect(ctx)
	require.NoError(t, err)
	require.Equal(t, testAccount, account)

	require.Len(t, f.prompts, 2)
	require.Equal(t, app.ApprovalConnect, f.prompts[1].Kind)
	require.Equal(t, domain.NetworkID(4), f.prompts[1].NetworkID)

	require.NoError(t, f.gw.Disconnect(ctx))
	_, ok = f.gw.Account()
	require.False(t, ok)
}

func TestGateway_ConnectWithoutSigner(t *testing.T) {
	f := newGatewayFixture(t, false)

	_, err := f.gw.Connect(context.Background())
	require.True(t, apperror.HasCode(err, apperror.CodeWalletUnavailable), "got %v", err)
}

func TestGateway_SendTransaction(t *testing.T) {
	f := newGatewayFixture(t, true)
	ctx := context.Background()
	b := f.backends["http://rinkeby"]

	_, err := f.gw.SendTransaction(ctx, purchaseRequest(t, 50000))
	require.True(t, apperror.HasCode(err, apperror.CodeNotConnected), "got %v", err)

	_, err = f.gw.Connect(ctx)
	require.NoError(t, err)

	handle, err := f.gw.SendTransaction(ctx, purchaseRequest(t, 50000))
	require.NoError(t, err)

	tx := b.lastSent()
	require.NotNil(t, tx)
	require.Equal(t, handle.Hash, tx.Hash())
	require.Equal(t, uint64(50000), tx.Gas())
	require.Equal(t, big.NewInt(1e18), tx.Value())
	require.Equal(t, big.NewInt(4), tx.ChainId())
	require.Equal(t, 0, b.estimates)

	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(4)), tx)
	require.NoError(t, err)
	require.Equal(t, testAccount, from)

	sign := f.prompts[len(f.prompts)-1]
	require.Equal(t, app.ApprovalSign, sign.Kind)
	require.Equal(t, "purchaseProduct", sign.Method)
	require.Equal(t, uint64(50000), sign.GasLimit)

	// Zero gas limit estimates with a 10% margin; nonces advance.
	handle2, err := f.gw.SendTransaction(ctx, purchaseRequest(t, 0))
	require.NoError(t, err)
	require.Equal(t, uint64(99000), handle2.Gas)
	require.Equal(t, uint64(1), handle2.Nonce)
	require.Equal(t, 1, b.estimates)
}

func TestGateway_SendTransactionDeclined(t *testing.T) {
	f := newGatewayFixture(t, true)
	ctx := context.Background()

	_, err := f.gw.Connect(ctx)
	require.NoError(t, err)

	f.answer = false
	_, err = f.gw.SendTransaction(ctx, purchaseRequest(t, 50000))
	require.True(t, apperror.HasCode(err, apperror.CodeUserRejected), "got %v", err)
	require.Nil(t, f.backends["http://rinkeby"].lastSent())
}

func TestGateway_AwaitConfirmation(t *testing.T) {
	f := newGatewayFixture(t, true)
	ctx := context.Background()
	b := f.backends["http://rinkeby"]

	_, err := f.gw.Connect(ctx)
	require.NoError(t, err)
	handle, err := f.gw.SendTransaction(ctx, purchaseRequest(t, 50000))
	require.NoError(t, err)

	go func() {
		time.Sleep(10 * time.Millisecond)
		b.mine(handle.Hash, types.ReceiptStatusSuccessful)
	}()

	receipt, err := f.gw.AwaitConfirmation(ctx, handle, 1)
	require.NoError(t, err)
	require.Equal(t, handle.Hash, receipt.TxHash)
}

func TestGateway_AwaitConfirmationDepth(t *testing.T) {
	f := newGatewayFixture(t, true)
	ctx := context.Background()
	b := f.backends["http://rinkeby"]

	_, err := f.gw.Connect(ctx)
	require.NoError(t, err)
	handle, err := f.gw.SendTransaction(ctx, purchaseRequest(t, 50000))
	require.NoError(t, err)
	b.mine(handle.Hash, types.ReceiptStatusSuccessful)

	shortCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	_, err = f.gw.AwaitConfirmation(shortCtx, handle, 3)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	b.advance(2)
	_, err = f.gw.AwaitConfirmation(ctx, handle, 3)
	require.NoError(t, err)
}

func TestGateway_AwaitConfirmationReverted(t *testing.T) {
	f := newGatewayFixture(t, true)
	ctx := context.Background()
	b := f.backends["http://rinkeby"]
	b.callErr = errors.New("execution reverted: Product already purchased")

	_, err := f.gw.Connect(ctx)
	require.NoError(t, err)
	handle, err := f.gw.SendTransaction(ctx, purchaseRequest(t, 50000))
	require.NoError(t, err)
	b.mine(handle.Hash, types.ReceiptStatusFailed)

	receipt, err := f.gw.AwaitConfirmation(ctx, handle, 1)
	require.NotNil(t, receipt)
	require.True(t, apperror.HasCode(err, apperror.CodeTransactionReverted), "got %v", err)

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, "Product already purchased", appErr.Context)

	b.mu.Lock()
	replayed := b.callBlocks[len(b.callBlocks)-1]
	b.mu.Unlock()
	require.Equal(t, new(big.Int).Sub(receipt.BlockNumber, big.NewInt(1)), replayed,
		"the reason is replayed against the parent block")
}

func TestReplayBlock(t *testing.T) {
	tests := []struct {
		name  string
		block *big.Int
		want  *big.Int
	}{
		{name: "pending", block: nil, want: nil},
		{name: "genesis", block: big.NewInt(0), want: nil},
		{name: "mined", block: big.NewInt(101), want: big.NewInt(100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, replayBlock(&types.Receipt{BlockNumber: tt.block}))
		})
	}
}

func TestGateway_SwitchEndpoint(t *testing.T) {
	f := newGatewayFixture(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.Equal(t, "rinkeby", f.gw.ActiveEndpoint())
	require.Equal(t, []string{"rinkeby", "mainnet"}, f.gw.Endpoints())

	ch, err := f.gw.SubscribeNetwork(ctx)
	require.NoError(t, err)
	first := recv(t, ch)
	require.Equal(t, domain.NetworkID(4), first.Current)
	require.Nil(t, first.Previous)

	next, err := f.gw.NextEndpoint(ctx)
	require.NoError(t, err)
	require.Equal(t, "mainnet", next)
	require.True(t, f.backends["http://rinkeby"].closed)

	change := recv(t, ch)
	require.True(t, change.IsTransition())
	require.Equal(t, domain.NetworkID(1), change.Current)

	id, err := f.gw.NetworkID(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.NetworkID(1), id)

	err = f.gw.SwitchEndpoint(ctx, "goerli")
	require.True(t, apperror.HasCode(err, apperror.CodeUnknownEndpoint), "got %v", err)
}

func TestGateway_Call(t *testing.T) {
	f := newGatewayFixture(t, false)
	b := f.backends["http://rinkeby"]
	b.callResult = []byte{0x01}

	out, err := f.gw.Call(context.Background(), common.HexToAddress("0xaa"), []byte{0x12})
	require.NoError(t, err)
	require.Equal(t, []byte{0x01}, out)

	b.callErr = errors.New("boom")
	_, err = f.gw.Call(context.Background(), common.HexToAddress("0xaa"), nil)
	require.True(t, apperror.HasCode(err, apperror.CodeContractCallFailed), "got %v", err)
}
