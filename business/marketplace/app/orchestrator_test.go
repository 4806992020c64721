package app

import (
	"bytes"
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dapp-marketplace/business/marketplace/domain"
	walletdomain "github.com/fd1az/dapp-marketplace/business/wallet/domain"
	"github.com/fd1az/dapp-marketplace/internal/apperror"
	"github.com/fd1az/dapp-marketplace/internal/logger"
)

func connected(t *testing.T, network walletdomain.NetworkID) *fixture {
	t.Helper()
	f := newFixture(t, network)
	require.NoError(t, f.session.Connect(context.Background()))
	return f
}

func TestOrchestrator_PenAndBook(t *testing.T) {
	f := connected(t, 4)
	ctx := context.Background()

	var loading []bool
	f.session.Subscribe(func(st domain.State) { loading = append(loading, st.Loading) })

	out, err := f.orch.CreateProduct(ctx, "Pen", "1.0")
	require.NoError(t, err)

	req := f.gateway.lastSent()
	require.Equal(t, domain.MethodCreateProduct, req.Method)
	require.Equal(t, []any{"Pen", ether(1)}, req.Args)
	require.Nil(t, req.Value)
	require.Equal(t, rinkebyMarket, req.To)

	require.NotNil(t, out.Event)
	require.Equal(t, domain.EventProductCreated, out.Event.Name)
	require.Equal(t, uint64(1), out.Event.Product.ID)
	require.Equal(t, uint64(10), out.Block)

	_, err = f.orch.CreateProduct(ctx, "Book", "2.0")
	require.NoError(t, err)

	st := f.session.State()
	require.Len(t, st.Products, 2)
	require.Equal(t, "Pen", st.Products[0].Name)
	require.Equal(t, "1.0", st.Products[0].Price)
	require.Equal(t, "Book", st.Products[1].Name)
	require.Equal(t, "2.0", st.Products[1].Price)
	require.False(t, st.Products[1].Purchased)

	_, err = f.orch.BuyProduct(ctx, 2, st.Products[1].Price)
	require.NoError(t, err)

	req = f.gateway.lastSent()
	require.Equal(t, domain.MethodPurchaseProduct, req.Method)
	require.Equal(t, []any{big.NewInt(2)}, req.Args)
	require.Equal(t, ether(2), req.Value)
	require.Equal(t, uint64(50000), req.GasLimit)

	st = f.session.State()
	require.True(t, st.Products[1].Purchased)
	require.Equal(t, alice, st.Products[1].Owner)
	require.False(t, st.Products[0].Purchased)
	require.Equal(t, domain.EventProductPurchased, st.LastEvent.Name)
	require.Nil(t, st.Pending)
	require.False(t, st.Loading)
	require.NoError(t, st.LastError)

	require.NotEmpty(t, loading)
	require.False(t, loading[len(loading)-1])
	require.Contains(t, loading, true)
}

func TestOrchestrator_PurchaseRevert(t *testing.T) {
	f := newFixture(t, 4)
	f.chain.add("Pen", ether(1), bob)
	f.chain.purchase(1, bob)
	ctx := context.Background()
	require.NoError(t, f.session.Connect(ctx))
	reads := f.repo.calls.Load()

	_, err := f.orch.BuyProduct(ctx, 1, "1.0")
	require.True(t, apperror.HasCode(err, apperror.CodeTransactionFailed), "got %v", err)
	require.True(t, apperror.HasCode(err, apperror.CodeTransactionReverted))

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "execution reverted", appErr.Context)

	st := f.session.State()
	require.False(t, st.Loading)
	require.Nil(t, st.Pending)
	require.Equal(t, err, st.LastError)
	require.True(t, st.Products[0].Purchased)
	require.Equal(t, reads, f.repo.calls.Load(), "a failed submission does not reload")
}

func TestOrchestrator_FailureLogCarriesTraceID(t *testing.T) {
	f := newFixture(t, 4)
	f.chain.add("Pen", ether(1), bob)
	f.chain.purchase(1, bob)

	var buf bytes.Buffer
	var err error
	f.orch, err = NewOrchestrator(OrchestratorConfig{PurchaseGasLimit: 50000}, f.session,
		logger.New(&buf, logger.LevelWarn, "test", nil))
	require.NoError(t, err)

	traceID := trace.TraceID{0x0a, 0x0b, 0x0c, 0x0d, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     trace.SpanID{1, 2, 3, 4, 5, 6, 7, 8},
		TraceFlags: trace.FlagsSampled,
	}))
	require.NoError(t, f.session.Connect(ctx))

	_, err = f.orch.BuyProduct(ctx, 1, "1.0")
	require.True(t, apperror.HasCode(err, apperror.CodeTransactionFailed), "got %v", err)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, traceID.String(), appErr.TraceID)

	out := buf.String()
	require.Contains(t, out, `"transaction failed"`)
	require.Contains(t, out, `"code":"TRANSACTION_FAILED"`)
	require.Contains(t, out, `"traceId":"`+traceID.String()+`"`)
	require.Contains(t, out, `"stack":`)
}

func TestOrchestrator_SignRejected(t *testing.T) {
	f := connected(t, 4)
	f.gateway.sendErr = apperror.New(apperror.CodeUserRejected)

	_, err := f.orch.CreateProduct(context.Background(), "Pen", "1.0")
	require.True(t, apperror.HasCode(err, apperror.CodeUserRejected))
	require.False(t, apperror.HasCode(err, apperror.CodeTransactionFailed))

	st := f.session.State()
	require.True(t, st.Connected())
	require.False(t, st.Loading)
	require.Nil(t, st.Pending)
	require.True(t, apperror.HasCode(st.LastError, apperror.CodeUserRejected))
}

func TestOrchestrator_ConfirmationTimeout(t *testing.T) {
	f := newFixture(t, 4)
	f.gateway.await = func(ctx context.Context, _ walletdomain.TxHandle) (*types.Receipt, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	var err error
	f.orch, err = NewOrchestrator(OrchestratorConfig{
		PurchaseGasLimit:    50000,
		ConfirmationTimeout: 20 * time.Millisecond,
	}, f.session, testLogger())
	require.NoError(t, err)
	require.NoError(t, f.session.Connect(context.Background()))

	_, err = f.orch.CreateProduct(context.Background(), "Pen", "1.0")
	require.True(t, apperror.HasCode(err, apperror.CodeConfirmationTimeout), "got %v", err)
	require.False(t, apperror.HasCode(err, apperror.CodeTransactionReverted))
	require.False(t, f.session.State().Loading)
}

func TestOrchestrator_ValidatesBeforeSending(t *testing.T) {
	f := connected(t, 4)

	tests := []struct {
		name     string
		kind     domain.TxKind
		params   domain.TxParams
		wantCode apperror.Code
	}{
		{name: "empty_name", kind: domain.TxCreate, params: domain.TxParams{Name: "  ", Price: "1"}, wantCode: apperror.CodeInvalidInput},
		{name: "zero_price", kind: domain.TxCreate, params: domain.TxParams{Name: "Pen", Price: "0"}, wantCode: apperror.CodeInvalidAmount},
		{name: "bad_price", kind: domain.TxCreate, params: domain.TxParams{Name: "Pen", Price: "one"}, wantCode: apperror.CodeInvalidAmount},
		{name: "negative_price", kind: domain.TxPurchase, params: domain.TxParams{ProductID: 1, Price: "-1"}, wantCode: apperror.CodeInvalidAmount},
		{name: "zero_id", kind: domain.TxPurchase, params: domain.TxParams{Price: "1"}, wantCode: apperror.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orch.Submit(context.Background(), tt.kind, tt.params)
			require.True(t, apperror.HasCode(err, tt.wantCode), "got %v", err)
			require.True(t, apperror.HasCode(f.session.State().LastError, tt.wantCode))
		})
	}
	require.Zero(t, f.gateway.sentCount())
}

func TestOrchestrator_Preconditions(t *testing.T) {
	f := newFixture(t, 1)

	_, err := f.orch.CreateProduct(context.Background(), "Pen", "1.0")
	require.True(t, apperror.HasCode(err, apperror.CodeNotConnected))

	err = f.session.Connect(context.Background())
	require.True(t, apperror.HasCode(err, apperror.CodeUnsupportedNetwork))

	_, err = f.orch.CreateProduct(context.Background(), "Pen", "1.0")
	require.True(t, apperror.HasCode(err, apperror.CodeUnsupportedNetwork))
	require.Zero(t, f.gateway.sentCount())
}

func TestOrchestrator_CreateUsesConfiguredGas(t *testing.T) {
	f := newFixture(t, 4)
	var err error
	f.orch, err = NewOrchestrator(OrchestratorConfig{PurchaseGasLimit: 50000, CreateGasLimit: 200000}, f.session, testLogger())
	require.NoError(t, err)
	require.NoError(t, f.session.Connect(context.Background()))

	_, err = f.orch.CreateProduct(context.Background(), " Lamp ", "0.5")
	require.NoError(t, err)

	req := f.gateway.lastSent()
	require.Equal(t, uint64(200000), req.GasLimit)
	require.Equal(t, "Lamp", req.Args[0])
	require.Equal(t, "0.5", f.session.State().Products[0].Price)
}
