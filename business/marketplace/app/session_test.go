package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fd1az/dapp-marketplace/business/marketplace/domain"
	walletdomain "github.com/fd1az/dapp-marketplace/business/wallet/domain"
	"github.com/fd1az/dapp-marketplace/internal/apperror"
)

func TestSession_ConnectRinkebyThenMainnet(t *testing.T) {
	f := newFixture(t, 4)
	f.chain.add("Pen", ether(1), bob)
	f.run(t)
	ctx := context.Background()

	require.NoError(t, f.session.Connect(ctx))

	st := f.session.State()
	require.True(t, st.Connected())
	require.Equal(t, alice, st.Connection.Account)
	require.NotNil(t, st.Binding)
	require.Equal(t, rinkebyMarket, st.Binding.Address)
	require.Equal(t, "Dapp Marketplace", st.ContractName)
	require.Len(t, st.Products, 1)
	require.Equal(t, "1.0", st.Products[0].Price)
	require.False(t, st.Loading)
	require.NoError(t, st.LastError)

	f.gateway.switchTo(1)

	st = f.eventually(t, func(st domain.State) bool {
		return st.NetworkID != nil && *st.NetworkID == 1 && !st.Loading && st.LastError != nil
	}, "mainnet reload did not settle")

	require.True(t, st.Connected(), "an unsupported network keeps the wallet connected")
	require.Nil(t, st.Binding)
	require.Empty(t, st.Products)
	require.True(t, apperror.HasCode(st.LastError, apperror.CodeUnsupportedNetwork))

	f.gateway.switchTo(4)

	st = f.eventually(t, func(st domain.State) bool {
		return st.Binding != nil && !st.Loading
	}, "rinkeby reload did not settle")
	require.Equal(t, walletdomain.NetworkID(4), st.Binding.NetworkID)
	require.Len(t, st.Products, 1)
	require.NoError(t, st.LastError)
}

func TestSession_ConnectRejected(t *testing.T) {
	f := newFixture(t, 4)
	f.chain.add("Pen", ether(1), bob)
	f.gateway.connectErr = apperror.New(apperror.CodeUserRejected)

	var statuses []walletdomain.ConnectionState
	f.session.Subscribe(func(st domain.State) { statuses = append(statuses, st.Connection.Status) })

	err := f.session.Connect(context.Background())
	require.True(t, apperror.HasCode(err, apperror.CodeUserRejected))

	st := f.session.State()
	require.Equal(t, walletdomain.StateDisconnected, st.Connection.Status)
	require.Nil(t, st.Binding)
	require.Empty(t, st.Products)
	require.False(t, st.Loading)
	require.True(t, apperror.HasCode(st.LastError, apperror.CodeUserRejected))
	require.Zero(t, f.repo.calls.Load(), "a rejected connect must not reload")
	require.Equal(t, []walletdomain.ConnectionState{walletdomain.StateConnecting, walletdomain.StateDisconnected}, statuses)
}

func TestSession_OneReloadPerTransition(t *testing.T) {
	f := newFixture(t, 4)
	f.run(t)
	require.NoError(t, f.session.Connect(context.Background()))
	require.Equal(t, int32(1), f.repo.calls.Load())

	// First observation of a stream is not a transition.
	f.gateway.changes <- walletdomain.NetworkChange{Current: 4}
	// Nor is observing the same network again.
	same := walletdomain.NetworkID(4)
	f.gateway.changes <- walletdomain.NetworkChange{Current: 4, Previous: &same}

	f.gateway.switchTo(3)
	f.eventually(t, func(st domain.State) bool {
		return st.NetworkID != nil && *st.NetworkID == 3 && !st.Loading
	}, "transition reload did not settle")

	f.gateway.switchTo(4)
	f.eventually(t, func(st domain.State) bool {
		return st.Binding != nil && !st.Loading
	}, "second transition reload did not settle")

	// Network 3 is unsupported and never lists, so only the connect and
	// the return to Rinkeby read products.
	require.Equal(t, int32(2), f.repo.calls.Load())
}

func TestSession_TransitionWhileDisconnectedOnlyRecordsNetwork(t *testing.T) {
	f := newFixture(t, 4)
	f.run(t)

	f.gateway.switchTo(1)
	st := f.eventually(t, func(st domain.State) bool {
		return st.NetworkID != nil && *st.NetworkID == 1
	}, "network not recorded")

	require.False(t, st.Connected())
	require.Nil(t, st.LastError)
	require.Zero(t, f.repo.calls.Load())
}

func TestSession_ReloadIdempotent(t *testing.T) {
	f := newFixture(t, 4)
	f.chain.add("Pen", ether(1), bob)
	f.chain.add("Book", ether(2), bob)
	ctx := context.Background()

	require.NoError(t, f.session.Connect(ctx))
	first := f.session.State().Products

	require.NoError(t, f.session.Reload(ctx))
	require.NoError(t, f.session.Reload(ctx))
	require.Equal(t, first, f.session.State().Products)
}

func TestSession_ReloadRequiresConnection(t *testing.T) {
	f := newFixture(t, 4)
	err := f.session.Reload(context.Background())
	require.True(t, apperror.HasCode(err, apperror.CodeNotConnected))
	require.True(t, apperror.HasCode(f.session.State().LastError, apperror.CodeNotConnected))
}

func TestSession_ReadFailureKeepsLoadingClear(t *testing.T) {
	f := newFixture(t, 4)
	f.chain.add("Pen", ether(1), bob)
	ctx := context.Background()
	require.NoError(t, f.session.Connect(ctx))

	f.repo.mu.Lock()
	f.repo.err = errors.New("header not found")
	f.repo.mu.Unlock()

	err := f.session.Reload(ctx)
	require.True(t, apperror.HasCode(err, apperror.CodeRepositoryReadError))

	st := f.session.State()
	require.False(t, st.Loading)
	require.True(t, apperror.HasCode(st.LastError, apperror.CodeRepositoryReadError))
	require.Len(t, st.Products, 1, "products of the same binding survive a failed reload")
}

func TestSession_BusyRejectsSecondIntent(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()
	release := f.repo.block()

	done := make(chan error, 1)
	go func() { done <- f.session.Connect(ctx) }()
	f.repo.waitEntered(t)

	err := f.session.Reload(ctx)
	require.True(t, apperror.HasCode(err, apperror.CodeSessionBusy))

	_, err = f.orch.CreateProduct(ctx, "Pen", "1.0")
	require.True(t, apperror.HasCode(err, apperror.CodeSessionBusy))
	require.Zero(t, f.gateway.sentCount())

	release()
	require.NoError(t, <-done)
	st := f.session.State()
	require.True(t, st.Connected())
	require.False(t, st.Loading)
}

func TestSession_DisconnectAbandonsReload(t *testing.T) {
	f := newFixture(t, 4)
	f.chain.add("Pen", ether(1), bob)
	ctx := context.Background()
	release := f.repo.block()
	defer release()

	done := make(chan error, 1)
	go func() { done <- f.session.Connect(ctx) }()
	f.repo.waitEntered(t)

	require.NoError(t, f.session.Disconnect(ctx))
	require.NoError(t, <-done)

	st := f.session.State()
	require.Equal(t, walletdomain.StateDisconnected, st.Connection.Status)
	require.Nil(t, st.Binding)
	require.Empty(t, st.Products)
	require.False(t, st.Loading)

	// The slot is free again.
	require.True(t, apperror.HasCode(f.session.Reload(ctx), apperror.CodeNotConnected))
}

func TestSession_TransitionAbandonsStaleReload(t *testing.T) {
	f := newFixture(t, 4)
	f.chain.add("Pen", ether(1), bob)
	f.run(t)
	ctx := context.Background()
	require.NoError(t, f.session.Connect(ctx))

	release := f.repo.block()
	reloadDone := make(chan error, 1)
	go func() { reloadDone <- f.session.Reload(ctx) }()
	f.repo.waitEntered(t)

	f.gateway.switchTo(1)

	err := <-reloadDone
	require.True(t, apperror.HasCode(err, apperror.CodeOperationAbandoned), "got %v", err)
	release()

	st := f.eventually(t, func(st domain.State) bool {
		return st.NetworkID != nil && *st.NetworkID == 1 && !st.Loading
	}, "mainnet reload did not settle")
	require.Nil(t, st.Binding)
	require.Empty(t, st.Products)
}
