package ethereum

import (
	"context"
	"errors"
	"io"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fd1az/dapp-marketplace/business/wallet/domain"
	"github.com/fd1az/dapp-marketplace/internal/logger"
)

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelError, "test", nil)
}

// scriptedChainIDs returns each scripted value in turn, repeating the last.
type scriptedChainIDs struct {
	mu     sync.Mutex
	values []any // int64 or error
}

func (s *scriptedChainIDs) next(context.Context) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.values[0]
	if len(s.values) > 1 {
		s.values = s.values[1:]
	}
	if err, ok := v.(error); ok {
		return nil, err
	}
	return big.NewInt(v.(int64)), nil
}

func recv(t *testing.T, ch <-chan domain.NetworkChange) domain.NetworkChange {
	t.Helper()
	select {
	case c, ok := <-ch:
		require.True(t, ok, "stream closed")
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for network change")
		return domain.NetworkChange{}
	}
}

func TestNetworkWatcher_OneNotificationPerTransition(t *testing.T) {
	src := &scriptedChainIDs{values: []any{
		int64(4), int64(4), errors.New("timeout"), int64(4), int64(1), int64(1), int64(1),
	}}
	w, err := NewNetworkWatcher(5*time.Millisecond, src.next, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := w.Watch(ctx, nil)

	first := recv(t, ch)
	require.Equal(t, domain.NetworkID(4), first.Current)
	require.Nil(t, first.Previous)
	require.False(t, first.IsTransition())

	second := recv(t, ch)
	require.Equal(t, domain.NetworkID(1), second.Current)
	require.NotNil(t, second.Previous)
	require.Equal(t, domain.NetworkID(4), *second.Previous)
	require.True(t, second.IsTransition())

	select {
	case c := <-ch:
		t.Fatalf("unexpected extra notification %+v", c)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNetworkWatcher_PokeAndClose(t *testing.T) {
	src := &scriptedChainIDs{values: []any{int64(4), int64(5)}}
	w, err := NewNetworkWatcher(time.Hour, src.next, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	poke := make(chan struct{}, 1)
	ch := w.Watch(ctx, poke)

	require.Equal(t, domain.NetworkID(4), recv(t, ch).Current)

	poke <- struct{}{}
	require.Equal(t, domain.NetworkID(5), recv(t, ch).Current)

	cancel()
	select {
	case _, ok := <-ch:
		require.False(t, ok, "expected closed stream")
	case <-time.After(time.Second):
		t.Fatal("stream not closed after cancel")
	}
}
