package ethereum

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// fakeBackend is an in-memory chain: sent transactions are mined when
// mine is called.
type fakeBackend struct {
	mu sync.Mutex

	chainID  int64
	head     uint64
	nonce    uint64
	gasPrice *big.Int
	estimate uint64

	sent     []*types.Transaction
	receipts map[common.Hash]*types.Receipt

	callResult []byte
	callErr    error
	callBlocks []*big.Int
	estimates  int
	closed     bool
}

func newFakeBackend(chainID int64) *fakeBackend {
	return &fakeBackend{
		chainID:  chainID,
		head:     100,
		gasPrice: big.NewInt(2_000_000_000),
		estimate: 90_000,
		receipts: make(map[common.Hash]*types.Receipt),
	}
}

// mine records a receipt for tx at the next block.
func (f *fakeBackend) mine(hash common.Hash, status uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.head++
	f.receipts[hash] = &types.Receipt{
		Status:      status,
		TxHash:      hash,
		BlockNumber: new(big.Int).SetUint64(f.head),
	}
}

func (f *fakeBackend) advance(blocks uint64) {
	f.mu.Lock()
	f.head += blocks
	f.mu.Unlock()
}

func (f *fakeBackend) lastSent() *types.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return big.NewInt(f.chainID), nil
}

func (f *fakeBackend) BlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.head, nil
}

func (f *fakeBackend) CallContract(_ context.Context, _ ethereum.CallMsg, block *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callBlocks = append(f.callBlocks, block)
	return f.callResult, f.callErr
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonce, nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.gasPrice), nil
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.estimates++
	return f.estimate, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if tx.Nonce() != f.nonce {
		return errors.New("nonce too low")
	}
	f.nonce++
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (f *fakeBackend) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}
