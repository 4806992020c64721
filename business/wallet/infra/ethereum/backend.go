// Package ethereum provides the go-ethereum backed wallet gateway.
package ethereum

import (
	"context"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

const (
	tracerName = "github.com/fd1az/dapp-marketplace/business/wallet/infra/ethereum"
	meterName  = "github.com/fd1az/dapp-marketplace/business/wallet/infra/ethereum"
)

// backend is the subset of *ethclient.Client the gateway uses.
type backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Close()
}

// Dialer opens a backend for an endpoint URL.
type Dialer func(ctx context.Context, url string) (backend, error)

// HTTPDialer dials JSON-RPC over the given (instrumented) http.Client.
func HTTPDialer(httpClient *http.Client) Dialer {
	return func(ctx context.Context, url string) (backend, error) {
		rpcClient, err := rpc.DialOptions(ctx, url, rpc.WithHTTPClient(httpClient))
		if err != nil {
			return nil, err
		}
		return ethclient.NewClient(rpcClient), nil
	}
}
