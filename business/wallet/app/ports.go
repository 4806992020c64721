// Package app contains port definitions for the wallet context.
package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/dapp-marketplace/business/wallet/domain"
)

// Gateway is the chain capability the marketplace depends on: the
// connected account, the current network, and raw transaction primitives.
type Gateway interface {
	// Account returns the connected account, if any.
	Account() (common.Address, bool)

	// NetworkID returns the chain id of the active endpoint.
	NetworkID(ctx context.Context) (domain.NetworkID, error)

	// SubscribeNetwork streams network observations until ctx is done.
	// The first value has Previous == nil; later values are transitions.
	SubscribeNetwork(ctx context.Context) (<-chan domain.NetworkChange, error)

	// Connect asks the wallet owner for access. A declined prompt fails
	// with apperror.CodeUserRejected.
	Connect(ctx context.Context) (common.Address, error)

	Disconnect(ctx context.Context) error

	// Call runs a read-only contract call against the latest block.
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)

	// SendTransaction signs and broadcasts req from the connected account.
	SendTransaction(ctx context.Context, req domain.TxRequest) (domain.TxHandle, error)

	// AwaitConfirmation blocks until the transaction has the requested
	// number of confirmations. A failed receipt returns
	// apperror.CodeTransactionReverted along with the receipt.
	AwaitConfirmation(ctx context.Context, tx domain.TxHandle, confirmations uint64) (*types.Receipt, error)
}

// EndpointSwitcher is implemented by gateways backed by several RPC
// endpoints. Switching endpoints changes the observed network.
type EndpointSwitcher interface {
	Endpoints() []string
	ActiveEndpoint() string
	SwitchEndpoint(ctx context.Context, name string) error
	NextEndpoint(ctx context.Context) (string, error)
}

// GasOracle defines the interface for gas price information.
type GasOracle interface {
	// GasPrice retrieves the current gas price.
	GasPrice(ctx context.Context) (*domain.GasPrice, error)

	// EstimateGas estimates the gas needed for a call, with a safety margin.
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
}

// ApprovalKind distinguishes the prompts a wallet owner can see.
type ApprovalKind string

const (
	ApprovalConnect ApprovalKind = "connect"
	ApprovalSign    ApprovalKind = "sign"
)

// ApprovalRequest is what the wallet owner is asked to approve.
type ApprovalRequest struct {
	Kind      ApprovalKind
	Account   common.Address
	NetworkID domain.NetworkID

	// Set for ApprovalSign.
	To       common.Address
	Method   string
	Value    *big.Int
	GasLimit uint64
	GasPrice *big.Int
}

// Approver stands in for the wallet prompt. Returning false declines.
type Approver interface {
	Approve(ctx context.Context, req ApprovalRequest) (bool, error)
}

// ApproverFunc adapts a function to Approver.
type ApproverFunc func(ctx context.Context, req ApprovalRequest) (bool, error)

func (f ApproverFunc) Approve(ctx context.Context, req ApprovalRequest) (bool, error) {
	return f(ctx, req)
}

// AutoApprover approves everything. Used with wallet.auto_approve.
var AutoApprover Approver = ApproverFunc(func(context.Context, ApprovalRequest) (bool, error) {
	return true, nil
})
