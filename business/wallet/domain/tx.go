package domain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// TxRequest describes a contract method invocation to sign and send.
// GasLimit 0 means estimate.
type TxRequest struct {
	To       common.Address
	ABI      *abi.ABI
	Method   string
	Args     []any
	Value    *big.Int
	GasLimit uint64
}

// CallData packs the method selector and arguments.
func (r TxRequest) CallData() ([]byte, error) {
	if r.ABI == nil {
		return nil, fmt.Errorf("tx request for %s: nil ABI", r.Method)
	}
	return r.ABI.Pack(r.Method, r.Args...)
}

// ValueOrZero never returns nil.
func (r TxRequest) ValueOrZero() *big.Int {
	if r.Value == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(r.Value)
}

// TxHandle identifies a submitted transaction.
type TxHandle struct {
	Hash        common.Hash
	From        common.Address
	To          common.Address
	Nonce       uint64
	Data        []byte
	Value       *big.Int
	Gas         uint64
	GasPrice    *big.Int
	SubmittedAt time.Time
}
