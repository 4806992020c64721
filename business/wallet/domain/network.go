// Package domain contains the core domain types for the wallet context.
package domain

import (
	"math/big"
	"strconv"

	"github.com/fd1az/dapp-marketplace/internal/asset"
)

// NetworkID is an EVM chain id.
type NetworkID uint64

// NetworkIDFromBig converts an RPC chain id. Values that do not fit in
// uint64 are clamped to zero, which no deployment map uses.
func NetworkIDFromBig(id *big.Int) NetworkID {
	if id == nil || !id.IsUint64() {
		return 0
	}
	return NetworkID(id.Uint64())
}

func (n NetworkID) String() string {
	return strconv.FormatUint(uint64(n), 10)
}

// Name returns a display name such as "Rinkeby Test Network".
func (n NetworkID) Name() string {
	return asset.NetworkName(uint64(n))
}

// NetworkChange is delivered once per observed network. The first
// notification of a stream has Previous == nil.
type NetworkChange struct {
	Current  NetworkID
	Previous *NetworkID
}

// IsTransition reports whether the change moved between two known networks.
func (c NetworkChange) IsTransition() bool {
	return c.Previous != nil && *c.Previous != c.Current
}
