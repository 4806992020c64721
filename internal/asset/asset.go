// Package asset converts between wei and decimal ether. Values stay in
// big.Int; decimal.Decimal only appears when parsing or rendering.
package asset

import "fmt"

// Asset describes a native currency on one chain.
type Asset struct {
	chainID  uint64
	symbol   string
	decimals uint8
}

// NewNative creates a native coin asset.
func NewNative(chainID uint64, symbol string, decimals uint8) *Asset {
	if symbol == "" {
		panic("asset: empty symbol")
	}
	if decimals > 30 {
		panic("asset: suspicious decimals (>30)")
	}

	return &Asset{
		chainID:  chainID,
		symbol:   symbol,
		decimals: decimals,
	}
}

// Symbol returns the ticker symbol (e.g., "ETH").
func (a *Asset) Symbol() string {
	return a.symbol
}

// Decimals returns the number of decimal places.
func (a *Asset) Decimals() uint8 {
	return a.decimals
}

func (a *Asset) String() string {
	return fmt.Sprintf("%s@%d", a.symbol, a.chainID)
}
