package domain

import (
	"math/big"
	"time"
)

// GasPrice represents gas price information.
type GasPrice struct {
	Wei       *big.Int
	Gwei      float64
	Timestamp time.Time
}

// NewGasPrice creates a GasPrice from wei.
func NewGasPrice(wei *big.Int) *GasPrice {
	gwei := new(big.Float).SetInt(wei)
	gwei.Quo(gwei, big.NewFloat(1e9))
	gweiFloat, _ := gwei.Float64()

	return &GasPrice{
		Wei:       new(big.Int).Set(wei),
		Gwei:      gweiFloat,
		Timestamp: time.Now(),
	}
}

// MaxCost is the worst-case fee for gasLimit at this price.
func (p *GasPrice) MaxCost(gasLimit uint64) *big.Int {
	return new(big.Int).Mul(p.Wei, new(big.Int).SetUint64(gasLimit))
}
