// Package domain contains the core domain types for the marketplace context.
package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Product is a marketplace listing as read from the contract.
type Product struct {
	ID        uint64
	Name      string
	PriceWei  *big.Int
	Price     string // decimal ether, e.g. "1.0"
	Owner     common.Address
	Purchased bool
}

// NewProduct normalizes raw contract fields.
func NewProduct(id uint64, name string, priceWei *big.Int, owner common.Address, purchased bool) Product {
	if priceWei == nil {
		priceWei = new(big.Int)
	}
	return Product{
		ID:        id,
		Name:      name,
		PriceWei:  new(big.Int).Set(priceWei),
		Price:     FormatEther(priceWei),
		Owner:     owner,
		Purchased: purchased,
	}
}

// Clone returns a copy that shares no mutable state.
func (p Product) Clone() Product {
	if p.PriceWei != nil {
		p.PriceWei = new(big.Int).Set(p.PriceWei)
	}
	return p
}

// Buyable reports whether the product can still be purchased.
func (p Product) Buyable() bool {
	return !p.Purchased
}
