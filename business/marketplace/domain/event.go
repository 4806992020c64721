package domain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const (
	EventProductCreated   = "ProductCreated"
	EventProductPurchased = "ProductPurchased"
)

// ProductEvent is a decoded ProductCreated or ProductPurchased log.
type ProductEvent struct {
	Name    string
	Product Product
	TxHash  common.Hash
	Block   uint64
}

// DecodeProductEvent finds the first marketplace event emitted by the
// bound contract in logs. It returns nil when there is none.
func DecodeProductEvent(binding *ContractBinding, logs []*types.Log) (*ProductEvent, error) {
	if binding == nil || binding.ABI == nil {
		return nil, nil
	}

	for _, lg := range logs {
		if lg == nil || lg.Address != binding.Address || len(lg.Topics) == 0 {
			continue
		}
		for _, name := range []string{EventProductCreated, EventProductPurchased} {
			ev, ok := binding.ABI.Events[name]
			if !ok || ev.ID != lg.Topics[0] {
				continue
			}
			product, err := unpackProductEvent(binding.ABI, ev, lg)
			if err != nil {
				return nil, fmt.Errorf("decode %s: %w", name, err)
			}
			return &ProductEvent{
				Name:    name,
				Product: product,
				TxHash:  lg.TxHash,
				Block:   lg.BlockNumber,
			}, nil
		}
	}
	return nil, nil
}

func unpackProductEvent(contract *abi.ABI, ev abi.Event, lg *types.Log) (Product, error) {
	fields := make(map[string]any, len(ev.Inputs))
	if err := contract.UnpackIntoMap(fields, ev.Name, lg.Data); err != nil {
		return Product{}, err
	}

	var indexed abi.Arguments
	for _, in := range ev.Inputs {
		if in.Indexed {
			indexed = append(indexed, in)
		}
	}
	if len(indexed) > 0 {
		if err := abi.ParseTopicsIntoMap(fields, indexed, lg.Topics[1:]); err != nil {
			return Product{}, err
		}
	}

	id, _ := fields["id"].(*big.Int)
	name, _ := fields["name"].(string)
	price, _ := fields["price"].(*big.Int)
	owner, _ := fields["owner"].(common.Address)
	purchased, _ := fields["purchased"].(bool)
	if id == nil || !id.IsUint64() {
		return Product{}, fmt.Errorf("missing or invalid id")
	}

	return NewProduct(id.Uint64(), name, price, owner, purchased), nil
}
